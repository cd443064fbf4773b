package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/daviddao/wordweave/pkg/level"
	"github.com/daviddao/wordweave/pkg/model"
	"github.com/daviddao/wordweave/pkg/progress"
)

type levelInfo struct {
	level.Entry
	Valid     bool   `json:"valid"`
	Error     string `json:"error,omitempty"`
	Completed bool   `json:"completed"`
}

func (a *app) cmdLevels(args []string) int {
	flags := flag.NewFlagSet("levels", flag.ContinueOnError)
	jsonOut := flags.Bool("json", false, "JSON output")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	entries, err := a.levels.List()
	if err != nil {
		fmt.Fprintf(os.Stderr, "ww: levels: %v\n", err)
		return 1
	}
	p := a.progress.Load(context.Background())

	infos := make([]levelInfo, len(entries))
	for i, e := range entries {
		infos[i] = levelInfo{Entry: e, Valid: e.Err == nil, Completed: progress.IsLevelCompleted(p, e.ID)}
		if e.Err != nil {
			infos[i].Error = e.Err.Error()
		}
	}

	if *jsonOut {
		printJSON(map[string]interface{}{"dir": a.levels.Dir(), "levels": infos})
		return 0
	}
	if len(infos) == 0 {
		fmt.Printf("no levels in %s\n", a.levels.Dir())
		return 0
	}
	for _, li := range infos {
		fmt.Printf("  %s %-4d %s\n", levelMarker(li), li.ID, filepath.Base(li.Path))
		if li.Error != "" {
			fmt.Printf("         %s\n", li.Error)
		}
	}
	return 0
}

// levelMarker returns a short status indicator for display.
func levelMarker(li levelInfo) string {
	switch {
	case !li.Valid:
		return "[!]"
	case li.Completed:
		return "[x]"
	default:
		return "[ ]"
	}
}

func (a *app) cmdShow(args []string) int {
	flags := flag.NewFlagSet("show", flag.ContinueOnError)
	yamlOut := flags.Bool("yaml", false, "print the full level document, clusters included")
	jsonOut := flags.Bool("json", false, "JSON output")
	pos, err := parseArgs(flags, args)
	if err != nil {
		return 1
	}
	if len(pos) != 1 {
		fmt.Fprintln(os.Stderr, "usage: ww show <id> [--yaml] [--json]")
		return 1
	}

	l, code, err := a.loadLevelArg("show", pos[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "ww: %v\n", err)
		return code
	}

	switch {
	case *jsonOut:
		printJSON(l)
	case *yamlOut:
		data, err := level.Marshal(l)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ww: show: %v\n", err)
			return 1
		}
		os.Stdout.Write(data)
	default:
		printLevel(l)
	}
	return 0
}

// printLevel shows the row lengths and the pool without giving away the
// decomposition of any word.
func printLevel(l *model.LevelSpec) {
	fmt.Printf("level %d: %d words, %d cells per row\n", l.LevelID, l.WordCount(), l.Width())
	for i, w := range l.TargetWords {
		fmt.Printf("  row %d: %s\n", i, strings.Repeat("_", w.Len()))
	}
	fmt.Println("clusters:")
	for i, c := range l.AvailableClusters {
		fmt.Printf("  %2d  %s\n", i, c)
	}
}
