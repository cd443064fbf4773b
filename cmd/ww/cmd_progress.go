package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/daviddao/wordweave/pkg/model"
	"github.com/daviddao/wordweave/pkg/progress"
)

// progressSummary is the reply of the progress command.
type progressSummary struct {
	Completed    int                           `json:"completed"`
	NextLevel    int                           `json:"next_level"`
	TotalLevels  int                           `json:"total_levels"`
	AllCompleted bool                          `json:"all_completed"`
	SaveVersion  int                           `json:"save_version"`
	LastSaveTime time.Time                     `json:"last_save_time"`
	Levels       []model.LevelCompletionRecord `json:"levels"`
	Cached       map[string]interface{}        `json:"cached,omitempty"`
}

func (a *app) summarize(ctx context.Context, p *model.PlayerProgress, total int) progressSummary {
	sum := progressSummary{
		Completed:    progress.CompletedCount(p),
		NextLevel:    progress.NextLevel(p),
		TotalLevels:  total,
		AllCompleted: progress.AllLevelsCompleted(p, total),
		SaveVersion:  p.SaveVersion,
		LastSaveTime: p.LastSaveTime,
		Levels:       make([]model.LevelCompletionRecord, 0, len(p.CompletedLevels)),
	}
	for _, rec := range p.CompletedLevels {
		sum.Levels = append(sum.Levels, rec)
	}
	sort.Slice(sum.Levels, func(i, j int) bool { return sum.Levels[i].LevelID < sum.Levels[j].LevelID })

	// Mirrors are best-effort; missing ones are simply omitted.
	cached := make(map[string]interface{})
	if n, err := a.progress.CachedCount(ctx); err == nil {
		cached[progress.KeyCompletedCount] = n
	}
	if n, err := a.progress.CachedNextLevel(ctx); err == nil {
		cached[progress.KeyNextLevel] = n
	}
	if t, err := a.progress.CachedLastSaveTime(ctx); err == nil {
		cached[progress.KeyLastSaveTime] = t
	}
	if len(cached) > 0 {
		sum.Cached = cached
	}
	return sum
}

func (a *app) cmdProgress(args []string) int {
	flags := flag.NewFlagSet("progress", flag.ContinueOnError)
	total := flags.Int("total", 0, "number of levels in the game (0 = configured or discovered)")
	jsonOut := flags.Bool("json", false, "JSON output")
	if err := flags.Parse(args); err != nil {
		return 1
	}
	if *total <= 0 {
		*total = a.totalLevels()
	}

	ctx := context.Background()
	sum := a.summarize(ctx, a.progress.Load(ctx), *total)

	if *jsonOut {
		printJSON(sum)
		return 0
	}
	fmt.Printf("completed: %d/%d  next level: %d\n", sum.Completed, sum.TotalLevels, sum.NextLevel)
	if sum.AllCompleted {
		fmt.Println("all levels completed")
	}
	for _, rec := range sum.Levels {
		fmt.Printf("  level %-4d %6.1fs  %s  (%s)\n",
			rec.LevelID, rec.CompletionTimeSeconds, strings.Join(rec.CompletedWords, " "),
			rec.CompletionDate.Local().Format("2006-01-02 15:04"))
	}
	if !sum.LastSaveTime.IsZero() {
		fmt.Printf("last save: %s (format v%d)\n", sum.LastSaveTime.Local().Format(time.RFC3339), sum.SaveVersion)
	}
	return 0
}

func (a *app) cmdComplete(args []string) int {
	flags := flag.NewFlagSet("complete", flag.ContinueOnError)
	words := flags.String("words", "", "completed words in order, comma-separated")
	seconds := flags.Float64("seconds", 0, "completion time in seconds")
	jsonOut := flags.Bool("json", false, "JSON output")
	pos, err := parseArgs(flags, args)
	if err != nil {
		return 1
	}
	if len(pos) != 1 {
		fmt.Fprintln(os.Stderr, "usage: ww complete <id> --words A,B [--seconds N] [--json]")
		return 1
	}
	id, err := strconv.Atoi(pos[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "ww: complete: invalid level id %q\n", pos[0])
		return 1
	}

	ctx := context.Background()
	p, err := a.progress.Read(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ww: complete: progress not saved: %v\n", err)
		return 1
	}
	list := splitWords(*words)
	if err := a.progress.Complete(ctx, p, id, list, *seconds); err != nil {
		if errors.Is(err, progress.ErrInvalidRecord) {
			fmt.Fprintf(os.Stderr, "ww: complete: %v\n", err)
		} else {
			fmt.Fprintf(os.Stderr, "ww: complete: progress not saved: %v\n", err)
		}
		return 1
	}

	if *jsonOut {
		printJSON(map[string]interface{}{
			"level":      id,
			"record":     p.CompletedLevels[id],
			"completed":  progress.CompletedCount(p),
			"next_level": progress.NextLevel(p),
		})
	} else {
		fmt.Printf("level %d completed (%d total, next level %d)\n",
			id, progress.CompletedCount(p), progress.NextLevel(p))
	}
	return 0
}

// splitWords splits a comma-separated list, dropping blanks.
func splitWords(s string) []string {
	var out []string
	for _, w := range strings.Split(s, ",") {
		if w = strings.TrimSpace(w); w != "" {
			out = append(out, w)
		}
	}
	return out
}

func (a *app) cmdReset(args []string) int {
	flags := flag.NewFlagSet("reset", flag.ContinueOnError)
	purge := flags.Bool("purge", false, "delete the stored progress instead of saving an empty record")
	jsonOut := flags.Bool("json", false, "JSON output")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	ctx := context.Background()
	p, err := a.progress.Read(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ww: reset: %v\n", err)
		return 1
	}
	cleared := progress.CompletedCount(p)
	if *purge {
		err = a.progress.Purge(ctx)
	} else {
		a.progress.ResetProgress(p)
		err = a.progress.Save(ctx, p)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "ww: reset: %v\n", err)
		return 1
	}

	if *jsonOut {
		printJSON(map[string]interface{}{"reset": true, "purged": *purge, "cleared": cleared})
	} else if *purge {
		fmt.Printf("progress purged (%d level(s) cleared)\n", cleared)
	} else {
		fmt.Printf("progress reset (%d level(s) cleared)\n", cleared)
	}
	return 0
}
