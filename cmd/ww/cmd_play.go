package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/daviddao/wordweave/pkg/clock"
	"github.com/daviddao/wordweave/pkg/session"
)

// move is one parsed line of a move script.
type move struct {
	remove bool
	ref    string // token id or token text
	word   int
	cell   int
}

// parseMove parses "place <cluster> <word> <cell>" or "remove <cluster>".
// "p" and "r" are accepted as short forms.
func parseMove(line string) (move, error) {
	f := strings.Fields(line)
	if len(f) == 0 {
		return move{}, errors.New("empty move")
	}
	switch strings.ToLower(f[0]) {
	case "place", "p":
		if len(f) != 4 {
			return move{}, fmt.Errorf("want: place <cluster> <word> <cell>")
		}
		word, err := strconv.Atoi(f[2])
		if err != nil {
			return move{}, fmt.Errorf("bad word index %q", f[2])
		}
		cell, err := strconv.Atoi(f[3])
		if err != nil {
			return move{}, fmt.Errorf("bad cell %q", f[3])
		}
		return move{ref: f[1], word: word, cell: cell}, nil
	case "remove", "r":
		if len(f) != 2 {
			return move{}, fmt.Errorf("want: remove <cluster>")
		}
		return move{remove: true, ref: f[1]}, nil
	default:
		return move{}, fmt.Errorf("unknown move %q", f[0])
	}
}

// resolve maps a move's cluster reference to a token id. A numeric reference
// is an id. Anything else is token text, resolved to the first token with
// that text that is on the field (remove) or off it (place).
func resolve(s *session.Session, m move) (int, error) {
	if id, err := strconv.Atoi(m.ref); err == nil {
		return id, nil
	}
	for _, t := range s.FindByText(m.ref) {
		if t.Placed == m.remove {
			return t.ID, nil
		}
	}
	if m.remove {
		return 0, fmt.Errorf("%w: no placed %q", session.ErrNotPlaced, m.ref)
	}
	return 0, fmt.Errorf("%w: no available %q", session.ErrUnknownCluster, m.ref)
}

// moveResult reports the outcome of one script line.
type moveResult struct {
	Line   int             `json:"line"`
	Move   string          `json:"move"`
	OK     bool            `json:"ok"`
	Error  string          `json:"error,omitempty"`
	Change *session.Change `json:"change,omitempty"`
}

// runMoves applies every move in r to s. Blank lines and lines starting with
// '#' are skipped. Malformed or rejected moves are reported and skipped.
func runMoves(s *session.Session, r io.Reader) ([]moveResult, error) {
	var out []moveResult
	sc := bufio.NewScanner(r)
	n := 0
	for sc.Scan() {
		n++
		line := strings.TrimSpace(sc.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		res := moveResult{Line: n, Move: line}
		ch, err := apply(s, line)
		if err != nil {
			res.Error = err.Error()
		} else {
			res.OK = true
			res.Change = &ch
		}
		out = append(out, res)
	}
	if err := sc.Err(); err != nil {
		return out, fmt.Errorf("read moves: %w", err)
	}
	return out, nil
}

func apply(s *session.Session, line string) (session.Change, error) {
	m, err := parseMove(line)
	if err != nil {
		return session.Change{}, err
	}
	id, err := resolve(s, m)
	if err != nil {
		return session.Change{}, err
	}
	if m.remove {
		return s.Remove(id)
	}
	return s.Place(id, m.word, m.cell)
}

// renderGrid turns a field snapshot into printable rows, '.' for empty cells.
func renderGrid(grid [][]rune) []string {
	rows := make([]string, len(grid))
	for i, row := range grid {
		var b strings.Builder
		for _, r := range row {
			if r == session.Empty {
				b.WriteByte('.')
			} else {
				b.WriteRune(r)
			}
		}
		rows[i] = b.String()
	}
	return rows
}

func (a *app) cmdPlay(args []string) int {
	flags := flag.NewFlagSet("play", flag.ContinueOnError)
	movesPath := flags.String("moves", "-", "move script file (- for stdin)")
	noSave := flags.Bool("no-save", false, "do not record a completion")
	jsonOut := flags.Bool("json", false, "JSON output")
	pos, err := parseArgs(flags, args)
	if err != nil {
		return 1
	}
	if len(pos) != 1 {
		fmt.Fprintln(os.Stderr, "usage: ww play <id> [--moves FILE] [--no-save] [--json]")
		return 1
	}

	l, code, err := a.loadLevelArg("play", pos[0])
	if err != nil {
		fmt.Fprintf(os.Stderr, "ww: %v\n", err)
		return code
	}
	sess, err := session.New(l, session.WithClock(a.clock), session.WithLogger(a.logger))
	if err != nil {
		fmt.Fprintf(os.Stderr, "ww: play: %v\n", err)
		return 1
	}

	in := io.Reader(os.Stdin)
	if *movesPath != "-" {
		f, err := os.Open(*movesPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "ww: play: %v\n", err)
			return 1
		}
		defer f.Close()
		in = f
	}

	results, err := runMoves(sess, in)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ww: play: %v\n", err)
		return 1
	}

	saved := false
	if sess.IsCompleted() && !*noSave {
		saved = a.recordCompletion(sess)
	}

	rejected := 0
	for _, r := range results {
		if !r.OK {
			rejected++
		}
	}

	d, _ := sess.CompletionTime()
	if *jsonOut {
		printJSON(map[string]interface{}{
			"session":         sess.ID().String(),
			"level":           l.LevelID,
			"moves":           results,
			"rejected":        rejected,
			"completed_words": sess.CompletedWords(),
			"completed":       sess.IsCompleted(),
			"seconds":         clock.Seconds(d),
			"saved":           saved,
			"grid":            renderGrid(sess.FieldSnapshot()),
		})
	} else {
		for _, r := range results {
			printResult(r)
		}
		fmt.Println()
		for _, row := range renderGrid(sess.FieldSnapshot()) {
			fmt.Printf("  %s\n", row)
		}
		fmt.Println()
		if sess.IsCompleted() {
			fmt.Printf("LEVEL %d COMPLETE in %.1fs: %s\n", l.LevelID, clock.Seconds(d), strings.Join(sess.CompletedWords(), ", "))
		} else {
			fmt.Printf("level %d: %d/%d words, %d clusters left\n",
				l.LevelID, len(sess.CompletedWords()), l.WordCount(), len(sess.Available()))
		}
	}

	if rejected > 0 {
		return 2
	}
	return 0
}

// recordCompletion saves a completed session. A failed save is reported and
// play carries on; the next completion saves again.
func (a *app) recordCompletion(sess *session.Session) bool {
	ctx := context.Background()
	d, _ := sess.CompletionTime()
	p, err := a.progress.Read(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ww: progress not saved: %v\n", err)
		return false
	}
	lv := sess.Level()
	if err := a.progress.Complete(ctx, p, lv.LevelID, sess.CompletedWords(), clock.Seconds(d)); err != nil {
		fmt.Fprintf(os.Stderr, "ww: progress not saved: %v\n", err)
		return false
	}
	return true
}

func printResult(r moveResult) {
	if !r.OK {
		fmt.Printf("  %3d  rejected  %s: %s\n", r.Line, r.Move, r.Error)
		return
	}
	fmt.Printf("  %3d  ok        %s\n", r.Line, r.Move)
	if r.Change.CompletedWord != "" {
		fmt.Printf("            word: %s\n", r.Change.CompletedWord)
	}
}
