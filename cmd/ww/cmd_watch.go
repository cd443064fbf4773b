package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/daviddao/wordweave/pkg/level"
)

// watchEvent is the JSON form of a level.Change.
type watchEvent struct {
	ID    int    `json:"id"`
	Path  string `json:"path"`
	Op    string `json:"op"`
	Valid bool   `json:"valid"`
	Error string `json:"error,omitempty"`
}

func (a *app) cmdWatch(args []string) int {
	flags := flag.NewFlagSet("watch", flag.ContinueOnError)
	jsonOut := flags.Bool("json", false, "JSON output (one JSON object per line)")
	if err := flags.Parse(args); err != nil {
		return 1
	}

	// Handle ctrl-c gracefully.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintf(os.Stderr, "watching %s (ctrl-c to stop)\n", a.levels.Dir())
	err := a.levels.Watch(ctx, func(c level.Change) {
		if *jsonOut {
			b, _ := json.Marshal(toWatchEvent(c))
			fmt.Println(string(b))
			return
		}
		printChange(c)
	})
	if err != nil {
		fmt.Fprintf(os.Stderr, "ww: watch: %v\n", err)
		return 1
	}
	fmt.Fprintln(os.Stderr, "\nstopped")
	return 0
}

func toWatchEvent(c level.Change) watchEvent {
	ev := watchEvent{ID: c.ID, Path: c.Path, Op: c.Op, Valid: c.Err == nil}
	if c.Err != nil {
		ev.Error = c.Err.Error()
	}
	return ev
}

func printChange(c level.Change) {
	if c.Err != nil {
		fmt.Printf("level %d %s: unavailable: %v\n", c.ID, c.Op, c.Err)
		return
	}
	fmt.Printf("level %d %s: ok\n", c.ID, c.Op)
}
