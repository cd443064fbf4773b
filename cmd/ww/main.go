// Command ww is the wordweave CLI: browse level documents, play a level from
// a move script, and inspect or reset saved progress.
package main

import (
	"fmt"
	"os"
)

const version = "0.3.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "--help", "-h", "help":
		printUsage()
		return
	case "--version", "-v", "version":
		fmt.Println("ww", version)
		return
	}

	a, err := newApp()
	if err != nil {
		fatal("%v", err)
	}

	var code int
	switch os.Args[1] {
	// Levels
	case "levels", "ls":
		code = a.cmdLevels(os.Args[2:])
	case "show":
		code = a.cmdShow(os.Args[2:])
	case "watch":
		code = a.cmdWatch(os.Args[2:])

	// Play
	case "play":
		code = a.cmdPlay(os.Args[2:])

	// Progress
	case "progress", "status":
		code = a.cmdProgress(os.Args[2:])
	case "complete":
		code = a.cmdComplete(os.Args[2:])
	case "reset":
		code = a.cmdReset(os.Args[2:])

	default:
		fmt.Fprintf(os.Stderr, "ww: unknown command %q\n", os.Args[1])
		fmt.Fprintln(os.Stderr, "Run 'ww --help' for usage.")
		code = 1
	}
	a.Close()
	os.Exit(code)
}

func printUsage() {
	fmt.Print(`ww: word cluster puzzles

Rebuild each target word from its letter clusters. Progress is saved
locally in SQLite (default) or BadgerDB.

Usage:
  ww <command> [flags]

Levels:
  levels                      List level documents and whether they load
  show <id> [--yaml]          Show a level's rows and cluster pool
  watch                       Report level documents as they change on disk

Play:
  play <id> [--moves FILE]    Apply a move script (stdin by default)
                              Lines: "place <cluster> <word> <cell>" or "remove <cluster>"
                              <cluster> is a token id or its text

Progress:
  progress [--total N]        Completed levels, next level, save time
  complete <id> --words A,B --seconds N
                              Record a completion and save
  reset [--purge]             Clear all progress and save
                              --purge deletes the stored record instead

Aliases:
  ls = levels, status = progress

Environment:
  WORDWEAVE_CONFIG           YAML config file (optional)
  WORDWEAVE_STORAGE_BACKEND  sqlite or badger (default: sqlite)
  WORDWEAVE_STORAGE_PATH     database file or directory (default: .wordweave/progress.db)
  WORDWEAVE_LEVELS_DIR       level documents (default: levels)
  WORDWEAVE_TOTAL_LEVELS     level count for "all completed" (default: count of valid levels)
  WORDWEAVE_LOG_LEVEL        debug, info, warn, error (default: warn)
  WORDWEAVE_LOG_FORMAT       text or json (default: text)

All commands support --json for machine-readable output. Flags may come
before or after the level id.

Exit codes:
  0  success
  1  error
  2  level not found, or a move was rejected
`)
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "ww: "+format+"\n", args...)
	os.Exit(1)
}
