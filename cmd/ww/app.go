package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/daviddao/wordweave/pkg/clock"
	"github.com/daviddao/wordweave/pkg/config"
	"github.com/daviddao/wordweave/pkg/level"
	"github.com/daviddao/wordweave/pkg/model"
	"github.com/daviddao/wordweave/pkg/progress"
	"github.com/daviddao/wordweave/pkg/store"
)

// app holds shared state for all CLI subcommands.
type app struct {
	cfg      *config.Config
	logger   *slog.Logger
	clock    clock.Clock
	kv       store.KV
	progress *progress.Store
	levels   *level.Loader
}

// newApp loads configuration and opens the progress database.
func newApp() (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	return openApp(cfg, cfg.Log.NewLogger(os.Stderr), clock.System{})
}

// openApp wires the components for cfg. For SQLite the parent directory of
// the database file is created if needed; BadgerDB creates its own.
func openApp(cfg *config.Config, logger *slog.Logger, clk clock.Clock) (*app, error) {
	if strings.EqualFold(cfg.Storage.Backend, store.BackendSQLite) {
		if dir := filepath.Dir(cfg.Storage.Path); dir != "." {
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return nil, fmt.Errorf("cannot create %s: %w", dir, err)
			}
		}
	}
	kv, err := store.Open(cfg.Storage.Backend, cfg.Storage.Path, logger)
	if err != nil {
		return nil, fmt.Errorf("cannot open %s store %q: %w", cfg.Storage.Backend, cfg.Storage.Path, err)
	}
	return &app{
		cfg:      cfg,
		logger:   logger,
		clock:    clk,
		kv:       kv,
		progress: progress.NewStore(kv, progress.WithClock(clk), progress.WithLogger(logger)),
		levels:   level.NewLoader(cfg.Levels.Dir, logger),
	}, nil
}

// Close releases the database.
func (a *app) Close() { a.kv.Close() }

// totalLevels returns the configured level count, or the number of valid
// level documents when none is configured.
func (a *app) totalLevels() int {
	if a.cfg.Levels.Total > 0 {
		return a.cfg.Levels.Total
	}
	entries, err := a.levels.List()
	if err != nil {
		a.logger.Warn("cannot list levels", "dir", a.levels.Dir(), "err", err)
		return 0
	}
	n := 0
	for _, e := range entries {
		if e.Err == nil {
			n++
		}
	}
	return n
}

// loadLevelArg parses a level id argument and loads that level. On failure
// it returns the exit code to use: 1 for a malformed id, 2 for a level that
// is missing or invalid.
func (a *app) loadLevelArg(cmd, arg string) (*model.LevelSpec, int, error) {
	id, err := strconv.Atoi(arg)
	if err != nil || id <= 0 {
		return nil, 1, fmt.Errorf("%s: invalid level id %q", cmd, arg)
	}
	l, err := a.levels.Load(id)
	if err != nil {
		a.logger.Debug("level load failed", "id", id, "err", err)
		return nil, 2, fmt.Errorf("%s: level %d not found", cmd, id)
	}
	return l, 0, nil
}

// parseArgs parses fs from args, accepting flags both before and after
// positional arguments, and returns the positionals in order. A lone "--"
// ends flag parsing.
func parseArgs(fs *flag.FlagSet, args []string) ([]string, error) {
	var pos []string
	for {
		if err := fs.Parse(args); err != nil {
			return nil, err
		}
		rest := fs.Args()
		if len(rest) == 0 {
			return pos, nil
		}
		if len(rest) < len(args) && args[len(args)-len(rest)-1] == "--" {
			return append(pos, rest...), nil
		}
		pos = append(pos, rest[0])
		args = rest[1:]
	}
}

// printJSON writes v to stdout as indented JSON.
func printJSON(v interface{}) {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}
