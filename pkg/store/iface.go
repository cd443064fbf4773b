// iface.go defines the KV interface the progress store persists through.
//
// Both backends satisfy it: *SQLite (the default, a single file) and *Badger
// (a directory, or in memory for tests). Code that persists data accepts a
// KV so tests can inject failing or in-memory stores.
package store

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
)

// ErrNotFound is returned by Get when the key has no value.
var ErrNotFound = errors.New("key not found")

// KV is a durable key-value store.
type KV interface {
	// Get returns the value stored under key, or ErrNotFound.
	Get(ctx context.Context, key string) ([]byte, error)

	// PutBatch writes every entry in one transaction: either all of them
	// become visible or none do.
	PutBatch(ctx context.Context, entries map[string][]byte) error

	// Delete removes keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error

	// Close releases the underlying database.
	Close() error
}

// Compile-time checks that both backends implement KV.
var (
	_ KV = (*SQLite)(nil)
	_ KV = (*Badger)(nil)
)

// Backend names accepted by Open.
const (
	BackendSQLite = "sqlite"
	BackendBadger = "badger"
)

// Open opens the named backend at path. For sqlite path is a database file;
// for badger it is a directory.
func Open(backend, path string, logger *slog.Logger) (KV, error) {
	switch strings.ToLower(strings.TrimSpace(backend)) {
	case "", BackendSQLite:
		return NewSQLite(path)
	case BackendBadger:
		cfg := DefaultBadgerConfig()
		cfg.Path = path
		cfg.Logger = logger
		return NewBadger(cfg)
	default:
		return nil, fmt.Errorf("unknown storage backend %q", backend)
	}
}
