// retry.go provides automatic retry for transient storage contention.
//
// SQLite in WAL mode can report SQLITE_BUSY, SQLITE_LOCKED and
// IOERR_SHORT_READ (522) when another connection holds the write lock; the
// busy_timeout pragma absorbs most of these but not all. BadgerDB reports
// ErrConflict when two transactions touch the same key. Both are resolved by
// running the write again.
package store

import (
	"context"
	"errors"
	"math/rand"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

// retryConfig controls retry behavior for transient write errors.
type retryConfig struct {
	maxRetries int
	baseDelay  time.Duration
	maxDelay   time.Duration
}

// defaultRetryConfig is used for all backend write operations.
var defaultRetryConfig = retryConfig{
	maxRetries: 3,
	baseDelay:  50 * time.Millisecond,
	maxDelay:   500 * time.Millisecond,
}

// isTransient returns true if err is worth retrying:
//   - SQLITE_BUSY (5), SQLITE_LOCKED (6), SQLITE_IOERR_SHORT_READ (522)
//   - "database is locked" text from the busy_timeout fallthrough
//   - badger.ErrConflict from concurrent transactions
func isTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, badger.ErrConflict) {
		return true
	}
	msg := err.Error()
	for _, pattern := range []string{
		"SQLITE_BUSY",
		"SQLITE_LOCKED",
		"IOERR_SHORT_READ",
		"database is locked",
		"database table is locked",
		"(5)",
		"(6)",
		"(522)",
	} {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

// retryOp executes fn with exponential backoff + jitter for transient errors.
// It stops early, returning the last error, if ctx is cancelled while
// waiting between attempts.
func retryOp(ctx context.Context, cfg retryConfig, fn func() error) error {
	var lastErr error
	for attempt := 0; attempt <= cfg.maxRetries; attempt++ {
		lastErr = fn()
		if lastErr == nil || !isTransient(lastErr) {
			return lastErr
		}
		if attempt == cfg.maxRetries {
			break
		}
		t := time.NewTimer(backoffDelay(cfg, attempt))
		select {
		case <-ctx.Done():
			t.Stop()
			return lastErr
		case <-t.C:
		}
	}
	return lastErr
}

// backoffDelay computes baseDelay * 2^attempt, capped at maxDelay, plus
// jitter in [0, baseDelay).
func backoffDelay(cfg retryConfig, attempt int) time.Duration {
	delay := cfg.baseDelay << uint(attempt)
	if delay > cfg.maxDelay {
		delay = cfg.maxDelay
	}
	jitter := time.Duration(rand.Int63n(int64(cfg.baseDelay)))
	return delay + jitter
}
