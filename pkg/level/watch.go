package level

import (
	"context"
	"errors"
	"fmt"

	"github.com/fsnotify/fsnotify"
)

// Change reports a level document that was written, created, removed or
// renamed while watching. Err holds the result of reloading it; removed
// documents report ErrNotFound.
type Change struct {
	ID   int
	Path string
	Op   string
	Err  error
}

// Watch invalidates cached levels as their documents change on disk and
// calls fn once per change, after the reload attempt. It blocks until ctx is
// cancelled or the underlying watcher fails.
func (l *Loader) Watch(ctx context.Context, fn func(Change)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create watcher: %w", err)
	}
	defer w.Close()

	if err := w.Add(l.dir); err != nil {
		return fmt.Errorf("watch %s: %w", l.dir, err)
	}
	l.logger.Info("watching levels", "dir", l.dir)

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.Events:
			if !ok {
				return nil
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) &&
				!event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			id, isLevel := l.Invalidate(event.Name)
			if !isLevel {
				continue
			}
			_, loadErr := l.Load(id)
			l.logger.Debug("level changed", "id", id, "op", event.Op.String(), "err", loadErr)
			if fn != nil {
				fn(Change{ID: id, Path: event.Name, Op: event.Op.String(), Err: loadErr})
			}

		case err, ok := <-w.Errors:
			if !ok {
				return nil
			}
			if errors.Is(err, fsnotify.ErrEventOverflow) {
				l.logger.Warn("level watcher overflow, dropping cache", "err", err)
				l.mu.Lock()
				clear(l.cache)
				l.mu.Unlock()
				continue
			}
			return fmt.Errorf("watch %s: %w", l.dir, err)
		}
	}
}
