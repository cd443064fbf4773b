// Package level validates, parses and loads level descriptions.
//
// A level that fails Validate or CheckPool must never reach a session.
// The Loader enforces this by reporting such levels as ErrNotFound, which is
// the same answer a caller gets for a level that does not exist.
package level

import (
	"errors"
	"fmt"
	"strings"

	"github.com/daviddao/wordweave/pkg/model"
)

var (
	// ErrInvalid wraps every structural validation failure.
	ErrInvalid = errors.New("invalid level")

	// ErrNotFound is returned by the Loader for missing or unusable levels.
	ErrNotFound = errors.New("level not found")
)

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...))
}

// Validate checks a level's internal consistency. It returns nil when the
// level is usable, or an error wrapping ErrInvalid naming the first problem
// found. Checks run in a fixed order and stop at the first failure:
//
//	levelId > 0
//	targetWords non-empty
//	availableClusters non-empty
//	per word: word non-empty, clusters non-empty, concat(clusters) == word
//
// followed by cluster shape, row width and fit checks.
func Validate(l *model.LevelSpec) error {
	if l == nil {
		return invalid("nil level")
	}
	if l.LevelID <= 0 {
		return invalid("levelId must be positive, got %d", l.LevelID)
	}
	if len(l.TargetWords) == 0 {
		return invalid("level %d has no target words", l.LevelID)
	}
	if len(l.AvailableClusters) == 0 {
		return invalid("level %d has no available clusters", l.LevelID)
	}
	for i, w := range l.TargetWords {
		if w.Word == "" {
			return invalid("word %d is empty", i)
		}
		if len(w.Clusters) == 0 {
			return invalid("word %d (%q) has no clusters", i, w.Word)
		}
		if joined := strings.Join(w.Clusters, ""); joined != w.Word {
			return invalid("word %d: clusters %q join to %q, want %q", i, w.Clusters, joined, w.Word)
		}
	}

	for i, w := range l.TargetWords {
		for j, c := range w.Clusters {
			if err := checkCluster(c); err != nil {
				return invalid("word %d cluster %d: %v", i, j, err)
			}
		}
	}
	for i, c := range l.AvailableClusters {
		if err := checkCluster(c); err != nil {
			return invalid("available cluster %d: %v", i, err)
		}
	}
	if l.CellsPerWord < 0 {
		return invalid("cellsPerWord must not be negative, got %d", l.CellsPerWord)
	}
	width := l.Width()
	for i, w := range l.TargetWords {
		if w.Len() > width {
			return invalid("word %d (%q) is %d letters, row holds %d", i, w.Word, w.Len(), width)
		}
	}
	for i, c := range l.AvailableClusters {
		if n := (model.ClusterToken{Text: c}).Len(); n > width {
			return invalid("available cluster %d (%q) is %d letters, row holds %d", i, c, n, width)
		}
	}
	return nil
}

func checkCluster(c string) error {
	tok := model.ClusterToken{Text: c}
	switch n := tok.Len(); {
	case n == 0:
		return errors.New("empty cluster")
	case n > model.MaxClusterLen:
		return fmt.Errorf("cluster %q longer than %d letters", c, model.MaxClusterLen)
	}
	return nil
}

// CheckPool verifies every cluster required by the target words can be
// drawn from the pool, counting duplicates: a cluster used twice needs two
// tokens with that text.
func CheckPool(l *model.LevelSpec) error {
	pool := make(map[string]int, len(l.AvailableClusters))
	for _, c := range l.AvailableClusters {
		pool[c]++
	}
	for i, w := range l.TargetWords {
		for _, c := range w.Clusters {
			if pool[c] == 0 {
				return invalid("word %d (%q) needs cluster %q, pool has too few", i, w.Word, c)
			}
			pool[c]--
		}
	}
	return nil
}

// Check runs Validate then CheckPool.
func Check(l *model.LevelSpec) error {
	if err := Validate(l); err != nil {
		return err
	}
	return CheckPool(l)
}
