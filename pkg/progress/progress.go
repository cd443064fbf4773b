// Package progress maintains the player-wide progress document: which levels
// are completed, with what word order and timing, under a save-format version.
//
// The functions in this file operate on a *model.PlayerProgress in memory.
// Store (store.go) adds locking and durable load/save on top of them.
package progress

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/daviddao/wordweave/pkg/model"
)

// CurrentSaveVersion is the format version written by Save.
const CurrentSaveVersion = 1

var (
	// ErrInvalidRecord is returned when a completion cannot be recorded.
	ErrInvalidRecord = errors.New("invalid completion record")

	// ErrInvalidDocument is returned when a progress document breaks its
	// structural invariants.
	ErrInvalidDocument = errors.New("invalid progress document")

	// ErrUnsupportedVersion is returned for save versions no migration handles.
	ErrUnsupportedVersion = errors.New("unsupported save version")
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// migrations[v] upgrades a document from version v to v+1.
var migrations = []func(*model.PlayerProgress) error{
	0: func(*model.PlayerProgress) error { return nil }, // untagged documents predate versioning
}

// New returns empty progress at the current version.
func New(now time.Time) *model.PlayerProgress {
	return &model.PlayerProgress{
		SaveVersion:     CurrentSaveVersion,
		CompletedLevels: make(map[int]model.LevelCompletionRecord),
		LastSaveTime:    now,
	}
}

// MarkLevelCompleted records that levelID was completed with the given word
// order and time. Re-completing a level replaces its record without changing
// the count. Invalid input leaves p untouched.
func MarkLevelCompleted(p *model.PlayerProgress, levelID int, words []string, seconds float64, at time.Time) error {
	rec := model.LevelCompletionRecord{
		LevelID:               levelID,
		CompletedWords:        slices.Clone(words),
		CompletionTimeSeconds: seconds,
		CompletionDate:        at,
	}
	if err := checkRecord(rec); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRecord, err)
	}

	if p.CompletedLevels == nil {
		p.CompletedLevels = make(map[int]model.LevelCompletionRecord)
	}
	if _, ok := p.CompletedLevels[levelID]; !ok {
		p.CompletedLevelsCount++
	}
	p.CompletedLevels[levelID] = rec
	return nil
}

func checkRecord(rec model.LevelCompletionRecord) error {
	if math.IsNaN(rec.CompletionTimeSeconds) || math.IsInf(rec.CompletionTimeSeconds, 0) {
		return fmt.Errorf("completion time %v is not finite", rec.CompletionTimeSeconds)
	}
	return validate.Struct(rec)
}

// Reset clears every completion and stamps the save time. It does not save.
func Reset(p *model.PlayerProgress, at time.Time) {
	p.CompletedLevels = make(map[int]model.LevelCompletionRecord)
	p.CompletedLevelsCount = 0
	p.LastSaveTime = at
}

// Validate checks the document's structural invariants: the count matches
// the map, every key is a positive level id matching its record, and every
// record is individually valid.
func Validate(p *model.PlayerProgress) error {
	if p == nil {
		return fmt.Errorf("%w: nil document", ErrInvalidDocument)
	}
	if p.CompletedLevelsCount != len(p.CompletedLevels) {
		return fmt.Errorf("%w: count %d but %d records", ErrInvalidDocument, p.CompletedLevelsCount, len(p.CompletedLevels))
	}
	for id, rec := range p.CompletedLevels {
		if id <= 0 {
			return fmt.Errorf("%w: level id %d", ErrInvalidDocument, id)
		}
		if rec.LevelID != id {
			return fmt.Errorf("%w: key %d holds record for level %d", ErrInvalidDocument, id, rec.LevelID)
		}
		if err := checkRecord(rec); err != nil {
			return fmt.Errorf("%w: level %d: %v", ErrInvalidDocument, id, err)
		}
	}
	return nil
}

// Migrate upgrades p in place to CurrentSaveVersion. Documents from a newer
// build, or with a negative version, are refused.
func Migrate(p *model.PlayerProgress) error {
	if p.SaveVersion < 0 || p.SaveVersion > CurrentSaveVersion {
		return fmt.Errorf("%w: %d", ErrUnsupportedVersion, p.SaveVersion)
	}
	for p.SaveVersion < CurrentSaveVersion {
		if err := migrations[p.SaveVersion](p); err != nil {
			return fmt.Errorf("migrate from version %d: %w", p.SaveVersion, err)
		}
		p.SaveVersion++
	}
	if p.CompletedLevels == nil {
		p.CompletedLevels = make(map[int]model.LevelCompletionRecord)
	}
	return nil
}

// Decode parses a stored document without validating it.
func Decode(data []byte) (*model.PlayerProgress, error) {
	if len(data) == 0 {
		return nil, errors.New("empty document")
	}
	var p model.PlayerProgress
	if err := json.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("decode progress: %w", err)
	}
	return &p, nil
}

// CompletedCount returns the number of completed levels.
func CompletedCount(p *model.PlayerProgress) int { return p.CompletedLevelsCount }

// IsLevelCompleted reports whether levelID has a completion record.
func IsLevelCompleted(p *model.PlayerProgress, levelID int) bool {
	_, ok := p.CompletedLevels[levelID]
	return ok
}

// NextLevel returns the smallest positive level id not yet completed.
func NextLevel(p *model.PlayerProgress) int {
	id := 1
	for IsLevelCompleted(p, id) {
		id++
	}
	return id
}

// AllLevelsCompleted reports whether levels 1 through total are all completed.
// A non-positive total is never complete.
func AllLevelsCompleted(p *model.PlayerProgress, total int) bool {
	if total <= 0 {
		return false
	}
	return NextLevel(p) > total
}
