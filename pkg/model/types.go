// Package model defines the core domain types for wordweave.
//
// A level asks the player to rebuild a handful of target words from a pool
// of letter clusters:
//
//   - Each target word is a row of fixed-width cells. A word decomposes into
//     an ordered list of clusters whose concatenation is the word itself.
//
//   - The pool holds the cluster tokens for the session. Tokens with the same
//     text are still distinct: placement works by token identity, never by
//     text.
//
// Progress across levels lives in a single PlayerProgress document that is
// versioned so older saves can be migrated on load.
package model

import (
	"time"
	"unicode/utf8"
)

// DefaultCellsPerWord is the row width used when a level does not set one.
const DefaultCellsPerWord = 6

// MaxClusterLen is the longest cluster text accepted, in letters.
const MaxClusterLen = 4

// WordSpec is one target word and its required cluster decomposition.
type WordSpec struct {
	Word     string   `json:"word" yaml:"word"`
	Clusters []string `json:"clusters" yaml:"clusters"`
}

// Len returns the word length in letters.
func (w WordSpec) Len() int { return utf8.RuneCountInString(w.Word) }

// LevelSpec is the immutable description of one puzzle.
type LevelSpec struct {
	LevelID           int        `json:"levelId" yaml:"levelId"`
	TargetWords       []WordSpec `json:"targetWords" yaml:"targetWords"`
	AvailableClusters []string   `json:"availableClusters" yaml:"availableClusters"`
	// CellsPerWord is the row width. Zero means DefaultCellsPerWord.
	CellsPerWord int `json:"cellsPerWord,omitempty" yaml:"cellsPerWord,omitempty"`
}

// WordCount returns the number of rows on the field.
func (l LevelSpec) WordCount() int { return len(l.TargetWords) }

// Width returns the effective row width.
func (l LevelSpec) Width() int {
	if l.CellsPerWord > 0 {
		return l.CellsPerWord
	}
	return DefaultCellsPerWord
}

// Position locates a placed token: the row and the first cell it covers.
type Position struct {
	Word int `json:"word"`
	Cell int `json:"cell"`
}

// ClusterToken is a single cluster instance owned by one session.
// Placed is false for Unplaced tokens, in which case Pos is meaningless.
type ClusterToken struct {
	ID     int      `json:"id"`
	Text   string   `json:"text"`
	Placed bool     `json:"placed"`
	Pos    Position `json:"pos"`
}

// Len returns the number of cells the token covers.
func (t ClusterToken) Len() int { return utf8.RuneCountInString(t.Text) }

// End returns the first cell after the token: it covers [Pos.Cell, End()).
func (t ClusterToken) End() int { return t.Pos.Cell + t.Len() }

// Overlaps reports whether t, placed at start in some row, would share a cell
// with the already placed token other in that same row.
func (t ClusterToken) Overlaps(start int, other ClusterToken) bool {
	end := start + t.Len()
	return start < other.End() && other.Pos.Cell < end
}

// LevelCompletionRecord captures how a level was finished.
type LevelCompletionRecord struct {
	LevelID               int       `json:"levelId" validate:"gt=0"`
	CompletedWords        []string  `json:"completedWords" validate:"min=1,dive,required"`
	CompletionTimeSeconds float64   `json:"completionTimeSeconds" validate:"gte=0"`
	CompletionDate        time.Time `json:"completionDate"`
}

// PlayerProgress is the player-wide, versioned progress document.
// CompletedLevelsCount always equals len(CompletedLevels).
type PlayerProgress struct {
	SaveVersion          int                           `json:"saveVersion"`
	CompletedLevels      map[int]LevelCompletionRecord `json:"completedLevels"`
	CompletedLevelsCount int                           `json:"completedLevelsCount"`
	LastSaveTime         time.Time                     `json:"lastSaveTime"`
}

// Clone returns a deep copy so callers can snapshot a document without
// aliasing its map or word slices.
func (p *PlayerProgress) Clone() *PlayerProgress {
	out := *p
	out.CompletedLevels = make(map[int]LevelCompletionRecord, len(p.CompletedLevels))
	for id, rec := range p.CompletedLevels {
		rec.CompletedWords = append([]string(nil), rec.CompletedWords...)
		out.CompletedLevels[id] = rec
	}
	return &out
}
