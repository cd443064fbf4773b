// Package session implements the puzzle session state machine.
//
// A Session owns the cluster tokens of one attempt at one level. Players
// place tokens into word rows and take them back out; after every successful
// placement the session checks whether the affected row now spells its
// target word and whether the whole level is done.
//
// Completion is decided from the token collection alone. FieldSnapshot builds
// a letter grid for display but nothing reads it back.
//
// A Session is not goroutine-safe. Callers serialize Place and Remove, one
// per player gesture.
package session

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/daviddao/wordweave/pkg/clock"
	"github.com/daviddao/wordweave/pkg/level"
	"github.com/daviddao/wordweave/pkg/model"
)

// Rejection reasons for Place and Remove. A rejected call changes nothing.
var (
	ErrUnknownCluster = errors.New("unknown cluster")
	ErrAlreadyPlaced  = errors.New("cluster already placed")
	ErrNotPlaced      = errors.New("cluster not placed")
	ErrWordOutOfRange = errors.New("word index out of range")
	ErrCellOutOfRange = errors.New("cells outside row")
	ErrCellsOccupied  = errors.New("cells occupied")
)

// State is the session's lifecycle state.
type State int

const (
	Active State = iota
	Completed
)

func (s State) String() string {
	if s == Completed {
		return "completed"
	}
	return "active"
}

// Change describes the effect of a successful Place or Remove.
type Change struct {
	Token model.ClusterToken `json:"token"`
	// CompletedWord is set when this placement finished a word for the
	// first time in the session.
	CompletedWord string `json:"completed_word,omitempty"`
	// LevelCompleted is true only for the placement that completed the level.
	LevelCompleted bool `json:"level_completed,omitempty"`
}

// Option configures a Session.
type Option func(*Session)

// WithClock sets the time source used for timing the session.
func WithClock(c clock.Clock) Option {
	return func(s *Session) { s.clock = c }
}

// WithLogger sets the logger used to report rejected moves and completions.
func WithLogger(l *slog.Logger) Option {
	return func(s *Session) { s.logger = l }
}

// Session is one in-progress attempt at a level.
type Session struct {
	id     uuid.UUID
	level  model.LevelSpec
	reg    *Registry
	clock  clock.Clock
	logger *slog.Logger

	completed   []string // append-only, first-completion order
	state       State
	startedAt   time.Time
	completedAt time.Time
}

// New starts a session for l. Levels that fail validation or whose pool
// cannot supply every required cluster are refused.
func New(l *model.LevelSpec, opts ...Option) (*Session, error) {
	if err := level.Check(l); err != nil {
		return nil, fmt.Errorf("new session: %w", err)
	}
	s := &Session{
		id:    uuid.New(),
		level: *level.Clone(l),
		reg:   NewRegistry(l.AvailableClusters),
		clock: clock.System{},
	}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	s.logger = s.logger.With("component", "session", "session", s.id.String(), "level", l.LevelID)
	s.startedAt = s.clock.Now()
	return s, nil
}

// Place puts a token into row wordIndex starting at cell startCell.
// The move is all-or-nothing: on error the session is unchanged.
func (s *Session) Place(clusterID, wordIndex, startCell int) (Change, error) {
	tok, err := s.checkPlace(clusterID, wordIndex, startCell)
	if err != nil {
		s.logger.Debug("place rejected", "cluster", clusterID, "word", wordIndex, "cell", startCell, "err", err)
		return Change{}, err
	}

	ch := Change{Token: s.reg.place(tok.ID, model.Position{Word: wordIndex, Cell: startCell})}
	ch.CompletedWord = s.checkWord(wordIndex)
	ch.LevelCompleted = s.checkLevel()
	return ch, nil
}

func (s *Session) checkPlace(clusterID, wordIndex, startCell int) (model.ClusterToken, error) {
	tok, ok := s.reg.Get(clusterID)
	if !ok {
		return tok, fmt.Errorf("%w: %d", ErrUnknownCluster, clusterID)
	}
	if tok.Placed {
		return tok, fmt.Errorf("%w: %d", ErrAlreadyPlaced, clusterID)
	}
	if wordIndex < 0 || wordIndex >= s.level.WordCount() {
		return tok, fmt.Errorf("%w: %d not in [0,%d)", ErrWordOutOfRange, wordIndex, s.level.WordCount())
	}
	if startCell < 0 || startCell+tok.Len() > s.level.Width() {
		return tok, fmt.Errorf("%w: [%d,%d) in row of %d", ErrCellOutOfRange, startCell, startCell+tok.Len(), s.level.Width())
	}
	for _, other := range s.reg.InWord(wordIndex) {
		if tok.Overlaps(startCell, other) {
			return tok, fmt.Errorf("%w: [%d,%d) overlaps cluster %d", ErrCellsOccupied, startCell, startCell+tok.Len(), other.ID)
		}
	}
	return tok, nil
}

// Remove takes a placed token off the field. Words already recorded as
// completed stay recorded, and a completed session stays completed.
func (s *Session) Remove(clusterID int) (Change, error) {
	tok, ok := s.reg.Get(clusterID)
	if !ok {
		err := fmt.Errorf("%w: %d", ErrUnknownCluster, clusterID)
		s.logger.Debug("remove rejected", "cluster", clusterID, "err", err)
		return Change{}, err
	}
	if !tok.Placed {
		err := fmt.Errorf("%w: %d", ErrNotPlaced, clusterID)
		s.logger.Debug("remove rejected", "cluster", clusterID, "err", err)
		return Change{}, err
	}
	return Change{Token: s.reg.unplace(clusterID)}, nil
}

// checkWord records the row's target word if the placed tokens, read left
// to right, spell it and it has not been recorded before.
func (s *Session) checkWord(wordIndex int) string {
	var b strings.Builder
	for _, t := range s.reg.InWord(wordIndex) {
		b.WriteString(t.Text)
	}
	target := s.level.TargetWords[wordIndex].Word
	if b.String() != target || s.hasCompleted(target) {
		return ""
	}
	s.completed = append(s.completed, target)
	s.logger.Debug("word completed", "word", target, "row", wordIndex)
	return target
}

func (s *Session) hasCompleted(word string) bool {
	for _, w := range s.completed {
		if w == word {
			return true
		}
	}
	return false
}

// checkLevel moves the session to Completed once every token is placed and
// every target word has been completed. Both are required: a pool may carry
// more tokens than the words strictly need.
func (s *Session) checkLevel() bool {
	if s.state == Completed {
		return false
	}
	if !s.reg.AllPlaced() || len(s.completed) != s.level.WordCount() {
		return false
	}
	s.state = Completed
	s.completedAt = s.clock.Now()
	s.logger.Info("level completed", "words", s.completed, "elapsed", s.completedAt.Sub(s.startedAt))
	return true
}

// ID returns the session identifier.
func (s *Session) ID() uuid.UUID { return s.id }

// Level returns a copy of the level being played.
func (s *Session) Level() model.LevelSpec {
	return *level.Clone(&s.level)
}

// State returns the lifecycle state.
func (s *Session) State() State { return s.state }

// IsCompleted reports whether the level has been completed. Once true it
// never becomes false for this session.
func (s *Session) IsCompleted() bool { return s.state == Completed }

// CompletedWords returns the completed target words in completion order.
func (s *Session) CompletedWords() []string {
	return append([]string(nil), s.completed...)
}

// StartedAt returns when the session began.
func (s *Session) StartedAt() time.Time { return s.startedAt }

// CompletionTime returns how long the level took. ok is false while the
// session is still active.
func (s *Session) CompletionTime() (d time.Duration, ok bool) {
	if s.state != Completed {
		return 0, false
	}
	return s.completedAt.Sub(s.startedAt), true
}

// Elapsed returns the completion time for completed sessions and the time
// since start otherwise.
func (s *Session) Elapsed() time.Duration {
	if d, ok := s.CompletionTime(); ok {
		return d
	}
	return s.clock.Now().Sub(s.startedAt)
}

// Token returns a token by id.
func (s *Session) Token(id int) (model.ClusterToken, bool) { return s.reg.Get(id) }

// Tokens returns every token ordered by id.
func (s *Session) Tokens() []model.ClusterToken { return s.reg.All() }

// Available returns the tokens not yet on the field.
func (s *Session) Available() []model.ClusterToken { return s.reg.Available() }

// Placed returns the tokens on the field in placement order.
func (s *Session) Placed() []model.ClusterToken { return s.reg.Placed() }

// FindByText returns the tokens whose text is text. Convenience lookup only.
func (s *Session) FindByText(text string) []model.ClusterToken { return s.reg.FindByText(text) }

// Empty marks an unoccupied cell in a FieldSnapshot.
const Empty rune = 0

// FieldSnapshot returns the letter grid, one row per target word. Unoccupied
// cells hold Empty.
func (s *Session) FieldSnapshot() [][]rune {
	grid := make([][]rune, s.level.WordCount())
	for i := range grid {
		grid[i] = make([]rune, s.level.Width())
	}
	for _, t := range s.reg.Placed() {
		cell := t.Pos.Cell
		for _, r := range t.Text {
			grid[t.Pos.Word][cell] = r
			cell++
		}
	}
	return grid
}
