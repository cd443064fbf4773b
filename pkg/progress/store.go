package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"sync"
	"time"

	"github.com/daviddao/wordweave/pkg/clock"
	"github.com/daviddao/wordweave/pkg/model"
	"github.com/daviddao/wordweave/pkg/store"
)

// Keys written to the KV. Everything except KeyProgress is a best-effort
// mirror refreshed on every save.
const (
	KeyProgress       = "player_progress"
	KeyCompletedCount = "completed_levels_count"
	KeyNextLevel      = "next_level"
	KeyLastSaveTime   = "last_save_time"
	KeySaveVersion    = "save_version"
)

// Store loads and saves progress documents through a store.KV.
//
// One mutex serializes every mutation and save, so a MarkLevelCompleted
// followed by Save (or a single Complete) is never interleaved with another
// save of an older snapshot.
type Store struct {
	kv     store.KV
	clock  clock.Clock
	logger *slog.Logger

	mu sync.Mutex
}

// Option configures a Store.
type Option func(*Store)

// WithClock sets the time source for save stamps and completion dates.
func WithClock(c clock.Clock) Option {
	return func(s *Store) { s.clock = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// NewStore returns a Store persisting through kv.
func NewStore(kv store.KV, opts ...Option) *Store {
	s := &Store{kv: kv, clock: clock.System{}}
	for _, o := range opts {
		o(s)
	}
	if s.logger == nil {
		s.logger = slog.New(slog.DiscardHandler)
	}
	s.logger = s.logger.With("component", "progress")
	return s
}

// Load returns the stored progress. It never fails: a missing, unreadable,
// unparseable, invalid or too-new document yields fresh progress. Callers
// that go on to save should use Read so a storage outage does not overwrite
// progress they never saw.
func (s *Store) Load(ctx context.Context) *model.PlayerProgress {
	p, err := s.Read(ctx)
	if err != nil {
		s.logger.Error("cannot read saved progress, using fresh progress", "err", err)
		return New(s.clock.Now())
	}
	return p
}

// Read is Load for callers that save afterwards. A missing or unusable
// document still yields fresh progress, but a failure of the storage
// backend itself is returned as an error.
func (s *Store) Read(ctx context.Context) (*model.PlayerProgress, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, err := s.load(ctx)
	switch {
	case err == nil:
		return p, nil
	case errors.Is(err, store.ErrNotFound):
		s.logger.Debug("no saved progress, starting fresh")
	case errors.Is(err, errBackend):
		return nil, err
	default:
		s.logger.Warn("discarding saved progress, starting fresh", "err", err)
	}
	return New(s.clock.Now()), nil
}

// errBackend marks a KV read failure as opposed to a bad document.
var errBackend = errors.New("progress backend read failed")

func (s *Store) load(ctx context.Context) (*model.PlayerProgress, error) {
	data, err := s.kv.Get(ctx, KeyProgress)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %w", errBackend, err)
	}
	p, err := Decode(data)
	if err != nil {
		return nil, err
	}
	if v, ok := s.storedVersion(ctx); ok {
		p.SaveVersion = v
	}
	if p.SaveVersion != CurrentSaveVersion {
		from := p.SaveVersion
		if err := Migrate(p); err != nil {
			return nil, err
		}
		s.logger.Info("migrated progress", "from", from, "to", p.SaveVersion)
	}
	if err := Validate(p); err != nil {
		return nil, err
	}
	return p, nil
}

// storedVersion reads the format-version key. ok is false when it is
// missing or unreadable, in which case the document's own tag is used.
func (s *Store) storedVersion(ctx context.Context) (int, bool) {
	raw, err := s.kv.Get(ctx, KeySaveVersion)
	if err != nil {
		return 0, false
	}
	v, err := strconv.Atoi(string(raw))
	if err != nil {
		s.logger.Warn("ignoring unreadable save version", "value", string(raw))
		return 0, false
	}
	return v, true
}

// Save stamps p and writes it, its mirrors and the format version in one
// batch. On failure nothing is written and p stays authoritative in memory.
func (s *Store) Save(ctx context.Context, p *model.PlayerProgress) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.save(ctx, p)
}

func (s *Store) save(ctx context.Context, p *model.PlayerProgress) error {
	if err := Validate(p); err != nil {
		return fmt.Errorf("save progress: %w", err)
	}
	p.LastSaveTime = s.clock.Now()
	p.SaveVersion = CurrentSaveVersion

	data, err := json.Marshal(p)
	if err != nil {
		return fmt.Errorf("encode progress: %w", err)
	}
	entries := map[string][]byte{
		KeyProgress:       data,
		KeyCompletedCount: []byte(strconv.Itoa(p.CompletedLevelsCount)),
		KeyNextLevel:      []byte(strconv.Itoa(NextLevel(p))),
		KeyLastSaveTime:   []byte(p.LastSaveTime.Format(time.RFC3339Nano)),
		KeySaveVersion:    []byte(strconv.Itoa(CurrentSaveVersion)),
	}
	if err := s.kv.PutBatch(ctx, entries); err != nil {
		s.logger.Warn("save failed", "err", err)
		return fmt.Errorf("save progress: %w", err)
	}
	s.logger.Debug("progress saved", "completed", p.CompletedLevelsCount)
	return nil
}

// MarkLevelCompleted records a completion in p without saving.
func (s *Store) MarkLevelCompleted(p *model.PlayerProgress, levelID int, words []string, seconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return MarkLevelCompleted(p, levelID, words, seconds, s.clock.Now())
}

// Complete records a completion and saves, holding the lock across both.
// A rejected record is not saved. A save failure keeps the record in p.
func (s *Store) Complete(ctx context.Context, p *model.PlayerProgress, levelID int, words []string, seconds float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := MarkLevelCompleted(p, levelID, words, seconds, s.clock.Now()); err != nil {
		return err
	}
	s.logger.Info("level completed", "level", levelID, "words", words, "seconds", seconds)
	return s.save(ctx, p)
}

// ResetProgress clears p. The caller decides whether to save.
func (s *Store) ResetProgress(p *model.PlayerProgress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	Reset(p, s.clock.Now())
}

// Purge deletes the progress document and every mirror from the KV. The
// next Load starts fresh.
func (s *Store) Purge(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.kv.Delete(ctx, KeyProgress, KeyCompletedCount, KeyNextLevel, KeyLastSaveTime, KeySaveVersion); err != nil {
		return fmt.Errorf("purge progress: %w", err)
	}
	s.logger.Info("progress purged")
	return nil
}

// CachedCount reads the completed-level count mirror.
func (s *Store) CachedCount(ctx context.Context) (int, error) {
	return s.cachedInt(ctx, KeyCompletedCount)
}

// CachedNextLevel reads the next-level mirror.
func (s *Store) CachedNextLevel(ctx context.Context) (int, error) {
	return s.cachedInt(ctx, KeyNextLevel)
}

// CachedLastSaveTime reads the last-save-time mirror.
func (s *Store) CachedLastSaveTime(ctx context.Context) (time.Time, error) {
	raw, err := s.kv.Get(ctx, KeyLastSaveTime)
	if err != nil {
		return time.Time{}, err
	}
	t, err := time.Parse(time.RFC3339Nano, string(raw))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse %s: %w", KeyLastSaveTime, err)
	}
	return t, nil
}

func (s *Store) cachedInt(ctx context.Context, key string) (int, error) {
	raw, err := s.kv.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	v, err := strconv.Atoi(string(raw))
	if err != nil {
		return 0, fmt.Errorf("parse %s: %w", key, err)
	}
	return v, nil
}
