package level

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/daviddao/wordweave/pkg/model"
)

// filePattern matches level documents inside the levels directory.
const filePattern = "level_*.{yaml,yml,json}"

var extensions = []string{".yaml", ".yml", ".json"}

// Loader reads level documents from a directory and caches the valid ones.
// Safe for concurrent use.
type Loader struct {
	dir    string
	logger *slog.Logger

	mu    sync.Mutex
	cache map[int]*model.LevelSpec
}

// NewLoader returns a Loader rooted at dir. A nil logger discards output.
func NewLoader(dir string, logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{
		dir:    dir,
		logger: logger.With("component", "levels"),
		cache:  make(map[int]*model.LevelSpec),
	}
}

// Dir returns the directory the loader reads from.
func (l *Loader) Dir() string { return l.dir }

// Load returns the validated level with the given id. Missing, unparseable
// and invalid documents all yield an error wrapping ErrNotFound; the reason
// is logged and included in the error text.
// The returned level is a copy the caller may keep.
func (l *Loader) Load(id int) (*model.LevelSpec, error) {
	if id <= 0 {
		return nil, fmt.Errorf("%w: id %d", ErrNotFound, id)
	}

	l.mu.Lock()
	cached, ok := l.cache[id]
	l.mu.Unlock()
	if ok {
		return Clone(cached), nil
	}

	path, data, err := l.read(id)
	if err != nil {
		return nil, err
	}
	spec, err := l.decode(id, data)
	if err != nil {
		l.logger.Warn("discarding level", "id", id, "path", path, "err", err)
		return nil, fmt.Errorf("%w: level %d: %v", ErrNotFound, id, err)
	}

	l.mu.Lock()
	l.cache[id] = spec
	l.mu.Unlock()
	return Clone(spec), nil
}

func (l *Loader) read(id int) (string, []byte, error) {
	for _, ext := range extensions {
		path := filepath.Join(l.dir, fileName(id, ext))
		data, err := os.ReadFile(path)
		if err == nil {
			return path, data, nil
		}
		if !errors.Is(err, fs.ErrNotExist) {
			return path, nil, fmt.Errorf("%w: level %d: %v", ErrNotFound, id, err)
		}
	}
	return "", nil, fmt.Errorf("%w: level %d", ErrNotFound, id)
}

func (l *Loader) decode(id int, data []byte) (*model.LevelSpec, error) {
	spec, err := Parse(data)
	if err != nil {
		return nil, err
	}
	if spec.LevelID != id {
		return nil, fmt.Errorf("document declares levelId %d", spec.LevelID)
	}
	if err := Check(spec); err != nil {
		return nil, err
	}
	return spec, nil
}

// Entry describes one level document found by List.
// Err is nil when the level loads and validates.
type Entry struct {
	ID   int    `json:"id"`
	Path string `json:"path"`
	Err  error  `json:"-"`
}

// List scans the directory for level documents, sorted by id, and reports
// whether each one is usable. A missing directory yields an empty list.
func (l *Loader) List() ([]Entry, error) {
	ents, err := os.ReadDir(l.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, err
	}

	var out []Entry
	seen := make(map[int]bool)
	for _, e := range ents {
		if e.IsDir() {
			continue
		}
		id, ok := idFromName(e.Name())
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		_, loadErr := l.Load(id)
		out = append(out, Entry{ID: id, Path: filepath.Join(l.dir, e.Name()), Err: loadErr})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Invalidate drops the cached copy of the level stored at path, if any.
// Returns the level id and whether path names a level document.
func (l *Loader) Invalidate(path string) (int, bool) {
	id, ok := idFromName(filepath.Base(path))
	if !ok {
		return 0, false
	}
	l.mu.Lock()
	delete(l.cache, id)
	l.mu.Unlock()
	return id, true
}

func fileName(id int, ext string) string {
	return "level_" + strconv.Itoa(id) + ext
}

// idFromName extracts the id from "level_<id>.<ext>".
func idFromName(name string) (int, bool) {
	if ok, _ := doublestar.Match(filePattern, name); !ok {
		return 0, false
	}
	base := strings.TrimPrefix(name, "level_")
	base = strings.TrimSuffix(base, filepath.Ext(base))
	id, err := strconv.Atoi(base)
	if err != nil || id <= 0 || strconv.Itoa(id) != base {
		return 0, false
	}
	return id, true
}

// Clone returns a deep copy of l.
func Clone(l *model.LevelSpec) *model.LevelSpec {
	out := *l
	out.TargetWords = make([]model.WordSpec, len(l.TargetWords))
	for i, w := range l.TargetWords {
		out.TargetWords[i] = model.WordSpec{Word: w.Word, Clusters: append([]string(nil), w.Clusters...)}
	}
	out.AvailableClusters = append([]string(nil), l.AvailableClusters...)
	return &out
}
