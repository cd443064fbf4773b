package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/daviddao/wordweave/pkg/clock"
	"github.com/daviddao/wordweave/pkg/config"
	"github.com/daviddao/wordweave/pkg/level"
	"github.com/daviddao/wordweave/pkg/model"
	"github.com/daviddao/wordweave/pkg/progress"
	"github.com/daviddao/wordweave/pkg/session"
	"github.com/daviddao/wordweave/pkg/store"
)

const testLevel1 = `levelId: 1
targetWords:
  - word: TEST
    clusters: [TE, ST]
availableClusters: [TE, ST]
`

const testLevel2 = `levelId: 2
targetWords:
  - word: PLANET
    clusters: [PLA, NET]
  - word: GARDEN
    clusters: [GAR, DEN]
availableClusters: [DEN, PLA, NET, GAR]
`

// --- parseMove tests ---

func TestParseMove(t *testing.T) {
	tests := []struct {
		line    string
		want    move
		wantErr bool
	}{
		{"place 0 1 2", move{ref: "0", word: 1, cell: 2}, false},
		{"p TE 0 0", move{ref: "TE", word: 0, cell: 0}, false},
		{"PLACE  ST  0  2", move{ref: "ST", word: 0, cell: 2}, false},
		{"remove 3", move{remove: true, ref: "3"}, false},
		{"r NET", move{remove: true, ref: "NET"}, false},
		{"", move{}, true},
		{"place TE 0", move{}, true},
		{"place TE x 0", move{}, true},
		{"place TE 0 y", move{}, true},
		{"remove", move{}, true},
		{"swap 1 2", move{}, true},
	}
	for _, tt := range tests {
		t.Run(tt.line, func(t *testing.T) {
			got, err := parseMove(tt.line)
			if (err != nil) != tt.wantErr {
				t.Fatalf("parseMove(%q) err = %v, wantErr %v", tt.line, err, tt.wantErr)
			}
			if !tt.wantErr && got != tt.want {
				t.Fatalf("parseMove(%q) = %+v, want %+v", tt.line, got, tt.want)
			}
		})
	}
}

// --- runMoves tests ---

func newTestSession(t *testing.T, doc string) *session.Session {
	t.Helper()
	l, err := level.Parse([]byte(doc))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	s, err := session.New(l)
	if err != nil {
		t.Fatalf("session.New: %v", err)
	}
	return s
}

func TestRunMoves_ByText(t *testing.T) {
	s := newTestSession(t, testLevel2)
	script := `# rows: PLANET, GARDEN
place PLA 0 0
place NET 0 3

place GAR 1 0
remove GAR
place GAR 1 0
place DEN 1 3
`
	results, err := runMoves(s, strings.NewReader(script))
	if err != nil {
		t.Fatalf("runMoves: %v", err)
	}
	if len(results) != 6 {
		t.Fatalf("got %d results, want 6", len(results))
	}
	for _, r := range results {
		if !r.OK {
			t.Fatalf("line %d %q rejected: %s", r.Line, r.Move, r.Error)
		}
	}
	if results[0].Line != 2 {
		t.Fatalf("first move reported on line %d, want 2", results[0].Line)
	}
	if !s.IsCompleted() {
		t.Fatal("session should be completed")
	}
	if got := strings.Join(s.CompletedWords(), ","); got != "PLANET,GARDEN" {
		t.Fatalf("completed words = %s", got)
	}
	if !results[5].Change.LevelCompleted {
		t.Fatal("last move should report level completion")
	}
}

func TestRunMoves_RejectionsAreReported(t *testing.T) {
	s := newTestSession(t, testLevel1)
	script := "place TE 0 0\nplace ST 0 1\nremove ST\njump\nplace 9 0 0\n"
	results, err := runMoves(s, strings.NewReader(script))
	if err != nil {
		t.Fatalf("runMoves: %v", err)
	}
	if len(results) != 5 {
		t.Fatalf("got %d results, want 5", len(results))
	}
	if !results[0].OK {
		t.Fatalf("first move rejected: %s", results[0].Error)
	}
	for _, r := range results[1:] {
		if r.OK {
			t.Fatalf("line %d %q should be rejected", r.Line, r.Move)
		}
	}
	if !strings.Contains(results[1].Error, "occupied") {
		t.Fatalf("overlap error = %q", results[1].Error)
	}
	if len(s.Placed()) != 1 {
		t.Fatalf("rejected moves changed the field: %d placed", len(s.Placed()))
	}
}

func TestResolve_PrefersMatchingPlacement(t *testing.T) {
	s := newTestSession(t, `levelId: 1
targetWords:
  - word: TETE
    clusters: [TE, TE]
availableClusters: [TE, TE]
`)
	if _, err := s.Place(0, 0, 0); err != nil {
		t.Fatal(err)
	}
	id, err := resolve(s, move{ref: "TE"})
	if err != nil || id != 1 {
		t.Fatalf("resolve place TE = %d, %v; want 1", id, err)
	}
	id, err = resolve(s, move{remove: true, ref: "TE"})
	if err != nil || id != 0 {
		t.Fatalf("resolve remove TE = %d, %v; want 0", id, err)
	}
	if _, err := resolve(s, move{ref: "XY"}); !errors.Is(err, session.ErrUnknownCluster) {
		t.Fatalf("resolve unknown text: %v", err)
	}
}

// --- rendering helpers ---

func TestRenderGrid(t *testing.T) {
	grid := [][]rune{
		{'T', 'E', session.Empty, session.Empty},
		{session.Empty, session.Empty, session.Empty, session.Empty},
	}
	got := renderGrid(grid)
	if len(got) != 2 || got[0] != "TE.." || got[1] != "...." {
		t.Fatalf("renderGrid = %q", got)
	}
}

func TestSplitWords(t *testing.T) {
	got := splitWords(" TEST, ,PLANET,")
	if len(got) != 2 || got[0] != "TEST" || got[1] != "PLANET" {
		t.Fatalf("splitWords = %q", got)
	}
	if splitWords("") != nil {
		t.Fatal("splitWords(\"\") should be nil")
	}
}

func TestLevelMarker(t *testing.T) {
	if m := levelMarker(levelInfo{Valid: false}); m != "[!]" {
		t.Fatalf("invalid marker = %q", m)
	}
	if m := levelMarker(levelInfo{Valid: true, Completed: true}); m != "[x]" {
		t.Fatalf("completed marker = %q", m)
	}
	if m := levelMarker(levelInfo{Valid: true}); m != "[ ]" {
		t.Fatalf("open marker = %q", m)
	}
}

func TestToWatchEvent(t *testing.T) {
	ev := toWatchEvent(level.Change{ID: 3, Path: "levels/level_3.yaml", Op: "WRITE", Err: level.ErrNotFound})
	if ev.Valid || ev.Error == "" || ev.ID != 3 {
		t.Fatalf("toWatchEvent = %+v", ev)
	}
}

// --- command integration tests ---

func newTestApp(t *testing.T, backend string) *app {
	t.Helper()
	dir := t.TempDir()
	levels := filepath.Join(dir, "levels")
	if err := os.Mkdir(levels, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, filepath.Join(levels, "level_1.yaml"), testLevel1)
	writeFile(t, filepath.Join(levels, "level_2.yaml"), testLevel2)
	writeFile(t, filepath.Join(levels, "level_3.yaml"), "levelId: 3\n")

	path := filepath.Join(dir, "data", "progress.db")
	if backend == "badger" {
		path = filepath.Join(dir, "badger")
	}
	cfg := &config.Config{
		Storage: config.StorageConfig{Backend: backend, Path: path},
		Levels:  config.LevelsConfig{Dir: levels},
		Log:     config.LogConfig{Level: "error", Format: "text"},
	}
	a, err := openApp(cfg, slog.New(slog.DiscardHandler), clock.NewManual(time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)))
	if err != nil {
		t.Fatalf("openApp: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func writeFile(t *testing.T, path, body string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
}

func writeMoves(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "moves.txt")
	writeFile(t, path, body)
	return path
}

func TestPlay_CompletesAndSaves(t *testing.T) {
	for _, backend := range []string{"sqlite", "badger"} {
		t.Run(backend, func(t *testing.T) {
			a := newTestApp(t, backend)
			moves := writeMoves(t, "place TE 0 0\nplace ST 0 2\n")

			var code int
			out := captureStdout(t, func() { code = a.cmdPlay([]string{"--moves", moves, "1"}) })
			if code != 0 {
				t.Fatalf("play exit %d, output %q", code, out)
			}
			if !strings.Contains(out, "LEVEL 1 COMPLETE") || !strings.Contains(out, "TEST") {
				t.Fatalf("play output missing completion: %q", out)
			}

			p := a.progress.Load(context.Background())
			if !progress.IsLevelCompleted(p, 1) {
				t.Fatal("level 1 not recorded")
			}
			if got := p.CompletedLevels[1].CompletedWords; len(got) != 1 || got[0] != "TEST" {
				t.Fatalf("recorded words = %v", got)
			}
		})
	}
}

func TestPlay_NoSave(t *testing.T) {
	a := newTestApp(t, "sqlite")
	moves := writeMoves(t, "place 0 0 0\nplace 1 0 2\n")
	captureStdout(t, func() {
		if code := a.cmdPlay([]string{"--moves", moves, "--no-save", "1"}); code != 0 {
			t.Errorf("play exit %d", code)
		}
	})
	if n := progress.CompletedCount(a.progress.Load(context.Background())); n != 0 {
		t.Fatalf("--no-save recorded %d completion(s)", n)
	}
}

func TestPlay_RejectedMoveExit2(t *testing.T) {
	a := newTestApp(t, "sqlite")
	moves := writeMoves(t, "place TE 0 0\nplace ST 0 1\n")
	var code int
	out := captureStdout(t, func() { code = a.cmdPlay([]string{"--moves", moves, "1"}) })
	if code != 2 {
		t.Fatalf("play exit %d, want 2", code)
	}
	if !strings.Contains(out, "rejected") || !strings.Contains(out, "TE....") {
		t.Fatalf("play output = %q", out)
	}
}

func TestPlay_JSON(t *testing.T) {
	a := newTestApp(t, "sqlite")
	moves := writeMoves(t, "place PLA 0 0\nplace NET 0 3\n")
	out := captureStdout(t, func() { a.cmdPlay([]string{"--moves", moves, "--json", "2"}) })

	var got struct {
		Level          int      `json:"level"`
		Completed      bool     `json:"completed"`
		CompletedWords []string `json:"completed_words"`
		Grid           []string `json:"grid"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if got.Level != 2 || got.Completed || len(got.CompletedWords) != 1 || got.CompletedWords[0] != "PLANET" {
		t.Fatalf("play JSON = %+v", got)
	}
	if len(got.Grid) != 2 || got.Grid[0] != "PLANET" || got.Grid[1] != "......" {
		t.Fatalf("grid = %q", got.Grid)
	}
}

func TestPlay_LevelNotFound(t *testing.T) {
	a := newTestApp(t, "sqlite")
	for _, id := range []string{"3", "42"} {
		stderr := captureStderr(t, func() {
			if code := a.cmdPlay([]string{id}); code != 2 {
				t.Errorf("play %s: exit %d, want 2", id, code)
			}
		})
		if !strings.Contains(stderr, "not found") {
			t.Errorf("play %s stderr = %q", id, stderr)
		}
	}
	captureStderr(t, func() {
		if code := a.cmdPlay([]string{"abc"}); code != 1 {
			t.Errorf("play abc: exit %d, want 1", code)
		}
	})
}

func TestComplete(t *testing.T) {
	a := newTestApp(t, "sqlite")
	out := captureStdout(t, func() {
		if code := a.cmdComplete([]string{"--words", "A,B", "--seconds", "42", "3"}); code != 0 {
			t.Errorf("complete exit %d", code)
		}
		if code := a.cmdComplete([]string{"--words", "A,B,C", "--seconds", "50", "3"}); code != 0 {
			t.Errorf("complete exit %d", code)
		}
	})
	if !strings.Contains(out, "level 3 completed (1 total") {
		t.Fatalf("complete output = %q", out)
	}

	p := a.progress.Load(context.Background())
	if p.CompletedLevelsCount != 1 {
		t.Fatalf("count = %d, want 1", p.CompletedLevelsCount)
	}
	if got := strings.Join(p.CompletedLevels[3].CompletedWords, ""); got != "ABC" {
		t.Fatalf("words = %s", got)
	}
}

func TestComplete_Rejects(t *testing.T) {
	a := newTestApp(t, "sqlite")
	cases := [][]string{
		{"--words", "A", "0"},
		{"--words", "", "1"},
		{"--words", "A", "--seconds", "-1", "1"},
		{"--words", "A", "one"},
		{},
	}
	for _, args := range cases {
		captureStderr(t, func() {
			if code := a.cmdComplete(args); code != 1 {
				t.Errorf("complete %v: exit %d, want 1", args, code)
			}
		})
	}
	if n := progress.CompletedCount(a.progress.Load(context.Background())); n != 0 {
		t.Fatalf("rejected completions recorded %d level(s)", n)
	}
}

func TestProgressAndReset(t *testing.T) {
	a := newTestApp(t, "sqlite")
	captureStdout(t, func() {
		a.cmdComplete([]string{"--words", "TEST", "1"})
		a.cmdComplete([]string{"--words", "PLANET,GARDEN", "2"})
	})

	out := captureStdout(t, func() { a.cmdProgress([]string{"--json"}) })
	var sum progressSummary
	if err := json.Unmarshal([]byte(out), &sum); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if sum.Completed != 2 || sum.NextLevel != 3 {
		t.Fatalf("summary = %+v", sum)
	}
	// Two of the three documents are valid levels.
	if sum.TotalLevels != 2 || !sum.AllCompleted {
		t.Fatalf("total/all = %d/%v", sum.TotalLevels, sum.AllCompleted)
	}
	if sum.Cached[progress.KeyNextLevel] != float64(3) {
		t.Fatalf("cached mirrors = %v", sum.Cached)
	}

	out = captureStdout(t, func() {
		if code := a.cmdReset(nil); code != 0 {
			t.Errorf("reset exit %d", code)
		}
	})
	if !strings.Contains(out, "2 level(s) cleared") {
		t.Fatalf("reset output = %q", out)
	}
	p := a.progress.Load(context.Background())
	if p.CompletedLevelsCount != 0 || len(p.CompletedLevels) != 0 {
		t.Fatalf("after reset: %+v", p)
	}
	if n, err := a.progress.CachedCount(context.Background()); err != nil || n != 0 {
		t.Fatalf("cached count after reset = %d, %v", n, err)
	}
}

func TestLevelsCommand(t *testing.T) {
	a := newTestApp(t, "sqlite")
	captureStdout(t, func() { a.cmdComplete([]string{"--words", "TEST", "1"}) })

	out := captureStdout(t, func() { a.cmdLevels(nil) })
	if !strings.Contains(out, "[x] 1") || !strings.Contains(out, "[ ] 2") || !strings.Contains(out, "[!] 3") {
		t.Fatalf("levels output = %q", out)
	}

	out = captureStdout(t, func() { a.cmdLevels([]string{"--json"}) })
	var got struct {
		Levels []levelInfo `json:"levels"`
	}
	if err := json.Unmarshal([]byte(out), &got); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if len(got.Levels) != 3 || got.Levels[2].Valid || got.Levels[2].Error == "" {
		t.Fatalf("levels JSON = %+v", got.Levels)
	}
}

func TestShowCommand(t *testing.T) {
	a := newTestApp(t, "sqlite")

	out := captureStdout(t, func() { a.cmdShow([]string{"2"}) })
	if !strings.Contains(out, "2 words, 6 cells per row") || strings.Contains(out, "GARDEN") {
		t.Fatalf("show output = %q", out)
	}

	out = captureStdout(t, func() { a.cmdShow([]string{"--yaml", "2"}) })
	l, err := level.Parse([]byte(out))
	if err != nil {
		t.Fatalf("show --yaml is not a level document: %v\n%s", err, out)
	}
	if l.LevelID != 2 || l.TargetWords[1].Word != "GARDEN" {
		t.Fatalf("show --yaml = %+v", l)
	}

	out = captureStdout(t, func() { a.cmdShow([]string{"--json", "1"}) })
	var spec model.LevelSpec
	if err := json.Unmarshal([]byte(out), &spec); err != nil || spec.LevelID != 1 {
		t.Fatalf("show --json = %q (%v)", out, err)
	}
}

func TestParseArgs(t *testing.T) {
	tests := []struct {
		name  string
		args  []string
		pos   []string
		words string
		json  bool
	}{
		{"flags first", []string{"--words", "A,B", "--json", "3"}, []string{"3"}, "A,B", true},
		{"flags after id", []string{"3", "--words", "A,B", "--json"}, []string{"3"}, "A,B", true},
		{"flags around id", []string{"--json", "3", "--words", "A"}, []string{"3"}, "A", true},
		{"two positionals", []string{"3", "--words", "A", "4"}, []string{"3", "4"}, "A", false},
		{"double dash", []string{"--words", "A", "--", "--json"}, []string{"--json"}, "A", false},
		{"no args", nil, nil, "", false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fs := flag.NewFlagSet("test", flag.ContinueOnError)
			words := fs.String("words", "", "")
			jsonOut := fs.Bool("json", false, "")
			pos, err := parseArgs(fs, tt.args)
			if err != nil {
				t.Fatalf("parseArgs(%v): %v", tt.args, err)
			}
			if strings.Join(pos, " ") != strings.Join(tt.pos, " ") || len(pos) != len(tt.pos) {
				t.Fatalf("positionals = %q, want %q", pos, tt.pos)
			}
			if *words != tt.words || *jsonOut != tt.json {
				t.Fatalf("words=%q json=%v, want %q %v", *words, *jsonOut, tt.words, tt.json)
			}
		})
	}
}

func TestParseArgs_UnknownFlagAfterID(t *testing.T) {
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(io.Discard)
	if _, err := parseArgs(fs, []string{"1", "--bogus"}); err == nil {
		t.Fatal("unknown flag after the id was accepted")
	}
}

func TestComplete_FlagsAfterID(t *testing.T) {
	a := newTestApp(t, "sqlite")
	captureStdout(t, func() {
		if code := a.cmdComplete([]string{"3", "--words", "A,B", "--seconds", "42"}); code != 0 {
			t.Errorf("complete exit %d", code)
		}
	})
	p := a.progress.Load(context.Background())
	rec, ok := p.CompletedLevels[3]
	if !ok {
		t.Fatal("level 3 not recorded")
	}
	if strings.Join(rec.CompletedWords, ",") != "A,B" || rec.CompletionTimeSeconds != 42 {
		t.Fatalf("record = %+v", rec)
	}
}

func TestPlay_FlagsAfterID(t *testing.T) {
	a := newTestApp(t, "sqlite")
	moves := writeMoves(t, "place TE 0 0\nplace ST 0 2\n")

	var code int
	out := captureStdout(t, func() { code = a.cmdPlay([]string{"1", "--moves", moves, "--json"}) })
	if code != 0 {
		t.Fatalf("play exit %d, output %q", code, out)
	}
	var res struct {
		Completed bool `json:"completed"`
		Saved     bool `json:"saved"`
	}
	if err := json.Unmarshal([]byte(out), &res); err != nil {
		t.Fatalf("invalid JSON %q: %v", out, err)
	}
	if !res.Completed || !res.Saved {
		t.Fatalf("play result = %+v", res)
	}
	if !progress.IsLevelCompleted(a.progress.Load(context.Background()), 1) {
		t.Fatal("level 1 not recorded")
	}
}

func TestShow_FlagsAfterID(t *testing.T) {
	a := newTestApp(t, "sqlite")
	out := captureStdout(t, func() { a.cmdShow([]string{"2", "--yaml"}) })
	l, err := level.Parse([]byte(out))
	if err != nil {
		t.Fatalf("show 2 --yaml is not a level document: %v\n%s", err, out)
	}
	if l.LevelID != 2 {
		t.Fatalf("show 2 --yaml = %+v", l)
	}
}

func TestReset_Purge(t *testing.T) {
	a := newTestApp(t, "badger")
	ctx := context.Background()
	captureStdout(t, func() { a.cmdComplete([]string{"1", "--words", "TEST"}) })

	out := captureStdout(t, func() {
		if code := a.cmdReset([]string{"--purge"}); code != 0 {
			t.Errorf("reset --purge exit %d", code)
		}
	})
	if !strings.Contains(out, "progress purged (1 level(s) cleared)") {
		t.Fatalf("reset --purge output = %q", out)
	}
	for _, key := range []string{progress.KeyProgress, progress.KeyCompletedCount, progress.KeySaveVersion} {
		if _, err := a.kv.Get(ctx, key); !errors.Is(err, store.ErrNotFound) {
			t.Fatalf("%s after purge: err = %v, want ErrNotFound", key, err)
		}
	}
	if n := progress.CompletedCount(a.progress.Load(ctx)); n != 0 {
		t.Fatalf("after purge: %d completed", n)
	}
}

// unreadableKV fails every read and passes writes through.
type unreadableKV struct {
	store.KV
}

func (unreadableKV) Get(context.Context, string) ([]byte, error) {
	return nil, errors.New("disk I/O error")
}

func TestComplete_ReadFailureKeepsStoredProgress(t *testing.T) {
	a := newTestApp(t, "sqlite")
	ctx := context.Background()
	captureStdout(t, func() { a.cmdComplete([]string{"1", "--words", "TEST"}) })

	direct := a.progress
	a.progress = progress.NewStore(unreadableKV{a.kv})

	errOut := captureStderr(t, func() {
		if code := a.cmdComplete([]string{"2", "--words", "PLANET,GARDEN"}); code != 1 {
			t.Errorf("complete exit %d, want 1", code)
		}
		if code := a.cmdReset(nil); code != 1 {
			t.Errorf("reset exit %d, want 1", code)
		}
	})
	if !strings.Contains(errOut, "disk I/O error") {
		t.Fatalf("stderr = %q", errOut)
	}

	moves := writeMoves(t, "place TE 0 0\nplace ST 0 2\n")
	out := captureStdout(t, func() {
		captureStderr(t, func() { a.cmdPlay([]string{"1", "--moves", moves, "--json"}) })
	})
	if !strings.Contains(out, `"saved": false`) {
		t.Fatalf("play saved despite read failure: %q", out)
	}

	p := direct.Load(ctx)
	if p.CompletedLevelsCount != 1 || !progress.IsLevelCompleted(p, 1) {
		t.Fatalf("stored progress changed: %+v", p)
	}
}

// --- Helpers ---

func captureStdout(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stdout
	r, w, _ := os.Pipe()
	os.Stdout = w

	fn()

	w.Close()
	os.Stdout = old
	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}

func captureStderr(t *testing.T, fn func()) string {
	t.Helper()
	old := os.Stderr
	r, w, _ := os.Pipe()
	os.Stderr = w

	fn()

	w.Close()
	os.Stderr = old
	var buf bytes.Buffer
	io.Copy(&buf, r)
	return buf.String()
}
