package watch

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

func TestSupported(t *testing.T) {
	tests := []struct {
		path string
		want bool
	}{
		{"a.mp3", true},
		{"/x/y/b.WAV", true},
		{"c.m4a", true},
		{"d.Flac", true},
		{"e.ogg", true},
		{"f.txt", false},
		{"g.wav.part", false},
		{"noext", false},
		{".wav", true},
	}
	for _, tt := range tests {
		if got := Supported(tt.path); got != tt.want {
			t.Errorf("Supported(%q) = %v, want %v", tt.path, got, tt.want)
		}
	}
}

func TestClassify(t *testing.T) {
	now := time.Date(2025, 1, 31, 9, 0, 0, 0, time.UTC)
	tests := []struct {
		name       string
		op         fsnotify.Op
		lastRename time.Time
		want       Kind
		wantOK     bool
	}{
		{"create", fsnotify.Create, time.Time{}, KindCreated, true},
		{"create right after rename", fsnotify.Create, now.Add(-2 * time.Millisecond), KindMoved, true},
		{"create long after rename", fsnotify.Create, now.Add(-time.Second), KindCreated, true},
		{"write", fsnotify.Write, time.Time{}, 0, false},
		{"rename", fsnotify.Rename, time.Time{}, 0, false},
		{"remove", fsnotify.Remove, now, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := classify(fsnotify.Event{Name: "a.wav", Op: tt.op}, tt.lastRename, now)
			if ok != tt.wantOK || (ok && got != tt.want) {
				t.Errorf("classify() = %v, %v, want %v, %v", got, ok, tt.want, tt.wantOK)
			}
		})
	}
}

// collector records callback invocations.
type collector struct {
	mu     sync.Mutex
	events []Event
	ch     chan Event
}

func newCollector() *collector {
	return &collector{ch: make(chan Event, 16)}
}

func (c *collector) onFile(e Event) {
	c.mu.Lock()
	c.events = append(c.events, e)
	c.mu.Unlock()
	c.ch <- e
}

func (c *collector) next(t *testing.T) Event {
	t.Helper()
	select {
	case e := <-c.ch:
		return e
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for watch callback")
		return Event{}
	}
}

func (c *collector) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.events)
}

func startWatcher(t *testing.T, dir string, settle time.Duration) (*Watcher, *collector) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	w := New(dir, settle, zerolog.Nop())
	c := newCollector()
	if err := w.Start(ctx, c.onFile); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return w, c
}

func TestWatcherCreatesMissingDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "incoming")
	startWatcher(t, dir, time.Millisecond)

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		t.Fatalf("directory not created: %v", err)
	}
}

func TestWatcherSetupError(t *testing.T) {
	file := filepath.Join(t.TempDir(), "plain")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}

	w := New(filepath.Join(file, "sub"), time.Millisecond, zerolog.Nop())
	err := w.Start(context.Background(), func(Event) {
		t.Error("callback must not run when setup fails")
	})

	var setupErr *SetupError
	if !errors.As(err, &setupErr) {
		t.Fatalf("Start() error = %v, want *SetupError", err)
	}
	if setupErr.Dir != filepath.Join(file, "sub") {
		t.Errorf("Dir = %q", setupErr.Dir)
	}
}

func TestWatcherIgnoresUnsupportedFiles(t *testing.T) {
	dir := t.TempDir()
	w, c := startWatcher(t, dir, 10*time.Millisecond)

	for _, name := range []string{"notes.txt", "audio.wav.part"} {
		if err := os.WriteFile(filepath.Join(dir, name), []byte("x"), 0644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.Mkdir(filepath.Join(dir, "folder.wav"), 0755); err != nil {
		t.Fatal(err)
	}
	wavPath := filepath.Join(dir, "meeting.wav")
	if err := os.WriteFile(wavPath, []byte("RIFF"), 0644); err != nil {
		t.Fatal(err)
	}

	e := c.next(t)
	if e.Path != wavPath {
		t.Errorf("Path = %q, want %q", e.Path, wavPath)
	}
	if e.Kind != KindCreated {
		t.Errorf("Kind = %v, want created", e.Kind)
	}

	time.Sleep(100 * time.Millisecond)
	w.Wait()
	if n := c.count(); n != 1 {
		t.Errorf("callbacks = %d, want 1", n)
	}
}

func TestWatcherWaitsSettleDelay(t *testing.T) {
	dir := t.TempDir()
	settle := 150 * time.Millisecond
	_, c := startWatcher(t, dir, settle)

	created := time.Now()
	if err := os.WriteFile(filepath.Join(dir, "a.mp3"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	c.next(t)
	if elapsed := time.Since(created); elapsed < settle {
		t.Errorf("callback after %v, want at least %v", elapsed, settle)
	}
}

func TestWatcherDoesNotDebounce(t *testing.T) {
	dir := t.TempDir()
	w, c := startWatcher(t, dir, 10*time.Millisecond)

	path := filepath.Join(dir, "twice.ogg")
	if err := os.WriteFile(path, []byte("1"), 0644); err != nil {
		t.Fatal(err)
	}
	if err := os.Remove(path); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte("2"), 0644); err != nil {
		t.Fatal(err)
	}

	first, second := c.next(t), c.next(t)
	if first.Path != path || second.Path != path {
		t.Errorf("paths = %q, %q, want %q twice", first.Path, second.Path, path)
	}
	w.Wait()
}

func TestWatcherReportsMoveWithinDirectory(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("rename pairing is only deterministic with inotify")
	}
	dir := t.TempDir()
	tmp := filepath.Join(dir, "upload.tmp")
	if err := os.WriteFile(tmp, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	_, c := startWatcher(t, dir, time.Millisecond)

	dest := filepath.Join(dir, "upload.m4a")
	if err := os.Rename(tmp, dest); err != nil {
		t.Fatal(err)
	}

	e := c.next(t)
	if e.Path != dest || e.Kind != KindMoved {
		t.Errorf("event = %+v, want moved %s", e, dest)
	}
}

func TestWatcherNewFileAfterMoveOutIsCreated(t *testing.T) {
	if runtime.GOOS != "linux" {
		t.Skip("rename pairing is only deterministic with inotify")
	}
	dir := t.TempDir()
	outside := t.TempDir()
	notes := filepath.Join(dir, "a.txt")
	if err := os.WriteFile(notes, []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	_, c := startWatcher(t, dir, time.Millisecond)

	if err := os.Rename(notes, filepath.Join(outside, "a.txt")); err != nil {
		t.Fatal(err)
	}
	time.Sleep(4 * moveWindow)

	fresh := filepath.Join(dir, "fresh.wav")
	if err := os.WriteFile(fresh, []byte("RIFF"), 0644); err != nil {
		t.Fatal(err)
	}

	e := c.next(t)
	if e.Path != fresh || e.Kind != KindCreated {
		t.Errorf("event = %+v, want created %s", e, fresh)
	}
}

func TestWatcherDropsPendingOnCancel(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := newCollector()
	w := New(dir, time.Hour, zerolog.Nop())
	if err := w.Start(ctx, c.onFile); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "slow.wav"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	cancel()

	done := make(chan struct{})
	go func() {
		w.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Wait() did not return after cancel")
	}
	if n := c.count(); n != 0 {
		t.Errorf("callbacks = %d, want 0", n)
	}
}

func TestWatcherStopsOnCancel(t *testing.T) {
	dir := t.TempDir()
	ctx, cancel := context.WithCancel(context.Background())

	c := newCollector()
	w := New(dir, time.Millisecond, zerolog.Nop())
	if err := w.Start(ctx, c.onFile); err != nil {
		t.Fatal(err)
	}
	cancel()
	time.Sleep(50 * time.Millisecond)

	if err := os.WriteFile(filepath.Join(dir, "late.wav"), []byte("x"), 0644); err != nil {
		t.Fatal(err)
	}
	time.Sleep(100 * time.Millisecond)
	w.Wait()
	if n := c.count(); n != 0 {
		t.Errorf("callbacks after cancel = %d, want 0", n)
	}
}
