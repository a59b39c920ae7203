// Package watch reports audio files that appear in a directory.
//
// Each accepted file is handed to the callback after a settle delay so the
// writer has time to finish. Events are not debounced: a path reported
// twice is delivered twice.
package watch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/rs/zerolog"
)

// Extensions is the set of audio file extensions accepted for
// transcription, lower case with the leading dot.
var Extensions = []string{".mp3", ".wav", ".m4a", ".flac", ".ogg"}

// Supported reports whether path has an accepted audio extension,
// ignoring case.
func Supported(path string) bool {
	ext := strings.ToLower(filepath.Ext(path))
	for _, e := range Extensions {
		if ext == e {
			return true
		}
	}
	return false
}

// moveWindow is how soon after a Rename a Create must arrive to be treated
// as the other half of a move within the directory.
const moveWindow = 50 * time.Millisecond

// Kind says how a file arrived in the directory. KindMoved is a best guess
// from event pairing: a Create that closely follows a Rename.
type Kind int

const (
	KindCreated Kind = iota
	KindMoved
)

func (k Kind) String() string {
	if k == KindMoved {
		return "moved"
	}
	return "created"
}

// Event is delivered once per accepted file system notification.
type Event struct {
	Path string
	Kind Kind
}

// SetupError means the directory could not be created or watched.
type SetupError struct {
	Dir string
	Err error
}

func (e *SetupError) Error() string {
	return fmt.Sprintf("watch: setting up %s: %v", e.Dir, e.Err)
}

func (e *SetupError) Unwrap() error { return e.Err }

// Watcher watches a single directory, non-recursively.
type Watcher struct {
	dir    string
	settle time.Duration
	log    zerolog.Logger
	now    func() time.Time

	// pending tracks settle goroutines so Wait can drain them.
	pending sync.WaitGroup
}

// New creates a Watcher for dir. settle is the delay between the event
// and the callback.
func New(dir string, settle time.Duration, log zerolog.Logger) *Watcher {
	return &Watcher{
		dir:    dir,
		settle: settle,
		log:    log.With().Str("component", "watch").Str("dir", dir).Logger(),
		now:    time.Now,
	}
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string { return w.dir }

// Start creates the directory if needed and begins watching it. Setup
// failures are returned as *SetupError and nothing is started. Otherwise
// Start returns immediately; watching stops when ctx is cancelled.
func (w *Watcher) Start(ctx context.Context, onFile func(Event)) error {
	if err := os.MkdirAll(w.dir, 0755); err != nil {
		return &SetupError{Dir: w.dir, Err: err}
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return &SetupError{Dir: w.dir, Err: err}
	}
	if err := fw.Add(w.dir); err != nil {
		fw.Close()
		return &SetupError{Dir: w.dir, Err: err}
	}

	w.log.Info().Msg("watching directory")
	go w.loop(ctx, fw, onFile)
	return nil
}

// Wait blocks until every pending callback has run or been dropped because
// the watch context ended.
func (w *Watcher) Wait() {
	w.pending.Wait()
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher, onFile func(Event)) {
	defer fw.Close()

	// lastRename is when the old name of a rename was reported; a Create
	// right after it is the new name.
	var lastRename time.Time
	for {
		select {
		case <-ctx.Done():
			w.log.Info().Msg("watcher stopped")
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			now := w.now()
			kind, ok := classify(ev, lastRename, now)
			if ev.Has(fsnotify.Rename) {
				lastRename = now
			} else {
				lastRename = time.Time{}
			}
			if ok {
				w.handle(ctx, ev.Name, kind, onFile)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.log.Warn().Err(err).Msg("watch error")
		}
	}
}

// handle filters one notification and schedules the callback.
func (w *Watcher) handle(ctx context.Context, path string, kind Kind, onFile func(Event)) {
	if !Supported(path) {
		w.log.Debug().Str("file", path).Msg("ignoring unsupported file")
		return
	}
	if info, err := os.Stat(path); err == nil && info.IsDir() {
		return
	}

	w.log.Info().Str("file", path).Stringer("kind", kind).Msg("new file detected")
	w.pending.Add(1)
	go func(e Event) {
		defer w.pending.Done()
		timer := time.NewTimer(w.settle)
		defer timer.Stop()
		select {
		case <-timer.C:
			onFile(e)
		case <-ctx.Done():
			w.log.Debug().Str("file", e.Path).Msg("dropped pending file on shutdown")
		}
	}(Event{Path: path, Kind: kind})
}

// classify maps fsnotify operations to event kinds. fsnotify reports the
// destination of a move as a Create; Rename only names the old path. A
// Create counts as moved only when it arrives within moveWindow of the
// preceding Rename.
func classify(ev fsnotify.Event, lastRename, now time.Time) (Kind, bool) {
	if !ev.Has(fsnotify.Create) {
		return 0, false
	}
	if !lastRename.IsZero() && now.Sub(lastRename) <= moveWindow {
		return KindMoved, true
	}
	return KindCreated, true
}
