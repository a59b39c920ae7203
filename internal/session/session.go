// Package session routes audio files to the selected transcription provider
// and reports progress and results on a single update channel.
package session

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/chaz8081/gostt-scribe/internal/history"
	"github.com/chaz8081/gostt-scribe/internal/transcribe"
	"github.com/chaz8081/gostt-scribe/internal/watch"
)

// ErrUnsupportedFile is returned by Submit for paths without an accepted
// audio extension.
var ErrUnsupportedFile = errors.New("session: unsupported file type")

// CredentialMissingError is returned by Submit when the selected provider
// has no API key. No request is started.
type CredentialMissingError struct {
	Provider string
}

func (e *CredentialMissingError) Error() string {
	return fmt.Sprintf("session: API key for %s missing", e.Provider)
}

func (e *CredentialMissingError) Unwrap() error { return transcribe.ErrCredentialMissing }

// Source says where a file came from.
type Source string

const (
	SourceWatch     Source = "watch"
	SourceDrop      Source = "drop"
	SourceManual    Source = "manual"
	SourceRecording Source = "recording"
)

// Request is one accepted transcription job.
type Request struct {
	ID          string
	Path        string
	Provider    string
	Source      Source
	RequestedAt time.Time
}

// Result pairs a provider result with the request that produced it.
type Result struct {
	transcribe.Result
	RequestID string
	Source    Source
}

// Level is the severity of a status message.
type Level int

const (
	LevelInfo Level = iota
	LevelWarn
	LevelError
)

// Status is a short human-readable progress message.
type Status struct {
	Text  string
	Level Level
}

// Update is posted on the updates channel. Exactly one of Status and
// Result is set.
type Update struct {
	Status *Status
	Result *Result
}

// HistorySink stores finished results.
type HistorySink interface {
	Save(ctx context.Context, e history.Entry) (int64, error)
}

// Option configures an Orchestrator.
type Option func(*Orchestrator)

// WithHistory stores every result in h.
func WithHistory(h HistorySink) Option {
	return func(o *Orchestrator) { o.history = h }
}

// WithContext sets the context passed to providers. Cancelling it aborts
// in-flight requests.
func WithContext(ctx context.Context) Option {
	return func(o *Orchestrator) { o.ctx = ctx }
}

// WithBuffer sets the capacity of the updates channel.
func WithBuffer(n int) Option {
	return func(o *Orchestrator) { o.updates = make(chan Update, n) }
}

// WithProvider selects the initial provider.
func WithProvider(name string) Option {
	return func(o *Orchestrator) { o.selected = name }
}

// Orchestrator accepts files, starts one transcription per file and posts
// status and results for a single consumer.
type Orchestrator struct {
	registry *transcribe.Registry
	log      zerolog.Logger
	ctx      context.Context
	history  HistorySink
	updates  chan Update
	newID    func() string
	now      func() time.Time

	mu       sync.Mutex
	selected string

	inflight sync.WaitGroup
}

// New creates an Orchestrator. The first registry name is selected unless
// WithProvider says otherwise.
func New(registry *transcribe.Registry, log zerolog.Logger, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		registry: registry,
		log:      log.With().Str("component", "session").Logger(),
		ctx:      context.Background(),
		updates:  make(chan Update, 64),
		newID:    func() string { return uuid.NewString() },
		now:      time.Now,
	}
	if names := registry.Names(); len(names) > 0 {
		o.selected = names[0]
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// Updates returns the channel of status messages and results.
func (o *Orchestrator) Updates() <-chan Update {
	return o.updates
}

// Selected returns the active provider name.
func (o *Orchestrator) Selected() string {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.selected
}

// Select makes name the active provider. Providers without a credential
// can be selected; Submit rejects them.
func (o *Orchestrator) Select(name string) error {
	for _, n := range o.registry.Names() {
		if n == name {
			o.mu.Lock()
			o.selected = name
			o.mu.Unlock()
			o.log.Info().Str("provider", name).Msg("provider selected")
			return nil
		}
	}
	return fmt.Errorf("%w: %q", transcribe.ErrUnknownProvider, name)
}

// Cycle selects the next provider in display order and returns it.
func (o *Orchestrator) Cycle() string {
	names := o.registry.Names()
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(names) == 0 {
		return o.selected
	}
	next := names[0]
	for i, n := range names {
		if n == o.selected {
			next = names[(i+1)%len(names)]
			break
		}
	}
	o.selected = next
	return next
}

// Submit validates path and starts transcribing it with the selected
// provider. Unsupported files and missing credentials are rejected
// synchronously with a status update and no request is started.
func (o *Orchestrator) Submit(path string, source Source) (Request, error) {
	path = CleanPath(path)
	name := filepath.Base(path)

	if path == "" || !watch.Supported(path) {
		o.status(LevelWarn, "Unsupported file: %s", name)
		return Request{}, fmt.Errorf("%w: %s", ErrUnsupportedFile, path)
	}

	providerName := o.Selected()
	provider, err := o.registry.Lookup(providerName)
	if err != nil {
		if errors.Is(err, transcribe.ErrCredentialMissing) {
			o.status(LevelError, "ERROR: API key for %s missing!", providerName)
			return Request{}, &CredentialMissingError{Provider: providerName}
		}
		o.status(LevelError, "ERROR: %v", err)
		return Request{}, err
	}

	req := Request{
		ID:          o.newID(),
		Path:        path,
		Provider:    providerName,
		Source:      source,
		RequestedAt: o.now(),
	}
	o.log.Info().
		Str("request_id", req.ID).
		Str("file", path).
		Str("provider", providerName).
		Str("source", string(source)).
		Msg("transcription requested")
	o.status(LevelInfo, "Processing %s with %s...", name, providerName)

	o.inflight.Add(1)
	go o.run(req, provider)
	return req, nil
}

// Wait blocks until every started request has posted its result.
func (o *Orchestrator) Wait() {
	o.inflight.Wait()
}

func (o *Orchestrator) run(req Request, p transcribe.Provider) {
	defer o.inflight.Done()

	res := Result{
		Result:    p.Transcribe(o.ctx, req.Path),
		RequestID: req.ID,
		Source:    req.Source,
	}
	// attribution comes from the request, not from whatever the provider set
	res.File = req.Path
	res.Provider = req.Provider

	log := o.log.With().Str("request_id", req.ID).Str("file", req.Path).Str("provider", req.Provider).Logger()
	if res.Failed() {
		log.Error().Str("kind", string(res.Err.Kind)).Str("error", res.Err.Message).Msg("transcription failed")
	} else {
		log.Info().Dur("took", res.FinishedAt.Sub(res.StartedAt)).Msg("transcription complete")
	}

	if o.history != nil {
		_, err := o.history.Save(o.ctx, history.Entry{
			RequestID: req.ID,
			File:      req.Path,
			Provider:  req.Provider,
			Source:    string(req.Source),
			Text:      res.Text(),
			Failed:    res.Failed(),
		})
		if err != nil {
			log.Warn().Err(err).Msg("saving history failed")
		}
	}

	o.updates <- Update{Result: &res}

	name := filepath.Base(req.Path)
	if res.Failed() {
		o.status(LevelError, "Failed: %s (%s)", name, req.Provider)
	} else {
		o.status(LevelInfo, "Completed: %s", name)
	}
}

// status posts a status update without blocking. Submit is called from
// the consumer itself, so a full channel must not stall it.
func (o *Orchestrator) status(level Level, format string, args ...any) {
	st := &Status{Text: fmt.Sprintf(format, args...), Level: level}
	select {
	case o.updates <- Update{Status: st}:
	default:
		o.log.Warn().Str("status", st.Text).Msg("status update dropped")
	}
}

// CleanPath normalizes a path typed, pasted or dropped into the UI:
// surrounding whitespace, quotes and braces are removed and file:// URLs
// are converted to plain paths.
func CleanPath(raw string) string {
	p := strings.TrimSpace(raw)
	for {
		trimmed := p
		for _, pair := range [][2]string{{"{", "}"}, {`"`, `"`}, {"'", "'"}} {
			if len(trimmed) >= 2 && strings.HasPrefix(trimmed, pair[0]) && strings.HasSuffix(trimmed, pair[1]) {
				trimmed = strings.TrimSpace(trimmed[1 : len(trimmed)-1])
			}
		}
		if trimmed == p {
			break
		}
		p = trimmed
	}

	if strings.HasPrefix(p, "file://") {
		if u, err := url.Parse(p); err == nil && u.Path != "" {
			p = u.Path
		}
	}
	if p == "" {
		return ""
	}
	return filepath.Clean(p)
}
