// Package transcribe sends recorded audio files to hosted speech-to-text
// services and normalizes their diarized output.
//
// Supported providers:
//   - AssemblyAI: upload, create transcript, poll until done
//   - Deepgram: single pre-recorded /v1/listen request
package transcribe

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/chaz8081/gostt-scribe/internal/config"
)

var (
	// ErrCredentialMissing is returned by Registry.Lookup for a known
	// provider that has no API key configured.
	ErrCredentialMissing = errors.New("transcribe: credential missing")
	// ErrUnknownProvider is returned by Registry.Lookup for names that are
	// not a supported provider.
	ErrUnknownProvider = errors.New("transcribe: unknown provider")
)

// ErrorKind classifies a provider failure.
type ErrorKind string

const (
	KindIO      ErrorKind = "io"
	KindNetwork ErrorKind = "network"
	KindAuth    ErrorKind = "auth"
	KindRemote  ErrorKind = "remote"
	KindDecode  ErrorKind = "decode"
)

// ProviderError describes why a transcription failed.
type ProviderError struct {
	Provider string
	Kind     ErrorKind
	Message  string
}

func (e *ProviderError) Error() string {
	return fmt.Sprintf("%s %s error: %s", e.Provider, e.Kind, e.Message)
}

// Provider transcribes one audio file. Transcribe never returns a Go error
// and never panics: failures are reported in Result.Err.
type Provider interface {
	Name() string
	Transcribe(ctx context.Context, path string) Result
}

// Result is the outcome of one transcription.
type Result struct {
	Provider string
	File     string
	// Lines holds one "Speaker <id>: <text>" entry per speaker turn.
	Lines []string
	// Raw is the undiarized transcript, used when Lines is empty.
	Raw        string
	Err        *ProviderError
	StartedAt  time.Time
	FinishedAt time.Time
}

// Text renders the result for display. It always yields something, even
// for failures.
func (r Result) Text() string {
	if r.Err != nil {
		return fmt.Sprintf("%s error: %s", r.Provider, r.Err.Message)
	}
	if len(r.Lines) > 0 {
		return strings.Join(r.Lines, "\n\n")
	}
	return r.Raw
}

// Failed reports whether the provider returned an error.
func (r Result) Failed() bool {
	return r.Err != nil
}

// Registry holds the providers that have credentials configured.
type Registry struct {
	providers map[string]Provider
	names     []string
}

// NewRegistry builds the providers from the config. Providers without an
// API key are only registered by name, so Lookup reports them as
// ErrCredentialMissing.
func NewRegistry(cfg *config.ProvidersConfig, log zerolog.Logger) *Registry {
	r := NewRegistryFrom()
	if cfg.AssemblyAI.APIKey != "" {
		r.Add(NewAssemblyAI(cfg.AssemblyAI, log))
	} else {
		r.Register(config.ProviderAssemblyAI)
	}
	if cfg.Deepgram.APIKey != "" {
		r.Add(NewDeepgram(cfg.Deepgram, log))
	} else {
		r.Register(config.ProviderDeepgram)
	}
	return r
}

// NewRegistryFrom builds a registry over explicit providers, all of which
// count as configured. Names are listed in argument order.
func NewRegistryFrom(providers ...Provider) *Registry {
	r := &Registry{providers: make(map[string]Provider)}
	for _, p := range providers {
		r.Add(p)
	}
	return r
}

// Add registers a configured provider under its name.
func (r *Registry) Add(p Provider) {
	r.Register(p.Name())
	r.providers[p.Name()] = p
}

// Register adds a provider name that has no credential, so Lookup reports
// ErrCredentialMissing for it instead of ErrUnknownProvider.
func (r *Registry) Register(name string) {
	for _, n := range r.names {
		if n == name {
			return
		}
	}
	r.names = append(r.names, name)
}

// Lookup returns the named provider.
func (r *Registry) Lookup(name string) (Provider, error) {
	if p, ok := r.providers[name]; ok {
		return p, nil
	}
	for _, n := range r.names {
		if n == name {
			return nil, fmt.Errorf("%w: %s", ErrCredentialMissing, name)
		}
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownProvider, name)
}

// Names lists every known provider in display order, configured or not.
func (r *Registry) Names() []string {
	out := make([]string, len(r.names))
	copy(out, r.names)
	return out
}

// Configured reports whether name has a credential.
func (r *Registry) Configured(name string) bool {
	_, ok := r.providers[name]
	return ok
}
