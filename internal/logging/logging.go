// Package logging sets up the diagnostics log and the plain-text transcript
// log. The terminal belongs to the UI, so both go to files.
package logging

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const (
	diagFileName       = "gostt-scribe.log"
	transcriptFileName = "transcripts.txt"
)

// Logs owns the open log files.
type Logs struct {
	Logger zerolog.Logger

	mu             sync.Mutex
	diagFile       *os.File
	transcriptFile *os.File
	pid            int
}

// Open creates dir if needed and opens both log files in append mode.
func Open(dir string, level zerolog.Level) (*Logs, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("logging: create log directory: %w", err)
	}

	diagFile, err := os.OpenFile(filepath.Join(dir, diagFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("logging: open diagnostics log: %w", err)
	}

	transcriptFile, err := os.OpenFile(filepath.Join(dir, transcriptFileName), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		diagFile.Close()
		return nil, fmt.Errorf("logging: open transcript log: %w", err)
	}

	pid := os.Getpid()
	return &Logs{
		Logger:         New(diagFile, level).With().Int("pid", pid).Logger(),
		diagFile:       diagFile,
		transcriptFile: transcriptFile,
		pid:            pid,
	}, nil
}

// New returns a console-formatted logger writing to w.
func New(w io.Writer, level zerolog.Level) zerolog.Logger {
	consoleWriter := zerolog.ConsoleWriter{
		Out:        w,
		TimeFormat: "2006-01-02 15:04:05",
		NoColor:    true,
	}
	return zerolog.New(consoleWriter).Level(level).With().Timestamp().Logger()
}

// Nop returns a logger that discards everything. Used by tests and tools.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}

// Transcript appends a finished transcript to the transcript log.
func (l *Logs) Transcript(file, provider, text string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.transcriptFile == nil {
		return
	}
	header := fmt.Sprintf("%s\t[%d]\t%s (%s)\n", time.Now().Format("2006-01-02 15:04:05"), l.pid, file, provider)
	if _, err := l.transcriptFile.WriteString(header + text + "\n\n"); err != nil {
		l.Logger.Warn().Err(err).Msg("transcript log write failed")
	}
}

// Close closes both files. Safe to call more than once.
func (l *Logs) Close() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.diagFile != nil {
		l.diagFile.Close()
		l.diagFile = nil
	}
	if l.transcriptFile != nil {
		l.transcriptFile.Close()
		l.transcriptFile = nil
	}
}
