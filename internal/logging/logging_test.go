package logging

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/rs/zerolog"
)

func TestOpenCreatesFiles(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "logs")

	logs, err := Open(dir, zerolog.InfoLevel)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(logs.Close)

	for _, name := range []string{diagFileName, transcriptFileName} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("%s not created: %v", name, err)
		}
	}
}

func TestTranscript(t *testing.T) {
	dir := t.TempDir()

	logs, err := Open(dir, zerolog.InfoLevel)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(logs.Close)

	logs.Transcript("meeting.wav", "Deepgram", "Speaker 0: olá")

	data, err := os.ReadFile(filepath.Join(dir, transcriptFileName))
	if err != nil {
		t.Fatal(err)
	}
	got := string(data)
	if !strings.Contains(got, "meeting.wav (Deepgram)") {
		t.Errorf("transcript log missing header, got: %q", got)
	}
	if !strings.Contains(got, "Speaker 0: olá") {
		t.Errorf("transcript log missing text, got: %q", got)
	}
}

func TestNewRespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	logger := New(&buf, zerolog.WarnLevel)

	logger.Info().Msg("hidden")
	logger.Warn().Str("file", "a.wav").Msg("shown")

	out := buf.String()
	if strings.Contains(out, "hidden") {
		t.Errorf("info message should be filtered, got: %q", out)
	}
	if !strings.Contains(out, "shown") || !strings.Contains(out, "file=a.wav") {
		t.Errorf("warn message missing, got: %q", out)
	}
}

func TestCloseIdempotent(t *testing.T) {
	logs, err := Open(t.TempDir(), zerolog.InfoLevel)
	if err != nil {
		t.Fatal(err)
	}
	logs.Close()
	logs.Close() // should not panic
	logs.Transcript("a.wav", "Deepgram", "ignored after close")
}
