package inject

import (
	"errors"
	"testing"
)

// mockDesktop records clipboard writes and key taps.
type mockDesktop struct {
	clipboard string
	writes    []string
	taps      []string
	writeErr  error
}

func (m *mockDesktop) ReadAll() (string, error) { return m.clipboard, nil }

func (m *mockDesktop) WriteAll(text string) error {
	if m.writeErr != nil {
		return m.writeErr
	}
	m.writes = append(m.writes, text)
	m.clipboard = text
	return nil
}

func (m *mockDesktop) KeyTap(key string, modifiers ...interface{}) error {
	tap := key
	for _, mod := range modifiers {
		tap = mod.(string) + "+" + tap
	}
	m.taps = append(m.taps, tap)
	return nil
}

func TestCopy(t *testing.T) {
	mock := &mockDesktop{clipboard: "old"}
	inj := NewInjectorWith(mock, "linux")

	if err := inj.Copy("--- a.wav (Deepgram) ---\nhello\n"); err != nil {
		t.Fatalf("Copy() error = %v", err)
	}
	if mock.clipboard != "--- a.wav (Deepgram) ---\nhello\n" {
		t.Errorf("clipboard = %q", mock.clipboard)
	}
	if len(mock.taps) != 0 {
		t.Errorf("Copy should not press keys, got %v", mock.taps)
	}
}

func TestCopyEmpty(t *testing.T) {
	mock := &mockDesktop{clipboard: "keep"}
	inj := NewInjectorWith(mock, "linux")

	if err := inj.Copy(""); !errors.Is(err, ErrEmpty) {
		t.Errorf("Copy(\"\") error = %v, want ErrEmpty", err)
	}
	if mock.clipboard != "keep" {
		t.Errorf("clipboard changed to %q", mock.clipboard)
	}
}

func TestCopyWriteError(t *testing.T) {
	boom := errors.New("no display")
	inj := NewInjectorWith(&mockDesktop{writeErr: boom}, "linux")
	if err := inj.Copy("x"); !errors.Is(err, boom) {
		t.Errorf("Copy() error = %v, want wrapped %v", err, boom)
	}
}

func TestPasteRestoresClipboard(t *testing.T) {
	tests := []struct {
		goos    string
		wantTap string
	}{
		{"darwin", "cmd+v"},
		{"linux", "ctrl+v"},
		{"windows", "ctrl+v"},
	}
	for _, tt := range tests {
		t.Run(tt.goos, func(t *testing.T) {
			mock := &mockDesktop{clipboard: "previous"}
			inj := NewInjectorWith(mock, tt.goos)

			if err := inj.Paste("transcript"); err != nil {
				t.Fatalf("Paste() error = %v", err)
			}
			if len(mock.taps) != 1 || mock.taps[0] != tt.wantTap {
				t.Errorf("taps = %v, want [%s]", mock.taps, tt.wantTap)
			}
			if len(mock.writes) != 2 || mock.writes[0] != "transcript" || mock.writes[1] != "previous" {
				t.Errorf("writes = %v, want [transcript previous]", mock.writes)
			}
		})
	}
}

func TestPasteEmpty(t *testing.T) {
	mock := &mockDesktop{}
	inj := NewInjectorWith(mock, "linux")
	if err := inj.Paste(""); err != nil {
		t.Fatalf("Paste(\"\") error = %v", err)
	}
	if len(mock.writes) != 0 || len(mock.taps) != 0 {
		t.Error("Paste of empty text should do nothing")
	}
}
