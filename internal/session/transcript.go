package session

import (
	"fmt"
	"path/filepath"
	"strings"
	"sync"
)

// TranscriptLog is the append-only list of results shown to the user, in
// arrival order.
type TranscriptLog struct {
	mu      sync.Mutex
	entries []Result
}

// Append adds a result at the end.
func (l *TranscriptLog) Append(r Result) {
	l.mu.Lock()
	l.entries = append(l.entries, r)
	l.mu.Unlock()
}

// Entries returns a copy of the stored results.
func (l *TranscriptLog) Entries() []Result {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]Result, len(l.entries))
	copy(out, l.entries)
	return out
}

// Len returns the number of stored results.
func (l *TranscriptLog) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// Clear removes every result.
func (l *TranscriptLog) Clear() {
	l.mu.Lock()
	l.entries = nil
	l.mu.Unlock()
}

// String renders every entry as a header line followed by its text.
func (l *TranscriptLog) String() string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var b strings.Builder
	for i, r := range l.entries {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(FormatEntry(r))
	}
	return b.String()
}

// FormatEntry renders one result as it appears in the transcript log.
func FormatEntry(r Result) string {
	return fmt.Sprintf("--- %s (%s) ---\n%s\n", filepath.Base(r.File), r.Provider, r.Text())
}
