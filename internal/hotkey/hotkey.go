// Package hotkey provides a global record-toggle hotkey using gohook.
// Each press of the key combination emits one toggle event, so recording
// can be started and stopped while another window has focus.
package hotkey

import (
	"fmt"
	"strings"
	"sync"

	hook "github.com/robotn/gohook"
)

// Event is emitted on the channel returned by Events for every press.
type Event struct {
	// Keys is the combination that fired, e.g. "ctrl+shift+r".
	Keys string
}

// Listener manages a global hotkey and emits toggle events.
type Listener struct {
	keys []string
	ch   chan Event
	done chan struct{}
	once sync.Once
}

// ParseKeys splits a combo such as "Ctrl+Shift+R" into lowercase key
// names as gohook expects them.
func ParseKeys(combo string) ([]string, error) {
	var keys []string
	for _, k := range strings.Split(combo, "+") {
		k = strings.ToLower(strings.TrimSpace(k))
		if k == "" {
			return nil, fmt.Errorf("hotkey: empty key in %q", combo)
		}
		keys = append(keys, k)
	}
	return keys, nil
}

// NewListener creates a Listener for the given key combo.
// keys should be lowercase key names (e.g., ["ctrl", "shift", "r"]).
func NewListener(keys []string) *Listener {
	return &Listener{
		keys: keys,
		ch:   make(chan Event, 16),
		done: make(chan struct{}),
	}
}

// Events returns the channel that receives hotkey events.
// The channel is closed when the listener stops.
func (l *Listener) Events() <-chan Event {
	return l.ch
}

// Start begins listening for the global hotkey.
// This function blocks until Stop is called. Run it in a goroutine.
func (l *Listener) Start() {
	combo := strings.Join(l.keys, "+")
	hook.Register(hook.KeyDown, l.keys, func(e hook.Event) {
		l.emit(Event{Keys: combo})
	})

	evChan := hook.Start()
	go func() {
		<-l.done
		hook.End()
	}()
	<-hook.Process(evChan)
	close(l.ch)
}

// emit never blocks: presses arriving while the channel is full are
// dropped.
func (l *Listener) emit(ev Event) {
	select {
	case l.ch <- ev:
	default:
	}
}

// Stop terminates the hotkey listener.
// It is safe to call multiple times.
func (l *Listener) Stop() {
	l.once.Do(func() {
		close(l.done)
	})
}
