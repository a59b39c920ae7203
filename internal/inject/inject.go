// Package inject puts transcript text on the system clipboard and can
// paste it into the active application using robotgo.
package inject

import (
	"errors"
	"fmt"
	"runtime"

	"github.com/go-vgo/robotgo"
)

// ErrEmpty is returned when there is no text to copy.
var ErrEmpty = errors.New("inject: nothing to copy")

// Desktop is the subset of robotgo the Injector needs.
type Desktop interface {
	ReadAll() (string, error)
	WriteAll(text string) error
	KeyTap(key string, modifiers ...interface{}) error
}

type robotgoDesktop struct{}

func (robotgoDesktop) ReadAll() (string, error)   { return robotgo.ReadAll() }
func (robotgoDesktop) WriteAll(text string) error { return robotgo.WriteAll(text) }
func (robotgoDesktop) KeyTap(key string, modifiers ...interface{}) error {
	return robotgo.KeyTap(key, modifiers...)
}

// Injector copies text to the clipboard or pastes it.
type Injector struct {
	desktop  Desktop
	modifier string
}

// NewInjector creates an Injector backed by the real desktop.
func NewInjector() *Injector {
	return NewInjectorWith(robotgoDesktop{}, runtime.GOOS)
}

// NewInjectorWith creates an Injector over d. goos selects the paste
// shortcut: cmd+v on darwin, ctrl+v elsewhere.
func NewInjectorWith(d Desktop, goos string) *Injector {
	mod := "ctrl"
	if goos == "darwin" {
		mod = "cmd"
	}
	return &Injector{desktop: d, modifier: mod}
}

// Copy replaces the clipboard contents with text.
func (inj *Injector) Copy(text string) error {
	if text == "" {
		return ErrEmpty
	}
	if err := inj.desktop.WriteAll(text); err != nil {
		return fmt.Errorf("inject: write to clipboard: %w", err)
	}
	return nil
}

// Paste sends text to the active application through the clipboard and
// restores the previous clipboard contents afterwards.
func (inj *Injector) Paste(text string) error {
	if text == "" {
		return nil
	}

	// Save current clipboard
	prev, _ := inj.desktop.ReadAll()

	if err := inj.desktop.WriteAll(text); err != nil {
		return fmt.Errorf("inject: write to clipboard: %w", err)
	}
	if err := inj.desktop.KeyTap("v", inj.modifier); err != nil {
		return fmt.Errorf("inject: key tap %s+v: %w", inj.modifier, err)
	}

	// Restore previous clipboard (best effort)
	_ = inj.desktop.WriteAll(prev)

	return nil
}
