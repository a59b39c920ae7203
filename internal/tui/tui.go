// Package tui is the terminal front end. The bubbletea program is the only
// consumer of recorder events and orchestrator updates, and the only place
// display state changes.
package tui

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/chaz8081/gostt-scribe/internal/audio"
	"github.com/chaz8081/gostt-scribe/internal/hotkey"
	"github.com/chaz8081/gostt-scribe/internal/inject"
	"github.com/chaz8081/gostt-scribe/internal/session"
)

// refreshInterval is how often the recording time and size are redrawn.
const refreshInterval = 500 * time.Millisecond

// Recorder is the part of audio.Recorder the UI drives.
type Recorder interface {
	Toggle(deviceIndex int) error
	Snapshot() audio.Snapshot
	Events() <-chan audio.Event
}

// Orchestrator is the part of session.Orchestrator the UI drives.
type Orchestrator interface {
	Submit(path string, source session.Source) (session.Request, error)
	Selected() string
	Cycle() string
	Updates() <-chan session.Update
}

// Clipboard copies the transcript, or pastes a result into the focused
// window.
type Clipboard interface {
	Copy(text string) error
	Paste(text string) error
}

// Deps wires the model to the rest of the application.
type Deps struct {
	Recorder     Recorder
	Orchestrator Orchestrator
	Clipboard    Clipboard
	Transcript   *session.TranscriptLog
	// Devices lists the input devices the d key steps through.
	Devices   []audio.DeviceInfo
	Device    audio.DeviceInfo
	HasDevice bool
	WatchDir  string
	// WatchErr is shown instead of the monitoring status when the watcher
	// could not start.
	WatchErr error
	// SubmitRecordings sends saved recordings to the orchestrator. Leave it
	// off when the watcher already reports files in the output directory.
	SubmitRecordings bool
	// PasteResults pastes every successful transcript into the focused
	// window as it arrives.
	PasteResults bool
	// Hotkey, when set, toggles recording on every event.
	Hotkey <-chan hotkey.Event
	// OnResult is called for every result after it is added to the log.
	OnResult func(session.Result)
	Log      zerolog.Logger
}

// StatusMsg replaces the status line. Other goroutines can send it with
// tea.Program.Send.
type StatusMsg struct {
	Text  string
	Level session.Level
}

type tickMsg time.Time

type updateMsg struct{ update session.Update }

type recorderMsg struct{ event audio.Event }

type hotkeyMsg struct{}

type inputMode int

const (
	modeNormal inputMode = iota
	modePrompt
)

// Model is the bubbletea model.
type Model struct {
	deps Deps

	width, height int
	mode          inputMode
	input         string

	device    audio.DeviceInfo
	hasDevice bool

	snapshot    audio.Snapshot
	status      string
	statusLevel session.Level
	lastSaved   string
	provider    string
}

// New creates the model. The initial status says what the app is doing.
func New(deps Deps) Model {
	status := "Ready."
	if deps.WatchDir != "" {
		status = "Monitoring: " + deps.WatchDir
	}
	level := session.LevelInfo
	if deps.WatchErr != nil {
		status = "ERROR: " + deps.WatchErr.Error()
		level = session.LevelError
	}
	if deps.Transcript == nil {
		deps.Transcript = &session.TranscriptLog{}
	}
	return Model{
		deps:        deps,
		status:      status,
		statusLevel: level,
		provider:    deps.Orchestrator.Selected(),
		device:      deps.Device,
		hasDevice:   deps.HasDevice,
	}
}

// NewProgram wraps the model in a full-screen program.
func NewProgram(deps Deps) *tea.Program {
	return tea.NewProgram(New(deps), tea.WithAltScreen())
}

func tick() tea.Cmd {
	return tea.Tick(refreshInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func waitUpdate(ch <-chan session.Update) tea.Cmd {
	return func() tea.Msg {
		u, ok := <-ch
		if !ok {
			return nil
		}
		return updateMsg{update: u}
	}
}

func waitRecorder(ch <-chan audio.Event) tea.Cmd {
	return func() tea.Msg {
		ev, ok := <-ch
		if !ok {
			return nil
		}
		return recorderMsg{event: ev}
	}
}

func waitHotkey(ch <-chan hotkey.Event) tea.Cmd {
	return func() tea.Msg {
		if _, ok := <-ch; !ok {
			return nil
		}
		return hotkeyMsg{}
	}
}

func (m Model) Init() tea.Cmd {
	cmds := []tea.Cmd{
		tick(),
		waitUpdate(m.deps.Orchestrator.Updates()),
		waitRecorder(m.deps.Recorder.Events()),
	}
	if m.deps.Hotkey != nil {
		cmds = append(cmds, waitHotkey(m.deps.Hotkey))
	}
	return tea.Batch(cmds...)
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		m.snapshot = m.deps.Recorder.Snapshot()
		return m, tick()

	case StatusMsg:
		m.setStatus(msg.Level, msg.Text)

	case hotkeyMsg:
		m = m.toggleRecording()
		return m, waitHotkey(m.deps.Hotkey)

	case recorderMsg:
		m = m.handleRecorderEvent(msg.event)
		return m, waitRecorder(m.deps.Recorder.Events())

	case updateMsg:
		m = m.handleUpdate(msg.update)
		return m, waitUpdate(m.deps.Orchestrator.Updates())
	}
	return m, nil
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	if msg.Type == tea.KeyCtrlC {
		return m, tea.Quit
	}

	if m.mode == modePrompt {
		return m.handlePromptKey(msg), nil
	}

	// A file dropped on the terminal arrives as a bracketed paste.
	if msg.Paste {
		m.submit(string(msg.Runes), session.SourceDrop)
		return m, nil
	}

	switch msg.String() {
	case "q":
		return m, tea.Quit
	case "r":
		m = m.toggleRecording()
	case "d":
		m.cycleDevice()
	case "p":
		m.provider = m.deps.Orchestrator.Cycle()
		m.setStatus(session.LevelInfo, "Provider: "+m.provider)
	case "o", "i":
		m.mode = modePrompt
		m.input = ""
	case "c":
		m.copyTranscript()
	case "x":
		m.deps.Transcript.Clear()
		m.setStatus(session.LevelInfo, "Transcript cleared.")
	}
	m.snapshot = m.deps.Recorder.Snapshot()
	return m, nil
}

func (m Model) handlePromptKey(msg tea.KeyMsg) Model {
	switch msg.Type {
	case tea.KeyEsc:
		m.mode = modeNormal
		m.input = ""
	case tea.KeyEnter:
		path := m.input
		m.mode = modeNormal
		m.input = ""
		m.submit(path, session.SourceManual)
	case tea.KeyBackspace:
		if r := []rune(m.input); len(r) > 0 {
			m.input = string(r[:len(r)-1])
		}
	case tea.KeySpace:
		m.input += " "
	case tea.KeyRunes:
		m.input += string(msg.Runes)
	}
	return m
}

func (m *Model) submit(path string, source session.Source) {
	// Submit posts its own status for rejected files.
	if _, err := m.deps.Orchestrator.Submit(path, source); err != nil {
		m.deps.Log.Warn().Err(err).Str("source", string(source)).Msg("file rejected")
	}
}

func (m Model) toggleRecording() Model {
	if !m.hasDevice {
		m.setStatus(session.LevelError, "No input device available.")
		return m
	}
	if err := m.deps.Recorder.Toggle(m.device.Index); err != nil {
		m.setStatus(session.LevelError, "Could not start recording: "+err.Error())
		return m
	}
	m.snapshot = m.deps.Recorder.Snapshot()
	if m.snapshot.State == audio.StateRecording {
		m.setStatus(session.LevelInfo, "Recording from "+m.device.Name)
	}
	return m
}

// cycleDevice selects the next input device. The device is fixed while a
// session is active.
func (m *Model) cycleDevice() {
	if m.deps.Recorder.Snapshot().State != audio.StateIdle {
		m.setStatus(session.LevelWarn, "Stop recording before changing the input device.")
		return
	}
	devices := m.deps.Devices
	if len(devices) == 0 {
		m.setStatus(session.LevelError, "No input device available.")
		return
	}
	next := devices[0]
	if m.hasDevice {
		for i, d := range devices {
			if d.Index == m.device.Index {
				next = devices[(i+1)%len(devices)]
				break
			}
		}
	}
	m.device = next
	m.hasDevice = true
	m.deps.Log.Info().Int("index", next.Index).Str("name", next.Name).Msg("input device selected")
	m.setStatus(session.LevelInfo, "Input device: "+next.Name)
}

func (m *Model) copyTranscript() {
	err := m.deps.Clipboard.Copy(m.deps.Transcript.String())
	switch {
	case errors.Is(err, inject.ErrEmpty):
		m.setStatus(session.LevelWarn, "Nothing to copy.")
	case err != nil:
		m.setStatus(session.LevelError, "Copy failed: "+err.Error())
	default:
		m.setStatus(session.LevelInfo, "Transcript copied to clipboard.")
	}
}

func (m Model) handleRecorderEvent(ev audio.Event) Model {
	m.snapshot = m.deps.Recorder.Snapshot()

	if ev.ReadErr != nil {
		m.deps.Log.Error().Err(ev.ReadErr).Msg("recording interrupted")
	}

	switch ev.Type {
	case audio.EventSaved:
		m.lastSaved = ev.Path
		msg := fmt.Sprintf("Saved %s (%s)", filepath.Base(ev.Path), formatMB(ev.Bytes))
		if ev.ReadErr != nil {
			m.setStatus(session.LevelWarn, "Device error, recording stopped. "+msg)
		} else {
			m.setStatus(session.LevelInfo, msg)
		}
		if m.deps.SubmitRecordings {
			m.submit(ev.Path, session.SourceRecording)
		}
	case audio.EventEmpty:
		if ev.ReadErr != nil {
			m.setStatus(session.LevelError, "Device error: "+ev.ReadErr.Error())
		} else {
			m.setStatus(session.LevelWarn, "No audio captured, nothing saved.")
		}
	case audio.EventFailed:
		m.setStatus(session.LevelError, "Saving recording failed: "+ev.Err.Error())
	}
	return m
}

func (m Model) handleUpdate(u session.Update) Model {
	if u.Status != nil {
		m.setStatus(u.Status.Level, u.Status.Text)
	}
	if u.Result != nil {
		m.deps.Transcript.Append(*u.Result)
		if m.deps.OnResult != nil {
			m.deps.OnResult(*u.Result)
		}
		if m.deps.PasteResults && !u.Result.Failed() {
			if err := m.deps.Clipboard.Paste(u.Result.Text()); err != nil {
				m.deps.Log.Warn().Err(err).Str("file", u.Result.File).Msg("paste failed")
				m.setStatus(session.LevelWarn, "Paste failed: "+err.Error())
			}
		}
	}
	return m
}

func (m *Model) setStatus(level session.Level, text string) {
	m.status = text
	m.statusLevel = level
}

// formatElapsed renders d as HH:MM:SS.
func formatElapsed(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	s := int(d / time.Second)
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, (s/60)%60, s%60)
}

// formatMB renders a byte count in megabytes with two decimals.
func formatMB(n int64) string {
	return fmt.Sprintf("%.2f MB", float64(n)/(1024*1024))
}

// tail returns the last n lines of s.
func tail(s string, n int) []string {
	lines := strings.Split(strings.TrimRight(s, "\n"), "\n")
	if n <= 0 {
		return nil
	}
	if len(lines) > n {
		lines = lines[len(lines)-n:]
	}
	return lines
}
