package tui

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/chaz8081/gostt-scribe/internal/audio"
	"github.com/chaz8081/gostt-scribe/internal/session"
)

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))
	recStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("196"))
	idleStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	infoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	warnStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	headerStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("246")).Bold(true)
	textStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("252"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpKeyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	promptStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	panelStyle    = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("238")).PaddingLeft(1)
	placeholderSt = lipgloss.NewStyle().Foreground(lipgloss.Color("241")).Italic(true)
)

func (m Model) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var top []string
	top = append(top, titleStyle.Render("gostt-scribe"))
	top = append(top, m.recordingLine())

	device := "no input device"
	if m.hasDevice {
		device = m.device.Name
	}
	top = append(top, infoStyle.Render(fmt.Sprintf("Mic: %s   Provider: %s", device, m.provider)))

	if m.lastSaved != "" {
		top = append(top, infoStyle.Render("Last file: "+filepath.Base(m.lastSaved)))
	}
	top = append(top, m.statusLine())

	var bottom []string
	if m.mode == modePrompt {
		bottom = append(bottom, promptStyle.Render("File: ")+m.input+"█")
		bottom = append(bottom, helpStyle.Render("enter to transcribe, esc to cancel"))
	} else {
		bottom = append(bottom, m.helpLine())
	}

	// borders take two lines
	panelHeight := m.height - len(top) - len(bottom) - 2
	if panelHeight < 3 {
		panelHeight = 3
	}
	panelWidth := m.width - 2
	if panelWidth < 20 {
		panelWidth = 20
	}

	panel := panelStyle.
		Width(panelWidth).
		Height(panelHeight).
		Render(m.transcriptView(panelHeight, panelWidth-2))

	return strings.Join(top, "\n") + "\n" + panel + "\n" + strings.Join(bottom, "\n")
}

func (m Model) recordingLine() string {
	snap := m.snapshot
	switch snap.State {
	case audio.StateRecording:
		line := recStyle.Render(fmt.Sprintf("● REC %s  %s", formatElapsed(snap.Elapsed), formatMB(snap.SizeBytes)))
		if snap.OverLimit {
			line += " " + warnStyle.Render("(over size limit)")
		}
		return line
	case audio.StateOpening:
		return warnStyle.Render("◌ Opening device...")
	case audio.StateStopping:
		return warnStyle.Render("◌ Saving...")
	default:
		return idleStyle.Render("○ Idle")
	}
}

func (m Model) statusLine() string {
	switch m.statusLevel {
	case session.LevelError:
		return errorStyle.Render(m.status)
	case session.LevelWarn:
		return warnStyle.Render(m.status)
	default:
		return infoStyle.Render(m.status)
	}
}

func (m Model) transcriptView(height, width int) string {
	text := m.deps.Transcript.String()
	if text == "" {
		return placeholderSt.Render("No transcriptions yet. Drop or paste a file, or press o.")
	}

	var wrapped []string
	for _, line := range strings.Split(strings.TrimRight(text, "\n"), "\n") {
		wrapped = append(wrapped, wrapLine(line, width)...)
	}
	lines := tail(strings.Join(wrapped, "\n"), height)

	for i, line := range lines {
		if strings.HasPrefix(line, "--- ") && strings.HasSuffix(line, " ---") {
			lines[i] = headerStyle.Render(line)
		} else {
			lines[i] = textStyle.Render(line)
		}
	}
	return strings.Join(lines, "\n")
}

func (m Model) helpLine() string {
	keys := []struct{ key, desc string }{
		{"r", "record"},
		{"d", "device"},
		{"p", "provider"},
		{"o", "open file"},
		{"c", "copy"},
		{"x", "clear"},
		{"q", "quit"},
	}
	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, helpKeyStyle.Render(k.key)+helpStyle.Render(" "+k.desc))
	}
	return strings.Join(parts, helpStyle.Render("  "))
}

// wrapLine splits line at spaces so no piece is wider than width runes.
func wrapLine(line string, width int) []string {
	if width <= 0 {
		width = 1
	}
	runes := []rune(line)
	if len(runes) <= width {
		return []string{line}
	}

	var out []string
	for len(runes) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if runes[i] == ' ' {
				splitAt = i
				break
			}
		}
		out = append(out, string(runes[:splitAt]))
		runes = []rune(strings.TrimLeft(string(runes[splitAt:]), " "))
	}
	if len(runes) > 0 {
		out = append(out, string(runes))
	}
	return out
}
