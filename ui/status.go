package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/dgnsrekt/handguide/narration"
)

// StatusDisplay summarises narration progress for the status bar.
type StatusDisplay struct {
	state     narration.PlaybackState
	current   int // Index of the speaking sentence, -1 if none
	total     int
	streaming bool
	failed    bool
	controls  bool
}

// NewStatusDisplay creates an idle status display.
func NewStatusDisplay() *StatusDisplay {
	return &StatusDisplay{current: -1, controls: true}
}

// Update copies the parts of v the status bar shows.
func (s *StatusDisplay) Update(v TranscriptView, streaming bool) {
	s.state = v.State
	s.current = v.Speaking
	s.total = len(v.Lines)
	s.streaming = streaming
	s.failed = v.Failure != ""
	s.controls = v.Controls
}

// CompactStatus returns the status bar note.
func (s *StatusDisplay) CompactStatus() string {
	var icon, text string
	var color lipgloss.TerminalColor

	switch {
	case s.failed:
		icon, text, color = "✗", "failed", red
	case s.state == narration.StateSpeaking:
		icon, text, color = "▶", "speaking", green
	case s.state == narration.StatePaused:
		icon, text, color = "⏸", "paused", lipgloss.Color("#FFFF00")
	case s.streaming:
		icon, text, color = "⟳", "listening", lipgloss.Color("#00AAFF")
	case s.total > 0:
		icon, text, color = "■", "done", faint
	default:
		return ""
	}

	status := lipgloss.NewStyle().Foreground(color).Background(statusBarBg).
		Render(fmt.Sprintf("%s %s", icon, text))

	if s.total > 0 && !s.failed {
		n := s.current + 1
		if s.current < 0 {
			n = s.total
		}
		status += statusBarNoteStyle(fmt.Sprintf(" %d/%d", n, s.total))
	}
	if !s.controls {
		status += statusBarNoteStyle(" (controls off)")
	}
	return status
}

// ProgressBar returns a bar of the given width showing spoken sentences.
func (s *StatusDisplay) ProgressBar(width int) string {
	if s.total <= 0 || width < 10 {
		return ""
	}
	done := s.total
	if s.current >= 0 {
		done = s.current
	}
	filled := min(width, done*width/s.total)
	return lipgloss.NewStyle().Foreground(green).Render(strings.Repeat("█", filled)) +
		lipgloss.NewStyle().Foreground(faint).Render(strings.Repeat("░", width-filled))
}

// IsActive reports whether speech is playing or paused.
func (s *StatusDisplay) IsActive() bool {
	return s.state != narration.StateIdle
}
