package ui

import (
	"sync"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/dgnsrekt/handguide/narration"
)

// refreshMsg tells the model that the transcript changed.
type refreshMsg struct{}

// Transcript is the narration.Display of the TUI. It is written by the
// narration controller and the speech queue from their own goroutines and
// read by the Bubble Tea model. Every change sends a refreshMsg without
// blocking the writer.
type Transcript struct {
	mu       sync.Mutex
	lines    []*line
	failure  string
	controls bool
	state    narration.PlaybackState
	send     func(tea.Msg)
}

// line is one sentence unit.
type line struct {
	t        *Transcript
	index    int
	text     string
	speaking bool
	spoken   bool
}

// LineView is a read-only copy of a line.
type LineView struct {
	Text     string
	Speaking bool
	Spoken   bool
}

// TranscriptView is a read-only copy of the transcript.
type TranscriptView struct {
	Lines    []LineView
	Failure  string
	Controls bool
	State    narration.PlaybackState
	Speaking int // Index of the speaking line, -1 if none
}

// NewTranscript returns an empty transcript.
func NewTranscript() *Transcript {
	return &Transcript{controls: true}
}

// SetSender sets where change notifications go, usually Program.Send.
func (t *Transcript) SetSender(send func(tea.Msg)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.send = send
}

// notify must be called with t.mu held.
func (t *Transcript) notify() {
	if send := t.send; send != nil {
		go send(refreshMsg{})
	}
}

// Clear implements narration.Display.
func (t *Transcript) Clear() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = nil
	t.failure = ""
	t.notify()
}

// AddSentence implements narration.Display.
func (t *Transcript) AddSentence(text string) narration.Unit {
	t.mu.Lock()
	defer t.mu.Unlock()
	l := &line{t: t, index: len(t.lines), text: text}
	t.lines = append(t.lines, l)
	t.notify()
	return l
}

// ShowError implements narration.Display. It replaces the transcript with message.
func (t *Transcript) ShowError(message string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.lines = nil
	t.failure = message
	t.notify()
}

// SetControlsEnabled implements narration.Display.
func (t *Transcript) SetControlsEnabled(enabled bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.controls = enabled
	t.notify()
}

// StateChanged records the speech queue state. Wire it with
// SpeechQueue.OnStateChange.
func (t *Transcript) StateChanged(state narration.PlaybackState) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.state = state
	if state == narration.StateIdle {
		for _, l := range t.lines {
			l.speaking = false
		}
	}
	t.notify()
}

// SetSpeaking marks the line. Lines before a speaking line count as spoken.
func (l *line) SetSpeaking(speaking bool) {
	t := l.t
	t.mu.Lock()
	defer t.mu.Unlock()
	l.speaking = speaking
	if speaking {
		for i, other := range t.lines {
			other.spoken = i < l.index
		}
	} else {
		l.spoken = true
	}
	t.notify()
}

// View returns a copy of the transcript.
func (t *Transcript) View() TranscriptView {
	t.mu.Lock()
	defer t.mu.Unlock()

	v := TranscriptView{
		Lines:    make([]LineView, len(t.lines)),
		Failure:  t.failure,
		Controls: t.controls,
		State:    t.state,
		Speaking: -1,
	}
	for i, l := range t.lines {
		v.Lines[i] = LineView{Text: l.text, Speaking: l.speaking, Spoken: l.spoken}
		if l.speaking {
			v.Speaking = i
		}
	}
	return v
}
