package narration

import (
	"errors"
	"strings"
	"testing"
)

// TestPlaybackStateString tests the String() method for PlaybackState.
func TestPlaybackStateString(t *testing.T) {
	tests := []struct {
		state    PlaybackState
		expected string
	}{
		{StateIdle, "idle"},
		{StateSpeaking, "speaking"},
		{StatePaused, "paused"},
		{PlaybackState(42), "unknown"},
	}

	for _, tt := range tests {
		t.Run(tt.expected, func(t *testing.T) {
			if got := tt.state.String(); got != tt.expected {
				t.Errorf("PlaybackState.String() = %v, want %v", got, tt.expected)
			}
		})
	}
}

// TestStateMachineTransitions tests valid and invalid transitions.
func TestStateMachineTransitions(t *testing.T) {
	tests := []struct {
		name     string
		path     []PlaybackState
		to       PlaybackState
		expected bool
	}{
		{"idle to speaking", nil, StateSpeaking, true},
		{"idle to paused", nil, StatePaused, false},
		{"speaking to paused", []PlaybackState{StateSpeaking}, StatePaused, true},
		{"speaking to idle", []PlaybackState{StateSpeaking}, StateIdle, true},
		{"paused to speaking", []PlaybackState{StateSpeaking, StatePaused}, StateSpeaking, true},
		{"paused to idle", []PlaybackState{StateSpeaking, StatePaused}, StateIdle, true},
		{"stay idle", nil, StateIdle, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			sm := NewStateMachine()
			for _, s := range tt.path {
				if !sm.Transition(s) {
					t.Fatalf("Setup transition to %s failed", s)
				}
			}
			if got := sm.CanTransition(tt.to); got != tt.expected {
				t.Errorf("CanTransition(%s) = %v, want %v", tt.to, got, tt.expected)
			}
			if got := sm.Transition(tt.to); got != tt.expected {
				t.Errorf("Transition(%s) = %v, want %v", tt.to, got, tt.expected)
			}
		})
	}
}

// TestStateMachineOnEnter tests that callbacks fire on real changes only.
func TestStateMachineOnEnter(t *testing.T) {
	sm := NewStateMachine()
	entered := 0
	sm.OnEnter(StateSpeaking, func() { entered++ })

	sm.Transition(StateSpeaking)
	sm.Transition(StateSpeaking)
	if entered != 1 {
		t.Errorf("Expected 1 callback, got %d", entered)
	}
	if sm.Current() != StateSpeaking {
		t.Errorf("Expected speaking, got %s", sm.Current())
	}
}

// TestNarrationError tests the error wrapper.
func TestNarrationError(t *testing.T) {
	cause := errors.New("connection reset")
	err := newError(cause, "controller", "stream", SeverityError)

	if !errors.Is(err, cause) {
		t.Error("Expected NarrationError to unwrap to its cause")
	}
	if !err.UserVisible() {
		t.Error("Expected error severity to be user visible")
	}
	if !strings.Contains(err.Error(), "controller: stream") {
		t.Errorf("Unexpected message %q", err.Error())
	}

	absorbed := newError(ErrSynthesis, "queue", "speak", SeverityInfo)
	if absorbed.UserVisible() {
		t.Error("Expected info severity to stay hidden")
	}
	if (&NarrationError{}).Error() != "unknown narration error" {
		t.Error("Expected placeholder message for empty error")
	}
}

func TestSeverityString(t *testing.T) {
	tests := map[Severity]string{
		SeverityInfo:    "info",
		SeverityWarning: "warning",
		SeverityError:   "error",
		Severity(9):     "unknown",
	}
	for severity, expected := range tests {
		if got := severity.String(); got != expected {
			t.Errorf("Severity(%d).String() = %q, want %q", severity, got, expected)
		}
	}
}
