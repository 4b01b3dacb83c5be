package narration

// PlaybackState represents where the speech queue is in its playback cycle.
type PlaybackState int

const (
	// StateIdle means nothing is queued and nothing is speaking.
	StateIdle PlaybackState = iota
	// StateSpeaking means one utterance is playing.
	StateSpeaking
	// StatePaused means playback is suspended mid-queue with the queue kept.
	StatePaused
)

// String returns the string representation of the state.
func (s PlaybackState) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSpeaking:
		return "speaking"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// StateMachine guards playback state transitions.
type StateMachine struct {
	current     PlaybackState
	transitions map[PlaybackState][]PlaybackState
	onEnter     map[PlaybackState]func()
}

// NewStateMachine creates a state machine starting in StateIdle.
func NewStateMachine() *StateMachine {
	return &StateMachine{
		current: StateIdle,
		transitions: map[PlaybackState][]PlaybackState{
			StateIdle:     {StateSpeaking},
			StateSpeaking: {StatePaused, StateIdle},
			StatePaused:   {StateSpeaking, StateIdle},
		},
		onEnter: make(map[PlaybackState]func()),
	}
}

// Transition attempts to move to the given state. Staying in the current
// state is always allowed and does not fire callbacks.
func (sm *StateMachine) Transition(to PlaybackState) bool {
	if sm.current == to {
		return true
	}

	valid := false
	for _, state := range sm.transitions[sm.current] {
		if state == to {
			valid = true
			break
		}
	}
	if !valid {
		return false
	}

	sm.current = to
	if fn, ok := sm.onEnter[to]; ok && fn != nil {
		fn()
	}
	return true
}

// CanTransition reports whether a transition to the given state is valid.
func (sm *StateMachine) CanTransition(to PlaybackState) bool {
	if sm.current == to {
		return true
	}
	for _, state := range sm.transitions[sm.current] {
		if state == to {
			return true
		}
	}
	return false
}

// Current returns the current state.
func (sm *StateMachine) Current() PlaybackState {
	return sm.current
}

// OnEnter registers a callback for entering a state.
func (sm *StateMachine) OnEnter(state PlaybackState, fn func()) {
	sm.onEnter[state] = fn
}
