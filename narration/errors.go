package narration

import (
	"errors"
	"time"
)

// Common errors for narration.
var (
	// ErrStream means the fragment source ended abnormally.
	ErrStream = errors.New("narration stream failed")
	// ErrSynthesis means the speech engine failed on one utterance.
	ErrSynthesis = errors.New("speech synthesis failed")
	// ErrEmptyInput means a stream finished without a single sentence.
	ErrEmptyInput = errors.New("no sentences in response")
	// ErrInvalidTransition means a playback operation was not valid in the
	// current state.
	ErrInvalidTransition = errors.New("invalid playback state transition")
	// ErrControlsDisabled means playback controls were turned off after a
	// stream failure.
	ErrControlsDisabled = errors.New("playback controls are disabled")
	// ErrNoSource means the controller has no fragment source.
	ErrNoSource = errors.New("no fragment source configured")
)

// FailureMessage replaces the transcript when a narration stream fails.
const FailureMessage = "Sorry, the guide could not describe this right now. Please try again."

// Severity describes how far an error reaches.
type Severity int

const (
	// SeverityInfo is absorbed and only logged.
	SeverityInfo Severity = iota
	// SeverityWarning is absorbed but worth noting.
	SeverityWarning
	// SeverityError is shown to the user.
	SeverityError
)

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeverityInfo:
		return "info"
	case SeverityWarning:
		return "warning"
	case SeverityError:
		return "error"
	default:
		return "unknown"
	}
}

// NarrationError provides detailed error information.
type NarrationError struct {
	Err       error    // The underlying error
	Component string   // Component that produced the error
	Action    string   // Action being performed
	Severity  Severity // How far the error propagates
	Timestamp time.Time
}

// Error implements the error interface.
func (e *NarrationError) Error() string {
	if e.Err == nil {
		return "unknown narration error"
	}
	if e.Component == "" {
		return e.Err.Error()
	}
	return e.Component + ": " + e.Action + ": " + e.Err.Error()
}

// Unwrap returns the underlying error.
func (e *NarrationError) Unwrap() error {
	return e.Err
}

// UserVisible reports whether the error should reach the user.
func (e *NarrationError) UserVisible() bool {
	return e.Severity >= SeverityError
}

func newError(err error, component, action string, severity Severity) *NarrationError {
	return &NarrationError{
		Err:       err,
		Component: component,
		Action:    action,
		Severity:  severity,
		Timestamp: time.Now(),
	}
}
