package mock

import (
	"errors"
	"sync"
)

// ErrNotSpeaking is returned by Finish when no utterance is in flight.
var ErrNotSpeaking = errors.New("mock synthesizer is not speaking")

// Synthesizer is a synthesizer whose utterances only end when a test says
// so, or immediately when AutoComplete is set.
type Synthesizer struct {
	mu sync.Mutex

	spoken   []string
	done     func(error)
	paused   bool
	pauses   int
	resumes  int
	cancels  int
	speakErr map[string]error

	// AutoComplete finishes every utterance inside Speak.
	AutoComplete bool
}

// NewSynthesizer creates a mock synthesizer.
func NewSynthesizer() *Synthesizer {
	return &Synthesizer{speakErr: make(map[string]error)}
}

// Speak records text and keeps done until Finish is called.
func (s *Synthesizer) Speak(text string, done func(error)) error {
	s.mu.Lock()
	if err, ok := s.speakErr[text]; ok {
		s.mu.Unlock()
		return err
	}
	s.spoken = append(s.spoken, text)
	s.done = done
	s.paused = false
	auto := s.AutoComplete
	s.mu.Unlock()

	if auto {
		s.Finish(nil)
	}
	return nil
}

// Pause records a pause.
func (s *Synthesizer) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pauses++
	s.paused = true
	return nil
}

// Resume records a resume.
func (s *Synthesizer) Resume() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.resumes++
	s.paused = false
	return nil
}

// Cancel records a cancel. The pending done is kept so tests can fire it
// late.
func (s *Synthesizer) Cancel() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.cancels++
	s.paused = false
	return nil
}

// FailOn makes Speak return err for text.
func (s *Synthesizer) FailOn(text string, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.speakErr[text] = err
}

// Finish completes the latest utterance with err.
func (s *Synthesizer) Finish(err error) error {
	s.mu.Lock()
	done := s.done
	s.done = nil
	s.mu.Unlock()

	if done == nil {
		return ErrNotSpeaking
	}
	done(err)
	return nil
}

// Pending returns the done callback of the latest utterance without
// consuming it.
func (s *Synthesizer) Pending() func(error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.done
}

// Spoken returns every text passed to Speak, in order.
func (s *Synthesizer) Spoken() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.spoken...)
}

// Paused reports whether the synthesizer is paused.
func (s *Synthesizer) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Counts returns how often Pause, Resume and Cancel were called.
func (s *Synthesizer) Counts() (pauses, resumes, cancels int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pauses, s.resumes, s.cancels
}
