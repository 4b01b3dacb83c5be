// Package mock provides a silent speech engine and a scriptable synthesizer
// for tests and for running without audio.
package mock

import (
	"context"
	"sync"
	"time"
)

// MockEngine returns silence sized to the text.
type MockEngine struct {
	mu sync.Mutex

	sampleRate int
	delay      time.Duration

	shouldFail   bool
	failureError error
	callCount    int
	texts        []string
}

// New creates a mock engine producing silence at sampleRate.
func New(sampleRate int) *MockEngine {
	return &MockEngine{sampleRate: sampleRate}
}

// Synthesize returns silence, roughly 60ms per character.
func (e *MockEngine) Synthesize(ctx context.Context, text string, speed float64) ([]byte, error) {
	e.mu.Lock()
	e.callCount++
	e.texts = append(e.texts, text)
	delay, fail, failErr := e.delay, e.shouldFail, e.failureError
	e.mu.Unlock()

	if fail {
		return nil, failErr
	}
	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}

	if speed <= 0 {
		speed = 1
	}
	duration := time.Duration(float64(len([]rune(text))) * float64(60*time.Millisecond) / speed)
	samples := int(duration.Seconds() * float64(e.sampleRate))
	return make([]byte, samples*2), nil
}

// Name returns the engine name.
func (e *MockEngine) Name() string {
	return "mock"
}

// Validate always succeeds.
func (e *MockEngine) Validate() error {
	return nil
}

// SetDelay sets the simulated synthesis delay.
func (e *MockEngine) SetDelay(delay time.Duration) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.delay = delay
}

// SetFailure makes every call fail with err.
func (e *MockEngine) SetFailure(err error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shouldFail = true
	e.failureError = err
}

// ClearFailure resets the engine to normal operation.
func (e *MockEngine) ClearFailure() {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.shouldFail = false
	e.failureError = nil
}

// CallCount returns the number of Synthesize calls.
func (e *MockEngine) CallCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.callCount
}

// Texts returns every text passed to Synthesize.
func (e *MockEngine) Texts() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.texts...)
}
