package audio

import (
	"fmt"
	"sync"
	"time"
)

// MockPlayer simulates playback without producing sound. Clips end after
// their real duration scaled by Speed, or only when Finish is called if
// Manual is set.
type MockPlayer struct {
	mu sync.Mutex

	state     PlayerState
	onDone    func()
	remaining time.Duration
	started   time.Time
	timer     *time.Timer
	clip      int // Increments per Play so stale timers are ignored

	sampleRate int

	// Manual keeps clips playing until Finish.
	Manual bool
	// Speed scales simulated playback; 0 means real time.
	Speed float64

	plays   [][]byte
	pauses  int
	resumes int
	stops   int
}

// NewMockPlayer creates a mock player for audio at sampleRate.
func NewMockPlayer(sampleRate int) *MockPlayer {
	return &MockPlayer{sampleRate: sampleRate, state: StateStopped}
}

// Play records pcm and schedules its completion.
func (m *MockPlayer) Play(pcm []byte, onDone func()) error {
	if len(pcm) == 0 {
		return ErrEmptyAudio
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state == StateClosed {
		return ErrClosed
	}
	m.stopLocked()

	m.plays = append(m.plays, append([]byte(nil), pcm...))
	m.clip++
	m.onDone = onDone
	m.state = StatePlaying
	m.remaining = m.duration(pcm)
	m.schedule()
	return nil
}

func (m *MockPlayer) duration(pcm []byte) time.Duration {
	d := time.Duration(len(pcm)/2) * time.Second / time.Duration(m.sampleRate)
	if m.Speed > 0 {
		d = time.Duration(float64(d) / m.Speed)
	}
	return d
}

// schedule must be called with m.mu held.
func (m *MockPlayer) schedule() {
	if m.Manual {
		return
	}
	id := m.clip
	m.started = time.Now()
	m.timer = time.AfterFunc(m.remaining, func() { m.finish(id) })
}

func (m *MockPlayer) finish(id int) {
	m.mu.Lock()
	if id != m.clip || m.state != StatePlaying {
		m.mu.Unlock()
		return
	}
	done := m.onDone
	m.onDone = nil
	m.timer = nil
	m.state = StateStopped
	m.mu.Unlock()

	if done != nil {
		done()
	}
}

// Finish ends the current clip as if it had drained.
func (m *MockPlayer) Finish() {
	m.mu.Lock()
	id := m.clip
	m.mu.Unlock()
	m.finish(id)
}

// Pause suspends the simulated clip.
func (m *MockPlayer) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StatePlaying {
		return fmt.Errorf("%w: player is %s", ErrNotPlaying, m.state)
	}
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
		m.remaining -= time.Since(m.started)
		if m.remaining < 0 {
			m.remaining = 0
		}
	}
	m.state = StatePaused
	m.pauses++
	return nil
}

// Resume continues the simulated clip.
func (m *MockPlayer) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StatePaused {
		return fmt.Errorf("%w: player is %s", ErrNotPaused, m.state)
	}
	m.state = StatePlaying
	m.resumes++
	m.schedule()
	return nil
}

// Stop ends the clip without calling onDone.
func (m *MockPlayer) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
	return nil
}

func (m *MockPlayer) stopLocked() {
	if m.timer != nil {
		m.timer.Stop()
		m.timer = nil
	}
	if m.state == StatePlaying || m.state == StatePaused {
		m.stops++
	}
	m.clip++
	m.onDone = nil
	if m.state != StateClosed {
		m.state = StateStopped
	}
}

// Close stops playback and rejects further clips.
func (m *MockPlayer) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.stopLocked()
	m.state = StateClosed
	return nil
}

// State returns the current player state.
func (m *MockPlayer) State() PlayerState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Plays returns every clip passed to Play.
func (m *MockPlayer) Plays() [][]byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([][]byte(nil), m.plays...)
}

// Counts returns how often Pause, Resume and Stop took effect.
func (m *MockPlayer) Counts() (pauses, resumes, stops int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pauses, m.resumes, m.stops
}
