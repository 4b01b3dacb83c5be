package narration

import (
	"time"

	"github.com/charmbracelet/log"
)

// SessionMetrics times one narration.
type SessionMetrics struct {
	Source    string
	Started   time.Time
	FirstSent time.Duration // Latency to the first finished sentence
	Sentences int
	Fragments int
	Bytes     int
}

func newSessionMetrics(src Source) *SessionMetrics {
	m := &SessionMetrics{
		Source:  src.Kind.String(),
		Started: time.Now(),
	}
	log.Debug("Narration started", "source", m.Source, "title", src.Title())
	return m
}

func (m *SessionMetrics) fragment(text string) {
	m.Fragments++
	m.Bytes += len(text)
}

func (m *SessionMetrics) sentence() {
	if m.Sentences == 0 {
		m.FirstSent = time.Since(m.Started)
		log.Debug("First sentence ready", "latency", m.FirstSent)
	}
	m.Sentences++
}

func (m *SessionMetrics) finish(err error) {
	elapsed := time.Since(m.Started)
	if err != nil {
		log.Debug("Narration failed",
			"source", m.Source,
			"elapsed", elapsed,
			"fragments", m.Fragments,
			"error", err)
		return
	}
	log.Debug("Narration finished",
		"source", m.Source,
		"elapsed", elapsed,
		"first_sentence", m.FirstSent,
		"sentences", m.Sentences,
		"fragments", m.Fragments,
		"bytes", m.Bytes)
}
