package narration

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/handguide/narration/sentence"
)

// ControllerConfig holds configuration for the narration controller.
type ControllerConfig struct {
	DoubleTapWindow time.Duration // Two taps closer than this restart playback
}

// DefaultControllerConfig returns the default controller configuration.
func DefaultControllerConfig() ControllerConfig {
	return ControllerConfig{
		DoubleTapWindow: DefaultDoubleTapWindow,
	}
}

// TapAction is what a tap did.
type TapAction int

const (
	// TapIgnored means the tap had no effect.
	TapIgnored TapAction = iota
	// TapPaused means the tap paused playback.
	TapPaused
	// TapResumed means the tap resumed playback.
	TapResumed
	// TapRestarted means the tap completed a double tap and restarted
	// playback from the first sentence.
	TapRestarted
)

// String returns the string representation of the action.
func (a TapAction) String() string {
	switch a {
	case TapPaused:
		return "paused"
	case TapResumed:
		return "resumed"
	case TapRestarted:
		return "restarted"
	default:
		return "ignored"
	}
}

// Result describes a finished narration.
type Result struct {
	Source    Source
	Sentences []string
	Metrics   SessionMetrics
}

// Empty reports whether the narration produced no sentences.
func (r Result) Empty() bool {
	return len(r.Sentences) == 0
}

// Controller wires a fragment source, the sentence segmenter, a display and
// the speech queue into one narration session at a time.
type Controller struct {
	mu sync.Mutex

	source    FragmentSource
	queue     *SpeechQueue
	display   Display
	segmenter *sentence.Segmenter
	taps      *TapDetector
	config    ControllerConfig

	transcript []Item
	enabled    bool

	// session identifies the running narration. NavigateAway and every
	// StartNarration move it on, which stops older streams from touching
	// the display or the queue.
	session uint64
	cancel  context.CancelFunc
}

// NewController creates a controller. Display calls are made while the
// controller is locked and must not block.
func NewController(source FragmentSource, queue *SpeechQueue, display Display, config ControllerConfig) *Controller {
	return &Controller{
		source:    source,
		queue:     queue,
		display:   display,
		segmenter: sentence.NewSegmenter(),
		taps:      NewTapDetector(config.DoubleTapWindow),
		config:    config,
		enabled:   true,
	}
}

// StartNarration replaces any previous narration with a new one for src and
// blocks until the stream ends. Sentences are shown and queued for speech as
// soon as they are complete.
//
// A failed stream shows FailureMessage, disables the playback control and
// returns an error wrapping ErrStream. A stream that ends without any
// sentence is not an error; the result is simply empty.
func (c *Controller) StartNarration(ctx context.Context, src Source) (Result, error) {
	if c.source == nil {
		return Result{Source: src}, ErrNoSource
	}

	streamCtx, session := c.begin(ctx)
	metrics := newSessionMetrics(src)

	fragments, err := c.source.Stream(streamCtx, src)
	if err != nil {
		return c.fail(session, src, metrics, err)
	}

	for {
		var (
			fragment Fragment
			ok       bool
		)
		select {
		case <-streamCtx.Done():
			metrics.finish(streamCtx.Err())
			return c.result(src, metrics), streamCtx.Err()
		case fragment, ok = <-fragments:
		}
		if !ok {
			break
		}
		if fragment.Err != nil {
			return c.fail(session, src, metrics, fragment.Err)
		}

		metrics.fragment(fragment.Text)
		if !c.append(session, metrics, fragment.Text) {
			metrics.finish(context.Canceled)
			return c.result(src, metrics), context.Canceled
		}
	}

	if !c.flush(session, metrics) {
		metrics.finish(context.Canceled)
		return c.result(src, metrics), context.Canceled
	}

	metrics.finish(nil)
	return c.result(src, metrics), nil
}

// begin resets everything for a new session and returns its stream context.
func (c *Controller) begin(ctx context.Context) (context.Context, uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
	}
	streamCtx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.session++

	c.queue.Reset()
	c.segmenter.Reset()
	c.taps.Reset()
	c.transcript = nil
	c.enabled = true

	c.display.Clear()
	c.display.SetControlsEnabled(true)

	return streamCtx, c.session
}

// append feeds one fragment to the segmenter. It reports false when the
// session is no longer current.
func (c *Controller) append(session uint64, metrics *SessionMetrics, text string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if session != c.session {
		return false
	}
	for _, s := range c.segmenter.Append(text) {
		c.emit(s)
		metrics.sentence()
	}
	return true
}

func (c *Controller) flush(session uint64, metrics *SessionMetrics) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if session != c.session {
		return false
	}
	if s, ok := c.segmenter.Flush(); ok {
		c.emit(s)
		metrics.sentence()
	}
	return true
}

// emit must be called with c.mu held.
func (c *Controller) emit(s string) {
	unit := c.display.AddSentence(s)
	c.transcript = append(c.transcript, Item{Sentence: s, Unit: unit})
	c.queue.Enqueue(s, unit)
}

func (c *Controller) fail(session uint64, src Source, metrics *SessionMetrics, cause error) (Result, error) {
	err := newError(fmt.Errorf("%w: %w", ErrStream, cause), "controller", "stream", SeverityError)
	metrics.finish(err)

	c.mu.Lock()
	if session == c.session {
		c.enabled = false
		c.display.ShowError(FailureMessage)
		c.display.SetControlsEnabled(false)
	}
	c.mu.Unlock()

	return c.result(src, metrics), err
}

func (c *Controller) result(src Source, metrics *SessionMetrics) Result {
	return Result{Source: src, Sentences: c.Transcript(), Metrics: *metrics}
}

// Tap handles the playback gesture. A second tap inside the double tap
// window restarts playback from the first sentence. A single tap pauses or
// resumes. Taps do nothing while idle or after a stream failure.
func (c *Controller) Tap(now time.Time) TapAction {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		return TapIgnored
	}

	if c.taps.Tap(now) {
		c.restart()
		return TapRestarted
	}

	switch c.queue.State() {
	case StateSpeaking:
		if err := c.queue.Pause(); err != nil {
			log.Debug("Tap: pause failed", "error", err)
			return TapIgnored
		}
		return TapPaused
	case StatePaused:
		if err := c.queue.Resume(); err != nil {
			log.Debug("Tap: resume failed", "error", err)
			return TapIgnored
		}
		return TapResumed
	default:
		return TapIgnored
	}
}

// Restart replays the current transcript from the first sentence.
func (c *Controller) Restart() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.enabled {
		return ErrControlsDisabled
	}
	c.restart()
	return nil
}

// restart must be called with c.mu held.
func (c *Controller) restart() {
	items := make([]Item, len(c.transcript))
	copy(items, c.transcript)
	log.Debug("Restarting narration", "sentences", len(items))
	c.queue.Restart(items)
}

// NavigateAway stops speech and any in-flight stream.
func (c *Controller) NavigateAway() {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.cancel != nil {
		c.cancel()
		c.cancel = nil
	}
	c.session++
	c.taps.Reset()
	c.queue.Reset()
}

// State returns the playback state of the speech queue.
func (c *Controller) State() PlaybackState {
	return c.queue.State()
}

// ControlsEnabled reports whether the playback control accepts taps.
func (c *Controller) ControlsEnabled() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.enabled
}

// Transcript returns the sentences of the current narration.
func (c *Controller) Transcript() []string {
	c.mu.Lock()
	defer c.mu.Unlock()

	sentences := make([]string, 0, len(c.transcript))
	for _, item := range c.transcript {
		sentences = append(sentences, item.Sentence)
	}
	return sentences
}
