package narration

import (
	"fmt"
	"sync"

	"github.com/charmbracelet/log"
)

// Item pairs a sentence with the unit that displays it.
type Item struct {
	Sentence string
	Unit     Unit
}

// SpeechQueue plays sentences strictly in arrival order, one at a time.
//
// All state lives behind one mutex. Synthesizer completions are re-dispatched
// on their own goroutine and checked against the generation of the utterance
// they belong to, so a completion that arrives after Reset or Restart is
// dropped instead of advancing a cleared queue.
type SpeechQueue struct {
	mu sync.Mutex

	synth   Synthesizer
	machine *StateMachine

	items   []Item
	current *Item // In-flight utterance, nil between utterances

	// generation identifies the in-flight utterance. It changes whenever
	// an utterance starts or the queue is reset.
	generation uint64

	onStateChange func(PlaybackState)
	onSpeak       func(Item)
}

// NewSpeechQueue creates an idle queue that speaks through synth.
func NewSpeechQueue(synth Synthesizer) *SpeechQueue {
	q := &SpeechQueue{
		synth:   synth,
		machine: NewStateMachine(),
	}
	for _, state := range []PlaybackState{StateIdle, StateSpeaking, StatePaused} {
		state := state
		q.machine.OnEnter(state, func() {
			if q.onStateChange != nil {
				q.onStateChange(state)
			}
		})
	}
	return q
}

// OnStateChange registers a callback for state changes. It runs while the
// queue is locked.
func (q *SpeechQueue) OnStateChange(fn func(PlaybackState)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onStateChange = fn
}

// OnSpeak registers a callback fired as each utterance starts. It runs while
// the queue is locked.
func (q *SpeechQueue) OnSpeak(fn func(Item)) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.onSpeak = fn
}

// Enqueue appends a sentence. An idle queue starts speaking it at once.
func (q *SpeechQueue) Enqueue(sentence string, unit Unit) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.items = append(q.items, Item{Sentence: sentence, Unit: unit})
	if q.machine.Current() == StateIdle {
		q.playNext()
	}
}

// Pause suspends the in-flight utterance. It is only valid while speaking.
func (q *SpeechQueue) Pause() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.machine.Current() != StateSpeaking {
		return fmt.Errorf("%w: pause while %s", ErrInvalidTransition, q.machine.Current())
	}
	if err := q.synth.Pause(); err != nil {
		return fmt.Errorf("failed to pause speech: %w", err)
	}
	q.machine.Transition(StatePaused)
	return nil
}

// Resume continues the paused utterance. If the utterance ended while the
// queue was paused, playback moves on to the next item.
func (q *SpeechQueue) Resume() error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.machine.Current() != StatePaused {
		return fmt.Errorf("%w: resume while %s", ErrInvalidTransition, q.machine.Current())
	}
	q.machine.Transition(StateSpeaking)

	if q.current == nil {
		q.playNext()
		return nil
	}
	if err := q.synth.Resume(); err != nil {
		return fmt.Errorf("failed to resume speech: %w", err)
	}
	return nil
}

// Restart drops everything queued or speaking and replays items from the
// first one.
func (q *SpeechQueue) Restart(items []Item) {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.clear()
	q.items = append(q.items, items...)
	q.playNext()
}

// Reset cancels in-flight speech, empties the queue and returns to idle.
func (q *SpeechQueue) Reset() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.clear()
}

// State returns the current playback state.
func (q *SpeechQueue) State() PlaybackState {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.machine.Current()
}

// Len returns the number of sentences waiting behind the in-flight one.
func (q *SpeechQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Current returns the in-flight item, if any.
func (q *SpeechQueue) Current() (Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.current == nil {
		return Item{}, false
	}
	return *q.current, true
}

// clear must be called with q.mu held. Cancellation happens before any
// queue state changes.
func (q *SpeechQueue) clear() {
	if q.current != nil {
		if err := q.synth.Cancel(); err != nil {
			log.Debug("Speech queue: cancel failed", "error", err)
		}
		q.unmark()
	}
	q.generation++
	q.items = nil
	q.machine.Transition(StateIdle)
}

// playNext must be called with q.mu held.
func (q *SpeechQueue) playNext() {
	for {
		if q.machine.Current() == StatePaused {
			return
		}

		q.unmark()
		if len(q.items) == 0 {
			q.machine.Transition(StateIdle)
			return
		}

		item := q.items[0]
		q.items[0] = Item{}
		q.items = q.items[1:]

		q.generation++
		gen := q.generation
		q.current = &item
		if item.Unit != nil {
			item.Unit.SetSpeaking(true)
		}
		q.machine.Transition(StateSpeaking)
		if q.onSpeak != nil {
			q.onSpeak(item)
		}

		err := q.synth.Speak(item.Sentence, func(err error) {
			go q.complete(gen, err)
		})
		if err == nil {
			return
		}

		// A voice that cannot start must not block the rest of the
		// narration.
		log.Debug("Speech queue: utterance skipped", "error", newError(err, "queue", "speak", SeverityInfo))
	}
}

// complete advances the queue once the utterance of generation gen is done.
func (q *SpeechQueue) complete(gen uint64, err error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if gen != q.generation || q.current == nil {
		return
	}
	if err != nil {
		log.Debug("Speech queue: utterance failed",
			"sentence", q.current.Sentence,
			"error", newError(fmt.Errorf("%w: %w", ErrSynthesis, err), "queue", "speak", SeverityInfo))
	}

	q.unmark()
	q.playNext()
}

// unmark clears the highlight of the in-flight item.
func (q *SpeechQueue) unmark() {
	if q.current == nil {
		return
	}
	if q.current.Unit != nil {
		q.current.Unit.SetSpeaking(false)
	}
	q.current = nil
}
