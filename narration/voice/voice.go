// Package voice speaks sentences by synthesizing them with an engine and
// playing the result on an audio player.
package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/handguide/internal/audio"
	"github.com/dgnsrekt/handguide/internal/cache"
	"github.com/dgnsrekt/handguide/narration/engines"
)

// ErrNotReady is returned by Speak when the voice has no engine or player.
var ErrNotReady = errors.New("voice has no engine or player")

// Options tunes a Voice.
type Options struct {
	Speed    float64       // Speaking rate, clamped to the engine range
	Language string        // Part of the cache key
	Timeout  time.Duration // Synthesis limit per sentence
}

// Voice implements narration.Synthesizer.
type Voice struct {
	engine engines.Engine
	player audio.Player
	cache  cache.Cache // May be nil

	speed    float64
	language string
	timeout  time.Duration

	mu        sync.Mutex
	utterance uint64
	cancel    context.CancelFunc
	paused    bool
	pending   *ready // Audio that finished synthesis while paused
}

type ready struct {
	id     uint64
	pcm    []byte
	finish func(error)
}

// New creates a voice. c may be nil to synthesize every sentence afresh.
func New(engine engines.Engine, player audio.Player, c cache.Cache, opts Options) *Voice {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	return &Voice{
		engine:   engine,
		player:   player,
		cache:    c,
		speed:    engines.ClampSpeed(opts.Speed),
		language: opts.Language,
		timeout:  opts.Timeout,
	}
}

// Speed returns the speaking rate in use.
func (v *Voice) Speed() float64 {
	return v.speed
}

// Speak synthesizes text in the background and plays it. done is called
// once, when playback drains or when synthesis or playback fails.
func (v *Voice) Speak(text string, done func(error)) error {
	if v.engine == nil || v.player == nil {
		return ErrNotReady
	}

	var once sync.Once
	finish := func(err error) {
		once.Do(func() {
			if done != nil {
				done(err)
			}
		})
	}

	v.mu.Lock()
	v.stopLocked()
	v.utterance++
	id := v.utterance
	ctx, cancel := context.WithTimeout(context.Background(), v.timeout)
	v.cancel = cancel
	v.paused = false
	v.mu.Unlock()

	go func() {
		defer cancel()

		pcm, err := v.render(ctx, text)
		if err != nil {
			finish(fmt.Errorf("failed to synthesize %q: %w", text, err))
			return
		}
		v.play(&ready{id: id, pcm: pcm, finish: finish})
	}()
	return nil
}

// render returns audio for text from the cache or the engine.
func (v *Voice) render(ctx context.Context, text string) ([]byte, error) {
	key := cache.Key(v.engine.Name(), v.language, text, v.speed)
	if v.cache != nil {
		if pcm, ok := v.cache.Get(key); ok {
			log.Debug("Voice: cache hit", "text", text)
			return pcm, nil
		}
	}

	start := time.Now()
	pcm, err := v.engine.Synthesize(ctx, text, v.speed)
	if err != nil {
		return nil, err
	}
	log.Debug("Voice: synthesized",
		"engine", v.engine.Name(),
		"took", time.Since(start),
		"audio", engines.Duration(pcm))

	if v.cache != nil {
		if err := v.cache.Put(key, pcm); err != nil {
			log.Debug("Voice: cache put failed", "error", err)
		}
	}
	return pcm, nil
}

// play starts r unless it was cancelled, or holds it while paused.
func (v *Voice) play(r *ready) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if r.id != v.utterance {
		return
	}
	if v.paused {
		v.pending = r
		return
	}
	v.startLocked(r)
}

// startLocked must be called with v.mu held.
func (v *Voice) startLocked(r *ready) {
	err := v.player.Play(r.pcm, func() { r.finish(nil) })
	if err != nil {
		go r.finish(fmt.Errorf("failed to play audio: %w", err))
	}
}

// Pause suspends playback. Audio still being synthesized is held until
// Resume.
func (v *Voice) Pause() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.paused = true
	if err := v.player.Pause(); err != nil && !errors.Is(err, audio.ErrNotPlaying) {
		return err
	}
	return nil
}

// Resume continues playback, starting held audio if there is any.
func (v *Voice) Resume() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.paused = false
	if r := v.pending; r != nil {
		v.pending = nil
		v.startLocked(r)
		return nil
	}
	if err := v.player.Resume(); err != nil && !errors.Is(err, audio.ErrNotPaused) {
		return err
	}
	return nil
}

// Cancel stops synthesis and playback of the current utterance.
func (v *Voice) Cancel() error {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.utterance++
	v.paused = false
	return v.stopLocked()
}

// stopLocked must be called with v.mu held.
func (v *Voice) stopLocked() error {
	if v.cancel != nil {
		v.cancel()
		v.cancel = nil
	}
	v.pending = nil
	return v.player.Stop()
}
