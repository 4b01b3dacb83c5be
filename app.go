package main

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/handguide/internal/archive"
	"github.com/dgnsrekt/handguide/internal/audio"
	"github.com/dgnsrekt/handguide/internal/cache"
	"github.com/dgnsrekt/handguide/internal/config"
	"github.com/dgnsrekt/handguide/internal/llm"
	"github.com/dgnsrekt/handguide/narration"
	"github.com/dgnsrekt/handguide/narration/engines"
	"github.com/dgnsrekt/handguide/narration/voice"
)

// app is one narration pipeline: fragment source, voice, speech queue and
// controller, plus the archive finished narrations are saved to.
type app struct {
	cfg        *config.Config
	queue      *narration.SpeechQueue
	controller *narration.Controller
	store      archive.Store // Nil when auto-save is off or unavailable
	engine     string
	model      string

	onState func(narration.PlaybackState)
	idle    chan struct{}
	closers []func() error
}

// newApp builds the pipeline for cfg around the configured AI provider.
func newApp(ctx context.Context, cfg *config.Config, display narration.Display, onState func(narration.PlaybackState)) (*app, error) {
	source, err := llm.New(ctx, llmConfig(cfg))
	if err != nil {
		return nil, fmt.Errorf("unable to set up %s: %w", cfg.AI.Provider, err)
	}

	a, err := assemble(cfg, source, display, onState)
	if err != nil {
		_ = source.Close()
		return nil, err
	}
	a.model = source.Config().Model
	a.closers = append(a.closers, source.Close)
	return a, nil
}

// assemble builds everything but the fragment source.
func assemble(cfg *config.Config, source narration.FragmentSource, display narration.Display, onState func(narration.PlaybackState)) (*app, error) {
	a := &app{
		cfg:     cfg,
		onState: onState,
		idle:    make(chan struct{}, 1),
	}

	synth, err := a.voice()
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.queue = narration.NewSpeechQueue(synth)
	a.queue.OnStateChange(a.stateChanged)
	a.queue.OnSpeak(func(item narration.Item) {
		log.Debug("Speaking", "sentence", item.Sentence)
	})
	a.controller = narration.NewController(source, a.queue, display, narration.ControllerConfig{
		DoubleTapWindow: cfg.DoubleTapWindow(),
	})

	if cfg.Archive.AutoSave {
		store, err := archive.Open(archiveConfig(cfg))
		if err != nil {
			log.Warn("Archive unavailable, narrations will not be saved", "error", err)
		} else {
			a.store = store
			a.closers = append(a.closers, store.Close)
		}
	}
	return a, nil
}

// voice picks the engine, player and cache. With speech off, a silent
// engine and player keep the highlighting paced like real speech.
func (a *app) voice() (*voice.Voice, error) {
	name := a.cfg.Speech.Engine

	var player audio.Player
	if a.cfg.Speech.Enabled {
		p, err := audio.NewOtoPlayer(audio.DefaultConfig())
		if err != nil {
			return nil, fmt.Errorf("unable to open audio device (try --no-speak): %w", err)
		}
		player = p
	} else {
		name = engines.NameMock
		player = audio.NewMockPlayer(engines.SampleRate)
	}
	a.closers = append(a.closers, player.Close)

	engine, err := engines.New(name, engines.Config{
		Language:   a.cfg.AI.Language,
		PiperModel: a.cfg.Speech.PiperModel,
		Timeout:    a.cfg.SpeechTimeout(),
	})
	if err != nil {
		return nil, fmt.Errorf("unable to set up speech (try --no-speak): %w", err)
	}
	if err := engine.Validate(); err != nil {
		return nil, fmt.Errorf("speech engine %s is not usable: %w", engine.Name(), err)
	}
	a.engine = engine.Name()

	var c cache.Cache
	if a.cfg.Cache.Enabled && a.cfg.Speech.Enabled {
		m, err := openCache(a.cfg)
		if err != nil {
			log.Warn("Audio cache unavailable", "error", err)
		} else {
			c = m
			a.closers = append(a.closers, m.Close)
		}
	}

	return voice.New(engine, player, c, voice.Options{
		Speed:    a.cfg.Speech.Speed,
		Language: a.cfg.AI.Language,
		Timeout:  a.cfg.SpeechTimeout(),
	}), nil
}

// run narrates src and archives the result once the stream has ended
// cleanly.
func (a *app) run(ctx context.Context, src narration.Source) (narration.Result, error) {
	result, err := a.controller.StartNarration(ctx, src)
	if err != nil || result.Empty() {
		return result, err
	}
	a.save(ctx, result)
	return result, nil
}

func (a *app) save(ctx context.Context, result narration.Result) {
	if a.store == nil {
		return
	}
	r := archive.NewRecord(result.Source, result.Sentences, a.engine)
	if err := a.store.Save(ctx, r); err != nil {
		log.Warn("Could not archive narration", "error", err)
		return
	}
	log.Debug("Archived narration", "id", r.ShortID(), "sentences", len(r.Sentences))
}

// narrateAndWait narrates src and returns once everything has been spoken.
// Cancelling ctx stops playback.
func (a *app) narrateAndWait(ctx context.Context, src narration.Source) error {
	if _, err := a.run(ctx, src); err != nil {
		if errors.Is(err, context.Canceled) {
			a.controller.NavigateAway()
			return nil
		}
		return err
	}
	if err := a.waitSpoken(ctx); err != nil {
		a.controller.NavigateAway()
	}
	return nil
}

func (a *app) stateChanged(state narration.PlaybackState) {
	if a.onState != nil {
		a.onState(state)
	}
	if state == narration.StateIdle {
		select {
		case a.idle <- struct{}{}:
		default:
		}
	}
}

// waitSpoken blocks until the speech queue is idle.
func (a *app) waitSpoken(ctx context.Context) error {
	for a.controller.State() != narration.StateIdle {
		select {
		case <-a.idle:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close stops playback and releases everything in reverse order.
func (a *app) Close() error {
	if a.controller != nil {
		a.controller.NavigateAway()
	}
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

func llmConfig(cfg *config.Config) llm.Config {
	return llm.Config{
		Provider:            cfg.AI.Provider,
		Model:               cfg.AI.Model,
		APIKey:              cfg.AI.APIKey,
		BaseURL:             cfg.AI.BaseURL,
		Language:            cfg.AI.Language,
		ImageInstruction:    cfg.AI.ImageInstruction,
		QuestionInstruction: cfg.AI.QuestionInstruction,
		MaxTokens:           cfg.AI.MaxTokens,
		RequestsPerMinute:   cfg.AI.RequestsPerMinute,
	}
}

func archiveConfig(cfg *config.Config) archive.Config {
	return archive.Config{
		Backend: cfg.Archive.Backend,
		Dir:     cfg.Archive.Directory,
		DSN:     cfg.Archive.DSN,
	}
}

func openCache(cfg *config.Config) (*cache.Manager, error) {
	return cache.NewManager(cache.Config{ //nolint:wrapcheck
		MemoryCapacity:   int64(cfg.Cache.MemoryMB) << 20,
		DiskCapacity:     int64(cfg.Cache.MaxSizeMB) << 20,
		DiskPath:         cfg.Cache.Directory,
		CompressionLevel: cfg.Cache.CompressionLevel,
		TTL:              time.Duration(cfg.Cache.ExpirationHours) * time.Hour,
	})
}
