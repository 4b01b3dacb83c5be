package audio

import (
	"bytes"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"
)

// Errors returned by players.
var (
	ErrEmptyAudio = errors.New("audio data is empty")
	ErrClosed     = errors.New("player is closed")
	ErrNotPlaying = errors.New("no audio is playing")
	ErrNotPaused  = errors.New("audio is not paused")
)

// Player plays one PCM clip at a time.
//
// Play replaces whatever is playing and calls onDone once the clip has
// drained. A clip ended by Stop or by a later Play never calls its onDone.
type Player interface {
	Play(pcm []byte, onDone func()) error
	Pause() error
	Resume() error
	Stop() error
	Close() error
}

// PlayerState represents the current state of a player.
type PlayerState int32

const (
	StateStopped PlayerState = iota
	StatePlaying
	StatePaused
	StateClosed
)

// String returns the string representation of the state.
func (s PlayerState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Config contains configuration for the audio player.
type Config struct {
	SampleRate   int           // Must match the engines' output
	Channels     int           // 1 = mono
	BufferSize   time.Duration // Device buffer
	PollInterval time.Duration // How often drain is checked
}

// DefaultConfig returns the configuration matching engine output.
func DefaultConfig() Config {
	return Config{
		SampleRate:   22050,
		Channels:     1,
		BufferSize:   100 * time.Millisecond,
		PollInterval: 20 * time.Millisecond,
	}
}

func (c Config) validate() error {
	if c.SampleRate <= 0 {
		return fmt.Errorf("sample rate must be positive, got %d", c.SampleRate)
	}
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("channels must be 1 (mono) or 2 (stereo), got %d", c.Channels)
	}
	if c.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}
	return nil
}

var (
	contextOnce sync.Once
	sharedCtx   *oto.Context
	contextErr  error
)

// otoContext returns the process-wide oto context. oto allows only one.
func otoContext(cfg Config) (*oto.Context, error) {
	contextOnce.Do(func() {
		ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
			SampleRate:   cfg.SampleRate,
			ChannelCount: cfg.Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   cfg.BufferSize,
		})
		if err != nil {
			contextErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		<-ready
		sharedCtx = ctx
	})
	return sharedCtx, contextErr
}

// OtoPlayer plays audio on the system device.
type OtoPlayer struct {
	mu sync.Mutex

	ctx    *oto.Context
	config Config
	state  PlayerState

	current *clip
}

// clip is one playing buffer. The data slice is kept referenced for as long
// as oto reads from it.
type clip struct {
	data   []byte
	player *oto.Player
	onDone func()
	stop   chan struct{}
	once   sync.Once
}

func (c *clip) halt() {
	c.once.Do(func() { close(c.stop) })
}

// NewOtoPlayer opens the audio device.
func NewOtoPlayer(cfg Config) (*OtoPlayer, error) {
	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid audio config: %w", err)
	}
	ctx, err := otoContext(cfg)
	if err != nil {
		return nil, err
	}
	return &OtoPlayer{ctx: ctx, config: cfg, state: StateStopped}, nil
}

// Play starts pcm and calls onDone once it has drained.
func (p *OtoPlayer) Play(pcm []byte, onDone func()) error {
	if len(pcm) == 0 {
		return ErrEmptyAudio
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state == StateClosed {
		return ErrClosed
	}
	p.stopLocked()

	data := make([]byte, len(pcm))
	copy(data, pcm)

	c := &clip{
		data:   data,
		player: p.ctx.NewPlayer(bytes.NewReader(data)),
		onDone: onDone,
		stop:   make(chan struct{}),
	}
	p.current = c
	p.state = StatePlaying
	c.player.Play()

	go p.monitor(c)
	return nil
}

// monitor waits for c to drain. oto has no completion callback, so the
// player is polled.
func (p *OtoPlayer) monitor(c *clip) {
	ticker := time.NewTicker(p.config.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
		}

		p.mu.Lock()
		if p.current != c {
			p.mu.Unlock()
			return
		}
		if p.state != StatePlaying || c.player.IsPlaying() {
			p.mu.Unlock()
			continue
		}

		if err := c.player.Close(); err != nil {
			log.Debug("Audio: closing finished player", "error", err)
		}
		p.current = nil
		p.state = StateStopped
		p.mu.Unlock()

		if c.onDone != nil {
			c.onDone()
		}
		return
	}
}

// Pause suspends playback.
func (p *OtoPlayer) Pause() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StatePlaying || p.current == nil {
		return fmt.Errorf("%w: player is %s", ErrNotPlaying, p.state)
	}
	p.current.player.Pause()
	p.state = StatePaused
	return nil
}

// Resume continues paused playback.
func (p *OtoPlayer) Resume() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.state != StatePaused || p.current == nil {
		return fmt.Errorf("%w: player is %s", ErrNotPaused, p.state)
	}
	p.current.player.Play()
	p.state = StatePlaying
	return nil
}

// Stop ends playback without calling onDone.
func (p *OtoPlayer) Stop() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stopLocked()
}

func (p *OtoPlayer) stopLocked() error {
	if p.current == nil {
		if p.state != StateClosed {
			p.state = StateStopped
		}
		return nil
	}

	c := p.current
	p.current = nil
	c.halt()
	c.player.Pause()
	err := c.player.Close()
	if p.state != StateClosed {
		p.state = StateStopped
	}
	return err
}

// State returns the current player state.
func (p *OtoPlayer) State() PlayerState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Close stops playback. The shared device stays open for the process.
func (p *OtoPlayer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	err := p.stopLocked()
	p.state = StateClosed
	return err
}
