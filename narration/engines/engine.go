// Package engines turns text into raw PCM audio through external speech
// synthesizers.
package engines

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/dgnsrekt/handguide/narration/engines/mock"
)

// Audio format produced by every engine.
const (
	SampleRate    = 22050
	BitsPerSample = 16
	Channels      = 1

	DefaultSpeed = 1.0
	MinSpeed     = 0.5
	MaxSpeed     = 2.0
)

// Engine names accepted by New.
const (
	NameGTTS  = "gtts"
	NamePiper = "piper"
	NameMock  = "mock"
)

var (
	// ErrUnknownEngine means New was given a name it does not know.
	ErrUnknownEngine = errors.New("unknown speech engine")
	// ErrEmptyText means there was nothing left to say after normalization.
	ErrEmptyText = errors.New("empty text")
	// ErrDependency means a required external program is missing.
	ErrDependency = errors.New("missing dependency")
)

// Engine synthesizes one utterance into 16-bit mono PCM at SampleRate.
type Engine interface {
	Synthesize(ctx context.Context, text string, speed float64) ([]byte, error)
	Name() string
	Validate() error
}

// Config selects and tunes an engine.
type Config struct {
	Language   string        // Language code, e.g. "ko" or "en"
	PiperModel string        // Path to a piper .onnx voice
	Timeout    time.Duration // Per-utterance subprocess timeout
}

// DefaultConfig returns the default engine configuration.
func DefaultConfig() Config {
	return Config{
		Language: "ko",
		Timeout:  20 * time.Second,
	}
}

// New creates the named engine.
func New(name string, cfg Config) (Engine, error) {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultConfig().Timeout
	}
	if cfg.Language == "" {
		cfg.Language = DefaultConfig().Language
	}

	switch strings.ToLower(strings.TrimSpace(name)) {
	case NameGTTS, "":
		return NewGTTSEngine(cfg)
	case NamePiper:
		return NewPiperEngine(cfg)
	case NameMock:
		return mock.New(SampleRate), nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownEngine, name)
	}
}

// ClampSpeed limits speed to the supported range. Non-positive values mean
// the default speed.
func ClampSpeed(speed float64) float64 {
	switch {
	case speed <= 0:
		return DefaultSpeed
	case speed < MinSpeed:
		return MinSpeed
	case speed > MaxSpeed:
		return MaxSpeed
	default:
		return speed
	}
}

// Duration returns the playing time of a PCM buffer.
func Duration(pcm []byte) time.Duration {
	samples := len(pcm) / (BitsPerSample / 8) / Channels
	return time.Duration(samples) * time.Second / SampleRate
}
