package engines

import (
	"context"
	"fmt"
	"strconv"

	"github.com/charmbracelet/log"
)

// gttsLanguages are the language codes accepted by gtts-cli that the guide
// narrates in.
var gttsLanguages = map[string]bool{
	"ko": true, "en": true, "ja": true, "zh": true,
	"es": true, "fr": true, "de": true, "it": true,
	"pt": true, "ru": true, "ar": true, "hi": true,
}

// GTTSEngine speaks through Google Text-to-Speech. gtts-cli produces MP3
// which ffmpeg converts to PCM.
type GTTSEngine struct {
	language string
	gtts     string
	ffmpeg   string
	runner   *SubprocessRunner
}

// NewGTTSEngine creates a gtts engine. It fails when gtts-cli or ffmpeg
// cannot be found.
func NewGTTSEngine(cfg Config) (*GTTSEngine, error) {
	if !gttsLanguages[cfg.Language] {
		return nil, fmt.Errorf("unsupported language for gtts: %s", cfg.Language)
	}

	gtts, err := FindBinary("gtts-cli",
		"/usr/local/bin/gtts-cli",
		"/usr/bin/gtts-cli",
		homeBin(".local", "bin", "gtts-cli"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w (install with: pip install gtts)", err)
	}
	ffmpeg, err := FindBinary("ffmpeg",
		"/usr/local/bin/ffmpeg",
		"/usr/bin/ffmpeg",
		"/opt/homebrew/bin/ffmpeg",
	)
	if err != nil {
		return nil, fmt.Errorf("%w (install it with your package manager)", err)
	}

	log.Debug("GTTS engine ready", "language", cfg.Language, "gtts", gtts, "ffmpeg", ffmpeg)
	return &GTTSEngine{
		language: cfg.Language,
		gtts:     gtts,
		ffmpeg:   ffmpeg,
		runner:   NewSubprocessRunner(cfg.Timeout),
	}, nil
}

// Synthesize converts text to PCM.
func (e *GTTSEngine) Synthesize(ctx context.Context, text string, speed float64) ([]byte, error) {
	text = Normalize(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	mp3, err := e.runner.Run(ctx, []byte(text), e.gtts, "--lang", e.language, "-")
	if err != nil {
		return nil, err
	}
	if len(mp3) == 0 {
		return nil, fmt.Errorf("gtts-cli produced no audio")
	}

	pcm, err := e.runner.Run(ctx, mp3, e.ffmpeg, ffmpegArgs(speed)...)
	if err != nil {
		return nil, err
	}
	if len(pcm) == 0 {
		return nil, fmt.Errorf("ffmpeg produced no audio")
	}

	log.Debug("GTTS: synthesis complete", "bytes", len(pcm), "duration", Duration(pcm))
	return pcm, nil
}

// ffmpegArgs converts MP3 on stdin to raw PCM on stdout.
func ffmpegArgs(speed float64) []string {
	args := []string{
		"-hide_banner", "-loglevel", "error",
		"-i", "pipe:0",
		"-f", "s16le",
		"-ar", strconv.Itoa(SampleRate),
		"-ac", strconv.Itoa(Channels),
	}
	if speed = ClampSpeed(speed); speed != DefaultSpeed {
		args = append(args, "-filter:a", fmt.Sprintf("atempo=%.2f", speed))
	}
	return append(args, "pipe:1")
}

// Name returns the engine name.
func (e *GTTSEngine) Name() string {
	return NameGTTS
}

// Validate checks that the external programs are still in place.
func (e *GTTSEngine) Validate() error {
	if _, err := FindBinary(e.gtts); err != nil {
		return err
	}
	if _, err := FindBinary(e.ffmpeg); err != nil {
		return err
	}
	return nil
}
