package engines

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
)

// PiperEngine speaks through a local piper voice model.
type PiperEngine struct {
	binary string
	model  string
	config string // Optional <model>.onnx.json
	runner *SubprocessRunner
}

// NewPiperEngine creates a piper engine using cfg.PiperModel, or the first
// voice found in the usual voice directories.
func NewPiperEngine(cfg Config) (*PiperEngine, error) {
	binary, err := FindBinary("piper",
		"/usr/local/bin/piper",
		"/usr/bin/piper",
		"/opt/piper/piper",
		homeBin(".local", "bin", "piper"),
	)
	if err != nil {
		return nil, fmt.Errorf("%w (see https://github.com/rhasspy/piper)", err)
	}

	model := cfg.PiperModel
	if model == "" {
		model = findPiperModel(piperModelDirs())
	}
	if model == "" {
		return nil, fmt.Errorf("%w: no piper voice model found", ErrDependency)
	}

	e := &PiperEngine{
		binary: binary,
		runner: NewSubprocessRunner(cfg.Timeout),
	}
	if err := e.setModel(model); err != nil {
		return nil, err
	}
	log.Debug("Piper engine ready", "binary", binary, "model", e.model)
	return e, nil
}

func (e *PiperEngine) setModel(path string) error {
	if !strings.HasSuffix(path, ".onnx") {
		return fmt.Errorf("piper model must be an .onnx file: %s", path)
	}
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("piper model not found: %w", err)
	}
	e.model = path
	e.config = ""
	if _, err := os.Stat(path + ".json"); err == nil {
		e.config = path + ".json"
	}
	return nil
}

// Synthesize converts text to PCM.
func (e *PiperEngine) Synthesize(ctx context.Context, text string, speed float64) ([]byte, error) {
	text = Normalize(text)
	if text == "" {
		return nil, ErrEmptyText
	}

	pcm, err := e.runner.Run(ctx, []byte(text), e.binary, e.args(speed)...)
	if err != nil {
		return nil, err
	}
	if len(pcm) == 0 {
		return nil, errors.New("piper produced no audio")
	}
	if len(pcm)%2 != 0 {
		pcm = append(pcm, 0)
	}
	return pcm, nil
}

func (e *PiperEngine) args(speed float64) []string {
	args := []string{"--model", e.model, "--output-raw"}
	if e.config != "" {
		args = append(args, "--config", e.config)
	}
	// Piper's length scale is the inverse of the speaking rate.
	if speed = ClampSpeed(speed); speed != DefaultSpeed {
		args = append(args, "--length-scale", fmt.Sprintf("%.2f", 1/speed))
	}
	return args
}

// Name returns the engine name.
func (e *PiperEngine) Name() string {
	return NamePiper
}

// Voice returns the name of the voice model.
func (e *PiperEngine) Voice() string {
	return strings.TrimSuffix(filepath.Base(e.model), ".onnx")
}

// Validate checks that the binary and the model are still in place.
func (e *PiperEngine) Validate() error {
	if _, err := os.Stat(e.binary); err != nil {
		return fmt.Errorf("%w: piper binary: %w", ErrDependency, err)
	}
	if _, err := os.Stat(e.model); err != nil {
		return fmt.Errorf("%w: piper model: %w", ErrDependency, err)
	}
	return nil
}

func piperModelDirs() []string {
	return []string{
		homeBin(".local", "share", "piper-voices"),
		homeBin(".config", "piper", "voices"),
		"/usr/local/share/piper-voices",
		"/usr/share/piper-voices",
		"/opt/piper/voices",
	}
}

// findPiperModel returns the first .onnx file below dirs.
func findPiperModel(dirs []string) string {
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		var found string
		_ = filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return nil
			}
			if !d.IsDir() && strings.HasSuffix(path, ".onnx") {
				found = path
				return fs.SkipAll
			}
			return nil
		})
		if found != "" {
			return found
		}
	}
	return ""
}
