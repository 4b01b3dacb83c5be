package engines

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"github.com/charmbracelet/log"
)

// SubprocessRunner runs the external programs behind an engine.
type SubprocessRunner struct {
	timeout time.Duration
}

// NewSubprocessRunner creates a runner that limits each command to timeout.
func NewSubprocessRunner(timeout time.Duration) *SubprocessRunner {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &SubprocessRunner{timeout: timeout}
}

// Run executes name with args and returns its stdout. A non-empty input is
// attached to stdin before the process starts.
func (r *SubprocessRunner) Run(ctx context.Context, input []byte, name string, args ...string) ([]byte, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, name, args...)
	if len(input) > 0 {
		cmd.Stdin = bytes.NewReader(input)
	}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	if ctxErr := ctx.Err(); ctxErr != nil {
		if errors.Is(ctxErr, context.DeadlineExceeded) {
			return nil, fmt.Errorf("%s timed out after %v", filepath.Base(name), r.timeout)
		}
		return nil, fmt.Errorf("%s cancelled: %w", filepath.Base(name), ctxErr)
	}
	if err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return nil, fmt.Errorf("%s failed: %w: %s", filepath.Base(name), err, msg)
		}
		return nil, fmt.Errorf("%s failed: %w", filepath.Base(name), err)
	}

	return stdout.Bytes(), nil
}

// FindBinary returns the first usable path for a program, looking in PATH
// and then in the given fallback locations.
func FindBinary(name string, fallbacks ...string) (string, error) {
	if path, err := exec.LookPath(name); err == nil {
		return path, nil
	}
	for _, path := range fallbacks {
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			log.Debug("Found binary outside PATH", "name", name, "path", path)
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s not found", ErrDependency, name)
}

func homeBin(parts ...string) string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(append([]string{home}, parts...)...)
}
