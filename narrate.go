package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/caarlos0/env/v11"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/dustin/go-humanize"
	"github.com/gabriel-vasile/mimetype"
	"github.com/mitchellh/go-homedir"

	"github.com/dgnsrekt/handguide/narration"
	"github.com/dgnsrekt/handguide/ui"
)

// maxImageSize limits what is sent to the AI provider.
const maxImageSize = 20 << 20

var errNotImage = errors.New("not an image")

// loadImage reads a photo into a narration source.
func loadImage(path string) (narration.Source, error) {
	path, err := homedir.Expand(path)
	if err != nil {
		return narration.Source{}, fmt.Errorf("unable to expand path: %w", err)
	}

	st, err := os.Stat(path)
	if err != nil {
		return narration.Source{}, fmt.Errorf("unable to open image: %w", err)
	}
	if st.IsDir() {
		return narration.Source{}, fmt.Errorf("%s is a directory, use handguide watch %s", path, path)
	}
	if st.Size() > maxImageSize {
		return narration.Source{}, fmt.Errorf("%s is %s, the limit is %s", path,
			humanize.Bytes(uint64(st.Size())), humanize.Bytes(maxImageSize)) //nolint:gosec
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return narration.Source{}, fmt.Errorf("unable to read image: %w", err)
	}
	mime := mimetype.Detect(data).String()
	if !strings.HasPrefix(mime, "image/") {
		return narration.Source{}, fmt.Errorf("%s: %w (%s)", path, errNotImage, mime)
	}

	if abs, err := filepath.Abs(path); err == nil {
		path = abs
	}
	return narration.ImageSource(path, data, mime), nil
}

// narrate runs one narration in the TUI, or prints it in plain mode.
func narrate(ctx context.Context, src narration.Source) error {
	if plain {
		return narratePlain(ctx, src)
	}
	return runTUI(ctx, &src, nil)
}

func narratePlain(ctx context.Context, src narration.Source) error {
	printer := ui.NewPrinter(os.Stdout, int(width)) //nolint:gosec
	a, err := newApp(ctx, cfg, printer, nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	printer.Title(src.Title())
	return a.narrateAndWait(ctx, src)
}

// runTUI starts the Bubble Tea program. feed, if set, runs alongside it and
// may send further sources to the program.
func runTUI(ctx context.Context, src *narration.Source, feed func(p *tea.Program)) error {
	// Read environment to get display settings
	uiCfg, err := env.ParseAs[ui.Config]()
	if err != nil {
		return fmt.Errorf("error parsing config: %v", err)
	}
	uiCfg.MaxWidth = width
	uiCfg.EnableMouse = mouse

	transcript := ui.NewTranscript()
	a, err := newApp(ctx, cfg, transcript, transcript.StateChanged)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	uiCfg.Engine = a.engine
	uiCfg.Model = a.model

	p := ui.NewProgram(uiCfg, a.controller, a.run, transcript, src)
	if feed != nil {
		go feed(p)
	}
	if _, err := p.Run(); err != nil {
		return fmt.Errorf("unable to run tui program: %w", err)
	}
	return nil
}
