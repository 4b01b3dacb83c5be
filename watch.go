package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/cobra"

	"github.com/dgnsrekt/handguide/ui"
)

// watchSettle is how long a file must stay unchanged before it is read.
const watchSettle = 500 * time.Millisecond

var imageExtensions = []string{".jpg", ".jpeg", ".png", ".gif", ".webp"}

var watchCmd = &cobra.Command{
	Use:   "watch DIR",
	Short: "Narrate every new photo saved in a folder",
	Long: paragraph(fmt.Sprintf("\n%s a folder, such as the one your camera or phone sync writes to, and narrate each new photo. A new photo replaces the narration in progress.",
		keyword("Watch"))),
	Example: paragraph("handguide watch ~/Pictures/Camera"),
	Args:    cobra.ExactArgs(1),
	ValidArgsFunction: func(*cobra.Command, []string, string) ([]string, cobra.ShellCompDirective) {
		return nil, cobra.ShellCompDirectiveFilterDirs
	},
	RunE: func(cmd *cobra.Command, args []string) error {
		dir, err := homedir.Expand(args[0])
		if err != nil {
			return fmt.Errorf("unable to expand path: %w", err)
		}
		w, err := newImageWatcher(dir, watchSettle)
		if err != nil {
			return err
		}
		defer func() { _ = w.Close() }()

		if plain {
			return watchPlain(cmd.Context(), w)
		}
		return runTUI(cmd.Context(), nil, func(p *tea.Program) {
			for path := range w.Images() {
				src, err := loadImage(path)
				if err != nil {
					log.Warn("Skipping file", "path", path, "error", err)
					continue
				}
				p.Send(ui.StartMsg{Source: src})
			}
		})
	},
}

func watchPlain(ctx context.Context, w *imageWatcher) error {
	printer := ui.NewPrinter(os.Stdout, int(width)) //nolint:gosec
	a, err := newApp(ctx, cfg, printer, nil)
	if err != nil {
		return err
	}
	defer func() { _ = a.Close() }()

	fmt.Fprintln(os.Stderr, faint(fmt.Sprintf("Watching %s for new photos. Press ctrl+c to stop.", w.dir)))
	for {
		select {
		case <-ctx.Done():
			return nil
		case path, ok := <-w.Images():
			if !ok {
				return nil
			}
			src, err := loadImage(path)
			if err != nil {
				log.Warn("Skipping file", "path", path, "error", err)
				continue
			}
			printer.Title(src.Title())
			go func() {
				if _, err := a.run(ctx, src); err != nil && !errors.Is(err, context.Canceled) {
					log.Error("Narration failed", "path", path, "error", err)
				}
			}()
		}
	}
}

// imageWatcher reports image files created or rewritten in a directory once
// they have stopped changing.
type imageWatcher struct {
	dir     string
	settle  time.Duration
	watcher *fsnotify.Watcher
	images  chan string
	done    chan struct{}
	once    sync.Once
}

func newImageWatcher(dir string, settle time.Duration) (*imageWatcher, error) {
	st, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("unable to watch %s: %w", dir, err)
	}
	if !st.IsDir() {
		return nil, fmt.Errorf("%s is not a directory", dir)
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("unable to create watcher: %w", err)
	}
	if err := fw.Add(dir); err != nil {
		_ = fw.Close()
		return nil, fmt.Errorf("unable to watch %s: %w", dir, err)
	}

	w := &imageWatcher{
		dir:     dir,
		settle:  settle,
		watcher: fw,
		images:  make(chan string),
		done:    make(chan struct{}),
	}
	go w.loop()
	log.Debug("Watching for images", "dir", dir)
	return w, nil
}

// Images returns the settled image paths. It is closed by Close.
func (w *imageWatcher) Images() <-chan string {
	return w.images
}

func (w *imageWatcher) loop() {
	defer close(w.images)

	ticker := time.NewTicker(w.settle / 2)
	defer ticker.Stop()

	pending := make(map[string]time.Time)
	for {
		select {
		case <-w.done:
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			switch {
			case ev.Has(fsnotify.Create), ev.Has(fsnotify.Write):
				if isImageName(ev.Name) {
					pending[ev.Name] = time.Now()
				}
			case ev.Has(fsnotify.Remove), ev.Has(fsnotify.Rename):
				delete(pending, ev.Name)
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Warn("Watch error", "dir", w.dir, "error", err)

		case now := <-ticker.C:
			for _, path := range settled(pending, now, w.settle) {
				delete(pending, path)
				select {
				case w.images <- path:
				case <-w.done:
					return
				}
			}
		}
	}
}

// settled returns the paths unchanged for at least d, oldest first.
func settled(pending map[string]time.Time, now time.Time, d time.Duration) []string {
	var paths []string
	for path, seen := range pending {
		if now.Sub(seen) >= d {
			paths = append(paths, path)
		}
	}
	slices.SortFunc(paths, func(a, b string) int {
		return pending[a].Compare(pending[b])
	})
	return paths
}

func isImageName(path string) bool {
	if strings.HasPrefix(filepath.Base(path), ".") {
		return false
	}
	return slices.Contains(imageExtensions, strings.ToLower(filepath.Ext(path)))
}

// Close stops watching.
func (w *imageWatcher) Close() error {
	var err error
	w.once.Do(func() {
		close(w.done)
		err = w.watcher.Close()
	})
	return err //nolint:wrapcheck
}
