package main

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/dgnsrekt/handguide/internal/archive"
	"github.com/dgnsrekt/handguide/internal/config"
	"github.com/dgnsrekt/handguide/narration"
	"github.com/dgnsrekt/handguide/ui"
)

// A 1x1 PNG.
var pngPixel = []byte{
	0x89, 0x50, 0x4e, 0x47, 0x0d, 0x0a, 0x1a, 0x0a, 0x00, 0x00, 0x00, 0x0d,
	0x49, 0x48, 0x44, 0x52, 0x00, 0x00, 0x00, 0x01, 0x00, 0x00, 0x00, 0x01,
	0x08, 0x06, 0x00, 0x00, 0x00, 0x1f, 0x15, 0xc4, 0x89, 0x00, 0x00, 0x00,
	0x0d, 0x49, 0x44, 0x41, 0x54, 0x78, 0x9c, 0x63, 0xf8, 0xcf, 0xc0, 0xf0,
	0x1f, 0x00, 0x05, 0x00, 0x01, 0xff, 0x89, 0x99, 0x3d, 0x1d, 0x00, 0x00,
	0x00, 0x00, 0x49, 0x45, 0x4e, 0x44, 0xae, 0x42, 0x60, 0x82,
}

func TestHandguideFlags(t *testing.T) {
	tt := []struct {
		args  []string
		check func() bool
	}{
		{
			args:  []string{"--plain"},
			check: func() bool { return plain },
		},
		{
			args:  []string{"--no-speak"},
			check: func() bool { return noSpeak },
		},
		{
			args:  []string{"-w", "40"},
			check: func() bool { return width == 40 },
		},
		{
			args:  []string{"--engine", "piper"},
			check: func() bool { return rootCmd.PersistentFlags().Lookup("engine").Value.String() == "piper" },
		},
		{
			args:  []string{"-L", "en"},
			check: func() bool { return rootCmd.PersistentFlags().Lookup("lang").Value.String() == "en" },
		},
	}

	for _, v := range tt {
		t.Run(strings.Join(v.args, " "), func(t *testing.T) {
			if err := rootCmd.ParseFlags(v.args); err != nil {
				t.Fatal(err)
			}
			if !v.check() {
				t.Errorf("Parsing flags failed: %s", v.args)
			}
		})
	}
}

func TestLoadImage(t *testing.T) {
	dir := t.TempDir()
	img := filepath.Join(dir, "gate.png")
	txt := filepath.Join(dir, "notes.png")
	if err := os.WriteFile(img, pngPixel, 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(txt, []byte("not really a picture"), 0o600); err != nil {
		t.Fatal(err)
	}

	src, err := loadImage(img)
	if err != nil {
		t.Fatalf("Expected image to load, got %v", err)
	}
	if src.Kind != narration.SourceImage || src.MIME != "image/png" || src.Path != img {
		t.Errorf("Unexpected source %+v", src)
	}
	if !bytes.Equal(src.Image, pngPixel) {
		t.Error("Expected image bytes kept")
	}

	if _, err := loadImage(txt); !errors.Is(err, errNotImage) {
		t.Errorf("Expected errNotImage, got %v", err)
	}
	if _, err := loadImage(dir); err == nil || !strings.Contains(err.Error(), "watch") {
		t.Errorf("Expected a hint to use watch for directories, got %v", err)
	}
	if _, err := loadImage(filepath.Join(dir, "missing.jpg")); err == nil {
		t.Error("Expected an error for a missing file")
	}
}

func TestReadQuestion(t *testing.T) {
	var prompt bytes.Buffer
	q, err := readQuestion(strings.NewReader("\n  \n  남산타워는 얼마나 높아요?  \nignored\n"), &prompt)
	if err != nil {
		t.Fatal(err)
	}
	if q != "남산타워는 얼마나 높아요?" {
		t.Errorf("Expected the first non-blank line, got %q", q)
	}
	if !strings.Contains(prompt.String(), "What would you like to know?") {
		t.Errorf("Expected a prompt, got %q", prompt.String())
	}

	if _, err := readQuestion(strings.NewReader("\n\n"), &prompt); !errors.Is(err, errNoQuestion) {
		t.Errorf("Expected errNoQuestion, got %v", err)
	}
}

func TestIsImageName(t *testing.T) {
	tests := map[string]bool{
		"/pics/IMG_0001.JPG":   true,
		"/pics/gate.jpeg":      true,
		"/pics/tower.png":      true,
		"/pics/clip.webp":      true,
		"/pics/notes.txt":      false,
		"/pics/.pending-1.jpg": false,
		"/pics/raw":            false,
	}
	for path, expected := range tests {
		if got := isImageName(path); got != expected {
			t.Errorf("isImageName(%q): expected %v, got %v", path, expected, got)
		}
	}
}

func TestSettled(t *testing.T) {
	now := time.Now()
	pending := map[string]time.Time{
		"b.jpg": now.Add(-2 * time.Second),
		"a.jpg": now.Add(-3 * time.Second),
		"c.jpg": now.Add(-100 * time.Millisecond),
	}
	got := settled(pending, now, time.Second)
	if strings.Join(got, ",") != "a.jpg,b.jpg" {
		t.Errorf("Expected oldest settled files first, got %v", got)
	}
}

func TestImageWatcher(t *testing.T) {
	dir := t.TempDir()
	w, err := newImageWatcher(dir, 50*time.Millisecond)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = w.Close() }()

	if err := os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("x"), 0o600); err != nil {
		t.Fatal(err)
	}
	photo := filepath.Join(dir, "IMG_0001.png")
	if err := os.WriteFile(photo, pngPixel, 0o600); err != nil {
		t.Fatal(err)
	}

	select {
	case got := <-w.Images():
		if got != photo {
			t.Errorf("Expected %s, got %s", photo, got)
		}
	case <-time.After(3 * time.Second):
		t.Fatal("Expected the new photo to be reported")
	}

	if err := w.Close(); err != nil {
		t.Errorf("Expected clean close, got %v", err)
	}
	select {
	case _, ok := <-w.Images():
		if ok {
			t.Error("Expected no more images after close")
		}
	case <-time.After(time.Second):
		t.Error("Expected images channel closed")
	}
}

func TestNewImageWatcherRejectsFiles(t *testing.T) {
	f := filepath.Join(t.TempDir(), "gate.png")
	if err := os.WriteFile(f, pngPixel, 0o600); err != nil {
		t.Fatal(err)
	}
	if _, err := newImageWatcher(f, time.Second); err == nil {
		t.Error("Expected an error when watching a file")
	}
}

func testRecord(title string, age time.Duration) *archive.Record {
	r := archive.NewRecord(narration.PromptSource(title), []string{"One.", "Two."}, "mock")
	r.CreatedAt = time.Now().Add(-age)
	return r
}

func TestFormatList(t *testing.T) {
	now := time.Now()
	records := []*archive.Record{
		testRecord("경복궁은 언제 지어졌나요?", time.Hour),
		testRecord(strings.Repeat("a very long question ", 10), 48*time.Hour),
	}

	out := formatList(records, 60, now)
	lines := strings.Split(strings.TrimRight(out, "\n"), "\n")
	if len(lines) != 3 {
		t.Fatalf("Expected a header and two rows, got %q", out)
	}
	if !strings.Contains(lines[0], "TITLE") {
		t.Errorf("Expected a header, got %q", lines[0])
	}
	if !strings.Contains(lines[1], records[0].ShortID()) || !strings.Contains(lines[1], "1 hour ago") {
		t.Errorf("Unexpected row %q", lines[1])
	}
	if !strings.Contains(lines[2], "…") {
		t.Errorf("Expected long titles truncated, got %q", lines[2])
	}

	if out := formatList(nil, 60, now); !strings.Contains(out, "No narrations yet.") {
		t.Errorf("Expected empty message, got %q", out)
	}
}

func TestSelectRecords(t *testing.T) {
	records := []*archive.Record{testRecord("one", 0), testRecord("two", 0)}

	sel, err := selectRecords(records, []string{records[1].ShortID()}, false)
	if err != nil {
		t.Fatal(err)
	}
	if ids := sel.IDs(); len(ids) != 1 || ids[0] != records[1].ID {
		t.Errorf("Expected the referenced record, got %v", ids)
	}

	sel, err = selectRecords(records, nil, true)
	if err != nil || sel.Len() != 2 {
		t.Errorf("Expected every record selected, got %d (%v)", sel.Len(), err)
	}

	if _, err := selectRecords(records, []string{uuid.NewString()}, false); !errors.Is(err, archive.ErrNotFound) {
		t.Errorf("Expected ErrNotFound, got %v", err)
	}
}

func TestPublishToFile(t *testing.T) {
	c := config.Default()
	c.Share.Directory = t.TempDir()

	records := []*archive.Record{testRecord("Namsan tower", 0)}
	link, err := publish(context.Background(), c, records)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(link, "file://") {
		t.Errorf("Expected a file link, got %s", link)
	}
	if _, err := os.Stat(filepath.Join(c.Share.Directory, "handguide-"+records[0].ShortID()+".html")); err != nil {
		t.Errorf("Expected the page written, got %v", err)
	}
}

func TestPlural(t *testing.T) {
	if got := plural(1, "narration"); got != "1 narration" {
		t.Errorf("Expected singular, got %q", got)
	}
	if got := plural(3, "narration"); got != "3 narrations" {
		t.Errorf("Expected plural, got %q", got)
	}
}

type fragmentSource struct {
	fragments []string
	err       error
}

func (s fragmentSource) Stream(ctx context.Context, _ narration.Source) (<-chan narration.Fragment, error) {
	ch := make(chan narration.Fragment)
	go func() {
		defer close(ch)
		for _, f := range s.fragments {
			select {
			case ch <- narration.Fragment{Text: f}:
			case <-ctx.Done():
				return
			}
		}
		if s.err != nil {
			select {
			case ch <- narration.Fragment{Err: s.err}:
			case <-ctx.Done():
			}
		}
	}()
	return ch, nil
}

func silentConfig(t *testing.T) *config.Config {
	c := config.Default()
	c.Speech.Enabled = false
	c.Cache.Enabled = false
	c.Archive.Directory = t.TempDir()
	return c
}

func TestAppNarratesAndArchives(t *testing.T) {
	c := silentConfig(t)
	var out bytes.Buffer
	printer := ui.NewPrinter(&out, 0)

	var states []narration.PlaybackState
	a, err := assemble(c, fragmentSource{fragments: []string{"Hi. Y", "o."}}, printer, func(s narration.PlaybackState) {
		states = append(states, s)
	})
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.narrateAndWait(ctx, narration.PromptSource("Greeting?")); err != nil {
		t.Fatal(err)
	}
	if out.String() != "Hi.\nYo.\n" {
		t.Errorf("Expected both sentences printed, got %q", out.String())
	}
	if a.controller.State() != narration.StateIdle {
		t.Error("Expected playback finished")
	}
	if len(states) < 2 || states[0] != narration.StateSpeaking || states[len(states)-1] != narration.StateIdle {
		t.Errorf("Unexpected state changes %v", states)
	}

	records, err := a.store.List(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 1 || records[0].Text() != "Hi. Yo." || records[0].Engine != "mock" {
		t.Errorf("Expected the narration archived, got %+v", records)
	}
}

func TestAppDoesNotArchiveFailures(t *testing.T) {
	c := silentConfig(t)
	var out bytes.Buffer

	a, err := assemble(c, fragmentSource{fragments: []string{"Half a sent"}, err: errors.New("connection reset")}, ui.NewPrinter(&out, 0), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = a.Close() }()

	_, err = a.run(context.Background(), narration.PromptSource("Why?"))
	if !errors.Is(err, narration.ErrStream) {
		t.Fatalf("Expected ErrStream, got %v", err)
	}
	if !strings.Contains(out.String(), narration.FailureMessage) {
		t.Errorf("Expected the failure message, got %q", out.String())
	}

	records, err := a.store.List(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(records) != 0 {
		t.Errorf("Expected nothing archived, got %d", len(records))
	}
}

func TestAppWithoutAutoSave(t *testing.T) {
	c := silentConfig(t)
	c.Archive.AutoSave = false

	a, err := assemble(c, fragmentSource{fragments: []string{"Hi."}}, ui.NewPrinter(&bytes.Buffer{}, 0), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = a.Close() }()

	if a.store != nil {
		t.Error("Expected no archive when auto-save is off")
	}
	if _, err := a.run(context.Background(), narration.PromptSource("Hi?")); err != nil {
		t.Fatal(err)
	}
}

func TestAppCancelStopsPlayback(t *testing.T) {
	c := silentConfig(t)
	a, err := assemble(c, fragmentSource{fragments: []string{strings.Repeat("Long sentence here. ", 20)}}, ui.NewPrinter(&bytes.Buffer{}, 0), nil)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = a.Close() }()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- a.narrateAndWait(ctx, narration.PromptSource("Long?")) }()

	deadline := time.Now().Add(2 * time.Second)
	for a.controller.State() != narration.StateSpeaking {
		if time.Now().After(deadline) {
			t.Fatal("Expected playback to start")
		}
		time.Sleep(5 * time.Millisecond)
	}
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Expected a quiet stop, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Expected narrateAndWait to return after cancel")
	}
	if a.controller.State() != narration.StateIdle {
		t.Error("Expected playback reset")
	}
}
