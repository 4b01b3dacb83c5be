package share

import (
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/minio/minio-go/v7"

	"github.com/dgnsrekt/handguide/internal/archive"
	"github.com/dgnsrekt/handguide/narration"
)

func testRecord(title string, sentences ...string) *archive.Record {
	return archive.NewRecord(narration.PromptSource(title), sentences, "mock")
}

func TestMarkdown(t *testing.T) {
	r := testRecord("What is *this*?", "It is a **gate**.", "Very old.")
	md := Markdown(r)

	if !strings.HasPrefix(md, `## What is \*this\*?`) {
		t.Errorf("Expected escaped heading, got %q", md)
	}
	if !strings.Contains(md, `It is a \*\*gate\*\*. Very old.`) {
		t.Errorf("Expected escaped transcript, got %q", md)
	}
}

func TestSnapshotSingle(t *testing.T) {
	dir := t.TempDir()
	photo := filepath.Join(dir, "gate.png")
	os.WriteFile(photo, []byte("\x89PNG\r\n\x1a\n0000"), 0o644)

	r := archive.NewRecord(narration.ImageSource(photo, nil, "image/png"), []string{"A <b>gate</b>."}, "mock")
	html, err := Snapshot([]*archive.Record{r}, "ko")
	if err != nil {
		t.Fatal(err)
	}
	page := string(html)

	for _, want := range []string{`<html lang="ko">`, "<title>gate.png</title>", `src="data:image/png;base64,`, "<h2"} {
		if !strings.Contains(page, want) {
			t.Errorf("Expected %q in page", want)
		}
	}
	if strings.Contains(page, "<b>gate</b>") {
		t.Error("Expected transcript markup escaped")
	}
}

func TestSnapshotMultipleAndMissingPhoto(t *testing.T) {
	a := archive.NewRecord(narration.ImageSource("/does/not/exist.jpg", nil, ""), []string{"First."}, "mock")
	b := testRecord("Second question", "Second.")

	html, err := Snapshot([]*archive.Record{a, b}, "en")
	if err != nil {
		t.Fatal(err)
	}
	page := string(html)
	if strings.Count(page, "<article") != 2 {
		t.Errorf("Expected 2 articles, got %d", strings.Count(page, "<article"))
	}
	if strings.Contains(page, "<img") {
		t.Error("Expected no image for a missing photo")
	}
	if !strings.Contains(page, "exist.jpg &#43;1") {
		t.Error("Expected combined title")
	}

	if _, err := Snapshot(nil, "en"); !errors.Is(err, ErrNothingToShare) {
		t.Errorf("Expected ErrNothingToShare, got %v", err)
	}
}

func TestPageName(t *testing.T) {
	r := testRecord("q", "A.")
	if got := PageName([]*archive.Record{r}); got != "handguide-"+r.ShortID()+".html" {
		t.Errorf("Unexpected name %q", got)
	}
	if got := PageName([]*archive.Record{r, r}); !strings.HasPrefix(got, "handguide-2") {
		t.Errorf("Expected timestamped name, got %q", got)
	}
}

func TestFilePublisher(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "shared")
	link, err := FilePublisher{Dir: dir}.Publish(context.Background(), "../page.html", []byte("<html>"))
	if err != nil {
		t.Fatal(err)
	}
	if !strings.HasPrefix(link, "file://") || !strings.HasSuffix(link, "/shared/page.html") {
		t.Errorf("Unexpected link %q", link)
	}
	if data, _ := os.ReadFile(filepath.Join(dir, "page.html")); string(data) != "<html>" {
		t.Errorf("Unexpected file content %q", data)
	}
}

type fakeBucket struct {
	exists   bool
	failPuts int
	puts     int
	objects  map[string]string
}

func (b *fakeBucket) BucketExists(context.Context, string) (bool, error) {
	return b.exists, nil
}

func (b *fakeBucket) MakeBucket(context.Context, string, minio.MakeBucketOptions) error {
	b.exists = true
	return nil
}

func (b *fakeBucket) PutObject(_ context.Context, _, object string, reader io.Reader, _ int64, _ minio.PutObjectOptions) (minio.UploadInfo, error) {
	b.puts++
	if b.puts <= b.failPuts {
		return minio.UploadInfo{}, errors.New("503 slow down")
	}
	data, _ := io.ReadAll(reader)
	b.objects[object] = string(data)
	return minio.UploadInfo{Key: object}, nil
}

func (b *fakeBucket) PresignedGetObject(_ context.Context, bucket, object string, _ time.Duration, _ url.Values) (*url.URL, error) {
	return &url.URL{Scheme: "https", Host: "s3.example.com", Path: "/" + bucket + "/" + object}, nil
}

func TestBucketPublisherRetries(t *testing.T) {
	bucket := &fakeBucket{failPuts: 2, objects: map[string]string{}}
	p := newBucketPublisher(bucket, BucketConfig{Bucket: "guides"})
	p.policy = func() backoff.BackOff { return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 5) }

	link, err := p.Publish(context.Background(), "page.html", []byte("<html>"))
	if err != nil {
		t.Fatal(err)
	}
	if link != "https://s3.example.com/guides/page.html" {
		t.Errorf("Unexpected link %q", link)
	}
	if bucket.puts != 3 || !bucket.exists {
		t.Errorf("Expected bucket created and 3 attempts, got %d", bucket.puts)
	}
	if bucket.objects["page.html"] != "<html>" {
		t.Error("Expected page uploaded")
	}
}

func TestBucketPublisherGivesUp(t *testing.T) {
	bucket := &fakeBucket{exists: true, failPuts: 10, objects: map[string]string{}}
	p := newBucketPublisher(bucket, BucketConfig{Bucket: "guides"})
	p.policy = func() backoff.BackOff { return backoff.WithMaxRetries(&backoff.ZeroBackOff{}, 1) }

	if _, err := p.Publish(context.Background(), "page.html", []byte("x")); err == nil {
		t.Error("Expected failure after retries")
	}
	if bucket.puts != 2 {
		t.Errorf("Expected 2 attempts, got %d", bucket.puts)
	}
}

func TestNewBucketPublisherRequiresBucket(t *testing.T) {
	if _, err := NewBucketPublisher(BucketConfig{Endpoint: "localhost:9000"}); err == nil {
		t.Error("Expected an error without a bucket name")
	}
}
