package share

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
	"time"

	backoff "github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"
	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
)

const contentType = "text/html; charset=utf-8"

// Publisher stores a rendered page and returns where it can be opened.
type Publisher interface {
	Publish(ctx context.Context, name string, page []byte) (string, error)
}

// FilePublisher writes pages into a local directory.
type FilePublisher struct {
	Dir string
}

func (p FilePublisher) Publish(_ context.Context, name string, page []byte) (string, error) {
	if err := os.MkdirAll(p.Dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create share directory: %w", err)
	}
	path := filepath.Join(p.Dir, filepath.Base(name))
	if err := os.WriteFile(path, page, 0o644); err != nil {
		return "", err
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		abs = path
	}
	return (&url.URL{Scheme: "file", Path: filepath.ToSlash(abs)}).String(), nil
}

// BucketConfig locates an S3-compatible bucket.
type BucketConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	Expiry    time.Duration // Lifetime of returned links
}

// objectStore is the part of the MinIO client a BucketPublisher uses.
type objectStore interface {
	BucketExists(ctx context.Context, bucket string) (bool, error)
	MakeBucket(ctx context.Context, bucket string, opts minio.MakeBucketOptions) error
	PutObject(ctx context.Context, bucket, object string, reader io.Reader, size int64, opts minio.PutObjectOptions) (minio.UploadInfo, error)
	PresignedGetObject(ctx context.Context, bucket, object string, expiry time.Duration, params url.Values) (*url.URL, error)
}

// BucketPublisher uploads pages to S3 or MinIO and returns presigned links.
type BucketPublisher struct {
	store  objectStore
	bucket string
	expiry time.Duration
	policy func() backoff.BackOff
}

// NewBucketPublisher creates a publisher for cfg.
func NewBucketPublisher(cfg BucketConfig) (*BucketPublisher, error) {
	if cfg.Endpoint == "" || cfg.Bucket == "" {
		return nil, errors.New("share bucket endpoint and name are required")
	}
	client, err := minio.New(cfg.Endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(cfg.AccessKey, cfg.SecretKey, ""),
		Secure: cfg.UseSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create bucket client: %w", err)
	}
	return newBucketPublisher(client, cfg), nil
}

func newBucketPublisher(store objectStore, cfg BucketConfig) *BucketPublisher {
	if cfg.Expiry <= 0 {
		cfg.Expiry = 7 * 24 * time.Hour
	}
	return &BucketPublisher{
		store:  store,
		bucket: cfg.Bucket,
		expiry: cfg.Expiry,
		policy: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = 500 * time.Millisecond
			bo.MaxInterval = 5 * time.Second
			bo.MaxElapsedTime = 30 * time.Second
			return bo
		},
	}
}

func (p *BucketPublisher) Publish(ctx context.Context, name string, page []byte) (string, error) {
	upload := func() error {
		exists, err := p.store.BucketExists(ctx, p.bucket)
		if err != nil {
			return err
		}
		if !exists {
			if err := p.store.MakeBucket(ctx, p.bucket, minio.MakeBucketOptions{}); err != nil {
				return err
			}
		}
		_, err = p.store.PutObject(ctx, p.bucket, name, bytes.NewReader(page), int64(len(page)),
			minio.PutObjectOptions{ContentType: contentType})
		return err
	}
	notify := func(err error, wait time.Duration) {
		log.Debug("Share: upload failed, retrying", "object", name, "wait", wait, "error", err)
	}

	if err := backoff.RetryNotify(upload, backoff.WithContext(p.policy(), ctx), notify); err != nil {
		return "", fmt.Errorf("failed to upload %s: %w", name, err)
	}

	link, err := p.store.PresignedGetObject(ctx, p.bucket, name, p.expiry, nil)
	if err != nil {
		return "", fmt.Errorf("failed to sign link: %w", err)
	}
	return link.String(), nil
}
