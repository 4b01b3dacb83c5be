// Package archive keeps finished narrations so they can be read again,
// searched, deleted and shared.
package archive

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/dgnsrekt/handguide/narration"
)

var (
	ErrNotFound    = errors.New("narration not found")
	ErrAmbiguous   = errors.New("id prefix matches more than one narration")
	ErrEmptyRecord = errors.New("narration has no sentences")
	ErrBackend     = errors.New("unknown archive backend")
)

// Kind is what a narration was about.
type Kind string

const (
	KindImage    Kind = "image"
	KindQuestion Kind = "question"
)

// Record is one archived narration.
type Record struct {
	ID        uuid.UUID `json:"id"`
	Kind      Kind      `json:"kind"`
	Title     string    `json:"title"`
	Prompt    string    `json:"prompt,omitempty"`
	ImagePath string    `json:"image_path,omitempty"`
	Sentences []string  `json:"sentences"`
	Engine    string    `json:"engine,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// NewRecord archives the sentences spoken for src.
func NewRecord(src narration.Source, sentences []string, engine string) *Record {
	r := &Record{
		ID:        uuid.New(),
		Kind:      KindQuestion,
		Title:     src.Title(),
		Sentences: append([]string(nil), sentences...),
		Engine:    engine,
		CreatedAt: time.Now(),
	}
	if src.Kind == narration.SourceImage {
		r.Kind = KindImage
		r.ImagePath = src.Path
	} else {
		r.Prompt = src.Prompt
	}
	return r
}

// Text returns the transcript as one paragraph.
func (r *Record) Text() string {
	return strings.Join(r.Sentences, " ")
}

// ShortID returns the first eight characters of the id.
func (r *Record) ShortID() string {
	return r.ID.String()[:8]
}

func (r *Record) validate() error {
	if r.ID == uuid.Nil {
		return errors.New("narration has no id")
	}
	if len(r.Sentences) == 0 {
		return ErrEmptyRecord
	}
	return nil
}

// Store persists records.
type Store interface {
	Save(ctx context.Context, r *Record) error
	Get(ctx context.Context, id uuid.UUID) (*Record, error)
	// List returns every record, newest first.
	List(ctx context.Context) ([]*Record, error)
	// Delete removes the given records. Missing ids are reported with
	// ErrNotFound after the others are removed.
	Delete(ctx context.Context, ids ...uuid.UUID) error
	Close() error
}

// Backends.
const (
	BackendFile     = "file"
	BackendPostgres = "postgres"
)

// Config selects a backend.
type Config struct {
	Backend string
	Dir     string // FileStore directory
	DSN     string // Postgres connection string
}

// Open returns the configured store.
func Open(cfg Config) (Store, error) {
	switch cfg.Backend {
	case "", BackendFile:
		return NewFileStore(cfg.Dir)
	case BackendPostgres:
		return NewPostgresStore(cfg.DSN)
	default:
		return nil, fmt.Errorf("%w: %s", ErrBackend, cfg.Backend)
	}
}
