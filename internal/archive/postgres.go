package archive

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// narrationRow is the table layout of a Record.
type narrationRow struct {
	ID        uuid.UUID                   `gorm:"type:uuid;primaryKey"`
	Kind      string                      `gorm:"type:varchar(16);not null"`
	Title     string                      `gorm:"type:text"`
	Prompt    string                      `gorm:"type:text"`
	ImagePath string                      `gorm:"type:text"`
	Sentences datatypes.JSONSlice[string] `gorm:"type:jsonb"`
	Engine    string                      `gorm:"type:varchar(32)"`
	CreatedAt time.Time                   `gorm:"index"`
}

func (narrationRow) TableName() string {
	return "narrations"
}

func toRow(r *Record) narrationRow {
	return narrationRow{
		ID:        r.ID,
		Kind:      string(r.Kind),
		Title:     r.Title,
		Prompt:    r.Prompt,
		ImagePath: r.ImagePath,
		Sentences: datatypes.JSONSlice[string](r.Sentences),
		Engine:    r.Engine,
		CreatedAt: r.CreatedAt,
	}
}

func (row narrationRow) record() *Record {
	return &Record{
		ID:        row.ID,
		Kind:      Kind(row.Kind),
		Title:     row.Title,
		Prompt:    row.Prompt,
		ImagePath: row.ImagePath,
		Sentences: []string(row.Sentences),
		Engine:    row.Engine,
		CreatedAt: row.CreatedAt,
	}
}

// PostgresStore keeps records in a narrations table.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore connects to dsn and migrates the table.
func NewPostgresStore(dsn string) (*PostgresStore, error) {
	if dsn == "" {
		return nil, errors.New("archive DSN not set")
	}
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	if err := db.AutoMigrate(&narrationRow{}); err != nil {
		return nil, fmt.Errorf("failed to migrate narrations table: %w", err)
	}
	return &PostgresStore{db: db}, nil
}

func (s *PostgresStore) Save(ctx context.Context, r *Record) error {
	if err := r.validate(); err != nil {
		return err
	}
	row := toRow(r)
	return s.db.WithContext(ctx).Save(&row).Error
}

func (s *PostgresStore) Get(ctx context.Context, id uuid.UUID) (*Record, error) {
	var row narrationRow
	err := s.db.WithContext(ctx).Where("id = ?", id).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, err
	}
	return row.record(), nil
}

func (s *PostgresStore) List(ctx context.Context) ([]*Record, error) {
	var rows []narrationRow
	if err := s.db.WithContext(ctx).Order("created_at desc").Find(&rows).Error; err != nil {
		return nil, err
	}
	records := make([]*Record, 0, len(rows))
	for _, row := range rows {
		records = append(records, row.record())
	}
	return records, nil
}

func (s *PostgresStore) Delete(ctx context.Context, ids ...uuid.UUID) error {
	if len(ids) == 0 {
		return nil
	}
	res := s.db.WithContext(ctx).Where("id IN ?", ids).Delete(&narrationRow{})
	if res.Error != nil {
		return res.Error
	}
	if missing := len(ids) - int(res.RowsAffected); missing > 0 {
		return fmt.Errorf("%w: %d of %d", ErrNotFound, missing, len(ids))
	}
	return nil
}

func (s *PostgresStore) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
