// Package history keeps a SQLite log of finished resolve and download jobs.
package history

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"mediagrab/downloader"

	"github.com/glebarez/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// JobRecord is one finished job
type JobRecord struct {
	ID             uint      `json:"id"              gorm:"primaryKey"`
	JobID          string    `json:"job_id"          gorm:"uniqueIndex;not null"`
	Kind           string    `json:"kind"            gorm:"not null"`
	Outcome        string    `json:"outcome"         gorm:"not null"`
	Subject        string    `json:"subject"`
	URLs           []string  `json:"urls"            gorm:"serializer:json"`
	Entries        int       `json:"entries"         gorm:"not null;default:0"`
	TotalItems     int       `json:"total_items"     gorm:"not null;default:0"`
	CompletedItems int       `json:"completed_items" gorm:"not null;default:0"`
	Percent        int       `json:"percent"         gorm:"not null;default:0"`
	Error          string    `json:"error"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"     gorm:"index"`
	CreatedAt      time.Time `json:"created_at"      gorm:"autoCreateTime"`
}

// Duration is the job's wall time
func (r JobRecord) Duration() time.Duration {
	if r.StartedAt.IsZero() || r.FinishedAt.Before(r.StartedAt) {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// RecordFromEvent builds a record from a terminal job event
func RecordFromEvent(evt downloader.Event) (JobRecord, error) {
	if !evt.Type.Terminal() {
		return JobRecord{}, fmt.Errorf("event %s is not terminal", evt.Type)
	}
	rec := JobRecord{
		JobID:      evt.JobID,
		Kind:       string(evt.Kind),
		Outcome:    string(evt.Type),
		Subject:    evt.Subject,
		URLs:       append([]string(nil), evt.URLs...),
		Entries:    len(evt.Entries),
		StartedAt:  evt.Started,
		FinishedAt: evt.Timestamp,
	}
	if rec.FinishedAt.IsZero() {
		rec.FinishedAt = time.Now()
	}
	if evt.Progress != nil {
		rec.TotalItems = evt.Progress.TotalItems
		rec.CompletedItems = evt.Progress.CompletedItems
		rec.Percent = evt.Progress.Percent
	}
	if evt.Err != nil {
		rec.Error = evt.Err.Error()
	}
	return rec, nil
}

// Store persists job records
type Store struct {
	db *gorm.DB
}

// Open creates or opens the database at path and migrates the schema
func Open(path string) (*Store, error) {
	if path == "" {
		return nil, errors.New("history database path must not be empty")
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("failed to create history directory: %w", err)
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open history database: %w", err)
	}
	if err := db.AutoMigrate(&JobRecord{}); err != nil {
		return nil, fmt.Errorf("history migration failed: %w", err)
	}
	return &Store{db: db}, nil
}

// Record inserts rec
func (s *Store) Record(ctx context.Context, rec *JobRecord) error {
	if err := s.db.WithContext(ctx).Create(rec).Error; err != nil {
		return fmt.Errorf("failed to record job %s: %w", rec.JobID, err)
	}
	return nil
}

// Recent returns up to limit records, newest first
func (s *Store) Recent(ctx context.Context, limit int) ([]JobRecord, error) {
	if limit <= 0 {
		limit = 20
	}
	var records []JobRecord
	err := s.db.WithContext(ctx).
		Order("finished_at DESC").
		Order("id DESC").
		Limit(limit).
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list job history: %w", err)
	}
	return records, nil
}

// Close releases the database handle
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
