// Package history persists run summaries in a local SQLite database.
package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sirupsen/logrus"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"av1conv/internal/model"
)

// Run is one batch.
type Run struct {
	ID         string `gorm:"primaryKey"`
	Encoder    string
	StartedAt  time.Time `gorm:"index"`
	FinishedAt time.Time
	Converted  int
	Skipped    int
	Failed     int
	Cancelled  int
	Deleted    int
	BytesSaved int64
	Items      []Item `gorm:"constraint:OnDelete:CASCADE"`
}

// Item is one file of a batch.
type Item struct {
	ID         uint   `gorm:"primaryKey"`
	RunID      string `gorm:"index"`
	Seq        int
	JobID      string
	Source     string
	Output     string
	Outcome    string
	Stage      string
	Detail     string
	VMAF       *float64
	VMAFModel  string
	Decision   string
	DeleteErr  string
	SizeBefore int64
	SizeAfter  int64
	ElapsedMS  int64
}

// Store wraps the history database.
type Store struct {
	db *gorm.DB
}

// Open creates or migrates the database at path.
func Open(path string, log logrus.FieldLogger) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, fmt.Errorf("history dir: %w", err)
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	gormLogger := logger.New(log, logger.Config{
		SlowThreshold:             time.Second,
		LogLevel:                  logger.Warn,
		IgnoreRecordNotFoundError: true,
		ParameterizedQueries:      true,
	})
	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: gormLogger})
	if err != nil {
		return nil, fmt.Errorf("open history %s: %w", path, err)
	}
	// single writer
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	if err := db.AutoMigrate(&Run{}, &Item{}); err != nil {
		return nil, fmt.Errorf("migrate history: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Save records a finished run with all its items.
func (s *Store) Save(sum model.RunSummary) error {
	if sum.ID == "" {
		return errors.New("run has no id")
	}
	run := Run{
		ID:         sum.ID,
		Encoder:    string(sum.Encoder),
		StartedAt:  sum.StartedAt,
		FinishedAt: sum.FinishedAt,
		Converted:  sum.Converted,
		Skipped:    sum.Skipped,
		Failed:     sum.Failed,
		Cancelled:  sum.Cancelled,
		Deleted:    sum.Deleted,
		BytesSaved: sum.BytesSaved,
	}
	for i, it := range sum.Items {
		row := Item{
			Seq:        i,
			JobID:      it.Job.ID,
			Source:     it.Job.SourcePath,
			Output:     it.Outcome.OutputPath,
			Outcome:    string(it.Outcome.Kind),
			Stage:      string(it.Outcome.Stage),
			Detail:     it.Outcome.Detail,
			Decision:   string(it.Decision),
			DeleteErr:  it.DeleteErr,
			SizeBefore: it.Outcome.SizeBefore,
			SizeAfter:  it.Outcome.SizeAfter,
			ElapsedMS:  it.Elapsed.Milliseconds(),
		}
		if it.Outcome.Kind == model.OutcomeSkipped {
			row.Detail = string(it.Outcome.Reason)
		}
		if it.Score != nil {
			v := it.Score.Mean
			row.VMAF = &v
			row.VMAFModel = it.Score.Model
		}
		run.Items = append(run.Items, row)
	}
	return s.db.Transaction(func(tx *gorm.DB) error {
		return tx.Create(&run).Error
	})
}

// Recent returns the latest n runs, newest first, with their items.
func (s *Store) Recent(n int) ([]Run, error) {
	var runs []Run
	err := s.db.
		Preload("Items", func(db *gorm.DB) *gorm.DB { return db.Order("seq") }).
		Order("started_at desc").
		Limit(n).
		Find(&runs).Error
	return runs, err
}
