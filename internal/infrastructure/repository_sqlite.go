package infrastructure

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/yourusername/mediaq-go/internal/domain"
)

// taskRecord is the persisted form of a terminal DownloadTask
type taskRecord struct {
	ID              string           `gorm:"primaryKey"`
	URL             string           `gorm:"not null"`
	FormatID        string
	AudioOnly       bool
	AudioFormat     string
	OutputDir       string
	Filename        string
	Title           string
	Thumbnail       string
	State           domain.TaskState `gorm:"index;not null"`
	ProgressPercent float64
	DownloadedBytes int64
	TotalBytes      *int64
	OutputPath      string
	ErrorMessage    string
	OutputBase      string
	CreatedAt       time.Time `gorm:"index"`
	CompletedAt     *time.Time
}

// TableName pins the table name independent of the struct name
func (taskRecord) TableName() string {
	return "task_history"
}

func toRecord(t *domain.DownloadTask) *taskRecord {
	return &taskRecord{
		ID:              t.ID,
		URL:             t.Options.URL,
		FormatID:        t.Options.FormatID,
		AudioOnly:       t.Options.AudioOnly,
		AudioFormat:     t.Options.AudioFormat,
		OutputDir:       t.Options.OutputDir,
		Filename:        t.Options.Filename,
		Title:           t.Title,
		Thumbnail:       t.Thumbnail,
		State:           t.State,
		ProgressPercent: t.ProgressPercent,
		DownloadedBytes: t.DownloadedBytes,
		TotalBytes:      t.TotalBytes,
		OutputPath:      t.OutputPath,
		ErrorMessage:    t.Error,
		OutputBase:      t.OutputBase,
		CreatedAt:       t.CreatedAt,
		CompletedAt:     t.CompletedAt,
	}
}

func (r *taskRecord) toTask() *domain.DownloadTask {
	return &domain.DownloadTask{
		ID: r.ID,
		Options: domain.DownloadOptions{
			URL:         r.URL,
			FormatID:    r.FormatID,
			AudioOnly:   r.AudioOnly,
			AudioFormat: r.AudioFormat,
			OutputDir:   r.OutputDir,
			Filename:    r.Filename,
		},
		Title:           r.Title,
		Thumbnail:       r.Thumbnail,
		State:           r.State,
		ProgressPercent: r.ProgressPercent,
		DownloadedBytes: r.DownloadedBytes,
		TotalBytes:      r.TotalBytes,
		OutputPath:      r.OutputPath,
		Error:           r.ErrorMessage,
		OutputBase:      r.OutputBase,
		CreatedAt:       r.CreatedAt,
		CompletedAt:     r.CompletedAt,
	}
}

// SQLiteHistoryRepository implements HistoryRepository using SQLite
type SQLiteHistoryRepository struct {
	db *gorm.DB
}

// NewSQLiteHistoryRepository opens (and migrates) the history database
func NewSQLiteHistoryRepository(dbPath string) (*SQLiteHistoryRepository, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := gorm.Open(sqlite.Open(dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.AutoMigrate(&taskRecord{}); err != nil {
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return &SQLiteHistoryRepository{db: db}, nil
}

// Save inserts or updates a terminal task
func (r *SQLiteHistoryRepository) Save(task *domain.DownloadTask) error {
	if !task.IsTerminal() {
		return &domain.InvalidStateError{TaskID: task.ID, State: task.State, Op: "persist"}
	}
	return r.db.Save(toRecord(task)).Error
}

// Delete deletes a task by ID
func (r *SQLiteHistoryRepository) Delete(id string) error {
	return r.db.Delete(&taskRecord{}, "id = ?", id).Error
}

// DeleteMany deletes the records with the given IDs
func (r *SQLiteHistoryRepository) DeleteMany(ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return r.db.Where("id IN ?", ids).Delete(&taskRecord{}).Error
}

// FindTerminal returns completed, failed and cancelled tasks in creation order
func (r *SQLiteHistoryRepository) FindTerminal() ([]*domain.DownloadTask, error) {
	var records []*taskRecord
	err := r.db.
		Where("state IN ?", []domain.TaskState{domain.StateCompleted, domain.StateFailed, domain.StateCancelled}).
		Order("created_at ASC").
		Find(&records).Error
	if err != nil {
		return nil, err
	}

	tasks := make([]*domain.DownloadTask, 0, len(records))
	for _, rec := range records {
		tasks = append(tasks, rec.toTask())
	}
	return tasks, nil
}

// Close closes the database connection
func (r *SQLiteHistoryRepository) Close() error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
