package domain

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskState represents the lifecycle state of a download task
type TaskState string

const (
	StateQueued         TaskState = "queued"
	StateDownloading    TaskState = "downloading"
	StatePostProcessing TaskState = "postProcessing"
	StateCompleted      TaskState = "completed"
	StateFailed         TaskState = "failed"
	StateCancelled      TaskState = "cancelled"
)

// IsTerminal reports whether no further transitions are possible from this state
func (s TaskState) IsTerminal() bool {
	return s == StateCompleted || s == StateFailed || s == StateCancelled
}

// IsActive reports whether the state holds a concurrency slot
func (s TaskState) IsActive() bool {
	return s == StateDownloading || s == StatePostProcessing
}

// ValidateState checks if a state name is known
func ValidateState(s TaskState) bool {
	switch s {
	case StateQueued, StateDownloading, StatePostProcessing, StateCompleted, StateFailed, StateCancelled:
		return true
	}
	return false
}

// DownloadOptions is the immutable request supplied at enqueue time
type DownloadOptions struct {
	URL         string `json:"url" binding:"required"`
	FormatID    string `json:"format_id,omitempty"`
	AudioOnly   bool   `json:"audio_only"`
	AudioFormat string `json:"audio_format,omitempty"`
	OutputDir   string `json:"output_dir,omitempty"`
	Filename    string `json:"filename,omitempty"`
}

// Validate checks the options for contradictory or missing fields
func (o DownloadOptions) Validate() error {
	if strings.TrimSpace(o.URL) == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidOptions)
	}
	if o.AudioOnly && o.FormatID != "" {
		return fmt.Errorf("%w: format_id cannot be combined with audio_only", ErrInvalidOptions)
	}
	if !o.AudioOnly && o.AudioFormat != "" {
		return fmt.Errorf("%w: audio_format requires audio_only", ErrInvalidOptions)
	}
	if o.Filename != "" && strings.ContainsAny(o.Filename, `/\`) {
		return fmt.Errorf("%w: filename must not contain path separators: %s", ErrInvalidOptions, o.Filename)
	}
	return nil
}

// Progress is one throttled progress sample reported by a worker
type Progress struct {
	Percent         float64 `json:"progress_percent"`
	DownloadedBytes int64   `json:"downloaded_bytes"`
	TotalBytes      *int64  `json:"total_bytes,omitempty"`
	Speed           *string `json:"speed,omitempty"`
	ETA             *string `json:"eta,omitempty"`
}

// DownloadTask represents one media download job tracked by the task store
type DownloadTask struct {
	ID              string          `json:"id"`
	Options         DownloadOptions `json:"options"`
	Title           string          `json:"title"`
	Thumbnail       string          `json:"thumbnail,omitempty"`
	State           TaskState       `json:"state"`
	ProgressPercent float64         `json:"progress_percent"`
	DownloadedBytes int64           `json:"downloaded_bytes"`
	TotalBytes      *int64          `json:"total_bytes"`
	Speed           *string         `json:"speed"`
	ETA             *string         `json:"eta"`
	OutputPath      string          `json:"output_path,omitempty"`
	Error           string          `json:"error,omitempty"`
	// OutputBase is the extension-less target path reserved at enqueue time
	OutputBase  string     `json:"output_base"`
	CreatedAt   time.Time  `json:"created_at"`
	CompletedAt *time.Time `json:"completed_at"`
}

// NewDownloadTask creates a new queued task
func NewDownloadTask(options DownloadOptions, title, thumbnail string) *DownloadTask {
	return &DownloadTask{
		ID:        uuid.New().String(),
		Options:   options,
		Title:     title,
		Thumbnail: thumbnail,
		State:     StateQueued,
		CreatedAt: time.Now(),
	}
}

// MarkDownloading marks the task as promoted into execution
func (t *DownloadTask) MarkDownloading() {
	t.State = StateDownloading
}

// MarkPostProcessing marks the task as running the secondary tool
func (t *DownloadTask) MarkPostProcessing() {
	t.State = StatePostProcessing
}

// MarkCompleted marks the task as completed and pins progress at 100
func (t *DownloadTask) MarkCompleted(outputPath string) {
	t.State = StateCompleted
	t.OutputPath = outputPath
	t.Error = ""
	t.ProgressPercent = 100.0
	t.Speed = nil
	t.ETA = nil
	now := time.Now()
	t.CompletedAt = &now
}

// MarkFailed marks the task as failed, progress stays frozen
func (t *DownloadTask) MarkFailed(err error) {
	t.State = StateFailed
	t.OutputPath = ""
	t.Error = err.Error()
	t.Speed = nil
	t.ETA = nil
	now := time.Now()
	t.CompletedAt = &now
}

// MarkCancelled marks the task as cancelled, progress stays frozen
func (t *DownloadTask) MarkCancelled() {
	t.State = StateCancelled
	t.OutputPath = ""
	t.Error = ""
	t.Speed = nil
	t.ETA = nil
	now := time.Now()
	t.CompletedAt = &now
}

// ApplyProgress merges a progress sample. Percent never moves backward.
func (t *DownloadTask) ApplyProgress(p Progress) {
	if p.Percent > t.ProgressPercent {
		t.ProgressPercent = p.Percent
	}
	if t.ProgressPercent > 100 {
		t.ProgressPercent = 100
	}
	if p.DownloadedBytes > 0 {
		t.DownloadedBytes = p.DownloadedBytes
	}
	if p.TotalBytes != nil {
		total := *p.TotalBytes
		t.TotalBytes = &total
	}
	t.Speed = p.Speed
	t.ETA = p.ETA
}

// IsTerminal checks if the task is in a terminal state
func (t *DownloadTask) IsTerminal() bool {
	return t.State.IsTerminal()
}

// Clone returns a deep copy safe to hand out of the store
func (t *DownloadTask) Clone() *DownloadTask {
	c := *t
	if t.TotalBytes != nil {
		v := *t.TotalBytes
		c.TotalBytes = &v
	}
	if t.Speed != nil {
		v := *t.Speed
		c.Speed = &v
	}
	if t.ETA != nil {
		v := *t.ETA
		c.ETA = &v
	}
	if t.CompletedAt != nil {
		v := *t.CompletedAt
		c.CompletedAt = &v
	}
	return &c
}

// DownloadQueueState is a consistent point-in-time view of the queue
type DownloadQueueState struct {
	Tasks           []*DownloadTask `json:"tasks"`
	ActiveCount     int             `json:"active_count"`
	QueuedCount     int             `json:"queued_count"`
	CompletedCount  int             `json:"completed_count"`
	MaxConcurrent   int             `json:"max_concurrent"`
	YTDLPAvailable  bool            `json:"ytdlp_available"`
	FFmpegAvailable bool            `json:"ffmpeg_available"`
	YTDLPVersion    *string         `json:"ytdlp_version"`
}
