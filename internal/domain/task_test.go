package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewDownloadTask(t *testing.T) {
	opts := DownloadOptions{URL: "https://example.com/watch?v=1", FormatID: "22"}

	task := NewDownloadTask(opts, "Example", "https://example.com/thumb.jpg")

	assert.NotEmpty(t, task.ID)
	assert.Equal(t, opts, task.Options)
	assert.Equal(t, "Example", task.Title)
	assert.Equal(t, StateQueued, task.State)
	assert.Equal(t, 0.0, task.ProgressPercent)
	assert.Nil(t, task.TotalBytes)
	assert.Nil(t, task.CompletedAt)
	assert.False(t, task.CreatedAt.IsZero())
}

func TestNewDownloadTask_UniqueIDs(t *testing.T) {
	a := NewDownloadTask(DownloadOptions{URL: "u"}, "a", "")
	b := NewDownloadTask(DownloadOptions{URL: "u"}, "b", "")
	assert.NotEqual(t, a.ID, b.ID)
}

func TestTaskState_Predicates(t *testing.T) {
	tests := []struct {
		state    TaskState
		terminal bool
		active   bool
	}{
		{StateQueued, false, false},
		{StateDownloading, false, true},
		{StatePostProcessing, false, true},
		{StateCompleted, true, false},
		{StateFailed, true, false},
		{StateCancelled, true, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.state), func(t *testing.T) {
			assert.Equal(t, tt.terminal, tt.state.IsTerminal())
			assert.Equal(t, tt.active, tt.state.IsActive())
			assert.True(t, ValidateState(tt.state))
		})
	}

	assert.False(t, ValidateState("paused"))
}

func TestDownloadOptions_Validate(t *testing.T) {
	tests := []struct {
		name    string
		opts    DownloadOptions
		wantErr bool
	}{
		{"format only", DownloadOptions{URL: "u", FormatID: "22"}, false},
		{"audio only", DownloadOptions{URL: "u", AudioOnly: true, AudioFormat: "mp3"}, false},
		{"audio only default format", DownloadOptions{URL: "u", AudioOnly: true}, false},
		{"missing url", DownloadOptions{URL: "  "}, true},
		{"audio with format id", DownloadOptions{URL: "u", AudioOnly: true, FormatID: "22"}, true},
		{"audio format without audio only", DownloadOptions{URL: "u", AudioFormat: "mp3"}, true},
		{"filename with separator", DownloadOptions{URL: "u", Filename: "a/b"}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.opts.Validate()
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrInvalidOptions)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestDownloadTask_MarkCompleted(t *testing.T) {
	task := NewDownloadTask(DownloadOptions{URL: "u"}, "t", "")
	task.MarkDownloading()
	task.ApplyProgress(Progress{Percent: 42})

	task.MarkCompleted("/out/t.mp4")

	assert.Equal(t, StateCompleted, task.State)
	assert.Equal(t, "/out/t.mp4", task.OutputPath)
	assert.Empty(t, task.Error)
	assert.Equal(t, 100.0, task.ProgressPercent)
	assert.NotNil(t, task.CompletedAt)
}

func TestDownloadTask_MarkFailedFreezesProgress(t *testing.T) {
	task := NewDownloadTask(DownloadOptions{URL: "u"}, "t", "")
	task.MarkDownloading()
	task.ApplyProgress(Progress{Percent: 37.5})

	task.MarkFailed(errors.New("exit status 1"))

	assert.Equal(t, StateFailed, task.State)
	assert.Equal(t, "exit status 1", task.Error)
	assert.Empty(t, task.OutputPath)
	assert.Equal(t, 37.5, task.ProgressPercent)
	assert.NotNil(t, task.CompletedAt)
}

func TestDownloadTask_MarkCancelled(t *testing.T) {
	task := NewDownloadTask(DownloadOptions{URL: "u"}, "t", "")
	task.ApplyProgress(Progress{Percent: 10})

	task.MarkCancelled()

	assert.Equal(t, StateCancelled, task.State)
	assert.Empty(t, task.Error)
	assert.Empty(t, task.OutputPath)
	assert.Equal(t, 10.0, task.ProgressPercent)
	assert.True(t, task.IsTerminal())
}

func TestDownloadTask_ApplyProgressNeverDecreases(t *testing.T) {
	task := NewDownloadTask(DownloadOptions{URL: "u"}, "t", "")
	total := int64(1000)
	speed := "1.00MiB/s"

	task.ApplyProgress(Progress{Percent: 50, DownloadedBytes: 500, TotalBytes: &total, Speed: &speed})
	task.ApplyProgress(Progress{Percent: 20, DownloadedBytes: 200})

	assert.Equal(t, 50.0, task.ProgressPercent)
	assert.Equal(t, int64(200), task.DownloadedBytes)
	require.NotNil(t, task.TotalBytes)
	assert.Equal(t, int64(1000), *task.TotalBytes)
	assert.Nil(t, task.Speed)

	task.ApplyProgress(Progress{Percent: 250})
	assert.Equal(t, 100.0, task.ProgressPercent)
}

func TestDownloadTask_CloneIsDeep(t *testing.T) {
	task := NewDownloadTask(DownloadOptions{URL: "u"}, "t", "")
	total := int64(10)
	task.ApplyProgress(Progress{TotalBytes: &total})

	clone := task.Clone()
	*clone.TotalBytes = 99
	clone.Title = "changed"

	assert.Equal(t, int64(10), *task.TotalBytes)
	assert.Equal(t, "t", task.Title)
}
