package logger

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestMultiLogger_WritesCategoryFiles(t *testing.T) {
	dir := t.TempDir()

	ml, err := NewMultiLogger(MultiLoggerConfig{Level: "info", LogsDir: dir})
	require.NoError(t, err)

	ml.LogQueueEvent("task_enqueued", zap.String("task_id", "abc"))
	ml.LogInstallEvent("install_started", zap.String("tool", "yt-dlp"))
	ml.LogAppError("boom")
	require.NoError(t, ml.Close())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	assert.Len(t, names, 3)

	for _, prefix := range []string{"queue-", "install-", "error-"} {
		matches, err := filepath.Glob(filepath.Join(dir, prefix+"*.log"))
		require.NoError(t, err)
		require.Len(t, matches, 1)
		data, err := os.ReadFile(matches[0])
		require.NoError(t, err)
		assert.NotEmpty(t, strings.TrimSpace(string(data)))
	}
}

func TestMultiLogger_RequiresDir(t *testing.T) {
	_, err := NewMultiLogger(MultiLoggerConfig{Level: "info"})
	assert.Error(t, err)
}

func TestMultiLogger_NilSafe(t *testing.T) {
	var ml *MultiLogger
	ml.LogQueueEvent("ignored")
	ml.LogAppError("ignored")
	assert.Empty(t, ml.DownloadLogPath())
	assert.NoError(t, ml.Close())
}

func TestNew_FileOutput(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "app.log")

	l, err := New(Config{Level: "debug", Format: "json", OutputPath: path})
	require.NoError(t, err)
	l.Info("hello")
	_ = l.Sync()

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "hello")
}
