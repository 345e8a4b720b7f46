package main

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/yourusername/mediaq-go/internal/domain"
)

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 8))
	assert.Equal(t, "0123e...", truncate("0123e5f6-aaaa", 8))
	assert.Equal(t, "日本語...", truncate("日本語のタイトルです", 6))
}

func TestFormatProgress(t *testing.T) {
	total := int64(10 * 1024 * 1024)
	speed := "1.00MiB/s"
	eta := "00:05"

	active := &domain.DownloadTask{
		State:           domain.StateDownloading,
		ProgressPercent: 50,
		DownloadedBytes: 5 * 1024 * 1024,
		TotalBytes:      &total,
		Speed:           &speed,
		ETA:             &eta,
	}
	assert.Equal(t, "50.0% 5.0 MiB/10 MiB 1.00MiB/s ETA 00:05", formatProgress(active))

	assert.Equal(t, "-", formatProgress(&domain.DownloadTask{State: domain.StateQueued}))
	assert.Equal(t, "100%", formatProgress(&domain.DownloadTask{State: domain.StateCompleted}))
	assert.Equal(t, "30.0%", formatProgress(&domain.DownloadTask{State: domain.StateFailed, ProgressPercent: 30}))
}

func TestFormatEvent(t *testing.T) {
	ts := time.Date(2024, 1, 1, 12, 0, 0, 0, time.Local)

	state := domain.NewStateChangedEvent(&domain.DownloadTask{ID: "abcdef0123", State: domain.StateFailed, Error: "exit 1"})
	state.Timestamp = ts
	assert.Equal(t, "12:00:00 abcde... -> failed: exit 1", formatEvent(&state))

	total := int64(2048)
	install := domain.NewInstallEvent(domain.ToolYTDLP, 1024, &total)
	install.Timestamp = ts
	assert.Equal(t, "12:00:00 install yt-dlp 1.0 KiB / 2.0 KiB (50%)", formatEvent(&install))
}

func TestPrintMetadata(t *testing.T) {
	size := int64(3 * 1024 * 1024)
	duration := 95.0
	var buf bytes.Buffer
	printMetadata(&buf, &domain.MediaMetadata{
		Title:    "Clip",
		URL:      "https://example.com/v",
		Duration: &duration,
		Formats: []domain.Format{
			{FormatID: "251", Ext: "webm", Quality: "129k", HasAudio: true, Filesize: &size},
			{FormatID: "18", Ext: "mp4", Quality: "360p", HasVideo: true, HasAudio: true},
		},
	})

	out := buf.String()
	assert.Contains(t, out, "Duration: 1m35s")
	assert.Contains(t, out, "3.0 MiB")
	assert.Contains(t, out, "video+audio")
}

func TestWebsocketURL(t *testing.T) {
	old := serverURL
	defer func() { serverURL = old }()

	serverURL = "http://localhost:8090"
	assert.Equal(t, "ws://localhost:8090/api/v1/events", websocketURL("/api/v1/events"))
	serverURL = "https://mediaq.example"
	assert.Equal(t, "wss://mediaq.example/api/v1/events", websocketURL("/api/v1/events"))
}
