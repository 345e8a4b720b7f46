package infrastructure

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/yourusername/mediaq-go/internal/domain"
)

func TestParseOutputLine_TemplateProgress(t *testing.T) {
	line := parseOutputLine("[mq:dl] 524288|1048576|NA|1.00MiB/s|00:01| 50.0%")

	require.Equal(t, lineProgress, line.kind)
	assert.InDelta(t, 50.0, line.progress.Percent, 0.001)
	assert.Equal(t, int64(524288), line.progress.DownloadedBytes)
	require.NotNil(t, line.progress.TotalBytes)
	assert.Equal(t, int64(1048576), *line.progress.TotalBytes)
	require.NotNil(t, line.progress.Speed)
	assert.Equal(t, "1.00MiB/s", *line.progress.Speed)
	require.NotNil(t, line.progress.ETA)
	assert.Equal(t, "00:01", *line.progress.ETA)
}

func TestParseOutputLine_TemplateEstimateAndPlaceholders(t *testing.T) {
	line := parseOutputLine("[mq:dl] 100|NA|400.0|Unknown speed|Unknown ETA| 25.0%")

	require.Equal(t, lineProgress, line.kind)
	assert.InDelta(t, 25.0, line.progress.Percent, 0.001)
	require.NotNil(t, line.progress.TotalBytes)
	assert.Equal(t, int64(400), *line.progress.TotalBytes)
	assert.Nil(t, line.progress.Speed)
	assert.Nil(t, line.progress.ETA)
}

func TestParseOutputLine_TemplatePercentOnly(t *testing.T) {
	line := parseOutputLine("[mq:dl] NA|NA|NA|NA|NA|\x1b[0;94m 12.5%\x1b[0m")

	require.Equal(t, lineProgress, line.kind)
	assert.InDelta(t, 12.5, line.progress.Percent, 0.001)
	assert.Nil(t, line.progress.TotalBytes)
}

func TestParseOutputLine_TextProgress(t *testing.T) {
	line := parseOutputLine("[download]  45.0% of ~  10.00MiB at  1.23MiB/s ETA 00:12")

	require.Equal(t, lineProgress, line.kind)
	assert.InDelta(t, 45.0, line.progress.Percent, 0.001)
	require.NotNil(t, line.progress.TotalBytes)
	assert.Equal(t, int64(10*1024*1024), *line.progress.TotalBytes)
	assert.Equal(t, "1.23MiB/s", *line.progress.Speed)
	assert.Equal(t, "00:12", *line.progress.ETA)
}

func TestParseOutputLine_Destinations(t *testing.T) {
	tests := []struct {
		name        string
		line        string
		path        string
		final       bool
		postProcess bool
	}{
		{"download destination", "[download] Destination: /out/clip.f137.mp4", "/out/clip.f137.mp4", false, false},
		{"already downloaded", "[download] /out/clip.mp4 has already been downloaded", "/out/clip.mp4", false, false},
		{"merger", `[Merger] Merging formats into "/out/clip.mkv"`, "/out/clip.mkv", true, true},
		{"extract audio", "[ExtractAudio] Destination: /out/song.mp3", "/out/song.mp3", true, true},
		{"move files", `[MoveFiles] Moving file "/tmp/a.mp4" to "/out/a.mp4"`, "/out/a.mp4", true, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := parseOutputLine(tt.line)
			require.Equal(t, lineDestination, line.kind)
			assert.Equal(t, tt.path, line.path)
			assert.Equal(t, tt.final, line.final)
			assert.Equal(t, tt.postProcess, line.postProcess)
		})
	}
}

func TestParseOutputLine_PostProcessAndErrors(t *testing.T) {
	pp := parseOutputLine("[mq:pp] started|Merger")
	assert.Equal(t, linePostProcess, pp.kind)
	assert.True(t, pp.postProcess)

	for _, name := range []string{"MoveFilesAfterDownload", "FFmpegMetadata", ""} {
		bookkeeping := parseOutputLine("[mq:pp] started|" + name)
		assert.Equal(t, linePostProcess, bookkeeping.kind)
		assert.False(t, bookkeeping.postProcess, name)
	}

	hookFixup := parseOutputLine("[mq:pp] started|FixupM4a")
	assert.True(t, hookFixup.postProcess)

	fixup := parseOutputLine("[FixupM3u8] Fixing MPEG-TS in MP4 container of \"/out/a.mp4\"")
	assert.True(t, fixup.postProcess)

	errLine := parseOutputLine("ERROR: [generic] Unsupported URL: https://example.com")
	assert.Equal(t, lineError, errLine.kind)

	other := parseOutputLine("[youtube] abc: Downloading webpage")
	assert.Equal(t, lineOther, other.kind)
	assert.False(t, other.postProcess)
}

func TestParseSize(t *testing.T) {
	n, ok := parseSize("1.5KiB")
	require.True(t, ok)
	assert.Equal(t, 1536.0, n)

	n, ok = parseSize("~2MB")
	require.True(t, ok)
	assert.Equal(t, 2e6, n)

	_, ok = parseSize("Unknown")
	assert.False(t, ok)
}

func TestProgressThrottle(t *testing.T) {
	throttle := newProgressThrottle(time.Hour)

	assert.True(t, throttle.allow(domain.Progress{Percent: 1}))
	assert.False(t, throttle.allow(domain.Progress{Percent: 2}))
	assert.False(t, throttle.allow(domain.Progress{Percent: 3}))

	held, ok := throttle.pending()
	require.True(t, ok)
	assert.Equal(t, 3.0, held.Percent)
	_, ok = throttle.pending()
	assert.False(t, ok)

	assert.True(t, throttle.allow(domain.Progress{Percent: 100}), "completion always passes")
}

func TestParseOutputLine_Formats(t *testing.T) {
	merged := parseOutputLine("[info] dQw4w9WgXcQ: Downloading 1 format(s): 137+140")
	require.Equal(t, lineFormats, merged.kind)
	assert.Equal(t, 2, merged.streams)

	single := parseOutputLine("[info] abc: Downloading 1 format(s): 22")
	require.Equal(t, lineFormats, single.kind)
	assert.Equal(t, 1, single.streams)
}

func TestStreamProgress_SpreadsAcrossStreams(t *testing.T) {
	total := func(n int64) *int64 { return &n }

	s := newStreamProgress()
	s.setStreams(2)

	s.begin()
	p := s.combine(domain.Progress{Percent: 50, DownloadedBytes: 500, TotalBytes: total(1000)})
	assert.InDelta(t, 25.0, p.Percent, 0.001)
	assert.Equal(t, int64(500), p.DownloadedBytes)

	p = s.combine(domain.Progress{Percent: 100, DownloadedBytes: 1000, TotalBytes: total(1000)})
	assert.InDelta(t, 50.0, p.Percent, 0.001)

	s.begin()
	p = s.combine(domain.Progress{Percent: 50, DownloadedBytes: 100, TotalBytes: total(200)})
	assert.InDelta(t, 75.0, p.Percent, 0.001)
	assert.Equal(t, int64(1100), p.DownloadedBytes)
	require.NotNil(t, p.TotalBytes)
	assert.Equal(t, int64(1200), *p.TotalBytes)

	p = s.combine(domain.Progress{Percent: 100, DownloadedBytes: 200, TotalBytes: total(200)})
	assert.InDelta(t, 100.0, p.Percent, 0.001)
}

func TestStreamProgress_SingleStreamPassesThrough(t *testing.T) {
	s := newStreamProgress()
	s.begin()

	in := domain.Progress{Percent: 40, DownloadedBytes: 40}
	assert.Equal(t, in, s.combine(in))
}
