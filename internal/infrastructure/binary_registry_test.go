package infrastructure

import (
	"archive/tar"
	"archive/zip"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"

	"github.com/yourusername/mediaq-go/internal/domain"
)

const (
	fakeYTDLPBinary  = "#!/bin/sh\necho 2024.01.01\n"
	fakeFFmpegBinary = "#!/bin/sh\necho 'ffmpeg version 6.1-test Copyright (c) 2000-2023 the FFmpeg developers'\n"
	fakeFFprobe      = "#!/bin/sh\nexit 0\n"
)

func sha256Hex(b []byte) string {
	sum := sha256.Sum256(b)
	return hex.EncodeToString(sum[:])
}

// releaseServer serves named artifacts; missing paths are 404
type releaseServer struct {
	*httptest.Server
	mu    sync.Mutex
	files map[string][]byte
	// gate, when set, blocks artifact responses until closed
	gate    chan struct{}
	reached chan struct{}
}

func newReleaseServer(t *testing.T) *releaseServer {
	rs := &releaseServer{files: make(map[string][]byte), reached: make(chan struct{}, 8)}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rs.mu.Lock()
		body, ok := rs.files[r.URL.Path]
		gate := rs.gate
		rs.mu.Unlock()
		if !ok {
			http.NotFound(w, r)
			return
		}
		if gate != nil && filepath.Ext(r.URL.Path) != ".sums" {
			rs.reached <- struct{}{}
			<-gate
		}
		_, _ = w.Write(body)
	}))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *releaseServer) serve(path string, body []byte) {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.files[path] = body
}

// hold makes artifact downloads block until the returned channel is closed
func (rs *releaseServer) hold() chan struct{} {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	rs.gate = make(chan struct{})
	return rs.gate
}

func newTestRegistry(t *testing.T, cfg *domain.BinariesConfig, publisher domain.EventPublisher) *BinaryRegistry {
	t.Helper()
	if cfg.InstallDir == "" {
		cfg.InstallDir = t.TempDir()
	}
	if cfg.DownloadTimeout == 0 {
		cfg.DownloadTimeout = 10 * time.Second
	}
	r := NewBinaryRegistry(cfg, publisher, nil, nil)
	r.lookPath = func(string) (string, error) { return "", exec.ErrNotFound }
	return r
}

func dirNames(t *testing.T, dir string) []string {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	names := make([]string, 0, len(entries))
	for _, e := range entries {
		names = append(names, e.Name())
	}
	return names
}

func TestBinaryRegistry_InstallYTDLP(t *testing.T) {
	srv := newReleaseServer(t)
	body := []byte(fakeYTDLPBinary)
	srv.serve("/tools/yt-dlp", body)
	srv.serve("/tools/yt-dlp.sums", []byte(sha256Hex(body)+"  yt-dlp\nffff  other\n"))

	events := &eventRecorder{}
	cfg := &domain.BinariesConfig{
		YTDLPReleaseURL:  srv.URL + "/tools/yt-dlp",
		YTDLPChecksumURL: srv.URL + "/tools/yt-dlp.sums",
	}
	registry := newTestRegistry(t, cfg, events)
	requireShell(t)

	_, err := registry.Path(domain.ToolYTDLP)
	require.ErrorIs(t, err, domain.ErrBinaryMissing)

	require.NoError(t, registry.Install(context.Background(), domain.ToolYTDLP))

	status := registry.CachedStatus().YTDLP
	assert.True(t, status.Installed)
	assert.Equal(t, domain.InstallInstalled, status.State)
	require.NotNil(t, status.Version)
	assert.Equal(t, "2024.01.01", *status.Version)

	assert.Equal(t, []string{"yt-dlp"}, dirNames(t, cfg.InstallDir), "exactly one executable and no temp files")
	path, err := registry.Path(domain.ToolYTDLP)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(cfg.InstallDir, "yt-dlp"), path)
	assert.True(t, isExecutable(path))

	var installEvents []domain.Event
	for _, e := range events.all() {
		if e.Install != nil {
			installEvents = append(installEvents, e)
		}
	}
	require.GreaterOrEqual(t, len(installEvents), 2)
	last := installEvents[len(installEvents)-1].Install
	assert.Equal(t, domain.ToolYTDLP, last.Tool)
	assert.Equal(t, int64(len(body)), last.DownloadedBytes)

	// CheckBinaries sees the managed install again from disk
	fresh := newTestRegistry(t, &domain.BinariesConfig{InstallDir: cfg.InstallDir}, nil)
	checked := fresh.CheckBinaries(context.Background())
	assert.True(t, checked.YTDLP.Installed)
	assert.False(t, checked.FFmpeg.Installed)
	assert.Equal(t, domain.InstallAbsent, checked.FFmpeg.State)
}

func TestBinaryRegistry_ChecksumMismatch(t *testing.T) {
	srv := newReleaseServer(t)
	srv.serve("/tools/yt-dlp", []byte(fakeYTDLPBinary))
	srv.serve("/tools/yt-dlp.sums", []byte(sha256Hex([]byte("something else"))+"  yt-dlp\n"))

	cfg := &domain.BinariesConfig{
		YTDLPReleaseURL:  srv.URL + "/tools/yt-dlp",
		YTDLPChecksumURL: srv.URL + "/tools/yt-dlp.sums",
	}
	registry := newTestRegistry(t, cfg, nil)

	err := registry.Install(context.Background(), domain.ToolYTDLP)
	var installErr *domain.InstallError
	require.ErrorAs(t, err, &installErr)
	assert.Contains(t, installErr.Reason, "checksum mismatch")

	assert.Empty(t, dirNames(t, cfg.InstallDir))
	status := registry.CachedStatus().YTDLP
	assert.False(t, status.Installed)
	assert.Equal(t, domain.InstallAbsent, status.State)
}

func TestBinaryRegistry_DownloadFailure(t *testing.T) {
	srv := newReleaseServer(t)
	cfg := &domain.BinariesConfig{YTDLPReleaseURL: srv.URL + "/missing/yt-dlp"}
	registry := newTestRegistry(t, cfg, nil)

	err := registry.Install(context.Background(), domain.ToolYTDLP)
	var installErr *domain.InstallError
	require.ErrorAs(t, err, &installErr)
	assert.Equal(t, "download failed", installErr.Reason)
	assert.Empty(t, dirNames(t, cfg.InstallDir))
}

func TestBinaryRegistry_MissingChecksumListStillInstalls(t *testing.T) {
	srv := newReleaseServer(t)
	srv.serve("/tools/yt-dlp", []byte(fakeYTDLPBinary))

	cfg := &domain.BinariesConfig{
		YTDLPReleaseURL:  srv.URL + "/tools/yt-dlp",
		YTDLPChecksumURL: srv.URL + "/tools/absent.sums",
	}
	registry := newTestRegistry(t, cfg, nil)
	requireShell(t)

	require.NoError(t, registry.Install(context.Background(), domain.ToolYTDLP))
	assert.Equal(t, []string{"yt-dlp"}, dirNames(t, cfg.InstallDir))
}

func TestBinaryRegistry_ConcurrentInstallRejected(t *testing.T) {
	srv := newReleaseServer(t)
	srv.serve("/tools/yt-dlp", []byte(fakeYTDLPBinary))
	gate := srv.hold()

	cfg := &domain.BinariesConfig{YTDLPReleaseURL: srv.URL + "/tools/yt-dlp"}
	registry := newTestRegistry(t, cfg, nil)
	requireShell(t)

	first := make(chan error, 1)
	go func() { first <- registry.Install(context.Background(), domain.ToolYTDLP) }()

	select {
	case <-srv.reached:
	case <-time.After(5 * time.Second):
		t.Fatal("first install never reached the server")
	}

	assert.Equal(t, domain.InstallInstalling, registry.CachedStatus().YTDLP.State)
	err := registry.Install(context.Background(), domain.ToolYTDLP)
	assert.True(t, errors.Is(err, domain.ErrInstallInProgress), "got %v", err)

	close(gate)
	require.NoError(t, <-first)
	assert.Equal(t, domain.InstallInstalled, registry.CachedStatus().YTDLP.State)
}

func TestBinaryRegistry_UnknownTool(t *testing.T) {
	registry := newTestRegistry(t, &domain.BinariesConfig{}, nil)
	assert.ErrorIs(t, registry.Install(context.Background(), domain.Tool("aria2c")), domain.ErrUnknownTool)
}

func tarXZArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	xw, err := xz.NewWriter(&buf)
	require.NoError(t, err)
	tw := tar.NewWriter(xw)
	require.NoError(t, tw.WriteHeader(&tar.Header{Name: "ffmpeg-master/bin/", Typeflag: tar.TypeDir, Mode: 0755}))
	for name, content := range files {
		require.NoError(t, tw.WriteHeader(&tar.Header{
			Name:     "ffmpeg-master/bin/" + name,
			Typeflag: tar.TypeReg,
			Mode:     0755,
			Size:     int64(len(content)),
		}))
		_, err := tw.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, tw.Close())
	require.NoError(t, xw.Close())
	return buf.Bytes()
}

func zipArchive(t *testing.T, files map[string]string) []byte {
	t.Helper()
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	for name, content := range files {
		w, err := zw.Create(name)
		require.NoError(t, err)
		_, err = w.Write([]byte(content))
		require.NoError(t, err)
	}
	require.NoError(t, zw.Close())
	return buf.Bytes()
}

func TestBinaryRegistry_InstallFFmpegTarXZ(t *testing.T) {
	srv := newReleaseServer(t)
	archive := tarXZArchive(t, map[string]string{
		"ffmpeg":  fakeFFmpegBinary,
		"ffprobe": fakeFFprobe,
		"ffplay":  fakeFFprobe,
	})
	srv.serve("/builds/ffmpeg-linux64.tar.xz", archive)
	srv.serve("/builds/checksums.sums", []byte(sha256Hex(archive)+"  ffmpeg-linux64.tar.xz\n"))

	cfg := &domain.BinariesConfig{
		FFmpegReleaseURL:  srv.URL + "/builds/ffmpeg-linux64.tar.xz",
		FFmpegChecksumURL: srv.URL + "/builds/checksums.sums",
	}
	registry := newTestRegistry(t, cfg, nil)
	requireShell(t)

	require.NoError(t, registry.Install(context.Background(), domain.ToolFFmpeg))

	assert.ElementsMatch(t, []string{"ffmpeg", "ffprobe"}, dirNames(t, cfg.InstallDir))
	status := registry.CachedStatus().FFmpeg
	assert.True(t, status.Installed)
	require.NotNil(t, status.Version)
	assert.Equal(t, "6.1-test", *status.Version)
}

func TestBinaryRegistry_InstallFFmpegZip(t *testing.T) {
	srv := newReleaseServer(t)
	srv.serve("/ffmpeg.zip", zipArchive(t, map[string]string{"ffmpeg": fakeFFmpegBinary, "README.txt": "hi"}))

	cfg := &domain.BinariesConfig{FFmpegReleaseURL: srv.URL + "/ffmpeg.zip"}
	registry := newTestRegistry(t, cfg, nil)
	requireShell(t)

	require.NoError(t, registry.Install(context.Background(), domain.ToolFFmpeg))
	assert.Equal(t, []string{"ffmpeg"}, dirNames(t, cfg.InstallDir))
}

func TestBinaryRegistry_ArchiveWithoutPrimary(t *testing.T) {
	srv := newReleaseServer(t)
	srv.serve("/ffmpeg.zip", zipArchive(t, map[string]string{"ffprobe": fakeFFprobe}))

	cfg := &domain.BinariesConfig{FFmpegReleaseURL: srv.URL + "/ffmpeg.zip"}
	registry := newTestRegistry(t, cfg, nil)

	err := registry.Install(context.Background(), domain.ToolFFmpeg)
	var installErr *domain.InstallError
	require.ErrorAs(t, err, &installErr)
	assert.Equal(t, "extract failed", installErr.Reason)
	assert.Empty(t, dirNames(t, cfg.InstallDir))
}

func TestParseVersion(t *testing.T) {
	v, err := parseVersion(domain.ToolYTDLP, "2024.03.10\n")
	require.NoError(t, err)
	assert.Equal(t, "2024.03.10", v)

	v, err = parseVersion(domain.ToolFFmpeg, "ffmpeg version n6.1.1-1-g61b88b4dda-20240201 Copyright (c) 2000-2024\nbuilt with gcc\n")
	require.NoError(t, err)
	assert.Equal(t, "n6.1.1-1-g61b88b4dda-20240201", v)

	_, err = parseVersion(domain.ToolFFmpeg, "garbage")
	assert.Error(t, err)
	_, err = parseVersion(domain.ToolYTDLP, "  \n")
	assert.Error(t, err)
}
