package infrastructure

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"go.uber.org/zap"

	"github.com/yourusername/mediaq-go/internal/domain"
	"github.com/yourusername/mediaq-go/pkg/logger"
)

const versionQueryTimeout = 10 * time.Second

// BinaryRegistry tracks and installs the external tools downloads depend on
type BinaryRegistry struct {
	config      *domain.BinariesConfig
	publisher   domain.EventPublisher
	client      *http.Client
	logger      *zap.Logger
	eventLogger *logger.MultiLogger

	goos     string
	goarch   string
	lookPath func(string) (string, error)

	mu         sync.RWMutex
	status     map[domain.Tool]domain.ToolStatus
	installing map[domain.Tool]bool
}

// NewBinaryRegistry creates a registry. publisher receives install progress and may be nil.
func NewBinaryRegistry(config *domain.BinariesConfig, publisher domain.EventPublisher, log *zap.Logger, eventLogger *logger.MultiLogger) *BinaryRegistry {
	if log == nil {
		log = zap.NewNop()
	}
	r := &BinaryRegistry{
		config:      config,
		publisher:   publisher,
		client:      &http.Client{Timeout: config.DownloadTimeout},
		logger:      log,
		eventLogger: eventLogger,
		goos:        runtime.GOOS,
		goarch:      runtime.GOARCH,
		lookPath:    exec.LookPath,
		status:      make(map[domain.Tool]domain.ToolStatus),
		installing:  make(map[domain.Tool]bool),
	}
	for _, tool := range domain.Tools {
		r.status[tool] = domain.ToolStatus{State: domain.InstallAbsent}
	}
	return r
}

// managedPath is where installs land for tool
func (r *BinaryRegistry) managedPath(tool domain.Tool) string {
	return filepath.Join(r.config.InstallDir, executableName(string(tool), r.goos))
}

// locate returns the managed install if present, otherwise a PATH match
func (r *BinaryRegistry) locate(tool domain.Tool) (string, bool) {
	if p := r.managedPath(tool); isExecutable(p) {
		return p, true
	}
	if r.lookPath != nil {
		if p, err := r.lookPath(executableName(string(tool), r.goos)); err == nil {
			return p, true
		}
	}
	return "", false
}

func isExecutable(path string) bool {
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return false
	}
	return runtime.GOOS == "windows" || info.Mode().Perm()&0111 != 0
}

// queryVersion runs the tool's version flag and extracts the version string
func queryVersion(ctx context.Context, tool domain.Tool, path string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, versionQueryTimeout)
	defer cancel()

	flag := "--version"
	if tool == domain.ToolFFmpeg {
		flag = "-version"
	}
	var out bytes.Buffer
	cmd := exec.CommandContext(ctx, path, flag)
	cmd.Stdout = &out
	cmd.Stderr = &out
	if err := cmd.Run(); err != nil {
		return "", fmt.Errorf("%s %s failed: %w", path, flag, err)
	}
	return parseVersion(tool, out.String())
}

// parseVersion reads "2024.03.10" for yt-dlp and the third token of
// "ffmpeg version 6.1 Copyright ..." for ffmpeg
func parseVersion(tool domain.Tool, output string) (string, error) {
	firstLine := strings.TrimSpace(strings.SplitN(strings.TrimSpace(output), "\n", 2)[0])
	if firstLine == "" {
		return "", fmt.Errorf("empty version output")
	}
	if tool != domain.ToolFFmpeg {
		return firstLine, nil
	}
	fields := strings.Fields(firstLine)
	if len(fields) < 3 || fields[1] != "version" {
		return "", fmt.Errorf("unexpected ffmpeg version output: %q", firstLine)
	}
	return fields[2], nil
}

// probe inspects one tool on disk without touching the cache
func (r *BinaryRegistry) probe(ctx context.Context, tool domain.Tool) domain.ToolStatus {
	path, ok := r.locate(tool)
	if !ok {
		return domain.ToolStatus{State: domain.InstallAbsent}
	}
	status := domain.ToolStatus{Installed: true, Path: &path, State: domain.InstallInstalled}
	version, err := queryVersion(ctx, tool, path)
	if err != nil {
		r.logger.Warn("Failed to query tool version",
			zap.String("tool", string(tool)),
			zap.String("path", path),
			zap.Error(err))
		return status
	}
	status.Version = &version
	return status
}

// refresh probes tool and stores the result, preserving an in-flight install marker
func (r *BinaryRegistry) refresh(ctx context.Context, tool domain.Tool) domain.ToolStatus {
	status := r.probe(ctx, tool)

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.installing[tool] {
		status.State = domain.InstallInstalling
	}
	r.status[tool] = status
	return status
}

// CheckBinaries probes both tools. Absence is reported, never returned as an error.
func (r *BinaryRegistry) CheckBinaries(ctx context.Context) domain.BinaryStatus {
	return domain.BinaryStatus{
		YTDLP:  r.refresh(ctx, domain.ToolYTDLP),
		FFmpeg: r.refresh(ctx, domain.ToolFFmpeg),
	}
}

// CachedStatus returns the last probed status without running anything
func (r *BinaryRegistry) CachedStatus() domain.BinaryStatus {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return domain.BinaryStatus{
		YTDLP:  r.status[domain.ToolYTDLP],
		FFmpeg: r.status[domain.ToolFFmpeg],
	}
}

// Path returns the executable to spawn for tool. Callers resolve it per spawn,
// so an update affects only processes started after it completes.
func (r *BinaryRegistry) Path(tool domain.Tool) (string, error) {
	r.mu.RLock()
	cached := r.status[tool]
	r.mu.RUnlock()

	if cached.Path != nil && isExecutable(*cached.Path) {
		return *cached.Path, nil
	}
	if p, ok := r.locate(tool); ok {
		return p, nil
	}
	return "", fmt.Errorf("%w: %s", domain.ErrBinaryMissing, tool)
}

// Install downloads, verifies and atomically installs tool.
// A second install for the same tool while one is running fails with ErrInstallInProgress.
func (r *BinaryRegistry) Install(ctx context.Context, tool domain.Tool) error {
	if tool != domain.ToolYTDLP && tool != domain.ToolFFmpeg {
		return fmt.Errorf("%w: %s", domain.ErrUnknownTool, tool)
	}

	r.mu.Lock()
	if r.installing[tool] {
		r.mu.Unlock()
		return domain.ErrInstallInProgress
	}
	r.installing[tool] = true
	previous := r.status[tool]
	inFlight := previous
	inFlight.State = domain.InstallInstalling
	r.status[tool] = inFlight
	r.mu.Unlock()

	defer func() {
		r.mu.Lock()
		delete(r.installing, tool)
		r.mu.Unlock()
	}()

	start := time.Now()
	r.eventLogger.LogInstallEvent("install_started", zap.String("tool", string(tool)))

	size, err := r.install(ctx, tool)
	if err != nil {
		r.mu.Lock()
		r.status[tool] = previous
		r.mu.Unlock()

		var installErr *domain.InstallError
		if !errors.As(err, &installErr) {
			installErr = &domain.InstallError{Tool: tool, Reason: "install failed", Err: err}
		}
		r.eventLogger.LogInstallEvent("install_failed",
			zap.String("tool", string(tool)),
			zap.Error(installErr))
		r.eventLogger.LogAppError("Binary install failed",
			zap.String("tool", string(tool)),
			zap.Error(installErr))
		return installErr
	}

	r.mu.Lock()
	delete(r.installing, tool)
	r.mu.Unlock()
	status := r.refresh(ctx, tool)

	fields := []zap.Field{
		zap.String("tool", string(tool)),
		zap.String("size", humanize.Bytes(uint64(size))),
		zap.Duration("elapsed", time.Since(start)),
	}
	if status.Version != nil {
		fields = append(fields, zap.String("version", *status.Version))
	}
	r.eventLogger.LogInstallEvent("install_completed", fields...)
	r.logger.Info("Installed binary", fields...)
	return nil
}

// Update reinstalls tool at the latest release. Running processes keep the old binary.
func (r *BinaryRegistry) Update(ctx context.Context, tool domain.Tool) error {
	return r.Install(ctx, tool)
}

// install performs the transfer; every temp file is gone when it returns
func (r *BinaryRegistry) install(ctx context.Context, tool domain.Tool) (int64, error) {
	src, err := resolveReleaseSource(tool, r.config, r.goos, r.goarch)
	if err != nil {
		return 0, &domain.InstallError{Tool: tool, Reason: "no release for this platform", Err: err}
	}

	if err := os.MkdirAll(r.config.InstallDir, 0755); err != nil {
		return 0, &domain.InstallError{Tool: tool, Reason: "cannot create install directory", Err: err}
	}

	tmp, err := os.CreateTemp(r.config.InstallDir, ".download-*")
	if err != nil {
		return 0, &domain.InstallError{Tool: tool, Reason: "cannot create temp file", Err: err}
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	sum, size, err := downloadArtifact(ctx, r.client, src, tmp, r.publisher)
	closeErr := tmp.Close()
	if err != nil {
		return size, &domain.InstallError{Tool: tool, Reason: "download failed", Err: err}
	}
	if closeErr != nil {
		return size, &domain.InstallError{Tool: tool, Reason: "write failed", Err: closeErr}
	}

	if src.checksumURL != "" {
		expected, err := fetchExpectedChecksum(ctx, r.client, src.checksumURL, src.assetName)
		switch {
		case errors.Is(err, errChecksumUnavailable):
			r.logger.Warn("Installing without checksum verification",
				zap.String("tool", string(tool)),
				zap.Error(err))
		case expected != sum:
			return size, &domain.InstallError{
				Tool:   tool,
				Reason: fmt.Sprintf("checksum mismatch: expected %s, got %s", expected, sum),
			}
		}
	}

	if src.kind == archiveNone {
		if err := promoteExecutable(tmpPath, r.managedPath(tool)); err != nil {
			return size, &domain.InstallError{Tool: tool, Reason: "write failed", Err: err}
		}
		return size, nil
	}

	extracted, err := extractMembers(src.kind, tmpPath, r.config.InstallDir, src.members)
	if err != nil {
		return size, &domain.InstallError{Tool: tool, Reason: "extract failed", Err: err}
	}
	defer func() {
		for _, p := range extracted {
			os.Remove(p)
		}
	}()

	// Install the primary executable last so a half-finished install is never reported as present
	for _, member := range src.members[1:] {
		if p, ok := extracted[member]; ok {
			if err := promoteExecutable(p, filepath.Join(r.config.InstallDir, member)); err != nil {
				return size, &domain.InstallError{Tool: tool, Reason: "write failed", Err: err}
			}
		}
	}
	if err := promoteExecutable(extracted[src.members[0]], r.managedPath(tool)); err != nil {
		return size, &domain.InstallError{Tool: tool, Reason: "write failed", Err: err}
	}
	return size, nil
}
