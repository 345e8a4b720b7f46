package infrastructure

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/mediaq-go/internal/domain"
)

// YTDLPResolver probes URLs with yt-dlp's JSON dump mode
type YTDLPResolver struct {
	binaries domain.BinaryLocator
	timeout  time.Duration
	logger   *zap.Logger
}

// NewYTDLPResolver creates a new metadata resolver
func NewYTDLPResolver(binaries domain.BinaryLocator, config *domain.ResolverConfig, log *zap.Logger) *YTDLPResolver {
	if log == nil {
		log = zap.NewNop()
	}
	return &YTDLPResolver{
		binaries: binaries,
		timeout:  config.Timeout,
		logger:   log,
	}
}

// Resolve probes url and returns its normalized metadata.
// Every failure is a *domain.ResolutionError.
func (r *YTDLPResolver) Resolve(ctx context.Context, url string) (*domain.MediaMetadata, error) {
	url = strings.TrimSpace(url)
	if url == "" {
		return nil, &domain.ResolutionError{Reason: "url is empty"}
	}

	ytdlp, err := r.binaries.Path(domain.ToolYTDLP)
	if err != nil {
		return nil, &domain.ResolutionError{URL: url, Reason: "yt-dlp is not installed", Err: err}
	}

	ctx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	args := []string{"--dump-single-json", "--no-playlist", "--no-warnings", "--skip-download", "--", url}
	cmd := exec.CommandContext(ctx, ytdlp, args...)
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessTree(cmd) }
	cmd.WaitDelay = processWaitDelay

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	start := time.Now()
	err = cmd.Run()
	r.logger.Debug("Metadata probe finished",
		zap.String("url", url),
		zap.Duration("elapsed", time.Since(start)),
		zap.Error(err))

	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, &domain.ResolutionError{URL: url, Reason: fmt.Sprintf("probe timed out after %s", r.timeout), Err: ctx.Err()}
		}
		if ctx.Err() != nil {
			return nil, &domain.ResolutionError{URL: url, Reason: "probe cancelled", Err: ctx.Err()}
		}
		return nil, &domain.ResolutionError{URL: url, Reason: probeFailureReason(stderr.String(), err), Err: err}
	}

	metadata, err := ParseMetadata(stdout.Bytes())
	if err != nil {
		return nil, &domain.ResolutionError{URL: url, Reason: "failed to parse probe output", Err: err}
	}
	if metadata.URL == "" {
		metadata.URL = url
	}
	return metadata, nil
}

// probeFailureReason extracts the most useful line from yt-dlp's stderr
func probeFailureReason(stderr string, err error) string {
	var lastError string
	for _, line := range strings.Split(stderr, "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "ERROR:") {
			lastError = strings.TrimSpace(strings.TrimPrefix(line, "ERROR:"))
		}
	}
	switch {
	case strings.Contains(lastError, "Unsupported URL"):
		return "unsupported URL: " + lastError
	case lastError != "":
		return lastError
	}
	return fmt.Sprintf("yt-dlp failed: %v", err)
}

// probeJSON mirrors the subset of yt-dlp's info dict we use
type probeJSON struct {
	Title       string        `json:"title"`
	WebpageURL  string        `json:"webpage_url"`
	OriginalURL string        `json:"original_url"`
	Thumbnail   *string       `json:"thumbnail"`
	Uploader    *string       `json:"uploader"`
	Duration    *float64      `json:"duration"`
	Description *string       `json:"description"`
	Formats     []probeFormat `json:"formats"`
	// Single-format extractors report these at the top level
	FormatID string   `json:"format_id"`
	Ext      string   `json:"ext"`
	VCodec   *string  `json:"vcodec"`
	ACodec   *string  `json:"acodec"`
	Filesize *float64 `json:"filesize"`
}

type probeFormat struct {
	FormatID       string   `json:"format_id"`
	FormatNote     string   `json:"format_note"`
	Resolution     string   `json:"resolution"`
	Height         *float64 `json:"height"`
	ABR            *float64 `json:"abr"`
	Ext            string   `json:"ext"`
	Filesize       *float64 `json:"filesize"`
	FilesizeApprox *float64 `json:"filesize_approx"`
	VCodec         *string  `json:"vcodec"`
	ACodec         *string  `json:"acodec"`
}

// ParseMetadata converts yt-dlp --dump-single-json output into MediaMetadata
func ParseMetadata(data []byte) (*domain.MediaMetadata, error) {
	var probe probeJSON
	if err := json.Unmarshal(bytes.TrimSpace(data), &probe); err != nil {
		return nil, fmt.Errorf("invalid probe json: %w", err)
	}
	if probe.Title == "" && len(probe.Formats) == 0 && probe.FormatID == "" {
		return nil, fmt.Errorf("probe output has no title or formats")
	}

	metadata := &domain.MediaMetadata{
		Title:       probe.Title,
		URL:         probe.WebpageURL,
		Thumbnail:   nonEmpty(probe.Thumbnail),
		Uploader:    nonEmpty(probe.Uploader),
		Duration:    probe.Duration,
		Description: nonEmpty(probe.Description),
		Formats:     make([]domain.Format, 0, len(probe.Formats)),
	}
	if metadata.URL == "" {
		metadata.URL = probe.OriginalURL
	}

	formats := probe.Formats
	if len(formats) == 0 && probe.FormatID != "" {
		formats = []probeFormat{{
			FormatID: probe.FormatID,
			Ext:      probe.Ext,
			VCodec:   probe.VCodec,
			ACodec:   probe.ACodec,
			Filesize: probe.Filesize,
		}}
	}

	for _, f := range formats {
		if f.FormatID == "" {
			continue
		}
		hasVideo := codecPresent(f.VCodec)
		hasAudio := codecPresent(f.ACodec)
		// yt-dlp omits codecs for some extractors; treat unknown as muxed
		if f.VCodec == nil && f.ACodec == nil {
			hasVideo, hasAudio = true, true
		}
		metadata.Formats = append(metadata.Formats, domain.Format{
			FormatID: f.FormatID,
			Quality:  qualityLabel(f, hasVideo),
			Ext:      f.Ext,
			Filesize: formatSize(f),
			HasVideo: hasVideo,
			HasAudio: hasAudio,
		})
	}

	return metadata, nil
}

func codecPresent(codec *string) bool {
	return codec != nil && *codec != "" && *codec != "none"
}

func qualityLabel(f probeFormat, hasVideo bool) string {
	switch {
	case f.FormatNote != "":
		return f.FormatNote
	case hasVideo && f.Height != nil && *f.Height > 0:
		return fmt.Sprintf("%dp", int(*f.Height))
	case f.Resolution != "" && f.Resolution != "audio only":
		return f.Resolution
	case f.ABR != nil && *f.ABR > 0:
		return fmt.Sprintf("%dk", int(*f.ABR))
	case f.Resolution != "":
		return f.Resolution
	}
	return f.FormatID
}

func formatSize(f probeFormat) *int64 {
	size := f.Filesize
	if size == nil || *size <= 0 {
		size = f.FilesizeApprox
	}
	if size == nil || *size <= 0 {
		return nil
	}
	n := int64(*size)
	return &n
}

func nonEmpty(s *string) *string {
	if s == nil || strings.TrimSpace(*s) == "" {
		return nil
	}
	return s
}
