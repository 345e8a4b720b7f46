package infrastructure

import (
	"fmt"
	"net/url"
	"path"
	"strings"

	"github.com/yourusername/mediaq-go/internal/domain"
)

// archiveKind describes how a release artifact is packaged
type archiveKind string

const (
	archiveNone  archiveKind = "binary"
	archiveZip   archiveKind = "zip"
	archiveTarXZ archiveKind = "tar.xz"
)

const (
	ytdlpReleaseBase   = "https://github.com/yt-dlp/yt-dlp/releases/latest/download/"
	ffmpegBuildsBase   = "https://github.com/yt-dlp/FFmpeg-Builds/releases/download/latest/"
	evermeetFFmpegZip  = "https://evermeet.cx/ffmpeg/getrelease/zip"
	ytdlpChecksumFile  = "SHA2-256SUMS"
	ffmpegChecksumFile = "checksums.sha256"
)

// releaseSource is where one tool's platform artifact comes from
type releaseSource struct {
	tool        domain.Tool
	url         string
	assetName   string
	checksumURL string
	kind        archiveKind
	// members are the executables to extract from an archive
	members []string
}

// resolveReleaseSource picks the artifact for tool on goos/goarch, honoring config overrides
func resolveReleaseSource(tool domain.Tool, cfg *domain.BinariesConfig, goos, goarch string) (releaseSource, error) {
	switch tool {
	case domain.ToolYTDLP:
		if cfg.YTDLPReleaseURL != "" {
			return overrideSource(tool, cfg.YTDLPReleaseURL, cfg.YTDLPChecksumURL, goos)
		}
		asset, err := ytdlpAsset(goos, goarch)
		if err != nil {
			return releaseSource{}, err
		}
		return releaseSource{
			tool:        tool,
			url:         ytdlpReleaseBase + asset,
			assetName:   asset,
			checksumURL: ytdlpReleaseBase + ytdlpChecksumFile,
			kind:        archiveNone,
		}, nil

	case domain.ToolFFmpeg:
		if cfg.FFmpegReleaseURL != "" {
			return overrideSource(tool, cfg.FFmpegReleaseURL, cfg.FFmpegChecksumURL, goos)
		}
		members := []string{executableName("ffmpeg", goos), executableName("ffprobe", goos)}
		switch {
		case goos == "darwin":
			// evermeet ships ffmpeg alone and publishes no checksum list
			return releaseSource{tool: tool, url: evermeetFFmpegZip, assetName: "ffmpeg.zip", kind: archiveZip, members: members}, nil
		case goos == "windows" && goarch == "amd64":
			asset := "ffmpeg-master-latest-win64-gpl.zip"
			return releaseSource{tool: tool, url: ffmpegBuildsBase + asset, assetName: asset, checksumURL: ffmpegBuildsBase + ffmpegChecksumFile, kind: archiveZip, members: members}, nil
		case goos == "linux" && (goarch == "amd64" || goarch == "arm64"):
			arch := "linux64"
			if goarch == "arm64" {
				arch = "linuxarm64"
			}
			asset := fmt.Sprintf("ffmpeg-master-latest-%s-gpl.tar.xz", arch)
			return releaseSource{tool: tool, url: ffmpegBuildsBase + asset, assetName: asset, checksumURL: ffmpegBuildsBase + ffmpegChecksumFile, kind: archiveTarXZ, members: members}, nil
		}
		return releaseSource{}, fmt.Errorf("no ffmpeg build for %s/%s", goos, goarch)
	}
	return releaseSource{}, fmt.Errorf("%w: %s", domain.ErrUnknownTool, tool)
}

func ytdlpAsset(goos, goarch string) (string, error) {
	switch goos {
	case "linux":
		if goarch == "arm64" {
			return "yt-dlp_linux_aarch64", nil
		}
		return "yt-dlp_linux", nil
	case "darwin":
		return "yt-dlp_macos", nil
	case "windows":
		return "yt-dlp.exe", nil
	}
	return "", fmt.Errorf("no yt-dlp build for %s/%s", goos, goarch)
}

// overrideSource builds a source from a configured URL; the packaging follows its extension
func overrideSource(tool domain.Tool, rawURL, checksumURL, goos string) (releaseSource, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return releaseSource{}, fmt.Errorf("invalid release url %q: %w", rawURL, err)
	}
	asset := path.Base(u.Path)

	src := releaseSource{tool: tool, url: rawURL, assetName: asset, checksumURL: checksumURL, kind: archiveNone}
	switch {
	case strings.HasSuffix(asset, ".zip"):
		src.kind = archiveZip
	case strings.HasSuffix(asset, ".tar.xz"):
		src.kind = archiveTarXZ
	}
	if src.kind != archiveNone {
		src.members = []string{executableName(string(tool), goos)}
		if tool == domain.ToolFFmpeg {
			src.members = append(src.members, executableName("ffprobe", goos))
		}
	}
	return src, nil
}

func executableName(name, goos string) string {
	if goos == "windows" {
		return name + ".exe"
	}
	return name
}
