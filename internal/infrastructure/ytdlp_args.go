package infrastructure

import (
	"strings"

	"github.com/yourusername/mediaq-go/internal/domain"
)

const (
	downloadProgressPrefix    = "[mq:dl]"
	postprocessProgressPrefix = "[mq:pp]"

	downloadProgressTemplate = "download:" + downloadProgressPrefix +
		" %(progress.downloaded_bytes)s|%(progress.total_bytes)s|%(progress.total_bytes_estimate)s" +
		"|%(progress._speed_str)s|%(progress._eta_str)s|%(progress._percent_str)s"
	postprocessProgressTemplate = "postprocess:" + postprocessProgressPrefix +
		" %(progress.status)s|%(progress.postprocessor)s"

	defaultVideoFormat = "bestvideo*+bestaudio/best"
	defaultAudioFormat = "bestaudio/best"
)

// BuildDownloadArgs builds the yt-dlp argument list for a task.
// Format selection is either an explicit format id or audio extraction, never both.
// ffmpegPath may be empty, in which case yt-dlp searches PATH itself.
func BuildDownloadArgs(task domain.DownloadTask, ffmpegPath string) []string {
	opts := task.Options

	args := []string{
		"--newline",
		"--no-playlist",
		"--no-colors",
		"--progress-template", downloadProgressTemplate,
		"--progress-template", postprocessProgressTemplate,
		"-o", outputTemplate(task.OutputBase),
	}

	switch {
	case opts.AudioOnly:
		audioFormat := opts.AudioFormat
		if audioFormat == "" {
			audioFormat = "best"
		}
		args = append(args, "-f", defaultAudioFormat, "-x", "--audio-format", audioFormat)
	case opts.FormatID != "":
		args = append(args, "-f", opts.FormatID)
	default:
		args = append(args, "-f", defaultVideoFormat)
	}

	if ffmpegPath != "" {
		args = append(args, "--ffmpeg-location", ffmpegPath)
	}

	// "--" keeps URLs starting with a dash from being read as options
	return append(args, "--", opts.URL)
}

// outputTemplate escapes the base path so yt-dlp treats it literally
func outputTemplate(base string) string {
	return strings.ReplaceAll(base, "%", "%%") + ".%(ext)s"
}
