package domain

import "fmt"

// Tool names an external binary managed by the registry
type Tool string

const (
	ToolYTDLP  Tool = "yt-dlp"
	ToolFFmpeg Tool = "ffmpeg"
)

// Tools lists every managed tool in display order
var Tools = []Tool{ToolYTDLP, ToolFFmpeg}

// ParseTool converts a user supplied name into a Tool
func ParseTool(name string) (Tool, error) {
	switch name {
	case "yt-dlp", "ytdlp", "yt_dlp":
		return ToolYTDLP, nil
	case "ffmpeg":
		return ToolFFmpeg, nil
	}
	return "", fmt.Errorf("%w: %s", ErrUnknownTool, name)
}

// InstallState tracks a tool through absent -> installing -> installed
type InstallState string

const (
	InstallAbsent     InstallState = "absent"
	InstallInstalling InstallState = "installing"
	InstallInstalled  InstallState = "installed"
)

// ToolStatus is the probed state of one tool
type ToolStatus struct {
	Installed bool         `json:"installed"`
	Version   *string      `json:"version"`
	Path      *string      `json:"path"`
	State     InstallState `json:"state"`
}

// BinaryStatus reports both managed tools
type BinaryStatus struct {
	YTDLP  ToolStatus `json:"yt_dlp"`
	FFmpeg ToolStatus `json:"ffmpeg"`
}

// For returns the status entry for a tool
func (s BinaryStatus) For(tool Tool) ToolStatus {
	if tool == ToolFFmpeg {
		return s.FFmpeg
	}
	return s.YTDLP
}
