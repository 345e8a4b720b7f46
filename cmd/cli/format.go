package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/yourusername/mediaq-go/internal/domain"
)

func formatSize(n *int64) string {
	if n == nil || *n <= 0 {
		return "-"
	}
	return humanize.IBytes(uint64(*n))
}

func formatDuration(seconds *float64) string {
	if seconds == nil {
		return "-"
	}
	return (time.Duration(*seconds) * time.Second).String()
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// formatProgress renders percent plus transfer details for active tasks
func formatProgress(t *domain.DownloadTask) string {
	switch t.State {
	case domain.StateQueued:
		return "-"
	case domain.StateCompleted:
		return "100%"
	}

	parts := []string{fmt.Sprintf("%.1f%%", t.ProgressPercent)}
	if t.State.IsActive() {
		if t.TotalBytes != nil {
			parts = append(parts, humanize.IBytes(uint64(t.DownloadedBytes))+"/"+formatSize(t.TotalBytes))
		}
		if t.Speed != nil {
			parts = append(parts, *t.Speed)
		}
		if t.ETA != nil {
			parts = append(parts, "ETA "+*t.ETA)
		}
	}
	return strings.Join(parts, " ")
}

func printQueue(w io.Writer, state *domain.DownloadQueueState) {
	fmt.Fprintf(w, "Active: %d/%d  Queued: %d  Completed: %d\n\n",
		state.ActiveCount, state.MaxConcurrent, state.QueuedCount, state.CompletedCount)
	if !state.YTDLPAvailable {
		fmt.Fprintln(w, "Warning: yt-dlp is not installed, run 'mediaq install yt-dlp'")
	} else if !state.FFmpegAvailable {
		fmt.Fprintln(w, "Note: ffmpeg is not installed, audio extraction and merging are unavailable")
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tTITLE\tSTATE\tPROGRESS\tCREATED")
	for _, t := range state.Tasks {
		title := t.Title
		if title == "" {
			title = t.Options.URL
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			truncate(t.ID, 8),
			truncate(title, 40),
			t.State,
			formatProgress(t),
			humanize.Time(t.CreatedAt))
	}
	tw.Flush()
}

func printTask(w io.Writer, t *domain.DownloadTask) {
	fmt.Fprintf(w, "Download Details:\n")
	fmt.Fprintf(w, "  ID:       %s\n", t.ID)
	fmt.Fprintf(w, "  Title:    %s\n", t.Title)
	fmt.Fprintf(w, "  URL:      %s\n", t.Options.URL)
	fmt.Fprintf(w, "  State:    %s\n", t.State)
	fmt.Fprintf(w, "  Progress: %s\n", formatProgress(t))
	switch {
	case t.Options.AudioOnly:
		audio := t.Options.AudioFormat
		if audio == "" {
			audio = "best"
		}
		fmt.Fprintf(w, "  Format:   audio only (%s)\n", audio)
	case t.Options.FormatID != "":
		fmt.Fprintf(w, "  Format:   %s\n", t.Options.FormatID)
	}
	fmt.Fprintf(w, "  Created:  %s (%s)\n", t.CreatedAt.Format(time.RFC3339), humanize.Time(t.CreatedAt))
	if t.OutputPath != "" {
		fmt.Fprintf(w, "  File:     %s\n", t.OutputPath)
	}
	if t.Error != "" {
		fmt.Fprintf(w, "  Error:    %s\n", t.Error)
	}
}

func printMetadata(w io.Writer, m *domain.MediaMetadata) {
	fmt.Fprintf(w, "Title:    %s\n", m.Title)
	if m.Uploader != nil {
		fmt.Fprintf(w, "Uploader: %s\n", *m.Uploader)
	}
	fmt.Fprintf(w, "Duration: %s\n", formatDuration(m.Duration))
	fmt.Fprintf(w, "URL:      %s\n\n", m.URL)

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "FORMAT\tEXT\tQUALITY\tSTREAMS\tSIZE")
	for _, f := range m.Formats {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", f.FormatID, f.Ext, f.Quality, streams(f), formatSize(f.Filesize))
	}
	tw.Flush()
}

func streams(f domain.Format) string {
	switch {
	case f.HasVideo && f.HasAudio:
		return "video+audio"
	case f.HasVideo:
		return "video"
	case f.HasAudio:
		return "audio"
	}
	return "-"
}

func printBinaryStatus(w io.Writer, status *domain.BinaryStatus) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "TOOL\tSTATE\tVERSION\tPATH")
	for _, tool := range domain.Tools {
		s := status.For(tool)
		version := deref(s.Version)
		if version == "" {
			version = "-"
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", tool, s.State, version, deref(s.Path))
	}
	tw.Flush()
}

// formatEvent renders one event as a single log line
func formatEvent(e *domain.Event) string {
	ts := e.Timestamp.Local().Format("15:04:05")
	switch {
	case e.Progress != nil:
		p := e.Progress
		line := fmt.Sprintf("%s %s progress %.1f%%", ts, truncate(p.TaskID, 8), p.ProgressPercent)
		if p.TotalBytes != nil {
			line += " of " + formatSize(p.TotalBytes)
		}
		if p.Speed != nil {
			line += " at " + *p.Speed
		}
		return line
	case e.StateChanged != nil:
		s := e.StateChanged
		line := fmt.Sprintf("%s %s -> %s", ts, truncate(s.TaskID, 8), s.State)
		if s.OutputPath != "" {
			line += " " + s.OutputPath
		}
		if s.Error != "" {
			line += ": " + s.Error
		}
		return line
	case e.Install != nil:
		return fmt.Sprintf("%s install %s %s", ts, e.Install.Tool, formatInstallProgress(e.Install))
	}
	return fmt.Sprintf("%s %s", ts, e.Type)
}

func truncate(s string, maxLen int) string {
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen-3]) + "..."
}
