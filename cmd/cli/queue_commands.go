package main

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/yourusername/mediaq-go/internal/domain"
)

var fetchCmd = &cobra.Command{
	Use:   "fetch [url]",
	Short: "Resolve media metadata and list available formats",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		var metadata domain.MediaMetadata
		err := doJSON(apiClient, http.MethodPost, "/api/v1/media/metadata", map[string]string{"url": args[0]}, &metadata)
		exitOnError(err)
		printMetadata(os.Stdout, &metadata)
	},
}

var addCmd = &cobra.Command{
	Use:   "add [url]",
	Short: "Add a download to the queue",
	Long: `Add a download to the queue. Without --format the best video and audio
streams are merged; --audio extracts audio only and cannot be combined with --format.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()

		formatID, _ := cmd.Flags().GetString("format")
		audioOnly, _ := cmd.Flags().GetBool("audio")
		audioFormat, _ := cmd.Flags().GetString("audio-format")
		outputDir, _ := cmd.Flags().GetString("output")
		filename, _ := cmd.Flags().GetString("filename")
		title, _ := cmd.Flags().GetString("title")
		resolve, _ := cmd.Flags().GetBool("resolve")

		var thumbnail string
		if resolve && title == "" {
			var metadata domain.MediaMetadata
			if err := doJSON(apiClient, http.MethodPost, "/api/v1/media/metadata", map[string]string{"url": args[0]}, &metadata); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: could not resolve title: %v\n", err)
			} else {
				title = metadata.Title
				if metadata.Thumbnail != nil {
					thumbnail = *metadata.Thumbnail
				}
			}
		}

		payload := map[string]interface{}{
			"url":        args[0],
			"format_id":  formatID,
			"audio_only": audioOnly,
			"output_dir": outputDir,
			"filename":   filename,
			"title":      title,
			"thumbnail":  thumbnail,
		}
		if audioFormat != "" {
			payload["audio_format"] = audioFormat
		}

		var result struct {
			ID string `json:"id"`
		}
		exitOnError(doJSON(apiClient, http.MethodPost, "/api/v1/downloads", payload, &result))

		fmt.Printf("Download queued successfully!\n")
		fmt.Printf("ID: %s\n", result.ID)
	},
}

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List the download queue",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		follow, _ := cmd.Flags().GetBool("follow")
		interval, _ := cmd.Flags().GetDuration("interval")

		if !follow {
			var state domain.DownloadQueueState
			exitOnError(doJSON(apiClient, http.MethodGet, "/api/v1/downloads", nil, &state))
			printQueue(os.Stdout, &state)
			return
		}

		// Polling view: each snapshot is self-consistent, so a missed event never leaves it stale
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
		defer stop()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			var state domain.DownloadQueueState
			if err := doJSON(apiClient, http.MethodGet, "/api/v1/downloads", nil, &state); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			} else {
				fmt.Print("\033[H\033[2J")
				fmt.Printf("mediaq queue  %s  (Ctrl-C to exit)\n\n", time.Now().Format("15:04:05"))
				printQueue(os.Stdout, &state)
			}
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}
		}
	},
}

var getCmd = &cobra.Command{
	Use:   "get [id]",
	Short: "Get download details",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		var task domain.DownloadTask
		exitOnError(doJSON(apiClient, http.MethodGet, "/api/v1/downloads/"+url.PathEscape(args[0]), nil, &task))
		printTask(os.Stdout, &task)
	},
}

var cancelCmd = &cobra.Command{
	Use:   "cancel [id]",
	Short: "Cancel a queued or running download",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		exitOnError(doJSON(apiClient, http.MethodPost, "/api/v1/downloads/"+url.PathEscape(args[0])+"/cancel", nil, nil))
		fmt.Println("Cancellation requested")
	},
}

var removeCmd = &cobra.Command{
	Use:   "remove [id]",
	Short: "Remove a finished download from the list",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		exitOnError(doJSON(apiClient, http.MethodDelete, "/api/v1/downloads/"+url.PathEscape(args[0]), nil, nil))
		fmt.Println("Download removed")
	},
}

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all completed downloads from the list",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		var result struct {
			Removed int `json:"removed"`
		}
		exitOnError(doJSON(apiClient, http.MethodPost, "/api/v1/downloads/clear-completed", nil, &result))
		fmt.Printf("Removed %d completed download(s)\n", result.Removed)
	},
}

var concurrencyCmd = &cobra.Command{
	Use:   "concurrency [n]",
	Short: "Show or change the number of simultaneous downloads",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		var result struct {
			MaxConcurrent int `json:"max_concurrent"`
		}

		if len(args) == 0 {
			exitOnError(doJSON(apiClient, http.MethodGet, "/api/v1/settings/max-concurrent", nil, &result))
			fmt.Printf("Max concurrent downloads: %d\n", result.MaxConcurrent)
			return
		}

		n, err := strconv.Atoi(args[0])
		if err != nil || n < 1 {
			exitOnError(fmt.Errorf("concurrency must be a positive integer, got %q", args[0]))
		}
		exitOnError(doJSON(apiClient, http.MethodPut, "/api/v1/settings/max-concurrent", map[string]int{"max_concurrent": n}, &result))
		fmt.Printf("Max concurrent downloads set to %d\n", result.MaxConcurrent)
	},
}

func init() {
	addCmd.Flags().StringP("format", "f", "", "Format id from 'mediaq fetch'")
	addCmd.Flags().BoolP("audio", "a", false, "Extract audio only")
	addCmd.Flags().String("audio-format", "", "Audio codec for --audio (mp3, m4a, opus, ...); default keeps the source codec")
	addCmd.Flags().StringP("output", "o", "", "Output directory (default from server config)")
	addCmd.Flags().String("filename", "", "Output filename without directory")
	addCmd.Flags().StringP("title", "t", "", "Title used for the filename and listings")
	addCmd.Flags().Bool("resolve", true, "Resolve the title from the URL when --title is not given")
	listCmd.Flags().BoolP("follow", "F", false, "Refresh the list until interrupted")
	listCmd.Flags().Duration("interval", 2*time.Second, "Refresh interval for --follow")
}
