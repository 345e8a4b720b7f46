package main

import (
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/gorilla/websocket"
	"github.com/spf13/cobra"

	"github.com/yourusername/mediaq-go/internal/domain"
)

var binariesCmd = &cobra.Command{
	Use:   "binaries",
	Short: "Check whether yt-dlp and ffmpeg are installed",
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		var status domain.BinaryStatus
		exitOnError(doJSON(apiClient, http.MethodGet, "/api/v1/binaries", nil, &status))
		printBinaryStatus(os.Stdout, &status)
	},
}

var installCmd = &cobra.Command{
	Use:       "install [yt-dlp|ffmpeg]",
	Short:     "Download and install a managed tool",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"yt-dlp", "ffmpeg"},
	Run: func(cmd *cobra.Command, args []string) {
		runInstall(args[0], "install")
	},
}

var updateCmd = &cobra.Command{
	Use:       "update [yt-dlp|ffmpeg]",
	Short:     "Reinstall a managed tool at its latest release",
	Args:      cobra.ExactArgs(1),
	ValidArgs: []string{"yt-dlp", "ffmpeg"},
	Run: func(cmd *cobra.Command, args []string) {
		runInstall(args[0], "update")
	},
}

func runInstall(name, op string) {
	ensureServer()

	tool, err := domain.ParseTool(name)
	exitOnError(err)

	fmt.Printf("Running %s for %s...\n", op, tool)
	stop := followInstallProgress(tool)

	var status domain.ToolStatus
	err = doJSON(installClient, http.MethodPost, "/api/v1/binaries/"+string(tool)+"/"+op, nil, &status)
	stop()
	exitOnError(err)

	version := "unknown version"
	if status.Version != nil {
		version = *status.Version
	}
	fmt.Printf("%s installed (%s)\n", tool, version)
}

// followInstallProgress prints byte progress from the event stream until the returned func is called.
// Progress display is best effort; the install itself does not depend on it.
func followInstallProgress(tool domain.Tool) func() {
	conn, _, err := websocket.DefaultDialer.Dial(websocketURL("/api/v1/events"), nil)
	if err != nil {
		return func() {}
	}

	done := make(chan struct{})
	go func() {
		defer close(done)
		var last time.Time
		for {
			var event domain.Event
			if err := conn.ReadJSON(&event); err != nil {
				return
			}
			if event.Install == nil || event.Install.Tool != tool {
				continue
			}
			if time.Since(last) < 500*time.Millisecond {
				continue
			}
			last = time.Now()
			fmt.Printf("\r  %s", formatInstallProgress(event.Install))
		}
	}()

	return func() {
		conn.Close()
		<-done
		fmt.Println()
	}
}

func formatInstallProgress(p *domain.InstallProgressPayload) string {
	downloaded := humanize.IBytes(uint64(p.DownloadedBytes))
	if p.TotalBytes == nil || *p.TotalBytes <= 0 {
		return downloaded
	}
	percent := float64(p.DownloadedBytes) / float64(*p.TotalBytes) * 100
	return fmt.Sprintf("%s / %s (%.0f%%)", downloaded, humanize.IBytes(uint64(*p.TotalBytes)), percent)
}
