package main

import (
	"fmt"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/yourusername/mediaq-go/internal/app"
	"github.com/yourusername/mediaq-go/internal/domain"
	"github.com/yourusername/mediaq-go/pkg/logger"
)

var logsCmd = &cobra.Command{
	Use:   "logs [queue|error|install|download]",
	Short: "Show today's entries from a server log",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ensureServer()
		limit, _ := cmd.Flags().GetInt("limit")
		date, _ := cmd.Flags().GetString("date")
		query, _ := cmd.Flags().GetString("query")

		params := url.Values{}
		params.Set("limit", strconv.Itoa(limit))
		if date != "" {
			params.Set("date", date)
		}
		if query != "" {
			params.Set("q", query)
		}

		var result struct {
			Entries []logger.LogEntry `json:"entries"`
		}
		exitOnError(doJSON(apiClient, http.MethodGet, "/api/v1/logs/"+url.PathEscape(args[0])+"?"+params.Encode(), nil, &result))
		for _, entry := range result.Entries {
			fmt.Println(entry.Line)
		}
	},
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage the server configuration file",
}

var configInitCmd = &cobra.Command{
	Use:   "init [path]",
	Short: "Write a config file populated with the defaults",
	Args:  cobra.MaximumNArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		force, _ := cmd.Flags().GetBool("force")

		path := filepath.Join(os.Getenv("HOME"), ".mediaq", "config.yaml")
		if len(args) == 1 {
			path = args[0]
		}

		if _, err := os.Stat(path); err == nil && !force {
			exitOnError(fmt.Errorf("%s already exists (use --force to overwrite)", path))
		}

		exitOnError(app.SaveConfig(domain.DefaultConfig(), path))
		fmt.Printf("Config written to %s\n", path)
	},
}

func init() {
	logsCmd.Flags().IntP("limit", "n", 50, "Number of trailing entries")
	logsCmd.Flags().String("date", "", "Day to read (YYYY-MM-DD), default today")
	logsCmd.Flags().StringP("query", "q", "", "Only show entries containing this text")
	configInitCmd.Flags().Bool("force", false, "Overwrite an existing file")
	configCmd.AddCommand(configInitCmd)
}
