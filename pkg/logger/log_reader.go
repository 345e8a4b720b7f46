package logger

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Categories lists every log that can be read back
var Categories = []LogCategory{CategoryQueue, CategoryError, CategoryInstall, CategoryDownload}

// ValidCategory reports whether category names a known log
func ValidCategory(category LogCategory) bool {
	for _, c := range Categories {
		if c == category {
			return true
		}
	}
	return false
}

// LogPath returns the daily file for category
func LogPath(logsDir string, category LogCategory, date time.Time) string {
	return filepath.Join(logsDir, fmt.Sprintf("%s-%s.log", category, date.Format("20060102")))
}

// LogEntry is one line of a log file. Fields holds the decoded record for JSON categories.
type LogEntry struct {
	Line   string                 `json:"line"`
	Fields map[string]interface{} `json:"fields,omitempty"`
}

// ReadTail returns up to limit trailing lines of a category log, oldest first.
// A non-empty query keeps only lines containing it, case-insensitively.
// A missing file yields no entries.
func ReadTail(logsDir string, category LogCategory, date time.Time, query string, limit int) ([]LogEntry, error) {
	file, err := os.Open(LogPath(logsDir, category, date))
	if os.IsNotExist(err) {
		return []LogEntry{}, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	if limit <= 0 {
		return []LogEntry{}, nil
	}

	query = strings.ToLower(query)
	ring := make([]string, 0, limit)
	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" || (query != "" && !strings.Contains(strings.ToLower(line), query)) {
			continue
		}
		if len(ring) == limit {
			ring = ring[1:]
		}
		ring = append(ring, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to read %s log: %w", category, err)
	}

	entries := make([]LogEntry, 0, len(ring))
	for _, line := range ring {
		entry := LogEntry{Line: line}
		if category != CategoryDownload {
			var fields map[string]interface{}
			if json.Unmarshal([]byte(line), &fields) == nil {
				entry.Fields = fields
			}
		}
		entries = append(entries, entry)
	}
	return entries, nil
}
