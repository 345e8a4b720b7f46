package infrastructure

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/yourusername/mediaq-go/internal/domain"
)

// writeScript writes an executable /bin/sh script standing in for an external tool
func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	requireShell(t)
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body), 0755))
	return path
}

// requireShell skips tests whose fake tools are shell scripts
func requireShell(t *testing.T) {
	t.Helper()
	if runtime.GOOS == "windows" {
		t.Skip("fake tools require a POSIX shell")
	}
}

// staticLocator resolves tools from a fixed map
type staticLocator map[domain.Tool]string

func (l staticLocator) Path(tool domain.Tool) (string, error) {
	if p, ok := l[tool]; ok {
		return p, nil
	}
	return "", fmt.Errorf("%w: %s", domain.ErrBinaryMissing, tool)
}

// recordingSink captures worker callbacks
type recordingSink struct {
	mu             sync.Mutex
	progress       []domain.Progress
	postProcessing int
}

func (s *recordingSink) ReportProgress(p domain.Progress) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.progress = append(s.progress, p)
}

func (s *recordingSink) EnterPostProcessing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.postProcessing++
}

type eventRecorder struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *eventRecorder) Publish(e domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *eventRecorder) all() []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]domain.Event(nil), r.events...)
}
