package main

import (
	"fmt"
	"net/http"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"time"
)

const (
	serverStartTimeout = 10 * time.Second
	serverPollInterval = 200 * time.Millisecond
)

var serverBinaryName = func() string {
	if runtime.GOOS == "windows" {
		return "mediaq-server.exe"
	}
	return "mediaq-server"
}()

func isServerRunning() bool {
	client := &http.Client{Timeout: time.Second}
	resp, err := client.Get(serverURL + "/health")
	if err != nil {
		return false
	}
	resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// serverCandidates lists where mediaq-server is looked for, in order
func serverCandidates() []string {
	var candidates []string
	if self, err := os.Executable(); err == nil {
		candidates = append(candidates, filepath.Join(filepath.Dir(self), serverBinaryName))
	}
	if p, err := exec.LookPath(serverBinaryName); err == nil {
		candidates = append(candidates, p)
	}
	if home, err := os.UserHomeDir(); err == nil {
		candidates = append(candidates,
			filepath.Join(home, ".mediaq", "bin", serverBinaryName),
			filepath.Join(home, "go", "bin", serverBinaryName))
	}
	if runtime.GOOS != "windows" {
		candidates = append(candidates, "/usr/local/bin/"+serverBinaryName)
	}
	return candidates
}

func findServerBinary() (string, error) {
	for _, p := range serverCandidates() {
		if info, err := os.Stat(p); err == nil && !info.IsDir() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%s binary not found", serverBinaryName)
}

// ensureServerRunning launches the server when /health does not answer.
// The server detaches itself, so the launcher exits right away.
func ensureServerRunning() error {
	if isServerRunning() {
		return nil
	}

	serverPath, err := findServerBinary()
	if err != nil {
		return err
	}

	fmt.Println("Server not running, starting...")
	if out, err := exec.Command(serverPath).CombinedOutput(); err != nil {
		return fmt.Errorf("failed to start server: %w: %s", err, out)
	}

	deadline := time.Now().Add(serverStartTimeout)
	for time.Now().Before(deadline) {
		if isServerRunning() {
			fmt.Println("Server started successfully")
			return nil
		}
		time.Sleep(serverPollInterval)
	}
	return fmt.Errorf("server did not start within %v", serverStartTimeout)
}
