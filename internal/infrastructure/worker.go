package infrastructure

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/yourusername/mediaq-go/internal/domain"
	"github.com/yourusername/mediaq-go/pkg/logger"
)

const (
	processWaitDelay   = 5 * time.Second
	diagnosticLines    = 20
	maxOutputLineBytes = 1024 * 1024
)

var intermediateFilePattern = regexp.MustCompile(`\.f[0-9]+(-[0-9]+)?\.[A-Za-z0-9]+$`)

// YTDLPWorker runs one download task by supervising a yt-dlp process
type YTDLPWorker struct {
	binaries         domain.BinaryLocator
	progressInterval time.Duration
	logger           *zap.Logger
	eventLogger      *logger.MultiLogger // For structured events and the raw download log
}

// NewYTDLPWorker creates a new worker. eventLogger may be nil.
func NewYTDLPWorker(binaries domain.BinaryLocator, config *domain.DownloadConfig, log *zap.Logger, eventLogger *logger.MultiLogger) *YTDLPWorker {
	if log == nil {
		log = zap.NewNop()
	}
	return &YTDLPWorker{
		binaries:         binaries,
		progressInterval: config.ProgressInterval,
		logger:           log,
		eventLogger:      eventLogger,
	}
}

// Run downloads the task and returns the final artifact path.
// When ctx is cancelled the whole process tree is killed and ctx.Err() is returned
// only after the process has exited.
func (w *YTDLPWorker) Run(ctx context.Context, task domain.DownloadTask, sink domain.ProgressSink) (string, error) {
	ytdlp, err := w.binaries.Path(domain.ToolYTDLP)
	if err != nil {
		return "", &domain.SpawnError{Tool: domain.ToolYTDLP, Err: err}
	}
	ffmpeg, _ := w.binaries.Path(domain.ToolFFmpeg)

	if err := os.MkdirAll(task.Options.OutputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	args := BuildDownloadArgs(task, ffmpeg)

	downloadLog := w.openLogFile()
	defer downloadLog.Close()
	w.writeLogHeader(downloadLog, task.ID, ShellEscapeCommand(ytdlp, args...))

	cmd := exec.CommandContext(ctx, ytdlp, args...)
	setProcessGroup(cmd)
	cmd.Cancel = func() error { return killProcessTree(cmd) }
	cmd.WaitDelay = processWaitDelay

	// One pipe for both streams; exec serializes writes when Stdout == Stderr
	pr, pw := io.Pipe()
	cmd.Stdout = pw
	cmd.Stderr = pw

	if err := cmd.Start(); err != nil {
		pw.Close()
		w.writeLogFooter(downloadLog, false, fmt.Sprintf("failed to start: %v", err))
		return "", &domain.SpawnError{Tool: domain.ToolYTDLP, Err: err}
	}

	w.logger.Info("Started download process",
		zap.String("task_id", task.ID),
		zap.Int("pid", cmd.Process.Pid),
		zap.String("url", task.Options.URL))

	waitErr := make(chan error, 1)
	go func() {
		err := cmd.Wait()
		pw.Close()
		waitErr <- err
	}()

	out := w.consumeOutput(pr, downloadLog, sink)
	err = <-waitErr

	if ctx.Err() != nil {
		w.writeLogFooter(downloadLog, false, "cancelled")
		return "", ctx.Err()
	}

	if err != nil {
		failure := &domain.RuntimeFailure{ExitCode: -1, Diagnostic: out.diagnostic()}
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			failure.ExitCode = exitErr.ExitCode()
		} else if failure.Diagnostic == "" {
			failure.Diagnostic = err.Error()
		}
		w.writeLogFooter(downloadLog, false, failure.Error())
		return "", failure
	}

	outputPath, err := resolveOutputPath(task, out.finalPath, out.lastDestination)
	if err != nil {
		w.writeLogFooter(downloadLog, false, err.Error())
		return "", err
	}

	w.writeLogFooter(downloadLog, true, fmt.Sprintf("Downloaded: %s", outputPath))
	return outputPath, nil
}

// outputState accumulates what the worker learned from the process output
type outputState struct {
	finalPath       string
	lastDestination string
	errorLines      []string
	tail            []string
}

func (o *outputState) remember(line string) {
	o.tail = append(o.tail, line)
	if len(o.tail) > diagnosticLines {
		o.tail = o.tail[1:]
	}
}

// diagnostic prefers yt-dlp's ERROR lines over the raw output tail
func (o *outputState) diagnostic() string {
	if len(o.errorLines) > 0 {
		return strings.Join(o.errorLines, "\n")
	}
	if len(o.tail) > 0 {
		return o.tail[len(o.tail)-1]
	}
	return ""
}

// consumeOutput reads process output until EOF, forwarding throttled progress to sink
func (w *YTDLPWorker) consumeOutput(r io.Reader, downloadLog io.Writer, sink domain.ProgressSink) *outputState {
	state := &outputState{}
	throttle := newProgressThrottle(w.progressInterval)
	streams := newStreamProgress()

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), maxOutputLineBytes)

	for scanner.Scan() {
		raw := scanner.Text()
		fmt.Fprintln(downloadLog, raw)

		line := parseOutputLine(raw)
		if line.postProcess {
			sink.EnterPostProcessing()
		}

		switch line.kind {
		case lineFormats:
			streams.setStreams(line.streams)
		case lineProgress:
			if p := streams.combine(line.progress); throttle.allow(p) {
				sink.ReportProgress(p)
			}
			continue
		case lineDestination:
			if line.final {
				state.finalPath = line.path
			} else {
				state.lastDestination = line.path
				streams.begin()
			}
		case lineError:
			if len(state.errorLines) < diagnosticLines {
				state.errorLines = append(state.errorLines, line.text)
			}
		}
		if line.kind != linePostProcess {
			state.remember(line.text)
		}
	}

	if err := scanner.Err(); err != nil {
		w.logger.Warn("Stopped parsing download output", zap.Error(err))
	}
	// Keep the pipe drained so the process never blocks on a full buffer
	_, _ = io.Copy(io.Discard, r)

	if p, ok := throttle.pending(); ok {
		sink.ReportProgress(p)
	}
	return state
}

// resolveOutputPath finds the artifact yt-dlp produced for the task
func resolveOutputPath(task domain.DownloadTask, finalPath, lastDestination string) (string, error) {
	for _, candidate := range []string{finalPath, lastDestination} {
		if candidate != "" && isRegularFile(candidate) && !isIntermediate(candidate) {
			return candidate, nil
		}
	}

	opts := task.Options
	if opts.AudioOnly && opts.AudioFormat != "" && opts.AudioFormat != "best" {
		candidate := task.OutputBase + "." + opts.AudioFormat
		if isRegularFile(candidate) {
			return candidate, nil
		}
	}

	dir := filepath.Dir(task.OutputBase)
	prefix := filepath.Base(task.OutputBase) + "."
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", fmt.Errorf("failed to read output directory: %w", err)
	}

	var best string
	var bestMod time.Time
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, prefix) || isIntermediate(name) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		if best == "" || info.ModTime().After(bestMod) {
			best = filepath.Join(dir, name)
			bestMod = info.ModTime()
		}
	}

	if best == "" {
		return "", &domain.RuntimeFailure{Diagnostic: "download finished but no output file was found"}
	}
	return best, nil
}

func isIntermediate(name string) bool {
	for _, suffix := range []string{".part", ".ytdl", ".info.json", ".temp", ".tmp"} {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return strings.Contains(name, ".part-Frag") || intermediateFilePattern.MatchString(name)
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}

// openLogFile opens today's download log, falling back to a discard sink
func (w *YTDLPWorker) openLogFile() io.WriteCloser {
	path := w.eventLogger.DownloadLogPath()
	if path == "" {
		return nopWriteCloser{io.Discard}
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		w.logger.Warn("Failed to create logs directory", zap.Error(err))
		return nopWriteCloser{io.Discard}
	}
	file, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		w.logger.Warn("Failed to open download log", zap.Error(err))
		return nopWriteCloser{io.Discard}
	}
	return file
}

// writeLogHeader writes the download start marker
func (w *YTDLPWorker) writeLogHeader(out io.Writer, taskID, cmdLine string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	fmt.Fprintf(out, "\n=== [%s] Download: %s ===\n", timestamp, taskID)
	fmt.Fprintf(out, "$ %s\n", cmdLine)
}

// writeLogFooter writes the download end marker
func (w *YTDLPWorker) writeLogFooter(out io.Writer, success bool, message string) {
	timestamp := time.Now().Format("2006-01-02 15:04:05")
	status := "SUCCESS"
	if !success {
		status = "FAILED"
	}
	fmt.Fprintf(out, "[%s] %s: %s\n", timestamp, status, message)
	fmt.Fprint(out, "=== END ===\n\n")
}

type nopWriteCloser struct {
	io.Writer
}

func (nopWriteCloser) Close() error { return nil }

// progressThrottle limits progress samples to one per interval.
// A completed sample always passes; a suppressed one is kept for the final flush.
type progressThrottle struct {
	interval time.Duration
	last     time.Time
	held     *domain.Progress
}

func newProgressThrottle(interval time.Duration) *progressThrottle {
	return &progressThrottle{interval: interval}
}

func (t *progressThrottle) allow(p domain.Progress) bool {
	now := time.Now()
	if p.Percent >= 100 || t.last.IsZero() || now.Sub(t.last) >= t.interval {
		t.last = now
		t.held = nil
		return true
	}
	held := p
	t.held = &held
	return false
}

func (t *progressThrottle) pending() (domain.Progress, bool) {
	if t.held == nil {
		return domain.Progress{}, false
	}
	p := *t.held
	t.held = nil
	return p, true
}
