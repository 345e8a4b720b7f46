package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/yourusername/mediaq-go/internal/domain"
	"github.com/yourusername/mediaq-go/pkg/logger"
)

// BinaryStatusProvider reports the last known tool status without probing
type BinaryStatusProvider interface {
	CachedStatus() domain.BinaryStatus
}

// workerHandle tracks one executing task
type workerHandle struct {
	cancel          context.CancelFunc
	cancelRequested bool
}

// Scheduler owns admission control over the TaskStore and the worker pool
type Scheduler struct {
	store         *TaskStore
	runner        domain.TaskRunner
	history       domain.HistoryRepository
	binaries      BinaryStatusProvider
	config        *domain.DownloadConfig
	logger        *zap.Logger
	multiLogger   *logger.MultiLogger
	maxConcurrent atomic.Int32

	mu       sync.Mutex
	workers  map[string]*workerHandle
	stopping bool
	running  bool
	workerWg sync.WaitGroup
}

// NewScheduler creates a new scheduler. history, binaries and multiLogger may be nil.
func NewScheduler(
	store *TaskStore,
	runner domain.TaskRunner,
	history domain.HistoryRepository,
	binaries BinaryStatusProvider,
	config *domain.DownloadConfig,
	log *zap.Logger,
	multiLogger *logger.MultiLogger,
) *Scheduler {
	if log == nil {
		log = zap.NewNop()
	}
	s := &Scheduler{
		store:       store,
		runner:      runner,
		history:     history,
		binaries:    binaries,
		config:      config,
		logger:      log,
		multiLogger: multiLogger,
		workers:     make(map[string]*workerHandle),
	}
	maxConcurrent := config.MaxConcurrent
	if maxConcurrent < 1 {
		maxConcurrent = 1
	}
	if maxConcurrent > domain.MaxConcurrentLimit {
		maxConcurrent = domain.MaxConcurrentLimit
	}
	s.maxConcurrent.Store(int32(maxConcurrent))
	return s
}

// Start restores terminal history into the store. Restored tasks are never re-armed.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return fmt.Errorf("scheduler already running")
	}
	s.running = true
	s.mu.Unlock()

	if s.history != nil {
		tasks, err := s.history.FindTerminal()
		if err != nil {
			s.multiLogger.LogAppError("Failed to load task history", zap.Error(err))
			return fmt.Errorf("failed to load history: %w", err)
		}
		restored := s.store.Restore(tasks)
		s.logger.Info("Restored task history", zap.Int("count", restored))
	}

	s.multiLogger.LogQueueEvent("scheduler_started", zap.Int("max_concurrent", s.MaxConcurrent()))
	return nil
}

// Stop cancels every active task and waits for their processes to exit
func (s *Scheduler) Stop(ctx context.Context) error {
	s.mu.Lock()
	s.stopping = true
	for _, h := range s.workers {
		h.cancelRequested = true
		h.cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.workerWg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.multiLogger.LogQueueEvent("scheduler_stopped")
		return nil
	case <-ctx.Done():
		s.multiLogger.LogQueueEvent("scheduler_stopped", zap.String("reason", "timeout"))
		return fmt.Errorf("timed out waiting for workers: %w", ctx.Err())
	}
}

// Enqueue creates a queued task and immediately attempts promotion
func (s *Scheduler) Enqueue(options domain.DownloadOptions, title, thumbnail string) (string, error) {
	if err := options.Validate(); err != nil {
		return "", err
	}

	s.mu.Lock()
	stopping := s.stopping
	s.mu.Unlock()
	if stopping {
		return "", fmt.Errorf("scheduler is stopping")
	}

	if options.OutputDir == "" {
		options.OutputDir = s.config.OutputDir
	}

	task := domain.NewDownloadTask(options, title, thumbnail)
	task.OutputBase = OutputBase(options.OutputDir, options.Filename, title, "download-"+task.ID[:8])

	stored, err := s.store.Add(task)
	if err != nil {
		return "", fmt.Errorf("failed to enqueue task: %w", err)
	}

	s.multiLogger.LogQueueEvent("task_enqueued",
		zap.String("task_id", stored.ID),
		zap.String("url", options.URL),
		zap.String("format_id", options.FormatID),
		zap.Bool("audio_only", options.AudioOnly),
		zap.String("output_base", stored.OutputBase))

	s.promote()
	return stored.ID, nil
}

// promote starts workers for queued tasks while capacity allows
func (s *Scheduler) promote() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopping {
		return
	}

	for {
		task, ok := s.store.PromoteNext(s.MaxConcurrent())
		if !ok {
			return
		}

		ctx, cancel := context.WithCancel(context.Background())
		handle := &workerHandle{cancel: cancel}
		s.workers[task.ID] = handle

		s.multiLogger.LogQueueEvent("task_promoted",
			zap.String("task_id", task.ID),
			zap.String("url", task.Options.URL))

		s.workerWg.Add(1)
		go s.runWorker(ctx, task, handle)
	}
}

func (s *Scheduler) runWorker(ctx context.Context, task *domain.DownloadTask, handle *workerHandle) {
	defer s.workerWg.Done()

	sink := &taskSink{store: s.store, taskID: task.ID, logger: s.logger}
	outputPath, runErr := s.runner.Run(ctx, *task, sink)

	s.mu.Lock()
	cancelRequested := handle.cancelRequested
	var final *domain.DownloadTask
	var err error
	switch {
	case runErr == nil:
		final, err = s.store.Complete(task.ID, outputPath)
	case cancelRequested:
		final, err = s.store.Cancel(task.ID)
	default:
		final, err = s.store.Fail(task.ID, runErr)
	}
	delete(s.workers, task.ID)
	if err == nil {
		s.saveHistoryLocked(final)
	}
	s.mu.Unlock()
	handle.cancel()

	if err != nil {
		s.multiLogger.LogAppError("Failed to record task outcome",
			zap.String("task_id", task.ID),
			zap.Error(err))
	} else {
		s.logOutcome(final, runErr)
	}

	s.promote()
}

func (s *Scheduler) logOutcome(task *domain.DownloadTask, runErr error) {
	switch task.State {
	case domain.StateCompleted:
		s.multiLogger.LogQueueEvent("task_completed",
			zap.String("task_id", task.ID),
			zap.String("output_path", task.OutputPath))
	case domain.StateCancelled:
		s.multiLogger.LogQueueEvent("task_cancelled", zap.String("task_id", task.ID))
	case domain.StateFailed:
		s.multiLogger.LogQueueEvent("task_failed",
			zap.String("task_id", task.ID),
			zap.Error(runErr))
		s.multiLogger.LogAppError("Download failed",
			zap.String("task_id", task.ID),
			zap.String("url", task.Options.URL),
			zap.Error(runErr))
	}
}

// saveHistoryLocked persists a terminal task. s.mu must be held so that a
// concurrent remove cannot delete the row before it is written.
func (s *Scheduler) saveHistoryLocked(task *domain.DownloadTask) {
	if s.history == nil || task == nil {
		return
	}
	if err := s.history.Save(task); err != nil {
		s.multiLogger.LogAppError("Failed to persist task history",
			zap.String("task_id", task.ID),
			zap.Error(err))
	}
}

// Cancel cancels a task. Queued tasks are cancelled synchronously; for active
// tasks the worker is signalled and the cancelled state follows once its
// process has exited.
func (s *Scheduler) Cancel(id string) error {
	s.mu.Lock()
	cancelled, wasQueued, err := s.store.CancelQueued(id)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	if wasQueued {
		s.saveHistoryLocked(cancelled)
		s.mu.Unlock()
		s.multiLogger.LogQueueEvent("task_cancelled",
			zap.String("task_id", id),
			zap.String("from", string(domain.StateQueued)))
		return nil
	}

	handle, ok := s.workers[id]
	if ok && !handle.cancelRequested {
		handle.cancelRequested = true
		handle.cancel()
	}
	s.mu.Unlock()

	if ok {
		s.multiLogger.LogQueueEvent("task_cancel_requested", zap.String("task_id", id))
	}
	return nil
}

// RemoveTask deletes a terminal task
func (s *Scheduler) RemoveTask(id string) error {
	s.mu.Lock()
	if err := s.store.Remove(id); err != nil {
		s.mu.Unlock()
		return err
	}
	if s.history != nil {
		if err := s.history.Delete(id); err != nil {
			s.multiLogger.LogAppError("Failed to delete task history",
				zap.String("task_id", id),
				zap.Error(err))
		}
	}
	s.mu.Unlock()
	s.multiLogger.LogQueueEvent("task_removed", zap.String("task_id", id))
	return nil
}

// ClearCompleted removes every completed task. Failed and cancelled tasks are kept.
func (s *Scheduler) ClearCompleted() int {
	s.mu.Lock()
	removed := s.store.RemoveCompleted()
	if s.history != nil {
		if err := s.history.DeleteMany(removed); err != nil {
			s.multiLogger.LogAppError("Failed to clear completed history", zap.Error(err))
		}
	}
	s.mu.Unlock()
	s.multiLogger.LogQueueEvent("tasks_cleared", zap.Int("count", len(removed)))
	return len(removed)
}

// GetTask returns a copy of one task
func (s *Scheduler) GetTask(id string) (*domain.DownloadTask, error) {
	return s.store.Get(id)
}

// QueueState returns a consistent snapshot of the queue with tool availability
func (s *Scheduler) QueueState() domain.DownloadQueueState {
	state := s.store.Snapshot()
	state.MaxConcurrent = s.MaxConcurrent()
	if s.binaries != nil {
		status := s.binaries.CachedStatus()
		state.YTDLPAvailable = status.YTDLP.Installed
		state.FFmpegAvailable = status.FFmpeg.Installed
		state.YTDLPVersion = status.YTDLP.Version
	}
	return state
}

// MaxConcurrent returns the current concurrency ceiling
func (s *Scheduler) MaxConcurrent() int {
	return int(s.maxConcurrent.Load())
}

// SetMaxConcurrent changes the ceiling. Lowering it never stops running tasks.
func (s *Scheduler) SetMaxConcurrent(n int) error {
	if n < 1 || n > domain.MaxConcurrentLimit {
		return fmt.Errorf("%w: max concurrent must be between 1 and %d, got %d",
			domain.ErrInvalidOptions, domain.MaxConcurrentLimit, n)
	}
	old := s.maxConcurrent.Swap(int32(n))
	s.multiLogger.LogQueueEvent("max_concurrent_changed",
		zap.Int32("old", old),
		zap.Int("new", n))
	s.promote()
	return nil
}

// taskSink forwards worker updates into the store
type taskSink struct {
	store          *TaskStore
	taskID         string
	logger         *zap.Logger
	postProcessing bool
}

func (ts *taskSink) ReportProgress(p domain.Progress) {
	if err := ts.store.UpdateProgress(ts.taskID, p); err != nil && !errors.Is(err, domain.ErrTaskNotFound) {
		ts.logger.Debug("Discarding progress update",
			zap.String("task_id", ts.taskID),
			zap.Error(err))
	}
}

func (ts *taskSink) EnterPostProcessing() {
	if ts.postProcessing {
		return
	}
	ts.postProcessing = true
	if err := ts.store.MarkPostProcessing(ts.taskID); err != nil {
		ts.logger.Debug("Ignoring post-processing transition",
			zap.String("task_id", ts.taskID),
			zap.Error(err))
	}
}
