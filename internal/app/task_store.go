package app

import (
	"fmt"
	"sync"

	"github.com/yourusername/mediaq-go/internal/domain"
)

// TaskStore is the authoritative in-memory table of download tasks.
// Every mutation happens under one lock and publishes its event before the
// lock is released, so observers see transitions for a task in the order
// they were applied and never see an event after a task's terminal one.
type TaskStore struct {
	mu        sync.RWMutex
	tasks     map[string]*domain.DownloadTask
	order     []string
	publisher domain.EventPublisher
}

// NewTaskStore creates an empty store. publisher may be nil.
func NewTaskStore(publisher domain.EventPublisher) *TaskStore {
	return &TaskStore{
		tasks:     make(map[string]*domain.DownloadTask),
		publisher: publisher,
	}
}

func (s *TaskStore) publish(event domain.Event) {
	if s.publisher != nil {
		s.publisher.Publish(event)
	}
}

// Add appends a queued task. If its OutputBase collides with a non-terminal
// task, the base is suffixed with " (n)" until it is unique.
func (s *TaskStore) Add(task *domain.DownloadTask) (*domain.DownloadTask, error) {
	if task.State != domain.StateQueued {
		return nil, &domain.InvalidStateError{TaskID: task.ID, State: task.State, Op: "enqueue"}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.tasks[task.ID]; exists {
		return nil, fmt.Errorf("task %s already exists", task.ID)
	}

	if task.OutputBase != "" {
		task.OutputBase = s.uniqueBaseLocked(task.OutputBase)
	}

	stored := task.Clone()
	s.tasks[stored.ID] = stored
	s.order = append(s.order, stored.ID)

	s.publish(domain.NewStateChangedEvent(stored.Clone()))
	return stored.Clone(), nil
}

func (s *TaskStore) uniqueBaseLocked(base string) string {
	inUse := make(map[string]bool)
	for _, t := range s.tasks {
		if !t.IsTerminal() && t.OutputBase != "" {
			inUse[t.OutputBase] = true
		}
	}
	candidate := base
	for n := 1; inUse[candidate]; n++ {
		candidate = fmt.Sprintf("%s (%d)", base, n)
	}
	return candidate
}

// Restore appends historical terminal tasks without publishing events.
// Non-terminal records and ids already present are skipped.
func (s *TaskStore) Restore(tasks []*domain.DownloadTask) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	restored := 0
	for _, t := range tasks {
		if t == nil || !t.IsTerminal() {
			continue
		}
		if _, exists := s.tasks[t.ID]; exists {
			continue
		}
		s.tasks[t.ID] = t.Clone()
		s.order = append(s.order, t.ID)
		restored++
	}
	return restored
}

// Get returns a copy of a task
func (s *TaskStore) Get(id string) (*domain.DownloadTask, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	return t.Clone(), nil
}

// Snapshot returns a consistent copy of all tasks in creation order with counters.
// Binary availability fields are left for the caller to fill.
func (s *TaskStore) Snapshot() domain.DownloadQueueState {
	s.mu.RLock()
	defer s.mu.RUnlock()

	state := domain.DownloadQueueState{Tasks: make([]*domain.DownloadTask, 0, len(s.order))}
	for _, id := range s.order {
		t := s.tasks[id]
		state.Tasks = append(state.Tasks, t.Clone())
		switch {
		case t.State.IsActive():
			state.ActiveCount++
		case t.State == domain.StateQueued:
			state.QueuedCount++
		case t.IsTerminal():
			state.CompletedCount++
		}
	}
	return state
}

// ActiveCount returns the number of tasks holding a concurrency slot
func (s *TaskStore) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.activeCountLocked()
}

func (s *TaskStore) activeCountLocked() int {
	n := 0
	for _, t := range s.tasks {
		if t.State.IsActive() {
			n++
		}
	}
	return n
}

// PromoteNext moves the oldest queued task to downloading if fewer than
// maxConcurrent tasks are active. The check and the transition are atomic.
func (s *TaskStore) PromoteNext(maxConcurrent int) (*domain.DownloadTask, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeCountLocked() >= maxConcurrent {
		return nil, false
	}

	for _, id := range s.order {
		t := s.tasks[id]
		if t.State != domain.StateQueued {
			continue
		}
		t.MarkDownloading()
		s.publish(domain.NewStateChangedEvent(t.Clone()))
		return t.Clone(), true
	}
	return nil, false
}

// UpdateProgress merges a progress sample into an active task.
// Samples for tasks that are no longer active are discarded.
func (s *TaskStore) UpdateProgress(id string, p domain.Progress) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return domain.ErrTaskNotFound
	}
	if !t.State.IsActive() {
		return &domain.InvalidStateError{TaskID: id, State: t.State, Op: "update progress of"}
	}

	t.ApplyProgress(p)
	s.publish(domain.NewProgressEvent(t.Clone()))
	return nil
}

// MarkPostProcessing moves a downloading task to postProcessing
func (s *TaskStore) MarkPostProcessing(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return domain.ErrTaskNotFound
	}
	if t.State != domain.StateDownloading {
		return &domain.InvalidStateError{TaskID: id, State: t.State, Op: "post-process"}
	}

	t.MarkPostProcessing()
	s.publish(domain.NewStateChangedEvent(t.Clone()))
	return nil
}

// Complete moves an active task to completed
func (s *TaskStore) Complete(id, outputPath string) (*domain.DownloadTask, error) {
	return s.finish(id, "complete", func(t *domain.DownloadTask) { t.MarkCompleted(outputPath) })
}

// Fail moves an active task to failed
func (s *TaskStore) Fail(id string, cause error) (*domain.DownloadTask, error) {
	return s.finish(id, "fail", func(t *domain.DownloadTask) { t.MarkFailed(cause) })
}

// Cancel moves an active task to cancelled once its process is gone
func (s *TaskStore) Cancel(id string) (*domain.DownloadTask, error) {
	return s.finish(id, "cancel", func(t *domain.DownloadTask) { t.MarkCancelled() })
}

func (s *TaskStore) finish(id, op string, mark func(*domain.DownloadTask)) (*domain.DownloadTask, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, domain.ErrTaskNotFound
	}
	if !t.State.IsActive() {
		return nil, &domain.InvalidStateError{TaskID: id, State: t.State, Op: op}
	}

	mark(t)
	s.publish(domain.NewStateChangedEvent(t.Clone()))
	return t.Clone(), nil
}

// CancelQueued cancels a task that has not been promoted yet.
// It reports false without error when the task is already active.
func (s *TaskStore) CancelQueued(id string) (*domain.DownloadTask, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return nil, false, domain.ErrTaskNotFound
	}
	switch {
	case t.State == domain.StateQueued:
		t.MarkCancelled()
		s.publish(domain.NewStateChangedEvent(t.Clone()))
		return t.Clone(), true, nil
	case t.State.IsActive():
		return nil, false, nil
	default:
		return nil, false, &domain.InvalidStateError{TaskID: id, State: t.State, Op: "cancel"}
	}
}

// Remove deletes a terminal task
func (s *TaskStore) Remove(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, ok := s.tasks[id]
	if !ok {
		return domain.ErrTaskNotFound
	}
	if !t.IsTerminal() {
		return &domain.InvalidStateError{TaskID: id, State: t.State, Op: "remove"}
	}

	delete(s.tasks, id)
	for i, oid := range s.order {
		if oid == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return nil
}

// RemoveCompleted deletes every completed task and returns their ids
func (s *TaskStore) RemoveCompleted() []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	var removed []string
	kept := s.order[:0]
	for _, id := range s.order {
		if s.tasks[id].State == domain.StateCompleted {
			removed = append(removed, id)
			delete(s.tasks, id)
			continue
		}
		kept = append(kept, id)
	}
	s.order = kept
	return removed
}

// ActiveIDs returns the ids of tasks holding a concurrency slot
func (s *TaskStore) ActiveIDs() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var ids []string
	for _, id := range s.order {
		if s.tasks[id].State.IsActive() {
			ids = append(ids, id)
		}
	}
	return ids
}
