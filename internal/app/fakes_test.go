package app

import (
	"context"
	"sync"

	"github.com/yourusername/mediaq-go/internal/domain"
)

type runResult struct {
	path string
	err  error
}

// fakeRunner blocks each Run until the test releases it or ctx is cancelled
type fakeRunner struct {
	mu       sync.Mutex
	started  []string
	release  map[string]chan runResult
	onRun    func(task domain.DownloadTask, sink domain.ProgressSink)
	startedC chan string
}

func newFakeRunner() *fakeRunner {
	return &fakeRunner{
		release:  make(map[string]chan runResult),
		startedC: make(chan string, 64),
	}
}

func (f *fakeRunner) releaseChan(id string) chan runResult {
	f.mu.Lock()
	defer f.mu.Unlock()
	ch, ok := f.release[id]
	if !ok {
		ch = make(chan runResult, 1)
		f.release[id] = ch
	}
	return ch
}

func (f *fakeRunner) Run(ctx context.Context, task domain.DownloadTask, sink domain.ProgressSink) (string, error) {
	f.mu.Lock()
	f.started = append(f.started, task.ID)
	hook := f.onRun
	f.mu.Unlock()
	f.startedC <- task.ID

	if hook != nil {
		hook(task, sink)
	}

	select {
	case res := <-f.releaseChan(task.ID):
		return res.path, res.err
	case <-ctx.Done():
		return "", ctx.Err()
	}
}

func (f *fakeRunner) finish(id, path string, err error) {
	f.releaseChan(id) <- runResult{path: path, err: err}
}

func (f *fakeRunner) startedIDs() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.started...)
}

// fakeHistory is an in-memory HistoryRepository
type fakeHistory struct {
	mu      sync.Mutex
	records map[string]*domain.DownloadTask
	order   []string
}

func newFakeHistory() *fakeHistory {
	return &fakeHistory{records: make(map[string]*domain.DownloadTask)}
}

func (h *fakeHistory) Save(task *domain.DownloadTask) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.records[task.ID]; !ok {
		h.order = append(h.order, task.ID)
	}
	h.records[task.ID] = task.Clone()
	return nil
}

func (h *fakeHistory) Delete(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.records, id)
	return nil
}

func (h *fakeHistory) DeleteMany(ids []string) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, id := range ids {
		delete(h.records, id)
	}
	return nil
}

func (h *fakeHistory) FindTerminal() ([]*domain.DownloadTask, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []*domain.DownloadTask
	for _, id := range h.order {
		if t, ok := h.records[id]; ok && t.IsTerminal() {
			out = append(out, t.Clone())
		}
	}
	return out, nil
}

func (h *fakeHistory) Close() error { return nil }

func (h *fakeHistory) get(id string) (*domain.DownloadTask, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.records[id]
	return t, ok
}

type staticBinaries struct {
	status domain.BinaryStatus
}

func (s staticBinaries) CachedStatus() domain.BinaryStatus { return s.status }

// recordingPublisher captures events in publish order
type recordingPublisher struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recordingPublisher) Publish(e domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingPublisher) forTask(id string) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, e := range r.events {
		if e.TaskID() == id {
			out = append(out, e)
		}
	}
	return out
}
