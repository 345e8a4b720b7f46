package domain

import "time"

// EventType names a ProgressBus event
type EventType string

const (
	EventDownloadProgress     EventType = "media-download-progress"
	EventDownloadStateChanged EventType = "media-download-state-changed"
	EventBinaryInstall        EventType = "binary-install-progress"
)

// DownloadProgressPayload carries one progress sample for a task
type DownloadProgressPayload struct {
	TaskID          string  `json:"taskId"`
	ProgressPercent float64 `json:"progressPercent"`
	DownloadedBytes int64   `json:"downloadedBytes"`
	TotalBytes      *int64  `json:"totalBytes"`
	Speed           *string `json:"speed"`
	ETA             *string `json:"eta"`
}

// StateChangedPayload carries a task state transition
type StateChangedPayload struct {
	TaskID     string    `json:"taskId"`
	State      TaskState `json:"state"`
	OutputPath string    `json:"outputPath,omitempty"`
	Error      string    `json:"error,omitempty"`
}

// InstallProgressPayload carries byte progress of a binary install
type InstallProgressPayload struct {
	Tool            Tool   `json:"tool"`
	DownloadedBytes int64  `json:"downloadedBytes"`
	TotalBytes      *int64 `json:"totalBytes"`
}

// Event is one message on the ProgressBus. Exactly one payload is set.
type Event struct {
	Type         EventType                `json:"type"`
	Timestamp    time.Time                `json:"timestamp"`
	Progress     *DownloadProgressPayload `json:"progress,omitempty"`
	StateChanged *StateChangedPayload     `json:"stateChanged,omitempty"`
	Install      *InstallProgressPayload  `json:"install,omitempty"`
}

// TaskID returns the task the event refers to, empty for install events
func (e Event) TaskID() string {
	switch {
	case e.Progress != nil:
		return e.Progress.TaskID
	case e.StateChanged != nil:
		return e.StateChanged.TaskID
	}
	return ""
}

// NewProgressEvent builds a progress event from a task snapshot
func NewProgressEvent(t *DownloadTask) Event {
	return Event{
		Type:      EventDownloadProgress,
		Timestamp: time.Now(),
		Progress: &DownloadProgressPayload{
			TaskID:          t.ID,
			ProgressPercent: t.ProgressPercent,
			DownloadedBytes: t.DownloadedBytes,
			TotalBytes:      t.TotalBytes,
			Speed:           t.Speed,
			ETA:             t.ETA,
		},
	}
}

// NewStateChangedEvent builds a state change event from a task snapshot
func NewStateChangedEvent(t *DownloadTask) Event {
	return Event{
		Type:      EventDownloadStateChanged,
		Timestamp: time.Now(),
		StateChanged: &StateChangedPayload{
			TaskID:     t.ID,
			State:      t.State,
			OutputPath: t.OutputPath,
			Error:      t.Error,
		},
	}
}

// NewInstallEvent builds an install progress event
func NewInstallEvent(tool Tool, downloaded int64, total *int64) Event {
	return Event{
		Type:      EventBinaryInstall,
		Timestamp: time.Now(),
		Install: &InstallProgressPayload{
			Tool:            tool,
			DownloadedBytes: downloaded,
			TotalBytes:      total,
		},
	}
}

// EventPublisher accepts events for fan-out
type EventPublisher interface {
	Publish(event Event)
}
