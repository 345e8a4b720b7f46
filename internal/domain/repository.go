package domain

// HistoryRepository persists terminal tasks across restarts
type HistoryRepository interface {
	// Save inserts or updates a terminal task
	Save(task *DownloadTask) error

	// Delete deletes a task by ID
	Delete(id string) error

	// DeleteMany deletes the records with the given IDs
	DeleteMany(ids []string) error

	// FindTerminal returns completed, failed and cancelled tasks in creation order
	FindTerminal() ([]*DownloadTask, error)

	// Close releases the underlying storage
	Close() error
}
