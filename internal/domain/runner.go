package domain

import "context"

// ProgressSink receives updates from a running task
type ProgressSink interface {
	// ReportProgress records a progress sample for the task
	ReportProgress(p Progress)

	// EnterPostProcessing signals the download phase is over and the secondary tool is running
	EnterPostProcessing()
}

// TaskRunner executes one download task to completion
type TaskRunner interface {
	// Run blocks until the task finishes or ctx is cancelled and returns the final artifact path
	Run(ctx context.Context, task DownloadTask, sink ProgressSink) (string, error)
}

// MetadataResolver probes a URL for downloadable formats
type MetadataResolver interface {
	Resolve(ctx context.Context, url string) (*MediaMetadata, error)
}

// BinaryLocator resolves the executable path of a managed tool
type BinaryLocator interface {
	// Path returns the current executable path for tool or ErrBinaryMissing
	Path(tool Tool) (string, error)
}
