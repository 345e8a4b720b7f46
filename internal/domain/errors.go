package domain

import (
	"errors"
	"fmt"
)

var (
	// ErrTaskNotFound is returned when a task id is not present in the store
	ErrTaskNotFound = errors.New("task not found")
	// ErrInstallInProgress is returned when an install for the same tool is already running
	ErrInstallInProgress = errors.New("install already in progress")
	// ErrUnknownTool is returned for tool names the registry does not manage
	ErrUnknownTool = errors.New("unknown tool")
	// ErrBinaryMissing is returned when a required external tool cannot be located
	ErrBinaryMissing = errors.New("binary not installed")
	// ErrInvalidOptions wraps every rejection of caller-supplied input
	ErrInvalidOptions = errors.New("invalid options")
)

// ResolutionError means a metadata probe failed
type ResolutionError struct {
	URL    string
	Reason string
	Err    error
}

func (e *ResolutionError) Error() string {
	if e.URL == "" {
		return fmt.Sprintf("failed to resolve media: %s", e.Reason)
	}
	return fmt.Sprintf("failed to resolve media %s: %s", e.URL, e.Reason)
}

func (e *ResolutionError) Unwrap() error { return e.Err }

// SpawnError means the external process could not be started
type SpawnError struct {
	Tool Tool
	Err  error
}

func (e *SpawnError) Error() string {
	return fmt.Sprintf("failed to start %s: %v", e.Tool, e.Err)
}

func (e *SpawnError) Unwrap() error { return e.Err }

// RuntimeFailure means the external process exited unsuccessfully
type RuntimeFailure struct {
	ExitCode   int
	Diagnostic string
}

func (e *RuntimeFailure) Error() string {
	if e.Diagnostic == "" {
		return fmt.Sprintf("download tool exited with code %d", e.ExitCode)
	}
	return fmt.Sprintf("download tool exited with code %d: %s", e.ExitCode, e.Diagnostic)
}

// InstallError means a binary download, verification or write failed
type InstallError struct {
	Tool   Tool
	Reason string
	Err    error
}

func (e *InstallError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("failed to install %s: %s: %v", e.Tool, e.Reason, e.Err)
	}
	return fmt.Sprintf("failed to install %s: %s", e.Tool, e.Reason)
}

func (e *InstallError) Unwrap() error { return e.Err }

// InvalidStateError means an operation was requested against a task in an incompatible state
type InvalidStateError struct {
	TaskID string
	State  TaskState
	Op     string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("cannot %s task %s in state %s", e.Op, e.TaskID, e.State)
}
