package executor

import (
	"errors"
	"fmt"
)

// ConnectionError means a host could not be reached. It is recorded as an
// Unreachable outcome and never aborts the run.
type ConnectionError struct {
	Host     string
	Attempts int
	Err      error
}

func (e *ConnectionError) Error() string {
	if e.Attempts > 1 {
		return fmt.Sprintf("connect %s (%d attempts): %v", e.Host, e.Attempts, e.Err)
	}
	return fmt.Sprintf("connect %s: %v", e.Host, e.Err)
}

func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// TaskError means a task exited non-zero or could not be executed.
type TaskError struct {
	Task     string
	ExitCode int
	Err      error // nil when the command ran and merely exited non-zero
}

func (e *TaskError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("task %q: %v", e.Task, e.Err)
	}
	return fmt.Sprintf("task %q: exit status %d", e.Task, e.ExitCode)
}

func (e *TaskError) Unwrap() error {
	return e.Err
}

// IsTransient reports whether a connect error may succeed on a fresh
// attempt. Connectors opt in by returning an error (anywhere in the chain)
// with a Transient() bool method.
func IsTransient(err error) bool {
	var t interface{ Transient() bool }
	if errors.As(err, &t) {
		return t.Transient()
	}
	return false
}
