package executor

import "time"

// Status classifies a host's outcome.
type Status int

const (
	StatusOK Status = iota
	StatusFailed
	StatusUnreachable
)

func (s Status) String() string {
	switch s {
	case StatusOK:
		return "ok"
	case StatusFailed:
		return "failed"
	case StatusUnreachable:
		return "unreachable"
	default:
		return "unknown"
	}
}

// TaskResult holds the result of one task on one host.
type TaskResult struct {
	Task     string // task label
	Command  string // command after substitution
	Stdout   []byte
	Stderr   []byte
	ExitCode int
	Duration time.Duration
	Err      error // *TaskError or *play.TemplateError; nil on success
}

// Outcome is exactly one of Success, Failure or Unreachable.
type Outcome interface {
	Status() Status
	outcome()
}

// Success means every task ran and exited zero.
type Success struct {
	Tasks []TaskResult
}

// Failure means the host was reached but a task failed. Tasks holds the
// completed tasks followed by the failing one; later tasks never ran.
type Failure struct {
	Tasks []TaskResult
	Err   error
}

// Unreachable means no connection could be made, so no task ran.
type Unreachable struct {
	Err error
}

func (Success) Status() Status     { return StatusOK }
func (Failure) Status() Status     { return StatusFailed }
func (Unreachable) Status() Status { return StatusUnreachable }

func (Success) outcome()     {}
func (Failure) outcome()     {}
func (Unreachable) outcome() {}

// HostResult holds the outcome of running the task list on a single host.
// It is not modified after being recorded in a ResultSet.
type HostResult struct {
	Host     string
	Outcome  Outcome
	Duration time.Duration
}

// Status returns the classification of the host's outcome.
func (r *HostResult) Status() Status {
	return r.Outcome.Status()
}

// Tasks returns the per-task results, empty for unreachable hosts.
func (r *HostResult) Tasks() []TaskResult {
	switch o := r.Outcome.(type) {
	case Success:
		return o.Tasks
	case Failure:
		return o.Tasks
	case Unreachable:
		return nil
	default:
		panic("executor: unknown outcome type")
	}
}

// Err returns the error that ended the host's run, nil on success.
func (r *HostResult) Err() error {
	switch o := r.Outcome.(type) {
	case Success:
		return nil
	case Failure:
		return o.Err
	case Unreachable:
		return o.Err
	default:
		panic("executor: unknown outcome type")
	}
}
