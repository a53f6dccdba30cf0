package anisystemd

import "github.com/pkg/errors"

// OutcomeKind says which arm of the coordinator's race finished first.
type OutcomeKind int

const (
	// WorkerCompleted means the worker returned on its own.
	WorkerCompleted OutcomeKind = iota
	// PluginChanged means an artifact changed and a restart is requested.
	PluginChanged
	// Interrupted means the process was asked to stop from outside.
	Interrupted
)

// String returns the outcome kind as written into the journal.
func (k OutcomeKind) String() string {
	switch k {
	case WorkerCompleted:
		return "worker completed"
	case PluginChanged:
		return "plugin changed"
	case Interrupted:
		return "interrupted"
	default:
		return "unknown"
	}
}

// Outcome is the single result of a coordinator run.
type Outcome struct {
	Kind OutcomeKind
	// Err is the worker's error. It is only ever set for WorkerCompleted.
	Err error
}

// Failed returns true if the outcome carries a worker error.
func (o Outcome) Failed() bool {
	return o.Kind == WorkerCompleted && o.Err != nil
}

// ExitCode returns the process exit code for the outcome. It is 0 unless the
// worker failed, in which case it is the worker's own exit code if it had one,
// or 1.
func (o Outcome) ExitCode() int {
	if !o.Failed() {
		return 0
	}

	var exitErr *WorkerExitError
	if errors.As(o.Err, &exitErr) && exitErr.ExitCode > 0 {
		return exitErr.ExitCode
	}

	return 1
}
