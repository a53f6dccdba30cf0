package anisystemd

import (
	"context"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"github.com/pyw0w/AniSystemd/anisystemd/internal/exec"
)

// Worker is the long-running task the shim supervises. Start blocks until the
// worker is done. The context is the shim's interrupt: once it is canceled,
// the worker should shut itself down and return.
type Worker interface {
	Start(ctx context.Context) error
}

// WorkerFunc is a function that implements Worker.
type WorkerFunc func(ctx context.Context) error

// Start calls f.
func (f WorkerFunc) Start(ctx context.Context) error { return f(ctx) }

// Starter is implemented by workers that can tell when they are up. The
// coordinator holds READY=1 back until Started is closed, and never sends it
// if the worker returns first.
type Starter interface {
	Started() <-chan struct{}
}

// WorkerExitError is returned by ProcessWorker when the process exits with a
// non-zero code that was not caused by the shim stopping it.
type WorkerExitError struct {
	Command  string
	ExitCode int // -1 if killed by a signal
}

func (err *WorkerExitError) Error() string {
	if err.ExitCode == -1 {
		return fmt.Sprintf("worker %q was killed by a signal", err.Command)
	}
	return fmt.Sprintf("worker %q exited with code %d", err.Command, err.ExitCode)
}

// ProcessWaitTimeout is the time to wait for the worker process to exit after
// being interrupted until SIGKILLing it.
var ProcessWaitTimeout = 10 * time.Second

// ProcessWorker runs a command as the worker. On interrupt, it sends SIGINT to
// the process and waits up to WaitTimeout before killing it.
type ProcessWorker struct {
	WaitTimeout time.Duration

	j Journaler

	argv      []string
	startProc func() (exec.Process, error)

	started     chan struct{}
	startedOnce sync.Once
}

var (
	_ Worker  = (*ProcessWorker)(nil)
	_ Starter = (*ProcessWorker)(nil)
)

// NewProcessWorker creates a worker that runs argv.
func NewProcessWorker(argv []string, j Journaler) *ProcessWorker {
	argv = append([]string(nil), argv...)

	return &ProcessWorker{
		WaitTimeout: ProcessWaitTimeout,

		j:       j,
		argv:    argv,
		started: make(chan struct{}),
		startProc: func() (exec.Process, error) {
			return exec.StartProcess(argv)
		},
	}
}

// Command returns the command line as a single string, for display.
func (w *ProcessWorker) Command() string {
	return strings.Join(w.argv, " ")
}

// Started returns a channel that is closed once the process has been spawned.
// It stays open if spawning fails.
func (w *ProcessWorker) Started() <-chan struct{} {
	return w.started
}

// Start starts the process and waits for it to exit. A non-zero exit is an
// error, unless the process was stopped because ctx was canceled.
func (w *ProcessWorker) Start(ctx context.Context) error {
	p, err := w.startProc()
	if err != nil {
		w.j.Write(&EventWorkerSpawnError{
			Command: w.Command(),
			Reason:  err.Error(),
		})
		return errors.Wrap(err, "failed to start worker")
	}

	w.j.Write(&EventWorkerSpawned{
		PID:     p.PID(),
		Command: w.Command(),
	})

	w.startedOnce.Do(func() { close(w.started) })

	exited := make(chan struct{})
	stopped := make(chan struct{})

	go func() {
		defer close(stopped)

		select {
		case <-ctx.Done():
			w.stop(p, exited)
		case <-exited:
		}
	}()

	// Wait must stay on this goroutine; see exec.StartProcess.
	status := p.Wait()
	close(exited)
	<-stopped

	ev := &EventWorkerExited{
		PID:      status.PID,
		Command:  w.Command(),
		ExitCode: status.Code,
	}
	if status.Error != nil {
		ev.Error = status.Error.Error()
	}

	// Write to the journal before returning so that the exit is recorded even
	// if the caller is about to exit the process.
	w.j.Write(ev)

	if status.Error != nil {
		return errors.Wrap(status.Error, "failed to wait for worker")
	}

	if status.Code == 0 || ctx.Err() != nil {
		return nil
	}

	return &WorkerExitError{
		Command:  w.Command(),
		ExitCode: status.Code,
	}
}

// stop interrupts the process and escalates to SIGKILL if it has not exited
// within WaitTimeout.
func (w *ProcessWorker) stop(p exec.Process, exited <-chan struct{}) {
	if err := p.Signal(os.Interrupt); err != nil {
		// Try to SIGKILL if we can't SIGINT (looking at you, Windows).
		p.Kill()
	}

	after := time.NewTimer(w.WaitTimeout)
	defer after.Stop()

	select {
	case <-after.C:
		// Timeout reached and the program still hasn't exited yet. Send
		// SIGKILL and bail, since there's not much we can do here.
		warn(w.j, "worker", errors.New("timed out waiting for worker to exit, killing"))
		p.Kill()

	case <-exited:
	}
}
