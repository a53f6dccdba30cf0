// Package exec provides an abstraction around package os' Process
// implementation for easier testing.
package exec

import (
	"os"
	osexec "os/exec"
	"runtime"
	"syscall"

	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// Process describes a command process.
type Process interface {
	PID() int
	Signal(os.Signal) error
	Kill() error
	Wait() ExitStatus
}

// ExitStatus is a process' exit status.
type ExitStatus struct {
	PID   int
	Code  int // -1 if killed by a signal
	Error error
}

type process struct {
	*os.Process
}

var _ Process = process{}

// StartProcess creates a new command process on the system. The process
// inherits the environment and the standard streams. argv[0] is looked up in
// $PATH if it does not contain a slash.
//
// The calling goroutine is locked to its OS thread until Wait returns, so
// Wait must be called on the same goroutine.
func StartProcess(argv []string) (Process, error) {
	if len(argv) == 0 {
		return nil, errors.New("empty command")
	}

	path, err := osexec.LookPath(argv[0])
	if err != nil {
		return nil, errors.Wrap(err, "failed to find command")
	}

	// Lock this goroutine to the OS thread for Pdeathsig.
	// See https://github.com/golang/go/issues/27505.
	runtime.LockOSThread()

	// Linux-only: become the subreaper so that a worker that double-forks
	// still reports back to us instead of being reparented to init.
	if err := unix.Prctl(unix.PR_SET_CHILD_SUBREAPER, 1, 0, 0, 0); err != nil {
		runtime.UnlockOSThread()
		return nil, errors.Wrap(err, "failed to set subreaper")
	}

	p, err := os.StartProcess(path, argv, &os.ProcAttr{
		Files: []*os.File{os.Stdin, os.Stdout, os.Stderr},
		// Linux-only: the worker dies with us. On a plugin change we exit
		// without waiting for it, and this is what reclaims it.
		Sys: &syscall.SysProcAttr{Pdeathsig: syscall.SIGTERM},
	})
	if err != nil {
		runtime.UnlockOSThread()
		return nil, err
	}

	return process{p}, nil
}

func (proc process) PID() int {
	return proc.Pid
}

// Wait waits for the process to exit. It must be called on the same goroutine
// as StartProcess.
func (proc process) Wait() ExitStatus {
	s, err := proc.Process.Wait()
	runtime.UnlockOSThread()

	return ExitStatus{
		PID:   proc.Pid,
		Code:  s.ExitCode(),
		Error: err,
	}
}
