package anisystemd

import (
	"context"
	"sync"
	"time"

	"github.com/pkg/errors"
)

// DefaultFlushDelay is how long the coordinator waits after deciding to
// restart, so that in-flight log writes reach the journal.
const DefaultFlushDelay = time.Second

// DefaultStopTimeout is how long the coordinator waits for the worker to
// finish its own shutdown after an interrupt.
const DefaultStopTimeout = 15 * time.Second

// ErrAlreadyRan is returned if Run is called more than once.
var ErrAlreadyRan = errors.New("coordinator already ran")

// CoordinatorOpts holds everything a Coordinator needs. Worker and Change are
// required; the rest is optional.
type CoordinatorOpts struct {
	Worker Worker
	Change *ChangeCondition

	// Watcher, if set, is driven by Run and closed once Run leaves the
	// running state. It should raise Change.
	Watcher   *Watcher
	Heartbeat *Heartbeat
	Notifier  Notifier
	Journaler Journaler

	// FlushDelay defaults to DefaultFlushDelay.
	FlushDelay time.Duration
	// StopTimeout defaults to DefaultStopTimeout. A negative value disables
	// waiting for the worker.
	StopTimeout time.Duration
}

// Coordinator runs the worker alongside the watcher and the heartbeat and
// decides, exactly once, how the process ends.
type Coordinator struct {
	FlushDelay  time.Duration
	StopTimeout time.Duration

	worker    Worker
	change    *ChangeCondition
	watcher   *Watcher
	heartbeat *Heartbeat
	notifier  Notifier
	j         Journaler

	mutex   sync.Mutex
	ran     bool
	restart bool
}

// NewCoordinator creates a new coordinator. It does not start anything.
func NewCoordinator(opts CoordinatorOpts) *Coordinator {
	c := &Coordinator{
		FlushDelay:  opts.FlushDelay,
		StopTimeout: opts.StopTimeout,

		worker:    opts.Worker,
		change:    opts.Change,
		watcher:   opts.Watcher,
		heartbeat: opts.Heartbeat,
		notifier:  opts.Notifier,
		j:         opts.Journaler,
	}

	if c.FlushDelay == 0 {
		c.FlushDelay = DefaultFlushDelay
	}
	if c.StopTimeout == 0 {
		c.StopTimeout = DefaultStopTimeout
	}
	if c.notifier == nil {
		c.notifier = NotifierFunc(func(NotifyState) error { return nil })
	}
	if c.j == nil {
		c.j = Discard
	}

	return c
}

// ShouldRestart returns true if the run ended because of a plugin change.
func (c *Coordinator) ShouldRestart() bool {
	c.mutex.Lock()
	defer c.mutex.Unlock()

	return c.restart
}

// Run starts the worker, the watcher and the heartbeat, then blocks until the
// worker returns, an artifact changes or ctx is canceled, whichever happens
// first. ctx is also handed to the worker as its interrupt. READY=1 is sent
// once the worker is up; see Starter.
//
// The returned error is the worker's error if the worker failed, and nil
// otherwise; in particular, a restart request is not an error.
func (c *Coordinator) Run(ctx context.Context) (Outcome, error) {
	c.mutex.Lock()
	ran := c.ran
	c.ran = true
	c.mutex.Unlock()

	if ran {
		return Outcome{}, ErrAlreadyRan
	}

	watchCtx, stopWatch := context.WithCancel(context.Background())
	watchDone := c.spawn(func() {
		if c.watcher != nil {
			c.watcher.Watch(watchCtx)
		}
	})

	// Buffered, so that a worker that finishes after losing the race does not
	// leak its goroutine.
	workerDone := make(chan error, 1)
	go func() { workerDone <- c.worker.Start(ctx) }()

	if c.awaitStart(ctx, workerDone) && notify(c.notifier, NotifyReady, c.j) {
		c.j.Write(&EventReady{})
	}

	hbCtx, stopHeartbeat := context.WithCancel(context.Background())
	hbDone := c.spawn(func() {
		if c.heartbeat != nil {
			c.heartbeat.Run(hbCtx)
		}
	})

	outcome := c.race(ctx, workerDone)

	notify(c.notifier, NotifyStopping, c.j)

	stopHeartbeat()
	<-hbDone

	// The watcher would be reclaimed on exit anyway, but closing it here lets
	// a caller run several coordinators in one process.
	stopWatch()
	if c.watcher != nil {
		if err := c.watcher.Close(); err != nil {
			warn(c.j, "watcher", errors.Wrap(err, "failed to close watcher"))
		}
	}
	<-watchDone

	if outcome.Kind == Interrupted {
		c.waitWorker(workerDone)
	}

	ev := &EventOutcome{
		Outcome:  outcome.Kind.String(),
		Restart:  c.ShouldRestart(),
		ExitCode: outcome.ExitCode(),
	}
	if outcome.Err != nil {
		ev.Error = outcome.Err.Error()
	}
	c.j.Write(ev)

	outcomes.WithLabelValues(outcome.Kind.String()).Inc()

	if outcome.Failed() {
		return outcome, outcome.Err
	}
	return outcome, nil
}

// awaitStart blocks until the worker reports that it is up, if it can. It
// returns false if the worker returned before starting or if the race was
// decided first, in which case READY is not sent.
func (c *Coordinator) awaitStart(ctx context.Context, workerDone chan error) bool {
	starter, ok := c.worker.(Starter)
	if !ok {
		return true
	}

	select {
	case <-starter.Started():
		return true

	case err := <-workerDone:
		// Put the result back for race; nothing else sends on workerDone.
		workerDone <- err

		// The worker may have started and exited right away.
		select {
		case <-starter.Started():
			return true
		default:
			return false
		}

	case <-c.change.Done():
		return false
	case <-ctx.Done():
		return false
	}
}

// race blocks until the first of the three arms is ready. The arms that lose
// are never looked at again.
func (c *Coordinator) race(ctx context.Context, workerDone <-chan error) Outcome {
	select {
	case err := <-workerDone:
		return Outcome{Kind: WorkerCompleted, Err: err}

	case <-c.change.Done():
		c.mutex.Lock()
		c.restart = true
		c.mutex.Unlock()

		// The worker is left alone: it either notices the interrupt on its
		// own or dies with the process.
		c.j.Write(&EventRestartRequested{Paths: c.change.Paths()})
		time.Sleep(c.FlushDelay)

		return Outcome{Kind: PluginChanged}

	case <-ctx.Done():
		c.j.Write(&EventInterrupted{})
		return Outcome{Kind: Interrupted}
	}
}

// waitWorker gives the worker up to StopTimeout to finish reacting to the
// interrupt. Its result is discarded.
func (c *Coordinator) waitWorker(workerDone <-chan error) {
	if c.StopTimeout < 0 {
		return
	}

	timer := time.NewTimer(c.StopTimeout)
	defer timer.Stop()

	select {
	case <-workerDone:
	case <-timer.C:
		warn(c.j, "coordinator", errors.New("worker did not stop in time, exiting anyway"))
	}
}

func (c *Coordinator) spawn(fn func()) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		fn()
	}()
	return done
}
