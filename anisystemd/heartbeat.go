package anisystemd

import (
	"context"
	"time"
)

// Heartbeat periodically tells the init system that the process is alive.
// It never stops on its own; failures are journaled and otherwise ignored.
type Heartbeat struct {
	Interval time.Duration

	n Notifier
	j Journaler
}

// NewHeartbeat creates a heartbeat that sends WATCHDOG=1 every interval. A
// non-positive interval uses WatchdogInterval.
func NewHeartbeat(interval time.Duration, n Notifier, j Journaler) *Heartbeat {
	if interval <= 0 {
		interval = WatchdogInterval()
	}

	return &Heartbeat{
		Interval: interval,
		n:        n,
		j:        j,
	}
}

// Run sends heartbeats until the context is canceled. The first heartbeat is
// sent one interval after Run is called.
func (hb *Heartbeat) Run(ctx context.Context) {
	ticker := time.NewTicker(hb.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			// The ticker may have fired at the same time as the cancel.
			if ctx.Err() != nil {
				return
			}
			notify(hb.n, NotifyWatchdog, hb.j)
		}
	}
}
