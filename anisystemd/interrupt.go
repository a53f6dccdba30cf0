package anisystemd

import (
	"context"
	"os/signal"
	"syscall"
)

// InterruptContext returns a context that is canceled by the first SIGINT or
// SIGTERM. Once it is, the signals get their default behavior back, so a
// second one kills the process even while the worker is still stopping.
func InterruptContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-ctx.Done()
		stop()
	}()

	return ctx, stop
}
