package anisystemd

import (
	"time"

	"github.com/coreos/go-systemd/v22/daemon"
	"github.com/pkg/errors"
)

// NotifyState is a state string understood by sd_notify(3).
type NotifyState string

const (
	NotifyReady    NotifyState = daemon.SdNotifyReady
	NotifyWatchdog NotifyState = daemon.SdNotifyWatchdog
	NotifyStopping NotifyState = daemon.SdNotifyStopping
)

// Notifier sends state notifications to the init system. Failures are always
// advisory.
type Notifier interface {
	Notify(NotifyState) error
}

// NotifierFunc is a function that implements Notifier.
type NotifierFunc func(NotifyState) error

// Notify calls f.
func (f NotifierFunc) Notify(state NotifyState) error { return f(state) }

// SystemdNotifier notifies systemd over $NOTIFY_SOCKET. When the socket is not
// set, such as when running outside systemd, notifications are silently
// dropped.
type SystemdNotifier struct{}

var _ Notifier = SystemdNotifier{}

// Notify sends the given state.
func (SystemdNotifier) Notify(state NotifyState) error {
	if _, err := daemon.SdNotify(false, string(state)); err != nil {
		return errors.Wrapf(err, "failed to send %s", state)
	}
	return nil
}

// DefaultHeartbeatInterval is used when systemd does not tell us the watchdog
// timeout.
const DefaultHeartbeatInterval = 30 * time.Second

// WatchdogInterval returns the heartbeat interval to use: half of systemd's
// WatchdogSec if the watchdog is enabled for this process, otherwise
// DefaultHeartbeatInterval.
func WatchdogInterval() time.Duration {
	timeout, err := daemon.SdWatchdogEnabled(false)
	if err != nil || timeout <= 0 {
		return DefaultHeartbeatInterval
	}
	return timeout / 2
}

// notify sends the state and journals a failure. It reports whether the
// notification was sent.
func notify(n Notifier, state NotifyState, j Journaler) bool {
	if err := n.Notify(state); err != nil {
		notifications.WithLabelValues(string(state), "error").Inc()
		j.Write(&EventNotifyFailed{
			State: string(state),
			Error: err.Error(),
		})
		return false
	}

	notifications.WithLabelValues(string(state), "ok").Inc()
	return true
}
