package anisystemd

// eventType describes an event type.
type eventType = string

const (
	eventWarning          eventType = "warning"
	eventAcquired         eventType = "acquired lock"
	eventDirCreated       eventType = "plugin dir created"
	eventWatchStarted     eventType = "watch started"
	eventArtifactChanged  eventType = "artifact changed"
	eventNotifyFailed     eventType = "notify failed"
	eventReady            eventType = "ready"
	eventWorkerSpawned    eventType = "worker spawned"
	eventWorkerSpawnError eventType = "worker spawn error"
	eventWorkerExited     eventType = "worker exited"
	eventRestartRequested eventType = "restart requested"
	eventInterrupted      eventType = "interrupted"
	eventOutcome          eventType = "outcome"
)

// Event is an interface describing known events.
type Event interface {
	Type() string
	event()
}

// NewEvent creates a new event from the given event type. It is used primarily
// for decoding events from its type. Nil is returned if the event type is
// unknown.
func NewEvent(eventType string) Event {
	switch eventType {
	case eventWarning:
		return &EventWarning{}
	case eventAcquired:
		return &EventAcquired{}
	case eventDirCreated:
		return &EventDirCreated{}
	case eventWatchStarted:
		return &EventWatchStarted{}
	case eventArtifactChanged:
		return &EventArtifactChanged{}
	case eventNotifyFailed:
		return &EventNotifyFailed{}
	case eventReady:
		return &EventReady{}
	case eventWorkerSpawned:
		return &EventWorkerSpawned{}
	case eventWorkerSpawnError:
		return &EventWorkerSpawnError{}
	case eventWorkerExited:
		return &EventWorkerExited{}
	case eventRestartRequested:
		return &EventRestartRequested{}
	case eventInterrupted:
		return &EventInterrupted{}
	case eventOutcome:
		return &EventOutcome{}
	default:
		return nil
	}
}

// EventWarning is emitted when a non-fatal error occurs.
type EventWarning struct {
	Component string `json:"component"`
	Error     string `json:"error"`
}

func (ev *EventWarning) Type() string { return eventWarning }
func (ev *EventWarning) event()       {}

// EventAcquired is emitted when the flock (i.e. write lock on the journal) is
// acquired, which is on startup.
type EventAcquired struct{}

func (ev *EventAcquired) Type() string { return eventAcquired }
func (ev *EventAcquired) event()       {}

// EventDirCreated is emitted when the plugin directory did not exist and was
// created.
type EventDirCreated struct {
	Dir string `json:"dir"`
}

func (ev *EventDirCreated) Type() string { return eventDirCreated }
func (ev *EventDirCreated) event()       {}

// EventWatchStarted is emitted once the plugin directory is being watched.
type EventWatchStarted struct {
	Dir string `json:"dir"`
}

func (ev *EventWatchStarted) Type() string { return eventWatchStarted }
func (ev *EventWatchStarted) event()       {}

// EventArtifactChanged is emitted for every watch event that touches a
// recognized artifact. Only the first one leads to a restart.
type EventArtifactChanged struct {
	Kind  WatchKind `json:"kind"`
	Paths []string  `json:"paths"`
}

func (ev *EventArtifactChanged) Type() string { return eventArtifactChanged }
func (ev *EventArtifactChanged) event()       {}

// EventNotifyFailed is emitted when a notification to the init system could
// not be sent. It is advisory.
type EventNotifyFailed struct {
	State string `json:"state"`
	Error string `json:"error"`
}

func (ev *EventNotifyFailed) Type() string { return eventNotifyFailed }
func (ev *EventNotifyFailed) event()       {}

// EventReady is emitted after READY=1 was sent.
type EventReady struct{}

func (ev *EventReady) Type() string { return eventReady }
func (ev *EventReady) event()       {}

// EventWorkerSpawned is emitted when the worker process has been started.
type EventWorkerSpawned struct {
	PID     int    `json:"pid"`
	Command string `json:"command"`
}

func (ev *EventWorkerSpawned) Type() string { return eventWorkerSpawned }
func (ev *EventWorkerSpawned) event()       {}

// EventWorkerSpawnError is emitted when the worker process fails to start.
type EventWorkerSpawnError struct {
	Command string `json:"command"`
	Reason  string `json:"reason"`
}

func (ev *EventWorkerSpawnError) Type() string { return eventWorkerSpawnError }
func (ev *EventWorkerSpawnError) event()       {}

// EventWorkerExited is emitted when the worker process has stopped for any
// reason.
type EventWorkerExited struct {
	PID      int    `json:"pid"`
	Command  string `json:"command"`
	Error    string `json:"error,omitempty"`
	ExitCode int    `json:"exit_code"` // -1 if killed by a signal
}

// IsGraceful returns true if the process exited on its own accord.
func (ev EventWorkerExited) IsGraceful() bool {
	return ev.ExitCode != -1
}

func (ev *EventWorkerExited) Type() string { return eventWorkerExited }
func (ev *EventWorkerExited) event()       {}

// EventRestartRequested is emitted exactly once, when the coordinator decides
// that a plugin change ends the run.
type EventRestartRequested struct {
	Paths []string `json:"paths"`
}

func (ev *EventRestartRequested) Type() string { return eventRestartRequested }
func (ev *EventRestartRequested) event()       {}

// EventInterrupted is emitted when the coordinator observes an external
// interrupt before anything else.
type EventInterrupted struct{}

func (ev *EventInterrupted) Type() string { return eventInterrupted }
func (ev *EventInterrupted) event()       {}

// EventOutcome is the last event of every run.
type EventOutcome struct {
	Outcome  string `json:"outcome"`
	Restart  bool   `json:"restart"`
	ExitCode int    `json:"exit_code"`
	Error    string `json:"error,omitempty"`
}

func (ev *EventOutcome) Type() string { return eventOutcome }
func (ev *EventOutcome) event()       {}
