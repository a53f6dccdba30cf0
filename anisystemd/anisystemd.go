// Package anisystemd is the core of the anisystemd shim. It provides a handful
// of components that run independently and talk to each other over channels:
// a directory watcher, a heartbeat emitter, a worker runner and the
// coordinator that decides how the process ends.
//
// # Mechanism of Operation
//
// # Restart Requests
//
// anisystemd is meant to run as a systemd service with Restart=always. The
// shim itself never restarts anything; it only exits. When a plugin or service
// artifact in the plugin directory is created, modified or removed, the
// coordinator decides that the process should be restarted, waits a moment
// for logs to flush and returns an exit code of 0. systemd then starts a fresh
// instance, which loads the new artifacts.
//
// Because a clean exit is also what happens on SIGTERM, systemd cannot tell a
// restart request apart from a normal shutdown. The journal can: every run
// ends with exactly one outcome event.
//
// # Outcomes
//
// The coordinator races three things against each other: the worker
// finishing, a plugin change, and an interrupt (SIGINT or SIGTERM). Whichever
// happens first decides the outcome, and the rest are ignored:
//
//   - worker finished: exit 0, or non-zero if the worker failed
//   - plugin changed: exit 0, restart requested
//   - interrupted: exit 0
//
// Only a worker failure is ever reported as a failure. A worker failure that
// loses the race against a plugin change is not reported at all, since the
// process is exiting anyway.
//
// # Liveness
//
// While running, the shim sends READY=1 once the worker is up and WATCHDOG=1
// periodically over the sd_notify socket. READY=1 is never sent for a worker
// that fails to start. Neither is fatal when it fails; a missed watchdog is
// systemd's problem to act on.
package anisystemd
