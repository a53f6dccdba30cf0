package anisystemd

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// artifactEvents counts watch events that touched a recognized artifact.
	artifactEvents = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anisystemd_artifact_events_total",
			Help: "Total watch events on plugin or service artifacts by kind",
		},
		[]string{"kind"},
	)

	// watchErrors counts errors reported by the filesystem backend.
	watchErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "anisystemd_watch_errors_total",
			Help: "Total errors reported by the plugin directory watcher",
		},
	)

	// notifications counts sd_notify calls by state and result.
	notifications = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anisystemd_notifications_total",
			Help: "Total init system notifications by state and result",
		},
		[]string{"state", "result"},
	)

	// outcomes counts finished coordinator runs by outcome.
	outcomes = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "anisystemd_outcomes_total",
			Help: "Total coordinator runs by outcome",
		},
		[]string{"outcome"},
	)
)
