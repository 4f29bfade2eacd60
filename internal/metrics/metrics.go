// Package metrics holds the prometheus collectors shared by the engines and
// the room service.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "jukebox"

var (
	EngineTicks = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "ticks_total",
		Help:      "Track-end detection ticks.",
	}, []string{"engine"})

	EngineTickDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "tick_duration_seconds",
		Help:      "Time spent scanning active rooms in one tick.",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5},
	}, []string{"engine"})

	Advances = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "advances_total",
		Help:      "Room advances by outcome.",
	}, []string{"engine", "outcome"})

	EngineErrors = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "engine",
		Name:      "errors_total",
		Help:      "Per-room failures by phase.",
	}, []string{"engine", "phase"})

	LockContention = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "lock",
		Name:      "contention_total",
		Help:      "Advance attempts skipped because the room lock was held.",
	}, []string{"source"})

	Votes = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "room",
		Name:      "votes_total",
		Help:      "Vote-skip requests by result.",
	}, []string{"result"})

	DriftReports = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Subsystem: "room",
		Name:      "drift_reports_total",
		Help:      "Client position reports by classified action.",
	}, []string{"action"})
)

func Handler() http.Handler {
	return promhttp.Handler()
}
