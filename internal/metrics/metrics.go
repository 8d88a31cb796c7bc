// Package metrics wraps github.com/prometheus/client_golang counters and
// gauges behind a private *prometheus.Registry injected into Metrics,
// never the global promauto default registry, consistent with
// SPEC_FULL.md's "no package-level globals" rule. Grounded on
// other_examples/MOHCentral-opm-stats-api's worker pool, which declares
// the same counter/gauge/histogram shapes this package exposes
// (ingested/processed/failed counters, a queue-depth gauge, a duration
// histogram) — generalized from promauto's global registration to
// explicit registration against an injected registry.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handler returns the /metrics scrape endpoint for reg, suitable for
// passing straight into gateway.Hub.Router.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// Metrics holds every counter/gauge the engine, matchmaking loop, and
// partition executors report against, per SPEC_FULL.md's Metrics
// addendum.
type Metrics struct {
	// TicksProcessed counts engine ticks advanced, labeled by partition.
	TicksProcessed *prometheus.CounterVec

	// EventsPublished counts events published onto a partition's events
	// channel.
	EventsPublished *prometheus.CounterVec

	// CommandRejections counts commands the engine dropped for violating
	// a precondition (BadCommandError), labeled by reason.
	CommandRejections *prometheus.CounterVec

	// QueueDepth is the current matchmaking queue size per (game_type,
	// queue_mode) pool.
	QueueDepth *prometheus.GaugeVec

	// LeaseHeld is 1 while this process holds the named lease, 0
	// otherwise, per internal/lease.Lease.
	LeaseHeld *prometheus.GaugeVec

	// MatchesFormed counts games formed by the matchmaking loop, labeled
	// by game_type.
	MatchesFormed *prometheus.CounterVec
}

// New creates and registers every metric against reg. Each call must use
// its own registry; registering the same collector twice against one
// registry panics.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		TicksProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gridmatch",
			Subsystem: "engine",
			Name:      "ticks_processed_total",
			Help:      "Number of engine ticks advanced, by partition.",
		}, []string{"partition"}),
		EventsPublished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gridmatch",
			Subsystem: "pubsub",
			Name:      "events_published_total",
			Help:      "Number of events published onto a partition's events channel.",
		}, []string{"partition"}),
		CommandRejections: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gridmatch",
			Subsystem: "engine",
			Name:      "command_rejections_total",
			Help:      "Number of commands dropped for violating an engine precondition.",
		}, []string{"reason"}),
		QueueDepth: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gridmatch",
			Subsystem: "matchmaking",
			Name:      "queue_depth",
			Help:      "Current matchmaking queue size per (game_type, queue_mode) pool.",
		}, []string{"game_type", "queue_mode"}),
		LeaseHeld: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "gridmatch",
			Subsystem: "lease",
			Name:      "held",
			Help:      "1 while this process holds the named lease, 0 otherwise.",
		}, []string{"key"}),
		MatchesFormed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "gridmatch",
			Subsystem: "matchmaking",
			Name:      "matches_formed_total",
			Help:      "Number of matches formed, by game type.",
		}, []string{"game_type"}),
	}

	reg.MustRegister(
		m.TicksProcessed,
		m.EventsPublished,
		m.CommandRejections,
		m.QueueDepth,
		m.LeaseHeld,
		m.MatchesFormed,
	)
	return m
}
