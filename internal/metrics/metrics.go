package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Connection registry metrics
var (
	// ConnectionsOpen tracks currently open push connections by scope.
	ConnectionsOpen = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "push_connections_open",
			Help: "Currently open push connections by scope (console/display)",
		},
		[]string{"scope"},
	)

	// ConnectionsTotal counts push connections ever opened, by scope.
	ConnectionsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "push_connections_total",
			Help: "Total push connections opened by scope",
		},
		[]string{"scope"},
	)
)

// Broadcaster metrics
var (
	// EventsPublished counts publish calls by event type.
	EventsPublished = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_events_published_total",
			Help: "Events published by type",
		},
		[]string{"type"},
	)

	// EventsDelivered counts per-connection deliveries by event type.
	EventsDelivered = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "broadcast_events_delivered_total",
			Help: "Per-connection event deliveries by type",
		},
		[]string{"type"},
	)

	// SlowClientsEvicted counts connections dropped because their send
	// buffer was full at delivery time.
	SlowClientsEvicted = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "broadcast_slow_clients_evicted_total",
			Help: "Connections evicted for falling behind on delivery",
		},
	)

	// PushWriteFailures counts broken-pipe style write failures on push
	// connections.
	PushWriteFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "push_write_failures_total",
			Help: "Write failures on push connections",
		},
	)

	// PushPingFailures counts keep-alive ping failures.
	PushPingFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "push_ping_failures_total",
			Help: "Keep-alive ping failures on push connections",
		},
	)
)

// Liveness metrics
var (
	// HeartbeatsTotal counts liveness pings ingested by outcome.
	HeartbeatsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "display_heartbeats_total",
			Help: "Display liveness pings by outcome (ok/registered/limited/error)",
		},
		[]string{"outcome"},
	)
)

// External feed cache metrics
var (
	// FeedRefreshTotal counts feed refresh attempts by status.
	FeedRefreshTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "feed_refresh_total",
			Help: "External feed refresh attempts by status (ok/error/skipped)",
		},
		[]string{"status"},
	)

	// FeedFetchDuration tracks remote calendar fetch latency in seconds.
	FeedFetchDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "feed_fetch_duration_seconds",
			Help:    "Remote calendar fetch duration in seconds",
			Buckets: []float64{.05, .1, .25, .5, 1, 2.5, 5, 10},
		},
	)

	// FeedCircuitState tracks the fetch circuit breaker state
	// (0=closed, 1=half-open, 2=open).
	FeedCircuitState = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "feed_fetch_circuit_state",
			Help: "Feed fetch circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
	)
)

// Cross-process relay metrics
var (
	// RelayMessages counts relay traffic by direction (published/received/skipped).
	RelayMessages = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "relay_messages_total",
			Help: "Cross-process relay messages by direction",
		},
		[]string{"direction"},
	)
)
