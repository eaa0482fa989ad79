// Package metrics declares the process's Prometheus metrics.
//
// Naming convention: namespace_subsystem_name.
//   - namespace: catbox_quiz
//   - subsystem: room, socket, edit, engine, rate_limit, redis, circuit_breaker, blob
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveRooms tracks the current number of live rooms.
	ActiveRooms = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "catbox_quiz",
		Subsystem: "room",
		Name:      "rooms_active",
		Help:      "Current number of active rooms",
	})

	// RoomsReapedTotal counts rooms the reaper has stopped for inactivity.
	RoomsReapedTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "catbox_quiz",
		Subsystem: "room",
		Name:      "reaped_total",
		Help:      "Total rooms stopped by the idle reaper",
	})

	// ActiveSockets tracks the current number of open sockets across all rooms.
	ActiveSockets = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "catbox_quiz",
		Subsystem: "socket",
		Name:      "sockets_active",
		Help:      "Current number of open sockets",
	})

	// CommandsTotal counts dispatched commands by endpoint and outcome.
	CommandsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catbox_quiz",
		Subsystem: "socket",
		Name:      "commands_total",
		Help:      "Total commands dispatched",
	}, []string{"cmd", "status"})

	// CommandDuration tracks handler latency.
	CommandDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: "catbox_quiz",
		Subsystem: "socket",
		Name:      "command_duration_seconds",
		Help:      "Time spent in a command handler",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	}, []string{"cmd"})

	// EditSavesTotal counts debounced draft saves, by outcome.
	EditSavesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catbox_quiz",
		Subsystem: "edit",
		Name:      "saves_total",
		Help:      "Total debounced draft save attempts",
	}, []string{"status"})

	// EpisodeTransitionsTotal counts lifecycle transitions by target state.
	EpisodeTransitionsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catbox_quiz",
		Subsystem: "engine",
		Name:      "episode_transitions_total",
		Help:      "Total episode lifecycle transitions",
	}, []string{"state"})

	// CircuitBreakerState mirrors sony/gobreaker's state for the outbound IdP
	// client: 0 closed, 1 open, 2 half-open.
	CircuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "catbox_quiz",
		Subsystem: "circuit_breaker",
		Name:      "state",
		Help:      "Current state of the identity-provider circuit breaker",
	}, []string{"service"})

	// RateLimitExceeded counts requests rejected by the rate limiter.
	RateLimitExceeded = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catbox_quiz",
		Subsystem: "rate_limit",
		Name:      "exceeded_total",
		Help:      "Total requests that exceeded the rate limit",
	}, []string{"bucket"})

	// RedisOperationsTotal counts operations against the optional Redis-backed
	// rate limit store.
	RedisOperationsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catbox_quiz",
		Subsystem: "redis",
		Name:      "operations_total",
		Help:      "Total Redis operations",
	}, []string{"operation", "status"})

	// BlobUploadsTotal counts blob uploads by outcome (created, duplicate,
	// rejected).
	BlobUploadsTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "catbox_quiz",
		Subsystem: "blob",
		Name:      "uploads_total",
		Help:      "Total blob upload attempts",
	}, []string{"status"})

	// BlobDecodeDuration tracks time spent in the image-decode worker pool.
	BlobDecodeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Namespace: "catbox_quiz",
		Subsystem: "blob",
		Name:      "decode_duration_seconds",
		Help:      "Time spent decoding an uploaded image",
		Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
	})
)
