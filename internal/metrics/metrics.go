package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// CallsTotal counts classified invocations per request path and result
	// kind. The invocation layer knows paths, not configured target names;
	// per-method series live on the poller-level metrics.
	CallsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "methodwatch_calls_total",
			Help: "Total number of method invocations by request path and result kind",
		},
		[]string{"path", "kind"},
	)

	// CallLatency tracks invocation latency per request path. Every
	// attempted exchange contributes a sample, including ones that end in
	// a network failure.
	CallLatency = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "methodwatch_call_latency_seconds",
			Help:    "Method invocation latency in seconds by request path",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"path"},
	)

	// RetriesTotal counts automatic retry invocations per binding.
	RetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "methodwatch_retries_total",
			Help: "Total number of automatic retry invocations",
		},
		[]string{"binding"},
	)

	// ActiveBindings tracks bindings currently attached to a scope.
	ActiveBindings = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "methodwatch_active_bindings",
			Help: "Number of bindings currently mounted",
		},
	)

	// ObservationsPersisted counts observations written per sink.
	ObservationsPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "methodwatch_observations_persisted_total",
			Help: "Total number of observations written per sink",
		},
		[]string{"sink"},
	)

	// ObservationAge tracks seconds since the last observation per method.
	ObservationAge = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "methodwatch_observation_age_seconds",
			Help: "Seconds since the last settled observation per method",
		},
		[]string{"method"},
	)
)
