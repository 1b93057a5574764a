// Package metrics provides Prometheus instruments for the reward query pipeline.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// No customer or session ids in labels.

var (
	circuitBreakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "rewardbot_circuit_breaker_state",
		Help: "Circuit breaker state by backend (closed=1, half-open=1, open=1; others 0)",
	}, []string{"backend", "state"})

	circuitBreakerTrips = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rewardbot_circuit_breaker_trips_total",
		Help: "Total number of circuit breaker trips (transitions to open state)",
	}, []string{"backend", "reason"})

	circuitBreakerRejects = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rewardbot_circuit_breaker_rejections_total",
		Help: "Calls rejected without reaching the network",
	}, []string{"backend"})

	backendCalls = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rewardbot_backend_calls_total",
		Help: "Backend calls by outcome (ok, error, retry)",
	}, []string{"backend", "outcome"})

	cacheLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rewardbot_cache_lookups_total",
		Help: "Cache lookups by cache name and result (hit, miss)",
	}, []string{"cache", "result"})

	queryDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "rewardbot_query_duration_seconds",
		Help:    "End-to-end query handling latency",
		Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
	}, []string{"success"})

	degradedContexts = promauto.NewCounter(prometheus.CounterOpts{
		Name: "rewardbot_degraded_contexts_total",
		Help: "Aggregations that fell back to the degraded context",
	})

	generations = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "rewardbot_generations_total",
		Help: "Response synthesis by source (generated, cached, fallback)",
	}, []string{"source"})
)

var circuitStates = []string{"closed", "half-open", "open"}

// SetCircuitBreakerState records the active circuit breaker state for a backend.
func SetCircuitBreakerState(backend, state string) {
	for _, s := range circuitStates {
		value := 0.0
		if s == state {
			value = 1.0
		}
		circuitBreakerState.WithLabelValues(backend, s).Set(value)
	}
}

// RecordCircuitBreakerTrip increments the trip counter when a breaker opens.
func RecordCircuitBreakerTrip(backend, reason string) {
	circuitBreakerTrips.WithLabelValues(backend, reason).Inc()
}

func RecordCircuitBreakerReject(backend string) {
	circuitBreakerRejects.WithLabelValues(backend).Inc()
}

func RecordBackendCall(backend, outcome string) {
	backendCalls.WithLabelValues(backend, outcome).Inc()
}

// RecordCacheLookup counts a hit or miss on the named cache.
func RecordCacheLookup(cache string, hit bool) {
	result := "miss"
	if hit {
		result = "hit"
	}
	cacheLookups.WithLabelValues(cache, result).Inc()
}

func ObserveQuery(seconds float64, success bool) {
	label := "false"
	if success {
		label = "true"
	}
	queryDuration.WithLabelValues(label).Observe(seconds)
}

func RecordDegradedContext() {
	degradedContexts.Inc()
}

// RecordGeneration counts where a response text came from.
func RecordGeneration(source string) {
	generations.WithLabelValues(source).Inc()
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
