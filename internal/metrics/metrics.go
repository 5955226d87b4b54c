// Package metrics exposes Prometheus instrumentation for the prediction
// service. All collectors register on a private registry so tests can build
// as many instances as they like without colliding on the global one.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics bundles every collector the service updates.
type Metrics struct {
	registry *prometheus.Registry

	predictionsTotal   *prometheus.CounterVec
	predictionDuration prometheus.Histogram
	candidateCount     prometheus.Histogram
	cacheOps           *prometheus.CounterVec
	upstreamRequests   *prometheus.CounterVec
	degradedTotal      prometheus.Counter
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
	}

	m.predictionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safeascent_predictions_total",
			Help: "Total prediction requests by outcome",
		},
		[]string{"outcome"},
	)

	m.predictionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "safeascent_prediction_duration_seconds",
			Help:    "End-to-end prediction latency",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	m.candidateCount = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "safeascent_prediction_candidates",
			Help:    "Number of candidate accidents admitted per prediction",
			Buckets: prometheus.ExponentialBuckets(1, 4, 8),
		},
	)

	m.cacheOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safeascent_cache_operations_total",
			Help: "Cache operations by kind and result",
		},
		[]string{"op", "result"},
	)

	m.upstreamRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "safeascent_upstream_requests_total",
			Help: "Upstream provider requests by provider and outcome",
		},
		[]string{"provider", "outcome"},
	)

	m.degradedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "safeascent_degraded_predictions_total",
			Help: "Predictions served on neutral weather after provider failure",
		},
	)

	m.registry.MustRegister(
		m.predictionsTotal,
		m.predictionDuration,
		m.candidateCount,
		m.cacheOps,
		m.upstreamRequests,
		m.degradedTotal,
	)

	return m
}

// Handler returns the HTTP handler serving the /metrics endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ObservePrediction records one finished prediction request.
func (m *Metrics) ObservePrediction(outcome string, duration time.Duration, candidates int) {
	if m == nil {
		return
	}
	m.predictionsTotal.With(prometheus.Labels{"outcome": outcome}).Inc()
	m.predictionDuration.Observe(duration.Seconds())
	if candidates >= 0 {
		m.candidateCount.Observe(float64(candidates))
	}
}

// RecordCacheOp records a cache operation result, e.g. ("get", "hit").
func (m *Metrics) RecordCacheOp(op, result string) {
	if m == nil {
		return
	}
	m.cacheOps.With(prometheus.Labels{"op": op, "result": result}).Inc()
}

// RecordUpstream records an upstream provider call, e.g. ("forecast", "ok").
func (m *Metrics) RecordUpstream(provider, outcome string) {
	if m == nil {
		return
	}
	m.upstreamRequests.With(prometheus.Labels{"provider": provider, "outcome": outcome}).Inc()
}

// RecordDegraded counts a prediction that fell back to neutral weather.
func (m *Metrics) RecordDegraded() {
	if m == nil {
		return
	}
	m.degradedTotal.Inc()
}
