// Package metrics wraps prometheus/client_golang into the fixed set of
// collectors named in §4.8: cache size/hit-rate gauges and counters, a
// rate-limiter decision counter, and an HTTP request duration histogram.
// Every collector is registered into a caller-supplied *prometheus.Registry
// rather than the package-global default, so more than one Engine can live
// in the same process without colliding on metric names.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds every collector the framework emits. Nil-safe: a zero
// Metrics value silently no-ops every method, so callers that didn't wire
// metrics don't need a nil check before each call.
type Metrics struct {
	registry *prometheus.Registry

	cacheEntries  *prometheus.GaugeVec
	cacheBytes    prometheus.Gauge
	cacheHits     prometheus.Counter
	cacheMisses   prometheus.Counter
	rateDecisions *prometheus.CounterVec
	requestDur    *prometheus.HistogramVec
}

// New builds and registers every collector on reg. reg must not be the
// global prometheus default registry shared across Engines.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		registry: reg,
		cacheEntries: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "tejas_cache_entries",
			Help: "Number of live entries in the LRU cache, by namespace.",
		}, []string{"namespace"}),
		cacheBytes: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "tejas_cache_bytes",
			Help: "Total bytes held by the LRU cache across all namespaces.",
		}),
		cacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tejas_cache_hits_total",
			Help: "Number of LRU cache lookups that found a live entry.",
		}),
		cacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "tejas_cache_misses_total",
			Help: "Number of LRU cache lookups that found nothing or an expired entry.",
		}),
		rateDecisions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "tejas_ratelimit_decisions_total",
			Help: "Rate limiter decisions, partitioned by algorithm and outcome.",
		}, []string{"algorithm", "allowed"}),
		requestDur: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tejas_http_request_duration_seconds",
			Help:    "HTTP request handling duration in seconds.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route", "status"}),
	}

	reg.MustRegister(
		m.cacheEntries,
		m.cacheBytes,
		m.cacheHits,
		m.cacheMisses,
		m.rateDecisions,
		m.requestDur,
	)
	return m
}

// Registry returns the registry these collectors were registered on.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// SetCacheEntries records the current entry count for a namespace.
func (m *Metrics) SetCacheEntries(namespace string, count int) {
	if m == nil {
		return
	}
	m.cacheEntries.WithLabelValues(namespace).Set(float64(count))
}

// SetCacheBytes records the cache's current global byte size.
func (m *Metrics) SetCacheBytes(n int64) {
	if m == nil {
		return
	}
	m.cacheBytes.Set(float64(n))
}

// ObserveCacheHit increments the hit or miss counter.
func (m *Metrics) ObserveCacheHit(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.cacheHits.Inc()
	} else {
		m.cacheMisses.Inc()
	}
}

// ObserveRateLimitDecision records one allow/deny decision for algorithm.
func (m *Metrics) ObserveRateLimitDecision(algorithm string, allowed bool) {
	if m == nil {
		return
	}
	m.rateDecisions.WithLabelValues(algorithm, boolLabel(allowed)).Inc()
}

// ObserveRequestDuration records how long a request took to dispatch.
func (m *Metrics) ObserveRequestDuration(method, route, status string, seconds float64) {
	if m == nil {
		return
	}
	m.requestDur.WithLabelValues(method, route, status).Observe(seconds)
}

func boolLabel(b bool) string {
	if b {
		return "true"
	}
	return "false"
}
