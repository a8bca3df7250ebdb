package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestNewRegistersAllCollectors(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := New(reg)

	m.SetCacheEntries("default", 3)
	m.SetCacheBytes(1024)
	m.ObserveCacheHit(true)
	m.ObserveCacheHit(false)
	m.ObserveRateLimitDecision("token-bucket", true)
	m.ObserveRequestDuration("GET", "/users/:id", "200", 0.01)

	if got := testutil.ToFloat64(m.cacheHits); got != 1 {
		t.Fatalf("expected 1 cache hit, got %v", got)
	}
	if got := testutil.ToFloat64(m.cacheMisses); got != 1 {
		t.Fatalf("expected 1 cache miss, got %v", got)
	}

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	names := make(map[string]bool, len(families))
	for _, f := range families {
		names[f.GetName()] = true
	}
	for _, want := range []string{
		"tejas_cache_entries",
		"tejas_cache_bytes",
		"tejas_cache_hits_total",
		"tejas_cache_misses_total",
		"tejas_ratelimit_decisions_total",
		"tejas_http_request_duration_seconds",
	} {
		if !names[want] {
			t.Errorf("expected registry to contain %s", want)
		}
	}
}

func TestNilMetricsIsNoop(t *testing.T) {
	var m *Metrics
	m.SetCacheEntries("default", 1)
	m.SetCacheBytes(10)
	m.ObserveCacheHit(true)
	m.ObserveRateLimitDecision("fixed-window", false)
	m.ObserveRequestDuration("GET", "/", "200", 0.001)
	if m.Registry() != nil {
		t.Fatal("expected nil registry from a nil Metrics")
	}
}
