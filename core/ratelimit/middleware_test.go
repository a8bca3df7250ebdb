package ratelimit

import (
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tejasframework/tejas/core/metrics"
	"github.com/tejasframework/tejas/core/rc"
)

func TestMiddlewareSetsStandardHeadersAndAllows(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	limiter, err := New(store, Config{MaxRequests: 5, TimeWindowSeconds: 60, Algorithm: FixedWindowAlgorithm})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	mw := Middleware(limiter, Config{MaxRequests: 5, TimeWindowSeconds: 60}, MiddlewareOptions{})

	req := httptest.NewRequest("GET", "/", nil)
	req.RemoteAddr = "1.2.3.4:5555"
	w := httptest.NewRecorder()
	c := rc.New(w, req)

	called := false
	mw.Invoke(c, func() { called = true })

	if !called {
		t.Fatal("expected next to be called when the request is allowed")
	}
	if w.Header().Get("RateLimit-Limit") != "5" {
		t.Errorf("expected RateLimit-Limit=5, got %q", w.Header().Get("RateLimit-Limit"))
	}
	if w.Header().Get("RateLimit-Remaining") == "" {
		t.Error("expected RateLimit-Remaining to be set")
	}
}

func TestMiddlewareRejectsWithRetryAfter(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	limiter, err := New(store, Config{MaxRequests: 1, TimeWindowSeconds: 60, Algorithm: FixedWindowAlgorithm})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	mw := Middleware(limiter, Config{MaxRequests: 1, TimeWindowSeconds: 60}, MiddlewareOptions{})

	newReq := func() *rc.RC {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "9.9.9.9:1"
		w := httptest.NewRecorder()
		return rc.New(w, req)
	}

	c1 := newReq()
	mw.Invoke(c1, func() {})

	c2 := newReq()
	nextCalled := false
	mw.Invoke(c2, func() { nextCalled = true })

	if nextCalled {
		t.Fatal("second request should be rejected once the cap is reached")
	}
	if c2.W.Header().Get("Retry-After") == "" {
		t.Error("expected Retry-After header on rejection")
	}
	rec, ok := c2.W.(*httptest.ResponseRecorder)
	if !ok || rec.Code != 429 {
		t.Errorf("expected 429, got recorder=%v", c2.W)
	}
}

func TestMiddlewareCallsOnRateLimitedHook(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	limiter, err := New(store, Config{MaxRequests: 1, TimeWindowSeconds: 60, Algorithm: FixedWindowAlgorithm})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	hookCalled := false
	mw := Middleware(limiter, Config{MaxRequests: 1, TimeWindowSeconds: 60}, MiddlewareOptions{
		OnRateLimited: func(c *rc.RC) {
			hookCalled = true
			c.SendString(503, "custom rejection")
		},
	})

	newReq := func() *rc.RC {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "8.8.8.8:1"
		w := httptest.NewRecorder()
		return rc.New(w, req)
	}

	mw.Invoke(newReq(), func() {})
	c2 := newReq()
	mw.Invoke(c2, func() {})

	if !hookCalled {
		t.Fatal("expected onRateLimited hook to run instead of the default 429")
	}
}

func TestMiddlewareObservesRateLimitDecisions(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	limiter, err := New(store, Config{MaxRequests: 1, TimeWindowSeconds: 60, Algorithm: FixedWindowAlgorithm})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	reg := prometheus.NewRegistry()
	mcol := metrics.New(reg)

	mw := Middleware(limiter, Config{MaxRequests: 1, TimeWindowSeconds: 60, Algorithm: FixedWindowAlgorithm}, MiddlewareOptions{
		Metrics: mcol,
	})

	newReq := func() *rc.RC {
		req := httptest.NewRequest("GET", "/", nil)
		req.RemoteAddr = "7.7.7.7:1"
		w := httptest.NewRecorder()
		return rc.New(w, req)
	}

	mw.Invoke(newReq(), func() {})
	mw.Invoke(newReq(), func() {})

	families, err := reg.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}

	var total float64
	found := false
	for _, fam := range families {
		if fam.GetName() != "tejas_ratelimit_decisions_total" {
			continue
		}
		found = true
		for _, metric := range fam.GetMetric() {
			total += metric.GetCounter().GetValue()
		}
	}
	if !found {
		t.Fatal("expected tejas_ratelimit_decisions_total to be registered")
	}
	if total != 2 {
		t.Errorf("expected 2 recorded decisions (one allow, one deny), got %v", total)
	}
}
