package app

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/tejasframework/tejas/config"
	"github.com/tejasframework/tejas/core/rc"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	wd, err := os.Getwd()
	if err != nil {
		t.Fatalf("Getwd: %v", err)
	}
	if err := os.Chdir(dir); err != nil {
		t.Fatalf("Chdir: %v", err)
	}
	t.Cleanup(func() { _ = os.Chdir(wd) })
	return dir
}

func TestNewBuildsAWorkingEngine(t *testing.T) {
	chdirTemp(t)

	a, err := New(config.WithInt("PORT", 0))
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	_ = a.Engine().GET("/health", func(c *rc.RC) { c.SendString(200, "ok") })

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	rr := httptest.NewRecorder()
	a.Engine().ServeHTTP(rr, req)

	if rr.Code != 200 || rr.Body.String() != "ok" {
		t.Fatalf("got status=%d body=%q", rr.Code, rr.Body.String())
	}
}

func TestNewRejectsAnUnknownRateLimitAlgorithm(t *testing.T) {
	chdirTemp(t)

	_, err := New(config.WithString("RATE_LIMIT_ENABLED", "leaky-bucket"))
	if err == nil {
		t.Fatal("expected an error for an unrecognized rate limit algorithm")
	}
}

func TestNewWiresRateLimitingWhenEnabled(t *testing.T) {
	chdirTemp(t)

	a, err := New(
		config.WithString("RATE_LIMIT_ENABLED", "fixed-window"),
		config.WithInt("RATE_LIMIT_MAX_REQUESTS", 1),
	)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	_ = a.Engine().GET("/limited", func(c *rc.RC) { c.SendString(200, "ok") })

	req := httptest.NewRequest(http.MethodGet, "/limited", nil)
	req.RemoteAddr = "10.0.0.1:1234"
	rr := httptest.NewRecorder()
	a.Engine().ServeHTTP(rr, req)
	if rr.Code != 200 {
		t.Fatalf("expected first request to pass, got %d", rr.Code)
	}

	req2 := httptest.NewRequest(http.MethodGet, "/limited", nil)
	req2.RemoteAddr = "10.0.0.1:1234"
	rr2 := httptest.NewRecorder()
	a.Engine().ServeHTTP(rr2, req2)
	if rr2.Code != http.StatusTooManyRequests {
		t.Fatalf("expected second request to be rate limited, got %d", rr2.Code)
	}
}

func TestNewFailsOnMalformedConfigFile(t *testing.T) {
	dir := chdirTemp(t)
	if err := os.WriteFile(filepath.Join(dir, "tejas.config.json"), []byte("{not json"), 0o644); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	if _, err := New(); err == nil {
		t.Fatal("expected an error for a malformed config file")
	}
}
