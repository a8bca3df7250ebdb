package router

import (
	"testing"

	"github.com/tejasframework/tejas/core/rc"
)

func noopHandler(*rc.RC) {}

func TestRegisterRejectsInvalidPath(t *testing.T) {
	r := New()

	if err := r.Register("users", noopHandler); err == nil {
		t.Fatal("expected error for path not starting with '/'")
	}
	if err := r.Register("", noopHandler); err == nil {
		t.Fatal("expected error for empty path")
	}
	if err := r.Register("/users/:", noopHandler); err == nil {
		t.Fatal("expected error for empty parameter name")
	}
}

func TestRegisterStripsTrailingSlash(t *testing.T) {
	r := New()
	if err := r.Register("/users/", noopHandler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, _, ok := r.Match("/users"); !ok {
		t.Fatal("expected /users to match /users/ after normalization")
	}
}

func TestRootMatchesOnlyRoot(t *testing.T) {
	r := New()
	if err := r.Register("/", noopHandler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, _, ok := r.Match("/"); !ok {
		t.Fatal("expected / to match")
	}
	if _, _, ok := r.Match("/anything"); ok {
		t.Fatal("did not expect /anything to match root pattern")
	}
}

func TestParameterExtraction(t *testing.T) {
	r := New()
	if err := r.Register("/users/:id", noopHandler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ep, params, ok := r.Match("/users/42")
	if !ok {
		t.Fatal("expected match")
	}
	if ep.Path != "/users/:id" {
		t.Fatalf("unexpected endpoint matched: %s", ep.Path)
	}
	if params["id"] != "42" {
		t.Fatalf("expected id=42, got %q", params["id"])
	}
}

func TestExactBeatsParam(t *testing.T) {
	r := New()
	if err := r.Register("/users/me", noopHandler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Register("/users/:id", noopHandler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	ep, params, ok := r.Match("/users/me")
	if !ok || ep.Path != "/users/me" {
		t.Fatalf("expected exact match to win, got %+v", ep)
	}
	if params != nil {
		t.Fatalf("expected no params for exact match, got %v", params)
	}

	ep, params, ok = r.Match("/users/7")
	if !ok || ep.Path != "/users/:id" {
		t.Fatalf("expected parameterized match, got %+v", ep)
	}
	if params["id"] != "7" {
		t.Fatalf("expected id=7, got %q", params["id"])
	}
}

func TestDuplicateRegistrationReplaces(t *testing.T) {
	r := New()
	var warned string
	r.OnDuplicate(func(path string) { warned = path })

	calls := 0
	first := func(*rc.RC) { calls = 1 }
	second := func(*rc.RC) { calls = 2 }

	if err := r.Register("/ping", first); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := r.Register("/ping", second); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if warned != "/ping" {
		t.Fatalf("expected duplicate warning for /ping, got %q", warned)
	}

	ep, _, ok := r.Match("/ping")
	if !ok {
		t.Fatal("expected match")
	}
	ep.Handler(nil)
	if calls != 2 {
		t.Fatalf("expected later registration to win, got handler call marker %d", calls)
	}
}

func TestSegmentCountMismatchSkips(t *testing.T) {
	r := New()
	if err := r.Register("/a/:b", noopHandler); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, _, ok := r.Match("/a/b/c"); ok {
		t.Fatal("did not expect a 3-segment path to match a 2-segment pattern")
	}
}

func TestListEndpointsGrouped(t *testing.T) {
	r := New()
	_ = r.Register("/users/:id", noopHandler)
	_ = r.Register("/users/me", noopHandler)
	_ = r.Register("/orders", noopHandler)

	groups, ok := r.ListEndpoints(true).(map[string][]string)
	if !ok {
		t.Fatal("expected grouped result to be a map")
	}
	if len(groups["users"]) != 2 {
		t.Fatalf("expected 2 endpoints under users, got %d", len(groups["users"]))
	}
	if len(groups["orders"]) != 1 {
		t.Fatalf("expected 1 endpoint under orders, got %d", len(groups["orders"]))
	}
}

func TestInvalidMiddlewareDropped(t *testing.T) {
	r := New()
	var reason string
	r.OnDropped(func(r string) { reason = r })

	if err := r.Register("/x", noopHandler, Middleware{}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if reason == "" {
		t.Fatal("expected a drop warning for the zero-value middleware")
	}

	ep, _, _ := r.Match("/x")
	if len(ep.Middlewares) != 0 {
		t.Fatalf("expected invalid middleware to be dropped, got %d", len(ep.Middlewares))
	}
}
