package ferror

import (
	"errors"
	"testing"
)

func TestResolveNil(t *testing.T) {
	r := Resolve(nil)
	if r.Code != 500 {
		t.Fatalf("expected 500 for nil, got %d", r.Code)
	}
}

func TestResolveIntStatusCode(t *testing.T) {
	r := Resolve(404)
	if r.Code != 404 {
		t.Fatalf("expected 404, got %d", r.Code)
	}
}

func TestResolveIntNotAStatusCodeFallsBackTo500(t *testing.T) {
	r := Resolve(999)
	if r.Code != 500 {
		t.Fatalf("expected 500 for a non-status int, got %d", r.Code)
	}
}

func TestResolveTypedError(t *testing.T) {
	r := Resolve(New(NotFound, "no such widget"))
	if r.Code != 404 || r.Message != "no such widget" {
		t.Fatalf("got %+v", r)
	}
}

func TestResolveErrorMessageThatParsesAsStatus(t *testing.T) {
	r := Resolve(errors.New("403"))
	if r.Code != 403 {
		t.Fatalf("expected 403, got %d", r.Code)
	}
}

func TestResolveErrorMessageMatchingReasonPhrase(t *testing.T) {
	r := Resolve(errors.New("Not Found"))
	if r.Code != 404 {
		t.Fatalf("expected 404, got %d", r.Code)
	}
}

func TestResolveGenericErrorFallsBackTo500WithMessage(t *testing.T) {
	r := Resolve(errors.New("disk on fire"))
	if r.Code != 500 || r.Message != "disk on fire" {
		t.Fatalf("got %+v", r)
	}
}

func TestResolveArbitraryValueStringifies(t *testing.T) {
	r := Resolve(struct{ X int }{X: 7})
	if r.Code != 500 {
		t.Fatalf("expected 500, got %d", r.Code)
	}
}

func TestWithCodeBypassesTaxonomyDefault(t *testing.T) {
	e := WithCode(418, "I'm a teapot")
	r := Resolve(e)
	if r.Code != 418 || r.Message != "I'm a teapot" {
		t.Fatalf("got %+v", r)
	}
}
