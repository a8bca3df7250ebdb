package body

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/tejasframework/tejas/core/ferror"
)

func newRequest(t *testing.T, method, contentType, body string) *http.Request {
	t.Helper()
	r := httptest.NewRequest(method, "/", strings.NewReader(body))
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	r.ContentLength = int64(len(body))
	return r
}

func TestParseJSONObjectBody(t *testing.T) {
	r := newRequest(t, http.MethodPost, "application/json", `{"name":"ada","age":36}`)
	out, err := Parse(r, Limits{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if out["name"] != "ada" {
		t.Fatalf("got %+v", out)
	}
}

func TestParseJSONArrayBodyWrapsUnderItemsKey(t *testing.T) {
	r := newRequest(t, http.MethodPost, "application/json", `[1,2,3]`)
	out, err := Parse(r, Limits{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	items, ok := out["_items"].([]any)
	if !ok || len(items) != 3 {
		t.Fatalf("got %+v", out)
	}
}

func TestParseJSONScalarBodyIsRejected(t *testing.T) {
	r := newRequest(t, http.MethodPost, "application/json", `42`)
	if _, err := Parse(r, Limits{}); err == nil {
		t.Fatal("expected an error for a scalar JSON body")
	}
}

func TestParseMalformedJSONIsInvalidInput(t *testing.T) {
	r := newRequest(t, http.MethodPost, "application/json", `{"name":`)
	_, err := Parse(r, Limits{})
	if err == nil {
		t.Fatal("expected an error")
	}
	fe, ok := err.(*ferror.Error)
	if !ok || fe.Kind != ferror.InvalidInput {
		t.Fatalf("expected ferror.InvalidInput, got %+v", err)
	}
}

func TestParseFormURLEncodedBody(t *testing.T) {
	r := newRequest(t, http.MethodPost, "application/x-www-form-urlencoded", "q=go&page=2")
	out, err := Parse(r, Limits{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if out["q"] != "go" || out["page"] != "2" {
		t.Fatalf("got %+v", out)
	}
}

func TestParseMultipartFormDataWithFileAndFieldParts(t *testing.T) {
	boundary := "xYz"
	body := "--" + boundary + "\r\n" +
		"Content-Disposition: form-data; name=\"title\"\r\n\r\n" +
		"hello\r\n" +
		"--" + boundary + "\r\n" +
		"Content-Disposition: form-data; name=\"file\"; filename=\"a.txt\"\r\n" +
		"Content-Type: text/plain\r\n\r\n" +
		"file-bytes\r\n" +
		"--" + boundary + "--\r\n"

	r := newRequest(t, http.MethodPost, "multipart/form-data; boundary="+boundary, body)
	out, err := Parse(r, Limits{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if out["title"] != "hello" {
		t.Fatalf("got title=%+v", out["title"])
	}
	part, ok := out["file"].(Part)
	if !ok {
		t.Fatalf("expected file to decode as a Part, got %T", out["file"])
	}
	if part.Filename != "a.txt" || string(part.Value) != "file-bytes" {
		t.Fatalf("got %+v", part)
	}
}

func TestParseMultipartMissingBoundaryIsInvalidInput(t *testing.T) {
	r := newRequest(t, http.MethodPost, "multipart/form-data", "ignored")
	if _, err := Parse(r, Limits{}); err == nil {
		t.Fatal("expected an error for a missing multipart boundary")
	}
}

func TestParseUnsupportedMediaTypeIsRejected(t *testing.T) {
	r := newRequest(t, http.MethodPost, "application/xml", "<a/>")
	_, err := Parse(r, Limits{})
	if err == nil {
		t.Fatal("expected an error for an unsupported media type")
	}
	fe, ok := err.(*ferror.Error)
	if !ok || fe.Kind != ferror.UnsupportedMediaType {
		t.Fatalf("expected ferror.UnsupportedMediaType, got %+v", err)
	}
}

func TestParseMissingContentTypeIsInvalidInput(t *testing.T) {
	r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader("x"))
	r.ContentLength = 1
	if _, err := Parse(r, Limits{}); err == nil {
		t.Fatal("expected an error for a missing Content-Type")
	}
}

func TestParseGetRequestWithNoBodyReturnsEmptyPayload(t *testing.T) {
	r := httptest.NewRequest(http.MethodGet, "/", nil)
	r.ContentLength = 0
	out, err := Parse(r, Limits{})
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(out) != 0 {
		t.Fatalf("expected an empty payload, got %+v", out)
	}
}

func TestParseBodyOverTheSizeCapIsRejected(t *testing.T) {
	big := strings.Repeat("a", 64)
	r := newRequest(t, http.MethodPost, "application/json", `{"data":"`+big+`"}`)
	_, err := Parse(r, Limits{MaxSize: 8})
	if err == nil {
		t.Fatal("expected an error for an oversized body")
	}
	fe, ok := err.(*ferror.Error)
	if !ok || fe.Kind != ferror.PayloadTooLarge {
		t.Fatalf("expected ferror.PayloadTooLarge, got %+v", err)
	}
}

// slowBody blocks on Read until its context is cancelled, simulating a
// client that never finishes sending its body.
type slowBody struct {
	ctx context.Context
}

func (s slowBody) Read(p []byte) (int, error) {
	<-s.ctx.Done()
	return 0, s.ctx.Err()
}

func (s slowBody) Close() error { return nil }

func TestParseBodyReadTimeoutIsRejected(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	r := httptest.NewRequest(http.MethodPost, "/", slowBody{ctx: ctx})
	r.Header.Set("Content-Type", "application/json")
	r.ContentLength = 10

	_, err := Parse(r, Limits{Timeout: 10 * time.Millisecond})
	if err == nil {
		t.Fatal("expected a timeout error")
	}
	fe, ok := err.(*ferror.Error)
	if !ok || fe.Kind != ferror.Timeout {
		t.Fatalf("expected ferror.Timeout, got %+v", err)
	}
}

