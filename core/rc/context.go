// Package rc implements the Request Context ("RC"): the enhanced
// request/response pair the dispatcher builds for every inbound request
// and hands down the middleware chain. An RC is owned exclusively by the
// goroutine serving one request for that request's lifetime.
package rc

import (
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"strings"
	"sync/atomic"

	"github.com/gofrs/uuid/v5"

	"github.com/tejasframework/tejas/core/ferror"
	"github.com/tejasframework/tejas/core/status"
)

// RC is the per-request context. Exported fields are read-only from a
// handler's point of view after construction, except Payload and
// DispatchedData which handlers are expected to read and write.
type RC struct {
	W   http.ResponseWriter
	Req *http.Request

	ID       string
	Method   string
	IP       string
	Protocol string
	Hostname string
	Path     string // raw path, query string included when present
	Endpoint string // path without query string
	FullURL  string

	// Payload merges decoded body, query parameters and route
	// parameters (route params win over body, body wins over query).
	Payload map[string]any

	// DispatchedData holds the last body sent, for access logging.
	DispatchedData any

	params map[string]string
	sent   atomic.Bool
}

// New builds an RC from a raw net/http request pair. It fills method,
// headers-derived fields, IP, protocol, hostname and path/endpoint, but
// does not decode the body or merge route parameters — the dispatcher
// does that once the route is matched (§4.2 step 3).
func New(w http.ResponseWriter, r *http.Request) *RC {
	id, err := uuid.NewV4()
	reqID := ""
	if err == nil {
		reqID = id.String()
	}

	c := &RC{
		W:        w,
		Req:      r,
		ID:       reqID,
		Method:   strings.ToUpper(r.Method),
		IP:       clientIP(r),
		Protocol: protocol(r),
		Hostname: hostname(r),
		Endpoint: r.URL.Path,
		Payload:  make(map[string]any),
	}

	if r.URL.RawQuery != "" {
		c.Path = r.URL.Path + "?" + r.URL.RawQuery
	} else {
		c.Path = r.URL.Path
	}
	c.FullURL = c.Protocol + "://" + c.Hostname + c.Path

	for k, vals := range r.URL.Query() {
		if len(vals) > 0 {
			c.Payload[k] = vals[0]
		}
	}

	return c
}

func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		parts := strings.Split(fwd, ",")
		return strings.TrimSpace(parts[0])
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func protocol(r *http.Request) string {
	if p := r.Header.Get("X-Forwarded-Proto"); p != "" {
		return strings.TrimSpace(strings.Split(p, ",")[0])
	}
	if r.TLS != nil {
		return "https"
	}
	return "http"
}

func hostname(r *http.Request) string {
	raw := r.Host
	if h := r.Header.Get("X-Forwarded-Host"); h != "" {
		raw = strings.TrimSpace(strings.Split(h, ",")[0])
	}

	if strings.HasPrefix(raw, "[") {
		// IPv6 literal, optionally with a port: "[::1]:8080".
		if end := strings.Index(raw, "]"); end != -1 {
			return raw[:end+1]
		}
		return raw
	}

	if host, _, err := net.SplitHostPort(raw); err == nil {
		return host
	}
	return raw
}

// Method-flag predicates: exactly one of these is true per request.
func (c *RC) IsGet() bool     { return c.Method == http.MethodGet }
func (c *RC) IsPost() bool    { return c.Method == http.MethodPost }
func (c *RC) IsPut() bool     { return c.Method == http.MethodPut }
func (c *RC) IsDelete() bool  { return c.Method == http.MethodDelete }
func (c *RC) IsPatch() bool   { return c.Method == http.MethodPatch }
func (c *RC) IsHead() bool    { return c.Method == http.MethodHead }
func (c *RC) IsOptions() bool { return c.Method == http.MethodOptions }

// Header returns a request header value (case-insensitive, per
// net/http.Header's canonical-form lookup).
func (c *RC) Header(key string) string {
	return c.Req.Header.Get(key)
}

// SetParams merges route parameters from a registry match on top of the
// payload, overwriting any body/query value with the same key (§3:
// "route parameters overwrite body on collision; body overwrites
// query").
func (c *RC) SetParams(params map[string]string) {
	c.params = params
	for k, v := range params {
		c.Payload[k] = v
	}
}

// Param returns a single route parameter by name.
func (c *RC) Param(key string) string {
	return c.params[key]
}

// Sent reports whether a response has already been written for this
// request.
func (c *RC) Sent() bool {
	return c.sent.Load()
}

// markSent is the single atomic check-and-set guarding every send path.
// It returns true exactly once per RC, for the first caller to invoke it.
func (c *RC) markSent() bool {
	return c.sent.CompareAndSwap(false, true)
}

// SendString writes a plain-text response. A second call (or a call
// after any other Send*) is a silent no-op per the send-once latch.
func (c *RC) SendString(code int, body string) {
	if !c.markSent() {
		return
	}
	c.DispatchedData = body
	c.W.Header().Set("Content-Type", "text/plain; charset=utf-8")
	c.W.WriteHeader(code)
	_, _ = c.W.Write([]byte(body))
}

// SendJSON writes a JSON response using the canonical encoder.
func (c *RC) SendJSON(code int, v any) {
	if !c.markSent() {
		return
	}
	data, err := json.Marshal(v)
	if err != nil {
		c.W.Header().Set("Content-Type", "text/plain; charset=utf-8")
		c.W.WriteHeader(500)
		_, _ = c.W.Write([]byte("json marshal error"))
		return
	}
	c.DispatchedData = v
	c.W.Header().Set("Content-Type", "application/json")
	c.W.WriteHeader(code)
	_, _ = c.W.Write(data)
}

// SendBytes writes a raw byte response with an explicit content type.
func (c *RC) SendBytes(code int, contentType string, data []byte) {
	if !c.markSent() {
		return
	}
	c.DispatchedData = data
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	c.W.Header().Set("Content-Type", contentType)
	c.W.WriteHeader(code)
	_, _ = c.W.Write(data)
}

// Send infers a content type from v's shape (status.ContentType) and
// writes it. Useful for handler helpers that don't know ahead of time
// whether their payload is a string, a struct, or raw bytes.
func (c *RC) Send(code int, v any) {
	switch val := v.(type) {
	case []byte:
		c.SendBytes(code, status.ContentType(string(val)), val)
	case string:
		ct := status.ContentType(val)
		if !c.markSent() {
			return
		}
		c.DispatchedData = val
		c.W.Header().Set("Content-Type", ct+"; charset=utf-8")
		c.W.WriteHeader(code)
		_, _ = c.W.Write([]byte(val))
	default:
		c.SendJSON(code, v)
	}
}

// SendError is the idempotent error-sender ("throw") described in
// §4.2/§7: it resolves an arbitrary value to a status/body pair and
// writes it exactly once, silently dropping anything sent after the
// latch is already set.
func (c *RC) SendError(v any) {
	resolved := ferror.Resolve(v)
	if !c.markSent() {
		return
	}
	c.DispatchedData = resolved.Message
	c.W.Header().Set("Content-Type", "text/plain; charset=utf-8")
	c.W.WriteHeader(resolved.Code)
	_, _ = c.W.Write([]byte(resolved.Message))
}

// StatusAndReason is a small helper some handlers use to format a
// {code, message} body explicitly instead of plain text.
func StatusAndReason(code int) (int, string) {
	return code, status.Text(code)
}

// intPayload reads an integer out of Payload regardless of whether it
// arrived as a query string (always string) or a JSON number
// (float64, per encoding/json's default decoding).
func intPayload(v any) (int, bool) {
	switch t := v.(type) {
	case string:
		n, err := strconv.Atoi(t)
		return n, err == nil
	case float64:
		return int(t), true
	case int:
		return t, true
	default:
		return 0, false
	}
}

// IntParam reads Payload[key] as an int, accepting either a route/query
// string or a decoded JSON number.
func (c *RC) IntParam(key string) (int, bool) {
	v, ok := c.Payload[key]
	if !ok {
		return 0, false
	}
	return intPayload(v)
}
