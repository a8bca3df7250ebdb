// Package router implements the route registry and matcher: Endpoint
// storage, path normalization, and the exact/parameterized matching
// algorithm described in §4.1. It also defines the two middleware shapes
// the dispatcher accepts — a sum type standing in for the teacher's
// runtime arity check (§9 design notes: "replace dynamic validation of
// middleware arity with two explicit variants in a sum type").
package router

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/tejasframework/tejas/core/rc"
)

var (
	// ErrInvalidPath is returned by Register when a path is empty, does
	// not start with "/", or contains an empty parameter name.
	ErrInvalidPath = errors.New("router: invalid path")
)

// HandlerFunc is the single terminal function an Endpoint invokes.
type HandlerFunc func(*rc.RC)

// Next advances the middleware chain. Calling it is optional: a
// middleware that doesn't call Next is terminal for the request,
// provided it has sent a response (§4.2 step 5).
type Next func()

// ContextualMiddleware is the "RC-style" middleware shape: it receives
// the enhanced request context directly.
type ContextualMiddleware func(*rc.RC, Next)

// ClassicMiddleware is the "request/response/next" shape. It receives
// the same *rc.RC (which carries the http.ResponseWriter and
// *http.Request) and Next as ContextualMiddleware.
type ClassicMiddleware func(*rc.RC, Next)

// middlewareKind tags which shape a Middleware wraps.
type middlewareKind uint8

const (
	contextualKind middlewareKind = iota
	classicKind
)

// Middleware is the sum type the registry and dispatcher operate on.
// Build one with Contextual or Classic; the zero value is invalid and
// is rejected by Register/AddGlobalMiddleware.
type Middleware struct {
	kind       middlewareKind
	contextual ContextualMiddleware
	classic    ClassicMiddleware
}

// Contextual wraps an RC-style middleware function.
func Contextual(fn ContextualMiddleware) Middleware {
	return Middleware{kind: contextualKind, contextual: fn}
}

// Classic wraps a request/response/next-style middleware function. Both
// shapes ultimately run against the same RC in this port — unlike the
// teacher's lower-level request/response pair, tejas's RC already wraps
// net/http's types, so the distinction that survives is shape, not
// access level.
func Classic(fn ClassicMiddleware) Middleware {
	return Middleware{kind: classicKind, classic: fn}
}

func (m Middleware) valid() bool {
	switch m.kind {
	case contextualKind:
		return m.contextual != nil
	case classicKind:
		return m.classic != nil
	default:
		return false
	}
}

// Invoke dispatches to whichever shape m wraps. The dispatcher and the
// middleware pipeline call this; they don't inspect kind themselves.
func (m Middleware) Invoke(c *rc.RC, next Next) {
	switch m.kind {
	case contextualKind:
		m.contextual(c, next)
	case classicKind:
		m.classic(c, next)
	}
}

// Endpoint is one registered path pattern with its middlewares and
// terminal handler. Immutable after Register returns.
type Endpoint struct {
	Path        string
	Middlewares []Middleware
	Handler     HandlerFunc
}

// Registry is the process-singleton route table: an ordered list of
// endpoints plus a global middleware list, read-only once the server
// starts serving traffic (§5: "write-rare... freeze after startup").
type Registry struct {
	mu          sync.RWMutex
	endpoints   []*Endpoint
	index       map[string]int // normalized path -> position in endpoints
	globals     []Middleware
	onDuplicate func(path string)
	onDropped   func(reason string)
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		index: make(map[string]int),
	}
}

// OnDuplicate installs a callback invoked when a Register call replaces
// an existing endpoint at the same normalized path (§9: "replace with a
// logged warning" is the rule tejas follows for the open question).
func (r *Registry) OnDuplicate(fn func(path string)) { r.onDuplicate = fn }

// OnDropped installs a callback invoked when Register or
// AddGlobalMiddleware silently drops an invalid middleware value.
func (r *Registry) OnDropped(fn func(reason string)) { r.onDropped = fn }

func (r *Registry) warnDuplicate(path string) {
	if r.onDuplicate != nil {
		r.onDuplicate(path)
	}
}

func (r *Registry) warnDropped(reason string) {
	if r.onDropped != nil {
		r.onDropped(reason)
	}
}

// Register normalizes path, validates handler and middlewares, and
// inserts (or replaces, with a warning) the endpoint. An invalid path or
// a nil handler fails registration outright; an invalid middleware
// value is dropped with a warning rather than failing the whole call.
func (r *Registry) Register(path string, handler HandlerFunc, middlewares ...Middleware) error {
	normalized, err := normalizePath(path)
	if err != nil {
		return err
	}
	if handler == nil {
		return fmt.Errorf("router: endpoint %q has no handler", normalized)
	}

	kept := make([]Middleware, 0, len(middlewares))
	for _, m := range middlewares {
		if !m.valid() {
			r.warnDropped(fmt.Sprintf("dropped invalid middleware for %q", normalized))
			continue
		}
		kept = append(kept, m)
	}

	ep := &Endpoint{Path: normalized, Middlewares: kept, Handler: handler}

	r.mu.Lock()
	defer r.mu.Unlock()

	if pos, exists := r.index[normalized]; exists {
		r.endpoints[pos] = ep
		r.warnDuplicate(normalized)
		return nil
	}

	r.index[normalized] = len(r.endpoints)
	r.endpoints = append(r.endpoints, ep)
	return nil
}

// AddGlobalMiddleware appends to the global middleware list, run before
// any endpoint-local middleware on every request.
func (r *Registry) AddGlobalMiddleware(middlewares ...Middleware) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, m := range middlewares {
		if !m.valid() {
			r.warnDropped("dropped invalid global middleware")
			continue
		}
		r.globals = append(r.globals, m)
	}
}

// Globals returns a snapshot of the global middleware list.
func (r *Registry) Globals() []Middleware {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]Middleware, len(r.globals))
	copy(out, r.globals)
	return out
}

// Match implements §4.1's three-step lookup: normalize, try an exact
// path match, then fall back to a registration-order scan over
// parameterized patterns. Returns (nil, nil, false) on no match.
func (r *Registry) Match(path string) (*Endpoint, map[string]string, bool) {
	normalized, err := normalizePath(path)
	if err != nil {
		return nil, nil, false
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if pos, exists := r.index[normalized]; exists {
		return r.endpoints[pos], nil, true
	}

	requestSegs := splitSegments(normalized)

	for _, ep := range r.endpoints {
		patternSegs := splitSegments(ep.Path)
		if len(patternSegs) != len(requestSegs) {
			continue
		}

		var params map[string]string
		matched := true
		for i, seg := range patternSegs {
			if strings.HasPrefix(seg, ":") {
				if params == nil {
					params = make(map[string]string, len(patternSegs))
				}
				params[seg[1:]] = requestSegs[i]
				continue
			}
			if seg != requestSegs[i] {
				matched = false
				break
			}
		}

		if matched {
			return ep, params, true
		}
	}

	return nil, nil, false
}

// ListEndpoints returns either a flat, registration-ordered list of
// endpoint paths, or — when grouped is true — a mapping from each
// path's first non-empty segment to the list of paths registered under
// it.
func (r *Registry) ListEndpoints(grouped bool) any {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if !grouped {
		out := make([]string, len(r.endpoints))
		for i, ep := range r.endpoints {
			out[i] = ep.Path
		}
		return out
	}

	groups := make(map[string][]string)
	for _, ep := range r.endpoints {
		segs := splitSegments(ep.Path)
		key := "/"
		if len(segs) > 0 {
			key = segs[0]
		}
		groups[key] = append(groups[key], ep.Path)
	}
	return groups
}

// normalizePath applies the exact §4.1 rules: must start with "/",
// trailing "/" is stripped except for the root, no other slash
// collapsing happens, and an empty parameter name (a bare ":" segment)
// is rejected rather than accepted with an empty binding (§9 open
// question, resolved in SPEC_FULL.md).
func normalizePath(path string) (string, error) {
	if path == "" || path[0] != '/' {
		return "", ErrInvalidPath
	}

	if path != "/" {
		path = strings.TrimRight(path, "/")
		if path == "" {
			path = "/"
		}
	}

	for _, seg := range splitSegments(path) {
		if seg == ":" {
			return "", fmt.Errorf("%w: empty parameter name", ErrInvalidPath)
		}
	}

	return path, nil
}

// splitSegments splits a path on "/" and discards the empty segments
// that a leading "/" (or, if present, repeated internal slashes)
// produces.
func splitSegments(path string) []string {
	raw := strings.Split(path, "/")
	out := make([]string, 0, len(raw))
	for _, s := range raw {
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
