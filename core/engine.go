// Package core wires the dispatcher (§4.2) together: it owns the route
// registry, the middleware pipeline, and the ambient collaborators
// (logging, metrics, cache, connections) every request can reach, and
// implements http.Handler so it drops straight into net/http's own
// server loop.
package core

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/tejasframework/tejas/core/body"
	"github.com/tejasframework/tejas/core/cache"
	"github.com/tejasframework/tejas/core/conn"
	"github.com/tejasframework/tejas/core/ferror"
	"github.com/tejasframework/tejas/core/logx"
	"github.com/tejasframework/tejas/core/metrics"
	"github.com/tejasframework/tejas/core/middleware"
	"github.com/tejasframework/tejas/core/rc"
	"github.com/tejasframework/tejas/core/router"
)

// HandlerFunc is the handler shape registration callers see. It's an
// alias of router.HandlerFunc so handlers never need to import router
// directly.
type HandlerFunc = router.HandlerFunc

// defaultEntryPage is served for "/" when no endpoint is registered
// there (§6: "serve a fixed HTML page (opaque content) with status
// 200").
const defaultEntryPage = `<!DOCTYPE html>
<html><head><title>tejas</title></head>
<body><h1>tejas</h1><p>No handler is registered for this path.</p></body>
</html>`

// Engine is the process-wide handle combining the route registry, the
// dispatcher, and every ambient collaborator a request can reach
// (§3's "Engine" addition to the data model).
type Engine struct {
	registry *router.Registry
	logger   *logx.Logger
	metrics  *metrics.Metrics
	cache    *cache.Store
	conns    *conn.Manager

	bodyLimits body.Limits

	mu      sync.Mutex
	methods map[string]map[string]methodEntry
}

type methodEntry struct {
	handler     router.HandlerFunc
	middlewares []router.Middleware
}

// Option configures an Engine at construction time.
type Option func(*Engine)

// WithLogger installs a structured logger; omitting this option leaves
// Engine with logx.Noop(), so handlers never need a nil check.
func WithLogger(l *logx.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithMetrics installs a metrics collector.
func WithMetrics(m *metrics.Metrics) Option { return func(e *Engine) { e.metrics = m } }

// WithCache installs the LRU cache store so handlers can reach it via
// Engine.Cache().
func WithCache(s *cache.Store) Option { return func(e *Engine) { e.cache = s } }

// WithConnections installs the Redis/Mongo connection manager.
func WithConnections(m *conn.Manager) Option { return func(e *Engine) { e.conns = m } }

// WithBodyLimits overrides the default body size/timeout caps.
func WithBodyLimits(l body.Limits) Option { return func(e *Engine) { e.bodyLimits = l } }

// NewEngine builds an Engine with an empty registry and a no-op logger,
// applying every opt in order.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{
		registry: router.New(),
		logger:   logx.Noop(),
		methods:  make(map[string]map[string]methodEntry),
	}
	for _, opt := range opts {
		opt(e)
	}

	e.registry.OnDuplicate(func(path string) {
		e.logger.Warn("duplicate route registration replaced the existing endpoint", "path", path)
	})
	e.registry.OnDropped(func(reason string) {
		e.logger.Warn("dropped an invalid middleware", "reason", reason)
	})

	return e
}

// Registry exposes the route registry directly, for callers (the
// plugin loader, tests) that need registry-level access.
func (e *Engine) Registry() *router.Registry { return e.registry }

// Logger returns the installed logger.
func (e *Engine) Logger() *logx.Logger { return e.logger }

// Metrics returns the installed metrics collector (nil-safe to call
// through — see core/metrics's nil-receiver methods).
func (e *Engine) Metrics() *metrics.Metrics { return e.metrics }

// Cache returns the installed LRU cache store, or nil if none was
// configured.
func (e *Engine) Cache() *cache.Store { return e.cache }

// Connections returns the installed connection manager, or nil if none
// was configured.
func (e *Engine) Connections() *conn.Manager { return e.conns }

// handle registers handler for method at path, merging it into the
// single per-path Endpoint the registry holds (§6: "a handler is
// registered by path only; it inspects the method flags on RC to
// branch"). The first call for a given path installs that path's
// middlewares; later calls for the same path keep them unless the
// caller supplies new ones, which replace the set.
func (e *Engine) handle(method, path string, handler router.HandlerFunc, middlewares ...router.Middleware) error {
	e.mu.Lock()
	table, ok := e.methods[path]
	if !ok {
		table = make(map[string]methodEntry)
		e.methods[path] = table
	}
	entry := methodEntry{handler: handler, middlewares: table[method].middlewares}
	if len(middlewares) > 0 {
		for m, other := range table {
			other.middlewares = nil
			table[m] = other
		}
		entry.middlewares = middlewares
	}
	table[method] = entry

	merged := mergedMiddlewares(table)
	e.mu.Unlock()

	return e.registry.Register(path, e.dispatchMethod(path), merged...)
}

// mergedMiddlewares collects the path's middleware set from its method
// entries. handle keeps that set on at most one entry, so the result is
// the most recently supplied list (or nil if none was ever supplied).
func mergedMiddlewares(table map[string]methodEntry) []router.Middleware {
	var out []router.Middleware
	for _, entry := range table {
		out = append(out, entry.middlewares...)
	}
	return out
}

// dispatchMethod returns the single router.HandlerFunc registered
// against path: it looks up the table entry matching the request's
// method and calls it, or sends a 405 if the path has no handler for
// that method.
func (e *Engine) dispatchMethod(path string) router.HandlerFunc {
	return func(c *rc.RC) {
		e.mu.Lock()
		table := e.methods[path]
		entry, ok := table[c.Method]
		e.mu.Unlock()

		if !ok {
			c.SendError(ferror.New(ferror.NotAllowed, "method not allowed"))
			return
		}
		entry.handler(c)
	}
}

// GET registers handler for GET requests at path.
func (e *Engine) GET(path string, handler router.HandlerFunc, middlewares ...router.Middleware) error {
	return e.handle(http.MethodGet, path, handler, middlewares...)
}

// POST registers handler for POST requests at path.
func (e *Engine) POST(path string, handler router.HandlerFunc, middlewares ...router.Middleware) error {
	return e.handle(http.MethodPost, path, handler, middlewares...)
}

// PUT registers handler for PUT requests at path.
func (e *Engine) PUT(path string, handler router.HandlerFunc, middlewares ...router.Middleware) error {
	return e.handle(http.MethodPut, path, handler, middlewares...)
}

// DELETE registers handler for DELETE requests at path.
func (e *Engine) DELETE(path string, handler router.HandlerFunc, middlewares ...router.Middleware) error {
	return e.handle(http.MethodDelete, path, handler, middlewares...)
}

// PATCH registers handler for PATCH requests at path.
func (e *Engine) PATCH(path string, handler router.HandlerFunc, middlewares ...router.Middleware) error {
	return e.handle(http.MethodPatch, path, handler, middlewares...)
}

// HEAD registers handler for HEAD requests at path.
func (e *Engine) HEAD(path string, handler router.HandlerFunc, middlewares ...router.Middleware) error {
	return e.handle(http.MethodHead, path, handler, middlewares...)
}

// OPTIONS registers handler for OPTIONS requests at path.
func (e *Engine) OPTIONS(path string, handler router.HandlerFunc, middlewares ...router.Middleware) error {
	return e.handle(http.MethodOptions, path, handler, middlewares...)
}

// Any registers handler for every HTTP method at path, for handlers
// that branch on c.Method themselves rather than one callback per verb.
func (e *Engine) Any(path string, handler router.HandlerFunc, middlewares ...router.Middleware) error {
	for _, m := range []string{
		http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete,
		http.MethodPatch, http.MethodHead, http.MethodOptions,
	} {
		if err := e.handle(m, path, handler, middlewares...); err != nil {
			return err
		}
	}
	return nil
}

// Use appends global middleware, run before any endpoint-local
// middleware on every request.
func (e *Engine) Use(middlewares ...router.Middleware) {
	e.registry.AddGlobalMiddleware(middlewares...)
}

// statusWriter wraps http.ResponseWriter to capture the status code an
// RC.Send* call wrote, for access logging and request-duration metrics.
type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

// ServeHTTP implements the dispatcher from §4.2: match the route,
// decode and merge the payload, run the middleware chain, and record
// access log / metrics for the completed request.
func (e *Engine) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
	c := rc.New(sw, r)

	ep, params, ok := e.registry.Match(c.Endpoint)
	if !ok {
		if c.Endpoint == "/" {
			c.SendBytes(http.StatusOK, "text/html; charset=utf-8", []byte(defaultEntryPage))
		} else {
			c.SendError(ferror.New(ferror.NotFound, "not found"))
		}
		e.finish(c, sw, start)
		return
	}

	parsed, err := body.Parse(r, e.bodyLimits)
	if err != nil {
		c.SendError(err)
		e.finish(c, sw, start)
		return
	}
	for k, v := range parsed {
		c.Payload[k] = v
	}
	if params != nil {
		c.SetParams(params)
	}

	pipeline := middleware.NewPipeline(append(e.registry.Globals(), ep.Middlewares...)...).WithLogger(e.logger)
	pipeline.Execute(c, ep.Handler)

	e.finish(c, sw, start)
}

func (e *Engine) finish(c *rc.RC, sw *statusWriter, start time.Time) {
	duration := time.Since(start)
	e.logger.AccessLog(c, sw.status, float64(duration.Microseconds())/1000.0)
	e.metrics.ObserveRequestDuration(c.Method, c.Endpoint, fmt.Sprintf("%d", sw.status), duration.Seconds())
}

// Shutdown releases Engine-owned background resources: closes every
// managed connection and flushes the logger. It does not touch the
// http.Server itself — callers (app.App.Run) own that lifecycle.
func (e *Engine) Shutdown(ctx context.Context) error {
	var firstErr error
	if e.conns != nil {
		if err := e.conns.CloseAllConnections(ctx); err != nil {
			firstErr = err
		}
	}
	if syncErr := e.logger.Sync(); syncErr != nil && firstErr == nil {
		firstErr = syncErr
	}
	return firstErr
}
