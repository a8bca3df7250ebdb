// Package middleware implements the cooperative middleware chain
// described in §4.2 steps 4-6: an ordered list of Middleware values run
// ahead of an endpoint's terminal handler, each deciding for itself
// whether to call next, and the chain stopping the instant a response
// has been sent.
package middleware

import (
	"fmt"

	"github.com/tejasframework/tejas/core/ferror"
	"github.com/tejasframework/tejas/core/logx"
	"github.com/tejasframework/tejas/core/rc"
	"github.com/tejasframework/tejas/core/router"
)

// Pipeline is an ordered list of middlewares run ahead of a terminal
// handler. The dispatcher builds one per request from the registry's
// globals followed by the matched endpoint's own middlewares.
type Pipeline struct {
	handlers []router.Middleware
	log      *logx.Logger
}

// NewPipeline builds a Pipeline over the given middlewares, in the
// order they should run.
func NewPipeline(handlers ...router.Middleware) *Pipeline {
	return &Pipeline{handlers: handlers}
}

// Use appends a middleware to the end of the chain.
func (p *Pipeline) Use(m router.Middleware) *Pipeline {
	p.handlers = append(p.handlers, m)
	return p
}

// WithLogger attaches a logger used to report recovered panics. Safe to
// call with nil; panics are still turned into a 500 without a logger.
func (p *Pipeline) WithLogger(l *logx.Logger) *Pipeline {
	p.log = l
	return p
}

// Execute runs the chain against c, invoking final once every
// middleware has called next (or immediately if the chain is empty).
// A middleware that never calls next is terminal for the request,
// provided it sent a response itself; one that calls next after
// already sending is a no-op thanks to RC's send-once latch, and
// Execute re-checks Sent() before advancing so a response sent deep in
// the chain unwinds cleanly instead of continuing to run handlers.
func (p *Pipeline) Execute(c *rc.RC, final router.HandlerFunc) {
	i := -1

	var next router.Next
	next = func() {
		i++
		if c.Sent() {
			return
		}
		if i >= len(p.handlers) {
			p.runFinal(c, final)
			return
		}
		p.runStep(c, p.handlers[i], next)
	}

	next()

	// A step that returns without calling next and without sending a
	// response leaves the chain stuck partway through: the steps after
	// it and the final handler never run. Rather than let
	// net/http emit an empty 200 for that, treat it as the terminal
	// error §4.2 step 5 calls for.
	if !c.Sent() {
		c.SendError(ferror.New(ferror.Internal, "middleware chain drained without sending a response"))
	}
}

func (p *Pipeline) runStep(c *rc.RC, m router.Middleware, next router.Next) {
	defer p.recover(c)
	m.Invoke(c, next)
}

func (p *Pipeline) runFinal(c *rc.RC, final router.HandlerFunc) {
	defer p.recover(c)
	final(c)
}

// recover turns a panic anywhere in the chain into a 500 response
// instead of crashing the goroutine serving the request. Engine.ServeHTTP
// has no recover of its own, so this is the chain's only catch-all (§7).
func (p *Pipeline) recover(c *rc.RC) {
	r := recover()
	if r == nil {
		return
	}
	if p.log != nil {
		p.log.ErrorLog(c, r)
	}
	c.SendError(ferror.New(ferror.Internal, fmt.Sprintf("panic: %v", r)))
}

// Common middleware implementations, built against the RC-style shape.

// Recovery is a no-op placeholder for callers used to installing an
// explicit recovery middleware: Pipeline.Execute already recovers every
// step, so Recovery only exists to let a caller register it without
// changing behavior (e.g. when porting a handler list from elsewhere
// that always includes one first).
func Recovery() router.Middleware {
	return router.Contextual(func(c *rc.RC, next router.Next) {
		next()
	})
}

// CORS adds permissive CORS headers and short-circuits preflight
// OPTIONS requests with a 204.
func CORS() router.Middleware {
	return router.Contextual(func(c *rc.RC, next router.Next) {
		c.W.Header().Set("Access-Control-Allow-Origin", "*")
		c.W.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, PATCH, OPTIONS")
		c.W.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if c.IsOptions() {
			c.SendString(204, "")
			return
		}
		next()
	})
}

// RequestID stamps an X-Request-ID response header from the RC's id,
// generated once per request in rc.New.
func RequestID() router.Middleware {
	return router.Contextual(func(c *rc.RC, next router.Next) {
		c.W.Header().Set("X-Request-ID", c.ID)
		next()
	})
}
