/*
Package tejas provides a general-purpose backend HTTP framework for Go.

tejas loads merged configuration (a tejas.config.json file, overridden by
the process environment, overridden by explicit constructor options),
discovers route handler plugins on disk, and serves HTTP requests by
dispatching them through an ordered middleware chain to a matched
handler. Built in: rate limiting (token bucket, sliding window, fixed
window, over a pluggable storage backend), an in-process namespaced LRU
cache with encryption at rest, and pluggable Redis/MongoDB connection
management.

Quick start

	package main

	import (
	    "github.com/tejasframework/tejas/app"
	    "github.com/tejasframework/tejas/core/rc"
	)

	func main() {
	    application, err := app.New()
	    if err != nil {
	        panic(err)
	    }

	    engine := application.Engine()
	    engine.GET("/hello", func(c *rc.RC) {
	        c.SendString(200, "Hello, World!")
	    })

	    engine.GET("/json", func(c *rc.RC) {
	        c.SendJSON(200, map[string]string{
	            "message": "tejas",
	            "status":  "running",
	        })
	    })

	    application.Run()
	}

Modules

The framework is organized into the following packages:

  - app: application lifecycle, configuration wiring, graceful shutdown
  - config: tejas.config.json / environment / option merge
  - core: the Engine — route registration and the request dispatcher
  - core/router: route registry and path matcher
  - core/rc: the per-request Request Context
  - core/body: request body parsing (JSON, form, multipart)
  - core/middleware: the cooperative middleware pipeline
  - core/ferror: the tagged error sum and its status-resolution rules
  - core/ratelimit: token bucket, sliding window and fixed window limiters
  - core/cache: the namespaced, byte-bounded, encrypted LRU cache
  - core/conn: pluggable Redis/MongoDB connection management
  - core/discovery: handler plugin auto-discovery (Go plugin loader)
  - core/logx: structured access/error logging
  - core/metrics: Prometheus collectors
  - core/pools: buffer and worker object pools

For more information, see the project's design notes in DESIGN.md.
*/
package tejas
