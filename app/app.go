// Package app implements the framework shell (§4.11): it merges
// configuration, builds an Engine with every ambient collaborator
// wired, runs handler auto-discovery, and owns the process lifecycle
// (listen, graceful shutdown, exit codes per spec.md §6).
package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/tejasframework/tejas/config"
	"github.com/tejasframework/tejas/core"
	"github.com/tejasframework/tejas/core/body"
	"github.com/tejasframework/tejas/core/cache"
	"github.com/tejasframework/tejas/core/conn"
	"github.com/tejasframework/tejas/core/discovery"
	"github.com/tejasframework/tejas/core/logx"
	"github.com/tejasframework/tejas/core/metrics"
	"github.com/tejasframework/tejas/core/pools"
	"github.com/tejasframework/tejas/core/ratelimit"
)

// App is the application instance: merged configuration plus the
// Engine it drives.
type App struct {
	cfg    *config.Config
	engine *core.Engine
}

// New merges configuration (tejas.config.json -> env -> opts), builds
// an Engine with logging, metrics, cache, rate limiting and connections
// wired per the merged config, and runs handler auto-discovery against
// DIR_TARGETS if set. A configuration or discovery failure is returned
// rather than exiting the process directly, so callers (tests, cmd/main)
// control the exit path.
func New(opts ...config.Option) (*App, error) {
	cfg, err := config.Load(opts...)
	if err != nil {
		return nil, fmt.Errorf("app: %w", err)
	}

	logger, err := logx.New(true, cfg.LogHTTPRequests, cfg.LogExceptions)
	if err != nil {
		return nil, fmt.Errorf("app: building logger: %w", err)
	}

	reg := prometheus.NewRegistry()
	mcol := metrics.New(reg)

	maxBytes, err := cache.ParseMaxBytes(cfg.CacheMaxBytes, hostMemoryBytes())
	if err != nil {
		return nil, fmt.Errorf("app: parsing CACHE_MAX_BYTES: %w", err)
	}
	cacheStore, err := cache.NewStore(cache.Options{
		MaxBytes:   maxBytes,
		LogEnabled: cfg.CacheLogEnabled,
		Warn:       logger.Warn,
		Metrics:    mcol,
	})
	if err != nil {
		return nil, fmt.Errorf("app: building cache store: %w", err)
	}

	pool := pools.NewWorkerPool(0)
	connMgr := conn.NewManager(pool)

	engineOpts := []core.Option{
		core.WithLogger(logger),
		core.WithMetrics(mcol),
		core.WithCache(cacheStore),
		core.WithConnections(connMgr),
		core.WithBodyLimits(body.Limits{MaxSize: cfg.BodyMaxSize, Timeout: cfg.BodyTimeout}),
	}
	engine := core.NewEngine(engineOpts...)

	if cfg.RedisAddr != "" {
		if _, err := connMgr.InitializeConnection(context.Background(), conn.Redis, conn.Config{
			Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB, Cluster: cfg.RedisCluster,
		}); err != nil {
			return nil, fmt.Errorf("app: connecting to redis: %w", err)
		}
	}
	if cfg.MongoURI != "" {
		if _, err := connMgr.InitializeConnection(context.Background(), conn.Mongo, conn.Config{
			URI: cfg.MongoURI, Database: cfg.MongoDatabase,
		}); err != nil {
			return nil, fmt.Errorf("app: connecting to mongo: %w", err)
		}
	}

	if cfg.RateLimitEnabled != "" {
		algo, err := parseAlgorithm(cfg.RateLimitEnabled)
		if err != nil {
			return nil, fmt.Errorf("app: %w", err)
		}
		limiter, err := ratelimit.New(ratelimit.NewMemoryStore(), ratelimit.Config{
			MaxRequests:       cfg.RateLimitMax,
			TimeWindowSeconds: cfg.RateLimitWindowSec,
			KeyPrefix:         cfg.RateLimitKeyPrefix,
			Algorithm:         algo,
		})
		if err != nil {
			return nil, fmt.Errorf("app: building rate limiter: %w", err)
		}
		engine.Use(ratelimit.Middleware(limiter, ratelimit.Config{
			MaxRequests:       cfg.RateLimitMax,
			TimeWindowSeconds: cfg.RateLimitWindowSec,
			KeyPrefix:         cfg.RateLimitKeyPrefix,
			Algorithm:         algo,
		}, ratelimit.MiddlewareOptions{Metrics: mcol}))
	}

	if cfg.DirTargets != "" {
		if err := discovery.Load(cfg.DirTargets, engine.Registry(), pool); err != nil {
			return nil, fmt.Errorf("app: loading handler plugins: %w", err)
		}
	}

	return &App{cfg: cfg, engine: engine}, nil
}

// hostMemoryBytes reports total physical RAM via syscall.Sysinfo, for
// CACHE_MAX_BYTES's percentage-of-host-memory form (§4.5). Returns 0 if
// the Sysinfo call fails, which makes a percentage spec resolve to 0
// bytes. syscall.Sysinfo exists only on Linux, so this package builds
// only for Linux targets.
func hostMemoryBytes() int64 {
	var info syscall.Sysinfo_t
	if err := syscall.Sysinfo(&info); err != nil {
		return 0
	}
	return int64(info.Totalram) * int64(info.Unit)
}

func parseAlgorithm(name string) (ratelimit.Algorithm, error) {
	switch name {
	case "token-bucket":
		return ratelimit.TokenBucketAlgorithm, nil
	case "sliding-window":
		return ratelimit.SlidingWindowAlgorithm, nil
	case "fixed-window":
		return ratelimit.FixedWindowAlgorithm, nil
	default:
		return 0, fmt.Errorf("unknown RATE_LIMIT_ENABLED algorithm %q", name)
	}
}

// Engine returns the underlying engine for route registration.
func (a *App) Engine() *core.Engine { return a.engine }

// Config returns the merged configuration.
func (a *App) Config() *config.Config { return a.cfg }

// Run starts the HTTP listener and blocks until a SIGINT/SIGTERM is
// received, then drains in-flight requests and closes every managed
// connection before returning nil. A listen error or a shutdown error
// is returned; cmd-level callers translate that into the non-zero exit
// code spec.md §6 requires.
func (a *App) Run() error {
	server := &http.Server{
		Addr:    fmt.Sprintf(":%d", a.cfg.Port),
		Handler: a.engine,
	}

	a.engine.Logger().Info("starting tejas", "port", a.cfg.Port)

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	select {
	case err := <-errCh:
		return fmt.Errorf("app: listen: %w", err)
	case sig := <-quit:
		a.engine.Logger().Info("shutting down", "signal", sig.String())
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := a.engine.Shutdown(ctx); err != nil {
		a.engine.Logger().Warn("error during engine shutdown", "error", err.Error())
	}
	return server.Shutdown(ctx)
}
