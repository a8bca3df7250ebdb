package conn

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// dialRedis constructs a client (cluster-aware per cfg.Cluster) and
// blocks until it answers PING or the connect timeout/retry budget is
// exhausted, standing in for the event-based "error/connect/ready/end"
// wiring described in §4.6 — go-redis has no event emitter, so
// readiness is observed by polling Ping instead of waiting on a
// "ready" callback.
func dialRedis(ctx context.Context, cfg Config) (any, func(context.Context) error, error) {
	timeout := cfg.ConnectTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	maxRetries := cfg.MaxRetries
	if maxRetries <= 0 {
		maxRetries = 3
	}

	var client redis.UniversalClient
	if cfg.Cluster {
		client = redis.NewClusterClient(&redis.ClusterOptions{
			Addrs:    []string{cfg.Addr},
			Password: cfg.Password,
		})
	} else {
		client = redis.NewClient(&redis.Options{
			Addr:     cfg.Addr,
			Password: cfg.Password,
			DB:       cfg.DB,
		})
	}

	dialCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if _, err := client.Ping(dialCtx).Result(); err == nil {
			return client, func(context.Context) error { return client.Close() }, nil
		} else {
			lastErr = err
		}

		select {
		case <-dialCtx.Done():
			_ = client.Close() // best-effort quit on timeout (§4.6)
			return nil, nil, fmt.Errorf("%w: timed out connecting to redis: %v", ErrConnectionFailed, dialCtx.Err())
		case <-time.After(100 * time.Millisecond):
		}
	}

	_ = client.Close()
	return nil, nil, fmt.Errorf("%w: exceeded max retries connecting to redis: %v", ErrConnectionFailed, lastErr)
}
