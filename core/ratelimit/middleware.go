package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/tejasframework/tejas/core/ferror"
	"github.com/tejasframework/tejas/core/metrics"
	"github.com/tejasframework/tejas/core/rc"
	"github.com/tejasframework/tejas/core/router"
)

// KeyGenerator derives the per-request rate-limit key suffix. The
// default is the client's resolved IP (§4.4: "Default: client IP").
type KeyGenerator func(*rc.RC) string

func defaultKeyGenerator(c *rc.RC) string { return c.IP }

// MiddlewareOptions configures Middleware beyond what Config already
// covers: the key generator and the optional terminal hook that
// replaces the default 429 response.
type MiddlewareOptions struct {
	KeyGenerator  KeyGenerator
	OnRateLimited func(*rc.RC)
	// Metrics, if set, receives §4.8's tejas_ratelimit_decisions_total
	// counter for every Consume outcome. Nil is a valid no-op.
	Metrics *metrics.Metrics
}

// Middleware builds the rate-limiting middleware from §4.4: it
// consumes one unit per request, stamps the configured header family,
// and either lets the request through or rejects it with 429 (or a
// caller-supplied onRateLimited hook).
func Middleware(limiter Limiter, cfg Config, opts MiddlewareOptions) router.Middleware {
	cfg = cfg.normalized()

	keyGen := opts.KeyGenerator
	if keyGen == nil {
		keyGen = defaultKeyGenerator
	}

	return router.Contextual(func(c *rc.RC, next router.Next) {
		key := keyGen(c)

		res, err := limiter.Consume(c.Req.Context(), key)
		if err != nil {
			if errors.Is(err, context.DeadlineExceeded) {
				// A storage timeout means the limiter itself is unavailable,
				// not the upstream the request is bound for, so this is
				// reported as 503 rather than the generic Timeout kind (408).
				c.SendError(ferror.WithCode(503, "rate limiter storage timed out"))
				return
			}
			c.SendError(ferror.New(ferror.Internal, "rate limiter storage error: "+err.Error()))
			return
		}

		setHeaders(c, cfg, res)
		opts.Metrics.ObserveRateLimitDecision(cfg.Algorithm.String(), res.Allowed)

		if !res.Allowed {
			now := time.Now().Unix()
			retryAfter := res.ResetAtEpochSec - now
			if retryAfter < 0 {
				retryAfter = 0
			}
			c.W.Header().Set("Retry-After", strconv.FormatInt(retryAfter, 10))

			if opts.OnRateLimited != nil {
				opts.OnRateLimited(c)
				return
			}
			c.SendString(429, "Too Many Requests")
			return
		}

		next()
	})
}

func setHeaders(c *rc.RC, cfg Config, res Result) {
	resetValue := res.ResetAtEpochSec
	if cfg.HeaderFormat.Draft8 {
		if delta := res.ResetAtEpochSec - time.Now().Unix(); delta > 0 {
			resetValue = delta
		} else {
			resetValue = 0
		}
	}

	format := cfg.HeaderFormat.Type
	if format == "" {
		format = "standard"
	}

	if format == "standard" || format == "both" {
		c.W.Header().Set("RateLimit-Limit", strconv.Itoa(cfg.MaxRequests))
		c.W.Header().Set("RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.W.Header().Set("RateLimit-Reset", strconv.FormatInt(resetValue, 10))
		if cfg.HeaderFormat.Draft7 {
			c.W.Header().Set("RateLimit-Policy", fmt.Sprintf("%d;w=%d", cfg.MaxRequests, cfg.TimeWindowSeconds))
		}
	}
	if format == "legacy" || format == "both" {
		c.W.Header().Set("X-RateLimit-Limit", strconv.Itoa(cfg.MaxRequests))
		c.W.Header().Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
		c.W.Header().Set("X-RateLimit-Reset", strconv.FormatInt(resetValue, 10))
	}
}
