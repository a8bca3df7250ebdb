package ratelimit

import (
	"context"
	"math"
	"time"
)

// TokenBucketOptions configures the token bucket algorithm.
type TokenBucketOptions struct {
	RefillRate float64 // tokens per second
	BurstSize  int
}

type tokenBucket struct {
	store         Store
	prefix        string
	windowSeconds int
	refillRate    float64
	burstSize     int
}

func newTokenBucket(store Store, cfg Config) *tokenBucket {
	refillRate := cfg.TokenBucket.RefillRate
	if refillRate <= 0 {
		refillRate = float64(cfg.MaxRequests) / float64(cfg.TimeWindowSeconds)
	}
	burstSize := cfg.TokenBucket.BurstSize
	if burstSize <= 0 {
		burstSize = cfg.MaxRequests
	}
	return &tokenBucket{
		store:         store,
		prefix:        cfg.KeyPrefix,
		windowSeconds: cfg.TimeWindowSeconds,
		refillRate:    refillRate,
		burstSize:     burstSize,
	}
}

// Consume implements the token bucket steps from §4.4: refill from
// elapsed time, reject below one token, otherwise decrement and allow.
func (tb *tokenBucket) Consume(ctx context.Context, key string) (Result, error) {
	storeKey := tb.prefix + key
	now := time.Now().UnixMilli()

	rec, ok, err := tb.store.Get(ctx, storeKey)
	if err != nil {
		return Result{}, err
	}

	if !ok {
		rec = Record{Tokens: float64(tb.burstSize - 1), LastRefillMs: now}
		if err := tb.store.Set(ctx, storeKey, rec, tb.windowSeconds); err != nil {
			return Result{}, err
		}
		return Result{
			Allowed:         true,
			Remaining:       int(rec.Tokens),
			ResetAtEpochSec: (now + int64(tb.windowSeconds)*1000) / 1000,
		}, nil
	}

	elapsedMs := now - rec.LastRefillMs
	refill := math.Floor(float64(elapsedMs) * tb.refillRate / 1000)
	tokens := math.Min(float64(tb.burstSize), rec.Tokens+refill)
	rec.LastRefillMs = now

	if tokens < 1 {
		rec.Tokens = tokens
		if err := tb.store.Set(ctx, storeKey, rec, tb.windowSeconds); err != nil {
			return Result{}, err
		}
		waitMs := math.Ceil((1 - tokens) / tb.refillRate * 1000)
		return Result{
			Allowed:         false,
			Remaining:       0,
			ResetAtEpochSec: (now + int64(waitMs)) / 1000,
		}, nil
	}

	tokens--
	rec.Tokens = tokens
	if err := tb.store.Set(ctx, storeKey, rec, tb.windowSeconds); err != nil {
		return Result{}, err
	}
	return Result{
		Allowed:         true,
		Remaining:       int(math.Floor(tokens)),
		ResetAtEpochSec: (now + int64(tb.windowSeconds)*1000) / 1000,
	}, nil
}
