package ratelimit

import (
	"context"
	"time"
)

// FixedWindowOptions configures the fixed window algorithm.
type FixedWindowOptions struct {
	StrictWindow bool
}

type fixedWindow struct {
	store       Store
	prefix      string
	maxRequests int
	windowMs    int64
	strict      bool
}

func newFixedWindow(store Store, cfg Config) *fixedWindow {
	return &fixedWindow{
		store:       store,
		prefix:      cfg.KeyPrefix,
		maxRequests: cfg.MaxRequests,
		windowMs:    int64(cfg.TimeWindowSeconds) * 1000,
		strict:      cfg.FixedWindow.StrictWindow,
	}
}

// Consume implements §4.4's fixed window: a strict window aligns to
// wall-clock boundaries, a lax one anchors to the first request seen;
// either way a stale window resets the counter before applying the cap.
func (fw *fixedWindow) Consume(ctx context.Context, key string) (Result, error) {
	storeKey := fw.prefix + key
	now := time.Now().UnixMilli()

	rec, ok, err := fw.store.Get(ctx, storeKey)
	if err != nil {
		return Result{}, err
	}

	needsReset := !ok
	if ok {
		if fw.strict {
			needsReset = rec.WindowStart < (now/fw.windowMs)*fw.windowMs
		} else {
			needsReset = rec.WindowStart < now-fw.windowMs
		}
	}

	ttlSec := int(fw.windowMs/1000) * 2

	if needsReset {
		windowStart := now
		if fw.strict {
			windowStart = (now / fw.windowMs) * fw.windowMs
		}
		rec = Record{Counter: 1, WindowStart: windowStart}
		if err := fw.store.Set(ctx, storeKey, rec, ttlSec); err != nil {
			return Result{}, err
		}
		return Result{
			Allowed:         true,
			Remaining:       fw.maxRequests - 1,
			ResetAtEpochSec: (windowStart + fw.windowMs) / 1000,
		}, nil
	}

	resetAt := (rec.WindowStart + fw.windowMs) / 1000

	if rec.Counter >= int64(fw.maxRequests) {
		return Result{Allowed: false, Remaining: 0, ResetAtEpochSec: resetAt}, nil
	}

	rec.Counter++
	if err := fw.store.Set(ctx, storeKey, rec, ttlSec); err != nil {
		return Result{}, err
	}
	return Result{
		Allowed:         true,
		Remaining:       fw.maxRequests - int(rec.Counter),
		ResetAtEpochSec: resetAt,
	}, nil
}
