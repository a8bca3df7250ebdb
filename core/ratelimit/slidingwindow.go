package ratelimit

import (
	"context"
	"time"
)

// SlidingWindowOptions configures the sliding window algorithm.
type SlidingWindowOptions struct {
	GranularityMs  int64
	WeightCurrent  float64
	WeightPrevious float64
}

type slidingWindow struct {
	store          Store
	prefix         string
	maxRequests    int
	windowSeconds  int
	granularityMs  int64
	weightCurrent  float64
	weightPrevious float64
}

func newSlidingWindow(store Store, cfg Config) *slidingWindow {
	granularity := cfg.SlidingWindow.GranularityMs
	if granularity <= 0 {
		granularity = 1000
	}
	wc, wp := cfg.SlidingWindow.WeightCurrent, cfg.SlidingWindow.WeightPrevious
	if wc == 0 && wp == 0 {
		wc = 1
	}
	return &slidingWindow{
		store:          store,
		prefix:         cfg.KeyPrefix,
		maxRequests:    cfg.MaxRequests,
		windowSeconds:  cfg.TimeWindowSeconds,
		granularityMs:  granularity,
		weightCurrent:  wc,
		weightPrevious: wp,
	}
}

// Consume implements §4.4's weighted current/previous bucket count:
// reject when the weighted sum already meets the cap, otherwise drop
// stale timestamps, record this one, and allow.
func (sw *slidingWindow) Consume(ctx context.Context, key string) (Result, error) {
	storeKey := sw.prefix + key
	now := time.Now().UnixMilli()

	rec, ok, err := sw.store.Get(ctx, storeKey)
	if err != nil {
		return Result{}, err
	}
	var timestamps []int64
	if ok {
		timestamps = rec.Timestamps
	}

	currentStart := (now / sw.granularityMs) * sw.granularityMs
	previousStart := currentStart - int64(sw.windowSeconds)*1000

	var c, p int
	for _, ts := range timestamps {
		switch {
		case ts >= currentStart && ts <= now:
			c++
		case ts >= previousStart && ts < currentStart:
			p++
		}
	}

	weighted := float64(c)*sw.weightCurrent + float64(p)*sw.weightPrevious
	resetAt := currentStart/1000 + int64(sw.windowSeconds)

	if weighted >= float64(sw.maxRequests) {
		return Result{Allowed: false, Remaining: 0, ResetAtEpochSec: resetAt}, nil
	}

	kept := make([]int64, 0, len(timestamps)+1)
	for _, ts := range timestamps {
		if ts >= previousStart {
			kept = append(kept, ts)
		}
	}
	kept = append(kept, now)

	if err := sw.store.Set(ctx, storeKey, Record{Timestamps: kept}, sw.windowSeconds*2); err != nil {
		return Result{}, err
	}

	remaining := sw.maxRequests - int(weighted) - 1
	if remaining < 0 {
		remaining = 0
	}
	return Result{Allowed: true, Remaining: remaining, ResetAtEpochSec: resetAt}, nil
}
