package ratelimit

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisStore is the Store backend for multi-process deployments: a
// record is serialized as JSON text and stored with Redis's own TTL
// (`EX`) instead of an expireAt field, matching §4.4's "values
// serialized as text; set with EX=ttlSec".
type RedisStore struct {
	rdb *redis.Client
}

// NewRedisStore wraps an already-connected client. The connection
// manager (core/conn) owns dialing and lifecycle; this type only knows
// how to speak the Store contract over it.
func NewRedisStore(rdb *redis.Client) *RedisStore {
	return &RedisStore{rdb: rdb}
}

func (s *RedisStore) Get(ctx context.Context, key string) (Record, bool, error) {
	raw, err := s.rdb.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return Record{}, false, nil
	}
	if err != nil {
		return Record{}, false, err
	}

	var rec Record
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		return Record{}, false, err
	}
	return rec, true, nil
}

func (s *RedisStore) Set(ctx context.Context, key string, rec Record, ttlSec int) error {
	raw, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	var ttl time.Duration
	if ttlSec > 0 {
		ttl = time.Duration(ttlSec) * time.Second
	}
	return s.rdb.Set(ctx, key, raw, ttl).Err()
}

// Incr increments a key holding a plain counter. It returns ok=false
// when the key does not already exist, per the storage contract —
// unlike redis INCR (which creates missing keys at 0), so a caller can
// tell whether it must initialize the key itself.
func (s *RedisStore) Incr(ctx context.Context, key string) (int64, bool, error) {
	exists, err := s.rdb.Exists(ctx, key).Result()
	if err != nil {
		return 0, false, err
	}
	if exists == 0 {
		return 0, false, nil
	}

	n, err := s.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, false, err
	}
	return n, true, nil
}

func (s *RedisStore) Delete(ctx context.Context, key string) error {
	return s.rdb.Del(ctx, key).Err()
}
