// Package config implements the merge described in spec.md §6:
// tejas.config.json at the process cwd, overridden by the process
// environment, overridden by explicit constructor options — all under
// UPPER_SNAKE_CASE keys, nested JSON objects flattened by "_".
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Config is the typed view over the merged UPPER_SNAKE_CASE key space.
// Raw holds every recognized and unrecognized key as merged, so a
// caller needing a key this struct doesn't surface can still read it.
type Config struct {
	Port            int
	BodyMaxSize     int64
	BodyTimeout     time.Duration
	DirTargets      string
	LogHTTPRequests bool
	LogExceptions   bool

	RedisAddr     string
	RedisPassword string
	RedisDB       int
	RedisCluster  bool

	MongoURI      string
	MongoDatabase string

	RateLimitEnabled   string // algorithm name ("token-bucket"|"sliding-window"|"fixed-window"), empty disables
	RateLimitMax       int
	RateLimitWindowSec int
	RateLimitKeyPrefix string

	CacheMaxBytes   string // absolute ("100MB") or percentage ("25%") size string, per §4.5
	CacheLogEnabled bool

	Raw map[string]string
}

// Option mutates the merged key space before Config is decoded from it.
// Options are applied last, so they take precedence over both
// tejas.config.json and the process environment.
type Option func(map[string]string)

// WithString sets a single UPPER_SNAKE_CASE key to an explicit value.
func WithString(key, value string) Option {
	key = strings.ToUpper(key)
	return func(m map[string]string) { m[key] = value }
}

// WithInt sets a single key to an explicit integer value.
func WithInt(key string, value int) Option {
	return WithString(key, strconv.Itoa(value))
}

// WithBool sets a single key to an explicit boolean value.
func WithBool(key string, value bool) Option {
	return WithString(key, strconv.FormatBool(value))
}

const configFileName = "tejas.config.json"

// Load merges tejas.config.json (if present at the process cwd), then
// the process environment, then opts, and decodes the result into a
// Config. A malformed tejas.config.json is a startup-fatal error (§6:
// "non-zero on ... bad configuration"); a missing file is not.
func Load(opts ...Option) (*Config, error) {
	merged := make(map[string]string)

	fileValues, err := loadJSONFile(configFileName)
	if err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	for k, v := range fileValues {
		merged[k] = v
	}

	for _, kv := range os.Environ() {
		k, v, ok := strings.Cut(kv, "=")
		if !ok {
			continue
		}
		merged[strings.ToUpper(k)] = v
	}

	for _, opt := range opts {
		opt(merged)
	}

	return decode(merged), nil
}

// loadJSONFile reads and flattens a JSON config file. A missing file
// yields an empty map with no error; any other read/parse failure is
// returned.
func loadJSONFile(path string) (map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}

	out := make(map[string]string)
	flatten("", raw, out)
	return out, nil
}

// flatten recurses through nested JSON objects, joining key segments
// with "_" and upper-casing the result, per spec.md §6.
func flatten(prefix string, v map[string]any, out map[string]string) {
	for k, val := range v {
		key := strings.ToUpper(k)
		if prefix != "" {
			key = prefix + "_" + key
		}

		switch t := val.(type) {
		case map[string]any:
			flatten(key, t, out)
		case string:
			out[key] = t
		case bool:
			out[key] = strconv.FormatBool(t)
		case float64:
			out[key] = strconv.FormatFloat(t, 'f', -1, 64)
		default:
			if t != nil {
				out[key] = fmt.Sprintf("%v", t)
			}
		}
	}
}

func decode(m map[string]string) *Config {
	cfg := &Config{Raw: m}

	cfg.Port = getInt(m, "PORT", 1403)
	cfg.BodyMaxSize = getInt64(m, "BODY_MAX_SIZE", 10*1024*1024)
	cfg.BodyTimeout = time.Duration(getInt64(m, "BODY_TIMEOUT", 30000)) * time.Millisecond
	cfg.DirTargets = m["DIR_TARGETS"]
	cfg.LogHTTPRequests = getBool(m, "LOG_HTTP_REQUESTS", false)
	cfg.LogExceptions = getBool(m, "LOG_EXCEPTIONS", false)

	cfg.RedisAddr = m["REDIS_ADDR"]
	cfg.RedisPassword = m["REDIS_PASSWORD"]
	cfg.RedisDB = getInt(m, "REDIS_DB", 0)
	cfg.RedisCluster = getBool(m, "REDIS_CLUSTER", false)

	cfg.MongoURI = m["MONGO_URI"]
	cfg.MongoDatabase = m["MONGO_DATABASE"]

	cfg.RateLimitEnabled = m["RATE_LIMIT_ENABLED"]
	cfg.RateLimitMax = getInt(m, "RATE_LIMIT_MAX_REQUESTS", 60)
	cfg.RateLimitWindowSec = getInt(m, "RATE_LIMIT_TIME_WINDOW_SECONDS", 60)
	cfg.RateLimitKeyPrefix = getString(m, "RATE_LIMIT_KEY_PREFIX", "rl:")

	cfg.CacheMaxBytes = getString(m, "CACHE_MAX_BYTES", "100MB")
	cfg.CacheLogEnabled = getBool(m, "CACHE_LOG_ENABLED", false)

	return cfg
}

func getString(m map[string]string, key, def string) string {
	if v, ok := m[key]; ok && v != "" {
		return v
	}
	return def
}

func getInt(m map[string]string, key string, def int) int {
	if v, ok := m[key]; ok && v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getInt64(m map[string]string, key string, def int64) int64 {
	if v, ok := m[key]; ok && v != "" {
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}
	return def
}

func getBool(m map[string]string, key string, def bool) bool {
	if v, ok := m[key]; ok && v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return def
}
