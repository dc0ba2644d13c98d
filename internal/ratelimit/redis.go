package ratelimit

import (
	"context"
	"errors"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	defaultRedisPrefix = "jobtracker:ratelimit"
	redisCallTimeout   = 2 * time.Second
)

// The counter is created with the window's expiry before the first
// increment, so a crash between the two commands cannot leave a key that
// never expires.
var windowCounter = redis.NewScript(`
redis.call("SET", KEYS[1], 0, "PX", ARGV[1], "NX")
return redis.call("INCR", KEYS[1])
`)

// RedisConfig describes a quota shared through Redis.
type RedisConfig struct {
	Addr     string
	Password string
	// Prefix namespaces the counters, e.g. "jobtracker:ratelimit:login".
	Prefix string
	Limit  int
	Window time.Duration
}

// RedisLimiter counts requests per key in aligned windows stored in Redis,
// so every instance sharing the Redis sees the same quota. Redis errors
// deny the request.
type RedisLimiter struct {
	client *redis.Client
	prefix string
	limit  int64
	window time.Duration
	now    func() time.Time
}

// NewRedisLimiter validates cfg and connects lazily to Redis.
func NewRedisLimiter(cfg RedisConfig) (*RedisLimiter, error) {
	if cfg.Limit <= 0 || cfg.Window < time.Millisecond {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	addr := strings.TrimSpace(cfg.Addr)
	if addr == "" {
		return nil, errors.New("rate limiter redis addr is required")
	}
	prefix := strings.TrimSpace(cfg.Prefix)
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisLimiter{
		client: redis.NewClient(&redis.Options{Addr: addr, Password: cfg.Password}),
		prefix: prefix,
		limit:  int64(cfg.Limit),
		window: cfg.Window,
		now:    time.Now,
	}, nil
}

// Allow records one request for key and reports whether it is within quota.
func (l *RedisLimiter) Allow(key string) bool {
	if l == nil {
		return false
	}
	ctx, cancel := context.WithTimeout(context.Background(), redisCallTimeout)
	defer cancel()
	count, err := windowCounter.Run(ctx, l.client, []string{l.counterKey(key)}, l.window.Milliseconds()).Int64()
	if err != nil {
		slog.Warn("rate limiter unavailable, denying request", "prefix", l.prefix, "err", err)
		return false
	}
	return count <= l.limit
}

// counterKey names the counter of key for the window containing now.
func (l *RedisLimiter) counterKey(key string) string {
	start := l.now().UTC().Truncate(l.window).UnixMilli()
	return l.prefix + ":" + normalizeKey(key) + ":" + strconv.FormatInt(start, 10)
}

// Close releases the Redis connection pool.
func (l *RedisLimiter) Close() error {
	return l.client.Close()
}
