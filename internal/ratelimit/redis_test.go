package ratelimit

import (
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
)

func newTestRedisLimiter(t *testing.T, mr *miniredis.Miniredis, limit int, window time.Duration) *RedisLimiter {
	t.Helper()
	limiter, err := NewRedisLimiter(RedisConfig{Addr: mr.Addr(), Prefix: "test:ratelimit", Limit: limit, Window: window})
	if err != nil {
		t.Fatalf("new redis limiter: %v", err)
	}
	t.Cleanup(func() { _ = limiter.Close() })
	return limiter
}

func TestRedisLimiterCountsPerKey(t *testing.T) {
	mr := miniredis.RunT(t)
	limiter := newTestRedisLimiter(t, mr, 2, time.Minute)
	for i := 0; i < 2; i++ {
		if !limiter.Allow("198.51.100.7") {
			t.Fatalf("request %d should pass", i+1)
		}
	}
	if limiter.Allow("198.51.100.7") {
		t.Fatalf("third request should be blocked")
	}
	if !limiter.Allow("203.0.113.9") {
		t.Fatalf("other keys keep their own quota")
	}
}

func TestRedisLimiterResetsOnNextWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	limiter := newTestRedisLimiter(t, mr, 1, time.Minute)
	now := time.Date(2026, 3, 1, 12, 0, 10, 0, time.UTC)
	limiter.now = func() time.Time { return now }

	if !limiter.Allow("k") || limiter.Allow("k") {
		t.Fatalf("expected one request per window")
	}
	now = now.Add(time.Minute)
	if !limiter.Allow("k") {
		t.Fatalf("next window should start a fresh count")
	}
}

func TestRedisLimiterCountersExpire(t *testing.T) {
	mr := miniredis.RunT(t)
	limiter := newTestRedisLimiter(t, mr, 3, time.Minute)
	limiter.now = func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) }
	if !limiter.Allow("") {
		t.Fatalf("first request should pass")
	}
	key := limiter.counterKey("")
	if ttl := mr.TTL(key); ttl <= 0 || ttl > time.Minute {
		t.Fatalf("ttl of %s = %v, want within the window", key, ttl)
	}
}

func TestRedisLimiterFailsClosed(t *testing.T) {
	mr := miniredis.RunT(t)
	limiter := newTestRedisLimiter(t, mr, 5, time.Second)
	mr.Close()
	if limiter.Allow("k") {
		t.Fatalf("limiter should deny when redis is unreachable")
	}
}

func TestNewRedisLimiterValidatesConfig(t *testing.T) {
	cases := []RedisConfig{
		{Addr: "", Limit: 1, Window: time.Second},
		{Addr: "127.0.0.1:6379", Limit: 0, Window: time.Second},
		{Addr: "127.0.0.1:6379", Limit: 1, Window: 0},
	}
	for _, cfg := range cases {
		if limiter, err := NewRedisLimiter(cfg); err == nil || limiter != nil {
			t.Fatalf("expected %+v to be rejected", cfg)
		}
	}
}
