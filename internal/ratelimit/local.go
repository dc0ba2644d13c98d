package ratelimit

import (
	"errors"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// LocalLimiter is an in-process token bucket per key, used when no Redis is
// configured. Quotas are not shared between instances.
type LocalLimiter struct {
	mu       sync.Mutex
	limiters map[string]*localEntry
	rate     rate.Limit
	burst    int
	idle     time.Duration
	now      func() time.Time
}

type localEntry struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewLocalLimiter allows limit requests per window for each key, with the
// full limit available as a burst.
func NewLocalLimiter(limit int, window time.Duration) (*LocalLimiter, error) {
	if limit <= 0 || window <= 0 {
		return nil, errors.New("rate limiter requires positive limit and window")
	}
	return &LocalLimiter{
		limiters: make(map[string]*localEntry),
		rate:     rate.Limit(float64(limit) / window.Seconds()),
		burst:    limit,
		idle:     2 * window,
		now:      time.Now,
	}, nil
}

// Allow consumes one token for key.
func (l *LocalLimiter) Allow(key string) bool {
	if l == nil {
		return false
	}
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	key = normalizeKey(key)
	entry, ok := l.limiters[key]
	if !ok {
		l.pruneLocked(now)
		entry = &localEntry{limiter: rate.NewLimiter(l.rate, l.burst)}
		l.limiters[key] = entry
	}
	entry.lastSeen = now
	return entry.limiter.AllowN(now, 1)
}

// pruneLocked drops buckets idle long enough to have refilled completely.
func (l *LocalLimiter) pruneLocked(now time.Time) {
	for key, entry := range l.limiters {
		if now.Sub(entry.lastSeen) > l.idle {
			delete(l.limiters, key)
		}
	}
}
