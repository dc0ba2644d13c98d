// Package ratelimit throttles unauthenticated endpoints per client.
package ratelimit

import "strings"

// Limiter decides whether one more request for key fits its quota.
type Limiter interface {
	Allow(key string) bool
}

func normalizeKey(key string) string {
	key = strings.TrimSpace(key)
	if key == "" {
		return "unknown"
	}
	return key
}
