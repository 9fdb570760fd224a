package core

import (
	"context"
	"time"
)

// RateLimiter counts the hits of a key within a fixed window.
type RateLimiter interface {
	// Allow records a hit on key and reports whether it is within the limit.
	// when it is not, retryAfter is the time left before the window resets.
	Allow(ctx context.Context, key string) (ok bool, retryAfter time.Duration, err error)
}
