package cache

import (
	"context"
	"sync"
	"time"

	"github.com/trezcool/campus/core"
)

type window struct {
	count   int
	resetAt time.Time
}

// MemoryRateLimiter is the process local fixed window counter, used without redis.
type MemoryRateLimiter struct {
	mu      sync.Mutex
	limit   int
	window  time.Duration
	hits    map[string]*window
	nowFunc func() time.Time // mockable
}

var _ core.RateLimiter = (*MemoryRateLimiter)(nil) // interface compliance check

func NewMemoryRateLimiter(limit int, win time.Duration) *MemoryRateLimiter {
	return &MemoryRateLimiter{
		limit:   limit,
		window:  win,
		hits:    make(map[string]*window),
		nowFunc: time.Now,
	}
}

func (rl *MemoryRateLimiter) Allow(_ context.Context, key string) (bool, time.Duration, error) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.nowFunc()
	for k, w := range rl.hits {
		if !now.Before(w.resetAt) {
			delete(rl.hits, k)
		}
	}

	w, ok := rl.hits[key]
	if !ok {
		w = &window{resetAt: now.Add(rl.window)}
		rl.hits[key] = w
	}
	w.count++
	if w.count <= rl.limit {
		return true, 0, nil
	}
	return false, w.resetAt.Sub(now), nil
}
