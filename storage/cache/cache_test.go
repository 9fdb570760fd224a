package cache

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/trezcool/campus/core"
)

func TestMemoryRateLimiter(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2021, 3, 1, 10, 0, 0, 0, time.UTC)
	rl := NewMemoryRateLimiter(2, time.Minute)
	rl.nowFunc = func() time.Time { return now }

	for i := 0; i < 2; i++ {
		ok, _, err := rl.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		assert.True(t, ok)
	}
	ok, retryAfter, err := rl.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	assert.False(t, ok)
	assert.Equal(t, time.Minute, retryAfter)

	// other keys have their own window
	ok, _, _ = rl.Allow(ctx, "5.6.7.8")
	assert.True(t, ok)

	now = now.Add(time.Minute)
	ok, _, _ = rl.Allow(ctx, "1.2.3.4")
	assert.True(t, ok, "the window has reset")
}

func TestRedis(t *testing.T) {
	addr := os.Getenv("TEST_REDIS_ADDR")
	if addr == "" {
		t.Skip("TEST_REDIS_ADDR is not set")
	}
	ctx := context.Background()
	client, err := Open(ctx, core.RedisConfig{Addr: addr})
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	t.Run("role cache", func(t *testing.T) {
		rc := NewRedisRoleCache(client, time.Minute)
		userID := uuid.New().String()

		ok, err := rc.Begin(ctx, userID)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, err = rc.Begin(ctx, userID)
		require.NoError(t, err)
		assert.False(t, ok, "in flight")

		require.NoError(t, rc.Done(ctx, userID, false))
		ok, _ = rc.Begin(ctx, userID)
		assert.True(t, ok, "a failed reconciliation does not start the cooldown")

		require.NoError(t, rc.Done(ctx, userID, true))
		n, err := client.Exists(ctx, inFlightKey(userID)).Result()
		require.NoError(t, err)
		assert.Zero(t, n, "the in-flight mark is cleared with the cooldown")
		ttl, err := client.TTL(ctx, checkedKey(userID)).Result()
		require.NoError(t, err)
		assert.True(t, ttl > 0 && ttl <= time.Minute)

		ok, _ = rc.Begin(ctx, userID)
		assert.False(t, ok, "cooling down")
	})

	t.Run("rate limiter", func(t *testing.T) {
		rl := NewRedisRateLimiter(client, "test", 1, time.Minute)
		key := uuid.New().String()

		ok, _, err := rl.Allow(ctx, key)
		require.NoError(t, err)
		assert.True(t, ok)

		ok, retryAfter, err := rl.Allow(ctx, key)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.True(t, retryAfter > 0 && retryAfter <= time.Minute)
	})
}
