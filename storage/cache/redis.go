// Package cache holds the shared (redis) and process local implementations
// of the role cache and the rate limiter.
package cache

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"github.com/redis/go-redis/v9"

	"github.com/trezcool/campus/core"
	"github.com/trezcool/campus/core/user"
)

// inFlightTTL bounds a role reconciliation whose process died before Done.
const inFlightTTL = 30 * time.Second

// Open connects to redis & checks the connection.
func Open(ctx context.Context, conf core.RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     conf.Addr,
		Password: conf.Password,
		DB:       conf.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, errors.Wrapf(err, "connecting to redis at %s", conf.Addr)
	}
	return client, nil
}

// RedisRoleCache shares role reconciliation marks between API instances.
type RedisRoleCache struct {
	client   *redis.Client
	cooldown time.Duration
}

var _ user.RoleCache = (*RedisRoleCache)(nil) // interface compliance check

func NewRedisRoleCache(client *redis.Client, cooldown time.Duration) *RedisRoleCache {
	return &RedisRoleCache{client: client, cooldown: cooldown}
}

func checkedKey(userID string) string  { return "role:checked:" + userID }
func inFlightKey(userID string) string { return "role:inflight:" + userID }

func (c *RedisRoleCache) Begin(ctx context.Context, userID string) (bool, error) {
	n, err := c.client.Exists(ctx, checkedKey(userID)).Result()
	if err != nil {
		return false, errors.Wrap(err, "checking role cooldown")
	}
	if n > 0 {
		return false, nil
	}
	ok, err := c.client.SetNX(ctx, inFlightKey(userID), 1, inFlightTTL).Result()
	return ok, errors.Wrap(err, "marking role reconciliation")
}

// Done starts the cooldown when ok & clears the in-flight mark in a single MULTI/EXEC.
func (c *RedisRoleCache) Done(ctx context.Context, userID string, ok bool) error {
	_, err := c.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if ok && c.cooldown > 0 {
			pipe.Set(ctx, checkedKey(userID), 1, c.cooldown)
		}
		pipe.Del(ctx, inFlightKey(userID))
		return nil
	})
	return errors.Wrap(err, "finishing role reconciliation")
}

// RedisRateLimiter is a fixed window counter shared between API instances.
type RedisRateLimiter struct {
	client *redis.Client
	prefix string
	limit  int
	window time.Duration
}

var _ core.RateLimiter = (*RedisRateLimiter)(nil) // interface compliance check

func NewRedisRateLimiter(client *redis.Client, prefix string, limit int, window time.Duration) *RedisRateLimiter {
	return &RedisRateLimiter{client: client, prefix: prefix, limit: limit, window: window}
}

func (rl *RedisRateLimiter) Allow(ctx context.Context, key string) (bool, time.Duration, error) {
	key = "rate_limit:" + rl.prefix + ":" + key
	count, err := rl.client.Incr(ctx, key).Result()
	if err != nil {
		return true, 0, errors.Wrap(err, "counting hit")
	}
	// first hit of the window
	if count == 1 {
		if err = rl.client.Expire(ctx, key, rl.window).Err(); err != nil {
			return true, 0, errors.Wrap(err, "starting rate limit window")
		}
	}
	if count <= int64(rl.limit) {
		return true, 0, nil
	}
	ttl, err := rl.client.TTL(ctx, key).Result()
	if err != nil || ttl < 0 {
		ttl = rl.window
	}
	return false, ttl, nil
}
