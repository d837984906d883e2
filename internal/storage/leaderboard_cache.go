package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
)

const leaderboardKeyPrefix = "leaderboard"

// LeaderboardCache memoizes computed leaderboards in Redis as JSON.
// Entries expire after ttl and are dropped wholesale whenever tallies, statuses or ROI change.
type LeaderboardCache struct {
	redis *RedisCache
	ttl   time.Duration
}

// NewLeaderboardCache creates a new leaderboard cache
func NewLeaderboardCache(redis *RedisCache, ttl time.Duration) *LeaderboardCache {
	return &LeaderboardCache{redis: redis, ttl: ttl}
}

// Key builds the cache key for a leaderboard kind and limit.
// Format: leaderboard:<kind>:<limit>
func (c *LeaderboardCache) Key(kind string, limit int) string {
	return fmt.Sprintf("%s:%s:%d", leaderboardKeyPrefix, strings.ToLower(kind), limit)
}

// Get loads a cached value into dest. A miss returns false with no error.
func (c *LeaderboardCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	data, err := c.redis.Client().Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return false, nil
		}
		return false, fmt.Errorf("failed to get from cache: %w", err)
	}

	if err := json.Unmarshal(data, dest); err != nil {
		return false, fmt.Errorf("failed to unmarshal cached value: %w", err)
	}
	return true, nil
}

// Set stores value under key with the configured TTL
func (c *LeaderboardCache) Set(ctx context.Context, key string, value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to marshal value: %w", err)
	}
	return c.redis.Client().Set(ctx, key, data, c.ttl).Err()
}

// InvalidateAll removes every cached leaderboard
func (c *LeaderboardCache) InvalidateAll(ctx context.Context) error {
	var keys []string
	iter := c.redis.Client().Scan(ctx, 0, leaderboardKeyPrefix+":*", 100).Iterator()
	for iter.Next(ctx) {
		keys = append(keys, iter.Val())
	}
	if err := iter.Err(); err != nil {
		return fmt.Errorf("failed to scan leaderboard keys: %w", err)
	}
	if len(keys) == 0 {
		return nil
	}
	return c.redis.Client().Del(ctx, keys...).Err()
}

// TTL returns the configured expiry
func (c *LeaderboardCache) TTL() time.Duration {
	return c.ttl
}
