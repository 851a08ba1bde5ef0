package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// LeaderboardCache stores rendered leaderboards. A nil cache means every read goes to the DB.
type LeaderboardCache interface {
	Get(ctx context.Context, key string, dst interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	Delete(ctx context.Context, keys ...string) error
}

func weeklyLeaderboardKey(tournamentID string) string {
	return fmt.Sprintf("kinetic:leaderboard:weekly:%s", tournamentID)
}

func monthlyLeaderboardKey(monthKey string) string {
	return fmt.Sprintf("kinetic:leaderboard:monthly:%s", monthKey)
}

// RedisLeaderboardCache keeps JSON snapshots in Redis with a fixed TTL.
type RedisLeaderboardCache struct {
	client *redis.Client
	ttl    time.Duration
	log    *zap.Logger
}

// NewRedisLeaderboardCache connects and pings Redis.
func NewRedisLeaderboardCache(ctx context.Context, opts *redis.Options, ttl time.Duration, log *zap.Logger) (*RedisLeaderboardCache, error) {
	client := redis.NewClient(opts)
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("connecting to redis: %w", err)
	}
	return &RedisLeaderboardCache{client: client, ttl: ttl, log: log}, nil
}

func (c *RedisLeaderboardCache) Close() error {
	return c.client.Close()
}

func (c *RedisLeaderboardCache) Get(ctx context.Context, key string, dst interface{}) (bool, error) {
	raw, err := c.client.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		leaderboardCacheLookups.WithLabelValues("miss").Inc()
		return false, nil
	}
	if err != nil {
		leaderboardCacheLookups.WithLabelValues("error").Inc()
		return false, fmt.Errorf("reading %s: %w", key, err)
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		leaderboardCacheLookups.WithLabelValues("error").Inc()
		return false, fmt.Errorf("decoding %s: %w", key, err)
	}
	leaderboardCacheLookups.WithLabelValues("hit").Inc()
	return true, nil
}

func (c *RedisLeaderboardCache) Set(ctx context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encoding %s: %w", key, err)
	}
	if err := c.client.Set(ctx, key, raw, c.ttl).Err(); err != nil {
		return fmt.Errorf("writing %s: %w", key, err)
	}
	return nil
}

func (c *RedisLeaderboardCache) Delete(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	if err := c.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("deleting leaderboard keys: %w", err)
	}
	return nil
}
