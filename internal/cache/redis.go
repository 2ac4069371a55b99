package cache

import (
	"Linklytics-Backend/internal/config"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// NewClient connects a go-redis client and verifies the connection.
func NewClient(cfg *config.Redis) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to ping redis: %w", err)
	}

	return client, nil
}

// RedisCache implements Cache on a Redis backend.
type RedisCache struct {
	client *redis.Client
	log    *zap.Logger
}

func NewRedis(client *redis.Client, log *zap.Logger) *RedisCache {
	return &RedisCache{client: client, log: log}
}

func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, bool) {
	data, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.log.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return nil, false
	}
	return data, true
}

func (c *RedisCache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *RedisCache) Delete(ctx context.Context, keys ...string) {
	for _, key := range keys {
		if strings.Contains(key, "*") {
			c.deletePattern(ctx, key)
			continue
		}
		if err := c.client.Del(ctx, key).Err(); err != nil {
			c.log.Warn("cache delete failed", zap.String("key", key), zap.Error(err))
		}
	}
}

// deletePattern expands a wildcard key with SCAN rather than KEYS, so
// invalidation never blocks the server.
func (c *RedisCache) deletePattern(ctx context.Context, pattern string) {
	iter := c.client.Scan(ctx, 0, pattern, 0).Iterator()
	var matched []string
	for iter.Next(ctx) {
		matched = append(matched, iter.Val())
	}
	if err := iter.Err(); err != nil {
		c.log.Warn("cache pattern scan failed", zap.String("pattern", pattern), zap.Error(err))
		return
	}
	if len(matched) == 0 {
		return
	}
	if err := c.client.Del(ctx, matched...).Err(); err != nil {
		c.log.Warn("cache pattern delete failed", zap.String("pattern", pattern), zap.Error(err))
	}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}
