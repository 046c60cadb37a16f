package cache

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

const DefaultTTL = 30 * time.Minute

func NewRedisCache(client *redis.Client, ttl time.Duration) *RedisCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &RedisCache{
		client: client,
		ttl:    ttl,
	}
}

// RedisCache keeps tokens for the lifetime of a browser session. Writes are
// last-writer-wins.
type RedisCache struct {
	client *redis.Client
	ttl    time.Duration
}

func (r RedisCache) Get(ctx context.Context, sessionID string) (string, error) {
	token, err := r.client.Get(ctx, cacheKey(sessionID)).Result()
	if errors.Is(err, redis.Nil) {
		return "", ErrCacheMiss
	}
	if err != nil {
		return "", fmt.Errorf("redis get failed: %w", err)
	}
	if token == "" {
		return "", ErrCacheMiss
	}
	return token, nil
}

func (r RedisCache) Set(ctx context.Context, sessionID string, token string) error {
	if err := r.client.Set(ctx, cacheKey(sessionID), token, r.ttl).Err(); err != nil {
		return fmt.Errorf("redis set failed: %w", err)
	}
	return nil
}

func (r RedisCache) Delete(ctx context.Context, sessionID string) error {
	if err := r.client.Del(ctx, cacheKey(sessionID)).Err(); err != nil {
		return fmt.Errorf("redis delete failed: %w", err)
	}
	return nil
}
