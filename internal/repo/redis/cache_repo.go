package redis

import (
	"context"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"
)

// ErrCacheMiss is returned by Get when the key is absent or expired.
var ErrCacheMiss = errors.New("cache miss")

type CacheRepo struct {
	client *goredis.Client
}

func NewCacheRepo(client *goredis.Client) *CacheRepo {
	return &CacheRepo{client: client}
}

func (r *CacheRepo) Get(ctx context.Context, key string) ([]byte, error) {
	if r.client == nil {
		return nil, fmt.Errorf("redis client is nil")
	}

	raw, err := r.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, ErrCacheMiss
		}
		return nil, fmt.Errorf("get cache key: %w", err)
	}
	return raw, nil
}

func (r *CacheRepo) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if key == "" {
		return fmt.Errorf("cache key is required")
	}
	if ttl < 0 {
		ttl = 0
	}

	if err := r.client.Set(ctx, key, value, ttl).Err(); err != nil {
		return fmt.Errorf("set cache key: %w", err)
	}
	return nil
}

func (r *CacheRepo) Del(ctx context.Context, keys ...string) error {
	if r.client == nil {
		return fmt.Errorf("redis client is nil")
	}
	if len(keys) == 0 {
		return nil
	}

	if err := r.client.Del(ctx, keys...).Err(); err != nil {
		return fmt.Errorf("delete cache keys: %w", err)
	}
	return nil
}
