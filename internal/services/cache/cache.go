// Package cache is a best-effort JSON cache in front of Redis. It never fails
// a caller: store errors and timeouts are logged and treated as a miss.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"strconv"
	"time"

	"go.uber.org/zap"

	redrepo "github.com/IdrisKulubi/demo-site-sub001/internal/repo/redis"
)

const defaultOpTimeout = 150 * time.Millisecond

type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	Del(ctx context.Context, keys ...string) error
}

type Cache struct {
	store     Store
	log       *zap.Logger
	opTimeout time.Duration
}

func New(store Store, log *zap.Logger, opTimeout time.Duration) *Cache {
	if log == nil {
		log = zap.NewNop()
	}
	if opTimeout <= 0 {
		opTimeout = defaultOpTimeout
	}
	return &Cache{store: store, log: log, opTimeout: opTimeout}
}

// Get decodes the cached value for key into dst and reports whether it did.
func (c *Cache) Get(ctx context.Context, key string, dst any) bool {
	if c == nil || c.store == nil {
		return false
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	raw, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, redrepo.ErrCacheMiss) {
			c.log.Warn("cache get failed", zap.String("key", key), zap.Error(err))
		}
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.log.Warn("cache entry undecodable", zap.String("key", key), zap.Error(err))
		return false
	}
	return true
}

func (c *Cache) Set(ctx context.Context, key string, value any, ttl time.Duration) {
	if c == nil || c.store == nil {
		return
	}

	raw, err := json.Marshal(value)
	if err != nil {
		c.log.Warn("cache encode failed", zap.String("key", key), zap.Error(err))
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.store.Set(ctx, key, raw, ttl); err != nil {
		c.log.Warn("cache set failed", zap.String("key", key), zap.Error(err))
	}
}

func (c *Cache) Delete(ctx context.Context, key string) {
	c.DeleteMany(ctx, key)
}

func (c *Cache) DeleteMany(ctx context.Context, keys ...string) {
	if c == nil || c.store == nil || len(keys) == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(ctx, c.opTimeout)
	defer cancel()

	if err := c.store.Del(ctx, keys...); err != nil {
		c.log.Warn("cache delete failed", zap.Strings("keys", keys), zap.Error(err))
	}
}

func CandidatesKey(userID int64) string {
	return "candidates:" + strconv.FormatInt(userID, 10)
}

func ProfileKey(userID int64) string {
	return "profile:" + strconv.FormatInt(userID, 10)
}

func MatchKey(matchID int64) string {
	return "match:" + strconv.FormatInt(matchID, 10)
}
