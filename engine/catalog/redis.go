package catalog

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/WessleyAI/wessley-parts/engine/domain"
	"github.com/redis/go-redis/v9"
)

// DefaultKeyPrefix namespaces cache keys in Redis.
const DefaultKeyPrefix = "parts:scrape:"

// kv is the subset of *redis.Client used by RedisCache.
type kv interface {
	Get(ctx context.Context, key string) *redis.StringCmd
	Set(ctx context.Context, key string, value any, expiration time.Duration) *redis.StatusCmd
}

// RedisCache keeps snapshots as JSON strings that Redis expires after TTL.
// The stored timestamp is still checked so expiry matches FileCache.
type RedisCache struct {
	rdb    kv
	prefix string
	now    func() time.Time
	logger *slog.Logger
}

// NewRedisCache wraps a connected client. logger may be nil.
func NewRedisCache(rdb *redis.Client, logger *slog.Logger) *RedisCache {
	return newRedisCache(rdb, logger)
}

func newRedisCache(rdb kv, logger *slog.Logger) *RedisCache {
	if logger == nil {
		logger = slog.Default()
	}
	return &RedisCache{rdb: rdb, prefix: DefaultKeyPrefix, now: time.Now, logger: logger}
}

func (c *RedisCache) Get(ctx context.Context, oem string) (domain.Snapshot, bool) {
	if oem == "" {
		return domain.Snapshot{}, false
	}
	raw, err := c.rdb.Get(ctx, c.prefix+oem).Bytes()
	if errors.Is(err, redis.Nil) {
		return domain.Snapshot{}, false
	}
	if err != nil {
		c.logger.Warn("redis cache get failed", "oem", oem, "err", err)
		return domain.Snapshot{}, false
	}
	var e cacheEntry
	if err := json.Unmarshal(raw, &e); err != nil {
		c.logger.Warn("redis cache entry corrupt", "oem", oem, "err", err)
		return domain.Snapshot{}, false
	}
	return e.snapshot(c.now())
}

func (c *RedisCache) Put(ctx context.Context, oem string, prices []float64, image string) error {
	if oem == "" {
		return nil
	}
	raw, err := json.Marshal(newEntry(prices, image, c.now()))
	if err != nil {
		return fmt.Errorf("encode cache entry: %w", err)
	}
	if err := c.rdb.Set(ctx, c.prefix+oem, raw, TTL).Err(); err != nil {
		return fmt.Errorf("redis set %s: %w", oem, err)
	}
	return nil
}
