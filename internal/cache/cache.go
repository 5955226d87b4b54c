// Package cache is a process-local facade over a shared Redis key-value
// store. Every operation is infallible from the caller's perspective: a
// transport error degrades a get to a miss and a set to a logged warning, so
// the scoring path is written as if the cache did not exist and hits are pure
// latency wins.
package cache

import (
	"context"
	"encoding/json"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/safeascent/safeascent/internal/metrics"
	"github.com/safeascent/safeascent/pkg/config"
	"go.uber.org/zap"
)

// Cache wraps a Redis client behind the never-fail contract. A Cache with a
// nil client is valid and behaves as a permanent miss; the service runs this
// way when no cache backend is configured.
type Cache struct {
	client  *redis.Client
	logger  *zap.SugaredLogger
	metrics *metrics.Metrics
	stats   *counters
}

// New creates a cache over the configured Redis backend. A nil configuration
// yields a disabled cache rather than an error.
func New(cfg *config.RedisData, logger *zap.SugaredLogger, m *metrics.Metrics) *Cache {
	if cfg == nil || cfg.Addr == "" {
		logger.Info("no cache backend configured; running without result caching")
		return &Cache{logger: logger, metrics: m, stats: &counters{}}
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	return &Cache{
		client:  client,
		logger:  logger,
		metrics: m,
		stats:   &counters{},
	}
}

// Disabled returns a cache that always misses; tests and degraded runs use it.
func Disabled(logger *zap.SugaredLogger) *Cache {
	return &Cache{logger: logger, stats: &counters{}}
}

// Enabled reports whether a backend is configured.
func (c *Cache) Enabled() bool {
	return c.client != nil
}

// Get returns the raw bytes stored under key, or ok=false on a miss. Backend
// errors count as misses.
func (c *Cache) Get(ctx context.Context, key string) ([]byte, bool) {
	if c.client == nil {
		c.stats.miss()
		return nil, false
	}

	val, err := c.client.Get(ctx, key).Bytes()
	if err == redis.Nil {
		c.stats.miss()
		c.metrics.RecordCacheOp("get", "miss")
		return nil, false
	}
	if err != nil {
		c.stats.fail()
		c.metrics.RecordCacheOp("get", "error")
		c.logger.Warnf("cache get %s failed: %v", key, err)
		return nil, false
	}

	c.stats.hit()
	c.metrics.RecordCacheOp("get", "hit")
	return val, true
}

// Set stores value under key with the given TTL. Errors are logged, never
// returned.
func (c *Cache) Set(ctx context.Context, key string, value []byte, ttl time.Duration) {
	if c.client == nil {
		return
	}

	if err := c.client.Set(ctx, key, value, ttl).Err(); err != nil {
		c.stats.fail()
		c.metrics.RecordCacheOp("set", "error")
		c.logger.Warnf("cache set %s failed: %v", key, err)
		return
	}
	c.stats.store()
	c.metrics.RecordCacheOp("set", "ok")
}

// GetJSON decodes the value stored under key into dst. A decode failure is
// treated as a miss: the entry is stale garbage and the caller refetches.
func (c *Cache) GetJSON(ctx context.Context, key string, dst any) bool {
	raw, ok := c.Get(ctx, key)
	if !ok {
		return false
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		c.logger.Warnf("cache entry %s failed to decode, treating as miss: %v", key, err)
		c.Delete(ctx, key)
		return false
	}
	return true
}

// SetJSON encodes value as JSON and stores it under key. Struct field order
// is declaration order, so equal logical values serialize to identical bytes.
func (c *Cache) SetJSON(ctx context.Context, key string, value any, ttl time.Duration) {
	if c.client == nil {
		return
	}
	raw, err := json.Marshal(value)
	if err != nil {
		c.logger.Warnf("cache set %s: value failed to encode: %v", key, err)
		return
	}
	c.Set(ctx, key, raw, ttl)
}

// Delete removes a key. Errors are logged, never returned.
func (c *Cache) Delete(ctx context.Context, key string) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		c.stats.fail()
		c.logger.Warnf("cache delete %s failed: %v", key, err)
	}
}

// ClearPrefix removes every key under the given prefix and returns the number
// removed. It scans rather than using KEYS so a large keyspace does not stall
// the backend.
func (c *Cache) ClearPrefix(ctx context.Context, prefix string) int {
	if c.client == nil {
		return 0
	}

	removed := 0
	iter := c.client.Scan(ctx, 0, prefix+"*", 100).Iterator()
	for iter.Next(ctx) {
		if err := c.client.Del(ctx, iter.Val()).Err(); err != nil {
			c.stats.fail()
			c.logger.Warnf("cache delete %s failed: %v", iter.Val(), err)
			continue
		}
		removed++
	}
	if err := iter.Err(); err != nil {
		c.stats.fail()
		c.logger.Warnf("cache scan %s failed: %v", prefix, err)
	}
	return removed
}

// Close releases the backend connection.
func (c *Cache) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}
