// internal/corpus/cached.go
package corpus

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"registry-workers/internal/common/logger"
	"registry-workers/internal/dedup"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

const (
	cacheKeyPrefix     = "dedup:corpus:"
	DefaultCacheTTL    = 5 * time.Minute
	DefaultLoadTimeout = 30 * time.Second
)

// Cached is a read-through redis cache in front of another provider. The
// cached value is the JSON encoded snapshot, so every hit decodes into a
// fresh slice. Redis failures are logged and the cache is bypassed.
// Concurrent misses share one backend load, which outlives any single
// caller's context and is bounded by loadTimeout instead.
type Cached struct {
	next        dedup.CorpusProvider
	redis       redis.Cmdable
	ttl         time.Duration
	loadTimeout time.Duration
	logger      logger.Logger
	group       singleflight.Group
}

func NewCached(next dedup.CorpusProvider, rdb redis.Cmdable, ttl time.Duration, log logger.Logger) *Cached {
	if ttl <= 0 {
		ttl = DefaultCacheTTL
	}
	if log == nil {
		log = logger.NewNoOpLogger()
	}
	return &Cached{next: next, redis: rdb, ttl: ttl, loadTimeout: DefaultLoadTimeout, logger: log}
}

func cacheKey(entityType string) string {
	return cacheKeyPrefix + entityType
}

// RecordsForType implements dedup.CorpusProvider.
func (c *Cached) RecordsForType(ctx context.Context, entityType string) ([]dedup.Entry, error) {
	key := cacheKey(entityType)

	raw, err := c.redis.Get(ctx, key).Bytes()
	switch {
	case err == nil:
		var entries []dedup.Entry
		decodeErr := json.Unmarshal(raw, &entries)
		if decodeErr == nil {
			return entries, nil
		}
		c.logger.Warn("discarding undecodable corpus cache entry", map[string]interface{}{
			"key":   key,
			"error": decodeErr.Error(),
		})
	case errors.Is(err, redis.Nil):
	default:
		c.logger.Warn("corpus cache unavailable, reading through", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}

	ch := c.group.DoChan(entityType, func() (interface{}, error) {
		loadCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), c.loadTimeout)
		defer cancel()

		entries, err := c.next.RecordsForType(loadCtx, entityType)
		if err != nil {
			return nil, err
		}
		c.store(loadCtx, key, entries)
		return entries, nil
	})

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.([]dedup.Entry), nil
	}
}

func (c *Cached) store(ctx context.Context, key string, entries []dedup.Entry) {
	if entries == nil {
		entries = []dedup.Entry{}
	}
	data, err := json.Marshal(entries)
	if err != nil {
		c.logger.Warn("failed to encode corpus for cache", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
		return
	}
	if err := c.redis.Set(ctx, key, data, c.ttl).Err(); err != nil {
		c.logger.Warn("failed to cache corpus", map[string]interface{}{
			"key":   key,
			"error": err.Error(),
		})
	}
}

// Invalidate drops the cached snapshot of entityType.
func (c *Cached) Invalidate(ctx context.Context, entityType string) error {
	return c.redis.Del(ctx, cacheKey(entityType)).Err()
}
