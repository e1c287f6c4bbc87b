package cache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"crypto_backend/internal/feature/feargreed/domain/entity"
	"crypto_backend/internal/feature/feargreed/usecase"
)

// CachingFearGreedRepository decorates a FearGreedRepository with Redis
// caching for the read path (Latest / History). It implements the decorator
// pattern, transparently adding caching without modifying the underlying
// repository. Writes invalidate all cached entries.
type CachingFearGreedRepository struct {
	inner     usecase.FearGreedRepository
	rdb       *redis.Client
	ttl       time.Duration
	namespace string
}

var _ usecase.FearGreedRepository = (*CachingFearGreedRepository)(nil)

// NewCachingFearGreedRepository decorates a FearGreedRepository with Redis caching.
// If ttl is 0, it defaults to 5 minutes. If namespace is empty, it uses "feargreed".
func NewCachingFearGreedRepository(rdb *redis.Client, ttl time.Duration, inner usecase.FearGreedRepository, namespace string) *CachingFearGreedRepository {
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	if namespace == "" {
		namespace = "feargreed"
	}
	return &CachingFearGreedRepository{
		inner:     inner,
		rdb:       rdb,
		ttl:       ttl,
		namespace: namespace,
	}
}

// Upsert inserts or updates rows and invalidates the cached read entries.
func (c *CachingFearGreedRepository) Upsert(ctx context.Context, rows []entity.FearGreed) error {
	// First upsert to the underlying repository
	if err := c.inner.Upsert(ctx, rows); err != nil {
		return err
	}
	// Exit early if Redis is not configured or there are no rows
	if c.rdb == nil || len(rows) == 0 {
		return nil
	}
	// Best effort: don't fail the write if cache invalidation fails
	_ = c.deleteByPattern(ctx, c.namespace+":*")
	return nil
}

// Latest retrieves the newest row, checking cache first then falling back
// to the database.
func (c *CachingFearGreedRepository) Latest(ctx context.Context) (*entity.FearGreed, error) {
	if c.rdb == nil {
		return c.inner.Latest(ctx)
	}

	key := c.namespace + ":latest"

	// 1) Check cache
	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out entity.FearGreed
		if err := json.Unmarshal(b, &out); err == nil {
			return &out, nil
		}
		// Delete corrupted cache entry
		_ = c.rdb.Del(ctx, key).Err()
	}

	// 2) Fallback to database
	out, err := c.inner.Latest(ctx)
	if err != nil || out == nil {
		return out, err
	}

	// 3) Store in cache (best effort)
	if b, err := json.Marshal(out); err == nil {
		_ = c.rdb.Set(ctx, key, b, c.ttl).Err()
	}

	return out, nil
}

// History retrieves rows since the given time, checking cache first.
func (c *CachingFearGreedRepository) History(ctx context.Context, since time.Time) ([]entity.FearGreed, error) {
	if c.rdb == nil {
		return c.inner.History(ctx, since)
	}

	key := fmt.Sprintf("%s:history:%s", c.namespace, since.UTC().Format("2006-01-02"))

	if b, err := c.rdb.Get(ctx, key).Bytes(); err == nil && len(b) > 0 {
		var out []entity.FearGreed
		if err := json.Unmarshal(b, &out); err == nil {
			return out, nil
		}
		_ = c.rdb.Del(ctx, key).Err()
	}

	out, err := c.inner.History(ctx, since)
	if err != nil {
		return nil, err
	}

	if b, err := json.Marshal(out); err == nil {
		_ = c.rdb.Set(ctx, key, b, c.ttl).Err()
	}

	return out, nil
}

// HasDate is a write-path helper; it always goes to the database.
func (c *CachingFearGreedRepository) HasDate(ctx context.Context, day time.Time) (bool, error) {
	return c.inner.HasDate(ctx, day)
}

// Span is a write-path helper; it always goes to the database.
func (c *CachingFearGreedRepository) Span(ctx context.Context) (time.Time, time.Time, int64, error) {
	return c.inner.Span(ctx)
}

// deleteByPattern deletes all cache keys matching a given pattern using SCAN.
func (c *CachingFearGreedRepository) deleteByPattern(ctx context.Context, pattern string) error {
	var cursor uint64
	for {
		keys, cur, err := c.rdb.Scan(ctx, cursor, pattern, 200).Result()
		if err != nil {
			return err
		}
		if len(keys) > 0 {
			if err := c.rdb.Del(ctx, keys...).Err(); err != nil {
				return err
			}
		}
		cursor = cur
		if cursor == 0 {
			break
		}
	}
	return nil
}
