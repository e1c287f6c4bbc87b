package di

import (
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	feargreedadapters "crypto_backend/internal/feature/feargreed/adapters"
	"crypto_backend/internal/feature/feargreed/usecase"
	"crypto_backend/internal/platform/cache"
)

// NewFearGreedRepository creates a FearGreedRepository implementation.
// If Redis is available, the gorm repository is wrapped with a Redis
// read-through cache. Otherwise, reads go straight to the database.
func NewFearGreedRepository(rdb *redis.Client, db *gorm.DB) usecase.FearGreedRepository {
	repo := feargreedadapters.NewFearGreedRepository(db)
	if rdb != nil {
		return cache.NewCachingFearGreedRepository(rdb, 5*time.Minute, repo, "feargreed")
	}
	return repo
}
