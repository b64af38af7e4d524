package config

import (
	"errors"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"gorm.io/gorm"

	"github.com/SAP-F-2025/roster-import-service/internal/cache"
	"github.com/SAP-F-2025/roster-import-service/internal/repositories/postgres"
)

const (
	CacheBackendRedis    = "redis"
	CacheBackendPostgres = "postgres"
	CacheBackendMemory   = "memory"
)

type CacheConfig struct {
	Backend       string        // MAPPING_CACHE_BACKEND
	TTL           time.Duration // MAPPING_CACHE_TTL
	SweepSchedule string        // CACHE_SWEEP_SCHEDULE
	RedisPrefix   string        // MAPPING_CACHE_PREFIX
}

// CreateStore builds the mapping cache for the configured backend. The
// connection the backend needs must be non-nil.
func (c *CacheConfig) CreateStore(db *gorm.DB, client *redis.Client, logger *slog.Logger) (cache.Store, error) {
	switch c.Backend {
	case CacheBackendRedis:
		if client == nil {
			return nil, errors.New("redis mapping cache needs a redis client")
		}
		logger.Info("Using redis mapping cache")
		return cache.NewRedisMappingCache(client, c.RedisPrefix, logger), nil
	case CacheBackendPostgres:
		if db == nil {
			return nil, errors.New("postgres mapping cache needs a database")
		}
		logger.Info("Using postgres mapping cache")
		return postgres.NewMappingCachePostgreSQL(db), nil
	default:
		logger.Info("Using in-memory mapping cache")
		return cache.NewMemoryMappingCache(), nil
	}
}
