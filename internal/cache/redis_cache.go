package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/SAP-F-2025/roster-import-service/internal/importer"
)

const defaultRedisPrefix = "roster-import:mapping-cache:"

// RedisMappingCache keeps each suggestion under its own key and indexes
// expiry times in a sorted set so the sweeper can purge them in bulk. Keys
// carry no Redis TTL.
type RedisMappingCache struct {
	client *redis.Client
	prefix string
	logger *slog.Logger
}

func NewRedisMappingCache(client *redis.Client, prefix string, logger *slog.Logger) *RedisMappingCache {
	if prefix == "" {
		prefix = defaultRedisPrefix
	}
	return &RedisMappingCache{client: client, prefix: prefix, logger: logger}
}

func (r *RedisMappingCache) entryKey(id string) string { return r.prefix + "entry:" + id }
func (r *RedisMappingCache) expiryKey() string         { return r.prefix + "expiry" }

// KeyHash hashes the cache key so arbitrary sample text never leaks into Redis key names.
func KeyHash(key importer.CacheKey) string {
	sum := sha256.Sum256([]byte(key.String()))
	return hex.EncodeToString(sum[:])
}

func (r *RedisMappingCache) Get(ctx context.Context, key importer.CacheKey) (*importer.CachedMapping, error) {
	data, err := r.client.Get(ctx, r.entryKey(KeyHash(key))).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("redis get mapping: %w", err)
	}

	var entry importer.CachedMapping
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, fmt.Errorf("decode cached mapping: %w", err)
	}
	return &entry, nil
}

// Put upserts the entry; the last write for a key wins.
func (r *RedisMappingCache) Put(ctx context.Context, entry importer.CachedMapping) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("encode cached mapping: %w", err)
	}
	id := KeyHash(entry.Key)

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, r.entryKey(id), data, 0)
		pipe.ZAdd(ctx, r.expiryKey(), redis.Z{Score: float64(entry.ExpiresAt.Unix()), Member: id})
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis put mapping: %w", err)
	}
	return nil
}

// PurgeExpired deletes every entry whose expiry is at or before now.
func (r *RedisMappingCache) PurgeExpired(ctx context.Context, now time.Time) (int, error) {
	ids, err := r.client.ZRangeByScore(ctx, r.expiryKey(), &redis.ZRangeBy{
		Min: "-inf",
		Max: strconv.FormatInt(now.Unix(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("redis scan expired mappings: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	keys := make([]string, len(ids))
	members := make([]any, len(ids))
	for i, id := range ids {
		keys[i] = r.entryKey(id)
		members[i] = id
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Del(ctx, keys...)
		pipe.ZRem(ctx, r.expiryKey(), members...)
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("redis purge mappings: %w", err)
	}

	r.logger.Debug("Purged expired mapping cache entries", "count", len(ids))
	return len(ids), nil
}
