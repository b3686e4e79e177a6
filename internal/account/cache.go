package account

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/raaihank/pdf-redactor/internal/config"
	"github.com/raaihank/pdf-redactor/internal/logger"
	"github.com/raaihank/pdf-redactor/internal/privacy"
	"go.uber.org/zap"
)

// TierCache keeps recently resolved tiers in Redis.
type TierCache struct {
	client *redis.Client
	cfg    config.CacheConfig
	logger *logger.Logger
	hits   atomic.Int64
	misses atomic.Int64
}

// CacheStats reports cache effectiveness.
type CacheStats struct {
	Hits    int64   `json:"hits"`
	Misses  int64   `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}

// NewTierCache connects to Redis.
func NewTierCache(cfg config.CacheConfig, log *logger.Logger) (*TierCache, error) {
	opts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	cache := &TierCache{
		client: redis.NewClient(opts),
		cfg:    cfg,
		logger: log,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := cache.client.Ping(ctx).Err(); err != nil {
		cache.client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	log.Info("Tier cache initialized",
		zap.String("redis_url", config.MaskDSN(cfg.RedisURL)),
		zap.Duration("ttl", cfg.TTL))

	return cache, nil
}

// Get returns the cached tier of userID. Lookup errors count as misses.
func (c *TierCache) Get(ctx context.Context, userID string) (privacy.Tier, bool) {
	val, err := c.client.Get(ctx, c.key(userID)).Result()
	if err == redis.Nil {
		c.misses.Add(1)
		return privacy.TierStandard, false
	} else if err != nil {
		c.misses.Add(1)
		c.logger.Warn("Tier cache lookup failed", zap.Error(err))
		return privacy.TierStandard, false
	}

	c.hits.Add(1)
	return privacy.ParseTier(val), true
}

// Set caches the tier of userID for the configured TTL.
func (c *TierCache) Set(ctx context.Context, userID string, tier privacy.Tier) error {
	if err := c.client.Set(ctx, c.key(userID), tier.String(), c.cfg.TTL).Err(); err != nil {
		return fmt.Errorf("failed to cache tier: %w", err)
	}
	return nil
}

// Invalidate drops the cached tier of userID.
func (c *TierCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.client.Del(ctx, c.key(userID)).Err(); err != nil {
		return fmt.Errorf("failed to invalidate tier: %w", err)
	}
	return nil
}

// Stats returns hit and miss counts since start.
func (c *TierCache) Stats() CacheStats {
	stats := CacheStats{Hits: c.hits.Load(), Misses: c.misses.Load()}
	if total := stats.Hits + stats.Misses; total > 0 {
		stats.HitRate = float64(stats.Hits) / float64(total) * 100
	}
	return stats
}

// Close closes the Redis connection.
func (c *TierCache) Close() error {
	return c.client.Close()
}

// key hashes the user id so raw identities never appear in Redis.
func (c *TierCache) key(userID string) string {
	sum := sha256.Sum256([]byte(userID))
	return c.cfg.KeyPrefix + hex.EncodeToString(sum[:])[:16]
}
