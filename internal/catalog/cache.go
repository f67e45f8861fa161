package catalog

import (
	"context"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	urlKeyPrefix = "catalog:url:"
	urlKeyTTL    = 24 * time.Hour
)

// Cache is a positive dedup cache over normalized product URLs. Only
// confirmed-known URLs are cached; absence always falls through to the
// database. A nil client disables caching entirely.
type Cache struct {
	client *redis.Client
	logger *slog.Logger
}

func NewCache(client *redis.Client, logger *slog.Logger) *Cache {
	return &Cache{
		client: client,
		logger: logger.With("component", "dedup_cache"),
	}
}

// IsKnown reports whether the normalized URL was recently confirmed to exist.
// Cache errors are treated as a miss.
func (c *Cache) IsKnown(ctx context.Context, normalizedURL string) bool {
	if c == nil || c.client == nil {
		return false
	}

	n, err := c.client.Exists(ctx, urlKeyPrefix+normalizedURL).Result()
	if err != nil {
		c.logger.Warn("cache lookup failed", "error", err)
		return false
	}
	return n > 0
}

// MarkKnown records that the normalized URL exists in the database.
func (c *Cache) MarkKnown(ctx context.Context, normalizedURL string) {
	if c == nil || c.client == nil {
		return
	}

	if err := c.client.Set(ctx, urlKeyPrefix+normalizedURL, "1", urlKeyTTL).Err(); err != nil {
		c.logger.Warn("cache set failed", "error", err)
	}
}
