package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"prospect-workers/internal/common/logger"
	"prospect-workers/internal/models"
)

const (
	extractKeyPrefix  = "extract:"
	DefaultExtractTTL = 24 * time.Hour
)

// ExtractCache keeps crawled website extracts per domain so re-enriching a
// prospect does not hit the site again. Cache failures are never fatal.
type ExtractCache struct {
	client *redis.Client
	ttl    time.Duration
	logger logger.Logger
}

func NewExtractCache(client *redis.Client, ttl time.Duration, log logger.Logger) *ExtractCache {
	if ttl <= 0 {
		ttl = DefaultExtractTTL
	}
	return &ExtractCache{
		client: client,
		ttl:    ttl,
		logger: log.WithFields(map[string]interface{}{"component": "extract-cache"}),
	}
}

func ExtractKey(domain string) string {
	return extractKeyPrefix + domain
}

func (c *ExtractCache) Get(ctx context.Context, domain string) (models.WebsiteExtract, bool) {
	val, err := c.client.Get(ctx, ExtractKey(domain)).Result()
	if errors.Is(err, redis.Nil) {
		return models.WebsiteExtract{}, false
	}
	if err != nil {
		c.logger.Warn("extract cache read failed", map[string]interface{}{"domain": domain, "error": err.Error()})
		return models.WebsiteExtract{}, false
	}

	var ex models.WebsiteExtract
	if err := json.Unmarshal([]byte(val), &ex); err != nil {
		c.logger.Warn("discarding corrupt cache entry", map[string]interface{}{"domain": domain, "error": err.Error()})
		return models.WebsiteExtract{}, false
	}
	return ex, true
}

func (c *ExtractCache) Set(ctx context.Context, domain string, ex models.WebsiteExtract) {
	data, err := json.Marshal(ex)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, ExtractKey(domain), data, c.ttl).Err(); err != nil {
		c.logger.Warn("extract cache write failed", map[string]interface{}{"domain": domain, "error": err.Error()})
	}
}

func (c *ExtractCache) Invalidate(ctx context.Context, domain string) error {
	return c.client.Del(ctx, ExtractKey(domain)).Err()
}
