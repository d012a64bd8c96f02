package services

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ekaya-inc/ekaya-sales/pkg/models"
)

// settingsCacheTTL bounds how stale settings read through the cache may be.
const settingsCacheTTL = 5 * time.Minute

const settingsCacheKey = "ekaya_sales:system_settings"

// settingsCache holds the stored settings row, including the sealed API key.
type settingsCache interface {
	Get(ctx context.Context) (*models.SystemSettings, bool)
	Set(ctx context.Context, s *models.SystemSettings)
	Invalidate(ctx context.Context)
}

// newSettingsCache returns a redis-backed cache when client is non-nil,
// otherwise an in-process one.
func newSettingsCache(client *redis.Client, logger *zap.Logger) settingsCache {
	if client == nil {
		return &memorySettingsCache{now: time.Now}
	}
	return &redisSettingsCache{client: client, logger: logger}
}

type redisSettingsCache struct {
	client *redis.Client
	logger *zap.Logger
}

func (c *redisSettingsCache) Get(ctx context.Context) (*models.SystemSettings, bool) {
	raw, err := c.client.Get(ctx, settingsCacheKey).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Warn("Settings cache read failed", zap.Error(err))
		}
		return nil, false
	}

	var s models.SystemSettings
	if err := json.Unmarshal(raw, &s); err != nil {
		c.logger.Warn("Discarding unreadable cached settings", zap.Error(err))
		return nil, false
	}
	return &s, true
}

func (c *redisSettingsCache) Set(ctx context.Context, s *models.SystemSettings) {
	raw, err := json.Marshal(s)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, settingsCacheKey, raw, settingsCacheTTL).Err(); err != nil {
		c.logger.Warn("Settings cache write failed", zap.Error(err))
	}
}

func (c *redisSettingsCache) Invalidate(ctx context.Context) {
	if err := c.client.Del(ctx, settingsCacheKey).Err(); err != nil {
		c.logger.Warn("Settings cache invalidation failed", zap.Error(err))
	}
}

type memorySettingsCache struct {
	mu        sync.RWMutex
	value     *models.SystemSettings
	expiresAt time.Time
	now       func() time.Time
}

func (c *memorySettingsCache) Get(_ context.Context) (*models.SystemSettings, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.value == nil || c.now().After(c.expiresAt) {
		return nil, false
	}
	copied := *c.value
	return &copied, true
}

func (c *memorySettingsCache) Set(_ context.Context, s *models.SystemSettings) {
	copied := *s
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = &copied
	c.expiresAt = c.now().Add(settingsCacheTTL)
}

func (c *memorySettingsCache) Invalidate(_ context.Context) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.value = nil
}
