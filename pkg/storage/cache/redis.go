// Package cache provides a Redis read-through cache for the system
// configuration consulted on every rate lookup.
package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/walletd/pkg/billing"
	"github.com/platinummonkey/walletd/pkg/observability"
)

const keyPrefix = "walletd:config:"

// RedisConfig configures the Redis connection.
type RedisConfig struct {
	URL        string
	Password   string
	DB         int
	MaxRetries int
	PoolSize   int
}

// NewRedisClient parses cfg.URL, applies overrides and pings the server.
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("invalid redis URL: %w", err)
	}

	if cfg.Password != "" {
		opts.Password = cfg.Password
	}
	if cfg.DB > 0 {
		opts.DB = cfg.DB
	}
	if cfg.MaxRetries > 0 {
		opts.MaxRetries = cfg.MaxRetries
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	opts.DialTimeout = 5 * time.Second
	opts.ReadTimeout = 3 * time.Second
	opts.WriteTimeout = 3 * time.Second
	opts.PoolTimeout = 4 * time.Second

	client := redis.NewClient(opts)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := client.Ping(pingCtx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis: %w", err)
	}
	return client, nil
}

// ConfigCache is a billing.ConfigStore that serves reads from Redis and
// falls back to the wrapped store. Redis failures degrade to the wrapped
// store and are logged; they never fail a read. Writes go to the wrapped
// store first and then evict the key.
type ConfigCache struct {
	next    billing.ConfigStore
	client  *redis.Client
	ttl     time.Duration
	metrics *observability.Metrics
	logger  logrus.FieldLogger
}

// NewConfigCache wraps next.
func NewConfigCache(next billing.ConfigStore, client *redis.Client, ttl time.Duration, metrics *observability.Metrics, logger logrus.FieldLogger) *ConfigCache {
	return &ConfigCache{
		next:    next,
		client:  client,
		ttl:     ttl,
		metrics: metrics,
		logger:  logger.WithField("component", "config_cache"),
	}
}

// GetConfig returns the cached value or loads it from the wrapped store.
// Unset keys are not cached.
func (c *ConfigCache) GetConfig(ctx context.Context, key string) (string, bool, error) {
	value, err := c.client.Get(ctx, keyPrefix+key).Result()
	switch {
	case err == nil:
		c.metrics.RecordCacheLookup("config", true)
		return value, true, nil
	case err != redis.Nil:
		c.logger.WithError(err).WithField("key", key).Warn("Config cache read failed")
	}
	c.metrics.RecordCacheLookup("config", false)

	value, ok, err := c.next.GetConfig(ctx, key)
	if err != nil || !ok {
		return value, ok, err
	}
	if err := c.client.Set(ctx, keyPrefix+key, value, c.ttl).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Config cache fill failed")
	}
	return value, true, nil
}

// SetConfig writes through and evicts the cached value.
func (c *ConfigCache) SetConfig(ctx context.Context, key, value, updatedBy string) error {
	if err := c.next.SetConfig(ctx, key, value, updatedBy); err != nil {
		return err
	}
	if err := c.client.Del(ctx, keyPrefix+key).Err(); err != nil {
		c.logger.WithError(err).WithField("key", key).Warn("Config cache eviction failed")
	}
	return nil
}
