package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"

	"github.com/platinummonkey/walletd/pkg/audit"
	"github.com/platinummonkey/walletd/pkg/billing"
	"github.com/platinummonkey/walletd/pkg/observability"
	"github.com/platinummonkey/walletd/pkg/orgs"
	"github.com/platinummonkey/walletd/pkg/storage/cache"
	"github.com/platinummonkey/walletd/pkg/storage/memory"
	"github.com/platinummonkey/walletd/pkg/storage/postgres"
)

// Storage backend types
const (
	TypeMemory   = "memory"
	TypePostgres = "postgres"
)

// Config for storage backend
type Config struct {
	Type string `yaml:"type"`

	// PostgreSQL config
	PostgresURL         string        `yaml:"postgres_url"`
	PostgresReplicaURLs []string      `yaml:"postgres_replica_urls"`
	PostgresMaxConns    int           `yaml:"postgres_max_conns"`
	PostgresMinConns    int           `yaml:"postgres_min_conns"`
	PostgresTimeout     time.Duration `yaml:"postgres_timeout"`
	AutoMigrate         bool          `yaml:"auto_migrate"`

	// Redis config; empty URL disables the configuration cache
	RedisURL        string        `yaml:"redis_url"`
	RedisPassword   string        `yaml:"redis_password"`
	RedisDB         int           `yaml:"redis_db"`
	RedisMaxRetries int           `yaml:"redis_max_retries"`
	RedisPoolSize   int           `yaml:"redis_pool_size"`
	ConfigCacheTTL  time.Duration `yaml:"config_cache_ttl"`

	// Organization directory cache; zero size disables it
	OrgCacheSize int           `yaml:"org_cache_size"`
	OrgCacheTTL  time.Duration `yaml:"org_cache_ttl"`

	// Currency of newly created wallets
	DefaultCurrency string `yaml:"-"`
}

// DefaultConfig returns sensible default configuration
func DefaultConfig() Config {
	return Config{
		Type:             TypeMemory,
		PostgresMaxConns: 20,
		PostgresMinConns: 2,
		PostgresTimeout:  10 * time.Second,
		AutoMigrate:      true,
		RedisMaxRetries:  3,
		RedisPoolSize:    10,
		ConfigCacheTTL:   5 * time.Minute,
		OrgCacheSize:     1024,
		OrgCacheTTL:      time.Minute,
		DefaultCurrency:  "usd",
	}
}

// Backend is an opened storage backend.
type Backend struct {
	Stores        billing.Stores
	Organizations orgs.Service
	Audit         audit.Logger

	// DB is the primary pool, nil for the memory backend.
	DB *sql.DB
	// Redis is nil when no Redis URL is configured.
	Redis *redis.Client

	closers []func() error
}

// Open creates the backend selected by cfg.Type and layers the configured
// caches on top of it.
func Open(ctx context.Context, cfg Config, metrics *observability.Metrics, logger logrus.FieldLogger) (*Backend, error) {
	b := &Backend{}
	auditSink := audit.NewLogrusLogger(logger)

	switch cfg.Type {
	case TypeMemory:
		store := memory.New()
		b.Stores = billing.Stores{Ledger: store, Calculations: store, Warnings: store, Config: store}
		b.Organizations = orgs.NewMemoryService(store, cfg.DefaultCurrency)
		b.Audit = audit.NewMultiLogger(audit.NewMemoryLogger(), auditSink)

	case TypePostgres:
		cm, err := postgres.NewConnectionManager(ctx, postgres.ConnectionConfig{
			PrimaryURL:  cfg.PostgresURL,
			ReplicaURLs: cfg.PostgresReplicaURLs,
			MaxConns:    cfg.PostgresMaxConns,
			MinConns:    cfg.PostgresMinConns,
			Timeout:     cfg.PostgresTimeout,
			MaxLifetime: time.Hour,
			MaxIdleTime: 10 * time.Minute,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		b.closers = append(b.closers, cm.Close)
		b.DB = cm.Primary()

		if cfg.AutoMigrate {
			if _, err := postgres.Migrate(ctx, cm.Primary(), logger); err != nil {
				b.Close()
				return nil, fmt.Errorf("failed to migrate: %w", err)
			}
		}

		store := postgres.NewStore(cm)
		b.Stores = billing.Stores{Ledger: store, Calculations: store, Warnings: store, Config: store}
		b.Organizations = orgs.NewPostgresService(cm.Primary(), cfg.DefaultCurrency)
		dbSink, err := audit.NewDBLogger(cm.Primary())
		if err != nil {
			b.Close()
			return nil, err
		}
		b.Audit = audit.NewMultiLogger(dbSink, auditSink)

	default:
		return nil, fmt.Errorf("unknown storage type %q", cfg.Type)
	}

	if cfg.RedisURL != "" {
		client, err := cache.NewRedisClient(ctx, cache.RedisConfig{
			URL:        cfg.RedisURL,
			Password:   cfg.RedisPassword,
			DB:         cfg.RedisDB,
			MaxRetries: cfg.RedisMaxRetries,
			PoolSize:   cfg.RedisPoolSize,
		})
		if err != nil {
			b.Close()
			return nil, err
		}
		b.closers = append(b.closers, client.Close)
		b.Redis = client
		b.Stores.Config = cache.NewConfigCache(b.Stores.Config, client, cfg.ConfigCacheTTL, metrics, logger)
	}

	if cfg.OrgCacheSize > 0 {
		b.Organizations = orgs.NewCachedService(b.Organizations, cfg.OrgCacheSize, cfg.OrgCacheTTL, metrics)
	}
	b.Stores.Organizations = b.Organizations

	logger.WithFields(logrus.Fields{
		"type":         cfg.Type,
		"config_cache": b.Redis != nil,
		"org_cache":    cfg.OrgCacheSize > 0,
	}).Info("Storage backend opened")
	return b, nil
}

// Close releases connections in reverse order of creation.
func (b *Backend) Close() error {
	var errs []error
	for i := len(b.closers) - 1; i >= 0; i-- {
		if err := b.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	b.closers = nil
	return errors.Join(errs...)
}
