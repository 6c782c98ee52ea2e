package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/platinummonkey/walletd/pkg/billing"
	"github.com/platinummonkey/walletd/pkg/observability"
	"github.com/platinummonkey/walletd/pkg/storage"
	"github.com/platinummonkey/walletd/pkg/storage/postgres"
)

// ConfigFileEnv names the environment variable holding the optional YAML
// configuration file path.
const ConfigFileEnv = "WALLETD_CONFIG_FILE"

// Config holds all application configuration
type Config struct {
	// Server configuration
	Server ServerConfig `yaml:"server"`

	// Storage configuration
	Storage storage.Config `yaml:"storage"`

	// Billing configuration
	Billing BillingConfig `yaml:"billing"`

	// Observability configuration
	Observability ObservabilityConfig `yaml:"observability"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes    int64         `yaml:"max_body_bytes"`
}

// Addr returns the listen address of the API server.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

// BillingConfig holds ledger and pricing settings
type BillingConfig struct {
	// DefaultRatePerHour is charged, in cents, while no rate is configured.
	DefaultRatePerHour int64  `yaml:"default_rate_per_hour"`
	Currency           string `yaml:"currency"`
	// MonitorTimeout bounds each post-debit low-balance check.
	MonitorTimeout time.Duration `yaml:"monitor_timeout"`
}

// ObservabilityConfig holds observability settings
type ObservabilityConfig struct {
	// Logging
	LogLevel  string `yaml:"log_level"`
	LogFormat string `yaml:"log_format"`

	// Metrics. A zero MetricsPort serves metrics on the API port.
	MetricsEnabled bool   `yaml:"metrics_enabled"`
	MetricsPath    string `yaml:"metrics_path"`
	MetricsPort    int    `yaml:"metrics_port"`

	// OpenTelemetry
	OTelEnabled        bool    `yaml:"otel_enabled"`
	OTelEndpoint       string  `yaml:"otel_endpoint"`
	OTelServiceName    string  `yaml:"otel_service_name"`
	OTelServiceVersion string  `yaml:"otel_service_version"`
	OTelInsecure       bool    `yaml:"otel_insecure"` // Use insecure gRPC connection
	OTelSamplingRatio  float64 `yaml:"otel_sampling_ratio"`
}

// OTel converts the OpenTelemetry settings for observability.InitOTel.
func (o ObservabilityConfig) OTel() observability.OTelConfig {
	return observability.OTelConfig{
		Enabled:        o.OTelEnabled,
		Endpoint:       o.OTelEndpoint,
		ServiceName:    o.OTelServiceName,
		ServiceVersion: o.OTelServiceVersion,
		Insecure:       o.OTelInsecure,
		SamplingRatio:  o.OTelSamplingRatio,
	}
}

// Default returns the configuration used when nothing is overridden.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			Port:            8080,
			ReadTimeout:     15 * time.Second,
			WriteTimeout:    15 * time.Second,
			IdleTimeout:     60 * time.Second,
			ShutdownTimeout: 30 * time.Second,
			MaxBodyBytes:    1 << 20,
		},
		Storage: storage.DefaultConfig(),
		Billing: BillingConfig{
			DefaultRatePerHour: billing.DefaultRatePerHour,
			Currency:           "usd",
			MonitorTimeout:     10 * time.Second,
		},
		Observability: ObservabilityConfig{
			LogLevel:           "info",
			LogFormat:          "text",
			MetricsEnabled:     true,
			MetricsPath:        "/metrics",
			OTelEndpoint:       "localhost:4317",
			OTelServiceName:    "walletd",
			OTelServiceVersion: "1.0.0",
			OTelInsecure:       true,
			OTelSamplingRatio:  1.0,
		},
	}
}

// LoadConfig builds the configuration from defaults, the optional YAML
// file named by WALLETD_CONFIG_FILE and WALLETD_* environment variables,
// in that order of precedence from lowest to highest.
func LoadConfig() (*Config, error) {
	cfg := Default()

	if path := os.Getenv(ConfigFileEnv); path != "" {
		if err := cfg.LoadFile(path); err != nil {
			return nil, err
		}
	}

	loadServerConfig(&cfg.Server)
	loadStorageConfig(&cfg.Storage)
	loadBillingConfig(&cfg.Billing)
	loadObservabilityConfig(&cfg.Observability)
	cfg.Storage.DefaultCurrency = strings.ToLower(cfg.Billing.Currency)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}

	return cfg, nil
}

// LoadFile overlays the YAML file at path onto c. Keys absent from the
// file keep their current values.
func (c *Config) LoadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

// loadServerConfig loads server configuration from environment
func loadServerConfig(cfg *ServerConfig) {
	cfg.Host = getEnv("WALLETD_HOST", cfg.Host)
	cfg.Port = getEnvInt("WALLETD_PORT", cfg.Port)
	cfg.ReadTimeout = getEnvDuration("WALLETD_READ_TIMEOUT", cfg.ReadTimeout)
	cfg.WriteTimeout = getEnvDuration("WALLETD_WRITE_TIMEOUT", cfg.WriteTimeout)
	cfg.IdleTimeout = getEnvDuration("WALLETD_IDLE_TIMEOUT", cfg.IdleTimeout)
	cfg.ShutdownTimeout = getEnvDuration("WALLETD_SHUTDOWN_TIMEOUT", cfg.ShutdownTimeout)
	cfg.MaxBodyBytes = getEnvInt64("WALLETD_MAX_BODY_BYTES", cfg.MaxBodyBytes)
}

// loadStorageConfig loads storage configuration from environment
func loadStorageConfig(cfg *storage.Config) {
	cfg.Type = strings.ToLower(getEnv("WALLETD_STORAGE_TYPE", cfg.Type))

	// PostgreSQL config
	cfg.PostgresURL = getEnv("WALLETD_POSTGRES_URL", cfg.PostgresURL)
	if replicaURLs := getEnv("WALLETD_POSTGRES_REPLICA_URLS", ""); replicaURLs != "" {
		cfg.PostgresReplicaURLs = postgres.ParseReplicaURLs(replicaURLs)
	}
	if maxConns := getEnvInt("WALLETD_POSTGRES_MAX_CONNS", 0); maxConns > 0 {
		cfg.PostgresMaxConns = maxConns
	}
	if minConns := getEnvInt("WALLETD_POSTGRES_MIN_CONNS", 0); minConns > 0 {
		cfg.PostgresMinConns = minConns
	}
	if timeout := getEnvDuration("WALLETD_POSTGRES_TIMEOUT", 0); timeout > 0 {
		cfg.PostgresTimeout = timeout
	}
	cfg.AutoMigrate = getEnvBool("WALLETD_AUTO_MIGRATE", cfg.AutoMigrate)

	// Redis config
	cfg.RedisURL = getEnv("WALLETD_REDIS_URL", cfg.RedisURL)
	cfg.RedisPassword = getEnv("WALLETD_REDIS_PASSWORD", cfg.RedisPassword)
	if redisDB := getEnvInt("WALLETD_REDIS_DB", -1); redisDB >= 0 {
		cfg.RedisDB = redisDB
	}
	if redisMaxRetries := getEnvInt("WALLETD_REDIS_MAX_RETRIES", 0); redisMaxRetries > 0 {
		cfg.RedisMaxRetries = redisMaxRetries
	}
	if redisPoolSize := getEnvInt("WALLETD_REDIS_POOL_SIZE", 0); redisPoolSize > 0 {
		cfg.RedisPoolSize = redisPoolSize
	}
	cfg.ConfigCacheTTL = getEnvDuration("WALLETD_CONFIG_CACHE_TTL", cfg.ConfigCacheTTL)

	// Organization cache
	cfg.OrgCacheSize = getEnvInt("WALLETD_ORG_CACHE_SIZE", cfg.OrgCacheSize)
	cfg.OrgCacheTTL = getEnvDuration("WALLETD_ORG_CACHE_TTL", cfg.OrgCacheTTL)
}

// loadBillingConfig loads billing configuration from environment
func loadBillingConfig(cfg *BillingConfig) {
	cfg.DefaultRatePerHour = getEnvInt64("WALLETD_DEFAULT_RATE_PER_HOUR", cfg.DefaultRatePerHour)
	cfg.Currency = getEnv("WALLETD_CURRENCY", cfg.Currency)
	cfg.MonitorTimeout = getEnvDuration("WALLETD_MONITOR_TIMEOUT", cfg.MonitorTimeout)
}

// loadObservabilityConfig loads observability configuration from environment
func loadObservabilityConfig(cfg *ObservabilityConfig) {
	cfg.LogLevel = getEnv("WALLETD_LOG_LEVEL", cfg.LogLevel)
	cfg.LogFormat = getEnv("WALLETD_LOG_FORMAT", cfg.LogFormat)
	cfg.MetricsEnabled = getEnvBool("WALLETD_METRICS_ENABLED", cfg.MetricsEnabled)
	cfg.MetricsPath = getEnv("WALLETD_METRICS_PATH", cfg.MetricsPath)
	cfg.MetricsPort = getEnvInt("WALLETD_METRICS_PORT", cfg.MetricsPort)
	cfg.OTelEnabled = getEnvBool("WALLETD_OTEL_ENABLED", cfg.OTelEnabled)
	cfg.OTelEndpoint = getEnv("WALLETD_OTEL_ENDPOINT", cfg.OTelEndpoint)
	cfg.OTelServiceName = getEnv("WALLETD_OTEL_SERVICE_NAME", cfg.OTelServiceName)
	cfg.OTelServiceVersion = getEnv("WALLETD_OTEL_SERVICE_VERSION", cfg.OTelServiceVersion)
	cfg.OTelInsecure = getEnvBool("WALLETD_OTEL_INSECURE", cfg.OTelInsecure)
	cfg.OTelSamplingRatio = getEnvFloat("WALLETD_OTEL_SAMPLING_RATIO", cfg.OTelSamplingRatio)
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	// Validate server config
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port out of range: %d", c.Server.Port)
	}
	if c.Observability.MetricsPort < 0 || c.Observability.MetricsPort > 65535 {
		return fmt.Errorf("metrics port out of range: %d", c.Observability.MetricsPort)
	}
	if c.Observability.MetricsPort == c.Server.Port {
		return errors.New("server port and metrics port must be different")
	}

	// Validate storage config based on type
	switch c.Storage.Type {
	case storage.TypeMemory:
	case storage.TypePostgres:
		if c.Storage.PostgresURL == "" {
			return errors.New("postgres URL is required for postgres storage")
		}
	default:
		return fmt.Errorf("invalid storage type: %s (must be memory or postgres)", c.Storage.Type)
	}

	// Validate billing config
	if c.Billing.DefaultRatePerHour <= 0 {
		return fmt.Errorf("default rate must be positive, got %d", c.Billing.DefaultRatePerHour)
	}
	if len(c.Billing.Currency) != 3 {
		return fmt.Errorf("currency must be a 3-letter code, got %q", c.Billing.Currency)
	}

	// Validate OpenTelemetry config
	if c.Observability.OTelEnabled {
		if c.Observability.OTelEndpoint == "" {
			return errors.New("OpenTelemetry endpoint is required when OTel is enabled")
		}
		if c.Observability.OTelServiceName == "" {
			return errors.New("OpenTelemetry service name is required when OTel is enabled")
		}
	}
	if c.Observability.OTelSamplingRatio < 0 || c.Observability.OTelSamplingRatio > 1 {
		return fmt.Errorf("sampling ratio must be within [0, 1], got %v", c.Observability.OTelSamplingRatio)
	}

	return nil
}

// getEnv returns an environment variable value or a default
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvBool returns a boolean environment variable or a default
func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return strings.ToLower(value) == "true" || value == "1"
	}
	return defaultValue
}

// getEnvInt returns an integer environment variable or a default
func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvInt64 returns an int64 environment variable or a default
func getEnvInt64(key string, defaultValue int64) int64 {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.ParseInt(value, 10, 64); err == nil {
			return intVal
		}
	}
	return defaultValue
}

// getEnvFloat returns a float environment variable or a default
func getEnvFloat(key string, defaultValue float64) float64 {
	if value := os.Getenv(key); value != "" {
		if f, err := strconv.ParseFloat(value, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// getEnvDuration returns a duration environment variable or a default
func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
