// Package config provides application configuration management.
//
// # Overview
//
// Configuration is layered. Defaults come first, then the optional YAML
// file named by WALLETD_CONFIG_FILE, then WALLETD_* environment variables.
// LoadConfig validates the result before returning it.
//
// # Configuration Structure
//
// Server settings:
//
//	WALLETD_HOST="0.0.0.0"
//	WALLETD_PORT="8080"
//	WALLETD_READ_TIMEOUT="15s"
//	WALLETD_SHUTDOWN_TIMEOUT="30s"
//
// Storage settings:
//
//	WALLETD_STORAGE_TYPE="postgres"  # memory, postgres
//	WALLETD_POSTGRES_URL="postgres://localhost/walletd"
//	WALLETD_POSTGRES_REPLICA_URLS="postgres://replica1/walletd,postgres://replica2/walletd"
//	WALLETD_AUTO_MIGRATE="true"
//	WALLETD_REDIS_URL="redis://localhost:6379"
//	WALLETD_CONFIG_CACHE_TTL="5m"
//	WALLETD_ORG_CACHE_SIZE="1024"
//
// Billing settings:
//
//	WALLETD_DEFAULT_RATE_PER_HOUR="200"  # cents, used while pricing_per_hour is unset
//	WALLETD_CURRENCY="usd"
//	WALLETD_MONITOR_TIMEOUT="10s"
//
// Observability settings:
//
//	WALLETD_LOG_LEVEL="info"
//	WALLETD_LOG_FORMAT="json"
//	WALLETD_METRICS_PORT="9090"
//	WALLETD_OTEL_ENABLED="true"
//	WALLETD_OTEL_ENDPOINT="otel-collector:4317"
//
// The same keys in YAML:
//
//	server:
//	  port: 8080
//	storage:
//	  type: postgres
//	  postgres_url: postgres://localhost/walletd
//	billing:
//	  default_rate_per_hour: 200
package config
