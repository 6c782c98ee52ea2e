// Package observability provides logrus logging, Prometheus metrics, health
// checks and OpenTelemetry tracing for walletd.
//
// # Overview
//
// Every component receives its logger and metrics explicitly. A nil
// *Metrics records nothing, which keeps tests free of registries.
//
// # Structured Logging
//
//	logger := observability.NewLogger("info", "json", os.Stdout)
//	logger.WithFields(logrus.Fields{"organization_id": orgID}).Info("Wallet credited")
//
// # Prometheus Metrics
//
//	registry := prometheus.NewRegistry()
//	metrics := observability.NewMetrics(registry)
//	metrics.RecordBillingOutcome("CHARGED")
//
// # Health Checks
//
//	checker := observability.NewHealthChecker(db, redisClient, version)
//	observability.RegisterHealthRoutes(router, checker)
//
// # OpenTelemetry
//
//	providers, err := observability.InitOTel(ctx, observability.OTelConfig{
//		Enabled:     true,
//		Endpoint:    "otel-collector:4317",
//		ServiceName: "walletd",
//	}, logger)
//	defer observability.ShutdownOTel(ctx, providers)
//
// # Related Packages
//
//   - pkg/config: Observability configuration
//   - pkg/httputil: Request logging middleware
package observability
