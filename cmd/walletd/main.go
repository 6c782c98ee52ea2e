package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/platinummonkey/walletd/pkg/api"
	"github.com/platinummonkey/walletd/pkg/async"
	"github.com/platinummonkey/walletd/pkg/billing"
	"github.com/platinummonkey/walletd/pkg/config"
	"github.com/platinummonkey/walletd/pkg/observability"
	"github.com/platinummonkey/walletd/pkg/storage"
)

// version is set at build time with -ldflags "-X main.version=...".
var version = "dev"

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := observability.NewLogger(cfg.Observability.LogLevel, cfg.Observability.LogFormat, os.Stdout)
	if err := run(cfg, logger); err != nil {
		logger.WithError(err).Fatal("walletd stopped with error")
	}
	logger.Info("walletd stopped")
}

func run(cfg *config.Config, logger *logrus.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	shutdown := observability.NewShutdownManager(logger, cfg.Server.ShutdownTimeout)

	// Tracing
	providers, err := observability.InitOTel(ctx, cfg.Observability.OTel(), logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	shutdown.Register("otel", func(ctx context.Context) error {
		return observability.ShutdownOTel(ctx, providers)
	})

	// Metrics
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := observability.NewMetrics(registry)

	// Storage
	backend, err := storage.Open(ctx, cfg.Storage, metrics, logger)
	if err != nil {
		_ = shutdown.Shutdown(context.Background())
		return fmt.Errorf("failed to open storage: %w", err)
	}
	shutdown.Register("storage", func(context.Context) error {
		return backend.Close()
	})

	// Billing
	dispatcher := async.NewDispatcher(logger, cfg.Billing.MonitorTimeout)
	shutdown.Register("low-balance-checks", dispatcher.Shutdown)

	svc := billing.NewService(backend.Stores, billing.ServiceConfig{
		DefaultRatePerHour: cfg.Billing.DefaultRatePerHour,
		Dispatcher:         dispatcher,
		Metrics:            metrics,
		Logger:             logger,
	})

	// HTTP
	health := observability.NewHealthChecker(backend.DB, backend.Redis, version)
	serverCfg := api.ServerConfig{
		Billing:       svc,
		Organizations: backend.Organizations,
		Audit:         backend.Audit,
		Health:        health,
		Metrics:       metrics,
		MetricsPath:   cfg.Observability.MetricsPath,
		MaxBodyBytes:  cfg.Server.MaxBodyBytes,
		Logger:        logger,
		ServiceName:   cfg.Observability.OTelServiceName,
	}
	separateMetrics := cfg.Observability.MetricsEnabled && cfg.Observability.MetricsPort > 0
	if cfg.Observability.MetricsEnabled && !separateMetrics {
		serverCfg.Registry = registry
	}

	servers := []*http.Server{{
		Addr:         cfg.Server.Addr(),
		Handler:      api.NewServer(serverCfg),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}}
	if separateMetrics {
		router := mux.NewRouter()
		router.Handle(cfg.Observability.MetricsPath, observability.MetricsHandler(registry)).Methods(http.MethodGet)
		observability.RegisterHealthRoutes(router, health)
		servers = append(servers, &http.Server{
			Addr:        fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Observability.MetricsPort),
			Handler:     router,
			ReadTimeout: cfg.Server.ReadTimeout,
		})
	}
	for _, srv := range servers {
		shutdown.Register("http "+srv.Addr, srv.Shutdown)
	}

	g, gctx := errgroup.WithContext(ctx)
	for _, srv := range servers {
		srv := srv
		g.Go(func() error {
			logger.WithField("addr", srv.Addr).Info("HTTP server listening")
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("server %s: %w", srv.Addr, err)
			}
			return nil
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		return shutdown.Shutdown(context.Background())
	})

	return g.Wait()
}
