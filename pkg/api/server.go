package api

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/platinummonkey/walletd/pkg/audit"
	"github.com/platinummonkey/walletd/pkg/billing"
	"github.com/platinummonkey/walletd/pkg/httputil"
	"github.com/platinummonkey/walletd/pkg/middleware"
	"github.com/platinummonkey/walletd/pkg/observability"
	"github.com/platinummonkey/walletd/pkg/orgs"
)

const (
	// APIPrefix is the base path of every billing and admin route.
	APIPrefix = "/api/v1"
	// DefaultMaxBodyBytes bounds request bodies when no limit is configured.
	DefaultMaxBodyBytes int64 = 1 << 20
)

// ServerConfig wires the API server to its collaborators.
type ServerConfig struct {
	Billing       *billing.Service
	Organizations orgs.Service
	Audit         audit.Logger

	// Health is optional; when nil no health routes are registered.
	Health *observability.HealthChecker
	// Metrics instruments requests; Registry, when set, is served on
	// MetricsPath.
	Metrics     *observability.Metrics
	Registry    *prometheus.Registry
	MetricsPath string

	MaxBodyBytes int64
	Logger       logrus.FieldLogger
	// ServiceName names the server span. Tracing is a no-op unless a
	// tracer provider was installed.
	ServiceName string
}

// Server is the walletd HTTP API.
type Server struct {
	router  *mux.Router
	handler http.Handler
}

// NewServer creates a new API server
func NewServer(cfg ServerConfig) *Server {
	logger := cfg.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.MetricsPath == "" {
		cfg.MetricsPath = "/metrics"
	}
	if cfg.ServiceName == "" {
		cfg.ServiceName = "walletd"
	}

	s := &Server{router: mux.NewRouter()}
	s.router.Use(observability.HTTPMetricsMiddleware(cfg.Metrics))

	if cfg.Health != nil {
		observability.RegisterHealthRoutes(s.router, cfg.Health)
	}
	if cfg.Registry != nil {
		s.router.Handle(cfg.MetricsPath, observability.MetricsHandler(cfg.Registry)).Methods(http.MethodGet)
	}

	api := s.router.PathPrefix(APIPrefix).Subrouter()
	api.Use(
		middleware.ActorMiddleware,
		httputil.ContentTypeMiddleware,
		httputil.MaxBytesMiddleware(cfg.MaxBodyBytes),
	)

	NewBillingHandlers(cfg.Billing, cfg.Audit, logger).RegisterRoutes(api)

	// Admin routes share the prefix, so the role gate is matched per route
	// rather than by a path prefix.
	admin := api.NewRoute().Subrouter()
	admin.Use(middleware.RequireRole(middleware.RoleSuperAdmin))
	NewAdminHandlers(cfg.Billing, cfg.Organizations, cfg.Audit, logger).RegisterRoutes(admin)

	s.router.NotFoundHandler = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		httputil.WriteErrorCode(w, http.StatusNotFound, httputil.CodeNotFound, "route not found")
	})

	chain := httputil.Chain(
		httputil.RequestIDMiddleware,
		httputil.LoggingMiddleware(logger),
		httputil.RecoveryMiddleware(logger),
	)
	s.handler = otelhttp.NewHandler(chain(s.router), cfg.ServiceName)
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Router exposes the router for additional route registration.
func (s *Server) Router() *mux.Router {
	return s.router
}
