package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds all Prometheus metrics. A nil *Metrics is valid and records
// nothing.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	// Ledger metrics
	LedgerOperationsTotal   *prometheus.CounterVec
	LedgerOperationDuration *prometheus.HistogramVec
	LedgerAmountCents       *prometheus.CounterVec

	// Billing metrics
	BillingOutcomesTotal   *prometheus.CounterVec
	LowBalanceWarningTotal *prometheus.CounterVec

	// Cache metrics
	CacheHitsTotal   *prometheus.CounterVec
	CacheMissesTotal *prometheus.CounterVec
}

// NewMetrics creates and registers all Prometheus metrics
func NewMetrics(registry prometheus.Registerer) *Metrics {
	m := &Metrics{
		HTTPRequestsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletd_http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "route", "status"},
		),
		HTTPRequestDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "walletd_http_request_duration_seconds",
				Help:    "HTTP request duration in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		LedgerOperationsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletd_ledger_operations_total",
				Help: "Total number of ledger credit and debit operations",
			},
			[]string{"operation", "outcome"},
		),
		LedgerOperationDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "walletd_ledger_operation_duration_seconds",
				Help:    "Ledger operation duration in seconds",
				Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5},
			},
			[]string{"operation"},
		),
		LedgerAmountCents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletd_ledger_amount_cents_total",
				Help: "Sum of committed ledger amounts in cents",
			},
			[]string{"operation"},
		),
		BillingOutcomesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletd_billing_outcomes_total",
				Help: "Meeting billing attempts by terminal status",
			},
			[]string{"status"},
		),
		LowBalanceWarningTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletd_low_balance_warnings_total",
				Help: "Low balance warnings raised by level",
			},
			[]string{"level"},
		),
		CacheHitsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletd_cache_hits_total",
				Help: "Total number of cache hits",
			},
			[]string{"cache"},
		),
		CacheMissesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "walletd_cache_misses_total",
				Help: "Total number of cache misses",
			},
			[]string{"cache"},
		),
	}

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.LedgerOperationsTotal,
		m.LedgerOperationDuration,
		m.LedgerAmountCents,
		m.BillingOutcomesTotal,
		m.LowBalanceWarningTotal,
		m.CacheHitsTotal,
		m.CacheMissesTotal,
	)

	return m
}

// RecordLedgerOperation records the outcome and latency of a credit or debit.
func (m *Metrics) RecordLedgerOperation(operation, outcome string, amount int64, started time.Time) {
	if m == nil {
		return
	}
	m.LedgerOperationsTotal.WithLabelValues(operation, outcome).Inc()
	m.LedgerOperationDuration.WithLabelValues(operation).Observe(time.Since(started).Seconds())
	if outcome == "success" && amount > 0 {
		m.LedgerAmountCents.WithLabelValues(operation).Add(float64(amount))
	}
}

// RecordBillingOutcome counts a terminal billing status.
func (m *Metrics) RecordBillingOutcome(status string) {
	if m == nil {
		return
	}
	m.BillingOutcomesTotal.WithLabelValues(status).Inc()
}

// RecordLowBalanceWarning counts a raised warning.
func (m *Metrics) RecordLowBalanceWarning(level string) {
	if m == nil {
		return
	}
	m.LowBalanceWarningTotal.WithLabelValues(level).Inc()
}

// RecordCacheLookup counts a cache hit or miss.
func (m *Metrics) RecordCacheLookup(cache string, hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.CacheHitsTotal.WithLabelValues(cache).Inc()
		return
	}
	m.CacheMissesTotal.WithLabelValues(cache).Inc()
}

// responseWriter wraps http.ResponseWriter to capture status code
type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// HTTPMetricsMiddleware instruments HTTP requests with Prometheus metrics.
// Requests are labelled by their mux route template to bound cardinality.
func HTTPMetricsMiddleware(metrics *Metrics) mux.MiddlewareFunc {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if metrics == nil {
				next.ServeHTTP(w, r)
				return
			}
			start := time.Now()
			rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}

			next.ServeHTTP(rw, r)

			route := "unmatched"
			if current := mux.CurrentRoute(r); current != nil {
				if tpl, err := current.GetPathTemplate(); err == nil {
					route = tpl
				}
			}
			metrics.HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(rw.statusCode)).Inc()
			metrics.HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
		})
	}
}

// MetricsHandler serves the registry in the Prometheus exposition format.
func MetricsHandler(registry *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
