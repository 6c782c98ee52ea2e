package observability

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNilMetricsIsSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordLedgerOperation("debit", "success", 100, time.Now())
		m.RecordBillingOutcome("CHARGED")
		m.RecordLowBalanceWarning("EXHAUSTED")
		m.RecordCacheLookup("config", true)
	})
}

func TestMetrics_Ledger(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordLedgerOperation("debit", "success", 150, time.Now())
	m.RecordLedgerOperation("debit", "success", 50, time.Now())
	m.RecordLedgerOperation("debit", "insufficient_balance", 1000, time.Now())

	assert.Equal(t, 2.0, testutil.ToFloat64(m.LedgerOperationsTotal.WithLabelValues("debit", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LedgerOperationsTotal.WithLabelValues("debit", "insufficient_balance")))
	assert.Equal(t, 200.0, testutil.ToFloat64(m.LedgerAmountCents.WithLabelValues("debit")))
}

func TestMetrics_BillingAndWarnings(t *testing.T) {
	m := NewMetrics(prometheus.NewRegistry())

	m.RecordBillingOutcome("BLOCKED")
	m.RecordLowBalanceWarning("EXHAUSTED")
	m.RecordCacheLookup("config", false)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.BillingOutcomesTotal.WithLabelValues("BLOCKED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LowBalanceWarningTotal.WithLabelValues("EXHAUSTED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.CacheMissesTotal.WithLabelValues("config")))
}

func TestHTTPMetricsMiddleware(t *testing.T) {
	registry := prometheus.NewRegistry()
	m := NewMetrics(registry)

	router := mux.NewRouter()
	router.Use(HTTPMetricsMiddleware(m))
	router.HandleFunc("/wallets/{id}", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	})

	for _, id := range []string{"a", "b"} {
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/wallets/"+id, nil))
		assert.Equal(t, http.StatusTeapot, rec.Code)
	}

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequestsTotal.WithLabelValues("GET", "/wallets/{id}", "418")))

	rec := httptest.NewRecorder()
	MetricsHandler(registry).ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), "walletd_http_requests_total"))
}
