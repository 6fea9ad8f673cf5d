package metrics

import (
	"io"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestObserveHTTP(t *testing.T) {
	m := New()
	m.ObserveHTTP("/health", 200, 5*time.Millisecond)
	m.ObserveHTTP("/health", 200, 7*time.Millisecond)
	m.ObserveHTTP("/backtest/demo", 400, time.Millisecond)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/health", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("/backtest/demo", "400")))
	assert.Equal(t, 2, testutil.CollectAndCount(m.HTTPRequestDuration))
}

func TestObserveBacktestAndFetchFailure(t *testing.T) {
	m := New()
	m.ObserveBacktest("synthetic", "ok")
	m.ObserveBacktest("alpaca", "upstream_unavailable")
	m.ObserveFetchFailure("alpaca")

	assert.Equal(t, 1.0, testutil.ToFloat64(m.Backtests.WithLabelValues("synthetic", "ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchFailures.WithLabelValues("alpaca")))

	expected := `
# HELP vantage_series_fetch_failures_total Price series fetches that failed, by source
# TYPE vantage_series_fetch_failures_total counter
vantage_series_fetch_failures_total{source="alpaca"} 1
`
	require.NoError(t, testutil.CollectAndCompare(m.FetchFailures, strings.NewReader(expected)))
}

func TestInstancesAreIndependent(t *testing.T) {
	a, b := New(), New()
	a.ObserveFetchFailure("alpaca")
	assert.Equal(t, 0.0, testutil.ToFloat64(b.FetchFailures.WithLabelValues("alpaca")))
}

func TestHandler(t *testing.T) {
	m := New()
	m.ObserveBacktest("synthetic", "ok")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))
	require.Equal(t, 200, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `vantage_backtests_total{result="ok",source="synthetic"} 1`)
	assert.Contains(t, string(body), "go_goroutines")
}
