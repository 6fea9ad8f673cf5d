package httpapi

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vantage/internal/backtest"
	"vantage/internal/domain"
	"vantage/internal/metrics"
	"vantage/internal/prices"
	"vantage/internal/util"
)

var testOrigins = []string{"http://localhost:3000", "http://127.0.0.1:3000"}

func testDefaults() backtest.Defaults {
	return backtest.Defaults{Symbol: "DUMMY", Window: 5, AltWindow: 10, Days: 30}
}

func newTestServer(t *testing.T, opts ...backtest.Option) (*Server, *metrics.Metrics) {
	t.Helper()
	now := time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC)
	syn := prices.NewSynthetic(prices.DefaultSyntheticParams(),
		util.NewCalendar(time.UTC, func() time.Time { return now }))
	m := metrics.New()
	opts = append(opts, backtest.WithRecorder(m))
	return NewServer(backtest.NewService(syn, opts...), testDefaults(), testOrigins, m, nil), m
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body.Detail
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s.Handler(), "/health")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestBacktestDemoDefaults(t *testing.T) {
	s, m := newTestServer(t)
	rec := get(t, s.Handler(), "/backtest/demo")
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var res domain.BacktestResult
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &res))
	assert.Equal(t, "DUMMY", res.Symbol)
	assert.Equal(t, 5, res.Window)
	assert.Equal(t, 10, res.AltWindow)
	assert.Equal(t, 30, res.Days)
	assert.Equal(t, 30, res.NumPoints)
	assert.Len(t, res.EquityCurve, 30)
	assert.Equal(t, 2.36, res.BuyAndHoldReturnPct)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("GET /backtest/demo", "200")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.Backtests.WithLabelValues("synthetic", "ok")))
}

func TestBacktestDemoJSONShape(t *testing.T) {
	s, _ := newTestServer(t)
	rec := get(t, s.Handler(), "/backtest/demo?symbol=aapl&days=10&window=2&alt_window=3")
	require.Equal(t, http.StatusOK, rec.Code)

	var raw map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &raw))
	for _, k := range []string{
		"symbol", "window", "alt_window", "days", "buy_and_hold_return_pct",
		"sma_strategy_return_pct", "alt_sma_strategy_return_pct", "num_points",
		"prices", "equity_curve", "max_drawdown_pct", "volatility_pct", "sharpe_like",
	} {
		assert.Contains(t, raw, k)
	}
	assert.Equal(t, "AAPL", raw["symbol"])

	first := raw["equity_curve"].([]any)[0].(map[string]any)
	assert.Equal(t, 1.0, first["step"])
	assert.Equal(t, 1.0, first["equity"])
	price := raw["prices"].([]any)[0].(map[string]any)
	assert.Contains(t, price, "date")
	assert.Contains(t, price, "close")
}

func TestBacktestDemoBadRequests(t *testing.T) {
	s, _ := newTestServer(t)
	tests := []struct {
		query string
		want  string
	}{
		{"days=4", "days"},
		{"days=366", "days"},
		{"window=0", "window"},
		{"window=101", "window"},
		{"alt_window=500", "alt_window"},
		{"window=five", "not an integer"},
		{"days=1.5", "not an integer"},
		{"use_real=maybe", "use_real"},
		{"use_real=true", "no real data source"},
		{"days=10&window=10", "insufficient data"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := get(t, s.Handler(), "/backtest/demo?"+tt.query)
			require.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
			assert.Contains(t, decodeError(t, rec), tt.want)
		})
	}
}

type failingProvider struct{ err error }

func (f failingProvider) Name() string { return "alpaca" }
func (f failingProvider) Series(context.Context, string, int) ([]domain.PricePoint, error) {
	return nil, f.err
}

func TestBacktestDemoUpstreamIsClientError(t *testing.T) {
	s, m := newTestServer(t, backtest.WithRealProvider(failingProvider{
		err: fmt.Errorf("%w: no bars for ZZZZ", domain.ErrUpstreamUnavailable),
	}))
	rec := get(t, s.Handler(), "/backtest/demo?symbol=zzzz&use_real=1")

	require.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, decodeError(t, rec), "upstream data unavailable")
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchFailures.WithLabelValues("alpaca")))
}

func TestBacktestDemoInternalError(t *testing.T) {
	s, _ := newTestServer(t, backtest.WithRealProvider(failingProvider{err: fmt.Errorf("disk on fire")}))
	rec := get(t, s.Handler(), "/backtest/demo?use_real=true")

	require.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "internal error", decodeError(t, rec))
}

func TestCORS(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, "http://localhost:3000", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", rec.Header().Get("Access-Control-Allow-Credentials"))

	req = httptest.NewRequest(http.MethodGet, "/health", nil)
	req.Header.Set("Origin", "http://evil.example")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, http.StatusOK, rec.Code)

	req = httptest.NewRequest(http.MethodOptions, "/backtest/demo", nil)
	req.Header.Set("Origin", "http://127.0.0.1:3000")
	req.Header.Set("Access-Control-Request-Method", "GET")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Methods"), "GET")
}

func TestMetricsEndpoint(t *testing.T) {
	s, _ := newTestServer(t)
	h := s.Handler()
	get(t, h, "/health")

	rec := get(t, h, "/metrics")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `vantage_http_requests_total{route="GET /health",status="200"} 1`))
}

func TestUnknownRoute(t *testing.T) {
	s, m := newTestServer(t)
	rec := get(t, s.Handler(), "/nope")
	assert.Equal(t, http.StatusNotFound, rec.Code)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.HTTPRequests.WithLabelValues("unmatched", "404")))
}
