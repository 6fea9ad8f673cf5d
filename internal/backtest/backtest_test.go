package backtest

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vantage/internal/domain"
	"vantage/internal/prices"
	"vantage/internal/util"
)

func newSynthetic() *prices.Synthetic {
	now := time.Date(2024, 7, 10, 12, 0, 0, 0, time.UTC)
	return prices.NewSynthetic(prices.DefaultSyntheticParams(),
		util.NewCalendar(time.UTC, func() time.Time { return now }))
}

// fakeProvider serves a fixed close sequence or a fixed error.
type fakeProvider struct {
	name   string
	closes []float64
	err    error
}

func (f *fakeProvider) Name() string { return f.name }

func (f *fakeProvider) Series(_ context.Context, _ string, days int) ([]domain.PricePoint, error) {
	if f.err != nil {
		return nil, f.err
	}
	closes := f.closes
	if len(closes) > days {
		closes = closes[len(closes)-days:]
	}
	out := make([]domain.PricePoint, len(closes))
	for i, c := range closes {
		out[i] = domain.PricePoint{Date: fmt.Sprintf("2024-01-%02d", i+1), Close: c}
	}
	return out, nil
}

type countingRecorder struct {
	mu       sync.Mutex
	results  map[string]int
	failures map[string]int
}

func newCountingRecorder() *countingRecorder {
	return &countingRecorder{results: map[string]int{}, failures: map[string]int{}}
}

func (r *countingRecorder) ObserveBacktest(source, result string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results[source+"/"+result]++
}

func (r *countingRecorder) ObserveFetchFailure(source string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failures[source]++
}

func demoRequest() Request {
	return Request{Symbol: "dummy", Window: 5, AltWindow: 10, Days: 30}
}

func TestRunDemoScenario(t *testing.T) {
	rec := newCountingRecorder()
	svc := NewService(newSynthetic(), WithRecorder(rec))

	res, err := svc.Run(context.Background(), demoRequest())
	require.NoError(t, err)

	assert.Equal(t, "DUMMY", res.Symbol)
	assert.Equal(t, 5, res.Window)
	assert.Equal(t, 10, res.AltWindow)
	assert.Equal(t, 30, res.Days)
	assert.Equal(t, 30, res.NumPoints)
	require.Len(t, res.Prices, 30)
	require.Len(t, res.EquityCurve, 30)

	assert.Equal(t, 100.0, res.Prices[0].Close)
	assert.Equal(t, 102.36, res.Prices[29].Close)
	assert.Equal(t, "2024-07-10", res.Prices[29].Date)
	assert.Equal(t, 2.36, res.BuyAndHoldReturnPct)
	assert.Equal(t, 1.99, res.SMAStrategyReturnPct)
	assert.Equal(t, 1.59, res.AltSMAStrategyReturnPct)
	assert.Equal(t, 0.0, res.MaxDrawdownPct)
	assert.Equal(t, 0.04, res.VolatilityPct)
	assert.Equal(t, 1.81, res.SharpeLike)

	assert.Equal(t, domain.EquityPoint{Step: 1, Equity: 1}, res.EquityCurve[0])
	assert.Equal(t, 30, res.EquityCurve[29].Step)
	assert.Equal(t, 1.0199, res.EquityCurve[29].Equity)

	assert.Equal(t, 1, rec.results["synthetic/ok"])
}

func TestRunWindowsAreIndependent(t *testing.T) {
	svc := NewService(newSynthetic())
	ctx := context.Background()

	base, err := svc.Run(ctx, demoRequest())
	require.NoError(t, err)

	req := demoRequest()
	req.Window = 3
	changed, err := svc.Run(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, base.AltSMAStrategyReturnPct, changed.AltSMAStrategyReturnPct)

	req = demoRequest()
	req.AltWindow = 20
	changed, err = svc.Run(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, base.SMAStrategyReturnPct, changed.SMAStrategyReturnPct)
	assert.Equal(t, base.EquityCurve, changed.EquityCurve)
}

func TestRunDeterministic(t *testing.T) {
	svc := NewService(newSynthetic())
	a, err := svc.Run(context.Background(), demoRequest())
	require.NoError(t, err)
	b, err := svc.Run(context.Background(), demoRequest())
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestRunFlatSeries(t *testing.T) {
	flat := make([]float64, 30)
	for i := range flat {
		flat[i] = 50
	}
	svc := NewService(&fakeProvider{name: "flat", closes: flat})

	res, err := svc.Run(context.Background(), demoRequest())
	require.NoError(t, err)
	assert.Equal(t, 0.0, res.BuyAndHoldReturnPct)
	assert.Equal(t, 0.0, res.SMAStrategyReturnPct)
	assert.Equal(t, 0.0, res.AltSMAStrategyReturnPct)
	assert.Equal(t, 0.0, res.MaxDrawdownPct)
	assert.Equal(t, 0.0, res.VolatilityPct)
	assert.Equal(t, 0.0, res.SharpeLike)
	for _, p := range res.EquityCurve {
		assert.Equal(t, 1.0, p.Equity)
	}
}

func TestValidateRejectsOutOfRange(t *testing.T) {
	svc := NewService(newSynthetic())
	tests := []struct {
		name   string
		mutate func(*Request)
	}{
		{"empty symbol", func(r *Request) { r.Symbol = "  " }},
		{"long symbol", func(r *Request) { r.Symbol = "ABCDEFGHIJKLMNOPQ" }},
		{"days below min", func(r *Request) { r.Days = 4 }},
		{"days above max", func(r *Request) { r.Days = 366 }},
		{"window zero", func(r *Request) { r.Window = 0 }},
		{"window above max", func(r *Request) { r.Window = 101 }},
		{"alt window negative", func(r *Request) { r.AltWindow = -1 }},
		{"alt window above max", func(r *Request) { r.AltWindow = 101 }},
		{"real without provider", func(r *Request) { r.UseReal = true }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := demoRequest()
			tt.mutate(&req)
			_, err := svc.Run(context.Background(), req)
			assert.ErrorIs(t, err, domain.ErrInvalidParameter)
		})
	}
}

func TestRunBoundaryValuesAccepted(t *testing.T) {
	svc := NewService(newSynthetic())
	for _, req := range []Request{
		{Symbol: "A", Window: 1, AltWindow: 4, Days: 5},
		{Symbol: "A", Window: 100, AltWindow: 100, Days: 365},
	} {
		res, err := svc.Run(context.Background(), req)
		require.NoError(t, err, "%+v", req)
		assert.Equal(t, req.Days, res.NumPoints)
	}
}

func TestRunWindowAtLeastDaysIsInsufficient(t *testing.T) {
	svc := NewService(newSynthetic())
	req := demoRequest()
	req.Days = 10
	req.AltWindow = 10

	_, err := svc.Run(context.Background(), req)
	assert.ErrorIs(t, err, domain.ErrInsufficientData)
	assert.False(t, errors.Is(err, domain.ErrInvalidParameter))
}

func TestRunUsesRealProvider(t *testing.T) {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 10 + float64(i)
	}
	src := &fakeProvider{name: "alpaca", closes: closes}
	rec := newCountingRecorder()
	svc := NewService(newSynthetic(), WithRealProvider(src), WithRecorder(rec))
	require.True(t, svc.HasRealProvider())

	req := demoRequest()
	req.UseReal = true
	res, err := svc.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 20.0, res.Prices[0].Close)
	assert.Equal(t, 1, rec.results["alpaca/ok"])

	req.UseReal = false
	res, err = svc.Run(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, 100.0, res.Prices[0].Close)
}

func TestRunUpstreamFailure(t *testing.T) {
	src := &fakeProvider{name: "alpaca", err: fmt.Errorf("%w: no bars", domain.ErrUpstreamUnavailable)}
	rec := newCountingRecorder()
	svc := NewService(newSynthetic(), WithRealProvider(src), WithRecorder(rec))

	req := demoRequest()
	req.UseReal = true
	_, err := svc.Run(context.Background(), req)
	require.ErrorIs(t, err, domain.ErrUpstreamUnavailable)
	assert.Equal(t, 1, rec.failures["alpaca"])
	assert.Equal(t, 1, rec.results["alpaca/upstream_unavailable"])
}

func TestRunCustomLimits(t *testing.T) {
	svc := NewService(newSynthetic(), WithLimits(Limits{MinDays: 10, MaxDays: 20, MaxWindow: 3}))
	assert.Equal(t, 3, svc.Limits().MaxWindow)

	_, err := svc.Run(context.Background(), Request{Symbol: "X", Window: 2, AltWindow: 3, Days: 15})
	require.NoError(t, err)
	_, err = svc.Run(context.Background(), Request{Symbol: "X", Window: 5, AltWindow: 3, Days: 15})
	assert.ErrorIs(t, err, domain.ErrInvalidParameter)
}

func TestRunCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	rec := newCountingRecorder()
	svc := NewService(newSynthetic(), WithRecorder(rec))

	_, err := svc.Run(ctx, demoRequest())
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 1, rec.results["synthetic/cancelled"])
}

func TestEquityPoints(t *testing.T) {
	got := EquityPoints([]float64{1, 1.000049, 1.23456789})
	assert.Equal(t, []domain.EquityPoint{
		{Step: 1, Equity: 1},
		{Step: 2, Equity: 1},
		{Step: 3, Equity: 1.2346},
	}, got)
}
