package risk

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAnalyzeShortCurves(t *testing.T) {
	assert.Equal(t, Metrics{}, Analyze(nil))
	assert.Equal(t, Metrics{}, Analyze([]float64{1}))
}

func TestAnalyzeFlatCurve(t *testing.T) {
	m := Analyze([]float64{1, 1, 1, 1, 1})
	assert.Equal(t, 0.0, m.MaxDrawdownPct)
	assert.Equal(t, 0.0, m.VolatilityPct)
	assert.Equal(t, 0.0, m.SharpeLike)
}

func TestMaxDrawdown(t *testing.T) {
	// Peak 1.2, trough 0.9: 25% decline. A later higher peak does not undo it.
	equity := []float64{1, 1.2, 1.0, 0.9, 1.1, 1.5, 1.4}
	assert.InDelta(t, 0.25, MaxDrawdown(equity), 1e-12)
	assert.Equal(t, 25.0, Analyze(equity).MaxDrawdownPct)

	// Monotonically rising curve has no drawdown.
	assert.Equal(t, 0.0, MaxDrawdown([]float64{1, 1.1, 1.2, 1.3}))
}

func TestMaxDrawdownBounds(t *testing.T) {
	curves := [][]float64{
		{1, 0.5, 0.25, 0.0001},
		{1, 2, 4, 8},
		{1, 3, 0.1, 5, 0.2},
	}
	for _, c := range curves {
		dd := Analyze(c).MaxDrawdownPct
		assert.GreaterOrEqual(t, dd, 0.0)
		assert.LessOrEqual(t, dd, 100.0)
	}
}

func TestDailyReturnsSkipsNonPositivePrevious(t *testing.T) {
	got := DailyReturns([]float64{1, 1.1, 0, 2, 2.2})
	require.Len(t, got, 3)
	assert.InDelta(t, 0.1, got[0], 1e-12)
	assert.InDelta(t, -1.0, got[1], 1e-12)
	assert.InDelta(t, 0.1, got[2], 1e-12)
}

func TestAnalyzeVolatilityAndSharpe(t *testing.T) {
	// Returns: +10%, -10%, +10%, -10% -> mean 0, population std 0.1.
	equity := []float64{1, 1.1, 0.99, 1.089, 0.9801}
	m := Analyze(equity)
	assert.Equal(t, 10.0, m.VolatilityPct)
	assert.Equal(t, 0.0, m.SharpeLike)

	// Returns: +1%, +3% -> mean 0.02, population std 0.01, ratio 2.
	equity = []float64{1, 1.01, 1.01 * 1.03}
	m = Analyze(equity)
	assert.Equal(t, 1.0, m.VolatilityPct)
	assert.Equal(t, 2.0, m.SharpeLike)
}

func TestAnalyzeConstantGrowthHasZeroSharpe(t *testing.T) {
	// Identical returns every step: std is 0 and the ratio is defined as 0.
	equity := []float64{1, 2, 4, 8}
	m := Analyze(equity)
	assert.Equal(t, 0.0, m.VolatilityPct)
	assert.Equal(t, 0.0, m.SharpeLike)
}

func TestAnalyzeFinite(t *testing.T) {
	m := Analyze([]float64{1, 0, 0, 1.5})
	for _, v := range []float64{m.MaxDrawdownPct, m.VolatilityPct, m.SharpeLike} {
		assert.False(t, math.IsNaN(v) || math.IsInf(v, 0))
	}
	assert.Equal(t, 100.0, m.MaxDrawdownPct)
}
