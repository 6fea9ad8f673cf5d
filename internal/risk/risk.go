// Package risk computes drawdown and return-dispersion statistics over an
// equity curve.
package risk

import (
	"math"

	"github.com/samber/lo"

	"vantage/internal/util"
)

// Metrics summarises an equity curve. All fields are rounded to 2dp.
type Metrics struct {
	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	VolatilityPct  float64 `json:"volatility_pct"`
	SharpeLike     float64 `json:"sharpe_like"`
}

// Analyze returns the max drawdown, volatility and Sharpe-like ratio of
// equity. The Sharpe-like ratio is mean/std of per-step returns, neither
// annualised nor adjusted for a risk-free rate.
func Analyze(equity []float64) Metrics {
	if len(equity) < 2 {
		return Metrics{}
	}

	m := Metrics{MaxDrawdownPct: util.Round2(MaxDrawdown(equity) * 100)}

	returns := DailyReturns(equity)
	if len(returns) == 0 {
		return m
	}

	mean, std := meanStd(returns)
	m.VolatilityPct = util.Round2(std * 100)
	if std != 0 {
		m.SharpeLike = util.Round2(mean / std)
	}
	return m
}

// MaxDrawdown returns the largest peak-to-trough decline of equity as a
// positive fraction (0.25 for a 25% drawdown).
func MaxDrawdown(equity []float64) float64 {
	if len(equity) < 2 {
		return 0
	}

	peak := equity[0]
	worst := 0.0
	for _, eq := range equity {
		peak = math.Max(peak, eq)
		if peak <= 0 {
			continue
		}
		worst = math.Min(worst, eq/peak-1)
	}
	return math.Abs(worst)
}

// DailyReturns returns equity[i]/equity[i-1] - 1 for every i >= 1 whose
// previous value is positive.
func DailyReturns(equity []float64) []float64 {
	var out []float64
	for i := 1; i < len(equity); i++ {
		if equity[i-1] > 0 {
			out = append(out, equity[i]/equity[i-1]-1)
		}
	}
	return out
}

// meanStd returns the mean and population standard deviation of xs.
func meanStd(xs []float64) (mean, std float64) {
	n := float64(len(xs))
	mean = lo.Sum(xs) / n
	variance := lo.SumBy(xs, func(x float64) float64 { return (x - mean) * (x - mean) }) / n
	return mean, math.Sqrt(variance)
}
