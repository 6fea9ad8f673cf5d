package strategy

import (
	"fmt"
	"math"

	"vantage/internal/domain"
	"vantage/internal/util"
)

// Curve is the outcome of one engine run.
type Curve struct {
	// Equity holds one multiplier per close; Equity[0] is always 1.
	Equity []float64
	// TotalReturnPct is (Equity[last]/Equity[0] - 1) * 100, rounded to 2dp.
	TotalReturnPct float64
}

// Backtest runs rule over closes in a single forward pass. The position for
// step i is decided with data up to and including closes[i] and is applied to
// that same step's return.
func Backtest(closes []float64, rule Rule) (*Curve, error) {
	warmup := rule.Warmup()
	if warmup < 1 {
		return nil, fmt.Errorf("%w: %s warmup %d must be >= 1", domain.ErrInvalidParameter, rule.Name(), warmup)
	}
	if len(closes) < warmup+1 {
		return nil, fmt.Errorf("%w: %s needs at least %d prices, got %d",
			domain.ErrInsufficientData, rule.Name(), warmup+1, len(closes))
	}

	equity := make([]float64, len(closes))
	equity[0] = 1.0
	position := 0.0

	for i := 1; i < len(closes); i++ {
		if i >= warmup {
			position = rule.Position(closes, i)
		}
		equity[i] = equity[i-1] * (1 + position*StepReturn(closes[i-1], closes[i]))
	}

	return &Curve{
		Equity:         equity,
		TotalReturnPct: util.Round2((equity[len(equity)-1]/equity[0] - 1) * 100),
	}, nil
}

// StepReturn returns cur/prev - 1. A non-positive or non-finite price on
// either side yields 0 so a single bad point cannot poison the curve.
func StepReturn(prev, cur float64) float64 {
	if !validPrice(prev) || !validPrice(cur) {
		return 0
	}
	return cur/prev - 1
}

// BuyAndHoldPct is the return of holding from the first to the last close,
// in percent and rounded to 2dp.
func BuyAndHoldPct(closes []float64) float64 {
	if len(closes) < 2 {
		return 0
	}
	first, last := closes[0], closes[len(closes)-1]
	if !validPrice(first) || !validPrice(last) {
		return 0
	}
	return util.Round2((last/first - 1) * 100)
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsInf(p, 0) && !math.IsNaN(p)
}
