// Package builtins provides the built-in rule implementations that ship with
// vantage.
package builtins

import (
	"fmt"

	"vantage/internal/domain"
	"vantage/internal/strategy"
)

// Compile-time interface check.
var _ strategy.Rule = (*SMAAbove)(nil)

// SMAAbove is long while the close is strictly above its simple moving
// average and flat otherwise. The average for step i covers
// closes[i-window+1..i], so it includes the current close.
type SMAAbove struct {
	window int
}

// NewSMAAbove creates an SMAAbove rule over the given window.
func NewSMAAbove(window int) *SMAAbove {
	return &SMAAbove{window: window}
}

// Name returns "sma-above".
func (s *SMAAbove) Name() string {
	return "sma-above"
}

// Warmup returns the window: the first step that is evaluated is i == window.
func (s *SMAAbove) Warmup() int {
	return s.window
}

// Position returns 1 when closes[i] > SMA(window) at i, else 0.
func (s *SMAAbove) Position(closes []float64, i int) float64 {
	if i < s.window-1 || i >= len(closes) {
		return 0
	}
	if closes[i] > SMA(closes, i, s.window) {
		return 1
	}
	return 0
}

// SMA returns the mean of closes[i-window+1..i].
func SMA(closes []float64, i, window int) float64 {
	var sum float64
	for _, c := range closes[i-window+1 : i+1] {
		sum += c
	}
	return sum / float64(window)
}

// RunSMA validates window and runs the SMAAbove rule over closes.
func RunSMA(closes []float64, window int) (*strategy.Curve, error) {
	if window < 1 {
		return nil, fmt.Errorf("%w: window %d must be >= 1", domain.ErrInvalidParameter, window)
	}
	return strategy.Backtest(closes, NewSMAAbove(window))
}
