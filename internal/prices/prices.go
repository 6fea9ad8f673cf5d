// Package prices produces ordered daily close series for the backtest
// engine, either synthesized deterministically or normalized from real bars.
package prices

import (
	"context"

	"vantage/internal/domain"
)

// MinValidPoints is the fewest usable closes a real-data source may return.
const MinValidPoints = 5

// Provider returns the most recent days closes for symbol, oldest first.
type Provider interface {
	// Name identifies the source in logs and metrics.
	Name() string

	// Series returns exactly days points, or fewer only when the source is
	// real data and at least MinValidPoints survived normalization.
	Series(ctx context.Context, symbol string, days int) ([]domain.PricePoint, error)
}
