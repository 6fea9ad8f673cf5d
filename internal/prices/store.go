package prices

import (
	"context"
	"fmt"
	"strings"

	"vantage/internal/domain"
	"vantage/internal/store"
	"vantage/internal/util"
)

// Compile-time interface check.
var _ Provider = (*StoreProvider)(nil)

// StoreProvider serves real closes previously saved in a local BarStore.
type StoreProvider struct {
	name   string
	store  store.BarStore
	market domain.Market
	cal    *util.Calendar
}

// NewStoreProvider creates a provider reading market bars from s. name is
// reported by Name ("parquet", "sqlite", ...).
func NewStoreProvider(name string, s store.BarStore, market domain.Market, cal *util.Calendar) *StoreProvider {
	if cal == nil {
		cal = util.NewCalendar(nil, nil)
	}
	return &StoreProvider{name: name, store: s, market: market, cal: cal}
}

// Name returns the configured source name.
func (p *StoreProvider) Name() string { return p.name }

// Series reads enough calendar history to cover days trading sessions and
// normalizes it.
func (p *StoreProvider) Series(ctx context.Context, symbol string, days int) ([]domain.PricePoint, error) {
	if days < 1 {
		return nil, fmt.Errorf("%w: days %d must be >= 1", domain.ErrInvalidParameter, days)
	}
	end := p.cal.Today().AddDate(0, 0, 1).Add(-1)
	start := end.AddDate(0, 0, -LookbackDays(days))

	bars, err := p.store.ReadBars(ctx, strings.ToUpper(symbol), p.market, start, end)
	if err != nil {
		return nil, fmt.Errorf("reading %s bars for %s: %w", p.name, symbol, err)
	}
	series, err := Normalize(bars, days)
	if err != nil {
		return nil, fmt.Errorf("%s %s: %w", p.name, strings.ToUpper(symbol), err)
	}
	return series, nil
}

// LookbackDays is the calendar span requested to cover days trading sessions
// with room for weekends and holidays.
func LookbackDays(days int) int {
	return days*7/5 + 10
}
