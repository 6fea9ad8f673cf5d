// Package domain defines the core value types shared across vantage: price
// points, bars, equity points and the assembled backtest result.
package domain

import (
	"time"

	"github.com/samber/lo"
)

// DateLayout is the calendar-date format used for PricePoint.Date.
const DateLayout = "2006-01-02"

// Market identifies the exchange group a symbol trades on.
type Market string

const (
	MarketUS Market = "us"
	MarketCN Market = "cn"
)

// PricePoint is a single dated close. Series are ordered by non-decreasing
// date.
type PricePoint struct {
	Date  string  `json:"date"`
	Close float64 `json:"close"`
}

// EquityPoint is one step of an equity curve. Step is 1-based.
type EquityPoint struct {
	Step   int     `json:"step"`
	Equity float64 `json:"equity"`
}

// Bar is a daily OHLCV bar as delivered by a market-data feed or read back
// from a local bar store.
type Bar struct {
	Symbol     string
	Timestamp  time.Time
	Open       float64
	High       float64
	Low        float64
	Close      float64
	Volume     int64
	TradeCount int64
	VWAP       float64
}

// BacktestResult is the record produced for one backtest request.
type BacktestResult struct {
	Symbol    string `json:"symbol"`
	Window    int    `json:"window"`
	AltWindow int    `json:"alt_window"`
	Days      int    `json:"days"`

	BuyAndHoldReturnPct     float64 `json:"buy_and_hold_return_pct"`
	SMAStrategyReturnPct    float64 `json:"sma_strategy_return_pct"`
	AltSMAStrategyReturnPct float64 `json:"alt_sma_strategy_return_pct"`
	NumPoints               int     `json:"num_points"`

	Prices      []PricePoint  `json:"prices"`
	EquityCurve []EquityPoint `json:"equity_curve"`

	MaxDrawdownPct float64 `json:"max_drawdown_pct"`
	VolatilityPct  float64 `json:"volatility_pct"`
	SharpeLike     float64 `json:"sharpe_like"`
}

// Closes returns the close prices of series in order.
func Closes(series []PricePoint) []float64 {
	return lo.Map(series, func(p PricePoint, _ int) float64 { return p.Close })
}
