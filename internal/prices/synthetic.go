package prices

import (
	"context"
	"fmt"

	"vantage/internal/domain"
	"vantage/internal/util"
)

// Compile-time interface check.
var _ Provider = (*Synthetic)(nil)

// SyntheticParams shape the generated series.
type SyntheticParams struct {
	BasePrice    float64 // close of the first point
	Drift        float64 // fractional growth per step
	WiggleAmp    float64 // size of one wiggle unit in price terms
	WigglePeriod int     // wiggle cycles through ((i % period) - period/2) units
}

// DefaultSyntheticParams returns base 100, 0.08% daily drift and a
// -0.04..+0.04 wiggle repeating every 5 days.
func DefaultSyntheticParams() SyntheticParams {
	return SyntheticParams{
		BasePrice:    100.0,
		Drift:        0.0008,
		WiggleAmp:    0.02,
		WigglePeriod: 5,
	}
}

// Synthetic generates a deterministic close series with gentle upward drift.
// The symbol does not influence the output.
type Synthetic struct {
	params SyntheticParams
	cal    *util.Calendar
}

// NewSynthetic creates a Synthetic provider. Dates are stamped by cal so the
// series ends on cal's "today".
func NewSynthetic(params SyntheticParams, cal *util.Calendar) *Synthetic {
	if params.WigglePeriod < 1 {
		params.WigglePeriod = 1
	}
	if cal == nil {
		cal = util.NewCalendar(nil, nil)
	}
	return &Synthetic{params: params, cal: cal}
}

// Name returns "synthetic".
func (s *Synthetic) Name() string { return "synthetic" }

// Series returns days synthetic closes ending today. Only ctx cancellation
// and a non-positive days can make it fail.
func (s *Synthetic) Series(ctx context.Context, _ string, days int) ([]domain.PricePoint, error) {
	if days < 1 {
		return nil, fmt.Errorf("%w: days %d must be >= 1", domain.ErrInvalidParameter, days)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	closes := s.Closes(days)
	dates := s.cal.DatesEndingToday(days)

	out := make([]domain.PricePoint, days)
	for i := range out {
		out[i] = domain.PricePoint{Date: dates[i], Close: closes[i]}
	}
	return out, nil
}

// Closes returns the undated close sequence. The first close is the base
// price; each later close applies drift and the cyclic wiggle to the
// previous one and is rounded to 2dp.
func (s *Synthetic) Closes(n int) []float64 {
	if n <= 0 {
		return nil
	}
	p := s.params
	half := p.WigglePeriod / 2

	closes := make([]float64, n)
	closes[0] = util.Round2(p.BasePrice)
	for i := 1; i < n; i++ {
		wiggle := float64(i%p.WigglePeriod-half) * p.WiggleAmp
		closes[i] = util.Round2(closes[i-1]*(1+p.Drift) + wiggle)
	}
	return closes
}
