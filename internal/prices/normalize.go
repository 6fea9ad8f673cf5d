package prices

import (
	"fmt"
	"math"
	"sort"

	"vantage/internal/domain"
)

// Normalize turns feed bars into a PricePoint series: bars with a
// non-finite or non-positive close are dropped, the rest are ordered by
// date with one point per calendar date (the latest bar wins), and the most
// recent days points are kept. Fewer than MinValidPoints survivors is an
// insufficient-data error; no bars at all means the upstream had nothing.
func Normalize(bars []domain.Bar, days int) ([]domain.PricePoint, error) {
	if len(bars) == 0 {
		return nil, fmt.Errorf("%w: no bars returned", domain.ErrUpstreamUnavailable)
	}

	sorted := make([]domain.Bar, 0, len(bars))
	for _, b := range bars {
		if b.Close > 0 && !math.IsInf(b.Close, 0) && !math.IsNaN(b.Close) {
			sorted = append(sorted, b)
		}
	}
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Timestamp.Before(sorted[j].Timestamp)
	})

	series := make([]domain.PricePoint, 0, len(sorted))
	for _, b := range sorted {
		p := domain.PricePoint{
			Date:  b.Timestamp.UTC().Format(domain.DateLayout),
			Close: b.Close,
		}
		if n := len(series); n > 0 && series[n-1].Date == p.Date {
			series[n-1] = p
			continue
		}
		series = append(series, p)
	}

	if days > 0 && len(series) > days {
		series = series[len(series)-days:]
	}
	if len(series) < MinValidPoints {
		return nil, fmt.Errorf("%w: only %d valid closes, need %d",
			domain.ErrInsufficientData, len(series), MinValidPoints)
	}
	return series, nil
}
