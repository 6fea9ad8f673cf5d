package util

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round rounds x to places decimal digits, half away from zero. Non-finite
// values are returned unchanged.
func Round(x float64, places int32) float64 {
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return x
	}
	return decimal.NewFromFloat(x).Round(places).InexactFloat64()
}

// Round2 rounds x to two decimal places.
func Round2(x float64) float64 { return Round(x, 2) }
