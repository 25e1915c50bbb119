// Package numfmt rounds values for display and persistence.
// Rounding is half away from zero on the decimal representation of the value.
package numfmt

import (
	"math"

	"github.com/shopspring/decimal"
)

// Round rounds v to places decimals. NaN and ±Inf are returned unchanged.
func Round(v float64, places int32) float64 {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return v
	}
	f, _ := decimal.NewFromFloat(v).Round(places).Float64()
	return f
}

// RoundAll rounds every value of vs into a new slice.
func RoundAll(vs []float64, places int32) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = Round(v, places)
	}
	return out
}

// Fixed formats v with exactly places decimals ("1.50").
func Fixed(v float64, places int32) string {
	if math.IsNaN(v) {
		return "NaN"
	}
	if math.IsInf(v, 1) {
		return "+Inf"
	}
	if math.IsInf(v, -1) {
		return "-Inf"
	}
	return decimal.NewFromFloat(v).StringFixed(places)
}

// Plain formats v with at most places decimals and no trailing zeros ("1.5").
func Plain(v float64, places int32) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return Fixed(v, places)
	}
	return decimal.NewFromFloat(v).Round(places).String()
}
