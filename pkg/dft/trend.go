package dft

import (
	"math"

	"github.com/corridorcache/baseline-engine/pkg/schema"
)

// FitTrend performs ordinary least squares over (t, v) pairs, skipping any
// sample whose value is non-finite. If fewer than two finite samples
// remain, (0, 0) is returned rather than raising.
func FitTrend(t []float64, v []schema.Float) schema.TrendLine {
	var n, sumT, sumV, sumTT, sumTV float64

	for i := range v {
		if v[i].IsNaN() || math.IsInf(float64(v[i]), 0) {
			continue
		}
		tv := t[i]
		vv := float64(v[i])
		n++
		sumT += tv
		sumV += vv
		sumTT += tv * tv
		sumTV += tv * vv
	}

	if n < 2 {
		return schema.TrendLine{}
	}

	denom := n*sumTT - sumT*sumT
	if denom == 0 {
		return schema.TrendLine{}
	}

	slope := (n*sumTV - sumT*sumV) / denom
	intercept := (sumV - slope*sumT) / n
	return schema.TrendLine{Slope: slope, Intercept: intercept}
}

// Detrend subtracts trend.Slope*t[i]+trend.Intercept from each value. A NaN
// sample becomes 0, i.e. it is placed on the trend line; it is not
// interpolated from its neighbours.
func Detrend(t []float64, v []schema.Float, trend schema.TrendLine) []float64 {
	out := make([]float64, len(v))
	for i := range v {
		if v[i].IsNaN() {
			out[i] = 0
			continue
		}
		out[i] = float64(v[i]) - (trend.Slope*t[i] + trend.Intercept)
	}
	return out
}
