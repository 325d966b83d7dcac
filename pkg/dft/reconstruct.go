package dft

import (
	"math"

	"github.com/corridorcache/baseline-engine/pkg/schema"
)

// Reconstruct evaluates a DFTBand over the grid start, start+step, ...,
// end (inclusive), given the training window's length n and step (needed
// to compute the relative phase index) and its dataStart. The relative
// index n_m = (t_m - dataStart) / step is evaluated in floating point: it is
// not wrapped into [0, n), so the oscillatory part continues periodically
// (period n*step) and the trend keeps extrapolating linearly outside the
// training window.
func Reconstruct(band schema.DFTBand, n int, dataStart, step, start, end int64) []schema.Sample {
	if step <= 0 || end < start {
		return nil
	}

	count := int((end-start)/step) + 1
	out := make([]schema.Sample, 0, count)

	for m := 0; m < count; m++ {
		tm := start + int64(m)*step
		nm := float64(tm-dataStart) / float64(step)

		var osc float64
		if n > 0 {
			for _, c := range band.Coefficients {
				angle := 2 * math.Pi * float64(c.K) * nm / float64(n)
				osc += c.Complex.Re*math.Cos(angle) - c.Complex.Im*math.Sin(angle)
			}
			osc /= float64(n)
		}

		y := osc + band.Trend.Slope*float64(tm) + band.Trend.Intercept
		out = append(out, schema.Sample{Timestamp: tm, Value: schema.Float(y)})
	}

	return out
}

// InverseTransform reconstructs the dense training-window sequence of
// length n that the retained coefficients were computed from (n_m = m,
// trend omitted), used by the round-trip tests.
func InverseTransform(coefficients []schema.Coefficient, n int) []float64 {
	out := make([]float64, n)
	if n == 0 {
		return out
	}
	for m := 0; m < n; m++ {
		var sum float64
		for _, c := range coefficients {
			angle := 2 * math.Pi * float64(c.K) * float64(m) / float64(n)
			sum += c.Complex.Re*math.Cos(angle) - c.Complex.Im*math.Sin(angle)
		}
		out[m] = sum / float64(n)
	}
	return out
}
