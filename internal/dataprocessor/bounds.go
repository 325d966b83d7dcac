package dataprocessor

import (
	"math"
	"sort"

	"github.com/corridorcache/baseline-engine/pkg/schema"
)

// CalculateBounds aligns every series onto the grid start, start+step, ...,
// end and computes, for each grid position, the given percentile over the
// samples falling within a rolling window reaching windowSteps/2 grid
// positions to each side of that position (windowSteps+1 positions when
// windowSteps is even), clipped at the grid edges and pooled across all
// series — e.g. all hosts contributing to one metric. Gaps of at most
// maxGapSteps consecutive missing positions are linearly interpolated;
// larger gaps are left NaN. The caller's trend fit skips NaN positions, and
// dft.Detrend places them on the trend line before the transform.
func CalculateBounds(
	series []schema.Series,
	start, end, step int64,
	percentile float64,
	windowSteps, maxGapSteps int,
) []schema.Float {
	if step <= 0 || end < start {
		return nil
	}

	gridLen := int((end-start)/step) + 1
	aligned := alignToGrid(series, start, step, gridLen)

	bound := make([]schema.Float, gridLen)
	half := windowSteps / 2

	for gi := 0; gi < gridLen; gi++ {
		lo := gi - half
		if lo < 0 {
			lo = 0
		}
		hi := gi + half
		if hi >= gridLen {
			hi = gridLen - 1
		}

		pool := make([]float64, 0, len(series)*(hi-lo+1))
		for _, col := range aligned {
			for i := lo; i <= hi; i++ {
				if !col[i].IsNaN() {
					pool = append(pool, float64(col[i]))
				}
			}
		}

		if len(pool) == 0 {
			bound[gi] = schema.NaN
			continue
		}
		bound[gi] = schema.Float(percentileOf(pool, percentile))
	}

	interpolateGaps(bound, maxGapSteps)
	return bound
}

func alignToGrid(series []schema.Series, start, step int64, gridLen int) [][]schema.Float {
	out := make([][]schema.Float, len(series))
	for si, s := range series {
		col := make([]schema.Float, gridLen)
		for i := range col {
			col[i] = schema.NaN
		}
		for _, sample := range s.Samples {
			if sample.Value.IsNaN() {
				continue
			}
			offset := sample.Timestamp - start
			if offset < 0 || offset%step != 0 {
				continue
			}
			idx := int(offset / step)
			if idx < 0 || idx >= gridLen {
				continue
			}
			col[idx] = sample.Value
		}
		out[si] = col
	}
	return out
}

// percentileOf computes the p-th percentile (0..100) of values using linear
// interpolation between closest ranks. values is sorted in place.
func percentileOf(values []float64, p float64) float64 {
	sort.Float64s(values)
	n := len(values)
	if n == 1 {
		return values[0]
	}

	rank := (p / 100) * float64(n-1)
	lo := int(math.Floor(rank))
	hi := int(math.Ceil(rank))
	if lo == hi {
		return values[lo]
	}
	frac := rank - float64(lo)
	return values[lo]*(1-frac) + values[hi]*frac
}

// interpolateGaps linearly fills runs of NaN no longer than maxGapSteps,
// bounded by the nearest finite neighbors on either side. Runs touching
// either edge of the series (no finite neighbor on one side) are left as
// NaN, as are runs longer than maxGapSteps.
func interpolateGaps(bound []schema.Float, maxGapSteps int) {
	n := len(bound)
	i := 0
	for i < n {
		if !bound[i].IsNaN() {
			i++
			continue
		}

		start := i
		for i < n && bound[i].IsNaN() {
			i++
		}
		end := i // exclusive

		runLen := end - start
		if runLen > maxGapSteps {
			continue
		}
		if start == 0 || end == n {
			continue // no finite neighbor on one side
		}

		left := float64(bound[start-1])
		right := float64(bound[end])
		for j := start; j < end; j++ {
			frac := float64(j-start+1) / float64(runLen+1)
			bound[j] = schema.Float(left + frac*(right-left))
		}
	}
}
