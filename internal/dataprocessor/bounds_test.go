package dataprocessor

import (
	"testing"

	"github.com/corridorcache/baseline-engine/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func series(labels string, step int64, vals ...float64) schema.Series {
	samples := make([]schema.Sample, len(vals))
	for i, v := range vals {
		samples[i] = schema.Sample{Timestamp: int64(i) * step, Value: schema.Float(v)}
	}
	return schema.Series{Labels: labels, Samples: samples}
}

func TestCalculateBoundsConstantSeries(t *testing.T) {
	s := []schema.Series{series("a", 60, 1, 1, 1, 1, 1)}
	bound := CalculateBounds(s, 0, 240, 60, 95, 3, 1)

	require.Len(t, bound, 5)
	for _, v := range bound {
		assert.InDelta(t, 1, float64(v), 1e-9)
	}
}

func TestCalculateBoundsPercentileAcrossSeries(t *testing.T) {
	s := []schema.Series{
		series("a", 60, 1),
		series("b", 60, 5),
		series("c", 60, 10),
	}
	upper := CalculateBounds(s, 0, 0, 60, 95, 1, 1)
	lower := CalculateBounds(s, 0, 0, 60, 5, 1, 1)

	require.Len(t, upper, 1)
	assert.Greater(t, float64(upper[0]), float64(lower[0]))
}

func TestInterpolateGapsWithinMax(t *testing.T) {
	bound := []schema.Float{1, schema.NaN, schema.NaN, 4}
	interpolateGaps(bound, 2)

	assert.InDelta(t, 2, float64(bound[1]), 1e-9)
	assert.InDelta(t, 3, float64(bound[2]), 1e-9)
}

func TestInterpolateGapsExceedingMaxStaysNaN(t *testing.T) {
	bound := []schema.Float{1, schema.NaN, schema.NaN, schema.NaN, 5}
	interpolateGaps(bound, 2)

	for _, v := range bound[1:4] {
		assert.True(t, v.IsNaN())
	}
}

func TestInterpolateGapsAtEdgeStaysNaN(t *testing.T) {
	bound := []schema.Float{schema.NaN, 2, 3}
	interpolateGaps(bound, 5)
	assert.True(t, bound[0].IsNaN())
}

func TestPercentileOfMedian(t *testing.T) {
	assert.InDelta(t, 3, percentileOf([]float64{1, 2, 3, 4, 5}, 50), 1e-9)
}
