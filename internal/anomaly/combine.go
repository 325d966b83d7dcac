package anomaly

import "github.com/corridorcache/baseline-engine/pkg/schema"

// WeightedSum combines currentStats and historicalStats field-by-field into
// a weighted sum, weighting the current window by windowSize and the
// historical window by 1, for cross-window comparability of the integral
// metrics. Only the percentages and counts are combined; the result's
// Durations and Sizes are left empty.
func WeightedSum(current, historical schema.AnomalyStats, windowSize float64) schema.AnomalyStats {
	weigh := func(c, h float64) float64 {
		return c*windowSize + h
	}
	weighInt := func(c, h int) int {
		return int(float64(c)*windowSize) + h
	}

	return schema.AnomalyStats{
		Above: schema.SideStats{
			TimeOutsidePercent: weigh(current.Above.TimeOutsidePercent, historical.Above.TimeOutsidePercent),
			AnomalyCount:       weighInt(current.Above.AnomalyCount, historical.Above.AnomalyCount),
			Direction:          "above",
		},
		Below: schema.SideStats{
			TimeOutsidePercent: weigh(current.Below.TimeOutsidePercent, historical.Below.TimeOutsidePercent),
			AnomalyCount:       weighInt(current.Below.AnomalyCount, historical.Below.AnomalyCount),
			Direction:          "below",
		},
		Combined: schema.CombinedStats{
			TimeOutsidePercent: weigh(current.Combined.TimeOutsidePercent, historical.Combined.TimeOutsidePercent),
			AnomalyCount:       weighInt(current.Combined.AnomalyCount, historical.Combined.AnomalyCount),
		},
	}
}
