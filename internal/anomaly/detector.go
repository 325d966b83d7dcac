// Package anomaly computes excursion statistics from a reconstructed
// corridor against the observed values on the same grid: durations, sizes,
// time-outside percentages, and a cross-side combined view.
package anomaly

import (
	"math"

	"github.com/corridorcache/baseline-engine/pkg/schema"
)

type run struct {
	start, end int // end exclusive
}

// Detect computes AnomalyStats for values against [lower, upper] on a grid
// of the given step (seconds). Runs of consecutive above/below-corridor
// samples shorter than minRunSteps are discarded.
func Detect(values []schema.Float, upper, lower []schema.Float, step int64, minRunSteps int) schema.AnomalyStats {
	n := len(values)
	totalDuration := float64(n) * float64(step)

	aboveRuns := findRuns(values, upper, minRunSteps, above)
	belowRuns := findRuns(values, lower, minRunSteps, below)

	aboveStats := sideStats(values, upper, aboveRuns, step, "above")
	belowStats := sideStats(values, lower, belowRuns, step, "below")

	combinedOutside := unionOutsideSteps(aboveRuns, belowRuns, n)
	combinedPercent := 0.0
	if totalDuration > 0 {
		combinedPercent = float64(combinedOutside) * float64(step) / totalDuration * 100
	}

	return schema.AnomalyStats{
		Above: aboveStats,
		Below: belowStats,
		Combined: schema.CombinedStats{
			TimeOutsidePercent: combinedPercent,
			AnomalyCount:       len(aboveRuns) + len(belowRuns),
		},
	}
}

type sideKind int

const (
	above sideKind = iota
	below
)

func outOfBounds(kind sideKind, value, bound schema.Float) bool {
	if value.IsNaN() || bound.IsNaN() {
		return false
	}
	if kind == above {
		return value > bound
	}
	return value < bound
}

func findRuns(values, bound []schema.Float, minRunSteps int, kind sideKind) []run {
	var runs []run
	n := len(values)
	i := 0
	for i < n {
		if !outOfBounds(kind, values[i], safeAt(bound, i)) {
			i++
			continue
		}
		start := i
		for i < n && outOfBounds(kind, values[i], safeAt(bound, i)) {
			i++
		}
		if i-start >= minRunSteps {
			runs = append(runs, run{start: start, end: i})
		}
	}
	return runs
}

func safeAt(s []schema.Float, i int) schema.Float {
	if i < 0 || i >= len(s) {
		return schema.NaN
	}
	return s[i]
}

func sideStats(values, bound []schema.Float, runs []run, step int64, direction string) schema.SideStats {
	stats := schema.SideStats{Direction: direction}
	var totalSteps int

	for _, r := range runs {
		totalSteps += r.end - r.start
		durSeconds := float64(r.end-r.start) * float64(step)
		stats.Durations = append(stats.Durations, durSeconds)

		var size float64
		for i := r.start; i < r.end; i++ {
			size += math.Abs(float64(values[i])-float64(bound[i])) * float64(step)
		}
		stats.Sizes = append(stats.Sizes, size)
	}

	stats.AnomalyCount = len(runs)
	if total := len(values); total > 0 {
		stats.TimeOutsidePercent = float64(totalSteps) / float64(total) * 100
	}
	return stats
}

// unionOutsideSteps counts grid positions covered by at least one of the two
// run sets, avoiding double counting where above/below runs could coincide
// (they never actually overlap in practice but the union is computed
// generically regardless).
func unionOutsideSteps(a, b []run, n int) int {
	covered := make([]bool, n)
	mark := func(runs []run) {
		for _, r := range runs {
			for i := r.start; i < r.end && i < n; i++ {
				covered[i] = true
			}
		}
	}
	mark(a)
	mark(b)

	count := 0
	for _, c := range covered {
		if c {
			count++
		}
	}
	return count
}
