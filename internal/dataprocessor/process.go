// Package dataprocessor normalizes raw samples fetched from the metric
// source adapter, groups them by label set, and computes rolling bound
// series that the signal kernel trains a corridor from.
package dataprocessor

import (
	"math"
	"sort"

	"github.com/corridorcache/baseline-engine/pkg/schema"
)

// GetActualDataRange scans every series for finite samples and returns the
// min/max timestamp seen. If no finite sample exists anywhere, the supplied
// defaults are returned unchanged.
func GetActualDataRange(data []schema.Series, defaultStart, defaultEnd int64) (int64, int64) {
	minTs, maxTs := int64(0), int64(0)
	found := false

	for _, series := range data {
		for _, s := range series.Samples {
			if s.Value.IsNaN() || math.IsInf(float64(s.Value), 0) {
				continue
			}
			if !found {
				minTs, maxTs = s.Timestamp, s.Timestamp
				found = true
				continue
			}
			if s.Timestamp < minTs {
				minTs = s.Timestamp
			}
			if s.Timestamp > maxTs {
				maxTs = s.Timestamp
			}
		}
	}

	if !found {
		return defaultStart, defaultEnd
	}
	return minTs, maxTs
}

// GroupData partitions raw samples by their label set (the series' Labels
// field, expected to already be canonicalized). Within a group, samples are
// sorted chronologically; a duplicate timestamp keeps the last-seen value,
// matching the order the raw series arrived in.
func GroupData(raw []schema.Series) map[string][]schema.Sample {
	groups := make(map[string][]schema.Sample)

	for _, series := range raw {
		byTs := make(map[int64]schema.Float)
		order := make([]int64, 0, len(series.Samples))

		for _, s := range series.Samples {
			if _, seen := byTs[s.Timestamp]; !seen {
				order = append(order, s.Timestamp)
			}
			byTs[s.Timestamp] = s.Value
		}

		sort.Slice(order, func(i, j int) bool { return order[i] < order[j] })

		// Drop earlier samples of this group whose timestamp this series
		// repeats, so the later series' value wins.
		prev := groups[series.Labels]
		merged := prev[:0]
		for _, s := range prev {
			if _, dup := byTs[s.Timestamp]; !dup {
				merged = append(merged, s)
			}
		}
		for _, ts := range order {
			merged = append(merged, schema.Sample{Timestamp: ts, Value: byTs[ts]})
		}
		sort.Slice(merged, func(i, j int) bool { return merged[i].Timestamp < merged[j].Timestamp })
		groups[series.Labels] = merged
	}

	return groups
}
