package statscache

import "github.com/corridorcache/baseline-engine/pkg/schema"

// buildPlaceholder implements §4.E step 3: a deterministic empty corridor
// seeded before the first rebuild so concurrent readers don't each trigger
// one. Per SPEC_FULL.md §9 (open question iii), the vestigial
// 'unused_metric' label the source implementation appends is intentionally
// omitted.
func buildPlaceholder(query, labelsJSON string) schema.CorridorModel {
	return schema.CorridorModel{
		Meta: schema.CorridorMeta{
			SchemaVersion: schema.CurrentSchemaVersion,
			Labels:        labelsJSON,
			Query:         query,
			IsPlaceholder: true,
			AnomalyStats: schema.AnomalyStats{
				Above:    schema.SideStats{Direction: "above"},
				Below:    schema.SideStats{Direction: "below"},
				Combined: schema.CombinedStats{},
			},
		},
		DFTUpper: schema.DFTBand{Coefficients: []schema.Coefficient{}},
		DFTLower: schema.DFTBand{Coefficients: []schema.Coefficient{}},
	}
}
