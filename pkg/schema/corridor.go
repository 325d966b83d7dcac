package schema

// CurrentSchemaVersion is stamped into every CorridorModel.Meta on write.
// A payload read back with a different version fails validation and is
// treated as Corruption (§9 design note on mixed-schema cache rows).
const CurrentSchemaVersion = 1

// Complex is a minimal (Re, Im) pair. A dedicated type (rather than
// math/cmplx.Complex128 directly) keeps the JSON encoding explicit and
// stable across Go versions.
type Complex struct {
	Re float64 `json:"re"`
	Im float64 `json:"im"`
}

// Coefficient is one retained DFT bin: its original index k and complex
// amplitude. Retention keeps at most K_max of these, largest magnitude
// first, ties broken by smaller k.
type Coefficient struct {
	K       int     `json:"k"`
	Complex Complex `json:"c"`
}

// TrendLine is an ordinary-least-squares fit, always present (zeroed for
// placeholders).
type TrendLine struct {
	Slope     float64 `json:"slope"`
	Intercept float64 `json:"intercept"`
}

// DFTBand is one side (upper or lower) of a corridor: the retained
// frequency-domain coefficients plus the linear trend they were fit and
// detrended against.
type DFTBand struct {
	Coefficients []Coefficient `json:"coefficients"`
	Trend        TrendLine     `json:"trend"`
}

// SideStats holds the anomaly statistics for one side of the corridor.
type SideStats struct {
	TimeOutsidePercent float64   `json:"time_outside_percent"`
	AnomalyCount       int       `json:"anomaly_count"`
	Durations          []float64 `json:"durations"`
	Sizes              []float64 `json:"sizes"`
	Direction          string    `json:"direction"`
}

// CombinedStats holds the cross-side union statistics.
type CombinedStats struct {
	TimeOutsidePercent float64 `json:"time_outside_percent"`
	AnomalyCount       int     `json:"anomaly_count"`
}

// AnomalyStats is the full anomaly-statistics payload for a corridor.
type AnomalyStats struct {
	Above    SideStats     `json:"above"`
	Below    SideStats     `json:"below"`
	Combined CombinedStats `json:"combined"`
}

// CorridorMeta is the non-signal part of a CorridorModel.
type CorridorMeta struct {
	SchemaVersion   int     `json:"schema_version"`
	DataStart       int64   `json:"data_start"`
	Step            int64   `json:"step"`
	TotalDuration   int64   `json:"total_duration"`
	Labels          string  `json:"labels"`
	Query           string  `json:"query"`
	CreatedAt       int64   `json:"created_at"`
	ConfigHash      string  `json:"config_hash"`
	DFTRebuildCount int     `json:"dft_rebuild_count"`
	IsPlaceholder   bool    `json:"is_placeholder"`
	AnomalyStats    AnomalyStats `json:"anomaly_stats"`
}

// CorridorModel is the full cached payload for a fingerprint: the envelope
// the engine reconstructs range queries from.
type CorridorModel struct {
	Meta      CorridorMeta `json:"meta"`
	DFTUpper  DFTBand      `json:"dft_upper"`
	DFTLower  DFTBand      `json:"dft_lower"`
}

// Sample is one (timestamp, value) reconstruction point or raw data point.
type Sample struct {
	Timestamp int64 `json:"ts"`
	Value     Float `json:"value"`
}

// Series is one label set's chronologically sorted samples.
type Series struct {
	Labels  string   `json:"labels"`
	Samples []Sample `json:"samples"`
}
