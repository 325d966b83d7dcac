package schema

// CorridorParams is the subset of configuration that materially affects
// baseline shape. All of these fields participate in ConfigHash (§3),
// together with DFT.MaxCoefficients and the History span and step.
type CorridorParams struct {
	DefaultPercentiles [2]float64 `json:"default_percentiles"`
	RollingWindow      int        `json:"rolling_window"`
	MinRunSteps        int        `json:"min_run_steps"`
}

// DFTParams configures frequency-domain retention.
type DFTParams struct {
	MaxCoefficients int `json:"max_coefficients"`
}

// HistoryParams configures the training window fetched from the metric
// source adapter.
type HistoryParams struct {
	SpanSeconds int64 `json:"span_seconds"`
	StepSeconds int64 `json:"step_seconds"`
}

// CacheDatabaseConfig configures the persistent store location and TTL.
type CacheDatabaseConfig struct {
	Driver string `json:"driver"`
	Path   string `json:"path"`
	MaxTTL int64  `json:"max_ttl"`
}

// CacheConfig is the cache section of the configuration. §3's ConfigHash
// covers only its CorridorParams, DFT and History fields; Database,
// BuildTimeout and BlacklistDatasourceIDs are not hashed.
type CacheConfig struct {
	Database          CacheDatabaseConfig `json:"database"`
	BuildTimeout       int64              `json:"build_timeout"`
	CorridorParams     CorridorParams     `json:"corridor_params"`
	DFT                DFTParams          `json:"dft"`
	History            HistoryParams      `json:"history"`
	BlacklistDatasourceIDs []string       `json:"blacklist_datasource_ids"`
}

// MetricSourceConfig configures the Metric Source Adapter's upstream
// Prometheus-compatible API and HTTP transport.
type MetricSourceConfig struct {
	URL                string            `json:"url"`
	QueryTemplates     map[string]string `json:"query_templates"`
	RequestTimeout     int64             `json:"request_timeout_seconds"`
	InsecureSkipVerify bool              `json:"insecure_skip_verify"`
}

// SchedulerConfig configures the background sweep jobs.
type SchedulerConfig struct {
	SweepIntervalSeconds int64 `json:"sweep_interval_seconds"`
}

// ProgramConfig is the fully parsed, nested configuration the core consumes.
// The flat key-with-dots -> nested mapping step (§1, out of scope) is an
// external collaborator's job; by the time this struct is populated that
// work is already done.
type ProgramConfig struct {
	Addr         string              `json:"addr"`
	Cache        CacheConfig         `json:"cache"`
	MetricSource MetricSourceConfig  `json:"metric_source"`
	Scheduler    SchedulerConfig     `json:"scheduler"`
	LogLevel     string              `json:"log_level"`
	LogFile      string              `json:"log_file"`
}

// DefaultProgramConfig mirrors the teacher's pattern of a package-level
// defaults value that Init() decodes a config file over.
var DefaultProgramConfig = ProgramConfig{
	Addr: ":8090",
	Cache: CacheConfig{
		Database: CacheDatabaseConfig{
			Driver: "sqlite3",
			Path:   "./var/baseline.db",
			MaxTTL: 21600,
		},
		BuildTimeout: 120,
		CorridorParams: CorridorParams{
			DefaultPercentiles: [2]float64{95, 5},
			RollingWindow:      15,
			MinRunSteps:        2,
		},
		DFT: DFTParams{
			MaxCoefficients: 16,
		},
		History: HistoryParams{
			SpanSeconds: 7 * 24 * 3600,
			StepSeconds: 60,
		},
	},
	MetricSource: MetricSourceConfig{
		RequestTimeout:     30,
		InsecureSkipVerify: false,
	},
	Scheduler: SchedulerConfig{
		SweepIntervalSeconds: 300,
	},
	LogLevel: "info",
}
