package statscache

import (
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/jmoiron/sqlx"
	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corridorcache/baseline-engine/internal/repository"
	"github.com/corridorcache/baseline-engine/pkg/schema"
)

// fakeSource counts calls and always returns the same flat series, standing
// in for the Metric Source Adapter in these orchestrator tests.
type fakeSource struct {
	calls  int32
	series []schema.Series
}

func (f *fakeSource) QueryRange(metric string, start, end, step int64) ([]schema.Series, error) {
	atomic.AddInt32(&f.calls, 1)
	return f.series, nil
}

func hourOfOnes(step int64) []schema.Sample {
	samples := make([]schema.Sample, 61)
	for i := range samples {
		samples[i] = schema.Sample{Timestamp: 1_700_000_000 + int64(i)*step, Value: 1.0}
	}
	return samples
}

func setupTestRepoForManager(t *testing.T) *repository.Repository {
	t.Helper()
	path := filepath.Join(t.TempDir(), "baseline.db")
	db, err := sql.Open("sqlite3", fmt.Sprintf("%s?_foreign_keys=on", path))
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	require.NoError(t, repository.MigrateTestDB("sqlite3", db))
	return repository.ConnectForTest("sqlite3", sqlx.NewDb(db, "sqlite3"))
}

func testCacheConfig() schema.CacheConfig {
	return schema.CacheConfig{
		Database:     schema.CacheDatabaseConfig{MaxTTL: 3600},
		BuildTimeout: 5,
		CorridorParams: schema.CorridorParams{
			DefaultPercentiles: [2]float64{95, 5},
			RollingWindow:      3,
			MinRunSteps:        1,
		},
		DFT:     schema.DFTParams{MaxCoefficients: 4},
		History: schema.HistoryParams{SpanSeconds: 3600, StepSeconds: 60},
	}
}

// S1 — cold fingerprint, single writer.
func TestRecalculateStatsColdFingerprint(t *testing.T) {
	repo := setupTestRepoForManager(t)
	src := &fakeSource{series: []schema.Series{{Labels: `{"host":"a"}`, Samples: hourOfOnes(60)}}}
	mgr := NewManager(repo, src, "worker-1")

	model, err := mgr.RecalculateStats("cpu_usage", `{"host":"a"}`, nil, nil, testCacheConfig())
	require.NoError(t, err)

	assert.InDelta(t, 0, model.DFTUpper.Trend.Slope, 1e-6)
	assert.InDelta(t, 1.0, model.DFTUpper.Trend.Intercept, 1e-6)
	assert.LessOrEqual(t, len(model.DFTUpper.Coefficients), 1)
	assert.Equal(t, 0, model.Meta.AnomalyStats.Combined.AnomalyCount)

	cached, err := repo.LoadFromCache("cpu_usage", `{"host":"a"}`)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.False(t, cached.Meta.IsPlaceholder)
}

// S2 — concurrent callers: exactly one rebuild (law 4), one upstream fetch.
func TestRecalculateStatsConcurrentSingleFlight(t *testing.T) {
	repo := setupTestRepoForManager(t)
	src := &fakeSource{series: []schema.Series{{Labels: `{"host":"a"}`, Samples: hourOfOnes(60)}}}
	mgr := NewManager(repo, src, "worker-1")

	cfg := testCacheConfig()
	var wg sync.WaitGroup
	results := make([]schema.CorridorModel, 8)
	errs := make([]error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = mgr.RecalculateStats("cpu_usage", `{"host":"a"}`, nil, nil, cfg)
		}(i)
	}
	wg.Wait()

	for i, err := range errs {
		require.NoError(t, err, "worker %d", i)
	}

	cached, err := repo.LoadFromCache("cpu_usage", `{"host":"a"}`)
	require.NoError(t, err)
	require.NotNil(t, cached)
	assert.Equal(t, 1, cached.Meta.DFTRebuildCount)
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.calls))
}

// S3 — config change triggers a rebuild and bumps dft_rebuild_count.
func TestRecalculateStatsConfigChangeRebuilds(t *testing.T) {
	repo := setupTestRepoForManager(t)
	src := &fakeSource{series: []schema.Series{{Labels: `{"host":"a"}`, Samples: hourOfOnes(60)}}}
	mgr := NewManager(repo, src, "worker-1")

	cfg := testCacheConfig()
	_, err := mgr.RecalculateStats("cpu_usage", `{"host":"a"}`, nil, nil, cfg)
	require.NoError(t, err)

	changed := cfg
	changed.CorridorParams.DefaultPercentiles = [2]float64{90, 10}
	model, err := mgr.RecalculateStats("cpu_usage", `{"host":"a"}`, nil, nil, changed)
	require.NoError(t, err)

	assert.Equal(t, 2, model.Meta.DFTRebuildCount)
	assert.NotEqual(t, repository.CreateConfigHash(cfg), repository.CreateConfigHash(changed))
}

// S4 — TTL expiry forces a rebuild.
func TestRecalculateStatsTTLExpiryRebuilds(t *testing.T) {
	repo := setupTestRepoForManager(t)
	src := &fakeSource{series: []schema.Series{{Labels: `{"host":"a"}`, Samples: hourOfOnes(60)}}}
	mgr := NewManager(repo, src, "worker-1")

	cfg := testCacheConfig()
	cfg.Database.MaxTTL = -1
	_, err := mgr.RecalculateStats("cpu_usage", `{"host":"a"}`, nil, nil, cfg)
	require.NoError(t, err)

	model, err := mgr.RecalculateStats("cpu_usage", `{"host":"a"}`, nil, nil, cfg)
	require.NoError(t, err)
	assert.Equal(t, 2, model.Meta.DFTRebuildCount)
}

// GetCorridor reconstructs over the caller's requested window, independent
// of the training window, and memoizes the result per rebuild count.
func TestGetCorridorReconstructsRequestedWindow(t *testing.T) {
	repo := setupTestRepoForManager(t)
	src := &fakeSource{series: []schema.Series{{Labels: `{"host":"a"}`, Samples: hourOfOnes(60)}}}
	mgr := NewManager(repo, src, "worker-1")
	cfg := testCacheConfig()

	start, end, step := int64(1_700_003_600), int64(1_700_007_200), int64(60)
	recon, err := mgr.GetCorridor("cpu_usage", `{"host":"a"}`, start, end, step, nil, nil, cfg)
	require.NoError(t, err)

	wantLen := int((end-start)/step) + 1
	require.Len(t, recon.Upper, wantLen)
	require.Len(t, recon.Lower, wantLen)
	assert.Equal(t, start, recon.Upper[0].Timestamp)
	for _, s := range recon.Upper {
		assert.InDelta(t, 1.0, float64(s.Value), 1e-6)
	}

	assert.Equal(t, int32(1), atomic.LoadInt32(&src.calls))

	recon2, err := mgr.GetCorridor("cpu_usage", `{"host":"a"}`, start, end, step, nil, nil, cfg)
	require.NoError(t, err)
	assert.Equal(t, recon.Upper, recon2.Upper)
	assert.Equal(t, int32(1), atomic.LoadInt32(&src.calls))
}
