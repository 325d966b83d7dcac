package repository

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveAndLoadFromCacheRoundTrip(t *testing.T) {
	r := setupTestRepo(t)
	cfg := testConfig()
	model := testModel()

	require.NoError(t, r.SaveToCache("cpu_usage", `{"host":"a"}`, model, cfg))

	loaded, err := r.LoadFromCache("cpu_usage", `{"host":"a"}`)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, model.Meta.DataStart, loaded.Meta.DataStart)
	assert.Len(t, loaded.DFTUpper.Coefficients, 1)
}

func TestLoadFromCacheMissReturnsNil(t *testing.T) {
	r := setupTestRepo(t)
	loaded, err := r.LoadFromCache("cpu_usage", `{"host":"a"}`)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

// TestShouldRecreateCacheAbsent, Expiry, ConfigChange and Placeholder cover law 3.
func TestShouldRecreateCacheAbsent(t *testing.T) {
	r := setupTestRepo(t)
	should, err := r.ShouldRecreateCache("cpu_usage", `{"host":"a"}`, testConfig())
	require.NoError(t, err)
	assert.True(t, should)
}

func TestShouldRecreateCacheFreshIsFalse(t *testing.T) {
	r := setupTestRepo(t)
	cfg := testConfig()
	require.NoError(t, r.SaveToCache("cpu_usage", `{"host":"a"}`, testModel(), cfg))

	should, err := r.ShouldRecreateCache("cpu_usage", `{"host":"a"}`, cfg)
	require.NoError(t, err)
	assert.False(t, should)
}

// S3 — config change forces a rebuild with a differing config hash.
func TestShouldRecreateCacheOnConfigChange(t *testing.T) {
	r := setupTestRepo(t)
	cfg := testConfig()
	require.NoError(t, r.SaveToCache("cpu_usage", `{"host":"a"}`, testModel(), cfg))

	changed := cfg
	changed.CorridorParams.DefaultPercentiles = [2]float64{90, 10}

	should, err := r.ShouldRecreateCache("cpu_usage", `{"host":"a"}`, changed)
	require.NoError(t, err)
	assert.True(t, should)
	assert.NotEqual(t, CreateConfigHash(cfg), CreateConfigHash(changed))
}

func TestShouldRecreateCacheOnPlaceholder(t *testing.T) {
	r := setupTestRepo(t)
	cfg := testConfig()
	placeholder := testModel()
	placeholder.Meta.IsPlaceholder = true
	require.NoError(t, r.SaveToCache("cpu_usage", `{"host":"a"}`, placeholder, cfg))

	should, err := r.ShouldRecreateCache("cpu_usage", `{"host":"a"}`, cfg)
	require.NoError(t, err)
	assert.True(t, should)
}

// S4 — TTL expiry.
func TestTTLExpiry(t *testing.T) {
	r := setupTestRepo(t)
	cfg := testConfig()
	cfg.Database.MaxTTL = -1 // already expired the instant it's written
	require.NoError(t, r.SaveToCache("cpu_usage", `{"host":"a"}`, testModel(), cfg))

	loaded, err := r.LoadFromCache("cpu_usage", `{"host":"a"}`)
	require.NoError(t, err)
	assert.Nil(t, loaded)

	should, err := r.ShouldRecreateCache("cpu_usage", `{"host":"a"}`, cfg)
	require.NoError(t, err)
	assert.True(t, should)
}

// S6 — canonical equality: saving under one key order and loading under
// another returns the same entry, with no duplicate row.
func TestCanonicalEqualityNoDuplicateRows(t *testing.T) {
	r := setupTestRepo(t)
	cfg := testConfig()
	require.NoError(t, r.SaveToCache("cpu_usage", `{"b":2,"a":1}`, testModel(), cfg))

	loaded, err := r.LoadFromCache("cpu_usage", `{"a":1,"b":2}`)
	require.NoError(t, err)
	require.NotNil(t, loaded)

	var count int
	require.NoError(t, r.DB.Get(&count, `SELECT COUNT(*) FROM dft_cache`))
	assert.Equal(t, 1, count)
}

func TestSweepExpiredRemovesOnlyExpired(t *testing.T) {
	r := setupTestRepo(t)
	fresh := testConfig()
	expired := testConfig()
	expired.Database.MaxTTL = -1

	require.NoError(t, r.SaveToCache("cpu_usage", `{"host":"a"}`, testModel(), fresh))
	require.NoError(t, r.SaveToCache("cpu_usage", `{"host":"b"}`, testModel(), expired))

	removed, err := r.SweepExpired()
	require.NoError(t, err)
	assert.Equal(t, int64(1), removed)

	var count int
	require.NoError(t, r.DB.Get(&count, `SELECT COUNT(*) FROM dft_cache`))
	assert.Equal(t, 1, count)
}

func TestInvalidateByFingerprint(t *testing.T) {
	r := setupTestRepo(t)
	cfg := testConfig()
	require.NoError(t, r.SaveToCache("cpu_usage", `{"host":"a"}`, testModel(), cfg))

	require.NoError(t, r.InvalidateByFingerprint("cpu_usage", `{"host":"a"}`))

	loaded, err := r.LoadFromCache("cpu_usage", `{"host":"a"}`)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestCorruptPayloadDeletesRowOnRead(t *testing.T) {
	r := setupTestRepo(t)
	r.mu.Lock()
	queryID, err := r.ensureQueryID("cpu_usage")
	r.mu.Unlock()
	require.NoError(t, err)
	hash := MetricHash("cpu_usage", `{"host":"a"}`)
	now := time.Now().Unix()

	_, err = r.DB.Exec(`INSERT INTO dft_cache (query_id, metric_hash, payload, created_at, expires_at, config_hash)
		VALUES (?, ?, ?, ?, ?, ?)`, queryID, hash, []byte(`{"not":"a corridor model"}`), now, now+3600, "x")
	require.NoError(t, err)

	loaded, err := r.LoadFromCache("cpu_usage", `{"host":"a"}`)
	assert.Error(t, err)
	assert.Nil(t, loaded)

	var count int
	require.NoError(t, r.DB.Get(&count, `SELECT COUNT(*) FROM dft_cache`))
	assert.Equal(t, 0, count)
}
