package repository

import (
	"database/sql"

	"github.com/corridorcache/baseline-engine/pkg/schema"
)

// MetricsCacheL1Entry is the permanent companion row to a dft_cache entry:
// per-metric autoscaling metadata that never expires.
type MetricsCacheL1Entry struct {
	RequestMD5    string `db:"request_md5"`
	OptimalPeriod int64  `db:"optimal_period"`
	ScaleFlags    int64  `db:"scale_flags"`
	Payload       []byte `db:"payload"`
}

// SaveMetricsCacheL1 upserts the permanent metrics_cache_permanent row for a
// fingerprint. No TTL applies (§3).
func (r *Repository) SaveMetricsCacheL1(query, labelsJSON string, entry MetricsCacheL1Entry) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	queryID, err := r.ensureQueryID(query)
	if err != nil {
		return asCoreError("SaveMetricsCacheL1", schema.KindStoreConflict, err)
	}
	hash := MetricHash(query, labelsJSON)

	_, err = r.DB.Exec(`
		INSERT INTO metrics_cache_permanent (query_id, metric_hash, request_md5, optimal_period, scale_flags, payload)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(query_id, metric_hash) DO UPDATE SET
			request_md5 = excluded.request_md5,
			optimal_period = excluded.optimal_period,
			scale_flags = excluded.scale_flags,
			payload = excluded.payload
	`, queryID, hash, entry.RequestMD5, entry.OptimalPeriod, entry.ScaleFlags, entry.Payload)
	if err != nil {
		return asCoreError("SaveMetricsCacheL1", schema.KindStoreConflict, err)
	}
	return nil
}

// LoadMetricsCacheL1 returns the permanent row for a fingerprint, or nil if
// absent.
func (r *Repository) LoadMetricsCacheL1(query, labelsJSON string) (*MetricsCacheL1Entry, error) {
	queryID, err := r.lookupQueryID(query)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, asCoreError("LoadMetricsCacheL1", schema.KindInternal, err)
	}
	hash := MetricHash(query, labelsJSON)

	var entry MetricsCacheL1Entry
	err = r.DB.Get(&entry, `SELECT request_md5, optimal_period, scale_flags, payload
		FROM metrics_cache_permanent WHERE query_id = ? AND metric_hash = ?`, queryID, hash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, asCoreError("LoadMetricsCacheL1", schema.KindInternal, err)
	}
	return &entry, nil
}

// SaveAutoscaleL1 upserts the permanent autoscale_l1 companion row.
func (r *Repository) SaveAutoscaleL1(query, labelsJSON string, info []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	queryID, err := r.ensureQueryID(query)
	if err != nil {
		return asCoreError("SaveAutoscaleL1", schema.KindStoreConflict, err)
	}
	hash := MetricHash(query, labelsJSON)

	_, err = r.DB.Exec(`
		INSERT INTO autoscale_l1 (query_id, metric_hash, info)
		VALUES (?, ?, ?)
		ON CONFLICT(query_id, metric_hash) DO UPDATE SET info = excluded.info
	`, queryID, hash, info)
	if err != nil {
		return asCoreError("SaveAutoscaleL1", schema.KindStoreConflict, err)
	}
	return nil
}

// LoadAutoscaleL1 returns the autoscale_l1 row for a fingerprint, or nil if
// absent.
func (r *Repository) LoadAutoscaleL1(query, labelsJSON string) ([]byte, error) {
	queryID, err := r.lookupQueryID(query)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, asCoreError("LoadAutoscaleL1", schema.KindInternal, err)
	}
	hash := MetricHash(query, labelsJSON)

	var info []byte
	err = r.DB.Get(&info, `SELECT info FROM autoscale_l1 WHERE query_id = ? AND metric_hash = ?`, queryID, hash)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, asCoreError("LoadAutoscaleL1", schema.KindInternal, err)
	}
	return info, nil
}
