package repository

import (
	"database/sql"

	"github.com/corridorcache/baseline-engine/pkg/schema"
)

// GetGrafanaInstanceIDByURL looks up a registered instance by its unique
// URL, returning schema.KindNotFound if it isn't registered.
func (r *Repository) GetGrafanaInstanceIDByURL(url string) (int64, error) {
	query, args, err := r.queryBuilder().
		Select("id").From("grafana_instances").Where("url = ?", url).ToSql()
	if err != nil {
		return 0, asCoreError("GetGrafanaInstanceIDByURL", schema.KindInternal, err)
	}

	var id int64
	if err := r.DB.Get(&id, query, args...); err != nil {
		if err == sql.ErrNoRows {
			return 0, schema.NewError("GetGrafanaInstanceIDByURL", schema.KindNotFound, err)
		}
		return 0, asCoreError("GetGrafanaInstanceIDByURL", schema.KindInternal, err)
	}
	return id, nil
}

// RegisterGrafanaInstance inserts or updates an instance's token by URL,
// returning its id.
func (r *Repository) RegisterGrafanaInstance(url, token string) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if id, err := r.GetGrafanaInstanceIDByURL(url); err == nil {
		if _, err := r.DB.Exec(`UPDATE grafana_instances SET token = ? WHERE id = ?`, token, id); err != nil {
			return 0, asCoreError("RegisterGrafanaInstance", schema.KindStoreConflict, err)
		}
		return id, nil
	}

	res, err := r.DB.Exec(`INSERT INTO grafana_instances (url, token) VALUES (?, ?)`, url, token)
	if err != nil {
		return 0, asCoreError("RegisterGrafanaInstance", schema.KindStoreConflict, err)
	}
	return res.LastInsertId()
}

// SaveGrafanaIndividualMetric upserts one metric_key's data for an instance.
func (r *Repository) SaveGrafanaIndividualMetric(instanceID int64, metricKey string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	_, err := r.DB.Exec(`
		INSERT INTO grafana_individual_metrics (instance_id, metric_key, data)
		VALUES (?, ?, ?)
		ON CONFLICT(instance_id, metric_key) DO UPDATE SET data = excluded.data
	`, instanceID, metricKey, data)
	if err != nil {
		return asCoreError("SaveGrafanaIndividualMetric", schema.KindStoreConflict, err)
	}
	return nil
}

// LoadGrafanaIndividualMetric returns one metric's cached data, or nil if
// absent.
func (r *Repository) LoadGrafanaIndividualMetric(instanceID int64, metricKey string) ([]byte, error) {
	var data []byte
	err := r.DB.Get(&data, `SELECT data FROM grafana_individual_metrics
		WHERE instance_id = ? AND metric_key = ?`, instanceID, metricKey)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, asCoreError("LoadGrafanaIndividualMetric", schema.KindInternal, err)
	}
	return data, nil
}

// LoadGrafanaIndividualMetrics returns every cached metric for an instance.
func (r *Repository) LoadGrafanaIndividualMetrics(instanceID int64) ([]schema.IndividualMetric, error) {
	query, args, err := r.queryBuilder().
		Select("instance_id", "metric_key", "data").
		From("grafana_individual_metrics").
		Where("instance_id = ?", instanceID).
		ToSql()
	if err != nil {
		return nil, asCoreError("LoadGrafanaIndividualMetrics", schema.KindInternal, err)
	}

	var rows []schema.IndividualMetric
	if err := r.DB.Select(&rows, query, args...); err != nil {
		return nil, asCoreError("LoadGrafanaIndividualMetrics", schema.KindInternal, err)
	}
	return rows, nil
}

// UpdateGrafanaIndividualMetric overwrites data for an existing (instance,
// metric_key) pair, returning schema.KindNotFound if no row matches.
func (r *Repository) UpdateGrafanaIndividualMetric(instanceID int64, metricKey string, data []byte) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	res, err := r.DB.Exec(`UPDATE grafana_individual_metrics SET data = ?
		WHERE instance_id = ? AND metric_key = ?`, data, instanceID, metricKey)
	if err != nil {
		return asCoreError("UpdateGrafanaIndividualMetric", schema.KindStoreConflict, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return schema.NewError("UpdateGrafanaIndividualMetric", schema.KindNotFound, nil)
	}
	return nil
}
