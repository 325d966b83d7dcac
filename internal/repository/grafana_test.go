package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegisterGrafanaInstanceIsIdempotentByURL(t *testing.T) {
	r := setupTestRepo(t)
	id1, err := r.RegisterGrafanaInstance("https://grafana.example/", "tok-a")
	require.NoError(t, err)

	id2, err := r.RegisterGrafanaInstance("https://grafana.example/", "tok-b")
	require.NoError(t, err)
	assert.Equal(t, id1, id2)

	got, err := r.GetGrafanaInstanceIDByURL("https://grafana.example/")
	require.NoError(t, err)
	assert.Equal(t, id1, got)
}

func TestGetGrafanaInstanceIDByURLNotFound(t *testing.T) {
	r := setupTestRepo(t)
	_, err := r.GetGrafanaInstanceIDByURL("https://missing.example/")
	assert.Error(t, err)
}

func TestGrafanaIndividualMetricRoundTrip(t *testing.T) {
	r := setupTestRepo(t)
	id, err := r.RegisterGrafanaInstance("https://grafana.example/", "tok")
	require.NoError(t, err)

	require.NoError(t, r.SaveGrafanaIndividualMetric(id, "cpu_usage", []byte(`{"name":"cpu_usage"}`)))

	data, err := r.LoadGrafanaIndividualMetric(id, "cpu_usage")
	require.NoError(t, err)
	assert.Equal(t, `{"name":"cpu_usage"}`, string(data))

	require.NoError(t, r.UpdateGrafanaIndividualMetric(id, "cpu_usage", []byte(`{"name":"cpu_usage","v":2}`)))
	data, err = r.LoadGrafanaIndividualMetric(id, "cpu_usage")
	require.NoError(t, err)
	assert.Contains(t, string(data), `"v":2`)

	all, err := r.LoadGrafanaIndividualMetrics(id)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestUpdateGrafanaIndividualMetricNotFound(t *testing.T) {
	r := setupTestRepo(t)
	id, err := r.RegisterGrafanaInstance("https://grafana.example/", "tok")
	require.NoError(t, err)

	err = r.UpdateGrafanaIndividualMetric(id, "missing_metric", []byte(`{}`))
	assert.Error(t, err)
}
