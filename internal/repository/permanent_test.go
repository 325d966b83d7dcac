package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetricsCacheL1RoundTrip(t *testing.T) {
	r := setupTestRepo(t)
	entry := MetricsCacheL1Entry{
		RequestMD5:    "abc123",
		OptimalPeriod: 60,
		ScaleFlags:    1,
		Payload:       []byte(`{"k":"v"}`),
	}
	require.NoError(t, r.SaveMetricsCacheL1("cpu_usage", `{"host":"a"}`, entry))

	loaded, err := r.LoadMetricsCacheL1("cpu_usage", `{"host":"a"}`)
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, entry.RequestMD5, loaded.RequestMD5)
	assert.Equal(t, entry.OptimalPeriod, loaded.OptimalPeriod)
}

func TestMetricsCacheL1MissReturnsNil(t *testing.T) {
	r := setupTestRepo(t)
	loaded, err := r.LoadMetricsCacheL1("cpu_usage", `{"host":"a"}`)
	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestAutoscaleL1RoundTrip(t *testing.T) {
	r := setupTestRepo(t)
	require.NoError(t, r.SaveAutoscaleL1("cpu_usage", `{"host":"a"}`, []byte(`{"period":300}`)))

	info, err := r.LoadAutoscaleL1("cpu_usage", `{"host":"a"}`)
	require.NoError(t, err)
	assert.Equal(t, `{"period":300}`, string(info))
}
