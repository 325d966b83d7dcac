package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestCanonicalizeLabelsKeyOrderIndependent is law 1.
func TestCanonicalizeLabelsKeyOrderIndependent(t *testing.T) {
	a := CanonicalizeLabels(`{"b":2,"a":1}`)
	b := CanonicalizeLabels(`{"a":1,"b":2}`)
	assert.Equal(t, a, b)
	assert.Equal(t, `{"a":1,"b":2}`, a)
}

func TestCanonicalizeLabelsNested(t *testing.T) {
	a := CanonicalizeLabels(`{"outer":{"z":1,"a":2},"b":3}`)
	assert.Equal(t, `{"b":3,"outer":{"a":2,"z":1}}`, a)
}

func TestCanonicalizeLabelsNoEscaping(t *testing.T) {
	a := CanonicalizeLabels(`{"path":"a/b"}`)
	assert.Equal(t, `{"path":"a/b"}`, a)
}

func TestCanonicalizeLabelsInvalidPassesThrough(t *testing.T) {
	a := CanonicalizeLabels("not json")
	assert.Equal(t, "not json", a)
}

// TestMetricHashStable is law 2.
func TestMetricHashStable(t *testing.T) {
	h1 := MetricHash("cpu_usage", `{"host":"a","zone":"z1"}`)
	h2 := MetricHash("cpu_usage", `{"zone":"z1","host":"a"}`)
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 32)
}

func TestMetricHashDiffersByQuery(t *testing.T) {
	h1 := MetricHash("cpu_usage", `{"host":"a"}`)
	h2 := MetricHash("mem_usage", `{"host":"a"}`)
	assert.NotEqual(t, h1, h2)
}

func TestCreateConfigHashStableAndSensitive(t *testing.T) {
	cfg := testConfig()
	h1 := CreateConfigHash(cfg)
	h2 := CreateConfigHash(cfg)
	assert.Equal(t, h1, h2)

	cfg.CorridorParams.DefaultPercentiles = [2]float64{90, 10}
	h3 := CreateConfigHash(cfg)
	assert.NotEqual(t, h1, h3)
}
