package dataprocessor

import (
	"testing"

	"github.com/corridorcache/baseline-engine/pkg/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetActualDataRange(t *testing.T) {
	data := []schema.Series{
		{Labels: "a", Samples: []schema.Sample{
			{Timestamp: 100, Value: 1},
			{Timestamp: 300, Value: schema.NaN},
			{Timestamp: 50, Value: 2},
		}},
	}

	minTs, maxTs := GetActualDataRange(data, 0, 1000)
	assert.Equal(t, int64(50), minTs)
	assert.Equal(t, int64(100), maxTs)
}

func TestGetActualDataRangeEmptyUsesDefaults(t *testing.T) {
	minTs, maxTs := GetActualDataRange(nil, 10, 20)
	assert.Equal(t, int64(10), minTs)
	assert.Equal(t, int64(20), maxTs)
}

func TestGroupDataDuplicateTimestampKeepsLast(t *testing.T) {
	raw := []schema.Series{
		{Labels: `{"host":"a"}`, Samples: []schema.Sample{
			{Timestamp: 10, Value: 1},
			{Timestamp: 10, Value: 2},
			{Timestamp: 20, Value: 3},
		}},
	}

	groups := GroupData(raw)
	require.Len(t, groups[`{"host":"a"}`], 2)
	assert.Equal(t, schema.Float(2), groups[`{"host":"a"}`][0].Value)
	assert.Equal(t, int64(20), groups[`{"host":"a"}`][1].Timestamp)
}

func TestGroupDataSortsChronologically(t *testing.T) {
	raw := []schema.Series{
		{Labels: "x", Samples: []schema.Sample{
			{Timestamp: 30, Value: 3},
			{Timestamp: 10, Value: 1},
			{Timestamp: 20, Value: 2},
		}},
	}

	out := GroupData(raw)["x"]
	require.Len(t, out, 3)
	assert.Equal(t, int64(10), out[0].Timestamp)
	assert.Equal(t, int64(20), out[1].Timestamp)
	assert.Equal(t, int64(30), out[2].Timestamp)
}
