package repository

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/corridorcache/baseline-engine/pkg/schema"
)

func TestValidatePayloadAccepts(t *testing.T) {
	model := testModel()
	raw, err := json.Marshal(model)
	require.NoError(t, err)

	got, err := validatePayload(raw)
	require.NoError(t, err)
	assert.Equal(t, model.Meta.DataStart, got.Meta.DataStart)
}

func TestValidatePayloadRejectsMissingFields(t *testing.T) {
	_, err := validatePayload([]byte(`{"meta":{}}`))
	assert.Error(t, err)
}

func TestValidatePayloadRejectsSchemaVersionMismatch(t *testing.T) {
	model := testModel()
	model.Meta.SchemaVersion = schema.CurrentSchemaVersion + 1
	raw, err := json.Marshal(model)
	require.NoError(t, err)

	_, err = validatePayload(raw)
	assert.Error(t, err)
}

func TestValidatePayloadRejectsMalformedJSON(t *testing.T) {
	_, err := validatePayload([]byte(`not json`))
	assert.Error(t, err)
}
