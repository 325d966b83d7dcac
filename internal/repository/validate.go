package repository

import (
	"bytes"
	"embed"
	"encoding/json"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/corridorcache/baseline-engine/pkg/log"
	"github.com/corridorcache/baseline-engine/pkg/schema"
)

//go:embed schemas/*.json
var schemaFiles embed.FS

var corridorSchema *jsonschema.Schema

func init() {
	compiler := jsonschema.NewCompiler()
	raw, err := schemaFiles.ReadFile("schemas/corridor_model.schema.json")
	if err != nil {
		log.Fatal(err)
	}
	if err := compiler.AddResource("https://corridorcache.internal/schema/corridor-model.json", bytes.NewReader(raw)); err != nil {
		log.Fatal(err)
	}
	corridorSchema = compiler.MustCompile("https://corridorcache.internal/schema/corridor-model.json")
}

// validatePayload decodes and schema-validates a stored payload. A
// validation failure or schema-version mismatch is reported as
// schema.KindCorruption (§9 design note on mixed-schema cache rows), which
// the caller treats as "delete the row and rebuild".
func validatePayload(payload []byte) (schema.CorridorModel, error) {
	var doc interface{}
	if err := json.Unmarshal(payload, &doc); err != nil {
		return schema.CorridorModel{}, schema.NewError("validatePayload", schema.KindCorruption, err)
	}

	if err := corridorSchema.Validate(doc); err != nil {
		return schema.CorridorModel{}, schema.NewError("validatePayload", schema.KindCorruption, err)
	}

	var model schema.CorridorModel
	if err := json.Unmarshal(payload, &model); err != nil {
		return schema.CorridorModel{}, schema.NewError("validatePayload", schema.KindCorruption, err)
	}

	if model.Meta.SchemaVersion != schema.CurrentSchemaVersion {
		return schema.CorridorModel{}, schema.NewError("validatePayload", schema.KindCorruption, nil)
	}

	return model, nil
}
