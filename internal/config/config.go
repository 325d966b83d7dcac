// Package config owns the process-wide configuration: defaults plus a
// validated JSON file loaded over them, the way the teacher's
// internal/config package does.
package config

import (
	"bytes"
	"embed"
	"encoding/json"
	"os"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/corridorcache/baseline-engine/pkg/log"
	"github.com/corridorcache/baseline-engine/pkg/schema"
)

// Keys is the process-wide configuration, decoded over
// schema.DefaultProgramConfig by Init.
var Keys schema.ProgramConfig = schema.DefaultProgramConfig

//go:embed schemas/*.json
var schemaFiles embed.FS

var configSchema *jsonschema.Schema

func init() {
	compiler := jsonschema.NewCompiler()
	raw, err := schemaFiles.ReadFile("schemas/program_config.schema.json")
	if err != nil {
		log.Fatal(err)
	}
	if err := compiler.AddResource("https://corridorcache.internal/schema/program-config.json", bytes.NewReader(raw)); err != nil {
		log.Fatal(err)
	}
	configSchema = compiler.MustCompile("https://corridorcache.internal/schema/program-config.json")
}

// Init loads path as JSON over Keys' defaults. A missing file is not an
// error (the defaults stand); a present file must validate against the
// embedded schema and must decode without unknown fields, matching the
// teacher's Init(flagConfigFile string).
func Init(path string) {
	raw, err := os.ReadFile(path)
	if err != nil {
		if !os.IsNotExist(err) {
			log.Fatal(err)
		}
		return
	}

	var doc interface{}
	if err := json.Unmarshal(raw, &doc); err != nil {
		log.Fatalf("config %s: invalid JSON: %v", path, err)
	}
	if err := configSchema.Validate(doc); err != nil {
		log.Fatalf("config %s: schema validation failed: %v", path, err)
	}

	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&Keys); err != nil {
		log.Fatal(err)
	}
}
