// Copyright (C) NHR@FAU, University Erlangen-Nuremberg.
// All rights reserved.
// Use of this source code is governed by a MIT-style
// license that can be found in the LICENSE file.
package config

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/santhosh-tekuri/jsonschema/v5"
)

const configSchemaURL = "scoutd://config.schema.json"

// compiledConfigSchema is built once from the embedded schema string;
// CompileString fails only on a malformed schema literal, which a test
// catches long before this ever ships.
var compiledConfigSchema = func() *jsonschema.Schema {
	s, err := jsonschema.CompileString(configSchemaURL, configSchema)
	if err != nil {
		panic(fmt.Sprintf("config: invalid embedded schema: %v", err))
	}
	return s
}()

// Validate checks r's JSON document against the daemon config schema.
func Validate(r io.Reader) error {
	var v interface{}
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		return fmt.Errorf("config: decode for validation: %w", err)
	}
	if err := compiledConfigSchema.Validate(v); err != nil {
		return err
	}
	return nil
}

// ValidateParserManifest checks a single parser-manifest JSON document,
// used by the status/control API's manifest-upload endpoint to reject
// a malformed manifest before it reaches the queue's plugin registry.
func ValidateParserManifest(r io.Reader) error {
	var v interface{}
	if err := json.NewDecoder(r).Decode(&v); err != nil {
		return fmt.Errorf("config: decode manifest for validation: %w", err)
	}
	schema := map[string]interface{}{
		"type": "object",
		"properties": map[string]interface{}{
			"plugin-name":  map[string]interface{}{"type": "string"},
			"version":      map[string]interface{}{"type": "string"},
			"runtime-kind": map[string]interface{}{"type": "string"},
			"entrypoint":   map[string]interface{}{"type": "string"},
		},
		"required": []interface{}{"plugin-name", "version", "runtime-kind", "entrypoint"},
	}
	raw, err := json.Marshal(schema)
	if err != nil {
		return err
	}
	s, err := jsonschema.CompileString("scoutd://manifest.schema.json", string(raw))
	if err != nil {
		return err
	}
	return s.Validate(v)
}
