package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/openseis/seisvol/seisvol"
)

const importSchemaJSON = `{
	"type": "object",
	"properties": {
		"file_path": {"type": "string", "minLength": 1},
		"name": {"type": "string"},
		"replace": {"type": "boolean"}
	},
	"required": ["file_path"],
	"additionalProperties": false
}`

const surveySchemaJSON = `{
	"type": "object",
	"properties": {
		"name": {"type": "string", "minLength": 1},
		"inline_min": {"type": "integer"},
		"inline_max": {"type": "integer"},
		"inline_step": {"type": "integer", "minimum": 0},
		"crossline_min": {"type": "integer"},
		"crossline_max": {"type": "integer"},
		"crossline_step": {"type": "integer", "minimum": 0},
		"origin_x": {"type": "number"},
		"origin_y": {"type": "number"},
		"inline_dx": {"type": "number"},
		"inline_dy": {"type": "number"},
		"crossline_dx": {"type": "number"},
		"crossline_dy": {"type": "number"}
	},
	"required": ["name", "inline_min", "inline_max", "crossline_min", "crossline_max"],
	"additionalProperties": false
}`

var (
	importSchema = jsonschema.MustCompileString("import.json", importSchemaJSON)
	surveySchema = jsonschema.MustCompileString("survey.json", surveySchemaJSON)
)

// decodeValidated reads a JSON body, checks it against the schema and
// unmarshals it into dst.  Failures match seisvol.ErrBadRequest.
func decodeValidated(r io.Reader, schema *jsonschema.Schema, dst interface{}) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return fmt.Errorf("unable to read request body: %v: %w", err, seisvol.ErrBadRequest)
	}
	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	if err := dec.Decode(&doc); err != nil {
		return fmt.Errorf("malformed JSON request body: %v: %w", err, seisvol.ErrBadRequest)
	}
	if err := schema.Validate(doc); err != nil {
		return fmt.Errorf("invalid request: %v: %w", err, seisvol.ErrBadRequest)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("unable to decode request: %v: %w", err, seisvol.ErrBadRequest)
	}
	return nil
}
