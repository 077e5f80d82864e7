package synth

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/santhosh-tekuri/jsonschema/v5"

	"github.com/mark3labs/swagger2k6/internal/schema"
)

const payloadResource = "payload.json"

// Conforms checks value against the draft-4 rendering of s. It returns nil
// when the value is valid, otherwise the validator's error.
func Conforms(s schema.Schema, value any) error {
	raw, err := json.Marshal(schema.JSON(s))
	if err != nil {
		return fmt.Errorf("encode schema: %w", err)
	}
	compiler := jsonschema.NewCompiler()
	compiler.Draft = jsonschema.Draft4
	if err := compiler.AddResource(payloadResource, bytes.NewReader(raw)); err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}
	compiled, err := compiler.Compile(payloadResource)
	if err != nil {
		return fmt.Errorf("invalid schema: %w", err)
	}

	// Round-trip through JSON so numbers reach the validator as json.Number.
	body, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("encode payload: %w", err)
	}
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var inst any
	if err := dec.Decode(&inst); err != nil {
		return fmt.Errorf("decode payload: %w", err)
	}
	return compiled.Validate(inst)
}
