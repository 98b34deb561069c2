package schema

import (
	"bytes"
	"encoding/json"
	"fmt"

	jsv "github.com/santhosh-tekuri/jsonschema/v6"
)

// resourceURL is the location exported schemas are registered under.
const resourceURL = "https://bundlectl.dev/schema/descriptor.json"

// Compiled is a JSON Schema ready to validate instances.
type Compiled struct {
	schema *jsv.Schema
}

// Compile compiles a JSON Schema document. Exported schemas are compiled
// after export to check that they are well formed.
func Compile(data []byte) (*Compiled, error) {
	doc, err := jsv.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to parse schema: %w", err)
	}

	c := jsv.NewCompiler()
	c.DefaultDraft(jsv.Draft2020)
	if err := c.AddResource(resourceURL, doc); err != nil {
		return nil, fmt.Errorf("failed to add schema resource: %w", err)
	}

	sch, err := c.Compile(resourceURL)
	if err != nil {
		return nil, fmt.Errorf("failed to compile schema: %w", err)
	}
	return &Compiled{schema: sch}, nil
}

// Validate checks a value tree against the schema. The error wraps a
// *jsonschema.ValidationError from santhosh-tekuri/jsonschema when the
// instance does not match.
func (c *Compiled) Validate(value interface{}) error {
	data, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode instance: %w", err)
	}
	inst, err := jsv.UnmarshalJSON(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to decode instance: %w", err)
	}

	if err := c.schema.Validate(inst); err != nil {
		return fmt.Errorf("instance does not match schema: %w", err)
	}
	return nil
}
