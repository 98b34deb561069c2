package descriptor

import (
	"bytes"
	"encoding/json"
	"fmt"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/ast"
	"cuelang.org/go/cue/cuecontext"
	"cuelang.org/go/cue/format"
	"gopkg.in/yaml.v3"
)

// Encode renders a value tree or a typed descriptor in the given format.
// Mapping keys are written in sorted order so equal input gives equal output.
func Encode(value interface{}, f Format) ([]byte, error) {
	switch f {
	case FormatYAML:
		return encodeYAML(value)
	case FormatJSON:
		return encodeJSON(value)
	case FormatCUE:
		return encodeCUE(value)
	default:
		return nil, fmt.Errorf("unsupported format %q", f)
	}
}

func encodeYAML(value interface{}) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(value); err != nil {
		return nil, fmt.Errorf("failed to encode yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to encode yaml: %w", err)
	}
	return buf.Bytes(), nil
}

func encodeJSON(value interface{}) ([]byte, error) {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to encode json: %w", err)
	}
	return append(data, '\n'), nil
}

// encodeCUE exports the value as a CUE file whose top-level fields are the
// descriptor fields, the same shape `cue export --out cue` produces.
func encodeCUE(value interface{}) ([]byte, error) {
	ctx := cuecontext.New()

	val := ctx.Encode(value)
	if err := val.Err(); err != nil {
		return nil, fmt.Errorf("failed to encode cue: %w", err)
	}

	node := val.Syntax(cue.Final(), cue.Concrete(true))
	if s, ok := node.(*ast.StructLit); ok {
		node = &ast.File{Decls: s.Elts}
	}

	out, err := format.Node(node)
	if err != nil {
		return nil, fmt.Errorf("failed to format cue: %w", err)
	}
	return out, nil
}
