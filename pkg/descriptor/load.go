package descriptor

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
	cueerrors "cuelang.org/go/cue/errors"
	"gopkg.in/yaml.v3"
)

// Format is a descriptor serialization format.
type Format string

// Supported formats.
const (
	FormatYAML Format = "yaml"
	FormatJSON Format = "json"
	FormatCUE  Format = "cue"
)

// Formats lists every supported format.
var Formats = []Format{FormatYAML, FormatJSON, FormatCUE}

// ParseFormat converts a user-supplied format name.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(name) {
	case "yaml", "yml":
		return FormatYAML, nil
	case "json":
		return FormatJSON, nil
	case "cue":
		return FormatCUE, nil
	default:
		return "", fmt.Errorf("unsupported format %q (expected yaml, json or cue)", name)
	}
}

// FormatFromPath detects the format of a descriptor file from its extension.
func FormatFromPath(path string) (Format, error) {
	ext := strings.TrimPrefix(filepath.Ext(path), ".")
	if ext == "" {
		return "", fmt.Errorf("cannot detect format of %s: no file extension", path)
	}
	return ParseFormat(ext)
}

// Extension returns the canonical file extension for f, including the dot.
func (f Format) Extension() string {
	return "." + string(f)
}

// LoadError reports a descriptor that could not be read or parsed.
type LoadError struct {
	Path   string
	Format Format

	// Line and Column locate a syntax error when the parser reports one.
	Line   int
	Column int

	Err error
}

// Error implements the error interface.
func (e *LoadError) Error() string {
	loc := e.Path
	if loc == "" {
		loc = "<input>"
	}
	if e.Line > 0 {
		loc = fmt.Sprintf("%s:%d:%d", loc, e.Line, e.Column)
	}
	if e.Format != "" {
		return fmt.Sprintf("failed to load %s descriptor %s: %v", e.Format, loc, e.Err)
	}
	return fmt.Sprintf("failed to load descriptor %s: %v", loc, e.Err)
}

// Unwrap returns the underlying error.
func (e *LoadError) Unwrap() error {
	return e.Err
}

// LoadFile reads a descriptor file and parses it into a value tree. The
// format is detected from the file extension.
func LoadFile(path string) (interface{}, Format, error) {
	format, err := FormatFromPath(path)
	if err != nil {
		return nil, "", &LoadError{Path: path, Err: err}
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, format, &LoadError{Path: path, Format: format, Err: err}
	}

	doc, err := parse(data, format, path)
	if err != nil {
		return nil, format, err
	}
	return doc, format, nil
}

// Parse parses descriptor content into a value tree made of
// map[string]interface{}, []interface{}, strings, numbers, booleans and nil.
func Parse(data []byte, format Format) (interface{}, error) {
	return parse(data, format, "")
}

func parse(data []byte, format Format, path string) (interface{}, error) {
	var (
		doc interface{}
		err error
	)
	switch format {
	case FormatYAML:
		doc, err = parseYAML(data)
	case FormatJSON:
		doc, err = parseJSON(data)
	case FormatCUE:
		return parseCUE(data, path)
	default:
		err = fmt.Errorf("unsupported format %q", format)
	}
	if err != nil {
		return nil, &LoadError{Path: path, Format: format, Err: err}
	}
	return doc, nil
}

func parseYAML(data []byte) (interface{}, error) {
	var doc interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	return normalizeKeys(doc), nil
}

func parseJSON(data []byte) (interface{}, error) {
	var doc interface{}
	dec := json.NewDecoder(bytes.NewReader(data))
	if err := dec.Decode(&doc); err != nil {
		return nil, err
	}
	if dec.More() {
		return nil, fmt.Errorf("unexpected content after the top-level value")
	}
	return doc, nil
}

// parseCUE evaluates a CUE document and exports it as concrete data.
func parseCUE(data []byte, path string) (interface{}, error) {
	ctx := cuecontext.New()

	var opts []cue.BuildOption
	if path != "" {
		opts = append(opts, cue.Filename(path))
	}

	val := ctx.CompileBytes(data, opts...)
	if err := val.Err(); err != nil {
		return nil, cueLoadError(path, err)
	}
	if err := val.Validate(cue.Concrete(true)); err != nil {
		return nil, cueLoadError(path, err)
	}

	var doc interface{}
	if err := val.Decode(&doc); err != nil {
		return nil, cueLoadError(path, err)
	}
	return doc, nil
}

// cueLoadError keeps the position and details of the first CUE error.
func cueLoadError(path string, err error) *LoadError {
	le := &LoadError{Path: path, Format: FormatCUE, Err: err}

	errs := cueerrors.Errors(err)
	if len(errs) == 0 {
		return le
	}
	first := errs[0]
	if pos := cueerrors.Positions(first); len(pos) > 0 {
		le.Line = pos[0].Line()
		le.Column = pos[0].Column()
	}
	le.Err = fmt.Errorf("%s", strings.TrimSpace(cueerrors.Details(first, nil)))
	return le
}

// normalizeKeys rewrites map[interface{}]interface{} nodes, which yaml.v3
// produces for mappings with non-string keys, into string-keyed maps.
func normalizeKeys(value interface{}) interface{} {
	switch v := value.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			out[fmt.Sprint(key)] = normalizeKeys(item)
		}
		return out
	case map[string]interface{}:
		for key, item := range v {
			v[key] = normalizeKeys(item)
		}
		return v
	case []interface{}:
		for i, item := range v {
			v[i] = normalizeKeys(item)
		}
		return v
	default:
		return value
	}
}
