package schema

import (
	"encoding/json"
	"fmt"

	"github.com/invopop/jsonschema"

	"github.com/bundlectl/bundlectl/pkg/validation"
)

// Export converts a rule tree to a JSON Schema (draft 2020-12).
//
// Built-in validators map to their JSON Schema keywords. Validators without
// an equivalent, such as a ValidatorFunc, are left out, so the schema can be
// more permissive than the rule tree. Unions become anyOf because the rule
// engine accepts the first alternative that matches.
func Export(rule validation.Rule, title string) *jsonschema.Schema {
	s := convert(rule)
	s.Version = jsonschema.Version
	s.Title = title
	return s
}

// Marshal renders a schema as indented JSON with a trailing newline.
func Marshal(s *jsonschema.Schema) ([]byte, error) {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal schema: %w", err)
	}
	return append(data, '\n'), nil
}

func convert(rule validation.Rule) *jsonschema.Schema {
	switch r := rule.(type) {
	case *validation.PrimitiveRule:
		s := &jsonschema.Schema{Type: string(r.Type)}
		for _, v := range r.Validators {
			applyValidator(s, v)
		}
		return s

	case *validation.ArrayRule:
		return &jsonschema.Schema{
			Type:  "array",
			Items: convert(r.Element),
		}

	case *validation.ObjectRule:
		return convertObject(r)

	case *validation.UnionRule:
		s := &jsonschema.Schema{}
		for _, alt := range r.Alternatives {
			s.AnyOf = append(s.AnyOf, convertObject(alt))
		}
		return s

	default:
		panic(fmt.Sprintf("schema: unknown rule type %T", rule))
	}
}

func convertObject(r *validation.ObjectRule) *jsonschema.Schema {
	s := &jsonschema.Schema{Type: "object"}

	if len(r.Fields) > 0 {
		s.Properties = jsonschema.NewProperties()
	}
	for _, f := range r.Fields {
		s.Properties.Set(f.Name, convert(f.Rule))
		if f.Rule.IsRequired() {
			s.Required = append(s.Required, f.Name)
		}
		if deps := f.Rule.Dependencies(); len(deps) > 0 {
			if s.DependentSchemas == nil {
				s.DependentSchemas = make(map[string]*jsonschema.Schema)
			}
			s.DependentSchemas[f.Name] = dependencySchema(deps)
		}
	}

	for _, v := range r.Validators {
		applyValidator(s, v)
	}
	return s
}

// dependencySchema describes the sibling values a present field relies on.
func dependencySchema(deps []validation.Dependency) *jsonschema.Schema {
	s := &jsonschema.Schema{Properties: jsonschema.NewProperties()}
	for _, dep := range deps {
		sibling := &jsonschema.Schema{}
		for _, v := range dep.Validators {
			applyValidator(sibling, v)
		}
		s.Properties.Set(dep.Field, sibling)
		s.Required = append(s.Required, dep.Field)
	}
	return s
}

// applyValidator adds the keywords matching a built-in validator to s and
// reports whether the validator had an equivalent.
func applyValidator(s *jsonschema.Schema, v validation.Validator) bool {
	switch val := v.(type) {
	case *validation.PatternValidator:
		if s.Pattern == "" {
			s.Pattern = val.Regexp.String()
		} else {
			s.AllOf = append(s.AllOf, &jsonschema.Schema{Pattern: val.Regexp.String()})
		}
		if val.Hint != "" && s.Description == "" {
			s.Description = val.Hint
		}
	case *validation.EnumValidator:
		s.Enum = make([]any, len(val.Values))
		for i, value := range val.Values {
			s.Enum[i] = value
		}
	case *validation.LengthValidator:
		if val.Max > 0 {
			max := uint64(val.Max)
			s.MaxLength = &max
		}
		if val.Min > 0 {
			min := uint64(val.Min)
			s.MinLength = &min
		}
	case *validation.StringMapValidator:
		s.AdditionalProperties = &jsonschema.Schema{Type: "string"}
	case *validation.EqualsValidator:
		s.Const = val.Value
	default:
		return false
	}
	return true
}
