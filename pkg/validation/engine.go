package validation

import (
	"encoding/json"
	"errors"
	"fmt"
	"sort"
)

// rootName is the field name reported for the value passed to Validate.
const rootName = "$"

// Validate checks value against rule and returns value unchanged on success.
//
// Callers normally pass a top-level *ObjectRule. On failure the returned error
// is a *StructuralError, a *DependencyError or, when a union matched none of
// its alternatives, a *UnionError.
//
// Validate never mutates value or rule and is safe for concurrent use.
func Validate(value interface{}, rule Rule) (interface{}, error) {
	if rule == nil {
		return nil, errors.New("validation: nil rule")
	}
	if err := validateValue(rootName, value, rule, Root()); err != nil {
		return nil, err
	}
	return value, nil
}

// validateValue dispatches on the rule variant.
func validateValue(name string, value interface{}, rule Rule, path Path) error {
	switch r := rule.(type) {
	case *PrimitiveRule:
		return validatePrimitive(name, value, r, path)
	case *ArrayRule:
		return validateArray(name, value, r, path)
	case *ObjectRule:
		return validateObject(name, value, r, path)
	case *UnionRule:
		return validateUnion(name, value, r, path)
	default:
		panic(fmt.Sprintf("validation: unknown rule type %T", rule))
	}
}

func validatePrimitive(name string, value interface{}, rule *PrimitiveRule, path Path) error {
	if !hasType(value, rule.Type) {
		return NewStructuralError(path, "Field \"%s\" is not valid. Should be a %s", name, rule.Type)
	}
	for _, v := range rule.Validators {
		if err := v.Validate(name, value, path); err != nil {
			return err
		}
	}
	return nil
}

func validateArray(name string, value interface{}, rule *ArrayRule, path Path) error {
	items, ok := asArray(value)
	if !ok {
		return NewStructuralError(path, "Field \"%s\" should be an array", name)
	}
	for i, item := range items {
		if err := validateValue(name, item, rule.Element, path.Index(i)); err != nil {
			return err
		}
	}
	return nil
}

// validateObject walks the declared fields in order.
//
// A missing required field ends the walk at once. Other field failures are
// collected and only the first one is returned once every field has been
// visited. A dependency failure, whether raised here or by a nested rule,
// is returned immediately.
func validateObject(name string, value interface{}, rule *ObjectRule, path Path) error {
	obj, ok := asObject(value)
	if !ok {
		return NewStructuralError(path, "Field \"%s\" should be an object", name)
	}

	var errs []error
	for _, field := range rule.Fields {
		fieldPath := path.Field(field.Name)
		fieldValue, present := obj[field.Name]
		if !present {
			if field.Rule.IsRequired() {
				return NewStructuralError(fieldPath, "Field \"%s\" is required", field.Name)
			}
			continue
		}

		if err := validateValue(field.Name, fieldValue, field.Rule, fieldPath); err != nil {
			if IsDependencyError(err) {
				return err
			}
			errs = append(errs, err)
			continue
		}

		if err := checkDependencies(field.Name, field.Rule.Dependencies(), obj, path); err != nil {
			return err
		}
	}

	// TODO: report every collected error instead of the first once the CLI
	// can render a list of defects.
	if len(errs) > 0 {
		return errs[0]
	}

	for _, v := range rule.Validators {
		if err := v.Validate(name, value, path); err != nil {
			return err
		}
	}
	return nil
}

// validateUnion tries each alternative in order and succeeds on the first match.
// A dependency failure in any alternative is final.
func validateUnion(name string, value interface{}, rule *UnionRule, path Path) error {
	failures := make([]error, 0, len(rule.Alternatives))
	for _, alt := range rule.Alternatives {
		err := validateObject(name, value, alt, path)
		if err == nil {
			return nil
		}
		if IsDependencyError(err) {
			return err
		}
		failures = append(failures, err)
	}
	return newUnionError(failures)
}

// checkDependencies runs the dependency validators of a field against the
// sibling values they name. Absent siblings are checked as nil.
func checkDependencies(field string, deps []Dependency, obj map[string]interface{}, parent Path) error {
	for _, dep := range deps {
		siblingPath := parent.Field(dep.Field)
		siblingValue := obj[dep.Field]
		for _, v := range dep.Validators {
			if err := v.Validate(dep.Field, siblingValue, siblingPath); err != nil {
				return newDependencyError(field, dep.Field, siblingPath, err)
			}
		}
	}
	return nil
}

func hasType(value interface{}, t PrimitiveType) bool {
	switch t {
	case TypeString:
		_, ok := value.(string)
		return ok
	case TypeNumber:
		_, ok := toFloat(value)
		return ok
	case TypeBoolean:
		_, ok := value.(bool)
		return ok
	default:
		return false
	}
}

func toFloat(value interface{}) (float64, bool) {
	switch n := value.(type) {
	case float64:
		return n, true
	case float32:
		return float64(n), true
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// asObject accepts the mapping shapes produced by encoding/json and yaml.v3.
func asObject(value interface{}) (map[string]interface{}, bool) {
	switch m := value.(type) {
	case map[string]interface{}:
		return m, true
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(m))
		for k, v := range m {
			key, ok := k.(string)
			if !ok {
				return nil, false
			}
			out[key] = v
		}
		return out, true
	default:
		return nil, false
	}
}

func asArray(value interface{}) ([]interface{}, bool) {
	switch a := value.(type) {
	case []interface{}:
		return a, true
	case []map[string]interface{}:
		out := make([]interface{}, len(a))
		for i := range a {
			out[i] = a[i]
		}
		return out, true
	case []string:
		out := make([]interface{}, len(a))
		for i := range a {
			out[i] = a[i]
		}
		return out, true
	default:
		return nil, false
	}
}

func sortedKeys(m map[string]interface{}) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
