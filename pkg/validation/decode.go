package validation

import (
	"encoding/json"
	"fmt"
)

// ValidateInto validates value against rule and decodes it into T.
//
// Decoding goes through JSON, so T's fields are matched by their json tags.
// Keys not declared in T are dropped.
func ValidateInto[T any](value interface{}, rule Rule) (T, error) {
	var out T
	if _, err := Validate(value, rule); err != nil {
		return out, err
	}
	data, err := json.Marshal(normalize(value))
	if err != nil {
		return out, fmt.Errorf("failed to encode validated value: %w", err)
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return out, fmt.Errorf("failed to decode validated value into %T: %w", out, err)
	}
	return out, nil
}

// normalize rewrites map[interface{}]interface{} nodes so encoding/json accepts them.
func normalize(value interface{}) interface{} {
	switch v := value.(type) {
	case map[interface{}]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			out[fmt.Sprint(key)] = normalize(item)
		}
		return out
	case map[string]interface{}:
		out := make(map[string]interface{}, len(v))
		for key, item := range v {
			out[key] = normalize(item)
		}
		return out
	case []interface{}:
		out := make([]interface{}, len(v))
		for i, item := range v {
			out[i] = normalize(item)
		}
		return out
	default:
		return value
	}
}
