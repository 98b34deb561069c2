package validation

import (
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Validator is an extra check run on a value after its type check passed,
// or on a sibling value when used in a Dependency.
//
// A validator returns nil when the value is acceptable and otherwise a
// *StructuralError built with the path it was given.
type Validator interface {
	Validate(field string, value interface{}, path Path) error
}

// ValidatorFunc adapts an ordinary function to the Validator interface.
type ValidatorFunc func(field string, value interface{}, path Path) error

// Validate calls f(field, value, path).
func (f ValidatorFunc) Validate(field string, value interface{}, path Path) error {
	return f(field, value, path)
}

// PatternValidator requires a string value to match a regular expression.
type PatternValidator struct {
	Regexp *regexp.Regexp

	// Hint, when set, replaces the raw expression in the error message.
	Hint string
}

// Pattern returns a PatternValidator for expr. It panics if expr does not compile.
func Pattern(expr string) *PatternValidator {
	return &PatternValidator{Regexp: regexp.MustCompile(expr)}
}

// WithHint returns a copy of the validator reporting hint instead of the expression.
func (v *PatternValidator) WithHint(hint string) *PatternValidator {
	c := *v
	c.Hint = hint
	return &c
}

// Validate implements Validator.
func (v *PatternValidator) Validate(field string, value interface{}, path Path) error {
	s, ok := value.(string)
	if ok && v.Regexp.MatchString(s) {
		return nil
	}
	if v.Hint != "" {
		return NewStructuralError(path, "Field \"%s\" is not valid. %s", field, v.Hint)
	}
	return NewStructuralError(path, "Field \"%s\" is not valid. Should match regex \"%s\"", field, v.Regexp.String())
}

// EnumValidator requires a value to be one of a fixed set of strings.
type EnumValidator struct {
	Values []string
}

// OneOf returns an EnumValidator accepting exactly the given values.
func OneOf(values ...string) *EnumValidator {
	return &EnumValidator{Values: values}
}

// Validate implements Validator.
func (v *EnumValidator) Validate(field string, value interface{}, path Path) error {
	if s, ok := value.(string); ok {
		for _, allowed := range v.Values {
			if s == allowed {
				return nil
			}
		}
	}
	return NewStructuralError(path, "Field \"%s\" is not valid. Should be one of: %s",
		field, strings.Join(v.Values, ", "))
}

// LengthValidator bounds the length of a string in runes.
// A zero Max means no upper bound.
type LengthValidator struct {
	Min int
	Max int
}

// MaxLength returns a validator rejecting strings longer than max runes.
func MaxLength(max int) *LengthValidator {
	return &LengthValidator{Max: max}
}

// MinLength returns a validator rejecting strings shorter than min runes.
func MinLength(min int) *LengthValidator {
	return &LengthValidator{Min: min}
}

// Validate implements Validator.
func (v *LengthValidator) Validate(field string, value interface{}, path Path) error {
	s, ok := value.(string)
	if !ok {
		return NewStructuralError(path, "Field \"%s\" is not valid. Should be a string", field)
	}
	n := utf8.RuneCountInString(s)
	if v.Max > 0 && n > v.Max {
		return NewStructuralError(path, "Field \"%s\" is too long. Maximum length is %d", field, v.Max)
	}
	if n < v.Min {
		return NewStructuralError(path, "Field \"%s\" is too short. Minimum length is %d", field, v.Min)
	}
	return nil
}

// StringMapValidator requires an object whose values are all strings,
// such as a map of locale to title.
type StringMapValidator struct{}

// StringMap returns a StringMapValidator.
func StringMap() *StringMapValidator {
	return &StringMapValidator{}
}

// Validate implements Validator.
func (v *StringMapValidator) Validate(field string, value interface{}, path Path) error {
	obj, ok := asObject(value)
	if !ok {
		return NewStructuralError(path, "Field \"%s\" is not valid. Should be an object with string values", field)
	}
	for _, key := range sortedKeys(obj) {
		if _, ok := obj[key].(string); !ok {
			return NewStructuralError(path.Field(key), "Field \"%s\" is not valid. Should be a string", key)
		}
	}
	return nil
}

// EqualsValidator requires a value to equal a constant. It is mostly used in
// dependencies, e.g. "bundle" depends on "type" being "external".
type EqualsValidator struct {
	Value interface{}
}

// Equals returns an EqualsValidator for want.
func Equals(want interface{}) *EqualsValidator {
	return &EqualsValidator{Value: want}
}

// Validate implements Validator.
func (v *EqualsValidator) Validate(field string, value interface{}, path Path) error {
	if equalValues(value, v.Value) {
		return nil
	}
	return NewStructuralError(path, "Field \"%s\" is not valid. Should be equal to %s", field, formatConst(v.Value))
}

func equalValues(a, b interface{}) bool {
	if fa, ok := toFloat(a); ok {
		fb, ok := toFloat(b)
		return ok && fa == fb
	}
	return reflect.DeepEqual(a, b)
}

func formatConst(v interface{}) string {
	if s, ok := v.(string); ok {
		return "\"" + s + "\""
	}
	return fmt.Sprintf("%v", v)
}
