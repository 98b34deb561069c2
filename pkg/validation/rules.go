package validation

import "fmt"

// RuleKind identifies the variant of a Rule.
type RuleKind int

const (
	// KindPrimitive is a string, number or boolean rule.
	KindPrimitive RuleKind = iota

	// KindArray is a rule whose elements all follow one element rule.
	KindArray

	// KindObject is a rule with an ordered set of named fields.
	KindObject

	// KindUnion is an ordered list of alternative object rules.
	KindUnion
)

// String returns the lowercase name of the kind.
func (k RuleKind) String() string {
	switch k {
	case KindPrimitive:
		return "primitive"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	case KindUnion:
		return "union"
	default:
		return fmt.Sprintf("RuleKind(%d)", int(k))
	}
}

// PrimitiveType is the declared type of a primitive rule.
type PrimitiveType string

const (
	// TypeString matches Go strings.
	TypeString PrimitiveType = "string"

	// TypeNumber matches every Go integer and float kind and json.Number.
	TypeNumber PrimitiveType = "number"

	// TypeBoolean matches Go bools.
	TypeBoolean PrimitiveType = "boolean"
)

// Rule is a node of a declarative constraint tree.
//
// The set of implementations is closed: *PrimitiveRule, *ArrayRule,
// *ObjectRule and *UnionRule. Rules are immutable once built and may be
// shared between goroutines.
type Rule interface {
	// Kind returns the variant of the rule.
	Kind() RuleKind

	// IsRequired reports whether the value may be absent from its parent object.
	IsRequired() bool

	// Dependencies returns the checks run against sibling fields once the
	// value itself has passed validation.
	Dependencies() []Dependency

	sealed()
}

// Dependency is a set of validators applied to a sibling field.
type Dependency struct {
	// Field is the sibling field the validators inspect.
	Field string

	// Validators run in order against the sibling's value.
	Validators []Validator
}

// Field is a named entry of an object rule.
type Field struct {
	Name string
	Rule Rule
}

// F is shorthand for Field{Name: name, Rule: rule}.
func F(name string, rule Rule) Field {
	return Field{Name: name, Rule: rule}
}

// PrimitiveRule constrains a string, number or boolean value.
type PrimitiveRule struct {
	Required   bool
	Type       PrimitiveType
	Validators []Validator
	DependsOn  []Dependency
}

// ArrayRule constrains a sequence whose elements all follow Element.
// Element must be a *PrimitiveRule, *ObjectRule or *UnionRule.
type ArrayRule struct {
	Required  bool
	Element   Rule
	DependsOn []Dependency
}

// ObjectRule constrains a mapping with an ordered list of fields.
// Keys that are not declared are ignored.
type ObjectRule struct {
	Required   bool
	Fields     []Field
	Validators []Validator
	DependsOn  []Dependency
}

// UnionRule accepts a value matching any one of its alternatives,
// tried in declaration order.
type UnionRule struct {
	Required     bool
	Alternatives []*ObjectRule
	DependsOn    []Dependency
}

func (*PrimitiveRule) Kind() RuleKind { return KindPrimitive }
func (*ArrayRule) Kind() RuleKind     { return KindArray }
func (*ObjectRule) Kind() RuleKind    { return KindObject }
func (*UnionRule) Kind() RuleKind     { return KindUnion }

func (r *PrimitiveRule) IsRequired() bool { return r.Required }
func (r *ArrayRule) IsRequired() bool     { return r.Required }
func (r *ObjectRule) IsRequired() bool    { return r.Required }
func (r *UnionRule) IsRequired() bool     { return r.Required }

func (r *PrimitiveRule) Dependencies() []Dependency { return r.DependsOn }
func (r *ArrayRule) Dependencies() []Dependency     { return r.DependsOn }
func (r *ObjectRule) Dependencies() []Dependency    { return r.DependsOn }
func (r *UnionRule) Dependencies() []Dependency     { return r.DependsOn }

func (*PrimitiveRule) sealed() {}
func (*ArrayRule) sealed()     {}
func (*ObjectRule) sealed()    {}
func (*UnionRule) sealed()     {}

// String returns a required string rule.
func String(validators ...Validator) *PrimitiveRule {
	return &PrimitiveRule{Required: true, Type: TypeString, Validators: validators}
}

// Number returns a required number rule.
func Number(validators ...Validator) *PrimitiveRule {
	return &PrimitiveRule{Required: true, Type: TypeNumber, Validators: validators}
}

// Boolean returns a required boolean rule.
func Boolean(validators ...Validator) *PrimitiveRule {
	return &PrimitiveRule{Required: true, Type: TypeBoolean, Validators: validators}
}

// Array returns a required array rule. It panics if element is an array rule.
func Array(element Rule) *ArrayRule {
	if element == nil {
		panic("validation: array element rule must not be nil")
	}
	if element.Kind() == KindArray {
		panic("validation: array element rule must be primitive, object or union")
	}
	return &ArrayRule{Required: true, Element: element}
}

// Object returns a required object rule. It panics on duplicate field names.
func Object(fields ...Field) *ObjectRule {
	seen := make(map[string]struct{}, len(fields))
	for _, f := range fields {
		if f.Rule == nil {
			panic(fmt.Sprintf("validation: field %q has no rule", f.Name))
		}
		if _, dup := seen[f.Name]; dup {
			panic(fmt.Sprintf("validation: duplicate field %q", f.Name))
		}
		seen[f.Name] = struct{}{}
	}
	return &ObjectRule{Required: true, Fields: fields}
}

// Union returns a required union rule. It panics when no alternative is given.
func Union(alternatives ...*ObjectRule) *UnionRule {
	if len(alternatives) == 0 {
		panic("validation: union needs at least one alternative")
	}
	return &UnionRule{Required: true, Alternatives: alternatives}
}

// Optional returns a copy of the rule that may be absent.
func (r *PrimitiveRule) Optional() *PrimitiveRule {
	c := *r
	c.Required = false
	return &c
}

// With returns a copy of the rule with extra validators appended.
func (r *PrimitiveRule) With(validators ...Validator) *PrimitiveRule {
	c := *r
	c.Validators = appendValidators(r.Validators, validators)
	return &c
}

// DependsOnField returns a copy of the rule with a sibling dependency appended.
func (r *PrimitiveRule) DependsOnField(field string, validators ...Validator) *PrimitiveRule {
	c := *r
	c.DependsOn = appendDependency(r.DependsOn, field, validators)
	return &c
}

// Optional returns a copy of the rule that may be absent.
func (r *ArrayRule) Optional() *ArrayRule {
	c := *r
	c.Required = false
	return &c
}

// DependsOnField returns a copy of the rule with a sibling dependency appended.
func (r *ArrayRule) DependsOnField(field string, validators ...Validator) *ArrayRule {
	c := *r
	c.DependsOn = appendDependency(r.DependsOn, field, validators)
	return &c
}

// Optional returns a copy of the rule that may be absent.
func (r *ObjectRule) Optional() *ObjectRule {
	c := *r
	c.Required = false
	return &c
}

// With returns a copy of the rule with extra object-level validators appended.
func (r *ObjectRule) With(validators ...Validator) *ObjectRule {
	c := *r
	c.Validators = appendValidators(r.Validators, validators)
	return &c
}

// DependsOnField returns a copy of the rule with a sibling dependency appended.
func (r *ObjectRule) DependsOnField(field string, validators ...Validator) *ObjectRule {
	c := *r
	c.DependsOn = appendDependency(r.DependsOn, field, validators)
	return &c
}

// Extend returns a copy of the object rule with more fields appended.
// Fields whose names already exist replace the earlier declaration in place.
func (r *ObjectRule) Extend(fields ...Field) *ObjectRule {
	merged := make([]Field, len(r.Fields))
	copy(merged, r.Fields)
	for _, f := range fields {
		replaced := false
		for i := range merged {
			if merged[i].Name == f.Name {
				merged[i] = f
				replaced = true
				break
			}
		}
		if !replaced {
			merged = append(merged, f)
		}
	}
	c := Object(merged...)
	c.Required = r.Required
	c.Validators = r.Validators
	c.DependsOn = r.DependsOn
	return c
}

// Lookup returns the rule declared for a field name.
func (r *ObjectRule) Lookup(name string) (Rule, bool) {
	for _, f := range r.Fields {
		if f.Name == name {
			return f.Rule, true
		}
	}
	return nil, false
}

// Optional returns a copy of the rule that may be absent.
func (r *UnionRule) Optional() *UnionRule {
	c := *r
	c.Required = false
	return &c
}

// DependsOnField returns a copy of the rule with a sibling dependency appended.
func (r *UnionRule) DependsOnField(field string, validators ...Validator) *UnionRule {
	c := *r
	c.DependsOn = appendDependency(r.DependsOn, field, validators)
	return &c
}

func appendValidators(base, extra []Validator) []Validator {
	out := make([]Validator, 0, len(base)+len(extra))
	out = append(out, base...)
	return append(out, extra...)
}

func appendDependency(base []Dependency, field string, validators []Validator) []Dependency {
	out := make([]Dependency, 0, len(base)+1)
	out = append(out, base...)
	return append(out, Dependency{Field: field, Validators: validators})
}
