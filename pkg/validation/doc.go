// Package validation checks parsed descriptor documents against declarative
// rule trees.
//
// # Rules
//
// A rule tree is built from four variants:
//
//   - *PrimitiveRule: a string, number or boolean, plus extra validators
//   - *ArrayRule: a sequence whose elements follow one element rule
//   - *ObjectRule: an ordered list of named fields
//   - *UnionRule: ordered alternative object rules, the first match wins
//
// Any rule may declare dependencies: validators run against a sibling field
// once the rule's own value has passed.
//
//	claim := validation.Object(
//	    validation.F("type", validation.String(validation.OneOf("internal"))),
//	    validation.F("bundle", validation.String().Optional().
//	        DependsOnField("type", validation.Equals("external"))),
//	)
//
// # Errors
//
// Validate returns one of three error types:
//
//   - *StructuralError: a single defect with its path, e.g.
//     `Field "name" is required` at `$.microservices[0].name`
//   - *DependencyError: a field is present but its sibling fails the
//     dependency check; it is returned immediately and stops union search
//   - *UnionError: no alternative of a union matched; lists each
//     alternative's failure once
//
// Within one object a missing required field is reported at once. Other
// field failures are gathered and only the first declared one is returned.
//
// # Concurrency
//
// Rules are immutable after construction and Validate keeps no state, so a
// rule tree can be shared by any number of goroutines.
package validation
