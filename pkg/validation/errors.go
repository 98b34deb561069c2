package validation

import (
	"errors"
	"fmt"
	"strings"
)

// unionHeader opens the message of a UnionError.
const unionHeader = "Fix one of the following errors:"

// StructuralError is a validation failure tied to one location in the value tree.
type StructuralError struct {
	// Message describes the defect, e.g. `Field "name" is required`.
	Message string

	// Path locates the offending value.
	Path Path
}

// NewStructuralError creates a StructuralError with a formatted message.
// Validators use it to report failures at the path they were given.
func NewStructuralError(path Path, format string, args ...interface{}) *StructuralError {
	return &StructuralError{
		Message: fmt.Sprintf(format, args...),
		Path:    path,
	}
}

// Error implements the error interface.
func (e *StructuralError) Error() string {
	return e.Message + "\nPosition: " + e.Path.String()
}

// DependencyError reports that a present field is inconsistent with a sibling.
//
// Unlike a StructuralError it is never collected with sibling errors: the
// engine returns it at once, and a union does not try further alternatives.
type DependencyError struct {
	// Field is the field that declared the dependency.
	Field string

	// DependsOn is the sibling field whose check failed.
	DependsOn string

	// Message is the wrapped, indented description of the failure.
	Message string

	// Path locates the sibling value that failed the check.
	Path Path

	// Cause is the error returned by the failing validator.
	Cause error
}

func newDependencyError(field, dependsOn string, siblingPath Path, cause error) *DependencyError {
	inner := cause.Error()
	path := siblingPath
	var se *StructuralError
	if errors.As(cause, &se) {
		inner = se.Message
		path = se.Path
	}
	return &DependencyError{
		Field:     field,
		DependsOn: dependsOn,
		Message: fmt.Sprintf("Field \"%s\" depends on field \"%s\" with validation:\n%s",
			field, dependsOn, indent(inner, "    ")),
		Path:  path,
		Cause: cause,
	}
}

// Error implements the error interface.
func (e *DependencyError) Error() string {
	return e.Message + "\nPosition: " + e.Path.String()
}

// Unwrap returns the validator error that caused the dependency failure.
func (e *DependencyError) Unwrap() error {
	return e.Cause
}

// UnionError reports that a value matched none of the alternatives of a union.
// It carries no path: every alternative failed for its own reason.
type UnionError struct {
	// Alternatives holds the rendered failure of each alternative, in order,
	// with byte-identical messages listed once.
	Alternatives []string
}

func newUnionError(failures []error) *UnionError {
	seen := make(map[string]struct{}, len(failures))
	messages := make([]string, 0, len(failures))
	for _, err := range failures {
		msg := err.Error()
		if _, dup := seen[msg]; dup {
			continue
		}
		seen[msg] = struct{}{}
		messages = append(messages, msg)
	}
	return &UnionError{Alternatives: messages}
}

// Error implements the error interface.
func (e *UnionError) Error() string {
	var b strings.Builder
	b.WriteString(unionHeader)
	for _, msg := range e.Alternatives {
		b.WriteString("\n- ")
		b.WriteString(indent(msg, "  ")[2:])
	}
	return b.String()
}

// IsDependencyError reports whether err is or wraps a DependencyError.
func IsDependencyError(err error) bool {
	var de *DependencyError
	return errors.As(err, &de)
}

// IsUnionError reports whether err is or wraps a UnionError.
func IsUnionError(err error) bool {
	var ue *UnionError
	return errors.As(err, &ue)
}

// ErrorPath returns the location carried by a structural or dependency error.
// Union errors carry no location.
func ErrorPath(err error) (Path, bool) {
	var de *DependencyError
	if errors.As(err, &de) {
		return de.Path, true
	}
	var se *StructuralError
	if errors.As(err, &se) {
		return se.Path, true
	}
	return Path{}, false
}

// indent prefixes every line of s with prefix.
func indent(s, prefix string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		lines[i] = prefix + line
	}
	return strings.Join(lines, "\n")
}
