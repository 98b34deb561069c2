package policy

import (
	"fmt"
	"time"
)

// Severity represents the severity level of a policy violation.
type Severity string

const (
	// SeverityInfo is for informational messages.
	SeverityInfo Severity = "info"

	// SeverityWarning is for findings that should be reviewed.
	SeverityWarning Severity = "warning"

	// SeverityError is for findings that fail validation by default.
	SeverityError Severity = "error"

	// SeverityCritical is for findings that always fail validation.
	SeverityCritical Severity = "critical"
)

var severityRank = map[Severity]int{
	SeverityInfo:     0,
	SeverityWarning:  1,
	SeverityError:    2,
	SeverityCritical: 3,
}

// ParseSeverity converts a severity name.
func ParseSeverity(s string) (Severity, error) {
	sev := Severity(s)
	if _, ok := severityRank[sev]; !ok {
		return "", fmt.Errorf("unknown severity %q (expected info, warning, error or critical)", s)
	}
	return sev, nil
}

// AtLeast reports whether s is as severe as other or more.
// Unknown severities rank as warnings.
func (s Severity) AtLeast(other Severity) bool {
	return rank(s) >= rank(other)
}

func rank(s Severity) int {
	if r, ok := severityRank[s]; ok {
		return r
	}
	return severityRank[SeverityWarning]
}

// Policy represents a policy rule with its Rego code.
type Policy struct {
	// Name is the unique name of the policy.
	Name string `json:"name"`

	// Description provides a human-readable description.
	Description string `json:"description"`

	// Rego contains the Rego policy code. Its deny set is evaluated.
	Rego string `json:"rego"`

	// Severity is the default severity for violations.
	Severity Severity `json:"severity"`

	// Enabled indicates if the policy is active.
	Enabled bool `json:"enabled"`

	// Builtin marks policies shipped with bundlectl.
	Builtin bool `json:"builtin,omitempty"`

	// Tags are labels for organizing policies.
	Tags []string `json:"tags,omitempty"`

	// Metadata contains additional policy metadata, such as its source file.
	Metadata map[string]interface{} `json:"metadata,omitempty"`
}

// Violation is a single deny result.
type Violation struct {
	// Policy is the name of the policy that produced the violation.
	Policy string `json:"policy"`

	// Message is a human-readable violation message.
	Message string `json:"message"`

	// Severity is the violation severity level.
	Severity Severity `json:"severity"`

	// Path locates the offending descriptor value, e.g. "$.microservices[0]".
	Path string `json:"path,omitempty"`

	// Details holds any other keys of the deny object.
	Details map[string]interface{} `json:"details,omitempty"`
}

// Result is the outcome of evaluating every enabled policy against a descriptor.
type Result struct {
	// Allowed is false when a violation reaches the fail-on severity.
	Allowed bool `json:"allowed"`

	// Violations are findings at or above the fail-on severity.
	Violations []Violation `json:"violations,omitempty"`

	// Warnings are findings below the fail-on severity.
	Warnings []Violation `json:"warnings,omitempty"`

	// Errors lists policies that could not be evaluated.
	Errors []string `json:"errors,omitempty"`

	// EvaluatedPolicies lists the names of policies that were evaluated.
	EvaluatedPolicies []string `json:"evaluated_policies"`

	// EvaluatedAt is when the evaluation started.
	EvaluatedAt time.Time `json:"evaluated_at"`

	// Duration is how long the evaluation took.
	Duration time.Duration `json:"duration"`
}

// Input is the document policies see as `input`.
type Input struct {
	// Descriptor is the parsed bundle descriptor.
	Descriptor interface{} `json:"descriptor"`

	// Context describes the evaluation.
	Context *Context `json:"context"`
}

// Context provides context information for policy evaluation.
type Context struct {
	// DescriptorVersion is the rule tree version the descriptor was validated with.
	DescriptorVersion string `json:"descriptor_version,omitempty"`

	// Source is the descriptor file path.
	Source string `json:"source,omitempty"`

	// Operation is the command being run, e.g. "validate" or "pack".
	Operation string `json:"operation,omitempty"`

	// Timestamp is when the evaluation is occurring.
	Timestamp time.Time `json:"timestamp"`
}
