package commands

import (
	"errors"
	"fmt"
)

// ErrorClass classifies a command failure for the process exit code.
type ErrorClass string

const (
	// ClassGeneral covers I/O, configuration and evaluation failures.
	ClassGeneral ErrorClass = "general"

	// ClassInvalid means the descriptor failed its rule tree or could not be parsed.
	ClassInvalid ErrorClass = "invalid"

	// ClassViolations means the descriptor was valid but policies or checks
	// reported blocking violations.
	ClassViolations ErrorClass = "violations"
)

// Exit codes returned by the bundlectl binary.
const (
	ExitOK         = 0
	ExitGeneral    = 1
	ExitInvalid    = 2
	ExitViolations = 3
)

// CommandError is a classified command failure.
type CommandError struct {
	Class   ErrorClass
	Message string
	Err     error
}

// Error implements the error interface.
func (e *CommandError) Error() string {
	switch {
	case e.Message != "" && e.Err != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	case e.Err != nil:
		return e.Err.Error()
	default:
		return e.Message
	}
}

// Unwrap returns the underlying error for error chain inspection.
func (e *CommandError) Unwrap() error {
	return e.Err
}

// ExitCode maps an error returned by Execute to a process exit code.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var ce *CommandError
	if !errors.As(err, &ce) {
		return ExitGeneral
	}
	switch ce.Class {
	case ClassInvalid:
		return ExitInvalid
	case ClassViolations:
		return ExitViolations
	default:
		return ExitGeneral
	}
}

// NewInvalidError wraps a descriptor load or validation failure.
func NewInvalidError(err error) *CommandError {
	return &CommandError{Class: ClassInvalid, Err: err}
}

// NewViolationsError reports blocking policy and check findings.
func NewViolationsError(policies, checks int) *CommandError {
	return &CommandError{
		Class:   ClassViolations,
		Message: fmt.Sprintf("descriptor has %d policy and %d check violations", policies, checks),
	}
}

// IsInvalid reports whether err is a descriptor validation failure.
func IsInvalid(err error) bool {
	var ce *CommandError
	return errors.As(err, &ce) && ce.Class == ClassInvalid
}
