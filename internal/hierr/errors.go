// Package hierr defines the error taxonomy shared across hierfit.
// Three kinds of failure exist: validation errors (bad shapes, lengths, or
// names at a call boundary), state errors (an operation attempted before its
// prerequisites are in place), and external errors (the sampler process
// failed; surfaced unchanged, never interpreted or retried).
package hierr

import (
	"fmt"
)

// ValidationError reports malformed input at a call boundary. Field names the
// offending argument or dataset field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

// Validationf builds a ValidationError with a formatted reason.
func Validationf(field, format string, args ...any) *ValidationError {
	return &ValidationError{Field: field, Reason: fmt.Sprintf(format, args...)}
}

// StateError reports an operation attempted against incomplete state, such as
// sampling a skeleton before its prerequisites are set or composing a term
// whose parameter is absent. Item names the missing or offending element
// (e.g. "unit/sd", "cluster_re").
type StateError struct {
	Item   string
	Reason string
}

func (e *StateError) Error() string {
	return fmt.Sprintf("%s: %s", e.Item, e.Reason)
}

// Missing builds the common "not set" StateError for a named item.
func Missing(item string) *StateError {
	return &StateError{Item: item, Reason: "required but not set"}
}

// Absent builds the StateError for a parameter requested during composition
// but not present in the parameter set.
func Absent(param string) *StateError {
	return &StateError{Item: param, Reason: "parameter not present in parameter set"}
}

// ExternalError wraps a failure from an external collaborator (the sampler
// process). The underlying error is preserved for errors.Is/As inspection.
type ExternalError struct {
	Op  string
	Err error
}

func (e *ExternalError) Error() string {
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *ExternalError) Unwrap() error { return e.Err }
