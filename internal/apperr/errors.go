// Package apperr defines the error taxonomy shared across Ansuz components.
package apperr

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrNotFound      = errors.New("not found")
	ErrConflict      = errors.New("conflict")
	ErrAlreadyExists = errors.New("already exists")
)

// SchemaResolutionError reports an unresolvable type path or a missing or
// unrecognized discriminator value.
type SchemaResolutionError struct {
	TypePath string
	Reason   string
}

func (e *SchemaResolutionError) Error() string {
	if e.TypePath == "" {
		return fmt.Sprintf("schema: %s", e.Reason)
	}
	return fmt.Sprintf("schema: type %q: %s", e.TypePath, e.Reason)
}

// Unwrap lets callers treat any resolution failure as a not-found.
func (e *SchemaResolutionError) Unwrap() error { return ErrNotFound }

// Ownership violation kinds.
const (
	ViolationAlreadyOwned     = "already_owned"
	ViolationReferencingOwned = "referencing_owned"
)

// OwnershipViolation reports an attempt to reference or claim a record in a
// way that breaks exclusive custody.
type OwnershipViolation struct {
	Kind  string // already_owned or referencing_owned
	Path  string // the owned record
	Owner string // its actual owner
	Field string // owning field on the owner, when known
}

func (e *OwnershipViolation) Error() string {
	switch e.Kind {
	case ViolationAlreadyOwned:
		return fmt.Sprintf("ownership: %s is already owned by %s", e.Path, e.Owner)
	case ViolationReferencingOwned:
		return fmt.Sprintf("ownership: %s is owned by %s and cannot be referenced elsewhere", e.Path, e.Owner)
	default:
		return fmt.Sprintf("ownership: %s violation on %s", e.Kind, e.Path)
	}
}

// WhereValidationError aggregates problems found in where-expressions:
// syntax errors or references to fields a type does not have. Problems are
// rendered in a stable order.
type WhereValidationError struct {
	Problems []string
}

func (e *WhereValidationError) Error() string {
	if len(e.Problems) == 0 {
		return "where: invalid expression"
	}
	return "where: " + strings.Join(e.Problems, "; ")
}

// TargetingError reports a selection that names no records explicitly and
// carries no "all" override.
type TargetingError struct {
	Reason string
}

func (e *TargetingError) Error() string {
	return "targeting: " + e.Reason
}
