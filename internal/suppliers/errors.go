package suppliers

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrNotFound indicates a supplier lookup missed within the tenant.
	ErrNotFound = errors.New("supplier not found")
	// ErrSlugExhausted is returned when slug generation retries ran out.
	ErrSlugExhausted = errors.New("slug generation retries exhausted")
	// ErrMissingIdentifier signals an observation with no usable identifier
	// and no sufficient fallback signal.
	ErrMissingIdentifier = errors.New("no usable supplier identifier")
)

// StructuralValidationError reports every violated field of an ingestion
// request. It is always blocking.
type StructuralValidationError struct {
	Violations []FieldViolation
}

// FieldViolation describes a single failed field constraint.
type FieldViolation struct {
	Field  string `json:"field"`
	Reason string `json:"reason"`
}

func (e *StructuralValidationError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.Field+": "+v.Reason)
	}
	return "invalid ingestion request: " + strings.Join(parts, "; ")
}

// DuplicateIdentifierError is raised when a create collides with an existing
// supplier on an identifier column other than the slug.
type DuplicateIdentifierError struct {
	Field string
	Value string
}

func (e *DuplicateIdentifierError) Error() string {
	return fmt.Sprintf("supplier with %s %q already exists", e.Field, e.Value)
}
