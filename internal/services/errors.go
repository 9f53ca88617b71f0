// Package services holds the transport-agnostic approval engine. Every
// operation returns typed errors from the taxonomy below; transports map
// them onto their own status codes.
package services

import (
	"fmt"

	"groupdesk/backend/pkg/models"
)

// ValidationError reports malformed caller input. FieldErrors is populated
// for submission failures; Message covers route/template definition faults.
type ValidationError struct {
	Message     string
	FieldErrors []models.FieldError
}

func (e *ValidationError) Error() string {
	if len(e.FieldErrors) > 0 {
		return fmt.Sprintf("validation failed: %d field error(s)", len(e.FieldErrors))
	}
	return "validation failed: " + e.Message
}

// NotFoundError reports a missing entity. Cross-tenant access produces the
// same error as a genuinely absent row.
type NotFoundError struct {
	Kind string
	ID   string
}

func (e *NotFoundError) Error() string {
	return e.Kind + " not found: " + e.ID
}

// ConflictError reports that the targeted state moved under a concurrent
// actor, or that a delete is blocked by live references. Safe to retry after
// re-reading current state; the engine never retries on its own.
type ConflictError struct {
	Message string
}

func (e *ConflictError) Error() string {
	return e.Message
}

// AuthorizationError reports a role mismatch on the current step.
type AuthorizationError struct {
	Message string
}

func (e *AuthorizationError) Error() string {
	return e.Message
}

// InvariantViolation reports a broken internal precondition the engine
// should itself have guaranteed. Callers treat it as a bug: surfaced as a
// generic failure, logged loudly, never expected in correct operation.
type InvariantViolation struct {
	Message string
}

func (e *InvariantViolation) Error() string {
	return "invariant violation: " + e.Message
}
