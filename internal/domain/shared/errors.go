// Package shared contains common domain types, errors and value objects
// that are used across all domain packages. Besides the standard library it
// only depends on github.com/google/uuid.
package shared

import (
	"errors"
	"fmt"
)

// Base domain errors that can be used for error checking with errors.Is().
var (
	// Validation errors (a single field fails its format or range constraint)
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid ID")
	ErrEmptyValue      = errors.New("value cannot be empty")
	ErrValueOutOfRange = errors.New("value out of range")
	ErrInvalidFormat   = errors.New("invalid format")

	// Invariant errors (valid-looking fields that disagree with each other)
	ErrInvariant = errors.New("invariant violation")

	// State errors
	ErrStateTransition = errors.New("invalid state transition")
	ErrExpired         = errors.New("expired")

	// Lookup errors
	ErrNotFound      = errors.New("not found")
	ErrAlreadyExists = errors.New("already exists")
)

// DomainError represents a domain-specific error with context.
type DomainError struct {
	Domain  string // e.g., "subject", "enrollment", "task"
	Op      string // Operation that failed, e.g., "New", "TransitionTo"
	Kind    error  // Base error type for errors.Is() checking
	Message string // Human-readable message
	Err     error  // Underlying error (optional)
}

// Error implements the error interface.
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s.%s: %s: %v", e.Domain, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s.%s: %s", e.Domain, e.Op, e.Message)
}

// Unwrap returns the underlying error for errors.Unwrap().
func (e *DomainError) Unwrap() error {
	if e.Err != nil {
		return e.Err
	}
	return e.Kind
}

// Is implements errors.Is() matching.
func (e *DomainError) Is(target error) bool {
	if e.Kind != nil && errors.Is(e.Kind, target) {
		return true
	}
	if e.Err != nil && errors.Is(e.Err, target) {
		return true
	}
	return false
}

// NewDomainError creates a new domain error.
func NewDomainError(domain, op string, kind error, message string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
	}
}

// WrapError wraps an existing error with domain context.
func WrapError(domain, op string, kind error, message string, err error) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: message,
		Err:     err,
	}
}

// FieldError builds a validation error for a single named field.
func FieldError(domain, op, field string, kind error, reason string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    kind,
		Message: fmt.Sprintf("%s: %s", field, reason),
		Err:     ErrValidation,
	}
}

// InvariantError builds a cross-field invariant violation.
func InvariantError(domain, op, rule string) *DomainError {
	return &DomainError{
		Domain:  domain,
		Op:      op,
		Kind:    ErrInvariant,
		Message: rule,
	}
}

// IsValidation checks if the error is a field validation error.
func IsValidation(err error) bool {
	return errors.Is(err, ErrValidation) ||
		errors.Is(err, ErrInvalidID) ||
		errors.Is(err, ErrEmptyValue) ||
		errors.Is(err, ErrValueOutOfRange) ||
		errors.Is(err, ErrInvalidFormat)
}

// IsInvariantViolation checks if the error is a cross-field invariant violation.
func IsInvariantViolation(err error) bool {
	return errors.Is(err, ErrInvariant)
}

// IsStateTransition checks if the error is a rejected state transition.
func IsStateTransition(err error) bool {
	return errors.Is(err, ErrStateTransition)
}

// IsNotFound checks if the error reports a missing record.
func IsNotFound(err error) bool {
	return errors.Is(err, ErrNotFound)
}

// IsAlreadyExists checks if the error reports a conflicting record.
func IsAlreadyExists(err error) bool {
	return errors.Is(err, ErrAlreadyExists)
}
