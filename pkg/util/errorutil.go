package util

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/jackc/pgx/v5"
)

// DomainError standardizes application errors.
type DomainError struct {
	Code       string
	Message    string
	HTTPStatus int
	Details    map[string]any
	Err        error
}

func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

func (e *DomainError) Unwrap() error {
	return e.Err
}

// NewDomainError constructs a DomainError.
func NewDomainError(code, message string, status int, details map[string]any) *DomainError {
	return &DomainError{Code: code, Message: message, HTTPStatus: status, Details: details}
}

// NewValidationError flags a missing or invalid required field. Recoverable:
// intake routes the ticket to NEEDS_INFO instead of failing the item.
func NewValidationError(message string, details map[string]any) error {
	return NewDomainError("VALIDATION_FAILED", message, http.StatusUnprocessableEntity, details)
}

// NewInvalidTransition rejects a state change outside the transition table.
// The ticket is left untouched; the requested change is never coerced.
func NewInvalidTransition(from, to string) error {
	return NewDomainError("INVALID_TRANSITION",
		fmt.Sprintf("transition %s -> %s is not allowed", from, to),
		http.StatusConflict,
		map[string]any{"from": from, "to": to})
}

// NewResolutionAmbiguous records that the classification gateway was
// unavailable during a continuation check. The resolver fails open to a new
// ticket flagged for review; this error is logged, never fatal.
func NewResolutionAmbiguous(err error) error {
	return &DomainError{
		Code:       "RESOLUTION_AMBIGUOUS",
		Message:    "continuation check unavailable, defaulting to new ticket",
		HTTPStatus: http.StatusAccepted,
		Err:        err,
	}
}

// NewStorageError wraps a persistence failure. The operation aborts with no
// partial commit.
func NewStorageError(err error) error {
	return &DomainError{
		Code:       "STORAGE_FAILED",
		Message:    "storage operation failed",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// NewIdentityConflict flags a handle resolving to more than one reporter.
// Merging is a manual operation; the conflict is surfaced, not auto-resolved.
func NewIdentityConflict(handle string, details map[string]any) error {
	return NewDomainError("IDENTITY_CONFLICT",
		fmt.Sprintf("handle %s resolves to multiple reporters", handle),
		http.StatusConflict, details)
}

func NewNotFound(resource string, details map[string]any) error {
	if details == nil {
		details = map[string]any{}
	}
	return &DomainError{
		Code:       "NOT_FOUND",
		Message:    fmt.Sprintf("%s not found", resource),
		HTTPStatus: http.StatusNotFound,
		Details:    details,
	}
}

func NewConflict(message string, details map[string]any) error {
	return NewDomainError("CONFLICT", message, http.StatusConflict, details)
}

func NewInternalError(err error) error {
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// ToDomainError converts generic errors to DomainError.
func ToDomainError(err error) *DomainError {
	if err == nil {
		return nil
	}
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr
	}
	if errors.Is(err, pgx.ErrNoRows) {
		if de, ok := NewNotFound("resource", nil).(*DomainError); ok {
			return de
		}
	}
	if de, ok := NewStorageError(err).(*DomainError); ok {
		return de
	}
	return &DomainError{
		Code:       "INTERNAL_ERROR",
		Message:    "internal server error",
		HTTPStatus: http.StatusInternalServerError,
		Err:        err,
	}
}

// IsCode reports whether err carries the given domain error code.
func IsCode(err error, code string) bool {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code == code
	}
	return false
}
