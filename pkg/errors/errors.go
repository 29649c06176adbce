package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness.
type Error struct {
	Code    string      `json:"code"`
	Message string      `json:"message"`
	Status  int         `json:"status"`
	Details interface{} `json:"details,omitempty"`
	Err     error       `json:"-"`
}

// WithDetails returns a copy carrying a structured payload, for clients
// that need more than the message (for example the empty slots blocking a
// publish).
func (e *Error) WithDetails(details interface{}) *Error {
	if e == nil {
		return nil
	}
	clone := *e
	clone.Details = details
	return &clone
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// StatusClientClosedRequest mirrors the nginx non-standard code used for
// cooperative cancellation.
const StatusClientClosedRequest = 499

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "invalid email or password")
	ErrInactiveAccount    = New("ACCOUNT_INACTIVE", http.StatusForbidden, "account is inactive")
	ErrNotFound           = New("NOT_FOUND", http.StatusNotFound, "resource not found")
	ErrForbidden          = New("FORBIDDEN", http.StatusForbidden, "forbidden")
	ErrUnauthorized       = New("UNAUTHORIZED", http.StatusUnauthorized, "unauthorized")
	ErrConflict           = New("CONFLICT", http.StatusConflict, "conflict")
	ErrValidation         = New("VALIDATION_ERROR", http.StatusBadRequest, "validation failed")
	ErrInternal           = New("INTERNAL_ERROR", http.StatusInternalServerError, "internal server error")
	ErrCancelled          = New("CANCELLED", StatusClientClosedRequest, "operation cancelled")
	ErrStateConflict      = New("STATE_CONFLICT", http.StatusConflict, "schedule state does not allow this operation")
	ErrCacheMiss          = New("CACHE_MISS", http.StatusNotFound, "cache miss")
)

// Assignment rule violations. Each maps to a message key the client
// localizes; Message carries the English fallback.
var (
	ErrPersonInactive           = New("PERSON_INACTIVE", http.StatusUnprocessableEntity, "person is inactive")
	ErrNotQualified             = New("NOT_QUALIFIED", http.StatusUnprocessableEntity, "person is not qualified for this job")
	ErrPersonUnavailable        = New("UNAVAILABLE", http.StatusUnprocessableEntity, "person is unavailable on this date")
	ErrExcludedFromJob          = New("EXCLUDED_FROM_JOB", http.StatusUnprocessableEntity, "person is excluded from this job")
	ErrExceedsConsecutiveWeeks  = New("EXCEEDS_CONSECUTIVE_WEEKS", http.StatusUnprocessableEntity, "person would exceed their consecutive week limit")
	ErrAlreadyAssignedThisMonth = New("ALREADY_ASSIGNED_THIS_MONTH", http.StatusUnprocessableEntity, "person already serves this job this month")
	ErrConsecutiveMonth         = New("CONSECUTIVE_MONTH_FORBIDDEN", http.StatusUnprocessableEntity, "person served this job last month")
	ErrDayExclusivity           = New("DAY_EXCLUSIVITY_VIOLATION", http.StatusUnprocessableEntity, "person already serves an exclusive job on this date")
	ErrSiblingSeparate          = New("SIBLING_SEPARATE_VIOLATION", http.StatusUnprocessableEntity, "a sibling marked separate already serves on this date")
	ErrDuplicatePerson          = New("DUPLICATE_PERSON_ON_SCHEDULE", http.StatusUnprocessableEntity, "person already fills a slot on this date")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}
