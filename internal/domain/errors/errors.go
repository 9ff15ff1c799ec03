package errors

import (
	"errors"
	"fmt"
)

var (
	// Outbox errors
	ErrEntryNotFound          = errors.New("outbox entry not found")
	ErrInvalidStateTransition = errors.New("invalid outbox state transition")
	ErrMaxRetriesExceeded     = errors.New("max retries exceeded")

	// Executor errors (permanent, never retried)
	ErrUnknownEntityType    = errors.New("unknown entity type")
	ErrUnsupportedOperation = errors.New("operation not supported for entity type")
	ErrMalformedPayload     = errors.New("malformed payload")

	// Document store errors
	ErrDocumentNotFound = errors.New("document not found")

	// Replication errors
	ErrOwnerUnresolved = errors.New("owner id missing on public document")
	ErrUnknownPath     = errors.New("path does not match a replicated collection")

	// Validation errors
	ErrValidationFailed = errors.New("validation failed")
	ErrInvalidInput     = errors.New("invalid input")
)

// DomainError wraps errors with additional context
type DomainError struct {
	Code    string
	Message string
	Err     error
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

// NewDomainError creates a new domain error
func NewDomainError(code, message string, err error) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed for field %s: %s", e.Field, e.Message)
}

// NewValidationError creates a new validation error
func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
	}
}

// Permanent reports whether err is a programmer error that must not be
// retried by the sync loop. Everything else is treated as transient.
func Permanent(err error) bool {
	return errors.Is(err, ErrUnknownEntityType) ||
		errors.Is(err, ErrUnsupportedOperation) ||
		errors.Is(err, ErrMalformedPayload)
}
