package shared

import "errors"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Is reports whether target is a DomainError with the same code, so wrapped
// errors can be matched against the sentinel values below.
func (e *DomainError) Is(target error) bool {
	var t *DomainError
	if !errors.As(target, &t) {
		return false
	}
	return t.Code == e.Code
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Error codes shared by every bounded context
const (
	CodeNotFound          = "NOT_FOUND"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeValidation        = "VALIDATION_ERROR"
	CodeInvalidTransition = "INVALID_TRANSITION"
	CodeConflict          = "CONCURRENCY_CONFLICT"
	CodeNetwork           = "NETWORK_ERROR"
	CodePersistence       = "PERSISTENCE_ERROR"
	CodeUnauthorized      = "UNAUTHORIZED"
	CodeForbidden         = "FORBIDDEN"
	CodeInvalidState      = "INVALID_STATE"
)

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrInvalidInput        = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError(CodeConflict, "Resource was modified by another process")
	ErrUnauthorized        = NewDomainError(CodeUnauthorized, "Not authorized to perform this action")
	ErrForbidden           = NewDomainError(CodeForbidden, "Access to this resource is forbidden")
	ErrInvalidState        = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
)

// ErrorKind classifies failures of synchronization operations
type ErrorKind string

const (
	KindNone        ErrorKind = ""
	KindNetwork     ErrorKind = "network"
	KindValidation  ErrorKind = "validation"
	KindConflict    ErrorKind = "conflict"
	KindPersistence ErrorKind = "persistence"
	KindNotFound    ErrorKind = "not_found"
	KindAccess      ErrorKind = "access"
	KindUnknown     ErrorKind = "unknown"
)

// KindOf maps an error to its kind. Errors that are not DomainErrors are
// reported as KindUnknown.
func KindOf(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	var de *DomainError
	if !errors.As(err, &de) {
		return KindUnknown
	}
	switch de.Code {
	case CodeNetwork:
		return KindNetwork
	case CodeValidation, CodeInvalidInput, CodeInvalidTransition, CodeInvalidState:
		return KindValidation
	case CodeConflict:
		return KindConflict
	case CodePersistence:
		return KindPersistence
	case CodeNotFound:
		return KindNotFound
	case CodeUnauthorized, CodeForbidden:
		return KindAccess
	default:
		return KindUnknown
	}
}

// WrappedError carries a DomainError together with the underlying cause.
type WrappedError struct {
	*DomainError
	Cause error
}

// Unwrap exposes both the domain classification and the cause
func (e *WrappedError) Unwrap() []error {
	return []error{e.DomainError, e.Cause}
}

// Error implements the error interface
func (e *WrappedError) Error() string {
	if e.Cause == nil {
		return e.Message
	}
	return e.Message + ": " + e.Cause.Error()
}

// NewNetworkError reports that a remote store or channel could not be reached
func NewNetworkError(message string, cause error) error {
	return &WrappedError{DomainError: NewDomainError(CodeNetwork, message), Cause: cause}
}

// NewPersistenceError reports a local cache write failure
func NewPersistenceError(message string, cause error) error {
	return &WrappedError{DomainError: NewDomainError(CodePersistence, message), Cause: cause}
}

// NewValidationError reports rejected input
func NewValidationError(message string) *DomainError {
	return NewDomainError(CodeValidation, message)
}
