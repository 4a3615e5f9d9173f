package shared

import (
	"errors"
	"fmt"
)

// Error codes shared by the invoicing domain and the HTTP layer
const (
	CodeNotFound            = "NOT_FOUND"
	CodeAlreadyExists       = "ALREADY_EXISTS"
	CodeInvalidInput        = "INVALID_INPUT"
	CodeValidation          = "VALIDATION_ERROR"
	CodeInvalidAmount       = "INVALID_AMOUNT"
	CodeInsufficientBalance = "INSUFFICIENT_BALANCE"
	CodeInvalidState        = "INVALID_STATE"
	CodeDispositionRequired = "DISPOSITION_REQUIRED"
	CodeStoreError          = "STORE_ERROR"
	CodeConcurrencyConflict = "CONCURRENCY_CONFLICT"
	CodeOperationInProgress = "OPERATION_IN_PROGRESS"
)

// DomainError represents a domain-level error
type DomainError struct {
	Code    string         `json:"code"`
	Message string         `json:"message"`
	Details map[string]any `json:"details,omitempty"`

	cause error
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// Unwrap returns the underlying cause, if any
func (e *DomainError) Unwrap() error {
	return e.cause
}

// Is matches domain errors by code so that sentinel comparisons survive
// errors created with extra details.
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

// NewDomainErrorWithDetails creates a domain error carrying structured details
func NewDomainErrorWithDetails(code, message string, details map[string]any) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
		Details: details,
	}
}

// NewStoreError wraps a ledger store failure. The cause stays reachable through errors.Is/As.
func NewStoreError(op string, cause error) *DomainError {
	return &DomainError{
		Code:    CodeStoreError,
		Message: fmt.Sprintf("store operation %s failed", op),
		cause:   cause,
	}
}

// NewConflictError wraps a store failure caused by a competing writer
func NewConflictError(op string, cause error) *DomainError {
	return &DomainError{
		Code:    CodeConcurrencyConflict,
		Message: fmt.Sprintf("store operation %s conflicted with a concurrent write", op),
		cause:   cause,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError(CodeNotFound, "Resource not found")
	ErrAlreadyExists       = NewDomainError(CodeAlreadyExists, "Resource already exists")
	ErrInvalidInput        = NewDomainError(CodeInvalidInput, "Invalid input provided")
	ErrInvalidAmount       = NewDomainError(CodeInvalidAmount, "Amount must be positive")
	ErrInvalidState        = NewDomainError(CodeInvalidState, "Operation not allowed in current state")
	ErrInsufficientBalance = NewDomainError(CodeInsufficientBalance, "Insufficient balance available")
	ErrDispositionRequired = NewDomainError(CodeDispositionRequired, "Invoice has payments; choose whether to move them to the client account or keep the history")
	ErrStore               = NewDomainError(CodeStoreError, "Ledger store unavailable")
	ErrConcurrencyConflict = NewDomainError(CodeConcurrencyConflict, "Resource was modified by another process")
	ErrOperationInProgress = NewDomainError(CodeOperationInProgress, "Another operation on this resource is still in progress")
)

// IsRetryable reports whether the caller may safely retry the failed operation
func IsRetryable(err error) bool {
	var domainErr *DomainError
	if !errors.As(err, &domainErr) {
		return false
	}
	return domainErr.Code == CodeStoreError || domainErr.Code == CodeConcurrencyConflict
}

// ErrorCode extracts the domain error code, or "" for foreign errors
func ErrorCode(err error) string {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Code
	}
	return ""
}
