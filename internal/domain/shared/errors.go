package shared

import "strings"

// DomainError represents a domain-level error
type DomainError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface
func (e *DomainError) Error() string {
	return e.Message
}

// NewDomainError creates a new domain error
func NewDomainError(code, message string) *DomainError {
	return &DomainError{
		Code:    code,
		Message: message,
	}
}

// Common domain errors
var (
	ErrNotFound            = NewDomainError("NOT_FOUND", "Resource not found")
	ErrAlreadyExists       = NewDomainError("ALREADY_EXISTS", "Resource already exists")
	ErrInvalidInput        = NewDomainError("INVALID_INPUT", "Invalid input provided")
	ErrConcurrencyConflict = NewDomainError("CONCURRENCY_CONFLICT", "Resource was modified by another process")
	ErrInvalidState        = NewDomainError("INVALID_STATE", "Operation not allowed in current state")
)

// FieldViolation describes one invalid or missing field
type FieldViolation struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError reports every violated field of a create or update
// request, not just the first one encountered.
type ValidationError struct {
	DomainError
	Violations []FieldViolation `json:"violations"`
}

// NewValidationError creates a ValidationError from the full violation list
func NewValidationError(violations []FieldViolation) *ValidationError {
	fields := make([]string, len(violations))
	for i, v := range violations {
		fields[i] = v.Field
	}
	return &ValidationError{
		DomainError: DomainError{
			Code:    "VALIDATION_ERROR",
			Message: "Invalid fields: " + strings.Join(fields, ", "),
		},
		Violations: violations,
	}
}

// NewOwnershipError indicates the record belongs to a different company
// than the caller claims
func NewOwnershipError(message string) *DomainError {
	return NewDomainError("OWNERSHIP_MISMATCH", message)
}

// NewAlreadyDeletedError indicates a delete was attempted on a record
// that is already soft-deleted
func NewAlreadyDeletedError(message string) *DomainError {
	return NewDomainError("ALREADY_DELETED", message)
}

// NewNotAnalyzedError indicates a comparison or recommendation was
// requested before the promotion was analyzed
func NewNotAnalyzedError(message string) *DomainError {
	return NewDomainError("NOT_ANALYZED", message)
}
