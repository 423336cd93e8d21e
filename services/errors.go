package services

import (
	"errors"
	"fmt"

	"github.com/upb/andon-board/models"
)

// ErrorType represents the type/category of error
type ErrorType string

const (
	ErrorTypeNotFound     ErrorType = "not_found"
	ErrorTypeValidation   ErrorType = "validation"
	ErrorTypeUnauthorized ErrorType = "unauthorized"
	ErrorTypeForbidden    ErrorType = "forbidden"
	ErrorTypeConflict     ErrorType = "conflict"
	ErrorTypeInternal     ErrorType = "internal"
)

// DomainError represents a structured error with additional context
type DomainError struct {
	Type    ErrorType
	Message string
	Err     error
	Details map[string]interface{}
}

// Error implements the error interface
func (e *DomainError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s (%v)", e.Type, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap implements errors.Unwrap
func (e *DomainError) Unwrap() error {
	return e.Err
}

// Is matches any DomainError of the same type and message
func (e *DomainError) Is(target error) bool {
	t, ok := target.(*DomainError)
	if !ok {
		return false
	}
	return e.Type == t.Type && (t.Message == "" || e.Message == t.Message)
}

// WithDetail returns a copy of the error with an extra detail. Sentinels are
// never mutated.
func (e *DomainError) WithDetail(key string, value interface{}) *DomainError {
	details := make(map[string]interface{}, len(e.Details)+1)
	for k, v := range e.Details {
		details[k] = v
	}
	details[key] = value
	return &DomainError{Type: e.Type, Message: e.Message, Err: e.Err, Details: details}
}

// Wrap returns a copy of the error carrying cause
func (e *DomainError) Wrap(cause error) *DomainError {
	return &DomainError{Type: e.Type, Message: e.Message, Err: cause, Details: e.Details}
}

// NewDomainError creates a new domain error
func NewDomainError(errType ErrorType, message string, err error) *DomainError {
	return &DomainError{
		Type:    errType,
		Message: message,
		Err:     err,
		Details: make(map[string]interface{}),
	}
}

var (
	// Not Found Errors
	ErrTenantNotFound   = NewDomainError(ErrorTypeNotFound, "tenant not found", nil)
	ErrLocationNotFound = NewDomainError(ErrorTypeNotFound, "location not found", nil)
	ErrMachineNotFound  = NewDomainError(ErrorTypeNotFound, "machine not found", nil)
	ErrDivisionNotFound = NewDomainError(ErrorTypeNotFound, "division not found", nil)
	ErrUserNotFound     = NewDomainError(ErrorTypeNotFound, "user not found", nil)
	ErrCallNotFound     = NewDomainError(ErrorTypeNotFound, "call not found", nil)

	// Validation Errors
	ErrInvalidInput  = NewDomainError(ErrorTypeValidation, "invalid input", nil)
	ErrEmptyReport   = NewDomainError(ErrorTypeValidation, "report content cannot be empty", nil)
	ErrInvalidSlug   = NewDomainError(ErrorTypeValidation, "invalid slug format", nil)
	ErrInvalidPeriod = NewDomainError(ErrorTypeValidation, "period must be daily, weekly or monthly", nil)
	ErrInvalidRole   = NewDomainError(ErrorTypeValidation, "role must be ADMIN or TEAM", nil)

	// Authorization Errors
	ErrUnauthorized       = NewDomainError(ErrorTypeUnauthorized, "unauthorized", nil)
	ErrInvalidCredentials = NewDomainError(ErrorTypeUnauthorized, "invalid email or password", nil)
	ErrInvalidToken       = NewDomainError(ErrorTypeUnauthorized, "invalid authentication token", nil)

	// Permission Errors
	ErrForbidden      = NewDomainError(ErrorTypeForbidden, "access forbidden", nil)
	ErrTenantMismatch = NewDomainError(ErrorTypeForbidden, "token does not belong to this tenant", nil)

	// Conflict Errors
	ErrDuplicateSlug     = NewDomainError(ErrorTypeConflict, "slug already exists", nil)
	ErrDuplicateEmail    = NewDomainError(ErrorTypeConflict, "email already exists", nil)
	ErrDuplicateCode     = NewDomainError(ErrorTypeConflict, "machine code already used in this tenant", nil)
	ErrInvalidTransition = NewDomainError(ErrorTypeConflict, "call status does not allow this action", nil)
	ErrConcurrentUpdate  = NewDomainError(ErrorTypeConflict, "concurrent update detected", nil)

	// Internal Errors
	ErrInternal          = NewDomainError(ErrorTypeInternal, "internal server error", nil)
	ErrDatabaseError     = NewDomainError(ErrorTypeInternal, "database error", nil)
	ErrTransactionFailed = NewDomainError(ErrorTypeInternal, "transaction failed", nil)
)

// NewFieldError is a validation error on a single request field
func NewFieldError(field, message string) *DomainError {
	return ErrInvalidInput.WithDetail(field, message)
}

// NewConflictError is a conflict on a single request field
func NewConflictError(base *DomainError, field string, cause error) *DomainError {
	return base.Wrap(cause).WithDetail("field", field)
}

// NewTransitionError reports an action applied to a call in the wrong status
func NewTransitionError(action models.CallAction, from models.CallStatus) *DomainError {
	return ErrInvalidTransition.
		WithDetail("action", string(action)).
		WithDetail("status", string(from)).
		WithDetail("allowed_from", models.AllowedFrom(action))
}

// IsNotFoundError checks if an error is a not found error
func IsNotFoundError(err error) bool {
	return GetErrorType(err) == ErrorTypeNotFound
}

// IsValidationError checks if an error is a validation error
func IsValidationError(err error) bool {
	return GetErrorType(err) == ErrorTypeValidation
}

// IsUnauthorizedError checks if an error is an unauthorized error
func IsUnauthorizedError(err error) bool {
	return GetErrorType(err) == ErrorTypeUnauthorized
}

// IsForbiddenError checks if an error is a forbidden error
func IsForbiddenError(err error) bool {
	return GetErrorType(err) == ErrorTypeForbidden
}

// IsConflictError checks if an error is a conflict error
func IsConflictError(err error) bool {
	return GetErrorType(err) == ErrorTypeConflict
}

// IsInternalError checks if an error is an internal error
func IsInternalError(err error) bool {
	return GetErrorType(err) == ErrorTypeInternal
}

// GetErrorType returns the ErrorType of a domain error, or empty string if not a domain error
func GetErrorType(err error) ErrorType {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Type
	}
	return ""
}

// GetErrorDetails returns the details map of a domain error, or nil if not a domain error
func GetErrorDetails(err error) map[string]interface{} {
	var domainErr *DomainError
	if errors.As(err, &domainErr) {
		return domainErr.Details
	}
	return nil
}

// WrapInternal wraps an error as an internal error
func WrapInternal(message string, err error) error {
	return NewDomainError(ErrorTypeInternal, message, err)
}
