// Package errors defines AppError, the error type rendered by the API layer,
// and the shared sentinels services return.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// AppError carries a stable machine code, a client-safe message and the HTTP
// status to answer with. Internal is logged but never rendered.
type AppError struct {
	Code       string            `json:"code"`
	Message    string            `json:"message"`
	Fields     map[string]string `json:"fields,omitempty"`
	StatusCode int               `json:"-"`
	Internal   error             `json:"-"`
}

func (e *AppError) Error() string {
	switch {
	case e == nil:
		return "<nil>"
	case e.Internal != nil:
		return fmt.Sprintf("%s: %v", e.Message, e.Internal)
	default:
		return e.Message
	}
}

func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Internal
}

// Is matches any AppError with the same code, so copies made by WithInternal
// or WithFields still satisfy errors.Is against their sentinel.
func (e *AppError) Is(target error) bool {
	other, ok := target.(*AppError)
	return ok && e != nil && other != nil && e.Code == other.Code
}

// WithInternal returns a copy with err attached as the cause.
func (e *AppError) WithInternal(err error) *AppError {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Internal = err
	return &cp
}

// WithFields returns a copy carrying per-field messages for the client.
func (e *AppError) WithFields(fields map[string]string) *AppError {
	if e == nil {
		return nil
	}
	cp := *e
	cp.Fields = fields
	return &cp
}

// ForbiddenMessage is returned whenever the access-control gate denies a request.
const ForbiddenMessage = "You do not have permission to access this resource."

var (
	ErrUnauthorized       = New("UNAUTHORIZED", "Authentication required", http.StatusUnauthorized)
	ErrInvalidCredentials = New("INVALID_CREDENTIALS", "Invalid email or password", http.StatusUnauthorized)
	ErrAccountInactive    = New("ACCOUNT_INACTIVE", "Account is disabled", http.StatusUnauthorized)
	ErrAccountLocked      = New("ACCOUNT_LOCKED", "Account temporarily locked", http.StatusUnauthorized)
	ErrForbidden          = New("FORBIDDEN", ForbiddenMessage, http.StatusForbidden)
	ErrNotFound           = New("NOT_FOUND", "Resource not found", http.StatusNotFound)
	ErrBadRequest         = New("BAD_REQUEST", "Invalid request", http.StatusBadRequest)
	ErrValidation         = New("VALIDATION_FAILED", "Validation failed", http.StatusUnprocessableEntity)
	ErrCannotDeleteSelf   = New("CANNOT_DELETE_SELF", "You cannot delete your own account.", http.StatusBadRequest)
	ErrStoreUnavailable   = New("STORE_UNAVAILABLE", "Storage is temporarily unavailable", http.StatusServiceUnavailable)
	ErrInternalServer     = New("INTERNAL_SERVER_ERROR", "Internal server error", http.StatusInternalServerError)
	ErrRateLimit          = New("RATE_LIMIT_EXCEEDED", "Too many requests, please slow down", http.StatusTooManyRequests)
)

// New builds an AppError.
func New(code, message string, statusCode int) *AppError {
	return &AppError{Code: code, Message: message, StatusCode: statusCode}
}

// FromError returns the AppError in err's chain, or ErrInternalServer wrapping err.
func FromError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return ErrInternalServer.WithInternal(err)
}

// NewBadRequest reports a malformed request.
func NewBadRequest(message string) *AppError {
	return New(ErrBadRequest.Code, message, ErrBadRequest.StatusCode)
}

// NewValidation reports input that failed validation before any mutation happened.
func NewValidation(message string) *AppError {
	return New(ErrValidation.Code, message, ErrValidation.StatusCode)
}

// NewNotFound builds a typed not-found error such as ROLE_NOT_FOUND.
func NewNotFound(code, message string) *AppError {
	return New(code, message, http.StatusNotFound)
}

// IsNotFound reports whether err is any 404-class application error.
func IsNotFound(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.StatusCode == http.StatusNotFound
}
