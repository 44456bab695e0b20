package apperror

import (
	"errors"
	"net/http"
)

var (
	ErrNotFound = New(CodeNotFound, "resource not found", http.StatusNotFound)

	ErrUnauthorized = New(CodeUnauthorized, "authentication is required", http.StatusUnauthorized)

	ErrForbidden = New(CodeForbidden, "you do not have permission to access this resource", http.StatusForbidden)

	ErrInternal = New(CodeInternal, "an unexpected error occurred", http.StatusInternalServerError)
)

// Validation builds a caller-fault error with a specific message.
func Validation(message string) *AppError {
	return New(CodeValidation, message, http.StatusBadRequest)
}

// DependencyUnavailable marks an external service failure; the operation
// was aborted and the caller may retry.
func DependencyUnavailable(err error, message string) *AppError {
	return Wrap(err, CodeDependencyUnavailable, message, http.StatusServiceUnavailable)
}

// From extracts the AppError from err, or wraps err as ErrInternal so the
// handler layer always has a status and code to answer with.
func From(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return Wrap(err, CodeInternal, "an unexpected error occurred", http.StatusInternalServerError)
}
