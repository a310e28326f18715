package common

import (
	"errors"
	"net/http"
)

// AppError represents an error with an attached code and HTTP status.
type AppError struct {
	Code       string
	Message    string
	HTTPStatus int
	Err        error
	Details    any
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e == nil {
		return ""
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return e.Message
}

// Unwrap allows errors.Is/As to inspect the underlying error.
func (e *AppError) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// WithDetails attaches structured details and returns the same error.
func (e *AppError) WithDetails(details any) *AppError {
	e.Details = details
	return e
}

// NewAppError constructs an AppError.
func NewAppError(code, message string, status int, err error) *AppError {
	return &AppError{Code: code, Message: message, HTTPStatus: status, Err: err}
}

// BadRequest builds a 400 error for a single field.
func BadRequest(field, message string, err error) *AppError {
	return NewAppError("BAD_REQUEST", message, http.StatusBadRequest, err).WithDetails(map[string]any{"field": field})
}

// NotFound builds a 404 error.
func NotFound(message string, err error) *AppError {
	return NewAppError("NOT_FOUND", message, http.StatusNotFound, err)
}

// Validation converts a FieldError into a 422 response error.
func Validation(err error) *AppError {
	var fe FieldError
	if errors.As(err, &fe) {
		return NewAppError("VALIDATION_ERROR", err.Error(), http.StatusUnprocessableEntity, err).
			WithDetails(map[string]any{"field": fe.Field, "rule": fe.Tag})
	}
	return NewAppError("VALIDATION_ERROR", err.Error(), http.StatusUnprocessableEntity, err)
}
