// Package apierr defines the client-facing error taxonomy. Every error that
// reaches a client is an *Error; anything else is reported as Internal.
package apierr

import (
	"errors"
	"net/http"
)

// Error is a client-safe error with an HTTP status and a stable code.
type Error struct {
	Status  int               `json:"-"`
	Code    string            `json:"error"`
	Message string            `json:"message"`
	Fields  map[string]string `json:"fields,omitempty"`
}

func (e *Error) Error() string {
	return e.Code + ": " + e.Message
}

// As extracts an *Error from err.
func As(err error) (*Error, bool) {
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr, true
	}
	return nil, false
}

// Validation reports malformed input; fields maps each offending field to a reason.
func Validation(fields map[string]string) *Error {
	return &Error{
		Status:  http.StatusBadRequest,
		Code:    "Validation failed",
		Message: "The request contains invalid fields",
		Fields:  fields,
	}
}

// BadRequest reports a request that could not be parsed at all.
func BadRequest(message string) *Error {
	return &Error{Status: http.StatusBadRequest, Code: "Bad request", Message: message}
}

func Conflict(message string) *Error {
	return &Error{Status: http.StatusConflict, Code: "Conflict", Message: message}
}

// InvalidCredentials is identical for unknown users and wrong passwords.
func InvalidCredentials() *Error {
	return &Error{
		Status:  http.StatusUnauthorized,
		Code:    "Invalid credentials",
		Message: "Username or password is incorrect",
	}
}

// MissingCredential covers absent or garbled Authorization headers and absent sessions.
func MissingCredential(message string) *Error {
	return &Error{Status: http.StatusUnauthorized, Code: "Authentication required", Message: message}
}

// InvalidToken does not say whether the token was expired, tampered or malformed.
func InvalidToken() *Error {
	return &Error{
		Status:  http.StatusUnauthorized,
		Code:    "Invalid token",
		Message: "The provided token is invalid or expired",
	}
}

func Forbidden(message string) *Error {
	return &Error{Status: http.StatusForbidden, Code: "Forbidden", Message: message}
}

func NotFound(message string) *Error {
	return &Error{Status: http.StatusNotFound, Code: "Not found", Message: message}
}

func Configuration() *Error {
	return &Error{
		Status:  http.StatusInternalServerError,
		Code:    "Server misconfigured",
		Message: "Authentication is not configured on this server",
	}
}

func SessionTeardown() *Error {
	return &Error{
		Status:  http.StatusInternalServerError,
		Code:    "Logout failed",
		Message: "The session could not be terminated",
	}
}

func Unavailable(message string) *Error {
	return &Error{Status: http.StatusServiceUnavailable, Code: "Service unavailable", Message: message}
}

func Internal() *Error {
	return &Error{
		Status:  http.StatusInternalServerError,
		Code:    "Internal server error",
		Message: "An unexpected error occurred",
	}
}
