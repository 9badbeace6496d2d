// Package apperror defines the application's error taxonomy.
//
// Services return these typed errors; the HTTP layer translates them to
// status codes with errors.Is/errors.As. Anything that doesn't match a
// sentinel is treated as an internal error and never detailed to the client.
package apperror

import (
	"errors"
	"fmt"
)

// Sentinel errors for the auth domain. Handlers match on these with
// errors.Is to pick a status code; the AppError wrapper carries the
// human-readable message.
var (
	ErrValidation         = errors.New("validation failed")
	ErrNotFound           = errors.New("not found")
	ErrDuplicate          = errors.New("duplicate account")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrExternalOnly       = errors.New("external provider account")
)

// AppError wraps a sentinel with a client-safe message and, for validation
// failures, the offending field.
type AppError struct {
	Err     error  // sentinel classifying the failure
	Message string // human-readable, safe to return to the client
	Field   string // optional: field that failed validation
}

func (e *AppError) Error() string {
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// ValidationFailed reports malformed input, naming the field and rule that
// was violated.
func ValidationFailed(field, message string) *AppError {
	return &AppError{
		Err:     ErrValidation,
		Message: message,
		Field:   field,
	}
}

// NotFound reports that no account matched the presented identifier.
func NotFound(message string) *AppError {
	return &AppError{
		Err:     ErrNotFound,
		Message: message,
	}
}

// Duplicate reports that an account with the same email already exists.
func Duplicate(message string) *AppError {
	return &AppError{
		Err:     ErrDuplicate,
		Message: message,
	}
}

// InvalidCredentials reports a failed password verification.
func InvalidCredentials() *AppError {
	return &AppError{
		Err:     ErrInvalidCredentials,
		Message: "Invalid credentials",
	}
}

// ExternalOnly reports a local sign-in attempt against an account that
// authenticates through an external provider.
func ExternalOnly(provider string) *AppError {
	return &AppError{
		Err:     ErrExternalOnly,
		Message: fmt.Sprintf("This account uses %s sign-in. Please continue with %s.", provider, provider),
	}
}
