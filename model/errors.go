package model

import "fmt"

// Standard error codes.
const (
	ErrBadRequest       = "BAD_REQUEST"
	ErrNotFound         = "NOT_FOUND"
	ErrMethodNotAllowed = "METHOD_NOT_ALLOWED"
	ErrRateLimited      = "RATE_LIMITED"
	ErrUnavailable      = "UNAVAILABLE"
	ErrInternalError    = "INTERNAL_ERROR"
)

// ErrorEnvelope is the error body returned by the remote control surface.
// It implements the error interface.
type ErrorEnvelope struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Error implements the error interface.
func (e *ErrorEnvelope) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewInvalidCommandError returns the BAD_REQUEST error used for unknown
// command names.
func NewInvalidCommandError() *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrBadRequest, Message: "invalid command"}
}

// NewNotFoundError returns a NOT_FOUND error.
func NewNotFoundError(msg string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrNotFound, Message: msg}
}

// NewMethodNotAllowedError returns the METHOD_NOT_ALLOWED error for a known
// route requested with the wrong method.
func NewMethodNotAllowedError(method string) *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrMethodNotAllowed, Message: "method " + method + " not allowed"}
}

// NewCooldownError returns the RATE_LIMITED error used when a command arrives
// inside the input cooldown window.
func NewCooldownError() *ErrorEnvelope {
	return &ErrorEnvelope{Code: ErrRateLimited, Message: "cooldown active"}
}

// NewUnavailableError returns an UNAVAILABLE error. The controller reports it
// once shutdown has started and commands are no longer dispatched.
func NewUnavailableError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrUnavailable,
		Message: "controller is shutting down",
	}
}

// NewInternalError returns an INTERNAL_ERROR.
func NewInternalError() *ErrorEnvelope {
	return &ErrorEnvelope{
		Code:    ErrInternalError,
		Message: "An unexpected error occurred",
	}
}
