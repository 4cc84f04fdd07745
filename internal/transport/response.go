// Package transport contains the HTTP router, middleware chain, and request
// handlers for the remote control surface.
package transport

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/pitabwire/inspector/model"
)

// statusForCode maps ErrorEnvelope codes to HTTP status codes.
var statusForCode = map[string]int{
	model.ErrBadRequest:       http.StatusBadRequest,
	model.ErrNotFound:         http.StatusNotFound,
	model.ErrMethodNotAllowed: http.StatusMethodNotAllowed,
	model.ErrRateLimited:      http.StatusTooManyRequests,
	model.ErrUnavailable:      http.StatusServiceUnavailable,
	model.ErrInternalError:    http.StatusInternalServerError,
}

// Response status values.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// CommandResponse is the body of an accepted command.
type CommandResponse struct {
	Status  string `json:"status"`
	Command string `json:"command"`
	Message string `json:"message"`
}

// ErrorResponse is the body of every error.
type ErrorResponse struct {
	Status  string `json:"status"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// WriteJSON writes a JSON response with the given status code.
func WriteJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(status)
	if body != nil {
		json.NewEncoder(w).Encode(body)
	}
}

// WriteError writes err as an ErrorResponse with the HTTP status for its
// code. If err is not an *ErrorEnvelope, a generic 500 is returned.
func WriteError(w http.ResponseWriter, err error) {
	var ee *model.ErrorEnvelope
	if !errors.As(err, &ee) {
		ee = model.NewInternalError()
	}

	status := statusForCode[ee.Code]
	if status == 0 {
		status = http.StatusInternalServerError
	}
	WriteJSON(w, status, ErrorResponse{Status: StatusError, Code: ee.Code, Message: ee.Message})
}

// WriteNotFound writes a 404 error response.
func WriteNotFound(w http.ResponseWriter, msg string) {
	WriteError(w, model.NewNotFoundError(msg))
}

func handleNotFound(w http.ResponseWriter, r *http.Request) {
	WriteNotFound(w, "no route for "+r.URL.Path)
}

func handleMethodNotAllowed(w http.ResponseWriter, r *http.Request) {
	WriteError(w, model.NewMethodNotAllowedError(r.Method))
}
