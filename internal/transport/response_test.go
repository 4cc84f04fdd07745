package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/pitabwire/inspector/model"
)

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusOK, map[string]string{"hello": "world"})

	if w.Code != 200 {
		t.Errorf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}
	if xct := w.Header().Get("X-Content-Type-Options"); xct != "nosniff" {
		t.Errorf("X-Content-Type-Options = %q", xct)
	}

	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["hello"] != "world" {
		t.Errorf("body = %v", body)
	}
}

func TestWriteError_statusMapping(t *testing.T) {
	tests := []struct {
		err    *model.ErrorEnvelope
		status int
	}{
		{model.NewInvalidCommandError(), http.StatusBadRequest},
		{model.NewNotFoundError("nope"), http.StatusNotFound},
		{model.NewMethodNotAllowedError("POST"), http.StatusMethodNotAllowed},
		{model.NewCooldownError(), http.StatusTooManyRequests},
		{model.NewUnavailableError(), http.StatusServiceUnavailable},
		{model.NewInternalError(), http.StatusInternalServerError},
		{&model.ErrorEnvelope{Code: "MYSTERY", Message: "?"}, http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.err.Code, func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.err)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			var body ErrorResponse
			json.NewDecoder(w.Body).Decode(&body)
			if body.Status != "error" || body.Code != tt.err.Code || body.Message != tt.err.Message {
				t.Errorf("body = %+v", body)
			}
		})
	}
}

func TestWriteError_wrappedEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, fmt.Errorf("submit: %w", model.NewCooldownError()))
	if w.Code != http.StatusTooManyRequests {
		t.Errorf("status = %d, want 429", w.Code)
	}
}

func TestWriteError_nonEnvelope(t *testing.T) {
	w := httptest.NewRecorder()
	WriteError(w, fmt.Errorf("something went wrong"))

	if w.Code != 500 {
		t.Errorf("status = %d, want 500 for non-envelope error", w.Code)
	}
	var body ErrorResponse
	json.NewDecoder(w.Body).Decode(&body)
	if body.Code != model.ErrInternalError {
		t.Errorf("code = %q", body.Code)
	}
}

func TestWriteNotFound(t *testing.T) {
	w := httptest.NewRecorder()
	WriteNotFound(w, "resource missing")
	if w.Code != 404 {
		t.Errorf("status = %d, want 404", w.Code)
	}
}
