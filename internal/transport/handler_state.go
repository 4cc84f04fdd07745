package transport

import (
	"net/http"

	"github.com/pitabwire/inspector/internal/workflow"
)

// StateResponse is the read-only view served at /api/state.
type StateResponse struct {
	Status string `json:"status"`
	workflow.View
}

func handleState(c Commander, recording func() string) http.HandlerFunc {
	return func(w http.ResponseWriter, _ *http.Request) {
		v := c.Snapshot()
		v.Recording = recording()
		WriteJSON(w, http.StatusOK, StateResponse{Status: StatusSuccess, View: v})
	}
}
