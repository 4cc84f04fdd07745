package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/pitabwire/inspector/internal/arbiter"
	"github.com/pitabwire/inspector/internal/observability"
	"github.com/pitabwire/inspector/model"
)

func handleCommand(c Commander, fallback *zap.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		raw := chi.URLParam(r, "command")
		cmd, ok := model.ParseCommand(raw)
		if !ok {
			// Unknown names still go through the arbiter so they are
			// counted, but never touch the workflow.
			cmd = model.Command(raw)
		}

		res := c.SubmitNow(model.SourceRemote, cmd)

		trace.SpanFromContext(r.Context()).SetAttributes(
			observability.AttrCommand.String(raw),
			observability.AttrSource.String(string(model.SourceRemote)),
			observability.AttrOutcome.String(res.Outcome.String()),
			observability.AttrStage.String(res.Stage.String()),
		)

		switch res.Outcome {
		case arbiter.Accepted:
			WriteJSON(w, http.StatusOK, CommandResponse{
				Status:  StatusSuccess,
				Command: string(cmd),
				Message: cmd.Message(),
			})
		case arbiter.CooldownActive:
			WriteError(w, model.NewCooldownError())
		case arbiter.Closed:
			WriteError(w, model.NewUnavailableError())
		case arbiter.Invalid:
			WriteError(w, model.NewInvalidCommandError())
		default:
			observability.LoggerFrom(r.Context(), fallback).Error("unexpected submit outcome",
				zap.Stringer("outcome", res.Outcome))
			WriteError(w, model.NewInternalError())
		}
	}
}
