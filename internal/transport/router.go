package transport

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"github.com/pitabwire/inspector/internal/arbiter"
	"github.com/pitabwire/inspector/internal/observability"
	"github.com/pitabwire/inspector/internal/workflow"
	"github.com/pitabwire/inspector/model"
)

// Commander is the part of the arbiter the handlers use. All access to
// workflow state goes through it.
type Commander interface {
	SubmitNow(src model.Source, cmd model.Command) arbiter.Result
	Snapshot() workflow.View
}

// Dependencies holds all injected dependencies for the HTTP transport layer.
type Dependencies struct {
	Commander Commander
	// Recording returns the current session filename, empty when recording
	// is disabled.
	Recording   func() string
	Logger      *zap.Logger
	Metrics     *observability.Metrics
	Gatherer    prometheus.Gatherer
	MetricsPath string
	Readiness   observability.ReadinessChecks
}

// NewRouter creates a chi.Router with the middleware pipeline and all route
// registrations. Health, readiness, and metrics endpoints sit outside the
// logging and metrics middleware.
func NewRouter(deps Dependencies) chi.Router {
	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	recording := deps.Recording
	if recording == nil {
		recording = func() string { return "" }
	}

	r := chi.NewRouter()
	r.NotFound(handleNotFound)
	r.MethodNotAllowed(handleMethodNotAllowed)

	r.Use(Recovery(logger))
	r.Use(RequestID)
	r.Use(SecurityHeaders)

	r.Get("/healthz", observability.HandleHealth())
	r.Get("/readyz", observability.HandleReady(deps.Readiness))
	if deps.Gatherer != nil {
		path := deps.MetricsPath
		if path == "" {
			path = "/metrics"
		}
		r.Method(http.MethodGet, path, observability.Handler(deps.Gatherer))
	}

	r.Group(func(r chi.Router) {
		r.Use(observability.TracingMiddleware)
		r.Use(RequestLogging(logger))
		if deps.Metrics != nil {
			r.Use(deps.Metrics.MetricsMiddleware)
		}

		r.Get("/", handleControlPage)
		r.Get("/api/state", handleState(deps.Commander, recording))
		r.Get("/api/{command}", handleCommand(deps.Commander, logger))
	})

	return r
}
