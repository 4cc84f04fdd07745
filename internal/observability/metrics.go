package observability

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/pitabwire/inspector/internal/workflow"
)

// Histogram bucket definitions.
var (
	httpDurationBuckets   = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}
	renderDurationBuckets = []float64{0.001, 0.0025, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25}
	bodySizeBuckets       = []float64{100, 1024, 10240, 102400, 1048576}
)

// Metrics holds all Prometheus metric instruments for the controller.
type Metrics struct {
	// HTTP metrics
	HTTPRequestsTotal     *prometheus.CounterVec
	HTTPRequestDuration   *prometheus.HistogramVec
	HTTPResponseSizeBytes *prometheus.HistogramVec

	// Command metrics
	CommandsTotal *prometheus.CounterVec
	WorkflowStage prometheus.Gauge

	// Recording metrics
	RecordingActive    prometheus.Gauge
	FramesTotal        prometheus.Counter
	FrameStallsTotal   prometheus.Counter
	FrameWriteFailures prometheus.Counter
	ArchiveTotal       *prometheus.CounterVec

	// Display metrics
	RendersTotal   prometheus.Counter
	RenderDuration prometheus.Histogram
	DisplayErrors  prometheus.Counter
}

// InitMetrics creates and registers all Prometheus metric instruments.
func InitMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		// HTTP
		HTTPRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inspector_http_requests_total",
			Help: "Total number of HTTP requests.",
		}, []string{"method", "path_pattern", "status"}),
		HTTPRequestDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "inspector_http_request_duration_seconds",
			Help:    "HTTP request duration in seconds.",
			Buckets: httpDurationBuckets,
		}, []string{"method", "path_pattern"}),
		HTTPResponseSizeBytes: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "inspector_http_response_size_bytes",
			Help:    "HTTP response body size in bytes.",
			Buckets: bodySizeBuckets,
		}, []string{"method", "path_pattern"}),

		// Commands
		CommandsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inspector_commands_total",
			Help: "Operator commands by source, command and outcome.",
		}, []string{"source", "command", "outcome"}),
		WorkflowStage: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "inspector_workflow_stage",
			Help: "Current workflow stage (0=START, 1=PREREQUISITES, 2=TOOLS, 3=INSPECTION, 4=SUMMARY).",
		}),

		// Recording
		RecordingActive: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "inspector_recording_active",
			Help: "1 while a recording session is accepting frames.",
		}),
		FramesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inspector_frames_total",
			Help: "Camera frames received.",
		}),
		FrameStallsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inspector_frame_stalls_total",
			Help: "Watchdog intervals with no camera frame.",
		}),
		FrameWriteFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inspector_frame_write_failures_total",
			Help: "Frames the encoder refused.",
		}),
		ArchiveTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "inspector_archive_total",
			Help: "Archive attempts by result.",
		}, []string{"result"}),

		// Display
		RendersTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inspector_renders_total",
			Help: "Screens rendered and shown.",
		}),
		RenderDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "inspector_render_duration_seconds",
			Help:    "Time to render and push one screen.",
			Buckets: renderDurationBuckets,
		}),
		DisplayErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "inspector_display_errors_total",
			Help: "Failed display writes.",
		}),
	}

	reg.MustRegister(
		// HTTP
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.HTTPResponseSizeBytes,
		// Commands
		m.CommandsTotal,
		m.WorkflowStage,
		// Recording
		m.RecordingActive,
		m.FramesTotal,
		m.FrameStallsTotal,
		m.FrameWriteFailures,
		m.ArchiveTotal,
		// Display
		m.RendersTotal,
		m.RenderDuration,
		m.DisplayErrors,
	)

	return m
}

// --- Recording helpers ---

// RecordHTTPRequest records HTTP request metrics.
func (m *Metrics) RecordHTTPRequest(method, pathPattern string, status int, duration time.Duration, respSize int) {
	m.HTTPRequestsTotal.WithLabelValues(method, pathPattern, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, pathPattern).Observe(duration.Seconds())
	m.HTTPResponseSizeBytes.WithLabelValues(method, pathPattern).Observe(float64(respSize))
}

// RecordCommand counts one submitted command.
func (m *Metrics) RecordCommand(source, command, outcome string) {
	m.CommandsTotal.WithLabelValues(source, command, outcome).Inc()
}

// SetStage publishes the current workflow stage.
func (m *Metrics) SetStage(stage workflow.Stage) {
	m.WorkflowStage.Set(float64(stage))
}

// SetRecording publishes whether a session is accepting frames.
func (m *Metrics) SetRecording(active bool) {
	if active {
		m.RecordingActive.Set(1)
		return
	}
	m.RecordingActive.Set(0)
}

// RecordFrame counts one camera frame.
func (m *Metrics) RecordFrame() {
	m.FramesTotal.Inc()
}

// RecordFrameStall counts one watchdog interval without frames.
func (m *Metrics) RecordFrameStall() {
	m.FrameStallsTotal.Inc()
}

// RecordFrameWriteFailure counts one frame the encoder refused.
func (m *Metrics) RecordFrameWriteFailure() {
	m.FrameWriteFailures.Inc()
}

// RecordArchive counts an archive attempt. result is "success", "skipped"
// or "failure".
func (m *Metrics) RecordArchive(result string) {
	m.ArchiveTotal.WithLabelValues(result).Inc()
}

// RecordRender records one rendered screen.
func (m *Metrics) RecordRender(duration time.Duration, err error) {
	m.RendersTotal.Inc()
	m.RenderDuration.Observe(duration.Seconds())
	if err != nil {
		m.DisplayErrors.Inc()
	}
}

// --- HTTP Middleware ---

// MetricsMiddleware returns HTTP middleware that records request metrics using
// chi's route pattern (not the actual URL path) to avoid label cardinality
// explosion.
func (m *Metrics) MetricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &metricsResponseWriter{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(sw, r)

		m.RecordHTTPRequest(r.Method, routePattern(r), sw.status, time.Since(start), sw.bytes)
	})
}

// Handler returns the Prometheus HTTP handler for the given gatherer.
func Handler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{})
}

// routePattern extracts chi's route pattern from the request context.
// Falls back to the raw URL path if no pattern is found.
func routePattern(r *http.Request) string {
	if pattern, ok := chiPattern(r); ok {
		return pattern
	}
	return r.URL.Path
}

// chiPattern returns the matched route pattern once chi has routed r.
func chiPattern(r *http.Request) (string, bool) {
	rctx := chi.RouteContext(r.Context())
	if rctx == nil {
		return "", false
	}
	// chi route patterns have trailing /*, remove it.
	pattern := strings.TrimSuffix(strings.Join(rctx.RoutePatterns, ""), "/*")
	return pattern, pattern != ""
}

// metricsResponseWriter wraps http.ResponseWriter to capture status and bytes.
type metricsResponseWriter struct {
	http.ResponseWriter
	status  int
	bytes   int
	written bool
}

func (w *metricsResponseWriter) WriteHeader(code int) {
	if !w.written {
		w.status = code
		w.written = true
	}
	w.ResponseWriter.WriteHeader(code)
}

func (w *metricsResponseWriter) Write(b []byte) (int, error) {
	if !w.written {
		w.written = true
	}
	n, err := w.ResponseWriter.Write(b)
	w.bytes += n
	return n, err
}
