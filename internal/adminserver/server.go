// Package adminserver exposes a pipeline's health, readiness, metrics,
// and live block counters over HTTP. It never sits on the data path —
// items never flow through it — it only introspects pipes that have
// already been built.
package adminserver

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/fermilabs/pipeflow/block"
	"github.com/fermilabs/pipeflow/internal/health"
	httpmw "github.com/fermilabs/pipeflow/internal/middleware"
	pflowmetrics "github.com/fermilabs/pipeflow/internal/metrics"
)

// PipeStats names a pipe and reports its block's current counters, for
// the /debug/pipeline JSON dump.
type PipeStats struct {
	ID      string         `json:"id"`
	Metrics block.Snapshot `json:"metrics"`
}

// PipelineInspector is the minimal surface a pipeline.Pipeline[T] needs
// to satisfy for /debug/pipeline — a package-level interface rather
// than depending on the pipeline package's generic type directly, since
// an admin server is wired to exactly one T at a time by its caller.
type PipelineInspector interface {
	// Stats returns one PipeStats per pipe, in the pipeline's insertion
	// order.
	Stats() []PipeStats
}

// Options configures New.
type Options struct {
	AllowedOrigins []string
	Checker        *health.Checker
	Inspector      PipelineInspector
	Logger         *zap.Logger
	// MetricsNamespace names the admin_http collector family registered
	// with Prometheus. Default "pipeflow". Callers that build more than
	// one admin server in the same process (tests, mainly) must give
	// each one a distinct namespace to avoid a duplicate-registration
	// panic against the default registerer.
	MetricsNamespace string
}

// New builds the admin server's http.Handler: request-id, logging,
// recovery, CORS, and metrics middleware wrapping /healthz, /readyz,
// /metrics, and /debug/pipeline. Logging sits outside Recovery so a
// panic recovered into a 500 still gets its access log line; the
// reverse order would let a panic unwind past Logging's post-call
// logging statement and skip the log entirely.
func New(opts Options) http.Handler {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Checker == nil {
		opts.Checker = health.NewChecker()
	}
	if opts.MetricsNamespace == "" {
		opts.MetricsNamespace = "pipeflow"
	}
	httpMetrics := pflowmetrics.NewHTTPMetrics(opts.MetricsNamespace)

	r := chi.NewRouter()
	r.Use(httpmw.RequestID)
	r.Use(httpmw.Logging(opts.Logger))
	r.Use(httpmw.Recovery(opts.Logger))
	r.Use(httpmw.CORS(opts.AllowedOrigins))
	r.Use(httpmw.Metrics(httpMetrics))

	r.Get("/healthz", health.Handler())
	r.Get("/readyz", opts.Checker.Handler())
	r.Handle("/metrics", promhttp.Handler())
	r.Get("/debug/pipeline", debugPipelineHandler(opts.Inspector))

	return r
}

func debugPipelineHandler(inspector PipelineInspector) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var stats []PipeStats
		if inspector != nil {
			stats = inspector.Stats()
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		json.NewEncoder(w).Encode(stats)
	}
}
