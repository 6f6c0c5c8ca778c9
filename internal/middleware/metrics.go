package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/fermilabs/pipeflow/internal/metrics"
)

// metricsResponseWriter wraps http.ResponseWriter to capture response size and status
type metricsResponseWriter struct {
	http.ResponseWriter
	statusCode   int
	bytesWritten int
}

func (mrw *metricsResponseWriter) WriteHeader(code int) {
	mrw.statusCode = code
	mrw.ResponseWriter.WriteHeader(code)
}

func (mrw *metricsResponseWriter) Write(b []byte) (int, error) {
	n, err := mrw.ResponseWriter.Write(b)
	mrw.bytesWritten += n
	return n, err
}

// Flush implements http.Flusher when the wrapped writer supports it.
func (mrw *metricsResponseWriter) Flush() {
	if flusher, ok := mrw.ResponseWriter.(http.Flusher); ok {
		flusher.Flush()
	}
}

// Metrics middleware records HTTP metrics for the admin server's own
// surface.
func Metrics(m *metrics.HTTPMetrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			mrw := &metricsResponseWriter{
				ResponseWriter: w,
				statusCode:     http.StatusOK,
			}

			next.ServeHTTP(mrw, r)

			duration := time.Since(start).Seconds()
			statusCode := strconv.Itoa(mrw.statusCode)

			m.RequestsTotal.WithLabelValues(r.Method, r.URL.Path, statusCode).Inc()
			m.RequestDuration.WithLabelValues(r.Method, r.URL.Path, statusCode).Observe(duration)
			m.ResponseSize.WithLabelValues(r.Method, r.URL.Path, statusCode).Observe(float64(mrw.bytesWritten))
		})
	}
}
