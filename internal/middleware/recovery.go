package middleware

import (
	"encoding/json"
	"net/http"
	"runtime/debug"

	"go.uber.org/zap"
)

// Recovery returns middleware that recovers from panics raised while
// serving an admin-surface request (health, metrics, debug endpoints)
// and reports a generic 500 instead of letting the panic take down the
// server. The panic value and stack trace are logged structurally
// through logger rather than printed to stdout, matching Logging's own
// use of zap for every other admin request log line.
func Recovery(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if rec := recover(); rec != nil {
					logger.Error("panic recovered",
						zap.Any("panic", rec),
						zap.String("path", r.URL.Path),
						zap.ByteString("stacktrace", debug.Stack()),
					)

					w.Header().Set("Content-Type", "application/json")
					w.WriteHeader(http.StatusInternalServerError)

					response := map[string]interface{}{
						"error":   "Internal Server Error",
						"message": "An unexpected error occurred",
					}
					if requestID := r.Header.Get("X-Request-ID"); requestID != "" {
						response["request_id"] = requestID
					}
					json.NewEncoder(w).Encode(response)
				}
			}()

			next.ServeHTTP(w, r)
		})
	}
}
