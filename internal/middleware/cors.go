package middleware

import (
	"net/http"
)

// CORS returns middleware allowing a dashboard or other browser-based
// client to call the admin surface (/healthz, /readyz, /metrics,
// /debug/pipeline) cross-origin. Only origins in allowedOrigins get the
// CORS response headers; everything else is served without them, which
// browsers then block at the fetch layer.
func CORS(allowedOrigins []string) func(http.Handler) http.Handler {
	allowed := make(map[string]struct{}, len(allowedOrigins))
	for _, o := range allowedOrigins {
		allowed[o] = struct{}{}
	}

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")

			// If no origin header, continue without CORS headers
			if origin == "" {
				next.ServeHTTP(w, r)
				return
			}

			// If origin not allowed, continue without CORS headers
			if _, ok := allowed[origin]; !ok {
				next.ServeHTTP(w, r)
				return
			}

			// Set CORS headers for allowed origin
			w.Header().Set("Access-Control-Allow-Origin", origin)
			w.Header().Set("Access-Control-Allow-Credentials", "true")

			// Handle preflight OPTIONS request
			if r.Method == "OPTIONS" {
				w.Header().Set("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
				w.Header().Set("Access-Control-Allow-Headers", "Accept, Content-Type, Content-Length, Accept-Encoding, Authorization, X-CSRF-Token")
				w.Header().Set("Access-Control-Max-Age", "86400") // 24 hours
				w.WriteHeader(http.StatusNoContent)
				return
			}

			// Continue to next handler
			next.ServeHTTP(w, r)
		})
	}
}
