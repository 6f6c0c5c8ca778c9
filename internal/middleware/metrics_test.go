package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/fermilabs/pipeflow/internal/metrics"
)

// newTestHTTPMetrics gives each test its own namespace: HTTPMetrics
// registers its collectors to the global default registerer via
// promauto, and a namespace reused across tests would panic on
// duplicate registration.
func newTestHTTPMetrics(namespace string) *metrics.HTTPMetrics {
	return metrics.NewHTTPMetrics(namespace)
}

func TestMetrics(t *testing.T) {
	m := newTestHTTPMetrics("test_metrics_basic")

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("test response"))
	})

	handler := Metrics(m)(testHandler)

	req := httptest.NewRequest("GET", "/api/test", nil)
	rr := httptest.NewRecorder()

	handler.ServeHTTP(rr, req)

	if rr.Code != http.StatusOK {
		t.Errorf("Expected status 200, got %d", rr.Code)
	}

	metricFamilies, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	found := make(map[string]bool)
	for _, mf := range metricFamilies {
		found[mf.GetName()] = true
	}

	expected := []string{
		"test_metrics_basic_admin_http_requests_total",
		"test_metrics_basic_admin_http_request_duration_seconds",
		"test_metrics_basic_admin_http_response_size_bytes",
	}
	for _, name := range expected {
		if !found[name] {
			t.Errorf("Expected metric %s to be present", name)
		}
	}
}

func TestMetrics_DifferentStatusCodes(t *testing.T) {
	m := newTestHTTPMetrics("test_metrics_status")

	tests := []struct {
		name       string
		statusCode int
	}{
		{"200 OK", http.StatusOK},
		{"201 Created", http.StatusCreated},
		{"400 Bad Request", http.StatusBadRequest},
		{"404 Not Found", http.StatusNotFound},
		{"500 Internal Server Error", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.statusCode)
			})

			handler := Metrics(m)(testHandler)

			req := httptest.NewRequest("GET", "/test", nil)
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			if rr.Code != tt.statusCode {
				t.Errorf("Expected status %d, got %d", tt.statusCode, rr.Code)
			}
		})
	}
}

func TestMetrics_DifferentMethods(t *testing.T) {
	m := newTestHTTPMetrics("test_metrics_methods")
	methods := []string{"GET", "POST", "PUT", "DELETE", "PATCH"}

	for _, method := range methods {
		t.Run(method, func(t *testing.T) {
			testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})

			handler := Metrics(m)(testHandler)

			req := httptest.NewRequest(method, "/test", nil)
			rr := httptest.NewRecorder()

			handler.ServeHTTP(rr, req)

			if rr.Code != http.StatusOK {
				t.Errorf("Expected status 200, got %d", rr.Code)
			}
		})
	}
}

func TestMetrics_RecordsResponseSize(t *testing.T) {
	m := newTestHTTPMetrics("test_metrics_response_size")

	testHandler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write(make([]byte, 1024))
	})

	handler := Metrics(m)(testHandler)

	req := httptest.NewRequest("POST", "/test", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	metricFamilies, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Failed to gather metrics: %v", err)
	}

	found := false
	for _, mf := range metricFamilies {
		if mf.GetName() == "test_metrics_response_size_admin_http_response_size_bytes" {
			found = true
			break
		}
	}
	if !found {
		t.Error("Expected response size metric to be present")
	}
}
