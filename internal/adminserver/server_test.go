package adminserver

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/fermilabs/pipeflow/block"
	"github.com/fermilabs/pipeflow/internal/health"
)

func TestServer_Healthz(t *testing.T) {
	srv := New(Options{MetricsNamespace: "test_admin_healthz"})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var status health.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Status != "healthy" {
		t.Errorf("expected healthy, got %q", status.Status)
	}
}

func TestServer_ReadyzUsesInjectedChecker(t *testing.T) {
	checker := health.NewChecker()
	checker.Register("pipeline", func() error { return errors.New("draining") })

	srv := New(Options{Checker: checker, MetricsNamespace: "test_admin_readyz"})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", rec.Code)
	}
	var status health.Status
	if err := json.Unmarshal(rec.Body.Bytes(), &status); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if status.Failures["pipeline"] != "draining" {
		t.Errorf("expected pipeline failure reported, got %+v", status.Failures)
	}
}

func TestServer_ReadyzDefaultsToReady(t *testing.T) {
	srv := New(Options{MetricsNamespace: "test_admin_readyz_default"})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200 with no registered checks, got %d", rec.Code)
	}
}

func TestServer_Metrics(t *testing.T) {
	srv := New(Options{MetricsNamespace: "test_admin_metrics"})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.Len() == 0 {
		t.Error("expected a non-empty Prometheus exposition body")
	}
}

type fakeInspector struct {
	stats []PipeStats
}

func (f fakeInspector) Stats() []PipeStats { return f.stats }

func TestServer_DebugPipelineReportsInspectorStats(t *testing.T) {
	inspector := fakeInspector{stats: []PipeStats{
		{ID: "validate", Metrics: block.Snapshot{InputCount: 3}},
	}}
	srv := New(Options{Inspector: inspector, MetricsNamespace: "test_admin_debug"})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pipeline", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var got []PipeStats
	if err := json.Unmarshal(rec.Body.Bytes(), &got); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(got) != 1 || got[0].ID != "validate" || got[0].Metrics.InputCount != 3 {
		t.Errorf("expected inspector stats to round-trip, got %+v", got)
	}
}

func TestServer_DebugPipelineWithNoInspectorReturnsNull(t *testing.T) {
	srv := New(Options{MetricsNamespace: "test_admin_debug_nil"})
	rec := httptest.NewRecorder()
	srv.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/debug/pipeline", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Body.String() != "null\n" {
		t.Errorf("expected a nil-slice JSON body, got %q", rec.Body.String())
	}
}
