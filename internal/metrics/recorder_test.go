package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestRecorder_ForReportsUnderBlockLabel(t *testing.T) {
	r := NewRecorder("test_recorder_basic")
	obs := r.For("validate")

	obs.ObserveInput(3)
	obs.ObserveInput(-1)
	obs.ObserveWorking(1)
	obs.ObserveOutput(2)
	obs.ObserveBatch(5)
	obs.ObserveActionDuration(10 * time.Millisecond)
	obs.ObserveActionError()

	if got := testutil.ToFloat64(r.itemsInput.WithLabelValues("validate")); got != 2 {
		t.Errorf("expected itemsInput=2, got %v", got)
	}
	if got := testutil.ToFloat64(r.itemsWorking.WithLabelValues("validate")); got != 1 {
		t.Errorf("expected itemsWorking=1, got %v", got)
	}
	if got := testutil.ToFloat64(r.itemsOutput.WithLabelValues("validate")); got != 2 {
		t.Errorf("expected itemsOutput=2, got %v", got)
	}
	if got := testutil.ToFloat64(r.batchesTotal.WithLabelValues("validate")); got != 1 {
		t.Errorf("expected batchesTotal=1, got %v", got)
	}
	if got := testutil.ToFloat64(r.actionErrors.WithLabelValues("validate")); got != 1 {
		t.Errorf("expected actionErrors=1, got %v", got)
	}
}

func TestRecorder_DistinctBlockNamesDoNotShareCounters(t *testing.T) {
	r := NewRecorder("test_recorder_distinct")
	r.For("a").ObserveActionError()
	r.For("b").ObserveActionError()
	r.For("b").ObserveActionError()

	if got := testutil.ToFloat64(r.actionErrors.WithLabelValues("a")); got != 1 {
		t.Errorf("expected a's counter at 1, got %v", got)
	}
	if got := testutil.ToFloat64(r.actionErrors.WithLabelValues("b")); got != 2 {
		t.Errorf("expected b's counter at 2, got %v", got)
	}
}

func TestRecorder_RegistersUnderNamespace(t *testing.T) {
	NewRecorder("test_recorder_namespace").For("x").ObserveActionError()

	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		t.Fatalf("Gather: %v", err)
	}
	found := false
	for _, f := range families {
		if f.GetName() == "test_recorder_namespace_action_errors_total" {
			found = true
		}
	}
	if !found {
		t.Error("expected test_recorder_namespace_action_errors_total to be registered")
	}
}
