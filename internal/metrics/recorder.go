// Package metrics exposes pipeline block counters as Prometheus
// collectors.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/fermilabs/pipeflow/block"
)

// Recorder implements block.Observer, mirroring a block's atomic
// counters into Prometheus gauges/counters/histograms. One Recorder is
// shared across every block in a pipeline; a "block" label on each
// collector distinguishes them.
type Recorder struct {
	name string

	itemsInput   *prometheus.GaugeVec
	itemsWorking *prometheus.GaugeVec
	itemsOutput  *prometheus.GaugeVec
	batchesTotal *prometheus.CounterVec
	batchSize    *prometheus.HistogramVec
	actionDur    *prometheus.HistogramVec
	actionErrors *prometheus.CounterVec
}

// NewRecorder registers the pipeflow collector family under namespace
// and returns a Recorder. Pass a block name to For to get a per-block
// block.Observer.
func NewRecorder(namespace string) *Recorder {
	return &Recorder{
		itemsInput: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "items_input",
			Help:      "Items accepted but not yet in a worker, per block.",
		}, []string{"block"}),
		itemsWorking: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "items_working",
			Help:      "Items currently inside the user action, per block.",
		}, []string{"block"}),
		itemsOutput: promauto.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "items_output",
			Help:      "Items currently inside downstream handoff, per block.",
		}, []string{"block"}),
		batchesTotal: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Total number of batches emitted, per block.",
		}, []string{"block"}),
		batchSize: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "batch_size",
			Help:      "Size of emitted batches, per block.",
			Buckets:   []float64{1, 2, 5, 10, 25, 50, 100, 250, 500},
		}, []string{"block"}),
		actionDur: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "action_duration_seconds",
			Help:      "Duration of the user action, per block.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"block"}),
		actionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "action_errors_total",
			Help:      "Total number of action/done errors, per block.",
		}, []string{"block"}),
	}
}

// blockObserver is the per-block view over a shared Recorder.
type blockObserver struct {
	r    *Recorder
	name string
}

// For returns a block.Observer reporting under the given block name.
func (r *Recorder) For(name string) block.Observer {
	return &blockObserver{r: r, name: name}
}

func (o *blockObserver) ObserveInput(delta int64) {
	o.r.itemsInput.WithLabelValues(o.name).Add(float64(delta))
}

func (o *blockObserver) ObserveWorking(delta int64) {
	o.r.itemsWorking.WithLabelValues(o.name).Add(float64(delta))
}

func (o *blockObserver) ObserveOutput(delta int64) {
	o.r.itemsOutput.WithLabelValues(o.name).Add(float64(delta))
}

func (o *blockObserver) ObserveBatch(size int) {
	o.r.batchesTotal.WithLabelValues(o.name).Inc()
	o.r.batchSize.WithLabelValues(o.name).Observe(float64(size))
}

func (o *blockObserver) ObserveActionDuration(d time.Duration) {
	o.r.actionDur.WithLabelValues(o.name).Observe(d.Seconds())
}

func (o *blockObserver) ObserveActionError() {
	o.r.actionErrors.WithLabelValues(o.name).Inc()
}
