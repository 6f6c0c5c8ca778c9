package block

import (
	"sync/atomic"
	"time"
)

// Snapshot is a point-in-time read of a block's three counters. All three
// are always non-negative; their sum is bounded by the block's capacity,
// parallelism, and whatever downstream handoff is still pending.
type Snapshot struct {
	// InputCount is items accepted into the block but not yet picked up
	// by a worker.
	InputCount int64
	// WorkingCount is items currently inside the user action.
	WorkingCount int64
	// OutputCount is items currently inside downstream handoff (the done
	// callback).
	OutputCount int64
}

// Observer mirrors a block's counters and lifecycle events onto an
// external sink (Prometheus, in internal/metrics). Every method must be
// safe to call concurrently; blocks call it from whichever goroutine
// just changed the corresponding counter, never under a lock.
//
// A nil Observer is valid everywhere one is accepted: blocks check for
// nil before calling out, so attaching an Observer is strictly additive.
type Observer interface {
	ObserveInput(delta int64)
	ObserveWorking(delta int64)
	ObserveOutput(delta int64)
	ObserveBatch(size int)
	ObserveActionDuration(d time.Duration)
	ObserveActionError()
}

// Metrics holds the three atomic counters described in §3 of the
// package's design: InputCount, WorkingCount, OutputCount. The zero
// value is ready to use.
type Metrics struct {
	input    int64
	working  int64
	output   int64
	observer Observer
}

// SetObserver attaches an Observer. It is not safe to call concurrently
// with counter updates; set it once, before the block starts accepting
// items.
func (m *Metrics) SetObserver(o Observer) { m.observer = o }

func (m *Metrics) addInput(delta int64) {
	atomic.AddInt64(&m.input, delta)
	if m.observer != nil {
		m.observer.ObserveInput(delta)
	}
}

func (m *Metrics) addWorking(delta int64) {
	atomic.AddInt64(&m.working, delta)
	if m.observer != nil {
		m.observer.ObserveWorking(delta)
	}
}

func (m *Metrics) addOutput(delta int64) {
	atomic.AddInt64(&m.output, delta)
	if m.observer != nil {
		m.observer.ObserveOutput(delta)
	}
}

func (m *Metrics) observeBatch(size int) {
	if m.observer != nil {
		m.observer.ObserveBatch(size)
	}
}

func (m *Metrics) observeActionDuration(d time.Duration) {
	if m.observer != nil {
		m.observer.ObserveActionDuration(d)
	}
}

func (m *Metrics) observeActionError() {
	if m.observer != nil {
		m.observer.ObserveActionError()
	}
}

// Snapshot reads all three counters atomically with respect to each
// other's individual updates (not as a single atomic transaction across
// all three — callers needing a consistent triple under heavy concurrent
// mutation should treat this as approximate, matching the library's
// "metrics are advisory" stance).
func (m *Metrics) Snapshot() Snapshot {
	return Snapshot{
		InputCount:   atomic.LoadInt64(&m.input),
		WorkingCount: atomic.LoadInt64(&m.working),
		OutputCount:  atomic.LoadInt64(&m.output),
	}
}
