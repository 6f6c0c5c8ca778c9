package block

import (
	"context"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// TimerBatchBlockOptions configures NewTimerBatchBlock.
type TimerBatchBlockOptions[T any] struct {
	BatchBlockOptions[T]
	// FlushInterval, if non-zero, starts a periodic tick that flushes a
	// partial batch. Zero disables the timer: the block then behaves
	// exactly like a plain BatchBlock.
	FlushInterval time.Duration
}

// TimerBatchBlock decorates a BatchBlock with a periodic tick that
// flushes a partial batch, so a quiescent block never holds items
// indefinitely. Two flags coordinate the tick with size-triggered
// flushes so neither re-flushes the other's work:
//
//   - recentlyBatchedBySize is set whenever the inner BatchBlock emits a
//     size-triggered batch, unless a timer flush is already in progress.
//   - On each tick: if recentlyBatchedBySize is set, clear it and skip
//     (a size batch just happened, no need to flush again immediately).
//     Otherwise flip timerFlushInProgress, run the inner block's partial
//     flush, then clear it.
type TimerBatchBlock[T any] struct {
	inner    *BatchBlock[T]
	interval time.Duration
	logger   *zap.Logger

	recentlyBatchedBySize atomic.Bool
	timerFlushInProgress  atomic.Bool

	stopTimer chan struct{}
	timerDone chan struct{}
}

// NewTimerBatchBlock constructs and starts a TimerBatchBlock.
func NewTimerBatchBlock[T any](opts TimerBatchBlockOptions[T]) (*TimerBatchBlock[T], error) {
	t := &TimerBatchBlock[T]{
		interval:  opts.FlushInterval,
		stopTimer: make(chan struct{}),
		timerDone: make(chan struct{}),
	}
	if opts.Logger != nil {
		t.logger = opts.Logger
	} else {
		t.logger = zap.NewNop()
	}

	innerOpts := opts.BatchBlockOptions
	innerOpts.AfterFlush = t.onInnerFlush

	inner, err := NewBatchBlock(innerOpts)
	if err != nil {
		return nil, err
	}
	t.inner = inner

	if t.interval > 0 {
		go t.runTimer()
	} else {
		close(t.timerDone)
	}
	return t, nil
}

func (t *TimerBatchBlock[T]) onInnerFlush(_ int, trigger FlushTrigger) {
	if trigger == SizeTrigger && !t.timerFlushInProgress.Load() {
		t.recentlyBatchedBySize.Store(true)
	}
}

func (t *TimerBatchBlock[T]) runTimer() {
	defer close(t.timerDone)
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.stopTimer:
			return
		case <-ticker.C:
			if t.recentlyBatchedBySize.CompareAndSwap(true, false) {
				continue
			}
			t.timerFlushInProgress.Store(true)
			t.inner.requestFlush()
			t.timerFlushInProgress.Store(false)
		}
	}
}

// Send implements Block.
func (t *TimerBatchBlock[T]) Send(ctx context.Context, item Item[T]) error {
	return t.inner.Send(ctx, item)
}

// Complete closes intake, awaits drain, disposes the timer, then awaits
// the timer goroutine.
func (t *TimerBatchBlock[T]) Complete() error {
	err := t.inner.Complete()
	close(t.stopTimer)
	<-t.timerDone
	return err
}

// Metrics implements Block.
func (t *TimerBatchBlock[T]) Metrics() Snapshot { return t.inner.Metrics() }
