package block

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// FlushTrigger records why a batch was emitted.
type FlushTrigger int

const (
	// SizeTrigger: the accumulated list reached BatchSize.
	SizeTrigger FlushTrigger = iota
	// TimerTrigger: TimerBatchBlock's periodic tick forced a partial
	// flush.
	TimerTrigger
	// CompleteTrigger: Complete drained a final partial batch.
	CompleteTrigger
)

// BatchBlockOptions configures NewBatchBlock.
type BatchBlockOptions[T any] struct {
	// BatchSize is the maximum emitted batch size; only a timer flush or
	// Complete emits a smaller, partial batch. Must be >= 1.
	BatchSize int
	// Capacity bounds the intake channel. Defaults to BatchSize.
	Capacity int
	// Done receives each emitted batch as a Batch Item, invoked
	// synchronously on the block's single consumer goroutine.
	Done Done[T]
	Context  context.Context
	Observer Observer
	Logger   *zap.Logger
	Name     string
	// AfterFlush, if set, is invoked on the consumer goroutine right
	// after a successful flush. TimerBatchBlock uses it to track
	// "a size-triggered batch just happened". Set at construction time
	// only — the field is read without synchronization from the
	// consumer goroutine.
	AfterFlush func(size int, trigger FlushTrigger)
}

// BatchBlock accumulates items sent to it and hands Done a full array
// once BatchSize items have arrived. There is no worker pool: Done runs
// synchronously on the one consumer goroutine, so batches are emitted in
// the order their items arrived and never overlap with each other.
// Parallelism across batches, if wanted, is layered on top (see
// BatchActionBlock).
type BatchBlock[T any] struct {
	batchSize int
	done      Done[T]
	ctx       context.Context
	logger    *zap.Logger
	name      string

	metrics Metrics
	in      *intake[T]
	wg      sync.WaitGroup
	fail    failState

	flushReq   chan chan struct{}
	stopped    chan struct{}
	afterFlush func(size int, trigger FlushTrigger)
}

// NewBatchBlock constructs and starts a BatchBlock.
func NewBatchBlock[T any](opts BatchBlockOptions[T]) (*BatchBlock[T], error) {
	if opts.BatchSize < 1 {
		return nil, ErrInvalidCapacity
	}
	if opts.Capacity == 0 {
		opts.Capacity = opts.BatchSize
	}
	if opts.Capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	if opts.Done == nil {
		return nil, ErrNilAction
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	b := &BatchBlock[T]{
		batchSize: opts.BatchSize,
		done:      opts.Done,
		ctx:       opts.Context,
		logger:    opts.Logger,
		name:      opts.Name,
		in:         newIntake[T](opts.Capacity),
		flushReq:   make(chan chan struct{}),
		stopped:    make(chan struct{}),
		afterFlush: opts.AfterFlush,
	}
	b.metrics.SetObserver(opts.Observer)

	b.wg.Add(1)
	go b.run()
	return b, nil
}

// Send implements Block. Every value in item (one for Single, many for
// Batch) is appended to the pending batch in order.
func (b *BatchBlock[T]) Send(ctx context.Context, item Item[T]) error {
	if err := b.in.send(ctx, item); err != nil {
		return err
	}
	b.metrics.addInput(int64(item.Size()))
	return nil
}

// Complete closes intake, waits for the consumer to drain, and emits any
// remaining partial batch.
func (b *BatchBlock[T]) Complete() error {
	b.in.close()
	b.wg.Wait()
	return b.fail.cause()
}

// Metrics implements Block.
func (b *BatchBlock[T]) Metrics() Snapshot { return b.metrics.Snapshot() }

// requestFlush asks the consumer goroutine to emit whatever partial batch
// it is currently holding, blocking until that round-trip completes. It
// is used by TimerBatchBlock's tick handler; calling it after Complete
// has no effect.
func (b *BatchBlock[T]) requestFlush() {
	reply := make(chan struct{})
	select {
	case b.flushReq <- reply:
		<-reply
	case <-b.stopped:
	}
}

func (b *BatchBlock[T]) recordFailure(err error) {
	b.fail.record(err)
	b.logger.Error("batch block done callback failed", zap.String("block", b.name), zap.Error(err))
}

func (b *BatchBlock[T]) run() {
	defer b.wg.Done()
	defer close(b.stopped)

	batch := make([]T, 0, b.batchSize)
	for {
		select {
		case item, ok := <-b.in.ch:
			if !ok {
				b.flush(batch, CompleteTrigger)
				return
			}
			n := int64(item.Size())
			item.ForEach(func(v T) { batch = append(batch, v) })
			b.metrics.addInput(-n)

			for len(batch) >= b.batchSize {
				chunk := append([]T(nil), batch[:b.batchSize]...)
				batch = append([]T(nil), batch[b.batchSize:]...)
				b.flush(chunk, SizeTrigger)
			}

		case reply := <-b.flushReq:
			if len(batch) > 0 {
				pending := batch
				batch = make([]T, 0, b.batchSize)
				b.flush(pending, TimerTrigger)
			}
			close(reply)
		}
	}
}

// flush hands values to Done as a single Batch item. Called only from
// run, so it never races with itself.
func (b *BatchBlock[T]) flush(values []T, trigger FlushTrigger) {
	if len(values) == 0 || b.fail.failed() {
		return
	}
	item, err := BatchOf(values)
	if err != nil {
		return
	}
	b.metrics.observeBatch(item.Size())
	b.metrics.addOutput(int64(item.Size()))
	derr := b.done(b.ctx, item)
	b.metrics.addOutput(int64(-item.Size()))
	if derr != nil {
		b.recordFailure(derr)
		return
	}
	if b.afterFlush != nil {
		b.afterFlush(item.Size(), trigger)
	}
}
