package block

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// BatchActionBlockOptions configures NewBatchActionBlock.
type BatchActionBlockOptions[T any] struct {
	// BatchSize and FlushInterval configure the inner TimerBatchBlock.
	BatchSize     int
	Capacity      int
	FlushInterval time.Duration
	// Parallelism is the outer ActionBlock's worker count: how many
	// batches can be in the user action concurrently.
	Parallelism int
	// Action processes one whole batch.
	Action func(ctx context.Context, batch []T) error
	// Done runs after Action succeeds for a batch, receiving the same
	// Batch item. Pipe wires its own routing function here.
	Done     Done[T]
	Context  context.Context
	Observer Observer
	Logger   *zap.Logger
	Name     string
}

// BatchActionBlock composes a TimerBatchBlock (size- and time-triggered
// batching) with an ActionBlock of capacity 1 (parallel batch
// processing): items accumulate into batches, and whole batches are then
// processed by up to Parallelism concurrent workers.
type BatchActionBlock[T any] struct {
	inner *TimerBatchBlock[T]
	outer *ActionBlock[T]
}

// NewBatchActionBlock constructs and starts a BatchActionBlock.
func NewBatchActionBlock[T any](opts BatchActionBlockOptions[T]) (*BatchActionBlock[T], error) {
	if opts.Action == nil {
		return nil, ErrNilAction
	}
	if opts.Parallelism < 1 {
		opts.Parallelism = 1
	}

	outer, err := NewActionBlock(ActionBlockOptions[T]{
		Capacity:    1,
		Parallelism: opts.Parallelism,
		Action:      FromBatchFunc(opts.Action),
		Done:        opts.Done,
		Context:     opts.Context,
		Observer:    opts.Observer,
		Logger:      opts.Logger,
		Name:        opts.Name + ".outer",
	})
	if err != nil {
		return nil, err
	}

	inner, err := NewTimerBatchBlock(TimerBatchBlockOptions[T]{
		BatchBlockOptions: BatchBlockOptions[T]{
			BatchSize: opts.BatchSize,
			Capacity:  opts.Capacity,
			Done: func(ctx context.Context, batch Item[T]) error {
				return outer.Send(ctx, batch)
			},
			Context:  opts.Context,
			Observer: opts.Observer,
			Logger:   opts.Logger,
			Name:     opts.Name + ".inner",
		},
		FlushInterval: opts.FlushInterval,
	})
	if err != nil {
		return nil, err
	}

	return &BatchActionBlock[T]{inner: inner, outer: outer}, nil
}

// Send implements Block.
func (b *BatchActionBlock[T]) Send(ctx context.Context, item Item[T]) error {
	return b.inner.Send(ctx, item)
}

// Complete completes the inner batcher first (so no further batches are
// produced), then the outer action block (draining whatever batches were
// already forwarded).
func (b *BatchActionBlock[T]) Complete() error {
	if err := b.inner.Complete(); err != nil {
		_ = b.outer.Complete()
		return err
	}
	return b.outer.Complete()
}

// Metrics implements Block, aggregating both layers.
func (b *BatchActionBlock[T]) Metrics() Snapshot {
	in := b.inner.Metrics()
	out := b.outer.Metrics()
	return Snapshot{
		InputCount:   in.InputCount + out.InputCount,
		WorkingCount: in.WorkingCount + out.WorkingCount,
		OutputCount:  in.OutputCount + out.OutputCount,
	}
}
