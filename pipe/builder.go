package pipe

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/fermilabs/pipeflow/block"
)

// common holds the fields shared by all three builder kinds.
type common[T any] struct {
	id          string
	filter      func(T) bool
	routes      []func(T) *Pipe[T]
	capacity    int
	parallelism int
	ctx         context.Context
	observer    block.Observer
	logger      *zap.Logger
}

// ActionBuilder configures a Pipe backed by an ActionBlock.
type ActionBuilder[T any] struct {
	common[T]
	action block.Action[T]
}

// Action starts building an action pipe: one worker action per item.
func Action[T any](action block.Action[T]) *ActionBuilder[T] {
	return &ActionBuilder[T]{action: action}
}

// Id sets the pipe's unique identifier.
func (b *ActionBuilder[T]) Id(id string) *ActionBuilder[T] { b.id = id; return b }

// Filter sets the optional predicate deciding whether an item is this
// pipe's own work.
func (b *ActionBuilder[T]) Filter(pred func(T) bool) *ActionBuilder[T] { b.filter = pred; return b }

// Route adds a dynamic routing function, evaluated in the order added.
func (b *ActionBuilder[T]) Route(route func(T) *Pipe[T]) *ActionBuilder[T] {
	b.routes = append(b.routes, route)
	return b
}

// BoundedCapacity sets the intake channel size. Default: parallelism*2.
func (b *ActionBuilder[T]) BoundedCapacity(n int) *ActionBuilder[T] { b.capacity = n; return b }

// DegreeOfParallelism sets the worker count. Default: 1.
func (b *ActionBuilder[T]) DegreeOfParallelism(n int) *ActionBuilder[T] { b.parallelism = n; return b }

// CancellationToken sets the block's cancellation signal.
func (b *ActionBuilder[T]) CancellationToken(ctx context.Context) *ActionBuilder[T] {
	b.ctx = ctx
	return b
}

// Observer wires a metrics sink to the underlying block.
func (b *ActionBuilder[T]) Observer(o block.Observer) *ActionBuilder[T] { b.observer = o; return b }

// Logger sets the block's structured logger.
func (b *ActionBuilder[T]) Logger(l *zap.Logger) *ActionBuilder[T] { b.logger = l; return b }

// Build constructs the Pipe.
func (b *ActionBuilder[T]) Build() (*Pipe[T], error) {
	parallelism := b.parallelism
	if parallelism < 1 {
		parallelism = 1
	}
	capacity := b.capacity
	if capacity < 1 {
		capacity = parallelism * 2
	}
	p, err := newPipe(b.id, b.filter, func(done block.Done[T]) (block.Block[T], error) {
		return block.NewActionBlock(block.ActionBlockOptions[T]{
			Capacity:    capacity,
			Parallelism: parallelism,
			Action:      b.action,
			Done:        done,
			Context:     b.ctx,
			Observer:    b.observer,
			Logger:      b.logger,
			Name:        b.id,
		})
	})
	if err != nil {
		return nil, err
	}
	for _, route := range b.routes {
		p.LinkTo(route)
	}
	return p, nil
}

// BatchBuilder configures a Pipe backed by a BatchActionBlock (size- and
// optionally time-triggered batching, with parallel batch processing).
type BatchBuilder[T any] struct {
	common[T]
	batchSize     int
	action        func(ctx context.Context, batch []T) error
	flushInterval time.Duration
}

// Batch starts building a batch pipe: accumulates up to size items, then
// runs action on the whole batch.
func Batch[T any](size int, action func(ctx context.Context, batch []T) error) *BatchBuilder[T] {
	return &BatchBuilder[T]{batchSize: size, action: action}
}

// Id sets the pipe's unique identifier.
func (b *BatchBuilder[T]) Id(id string) *BatchBuilder[T] { b.id = id; return b }

// Filter sets the optional predicate deciding whether an item is this
// pipe's own work.
func (b *BatchBuilder[T]) Filter(pred func(T) bool) *BatchBuilder[T] { b.filter = pred; return b }

// Route adds a dynamic routing function, applied per item after the
// batch action runs.
func (b *BatchBuilder[T]) Route(route func(T) *Pipe[T]) *BatchBuilder[T] {
	b.routes = append(b.routes, route)
	return b
}

// BoundedCapacity sets the intake channel size. Default: batchSize.
func (b *BatchBuilder[T]) BoundedCapacity(n int) *BatchBuilder[T] { b.capacity = n; return b }

// DegreeOfParallelism sets how many batches may be in the action
// concurrently. Default: 1.
func (b *BatchBuilder[T]) DegreeOfParallelism(n int) *BatchBuilder[T] { b.parallelism = n; return b }

// CancellationToken sets the block's cancellation signal.
func (b *BatchBuilder[T]) CancellationToken(ctx context.Context) *BatchBuilder[T] {
	b.ctx = ctx
	return b
}

// BatchTriggerPeriod sets the partial-flush timer interval. Default:
// disabled (no timer — only size triggers a flush, plus Complete's
// final partial batch).
func (b *BatchBuilder[T]) BatchTriggerPeriod(d time.Duration) *BatchBuilder[T] {
	b.flushInterval = d
	return b
}

// Observer wires a metrics sink to the underlying block.
func (b *BatchBuilder[T]) Observer(o block.Observer) *BatchBuilder[T] { b.observer = o; return b }

// Logger sets the block's structured logger.
func (b *BatchBuilder[T]) Logger(l *zap.Logger) *BatchBuilder[T] { b.logger = l; return b }

// Build constructs the Pipe.
func (b *BatchBuilder[T]) Build() (*Pipe[T], error) {
	parallelism := b.parallelism
	if parallelism < 1 {
		parallelism = 1
	}
	capacity := b.capacity
	if capacity < 1 {
		capacity = b.batchSize
	}
	p, err := newPipe(b.id, b.filter, func(done block.Done[T]) (block.Block[T], error) {
		return block.NewBatchActionBlock(block.BatchActionBlockOptions[T]{
			BatchSize:     b.batchSize,
			Capacity:      capacity,
			FlushInterval: b.flushInterval,
			Parallelism:   parallelism,
			Action:        b.action,
			Done:          done,
			Context:       b.ctx,
			Observer:      b.observer,
			Logger:        b.logger,
			Name:          b.id,
		})
	})
	if err != nil {
		return nil, err
	}
	for _, route := range b.routes {
		p.LinkTo(route)
	}
	return p, nil
}

// ForkBuilder configures a Pipe backed by a ParallelBlock: each item is
// sent to every inner block, and Join runs once all of them finish it.
type ForkBuilder[T comparable] struct {
	common[T]
	inners []block.InnerBuilder[T]
	join   func(ctx context.Context, v T) error
}

// Fork starts building a fork-join pipe over the given inner block
// builders.
func Fork[T comparable](inners ...block.InnerBuilder[T]) *ForkBuilder[T] {
	return &ForkBuilder[T]{inners: inners}
}

// Id sets the pipe's unique identifier.
func (b *ForkBuilder[T]) Id(id string) *ForkBuilder[T] { b.id = id; return b }

// Filter sets the optional predicate deciding whether an item is this
// pipe's own work.
func (b *ForkBuilder[T]) Filter(pred func(T) bool) *ForkBuilder[T] { b.filter = pred; return b }

// Route adds a dynamic routing function, applied per item after Join
// runs.
func (b *ForkBuilder[T]) Route(route func(T) *Pipe[T]) *ForkBuilder[T] {
	b.routes = append(b.routes, route)
	return b
}

// BoundedCapacity sets the fan-out coordinator's intake size. Default:
// parallelism*2.
func (b *ForkBuilder[T]) BoundedCapacity(n int) *ForkBuilder[T] { b.capacity = n; return b }

// DegreeOfParallelism sets the fan-out coordinator's worker count,
// i.e. how many items may be mid-fan-out at once. Default: 1.
func (b *ForkBuilder[T]) DegreeOfParallelism(n int) *ForkBuilder[T] { b.parallelism = n; return b }

// CancellationToken sets the fan-out coordinator's cancellation signal.
func (b *ForkBuilder[T]) CancellationToken(ctx context.Context) *ForkBuilder[T] {
	b.ctx = ctx
	return b
}

// Join sets the callback that runs once after every inner block has
// finished an item.
func (b *ForkBuilder[T]) Join(join func(ctx context.Context, v T) error) *ForkBuilder[T] {
	b.join = join
	return b
}

// Observer wires a metrics sink to the fan-out coordinator.
func (b *ForkBuilder[T]) Observer(o block.Observer) *ForkBuilder[T] { b.observer = o; return b }

// Logger sets the fan-out coordinator's structured logger.
func (b *ForkBuilder[T]) Logger(l *zap.Logger) *ForkBuilder[T] { b.logger = l; return b }

// ToPipe constructs the Pipe. Named to match the fork builder's
// language-neutral surface; Build is an identical alias shared with the
// other two builders.
func (b *ForkBuilder[T]) ToPipe() (*Pipe[T], error) { return b.Build() }

// Build constructs the Pipe.
func (b *ForkBuilder[T]) Build() (*Pipe[T], error) {
	parallelism := b.parallelism
	if parallelism < 1 {
		parallelism = 1
	}
	capacity := b.capacity
	if capacity < 1 {
		capacity = parallelism * 2
	}
	join := b.join
	p, err := newPipe(b.id, b.filter, func(done block.Done[T]) (block.Block[T], error) {
		return block.NewParallelBlock(block.ParallelBlockOptions[T]{
			Inners:      b.inners,
			Capacity:    capacity,
			Parallelism: parallelism,
			Done: func(ctx context.Context, item block.Item[T]) error {
				v, err := item.Single()
				if err != nil {
					return err
				}
				if join != nil {
					if err := join(ctx, v); err != nil {
						return err
					}
				}
				return done(ctx, item)
			},
			Context:  b.ctx,
			Observer: b.observer,
			Logger:   b.logger,
			Name:     b.id,
		})
	})
	if err != nil {
		return nil, err
	}
	for _, route := range b.routes {
		p.LinkTo(route)
	}
	return p, nil
}
