package block

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ActionBlockOptions configures NewActionBlock. Capacity and Parallelism
// must both be at least 1.
type ActionBlockOptions[T any] struct {
	// Capacity bounds the intake channel.
	Capacity int
	// Parallelism is the number of worker goroutines.
	Parallelism int
	// Action is invoked once per accepted item, unless a prior action
	// (from any worker) has already failed.
	Action Action[T]
	// Done runs after Action succeeds. Nil means no-op. Pipe wires its
	// own routing function here.
	Done Done[T]
	// Context, if set, is the block's cancellation signal: once it is
	// done, in-flight items still finish their Action call but Done is
	// skipped, which prevents propagation downstream. Defaults to
	// context.Background() (never cancelled by the block itself).
	Context context.Context
	// Observer, if set, mirrors the block's counters to an external sink.
	Observer Observer
	// Logger defaults to a no-op logger.
	Logger *zap.Logger
	// Name labels log lines and is otherwise unused.
	Name string
}

// ActionBlock is a bounded queue plus a pool of workers running a
// per-item Action. It is the building block every other primitive in
// this package (batching, fork-join, filtering) is ultimately expressed
// in terms of.
type ActionBlock[T any] struct {
	action Action[T]
	done   Done[T]
	ctx    context.Context
	logger *zap.Logger
	name   string

	metrics Metrics
	in      *intake[T]
	wg      sync.WaitGroup
	fail    failState
}

// NewActionBlock constructs and starts an ActionBlock: Parallelism
// worker goroutines are spawned before this returns.
func NewActionBlock[T any](opts ActionBlockOptions[T]) (*ActionBlock[T], error) {
	if opts.Capacity < 1 {
		return nil, ErrInvalidCapacity
	}
	if opts.Parallelism < 1 {
		return nil, ErrInvalidParallelism
	}
	if opts.Action == nil {
		return nil, ErrNilAction
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Done == nil {
		opts.Done = noopDone[T]
	}

	b := &ActionBlock[T]{
		action: opts.Action,
		done:   opts.Done,
		ctx:    opts.Context,
		logger: opts.Logger,
		name:   opts.Name,
		in:     newIntake[T](opts.Capacity),
	}
	b.metrics.SetObserver(opts.Observer)

	for i := 0; i < opts.Parallelism; i++ {
		b.wg.Add(1)
		go b.worker()
	}
	return b, nil
}

// Send implements Block.
func (b *ActionBlock[T]) Send(ctx context.Context, item Item[T]) error {
	if err := b.in.send(ctx, item); err != nil {
		return err
	}
	b.metrics.addInput(1)
	return nil
}

// Complete implements Block: it closes intake and waits for every worker
// to drain, surfacing the first captured action/done error if any.
func (b *ActionBlock[T]) Complete() error {
	b.in.close()
	b.wg.Wait()
	return b.fail.cause()
}

// Metrics implements Block.
func (b *ActionBlock[T]) Metrics() Snapshot { return b.metrics.Snapshot() }

func (b *ActionBlock[T]) recordFailure(err error) {
	b.fail.record(err)
	b.logger.Error("action block worker failed", zap.String("block", b.name), zap.Error(err))
}

// worker drains the intake channel until it is closed. On the first
// error from Action or Done it records the failure and returns (the
// worker "exits"); items already in flight on other workers keep being
// dequeued so producers stay unblocked, but once the failure is recorded
// no worker hands another item to Action.
func (b *ActionBlock[T]) worker() {
	defer b.wg.Done()
	for item := range b.in.ch {
		b.metrics.addInput(-1)

		if b.fail.failed() {
			continue
		}

		cancelledBefore := b.ctx.Err() != nil
		b.metrics.addWorking(1)
		start := time.Now()
		err := b.action(b.ctx, item)
		b.metrics.observeActionDuration(time.Since(start))
		b.metrics.addWorking(-1)
		if err != nil {
			b.metrics.observeActionError()
			b.recordFailure(err)
			return
		}

		if cancelledBefore || b.ctx.Err() != nil {
			continue
		}

		b.metrics.addOutput(1)
		derr := b.done(b.ctx, item)
		b.metrics.addOutput(-1)
		if derr != nil {
			b.recordFailure(derr)
			return
		}
	}
}
