package block

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"go.uber.org/zap"
)

// InnerBuilder describes one fork target. Build receives the completion
// callback ParallelBlock wires as that inner block's Done — mirroring
// how a Pipe hands its block factory the pipe's own routing callback.
type InnerBuilder[T any] struct {
	// ID identifies this inner block for introspection; ids must be
	// unique within a single ParallelBlock.
	ID string
	// Build constructs the inner block, wiring done as its Done
	// callback so ParallelBlock's completion tracker learns when this
	// inner block has finished an item.
	Build func(done Done[T]) (Block[T], error)
}

type innerEntry[T any] struct {
	id    string
	block Block[T]
}

// ParallelBlockOptions configures NewParallelBlock. T must be comparable
// because the completion tracker keys its per-item counters by item
// identity.
type ParallelBlockOptions[T comparable] struct {
	// Inners is the fixed set of fork targets, in build order.
	Inners []InnerBuilder[T]
	// Capacity bounds the coordinating fan-out block's intake. Defaults
	// to 2 * Parallelism.
	Capacity int
	// Parallelism is the coordinating fan-out block's worker count — how
	// many items can be mid fan-out at once. Defaults to len(Inners).
	Parallelism int
	// Done runs exactly once per item, after every inner block has
	// finished it.
	Done     Done[T]
	Context  context.Context
	Observer Observer
	Logger   *zap.Logger
	Name     string
}

// ParallelBlock implements fork-join: each item is sent to every inner
// block concurrently, and the block's own Done fires exactly once, after
// all of them report the item finished.
type ParallelBlock[T comparable] struct {
	inners      []innerEntry[T]
	coordinator *ActionBlock[T]
	done        Done[T]
	ctx         context.Context
	logger      *zap.Logger

	trackerCh      chan trackerMsg[T]
	trackerStopped chan struct{}
}

type trackerKind int

const (
	trackerRegister trackerKind = iota
	trackerComplete
)

type trackerMsg[T comparable] struct {
	kind  trackerKind
	key   T
	total int
}

// NewParallelBlock constructs and starts a ParallelBlock.
func NewParallelBlock[T comparable](opts ParallelBlockOptions[T]) (*ParallelBlock[T], error) {
	if len(opts.Inners) == 0 {
		return nil, fmt.Errorf("block: parallel block needs at least one inner block")
	}
	if opts.Parallelism < 1 {
		opts.Parallelism = len(opts.Inners)
	}
	if opts.Capacity < 1 {
		opts.Capacity = 2 * opts.Parallelism
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

	p := &ParallelBlock[T]{
		done:           opts.Done,
		ctx:            opts.Context,
		logger:         opts.Logger,
		trackerCh:      make(chan trackerMsg[T]),
		trackerStopped: make(chan struct{}),
	}

	seen := make(map[string]bool, len(opts.Inners))
	for _, ib := range opts.Inners {
		if seen[ib.ID] {
			return nil, fmt.Errorf("block: duplicate inner block id %q", ib.ID)
		}
		seen[ib.ID] = true

		id := ib.ID
		innerDone := func(ctx context.Context, item Item[T]) error {
			v, err := item.Single()
			if err != nil {
				return err
			}
			p.notify(v)
			return nil
		}
		inner, err := ib.Build(innerDone)
		if err != nil {
			return nil, fmt.Errorf("block: building inner block %q: %w", id, err)
		}
		p.inners = append(p.inners, innerEntry[T]{id: id, block: inner})
	}

	coordinator, err := NewActionBlock(ActionBlockOptions[T]{
		Capacity:    opts.Capacity,
		Parallelism: opts.Parallelism,
		Action:      FromItemFunc(p.fanOut),
		Context:     opts.Context,
		Observer:    opts.Observer,
		Logger:      opts.Logger,
		Name:        opts.Name + ".fanout",
	})
	if err != nil {
		return nil, err
	}
	p.coordinator = coordinator

	go p.runTracker()
	return p, nil
}

func (p *ParallelBlock[T]) fanOut(ctx context.Context, v T) error {
	p.register(v, len(p.inners))

	var wg sync.WaitGroup
	errCh := make(chan error, len(p.inners))
	for _, ie := range p.inners {
		wg.Add(1)
		go func(ie innerEntry[T]) {
			defer wg.Done()
			if err := ie.block.Send(ctx, Of(v)); err != nil {
				errCh <- fmt.Errorf("block: fork to %q: %w", ie.id, err)
			}
		}(ie)
	}
	wg.Wait()
	close(errCh)
	for err := range errCh {
		if err != nil {
			return err
		}
	}
	return nil
}

func (p *ParallelBlock[T]) register(key T, total int) {
	p.trackerCh <- trackerMsg[T]{kind: trackerRegister, key: key, total: total}
}

func (p *ParallelBlock[T]) notify(key T) {
	p.trackerCh <- trackerMsg[T]{kind: trackerComplete, key: key}
}

// runTracker is the single goroutine that owns the per-item completion
// counters, so nothing ever needs a lock around the map.
func (p *ParallelBlock[T]) runTracker() {
	defer close(p.trackerStopped)
	counts := make(map[T]int, 16)
	for msg := range p.trackerCh {
		switch msg.kind {
		case trackerRegister:
			counts[msg.key] = msg.total
		case trackerComplete:
			remaining, ok := counts[msg.key]
			if !ok {
				continue
			}
			remaining--
			if remaining > 0 {
				counts[msg.key] = remaining
				continue
			}
			delete(counts, msg.key)
			if err := p.done(p.ctx, Of(msg.key)); err != nil {
				p.logger.Error("parallel block join callback failed", zap.Error(err))
			}
		}
	}
}

// Send implements Block. item must be Single and its value must not be a
// nil pointer/interface/map/slice/chan/func — the completion tracker
// keys on item identity, so sending the same reference twice
// concurrently through one ParallelBlock is caller error (the counters
// would collide); this is documented, not detected.
func (p *ParallelBlock[T]) Send(ctx context.Context, item Item[T]) error {
	v, err := item.Single()
	if err != nil {
		return err
	}
	if isNilValue(v) {
		return ErrNilItem
	}
	return p.coordinator.Send(ctx, Of(v))
}

// Complete completes the fan-out coordinator, awaits every inner block's
// Complete, then drains the completion tracker.
func (p *ParallelBlock[T]) Complete() error {
	err := p.coordinator.Complete()
	for _, ie := range p.inners {
		if ierr := ie.block.Complete(); ierr != nil && err == nil {
			err = ierr
		}
	}
	close(p.trackerCh)
	<-p.trackerStopped
	return err
}

// Metrics implements Block, reporting the fan-out coordinator's counters.
// Use InnerMetrics to inspect a specific fork target.
func (p *ParallelBlock[T]) Metrics() Snapshot { return p.coordinator.Metrics() }

// InnerMetrics returns the snapshot for the inner block with the given
// id, and whether that id exists.
func (p *ParallelBlock[T]) InnerMetrics(id string) (Snapshot, bool) {
	for _, ie := range p.inners {
		if ie.id == id {
			return ie.block.Metrics(), true
		}
	}
	return Snapshot{}, false
}

func isNilValue(v any) bool {
	if v == nil {
		return true
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Ptr, reflect.Interface, reflect.Map, reflect.Slice, reflect.Chan, reflect.Func:
		return rv.IsNil()
	default:
		return false
	}
}
