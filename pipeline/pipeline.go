// Package pipeline provides ordered bookkeeping over a chain of pipes:
// a unique-id registry, head/tail linking, and joint dispatch and
// completion.
package pipeline

import (
	"context"
	"errors"
	"fmt"

	"github.com/fermilabs/pipeflow/block"
	"github.com/fermilabs/pipeflow/pipe"
)

// ErrDuplicateID is returned by Add when the pipe's id already exists in
// the pipeline.
var ErrDuplicateID = errors.New("pipeline: duplicate pipe id")

// ErrPipeNotFound is returned by Send/SendNext when the requested id is
// not in the pipeline.
var ErrPipeNotFound = errors.New("pipeline: pipe not found")

// Pipeline is an ordered list of pipes, keyed by unique id, that are
// linked into a chain as they are added: each newly added pipe becomes
// the previous tail's default next.
type Pipeline[T any] struct {
	defaultRoute func(T) *pipe.Pipe[T]

	order []*pipe.Pipe[T]
	byID  map[string]*pipe.Pipe[T]
	head  *pipe.Pipe[T]
	tail  *pipe.Pipe[T]
}

// New constructs an empty Pipeline. defaultRoute, if non-nil, is linked
// onto every pipe added via Add.
func New[T any](defaultRoute func(T) *pipe.Pipe[T]) *Pipeline[T] {
	return &Pipeline[T]{
		defaultRoute: defaultRoute,
		byID:         make(map[string]*pipe.Pipe[T]),
	}
}

// Add appends p to the pipeline. It fails with ErrDuplicateID if p's id
// is already registered. If the pipeline was constructed with a default
// route, it is linked onto p. The previous tail (if any) has its
// LinkNext set to p.
func (pl *Pipeline[T]) Add(p *pipe.Pipe[T]) error {
	if _, exists := pl.byID[p.ID()]; exists {
		return fmt.Errorf("%w: %q", ErrDuplicateID, p.ID())
	}
	if pl.defaultRoute != nil {
		p.LinkTo(pl.defaultRoute)
	}
	if pl.tail != nil {
		pl.tail.LinkNext(p)
	}
	pl.byID[p.ID()] = p
	pl.order = append(pl.order, p)
	if pl.head == nil {
		pl.head = p
	}
	pl.tail = p
	return nil
}

// Send dispatches item into the pipeline. With id empty, it enters at
// the head. With id set, it enters at the named pipe, failing with
// ErrPipeNotFound if unknown.
func (pl *Pipeline[T]) Send(ctx context.Context, item block.Item[T], id string) error {
	target, err := pl.resolve(id, pl.head)
	if err != nil {
		return err
	}
	if target == nil {
		return nil
	}
	return target.Send(ctx, item)
}

// SendNext forwards item past the pipe named by id, into its default
// next (or the null sink). id must name a registered pipe.
func (pl *Pipeline[T]) SendNext(ctx context.Context, item block.Item[T], id string) error {
	target, err := pl.resolve(id, nil)
	if err != nil {
		return err
	}
	if target == nil {
		return fmt.Errorf("%w: %q", ErrPipeNotFound, id)
	}
	return target.SendNext(ctx, item)
}

func (pl *Pipeline[T]) resolve(id string, fallback *pipe.Pipe[T]) (*pipe.Pipe[T], error) {
	if id == "" {
		return fallback, nil
	}
	p, ok := pl.byID[id]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrPipeNotFound, id)
	}
	return p, nil
}

// Complete completes every pipe in insertion order, awaiting each one's
// drain before completing the next, and returns the first captured
// error if any.
func (pl *Pipeline[T]) Complete() error {
	var firstErr error
	for _, p := range pl.order {
		if err := p.Wait(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Pipes returns the pipeline's pipes in insertion order.
func (pl *Pipeline[T]) Pipes() []*pipe.Pipe[T] {
	out := make([]*pipe.Pipe[T], len(pl.order))
	copy(out, pl.order)
	return out
}

// Pipe looks up a registered pipe by id.
func (pl *Pipeline[T]) Pipe(id string) (*pipe.Pipe[T], bool) {
	p, ok := pl.byID[id]
	return p, ok
}

// Stat names a pipe and its block's current counters, for introspection
// endpoints such as the admin server's /debug/pipeline.
type Stat struct {
	ID      string
	Metrics block.Snapshot
}

// Stats reports one Stat per pipe, in insertion order.
func (pl *Pipeline[T]) Stats() []Stat {
	stats := make([]Stat, len(pl.order))
	for i, p := range pl.order {
		stats[i] = Stat{ID: p.ID(), Metrics: p.Metrics()}
	}
	return stats
}
