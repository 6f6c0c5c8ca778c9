// Package pipe wraps a block with filtering, ordered dynamic routing, and
// default-next linking, so blocks can be composed into a directed,
// acyclic processing graph without any block knowing about its
// neighbors.
package pipe

import (
	"context"
	"errors"
	"sync"

	"github.com/fermilabs/pipeflow/block"
)

// Pipe wraps a block.Block and adds routing: an optional filter deciding
// whether an item is this pipe's own work, an ordered list of dynamic
// routes evaluated after the block finishes an item, and a default
// "next" pipe used when no route matches.
//
// A Pipe is mutated only through Send, Complete, LinkTo, and LinkNext;
// routes and next are guarded by mu since Target/RouteTarget read them
// concurrently with LinkTo/LinkNext calls made by a Pipeline during
// construction.
type Pipe[T any] struct {
	id       string
	filter   func(T) bool
	blk      block.Block[T]
	nullSink block.Block[T]

	mu     sync.RWMutex
	routes []func(T) *Pipe[T]
	next   *Pipe[T]

	completeOnce sync.Once
	completion   chan struct{}
	completeErr  error
}

// newPipe is shared by the three builder kinds. blk must already be
// constructed with its Done wired to the returned pipe's RouteItem —
// callers pass a factory so that wiring can happen in one step; see
// builder.go.
func newPipe[T any](id string, filter func(T) bool, buildBlock func(done block.Done[T]) (block.Block[T], error)) (*Pipe[T], error) {
	p := &Pipe[T]{
		id:         id,
		filter:     filter,
		completion: make(chan struct{}),
	}
	p.nullSink = block.NewNullBlock[T](nil)

	blk, err := buildBlock(p.RouteItem)
	if err != nil {
		return nil, err
	}
	p.blk = blk
	return p, nil
}

// ID returns this pipe's unique identifier.
func (p *Pipe[T]) ID() string { return p.id }

// Metrics reports the embedded block's counters.
func (p *Pipe[T]) Metrics() block.Snapshot { return p.blk.Metrics() }

// LinkTo appends a dynamic route. Routes added later are evaluated
// after ones already present — first-match-wins, insertion order.
func (p *Pipe[T]) LinkTo(route func(T) *Pipe[T]) {
	p.mu.Lock()
	p.routes = append(p.routes, route)
	p.mu.Unlock()
}

// LinkNext sets the default downstream pipe, used when no route
// matches.
func (p *Pipe[T]) LinkNext(next *Pipe[T]) {
	p.mu.Lock()
	p.next = next
	p.mu.Unlock()
}

// Target resolves the block that should receive v: this pipe's own
// block if the filter is nil or matches, otherwise the result of
// RouteTarget.
func (p *Pipe[T]) Target(v T) block.Block[T] {
	if p.filter == nil || p.filter(v) {
		return p.blk
	}
	return p.RouteTarget(v)
}

// RouteTarget evaluates routes in insertion order; the first non-nil
// result wins and is resolved recursively through its own Target (so a
// routed-to pipe's own filter still applies). Absent any match, it
// recurses into the default next pipe's Target — so a filtered-out item
// flows transparently through downstream filters too, never entering an
// intermediate block's queue. Absent a next pipe, it falls to the null
// sink.
func (p *Pipe[T]) RouteTarget(v T) block.Block[T] {
	p.mu.RLock()
	routes := p.routes
	next := p.next
	p.mu.RUnlock()

	for _, route := range routes {
		if target := route(v); target != nil {
			return target.Target(v)
		}
	}
	if next != nil {
		return next.Target(v)
	}
	return p.nullSink
}

// RouteItem is wired as the embedded block's Done callback. For each
// value the block just finished, it resolves the target through
// RouteTarget (routes, then next, then the null sink) and forwards a
// Single item to it.
func (p *Pipe[T]) RouteItem(ctx context.Context, item block.Item[T]) error {
	var firstErr error
	item.ForEach(func(v T) {
		target := p.RouteTarget(v)
		if err := target.Send(ctx, block.Of(v)); err != nil && firstErr == nil {
			firstErr = err
		}
	})
	return firstErr
}

// Send submits item for processing. Values matching the filter (or all
// of them, if there is no filter) go to this pipe's own block; the rest
// bypass it and are forwarded to the default next pipe (or the null
// sink, if there is none) untouched.
func (p *Pipe[T]) Send(ctx context.Context, item block.Item[T]) error {
	if item.IsEmpty() {
		return nil
	}
	if p.filter == nil {
		return p.blk.Send(ctx, item)
	}

	matched := item.Filter(p.filter)
	unmatched := item.Filter(func(v T) bool { return !p.filter(v) })

	var err error
	if !matched.IsEmpty() {
		err = p.blk.Send(ctx, matched)
	}
	if !unmatched.IsEmpty() {
		if e := p.sendToNext(ctx, unmatched); e != nil && err == nil {
			err = e
		}
	}
	return err
}

// SendNext bypasses this pipe's own processing entirely and forwards
// item to the default next pipe (or the null sink).
func (p *Pipe[T]) SendNext(ctx context.Context, item block.Item[T]) error {
	return p.sendToNext(ctx, item)
}

func (p *Pipe[T]) sendToNext(ctx context.Context, item block.Item[T]) error {
	p.mu.RLock()
	next := p.next
	p.mu.RUnlock()
	if next == nil {
		return p.nullSink.Send(ctx, item)
	}
	return next.Send(ctx, item)
}

// Complete asynchronously invokes the embedded block's Complete. It is
// idempotent: calling it more than once has no additional effect.
// Completion resolves once the block has drained; Wait is a convenience
// that blocks until then and returns the captured error.
func (p *Pipe[T]) Complete() {
	p.completeOnce.Do(func() {
		go func() {
			err := p.blk.Complete()
			if errors.Is(err, context.Canceled) {
				err = nil
			}
			p.completeErr = err
			close(p.completion)
		}()
	})
}

// Completion returns a channel closed once this pipe's block has
// drained (whether or not it failed).
func (p *Pipe[T]) Completion() <-chan struct{} { return p.completion }

// Wait calls Complete, then blocks until Completion resolves, returning
// the first captured error if any. A context-cancellation error is not
// surfaced: cancellation is not a failure.
func (p *Pipe[T]) Wait() error {
	p.Complete()
	<-p.completion
	return p.completeErr
}
