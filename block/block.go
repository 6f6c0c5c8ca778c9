package block

import (
	"context"
	"errors"
)

// ErrClosed is returned by Send once Complete has been called.
var ErrClosed = errors.New("block: send on a completed block")

// ErrNilItem is returned when a caller that requires item identity (the
// ParallelBlock) is sent a nil item.
var ErrNilItem = errors.New("block: item must not be nil")

// ErrInvalidCapacity is a configuration error: BoundedCapacity must be >= 1.
var ErrInvalidCapacity = errors.New("block: capacity must be at least 1")

// ErrInvalidParallelism is a configuration error: DegreeOfParallelism
// must be >= 1.
var ErrInvalidParallelism = errors.New("block: parallelism must be at least 1")

// ErrNilAction is a configuration error: every block needs a user action.
var ErrNilAction = errors.New("block: action must not be nil")

// Block is the small interface every primitive in this package
// implements: a bounded intake plus a drain. Pipes hold an
// interface-typed Block; ParallelBlock and FilterBlock are decorators
// implementing the same interface over an inner Block, so nothing in the
// package needs an inheritance hierarchy.
type Block[T any] interface {
	// Send enqueues item, suspending the caller while the block's intake
	// is at capacity. It returns ErrClosed after Complete has been
	// called.
	Send(ctx context.Context, item Item[T]) error

	// Complete closes intake and waits for every worker (and, for timer
	// blocks, the timer task) to drain. It returns the first error
	// captured from a user action, if any. A context-cancellation error
	// is not returned as a failure (the block still stops running
	// actions once one is recorded).
	Complete() error

	// Metrics returns a snapshot of the block's counters.
	Metrics() Snapshot
}
