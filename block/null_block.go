package block

import "context"

// NullBlock is a sink: every item sent to it is counted and discarded.
// It is useful as the terminal block of a pipeline branch that only
// cares about side effects performed upstream (e.g. inside a Done
// callback), and as a cheap default "next" target in tests.
//
// NullBlock carries per-item-type state (its own counters), so each
// generic instantiation owns its own instance rather than sharing one
// process-wide value — NewNullBlock is cheap enough to call per use.
type NullBlock[T any] struct {
	metrics Metrics
}

// NewNullBlock constructs a NullBlock. Observer is optional.
func NewNullBlock[T any](observer Observer) *NullBlock[T] {
	n := &NullBlock[T]{}
	n.metrics.SetObserver(observer)
	return n
}

// Send implements Block: counts the item's size as input then
// immediately as output, and discards it.
func (n *NullBlock[T]) Send(_ context.Context, item Item[T]) error {
	size := int64(item.Size())
	n.metrics.addInput(size)
	n.metrics.addInput(-size)
	n.metrics.addOutput(size)
	n.metrics.addOutput(-size)
	return nil
}

// Complete implements Block. NullBlock holds no goroutines or pending
// work, so this is a no-op; Send keeps accepting items afterwards and
// never returns ErrClosed.
func (n *NullBlock[T]) Complete() error { return nil }

// Metrics implements Block.
func (n *NullBlock[T]) Metrics() Snapshot { return n.metrics.Snapshot() }
