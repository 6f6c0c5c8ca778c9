package block

import "context"

// FilterBlock decorates another Block, routing items that fail a
// predicate to a bypass done action instead of the inner block. It
// implements Block itself so it can be wrapped (or wrap) interchangeably
// with any other primitive in this package.
//
// Filtering happens on the caller's goroutine inside Send: a
// predicate-false item never touches the inner block's intake or its
// metrics — it goes straight to done. This matters when a FilterBlock is
// used as one of a ParallelBlock's inner blocks: the fork-join tracker
// expects every inner to eventually account for each item it was sent,
// and a silently dropped item would stall that item's join forever.
// Batch items are split element-wise — an empty kept or dropped half
// after filtering is a no-op send, not an error.
type FilterBlock[T any] struct {
	inner Block[T]
	pred  func(T) bool
	done  Done[T]
}

// NewFilterBlock wraps inner with a predicate. A nil predicate admits
// everything. done is invoked for items that fail the predicate, as the
// bypass action; a nil done silently discards them.
func NewFilterBlock[T any](inner Block[T], pred func(T) bool, done Done[T]) *FilterBlock[T] {
	if pred == nil {
		pred = func(T) bool { return true }
	}
	if done == nil {
		done = func(context.Context, Item[T]) error { return nil }
	}
	return &FilterBlock[T]{inner: inner, pred: pred, done: done}
}

// Send implements Block. Empty items pass through unchanged; Single and
// Batch items are split by the predicate, with the matching half
// forwarded to the inner block and the rest routed to done.
func (f *FilterBlock[T]) Send(ctx context.Context, item Item[T]) error {
	switch item.Kind() {
	case Empty:
		return f.inner.Send(ctx, item)
	case Single:
		v, err := item.Single()
		if err != nil {
			return err
		}
		if !f.pred(v) {
			return f.done(ctx, item)
		}
		return f.inner.Send(ctx, item)
	default:
		kept := item.Filter(f.pred)
		dropped := item.Filter(func(v T) bool { return !f.pred(v) })

		var err error
		if !dropped.IsEmpty() {
			err = f.done(ctx, dropped)
		}
		if !kept.IsEmpty() {
			if e := f.inner.Send(ctx, kept); e != nil && err == nil {
				err = e
			}
		}
		return err
	}
}

// Complete implements Block, delegating to the inner block.
func (f *FilterBlock[T]) Complete() error { return f.inner.Complete() }

// Metrics implements Block, delegating to the inner block: a filter has
// no state of its own to report.
func (f *FilterBlock[T]) Metrics() Snapshot { return f.inner.Metrics() }
