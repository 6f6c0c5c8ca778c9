package block

import "context"

// Action is the user-supplied work function a block invokes for each
// Item it dispatches. It is handed the full tagged union so single-item
// and batch blocks can share one action type; most callers build one with
// FromItemFunc or FromBatchFunc rather than writing an Action directly.
type Action[T any] func(ctx context.Context, item Item[T]) error

// Done is invoked after Action completes successfully for an item. Pipe
// wires its own routing function in here; callers outside a Pipe may pass
// nil for "no-op".
type Done[T any] func(ctx context.Context, item Item[T]) error

// FromItemFunc adapts a (T) -> error function into an Action that expects
// Single items. Calling the resulting Action with a Batch or Empty item
// returns ErrTypeMismatch.
func FromItemFunc[T any](fn func(ctx context.Context, v T) error) Action[T] {
	return func(ctx context.Context, item Item[T]) error {
		v, err := item.Single()
		if err != nil {
			return err
		}
		return fn(ctx, v)
	}
}

// FromBatchFunc adapts a ([]T) -> error function into an Action that
// expects Batch items. Calling the resulting Action with a Single or
// Empty item returns ErrTypeMismatch.
func FromBatchFunc[T any](fn func(ctx context.Context, batch []T) error) Action[T] {
	return func(ctx context.Context, item Item[T]) error {
		b, err := item.BatchSlice()
		if err != nil {
			return err
		}
		return fn(ctx, b)
	}
}

func noopDone[T any](context.Context, Item[T]) error { return nil }
