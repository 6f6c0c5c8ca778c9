// Package limiter provides work-in-progress capping and rate shaping
// for an arbitrarily deep pipeline: PipelineLimiter caps how many items
// are in flight end to end, independent of any single block's local
// capacity, and KeyedRateLimiter paces admission per pipe id.
package limiter

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// ErrInvalidMaxWork is a configuration error: MaxWork must be >= 1.
var ErrInvalidMaxWork = errors.New("limiter: max work must be at least 1")

// ErrNilDispatch is a configuration error: every limiter needs a
// dispatch function.
var ErrNilDispatch = errors.New("limiter: dispatch must not be nil")

// ErrClosed is returned by Send once Complete has started.
var ErrClosed = errors.New("limiter: send after complete")

// Dispatch is invoked by the limiter's coordinator once an item is
// admitted under the work-in-progress cap. The caller must eventually
// call TrackDone exactly once for this item — dispatch is expected to
// hand the item to asynchronous work (e.g. a pipeline.Send) and return
// immediately; TrackDone is typically called later, from wherever that
// work ultimately completes.
type Dispatch[T any] func(ctx context.Context, v T) error

// PipelineLimiterOptions configures NewPipelineLimiter.
type PipelineLimiterOptions[T any] struct {
	// MaxWork is the global cap on concurrently in-flight items.
	MaxWork int
	// Dispatch runs once per admitted item.
	Dispatch Dispatch[T]
	// RateLimiter, if set, paces admission: Send blocks on
	// RateLimiter.Wait(ctx, RateLimitKey) before taking a WIP slot.
	RateLimiter *KeyedRateLimiter
	RateLimitKey string
	Context      context.Context
	Logger       *zap.Logger
}

// PipelineLimiter caps concurrent in-flight work at MaxWork, regardless
// of any per-block capacity elsewhere in the pipeline. A single
// coordinator goroutine owns the work-in-progress counter, so it is
// never touched by more than one goroutine.
type PipelineLimiter[T any] struct {
	maxWork     int
	dispatch    Dispatch[T]
	rateLimiter *KeyedRateLimiter
	rateKey     string
	ctx         context.Context
	logger      *zap.Logger

	sendCh chan T
	// doneCh holds up to MaxWork signals: at most that many can be
	// pending, so TrackDone never blocks, even when Dispatch calls it
	// before returning.
	doneCh  chan struct{}
	closeCh chan struct{}
	stopped chan struct{}

	closeOnce sync.Once
}

// NewPipelineLimiter constructs and starts a PipelineLimiter.
func NewPipelineLimiter[T any](opts PipelineLimiterOptions[T]) (*PipelineLimiter[T], error) {
	if opts.MaxWork < 1 {
		return nil, ErrInvalidMaxWork
	}
	if opts.Dispatch == nil {
		return nil, ErrNilDispatch
	}
	if opts.Context == nil {
		opts.Context = context.Background()
	}
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}

	l := &PipelineLimiter[T]{
		maxWork:     opts.MaxWork,
		dispatch:    opts.Dispatch,
		rateLimiter: opts.RateLimiter,
		rateKey:     opts.RateLimitKey,
		ctx:         opts.Context,
		logger:      opts.Logger,
		sendCh:      make(chan T),
		doneCh:      make(chan struct{}, opts.MaxWork),
		closeCh:     make(chan struct{}),
		stopped:     make(chan struct{}),
	}
	go l.run()
	return l, nil
}

// Send admits v once a work-in-progress slot is available, applying
// RateLimiter pacing first if configured. It blocks while the limiter
// is at MaxWork, or while ctx is not yet Done and no slot has opened.
func (l *PipelineLimiter[T]) Send(ctx context.Context, v T) error {
	if l.rateLimiter != nil {
		if err := l.rateLimiter.Wait(ctx, l.rateKey); err != nil {
			return fmt.Errorf("limiter: rate limit wait: %w", err)
		}
	}
	select {
	case l.sendCh <- v:
		return nil
	case <-l.closeCh:
		return ErrClosed
	case <-ctx.Done():
		return ctx.Err()
	}
}

// TrackDone signals that one previously dispatched item has finished.
// The dispatch function (or whatever downstream work it triggered) must
// call this exactly once per item sent.
func (l *PipelineLimiter[T]) TrackDone() {
	select {
	case l.doneCh <- struct{}{}:
	case <-l.stopped:
	}
}

// Complete stops accepting new sends, waits for every already-admitted
// item to be tracked done, and returns once the coordinator exits.
func (l *PipelineLimiter[T]) Complete() error {
	l.closeOnce.Do(func() { close(l.closeCh) })
	<-l.stopped
	return nil
}

func (l *PipelineLimiter[T]) run() {
	defer close(l.stopped)
	wip := 0
	for {
		var admit chan T
		if wip < l.maxWork {
			admit = l.sendCh
		}
		select {
		case v := <-admit:
			wip++
			if err := l.dispatch(l.ctx, v); err != nil {
				l.logger.Error("pipeline limiter dispatch failed", zap.Error(err))
			}
		case <-l.doneCh:
			wip--
		case <-l.closeCh:
			for wip > 0 {
				<-l.doneCh
				wip--
			}
			return
		}
	}
}
