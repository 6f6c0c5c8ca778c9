package pipe

import (
	"context"
	"sync"
	"testing"

	"github.com/fermilabs/pipeflow/block"
)

func collectingAction(mu *sync.Mutex, got *[]int) block.Action[int] {
	return block.FromItemFunc(func(_ context.Context, v int) error {
		mu.Lock()
		*got = append(*got, v)
		mu.Unlock()
		return nil
	})
}

func TestPipe_SendRunsOwnAction(t *testing.T) {
	var mu sync.Mutex
	var got []int

	p, err := Action[int](collectingAction(&mu, &got)).Id("p").Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	for i := 1; i <= 3; i++ {
		if err := p.Send(context.Background(), block.Of(i)); err != nil {
			t.Fatalf("Send(%d): %v", i, err)
		}
	}
	if err := p.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(got) != 3 {
		t.Fatalf("expected 3 items processed, got %v", got)
	}
}

func TestPipe_FilterSendsUnmatchedToNext(t *testing.T) {
	var mu sync.Mutex
	var own, next []int

	nextPipe, err := Action[int](collectingAction(&mu, &next)).Id("next").Build()
	if err != nil {
		t.Fatalf("Build next: %v", err)
	}

	p, err := Action[int](collectingAction(&mu, &own)).Id("p").
		Filter(func(v int) bool { return v%2 == 0 }).Build()
	if err != nil {
		t.Fatalf("Build p: %v", err)
	}
	p.LinkNext(nextPipe)

	for i := 1; i <= 4; i++ {
		if err := p.Send(context.Background(), block.Of(i)); err != nil {
			t.Fatalf("Send(%d): %v", i, err)
		}
	}
	if err := p.Wait(); err != nil {
		t.Fatalf("p.Wait: %v", err)
	}
	if err := nextPipe.Wait(); err != nil {
		t.Fatalf("nextPipe.Wait: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(own) != 2 {
		t.Errorf("expected 2 even values in own block, got %v", own)
	}
	if len(next) != 4 {
		t.Errorf("expected 2 odd values forwarded untouched plus 2 even values after own processing at next, got %v", next)
	}
}

func TestPipe_SendNextBypassesOwnBlock(t *testing.T) {
	var mu sync.Mutex
	var own, next []int

	nextPipe, err := Action[int](collectingAction(&mu, &next)).Id("next").Build()
	if err != nil {
		t.Fatalf("Build next: %v", err)
	}
	p, err := Action[int](collectingAction(&mu, &own)).Id("p").Build()
	if err != nil {
		t.Fatalf("Build p: %v", err)
	}
	p.LinkNext(nextPipe)

	if err := p.SendNext(context.Background(), block.Of(1)); err != nil {
		t.Fatalf("SendNext: %v", err)
	}
	if err := p.Wait(); err != nil {
		t.Fatalf("p.Wait: %v", err)
	}
	if err := nextPipe.Wait(); err != nil {
		t.Fatalf("nextPipe.Wait: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(own) != 0 {
		t.Errorf("expected own block untouched, got %v", own)
	}
	if len(next) != 1 {
		t.Errorf("expected item forwarded to next, got %v", next)
	}
}

func TestPipe_RouteTargetFirstMatchWins(t *testing.T) {
	var mu sync.Mutex
	var a, b, own []int

	pipeA, err := Action[int](collectingAction(&mu, &a)).Id("a").Build()
	if err != nil {
		t.Fatalf("Build pipeA: %v", err)
	}
	pipeB, err := Action[int](collectingAction(&mu, &b)).Id("b").Build()
	if err != nil {
		t.Fatalf("Build pipeB: %v", err)
	}

	p, err := Action[int](collectingAction(&mu, &own)).Id("p").
		Route(func(v int) *Pipe[int] {
			if v == 1 {
				return pipeA
			}
			return nil
		}).
		Route(func(v int) *Pipe[int] {
			return pipeB
		}).
		Build()
	if err != nil {
		t.Fatalf("Build p: %v", err)
	}

	for i := 1; i <= 2; i++ {
		if err := p.Send(context.Background(), block.Of(i)); err != nil {
			t.Fatalf("Send(%d): %v", i, err)
		}
	}
	if err := p.Wait(); err != nil {
		t.Fatalf("p.Wait: %v", err)
	}
	if err := pipeA.Wait(); err != nil {
		t.Fatalf("pipeA.Wait: %v", err)
	}
	if err := pipeB.Wait(); err != nil {
		t.Fatalf("pipeB.Wait: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(a) != 1 || a[0] != 1 {
		t.Errorf("expected value 1 routed to a, got %v", a)
	}
	if len(b) != 1 || b[0] != 2 {
		t.Errorf("expected value 2 routed to b (second route), got %v", b)
	}
}

func TestPipe_NoNextFallsToNullSink(t *testing.T) {
	var mu sync.Mutex
	var own []int

	p, err := Action[int](collectingAction(&mu, &own)).Id("p").
		Filter(func(v int) bool { return false }).Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}

	if err := p.Send(context.Background(), block.Of(1)); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := p.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}

	mu.Lock()
	defer mu.Unlock()
	if len(own) != 0 {
		t.Errorf("expected item swallowed by the null sink, got %v", own)
	}
}

func TestPipe_CompleteIsIdempotent(t *testing.T) {
	p, err := Action[int](block.FromItemFunc(func(context.Context, int) error { return nil })).Id("p").Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	p.Complete()
	p.Complete()
	if err := p.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	<-p.Completion()
}

func TestPipe_EmptyItemSendIsNoop(t *testing.T) {
	var mu sync.Mutex
	var own []int
	p, err := Action[int](collectingAction(&mu, &own)).Id("p").Build()
	if err != nil {
		t.Fatalf("Build: %v", err)
	}
	if err := p.Send(context.Background(), block.Nil[int]()); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if err := p.Wait(); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	if len(own) != 0 {
		t.Errorf("expected no items processed, got %v", own)
	}
}
