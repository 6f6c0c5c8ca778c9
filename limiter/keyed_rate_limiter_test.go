package limiter

import (
	"context"
	"testing"
	"time"
)

func TestKeyedRateLimiter_AllowRespectsBurst(t *testing.T) {
	k := NewKeyedRateLimiter(1, 2, 0)
	defer k.Close()

	if !k.Allow("a") {
		t.Error("expected first token to be available")
	}
	if !k.Allow("a") {
		t.Error("expected second token (burst=2) to be available")
	}
	if k.Allow("a") {
		t.Error("expected burst to be exhausted on the third call")
	}
}

func TestKeyedRateLimiter_KeysAreIndependent(t *testing.T) {
	k := NewKeyedRateLimiter(1, 1, 0)
	defer k.Close()

	if !k.Allow("a") {
		t.Error("expected key a's token to be available")
	}
	if !k.Allow("b") {
		t.Error("expected key b to have its own independent bucket")
	}
	if k.Allow("a") {
		t.Error("expected key a's bucket to be exhausted")
	}
}

func TestKeyedRateLimiter_WaitBlocksUntilTokenAvailable(t *testing.T) {
	k := NewKeyedRateLimiter(50, 1, 0)
	defer k.Close()

	if !k.Allow("a") {
		t.Fatal("expected the initial token to be available")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	start := time.Now()
	if err := k.Wait(ctx, "a"); err != nil {
		t.Fatalf("Wait: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 5*time.Millisecond {
		t.Errorf("expected Wait to block briefly for the next token, took %v", elapsed)
	}
}

func TestKeyedRateLimiter_WaitRespectsContext(t *testing.T) {
	k := NewKeyedRateLimiter(1, 1, 0)
	defer k.Close()

	if !k.Allow("a") {
		t.Fatal("expected the initial token to be available")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	if err := k.Wait(ctx, "a"); err == nil {
		t.Error("expected Wait to fail once the context deadline is shorter than the refill")
	}
}

func TestKeyedRateLimiter_IdleEvictionRemovesUnusedKeys(t *testing.T) {
	k := NewKeyedRateLimiter(1, 1, 10*time.Millisecond)
	defer k.Close()

	k.Allow("stale")
	time.Sleep(40 * time.Millisecond)

	k.mu.RLock()
	_, exists := k.limiters["stale"]
	k.mu.RUnlock()
	if exists {
		t.Error("expected the idle key's limiter to be evicted")
	}
}

func TestKeyedRateLimiter_CloseIsIdempotent(t *testing.T) {
	k := NewKeyedRateLimiter(1, 1, time.Millisecond)
	k.Close()
	k.Close()
}
