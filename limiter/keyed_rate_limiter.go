package limiter

import (
	"context"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// keyedLimiter holds a rate limiter and the last time it was used.
type keyedLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// KeyedRateLimiter manages one token-bucket rate.Limiter per key —
// typically a pipe id — evicting limiters that have gone unused for
// longer than idleTimeout. It generalizes the gateway's per-client-IP
// limiter to arbitrary string keys.
type KeyedRateLimiter struct {
	mu          sync.RWMutex
	limiters    map[string]*keyedLimiter
	rate        rate.Limit
	burst       int
	idleTimeout time.Duration

	stopOnce sync.Once
	stop     chan struct{}
}

// NewKeyedRateLimiter creates a limiter issuing r tokens/sec with burst
// b per key, evicting a key's limiter after idleTimeout of disuse. A
// zero idleTimeout disables eviction.
func NewKeyedRateLimiter(r float64, b int, idleTimeout time.Duration) *KeyedRateLimiter {
	k := &KeyedRateLimiter{
		limiters:    make(map[string]*keyedLimiter),
		rate:        rate.Limit(r),
		burst:       b,
		idleTimeout: idleTimeout,
		stop:        make(chan struct{}),
	}
	if idleTimeout > 0 {
		go k.cleanup()
	}
	return k
}

func (k *KeyedRateLimiter) getLimiter(key string) *rate.Limiter {
	k.mu.Lock()
	defer k.mu.Unlock()

	entry, ok := k.limiters[key]
	if !ok {
		entry = &keyedLimiter{limiter: rate.NewLimiter(k.rate, k.burst)}
		k.limiters[key] = entry
	}
	entry.lastSeen = time.Now()
	return entry.limiter
}

// Allow reports whether a token is immediately available for key,
// consuming one if so.
func (k *KeyedRateLimiter) Allow(key string) bool {
	return k.getLimiter(key).Allow()
}

// Wait blocks until a token is available for key or ctx is done.
func (k *KeyedRateLimiter) Wait(ctx context.Context, key string) error {
	return k.getLimiter(key).Wait(ctx)
}

func (k *KeyedRateLimiter) cleanup() {
	ticker := time.NewTicker(k.idleTimeout)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-k.idleTimeout)
			k.mu.Lock()
			for key, entry := range k.limiters {
				if entry.lastSeen.Before(cutoff) {
					delete(k.limiters, key)
				}
			}
			k.mu.Unlock()
		case <-k.stop:
			return
		}
	}
}

// Close stops the background eviction goroutine, if one was started.
func (k *KeyedRateLimiter) Close() {
	k.stopOnce.Do(func() { close(k.stop) })
}
