// Package lockout counts failed login attempts per fingerprint and locks the
// fingerprint out once the threshold is reached within the decay window.
package lockout

import (
	"context"
	"fmt"
	"time"
)

const (
	DefaultMaxAttempts = 3
	DefaultDecay       = 120 * time.Second
)

// CounterStore keeps fixed-window counters. The window starts at the first
// increment and is not extended by later ones.
type CounterStore interface {
	Increment(ctx context.Context, key string, window time.Duration) (int64, error)
	// Get returns the count and the remaining window. Absent keys give 0, 0.
	Get(ctx context.Context, key string) (int64, time.Duration, error)
	Delete(ctx context.Context, key string) error
}

type Limiter struct {
	store       CounterStore
	maxAttempts int64
	decay       time.Duration
}

func NewLimiter(store CounterStore, maxAttempts int, decay time.Duration) *Limiter {
	if maxAttempts <= 0 {
		maxAttempts = DefaultMaxAttempts
	}
	if decay <= 0 {
		decay = DefaultDecay
	}
	return &Limiter{store: store, maxAttempts: int64(maxAttempts), decay: decay}
}

func (l *Limiter) MaxAttempts() int { return int(l.maxAttempts) }

func (l *Limiter) Decay() time.Duration { return l.decay }

// TooManyAttempts reports whether key has used up its attempts.
func (l *Limiter) TooManyAttempts(ctx context.Context, key string) (bool, error) {
	count, _, err := l.store.Get(ctx, key)
	if err != nil {
		return false, fmt.Errorf("lockout: read counter: %w", err)
	}
	return count >= l.maxAttempts, nil
}

// Hit records one failed attempt and returns the new count.
func (l *Limiter) Hit(ctx context.Context, key string) (int64, error) {
	count, err := l.store.Increment(ctx, key, l.decay)
	if err != nil {
		return 0, fmt.Errorf("lockout: increment counter: %w", err)
	}
	return count, nil
}

func (l *Limiter) Clear(ctx context.Context, key string) error {
	if err := l.store.Delete(ctx, key); err != nil {
		return fmt.Errorf("lockout: clear counter: %w", err)
	}
	return nil
}

// AvailableIn returns how long until key's window resets.
func (l *Limiter) AvailableIn(ctx context.Context, key string) (time.Duration, error) {
	_, ttl, err := l.store.Get(ctx, key)
	if err != nil {
		return 0, fmt.Errorf("lockout: read counter: %w", err)
	}
	if ttl < 0 {
		return 0, nil
	}
	return ttl, nil
}
