package cache

import (
	"context"
	"errors"
	"time"
)

var ErrChallengeNotFound = errors.New("challenge not found")

// PendingSecondFactor is a password-verified login waiting for its TOTP code.
type PendingSecondFactor struct {
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ChallengeStore keeps pending second factor logins keyed by their
// confirmation token. Implementations hash the token before using it as a key.
type ChallengeStore interface {
	// Put stores entry for ttl.
	Put(ctx context.Context, token string, entry PendingSecondFactor, ttl time.Duration) error
	// Get returns the entry without consuming it, or ErrChallengeNotFound.
	Get(ctx context.Context, token string) (*PendingSecondFactor, error)
	// Take atomically returns and removes the entry. Of two concurrent
	// callers at most one gets it; the other sees ErrChallengeNotFound.
	Take(ctx context.Context, token string) (*PendingSecondFactor, error)
}
