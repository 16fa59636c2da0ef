package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/pilab-dev/shadow-auth/cache"
	"github.com/pilab-dev/shadow-auth/domain"
	"github.com/pilab-dev/shadow-auth/internal/audit"
	"github.com/pilab-dev/shadow-auth/internal/metrics"
	"github.com/rs/zerolog/log"
)

const (
	checkpointService = "SecondFactorChallenge"

	DefaultChallengeTTL = 5 * time.Minute

	// challengeRetention keeps an entry in the store past its expiry so a late
	// redemption is reported as expired rather than unknown.
	challengeRetention = time.Minute
)

// SecondFactorChallenge holds a password-verified login until the matching
// TOTP code arrives. Each token can complete at most one login.
type SecondFactorChallenge struct {
	store    cache.ChallengeStore
	users    domain.UserRepository
	totp     TOTPValidator
	sessions SessionEstablisher
	ttl      time.Duration
	now      func() time.Time
}

func NewSecondFactorChallenge(
	store cache.ChallengeStore,
	users domain.UserRepository,
	totp TOTPValidator,
	sessions SessionEstablisher,
	ttl time.Duration,
) *SecondFactorChallenge {
	if ttl <= 0 {
		ttl = DefaultChallengeTTL
	}
	return &SecondFactorChallenge{
		store:    store,
		users:    users,
		totp:     totp,
		sessions: sessions,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Issue returns a fresh confirmation token bound to userID.
func (c *SecondFactorChallenge) Issue(ctx context.Context, userID string) (string, error) {
	token, err := randomToken()
	if err != nil {
		return "", err
	}

	entry := cache.PendingSecondFactor{UserID: userID, ExpiresAt: c.now().Add(c.ttl)}
	if err := c.store.Put(ctx, token, entry, c.ttl+challengeRetention); err != nil {
		return "", fmt.Errorf("failed to store checkpoint: %w", err)
	}

	audit.Log(checkpointService, audit.ActionCheckpointIssued, userID, "", "", true, nil)
	metrics.SecondFactorChallengesTotal.Inc()
	return token, nil
}

// Redeem completes the login for token when code is valid. A wrong code keeps
// the token usable until it expires.
func (c *SecondFactorChallenge) Redeem(ctx context.Context, token, code string, meta ClientMeta) (*AuthOutcome, error) {
	entry, err := c.store.Get(ctx, token)
	if errors.Is(err, cache.ErrChallengeNotFound) {
		return nil, ErrChallengeUnknown
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load checkpoint: %w", err)
	}

	if !c.now().Before(entry.ExpiresAt) {
		c.discard(ctx, token, "expired")
		return nil, ErrChallengeExpired
	}

	user, err := c.users.GetUserByID(ctx, entry.UserID)
	if errors.Is(err, domain.ErrUserNotFound) {
		c.discard(ctx, token, "user gone")
		return nil, ErrChallengeUnknown
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load user: %w", err)
	}

	valid := false
	if user.UseTOTP && user.TOTPSecret != "" {
		valid, err = c.totp.Validate(user.TOTPSecret, code)
		if err != nil {
			return nil, err
		}
	}
	if !valid {
		log.Ctx(ctx).Warn().Str("user_id", user.ID).Msg("Checkpoint: invalid code")
		audit.Log(checkpointService, audit.ActionCheckpointFailed, user.ID, meta.IP, "invalid code", false, ErrAuthenticationFailed)
		metrics.LoginFailureTotal.WithLabelValues(metrics.MethodCheckpoint).Inc()
		return Failed(), nil
	}

	if _, err := c.store.Take(ctx, token); err != nil {
		if errors.Is(err, cache.ErrChallengeNotFound) {
			return nil, ErrChallengeUnknown
		}
		return nil, fmt.Errorf("failed to consume checkpoint: %w", err)
	}

	session, err := c.sessions.Establish(ctx, user, meta)
	if err != nil {
		return nil, err
	}

	audit.Log(checkpointService, audit.ActionCheckpointRedeemed, user.ID, meta.IP, metrics.MethodCheckpoint, true, nil)
	metrics.LoginSuccessTotal.WithLabelValues(metrics.MethodCheckpoint).Inc()
	return Success(user, session), nil
}

// discard removes a token that can no longer complete a login.
func (c *SecondFactorChallenge) discard(ctx context.Context, token, reason string) {
	if _, err := c.store.Take(ctx, token); err != nil && !errors.Is(err, cache.ErrChallengeNotFound) {
		log.Ctx(ctx).Warn().Err(err).Str("reason", reason).Msg("Checkpoint: failed to discard token")
	}
}

var _ ChallengeIssuer = (*SecondFactorChallenge)(nil)
