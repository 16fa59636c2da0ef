package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/pilab-dev/shadow-auth/domain"
	"github.com/pilab-dev/shadow-auth/internal/audit"
	"github.com/pilab-dev/shadow-auth/internal/metrics"
	"github.com/rs/zerolog/log"
)

const credentialsService = "CredentialAuthenticator"

// CredentialAuthenticator verifies an identifier and password.
type CredentialAuthenticator struct {
	users      domain.UserRepository
	hasher     PasswordHasher
	throttle   Throttle
	challenges ChallengeIssuer
	sessions   SessionEstablisher
}

func NewCredentialAuthenticator(
	users domain.UserRepository,
	hasher PasswordHasher,
	throttle Throttle,
	challenges ChallengeIssuer,
	sessions SessionEstablisher,
) *CredentialAuthenticator {
	return &CredentialAuthenticator{
		users:      users,
		hasher:     hasher,
		throttle:   throttle,
		challenges: challenges,
		sessions:   sessions,
	}
}

// Authenticate never distinguishes an unknown user from a wrong password in
// its outcome. The error return is reserved for infrastructure failures.
func (a *CredentialAuthenticator) Authenticate(ctx context.Context, attempt LoginAttempt) (*AuthOutcome, error) {
	key := attempt.Fingerprint()

	locked, err := a.throttle.TooManyAttempts(ctx, key)
	if err != nil {
		return nil, err
	}
	if locked {
		wait, err := a.throttle.AvailableIn(ctx, key)
		if err != nil {
			return nil, err
		}
		log.Ctx(ctx).Warn().Str("identifier", attempt.Identifier).Str("ip", attempt.ClientIP).Dur("retry_after", wait).Msg("Login: too many attempts")
		audit.Log(credentialsService, audit.ActionLockout, attempt.Identifier, attempt.ClientIP, "too many attempts", false, nil)
		metrics.LockoutsTotal.Inc()
		return Locked(wait), nil
	}

	user, err := a.lookup(ctx, attempt)
	if errors.Is(err, domain.ErrUserNotFound) {
		a.hasher.VerifyDummy(attempt.Password)
		return a.fail(ctx, attempt, "", "unknown user")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up user: %w", err)
	}

	if !user.HasPassword() {
		a.hasher.VerifyDummy(attempt.Password)
		return a.fail(ctx, attempt, user.ID, "account has no password")
	}
	if err := a.hasher.Verify(user.PasswordHash, attempt.Password); err != nil {
		return a.fail(ctx, attempt, user.ID, "incorrect password")
	}

	if user.UseTOTP {
		token, err := a.challenges.Issue(ctx, user.ID)
		if err != nil {
			return nil, err
		}
		log.Ctx(ctx).Info().Str("user_id", user.ID).Msg("Login: TOTP enabled, checkpoint required")
		return RequiresSecondFactor(token), nil
	}

	if err := a.throttle.Clear(ctx, key); err != nil {
		log.Ctx(ctx).Warn().Err(err).Msg("Login: failed to clear attempt counter")
	}

	session, err := a.sessions.Establish(ctx, user, attempt.Meta())
	if err != nil {
		return nil, err
	}

	audit.Log(credentialsService, audit.ActionLoginSuccess, user.ID, attempt.ClientIP, metrics.MethodPassword, true, nil)
	metrics.LoginSuccessTotal.WithLabelValues(metrics.MethodPassword).Inc()
	return Success(user, session), nil
}

func (a *CredentialAuthenticator) lookup(ctx context.Context, attempt LoginAttempt) (*domain.User, error) {
	if attempt.Column() == ColumnEmail {
		return a.users.GetUserByEmail(ctx, attempt.Identifier)
	}
	return a.users.GetUserByUsername(ctx, attempt.Identifier)
}

// fail records the attempt. userID is only used for the audit trail.
func (a *CredentialAuthenticator) fail(ctx context.Context, attempt LoginAttempt, userID, reason string) (*AuthOutcome, error) {
	if _, err := a.throttle.Hit(ctx, attempt.Fingerprint()); err != nil {
		return nil, err
	}

	subject := userID
	if subject == "" {
		subject = attempt.Identifier
	}
	log.Ctx(ctx).Warn().Str("identifier", attempt.Identifier).Str("ip", attempt.ClientIP).Msg("Login: failed")
	audit.Log(credentialsService, audit.ActionLoginFailure, subject, attempt.ClientIP, reason, false, ErrAuthenticationFailed)
	metrics.LoginFailureTotal.WithLabelValues(metrics.MethodPassword).Inc()
	return Failed(), nil
}
