package services

import (
	"context"
	"time"

	"github.com/pilab-dev/shadow-auth/domain"
	"github.com/pilab-dev/shadow-auth/internal/federation"
)

// PasswordHasher defines an interface for hashing and verifying passwords.
type PasswordHasher interface {
	Hash(password string) (string, error)
	Verify(hashedPassword, password string) error
	// VerifyDummy spends the same time as a failed Verify.
	VerifyDummy(password string)
}

// TOTPValidator checks a one-time code against a user's secret.
type TOTPValidator interface {
	Validate(secret, passcode string) (bool, error)
}

// Throttle counts failed attempts per fingerprint.
type Throttle interface {
	TooManyAttempts(ctx context.Context, key string) (bool, error)
	Hit(ctx context.Context, key string) (int64, error)
	Clear(ctx context.Context, key string) error
	AvailableIn(ctx context.Context, key string) (time.Duration, error)
}

// SessionEstablisher creates the authenticated session for a user.
type SessionEstablisher interface {
	Establish(ctx context.Context, user *domain.User, meta ClientMeta) (*domain.Session, error)
}

// ChallengeIssuer starts a second factor checkpoint.
type ChallengeIssuer interface {
	Issue(ctx context.Context, userID string) (string, error)
}

// ProviderRegistry looks up a configured external provider.
type ProviderRegistry interface {
	Get(kind federation.ProviderKind) (federation.OAuth2Provider, error)
	Kinds() []federation.ProviderKind
}

// AccountResolver maps an external identity to a local user.
type AccountResolver interface {
	Resolve(ctx context.Context, provider federation.ProviderKind, identity *federation.RawExternalIdentity) (*domain.User, error)
}
