package services

import (
	"context"
	"fmt"
	"time"

	"github.com/pilab-dev/shadow-auth/domain"
	"github.com/rs/zerolog/log"
)

// DefaultSessionLifetime matches a "remember me" login.
const DefaultSessionLifetime = 30 * 24 * time.Hour

// SessionService establishes persistent, remembered sessions.
type SessionService struct {
	repo     domain.SessionRepository
	lifetime time.Duration
	now      func() time.Time
}

func NewSessionService(repo domain.SessionRepository, lifetime time.Duration) *SessionService {
	if lifetime <= 0 {
		lifetime = DefaultSessionLifetime
	}
	return &SessionService{repo: repo, lifetime: lifetime, now: time.Now}
}

func (s *SessionService) Lifetime() time.Duration { return s.lifetime }

func (s *SessionService) Establish(ctx context.Context, user *domain.User, meta ClientMeta) (*domain.Session, error) {
	id, err := randomToken()
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	session := &domain.Session{
		ID:        id,
		UserID:    user.ID,
		UserAgent: meta.UserAgent,
		IPAddress: meta.IP,
		Remember:  true,
		CreatedAt: now,
		ExpiresAt: now.Add(s.lifetime),
	}

	if err := s.repo.StoreSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to store session: %w", err)
	}

	log.Ctx(ctx).Debug().Str("user_id", user.ID).Time("expires_at", session.ExpiresAt).Msg("session established")
	return session, nil
}

var _ SessionEstablisher = (*SessionService)(nil)
