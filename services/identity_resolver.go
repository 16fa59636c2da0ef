package services

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/pilab-dev/shadow-auth/domain"
	"github.com/pilab-dev/shadow-auth/internal/audit"
	"github.com/pilab-dev/shadow-auth/internal/federation"
	"github.com/pilab-dev/shadow-auth/internal/metrics"
	"github.com/rs/zerolog/log"
)

const resolverService = "IdentityResolver"

var lastNamePattern = regexp.MustCompile(`.*\s([\w-]*)$`)

// SplitName derives first and last name from a display name. The last name is
// the trailing word after the last whitespace; the first name is whatever is
// left once every occurrence of the last name is removed.
func SplitName(name string) (first, last string) {
	if !strings.Contains(name, " ") {
		return strings.TrimSpace(name), ""
	}

	if m := lastNamePattern.FindStringSubmatch(name); m != nil {
		last = m[1]
	} else {
		// Trailing punctuation, e.g. "Jane Doe!".
		fields := strings.Fields(name)
		last = fields[len(fields)-1]
	}

	if last == "" {
		return strings.TrimSpace(name), ""
	}
	return strings.TrimSpace(strings.ReplaceAll(name, last, "")), last
}

// IdentityResolver finds or provisions the local user for an external identity.
type IdentityResolver struct {
	users domain.UserRepository
}

func NewIdentityResolver(users domain.UserRepository) *IdentityResolver {
	return &IdentityResolver{users: users}
}

// Resolve returns the user linked to identity.ID, creating it on first login.
// Existing users are returned unchanged.
func (r *IdentityResolver) Resolve(ctx context.Context, provider federation.ProviderKind, identity *federation.RawExternalIdentity) (*domain.User, error) {
	user, err := r.users.GetUserByExternalID(ctx, identity.ID)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, domain.ErrUserNotFound) {
		return nil, fmt.Errorf("failed to look up external identity: %w", err)
	}

	first, last := SplitName(identity.Name)
	user = &domain.User{
		ExternalID: identity.ID,
		Email:      identity.Email,
		Username:   identity.Nickname,
		FirstName:  first,
		LastName:   last,
		RootAdmin:  false,
	}

	if err := r.users.CreateUser(ctx, user); err != nil {
		if !errors.Is(err, domain.ErrUserAlreadyExists) {
			return nil, fmt.Errorf("failed to create user: %w", err)
		}
		// A concurrent callback for the same identity may have won the insert.
		if existing, getErr := r.users.GetUserByExternalID(ctx, identity.ID); getErr == nil {
			return existing, nil
		}
		log.Ctx(ctx).Warn().Str("provider", provider.String()).Str("external_id", identity.ID).Msg("Federation: account collides with an existing user")
		audit.Log(resolverService, audit.ActionFederatedUser, identity.ID, provider.String(), "collision", false, err)
		return nil, fmt.Errorf("%w: %w", ErrIdentityCreationFailed, err)
	}

	log.Ctx(ctx).Info().Str("provider", provider.String()).Str("user_id", user.ID).Msg("Federation: created user from external identity")
	audit.Log(resolverService, audit.ActionFederatedUser, user.ID, provider.String(), "", true, nil)
	metrics.FederatedUsersCreatedTotal.WithLabelValues(provider.String()).Inc()
	return user, nil
}

var _ AccountResolver = (*IdentityResolver)(nil)
