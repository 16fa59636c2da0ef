package mongodb

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/pilab-dev/shadow-auth/domain"
	"github.com/pilab-dev/shadow-auth/mongodb/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestUserRepo(t *testing.T) *UserRepository {
	t.Helper()
	db, cleanup := testutil.SetupTestMongoDB(t, "auth_users")
	t.Cleanup(cleanup)

	repo, err := NewUserRepository(context.Background(), db)
	require.NoError(t, err)
	return repo
}

func TestUserRepository_CreateAndLookup(t *testing.T) {
	repo := newTestUserRepo(t)
	ctx := context.Background()

	user := &domain.User{Username: "Jane", Email: "Jane@Example.com", PasswordHash: "hash"}
	require.NoError(t, repo.CreateUser(ctx, user))
	assert.NotEmpty(t, user.ID)
	assert.False(t, user.CreatedAt.IsZero())

	byEmail, err := repo.GetUserByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byEmail.ID)

	byUsername, err := repo.GetUserByUsername(ctx, "JANE")
	require.NoError(t, err)
	assert.Equal(t, user.ID, byUsername.ID)

	_, err = repo.GetUserByExternalID(ctx, "")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	_, err = repo.GetUserByID(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestUserRepository_Uniqueness(t *testing.T) {
	repo := newTestUserRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateUser(ctx, &domain.User{Username: "a", Email: "a@example.com"}))
	require.NoError(t, repo.CreateUser(ctx, &domain.User{Username: "b", Email: "b@example.com"}))

	err := repo.CreateUser(ctx, &domain.User{Username: "A", Email: "c@example.com"})
	assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)

	require.NoError(t, repo.CreateUser(ctx, &domain.User{Username: "x", Email: "x@example.com", ExternalID: "42"}))
	err = repo.CreateUser(ctx, &domain.User{Username: "y", Email: "y@example.com", ExternalID: "42"})
	assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)
}

func TestUserRepository_EmptyEmailsDoNotCollide(t *testing.T) {
	repo := newTestUserRepo(t)
	ctx := context.Background()

	require.NoError(t, repo.CreateUser(ctx, &domain.User{Username: "octo1", ExternalID: "101"}))
	require.NoError(t, repo.CreateUser(ctx, &domain.User{Username: "octo2", ExternalID: "102"}))

	_, err := repo.GetUserByEmail(ctx, "")
	assert.ErrorIs(t, err, domain.ErrUserNotFound)

	require.NoError(t, repo.CreateUser(ctx, &domain.User{Username: "c", Email: "c@example.com"}))
	err = repo.CreateUser(ctx, &domain.User{Username: "d", Email: "C@example.com"})
	assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)
}

func TestUserRepository_ConcurrentExternalIDInsert(t *testing.T) {
	repo := newTestUserRepo(t)
	ctx := context.Background()

	var wg sync.WaitGroup
	errs := make([]error, 5)
	for i := range errs {
		wg.Add(1)
		go func() {
			defer wg.Done()
			errs[i] = repo.CreateUser(ctx, &domain.User{
				Username:   "octo" + string(rune('a'+i)),
				Email:      string(rune('a'+i)) + "@example.com",
				ExternalID: "7",
			})
		}()
	}
	wg.Wait()

	ok := 0
	for _, err := range errs {
		if err == nil {
			ok++
		} else {
			assert.ErrorIs(t, err, domain.ErrUserAlreadyExists)
		}
	}
	assert.Equal(t, 1, ok)
}

func TestUserRepository_UpdateUser(t *testing.T) {
	repo := newTestUserRepo(t)
	ctx := context.Background()

	user := &domain.User{Username: "jane", Email: "jane@example.com"}
	require.NoError(t, repo.CreateUser(ctx, user))

	user.UseTOTP = true
	user.TOTPSecret = "JBSWY3DPEHPK3PXP"
	require.NoError(t, repo.UpdateUser(ctx, user))

	got, err := repo.GetUserByID(ctx, user.ID)
	require.NoError(t, err)
	assert.True(t, got.UseTOTP)
	assert.Equal(t, "JBSWY3DPEHPK3PXP", got.TOTPSecret)

	err = repo.UpdateUser(ctx, &domain.User{ID: "missing"})
	assert.ErrorIs(t, err, domain.ErrUserNotFound)
}

func TestSessionRepository(t *testing.T) {
	db, cleanup := testutil.SetupTestMongoDB(t, "auth_sessions")
	defer cleanup()
	ctx := context.Background()

	repo, err := NewSessionRepositoryMongo(ctx, db)
	require.NoError(t, err)

	now := time.Now().UTC().Truncate(time.Millisecond)
	s := &domain.Session{ID: "sid", UserID: "u1", Remember: true, CreatedAt: now, ExpiresAt: now.Add(time.Hour)}
	require.NoError(t, repo.StoreSession(ctx, s))

	got, err := repo.GetSessionByID(ctx, "sid")
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.True(t, got.ExpiresAt.Equal(s.ExpiresAt))

	require.NoError(t, repo.DeleteSession(ctx, "sid"))
	_, err = repo.GetSessionByID(ctx, "sid")
	assert.ErrorIs(t, err, domain.ErrSessionNotFound)
}
