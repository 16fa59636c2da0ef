package domain

import (
	"context"
	"errors"
)

var (
	// ErrUserNotFound is returned by repositories when no user matches the lookup.
	ErrUserNotFound = errors.New("user not found")
	// ErrUserAlreadyExists is returned when a unique field (email, username,
	// external_id) collides with an existing record.
	ErrUserAlreadyExists = errors.New("user already exists")
	// ErrSessionNotFound is returned when no session matches the lookup.
	ErrSessionNotFound = errors.New("session not found")
)

// UserRepository provides access to user records.
type UserRepository interface {
	GetUserByID(ctx context.Context, id string) (*User, error)
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	GetUserByUsername(ctx context.Context, username string) (*User, error)
	GetUserByExternalID(ctx context.Context, externalID string) (*User, error)
	// CreateUser assigns ID and timestamps. Returns ErrUserAlreadyExists on
	// a uniqueness violation.
	CreateUser(ctx context.Context, user *User) error
	UpdateUser(ctx context.Context, user *User) error
}

// SessionRepository stores authenticated sessions.
type SessionRepository interface {
	StoreSession(ctx context.Context, session *Session) error
	GetSessionByID(ctx context.Context, id string) (*Session, error)
	DeleteSession(ctx context.Context, id string) error
}
