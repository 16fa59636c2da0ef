package cmd

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pilab-dev/shadow-auth/domain"
	"github.com/pilab-dev/shadow-auth/internal/auth/totp"
	"github.com/pilab-dev/shadow-auth/services"
)

const minPasswordLength = 8

var validate = validator.New()

// createOptions are the fields accepted by "user create".
type createOptions struct {
	Email      string `validate:"required,email"`
	Username   string `validate:"required,max=191"`
	Password   string `validate:"required"`
	FirstName  string
	LastName   string
	RootAdmin  bool
	EnableTOTP bool
}

// totpEnrollment is what a user needs to add the account to an authenticator app.
type totpEnrollment struct {
	Secret string `yaml:"secret"`
	URI    string `yaml:"uri"`
}

// userView is the printable form of a user. Secrets are never printed here.
type userView struct {
	ID        string `yaml:"id"`
	Username  string `yaml:"username"`
	Email     string `yaml:"email"`
	FirstName string `yaml:"name_first,omitempty"`
	LastName  string `yaml:"name_last,omitempty"`
	External  bool   `yaml:"external"`
	UseTOTP   bool   `yaml:"use_totp"`
	RootAdmin bool   `yaml:"root_admin"`
	CreatedAt string `yaml:"created_at"`
}

func viewOf(u *domain.User) userView {
	return userView{
		ID:        u.ID,
		Username:  u.Username,
		Email:     u.Email,
		FirstName: u.FirstName,
		LastName:  u.LastName,
		External:  u.ExternalID != "",
		UseTOTP:   u.UseTOTP,
		RootAdmin: u.RootAdmin,
		CreatedAt: u.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
	}
}

func createUser(ctx context.Context, users domain.UserRepository, hasher services.PasswordHasher, issuer string, opts createOptions) (*domain.User, *totpEnrollment, error) {
	opts.Email = strings.TrimSpace(opts.Email)
	opts.Username = strings.TrimSpace(opts.Username)
	if err := validate.Struct(opts); err != nil {
		return nil, nil, fmt.Errorf("invalid user: %w", err)
	}
	if len(opts.Password) < minPasswordLength {
		return nil, nil, fmt.Errorf("password must be at least %d characters", minPasswordLength)
	}

	hash, err := hasher.Hash(opts.Password)
	if err != nil {
		return nil, nil, err
	}

	user := &domain.User{
		Username:     opts.Username,
		Email:        opts.Email,
		FirstName:    opts.FirstName,
		LastName:     opts.LastName,
		PasswordHash: hash,
		RootAdmin:    opts.RootAdmin,
	}

	var enrollment *totpEnrollment
	if opts.EnableTOTP {
		enrollment, err = newEnrollment(issuer, user.Email)
		if err != nil {
			return nil, nil, err
		}
		user.UseTOTP = true
		user.TOTPSecret = enrollment.Secret
	}

	if err := users.CreateUser(ctx, user); err != nil {
		if errors.Is(err, domain.ErrUserAlreadyExists) {
			return nil, nil, fmt.Errorf("a user with this email or username already exists: %w", err)
		}
		return nil, nil, err
	}
	return user, enrollment, nil
}

func newEnrollment(issuer, account string) (*totpEnrollment, error) {
	key, uri, err := totp.GenerateTOTPSecret(issuer, account)
	if err != nil {
		return nil, err
	}
	return &totpEnrollment{Secret: key.Secret(), URI: uri}, nil
}

// findUser accepts an id, an email address or a username.
func findUser(ctx context.Context, users domain.UserRepository, ref string) (*domain.User, error) {
	attempt := services.LoginAttempt{Identifier: ref}
	var (
		user *domain.User
		err  error
	)
	if attempt.Column() == services.ColumnEmail {
		user, err = users.GetUserByEmail(ctx, ref)
	} else {
		user, err = users.GetUserByUsername(ctx, ref)
	}
	if errors.Is(err, domain.ErrUserNotFound) {
		user, err = users.GetUserByID(ctx, ref)
	}
	return user, err
}

// setTOTP enables two factor login with a fresh secret, or disables it.
func setTOTP(ctx context.Context, users domain.UserRepository, user *domain.User, issuer string, enable bool) (*totpEnrollment, error) {
	var enrollment *totpEnrollment
	if enable {
		var err error
		enrollment, err = newEnrollment(issuer, user.Email)
		if err != nil {
			return nil, err
		}
		user.UseTOTP = true
		user.TOTPSecret = enrollment.Secret
	} else {
		user.UseTOTP = false
		user.TOTPSecret = ""
	}
	if err := users.UpdateUser(ctx, user); err != nil {
		return nil, err
	}
	return enrollment, nil
}
