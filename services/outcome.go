package services

import (
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/pilab-dev/shadow-auth/domain"
)

// OutcomeKind is the result of one authentication step.
type OutcomeKind int

const (
	OutcomeFailed OutcomeKind = iota
	OutcomeSuccess
	OutcomeRequiresSecondFactor
	OutcomeLocked
)

func (k OutcomeKind) String() string {
	switch k {
	case OutcomeSuccess:
		return "success"
	case OutcomeRequiresSecondFactor:
		return "requires_second_factor"
	case OutcomeLocked:
		return "locked"
	default:
		return "failed"
	}
}

// AuthOutcome carries the data belonging to its Kind: User and Session on
// success, ConfirmationToken for a second factor, RetryAfter when locked.
type AuthOutcome struct {
	Kind              OutcomeKind
	User              *domain.User
	Session           *domain.Session
	ConfirmationToken string
	RetryAfter        time.Duration
}

func Success(user *domain.User, session *domain.Session) *AuthOutcome {
	return &AuthOutcome{Kind: OutcomeSuccess, User: user, Session: session}
}

func RequiresSecondFactor(token string) *AuthOutcome {
	return &AuthOutcome{Kind: OutcomeRequiresSecondFactor, ConfirmationToken: token}
}

func Locked(retryAfter time.Duration) *AuthOutcome {
	return &AuthOutcome{Kind: OutcomeLocked, RetryAfter: retryAfter}
}

func Failed() *AuthOutcome {
	return &AuthOutcome{Kind: OutcomeFailed}
}

// ClientMeta describes the client behind a request.
type ClientMeta struct {
	IP        string
	UserAgent string
}

// Lookup columns for the login identifier.
const (
	ColumnEmail    = "email"
	ColumnUsername = "username"
)

var validate = validator.New()

// LoginAttempt is one submitted username/password pair.
type LoginAttempt struct {
	Identifier string
	Password   string
	ClientIP   string
	UserAgent  string
}

// Column reports which user field the identifier is matched against.
func (a LoginAttempt) Column() string {
	if validate.Var(a.Identifier, "required,email") == nil {
		return ColumnEmail
	}
	return ColumnUsername
}

// Fingerprint keys the failed attempt counter.
func (a LoginAttempt) Fingerprint() string {
	return strings.ToLower(a.Identifier) + "|" + a.ClientIP
}

func (a LoginAttempt) Meta() ClientMeta {
	return ClientMeta{IP: a.ClientIP, UserAgent: a.UserAgent}
}
