package services

import "errors"

var (
	ErrAuthenticationFailed   = errors.New("these credentials do not match our records")
	ErrChallengeExpired       = errors.New("confirmation token has expired")
	ErrChallengeUnknown       = errors.New("confirmation token is unknown or already used")
	ErrIdentityCreationFailed = errors.New("could not create an account for this identity")
)
