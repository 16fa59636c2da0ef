package federation

import "errors"

var (
	ErrProviderNotFound = errors.New("provider not found or not enabled")
	ErrUnknownKind      = errors.New("unknown provider kind")
	// ErrProviderUnreachable covers transport failures, timeouts and non-2xx answers.
	ErrProviderUnreachable = errors.New("identity provider unreachable")
	// ErrMalformedProviderResponse means the provider answered but the body is not a usable identity.
	ErrMalformedProviderResponse = errors.New("malformed identity provider response")
	ErrExchangeCodeFailed        = errors.New("failed to exchange authorization code for token")
	ErrProviderMisconfigured     = errors.New("provider is misconfigured")
)
