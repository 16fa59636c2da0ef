package federation

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"time"

	"golang.org/x/oauth2"
)

// ProviderKind is the closed set of supported external identity providers.
type ProviderKind string

const (
	ProviderGeneric ProviderKind = "oauth2"
	ProviderGitHub  ProviderKind = "github"
)

// DefaultHTTPTimeout bounds every outbound provider call.
const DefaultHTTPTimeout = 10 * time.Second

// ParseProviderKind maps a route segment to a ProviderKind.
func ParseProviderKind(s string) (ProviderKind, error) {
	switch ProviderKind(s) {
	case ProviderGeneric, ProviderGitHub:
		return ProviderKind(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnknownKind, s)
	}
}

func (k ProviderKind) String() string { return string(k) }

// RawExternalIdentity is the provider's user payload mapped onto the fields
// account resolution needs. Raw keeps the whole decoded object.
type RawExternalIdentity struct {
	ID       string
	Email    string
	Name     string
	Nickname string
	Raw      map[string]any
}

// OAuth2Provider is one configured external identity provider.
type OAuth2Provider interface {
	Kind() ProviderKind

	// AuthCodeURL builds the authorization redirect. It has no side effects.
	AuthCodeURL(state string) string

	// Exchange trades an authorization code for a token. A code the token
	// endpoint refuses is ErrExchangeCodeFailed; transport failures and
	// timeouts are ErrProviderUnreachable.
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)

	// FetchRawIdentity loads the user behind an access token.
	FetchRawIdentity(ctx context.Context, accessToken string) (*RawExternalIdentity, error)
}

// Registry holds at most one provider per kind.
type Registry struct {
	providers map[ProviderKind]OAuth2Provider
}

func NewRegistry(providers ...OAuth2Provider) *Registry {
	r := &Registry{providers: make(map[ProviderKind]OAuth2Provider, len(providers))}
	for _, p := range providers {
		r.Register(p)
	}
	return r
}

// Register adds or replaces the provider for p.Kind().
func (r *Registry) Register(p OAuth2Provider) {
	r.providers[p.Kind()] = p
}

func (r *Registry) Get(kind ProviderKind) (OAuth2Provider, error) {
	p, ok := r.providers[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrProviderNotFound, kind)
	}
	return p, nil
}

// Kinds returns the registered kinds in a stable order.
func (r *Registry) Kinds() []ProviderKind {
	kinds := make([]ProviderKind, 0, len(r.providers))
	for k := range r.providers {
		kinds = append(kinds, k)
	}
	sort.Slice(kinds, func(i, j int) bool { return kinds[i] < kinds[j] })
	return kinds
}

// baseProvider carries the oauth2 configuration shared by both provider kinds.
type baseProvider struct {
	conf    *oauth2.Config
	timeout time.Duration
}

func newBaseProvider(conf *oauth2.Config, timeout time.Duration) baseProvider {
	if timeout <= 0 {
		timeout = DefaultHTTPTimeout
	}
	return baseProvider{conf: conf, timeout: timeout}
}

func (b *baseProvider) AuthCodeURL(state string) string {
	return b.conf.AuthCodeURL(state)
}

func (b *baseProvider) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, &http.Client{Timeout: b.timeout})
	tok, err := b.conf.Exchange(ctx, code)
	if err != nil {
		// Only an error status from the token endpoint means the code was refused.
		var retrieveErr *oauth2.RetrieveError
		var urlErr *url.Error
		switch {
		case errors.As(err, &retrieveErr):
			return nil, fmt.Errorf("%w: %w", ErrExchangeCodeFailed, err)
		case errors.As(err, &urlErr), errors.Is(err, context.DeadlineExceeded):
			return nil, fmt.Errorf("%w: token endpoint: %w", ErrProviderUnreachable, err)
		default:
			return nil, fmt.Errorf("%w: token endpoint: %w", ErrMalformedProviderResponse, err)
		}
	}
	return tok, nil
}

// httpClient returns a client that sends the access token as a bearer header.
func (b *baseProvider) httpClient(ctx context.Context, accessToken string) *http.Client {
	c := oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}))
	c.Timeout = b.timeout
	return c
}
