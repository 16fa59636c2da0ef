package federation

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// TokenPlaceholder is replaced with the access token in the user-info URL.
const TokenPlaceholder = "{{TOKEN}}"

// maxUserInfoBytes caps how much of a user-info response is read.
const maxUserInfoBytes = 1 << 20

// GenericConfig configures the generic OAuth2 provider.
type GenericConfig struct {
	ClientID     string
	ClientSecret string
	AuthURL      string
	TokenURL     string
	// UserURL must contain TokenPlaceholder.
	UserURL     string
	RedirectURL string
	Scopes      []string
	Timeout     time.Duration
}

// GenericProvider talks to an OAuth2 server whose three endpoints come
// entirely from configuration.
type GenericProvider struct {
	baseProvider
	userURL string
}

func NewGenericProvider(cfg GenericConfig) (*GenericProvider, error) {
	if cfg.ClientID == "" || cfg.AuthURL == "" || cfg.TokenURL == "" || cfg.UserURL == "" {
		return nil, ErrProviderMisconfigured
	}
	if !strings.Contains(cfg.UserURL, TokenPlaceholder) {
		return nil, fmt.Errorf("%w: user url has no %s placeholder", ErrProviderMisconfigured, TokenPlaceholder)
	}

	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       cfg.Scopes,
		Endpoint: oauth2.Endpoint{
			AuthURL:  cfg.AuthURL,
			TokenURL: cfg.TokenURL,
		},
	}

	return &GenericProvider{
		baseProvider: newBaseProvider(conf, cfg.Timeout),
		userURL:      cfg.UserURL,
	}, nil
}

func (g *GenericProvider) Kind() ProviderKind { return ProviderGeneric }

// UserInfoURL substitutes every placeholder with the token verbatim.
func (g *GenericProvider) UserInfoURL(accessToken string) string {
	return strings.ReplaceAll(g.userURL, TokenPlaceholder, accessToken)
}

func (g *GenericProvider) FetchRawIdentity(ctx context.Context, accessToken string) (*RawExternalIdentity, error) {
	raw, err := getJSONObject(ctx, g.httpClient(ctx, accessToken), g.UserInfoURL(accessToken))
	if err != nil {
		return nil, err
	}
	return mapIdentity(raw, "nickname")
}

// getJSONObject GETs url and decodes the body into a JSON object.
func getJSONObject(ctx context.Context, client *http.Client, url string) (map[string]any, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderMisconfigured, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderUnreachable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: status %d", ErrProviderUnreachable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxUserInfoBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProviderUnreachable, err)
	}

	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()

	var raw map[string]any
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedProviderResponse, err)
	}
	if raw == nil {
		return nil, fmt.Errorf("%w: body is not an object", ErrMalformedProviderResponse)
	}
	var extra json.RawMessage
	if err := dec.Decode(&extra); !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("%w: trailing data after object", ErrMalformedProviderResponse)
	}
	return raw, nil
}

// mapIdentity reads id, name and email plus the given nickname key.
func mapIdentity(raw map[string]any, nicknameKey string) (*RawExternalIdentity, error) {
	id := scalarString(raw["id"])
	if id == "" {
		return nil, fmt.Errorf("%w: missing id", ErrMalformedProviderResponse)
	}
	return &RawExternalIdentity{
		ID:       id,
		Email:    scalarString(raw["email"]),
		Name:     scalarString(raw["name"]),
		Nickname: scalarString(raw[nicknameKey]),
		Raw:      raw,
	}, nil
}

func scalarString(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		return ""
	}
}

var _ OAuth2Provider = (*GenericProvider)(nil)
