package federation

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"slices"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/oauth2"
	githubOAuth2 "golang.org/x/oauth2/github"
)

var (
	GithubUserInfoEndpoint   = "https://api.github.com/user"
	GithubUserEmailsEndpoint = "https://api.github.com/user/emails"
)

var githubRequiredScopes = []string{"read:user", "user:email"}

// GitHubConfig configures GitHub login. The endpoints are fixed.
type GitHubConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
	Scopes       []string
	Timeout      time.Duration
}

type GitHubProvider struct {
	baseProvider
}

func NewGitHubProvider(cfg GitHubConfig) (*GitHubProvider, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, ErrProviderMisconfigured
	}

	scopes := slices.Clone(cfg.Scopes)
	for _, s := range githubRequiredScopes {
		if !slices.Contains(scopes, s) {
			scopes = append(scopes, s)
		}
	}

	conf := &oauth2.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		RedirectURL:  cfg.RedirectURL,
		Scopes:       scopes,
		Endpoint:     githubOAuth2.Endpoint,
	}

	return &GitHubProvider{baseProvider: newBaseProvider(conf, cfg.Timeout)}, nil
}

func (g *GitHubProvider) Kind() ProviderKind { return ProviderGitHub }

// Scopes returns the effective scopes requested from GitHub.
func (g *GitHubProvider) Scopes() []string { return slices.Clone(g.conf.Scopes) }

// FetchRawIdentity loads /user and, when the profile email is private,
// falls back to the primary verified address from /user/emails.
func (g *GitHubProvider) FetchRawIdentity(ctx context.Context, accessToken string) (*RawExternalIdentity, error) {
	client := g.httpClient(ctx, accessToken)

	raw, err := getJSONObject(ctx, client, GithubUserInfoEndpoint)
	if err != nil {
		return nil, fmt.Errorf("github: %w", err)
	}

	identity, err := mapIdentity(raw, "login")
	if err != nil {
		return nil, fmt.Errorf("github: %w", err)
	}

	if identity.Email == "" {
		email, err := g.primaryEmail(ctx, client)
		if err != nil {
			log.Warn().Err(err).Str("github_id", identity.ID).Msg("github: could not load user emails")
		}
		identity.Email = email
	}

	return identity, nil
}

func (g *GitHubProvider) primaryEmail(ctx context.Context, client *http.Client) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, GithubUserEmailsEndpoint, nil)
	if err != nil {
		return "", err
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("emails endpoint returned status %d", resp.StatusCode)
	}

	var emails []struct {
		Email    string `json:"email"`
		Primary  bool   `json:"primary"`
		Verified bool   `json:"verified"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&emails); err != nil {
		return "", err
	}

	for _, e := range emails {
		if e.Primary && e.Verified {
			return e.Email, nil
		}
	}
	return "", nil
}

var _ OAuth2Provider = (*GitHubProvider)(nil)
