package federation_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/pilab-dev/shadow-auth/internal/federation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newGeneric(t *testing.T, userURL string) *federation.GenericProvider {
	t.Helper()
	p, err := federation.NewGenericProvider(federation.GenericConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AuthURL:      "https://idp.example.com/oauth/authorize",
		TokenURL:     "https://idp.example.com/oauth/token",
		UserURL:      userURL,
		RedirectURL:  "https://panel.example.com/auth/login/oauth2/callback",
		Scopes:       []string{"profile"},
		Timeout:      2 * time.Second,
	})
	require.NoError(t, err)
	return p
}

func TestNewGenericProvider_RequiresPlaceholder(t *testing.T) {
	_, err := federation.NewGenericProvider(federation.GenericConfig{
		ClientID: "id",
		AuthURL:  "https://idp.example.com/a",
		TokenURL: "https://idp.example.com/t",
		UserURL:  "https://idp.example.com/me",
	})
	assert.ErrorIs(t, err, federation.ErrProviderMisconfigured)
}

func TestGenericProvider_UserInfoURL(t *testing.T) {
	p := newGeneric(t, "https://idp.example.com/api/me?access_token={{TOKEN}}&again={{TOKEN}}")
	assert.Equal(t, "https://idp.example.com/api/me?access_token=abc.def&again=abc.def", p.UserInfoURL("abc.def"))
}

func TestGenericProvider_AuthCodeURL(t *testing.T) {
	p := newGeneric(t, "https://idp.example.com/me/{{TOKEN}}")

	first := p.AuthCodeURL("state-1")
	assert.Equal(t, first, p.AuthCodeURL("state-1"))

	u, err := url.Parse(first)
	require.NoError(t, err)
	assert.Equal(t, "idp.example.com", u.Host)
	assert.Equal(t, "/oauth/authorize", u.Path)
	q := u.Query()
	assert.Equal(t, "client-id", q.Get("client_id"))
	assert.Equal(t, "state-1", q.Get("state"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "profile", q.Get("scope"))
	assert.Equal(t, "https://panel.example.com/auth/login/oauth2/callback", q.Get("redirect_uri"))
}

func TestGenericProvider_FetchRawIdentity(t *testing.T) {
	var gotPath, gotAuth string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id": 90071992547409931, "nickname": "jdoe", "name": "Jane Doe", "email": "jane@example.com", "avatar": "x"}`))
	}))
	defer server.Close()

	p := newGeneric(t, server.URL+"/users/{{TOKEN}}")

	identity, err := p.FetchRawIdentity(context.Background(), "tok123")
	require.NoError(t, err)

	assert.Equal(t, "/users/tok123", gotPath)
	assert.Equal(t, "Bearer tok123", gotAuth)
	assert.Equal(t, "90071992547409931", identity.ID)
	assert.Equal(t, "jdoe", identity.Nickname)
	assert.Equal(t, "Jane Doe", identity.Name)
	assert.Equal(t, "jane@example.com", identity.Email)
	assert.Equal(t, "x", identity.Raw["avatar"])
}

func TestGenericProvider_FetchRawIdentity_Errors(t *testing.T) {
	tests := []struct {
		name    string
		status  int
		body    string
		wantErr error
	}{
		{"server error", http.StatusInternalServerError, `{}`, federation.ErrProviderUnreachable},
		{"unauthorized", http.StatusUnauthorized, `{"error":"bad token"}`, federation.ErrProviderUnreachable},
		{"not json", http.StatusOK, `<html>oops</html>`, federation.ErrMalformedProviderResponse},
		{"array body", http.StatusOK, `[1,2,3]`, federation.ErrMalformedProviderResponse},
		{"null body", http.StatusOK, `null`, federation.ErrMalformedProviderResponse},
		{"missing id", http.StatusOK, `{"name":"No Id"}`, federation.ErrMalformedProviderResponse},
		{"trailing garbage", http.StatusOK, `{"id":1} garbage`, federation.ErrMalformedProviderResponse},
		{"two objects", http.StatusOK, `{"id":1}{"id":2}`, federation.ErrMalformedProviderResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer server.Close()

			p := newGeneric(t, server.URL+"/me?t={{TOKEN}}")
			_, err := p.FetchRawIdentity(context.Background(), "tok")
			assert.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestGenericProvider_FetchRawIdentity_Unreachable(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := server.URL
	server.Close()

	p := newGeneric(t, addr+"/me?t={{TOKEN}}")
	_, err := p.FetchRawIdentity(context.Background(), "tok")
	assert.ErrorIs(t, err, federation.ErrProviderUnreachable)
}

func TestGenericProvider_Exchange(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		if r.PostForm.Get("code") != "good-code" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"bearer"}`))
	}))
	defer server.Close()

	p, err := federation.NewGenericProvider(federation.GenericConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AuthURL:      server.URL + "/authorize",
		TokenURL:     server.URL + "/token",
		UserURL:      server.URL + "/me?t={{TOKEN}}",
	})
	require.NoError(t, err)

	tok, err := p.Exchange(context.Background(), "good-code")
	require.NoError(t, err)
	assert.Equal(t, "at-1", tok.AccessToken)

	_, err = p.Exchange(context.Background(), "bad-code")
	assert.ErrorIs(t, err, federation.ErrExchangeCodeFailed)
}

func newGenericWithTokenURL(t *testing.T, tokenURL string, timeout time.Duration) *federation.GenericProvider {
	t.Helper()
	p, err := federation.NewGenericProvider(federation.GenericConfig{
		ClientID:     "client-id",
		ClientSecret: "client-secret",
		AuthURL:      "https://idp.example.com/oauth/authorize",
		TokenURL:     tokenURL,
		UserURL:      "https://idp.example.com/me/{{TOKEN}}",
		Timeout:      timeout,
	})
	require.NoError(t, err)
	return p
}

func TestGenericProvider_Exchange_TokenEndpointDown(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	tokenURL := server.URL + "/token"
	server.Close()

	p := newGenericWithTokenURL(t, tokenURL, time.Second)
	_, err := p.Exchange(context.Background(), "code")
	assert.ErrorIs(t, err, federation.ErrProviderUnreachable)
	assert.NotErrorIs(t, err, federation.ErrExchangeCodeFailed)
}

func TestGenericProvider_Exchange_TokenEndpointTimeout(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-release:
		}
	}))
	defer server.Close()
	defer close(release)

	p := newGenericWithTokenURL(t, server.URL+"/token", 100*time.Millisecond)

	start := time.Now()
	_, err := p.Exchange(context.Background(), "code")
	assert.ErrorIs(t, err, federation.ErrProviderUnreachable)
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestGenericProvider_Exchange_MissingAccessToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token_type":"bearer"}`))
	}))
	defer server.Close()

	p := newGenericWithTokenURL(t, server.URL+"/token", time.Second)
	_, err := p.Exchange(context.Background(), "code")
	assert.ErrorIs(t, err, federation.ErrMalformedProviderResponse)
}

func TestParseProviderKind(t *testing.T) {
	k, err := federation.ParseProviderKind("github")
	require.NoError(t, err)
	assert.Equal(t, federation.ProviderGitHub, k)

	k, err = federation.ParseProviderKind("oauth2")
	require.NoError(t, err)
	assert.Equal(t, federation.ProviderGeneric, k)

	_, err = federation.ParseProviderKind("google")
	assert.ErrorIs(t, err, federation.ErrUnknownKind)
}

func TestRegistry(t *testing.T) {
	gh, err := federation.NewGitHubProvider(federation.GitHubConfig{ClientID: "id", ClientSecret: "secret"})
	require.NoError(t, err)

	reg := federation.NewRegistry(gh)

	p, err := reg.Get(federation.ProviderGitHub)
	require.NoError(t, err)
	assert.Equal(t, federation.ProviderGitHub, p.Kind())

	_, err = reg.Get(federation.ProviderGeneric)
	assert.ErrorIs(t, err, federation.ErrProviderNotFound)

	assert.Equal(t, []federation.ProviderKind{federation.ProviderGitHub}, reg.Kinds())
}
