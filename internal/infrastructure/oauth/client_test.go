package oauth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/guildgate/internal/config"
	"github.com/guildgate/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return NewClient(&config.Config{
		ClientID:         "client-1",
		ClientSecret:     "shh",
		RedirectURI:      "https://verify.example.com/callback",
		OAuthAuthURL:     srv.URL + "/oauth2/authorize",
		OAuthTokenURL:    srv.URL + "/oauth2/token",
		OAuthIdentityURL: srv.URL + "/users/@me",
		OAuthTimeout:     2 * time.Second,
	})
}

func TestAuthCodeURL(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())
	u, err := url.Parse(c.AuthCodeURL("state-1"))
	require.NoError(t, err)

	q := u.Query()
	assert.Equal(t, "/oauth2/authorize", u.Path)
	assert.Equal(t, "client-1", q.Get("client_id"))
	assert.Equal(t, "https://verify.example.com/callback", q.Get("redirect_uri"))
	assert.Equal(t, "code", q.Get("response_type"))
	assert.Equal(t, "identify email", q.Get("scope"))
	assert.Equal(t, "state-1", q.Get("state"))
}

func TestExchange_Success(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "client-1", r.PostForm.Get("client_id"))
		assert.Equal(t, "shh", r.PostForm.Get("client_secret"))
		assert.Equal(t, "authorization_code", r.PostForm.Get("grant_type"))
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		assert.Equal(t, "https://verify.example.com/callback", r.PostForm.Get("redirect_uri"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"at-1","token_type":"Bearer","expires_in":604800}`))
	})
	c := newTestClient(t, mux)

	tok, err := c.Exchange(context.Background(), "the-code")
	require.NoError(t, err)
	assert.Equal(t, "at-1", tok.AccessToken)
}

func TestExchange_EmptyCode(t *testing.T) {
	c := newTestClient(t, http.NotFoundHandler())
	_, err := c.Exchange(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrBadRequest)
}

func TestExchange_NonSuccess(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"error":"invalid_grant"}`))
	})
	c := newTestClient(t, mux)

	_, err := c.Exchange(context.Background(), "stale")
	assert.ErrorIs(t, err, domain.ErrOAuthExchange)
	assert.NotErrorIs(t, err, domain.ErrNetworkTransient)
}

func TestExchange_MissingAccessToken(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth2/token", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"token_type":"Bearer"}`))
	})
	c := newTestClient(t, mux)

	_, err := c.Exchange(context.Background(), "code")
	assert.ErrorIs(t, err, domain.ErrOAuthExchange)
}

func TestExchange_NetworkFailure(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	tokenURL := srv.URL + "/oauth2/token"
	srv.Close()

	c := NewClient(&config.Config{
		ClientID:      "client-1",
		OAuthAuthURL:  tokenURL,
		OAuthTokenURL: tokenURL,
		OAuthTimeout:  time.Second,
	})
	_, err := c.Exchange(context.Background(), "code")
	assert.ErrorIs(t, err, domain.ErrOAuthExchange)
	assert.ErrorIs(t, err, domain.ErrNetworkTransient)
}

func TestIdentity_Success(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/@me", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer at-1", r.Header.Get("Authorization"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"42","username":"alice","discriminator":"0","email":"a@example.com","avatar":"hash"}`))
	})
	c := newTestClient(t, mux)

	ident, err := c.Identity(context.Background(), &oauth2.Token{AccessToken: "at-1", TokenType: "Bearer"})
	require.NoError(t, err)
	assert.Equal(t, "42", ident.ID)
	assert.Equal(t, "alice", ident.Username)
	assert.Equal(t, "a@example.com", ident.Email)
	assert.Equal(t, "hash", ident.Avatar)
}

func TestIdentity_NonSuccess(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/@me", func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, `{"message":"401: Unauthorized"}`, http.StatusUnauthorized)
	})
	c := newTestClient(t, mux)

	_, err := c.Identity(context.Background(), &oauth2.Token{AccessToken: "bad"})
	assert.ErrorIs(t, err, domain.ErrIdentityFetch)
	assert.NotErrorIs(t, err, domain.ErrNetworkTransient)
}

func TestIdentity_InvalidPayload(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/users/@me", func(w http.ResponseWriter, _ *http.Request) {
		_, _ = w.Write([]byte(`{"username":"no-id"}`))
	})
	c := newTestClient(t, mux)

	_, err := c.Identity(context.Background(), &oauth2.Token{AccessToken: "at"})
	assert.ErrorIs(t, err, domain.ErrIdentityFetch)
}
