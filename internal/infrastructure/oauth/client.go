package oauth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"

	"github.com/guildgate/internal/config"
	"github.com/guildgate/internal/domain"
	"github.com/guildgate/internal/pkg/validate"
	"golang.org/x/oauth2"
)

// Scopes requested on the consent screen.
var Scopes = []string{"identify", "email"}

// Client exchanges authorization codes and fetches the caller's identity.
type Client struct {
	conf        *oauth2.Config
	identityURL string
	httpClient  *http.Client
}

func NewClient(cfg *config.Config) *Client {
	return &Client{
		conf: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURI,
			Scopes:       Scopes,
			Endpoint: oauth2.Endpoint{
				AuthURL:   cfg.OAuthAuthURL,
				TokenURL:  cfg.OAuthTokenURL,
				AuthStyle: oauth2.AuthStyleInParams,
			},
		},
		identityURL: cfg.OAuthIdentityURL,
		httpClient:  &http.Client{Timeout: cfg.OAuthTimeout},
	}
}

// AuthCodeURL builds the consent-screen address carrying state.
func (c *Client) AuthCodeURL(state string) string {
	return c.conf.AuthCodeURL(state)
}

// Exchange trades code for an access token. Non-success responses wrap
// domain.ErrOAuthExchange; transport failures additionally wrap
// domain.ErrNetworkTransient.
func (c *Client) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	if code == "" {
		return nil, fmt.Errorf("no code: %w", domain.ErrBadRequest)
	}
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)
	tok, err := c.conf.Exchange(ctx, code)
	if err != nil {
		var re *oauth2.RetrieveError
		if errors.As(err, &re) {
			status := 0
			if re.Response != nil {
				status = re.Response.StatusCode
			}
			return nil, fmt.Errorf("token endpoint returned %d: %s: %w", status, truncate(re.Body), domain.ErrOAuthExchange)
		}
		if isNetworkError(err) {
			return nil, fmt.Errorf("token request: %v: %w", err, errors.Join(domain.ErrOAuthExchange, domain.ErrNetworkTransient))
		}
		return nil, fmt.Errorf("token exchange: %v: %w", err, domain.ErrOAuthExchange)
	}
	if tok.AccessToken == "" {
		return nil, fmt.Errorf("no access token in response: %w", domain.ErrOAuthExchange)
	}
	return tok, nil
}

// Identity fetches the profile of the token's owner.
func (c *Client) Identity(ctx context.Context, tok *oauth2.Token) (*domain.VerifiedIdentity, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.identityURL, nil)
	if err != nil {
		return nil, fmt.Errorf("build identity request: %w", err)
	}
	tok.SetAuthHeader(req)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("identity request: %v: %w", err, errors.Join(domain.ErrIdentityFetch, domain.ErrNetworkTransient))
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("identity endpoint returned %d: %s: %w", resp.StatusCode, truncate(body), domain.ErrIdentityFetch)
	}

	var ident domain.VerifiedIdentity
	if err := json.NewDecoder(resp.Body).Decode(&ident); err != nil {
		return nil, fmt.Errorf("decode identity: %v: %w", err, domain.ErrIdentityFetch)
	}
	if err := validate.Struct(ident); err != nil {
		return nil, fmt.Errorf("identity payload: %v: %w", err, domain.ErrIdentityFetch)
	}
	return &ident, nil
}

func isNetworkError(err error) bool {
	var ue *url.Error
	if errors.As(err, &ue) {
		return true
	}
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func truncate(b []byte) string {
	const max = 200
	if len(b) > max {
		return string(b[:max]) + "..."
	}
	return string(b)
}
