package ledger

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"ledgersync/internal/domain"
	"ledgersync/internal/infra"
)

const defaultTokenLifetime = time.Hour

// Token is the result of an authorization-code exchange or a refresh.
type Token struct {
	AccessToken  string
	RefreshToken string
	ExpiresAt    time.Time
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// TokenClient talks to a provider's OAuth2 token endpoint using client
// credentials sent as HTTP Basic auth.
type TokenClient struct {
	provider string
	endpoint string
	app      infra.OAuthAppConfig
	http     *resty.Client
	now      func() time.Time
}

func NewTokenClient(provider, endpoint string, app infra.OAuthAppConfig, httpClient *resty.Client) *TokenClient {
	if httpClient == nil {
		httpClient = NewHTTPClient(0)
	}
	return &TokenClient{
		provider: provider,
		endpoint: endpoint,
		app:      app,
		http:     httpClient,
		now:      time.Now,
	}
}

// Exchange trades an authorization code for tokens.
func (c *TokenClient) Exchange(ctx context.Context, code string) (Token, error) {
	if strings.TrimSpace(code) == "" {
		return Token{}, ErrMissingCode
	}
	return c.request(ctx, "token exchange", map[string]string{
		"grant_type":   "authorization_code",
		"code":         code,
		"redirect_uri": c.app.RedirectURI,
	})
}

// Refresh trades a refresh token for a new access token. Providers that rotate
// refresh tokens return a new one; otherwise the old one stays valid.
func (c *TokenClient) Refresh(ctx context.Context, refreshToken string) (Token, error) {
	if strings.TrimSpace(refreshToken) == "" {
		return Token{}, fmt.Errorf("%s token refresh: no refresh token stored: %w", c.provider, domain.ErrNotConnected)
	}
	tok, err := c.request(ctx, "token refresh", map[string]string{
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
	})
	if err != nil {
		return Token{}, err
	}
	if tok.RefreshToken == "" {
		tok.RefreshToken = refreshToken
	}
	return tok, nil
}

func (c *TokenClient) request(ctx context.Context, op string, form map[string]string) (Token, error) {
	if !c.app.Complete() {
		return Token{}, ErrNotConfigured
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBasicAuth(c.app.ClientID, c.app.ClientSecret).
		SetFormData(form).
		Post(c.endpoint)
	if err != nil {
		return Token{}, &UpstreamError{Provider: c.provider, Op: op, Err: err}
	}
	if !resp.IsSuccess() {
		return Token{}, &UpstreamError{Provider: c.provider, Op: op, Status: resp.StatusCode(), Body: resp.String()}
	}
	var out tokenResponse
	if err := json.Unmarshal(resp.Body(), &out); err != nil {
		return Token{}, &UpstreamError{Provider: c.provider, Op: op, Status: resp.StatusCode(), Err: fmt.Errorf("decode token response: %w", err)}
	}
	if out.AccessToken == "" {
		return Token{}, &UpstreamError{Provider: c.provider, Op: op, Status: resp.StatusCode(), Body: "response has no access_token"}
	}
	lifetime := time.Duration(out.ExpiresIn) * time.Second
	if lifetime <= 0 {
		lifetime = defaultTokenLifetime
	}
	return Token{
		AccessToken:  out.AccessToken,
		RefreshToken: out.RefreshToken,
		ExpiresAt:    c.now().Add(lifetime).UTC(),
	}, nil
}

// authorizeURL builds the consent URL a user is redirected to.
func authorizeURL(base string, app infra.OAuthAppConfig, scope, state string) (string, error) {
	if !app.Complete() {
		return "", ErrNotConfigured
	}
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("parse authorize url: %w", err)
	}
	q := u.Query()
	q.Set("response_type", "code")
	q.Set("client_id", app.ClientID)
	q.Set("redirect_uri", app.RedirectURI)
	q.Set("scope", scope)
	q.Set("state", state)
	u.RawQuery = q.Encode()
	return u.String(), nil
}
