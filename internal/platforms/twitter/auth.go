// Package twitter connects X (Twitter) accounts with OAuth 2.0 PKCE and
// posts tweets, optionally with up to four images.
package twitter

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/socialrelay/internal/adapters/driven/oauth"
	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/platforms/apiclient"
)

// Default endpoints.
const (
	DefaultAuthURL   = "https://twitter.com/i/oauth2/authorize"
	DefaultTokenURL  = "https://api.twitter.com/2/oauth2/token"
	DefaultAPIURL    = "https://api.twitter.com"
	DefaultUploadURL = "https://upload.twitter.com"
)

// DefaultScopes include offline.access so a refresh token is issued.
var DefaultScopes = []string{"tweet.read", "tweet.write", "users.read", "media.write", "offline.access"}

// Config holds X app credentials and endpoints.
type Config struct {
	ClientID     string
	ClientSecret string
	Scopes       []string
	AuthURL      string
	TokenURL     string
	APIURL       string
	UploadURL    string
	HTTPClient   *http.Client
}

func (c Config) withDefaults() Config {
	if len(c.Scopes) == 0 {
		c.Scopes = DefaultScopes
	}
	if c.AuthURL == "" {
		c.AuthURL = DefaultAuthURL
	}
	if c.TokenURL == "" {
		c.TokenURL = DefaultTokenURL
	}
	if c.APIURL == "" {
		c.APIURL = DefaultAPIURL
	}
	if c.UploadURL == "" {
		c.UploadURL = DefaultUploadURL
	}
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	c.UploadURL = strings.TrimRight(c.UploadURL, "/")
	return c
}

// Auth is the X OAuth 2.0 PKCE adapter. Confidential clients send their
// credentials in the Authorization header.
type Auth struct {
	*oauth.Provider
	cfg    Config
	client *apiclient.Client
}

// NewAuth creates the X auth adapter.
func NewAuth(cfg Config) *Auth {
	cfg = cfg.withDefaults()
	endpoint := oauth2.Endpoint{AuthURL: cfg.AuthURL, TokenURL: cfg.TokenURL, AuthStyle: oauth2.AuthStyleInHeader}
	return &Auth{
		Provider: oauth.NewProvider(domain.PlatformTwitter, cfg.ClientID, cfg.ClientSecret, endpoint, cfg.Scopes,
			oauth.WithPKCE(), oauth.WithHTTPClient(cfg.HTTPClient)),
		cfg:    cfg,
		client: apiclient.New(domain.PlatformTwitter, apiclient.WithHTTPClient(cfg.HTTPClient)),
	}
}

// BuildAuthURL builds the authorization URL with the S256 challenge.
func (a *Auth) BuildAuthURL(state, redirectURI, codeChallenge string) string {
	return a.AuthCodeURL(state, redirectURI, codeChallenge)
}

// ExchangeCode trades the code and verifier for tokens.
func (a *Auth) ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*domain.OAuthToken, error) {
	return a.Exchange(ctx, code, redirectURI, codeVerifier)
}

// RefreshToken rotates the token pair.
func (a *Auth) RefreshToken(ctx context.Context, refreshToken string) (*domain.OAuthToken, error) {
	return a.Refresh(ctx, refreshToken)
}

// FetchIdentity reads the authenticated user.
func (a *Auth) FetchIdentity(ctx context.Context, accessToken string) (*domain.AccountIdentity, error) {
	var out struct {
		Data struct {
			ID            string `json:"id"`
			Name          string `json:"name"`
			Username      string `json:"username"`
			PublicMetrics struct {
				FollowersCount int64 `json:"followers_count"`
			} `json:"public_metrics"`
		} `json:"data"`
	}
	q := url.Values{"user.fields": {"public_metrics"}}
	if err := a.client.GetJSON(ctx, "fetch user", a.cfg.APIURL+"/2/users/me", q, accessToken, &out); err != nil {
		return nil, err
	}
	if out.Data.ID == "" {
		return nil, domain.NewPlatformError(domain.KindProviderUnavailable, domain.PlatformTwitter, "fetch user",
			"user response carried no id", nil)
	}
	return &domain.AccountIdentity{
		ExternalID:    out.Data.ID,
		DisplayName:   out.Data.Name,
		Handle:        out.Data.Username,
		FollowerCount: out.Data.PublicMetrics.FollowersCount,
		Metadata:      map[string]string{"username": out.Data.Username},
	}, nil
}

// Revoke invalidates the access token.
func (a *Auth) Revoke(ctx context.Context, accessToken string) error {
	_, err := a.client.Call(ctx, "revoke", apiclient.Request{
		Method:        http.MethodPost,
		URL:           a.cfg.APIURL + "/2/oauth2/revoke",
		Form:          url.Values{"token": {accessToken}, "token_type_hint": {"access_token"}},
		BasicUser:     a.cfg.ClientID,
		BasicPassword: a.cfg.ClientSecret,
	}, nil)
	return err
}
