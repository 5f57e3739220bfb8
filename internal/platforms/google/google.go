// Package google implements Google sign-in. It publishes nothing itself;
// YouTube builds on its OAuth configuration.
package google

import (
	"context"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/oauth2"
	googleoauth "golang.org/x/oauth2/google"

	"github.com/custodia-labs/socialrelay/internal/adapters/driven/oauth"
	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/platforms/apiclient"
)

// Default endpoints.
const (
	DefaultUserInfoURL = "https://openidconnect.googleapis.com/v1/userinfo"
	DefaultRevokeURL   = "https://oauth2.googleapis.com/revoke"
)

// DefaultScopes identify the user.
var DefaultScopes = []string{"openid", "email", "profile"}

// Config holds Google OAuth client credentials and endpoints.
type Config struct {
	ClientID     string
	ClientSecret string
	Scopes       []string
	// AuthURL and TokenURL override the Google endpoint (tests).
	AuthURL     string
	TokenURL    string
	UserInfoURL string
	RevokeURL   string
	HTTPClient  *http.Client
}

// Endpoint returns the Google OAuth endpoint with any overrides applied.
func (c Config) Endpoint() oauth2.Endpoint {
	ep := googleoauth.Endpoint
	if c.AuthURL != "" {
		ep.AuthURL = c.AuthURL
	}
	if c.TokenURL != "" {
		ep.TokenURL = c.TokenURL
	}
	return ep
}

// NewProvider builds an offline-access Google OAuth provider. The consent
// prompt makes Google issue a refresh token on every connect.
func NewProvider(platform domain.Platform, cfg Config, scopes []string) *oauth.Provider {
	return oauth.NewProvider(platform, cfg.ClientID, cfg.ClientSecret, cfg.Endpoint(), scopes,
		oauth.WithOfflineAccess(),
		oauth.WithAuthParam("prompt", "consent"),
		oauth.WithAuthParam("include_granted_scopes", "true"),
		oauth.WithHTTPClient(cfg.HTTPClient),
	)
}

// Auth is the Google sign-in adapter.
type Auth struct {
	*oauth.Provider
	userInfoURL string
	revoker     *Revoker
	client      *apiclient.Client
}

// NewAuth creates the Google sign-in adapter.
func NewAuth(cfg Config) *Auth {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	userInfo := cfg.UserInfoURL
	if userInfo == "" {
		userInfo = DefaultUserInfoURL
	}
	client := apiclient.New(domain.PlatformGoogle, apiclient.WithHTTPClient(cfg.HTTPClient))
	return &Auth{
		Provider:    NewProvider(domain.PlatformGoogle, cfg, scopes),
		userInfoURL: userInfo,
		revoker:     NewRevoker(cfg, client),
		client:      client,
	}
}

// BuildAuthURL builds the consent screen URL.
func (a *Auth) BuildAuthURL(state, redirectURI, codeChallenge string) string {
	return a.AuthCodeURL(state, redirectURI, codeChallenge)
}

// ExchangeCode trades the code for tokens.
func (a *Auth) ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*domain.OAuthToken, error) {
	return a.Exchange(ctx, code, redirectURI, codeVerifier)
}

// RefreshToken refreshes the access token.
func (a *Auth) RefreshToken(ctx context.Context, refreshToken string) (*domain.OAuthToken, error) {
	return a.Refresh(ctx, refreshToken)
}

// FetchIdentity reads the OpenID Connect userinfo.
func (a *Auth) FetchIdentity(ctx context.Context, accessToken string) (*domain.AccountIdentity, error) {
	var info struct {
		Sub   string `json:"sub"`
		Name  string `json:"name"`
		Email string `json:"email"`
	}
	if err := a.client.GetJSON(ctx, "fetch userinfo", a.userInfoURL, nil, accessToken, &info); err != nil {
		return nil, err
	}
	if info.Sub == "" {
		return nil, domain.NewPlatformError(domain.KindProviderUnavailable, domain.PlatformGoogle, "fetch userinfo",
			"userinfo response carried no subject", nil)
	}
	name := info.Name
	if name == "" {
		name = info.Email
	}
	return &domain.AccountIdentity{ExternalID: info.Sub, DisplayName: name, Handle: info.Email}, nil
}

// Revoke revokes the token at Google.
func (a *Auth) Revoke(ctx context.Context, accessToken string) error {
	return a.revoker.Revoke(ctx, accessToken)
}

// Revoker calls Google's token revocation endpoint.
type Revoker struct {
	url    string
	client *apiclient.Client
}

// NewRevoker creates a revoker sharing the given client.
func NewRevoker(cfg Config, client *apiclient.Client) *Revoker {
	revokeURL := strings.TrimSpace(cfg.RevokeURL)
	if revokeURL == "" {
		revokeURL = DefaultRevokeURL
	}
	return &Revoker{url: revokeURL, client: client}
}

// Revoke revokes a token. Google accepts access or refresh tokens.
func (r *Revoker) Revoke(ctx context.Context, token string) error {
	return r.client.PostForm(ctx, "revoke", r.url, url.Values{"token": {token}}, "", nil)
}
