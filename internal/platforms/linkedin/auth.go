// Package linkedin connects LinkedIn members over OpenID Connect and
// publishes UGC posts with optional uploaded images or video.
package linkedin

import (
	"context"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/socialrelay/internal/adapters/driven/oauth"
	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/platforms/apiclient"
)

// Default endpoints.
const (
	DefaultAuthURL  = "https://www.linkedin.com/oauth/v2/authorization"
	DefaultTokenURL = "https://www.linkedin.com/oauth/v2/accessToken"
	DefaultAPIURL   = "https://api.linkedin.com"
)

// DefaultScopes cover sign-in and posting on the member's behalf.
var DefaultScopes = []string{"openid", "profile", "email", "w_member_social"}

// Config holds LinkedIn app credentials and endpoints.
type Config struct {
	ClientID     string
	ClientSecret string
	Scopes       []string
	AuthURL      string
	TokenURL     string
	APIURL       string
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
	c.APIURL = strings.TrimRight(c.APIURL, "/")
	return c
}

// Auth is the LinkedIn OAuth adapter.
type Auth struct {
	*oauth.Provider
	apiURL string
	client *apiclient.Client
}

// NewAuth creates the LinkedIn auth adapter.
func NewAuth(cfg Config) *Auth {
	cfg = cfg.withDefaults()
	endpoint := oauth2.Endpoint{AuthURL: cfg.AuthURL, TokenURL: cfg.TokenURL, AuthStyle: oauth2.AuthStyleInParams}
	return &Auth{
		Provider: oauth.NewProvider(domain.PlatformLinkedIn, cfg.ClientID, cfg.ClientSecret, endpoint, cfg.Scopes,
			oauth.WithHTTPClient(cfg.HTTPClient)),
		apiURL: cfg.APIURL,
		client: apiclient.New(domain.PlatformLinkedIn, apiclient.WithHTTPClient(cfg.HTTPClient)),
	}
}

// BuildAuthURL builds the authorization URL.
func (a *Auth) BuildAuthURL(state, redirectURI, codeChallenge string) string {
	return a.AuthCodeURL(state, redirectURI, codeChallenge)
}

// ExchangeCode trades the code for an access token.
func (a *Auth) ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*domain.OAuthToken, error) {
	return a.Exchange(ctx, code, redirectURI, codeVerifier)
}

// RefreshToken refreshes the token. LinkedIn only issues refresh tokens to
// approved apps.
func (a *Auth) RefreshToken(ctx context.Context, refreshToken string) (*domain.OAuthToken, error) {
	if refreshToken == "" {
		return nil, domain.ErrUnsupportedType
	}
	return a.Refresh(ctx, refreshToken)
}

// FetchIdentity reads the OpenID userinfo of the token's member.
func (a *Auth) FetchIdentity(ctx context.Context, accessToken string) (*domain.AccountIdentity, error) {
	var info struct {
		Sub        string `json:"sub"`
		Name       string `json:"name"`
		GivenName  string `json:"given_name"`
		FamilyName string `json:"family_name"`
		Email      string `json:"email"`
	}
	if err := a.client.GetJSON(ctx, "fetch profile", a.apiURL+"/v2/userinfo", nil, accessToken, &info); err != nil {
		return nil, err
	}
	if info.Sub == "" {
		return nil, domain.NewPlatformError(domain.KindProviderUnavailable, domain.PlatformLinkedIn, "fetch profile",
			"profile response carried no member id", nil)
	}
	name := info.Name
	if name == "" {
		name = strings.TrimSpace(info.GivenName + " " + info.FamilyName)
	}
	return &domain.AccountIdentity{
		ExternalID:  PersonURN(info.Sub),
		DisplayName: name,
		Handle:      info.Email,
	}, nil
}

// PersonURN builds the member URN from an OpenID subject.
func PersonURN(sub string) string {
	return "urn:li:person:" + sub
}
