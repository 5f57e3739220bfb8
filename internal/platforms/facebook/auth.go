// Package facebook implements Facebook Login and Page publishing over the
// Graph API. The same login also serves Instagram business accounts, which
// are reached through the Page they are linked to.
package facebook

import (
	"context"
	"net/http"
	"net/url"
	"slices"
	"strings"
	"time"

	"github.com/custodia-labs/socialrelay/internal/adapters/driven/oauth"
	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/platforms/apiclient"
)

// Graph API defaults.
const (
	APIVersion       = "v21.0"
	DefaultGraphURL  = "https://graph.facebook.com/" + APIVersion
	DefaultDialogURL = "https://www.facebook.com/" + APIVersion + "/dialog/oauth"
)

// DefaultScopes are requested when none are configured. They cover Page
// publishing and the linked Instagram business account.
var DefaultScopes = []string{
	"pages_show_list",
	"pages_read_engagement",
	"pages_manage_posts",
	"business_management",
	"instagram_basic",
	"instagram_content_publish",
}

// NoPageMessage is shown when the user has no Page to post as.
const NoPageMessage = "No Facebook Page found. Create a Page (or ask to be made an admin of one), " +
	"grant it during login, then connect again."

// NoInstagramMessage is shown when no Page has a linked Instagram business account.
const NoInstagramMessage = "No Instagram business account found. Convert your Instagram account to a " +
	"Business or Creator account, link it to a Facebook Page, then connect again."

// Config holds the Facebook app credentials and endpoints.
type Config struct {
	ClientID     string
	ClientSecret string
	Scopes       []string
	GraphURL     string
	DialogURL    string
	HTTPClient   *http.Client
}

func (c Config) withDefaults() Config {
	if len(c.Scopes) == 0 {
		c.Scopes = DefaultScopes
	}
	if c.GraphURL == "" {
		c.GraphURL = DefaultGraphURL
	}
	if c.DialogURL == "" {
		c.DialogURL = DefaultDialogURL
	}
	c.GraphURL = strings.TrimRight(c.GraphURL, "/")
	return c
}

// Configured reports whether app credentials are present.
func (c Config) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Auth is the Graph login flow. The platform decides which asset becomes
// the primary connection: the Page for facebook, the linked Instagram
// business account for instagram.
type Auth struct {
	platform domain.Platform
	cfg      Config
	client   *apiclient.Client
	now      func() time.Time
}

// NewAuth creates the Facebook login adapter.
func NewAuth(cfg Config) *Auth {
	return newAuth(domain.PlatformFacebook, cfg)
}

// NewInstagramAuth creates the login adapter whose primary asset is the
// Instagram business account linked to the user's Page.
func NewInstagramAuth(cfg Config) *Auth {
	return newAuth(domain.PlatformInstagram, cfg)
}

func newAuth(platform domain.Platform, cfg Config) *Auth {
	cfg = cfg.withDefaults()
	return &Auth{
		platform: platform,
		cfg:      cfg,
		client:   apiclient.New(platform, apiclient.WithHTTPClient(cfg.HTTPClient)),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Platform returns the platform served.
func (a *Auth) Platform() domain.Platform {
	return a.platform
}

// UsesPKCE reports false: Facebook Login uses the client secret.
func (a *Auth) UsesPKCE() bool {
	return false
}

// BuildAuthURL builds the login dialog URL.
func (a *Auth) BuildAuthURL(state, redirectURI, _ string) string {
	q := url.Values{}
	q.Set("client_id", a.cfg.ClientID)
	q.Set("redirect_uri", redirectURI)
	q.Set("state", state)
	q.Set("response_type", "code")
	q.Set("scope", strings.Join(a.cfg.Scopes, ","))
	return a.cfg.DialogURL + "?" + q.Encode()
}

// ExchangeCode swaps the code for a short-lived token, then for the
// long-lived token that is stored. Both steps are required.
func (a *Auth) ExchangeCode(ctx context.Context, code, redirectURI, _ string) (*domain.OAuthToken, error) {
	q := url.Values{}
	q.Set("client_id", a.cfg.ClientID)
	q.Set("client_secret", a.cfg.ClientSecret)
	q.Set("redirect_uri", redirectURI)
	q.Set("code", code)

	var short oauth.TokenResponse
	if err := a.client.GetJSON(ctx, "exchange code", a.cfg.GraphURL+"/oauth/access_token", q, "", &short); err != nil {
		return nil, err
	}
	if short.AccessToken == "" {
		return nil, domain.NewPlatformError(domain.KindProviderUnavailable, a.platform, "exchange code",
			"token response carried no access token", nil)
	}
	return a.longLived(ctx, short.AccessToken)
}

func (a *Auth) longLived(ctx context.Context, token string) (*domain.OAuthToken, error) {
	q := url.Values{}
	q.Set("grant_type", "fb_exchange_token")
	q.Set("client_id", a.cfg.ClientID)
	q.Set("client_secret", a.cfg.ClientSecret)
	q.Set("fb_exchange_token", token)

	var long oauth.TokenResponse
	if err := a.client.GetJSON(ctx, "long-lived token exchange", a.cfg.GraphURL+"/oauth/access_token", q, "", &long); err != nil {
		return nil, err
	}
	if long.AccessToken == "" {
		return nil, domain.NewPlatformError(domain.KindProviderUnavailable, a.platform, "long-lived token exchange",
			"token response carried no access token", nil)
	}
	return long.Token(a.now()), nil
}

type pageList struct {
	Data []page `json:"data"`
}

type page struct {
	ID          string         `json:"id"`
	Name        string         `json:"name"`
	AccessToken string         `json:"access_token"`
	FanCount    int64          `json:"fan_count"`
	Instagram   *instagramUser `json:"instagram_business_account"`
}

type instagramUser struct {
	ID             string `json:"id"`
	Username       string `json:"username"`
	Name           string `json:"name"`
	FollowersCount int64  `json:"followers_count"`
}

const accountFields = "id,name,access_token,fan_count," +
	"instagram_business_account{id,username,name,followers_count}"

// FetchIdentity lists the user's Pages and picks the postable asset.
func (a *Auth) FetchIdentity(ctx context.Context, accessToken string) (*domain.AccountIdentity, error) {
	var pages pageList
	q := url.Values{"fields": {accountFields}}
	if err := a.client.GetJSON(ctx, "list pages", a.cfg.GraphURL+"/me/accounts", q, accessToken, &pages); err != nil {
		return nil, err
	}

	if a.platform == domain.PlatformInstagram {
		return instagramIdentity(pages.Data)
	}
	return pageIdentity(pages.Data)
}

// pageIdentity picks the first Page that came back with its own access
// token; Pages without one cannot be posted to.
func pageIdentity(pages []page) (*domain.AccountIdentity, error) {
	idx := slices.IndexFunc(pages, func(p page) bool { return p.AccessToken != "" })
	if idx < 0 {
		return nil, domain.NewPlatformError(domain.KindNoPostableAsset, domain.PlatformFacebook, "list pages", NoPageMessage, nil)
	}
	p := pages[idx]
	identity := &domain.AccountIdentity{
		ExternalID:      p.ID,
		DisplayName:     p.Name,
		FollowerCount:   p.FanCount,
		PageAccessToken: p.AccessToken,
		Metadata:        map[string]string{"page_id": p.ID},
	}
	if ig := p.Instagram; ig != nil && ig.ID != "" {
		identity.Metadata["instagram_account_id"] = ig.ID
		identity.Secondary = &domain.LinkedAsset{
			Platform:      domain.PlatformInstagram,
			ExternalID:    ig.ID,
			DisplayName:   firstNonEmpty(ig.Name, ig.Username),
			Handle:        ig.Username,
			FollowerCount: ig.FollowersCount,
		}
	}
	return identity, nil
}

func instagramIdentity(pages []page) (*domain.AccountIdentity, error) {
	for _, p := range pages {
		ig := p.Instagram
		if ig == nil || ig.ID == "" || p.AccessToken == "" {
			continue
		}
		return &domain.AccountIdentity{
			ExternalID:      ig.ID,
			DisplayName:     firstNonEmpty(ig.Name, ig.Username),
			Handle:          ig.Username,
			FollowerCount:   ig.FollowersCount,
			PageAccessToken: p.AccessToken,
			Metadata: map[string]string{
				"page_id":   p.ID,
				"page_name": p.Name,
			},
		}, nil
	}
	return nil, domain.NewPlatformError(domain.KindNoPostableAsset, domain.PlatformInstagram, "list pages", NoInstagramMessage, nil)
}

// RefreshToken re-runs the long-lived exchange for a stored user token.
// Page credentials carry no refresh token and never reach this path.
func (a *Auth) RefreshToken(ctx context.Context, refreshToken string) (*domain.OAuthToken, error) {
	if refreshToken == "" {
		return nil, domain.ErrUnsupportedType
	}
	return a.longLived(ctx, refreshToken)
}

// Revoke removes the app's permissions for the token's user.
func (a *Auth) Revoke(ctx context.Context, accessToken string) error {
	_, err := a.client.Call(ctx, "revoke", apiclient.Request{
		Method: http.MethodDelete,
		URL:    a.cfg.GraphURL + "/me/permissions",
		Bearer: accessToken,
	}, nil)
	return err
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
