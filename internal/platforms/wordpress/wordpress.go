// Package wordpress connects WordPress.com (and Jetpack) sites and publishes
// blog posts through the v1.1 REST API.
package wordpress

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/socialrelay/internal/adapters/driven/oauth"
	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/core/ports/driven"
	"github.com/custodia-labs/socialrelay/internal/platforms/apiclient"
)

// Default endpoints.
const (
	DefaultAuthURL  = "https://public-api.wordpress.com/oauth2/authorize"
	DefaultTokenURL = "https://public-api.wordpress.com/oauth2/token"
	DefaultAPIURL   = "https://public-api.wordpress.com"
)

// Config holds WordPress.com app credentials and endpoints.
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

// Auth connects the site the user picks on the authorization screen.
type Auth struct {
	*oauth.Provider
	cfg    Config
	client *apiclient.Client
}

// NewAuth creates the WordPress auth adapter. Without scopes the token is
// bound to a single blog.
func NewAuth(cfg Config) *Auth {
	cfg = cfg.withDefaults()
	endpoint := oauth2.Endpoint{AuthURL: cfg.AuthURL, TokenURL: cfg.TokenURL, AuthStyle: oauth2.AuthStyleInParams}
	return &Auth{
		Provider: oauth.NewProvider(domain.PlatformWordPress, cfg.ClientID, cfg.ClientSecret, endpoint, cfg.Scopes,
			oauth.WithExtraKeys("blog_id", "blog_url"), oauth.WithHTTPClient(cfg.HTTPClient)),
		cfg:    cfg,
		client: apiclient.New(domain.PlatformWordPress, apiclient.WithHTTPClient(cfg.HTTPClient)),
	}
}

// BuildAuthURL builds the authorization URL.
func (a *Auth) BuildAuthURL(state, redirectURI, codeChallenge string) string {
	return a.AuthCodeURL(state, redirectURI, codeChallenge)
}

// ExchangeCode trades the code for a token. The response carries blog_id
// and blog_url, kept in the token extras.
func (a *Auth) ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*domain.OAuthToken, error) {
	return a.Exchange(ctx, code, redirectURI, codeVerifier)
}

// RefreshToken reports that WordPress.com tokens do not expire.
func (a *Auth) RefreshToken(context.Context, string) (*domain.OAuthToken, error) {
	return nil, domain.ErrUnsupportedType
}

type tokenInfo struct {
	// BlogID is a string or a number depending on the token type.
	BlogID json.RawMessage `json:"blog_id"`
	Scope  string          `json:"scope"`
}

func (t tokenInfo) blogID() string {
	id := strings.Trim(string(t.BlogID), `"`)
	if id == "null" || id == "0" {
		return ""
	}
	return id
}

type site struct {
	ID               int64  `json:"ID"`
	Name             string `json:"name"`
	URL              string `json:"URL"`
	SubscribersCount int64  `json:"subscribers_count"`
}

type me struct {
	ID             int64  `json:"ID"`
	DisplayName    string `json:"display_name"`
	Username       string `json:"username"`
	PrimaryBlog    int64  `json:"primary_blog"`
	PrimaryBlogURL string `json:"primary_blog_url"`
}

// FetchIdentity resolves the site the token is bound to. Global tokens fall
// back to the user's primary blog.
func (a *Auth) FetchIdentity(ctx context.Context, accessToken string) (*domain.AccountIdentity, error) {
	var user me
	if err := a.client.GetJSON(ctx, "fetch user", a.cfg.APIURL+"/rest/v1.1/me", nil, accessToken, &user); err != nil {
		return nil, err
	}

	var info tokenInfo
	q := url.Values{"client_id": {a.cfg.ClientID}, "token": {accessToken}}
	if err := a.client.GetJSON(ctx, "token info", a.cfg.APIURL+"/oauth2/token-info", q, "", &info); err != nil {
		return nil, err
	}
	blogID := info.blogID()
	if blogID == "" {
		if user.PrimaryBlog == 0 {
			return nil, domain.NewPlatformError(domain.KindNoPostableAsset, domain.PlatformWordPress, "token info",
				"No WordPress site is linked to this account. Create a site, then connect again.", nil)
		}
		blogID = strconv.FormatInt(user.PrimaryBlog, 10)
	}

	var s site
	if err := a.client.GetJSON(ctx, "fetch site", a.cfg.APIURL+"/rest/v1.1/sites/"+url.PathEscape(blogID), nil, accessToken, &s); err != nil {
		return nil, err
	}
	name := s.Name
	if name == "" {
		name = user.DisplayName
	}
	return &domain.AccountIdentity{
		ExternalID:    blogID,
		DisplayName:   name,
		Handle:        user.Username,
		FollowerCount: s.SubscribersCount,
		Metadata:      map[string]string{"blog_url": s.URL},
	}, nil
}

// Publisher publishes posts to the connected site.
type Publisher struct {
	apiURL string
	client *apiclient.Client
	now    func() time.Time
}

// NewPublisher creates the WordPress publisher.
func NewPublisher(cfg Config) *Publisher {
	cfg = cfg.withDefaults()
	return &Publisher{
		apiURL: cfg.APIURL,
		client: apiclient.New(domain.PlatformWordPress, apiclient.WithHTTPClient(cfg.HTTPClient)),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Platform returns wordpress.
func (p *Publisher) Platform() domain.Platform {
	return domain.PlatformWordPress
}

// Capabilities reports text, image, video and galleries.
func (p *Publisher) Capabilities() domain.PublishCapability {
	return domain.PublishCapText | domain.PublishCapImage | domain.PublishCapVideo | domain.PublishCapCarousel
}

// PublishText publishes a post with no media.
func (p *Publisher) PublishText(ctx context.Context, target driven.PublishTarget, req domain.PublishRequest) (*domain.PublishResult, error) {
	return p.post(ctx, target, req, nil)
}

// PublishMedia publishes a post with one image (sideloaded and featured)
// or one embedded video link.
func (p *Publisher) PublishMedia(
	ctx context.Context, target driven.PublishTarget, req domain.PublishRequest, media domain.Media,
) (*domain.PublishResult, error) {
	return p.post(ctx, target, req, []domain.Media{media})
}

// PublishCarousel publishes a post whose images form a gallery in order.
func (p *Publisher) PublishCarousel(
	ctx context.Context, target driven.PublishTarget, req domain.PublishRequest, items []domain.Media,
) (*domain.PublishResult, error) {
	return p.post(ctx, target, req, items)
}

func (p *Publisher) post(
	ctx context.Context, target driven.PublishTarget, req domain.PublishRequest, media []domain.Media,
) (*domain.PublishResult, error) {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title, _, _ = strings.Cut(strings.TrimSpace(req.Text), "\n")
	}

	form := url.Values{}
	form.Set("title", title)
	form.Set("content", renderContent(req.Text, media))
	form.Set("status", "publish")
	if len(req.Hashtags) > 0 {
		form.Set("tags", strings.Join(req.Hashtags, ","))
	}
	for _, m := range media {
		if m.Kind == domain.MediaImage {
			form.Add("media_urls[]", m.URL)
		}
	}

	var out struct {
		ID  int64  `json:"ID"`
		URL string `json:"URL"`
	}
	endpoint := p.apiURL + "/rest/v1.1/sites/" + url.PathEscape(target.ExternalAccountID) + "/posts/new"
	if err := p.client.PostForm(ctx, "create post", endpoint, form, target.AccessToken, &out); err != nil {
		return nil, err
	}
	if out.ID == 0 {
		return nil, domain.NewPlatformError(domain.KindProviderUnavailable, domain.PlatformWordPress, "create post",
			"provider returned no post id", nil)
	}
	postID := strconv.FormatInt(out.ID, 10)
	link := out.URL
	if link == "" {
		link = CanonicalURL(target.Metadata["blog_url"], postID)
	}
	return &domain.PublishResult{RemotePostID: postID, PermalinkURL: link, PublishedAt: p.now()}, nil
}

// renderContent builds the post HTML: paragraphs of text followed by the
// media in order.
func renderContent(text string, media []domain.Media) string {
	var b strings.Builder
	for _, para := range strings.Split(strings.TrimSpace(text), "\n\n") {
		if para = strings.TrimSpace(para); para != "" {
			fmt.Fprintf(&b, "<p>%s</p>\n", strings.ReplaceAll(html.EscapeString(para), "\n", "<br />"))
		}
	}
	for _, m := range media {
		src := html.EscapeString(m.URL)
		if m.Kind == domain.MediaVideo {
			fmt.Fprintf(&b, "[video src=\"%s\"]\n", src)
			continue
		}
		fmt.Fprintf(&b, "<img src=\"%s\" alt=\"\" />\n", src)
	}
	return b.String()
}

// CanonicalURL is the ?p= link of a post on a site.
func CanonicalURL(blogURL, postID string) string {
	return strings.TrimRight(blogURL, "/") + "/?p=" + postID
}
