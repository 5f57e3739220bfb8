// Package youtube connects YouTube channels through Google OAuth and
// uploads videos with the YouTube Data API.
package youtube

import (
	"context"
	"net/http"
	"strings"
	"time"
	"unicode/utf8"

	"golang.org/x/oauth2"
	"google.golang.org/api/option"
	yt "google.golang.org/api/youtube/v3"

	"github.com/custodia-labs/socialrelay/internal/adapters/driven/oauth"
	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/core/ports/driven"
	"github.com/custodia-labs/socialrelay/internal/platforms/apiclient"
	"github.com/custodia-labs/socialrelay/internal/platforms/google"
)

// DefaultScopes allow uploads and reading the channel.
var DefaultScopes = []string{yt.YoutubeUploadScope, yt.YoutubeReadonlyScope}

// NoChannelMessage is shown when the Google account has no channel.
const NoChannelMessage = "This Google account has no YouTube channel. Create a channel, then connect again."

// maxTitleRunes is YouTube's title limit.
const maxTitleRunes = 100

// Config holds the Google client credentials plus the Data API endpoint.
type Config struct {
	google.Config
	// APIURL overrides the Data API base path (tests).
	APIURL string
	// Privacy is the privacyStatus for uploads; public by default.
	Privacy string
}

// service opens a Data API client authorised with a bearer token.
func (c Config) service(ctx context.Context, accessToken string) (*yt.Service, error) {
	base := c.HTTPClient
	if base == nil {
		base = &http.Client{Timeout: apiclient.MediaTimeout}
	}
	hc := &http.Client{
		Timeout: base.Timeout,
		Transport: &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: accessToken, TokenType: "Bearer"}),
			Base:   base.Transport,
		},
	}
	opts := []option.ClientOption{option.WithHTTPClient(hc)}
	if c.APIURL != "" {
		opts = append(opts, option.WithEndpoint(strings.TrimRight(c.APIURL, "/")+"/"))
	}
	return yt.NewService(ctx, opts...)
}

// Auth is the YouTube channel connection adapter.
type Auth struct {
	*oauth.Provider
	cfg     Config
	revoker *google.Revoker
}

// NewAuth creates the YouTube auth adapter.
func NewAuth(cfg Config) *Auth {
	scopes := cfg.Scopes
	if len(scopes) == 0 {
		scopes = DefaultScopes
	}
	return &Auth{
		Provider: google.NewProvider(domain.PlatformYouTube, cfg.Config, scopes),
		cfg:      cfg,
		revoker:  google.NewRevoker(cfg.Config, apiclient.New(domain.PlatformYouTube, apiclient.WithHTTPClient(cfg.HTTPClient))),
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

// Revoke revokes the token at Google.
func (a *Auth) Revoke(ctx context.Context, accessToken string) error {
	return a.revoker.Revoke(ctx, accessToken)
}

// FetchIdentity returns the channel owned by the token's account.
func (a *Auth) FetchIdentity(ctx context.Context, accessToken string) (*domain.AccountIdentity, error) {
	svc, err := a.cfg.service(ctx, accessToken)
	if err != nil {
		return nil, classify(ctx, "fetch channel", err)
	}
	resp, err := svc.Channels.List([]string{"snippet", "statistics"}).Mine(true).Context(ctx).Do()
	if err != nil {
		return nil, classify(ctx, "fetch channel", err)
	}
	if len(resp.Items) == 0 {
		return nil, domain.NewPlatformError(domain.KindNoPostableAsset, domain.PlatformYouTube, "fetch channel", NoChannelMessage, nil)
	}

	ch := resp.Items[0]
	identity := &domain.AccountIdentity{ExternalID: ch.Id}
	if ch.Snippet != nil {
		identity.DisplayName = ch.Snippet.Title
		identity.Handle = ch.Snippet.CustomUrl
	}
	if ch.Statistics != nil {
		identity.FollowerCount = int64(ch.Statistics.SubscriberCount)
	}
	return identity, nil
}

// Publisher uploads videos to the connected channel.
type Publisher struct {
	cfg    Config
	client *apiclient.Client
	now    func() time.Time
}

// NewPublisher creates the YouTube publisher.
func NewPublisher(cfg Config) *Publisher {
	return &Publisher{
		cfg:    cfg,
		client: apiclient.New(domain.PlatformYouTube, apiclient.WithHTTPClient(cfg.HTTPClient)),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Platform returns youtube.
func (p *Publisher) Platform() domain.Platform {
	return domain.PlatformYouTube
}

// Capabilities reports video only.
func (p *Publisher) Capabilities() domain.PublishCapability {
	return domain.PublishCapVideo
}

// PublishText is not supported on YouTube.
func (p *Publisher) PublishText(context.Context, driven.PublishTarget, domain.PublishRequest) (*domain.PublishResult, error) {
	return nil, domain.NewPlatformError(domain.KindUnsupported, domain.PlatformYouTube, "publish", "YouTube posts need a video", nil)
}

// PublishCarousel is not supported on YouTube.
func (p *Publisher) PublishCarousel(
	context.Context, driven.PublishTarget, domain.PublishRequest, []domain.Media,
) (*domain.PublishResult, error) {
	return nil, domain.NewPlatformError(domain.KindUnsupported, domain.PlatformYouTube, "publish",
		"YouTube does not support multi-item posts", nil)
}

// PublishMedia streams the video from its URL into a Videos.Insert upload.
func (p *Publisher) PublishMedia(
	ctx context.Context, target driven.PublishTarget, req domain.PublishRequest, media domain.Media,
) (*domain.PublishResult, error) {
	if media.Kind != domain.MediaVideo {
		return nil, domain.NewPlatformError(domain.KindMediaKindMismatch, domain.PlatformYouTube, "publish media",
			"YouTube does not accept image posts", nil)
	}

	m, err := p.client.FetchMedia(ctx, "download media", media.URL)
	if err != nil {
		return nil, err
	}
	defer m.Body.Close()

	svc, err := p.cfg.service(ctx, target.AccessToken)
	if err != nil {
		return nil, classify(ctx, "upload video", err)
	}
	privacy := p.cfg.Privacy
	if privacy == "" {
		privacy = "public"
	}
	video := &yt.Video{
		Snippet: &yt.VideoSnippet{
			Title:       videoTitle(req),
			Description: req.Caption(),
			Tags:        req.Hashtags,
		},
		Status: &yt.VideoStatus{PrivacyStatus: privacy},
	}
	uploaded, err := svc.Videos.Insert([]string{"snippet", "status"}, video).Media(m.Body).Context(ctx).Do()
	if err != nil {
		return nil, classify(ctx, "upload video", err)
	}
	return &domain.PublishResult{
		RemotePostID: uploaded.Id,
		PermalinkURL: WatchURL(uploaded.Id),
		PublishedAt:  p.now(),
	}, nil
}

// videoTitle uses the title, else the first line of the text.
func videoTitle(req domain.PublishRequest) string {
	title := strings.TrimSpace(req.Title)
	if title == "" {
		title, _, _ = strings.Cut(strings.TrimSpace(req.Text), "\n")
	}
	if title == "" {
		title = "Untitled"
	}
	if utf8.RuneCountInString(title) > maxTitleRunes {
		title = string([]rune(title)[:maxTitleRunes])
	}
	return title
}

// WatchURL is the public URL of a video.
func WatchURL(id string) string {
	return "https://www.youtube.com/watch?v=" + id
}
