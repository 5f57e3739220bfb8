package twitter

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"net/http"
	"time"
	"unicode/utf8"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/core/ports/driven"
	"github.com/custodia-labs/socialrelay/internal/platforms/apiclient"
	"github.com/custodia-labs/socialrelay/internal/platforms/flow"
)

// Limits enforced before calling the API.
const (
	MaxImages     = 4
	MaxImageBytes = 5 << 20
	MaxTweetRunes = 280
)

// Publisher posts tweets as the connected user.
type Publisher struct {
	cfg    Config
	client *apiclient.Client
	now    func() time.Time
}

// NewPublisher creates the X publisher.
func NewPublisher(cfg Config) *Publisher {
	cfg = cfg.withDefaults()
	return &Publisher{
		cfg:    cfg,
		client: apiclient.New(domain.PlatformTwitter, apiclient.WithHTTPClient(cfg.HTTPClient)),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Platform returns twitter.
func (p *Publisher) Platform() domain.Platform {
	return domain.PlatformTwitter
}

// Capabilities reports text, image and multi-image tweets. Video needs the
// chunked upload protocol, which is not implemented.
func (p *Publisher) Capabilities() domain.PublishCapability {
	return domain.PublishCapText | domain.PublishCapImage | domain.PublishCapCarousel
}

// PublishText posts a text tweet.
func (p *Publisher) PublishText(ctx context.Context, target driven.PublishTarget, req domain.PublishRequest) (*domain.PublishResult, error) {
	return p.tweet(ctx, target, req, nil)
}

// PublishMedia posts a tweet with one image.
func (p *Publisher) PublishMedia(
	ctx context.Context, target driven.PublishTarget, req domain.PublishRequest, media domain.Media,
) (*domain.PublishResult, error) {
	if media.Kind != domain.MediaImage {
		return nil, domain.NewPlatformError(domain.KindMediaKindMismatch, domain.PlatformTwitter, "publish media",
			"X does not accept video posts", nil)
	}
	id, err := p.upload(ctx, target, media)
	if err != nil {
		return nil, err
	}
	return p.tweet(ctx, target, req, []string{id})
}

// PublishCarousel posts a tweet with up to four images, uploaded in order.
func (p *Publisher) PublishCarousel(
	ctx context.Context, target driven.PublishTarget, req domain.PublishRequest, items []domain.Media,
) (*domain.PublishResult, error) {
	if len(items) > MaxImages {
		return nil, domain.NewPlatformError(domain.KindInvalidInput, domain.PlatformTwitter, "publish carousel",
			fmt.Sprintf("a tweet can carry at most %d images", MaxImages), nil)
	}
	for i, item := range items {
		if item.Kind != domain.MediaImage {
			pe := domain.NewPlatformError(domain.KindMediaKindMismatch, domain.PlatformTwitter, "publish carousel",
				"X does not accept video posts", nil)
			pe.Index = i
			return nil, pe
		}
	}
	ids, err := flow.CreateItems(ctx, domain.PlatformTwitter, items,
		func(ctx context.Context, _ int, media domain.Media) (string, error) {
			return p.upload(ctx, target, media)
		})
	if err != nil {
		return nil, err
	}
	return p.tweet(ctx, target, req, ids)
}

// upload sends one image through the simple media upload endpoint.
func (p *Publisher) upload(ctx context.Context, target driven.PublishTarget, media domain.Media) (string, error) {
	data, _, err := p.client.ReadMedia(ctx, "download media", media.URL, MaxImageBytes)
	if err != nil {
		return "", err
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	part, err := w.CreateFormFile("media", "upload")
	if err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	if _, err := part.Write(data); err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	if err := w.WriteField("media_category", "tweet_image"); err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}
	if err := w.Close(); err != nil {
		return "", fmt.Errorf("build upload: %w", err)
	}

	var out struct {
		MediaIDString string `json:"media_id_string"`
	}
	if _, err := p.client.Call(ctx, "upload media", apiclient.Request{
		Method:      http.MethodPost,
		URL:         p.cfg.UploadURL + "/1.1/media/upload.json",
		Body:        &buf,
		ContentType: w.FormDataContentType(),
		Bearer:      target.AccessToken,
	}, &out); err != nil {
		return "", err
	}
	if out.MediaIDString == "" {
		return "", domain.NewPlatformError(domain.KindProviderUnavailable, domain.PlatformTwitter, "upload media",
			"provider returned no media id", nil)
	}
	return out.MediaIDString, nil
}

func (p *Publisher) tweet(
	ctx context.Context, target driven.PublishTarget, req domain.PublishRequest, mediaIDs []string,
) (*domain.PublishResult, error) {
	text := req.Caption()
	if n := utf8.RuneCountInString(text); n > MaxTweetRunes {
		return nil, domain.NewPlatformError(domain.KindInvalidInput, domain.PlatformTwitter, "create tweet",
			fmt.Sprintf("tweet is %d characters, the limit is %d", n, MaxTweetRunes), nil)
	}
	body := map[string]any{"text": text}
	if len(mediaIDs) > 0 {
		body["media"] = map[string]any{"media_ids": mediaIDs}
	}

	var out struct {
		Data struct {
			ID string `json:"id"`
		} `json:"data"`
	}
	if err := p.client.PostJSON(ctx, "create tweet", p.cfg.APIURL+"/2/tweets", body, target.AccessToken, &out); err != nil {
		return nil, err
	}
	if out.Data.ID == "" {
		return nil, domain.NewPlatformError(domain.KindProviderUnavailable, domain.PlatformTwitter, "create tweet",
			"provider returned no tweet id", nil)
	}
	return &domain.PublishResult{
		RemotePostID: out.Data.ID,
		PermalinkURL: TweetURL(target.Metadata["username"], out.Data.ID),
		PublishedAt:  p.now(),
	}, nil
}

// TweetURL is the public URL of a tweet.
func TweetURL(username, id string) string {
	if username == "" {
		return "https://x.com/i/web/status/" + id
	}
	return "https://x.com/" + username + "/status/" + id
}
