// Package instagram publishes to Instagram business accounts through the
// Graph API content publishing flow: media containers are created, polled
// until processed, then published.
package instagram

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/core/ports/driven"
	"github.com/custodia-labs/socialrelay/internal/platforms/apiclient"
	"github.com/custodia-labs/socialrelay/internal/platforms/facebook"
	"github.com/custodia-labs/socialrelay/internal/platforms/flow"
)

// MaxCarouselItems is the Instagram carousel limit.
const MaxCarouselItems = 10

// NewAuth returns the Facebook login adapter that connects the linked
// Instagram business account.
func NewAuth(cfg facebook.Config) *facebook.Auth {
	return facebook.NewInstagramAuth(cfg)
}

// Publisher publishes feed posts, reels and carousels.
type Publisher struct {
	graphURL string
	client   *apiclient.Client
	poll     flow.PollConfig
	now      func() time.Time
}

// NewPublisher creates the Instagram publisher.
func NewPublisher(cfg facebook.Config, poll flow.PollConfig) *Publisher {
	graphURL := strings.TrimRight(cfg.GraphURL, "/")
	if graphURL == "" {
		graphURL = facebook.DefaultGraphURL
	}
	return &Publisher{
		graphURL: graphURL,
		client:   apiclient.New(domain.PlatformInstagram, apiclient.WithHTTPClient(cfg.HTTPClient)),
		poll:     poll,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Platform returns instagram.
func (p *Publisher) Platform() domain.Platform {
	return domain.PlatformInstagram
}

// Capabilities reports image, video and carousel. Instagram has no text-only posts.
func (p *Publisher) Capabilities() domain.PublishCapability {
	return domain.PublishCapImage | domain.PublishCapVideo | domain.PublishCapCarousel
}

// PublishText is not supported by Instagram.
func (p *Publisher) PublishText(context.Context, driven.PublishTarget, domain.PublishRequest) (*domain.PublishResult, error) {
	return nil, domain.NewPlatformError(domain.KindUnsupported, domain.PlatformInstagram, "publish",
		"Instagram posts need an image or video", nil)
}

// PublishMedia publishes a single image post or a reel.
func (p *Publisher) PublishMedia(
	ctx context.Context, target driven.PublishTarget, req domain.PublishRequest, media domain.Media,
) (*domain.PublishResult, error) {
	return p.runner().Single(ctx, p.containers(target), media, req.Caption())
}

// PublishCarousel publishes up to ten images or videos as one post.
func (p *Publisher) PublishCarousel(
	ctx context.Context, target driven.PublishTarget, req domain.PublishRequest, items []domain.Media,
) (*domain.PublishResult, error) {
	if len(items) > MaxCarouselItems {
		return nil, domain.NewPlatformError(domain.KindInvalidInput, domain.PlatformInstagram, "publish carousel",
			fmt.Sprintf("a carousel holds at most %d items", MaxCarouselItems), nil)
	}
	return p.runner().Carousel(ctx, p.containers(target), items, req.Caption())
}

func (p *Publisher) runner() *flow.Runner {
	r := flow.NewRunner(domain.PlatformInstagram, p.poll)
	r.Now = p.now
	return r
}

func (p *Publisher) containers(target driven.PublishTarget) *containerAPI {
	return &containerAPI{
		graphURL:  p.graphURL,
		client:    p.client,
		accountID: target.ExternalAccountID,
		token:     target.AccessToken,
	}
}

// containerAPI binds the Graph container endpoints to one account.
type containerAPI struct {
	graphURL  string
	client    *apiclient.Client
	accountID string
	token     string
}

type idResponse struct {
	ID string `json:"id"`
}

func (c *containerAPI) create(ctx context.Context, step string, form url.Values) (string, error) {
	var out idResponse
	endpoint := c.graphURL + "/" + url.PathEscape(c.accountID) + "/media"
	if err := c.client.PostForm(ctx, step, endpoint, form, c.token, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", domain.NewPlatformError(domain.KindProviderUnavailable, domain.PlatformInstagram, step,
			"provider returned no container id", nil)
	}
	return out.ID, nil
}

func mediaForm(media domain.Media) url.Values {
	form := url.Values{}
	if media.Kind == domain.MediaVideo {
		form.Set("video_url", media.URL)
	} else {
		form.Set("image_url", media.URL)
	}
	return form
}

func (c *containerAPI) CreateItem(ctx context.Context, _ int, media domain.Media) (string, error) {
	form := mediaForm(media)
	form.Set("is_carousel_item", "true")
	if media.Kind == domain.MediaVideo {
		form.Set("media_type", "VIDEO")
	}
	return c.create(ctx, "create carousel item", form)
}

func (c *containerAPI) CreateContainer(ctx context.Context, itemIDs []string, caption string) (string, error) {
	form := url.Values{}
	form.Set("media_type", "CAROUSEL")
	form.Set("children", strings.Join(itemIDs, ","))
	if caption != "" {
		form.Set("caption", caption)
	}
	return c.create(ctx, "create carousel container", form)
}

func (c *containerAPI) CreateSingle(ctx context.Context, media domain.Media, caption string) (string, error) {
	form := mediaForm(media)
	if media.Kind == domain.MediaVideo {
		form.Set("media_type", "REELS")
	}
	if caption != "" {
		form.Set("caption", caption)
	}
	return c.create(ctx, "create media container", form)
}

func (c *containerAPI) Status(ctx context.Context, containerID string) (flow.ReadyStatus, string, error) {
	var out struct {
		StatusCode string `json:"status_code"`
		Status     string `json:"status"`
	}
	err := c.client.GetJSON(ctx, "check container status", c.graphURL+"/"+url.PathEscape(containerID),
		url.Values{"fields": {"status_code,status"}}, c.token, &out)
	if err != nil {
		return flow.StatusPending, "", err
	}
	switch out.StatusCode {
	case "FINISHED", "PUBLISHED":
		return flow.StatusReady, out.Status, nil
	case "ERROR", "EXPIRED":
		return flow.StatusFailed, out.Status, nil
	default:
		return flow.StatusPending, out.Status, nil
	}
}

func (c *containerAPI) Publish(ctx context.Context, containerID string) (string, error) {
	var out idResponse
	endpoint := c.graphURL + "/" + url.PathEscape(c.accountID) + "/media_publish"
	if err := c.client.PostForm(ctx, "publish container", endpoint, url.Values{"creation_id": {containerID}}, c.token, &out); err != nil {
		return "", err
	}
	if out.ID == "" {
		return "", domain.NewPlatformError(domain.KindProviderUnavailable, domain.PlatformInstagram, "publish container",
			"provider returned no media id", nil)
	}
	return out.ID, nil
}

func (c *containerAPI) Permalink(ctx context.Context, postID string) (string, error) {
	var out struct {
		Permalink string `json:"permalink"`
	}
	err := c.client.GetJSON(ctx, "fetch permalink", c.graphURL+"/"+url.PathEscape(postID),
		url.Values{"fields": {"permalink"}}, c.token, &out)
	return out.Permalink, err
}

func (c *containerAPI) CanonicalURL(postID string) string {
	return CanonicalURL(postID)
}

// CanonicalURL is the post URL used when the permalink lookup fails.
func CanonicalURL(postID string) string {
	return "https://www.instagram.com/p/" + postID + "/"
}
