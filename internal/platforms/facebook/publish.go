package facebook

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"time"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/core/ports/driven"
	"github.com/custodia-labs/socialrelay/internal/platforms/apiclient"
	"github.com/custodia-labs/socialrelay/internal/platforms/flow"
)

// MaxCarouselItems is the largest multi-photo post accepted.
const MaxCarouselItems = 10

// Publisher posts to a Facebook Page as the Page.
type Publisher struct {
	graphURL string
	client   *apiclient.Client
	now      func() time.Time
}

// NewPublisher creates the Page publisher.
func NewPublisher(cfg Config) *Publisher {
	cfg = cfg.withDefaults()
	return &Publisher{
		graphURL: cfg.GraphURL,
		client:   apiclient.New(domain.PlatformFacebook, apiclient.WithHTTPClient(cfg.HTTPClient)),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Platform returns facebook.
func (p *Publisher) Platform() domain.Platform {
	return domain.PlatformFacebook
}

// Capabilities reports text, image, video and photo carousels.
func (p *Publisher) Capabilities() domain.PublishCapability {
	return domain.PublishCapText | domain.PublishCapImage | domain.PublishCapVideo | domain.PublishCapCarousel
}

type idResponse struct {
	ID     string `json:"id"`
	PostID string `json:"post_id"`
}

// PublishText posts a status update to the Page feed.
func (p *Publisher) PublishText(ctx context.Context, target driven.PublishTarget, req domain.PublishRequest) (*domain.PublishResult, error) {
	form := url.Values{"message": {req.Caption()}}
	var out idResponse
	if err := p.client.PostForm(ctx, "create post", p.pageURL(target, "feed"), form, target.AccessToken, &out); err != nil {
		return nil, err
	}
	return p.result(ctx, target, out.ID)
}

// PublishMedia posts one photo or video to the Page.
func (p *Publisher) PublishMedia(
	ctx context.Context, target driven.PublishTarget, req domain.PublishRequest, media domain.Media,
) (*domain.PublishResult, error) {
	var (
		out  idResponse
		err  error
		step string
	)
	switch media.Kind {
	case domain.MediaImage:
		step = "upload photo"
		form := url.Values{"url": {media.URL}, "caption": {req.Caption()}}
		err = p.client.PostForm(ctx, step, p.pageURL(target, "photos"), form, target.AccessToken, &out)
	case domain.MediaVideo:
		step = "upload video"
		form := url.Values{"file_url": {media.URL}, "description": {req.Caption()}}
		if req.Title != "" {
			form.Set("title", req.Title)
		}
		err = p.client.PostForm(ctx, step, p.pageURL(target, "videos"), form, target.AccessToken, &out)
	default:
		return nil, domain.NewPlatformError(domain.KindMediaKindMismatch, domain.PlatformFacebook, "publish media",
			"could not determine media type", nil)
	}
	if err != nil {
		return nil, err
	}
	postID := out.PostID
	if postID == "" {
		postID = out.ID
	}
	return p.result(ctx, target, postID)
}

// PublishCarousel uploads every photo unpublished, in order, then creates
// one feed post attaching them.
func (p *Publisher) PublishCarousel(
	ctx context.Context, target driven.PublishTarget, req domain.PublishRequest, items []domain.Media,
) (*domain.PublishResult, error) {
	if len(items) > MaxCarouselItems {
		return nil, domain.NewPlatformError(domain.KindInvalidInput, domain.PlatformFacebook, "publish carousel",
			fmt.Sprintf("at most %d photos can be attached to one post", MaxCarouselItems), nil)
	}
	for i, item := range items {
		if item.Kind != domain.MediaImage {
			pe := domain.NewPlatformError(domain.KindMediaKindMismatch, domain.PlatformFacebook, "publish carousel",
				"Facebook multi-photo posts accept images only", nil)
			pe.Index = i
			return nil, pe
		}
	}

	ids, err := flow.CreateItems(ctx, domain.PlatformFacebook, items,
		func(ctx context.Context, _ int, media domain.Media) (string, error) {
			form := url.Values{"url": {media.URL}, "published": {"false"}}
			var out idResponse
			if err := p.client.PostForm(ctx, "upload photo", p.pageURL(target, "photos"), form, target.AccessToken, &out); err != nil {
				return "", err
			}
			return out.ID, nil
		})
	if err != nil {
		return nil, err
	}

	form := url.Values{"message": {req.Caption()}}
	for i, id := range ids {
		attached, _ := json.Marshal(map[string]string{"media_fbid": id})
		form.Set(fmt.Sprintf("attached_media[%d]", i), string(attached))
	}
	var out idResponse
	if err := p.client.PostForm(ctx, "create post", p.pageURL(target, "feed"), form, target.AccessToken, &out); err != nil {
		return nil, err
	}
	return p.result(ctx, target, out.ID)
}

func (p *Publisher) result(ctx context.Context, target driven.PublishTarget, postID string) (*domain.PublishResult, error) {
	if postID == "" {
		return nil, domain.NewPlatformError(domain.KindProviderUnavailable, domain.PlatformFacebook, "create post",
			"provider returned no post id", nil)
	}
	permalink := flow.ResolvePermalink(ctx, domain.PlatformFacebook, postID,
		func(ctx context.Context, id string) (string, error) {
			var out struct {
				PermalinkURL string `json:"permalink_url"`
			}
			err := p.client.GetJSON(ctx, "fetch permalink", p.graphURL+"/"+url.PathEscape(id),
				url.Values{"fields": {"permalink_url"}}, target.AccessToken, &out)
			return out.PermalinkURL, err
		}, CanonicalURL)
	return &domain.PublishResult{
		RemotePostID: postID,
		PermalinkURL: permalink,
		PublishedAt:  p.now(),
	}, nil
}

func (p *Publisher) pageURL(target driven.PublishTarget, edge string) string {
	pageID := target.ExternalAccountID
	if id := target.Metadata["page_id"]; id != "" {
		pageID = id
	}
	return p.graphURL + "/" + url.PathEscape(pageID) + "/" + edge
}

// CanonicalURL is the post URL used when the permalink lookup fails.
func CanonicalURL(postID string) string {
	return "https://www.facebook.com/" + postID
}
