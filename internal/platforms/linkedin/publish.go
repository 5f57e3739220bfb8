package linkedin

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/core/ports/driven"
	"github.com/custodia-labs/socialrelay/internal/platforms/apiclient"
	"github.com/custodia-labs/socialrelay/internal/platforms/flow"
)

const (
	imageRecipe = "urn:li:digitalmediaRecipe:feedshare-image"
	videoRecipe = "urn:li:digitalmediaRecipe:feedshare-video"
	uploadKey   = "com.linkedin.digitalmedia.uploading.MediaUploadHttpRequest"
)

// MaxCarouselItems is the most images one post can carry.
const MaxCarouselItems = 9

// Publisher posts UGC shares as the connected member.
type Publisher struct {
	apiURL string
	client *apiclient.Client
	now    func() time.Time
}

// NewPublisher creates the LinkedIn publisher.
func NewPublisher(cfg Config) *Publisher {
	cfg = cfg.withDefaults()
	return &Publisher{
		apiURL: cfg.APIURL,
		client: apiclient.New(domain.PlatformLinkedIn, apiclient.WithHTTPClient(cfg.HTTPClient)),
		now:    func() time.Time { return time.Now().UTC() },
	}
}

// Platform returns linkedin.
func (p *Publisher) Platform() domain.Platform {
	return domain.PlatformLinkedIn
}

// Capabilities reports text, image, video and multi-image posts.
func (p *Publisher) Capabilities() domain.PublishCapability {
	return domain.PublishCapText | domain.PublishCapImage | domain.PublishCapVideo | domain.PublishCapCarousel
}

// PublishText shares a text-only post.
func (p *Publisher) PublishText(ctx context.Context, target driven.PublishTarget, req domain.PublishRequest) (*domain.PublishResult, error) {
	return p.share(ctx, target, req, "NONE", nil)
}

// PublishMedia uploads one image or video and shares it.
func (p *Publisher) PublishMedia(
	ctx context.Context, target driven.PublishTarget, req domain.PublishRequest, media domain.Media,
) (*domain.PublishResult, error) {
	asset, err := p.upload(ctx, target, media)
	if err != nil {
		return nil, err
	}
	category := "IMAGE"
	if media.Kind == domain.MediaVideo {
		category = "VIDEO"
	}
	return p.share(ctx, target, req, category, []string{asset})
}

// PublishCarousel uploads images in order and shares them in one post.
func (p *Publisher) PublishCarousel(
	ctx context.Context, target driven.PublishTarget, req domain.PublishRequest, items []domain.Media,
) (*domain.PublishResult, error) {
	if len(items) > MaxCarouselItems {
		return nil, domain.NewPlatformError(domain.KindInvalidInput, domain.PlatformLinkedIn, "publish carousel",
			fmt.Sprintf("at most %d images can be shared in one post", MaxCarouselItems), nil)
	}
	for i, item := range items {
		if item.Kind != domain.MediaImage {
			pe := domain.NewPlatformError(domain.KindMediaKindMismatch, domain.PlatformLinkedIn, "publish carousel",
				"LinkedIn multi-image posts accept images only", nil)
			pe.Index = i
			return nil, pe
		}
	}
	assets, err := flow.CreateItems(ctx, domain.PlatformLinkedIn, items,
		func(ctx context.Context, _ int, media domain.Media) (string, error) {
			return p.upload(ctx, target, media)
		})
	if err != nil {
		return nil, err
	}
	return p.share(ctx, target, req, "IMAGE", assets)
}

type registerUploadResponse struct {
	Value struct {
		Asset           string `json:"asset"`
		UploadMechanism map[string]struct {
			UploadURL string `json:"uploadUrl"`
		} `json:"uploadMechanism"`
	} `json:"value"`
}

// upload registers an asset and streams the media bytes to it.
func (p *Publisher) upload(ctx context.Context, target driven.PublishTarget, media domain.Media) (string, error) {
	recipe := imageRecipe
	if media.Kind == domain.MediaVideo {
		recipe = videoRecipe
	}
	body := map[string]any{
		"registerUploadRequest": map[string]any{
			"recipes": []string{recipe},
			"owner":   target.ExternalAccountID,
			"serviceRelationships": []map[string]string{
				{"relationshipType": "OWNER", "identifier": "urn:li:userGeneratedContent"},
			},
		},
	}
	var reg registerUploadResponse
	if _, err := p.client.Call(ctx, "register upload", apiclient.Request{
		Method: http.MethodPost,
		URL:    p.apiURL + "/v2/assets?action=registerUpload",
		JSON:   body,
		Bearer: target.AccessToken,
		Header: restliHeader(),
	}, &reg); err != nil {
		return "", err
	}
	uploadURL := reg.Value.UploadMechanism[uploadKey].UploadURL
	if uploadURL == "" || reg.Value.Asset == "" {
		return "", domain.NewPlatformError(domain.KindProviderUnavailable, domain.PlatformLinkedIn, "register upload",
			"upload registration returned no upload URL", nil)
	}

	m, err := p.client.FetchMedia(ctx, "download media", media.URL)
	if err != nil {
		return "", err
	}
	defer m.Body.Close()

	contentType := m.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	if _, err := p.client.Call(ctx, "upload media", apiclient.Request{
		Method:      http.MethodPut,
		URL:         uploadURL,
		Body:        io.NopCloser(m.Body),
		ContentType: contentType,
		Bearer:      target.AccessToken,
	}, nil); err != nil {
		return "", err
	}
	return reg.Value.Asset, nil
}

func (p *Publisher) share(
	ctx context.Context, target driven.PublishTarget, req domain.PublishRequest, category string, assets []string,
) (*domain.PublishResult, error) {
	content := map[string]any{
		"shareCommentary":    map[string]string{"text": req.Caption()},
		"shareMediaCategory": category,
	}
	if len(assets) > 0 {
		media := make([]map[string]any, 0, len(assets))
		for _, asset := range assets {
			entry := map[string]any{"status": "READY", "media": asset}
			if req.Title != "" {
				entry["title"] = map[string]string{"text": req.Title}
			}
			media = append(media, entry)
		}
		content["media"] = media
	}
	body := map[string]any{
		"author":          target.ExternalAccountID,
		"lifecycleState":  "PUBLISHED",
		"specificContent": map[string]any{"com.linkedin.ugc.ShareContent": content},
		"visibility":      map[string]string{"com.linkedin.ugc.MemberNetworkVisibility": "PUBLIC"},
	}

	var out struct {
		ID string `json:"id"`
	}
	header, err := p.client.Call(ctx, "create post", apiclient.Request{
		Method: http.MethodPost,
		URL:    p.apiURL + "/v2/ugcPosts",
		JSON:   body,
		Bearer: target.AccessToken,
		Header: restliHeader(),
	}, &out)
	if err != nil {
		return nil, err
	}
	postID := header.Get("X-RestLi-Id")
	if postID == "" {
		postID = out.ID
	}
	if postID == "" {
		return nil, domain.NewPlatformError(domain.KindProviderUnavailable, domain.PlatformLinkedIn, "create post",
			"provider returned no post id", nil)
	}
	return &domain.PublishResult{
		RemotePostID: postID,
		PermalinkURL: PostURL(postID),
		PublishedAt:  p.now(),
	}, nil
}

// PostURL is the public feed URL of a share URN.
func PostURL(urn string) string {
	return "https://www.linkedin.com/feed/update/" + strings.TrimSpace(urn) + "/"
}

func restliHeader() http.Header {
	h := http.Header{}
	h.Set("X-Restli-Protocol-Version", "2.0.0")
	return h
}
