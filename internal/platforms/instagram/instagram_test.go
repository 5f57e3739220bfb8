package instagram

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/core/ports/driven"
	"github.com/custodia-labs/socialrelay/internal/platforms/apiclient"
	"github.com/custodia-labs/socialrelay/internal/platforms/facebook"
	"github.com/custodia-labs/socialrelay/internal/platforms/flow"
)

// fakeGraph simulates the container endpoints for account ig-1.
type fakeGraph struct {
	mu         sync.Mutex
	log        []string
	forms      []map[string]string
	containerN int
	failItem   int
	statuses   []string
	permalink  bool
}

func newFakeGraph(t *testing.T) (*fakeGraph, *httptest.Server) {
	g := &fakeGraph{failItem: -1, permalink: true}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		g.mu.Lock()
		defer g.mu.Unlock()
		assert.Equal(t, "Bearer page-token", r.Header.Get("Authorization"))

		switch {
		case r.Method == http.MethodPost && r.URL.Path == "/ig-1/media":
			assert.NoError(t, r.ParseForm())
			form := map[string]string{}
			for k := range r.PostForm {
				form[k] = r.PostForm.Get(k)
			}
			g.forms = append(g.forms, form)
			if form["is_carousel_item"] == "true" {
				idx := len(g.forms) - 1
				g.log = append(g.log, "item")
				if idx == g.failItem {
					w.WriteHeader(http.StatusBadRequest)
					_, _ = w.Write([]byte(`{"error":{"message":"The image format is not supported.","type":"OAuthException","code":9004}}`))
					return
				}
			} else {
				g.log = append(g.log, "container:"+form["media_type"])
			}
			g.containerN++
			_, _ = fmt.Fprintf(w, `{"id":"cont-%d"}`, g.containerN)
		case r.Method == http.MethodPost && r.URL.Path == "/ig-1/media_publish":
			assert.NoError(t, r.ParseForm())
			g.log = append(g.log, "publish:"+r.PostForm.Get("creation_id"))
			_, _ = w.Write([]byte(`{"id":"media-1"}`))
		case r.Method == http.MethodGet && r.URL.Path == "/media-1":
			if !g.permalink {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			_, _ = w.Write([]byte(`{"permalink":"https://www.instagram.com/p/ABC123/"}`))
		case r.Method == http.MethodGet && strings.HasPrefix(r.URL.Path, "/cont-"):
			assert.Equal(t, "status_code,status", r.URL.Query().Get("fields"))
			g.log = append(g.log, "status")
			status := "IN_PROGRESS"
			if len(g.statuses) > 0 {
				status = g.statuses[0]
				g.statuses = g.statuses[1:]
			}
			_, _ = fmt.Fprintf(w, `{"status_code":%q,"status":"%s: details"}`, status, status)
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	t.Cleanup(server.Close)
	return g, server
}

var target = driven.PublishTarget{ExternalAccountID: "ig-1", AccessToken: "page-token"}

func newTestPublisher(server *httptest.Server) *Publisher {
	p := NewPublisher(facebook.Config{GraphURL: server.URL},
		flow.PollConfig{Interval: time.Millisecond, Ceiling: 30 * time.Millisecond})
	p.client = apiclient.New(domain.PlatformInstagram, apiclient.WithRateLimiter(
		apiclient.NewRateLimiterWithConfig(apiclient.RateLimitConfig{RequestsPerSecond: 1000, BurstSize: 1000})))
	return p
}

func images(n int) []domain.Media {
	items := make([]domain.Media, n)
	for i := range items {
		items[i] = domain.Media{URL: fmt.Sprintf("https://cdn.example.com/%d.jpg", i), Kind: domain.MediaImage}
	}
	return items
}

func TestPublisher_Capabilities(t *testing.T) {
	p := NewPublisher(facebook.Config{}, flow.DefaultPollConfig())
	caps := p.Capabilities()
	assert.False(t, caps.SupportsText())
	assert.True(t, caps.SupportsCarousel())
	assert.True(t, caps.SupportsKind(domain.MediaVideo))

	_, err := p.PublishText(context.Background(), target, domain.PublishRequest{Text: "hi"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestPublisher_Carousel(t *testing.T) {
	g, server := newFakeGraph(t)

	res, err := newTestPublisher(server).PublishCarousel(context.Background(), target,
		domain.PublishRequest{Text: "Three", Hashtags: []string{"a"}}, images(3))
	require.NoError(t, err)

	assert.Equal(t, []string{"item", "item", "item", "container:CAROUSEL", "publish:cont-4"}, g.log)
	assert.Equal(t, "https://cdn.example.com/0.jpg", g.forms[0]["image_url"])
	assert.Equal(t, "https://cdn.example.com/2.jpg", g.forms[2]["image_url"])
	assert.Equal(t, "cont-1,cont-2,cont-3", g.forms[3]["children"])
	assert.Equal(t, "Three\n\n#a", g.forms[3]["caption"])

	assert.Equal(t, "media-1", res.RemotePostID)
	assert.Equal(t, "https://www.instagram.com/p/ABC123/", res.PermalinkURL)
}

func TestPublisher_CarouselItemFailure(t *testing.T) {
	g, server := newFakeGraph(t)
	g.failItem = 1

	_, err := newTestPublisher(server).PublishCarousel(context.Background(), target, domain.PublishRequest{}, images(3))
	require.Error(t, err)

	assert.Equal(t, []string{"item", "item"}, g.log)
	var pe *domain.PlatformError
	require.ErrorAs(t, err, &pe)
	assert.Equal(t, domain.KindPartialCarouselFailure, pe.Kind)
	assert.Equal(t, 1, pe.Index)
	assert.Contains(t, err.Error(), "The image format is not supported.")
}

func TestPublisher_CarouselTooLarge(t *testing.T) {
	_, server := newFakeGraph(t)
	_, err := newTestPublisher(server).PublishCarousel(context.Background(), target, domain.PublishRequest{}, images(11))
	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestPublisher_ImagePost(t *testing.T) {
	g, server := newFakeGraph(t)

	res, err := newTestPublisher(server).PublishMedia(context.Background(), target,
		domain.PublishRequest{Text: "One"}, images(1)[0])
	require.NoError(t, err)

	assert.Equal(t, []string{"container:", "publish:cont-1"}, g.log)
	assert.Equal(t, "One", g.forms[0]["caption"])
	assert.Equal(t, "media-1", res.RemotePostID)
}

func TestPublisher_ReelWaitsForProcessing(t *testing.T) {
	g, server := newFakeGraph(t)
	g.statuses = []string{"IN_PROGRESS", "IN_PROGRESS", "FINISHED"}

	_, err := newTestPublisher(server).PublishMedia(context.Background(), target,
		domain.PublishRequest{}, domain.Media{URL: "https://cdn.example.com/v.mp4", Kind: domain.MediaVideo})
	require.NoError(t, err)

	assert.Equal(t, []string{"container:REELS", "status", "status", "status", "publish:cont-1"}, g.log)
	assert.Equal(t, "https://cdn.example.com/v.mp4", g.forms[0]["video_url"])
}

func TestPublisher_ReelCeilingStillPublishes(t *testing.T) {
	g, server := newFakeGraph(t)

	_, err := newTestPublisher(server).PublishMedia(context.Background(), target,
		domain.PublishRequest{}, domain.Media{URL: "https://cdn.example.com/v.mp4", Kind: domain.MediaVideo})
	require.NoError(t, err)

	assert.Equal(t, "publish:cont-1", g.log[len(g.log)-1])
}

func TestPublisher_ReelProcessingError(t *testing.T) {
	g, server := newFakeGraph(t)
	g.statuses = []string{"ERROR"}

	_, err := newTestPublisher(server).PublishMedia(context.Background(), target,
		domain.PublishRequest{}, domain.Media{URL: "https://cdn.example.com/v.mp4", Kind: domain.MediaVideo})
	require.Error(t, err)
	assert.Equal(t, domain.KindProviderRejected, domain.KindOf(err))
	assert.Equal(t, "ERROR: details", domain.ProviderMessage(err))
	assert.NotContains(t, g.log, "publish:cont-1")
}

func TestPublisher_PermalinkFallback(t *testing.T) {
	g, server := newFakeGraph(t)
	g.permalink = false

	res, err := newTestPublisher(server).PublishMedia(context.Background(), target, domain.PublishRequest{}, images(1)[0])
	require.NoError(t, err)
	assert.Equal(t, "https://www.instagram.com/p/media-1/", res.PermalinkURL)
}
