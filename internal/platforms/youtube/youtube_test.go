package youtube

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/core/ports/driven"
	"github.com/custodia-labs/socialrelay/internal/platforms/google"
)

func newFakeYouTube(t *testing.T, channels string) (*httptest.Server, *string) {
	t.Helper()
	var uploaded string
	mux := http.NewServeMux()
	mux.HandleFunc("/youtube/v3/channels", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer yt-token", r.Header.Get("Authorization"))
		assert.Equal(t, "true", r.URL.Query().Get("mine"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(channels))
	})
	mux.HandleFunc("/upload/youtube/v3/videos", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer yt-token", r.Header.Get("Authorization"))
		assert.NotEmpty(t, r.URL.Query().Get("uploadType"))
		body, _ := io.ReadAll(r.Body)
		uploaded = string(body)
		w.Header().Set("Content-Type", "application/json")
		if strings.Contains(uploaded, "forbidden-video") {
			w.WriteHeader(http.StatusForbidden)
			_, _ = w.Write([]byte(`{"error":{"code":403,"message":"The request cannot be completed because you have exceeded your quota.","errors":[{"reason":"quotaExceeded","message":"quota"}]}}`))
			return
		}
		_, _ = w.Write([]byte(`{"id":"vid-1"}`))
	})
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		t.Errorf("unexpected request path %s", r.URL.Path)
		http.NotFound(w, r)
	})
	mux.HandleFunc("/media/", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "video/mp4")
		_, _ = w.Write([]byte(strings.TrimPrefix(r.URL.Path, "/media/")))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &uploaded
}

func testConfig(server *httptest.Server) Config {
	return Config{Config: google.Config{ClientID: "id", ClientSecret: "secret"}, APIURL: server.URL}
}

func TestAuth_FetchIdentity(t *testing.T) {
	server, _ := newFakeYouTube(t, `{"items":[{"id":"UC123","snippet":{"title":"Acme TV","customUrl":"@acmetv"},"statistics":{"subscriberCount":"5000"}}]}`)

	id, err := NewAuth(testConfig(server)).FetchIdentity(context.Background(), "yt-token")
	require.NoError(t, err)
	assert.Equal(t, "UC123", id.ExternalID)
	assert.Equal(t, "Acme TV", id.DisplayName)
	assert.Equal(t, "@acmetv", id.Handle)
	assert.Equal(t, int64(5000), id.FollowerCount)
}

func TestAuth_FetchIdentity_NoChannel(t *testing.T) {
	server, _ := newFakeYouTube(t, `{"items":[]}`)

	_, err := NewAuth(testConfig(server)).FetchIdentity(context.Background(), "yt-token")
	assert.ErrorIs(t, err, domain.ErrNoPostableAsset)
	assert.Equal(t, NoChannelMessage, domain.ProviderMessage(err))
}

func TestAuth_AuthURLRequestsOfflineConsent(t *testing.T) {
	a := NewAuth(Config{Config: google.Config{ClientID: "id", ClientSecret: "secret"}})
	raw := a.BuildAuthURL("st", "https://app.example.com/cb", "")
	assert.Contains(t, raw, "accounts.google.com")
	assert.Contains(t, raw, "access_type=offline")
	assert.Contains(t, raw, "prompt=consent")
	assert.Contains(t, raw, "youtube.upload")
}

func TestPublisher_UploadsVideo(t *testing.T) {
	server, uploaded := newFakeYouTube(t, `{}`)
	p := NewPublisher(testConfig(server))

	res, err := p.PublishMedia(context.Background(), driven.PublishTarget{AccessToken: "yt-token"},
		domain.PublishRequest{Title: "Launch day", Text: "We shipped", Hashtags: []string{"go"}},
		domain.Media{URL: server.URL + "/media/video-bytes", Kind: domain.MediaVideo})
	require.NoError(t, err)

	assert.Equal(t, "vid-1", res.RemotePostID)
	assert.Equal(t, "https://www.youtube.com/watch?v=vid-1", res.PermalinkURL)
	assert.Contains(t, *uploaded, "video-bytes")
	assert.Contains(t, *uploaded, `"title":"Launch day"`)
}

func TestPublisher_QuotaIsUnavailable(t *testing.T) {
	server, _ := newFakeYouTube(t, `{}`)
	p := NewPublisher(testConfig(server))

	_, err := p.PublishMedia(context.Background(), driven.PublishTarget{AccessToken: "yt-token"},
		domain.PublishRequest{Title: "x"},
		domain.Media{URL: server.URL + "/media/forbidden-video", Kind: domain.MediaVideo})
	require.Error(t, err)
	assert.Equal(t, domain.KindProviderUnavailable, domain.KindOf(err))
	assert.Contains(t, domain.ProviderMessage(err), "exceeded your quota")
}

func TestPublisher_RejectsImagesAndText(t *testing.T) {
	p := NewPublisher(Config{})
	assert.Equal(t, domain.PublishCapVideo, p.Capabilities())

	_, err := p.PublishMedia(context.Background(), driven.PublishTarget{}, domain.PublishRequest{},
		domain.Media{URL: "https://cdn.example.com/a.jpg", Kind: domain.MediaImage})
	assert.ErrorIs(t, err, domain.ErrMediaKindMismatch)

	_, err = p.PublishText(context.Background(), driven.PublishTarget{}, domain.PublishRequest{Text: "hi"})
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)
}

func TestVideoTitle(t *testing.T) {
	assert.Equal(t, "First line", videoTitle(domain.PublishRequest{Text: "First line\nsecond"}))
	assert.Equal(t, "Untitled", videoTitle(domain.PublishRequest{}))
	assert.Len(t, []rune(videoTitle(domain.PublishRequest{Title: strings.Repeat("é", 150)})), 100)
}
