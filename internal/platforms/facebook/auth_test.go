package facebook

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
)

const pagesWithInstagram = `{"data":[{
	"id":"page-1","name":"Acme Page","access_token":"page-token","fan_count":1200,
	"instagram_business_account":{"id":"ig-1","username":"acme","name":"Acme","followers_count":3400}
}]}`

func newGraphServer(t *testing.T, pagesBody string) (*httptest.Server, *[]string) {
	t.Helper()
	var exchanges []string
	mux := http.NewServeMux()
	mux.HandleFunc("/oauth/access_token", func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "app-id", q.Get("client_id"))
		assert.Equal(t, "app-secret", q.Get("client_secret"))
		if q.Get("grant_type") == "fb_exchange_token" {
			exchanges = append(exchanges, "long:"+q.Get("fb_exchange_token"))
			_, _ = w.Write([]byte(`{"access_token":"long-token","token_type":"bearer","expires_in":5183944}`))
			return
		}
		exchanges = append(exchanges, "short:"+q.Get("code"))
		if q.Get("code") == "bad" {
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":{"message":"This authorization code has been used.","type":"OAuthException","code":100}}`))
			return
		}
		_, _ = w.Write([]byte(`{"access_token":"short-token","token_type":"bearer","expires_in":3600}`))
	})
	mux.HandleFunc("/me/accounts", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer long-token", r.Header.Get("Authorization"))
		assert.Contains(t, r.URL.Query().Get("fields"), "instagram_business_account")
		_, _ = w.Write([]byte(pagesBody))
	})
	mux.HandleFunc("/me/permissions", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodDelete, r.Method)
		exchanges = append(exchanges, "revoke")
		_, _ = w.Write([]byte(`{"success":true}`))
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server, &exchanges
}

func testConfig(server *httptest.Server) Config {
	return Config{ClientID: "app-id", ClientSecret: "app-secret", GraphURL: server.URL}
}

func TestAuth_BuildAuthURL(t *testing.T) {
	a := NewAuth(Config{ClientID: "app-id", ClientSecret: "app-secret"})
	raw := a.BuildAuthURL("state-1", "https://app.example.com/connect/facebook/callback", "")

	u, err := url.Parse(raw)
	require.NoError(t, err)
	assert.Equal(t, "www.facebook.com", u.Host)
	assert.Equal(t, "state-1", u.Query().Get("state"))
	assert.Equal(t, "app-id", u.Query().Get("client_id"))
	assert.Contains(t, u.Query().Get("scope"), "pages_manage_posts,")
	assert.False(t, a.UsesPKCE())
}

func TestAuth_ExchangeCode_RunsLongLivedExchange(t *testing.T) {
	server, calls := newGraphServer(t, pagesWithInstagram)
	a := NewAuth(testConfig(server))

	tok, err := a.ExchangeCode(context.Background(), "code-1", "https://app.example.com/cb", "")
	require.NoError(t, err)

	assert.Equal(t, []string{"short:code-1", "long:short-token"}, *calls)
	assert.Equal(t, "long-token", tok.AccessToken)
	assert.Empty(t, tok.RefreshToken)
	assert.True(t, tok.Expiry.After(time.Now().Add(50*24*time.Hour)))
}

func TestAuth_ExchangeCode_ProviderError(t *testing.T) {
	server, calls := newGraphServer(t, pagesWithInstagram)
	a := NewAuth(testConfig(server))

	_, err := a.ExchangeCode(context.Background(), "bad", "https://app.example.com/cb", "")
	require.Error(t, err)
	assert.Equal(t, domain.KindProviderRejected, domain.KindOf(err))
	assert.Equal(t, "This authorization code has been used.", domain.ProviderMessage(err))
	assert.Equal(t, []string{"short:bad"}, *calls)
}

func TestAuth_FetchIdentity_PageWithLinkedInstagram(t *testing.T) {
	server, _ := newGraphServer(t, pagesWithInstagram)
	a := NewAuth(testConfig(server))

	id, err := a.FetchIdentity(context.Background(), "long-token")
	require.NoError(t, err)

	assert.Equal(t, "page-1", id.ExternalID)
	assert.Equal(t, "Acme Page", id.DisplayName)
	assert.Equal(t, int64(1200), id.FollowerCount)
	assert.Equal(t, "page-token", id.PageAccessToken)
	require.NotNil(t, id.Secondary)
	assert.Equal(t, domain.PlatformInstagram, id.Secondary.Platform)
	assert.Equal(t, "ig-1", id.Secondary.ExternalID)
	assert.Equal(t, "acme", id.Secondary.Handle)
	assert.Equal(t, int64(3400), id.Secondary.FollowerCount)
}

func TestAuth_FetchIdentity_NoPage(t *testing.T) {
	server, _ := newGraphServer(t, `{"data":[]}`)

	_, err := NewAuth(testConfig(server)).FetchIdentity(context.Background(), "long-token")
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrNoPostableAsset)
	assert.Equal(t, NoPageMessage, domain.ProviderMessage(err))
}

func TestAuth_FetchIdentity_SkipsPagesWithoutToken(t *testing.T) {
	body := `{"data":[
		{"id":"page-0","name":"No Token"},
		{"id":"page-1","name":"Acme Page","access_token":"page-token","fan_count":5}
	]}`
	server, _ := newGraphServer(t, body)

	id, err := NewAuth(testConfig(server)).FetchIdentity(context.Background(), "long-token")
	require.NoError(t, err)
	assert.Equal(t, "page-1", id.ExternalID)
	assert.Equal(t, "page-token", id.PageAccessToken)
}

func TestAuth_FetchIdentity_NoPageToken(t *testing.T) {
	server, _ := newGraphServer(t, `{"data":[{"id":"p1","name":"Acme"}]}`)

	id, err := NewAuth(testConfig(server)).FetchIdentity(context.Background(), "long-token")
	assert.Nil(t, id)
	assert.Equal(t, domain.KindNoPostableAsset, domain.KindOf(err))
	assert.Equal(t, NoPageMessage, domain.ProviderMessage(err))
}

func TestInstagramAuth_FetchIdentity_NoPageToken(t *testing.T) {
	body := `{"data":[{"id":"page-1","name":"Acme",
		"instagram_business_account":{"id":"ig-1","username":"acme"}}]}`
	server, _ := newGraphServer(t, body)

	_, err := NewInstagramAuth(testConfig(server)).FetchIdentity(context.Background(), "long-token")
	assert.ErrorIs(t, err, domain.ErrNoPostableAsset)
	assert.Equal(t, NoInstagramMessage, domain.ProviderMessage(err))
}

func TestInstagramAuth_FetchIdentity(t *testing.T) {
	body := `{"data":[
		{"id":"page-0","name":"No IG","access_token":"tok-0"},
		{"id":"page-1","name":"Acme Page","access_token":"page-token",
		 "instagram_business_account":{"id":"ig-1","username":"acme","followers_count":10}}
	]}`
	server, _ := newGraphServer(t, body)
	a := NewInstagramAuth(testConfig(server))
	assert.Equal(t, domain.PlatformInstagram, a.Platform())

	id, err := a.FetchIdentity(context.Background(), "long-token")
	require.NoError(t, err)
	assert.Equal(t, "ig-1", id.ExternalID)
	assert.Equal(t, "acme", id.DisplayName)
	assert.Equal(t, "page-token", id.PageAccessToken)
	assert.Equal(t, "page-1", id.Metadata["page_id"])
	assert.Nil(t, id.Secondary)
}

func TestInstagramAuth_FetchIdentity_NoLinkedAccount(t *testing.T) {
	server, _ := newGraphServer(t, `{"data":[{"id":"page-1","name":"Acme","access_token":"t"}]}`)

	_, err := NewInstagramAuth(testConfig(server)).FetchIdentity(context.Background(), "long-token")
	assert.ErrorIs(t, err, domain.ErrNoPostableAsset)
	assert.Equal(t, NoInstagramMessage, domain.ProviderMessage(err))
}

func TestAuth_RefreshAndRevoke(t *testing.T) {
	server, calls := newGraphServer(t, pagesWithInstagram)
	a := NewAuth(testConfig(server))

	_, err := a.RefreshToken(context.Background(), "")
	assert.ErrorIs(t, err, domain.ErrUnsupportedType)

	tok, err := a.RefreshToken(context.Background(), "old-long")
	require.NoError(t, err)
	assert.Equal(t, "long-token", tok.AccessToken)

	require.NoError(t, a.Revoke(context.Background(), "page-token"))
	assert.Equal(t, []string{"long:old-long", "revoke"}, *calls)
}
