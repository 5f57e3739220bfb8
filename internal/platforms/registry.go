// Package platforms builds the per-platform auth and publish adapters from
// configuration and serves them through a registry.
package platforms

import (
	"fmt"
	"net/http"
	"sort"
	"sync"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/core/ports/driven"
	"github.com/custodia-labs/socialrelay/internal/platforms/facebook"
	"github.com/custodia-labs/socialrelay/internal/platforms/flow"
	"github.com/custodia-labs/socialrelay/internal/platforms/google"
	"github.com/custodia-labs/socialrelay/internal/platforms/instagram"
	"github.com/custodia-labs/socialrelay/internal/platforms/linkedin"
	"github.com/custodia-labs/socialrelay/internal/platforms/twitter"
	"github.com/custodia-labs/socialrelay/internal/platforms/wordpress"
	"github.com/custodia-labs/socialrelay/internal/platforms/youtube"
)

// Credentials are one platform's OAuth client settings.
type Credentials struct {
	ClientID     string
	ClientSecret string
	Scopes       []string
}

// Configured reports whether both client id and secret are set.
func (c Credentials) Configured() bool {
	return c.ClientID != "" && c.ClientSecret != ""
}

// Config selects and configures the adapters.
type Config struct {
	Credentials map[domain.Platform]Credentials
	Poll        flow.PollConfig
	// YouTubePrivacy is the privacy status of uploaded videos.
	YouTubePrivacy string
	// HTTPClient, if set, is shared by every adapter.
	HTTPClient *http.Client
}

// Registry resolves adapters by platform.
type Registry struct {
	mu         sync.RWMutex
	auth       map[domain.Platform]driven.AuthAdapter
	publishers map[domain.Platform]driven.PublishAdapter
}

// Ensure Registry implements the interface.
var _ driven.AdapterRegistry = (*Registry)(nil)

// NewEmptyRegistry creates a registry with no adapters.
func NewEmptyRegistry() *Registry {
	return &Registry{
		auth:       make(map[domain.Platform]driven.AuthAdapter),
		publishers: make(map[domain.Platform]driven.PublishAdapter),
	}
}

// NewRegistry registers an adapter pair for every platform with credentials.
// Instagram falls back to the Facebook app credentials, since both use
// Facebook Login.
func NewRegistry(cfg Config) *Registry {
	r := NewEmptyRegistry()
	creds := func(p domain.Platform) (Credentials, bool) {
		c := cfg.Credentials[p]
		return c, c.Configured()
	}

	if c, ok := creds(domain.PlatformFacebook); ok {
		fb := facebook.Config{ClientID: c.ClientID, ClientSecret: c.ClientSecret, Scopes: c.Scopes, HTTPClient: cfg.HTTPClient}
		r.Register(facebook.NewAuth(fb), facebook.NewPublisher(fb))
	}
	igCreds, ok := creds(domain.PlatformInstagram)
	if !ok {
		igCreds, ok = creds(domain.PlatformFacebook)
	}
	if ok {
		ig := facebook.Config{ClientID: igCreds.ClientID, ClientSecret: igCreds.ClientSecret, Scopes: igCreds.Scopes, HTTPClient: cfg.HTTPClient}
		r.Register(instagram.NewAuth(ig), instagram.NewPublisher(ig, cfg.Poll))
	}
	if c, ok := creds(domain.PlatformLinkedIn); ok {
		li := linkedin.Config{ClientID: c.ClientID, ClientSecret: c.ClientSecret, Scopes: c.Scopes, HTTPClient: cfg.HTTPClient}
		r.Register(linkedin.NewAuth(li), linkedin.NewPublisher(li))
	}
	if c, ok := creds(domain.PlatformTwitter); ok {
		tw := twitter.Config{ClientID: c.ClientID, ClientSecret: c.ClientSecret, Scopes: c.Scopes, HTTPClient: cfg.HTTPClient}
		r.Register(twitter.NewAuth(tw), twitter.NewPublisher(tw))
	}
	if c, ok := creds(domain.PlatformYouTube); ok {
		yt := youtube.Config{
			Config:  google.Config{ClientID: c.ClientID, ClientSecret: c.ClientSecret, Scopes: c.Scopes, HTTPClient: cfg.HTTPClient},
			Privacy: cfg.YouTubePrivacy,
		}
		r.Register(youtube.NewAuth(yt), youtube.NewPublisher(yt))
	}
	if c, ok := creds(domain.PlatformWordPress); ok {
		wp := wordpress.Config{ClientID: c.ClientID, ClientSecret: c.ClientSecret, Scopes: c.Scopes, HTTPClient: cfg.HTTPClient}
		r.Register(wordpress.NewAuth(wp), wordpress.NewPublisher(wp))
	}
	if c, ok := creds(domain.PlatformGoogle); ok {
		g := google.Config{ClientID: c.ClientID, ClientSecret: c.ClientSecret, Scopes: c.Scopes, HTTPClient: cfg.HTTPClient}
		r.Register(google.NewAuth(g), nil)
	}
	return r
}

// Register adds an auth adapter and optional publisher for its platform.
func (r *Registry) Register(auth driven.AuthAdapter, publisher driven.PublishAdapter) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.auth[auth.Platform()] = auth
	if publisher != nil {
		r.publishers[publisher.Platform()] = publisher
	}
}

// Auth returns the auth adapter for a platform.
func (r *Registry) Auth(platform domain.Platform) (driven.AuthAdapter, error) {
	if !platform.IsValid() {
		return nil, fmt.Errorf("platform %q: %w", platform, domain.ErrInvalidInput)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	a, ok := r.auth[platform]
	if !ok {
		return nil, fmt.Errorf("%s: %w", platform.DisplayName(), domain.ErrNotConfigured)
	}
	return a, nil
}

// Publisher returns the publish adapter for a platform. Configured
// platforms without a publisher (Google sign-in) are unsupported.
func (r *Registry) Publisher(platform domain.Platform) (driven.PublishAdapter, error) {
	if !platform.IsValid() {
		return nil, fmt.Errorf("platform %q: %w", platform, domain.ErrInvalidInput)
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.publishers[platform]; ok {
		return p, nil
	}
	if _, ok := r.auth[platform]; ok {
		return nil, fmt.Errorf("%s: publishing: %w", platform.DisplayName(), domain.ErrUnsupportedType)
	}
	return nil, fmt.Errorf("%s: %w", platform.DisplayName(), domain.ErrNotConfigured)
}

// Configured lists the platforms with an auth adapter, sorted.
func (r *Registry) Configured() []domain.Platform {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]domain.Platform, 0, len(r.auth))
	for p := range r.auth {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
