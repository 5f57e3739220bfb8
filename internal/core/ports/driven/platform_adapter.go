package driven

import (
	"context"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
)

// AuthAdapter runs one platform's OAuth authorization-code flow.
type AuthAdapter interface {
	// Platform returns the platform this adapter serves.
	Platform() domain.Platform

	// UsesPKCE reports whether the flow needs a code verifier.
	UsesPKCE() bool

	// BuildAuthURL constructs the provider authorization URL.
	// codeChallenge is empty for non-PKCE flows.
	BuildAuthURL(state, redirectURI, codeChallenge string) string

	// ExchangeCode exchanges an authorization code for a durable token,
	// including any mandatory long-lived token exchange.
	ExchangeCode(ctx context.Context, code, redirectURI, codeVerifier string) (*domain.OAuthToken, error)

	// FetchIdentity returns the account the token can post as.
	// Two-tier providers return domain.ErrNoPostableAsset when no asset exists.
	FetchIdentity(ctx context.Context, accessToken string) (*domain.AccountIdentity, error)

	// RefreshToken obtains a new token. Returns domain.ErrUnsupportedType
	// when the platform has no refresh grant.
	RefreshToken(ctx context.Context, refreshToken string) (*domain.OAuthToken, error)
}

// Revoker is implemented by auth adapters that can revoke a token remotely.
type Revoker interface {
	Revoke(ctx context.Context, accessToken string) error
}

// PublishTarget is the decrypted account a publish runs against.
type PublishTarget struct {
	ConnectionID      string
	ExternalAccountID string
	AccessToken       string
	Metadata          map[string]string
}

// PublishAdapter turns a normalized PublishRequest into a platform's native
// publish sequence.
type PublishAdapter interface {
	// Platform returns the platform this adapter serves.
	Platform() domain.Platform

	// Capabilities reports the publish shapes the platform supports.
	Capabilities() domain.PublishCapability

	// PublishText publishes a post with no media.
	PublishText(ctx context.Context, target PublishTarget, req domain.PublishRequest) (*domain.PublishResult, error)

	// PublishMedia publishes a post with a single media item.
	PublishMedia(
		ctx context.Context, target PublishTarget, req domain.PublishRequest, media domain.Media,
	) (*domain.PublishResult, error)

	// PublishCarousel publishes a multi-item post in the given order.
	PublishCarousel(
		ctx context.Context, target PublishTarget, req domain.PublishRequest, items []domain.Media,
	) (*domain.PublishResult, error)
}

// AdapterRegistry resolves the adapters for a platform.
type AdapterRegistry interface {
	// Auth returns the auth adapter, or domain.ErrNotConfigured /
	// domain.ErrUnsupportedType.
	Auth(platform domain.Platform) (AuthAdapter, error)

	// Publisher returns the publish adapter, or domain.ErrNotConfigured /
	// domain.ErrUnsupportedType.
	Publisher(platform domain.Platform) (PublishAdapter, error)

	// Configured lists platforms with client credentials.
	Configured() []domain.Platform
}
