package oauth

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/platforms/apiclient"
)

// DefaultTimeout bounds token endpoint calls like any other simple API call.
const DefaultTimeout = apiclient.DefaultTimeout

// Provider wraps an x/oauth2 config for one platform.
type Provider struct {
	platform domain.Platform
	config   oauth2.Config
	pkce     bool
	// authParams are extra authorization URL parameters (access_type, prompt...).
	authParams []oauth2.AuthCodeOption
	extraKeys  []string
	http       *http.Client
}

// ProviderOption configures a Provider.
type ProviderOption func(*Provider)

// WithPKCE enables the S256 PKCE flow.
func WithPKCE() ProviderOption {
	return func(p *Provider) { p.pkce = true }
}

// WithAuthParam adds a fixed authorization URL parameter.
func WithAuthParam(key, value string) ProviderOption {
	return func(p *Provider) {
		p.authParams = append(p.authParams, oauth2.SetAuthURLParam(key, value))
	}
}

// WithOfflineAccess requests a refresh token from Google-style providers.
func WithOfflineAccess() ProviderOption {
	return func(p *Provider) { p.authParams = append(p.authParams, oauth2.AccessTypeOffline) }
}

// WithExtraKeys copies the named token response fields into OAuthToken.Extra.
func WithExtraKeys(keys ...string) ProviderOption {
	return func(p *Provider) { p.extraKeys = append(p.extraKeys, keys...) }
}

// WithHTTPClient replaces the client used for token requests.
func WithHTTPClient(hc *http.Client) ProviderOption {
	return func(p *Provider) {
		if hc != nil {
			p.http = hc
		}
	}
}

// NewProvider creates a provider. The endpoint's AuthStyle decides whether
// client credentials travel in the header or the body.
func NewProvider(
	platform domain.Platform,
	clientID, clientSecret string,
	endpoint oauth2.Endpoint,
	scopes []string,
	opts ...ProviderOption,
) *Provider {
	p := &Provider{
		platform: platform,
		config: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     endpoint,
			Scopes:       scopes,
		},
		http: &http.Client{Timeout: DefaultTimeout},
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// Platform returns the provider's platform.
func (p *Provider) Platform() domain.Platform {
	return p.platform
}

// UsesPKCE reports whether the flow needs a code verifier.
func (p *Provider) UsesPKCE() bool {
	return p.pkce
}

// HTTPClient returns the client used for token requests.
func (p *Provider) HTTPClient() *http.Client {
	return p.http
}

// AuthCodeURL builds the authorization URL.
func (p *Provider) AuthCodeURL(state, redirectURI, codeChallenge string) string {
	cfg := p.withRedirect(redirectURI)
	opts := append([]oauth2.AuthCodeOption{}, p.authParams...)
	if p.pkce && codeChallenge != "" {
		opts = append(opts,
			oauth2.SetAuthURLParam("code_challenge", codeChallenge),
			oauth2.SetAuthURLParam("code_challenge_method", "S256"),
		)
	}
	return cfg.AuthCodeURL(state, opts...)
}

// Exchange trades an authorization code for a token.
func (p *Provider) Exchange(ctx context.Context, code, redirectURI, codeVerifier string) (*domain.OAuthToken, error) {
	cfg := p.withRedirect(redirectURI)
	var opts []oauth2.AuthCodeOption
	if p.pkce {
		if codeVerifier == "" {
			return nil, domain.NewPlatformError(domain.KindInvalidInput, p.platform, "exchange code",
				"missing PKCE code verifier", nil)
		}
		opts = append(opts, oauth2.VerifierOption(codeVerifier))
	}

	tok, err := cfg.Exchange(p.context(ctx), code, opts...)
	if err != nil {
		return nil, ClassifyTokenError(ctx, p.platform, "exchange code", err)
	}
	return FromOAuth2(tok, p.extraKeys...), nil
}

// Refresh obtains a new token from a refresh token.
func (p *Provider) Refresh(ctx context.Context, refreshToken string) (*domain.OAuthToken, error) {
	if refreshToken == "" {
		return nil, domain.NewPlatformError(domain.KindAuthDenied, p.platform, "refresh token",
			"no refresh token stored; reconnect the account", nil)
	}
	src := p.config.TokenSource(p.context(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := src.Token()
	if err != nil {
		return nil, ClassifyTokenError(ctx, p.platform, "refresh token", err)
	}
	out := FromOAuth2(tok, p.extraKeys...)
	if out.RefreshToken == "" {
		out.RefreshToken = refreshToken
	}
	return out, nil
}

func (p *Provider) withRedirect(redirectURI string) *oauth2.Config {
	cfg := p.config
	cfg.RedirectURL = redirectURI
	return &cfg
}

func (p *Provider) context(ctx context.Context) context.Context {
	return context.WithValue(ctx, oauth2.HTTPClient, p.http)
}

// ClassifyTokenError maps a token endpoint failure onto the domain kinds:
// OAuth error bodies are AuthDenied with the provider text verbatim, 5xx and
// transport failures are ProviderUnavailable.
func ClassifyTokenError(ctx context.Context, platform domain.Platform, step string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}
	var re *oauth2.RetrieveError
	if !errors.As(err, &re) {
		return domain.NewPlatformError(domain.KindProviderUnavailable, platform, step, "", err)
	}

	status := 0
	if re.Response != nil {
		status = re.Response.StatusCode
	}
	msg := re.ErrorDescription
	if msg == "" {
		msg = re.ErrorCode
	}
	if msg == "" {
		msg = strings.TrimSpace(string(re.Body))
		if len(msg) > 300 {
			msg = msg[:300]
		}
	}

	switch {
	case status == http.StatusTooManyRequests || status >= 500:
		return domain.NewPlatformError(domain.KindProviderUnavailable, platform, step, msg, err)
	case re.ErrorCode != "" || status == http.StatusUnauthorized || status == http.StatusForbidden:
		return domain.NewPlatformError(domain.KindAuthDenied, platform, step, msg, err)
	default:
		return domain.NewPlatformError(domain.KindProviderRejected, platform, step, msg, err)
	}
}
