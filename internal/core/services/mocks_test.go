package services

import (
	"context"
	"sync"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/core/ports/driven"
)

// mockRegistry is a mock implementation of driven.AdapterRegistry.
type mockRegistry struct {
	auth       map[domain.Platform]driven.AuthAdapter
	publishers map[domain.Platform]driven.PublishAdapter
}

func newMockRegistry() *mockRegistry {
	return &mockRegistry{
		auth:       make(map[domain.Platform]driven.AuthAdapter),
		publishers: make(map[domain.Platform]driven.PublishAdapter),
	}
}

func (r *mockRegistry) Auth(p domain.Platform) (driven.AuthAdapter, error) {
	a, ok := r.auth[p]
	if !ok {
		return nil, domain.ErrNotConfigured
	}
	return a, nil
}

func (r *mockRegistry) Publisher(p domain.Platform) (driven.PublishAdapter, error) {
	a, ok := r.publishers[p]
	if !ok {
		return nil, domain.ErrNotConfigured
	}
	return a, nil
}

func (r *mockRegistry) Configured() []domain.Platform {
	var out []domain.Platform
	for p := range r.auth {
		out = append(out, p)
	}
	return out
}

// mockAuthAdapter is a mock implementation of driven.AuthAdapter.
type mockAuthAdapter struct {
	platform     domain.Platform
	pkce         bool
	token        *domain.OAuthToken
	identity     *domain.AccountIdentity
	exchangeErr  error
	identityErr  error
	refreshed    *domain.OAuthToken
	refreshErr   error
	revokeErr    error
	gotCode      string
	gotVerifier  string
	gotRedirect  string
	gotChallenge string
	revoked      []string
}

func (m *mockAuthAdapter) Platform() domain.Platform { return m.platform }
func (m *mockAuthAdapter) UsesPKCE() bool            { return m.pkce }

func (m *mockAuthAdapter) BuildAuthURL(state, redirectURI, codeChallenge string) string {
	m.gotChallenge = codeChallenge
	return "https://auth.example/authorize?state=" + state + "&redirect_uri=" + redirectURI
}

func (m *mockAuthAdapter) ExchangeCode(
	_ context.Context, code, redirectURI, verifier string,
) (*domain.OAuthToken, error) {
	m.gotCode = code
	m.gotRedirect = redirectURI
	m.gotVerifier = verifier
	if m.exchangeErr != nil {
		return nil, m.exchangeErr
	}
	return m.token, nil
}

func (m *mockAuthAdapter) FetchIdentity(_ context.Context, _ string) (*domain.AccountIdentity, error) {
	if m.identityErr != nil {
		return nil, m.identityErr
	}
	return m.identity, nil
}

func (m *mockAuthAdapter) RefreshToken(_ context.Context, _ string) (*domain.OAuthToken, error) {
	if m.refreshErr != nil {
		return nil, m.refreshErr
	}
	if m.refreshed == nil {
		return nil, domain.ErrUnsupportedType
	}
	return m.refreshed, nil
}

func (m *mockAuthAdapter) Revoke(_ context.Context, token string) error {
	m.revoked = append(m.revoked, token)
	return m.revokeErr
}

// mockPublisher is a mock implementation of driven.PublishAdapter.
type mockPublisher struct {
	platform domain.Platform
	caps     domain.PublishCapability
	result   *domain.PublishResult
	err      error

	calls      []string
	target     driven.PublishTarget
	gotMedia   []domain.Media
	gotCaption string
}

func (m *mockPublisher) Platform() domain.Platform              { return m.platform }
func (m *mockPublisher) Capabilities() domain.PublishCapability { return m.caps }

func (m *mockPublisher) respond(call string, target driven.PublishTarget, req domain.PublishRequest, media []domain.Media) (*domain.PublishResult, error) {
	m.calls = append(m.calls, call)
	m.target = target
	m.gotMedia = media
	m.gotCaption = req.Caption()
	if m.err != nil {
		return nil, m.err
	}
	r := *m.result
	return &r, nil
}

func (m *mockPublisher) PublishText(
	_ context.Context, target driven.PublishTarget, req domain.PublishRequest,
) (*domain.PublishResult, error) {
	return m.respond("text", target, req, nil)
}

func (m *mockPublisher) PublishMedia(
	_ context.Context, target driven.PublishTarget, req domain.PublishRequest, media domain.Media,
) (*domain.PublishResult, error) {
	return m.respond("media", target, req, []domain.Media{media})
}

func (m *mockPublisher) PublishCarousel(
	_ context.Context, target driven.PublishTarget, req domain.PublishRequest, items []domain.Media,
) (*domain.PublishResult, error) {
	return m.respond("carousel", target, req, items)
}

// mockCipher prefixes values so tests can see what was stored.
type mockCipher struct{}

func (mockCipher) Encrypt(plaintext string) (string, error) { return "enc:" + plaintext, nil }

func (mockCipher) Decrypt(ciphertext string) (string, error) {
	if len(ciphertext) < 4 || ciphertext[:4] != "enc:" {
		return "", &domain.CredentialError{Op: "decrypt"}
	}
	return ciphertext[4:], nil
}

// mockEvents records published events.
type mockEvents struct {
	mu     sync.Mutex
	events []domain.Event
}

func (m *mockEvents) Publish(_ context.Context, e domain.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, e)
	return nil
}

func (m *mockEvents) Close() error { return nil }

func (m *mockEvents) types() []domain.EventType {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]domain.EventType, 0, len(m.events))
	for _, e := range m.events {
		out = append(out, e.Type)
	}
	return out
}
