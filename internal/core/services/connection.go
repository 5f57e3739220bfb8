package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/core/ports/driven"
	"github.com/custodia-labs/socialrelay/internal/core/ports/driving"
	"github.com/custodia-labs/socialrelay/internal/logger"
)

// Ensure ConnectionService implements the interface.
var _ driving.ConnectionService = (*ConnectionService)(nil)

// ConnectionService drives the OAuth connect flow and manages stored connections.
type ConnectionService struct {
	registry     driven.AdapterRegistry
	states       *StateService
	store        driven.ConnectionStore
	cipher       driven.TokenCipher
	events       driven.EventPublisher
	redirectBase string
	revoke       bool
	now          func() time.Time
}

// ConnectionServiceConfig holds ConnectionService settings.
type ConnectionServiceConfig struct {
	// RedirectBaseURL is the public base URL the provider redirects back to.
	RedirectBaseURL string
	// RevokeOnDisconnect asks the provider to revoke the token on disconnect.
	RevokeOnDisconnect bool
}

// NewConnectionService creates a connection service. events may be nil.
func NewConnectionService(
	registry driven.AdapterRegistry,
	states *StateService,
	store driven.ConnectionStore,
	cipher driven.TokenCipher,
	events driven.EventPublisher,
	cfg ConnectionServiceConfig,
) *ConnectionService {
	return &ConnectionService{
		registry:     registry,
		states:       states,
		store:        store,
		cipher:       cipher,
		events:       events,
		redirectBase: strings.TrimRight(cfg.RedirectBaseURL, "/"),
		revoke:       cfg.RevokeOnDisconnect,
		now:          time.Now,
	}
}

// RedirectURI returns the callback URL registered for a platform.
func (s *ConnectionService) RedirectURI(platform domain.Platform) string {
	return fmt.Sprintf("%s/connect/%s/callback", s.redirectBase, platform)
}

// BeginConnect issues a state and returns the provider authorization URL.
func (s *ConnectionService) BeginConnect(ctx context.Context, userID string, platform domain.Platform) (string, error) {
	adapter, err := s.registry.Auth(platform)
	if err != nil {
		return "", err
	}

	var verifier, challenge string
	if adapter.UsesPKCE() {
		verifier, err = generateCodeVerifier()
		if err != nil {
			return "", fmt.Errorf("generate code verifier: %w", err)
		}
		challenge = generateCodeChallenge(verifier)
	}

	state, err := s.states.Issue(ctx, userID, platform, verifier)
	if err != nil {
		return "", err
	}
	logger.Debug("issued oauth state for user %s on %s", userID, platform)
	return adapter.BuildAuthURL(state, s.RedirectURI(platform), challenge), nil
}

// CompleteConnect consumes the state, exchanges the code, fetches the account
// identity and upserts the connection. A linked secondary asset produces a
// second connection sharing the same encrypted credential.
func (s *ConnectionService) CompleteConnect(
	ctx context.Context, platform domain.Platform, params driving.CallbackParams,
) (*driving.ConnectResult, error) {
	st, err := s.states.Consume(ctx, params.State, platform)
	if err != nil {
		return nil, err
	}

	if params.Error != "" {
		msg := params.ErrorDescription
		if msg == "" {
			msg = params.Error
		}
		return nil, domain.NewPlatformError(domain.KindAuthDenied, platform, "authorize", msg, nil)
	}
	if params.Code == "" {
		return nil, fmt.Errorf("%w: missing authorization code", domain.ErrInvalidInput)
	}

	adapter, err := s.registry.Auth(platform)
	if err != nil {
		return nil, err
	}

	token, err := adapter.ExchangeCode(ctx, params.Code, s.RedirectURI(platform), st.CodeVerifier)
	if err != nil {
		return nil, err
	}
	identity, err := adapter.FetchIdentity(ctx, token.AccessToken)
	if err != nil {
		return nil, err
	}

	credential, expiry := token.AccessToken, token.Expiry
	if identity.PageAccessToken != "" {
		// Page tokens minted from a long-lived user token do not expire.
		credential, expiry = identity.PageAccessToken, time.Time{}
	}
	accessEnc, err := s.cipher.Encrypt(credential)
	if err != nil {
		return nil, fmt.Errorf("encrypt access token: %w", err)
	}
	var refreshEnc string
	if token.RefreshToken != "" {
		refreshEnc, err = s.cipher.Encrypt(token.RefreshToken)
		if err != nil {
			return nil, fmt.Errorf("encrypt refresh token: %w", err)
		}
	}

	now := s.now()
	primary := &domain.Connection{
		UserID:                st.UserID,
		Platform:              platform,
		ExternalAccountID:     identity.ExternalID,
		DisplayName:           identity.DisplayName,
		DisplayHandle:         identity.Handle,
		FollowerCount:         identity.FollowerCount,
		AccessTokenEncrypted:  accessEnc,
		RefreshTokenEncrypted: refreshEnc,
		TokenExpiresAt:        expiry,
		Metadata:              identity.Metadata,
		IsActive:              true,
		Status:                domain.ConnectionActive,
		ConnectedAt:           now,
		LastSyncAt:            &now,
	}
	if err := s.store.Upsert(ctx, primary); err != nil {
		return nil, fmt.Errorf("save %s connection: %w", platform, err)
	}
	result := &driving.ConnectResult{UserID: st.UserID, Primary: primary}
	s.emit(ctx, domain.EventConnectionConnected, primary)

	if asset := identity.Secondary; asset != nil {
		secondary := &domain.Connection{
			UserID:                st.UserID,
			Platform:              asset.Platform,
			ExternalAccountID:     asset.ExternalID,
			DisplayName:           asset.DisplayName,
			DisplayHandle:         asset.Handle,
			FollowerCount:         asset.FollowerCount,
			AccessTokenEncrypted:  accessEnc,
			RefreshTokenEncrypted: refreshEnc,
			TokenExpiresAt:        expiry,
			Metadata:              map[string]string{"linked_from": primary.ID},
			IsActive:              true,
			Status:                domain.ConnectionActive,
			ConnectedAt:           now,
			LastSyncAt:            &now,
		}
		if err := s.store.Upsert(ctx, secondary); err != nil {
			return nil, fmt.Errorf("save linked %s connection: %w", asset.Platform, err)
		}
		result.Secondary = secondary
		s.emit(ctx, domain.EventConnectionConnected, secondary)
		logger.Info("linked %s account %s discovered through %s", asset.Platform, asset.ExternalID, platform)
	}

	return result, nil
}

// Disconnect deactivates a connection owned by the user.
func (s *ConnectionService) Disconnect(ctx context.Context, userID, connectionID string) error {
	if connectionID == "" {
		return fmt.Errorf("%w: connection id required", domain.ErrInvalidInput)
	}
	conn, err := s.store.Get(ctx, connectionID)
	if err != nil {
		return err
	}
	if conn.UserID != userID {
		return domain.ErrNotFound
	}
	return s.deactivate(ctx, conn)
}

// DisconnectPlatform deactivates every active connection for the platform.
func (s *ConnectionService) DisconnectPlatform(ctx context.Context, userID string, platform domain.Platform) (int, error) {
	conns, err := s.store.ListByUser(ctx, userID)
	if err != nil {
		return 0, err
	}
	count := 0
	for i := range conns {
		conn := &conns[i]
		if conn.Platform != platform || !conn.IsActive {
			continue
		}
		if err := s.deactivate(ctx, conn); err != nil {
			return count, err
		}
		count++
	}
	if count == 0 {
		return 0, domain.ErrNoConnection
	}
	return count, nil
}

func (s *ConnectionService) deactivate(ctx context.Context, conn *domain.Connection) error {
	if s.revoke && conn.IsActive {
		s.revokeRemote(ctx, conn)
	}
	if err := s.store.Deactivate(ctx, conn.ID, s.now()); err != nil {
		return fmt.Errorf("deactivate connection: %w", err)
	}
	s.emit(ctx, domain.EventConnectionDisconnected, conn)
	return nil
}

// revokeRemote is best-effort; failures are logged and never block disconnect.
func (s *ConnectionService) revokeRemote(ctx context.Context, conn *domain.Connection) {
	if s.cipher == nil {
		return
	}
	adapter, err := s.registry.Auth(conn.Platform)
	if err != nil {
		return
	}
	revoker, ok := adapter.(driven.Revoker)
	if !ok {
		return
	}
	token, err := s.cipher.Decrypt(conn.AccessTokenEncrypted)
	if err != nil {
		logger.Warn("skip revoke for connection %s: %v", conn.ID, err)
		return
	}
	if err := revoker.Revoke(ctx, token); err != nil {
		logger.Warn("revoke %s token for connection %s: %v", conn.Platform, conn.ID, err)
	}
}

// List returns the user's connections.
func (s *ConnectionService) List(ctx context.Context, userID string) ([]domain.Connection, error) {
	if userID == "" {
		return nil, fmt.Errorf("%w: user id required", domain.ErrInvalidInput)
	}
	return s.store.ListByUser(ctx, userID)
}

// PurgeInactive removes inactive duplicate rows for a platform.
func (s *ConnectionService) PurgeInactive(ctx context.Context, userID string, platform domain.Platform) (int64, error) {
	return s.store.PurgeInactiveDuplicates(ctx, userID, platform)
}

// RefreshExpiring refreshes tokens of active connections that expire within
// the given window and returns how many were refreshed.
func (s *ConnectionService) RefreshExpiring(ctx context.Context, within time.Duration) (int, error) {
	conns, err := s.store.ListExpiring(ctx, s.now().Add(within))
	if err != nil {
		return 0, fmt.Errorf("list expiring connections: %w", err)
	}

	refreshed := 0
	for i := range conns {
		if err := ctx.Err(); err != nil {
			return refreshed, err
		}
		conn := &conns[i]
		if err := s.refresh(ctx, conn); err != nil {
			if errors.Is(err, domain.ErrUnsupportedType) || errors.Is(err, domain.ErrNotConfigured) {
				continue
			}
			logger.Warn("refresh %s connection %s: %v", conn.Platform, conn.ID, err)
			if errors.Is(err, domain.ErrAuthDenied) || errors.Is(err, domain.ErrCredential) {
				if serr := s.store.SetStatus(ctx, conn.ID, domain.ConnectionError); serr != nil {
					logger.Warn("flag connection %s: %v", conn.ID, serr)
				}
			}
			continue
		}
		refreshed++
	}
	return refreshed, nil
}

func (s *ConnectionService) refresh(ctx context.Context, conn *domain.Connection) error {
	adapter, err := s.registry.Auth(conn.Platform)
	if err != nil {
		return err
	}
	refreshToken, err := s.cipher.Decrypt(conn.RefreshTokenEncrypted)
	if err != nil {
		return err
	}
	token, err := adapter.RefreshToken(ctx, refreshToken)
	if err != nil {
		return err
	}

	accessEnc, err := s.cipher.Encrypt(token.AccessToken)
	if err != nil {
		return fmt.Errorf("encrypt access token: %w", err)
	}
	conn.AccessTokenEncrypted = accessEnc
	if token.RefreshToken != "" && token.RefreshToken != refreshToken {
		refreshEnc, err := s.cipher.Encrypt(token.RefreshToken)
		if err != nil {
			return fmt.Errorf("encrypt refresh token: %w", err)
		}
		conn.RefreshTokenEncrypted = refreshEnc
	}
	conn.TokenExpiresAt = token.Expiry
	now := s.now()
	conn.LastSyncAt = &now
	return s.store.Upsert(ctx, conn)
}

func (s *ConnectionService) emit(ctx context.Context, eventType domain.EventType, conn *domain.Connection) {
	if s.events == nil {
		return
	}
	event := domain.Event{
		Type:         eventType,
		UserID:       conn.UserID,
		Platform:     conn.Platform,
		ConnectionID: conn.ID,
		Data: map[string]string{
			"external_account_id": conn.ExternalAccountID,
			"display_name":        conn.DisplayName,
		},
		OccurredAt: s.now(),
	}
	if err := s.events.Publish(ctx, event); err != nil {
		logger.Warn("publish %s event: %v", eventType, err)
	}
}
