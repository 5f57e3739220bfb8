package services

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/core/ports/driven"
	"github.com/custodia-labs/socialrelay/internal/core/ports/driving"
	"github.com/custodia-labs/socialrelay/internal/logger"
)

// Ensure PublishOrchestrator implements the interface.
var _ driving.PublishService = (*PublishOrchestrator)(nil)

// PublishOrchestrator resolves a user's connection, decrypts its credential
// and drives the platform's publish adapter. It never retries.
type PublishOrchestrator struct {
	registry    driven.AdapterRegistry
	connections driven.ConnectionStore
	content     driven.ContentStore
	cipher      driven.TokenCipher
	guard       *MediaGuard
	events      driven.EventPublisher
	now         func() time.Time
}

// NewPublishOrchestrator creates an orchestrator. content and events may be nil.
func NewPublishOrchestrator(
	registry driven.AdapterRegistry,
	connections driven.ConnectionStore,
	content driven.ContentStore,
	cipher driven.TokenCipher,
	guard *MediaGuard,
	events driven.EventPublisher,
) *PublishOrchestrator {
	if guard == nil {
		guard = NewMediaGuard(false, nil)
	}
	return &PublishOrchestrator{
		registry:    registry,
		connections: connections,
		content:     content,
		cipher:      cipher,
		guard:       guard,
		events:      events,
		now:         time.Now,
	}
}

// Publish runs one publish attempt. On failure the returned result carries
// the ErrorKind and the provider's message, and the content record is left
// untouched.
func (o *PublishOrchestrator) Publish(
	ctx context.Context, userID string, req domain.PublishRequest,
) (*domain.PublishResult, error) {
	result, conn, err := o.publish(ctx, userID, req)
	if err != nil {
		failed := &domain.PublishResult{
			ErrorKind: domain.KindOf(err),
			Message:   domain.ProviderMessage(err),
		}
		o.emit(ctx, domain.EventPostFailed, userID, req, conn, map[string]string{
			"error_kind": string(failed.ErrorKind),
			"error":      failed.Message,
		})
		return failed, err
	}

	o.record(ctx, req, conn, result)
	o.emit(ctx, domain.EventPostPublished, userID, req, conn, map[string]string{
		"post_id": result.RemotePostID,
		"url":     result.PermalinkURL,
	})
	return result, nil
}

func (o *PublishOrchestrator) publish(
	ctx context.Context, userID string, req domain.PublishRequest,
) (*domain.PublishResult, *domain.Connection, error) {
	if userID == "" {
		return nil, nil, fmt.Errorf("%w: user id required", domain.ErrInvalidInput)
	}
	if !req.Platform.IsValid() {
		return nil, nil, fmt.Errorf("%w: unknown platform %q", domain.ErrInvalidInput, req.Platform)
	}

	conn, err := o.resolveConnection(ctx, userID, req)
	if err != nil {
		return nil, nil, err
	}

	token, err := o.decrypt(ctx, conn)
	if err != nil {
		return nil, conn, err
	}

	adapter, err := o.registry.Publisher(req.Platform)
	if err != nil {
		return nil, conn, err
	}

	for i, u := range req.MediaURLs {
		if err := o.guard.Validate(ctx, u); err != nil {
			return nil, conn, &domain.PlatformError{
				Kind:     domain.KindMediaUnreachable,
				Platform: req.Platform,
				Step:     "validate media",
				Message:  err.Error(),
				Index:    i,
				Err:      err,
			}
		}
	}
	items, err := ResolveMedia(req)
	if err != nil {
		return nil, conn, err
	}

	target := driven.PublishTarget{
		ConnectionID:      conn.ID,
		ExternalAccountID: conn.ExternalAccountID,
		AccessToken:       token,
		Metadata:          conn.Metadata,
	}

	result, err := o.dispatch(ctx, adapter, target, req, items)
	if err != nil {
		return nil, conn, err
	}
	if result.PublishedAt.IsZero() {
		result.PublishedAt = o.now()
	}
	return result, conn, nil
}

func (o *PublishOrchestrator) resolveConnection(
	ctx context.Context, userID string, req domain.PublishRequest,
) (*domain.Connection, error) {
	var conn *domain.Connection
	if req.ConnectionID != "" {
		c, err := o.connections.Get(ctx, req.ConnectionID)
		switch {
		case errors.Is(err, domain.ErrNotFound):
			return nil, domain.ErrNoConnection
		case err != nil:
			return nil, fmt.Errorf("load connection: %w", err)
		}
		if c.UserID != userID || c.Platform != req.Platform || !c.IsActive {
			return nil, domain.ErrNoConnection
		}
		conn = c
	} else {
		c, err := o.connections.FindActive(ctx, userID, req.Platform)
		if err != nil {
			return nil, fmt.Errorf("find connection: %w", err)
		}
		if c == nil {
			return nil, domain.ErrNoConnection
		}
		conn = c
	}

	if conn.Status == domain.ConnectionError {
		return nil, &domain.CredentialError{ConnectionID: conn.ID, Op: "load", Err: errors.New("reconnect required")}
	}
	return conn, nil
}

// decrypt never falls back to the stored value; a failure flags the
// connection so the user is asked to reconnect.
func (o *PublishOrchestrator) decrypt(ctx context.Context, conn *domain.Connection) (string, error) {
	token, err := o.cipher.Decrypt(conn.AccessTokenEncrypted)
	if err == nil {
		return token, nil
	}
	if serr := o.connections.SetStatus(ctx, conn.ID, domain.ConnectionError); serr != nil {
		logger.Warn("flag connection %s: %v", conn.ID, serr)
	}
	return "", &domain.CredentialError{ConnectionID: conn.ID, Op: "decrypt", Err: err}
}

func (o *PublishOrchestrator) dispatch(
	ctx context.Context,
	adapter driven.PublishAdapter,
	target driven.PublishTarget,
	req domain.PublishRequest,
	items []domain.Media,
) (*domain.PublishResult, error) {
	caps := adapter.Capabilities()

	switch {
	case len(items) == 0:
		if !caps.SupportsText() {
			return nil, fmt.Errorf("%w: %s requires media", domain.ErrUnsupportedType, req.Platform)
		}
		logger.Debug("publishing text post to %s", req.Platform)
		return adapter.PublishText(ctx, target, req)

	case len(items) > 1:
		if !caps.SupportsCarousel() {
			return nil, fmt.Errorf("%w: %s does not support multi-item posts", domain.ErrUnsupportedType, req.Platform)
		}
		logger.Debug("publishing %d item carousel to %s", len(items), req.Platform)
		return adapter.PublishCarousel(ctx, target, req, items)

	default:
		media := items[0]
		if !caps.SupportsKind(media.Kind) {
			return nil, &domain.PlatformError{
				Kind:     domain.KindMediaKindMismatch,
				Platform: req.Platform,
				Step:     "dispatch",
				Message:  fmt.Sprintf("%s does not accept %s posts", req.Platform.DisplayName(), media.Kind),
				Index:    -1,
			}
		}
		logger.Debug("publishing single %s to %s", media.Kind, req.Platform)
		return adapter.PublishMedia(ctx, target, req, media)
	}
}

// record persists the outcome. The remote post already exists, so storage
// failures are logged rather than reported as a failed publish.
func (o *PublishOrchestrator) record(
	ctx context.Context, req domain.PublishRequest, conn *domain.Connection, result *domain.PublishResult,
) {
	if o.content != nil && req.ContentID != "" {
		if err := o.content.MarkPublished(ctx, req.ContentID, *result); err != nil {
			logger.Error("record publish on content %s: %v", req.ContentID, err)
		}
	}
	if err := o.connections.MarkPosted(ctx, conn.ID, result.PublishedAt); err != nil {
		logger.Warn("update last_posted_at on connection %s: %v", conn.ID, err)
	}
}

func (o *PublishOrchestrator) emit(
	ctx context.Context,
	eventType domain.EventType,
	userID string,
	req domain.PublishRequest,
	conn *domain.Connection,
	data map[string]string,
) {
	if o.events == nil {
		return
	}
	if req.ContentID != "" {
		data["content_id"] = req.ContentID
	}
	event := domain.Event{
		Type:       eventType,
		UserID:     userID,
		Platform:   req.Platform,
		Data:       data,
		OccurredAt: o.now(),
	}
	if conn != nil {
		event.ConnectionID = conn.ID
	}
	if err := o.events.Publish(ctx, event); err != nil {
		logger.Warn("publish %s event: %v", eventType, err)
	}
}
