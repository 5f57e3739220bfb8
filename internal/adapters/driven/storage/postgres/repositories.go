package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/core/ports/driven"
)

// upsertColumns are overwritten when a connection for the same account is
// stored again.
var upsertColumns = []string{
	"display_name", "display_handle", "follower_count",
	"access_token_encrypted", "refresh_token_encrypted", "token_expires_at",
	"metadata", "is_active", "status", "connected_at", "disconnected_at",
	"last_sync_at", "updated_at",
}

type connectionStore struct {
	store *Store
}

var _ driven.ConnectionStore = (*connectionStore)(nil)

func (r *connectionStore) Upsert(ctx context.Context, conn *domain.Connection) error {
	now := r.store.now().UTC()
	if conn.ID == "" {
		conn.ID = uuid.NewString()
	}
	if conn.CreatedAt.IsZero() {
		conn.CreatedAt = now
	}
	if conn.ConnectedAt.IsZero() {
		conn.ConnectedAt = now
	}
	conn.UpdatedAt = now

	rec := fromDomainConnection(conn)
	updates := clause.AssignmentColumns(upsertColumns)
	updates = append(updates, clause.Assignment{
		Column: clause.Column{Name: "last_posted_at"},
		Value:  gorm.Expr("COALESCE(EXCLUDED.last_posted_at, connections.last_posted_at)"),
	})

	err := r.store.db.WithContext(ctx).Clauses(
		clause.OnConflict{
			Columns: []clause.Column{
				{Name: "user_id"},
				{Name: "platform"},
				{Name: "external_account_id"},
			},
			DoUpdates: updates,
		},
		clause.Returning{},
	).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("upserting connection: %w", err)
	}

	stored := toDomainConnection(rec)
	conn.ID = stored.ID
	conn.CreatedAt = stored.CreatedAt
	conn.LastPostedAt = stored.LastPostedAt
	return nil
}

func (r *connectionStore) Get(ctx context.Context, id string) (*domain.Connection, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	var rec connectionModel
	if err := r.store.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("getting connection: %w", err)
	}
	conn := toDomainConnection(rec)
	return &conn, nil
}

func (r *connectionStore) FindActive(
	ctx context.Context, userID string, platform domain.Platform,
) (*domain.Connection, error) {
	var rec connectionModel
	err := r.store.db.WithContext(ctx).
		Where("user_id = ? AND platform = ? AND is_active", userID, string(platform)).
		Order("connected_at DESC").
		Take(&rec).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("finding active connection: %w", err)
	}
	conn := toDomainConnection(rec)
	return &conn, nil
}

func (r *connectionStore) ListByUser(ctx context.Context, userID string) ([]domain.Connection, error) {
	var rows []connectionModel
	err := r.store.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("connected_at DESC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing connections: %w", err)
	}
	return toDomainConnections(rows), nil
}

func (r *connectionStore) Deactivate(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, id, map[string]any{
		"is_active":       false,
		"status":          string(domain.ConnectionRevoked),
		"disconnected_at": at.UTC(),
	})
}

func (r *connectionStore) PurgeInactiveDuplicates(
	ctx context.Context, userID string, platform domain.Platform,
) (int64, error) {
	res := r.store.db.WithContext(ctx).
		Where("user_id = ? AND platform = ? AND NOT is_active", userID, string(platform)).
		Delete(&connectionModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("purging connections: %w", res.Error)
	}
	return res.RowsAffected, nil
}

func (r *connectionStore) MarkPosted(ctx context.Context, id string, at time.Time) error {
	return r.update(ctx, id, map[string]any{"last_posted_at": at.UTC()})
}

func (r *connectionStore) SetStatus(ctx context.Context, id string, status domain.ConnectionStatus) error {
	return r.update(ctx, id, map[string]any{"status": string(status)})
}

func (r *connectionStore) ListExpiring(ctx context.Context, before time.Time) ([]domain.Connection, error) {
	var rows []connectionModel
	err := r.store.db.WithContext(ctx).
		Where("is_active AND refresh_token_encrypted <> '' AND token_expires_at IS NOT NULL").
		Where("token_expires_at < ?", before.UTC()).
		Order("token_expires_at").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing expiring connections: %w", err)
	}
	return toDomainConnections(rows), nil
}

func (r *connectionStore) update(ctx context.Context, id string, values map[string]any) error {
	if _, err := uuid.Parse(id); err != nil {
		return domain.ErrNotFound
	}
	values["updated_at"] = r.store.now().UTC()
	res := r.store.db.WithContext(ctx).
		Model(&connectionModel{}).
		Where("id = ?", id).
		Updates(values)
	if res.Error != nil {
		return fmt.Errorf("updating connection: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func toDomainConnections(rows []connectionModel) []domain.Connection {
	result := make([]domain.Connection, 0, len(rows))
	for _, row := range rows {
		result = append(result, toDomainConnection(row))
	}
	return result
}

type stateStore struct {
	store *Store
}

var _ driven.OAuthStateStore = (*stateStore)(nil)

func (r *stateStore) Save(ctx context.Context, state domain.OAuthState) error {
	rec := fromDomainState(state)
	err := r.store.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "state"}},
		UpdateAll: true,
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("saving oauth state: %w", err)
	}
	return nil
}

func (r *stateStore) GetAndDelete(ctx context.Context, state string) (*domain.OAuthState, error) {
	var rows []oauthStateModel
	err := r.store.db.WithContext(ctx).
		Clauses(clause.Returning{}).
		Where("state = ?", state).
		Delete(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("consuming oauth state: %w", err)
	}
	if len(rows) == 0 {
		return nil, nil
	}
	st := toDomainState(rows[0])
	return &st, nil
}

func (r *stateStore) DeleteExpired(ctx context.Context, now time.Time) (int64, error) {
	res := r.store.db.WithContext(ctx).
		Where("expires_at <= ?", now.UTC()).
		Delete(&oauthStateModel{})
	if res.Error != nil {
		return 0, fmt.Errorf("deleting expired oauth states: %w", res.Error)
	}
	return res.RowsAffected, nil
}

type contentStore struct {
	store *Store
}

var _ driven.ContentStore = (*contentStore)(nil)

func (r *contentStore) Save(ctx context.Context, record domain.ContentRecord) error {
	if record.Status == "" {
		record.Status = domain.ContentDraft
	}
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = r.store.now().UTC()
	}
	rec := fromDomainContent(record)
	err := r.store.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "id"}},
		UpdateAll: true,
	}).Create(&rec).Error
	if err != nil {
		return fmt.Errorf("saving content: %w", err)
	}
	return nil
}

func (r *contentStore) Get(ctx context.Context, id string) (*domain.ContentRecord, error) {
	var rec contentModel
	if err := r.store.db.WithContext(ctx).Where("id = ?", id).Take(&rec).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("getting content: %w", err)
	}
	record := toDomainContent(rec)
	return &record, nil
}

func (r *contentStore) MarkPublished(ctx context.Context, id string, result domain.PublishResult) error {
	now := r.store.now().UTC()
	publishedAt := result.PublishedAt
	if publishedAt.IsZero() {
		publishedAt = now
	}
	res := r.store.db.WithContext(ctx).
		Model(&contentModel{}).
		Where("id = ?", id).
		Updates(map[string]any{
			"status":         string(domain.ContentPublished),
			"remote_post_id": result.RemotePostID,
			"permalink_url":  result.PermalinkURL,
			"published_at":   publishedAt.UTC(),
			"updated_at":     now,
		})
	if res.Error != nil {
		return fmt.Errorf("marking content published: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return domain.ErrNotFound
	}
	return nil
}
