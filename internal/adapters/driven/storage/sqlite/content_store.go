package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/core/ports/driven"
)

// ==================== Content Store ====================

// contentStore implements driven.ContentStore.
type contentStore struct {
	store *Store
}

var _ driven.ContentStore = (*contentStore)(nil)

// Save stores or updates a content record.
func (s *contentStore) Save(ctx context.Context, record domain.ContentRecord) error {
	if record.UpdatedAt.IsZero() {
		record.UpdatedAt = s.store.now()
	}
	if record.Status == "" {
		record.Status = domain.ContentDraft
	}
	_, err := s.store.db.ExecContext(ctx, `
		INSERT INTO content (id, user_id, platform, status, remote_post_id, permalink_url, published_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			user_id = excluded.user_id,
			platform = excluded.platform,
			status = excluded.status,
			remote_post_id = excluded.remote_post_id,
			permalink_url = excluded.permalink_url,
			published_at = excluded.published_at,
			updated_at = excluded.updated_at
	`, record.ID, record.UserID, string(record.Platform), string(record.Status),
		record.RemotePostID, record.PermalinkURL, nullTime(record.PublishedAt),
		formatTime(record.UpdatedAt))
	if err != nil {
		return fmt.Errorf("saving content: %w", err)
	}
	return nil
}

// Get retrieves a content record by ID.
func (s *contentStore) Get(ctx context.Context, id string) (*domain.ContentRecord, error) {
	var rec domain.ContentRecord
	var platform, status, updatedAt string
	var publishedAt sql.NullString
	err := s.store.db.QueryRowContext(ctx, `
		SELECT id, user_id, platform, status, remote_post_id, permalink_url, published_at, updated_at
		FROM content WHERE id = ?
	`, id).Scan(&rec.ID, &rec.UserID, &platform, &status,
		&rec.RemotePostID, &rec.PermalinkURL, &publishedAt, &updatedAt)
	if isNoRows(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning content: %w", err)
	}

	rec.Platform = domain.Platform(platform)
	rec.Status = domain.ContentStatus(status)
	if rec.PublishedAt, err = parseNullTime(publishedAt); err != nil {
		return nil, err
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	return &rec, nil
}

// MarkPublished records the remote post and sets the status to published.
func (s *contentStore) MarkPublished(ctx context.Context, id string, result domain.PublishResult) error {
	publishedAt := result.PublishedAt
	if publishedAt.IsZero() {
		publishedAt = s.store.now()
	}
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE content
		SET status = ?, remote_post_id = ?, permalink_url = ?, published_at = ?, updated_at = ?
		WHERE id = ?
	`, string(domain.ContentPublished), result.RemotePostID, result.PermalinkURL,
		formatTime(publishedAt), formatTime(s.store.now()), id)
	if err != nil {
		return fmt.Errorf("marking content published: %w", err)
	}
	return requireAffected(res)
}
