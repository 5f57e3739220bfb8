package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/core/ports/driven"
)

// ==================== Connection Store ====================

// connectionStore implements driven.ConnectionStore.
type connectionStore struct {
	store *Store
}

var _ driven.ConnectionStore = (*connectionStore)(nil)

const connectionColumns = `id, user_id, platform, external_account_id, display_name, display_handle,
	follower_count, access_token_encrypted, refresh_token_encrypted, token_expires_at, metadata,
	is_active, status, connected_at, disconnected_at, last_sync_at, last_posted_at,
	created_at, updated_at`

// Upsert inserts or updates the row keyed by (user, platform, external account).
func (s *connectionStore) Upsert(ctx context.Context, conn *domain.Connection) error {
	metadataJSON, err := marshalMetadata(conn.Metadata)
	if err != nil {
		return err
	}

	now := s.store.now()
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

	var id, createdAt string
	var lastPosted sql.NullString
	err = s.store.db.QueryRowContext(ctx, `
		INSERT INTO connections (`+connectionColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(user_id, platform, external_account_id) DO UPDATE SET
			display_name = excluded.display_name,
			display_handle = excluded.display_handle,
			follower_count = excluded.follower_count,
			access_token_encrypted = excluded.access_token_encrypted,
			refresh_token_encrypted = excluded.refresh_token_encrypted,
			token_expires_at = excluded.token_expires_at,
			metadata = excluded.metadata,
			is_active = excluded.is_active,
			status = excluded.status,
			connected_at = excluded.connected_at,
			disconnected_at = excluded.disconnected_at,
			last_sync_at = excluded.last_sync_at,
			last_posted_at = COALESCE(excluded.last_posted_at, connections.last_posted_at),
			updated_at = excluded.updated_at
		RETURNING id, created_at, last_posted_at
	`,
		conn.ID, conn.UserID, string(conn.Platform), conn.ExternalAccountID,
		conn.DisplayName, conn.DisplayHandle, conn.FollowerCount,
		conn.AccessTokenEncrypted, conn.RefreshTokenEncrypted,
		nullZeroTime(conn.TokenExpiresAt), metadataJSON,
		conn.IsActive, string(conn.Status),
		formatTime(conn.ConnectedAt), nullTime(conn.DisconnectedAt),
		nullTime(conn.LastSyncAt), nullTime(conn.LastPostedAt),
		formatTime(conn.CreatedAt), formatTime(conn.UpdatedAt),
	).Scan(&id, &createdAt, &lastPosted)
	if err != nil {
		return fmt.Errorf("upserting connection: %w", err)
	}

	conn.ID = id
	if conn.CreatedAt, err = parseTime(createdAt); err != nil {
		return err
	}
	if conn.LastPostedAt, err = parseNullTime(lastPosted); err != nil {
		return err
	}
	return nil
}

// Get retrieves a connection by ID.
func (s *connectionStore) Get(ctx context.Context, id string) (*domain.Connection, error) {
	row := s.store.db.QueryRowContext(ctx,
		`SELECT `+connectionColumns+` FROM connections WHERE id = ?`, id)
	conn, err := scanConnection(row)
	if isNoRows(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// FindActive returns the most recently connected active connection, or nil.
func (s *connectionStore) FindActive(
	ctx context.Context, userID string, platform domain.Platform,
) (*domain.Connection, error) {
	row := s.store.db.QueryRowContext(ctx, `
		SELECT `+connectionColumns+` FROM connections
		WHERE user_id = ? AND platform = ? AND is_active = 1
		ORDER BY connected_at DESC
		LIMIT 1
	`, userID, string(platform))
	conn, err := scanConnection(row)
	if isNoRows(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return conn, nil
}

// ListByUser returns all connections for a user, newest first.
func (s *connectionStore) ListByUser(ctx context.Context, userID string) ([]domain.Connection, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+connectionColumns+` FROM connections
		WHERE user_id = ?
		ORDER BY connected_at DESC
	`, userID)
	if err != nil {
		return nil, fmt.Errorf("querying connections: %w", err)
	}
	return collectConnections(rows)
}

// Deactivate soft-deletes a connection.
func (s *connectionStore) Deactivate(ctx context.Context, id string, at time.Time) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE connections
		SET is_active = 0, status = ?, disconnected_at = ?, updated_at = ?
		WHERE id = ?
	`, string(domain.ConnectionRevoked), formatTime(at), formatTime(s.store.now()), id)
	if err != nil {
		return fmt.Errorf("deactivating connection: %w", err)
	}
	return requireAffected(res)
}

// PurgeInactiveDuplicates removes inactive rows for the user and platform.
func (s *connectionStore) PurgeInactiveDuplicates(
	ctx context.Context, userID string, platform domain.Platform,
) (int64, error) {
	res, err := s.store.db.ExecContext(ctx, `
		DELETE FROM connections
		WHERE user_id = ? AND platform = ? AND is_active = 0
	`, userID, string(platform))
	if err != nil {
		return 0, fmt.Errorf("purging connections: %w", err)
	}
	return res.RowsAffected()
}

// MarkPosted records a successful publish time.
func (s *connectionStore) MarkPosted(ctx context.Context, id string, at time.Time) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE connections SET last_posted_at = ?, updated_at = ? WHERE id = ?
	`, formatTime(at), formatTime(s.store.now()), id)
	if err != nil {
		return fmt.Errorf("marking connection posted: %w", err)
	}
	return requireAffected(res)
}

// SetStatus updates the connection status.
func (s *connectionStore) SetStatus(ctx context.Context, id string, status domain.ConnectionStatus) error {
	res, err := s.store.db.ExecContext(ctx, `
		UPDATE connections SET status = ?, updated_at = ? WHERE id = ?
	`, string(status), formatTime(s.store.now()), id)
	if err != nil {
		return fmt.Errorf("setting connection status: %w", err)
	}
	return requireAffected(res)
}

// ListExpiring returns refreshable active connections expiring before the given time.
func (s *connectionStore) ListExpiring(ctx context.Context, before time.Time) ([]domain.Connection, error) {
	rows, err := s.store.db.QueryContext(ctx, `
		SELECT `+connectionColumns+` FROM connections
		WHERE is_active = 1
		  AND refresh_token_encrypted != ''
		  AND token_expires_at IS NOT NULL
		  AND token_expires_at < ?
		ORDER BY token_expires_at
	`, formatTime(before))
	if err != nil {
		return nil, fmt.Errorf("querying expiring connections: %w", err)
	}
	return collectConnections(rows)
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanConnection(row rowScanner) (*domain.Connection, error) {
	var c domain.Connection
	var platform, status, metadataJSON, connectedAt, createdAt, updatedAt string
	var expiresAt, disconnectedAt, lastSyncAt, lastPostedAt sql.NullString

	if err := row.Scan(&c.ID, &c.UserID, &platform, &c.ExternalAccountID,
		&c.DisplayName, &c.DisplayHandle, &c.FollowerCount,
		&c.AccessTokenEncrypted, &c.RefreshTokenEncrypted, &expiresAt, &metadataJSON,
		&c.IsActive, &status, &connectedAt, &disconnectedAt, &lastSyncAt, &lastPostedAt,
		&createdAt, &updatedAt); err != nil {
		if isNoRows(err) {
			return nil, err
		}
		return nil, fmt.Errorf("scanning connection: %w", err)
	}

	c.Platform = domain.Platform(platform)
	c.Status = domain.ConnectionStatus(status)

	if metadataJSON != "" && metadataJSON != "{}" {
		if err := json.Unmarshal([]byte(metadataJSON), &c.Metadata); err != nil {
			return nil, fmt.Errorf("unmarshalling metadata: %w", err)
		}
	}

	var err error
	if expiry, perr := parseNullTime(expiresAt); perr != nil {
		return nil, perr
	} else if expiry != nil {
		c.TokenExpiresAt = *expiry
	}
	if c.ConnectedAt, err = parseTime(connectedAt); err != nil {
		return nil, err
	}
	if c.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if c.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}
	if c.DisconnectedAt, err = parseNullTime(disconnectedAt); err != nil {
		return nil, err
	}
	if c.LastSyncAt, err = parseNullTime(lastSyncAt); err != nil {
		return nil, err
	}
	if c.LastPostedAt, err = parseNullTime(lastPostedAt); err != nil {
		return nil, err
	}
	return &c, nil
}

func collectConnections(rows *sql.Rows) ([]domain.Connection, error) {
	defer rows.Close()

	result := make([]domain.Connection, 0)
	for rows.Next() {
		conn, err := scanConnection(rows)
		if err != nil {
			return nil, err
		}
		result = append(result, *conn)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating connections: %w", err)
	}
	return result, nil
}

func marshalMetadata(m map[string]string) (string, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(m)
	if err != nil {
		return "", fmt.Errorf("marshalling metadata: %w", err)
	}
	return string(b), nil
}

func requireAffected(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}
