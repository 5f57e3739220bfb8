package postgres

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
)

// metadataColumn maps connection metadata onto a JSONB column.
type metadataColumn map[string]string

func (m metadataColumn) Value() (driver.Value, error) {
	if len(m) == 0 {
		return "{}", nil
	}
	b, err := json.Marshal(map[string]string(m))
	if err != nil {
		return nil, fmt.Errorf("marshalling metadata: %w", err)
	}
	return string(b), nil
}

func (m *metadataColumn) Scan(src any) error {
	var raw []byte
	switch v := src.(type) {
	case nil:
		*m = nil
		return nil
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("unsupported metadata type %T", src)
	}
	var out map[string]string
	if err := json.Unmarshal(raw, &out); err != nil {
		return fmt.Errorf("unmarshalling metadata: %w", err)
	}
	if len(out) == 0 {
		out = nil
	}
	*m = out
	return nil
}

type connectionModel struct {
	ID                    string         `gorm:"column:id;type:uuid;primaryKey"`
	UserID                string         `gorm:"column:user_id"`
	Platform              string         `gorm:"column:platform"`
	ExternalAccountID     string         `gorm:"column:external_account_id"`
	DisplayName           string         `gorm:"column:display_name"`
	DisplayHandle         string         `gorm:"column:display_handle"`
	FollowerCount         int64          `gorm:"column:follower_count"`
	AccessTokenEncrypted  string         `gorm:"column:access_token_encrypted"`
	RefreshTokenEncrypted string         `gorm:"column:refresh_token_encrypted"`
	TokenExpiresAt        *time.Time     `gorm:"column:token_expires_at"`
	Metadata              metadataColumn `gorm:"column:metadata;type:jsonb"`
	IsActive              bool           `gorm:"column:is_active"`
	Status                string         `gorm:"column:status"`
	ConnectedAt           time.Time      `gorm:"column:connected_at"`
	DisconnectedAt        *time.Time     `gorm:"column:disconnected_at"`
	LastSyncAt            *time.Time     `gorm:"column:last_sync_at"`
	LastPostedAt          *time.Time     `gorm:"column:last_posted_at"`
	CreatedAt             time.Time      `gorm:"column:created_at"`
	UpdatedAt             time.Time      `gorm:"column:updated_at"`
}

func (connectionModel) TableName() string { return "connections" }

type oauthStateModel struct {
	State        string    `gorm:"column:state;primaryKey"`
	UserID       string    `gorm:"column:user_id"`
	Platform     string    `gorm:"column:platform"`
	CodeVerifier string    `gorm:"column:pkce_code_verifier"`
	CreatedAt    time.Time `gorm:"column:created_at"`
	ExpiresAt    time.Time `gorm:"column:expires_at"`
}

func (oauthStateModel) TableName() string { return "oauth_states" }

type contentModel struct {
	ID           string     `gorm:"column:id;primaryKey"`
	UserID       string     `gorm:"column:user_id"`
	Platform     string     `gorm:"column:platform"`
	Status       string     `gorm:"column:status"`
	RemotePostID string     `gorm:"column:remote_post_id"`
	PermalinkURL string     `gorm:"column:permalink_url"`
	PublishedAt  *time.Time `gorm:"column:published_at"`
	UpdatedAt    time.Time  `gorm:"column:updated_at"`
}

func (contentModel) TableName() string { return "content" }

func fromDomainConnection(c *domain.Connection) connectionModel {
	var expires *time.Time
	if !c.TokenExpiresAt.IsZero() {
		t := c.TokenExpiresAt.UTC()
		expires = &t
	}
	return connectionModel{
		ID:                    c.ID,
		UserID:                c.UserID,
		Platform:              string(c.Platform),
		ExternalAccountID:     c.ExternalAccountID,
		DisplayName:           c.DisplayName,
		DisplayHandle:         c.DisplayHandle,
		FollowerCount:         c.FollowerCount,
		AccessTokenEncrypted:  c.AccessTokenEncrypted,
		RefreshTokenEncrypted: c.RefreshTokenEncrypted,
		TokenExpiresAt:        expires,
		Metadata:              metadataColumn(c.Metadata),
		IsActive:              c.IsActive,
		Status:                string(c.Status),
		ConnectedAt:           c.ConnectedAt,
		DisconnectedAt:        c.DisconnectedAt,
		LastSyncAt:            c.LastSyncAt,
		LastPostedAt:          c.LastPostedAt,
		CreatedAt:             c.CreatedAt,
		UpdatedAt:             c.UpdatedAt,
	}
}

func toDomainConnection(row connectionModel) domain.Connection {
	c := domain.Connection{
		ID:                    row.ID,
		UserID:                row.UserID,
		Platform:              domain.Platform(row.Platform),
		ExternalAccountID:     row.ExternalAccountID,
		DisplayName:           row.DisplayName,
		DisplayHandle:         row.DisplayHandle,
		FollowerCount:         row.FollowerCount,
		AccessTokenEncrypted:  row.AccessTokenEncrypted,
		RefreshTokenEncrypted: row.RefreshTokenEncrypted,
		IsActive:              row.IsActive,
		Status:                domain.ConnectionStatus(row.Status),
		ConnectedAt:           row.ConnectedAt,
		DisconnectedAt:        row.DisconnectedAt,
		LastSyncAt:            row.LastSyncAt,
		LastPostedAt:          row.LastPostedAt,
		CreatedAt:             row.CreatedAt,
		UpdatedAt:             row.UpdatedAt,
	}
	if row.TokenExpiresAt != nil {
		c.TokenExpiresAt = *row.TokenExpiresAt
	}
	if len(row.Metadata) > 0 {
		c.Metadata = map[string]string(row.Metadata)
	}
	return c
}

func fromDomainState(s domain.OAuthState) oauthStateModel {
	return oauthStateModel{
		State:        s.State,
		UserID:       s.UserID,
		Platform:     string(s.Platform),
		CodeVerifier: s.CodeVerifier,
		CreatedAt:    s.CreatedAt,
		ExpiresAt:    s.ExpiresAt,
	}
}

func toDomainState(row oauthStateModel) domain.OAuthState {
	return domain.OAuthState{
		State:        row.State,
		UserID:       row.UserID,
		Platform:     domain.Platform(row.Platform),
		CodeVerifier: row.CodeVerifier,
		CreatedAt:    row.CreatedAt,
		ExpiresAt:    row.ExpiresAt,
	}
}

func fromDomainContent(r domain.ContentRecord) contentModel {
	return contentModel{
		ID:           r.ID,
		UserID:       r.UserID,
		Platform:     string(r.Platform),
		Status:       string(r.Status),
		RemotePostID: r.RemotePostID,
		PermalinkURL: r.PermalinkURL,
		PublishedAt:  r.PublishedAt,
		UpdatedAt:    r.UpdatedAt,
	}
}

func toDomainContent(row contentModel) domain.ContentRecord {
	return domain.ContentRecord{
		ID:           row.ID,
		UserID:       row.UserID,
		Platform:     domain.Platform(row.Platform),
		Status:       domain.ContentStatus(row.Status),
		RemotePostID: row.RemotePostID,
		PermalinkURL: row.PermalinkURL,
		PublishedAt:  row.PublishedAt,
		UpdatedAt:    row.UpdatedAt,
	}
}
