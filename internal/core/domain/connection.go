package domain

import "time"

// ConnectionStatus is the lifecycle status of a Connection.
type ConnectionStatus string

const (
	// ConnectionActive means the stored credential is usable.
	ConnectionActive ConnectionStatus = "active"
	// ConnectionRevoked means the user disconnected the account.
	ConnectionRevoked ConnectionStatus = "revoked"
	// ConnectionError means the stored credential could not be used and the
	// user must reconnect.
	ConnectionError ConnectionStatus = "error"
)

// Connection links one application user to one authenticated external
// platform account.
//
// At most one active row exists per (UserID, Platform, ExternalAccountID).
// Token fields hold TokenCipher output and are never plaintext.
type Connection struct {
	// ID is the unique identifier (UUID).
	ID string `json:"id"`
	// UserID is the owning application user.
	UserID string `json:"user_id"`
	// Platform is the external platform.
	Platform Platform `json:"platform"`

	// ExternalAccountID is the platform's id for the account, page or channel.
	ExternalAccountID string `json:"external_account_id"`
	// DisplayName is the account's human-readable name.
	DisplayName string `json:"display_name,omitempty"`
	// DisplayHandle is the account's handle (e.g. "@brand").
	DisplayHandle string `json:"display_handle,omitempty"`
	// FollowerCount is the audience size reported at connect time.
	FollowerCount int64 `json:"follower_count"`

	// AccessTokenEncrypted is the encrypted access token (page token for
	// two-tier providers).
	AccessTokenEncrypted string `json:"-"`
	// RefreshTokenEncrypted is the encrypted refresh token, empty if none.
	RefreshTokenEncrypted string `json:"-"`
	// TokenExpiresAt is when the access token expires. Zero means unknown
	// or non-expiring.
	TokenExpiresAt time.Time `json:"token_expires_at,omitempty"`

	// Metadata holds platform-specific extras (e.g. wordpress blog id).
	Metadata map[string]string `json:"metadata,omitempty"`

	IsActive       bool             `json:"is_active"`
	Status         ConnectionStatus `json:"connection_status"`
	ConnectedAt    time.Time        `json:"connected_at"`
	DisconnectedAt *time.Time       `json:"disconnected_at,omitempty"`
	LastSyncAt     *time.Time       `json:"last_sync_at,omitempty"`
	LastPostedAt   *time.Time       `json:"last_posted_at,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// IsUsable reports whether the connection may be used for publishing.
func (c *Connection) IsUsable() bool {
	return c.IsActive && c.Status == ConnectionActive
}

// HasRefreshToken reports whether a refresh token is stored.
func (c *Connection) HasRefreshToken() bool {
	return c.RefreshTokenEncrypted != ""
}

// ExpiresWithin reports whether the token expires before now+d.
// Tokens without a known expiry never expire.
func (c *Connection) ExpiresWithin(now time.Time, d time.Duration) bool {
	if c.TokenExpiresAt.IsZero() {
		return false
	}
	return c.TokenExpiresAt.Before(now.Add(d))
}
