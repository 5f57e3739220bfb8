package domain

import "time"

// OAuthToken is a token bundle returned by a provider's token endpoint.
type OAuthToken struct {
	// AccessToken is the bearer token for API access.
	AccessToken string `json:"access_token"`
	// RefreshToken is used to obtain new access tokens.
	RefreshToken string `json:"refresh_token,omitempty"`
	// TokenType is typically "Bearer".
	TokenType string `json:"token_type"`
	// ExpiresIn is the lifetime in seconds as reported by the provider.
	ExpiresIn int `json:"expires_in,omitempty"`
	// Expiry is when the access token expires.
	Expiry time.Time `json:"expiry,omitempty"`
	// Extra carries provider-specific token response fields.
	Extra map[string]string `json:"extra,omitempty"`
}

// IsExpired returns true if the token has expired.
func (t *OAuthToken) IsExpired() bool {
	if t.Expiry.IsZero() {
		return false
	}
	return time.Now().After(t.Expiry)
}

// OAuthState correlates an authorization redirect with its callback.
type OAuthState struct {
	// State is the opaque lookup key (without any verifier decoration).
	State    string   `json:"state"`
	UserID   string   `json:"user_id"`
	Platform Platform `json:"platform"`
	// CodeVerifier is the PKCE verifier, empty for non-PKCE flows.
	CodeVerifier string    `json:"pkce_code_verifier,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
	ExpiresAt    time.Time `json:"expires_at"`
}

// IsExpired reports whether the state is past its TTL at now.
func (s *OAuthState) IsExpired(now time.Time) bool {
	return !now.Before(s.ExpiresAt)
}

// AccountIdentity is the platform account an access token can post as.
type AccountIdentity struct {
	ExternalID    string
	DisplayName   string
	Handle        string
	FollowerCount int64
	// PageAccessToken is the asset-scoped token for two-tier providers.
	// When set it replaces the user token as the stored credential.
	PageAccessToken string
	// Metadata holds platform-specific values persisted on the connection.
	Metadata map[string]string
	// Secondary is a linked asset discovered during the identity fetch that
	// gets its own Connection sharing the same credential.
	Secondary *LinkedAsset
}

// LinkedAsset is a secondary account reachable with the primary credential.
type LinkedAsset struct {
	Platform      Platform
	ExternalID    string
	DisplayName   string
	Handle        string
	FollowerCount int64
}
