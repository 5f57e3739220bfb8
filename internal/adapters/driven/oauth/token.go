// Package oauth holds the OAuth2 plumbing shared by the platform auth
// adapters: authorization URLs, code exchange, refresh and the mapping of
// provider token errors onto domain error kinds.
package oauth

import (
	"strconv"
	"time"

	"golang.org/x/oauth2"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
)

// TokenResponse is a token endpoint response for providers exchanged by hand
// (Facebook Graph uses GET and returns no refresh token).
type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int    `json:"expires_in"`
}

// Token converts the response, computing the expiry from now.
func (r *TokenResponse) Token(now time.Time) *domain.OAuthToken {
	tok := &domain.OAuthToken{
		AccessToken:  r.AccessToken,
		RefreshToken: r.RefreshToken,
		TokenType:    r.TokenType,
		ExpiresIn:    r.ExpiresIn,
	}
	if tok.TokenType == "" {
		tok.TokenType = "Bearer"
	}
	if r.ExpiresIn > 0 {
		tok.Expiry = now.Add(time.Duration(r.ExpiresIn) * time.Second)
	}
	return tok
}

// FromOAuth2 converts an x/oauth2 token. extraKeys names provider-specific
// response fields to copy into Extra.
func FromOAuth2(t *oauth2.Token, extraKeys ...string) *domain.OAuthToken {
	tok := &domain.OAuthToken{
		AccessToken:  t.AccessToken,
		RefreshToken: t.RefreshToken,
		TokenType:    t.Type(),
		ExpiresIn:    int(t.ExpiresIn),
		Expiry:       t.Expiry,
	}
	for _, key := range extraKeys {
		v := t.Extra(key)
		if v == nil {
			continue
		}
		if tok.Extra == nil {
			tok.Extra = make(map[string]string)
		}
		switch val := v.(type) {
		case string:
			tok.Extra[key] = val
		case float64:
			tok.Extra[key] = strconv.FormatFloat(val, 'f', -1, 64)
		case bool:
			tok.Extra[key] = strconv.FormatBool(val)
		}
	}
	return tok
}
