package httpapi

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"
)

func TestAuthenticator_RoundTrip(t *testing.T) {
	a := NewAuthenticator(testSecret, "host-app", "socialrelay")

	token, err := a.Issue("user-7", time.Minute)
	require.NoError(t, err)

	userID, err := a.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user-7", userID)
}

func TestAuthenticator_RejectsWrongSecret(t *testing.T) {
	token, err := NewAuthenticator("other-secret", "", "").Issue("user-7", time.Minute)
	require.NoError(t, err)

	_, err = NewAuthenticator(testSecret, "", "").Parse(token)
	assert.Error(t, err)
}

func TestAuthenticator_RejectsExpired(t *testing.T) {
	a := NewAuthenticator(testSecret, "", "")
	token, err := a.Issue("user-7", -time.Minute)
	require.NoError(t, err)

	_, err = a.Parse(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestAuthenticator_RejectsWrongAudience(t *testing.T) {
	token, err := NewAuthenticator(testSecret, "", "other").Issue("user-7", time.Minute)
	require.NoError(t, err)

	_, err = NewAuthenticator(testSecret, "", "socialrelay").Parse(token)
	assert.Error(t, err)
}

func TestAuthenticator_RejectsNoneAlgorithm(t *testing.T) {
	claims := Claims{UserID: "user-7", RegisteredClaims: jwt.RegisteredClaims{
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewAuthenticator(testSecret, "", "").Parse(token)
	assert.Error(t, err)
}

func TestAuthenticator_RequiresExpiry(t *testing.T) {
	claims := Claims{UserID: "user-7"}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	_, err = NewAuthenticator(testSecret, "", "").Parse(token)
	assert.Error(t, err)
}

func TestAuthenticator_SubjectFallback(t *testing.T) {
	claims := Claims{RegisteredClaims: jwt.RegisteredClaims{
		Subject:   "user-9",
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
	}}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testSecret))
	require.NoError(t, err)

	userID, err := NewAuthenticator(testSecret, "", "").Parse(token)
	require.NoError(t, err)
	assert.Equal(t, "user-9", userID)
}

func TestAuthenticator_MiddlewareSetsUserID(t *testing.T) {
	a := NewAuthenticator(testSecret, "", "")
	var seen string
	h := a.Middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = UserID(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", bearer(t, "user-3"))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "user-3", seen)
}

func TestRateLimiter_Allow(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(1), 2)

	assert.True(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.1"))
	assert.False(t, rl.Allow("10.0.0.1"))
	assert.True(t, rl.Allow("10.0.0.2"))
}

func TestRateLimiter_Prune(t *testing.T) {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := NewRateLimiter(rate.Limit(1), 1)
	rl.now = func() time.Time { return now }

	rl.Allow("10.0.0.1")
	now = now.Add(time.Hour)
	rl.Allow("10.0.0.2")

	assert.Equal(t, 1, rl.Prune(30*time.Minute))
	assert.Len(t, rl.visitors, 1)
}

func TestRateLimiter_Middleware(t *testing.T) {
	rl := NewRateLimiter(rate.Limit(1), 1)
	h := rl.Middleware(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	first := httptest.NewRecorder()
	h.ServeHTTP(first, httptest.NewRequest(http.MethodGet, "/", nil))
	second := httptest.NewRecorder()
	h.ServeHTTP(second, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, http.StatusTooManyRequests, second.Code)
	assert.Equal(t, "1", second.Header().Get("Retry-After"))
}

func TestSecurityHeaders_HSTSOnlyInProduction(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {})

	dev := httptest.NewRecorder()
	SecurityHeaders(false)(next).ServeHTTP(dev, httptest.NewRequest(http.MethodGet, "/", nil))
	prod := httptest.NewRecorder()
	SecurityHeaders(true)(next).ServeHTTP(prod, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Empty(t, dev.Header().Get("Strict-Transport-Security"))
	assert.NotEmpty(t, prod.Header().Get("Strict-Transport-Security"))
	assert.Equal(t, "nosniff", prod.Header().Get("X-Content-Type-Options"))
}

func TestStatusFor(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, StatusFor("StateInvalid"))
	assert.Equal(t, http.StatusBadGateway, StatusFor("ProviderUnavailable"))
	assert.Equal(t, http.StatusInternalServerError, StatusFor("Internal"))
}
