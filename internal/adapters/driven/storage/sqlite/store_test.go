package sqlite

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/socialrelay/internal/core/domain"
)

func setupTestStore(t *testing.T) (*Store, func()) {
	t.Helper()
	tmpDir, err := os.MkdirTemp("", "socialrelay-sqlite-test-*")
	require.NoError(t, err)

	store, err := NewStore(tmpDir)
	require.NoError(t, err)

	cleanup := func() {
		store.Close()
		os.RemoveAll(tmpDir)
	}
	return store, cleanup
}

func testConnection(user, external, token string, connectedAt time.Time) *domain.Connection {
	return &domain.Connection{
		UserID:               user,
		Platform:             domain.PlatformFacebook,
		ExternalAccountID:    external,
		DisplayName:          "Page " + external,
		AccessTokenEncrypted: token,
		Metadata:             map[string]string{"page_id": external},
		IsActive:             true,
		Status:               domain.ConnectionActive,
		ConnectedAt:          connectedAt,
	}
}

// ==================== Store ====================

func TestNewStore_AppliesMigrations(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	v, err := store.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
	assert.FileExists(t, store.Path())
	assert.NoError(t, store.Ping(context.Background()))
}

func TestNewStore_ReopenIsIdempotent(t *testing.T) {
	tmpDir, err := os.MkdirTemp("", "socialrelay-sqlite-test-*")
	require.NoError(t, err)
	defer os.RemoveAll(tmpDir)

	first, err := NewStore(tmpDir)
	require.NoError(t, err)
	require.NoError(t, first.Close())

	second, err := NewStore(tmpDir)
	require.NoError(t, err)
	defer second.Close()

	v, err := second.Version(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, v)
}

// ==================== Connection Store ====================

func TestConnectionStore_UpsertAndGet(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	conns := store.ConnectionStore()

	expiry := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	conn := testConnection("u1", "page-1", "enc-1", time.Now())
	conn.RefreshTokenEncrypted = "enc-refresh"
	conn.TokenExpiresAt = expiry
	conn.FollowerCount = 42

	require.NoError(t, conns.Upsert(ctx, conn))
	require.NotEmpty(t, conn.ID)

	got, err := conns.Get(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, domain.PlatformFacebook, got.Platform)
	assert.Equal(t, "enc-1", got.AccessTokenEncrypted)
	assert.Equal(t, "enc-refresh", got.RefreshTokenEncrypted)
	assert.True(t, expiry.Equal(got.TokenExpiresAt))
	assert.Equal(t, int64(42), got.FollowerCount)
	assert.Equal(t, "page-1", got.Metadata["page_id"])
	assert.True(t, got.IsActive)
	assert.Equal(t, domain.ConnectionActive, got.Status)
	assert.Nil(t, got.DisconnectedAt)
}

func TestConnectionStore_Get_NotFound(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := store.ConnectionStore().Get(context.Background(), "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestConnectionStore_Upsert_SameAccountKeepsRow(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	conns := store.ConnectionStore()

	first := testConnection("u1", "page-1", "enc-old", time.Now().Add(-time.Hour))
	require.NoError(t, conns.Upsert(ctx, first))
	posted := time.Now().Add(-30 * time.Minute)
	require.NoError(t, conns.MarkPosted(ctx, first.ID, posted))
	require.NoError(t, conns.Deactivate(ctx, first.ID, time.Now()))

	second := testConnection("u1", "page-1", "enc-new", time.Now())
	require.NoError(t, conns.Upsert(ctx, second))

	assert.Equal(t, first.ID, second.ID)
	require.NotNil(t, second.LastPostedAt)

	all, err := conns.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "enc-new", all[0].AccessTokenEncrypted)
	assert.True(t, all[0].IsActive)
	assert.Equal(t, domain.ConnectionActive, all[0].Status)
	assert.Nil(t, all[0].DisconnectedAt)
	require.NotNil(t, all[0].LastPostedAt)
	assert.WithinDuration(t, posted, *all[0].LastPostedAt, time.Millisecond)
}

func TestConnectionStore_FindActive_LatestWins(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	conns := store.ConnectionStore()

	older := testConnection("u1", "page-1", "enc-1", time.Now().Add(-2*time.Hour))
	newer := testConnection("u1", "page-2", "enc-2", time.Now().Add(-time.Hour))
	other := testConnection("u2", "page-3", "enc-3", time.Now())
	for _, c := range []*domain.Connection{older, newer, other} {
		require.NoError(t, conns.Upsert(ctx, c))
	}

	got, err := conns.FindActive(ctx, "u1", domain.PlatformFacebook)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, newer.ID, got.ID)

	none, err := conns.FindActive(ctx, "u1", domain.PlatformLinkedIn)
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestConnectionStore_ListByUser_NewestFirst(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	conns := store.ConnectionStore()

	a := testConnection("u1", "a", "enc", time.Now().Add(-3*time.Hour))
	b := testConnection("u1", "b", "enc", time.Now().Add(-time.Hour))
	c := testConnection("u1", "c", "enc", time.Now().Add(-2*time.Hour))
	for _, conn := range []*domain.Connection{a, b, c} {
		require.NoError(t, conns.Upsert(ctx, conn))
	}

	list, err := conns.ListByUser(ctx, "u1")
	require.NoError(t, err)
	require.Len(t, list, 3)
	assert.Equal(t, "b", list[0].ExternalAccountID)
	assert.Equal(t, "c", list[1].ExternalAccountID)
	assert.Equal(t, "a", list[2].ExternalAccountID)

	empty, err := conns.ListByUser(ctx, "nobody")
	require.NoError(t, err)
	assert.Empty(t, empty)
}

func TestConnectionStore_Deactivate(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	conns := store.ConnectionStore()

	conn := testConnection("u1", "page-1", "enc", time.Now())
	require.NoError(t, conns.Upsert(ctx, conn))

	at := time.Now()
	require.NoError(t, conns.Deactivate(ctx, conn.ID, at))

	got, err := conns.Get(ctx, conn.ID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)
	assert.Equal(t, domain.ConnectionRevoked, got.Status)
	require.NotNil(t, got.DisconnectedAt)
	assert.WithinDuration(t, at, *got.DisconnectedAt, time.Millisecond)

	active, err := conns.FindActive(ctx, "u1", domain.PlatformFacebook)
	require.NoError(t, err)
	assert.Nil(t, active)

	assert.ErrorIs(t, conns.Deactivate(ctx, "missing", at), domain.ErrNotFound)
}

func TestConnectionStore_PurgeInactiveDuplicates(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	conns := store.ConnectionStore()

	keep := testConnection("u1", "page-1", "enc", time.Now())
	gone := testConnection("u1", "page-2", "enc", time.Now())
	require.NoError(t, conns.Upsert(ctx, keep))
	require.NoError(t, conns.Upsert(ctx, gone))
	require.NoError(t, conns.Deactivate(ctx, gone.ID, time.Now()))

	n, err := conns.PurgeInactiveDuplicates(ctx, "u1", domain.PlatformFacebook)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	_, err = conns.Get(ctx, gone.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)
	_, err = conns.Get(ctx, keep.ID)
	assert.NoError(t, err)
}

func TestConnectionStore_SetStatusAndMarkPosted(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	conns := store.ConnectionStore()

	conn := testConnection("u1", "page-1", "enc", time.Now())
	require.NoError(t, conns.Upsert(ctx, conn))

	require.NoError(t, conns.SetStatus(ctx, conn.ID, domain.ConnectionError))
	posted := time.Now()
	require.NoError(t, conns.MarkPosted(ctx, conn.ID, posted))

	got, err := conns.Get(ctx, conn.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.ConnectionError, got.Status)
	assert.True(t, got.IsActive)
	require.NotNil(t, got.LastPostedAt)

	assert.ErrorIs(t, conns.SetStatus(ctx, "missing", domain.ConnectionError), domain.ErrNotFound)
	assert.ErrorIs(t, conns.MarkPosted(ctx, "missing", posted), domain.ErrNotFound)
}

func TestConnectionStore_ListExpiring(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	conns := store.ConnectionStore()
	now := time.Now()

	expiring := testConnection("u1", "soon", "enc", now)
	expiring.RefreshTokenEncrypted = "r"
	expiring.TokenExpiresAt = now.Add(time.Hour)

	later := testConnection("u1", "later", "enc", now)
	later.RefreshTokenEncrypted = "r"
	later.TokenExpiresAt = now.Add(72 * time.Hour)

	noRefresh := testConnection("u1", "norefresh", "enc", now)
	noRefresh.TokenExpiresAt = now.Add(time.Hour)

	noExpiry := testConnection("u1", "noexpiry", "enc", now)
	noExpiry.RefreshTokenEncrypted = "r"

	inactive := testConnection("u1", "inactive", "enc", now)
	inactive.RefreshTokenEncrypted = "r"
	inactive.TokenExpiresAt = now.Add(time.Hour)

	for _, c := range []*domain.Connection{expiring, later, noRefresh, noExpiry, inactive} {
		require.NoError(t, conns.Upsert(ctx, c))
	}
	require.NoError(t, conns.Deactivate(ctx, inactive.ID, now))

	list, err := conns.ListExpiring(ctx, now.Add(24*time.Hour))
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "soon", list[0].ExternalAccountID)
}

// ==================== OAuth State Store ====================

func TestStateStore_SaveAndConsumeOnce(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	states := store.StateStore()

	now := time.Now()
	require.NoError(t, states.Save(ctx, domain.OAuthState{
		State:        "abc",
		UserID:       "u1",
		Platform:     domain.PlatformTwitter,
		CodeVerifier: "verifier",
		CreatedAt:    now,
		ExpiresAt:    now.Add(10 * time.Minute),
	}))

	got, err := states.GetAndDelete(ctx, "abc")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, domain.PlatformTwitter, got.Platform)
	assert.Equal(t, "verifier", got.CodeVerifier)
	assert.WithinDuration(t, now.Add(10*time.Minute), got.ExpiresAt, time.Millisecond)

	again, err := states.GetAndDelete(ctx, "abc")
	require.NoError(t, err)
	assert.Nil(t, again)
}

func TestStateStore_DeleteExpired(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	states := store.StateStore()

	now := time.Now()
	require.NoError(t, states.Save(ctx, domain.OAuthState{
		State: "old", UserID: "u1", Platform: domain.PlatformLinkedIn,
		CreatedAt: now.Add(-20 * time.Minute), ExpiresAt: now.Add(-10 * time.Minute),
	}))
	require.NoError(t, states.Save(ctx, domain.OAuthState{
		State: "fresh", UserID: "u1", Platform: domain.PlatformLinkedIn,
		CreatedAt: now, ExpiresAt: now.Add(10 * time.Minute),
	}))

	n, err := states.DeleteExpired(ctx, now)
	require.NoError(t, err)
	assert.Equal(t, int64(1), n)

	old, err := states.GetAndDelete(ctx, "old")
	require.NoError(t, err)
	assert.Nil(t, old)
	fresh, err := states.GetAndDelete(ctx, "fresh")
	require.NoError(t, err)
	assert.NotNil(t, fresh)
}

// ==================== Content Store ====================

func TestContentStore_SaveGetMarkPublished(t *testing.T) {
	store, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()
	content := store.ContentStore()

	require.NoError(t, content.Save(ctx, domain.ContentRecord{
		ID:       "c1",
		UserID:   "u1",
		Platform: domain.PlatformLinkedIn,
	}))

	got, err := content.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.ContentDraft, got.Status)
	assert.Nil(t, got.PublishedAt)

	publishedAt := time.Now()
	require.NoError(t, content.MarkPublished(ctx, "c1", domain.PublishResult{
		RemotePostID: "urn:li:share:1",
		PermalinkURL: "https://www.linkedin.com/feed/update/urn:li:share:1/",
		PublishedAt:  publishedAt,
	}))

	got, err = content.Get(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, domain.ContentPublished, got.Status)
	assert.Equal(t, "urn:li:share:1", got.RemotePostID)
	assert.Equal(t, "https://www.linkedin.com/feed/update/urn:li:share:1/", got.PermalinkURL)
	require.NotNil(t, got.PublishedAt)
	assert.WithinDuration(t, publishedAt, *got.PublishedAt, time.Millisecond)

	assert.ErrorIs(t, content.MarkPublished(ctx, "missing", domain.PublishResult{}), domain.ErrNotFound)
	_, err = content.Get(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
