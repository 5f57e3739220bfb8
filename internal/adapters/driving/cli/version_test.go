package cli

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/socialrelay/internal/adapters/driven/config/file"
	"github.com/custodia-labs/socialrelay/internal/adapters/driving/httpapi"
	"github.com/custodia-labs/socialrelay/internal/config"
	"github.com/custodia-labs/socialrelay/internal/core/domain"
)

// runCLI executes the root command against a config file in a temp dir and
// returns the captured output.
func runCLI(t *testing.T, configPath string, args ...string) (string, error) {
	t.Helper()

	keygenWrite, keygenForce = false, false
	cleanupRefresh, migrateDown = false, false
	tokenTTL = time.Hour
	logFormat = ""

	buf := new(bytes.Buffer)
	rootCmd.SetOut(buf)
	rootCmd.SetErr(buf)
	rootCmd.SetArgs(append([]string{"--config", configPath}, args...))
	defer rootCmd.SetArgs(nil)

	err := rootCmd.Execute()
	return buf.String(), err
}

func tempConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	if content != "" {
		require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	}
	return path
}

// useMemoryApp swaps openApp for one backed by in-memory stores and returns it.
func useMemoryApp(t *testing.T) *app {
	t.Helper()
	cfg := config.Default()
	cfg.Storage.Driver = config.DriverMemory
	a, err := newApp(context.Background(), cfg, false)
	require.NoError(t, err)

	original := openApp
	openApp = func(context.Context, config.Config, bool) (*app, error) { return a, nil }
	t.Cleanup(func() { openApp = original })
	return a
}

func TestVersionCmd_Use(t *testing.T) {
	assert.Equal(t, "version", versionCmd.Use)
}

func TestVersionCmd_Executes(t *testing.T) {
	originalVersion := version
	version = "test-version-1.0.0"
	defer func() { version = originalVersion }()

	out, err := runCLI(t, tempConfig(t, ""), "version")

	assert.NoError(t, err)
	assert.Contains(t, out, "socialrelay version test-version-1.0.0")
}

func TestRootCmd_RejectsUnknownLogFormat(t *testing.T) {
	_, err := runCLI(t, tempConfig(t, ""), "--log-format", "xml", "version")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown log format")
}

func TestKeygenCmd_Prints(t *testing.T) {
	out, err := runCLI(t, tempConfig(t, ""), "keygen")

	require.NoError(t, err)
	assert.Len(t, strings.TrimSpace(out), 44)
}

func TestKeygenCmd_WritesConfig(t *testing.T) {
	path := tempConfig(t, "[server]\naddr = \":9000\"\n")

	out, err := runCLI(t, path, "keygen", "--write")

	require.NoError(t, err)
	assert.Contains(t, out, path)
	store, err := file.NewConfigStore(path)
	require.NoError(t, err)
	assert.Len(t, store.GetString("cipher.key"), 44)
	assert.Equal(t, ":9000", store.GetString("server.addr"))
}

func TestKeygenCmd_RefusesToReplaceKey(t *testing.T) {
	path := tempConfig(t, "[cipher]\nkey = \"existing\"\n")

	_, err := runCLI(t, path, "keygen", "--write")
	require.Error(t, err)

	_, err = runCLI(t, path, "keygen", "--write", "--force")
	require.NoError(t, err)
	store, err := file.NewConfigStore(path)
	require.NoError(t, err)
	assert.NotEqual(t, "existing", store.GetString("cipher.key"))
}

func TestTokenCmd_IssuesParsableToken(t *testing.T) {
	path := tempConfig(t, "[auth]\njwt_secret = \"cli-secret\"\njwt_issuer = \"host\"\n")

	out, err := runCLI(t, path, "token", "user-42", "--ttl", "10m")

	require.NoError(t, err)
	userID, err := httpapi.NewAuthenticator("cli-secret", "host", "").Parse(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "user-42", userID)
}

func TestTokenCmd_RequiresSecret(t *testing.T) {
	t.Setenv("SOCIALRELAY_JWT_SECRET", "")

	_, err := runCLI(t, tempConfig(t, ""), "token", "user-42")

	require.Error(t, err)
	assert.Contains(t, err.Error(), "jwt secret")
}

func TestConnectionsList_Empty(t *testing.T) {
	useMemoryApp(t)

	out, err := runCLI(t, tempConfig(t, ""), "connections", "list", "user-1")

	require.NoError(t, err)
	assert.Contains(t, out, "No connections for user-1")
}

func TestConnectionsList_RendersTable(t *testing.T) {
	a := useMemoryApp(t)
	require.NoError(t, a.store.ConnectionStore().Upsert(context.Background(), &domain.Connection{
		UserID:            "user-1",
		Platform:          domain.PlatformLinkedIn,
		ExternalAccountID: "li-123",
		DisplayName:       "Ada Lovelace",
		FollowerCount:     512,
		IsActive:          true,
		Status:            domain.ConnectionActive,
		ConnectedAt:       time.Now(),
	}))

	out, err := runCLI(t, tempConfig(t, ""), "connections", "list", "user-1")

	require.NoError(t, err)
	assert.Contains(t, out, "PLATFORM")
	assert.Contains(t, out, "LinkedIn")
	assert.Contains(t, out, "Ada Lovelace")
	assert.Contains(t, out, "512")
	assert.Contains(t, out, "never")
}

func TestConnectionsDisconnect_NotOwned(t *testing.T) {
	a := useMemoryApp(t)
	conn := &domain.Connection{
		UserID: "user-1", Platform: domain.PlatformTwitter, ExternalAccountID: "42",
		IsActive: true, Status: domain.ConnectionActive, ConnectedAt: time.Now(),
	}
	require.NoError(t, a.store.ConnectionStore().Upsert(context.Background(), conn))

	_, err := runCLI(t, tempConfig(t, ""), "connections", "disconnect", "user-2", conn.ID)
	assert.ErrorIs(t, err, domain.ErrNotFound)

	out, err := runCLI(t, tempConfig(t, ""), "connections", "disconnect", "user-1", conn.ID)
	require.NoError(t, err)
	assert.Contains(t, out, "disconnected")
}

func TestConnectionsPurge_InvalidPlatform(t *testing.T) {
	useMemoryApp(t)

	_, err := runCLI(t, tempConfig(t, ""), "connections", "purge", "user-1", "myspace")

	assert.ErrorIs(t, err, domain.ErrInvalidInput)
}

func TestCleanupCmd_RemovesExpiredStates(t *testing.T) {
	a := useMemoryApp(t)
	require.NoError(t, a.store.StateStore().Save(context.Background(), domain.OAuthState{
		State:     "old",
		UserID:    "user-1",
		Platform:  domain.PlatformLinkedIn,
		CreatedAt: time.Now().Add(-time.Hour),
		ExpiresAt: time.Now().Add(-30 * time.Minute),
	}))

	out, err := runCLI(t, tempConfig(t, ""), "cleanup")

	require.NoError(t, err)
	assert.Contains(t, out, domain.TaskIDStateCleanup+": 1 item(s)")
}

func TestMigrateCmd_SQLite(t *testing.T) {
	dataDir := t.TempDir()
	path := tempConfig(t, "[storage]\ndriver = \"sqlite\"\ndata_dir = \""+filepath.ToSlash(dataDir)+"\"\n")

	out, err := runCLI(t, path, "migrate")

	require.NoError(t, err)
	assert.Contains(t, out, "sqlite schema at version 1")
	assert.FileExists(t, filepath.Join(dataDir, "socialrelay.db"))
}

func TestMigrateCmd_SQLiteDownUnsupported(t *testing.T) {
	path := tempConfig(t, "[storage]\ndata_dir = \""+filepath.ToSlash(t.TempDir())+"\"\n")

	_, err := runCLI(t, path, "migrate", "--down")

	assert.Error(t, err)
}

func TestServeCmd_RequiresCipherKey(t *testing.T) {
	t.Setenv("SOCIALRELAY_CIPHER_KEY", "")
	path := tempConfig(t, "[auth]\njwt_secret = \"s\"\n")

	_, err := runCLI(t, path, "serve")

	require.Error(t, err)
	assert.ErrorIs(t, err, config.ErrMissingCipherKey)
}
