package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/custodia-labs/socialrelay/internal/adapters/driven/config/file"
	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/platforms"
)

func envMap(m map[string]string) LookupFunc {
	return func(key string) (string, bool) {
		v, ok := m[key]
		return v, ok
	}
}

func storeFrom(t *testing.T, content string) *file.ConfigStore {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	store, err := file.NewConfigStore(path)
	require.NoError(t, err)
	return store
}

func platformCreds(id, secret string) platforms.Credentials {
	return platforms.Credentials{ClientID: id, ClientSecret: secret}
}

func validConfig() Config {
	cfg := Default()
	cfg.CipherKey = "AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA="
	cfg.Auth.JWTSecret = "secret"
	return cfg
}

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ":8080", cfg.Server.Addr)
	assert.Equal(t, DriverSQLite, cfg.Storage.Driver)
	assert.Equal(t, 10*time.Minute, cfg.OAuth.StateTTL)
	assert.Equal(t, 3*time.Second, cfg.Publish.PollInterval)
	assert.Equal(t, 2*time.Minute, cfg.Publish.PollCeiling)
	assert.True(t, cfg.Scheduler.Enabled)
	assert.Empty(t, cfg.CipherKey)
}

func TestFromStore_FileValues(t *testing.T) {
	store := storeFrom(t, `
[server]
addr = ":9000"
public_base_url = "https://relay.example.com"
allowed_origins = ["https://app.example.com"]
rate_limit = 5

[cipher]
key = "file-key"

[storage]
driver = "postgres"
postgres_dsn = "postgres://localhost/relay"

[kafka]
brokers = ["kafka-1:9092", "kafka-2:9092"]

[publish]
poll_interval = "4s"

[scheduler]
token_refresh_schedule = "@every 30m"
state_cleanup_enabled = false

[platforms.linkedin]
client_id = "li-id"
client_secret = "li-secret"
scopes = ["openid", "w_member_social"]
`)

	cfg := FromStore(store, envMap(nil))

	assert.Equal(t, ":9000", cfg.Server.Addr)
	assert.Equal(t, "https://relay.example.com", cfg.Server.PublicBaseURL)
	assert.Equal(t, []string{"https://app.example.com"}, cfg.Server.AllowedOrigins)
	assert.InDelta(t, 5.0, cfg.Server.RateLimit, 0.0001)
	assert.Equal(t, "file-key", cfg.CipherKey)
	assert.Equal(t, DriverPostgres, cfg.Storage.Driver)
	assert.Equal(t, []string{"kafka-1:9092", "kafka-2:9092"}, cfg.Kafka.Brokers)
	assert.Equal(t, 4*time.Second, cfg.Publish.PollInterval)
	assert.Equal(t, "@every 30m", cfg.Scheduler.GetTaskConfig(domain.TaskIDTokenRefresh).Schedule)
	assert.True(t, cfg.Scheduler.GetTaskConfig(domain.TaskIDTokenRefresh).Enabled)
	assert.False(t, cfg.Scheduler.GetTaskConfig(domain.TaskIDStateCleanup).Enabled)

	li := cfg.Platforms[domain.PlatformLinkedIn]
	assert.Equal(t, "li-id", li.ClientID)
	assert.Equal(t, []string{"openid", "w_member_social"}, li.Scopes)
	_, hasTwitter := cfg.Platforms[domain.PlatformTwitter]
	assert.False(t, hasTwitter)
}

func TestFromStore_EnvOverridesFile(t *testing.T) {
	store := storeFrom(t, `
[cipher]
key = "file-key"

[platforms.twitter]
client_id = "file-id"
client_secret = "file-secret"
`)

	cfg := FromStore(store, envMap(map[string]string{
		"SOCIALRELAY_CIPHER_KEY":             "env-key",
		"SOCIALRELAY_TWITTER_CLIENT_ID":      "env-id",
		"SOCIALRELAY_FACEBOOK_CLIENT_ID":     "fb-id",
		"SOCIALRELAY_FACEBOOK_CLIENT_SECRET": "fb-secret",
		"SOCIALRELAY_FACEBOOK_SCOPES":        "pages_manage_posts, pages_show_list",
		"SOCIALRELAY_ALLOWED_ORIGINS":        "https://a.example.com, https://b.example.com",
		"SOCIALRELAY_PRODUCTION":             "true",
		"SOCIALRELAY_STATE_TTL":              "5m",
		"SOCIALRELAY_RATE_BURST":             "7",
	}))

	assert.Equal(t, "env-key", cfg.CipherKey)
	assert.Equal(t, "env-id", cfg.Platforms[domain.PlatformTwitter].ClientID)
	assert.Equal(t, "file-secret", cfg.Platforms[domain.PlatformTwitter].ClientSecret)
	assert.Equal(t, []string{"pages_manage_posts", "pages_show_list"}, cfg.Platforms[domain.PlatformFacebook].Scopes)
	assert.Equal(t, []string{"https://a.example.com", "https://b.example.com"}, cfg.Server.AllowedOrigins)
	assert.True(t, cfg.Server.Production)
	assert.Equal(t, 5*time.Minute, cfg.OAuth.StateTTL)
	assert.Equal(t, 7, cfg.Server.RateBurst)
}

func TestFromStore_MalformedEnvIgnored(t *testing.T) {
	cfg := FromStore(nil, envMap(map[string]string{
		"SOCIALRELAY_STATE_TTL":  "ten minutes",
		"SOCIALRELAY_PRODUCTION": "maybe",
	}))

	assert.Equal(t, 10*time.Minute, cfg.OAuth.StateTTL)
	assert.False(t, cfg.Server.Production)
}

func TestLoad_ReadsFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.toml")
	require.NoError(t, os.WriteFile(path, []byte("[server]\naddr = \":7000\"\n"), 0o600))
	t.Setenv("SOCIALRELAY_JWT_SECRET", "from-env")

	cfg, err := Load(path)

	require.NoError(t, err)
	assert.Equal(t, path, cfg.Source)
	assert.Equal(t, ":7000", cfg.Server.Addr)
	assert.Equal(t, "from-env", cfg.Auth.JWTSecret)
}

func TestValidate_OK(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_MissingCipherKey(t *testing.T) {
	cfg := validConfig()
	cfg.CipherKey = "  "

	assert.ErrorIs(t, cfg.Validate(), ErrMissingCipherKey)
}

func TestValidate_Failures(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		want   string
	}{
		{"jwt secret", func(c *Config) { c.Auth.JWTSecret = "" }, "jwt secret"},
		{"relative base url", func(c *Config) { c.Server.PublicBaseURL = "/relay" }, "public base url"},
		{"poll too fast", func(c *Config) { c.Publish.PollInterval = time.Second }, "poll interval"},
		{"poll too slow", func(c *Config) { c.Publish.PollInterval = 10 * time.Second }, "poll interval"},
		{"ceiling below interval", func(c *Config) { c.Publish.PollCeiling = time.Second }, "poll ceiling"},
		{"youtube privacy", func(c *Config) { c.Publish.YouTubePrivacy = "friends" }, "youtube privacy"},
		{"state ttl", func(c *Config) { c.OAuth.StateTTL = 0 }, "state ttl"},
		{"postgres dsn", func(c *Config) { c.Storage.Driver = DriverPostgres }, "postgres"},
		{"driver", func(c *Config) { c.Storage.Driver = "mysql" }, "unknown storage driver"},
		{"half credentials", func(c *Config) {
			c.Platforms[domain.PlatformLinkedIn] = platformCreds("id", "")
		}, "linkedin"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := validConfig()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestValidateStorage_IgnoresServerSettings(t *testing.T) {
	cfg := Default()

	assert.NoError(t, cfg.ValidateStorage())
	assert.Error(t, cfg.Validate())
}

func TestPlatformConfig(t *testing.T) {
	cfg := validConfig()
	cfg.Publish.PollInterval = 4 * time.Second
	cfg.Platforms[domain.PlatformYouTube] = platformCreds("yt-id", "yt-secret")

	pc := cfg.PlatformConfig()

	assert.Equal(t, 4*time.Second, pc.Poll.Interval)
	assert.Equal(t, "public", pc.YouTubePrivacy)
	assert.True(t, pc.Credentials[domain.PlatformYouTube].Configured())
}
