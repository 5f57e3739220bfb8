// Package config builds the typed service configuration from the TOML config
// file and SOCIALRELAY_* environment variables. Environment variables win.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/custodia-labs/socialrelay/internal/adapters/driven/config/file"
	"github.com/custodia-labs/socialrelay/internal/core/domain"
	"github.com/custodia-labs/socialrelay/internal/core/ports/driven"
	"github.com/custodia-labs/socialrelay/internal/platforms"
	"github.com/custodia-labs/socialrelay/internal/platforms/flow"
)

// EnvPrefix prefixes every environment variable read by Load.
const EnvPrefix = "SOCIALRELAY_"

// Storage drivers.
const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"
	DriverMemory   = "memory"
)

// Poll interval bounds for carousel and video readiness polling.
const (
	MinPollInterval = 2 * time.Second
	MaxPollInterval = 5 * time.Second
)

// ErrMissingCipherKey is returned by Validate when no token cipher key is set.
var ErrMissingCipherKey = errors.New("cipher key is required: set SOCIALRELAY_CIPHER_KEY or [cipher] key")

// Config is the complete service configuration.
type Config struct {
	Server    ServerConfig
	Auth      AuthConfig
	CipherKey string
	Storage   StorageConfig
	Redis     RedisConfig
	Kafka     KafkaConfig
	OAuth     OAuthConfig
	Publish   PublishConfig
	Scheduler domain.SchedulerConfig
	Log       LogConfig
	Platforms map[domain.Platform]platforms.Credentials

	// Source is the config file that was read, if any.
	Source string
}

// ServerConfig configures the HTTP surface.
type ServerConfig struct {
	Addr string
	// PublicBaseURL is the externally reachable base URL; OAuth redirect
	// URIs are built as PublicBaseURL + /connect/{platform}/callback.
	PublicBaseURL   string
	AllowedOrigins  []string
	Production      bool
	TrustProxy      bool
	RateLimit       float64
	RateBurst       int
	RequestTimeout  time.Duration
	ShutdownTimeout time.Duration
	// CallbackRedirect replaces the callback HTML page with a redirect.
	CallbackRedirect string
}

// AuthConfig configures bearer token validation.
type AuthConfig struct {
	JWTSecret   string
	JWTIssuer   string
	JWTAudience string
}

// StorageConfig selects the connection and content store.
type StorageConfig struct {
	Driver      string
	DataDir     string
	PostgresDSN string
}

// RedisConfig enables the Redis OAuth state store when Addr is set.
type RedisConfig struct {
	Addr string
}

// KafkaConfig enables the Kafka event publisher when Brokers is set.
type KafkaConfig struct {
	Brokers []string
	Topic   string
}

// OAuthConfig configures the connect flow.
type OAuthConfig struct {
	StateTTL           time.Duration
	RevokeOnDisconnect bool
}

// PublishConfig configures publishing.
type PublishConfig struct {
	PollInterval      time.Duration
	PollCeiling       time.Duration
	YouTubePrivacy    string
	AllowPrivateMedia bool
}

// LogConfig configures the logger.
type LogConfig struct {
	Format  string
	Verbose bool
}

// Default returns the configuration used when nothing is set.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:            ":8080",
			PublicBaseURL:   "http://localhost:8080",
			RateLimit:       10,
			RateBurst:       20,
			RequestTimeout:  5 * time.Minute,
			ShutdownTimeout: 15 * time.Second,
		},
		Storage: StorageConfig{Driver: DriverSQLite},
		OAuth:   OAuthConfig{StateTTL: 10 * time.Minute},
		Publish: PublishConfig{
			PollInterval:   flow.DefaultPollInterval,
			PollCeiling:    flow.DefaultPollCeiling,
			YouTubePrivacy: "public",
		},
		Scheduler: domain.DefaultSchedulerConfig(),
		Log:       LogConfig{Format: "text"},
		Platforms: make(map[domain.Platform]platforms.Credentials),
	}
}

// Load reads the config file at path (the default location when empty) and
// applies environment overrides. It does not validate.
func Load(path string) (Config, error) {
	store, err := file.NewConfigStore(path)
	if err != nil {
		return Config{}, fmt.Errorf("load config: %w", err)
	}
	cfg := FromStore(store, os.LookupEnv)
	cfg.Source = store.Path()
	return cfg, nil
}

// LookupFunc looks up an environment variable.
type LookupFunc func(key string) (string, bool)

// FromStore builds a Config from defaults, then store, then env.
func FromStore(store driven.ConfigStore, env LookupFunc) Config {
	cfg := Default()
	r := reader{store: store, env: env}

	r.str("server.addr", "ADDR", &cfg.Server.Addr)
	r.str("server.public_base_url", "PUBLIC_BASE_URL", &cfg.Server.PublicBaseURL)
	r.list("server.allowed_origins", "ALLOWED_ORIGINS", &cfg.Server.AllowedOrigins)
	r.boolean("server.production", "PRODUCTION", &cfg.Server.Production)
	r.boolean("server.trust_proxy", "TRUST_PROXY", &cfg.Server.TrustProxy)
	r.float("server.rate_limit", "RATE_LIMIT", &cfg.Server.RateLimit)
	r.integer("server.rate_burst", "RATE_BURST", &cfg.Server.RateBurst)
	r.duration("server.request_timeout", "REQUEST_TIMEOUT", &cfg.Server.RequestTimeout)
	r.duration("server.shutdown_timeout", "SHUTDOWN_TIMEOUT", &cfg.Server.ShutdownTimeout)
	r.str("server.callback_redirect", "CALLBACK_REDIRECT", &cfg.Server.CallbackRedirect)

	r.str("auth.jwt_secret", "JWT_SECRET", &cfg.Auth.JWTSecret)
	r.str("auth.jwt_issuer", "JWT_ISSUER", &cfg.Auth.JWTIssuer)
	r.str("auth.jwt_audience", "JWT_AUDIENCE", &cfg.Auth.JWTAudience)

	r.str("cipher.key", "CIPHER_KEY", &cfg.CipherKey)

	r.str("storage.driver", "STORAGE_DRIVER", &cfg.Storage.Driver)
	r.str("storage.data_dir", "DATA_DIR", &cfg.Storage.DataDir)
	r.str("storage.postgres_dsn", "POSTGRES_DSN", &cfg.Storage.PostgresDSN)

	r.str("redis.addr", "REDIS_ADDR", &cfg.Redis.Addr)

	r.list("kafka.brokers", "KAFKA_BROKERS", &cfg.Kafka.Brokers)
	r.str("kafka.topic", "KAFKA_TOPIC", &cfg.Kafka.Topic)

	r.duration("oauth.state_ttl", "STATE_TTL", &cfg.OAuth.StateTTL)
	r.boolean("oauth.revoke_on_disconnect", "REVOKE_ON_DISCONNECT", &cfg.OAuth.RevokeOnDisconnect)

	r.duration("publish.poll_interval", "POLL_INTERVAL", &cfg.Publish.PollInterval)
	r.duration("publish.poll_ceiling", "POLL_CEILING", &cfg.Publish.PollCeiling)
	r.str("publish.youtube_privacy", "YOUTUBE_PRIVACY", &cfg.Publish.YouTubePrivacy)
	r.boolean("publish.allow_private_media", "ALLOW_PRIVATE_MEDIA", &cfg.Publish.AllowPrivateMedia)

	r.boolean("scheduler.enabled", "SCHEDULER_ENABLED", &cfg.Scheduler.Enabled)
	r.duration("scheduler.refresh_window", "REFRESH_WINDOW", &cfg.Scheduler.RefreshWindow)
	r.schedule(&cfg.Scheduler, domain.TaskIDStateCleanup, "scheduler.state_cleanup", "STATE_CLEANUP")
	r.schedule(&cfg.Scheduler, domain.TaskIDTokenRefresh, "scheduler.token_refresh", "TOKEN_REFRESH")

	r.str("log.format", "LOG_FORMAT", &cfg.Log.Format)
	r.boolean("log.verbose", "VERBOSE", &cfg.Log.Verbose)

	for _, p := range domain.AllPlatforms() {
		var c platforms.Credentials
		key := "platforms." + string(p)
		env := strings.ToUpper(string(p)) + "_"
		r.str(key+".client_id", env+"CLIENT_ID", &c.ClientID)
		r.str(key+".client_secret", env+"CLIENT_SECRET", &c.ClientSecret)
		r.list(key+".scopes", env+"SCOPES", &c.Scopes)
		if c.ClientID != "" || c.ClientSecret != "" || len(c.Scopes) > 0 {
			cfg.Platforms[p] = c
		}
	}

	return cfg
}

// Validate checks everything the HTTP server needs.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.CipherKey) == "" {
		errs = append(errs, ErrMissingCipherKey)
	}
	if c.Auth.JWTSecret == "" {
		errs = append(errs, errors.New("jwt secret is required: set SOCIALRELAY_JWT_SECRET or [auth] jwt_secret"))
	}
	if u, err := url.Parse(c.Server.PublicBaseURL); err != nil || u.Host == "" ||
		(u.Scheme != "http" && u.Scheme != "https") {
		errs = append(errs, fmt.Errorf("public base url %q must be an absolute http(s) URL", c.Server.PublicBaseURL))
	}
	if c.Server.RateLimit < 0 {
		errs = append(errs, errors.New("rate limit must not be negative"))
	}
	if c.OAuth.StateTTL <= 0 {
		errs = append(errs, errors.New("oauth state ttl must be positive"))
	}
	if c.Publish.PollInterval < MinPollInterval || c.Publish.PollInterval > MaxPollInterval {
		errs = append(errs, fmt.Errorf("poll interval %s must be between %s and %s",
			c.Publish.PollInterval, MinPollInterval, MaxPollInterval))
	}
	if c.Publish.PollCeiling < c.Publish.PollInterval {
		errs = append(errs, errors.New("poll ceiling must be at least the poll interval"))
	}
	switch c.Publish.YouTubePrivacy {
	case "public", "unlisted", "private":
	default:
		errs = append(errs, fmt.Errorf("youtube privacy %q must be public, unlisted or private", c.Publish.YouTubePrivacy))
	}
	for p, creds := range c.Platforms {
		if (creds.ClientID == "") != (creds.ClientSecret == "") {
			errs = append(errs, fmt.Errorf("%s: client id and client secret must be set together", p))
		}
	}
	if err := c.ValidateStorage(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ValidateStorage checks only the storage settings, for commands that do
// not serve traffic.
func (c Config) ValidateStorage() error {
	switch c.Storage.Driver {
	case DriverSQLite, DriverMemory:
		return nil
	case DriverPostgres:
		if c.Storage.PostgresDSN == "" {
			return errors.New("postgres storage requires SOCIALRELAY_POSTGRES_DSN or [storage] postgres_dsn")
		}
		return nil
	default:
		return fmt.Errorf("unknown storage driver %q (want sqlite, postgres or memory)", c.Storage.Driver)
	}
}

// PlatformConfig returns the adapter registry configuration.
func (c Config) PlatformConfig() platforms.Config {
	return platforms.Config{
		Credentials:    c.Platforms,
		Poll:           flow.PollConfig{Interval: c.Publish.PollInterval, Ceiling: c.Publish.PollCeiling},
		YouTubePrivacy: c.Publish.YouTubePrivacy,
	}
}

// reader applies store values then env overrides onto typed fields. Values
// that fail to parse leave the field unchanged.
type reader struct {
	store driven.ConfigStore
	env   LookupFunc
}

func (r reader) lookup(env string) (string, bool) {
	if r.env == nil {
		return "", false
	}
	v, ok := r.env(EnvPrefix + env)
	if !ok {
		return "", false
	}
	return strings.TrimSpace(v), true
}

func (r reader) has(key string) bool {
	if r.store == nil {
		return false
	}
	_, ok := r.store.Get(key)
	return ok
}

func (r reader) str(key, env string, dst *string) {
	if r.has(key) {
		*dst = r.store.GetString(key)
	}
	if v, ok := r.lookup(env); ok {
		*dst = v
	}
}

func (r reader) list(key, env string, dst *[]string) {
	if r.has(key) {
		*dst = r.store.GetStringSlice(key)
	}
	if v, ok := r.lookup(env); ok {
		*dst = splitList(v)
	}
}

func (r reader) boolean(key, env string, dst *bool) {
	if r.has(key) {
		*dst = r.store.GetBool(key)
	}
	if v, ok := r.lookup(env); ok {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func (r reader) integer(key, env string, dst *int) {
	if r.has(key) {
		*dst = r.store.GetInt(key)
	}
	if v, ok := r.lookup(env); ok {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func (r reader) float(key, env string, dst *float64) {
	if r.has(key) {
		*dst = r.store.GetFloat(key)
	}
	if v, ok := r.lookup(env); ok {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			*dst = f
		}
	}
}

func (r reader) duration(key, env string, dst *time.Duration) {
	if r.has(key) {
		if d := r.store.GetDuration(key); d > 0 {
			*dst = d
		}
	}
	if v, ok := r.lookup(env); ok {
		if d, err := time.ParseDuration(v); err == nil {
			*dst = d
		}
	}
}

func (r reader) schedule(cfg *domain.SchedulerConfig, taskID, key, env string) {
	task := cfg.GetTaskConfig(taskID)
	r.boolean(key+"_enabled", env+"_ENABLED", &task.Enabled)
	r.str(key+"_schedule", env+"_SCHEDULE", &task.Schedule)
	if cfg.TaskConfigs == nil {
		cfg.TaskConfigs = make(map[string]domain.TaskConfig)
	}
	cfg.TaskConfigs[taskID] = task
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
