package driven

import "time"

// ConfigStore is a flat key/value view over the service configuration file.
// Keys use dot notation for nested tables, e.g. "cipher.key" or
// "platforms.linkedin.client_id".
type ConfigStore interface {
	// Get returns the raw value and whether the key exists.
	Get(key string) (any, bool)

	// GetString returns "" when the key is missing or not a string.
	GetString(key string) string

	// GetInt returns 0 when the key is missing or not an integer.
	GetInt(key string) int

	// GetFloat accepts integer or float values; 0 when missing.
	GetFloat(key string) float64

	// GetBool returns false when the key is missing or not a boolean.
	GetBool(key string) bool

	// GetDuration parses a Go duration string ("10m", "3s"). Missing or
	// malformed values return 0.
	GetDuration(key string) time.Duration

	// GetStringSlice returns nil when the key is missing or not an array.
	GetStringSlice(key string) []string

	// Set stores a value and persists the file.
	Set(key string, value any) error

	// Save persists the current configuration.
	Save() error

	// Load re-reads the configuration file.
	Load() error

	// Path returns the configuration file path.
	Path() string
}
