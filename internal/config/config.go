package config

import (
	"time"
)

// Config represents the complete application configuration. Values are
// layered by viper: built-in defaults, an optional YAML file, then
// ENTRYGUARD_* environment variables.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Store     StoreConfig     `mapstructure:"store"`
	GitHub    GitHubConfig    `mapstructure:"github"`
	Rank      RankConfig      `mapstructure:"rank"`
	Blocklist BlocklistConfig `mapstructure:"blocklist"`
	Handle    HandleConfig    `mapstructure:"handle"`
	Cache     CacheConfig     `mapstructure:"cache"`
	HTTP      HTTPConfig      `mapstructure:"http"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Health    HealthConfig    `mapstructure:"health"`

	// Directories maps a directory name in the request path to whether it is
	// validated. Disabled directories answer 501; unknown ones 404.
	Directories map[string]bool `mapstructure:"directories"`

	// Workers bounds the entries validated concurrently; zero is unbounded.
	Workers int `mapstructure:"workers"`

	RateLimits      map[string]int `mapstructure:"rate_limits"`
	RateLimitMargin float64        `mapstructure:"rate_limit_margin"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level controls the minimum log level
	// Valid values: trace, debug, info, warn, error
	Level string `mapstructure:"level"`

	// Profile selects the logging complexity level
	// Valid values: SIMPLE, STRUCTURED
	Profile string `mapstructure:"profile"`
}

// StoreConfig contains database configuration for libsql/Turso
type StoreConfig struct {
	Driver    string `mapstructure:"driver"`
	Path      string `mapstructure:"path"`
	URL       string `mapstructure:"url"`
	AuthToken string `mapstructure:"auth_token"`
}

// GitHubConfig locates the directory repository and its entries.
type GitHubConfig struct {
	APIURL     string `mapstructure:"api_url"`
	Owner      string `mapstructure:"owner"`
	Token      string `mapstructure:"token"`
	EntriesDir string `mapstructure:"entries_dir"`
}

// RankConfig configures the SimilarWeb rank check.
type RankConfig struct {
	BaseURL   string   `mapstructure:"base_url"`
	APIKeys   []string `mapstructure:"api_keys"`
	Threshold int64    `mapstructure:"threshold"`
}

// BlocklistConfig configures the categorized domain lists.
type BlocklistConfig struct {
	Lists      map[string]string `mapstructure:"lists"`
	CacheTTL   time.Duration     `mapstructure:"cache_ttl"`
	FailureTTL time.Duration     `mapstructure:"failure_ttl"`
}

// HandleConfig configures the contact handle check.
type HandleConfig struct {
	BaseURL string `mapstructure:"base_url"`
}

// CacheConfig contains upstream response cache TTLs.
type CacheConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	RankTTL   time.Duration `mapstructure:"rank_ttl"`
	HandleTTL time.Duration `mapstructure:"handle_ttl"`
	ErrorTTL  time.Duration `mapstructure:"error_ttl"`
}

// HTTPConfig applies to every outbound upstream request.
type HTTPConfig struct {
	Timeout   time.Duration `mapstructure:"timeout"`
	UserAgent string        `mapstructure:"user_agent"`
}

// MetricsConfig contains Prometheus metrics configuration
type MetricsConfig struct {
	// Enabled controls whether metrics are exposed
	Enabled bool `mapstructure:"enabled"`

	// Port is the dedicated metrics endpoint port (Prometheus format)
	Port int `mapstructure:"port"`
}

// HealthConfig contains health check configuration
type HealthConfig struct {
	// Enabled controls whether health endpoints are exposed
	Enabled bool `mapstructure:"enabled"`
}

// DirectoryEnabled reports whether name is known and whether it is enabled.
func (c *Config) DirectoryEnabled(name string) (enabled bool, known bool) {
	if c == nil {
		return false, false
	}
	enabled, known = c.Directories[name]
	return enabled, known
}
