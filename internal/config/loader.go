// Package config loads entryguard configuration through viper and decodes it
// into typed structs.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	gfconfig "github.com/fulmenhq/gofulmen/config"
	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

const (
	// AppName names the XDG config and data directories.
	AppName = "entryguard"

	// EnvPrefix prefixes environment overrides, e.g. ENTRYGUARD_SERVER_PORT.
	EnvPrefix = "ENTRYGUARD"

	// DefaultRankThreshold is the highest acceptable SimilarWeb rank.
	DefaultRankThreshold = 200000
)

var (
	// appConfig holds the current application configuration
	appConfig *Config
	configMu  sync.RWMutex
)

// legacyEnv maps config keys to the unprefixed variables used by existing
// deployments.
var legacyEnv = map[string]string{
	"github.owner":   "OWNER",
	"github.token":   "GITHUB_TOKEN",
	"rank.api_keys":  "SIMILARWEB_API_KEY",
	"rank.threshold": "SIMILARWEB_RANK_LIMIT",
}

// SetDefaults registers every configuration default on v.
func SetDefaults(v *viper.Viper) {
	// Server defaults
	v.SetDefault("server.host", "localhost")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "120s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.profile", "structured")

	// Store defaults
	v.SetDefault("store.driver", "libsql")
	v.SetDefault("store.path", DefaultStorePath())
	v.SetDefault("store.url", "")
	v.SetDefault("store.auth_token", "")

	// Upstream defaults
	v.SetDefault("github.api_url", "https://api.github.com")
	v.SetDefault("github.owner", "2factorauth")
	v.SetDefault("github.token", "")
	v.SetDefault("github.entries_dir", "entries/")
	v.SetDefault("rank.base_url", "https://api.similarweb.com")
	v.SetDefault("rank.api_keys", []string{})
	v.SetDefault("rank.threshold", DefaultRankThreshold)
	v.SetDefault("blocklist.lists", map[string]string{
		"malware": "https://blocklistproject.github.io/Lists/alt-version/malware-nl.txt",
		"piracy":  "https://blocklistproject.github.io/Lists/alt-version/piracy-nl.txt",
		"porn":    "https://blocklistproject.github.io/Lists/alt-version/porn-nl.txt",
	})
	v.SetDefault("blocklist.cache_ttl", "24h")
	v.SetDefault("blocklist.failure_ttl", "1m")
	v.SetDefault("handle.base_url", "https://www.facebook.com")
	v.SetDefault("http.timeout", "10s")
	v.SetDefault("http.user_agent", "2factorauth/twofactorauth (+https://2fa.directory/bots)")

	// Cache defaults
	v.SetDefault("cache.enabled", true)
	v.SetDefault("cache.rank_ttl", "336h")
	v.SetDefault("cache.handle_ttl", "168h")
	v.SetDefault("cache.error_ttl", "0s")

	// Directory routing defaults
	v.SetDefault("directories", map[string]bool{
		"twofactorauth": true,
		"passkeys":      false,
	})

	// Rate limit overrides (optional)
	v.SetDefault("rate_limits", map[string]int{})
	v.SetDefault("rate_limit_margin", 0.9)

	// Metrics defaults
	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	// Health check defaults
	v.SetDefault("health.enabled", true)

	// Worker defaults
	v.SetDefault("workers", 0)
}

// BindEnv enables ENTRYGUARD_* overrides for every known key plus the legacy
// unprefixed variables.
func BindEnv(v *viper.Viper) error {
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	for key, legacy := range legacyEnv {
		prefixed := EnvPrefix + "_" + strings.ToUpper(strings.ReplaceAll(key, ".", "_"))
		if err := v.BindEnv(key, prefixed, legacy); err != nil {
			return fmt.Errorf("bind %s: %w", key, err)
		}
	}
	return nil
}

// Load decodes the settings held by v into a Config and makes it current.
func Load(v *viper.Viper) (*Config, error) {
	if v == nil {
		return nil, errors.New("viper instance is required")
	}

	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
			mapstructure.StringToFloat64HookFunc(),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	settings := v.AllSettings()

	// Endpoint hosts contain the key delimiter, so viper nests them.
	limits, err := flattenCounts("", settings["rate_limits"])
	if err != nil {
		return nil, fmt.Errorf("invalid rate_limits: %w", err)
	}
	delete(settings, "rate_limits")

	if err := decoder.Decode(settings); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	cfg.RateLimits = limits

	cfg.Rank.APIKeys = cleanList(cfg.Rank.APIKeys)
	if strings.TrimSpace(cfg.Store.URL) == "" && strings.TrimSpace(cfg.Store.Path) == "" {
		cfg.Store.Path = DefaultStorePath()
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

// Validate rejects settings no run could succeed with.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.GitHub.Owner) == "" {
		problems = append(problems, "github.owner is required")
	}
	if c.Rank.Threshold < 0 {
		problems = append(problems, "rank.threshold must not be negative")
	}
	if c.RateLimitMargin < 0 || c.RateLimitMargin > 1 {
		problems = append(problems, "rate_limit_margin must be within [0, 1]")
	}
	if c.Workers < 0 {
		problems = append(problems, "workers must not be negative")
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// GetConfig returns the current application configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

// setConfig updates the current configuration (thread-safe)
func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}

// DefaultConfigPath returns the XDG-compliant path to the user config file.
func DefaultConfigPath() string {
	configDir := gfconfig.GetAppConfigDir(AppName)
	if strings.TrimSpace(configDir) == "" {
		return ""
	}
	return filepath.Join(configDir, "config.yaml")
}

// DefaultStorePath returns the XDG-compliant path to the database file.
func DefaultStorePath() string {
	dataDir := gfconfig.GetAppDataDir(AppName)
	if strings.TrimSpace(dataDir) == "" {
		return "./" + AppName + ".db"
	}
	return filepath.Join(dataDir, AppName+".db")
}

func flattenCounts(prefix string, raw any) (map[string]int, error) {
	out := map[string]int{}
	switch value := raw.(type) {
	case nil:
		return out, nil
	case map[string]any:
		for key, nested := range value {
			counts, err := flattenCounts(joinKey(prefix, key), nested)
			if err != nil {
				return nil, err
			}
			for k, v := range counts {
				out[k] = v
			}
		}
		return out, nil
	case map[string]int:
		for key, count := range value {
			out[joinKey(prefix, key)] = count
		}
		return out, nil
	case int:
		out[prefix] = value
	case int64:
		out[prefix] = int(value)
	case float64:
		out[prefix] = int(value)
	case string:
		count, err := strconv.Atoi(strings.TrimSpace(value))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", prefix, err)
		}
		out[prefix] = count
	default:
		return nil, fmt.Errorf("%s: unsupported value %T", prefix, raw)
	}
	if prefix == "" {
		return nil, errors.New("rate limit is missing an endpoint")
	}
	return out, nil
}

func joinKey(prefix, key string) string {
	if prefix == "" {
		return key
	}
	return prefix + "." + key
}

func cleanList(values []string) []string {
	out := make([]string, 0, len(values))
	for _, value := range values {
		if value = strings.TrimSpace(value); value != "" {
			out = append(out, value)
		}
	}
	return out
}
