// Package config resolves relay configuration from defaults, an optional
// config file and environment variables, and validates it before the server
// starts. Environment names are un-prefixed (PORT, RATE_LIMIT_MAX, ...) so
// existing deployments keep working.
package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"

	"github.com/go-viper/mapstructure/v2"
	"github.com/spf13/viper"
)

var (
	appConfig *Config
	configMu  sync.RWMutex
)

// envBindings maps config keys to the environment variables that set them.
var envBindings = map[string]string{
	"server.host":                 "HOST",
	"server.port":                 "PORT",
	"server.read_timeout":         "READ_TIMEOUT",
	"server.write_timeout":        "WRITE_TIMEOUT",
	"server.idle_timeout":         "IDLE_TIMEOUT",
	"server.shutdown_timeout":     "SHUTDOWN_TIMEOUT",
	"server.trust_proxy":          "TRUST_PROXY",
	"server.cors_allowed_origins": "CORS_ALLOWED_ORIGINS",
	"server.admin_token":          "ADMIN_TOKEN",

	"rate_limit.window": "RATE_LIMIT_WINDOW",
	"rate_limit.max":    "RATE_LIMIT_MAX",

	"upstream.url":     "GFG_API_URL",
	"upstream.timeout": "GFG_API_TIMEOUT",
	"upstream.rps":     "GFG_API_RPS",
	"upstream.burst":   "GFG_API_BURST",

	"logging.level": "LOG_LEVEL",

	"metrics.enabled": "METRICS_ENABLED",
	"metrics.port":    "METRICS_PORT",

	"stats.redis_addr":     "RATE_STATS_REDIS_ADDR",
	"stats.redis_password": "RATE_STATS_REDIS_PASSWORD",
	"stats.redis_db":       "RATE_STATS_REDIS_DB",
	"stats.prefix":         "RATE_STATS_PREFIX",
	"stats.ttl":            "RATE_STATS_TTL",
}

// SetDefaults registers default values on v.
func SetDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 5000)
	v.SetDefault("server.read_timeout", "30s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.idle_timeout", "120s")
	v.SetDefault("server.shutdown_timeout", "10s")
	v.SetDefault("server.trust_proxy", false)
	v.SetDefault("server.cors_allowed_origins", []string{"*"})
	v.SetDefault("server.admin_token", "")

	v.SetDefault("rate_limit.window", 15)
	v.SetDefault("rate_limit.max", 3)

	v.SetDefault("upstream.url", DefaultUpstreamURL)
	v.SetDefault("upstream.timeout", "10s")
	v.SetDefault("upstream.rps", 0)
	v.SetDefault("upstream.burst", 1)

	v.SetDefault("logging.level", "info")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)

	v.SetDefault("stats.redis_addr", "")
	v.SetDefault("stats.redis_password", "")
	v.SetDefault("stats.redis_db", 0)
	v.SetDefault("stats.prefix", "solvedrelay:ratelimit")
	v.SetDefault("stats.ttl", "24h")
}

// BindEnv binds every config key to its environment variable.
func BindEnv(v *viper.Viper) error {
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("bind %s: %w", env, err)
		}
	}
	return nil
}

// EnvName returns the environment variable bound to key.
func EnvName(key string) string {
	return envBindings[key]
}

// Load decodes and validates the settings held by v. A value that cannot be
// decoded into its field type (for example RATE_LIMIT_MAX=abc) is an error
// rather than a silent zero.
func Load(v *viper.Viper) (*Config, error) {
	cfg := &Config{}
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           cfg,
		WeaklyTypedInput: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			mapstructure.StringToTimeDurationHookFunc(),
			mapstructure.StringToSliceHookFunc(","),
		),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create decoder: %w", err)
	}

	if err := decoder.Decode(v.AllSettings()); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	cfg.normalize()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	setConfig(cfg)
	return cfg, nil
}

func (c *Config) normalize() {
	origins := make([]string, 0, len(c.Server.CORSAllowedOrigins))
	for _, origin := range c.Server.CORSAllowedOrigins {
		if trimmed := strings.TrimSpace(origin); trimmed != "" {
			origins = append(origins, trimmed)
		}
	}
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	c.Server.CORSAllowedOrigins = origins

	c.Upstream.URL = strings.TrimSpace(c.Upstream.URL)
	c.Stats.RedisAddr = strings.TrimSpace(c.Stats.RedisAddr)
	c.Stats.Prefix = strings.Trim(strings.TrimSpace(c.Stats.Prefix), ":")
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error

	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("PORT must be between 1 and 65535, got %d", c.Server.Port))
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, errors.New("SHUTDOWN_TIMEOUT must be > 0"))
	}
	if c.RateLimit.WindowMinutes < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_WINDOW must be >= 1 minute, got %d", c.RateLimit.WindowMinutes))
	} else if int64(c.RateLimit.WindowMinutes) > MaxWindowMinutes {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_WINDOW must be <= %d minutes, got %d", MaxWindowMinutes, c.RateLimit.WindowMinutes))
	}
	if c.RateLimit.Max < 1 {
		errs = append(errs, fmt.Errorf("RATE_LIMIT_MAX must be >= 1, got %d", c.RateLimit.Max))
	}

	if parsed, err := url.Parse(c.Upstream.URL); err != nil || parsed.Host == "" ||
		(parsed.Scheme != "http" && parsed.Scheme != "https") {
		errs = append(errs, fmt.Errorf("GFG_API_URL must be an absolute http(s) URL, got %q", c.Upstream.URL))
	}
	if c.Upstream.Timeout <= 0 {
		errs = append(errs, errors.New("GFG_API_TIMEOUT must be > 0"))
	}
	if c.Upstream.RPS < 0 {
		errs = append(errs, errors.New("GFG_API_RPS must be >= 0"))
	}
	if c.Upstream.RPS > 0 && c.Upstream.Burst < 1 {
		errs = append(errs, errors.New("GFG_API_BURST must be >= 1 when GFG_API_RPS is set"))
	}

	if c.Metrics.Enabled && (c.Metrics.Port < 0 || c.Metrics.Port > 65535) {
		errs = append(errs, fmt.Errorf("METRICS_PORT must be between 0 and 65535, got %d", c.Metrics.Port))
	}
	if c.Stats.Enabled() && c.Stats.TTL < 0 {
		errs = append(errs, errors.New("RATE_STATS_TTL must be >= 0"))
	}

	return errors.Join(errs...)
}

// GetConfig returns the most recently loaded configuration (thread-safe)
func GetConfig() *Config {
	configMu.RLock()
	defer configMu.RUnlock()
	return appConfig
}

func setConfig(cfg *Config) {
	configMu.Lock()
	defer configMu.Unlock()
	appConfig = cfg
}
