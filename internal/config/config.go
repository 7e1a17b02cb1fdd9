package config

import (
	"math"
	"time"
)

// MaxWindowMinutes is the largest window whose length fits in a time.Duration.
const MaxWindowMinutes = math.MaxInt64 / int64(time.Minute)

// DefaultUpstreamURL is the GFG submission-history endpoint.
const DefaultUpstreamURL = "https://practiceapi.geeksforgeeks.org/api/v1/user/problems/submissions/"

// Config is the complete relay configuration. Values resolve in order:
// defaults, optional YAML config file, .env file, process environment.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	Upstream  UpstreamConfig  `mapstructure:"upstream"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Stats     StatsConfig     `mapstructure:"stats"`
}

// ServerConfig contains HTTP listener configuration
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`

	// TrustProxy makes caller identity come from X-Forwarded-For / X-Real-IP.
	// Leave off unless the relay sits behind a proxy that sets them.
	TrustProxy bool `mapstructure:"trust_proxy"`

	CORSAllowedOrigins []string `mapstructure:"cors_allowed_origins"`

	// AdminToken enables the bearer-protected /admin/signal endpoint.
	AdminToken string `mapstructure:"admin_token"`
}

// RateLimitConfig configures the fixed-window gate on the solved route.
type RateLimitConfig struct {
	// WindowMinutes is the window length, also reported as retryAfterMinutes.
	WindowMinutes int `mapstructure:"window"`

	// Max is the number of requests a caller may make per window.
	Max int `mapstructure:"max"`
}

// Window returns the window length as a duration.
func (c RateLimitConfig) Window() time.Duration {
	return time.Duration(c.WindowMinutes) * time.Minute
}

// UpstreamConfig configures calls to the GFG API.
type UpstreamConfig struct {
	URL     string        `mapstructure:"url"`
	Timeout time.Duration `mapstructure:"timeout"`

	// RPS paces outbound calls with a token bucket; 0 disables pacing.
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `mapstructure:"level"`
}

// MetricsConfig contains Prometheus exporter configuration
type MetricsConfig struct {
	Enabled bool `mapstructure:"enabled"`
	Port    int  `mapstructure:"port"`
}

// StatsConfig configures the optional Redis sink for rate-limit decisions.
type StatsConfig struct {
	RedisAddr     string        `mapstructure:"redis_addr"`
	RedisPassword string        `mapstructure:"redis_password"`
	RedisDB       int           `mapstructure:"redis_db"`
	Prefix        string        `mapstructure:"prefix"`
	TTL           time.Duration `mapstructure:"ttl"`
}

// Enabled reports whether a Redis address was configured.
func (c StatsConfig) Enabled() bool {
	return c.RedisAddr != ""
}
