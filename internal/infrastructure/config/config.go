package config

import (
	"fmt"
	"net/url"
	"time"

	"github.com/kelseyhightower/envconfig"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig
	Logging   LogConfig
	RateLimit RateLimitConfig
	Registry  RegistryConfig
	Proxy     ProxyConfig
	Delivery  DeliveryConfig
	Probe     ProbeConfig
	Telemetry TelemetryConfig
	Reporting ReportingConfig
}

// ServerConfig holds HTTP server configuration.
type ServerConfig struct {
	Port         string   `envconfig:"PORT" default:"8000"`
	Host         string   `envconfig:"HOST" default:"0.0.0.0"`
	AllowOrigins []string `envconfig:"CORS_ORIGINS" default:"*"`
}

// LogConfig holds logging configuration.
type LogConfig struct {
	Level       string `envconfig:"LOG_LEVEL" default:"info"`
	Development bool   `envconfig:"LOG_DEV" default:"false"`
}

// RateLimitConfig holds relay rate limiting configuration.
type RateLimitConfig struct {
	RequestsPerSecond int  `envconfig:"RATE_LIMIT_RPS" default:"50"`
	Burst             int  `envconfig:"RATE_LIMIT_BURST" default:"100"`
	Enabled           bool `envconfig:"RATE_LIMIT_ENABLED" default:"true"`
}

// RegistryConfig points at the target registry file.
type RegistryConfig struct {
	Path string `envconfig:"REGISTRY_PATH" default:"targets.yaml"`
}

// ProxyConfig bounds the origin fetch.
type ProxyConfig struct {
	Timeout  time.Duration `envconfig:"PROXY_TIMEOUT" default:"10s"`
	MaxBytes int64         `envconfig:"PROXY_MAX_BYTES" default:"5242880"`
}

// DeliveryConfig holds the per-view wait bounds.
type DeliveryConfig struct {
	ProxyTimeout time.Duration `envconfig:"DELIVERY_PROXY_TIMEOUT" default:"7s"`
	EmbedTimeout time.Duration `envconfig:"DELIVERY_EMBED_TIMEOUT" default:"5s"`
}

// ProbeConfig bounds the embedding viability probe.
type ProbeConfig struct {
	Timeout time.Duration `envconfig:"PROBE_TIMEOUT" default:"3s"`
	// EmbedderOrigin is the public origin the demo is served from, matched
	// against a target's frame-ancestors list.
	EmbedderOrigin string `envconfig:"PROBE_EMBEDDER_ORIGIN" default:""`
}

// TelemetryConfig selects the event log backend.
type TelemetryConfig struct {
	Backend   string `envconfig:"TELEMETRY_BACKEND" default:"file"`
	Dir       string `envconfig:"TELEMETRY_DIR" default:"/tmp/subsights-demo"`
	Key       string `envconfig:"TELEMETRY_KEY" default:"subsights:demo-events"`
	Capacity  int    `envconfig:"TELEMETRY_CAPACITY" default:"100"`
	RedisAddr string `envconfig:"REDIS_ADDR" default:"localhost:6379"`
	RedisDB   int    `envconfig:"REDIS_DB" default:"0"`
}

// ReportingConfig enables external reporting sinks. Empty values disable a sink.
type ReportingConfig struct {
	NATSURL     string `envconfig:"NATS_URL" default:""`
	NATSSubject string `envconfig:"NATS_SUBJECT" default:"demo.events"`
	WebhookURL  string `envconfig:"REPORT_WEBHOOK_URL" default:""`
}

// Load loads configuration from environment variables.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// LoadOrDefault loads configuration from environment or returns default.
func LoadOrDefault() *Config {
	cfg, err := Load()
	if err != nil {
		return Default()
	}
	return cfg
}

// Validate rejects values the orchestrator cannot run with.
func (c *Config) Validate() error {
	switch c.Telemetry.Backend {
	case "memory", "file", "redis":
	default:
		return fmt.Errorf("invalid TELEMETRY_BACKEND %q (must be memory, file, or redis)", c.Telemetry.Backend)
	}
	if c.Telemetry.Capacity <= 0 {
		return fmt.Errorf("TELEMETRY_CAPACITY must be positive, got %d", c.Telemetry.Capacity)
	}
	if c.Proxy.Timeout <= 0 || c.Delivery.ProxyTimeout <= 0 || c.Delivery.EmbedTimeout <= 0 || c.Probe.Timeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if o := c.Probe.EmbedderOrigin; o != "" {
		u, err := url.Parse(o)
		if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") || (u.Path != "" && u.Path != "/") {
			return fmt.Errorf("PROBE_EMBEDDER_ORIGIN must be a scheme://host origin, got %q", o)
		}
	}
	if c.Proxy.MaxBytes <= 0 {
		return fmt.Errorf("PROXY_MAX_BYTES must be positive, got %d", c.Proxy.MaxBytes)
	}
	return nil
}

// Default returns default configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:         "8000",
			Host:         "0.0.0.0",
			AllowOrigins: []string{"*"},
		},
		Logging: LogConfig{
			Level:       "info",
			Development: false,
		},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 50,
			Burst:             100,
			Enabled:           true,
		},
		Registry: RegistryConfig{
			Path: "targets.yaml",
		},
		Proxy: ProxyConfig{
			Timeout:  10 * time.Second,
			MaxBytes: 5 << 20,
		},
		Delivery: DeliveryConfig{
			ProxyTimeout: 7 * time.Second,
			EmbedTimeout: 5 * time.Second,
		},
		Probe: ProbeConfig{
			Timeout: 3 * time.Second,
		},
		Telemetry: TelemetryConfig{
			Backend:   "file",
			Dir:       "/tmp/subsights-demo",
			Key:       "subsights:demo-events",
			Capacity:  100,
			RedisAddr: "localhost:6379",
		},
		Reporting: ReportingConfig{
			NATSSubject: "demo.events",
		},
	}
}
