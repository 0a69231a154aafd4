package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	cfg := Default()

	assert.Equal(t, "8000", cfg.Server.Port)
	assert.Equal(t, "0.0.0.0", cfg.Server.Host)
	assert.Equal(t, []string{"*"}, cfg.Server.AllowOrigins)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.False(t, cfg.Logging.Development)

	assert.Equal(t, 10*time.Second, cfg.Proxy.Timeout)
	assert.Equal(t, 7*time.Second, cfg.Delivery.ProxyTimeout)
	assert.Equal(t, 5*time.Second, cfg.Delivery.EmbedTimeout)
	assert.Equal(t, 3*time.Second, cfg.Probe.Timeout)

	assert.Equal(t, "file", cfg.Telemetry.Backend)
	assert.Equal(t, 100, cfg.Telemetry.Capacity)
	assert.Equal(t, "subsights:demo-events", cfg.Telemetry.Key)

	require.NoError(t, cfg.Validate())
}

func TestLoadOrDefaultReturnsConfig(t *testing.T) {
	cfg := LoadOrDefault()

	require.NotNil(t, cfg)
	assert.Equal(t, 100, cfg.Telemetry.Capacity)
}

func TestLoadWithEnvironmentVariables(t *testing.T) {
	envVars := map[string]string{
		"PORT":                   "9000",
		"LOG_DEV":                "true",
		"RATE_LIMIT_RPS":         "5",
		"REGISTRY_PATH":          "/etc/demo/targets.toml",
		"PROXY_TIMEOUT":          "2s",
		"DELIVERY_PROXY_TIMEOUT": "1500ms",
		"TELEMETRY_BACKEND":      "redis",
		"REDIS_ADDR":             "redis:6379",
		"NATS_URL":               "nats://nats:4222",
		"PROBE_EMBEDDER_ORIGIN":  "https://demo.subsights.com",
	}
	for key, value := range envVars {
		t.Setenv(key, value)
	}

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "9000", cfg.Server.Port)
	assert.True(t, cfg.Logging.Development)
	assert.Equal(t, 5, cfg.RateLimit.RequestsPerSecond)
	assert.Equal(t, "/etc/demo/targets.toml", cfg.Registry.Path)
	assert.Equal(t, 2*time.Second, cfg.Proxy.Timeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.Delivery.ProxyTimeout)
	assert.Equal(t, "redis", cfg.Telemetry.Backend)
	assert.Equal(t, "redis:6379", cfg.Telemetry.RedisAddr)
	assert.Equal(t, "nats://nats:4222", cfg.Reporting.NATSURL)
	assert.Equal(t, "https://demo.subsights.com", cfg.Probe.EmbedderOrigin)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{"defaults", func(*Config) {}, false},
		{"unknown backend", func(c *Config) { c.Telemetry.Backend = "sqlite" }, true},
		{"zero capacity", func(c *Config) { c.Telemetry.Capacity = 0 }, true},
		{"zero embed timeout", func(c *Config) { c.Delivery.EmbedTimeout = 0 }, true},
		{"negative body cap", func(c *Config) { c.Proxy.MaxBytes = -1 }, true},
		{"embedder origin", func(c *Config) { c.Probe.EmbedderOrigin = "https://demo.subsights.com" }, false},
		{"embedder origin with path", func(c *Config) { c.Probe.EmbedderOrigin = "https://demo.subsights.com/app" }, true},
		{"embedder without scheme", func(c *Config) { c.Probe.EmbedderOrigin = "demo.subsights.com" }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(cfg)
			err := cfg.Validate()
			if tt.wantErr {
				assert.Error(t, err)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestLoadRejectsInvalidBackend(t *testing.T) {
	t.Setenv("TELEMETRY_BACKEND", "postgres")

	_, err := Load()
	assert.Error(t, err)

	cfg := LoadOrDefault()
	assert.Equal(t, "file", cfg.Telemetry.Backend)
}
