package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

// helper to build a minimal valid config that can be tweaked in tests.
func validBaseConfig() *Config {
	cfg := DefaultConfig()
	cfg.RateLimiting.Enabled = true
	cfg.RateLimiting.HTTP.RequestsPerSecond = 10
	cfg.RateLimiting.HTTP.Burst = 20
	cfg.RateLimiting.HTTP.MaxConcurrent = 5
	cfg.RateLimiting.Bridge.MessagesPerSecond = 50
	cfg.RateLimiting.Bridge.Burst = 100
	return cfg
}

func TestDefaultConfig_IsValid(t *testing.T) {
	cfg := DefaultConfig()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected default config to be valid, got: %v", err)
	}
	if got := cfg.CooldownWindow(); got != 5*time.Second {
		t.Fatalf("expected 5s cooldown window, got %v", got)
	}
	if cfg.Guilds.Dir != "configs/servers" {
		t.Fatalf("unexpected guilds dir %q", cfg.Guilds.Dir)
	}
}

func TestValidate_RateLimitingDisabled_AllowsZeroValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 0
	cfg.RateLimiting.HTTP.Burst = 0
	cfg.RateLimiting.HTTP.MaxConcurrent = 0
	cfg.RateLimiting.Bridge.MessagesPerSecond = 0
	cfg.RateLimiting.Bridge.Burst = 0

	if err := cfg.Validate(); err != nil {
		t.Fatalf("expected config to be valid when rate limiting disabled, got error: %v", err)
	}
}

func TestValidate_InvalidValues(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Config)
	}{
		{
			name:   "http rps must be > 0",
			mutate: func(c *Config) { c.RateLimiting.HTTP.RequestsPerSecond = 0 },
		},
		{
			name:   "http burst must be > 0",
			mutate: func(c *Config) { c.RateLimiting.HTTP.Burst = 0 },
		},
		{
			name:   "http max concurrent must be >= 0",
			mutate: func(c *Config) { c.RateLimiting.HTTP.MaxConcurrent = -1 },
		},
		{
			name:   "bridge messages per second must be > 0",
			mutate: func(c *Config) { c.RateLimiting.Bridge.MessagesPerSecond = 0 },
		},
		{
			name:   "bridge burst must be > 0",
			mutate: func(c *Config) { c.RateLimiting.Bridge.Burst = 0 },
		},
		{
			name:   "negative cooldown",
			mutate: func(c *Config) { c.Cooldown.WindowSeconds = -1 },
		},
		{
			name:   "read timeout not above ping interval",
			mutate: func(c *Config) { c.Bridge.ReadTimeout = c.Bridge.PingInterval },
		},
		{
			name:   "empty guilds dir",
			mutate: func(c *Config) { c.Guilds.Dir = "" },
		},
		{
			name:   "zero input timeout",
			mutate: func(c *Config) { c.Interaction.InputTimeout = 0 },
		},
		{
			name:   "zero command timeout",
			mutate: func(c *Config) { c.Platform.CommandTimeout = 0 },
		},
		{
			name:   "negative guild cache ttl",
			mutate: func(c *Config) { c.Platform.GuildCacheTTL = -time.Second },
		},
		{
			name: "redis enabled without connect attempts",
			mutate: func(c *Config) {
				c.Redis.Enabled = true
				c.Redis.ConnectAttempts = 0
			},
		},
		{
			name:   "unknown log format",
			mutate: func(c *Config) { c.Logging.Format = "xml" },
		},
		{
			name: "auth enabled without secret",
			mutate: func(c *Config) {
				c.Auth.Enabled = true
				c.Auth.JWTSecret = ""
			},
		},
		{
			name: "redis enabled without channel",
			mutate: func(c *Config) {
				c.Redis.Enabled = true
				c.Redis.Channel = ""
			},
		},
		{
			name:   "breaker enabled with zero threshold",
			mutate: func(c *Config) { c.CircuitBreaker.FailureThreshold = 0 },
		},
		{
			name: "tracing sample rate out of range",
			mutate: func(c *Config) {
				c.Tracing.Enabled = true
				c.Tracing.SampleRate = 1.5
			},
		},
		{
			name:   "no workers",
			mutate: func(c *Config) { c.Workers.Count = 0 },
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := validBaseConfig()
			tc.mutate(cfg)

			if err := cfg.Validate(); err == nil {
				t.Fatalf("expected validation error for case %q, got nil", tc.name)
			}
		})
	}
}

func TestLoad_MissingFileFallsBackToDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "missing.yaml"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Address != ":8080" {
		t.Fatalf("expected default address, got %q", cfg.Server.Address)
	}
}

func TestLoad_FileAndEnvOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	data := []byte(`
server:
  address: ":9000"
cooldown:
  window_seconds: 12
guilds:
  dir: /etc/tempvoice/servers
logging:
  level: debug
  format: console
`)
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("write config: %v", err)
	}

	t.Setenv("TEMPVOICE_LOG_LEVEL", "warn")
	t.Setenv("TEMPVOICE_COOLDOWN_SECONDS", "3")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Server.Address != ":9000" {
		t.Fatalf("expected address from file, got %q", cfg.Server.Address)
	}
	if cfg.Guilds.Dir != "/etc/tempvoice/servers" {
		t.Fatalf("expected guilds dir from file, got %q", cfg.Guilds.Dir)
	}
	if cfg.Logging.Level != "warn" {
		t.Fatalf("expected env to override log level, got %q", cfg.Logging.Level)
	}
	if cfg.Logging.Format != "console" {
		t.Fatalf("expected console format, got %q", cfg.Logging.Format)
	}
	if cfg.CooldownWindow() != 3*time.Second {
		t.Fatalf("expected env cooldown of 3s, got %v", cfg.CooldownWindow())
	}
	// Untouched sections keep their defaults.
	if cfg.Platform.CommandTimeout != 10*time.Second {
		t.Fatalf("expected default command timeout, got %v", cfg.Platform.CommandTimeout)
	}
}

func TestLoad_InvalidCooldownEnv(t *testing.T) {
	t.Setenv("TEMPVOICE_COOLDOWN_SECONDS", "soon")
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("expected error for non-numeric cooldown override")
	}
}
