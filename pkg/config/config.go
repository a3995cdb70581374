package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"tempvoice/pkg/tracing"

	"gopkg.in/yaml.v2"
)

type Config struct {
	Server struct {
		Address         string        `yaml:"address"`
		ReadTimeout     time.Duration `yaml:"read_timeout"`
		WriteTimeout    time.Duration `yaml:"write_timeout"`
		ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	} `yaml:"server"`

	Bridge struct {
		Path           string        `yaml:"path"`
		PingInterval   time.Duration `yaml:"ping_interval"`
		ReadTimeout    time.Duration `yaml:"read_timeout"`
		WriteTimeout   time.Duration `yaml:"write_timeout"`
		AllowedOrigins []string      `yaml:"allowed_origins"`
	} `yaml:"bridge"`

	Cooldown struct {
		// WindowSeconds is the minimum spacing between two room creations
		// by the same member.
		WindowSeconds int `yaml:"window_seconds"`
	} `yaml:"cooldown"`

	Interaction struct {
		InputTimeout time.Duration `yaml:"input_timeout"`
	} `yaml:"interaction"`

	Platform struct {
		CommandTimeout time.Duration `yaml:"command_timeout"`
		// GuildCacheTTL of zero disables the guild lookup cache.
		GuildCacheTTL time.Duration `yaml:"guild_cache_ttl"`
	} `yaml:"platform"`

	CircuitBreaker struct {
		Enabled             bool          `yaml:"enabled"`
		FailureThreshold    int           `yaml:"failure_threshold"`
		SuccessThreshold    int           `yaml:"success_threshold"`
		Timeout             time.Duration `yaml:"timeout"`
		MaxRequestsHalfOpen int           `yaml:"max_requests_half_open"`
	} `yaml:"circuit_breaker"`

	Guilds struct {
		Dir string `yaml:"dir"`
	} `yaml:"guilds"`

	Monitoring struct {
		PrometheusEnabled   bool          `yaml:"prometheus_enabled"`
		MetricsPath         string        `yaml:"metrics_path"`
		HealthCheckInterval time.Duration `yaml:"health_check_interval"`
		HealthCheckTimeout  time.Duration `yaml:"health_check_timeout"`
	} `yaml:"monitoring"`

	Logging struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"logging"`

	Redis struct {
		Enabled         bool          `yaml:"enabled"`
		Address         string        `yaml:"address"`
		Password        string        `yaml:"password"`
		DB              int           `yaml:"db"`
		PoolSize        int           `yaml:"pool_size"`
		Channel         string        `yaml:"channel"`
		BatchSize       int           `yaml:"batch_size"`
		FlushInterval   time.Duration `yaml:"flush_interval"`
		ConnectAttempts int           `yaml:"connect_attempts"`
	} `yaml:"redis"`

	Auth struct {
		Enabled   bool          `yaml:"enabled"`
		JWTSecret string        `yaml:"jwt_secret"`
		Issuer    string        `yaml:"issuer"`
		TokenTTL  time.Duration `yaml:"token_ttl"`
	} `yaml:"auth"`

	RateLimiting struct {
		Enabled bool `yaml:"enabled"`

		HTTP struct {
			RequestsPerSecond float64 `yaml:"requests_per_second"`
			Burst             int     `yaml:"burst"`
			MaxConcurrent     int     `yaml:"max_concurrent"` // global concurrent HTTP requests
		} `yaml:"http"`

		Bridge struct {
			MessagesPerSecond float64 `yaml:"messages_per_second"`
			Burst             int     `yaml:"burst"`
		} `yaml:"bridge"`
	} `yaml:"rate_limiting"`

	Tracing tracing.Config `yaml:"tracing"`

	Workers struct {
		Count     int `yaml:"count"`
		QueueSize int `yaml:"queue_size"`
	} `yaml:"workers"`
}

// CooldownWindow returns the cooldown window as a duration.
func (c *Config) CooldownWindow() time.Duration {
	return time.Duration(c.Cooldown.WindowSeconds) * time.Second
}

// Validate checks that configuration values are within acceptable ranges.
func (c *Config) Validate() error {
	// Server
	if c.Server.Address == "" {
		return fmt.Errorf("server.address must not be empty")
	}
	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server.read_timeout must be > 0")
	}
	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server.write_timeout must be > 0")
	}
	if c.Server.ShutdownTimeout <= 0 {
		return fmt.Errorf("server.shutdown_timeout must be > 0")
	}

	// Bridge
	if c.Bridge.Path == "" {
		return fmt.Errorf("bridge.path must not be empty")
	}
	if c.Bridge.PingInterval <= 0 {
		return fmt.Errorf("bridge.ping_interval must be > 0")
	}
	if c.Bridge.ReadTimeout <= c.Bridge.PingInterval {
		return fmt.Errorf("bridge.read_timeout must be > bridge.ping_interval")
	}
	if c.Bridge.WriteTimeout <= 0 {
		return fmt.Errorf("bridge.write_timeout must be > 0")
	}

	// Lifecycle
	if c.Cooldown.WindowSeconds < 0 {
		return fmt.Errorf("cooldown.window_seconds must be >= 0")
	}
	if c.Interaction.InputTimeout <= 0 {
		return fmt.Errorf("interaction.input_timeout must be > 0")
	}
	if c.Platform.CommandTimeout <= 0 {
		return fmt.Errorf("platform.command_timeout must be > 0")
	}
	if c.Platform.GuildCacheTTL < 0 {
		return fmt.Errorf("platform.guild_cache_ttl must be >= 0")
	}
	if c.Guilds.Dir == "" {
		return fmt.Errorf("guilds.dir must not be empty")
	}

	if c.CircuitBreaker.Enabled {
		if c.CircuitBreaker.FailureThreshold <= 0 {
			return fmt.Errorf("circuit_breaker.failure_threshold must be > 0 when enabled")
		}
		if c.CircuitBreaker.SuccessThreshold <= 0 {
			return fmt.Errorf("circuit_breaker.success_threshold must be > 0 when enabled")
		}
		if c.CircuitBreaker.Timeout <= 0 {
			return fmt.Errorf("circuit_breaker.timeout must be > 0 when enabled")
		}
		if c.CircuitBreaker.MaxRequestsHalfOpen <= 0 {
			return fmt.Errorf("circuit_breaker.max_requests_half_open must be > 0 when enabled")
		}
	}

	// Monitoring
	if c.Monitoring.PrometheusEnabled && c.Monitoring.MetricsPath == "" {
		return fmt.Errorf("monitoring.metrics_path must not be empty when prometheus_enabled=true")
	}
	if c.Monitoring.HealthCheckTimeout <= 0 {
		return fmt.Errorf("monitoring.health_check_timeout must be > 0")
	}

	// Logging
	if c.Logging.Level == "" {
		return fmt.Errorf("logging.level must not be empty")
	}
	if c.Logging.Format != "json" && c.Logging.Format != "console" {
		return fmt.Errorf("logging.format must be json or console")
	}

	// Redis
	if c.Redis.Enabled {
		if c.Redis.Address == "" {
			return fmt.Errorf("redis.address must not be empty when redis.enabled=true")
		}
		if c.Redis.PoolSize <= 0 {
			return fmt.Errorf("redis.pool_size must be > 0 when redis.enabled=true")
		}
		if c.Redis.Channel == "" {
			return fmt.Errorf("redis.channel must not be empty when redis.enabled=true")
		}
		if c.Redis.ConnectAttempts <= 0 {
			return fmt.Errorf("redis.connect_attempts must be > 0")
		}
		if c.Redis.BatchSize <= 0 || c.Redis.FlushInterval <= 0 {
			return fmt.Errorf("redis.batch_size and redis.flush_interval must be > 0 when redis.enabled=true")
		}
	}

	// Auth
	if c.Auth.Enabled {
		if c.Auth.JWTSecret == "" {
			return fmt.Errorf("auth.jwt_secret must not be empty when auth.enabled=true")
		}
		if c.Auth.TokenTTL <= 0 {
			return fmt.Errorf("auth.token_ttl must be > 0 when auth.enabled=true")
		}
	}

	// Rate limiting
	if c.RateLimiting.Enabled {
		if c.RateLimiting.HTTP.RequestsPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.http.requests_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.Burst <= 0 {
			return fmt.Errorf("rate_limiting.http.burst must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.HTTP.MaxConcurrent < 0 {
			return fmt.Errorf("rate_limiting.http.max_concurrent must be >= 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Bridge.MessagesPerSecond <= 0 {
			return fmt.Errorf("rate_limiting.bridge.messages_per_second must be > 0 when rate limiting is enabled")
		}
		if c.RateLimiting.Bridge.Burst <= 0 {
			return fmt.Errorf("rate_limiting.bridge.burst must be > 0 when rate limiting is enabled")
		}
	}

	// Tracing
	if c.Tracing.Enabled {
		if c.Tracing.JaegerURL == "" {
			return fmt.Errorf("tracing.jaeger_url must not be empty when tracing.enabled=true")
		}
		if c.Tracing.SampleRate < 0 || c.Tracing.SampleRate > 1 {
			return fmt.Errorf("tracing.sample_rate must be within [0, 1]")
		}
	}

	// Workers
	if c.Workers.Count <= 0 {
		return fmt.Errorf("workers.count must be > 0")
	}
	if c.Workers.QueueSize <= 0 {
		return fmt.Errorf("workers.queue_size must be > 0")
	}

	return nil
}

// Load reads configuration from YAML file, applies defaults and env overrides.
func Load(configPath string) (*Config, error) {
	// If file does not exist, fall back to defaults
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg := DefaultConfig()
		if err := cfg.applyEnvOverrides(); err != nil {
			return nil, err
		}
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("invalid configuration: %w", err)
		}
		return cfg, nil
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", configPath, err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config yaml: %w", err)
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// DefaultConfig returns configuration with sane defaults.
func DefaultConfig() *Config {
	cfg := &Config{}

	cfg.Server.Address = ":8080"
	cfg.Server.ReadTimeout = 30 * time.Second
	cfg.Server.WriteTimeout = 30 * time.Second
	cfg.Server.ShutdownTimeout = 30 * time.Second

	cfg.Bridge.Path = "/bridge"
	cfg.Bridge.PingInterval = 30 * time.Second
	cfg.Bridge.ReadTimeout = 60 * time.Second
	cfg.Bridge.WriteTimeout = 10 * time.Second

	cfg.Cooldown.WindowSeconds = 5
	cfg.Interaction.InputTimeout = 30 * time.Second
	cfg.Platform.CommandTimeout = 10 * time.Second
	cfg.Platform.GuildCacheTTL = 30 * time.Second

	cfg.CircuitBreaker.Enabled = true
	cfg.CircuitBreaker.FailureThreshold = 5
	cfg.CircuitBreaker.SuccessThreshold = 2
	cfg.CircuitBreaker.Timeout = 30 * time.Second
	cfg.CircuitBreaker.MaxRequestsHalfOpen = 3

	cfg.Guilds.Dir = "configs/servers"

	cfg.Monitoring.PrometheusEnabled = true
	cfg.Monitoring.MetricsPath = "/metrics"
	cfg.Monitoring.HealthCheckInterval = 30 * time.Second
	cfg.Monitoring.HealthCheckTimeout = 2 * time.Second

	cfg.Logging.Level = "info"
	cfg.Logging.Format = "json"

	cfg.Redis.Enabled = false
	cfg.Redis.Address = "localhost:6379"
	cfg.Redis.DB = 0
	cfg.Redis.PoolSize = 10
	cfg.Redis.Channel = "tempvoice:events"
	cfg.Redis.BatchSize = 50
	cfg.Redis.FlushInterval = time.Second
	cfg.Redis.ConnectAttempts = 5

	cfg.Auth.Enabled = false
	cfg.Auth.JWTSecret = "change-me-in-production"
	cfg.Auth.Issuer = "tempvoice"
	cfg.Auth.TokenTTL = 24 * time.Hour

	// Rate limiting defaults (disabled by default)
	cfg.RateLimiting.Enabled = false
	cfg.RateLimiting.HTTP.RequestsPerSecond = 50
	cfg.RateLimiting.HTTP.Burst = 100
	cfg.RateLimiting.HTTP.MaxConcurrent = 0
	cfg.RateLimiting.Bridge.MessagesPerSecond = 200
	cfg.RateLimiting.Bridge.Burst = 400

	cfg.Tracing = tracing.DefaultConfig()

	cfg.Workers.Count = 8
	cfg.Workers.QueueSize = 256

	return cfg
}

func (c *Config) applyEnvOverrides() error {
	if addr := os.Getenv("TEMPVOICE_SERVER_ADDRESS"); addr != "" {
		c.Server.Address = addr
	}
	if level := os.Getenv("TEMPVOICE_LOG_LEVEL"); level != "" {
		c.Logging.Level = level
	}
	if format := os.Getenv("TEMPVOICE_LOG_FORMAT"); format != "" {
		c.Logging.Format = format
	}
	if dir := os.Getenv("TEMPVOICE_GUILDS_DIR"); dir != "" {
		c.Guilds.Dir = dir
	}
	if secret := os.Getenv("TEMPVOICE_JWT_SECRET"); secret != "" {
		c.Auth.JWTSecret = secret
	}
	if addr := os.Getenv("TEMPVOICE_REDIS_ADDRESS"); addr != "" {
		c.Redis.Address = addr
	}
	if password := os.Getenv("TEMPVOICE_REDIS_PASSWORD"); password != "" {
		c.Redis.Password = password
	}
	if window := os.Getenv("TEMPVOICE_COOLDOWN_SECONDS"); window != "" {
		seconds, err := strconv.Atoi(window)
		if err != nil {
			return fmt.Errorf("invalid TEMPVOICE_COOLDOWN_SECONDS %q: %w", window, err)
		}
		c.Cooldown.WindowSeconds = seconds
	}
	return nil
}
