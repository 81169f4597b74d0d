package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix prefixes environment overrides, e.g. WPBS_BUNNY_ACCESS_KEY
const EnvPrefix = "WPBS"

// Load loads the configuration from file and environment. An explicit
// configPath must exist; without one a missing config file is fine and
// defaults plus environment are used.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	// Set default values
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		// Look for config in standard locations
		v.SetConfigName("config")
		v.SetConfigType("yaml")

		// Check current directory first
		v.AddConfigPath(".")

		// Check home directory
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".wpbs"))
		}

		// Check /etc
		v.AddConfigPath("/etc/wpbs/")
	}

	// Read config file
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	// Validate configuration
	if err := validate(&cfg); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values. Every key that may come
// from the environment needs a default so AutomaticEnv can see it.
func setDefaults(v *viper.Viper) {
	// Bunny defaults
	v.SetDefault("bunny.access_key", "")
	v.SetDefault("bunny.library_id", "")
	v.SetDefault("bunny.auth", "access_key")
	v.SetDefault("bunny.stream_url", "https://video.bunnycdn.com/")
	v.SetDefault("bunny.account_url", "https://api.bunny.net/")

	// Retry and transport defaults
	v.SetDefault("retry.max_attempts", 3)
	v.SetDefault("retry.base_delay", "1s")
	v.SetDefault("http.timeout", "30s")
	v.SetDefault("http.upload_timeout", "20s")
	v.SetDefault("rate_limit.rps", 0)
	v.SetDefault("rate_limit.burst", 1)
	v.SetDefault("breaker.enabled", false)
	v.SetDefault("breaker.failure_ratio", 0.6)
	v.SetDefault("breaker.min_requests", 10)
	v.SetDefault("breaker.timeout", "1m")

	// Collection defaults
	v.SetDefault("collections.prefix", "wpbs_")
	v.SetDefault("collections.lock_ttl", "10s")

	// Storage defaults
	v.SetDefault("transient.backend", "memory")
	v.SetDefault("transient.redis.addr", "localhost:6379")
	v.SetDefault("transient.redis.password", "")
	v.SetDefault("transient.redis.db", 0)
	v.SetDefault("transient.redis.prefix", "wpbs:")
	v.SetDefault("transient.badger.path", "")
	v.SetDefault("links.backend", "memory")
	v.SetDefault("links.postgres.dsn", "")
	v.SetDefault("metadata.backend", "memory")
	v.SetDefault("metadata.badger.path", "")

	// Offload defaults
	v.SetDefault("offload.delete_local", false)
	v.SetDefault("offload.poll_interval", "5s")
	v.SetDefault("offload.concurrency", 5)

	// Logging defaults
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "console")
	v.SetDefault("logging.color", true)

	v.SetDefault("metrics.textfile", "")
}

// validate checks if the configuration is valid
func validate(cfg *Config) error {
	if cfg.Bunny.AccessKey == "" || cfg.Bunny.AccessKey == "your-access-key-here" {
		return fmt.Errorf("bunny.access_key must be set to a valid access key")
	}

	if cfg.Bunny.Auth != "access_key" && cfg.Bunny.Auth != "bearer" {
		return fmt.Errorf("invalid bunny.auth: %s (must be 'access_key' or 'bearer')", cfg.Bunny.Auth)
	}

	if cfg.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry.max_attempts must be at least 1")
	}
	if cfg.Retry.BaseDelay <= 0 {
		return fmt.Errorf("retry.base_delay must be positive")
	}
	if cfg.RateLimit.RPS < 0 {
		return fmt.Errorf("rate_limit.rps must not be negative")
	}

	if cfg.Breaker.Enabled && (cfg.Breaker.FailureRatio <= 0 || cfg.Breaker.FailureRatio > 1) {
		return fmt.Errorf("breaker.failure_ratio must be in (0, 1]")
	}

	if cfg.Collections.Prefix == "" {
		return fmt.Errorf("collections.prefix is required")
	}
	if cfg.Collections.LockTTL <= 0 {
		return fmt.Errorf("collections.lock_ttl must be positive")
	}

	switch cfg.Transient.Backend {
	case "memory", "badger":
	case "redis":
		if cfg.Transient.Redis.Addr == "" {
			return fmt.Errorf("transient.redis.addr is required for the redis backend")
		}
	default:
		return fmt.Errorf("invalid transient.backend: %s", cfg.Transient.Backend)
	}

	switch cfg.Links.Backend {
	case "memory":
	case "postgres":
		if cfg.Links.Postgres.DSN == "" {
			return fmt.Errorf("links.postgres.dsn is required for the postgres backend")
		}
	default:
		return fmt.Errorf("invalid links.backend: %s", cfg.Links.Backend)
	}

	switch cfg.Metadata.Backend {
	case "memory", "badger":
	default:
		return fmt.Errorf("invalid metadata.backend: %s", cfg.Metadata.Backend)
	}

	for name, expression := range cfg.Filters {
		if strings.TrimSpace(expression) == "" {
			return fmt.Errorf("filter %q has an empty expression", name)
		}
	}

	// Validate logging level
	validLevels := map[string]bool{
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[cfg.Logging.Level] {
		return fmt.Errorf("invalid logging level: %s", cfg.Logging.Level)
	}

	// Validate logging format
	validFormats := map[string]bool{
		"console": true,
		"json":    true,
	}
	if !validFormats[cfg.Logging.Format] {
		return fmt.Errorf("invalid logging format: %s", cfg.Logging.Format)
	}

	return nil
}
