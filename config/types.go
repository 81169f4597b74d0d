package config

import "time"

// Config represents the complete configuration structure
type Config struct {
	Bunny       BunnyConfig       `mapstructure:"bunny"`
	Retry       RetryConfig       `mapstructure:"retry"`
	HTTP        HTTPConfig        `mapstructure:"http"`
	RateLimit   RateLimitConfig   `mapstructure:"rate_limit"`
	Breaker     BreakerConfig     `mapstructure:"breaker"`
	Collections CollectionsConfig `mapstructure:"collections"`
	Transient   TransientConfig   `mapstructure:"transient"`
	Links       LinksConfig       `mapstructure:"links"`
	Metadata    MetadataConfig    `mapstructure:"metadata"`
	Offload     OffloadConfig     `mapstructure:"offload"`
	Filters     FilterConfig      `mapstructure:"filters"`
	Logging     LoggingConfig     `mapstructure:"logging"`
	Metrics     MetricsConfig     `mapstructure:"metrics"`
}

// BunnyConfig holds Bunny API credentials and endpoints
type BunnyConfig struct {
	AccessKey  string `mapstructure:"access_key"`
	LibraryID  string `mapstructure:"library_id"`
	Auth       string `mapstructure:"auth"` // "access_key" or "bearer"
	StreamURL  string `mapstructure:"stream_url"`
	AccountURL string `mapstructure:"account_url"`
}

// RetryConfig controls the retry coordinator
type RetryConfig struct {
	MaxAttempts int           `mapstructure:"max_attempts"`
	BaseDelay   time.Duration `mapstructure:"base_delay"`
}

// HTTPConfig contains per-attempt timeouts
type HTTPConfig struct {
	Timeout       time.Duration `mapstructure:"timeout"`
	UploadTimeout time.Duration `mapstructure:"upload_timeout"`
}

// RateLimitConfig is a client-side token bucket; zero rps disables it
type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

// BreakerConfig configures the optional circuit breaker
type BreakerConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	FailureRatio float64       `mapstructure:"failure_ratio"`
	MinRequests  uint32        `mapstructure:"min_requests"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// CollectionsConfig controls per-user collection naming and locking
type CollectionsConfig struct {
	Prefix  string        `mapstructure:"prefix"`
	LockTTL time.Duration `mapstructure:"lock_ttl"`
}

// TransientConfig selects where locks and the rate-limit marker live
type TransientConfig struct {
	Backend string       `mapstructure:"backend"` // memory, redis or badger
	Redis   RedisConfig  `mapstructure:"redis"`
	Badger  BadgerConfig `mapstructure:"badger"`
}

// RedisConfig holds Redis connection details
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Prefix   string `mapstructure:"prefix"`
}

// BadgerConfig holds the on-disk path of a Badger database
type BadgerConfig struct {
	Path string `mapstructure:"path"`
}

// LinksConfig selects the user to collection link store
type LinksConfig struct {
	Backend  string         `mapstructure:"backend"` // memory or postgres
	Postgres PostgresConfig `mapstructure:"postgres"`
}

// PostgresConfig holds the connection string for the link table
type PostgresConfig struct {
	DSN string `mapstructure:"dsn"`
}

// MetadataConfig selects the attachment metadata store
type MetadataConfig struct {
	Backend string       `mapstructure:"backend"` // memory or badger
	Badger  BadgerConfig `mapstructure:"badger"`
}

// OffloadConfig contains media offload settings
type OffloadConfig struct {
	DeleteLocal  bool          `mapstructure:"delete_local"`
	PollInterval time.Duration `mapstructure:"poll_interval"`
	Concurrency  int           `mapstructure:"concurrency"`
}

// FilterConfig maps filter names to collection filter expressions
type FilterConfig map[string]string

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
	Color  bool   `mapstructure:"color"`
}

// MetricsConfig controls metric export
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile"`
}
