// Package config loads the gateway's configuration from a TOML file and
// environment variables.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config represents the complete gateway configuration.
type Config struct {
	Mirrors []Mirror `mapstructure:"mirrors"`
	Origins []Origin `mapstructure:"origins"`
	S3      S3       `mapstructure:"s3"`

	Server  ServerConfig  `mapstructure:"server"`
	Cache   CacheConfig   `mapstructure:"cache"`
	Logging LoggingConfig `mapstructure:"logging"`
	Metrics MetricsConfig `mapstructure:"metrics"`
}

// Mirror is a single read-through mirror endpoint, raced together with the
// object store before the origin tier is tried.
type Mirror struct {
	URL string `mapstructure:"url"`
}

// Origin is a single upstream origin, raced only after every mirror and
// the object store have missed.
type Origin struct {
	URL string `mapstructure:"url"`
}

// S3 holds the object-store endpoint this gateway both reads from (as a
// mirror of last resort) and writes uploaded objects to.
type S3 struct {
	Endpoint        string `mapstructure:"endpoint"`
	Bucket          string `mapstructure:"bucket"`
	Region          string `mapstructure:"region"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	ListenAddr      string        `mapstructure:"listen_addr"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// CacheConfig holds resolution-cache settings.
type CacheConfig struct {
	// Backend selects the cache implementation: "memory" or "redis".
	Backend string `mapstructure:"backend"`

	TTL            time.Duration `mapstructure:"ttl"`
	MaxEntries     int           `mapstructure:"max_entries"`
	MirrorDeadline time.Duration `mapstructure:"mirror_deadline"`
	OriginDeadline time.Duration `mapstructure:"origin_deadline"`
	MaxRedirects   int           `mapstructure:"max_redirects"`
	PresignExpiry  time.Duration `mapstructure:"presign_expiry"`

	RedisAddr     string `mapstructure:"redis_addr"`
	RedisPassword string `mapstructure:"redis_password"`
	RedisDB       int    `mapstructure:"redis_db"`
	RedisKeyPrefix string `mapstructure:"redis_key_prefix"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

// MetricsConfig holds Prometheus metrics settings.
type MetricsConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

// Load reads configuration from configPath and the environment.
// Environment variables are prefixed with NIXGATE_ and use _ as separator,
// taking precedence over file values.
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	v.SetEnvPrefix("NIXGATE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config file: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.listen_addr", "0.0.0.0:3000")
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 60*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.ttl", 5*time.Minute)
	v.SetDefault("cache.max_entries", 100_000)
	v.SetDefault("cache.mirror_deadline", 2*time.Second)
	v.SetDefault("cache.origin_deadline", 30*time.Second)
	v.SetDefault("cache.max_redirects", 10)
	// presign_expiry defaults to 5x cache.ttl (5m), per the object-store
	// probe's presigned-URL lifetime requirement.
	v.SetDefault("cache.presign_expiry", 25*time.Minute)
	v.SetDefault("cache.redis_addr", "localhost:6379")
	v.SetDefault("cache.redis_db", 0)
	v.SetDefault("cache.redis_key_prefix", "nixgate:resolve:")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "json")

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.path", "/metrics")
}

// Validate checks the configuration for required values and valid ranges.
func (c *Config) Validate() error {
	if c.Server.ListenAddr == "" {
		return fmt.Errorf("server.listen_addr is required")
	}

	if c.S3.Endpoint == "" {
		return fmt.Errorf("s3.endpoint is required")
	}
	if c.S3.Bucket == "" {
		return fmt.Errorf("s3.bucket is required")
	}
	if c.S3.Region == "" {
		return fmt.Errorf("s3.region is required")
	}
	if c.S3.AccessKeyID == "" || c.S3.AccessKeySecret == "" {
		return fmt.Errorf("s3.access_key_id and s3.access_key_secret are required")
	}

	switch c.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.backend must be 'memory' or 'redis'")
	}
	if c.Cache.Backend == "redis" && c.Cache.RedisAddr == "" {
		return fmt.Errorf("cache.redis_addr is required when cache.backend is 'redis'")
	}
	if c.Cache.MaxRedirects < 0 {
		return fmt.Errorf("cache.max_redirects must be >= 0")
	}

	validLevels := map[string]bool{
		"trace": true, "debug": true, "info": true,
		"warn": true, "error": true, "fatal": true, "panic": true,
	}
	if !validLevels[strings.ToLower(c.Logging.Level)] {
		return fmt.Errorf("logging.level must be one of: trace, debug, info, warn, error, fatal, panic")
	}

	return nil
}

// MustLoad loads configuration or panics on error. Useful during process
// startup before structured logging is wired up.
func MustLoad(configPath string) *Config {
	cfg, err := Load(configPath)
	if err != nil {
		panic(fmt.Sprintf("failed to load configuration: %v", err))
	}
	return cfg
}
