// Package config loads service configuration from the environment, with an
// optional local .env file picked up before processing.
package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	// Server settings
	Port      string `envconfig:"PORT" default:"8080"`
	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"console"`

	// Upstream settings
	BaseURL          string        `envconfig:"WATTPAD_BASE_URL" default:"https://www.wattpad.com"`
	FetchConcurrency int           `envconfig:"FETCH_CONCURRENCY" default:"8"`
	FetchMaxAttempts int           `envconfig:"FETCH_MAX_ATTEMPTS" default:"4"`
	FetchRetryMin    time.Duration `envconfig:"FETCH_RETRY_MIN" default:"500ms"`
	FetchRetryMax    time.Duration `envconfig:"FETCH_RETRY_MAX" default:"15s"`
	FetchTimeout     time.Duration `envconfig:"FETCH_TIMEOUT" default:"30s"`

	// Build settings
	BuildTimeout time.Duration `envconfig:"BUILD_TIMEOUT" default:"10m"`
	CacheTTL     time.Duration `envconfig:"CACHE_TTL" default:"12h"`

	// Cache backend: memory or redis
	CacheBackend  string `envconfig:"CACHE_BACKEND" default:"memory"`
	RedisAddr     string `envconfig:"REDIS_ADDR"`
	RedisPassword string `envconfig:"REDIS_PASSWORD"`
	RedisDB       int    `envconfig:"REDIS_DB" default:"0"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, fmt.Errorf("failed to load configuration: %v", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (c *Config) validate() error {
	switch c.CacheBackend {
	case "memory":
	case "redis":
		if c.RedisAddr == "" {
			return fmt.Errorf("REDIS_ADDR is required when CACHE_BACKEND is redis")
		}
	default:
		return fmt.Errorf("unknown cache backend %q", c.CacheBackend)
	}
	if c.FetchConcurrency < 1 {
		return fmt.Errorf("FETCH_CONCURRENCY must be at least 1")
	}
	if c.LogFormat != "console" && c.LogFormat != "json" {
		return fmt.Errorf("unknown log format %q", c.LogFormat)
	}
	return nil
}
