// Package config loads verstats settings from the environment and an
// optional YAML file, and builds the configured backend.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"code.byted.org/khicago/verstats"
	"github.com/caarlos0/env/v11"
	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Backend kinds accepted in Config.Backend.
const (
	BackendMemory = "memory"
	BackendFile   = "file"
	BackendSQLite = "sqlite"
	BackendRedis  = "redis"
)

// Config holds statistics store settings.
type Config struct {
	Backend        string        `env:"VERSTATS_BACKEND"         envDefault:"file"                     yaml:"backend"`
	Path           string        `env:"VERSTATS_PATH"            envDefault:"verstats.yaml"            yaml:"path"`
	RedisURL       string        `env:"VERSTATS_REDIS_URL"       envDefault:"redis://localhost:6379/0" yaml:"redis_url"`
	RedisNamespace string        `env:"VERSTATS_REDIS_NAMESPACE"                                       yaml:"redis_namespace"`
	Version        string        `env:"VERSTATS_VERSION"                                               yaml:"version"`
	VersionFile    string        `env:"VERSTATS_VERSION_FILE"                                          yaml:"version_file"`
	LogLevel       string        `env:"VERSTATS_LOG_LEVEL"       envDefault:"info"                     yaml:"log_level"`
	CacheSize      int           `env:"VERSTATS_CACHE_SIZE"                                            yaml:"cache_size"`
	CacheTTL       time.Duration `env:"VERSTATS_CACHE_TTL"       envDefault:"5m"                       yaml:"cache_ttl"`
}

// Load reads the environment, then overlays the YAML file at path when path
// is non-empty. Values present in the file take precedence.
func Load(path string) (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("failed to read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("failed to parse config: %w", err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return Config{}, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks that the settings are consistent.
func (c Config) Validate() error {
	var errs []error

	switch c.Backend {
	case BackendMemory:
	case BackendFile, BackendSQLite:
		if strings.TrimSpace(c.Path) == "" {
			errs = append(errs, fmt.Errorf("path is required for %s backend", c.Backend))
		}
	case BackendRedis:
		if strings.TrimSpace(c.RedisURL) == "" {
			errs = append(errs, errors.New("redis_url is required for redis backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown backend %q", c.Backend))
	}

	if c.Version != "" {
		if _, err := verstats.ParseVersion(c.Version); err != nil {
			errs = append(errs, err)
		}
	}
	if _, err := logrus.ParseLevel(c.LogLevel); err != nil {
		errs = append(errs, err)
	}
	if c.CacheSize < 0 {
		errs = append(errs, errors.New("cache_size must not be negative"))
	}

	return errors.Join(errs...)
}

// Host returns the version source: the explicit Version when set, else the
// VersionFile.
func (c Config) Host() verstats.Host {
	if c.Version != "" {
		return verstats.StaticHost(c.Version)
	}
	return verstats.VersionFile(c.VersionFile)
}

// Logger returns a logrus logger at the configured level.
func (c Config) Logger() *logrus.Logger {
	l := logrus.New()
	l.SetOutput(os.Stderr)
	if level, err := logrus.ParseLevel(c.LogLevel); err == nil {
		l.SetLevel(level)
	}
	return l
}
