// Package config provides configuration loading for treefind.
package config

import (
	"fmt"
	"time"
)

// Config is the full treefind configuration.
type Config struct {
	Server ServerConfig `koanf:"server"`
	Repos  ReposConfig  `koanf:"repos"`
	Find   FindConfig   `koanf:"find"`
	Log    LogConfig    `koanf:"log"`
	GitHub GitHubConfig `koanf:"github"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host            string        `koanf:"host"`
	Port            int           `koanf:"port"`
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout"`
}

// ReposConfig locates the repository store.
type ReposConfig struct {
	// Root is the directory containing the hosted repositories.
	Root string `koanf:"root"`
}

// FindConfig tunes the find pipeline.
type FindConfig struct {
	// DefaultLimit caps returned files when a request has no limit.
	DefaultLimit int `koanf:"default_limit"`
	// Jobs bounds how many repositories are searched concurrently.
	Jobs int `koanf:"jobs"`
}

// LogConfig selects the zap logger profile.
type LogConfig struct {
	Development bool `koanf:"development"`
}

// GitHubConfig configures the optional GitHub-backed source.
type GitHubConfig struct {
	Token        string        `koanf:"token"`
	CacheDir     string        `koanf:"cache_dir"`
	CacheTTL     time.Duration `koanf:"cache_ttl"`
	DisableCache bool          `koanf:"disable_cache"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "localhost",
			Port:            8710,
			ShutdownTimeout: 10 * time.Second,
		},
		Find: FindConfig{
			DefaultLimit: 100,
			Jobs:         10,
		},
		GitHub: GitHubConfig{
			CacheTTL: 24 * time.Hour,
		},
	}
}

// Validate checks ranges that would otherwise fail at an awkward time.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535, got %d", c.Server.Port)
	}
	if c.Find.Jobs < 1 || c.Find.Jobs > 100 {
		return fmt.Errorf("find.jobs must be between 1 and 100, got %d", c.Find.Jobs)
	}
	if c.Find.DefaultLimit < 1 {
		return fmt.Errorf("find.default_limit must be positive, got %d", c.Find.DefaultLimit)
	}
	return nil
}
