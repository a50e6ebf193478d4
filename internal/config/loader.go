package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
)

// envPrefix namespaces environment variable overrides.
const envPrefix = "TREEFIND_"

// Load builds the configuration. Precedence, highest first:
//
//  1. Environment variables (TREEFIND_SERVER_PORT, TREEFIND_REPOS_ROOT, ...)
//  2. YAML config file (path argument, or ~/.config/treefind/config.yaml)
//  3. Built-in defaults
//
// A missing config file is not an error unless the path was given explicitly.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	explicit := path != ""
	if !explicit {
		home, err := os.UserHomeDir()
		if err != nil {
			return nil, fmt.Errorf("failed to get home directory: %w", err)
		}
		path = filepath.Join(home, ".config", "treefind", "config.yaml")
	}

	content, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := k.Load(rawbytes.Provider(content), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
		}
	case os.IsNotExist(err) && !explicit:
		// Default path absent: run on defaults and env alone.
	default:
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	// TREEFIND_SERVER_SHUTDOWN_TIMEOUT -> server.shutdown_timeout: the first
	// underscore separates the section, the rest stay part of the key.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
		return strings.Replace(s, "_", ".", 1)
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load environment variables: %w", err)
	}

	cfg := Default()
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
