// Package config resolves kandil's local settings: the data directory,
// the active AI configuration used to seed new projects, and the remote
// sync credentials.
//
// Credentials resolve from the process environment first (SUPABASE_URL,
// SUPABASE_ANON_KEY), then from the config file under the user config
// directory. Missing or placeholder values fail fast with
// ErrNotConfigured before any network attempt.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// ErrNotConfigured is returned when remote sync credentials are missing
// or still carry placeholder values. Fatal to sync only; local
// operations are unaffected.
var ErrNotConfigured = errors.New("sync credentials not configured")

// Environment variable names for the remote credentials.
const (
	EnvRemoteURL = "SUPABASE_URL"
	EnvRemoteKey = "SUPABASE_ANON_KEY"
)

// Sync holds the resolved remote endpoint credentials.
type Sync struct {
	BaseURL string
	APIKey  string
}

// Config is the loaded settings file plus environment overlay.
type Config struct {
	v   *viper.Viper
	dir string
}

// Dir returns the kandil data/config directory, creating it if needed.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("failed to locate user config directory: %w", err)
	}
	dir := filepath.Join(base, "kandil")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create config directory: %w", err)
	}
	return dir, nil
}

// StorePath returns the path of the local database file.
func (c *Config) StorePath() string {
	return filepath.Join(c.dir, "kandil.db")
}

// LogPath returns the path of the daemon log file.
func (c *Config) LogPath() string {
	return filepath.Join(c.dir, "daemon.log")
}

// Load reads the config file from the user config directory. A missing
// file is not an error; defaults apply.
func Load() (*Config, error) {
	dir, err := Dir()
	if err != nil {
		return nil, err
	}
	return LoadFrom(dir)
}

// LoadFrom reads the config file from an explicit directory.
func LoadFrom(dir string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(dir)

	v.SetDefault("ai.provider", "ollama")
	v.SetDefault("ai.model", "llama3:70b")

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	return &Config{v: v, dir: dir}, nil
}

// ActiveProvider returns the configured AI provider name.
func (c *Config) ActiveProvider() string {
	return c.v.GetString("ai.provider")
}

// ActiveModel returns the configured AI model name.
func (c *Config) ActiveModel() string {
	return c.v.GetString("ai.model")
}

// ResolveSync resolves the remote endpoint credentials.
//
// The environment wins over the config file. Either value missing, or a
// value that still looks like a template placeholder, returns
// ErrNotConfigured.
func (c *Config) ResolveSync() (Sync, error) {
	url := os.Getenv(EnvRemoteURL)
	if url == "" {
		url = c.v.GetString("sync.url")
	}
	key := os.Getenv(EnvRemoteKey)
	if key == "" {
		key = c.v.GetString("sync.anon_key")
	}

	if url == "" || key == "" {
		return Sync{}, fmt.Errorf("%w: set %s and %s or configure sync.url and sync.anon_key",
			ErrNotConfigured, EnvRemoteURL, EnvRemoteKey)
	}
	if isPlaceholder(url) || isPlaceholder(key) {
		return Sync{}, fmt.Errorf("%w: credentials contain placeholder values", ErrNotConfigured)
	}

	return Sync{BaseURL: strings.TrimRight(url, "/"), APIKey: key}, nil
}

// isPlaceholder catches values copied straight out of a template.
func isPlaceholder(s string) bool {
	lowered := strings.ToLower(s)
	return strings.Contains(lowered, "your-") ||
		strings.Contains(lowered, "example") ||
		strings.Contains(lowered, "placeholder")
}
