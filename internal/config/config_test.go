package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadTestConfig(t *testing.T, yaml string) *Config {
	t.Helper()

	dir := t.TempDir()
	if yaml != "" {
		require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))
	}

	c, err := LoadFrom(dir)
	require.NoError(t, err)
	return c
}

func TestDefaultsWithoutConfigFile(t *testing.T) {
	c := loadTestConfig(t, "")

	assert.Equal(t, "ollama", c.ActiveProvider())
	assert.Equal(t, "llama3:70b", c.ActiveModel())
}

func TestConfigFileOverridesDefaults(t *testing.T) {
	c := loadTestConfig(t, "ai:\n  provider: anthropic\n  model: claude-sonnet\n")

	assert.Equal(t, "anthropic", c.ActiveProvider())
	assert.Equal(t, "claude-sonnet", c.ActiveModel())
}

func TestResolveSyncMissingCredentials(t *testing.T) {
	t.Setenv(EnvRemoteURL, "")
	t.Setenv(EnvRemoteKey, "")

	c := loadTestConfig(t, "")
	_, err := c.ResolveSync()
	assert.ErrorIs(t, err, ErrNotConfigured)
}

func TestResolveSyncFromEnvironment(t *testing.T) {
	t.Setenv(EnvRemoteURL, "https://abc.supabase.co/")
	t.Setenv(EnvRemoteKey, "anon-key")

	c := loadTestConfig(t, "")
	sync, err := c.ResolveSync()
	require.NoError(t, err)

	// Trailing slash is normalized away for URL joining.
	assert.Equal(t, "https://abc.supabase.co", sync.BaseURL)
	assert.Equal(t, "anon-key", sync.APIKey)
}

func TestResolveSyncEnvironmentWinsOverFile(t *testing.T) {
	t.Setenv(EnvRemoteURL, "https://env.supabase.co")
	t.Setenv(EnvRemoteKey, "env-key")

	c := loadTestConfig(t, "sync:\n  url: https://file.supabase.co\n  anon_key: file-key\n")
	sync, err := c.ResolveSync()
	require.NoError(t, err)
	assert.Equal(t, "https://env.supabase.co", sync.BaseURL)
	assert.Equal(t, "env-key", sync.APIKey)
}

func TestResolveSyncFromConfigFile(t *testing.T) {
	t.Setenv(EnvRemoteURL, "")
	t.Setenv(EnvRemoteKey, "")

	c := loadTestConfig(t, "sync:\n  url: https://file.supabase.co\n  anon_key: file-key\n")
	sync, err := c.ResolveSync()
	require.NoError(t, err)
	assert.Equal(t, "https://file.supabase.co", sync.BaseURL)
}

func TestResolveSyncRejectsPlaceholders(t *testing.T) {
	t.Setenv(EnvRemoteURL, "https://your-project.supabase.co")
	t.Setenv(EnvRemoteKey, "real-key")

	c := loadTestConfig(t, "")
	_, err := c.ResolveSync()
	assert.ErrorIs(t, err, ErrNotConfigured)
}
