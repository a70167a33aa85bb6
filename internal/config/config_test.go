package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadCreatesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Search.PageSize)
	assert.Equal(t, "remote", cfg.Assistant.Backend)
	assert.Equal(t, filepath.Join(filepath.Dir(path), "rigveda.db"), cfg.Storage.DatabasePath)

	_, err = os.Stat(path)
	assert.NoError(t, err, "defaults should be written on first load")
}

func TestLoadMergesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	data := []byte(`
api:
  base_url: https://veda.example.org
  timeout: 5s
search:
  page_size: 25
  fields: [translation, deity]
storage:
  database_path: /var/lib/rigveda.db
`)
	require.NoError(t, os.WriteFile(path, data, 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "https://veda.example.org", cfg.API.BaseURL)
	assert.Equal(t, 5*time.Second, cfg.APITimeout())
	assert.Equal(t, 25, cfg.Search.PageSize)
	assert.Equal(t, []string{"translation", "deity"}, cfg.Search.Fields)
	assert.Equal(t, 0.4, cfg.Search.MinSimilarity, "unset keys keep defaults")
	assert.Equal(t, "/var/lib/rigveda.db", cfg.Storage.DatabasePath)
}

func TestEnvOverrides(t *testing.T) {
	t.Setenv("RIGVEDA_API_URL", "http://override:9000")
	t.Setenv("GEMINI_API_KEY", "key-123")

	cfg, err := Load(filepath.Join(t.TempDir(), "config.yaml"))
	require.NoError(t, err)
	assert.Equal(t, "http://override:9000", cfg.API.BaseURL)
	assert.Equal(t, "key-123", cfg.Assistant.GeminiAPIKey)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"page size zero", func(c *Config) { c.Search.PageSize = 0 }},
		{"page size too big", func(c *Config) { c.Search.PageSize = 101 }},
		{"similarity", func(c *Config) { c.Search.MinSimilarity = 1.5 }},
		{"backend", func(c *Config) { c.Assistant.Backend = "oracle" }},
		{"timeout", func(c *Config) { c.API.Timeout = "soon" }},
		{"base url", func(c *Config) { c.API.BaseURL = "" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}

	assert.NoError(t, DefaultConfig().Validate())
}

func TestDurationDefaults(t *testing.T) {
	cfg := DefaultConfig()
	cfg.API.Timeout = ""
	cfg.Player.Tick = ""
	assert.Equal(t, 30*time.Second, cfg.APITimeout())
	assert.Equal(t, 250*time.Millisecond, cfg.PlayerTick())
	assert.Equal(t, 24*time.Hour, DefaultConfig().CacheTTL())
}
