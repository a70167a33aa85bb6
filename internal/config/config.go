// Package config loads the YAML configuration for rigveda-go.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

const (
	appDir   = "rigveda-go"
	fileName = "config.yaml"
)

// Config holds all rigveda-go configuration.
type Config struct {
	API       APIConfig       `yaml:"api"`
	Search    SearchConfig    `yaml:"search"`
	Assistant AssistantConfig `yaml:"assistant"`
	Player    PlayerConfig    `yaml:"player"`
	Cache     CacheConfig     `yaml:"cache"`
	Storage   StorageConfig   `yaml:"storage"`
	Logging   LoggingConfig   `yaml:"logging"`
	Theme     ThemeConfig     `yaml:"theme"`
}

// APIConfig points at the remote RigVeda API.
type APIConfig struct {
	BaseURL string `yaml:"base_url"`
	Timeout string `yaml:"timeout"`
	Token   string `yaml:"token,omitempty"`
}

// SearchConfig sets search defaults.
type SearchConfig struct {
	PageSize      int      `yaml:"page_size"`
	Fields        []string `yaml:"fields"`
	MinSimilarity float64  `yaml:"min_similarity"`
}

// AssistantConfig selects the question-answering backend.
type AssistantConfig struct {
	Backend      string `yaml:"backend"` // remote, gemini
	GeminiAPIKey string `yaml:"gemini_api_key,omitempty"`
	Model        string `yaml:"model"`
	MaxResults   int    `yaml:"max_results"`
}

// PlayerConfig configures narration playback.
type PlayerConfig struct {
	// Command is an optional external audio player. {url} and {start}
	// (seconds) are substituted in each argument.
	Command []string `yaml:"command,omitempty"`
	Tick    string   `yaml:"tick"`
}

// CacheConfig configures the rik detail cache. Size 0 disables it.
type CacheConfig struct {
	Size     int    `yaml:"size"`
	RedisURL string `yaml:"redis_url,omitempty"`
	TTL      string `yaml:"ttl"`
}

// StorageConfig locates local files.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
	ExportDir    string `yaml:"export_dir"`
}

// LoggingConfig configures zap.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// ThemeConfig holds UI colors.
type ThemeConfig struct {
	HighlightColor string `yaml:"highlight_color"`
	VerseNumColor  string `yaml:"verse_num_color"`
	TextColor      string `yaml:"text_color"`
	DimColor       string `yaml:"dim_color"`
	ErrorColor     string `yaml:"error_color"`
}

// DefaultConfig returns a config that works against a local API.
func DefaultConfig() *Config {
	return &Config{
		API: APIConfig{
			BaseURL: "http://127.0.0.1:8000",
			Timeout: "30s",
		},
		Search: SearchConfig{
			PageSize:      10,
			Fields:        []string{"translation", "devanagari"},
			MinSimilarity: 0.4,
		},
		Assistant: AssistantConfig{
			Backend:    "remote",
			Model:      "gemini-2.5-flash",
			MaxResults: 5,
		},
		Player: PlayerConfig{
			Tick: "250ms",
		},
		Cache: CacheConfig{
			Size: 256,
			TTL:  "24h",
		},
		Storage: StorageConfig{
			DatabasePath: "rigveda.db",
			ExportDir:    "exports",
		},
		Logging: LoggingConfig{
			Level: "info",
			File:  "rigveda.log",
		},
		Theme: ThemeConfig{
			HighlightColor: "#cba6f7",
			VerseNumColor:  "#89b4fa",
			TextColor:      "#cdd6f4",
			DimColor:       "#313244",
			ErrorColor:     "#f38ba8",
		},
	}
}

// EnsureDir creates and returns the per-user config directory.
func EnsureDir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("locate config dir: %w", err)
	}
	dir := filepath.Join(base, appDir)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("create config dir: %w", err)
	}
	return dir, nil
}

// DefaultPath returns the config file location.
func DefaultPath() (string, error) {
	dir, err := EnsureDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fileName), nil
}

// Load reads path over the defaults. A missing file is created with the
// defaults. Environment overrides are applied last and relative storage
// paths are resolved against the file's directory.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		if err := cfg.Save(path); err != nil {
			return nil, err
		}
	case err != nil:
		return nil, fmt.Errorf("read config: %w", err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnvOverrides()
	cfg.resolvePaths(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the config as YAML.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("RIGVEDA_API_URL"); v != "" {
		c.API.BaseURL = v
	}
	if v := os.Getenv("RIGVEDA_TOKEN"); v != "" {
		c.API.Token = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		c.Assistant.GeminiAPIKey = v
	}
	if v := os.Getenv("RIGVEDA_REDIS_URL"); v != "" {
		c.Cache.RedisURL = v
	}
}

func (c *Config) resolvePaths(dir string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	c.Storage.DatabasePath = resolve(c.Storage.DatabasePath)
	c.Storage.ExportDir = resolve(c.Storage.ExportDir)
	c.Logging.File = resolve(c.Logging.File)
}

// Validate rejects settings the client cannot work with.
func (c *Config) Validate() error {
	if c.API.BaseURL == "" {
		return fmt.Errorf("api.base_url is required")
	}
	if c.Search.PageSize < 1 || c.Search.PageSize > 100 {
		return fmt.Errorf("search.page_size must be between 1 and 100, got %d", c.Search.PageSize)
	}
	if c.Search.MinSimilarity < 0 || c.Search.MinSimilarity > 1 {
		return fmt.Errorf("search.min_similarity must be between 0 and 1, got %v", c.Search.MinSimilarity)
	}
	switch c.Assistant.Backend {
	case "remote", "gemini":
	default:
		return fmt.Errorf("assistant.backend must be remote or gemini, got %q", c.Assistant.Backend)
	}
	for name, v := range map[string]string{"api.timeout": c.API.Timeout, "player.tick": c.Player.Tick, "cache.ttl": c.Cache.TTL} {
		if _, err := parseDuration(v); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// APITimeout returns the HTTP timeout, defaulting to 30s.
func (c *Config) APITimeout() time.Duration {
	d, _ := parseDuration(c.API.Timeout)
	if d == 0 {
		return 30 * time.Second
	}
	return d
}

// PlayerTick returns the playback clock interval, defaulting to 250ms.
func (c *Config) PlayerTick() time.Duration {
	d, _ := parseDuration(c.Player.Tick)
	if d == 0 {
		return 250 * time.Millisecond
	}
	return d
}

// CacheTTL returns the Redis entry lifetime; zero means no expiry.
func (c *Config) CacheTTL() time.Duration {
	d, _ := parseDuration(c.Cache.TTL)
	return d
}

func parseDuration(s string) (time.Duration, error) {
	if s == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q: %w", s, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("negative duration %q", s)
	}
	return d, nil
}
