// Package config provides configuration loading and structs for the vibetex server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application.
type Config struct {
	Debug      bool             `yaml:"debug"`
	Server     ServerConfig     `yaml:"server"`
	Backend    BackendConfig    `yaml:"backend"`
	Session    SessionConfig    `yaml:"session"`
	Storage    StorageConfig    `yaml:"storage"`
	Log        LogConfig        `yaml:"log"`
	Watch      WatchConfig      `yaml:"watch"`
	Completion CompletionConfig `yaml:"completion"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// BackendConfig points at the compile and chat service.
type BackendConfig struct {
	BaseURL     string `yaml:"base_url"`
	CompilePath string `yaml:"compile_path"`
	ChatPath    string `yaml:"chat_path"`
	// Timeout of zero leaves requests bounded only by their context.
	Timeout time.Duration `yaml:"timeout"`
}

// SessionConfig holds editor session settings.
type SessionConfig struct {
	TTL                  time.Duration `yaml:"ttl"`
	CleanupInterval      time.Duration `yaml:"cleanup_interval"`
	Sequencing           string        `yaml:"sequencing"`
	AttachmentExtensions []string      `yaml:"attachment_extensions"`
}

// StorageConfig holds the compile history database path.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// LogConfig enables a rotating log file next to console output.
type LogConfig struct {
	File       string `yaml:"file"`
	MaxSizeMB  int    `yaml:"max_size_mb"`
	MaxBackups int    `yaml:"max_backups"`
	MaxAgeDays int    `yaml:"max_age_days"`
	Compress   bool   `yaml:"compress"`
}

// WatchConfig lists .tex files mirrored into sessions.
type WatchConfig struct {
	Files       []string      `yaml:"files"`
	AutoCompile *bool         `yaml:"auto_compile"`
	Debounce    time.Duration `yaml:"debounce"`
}

// AutoCompileOrDefault returns whether a file change triggers a compile; defaults to true when unset.
func (w *WatchConfig) AutoCompileOrDefault() bool {
	if w.AutoCompile != nil {
		return *w.AutoCompile
	}
	return true
}

// CompletionConfig holds autocomplete settings.
type CompletionConfig struct {
	// TablePath replaces the built-in command table when set.
	TablePath     string `yaml:"table_path"`
	MaxResults    int    `yaml:"max_results"`
	FuzzyDistance int    `yaml:"fuzzy_distance"`
}

// Address returns host:port for the HTTP listener.
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Load reads and parses the config file at path, expands paths, and applies defaults.
// Returns an error if the file cannot be read or parsed.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	ApplyDefaults(&cfg)

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	if cfg.Log.File != "" {
		cfg.Log.File = expandPath(cfg.Log.File, configDir)
	}
	if cfg.Completion.TablePath != "" {
		cfg.Completion.TablePath = expandPath(cfg.Completion.TablePath, configDir)
	}
	for i := range cfg.Watch.Files {
		cfg.Watch.Files[i] = expandPath(cfg.Watch.Files[i], configDir)
	}

	return &cfg, nil
}

// Save writes the config to path. Used for persisting watched file add/remove.
func Save(path string, cfg *Config) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}

// expandPath converts a path to absolute. Paths starting with "./" are relative to configDir;
// other relative paths are relative to the home directory.
func expandPath(path string, configDir string) string {
	if filepath.IsAbs(path) {
		return path
	}
	if strings.HasPrefix(path, "./") || path == "." {
		return filepath.Join(configDir, path)
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, path)
	}
	return path
}
