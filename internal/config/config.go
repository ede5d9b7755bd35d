// Package config provides configuration loading and structs for the kensaku server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/hyperjump/kensaku/internal/fuzzy"
	"github.com/hyperjump/kensaku/internal/ngram"
)

// Config holds all configuration for the application.
type Config struct {
	Debug   bool          `yaml:"debug"`
	Server  ServerConfig  `yaml:"server"`
	Storage StorageConfig `yaml:"storage"`
	Fuzzy   FuzzyConfig   `yaml:"fuzzy"`
	Search  SearchConfig  `yaml:"search"`
	Watch   WatchConfig   `yaml:"watch"`
}

// WatchConfig holds directory watch settings.
type WatchConfig struct {
	Directories []string `yaml:"directories"`
	Extensions  []string `yaml:"extensions"`
	Recursive   *bool    `yaml:"recursive"`
}

// RecursiveOrDefault returns whether to watch recursively; defaults to true when unset.
func (w *WatchConfig) RecursiveOrDefault() bool {
	if w.Recursive != nil {
		return *w.Recursive
	}
	return true
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// StorageConfig holds the record database location.
type StorageConfig struct {
	DatabasePath string `yaml:"database_path"`
}

// FuzzyConfig tunes the scoring tiers and the trigram blend.
type FuzzyConfig struct {
	CoverageWeight       float64 `yaml:"coverage_weight"`
	DiceWeight           float64 `yaml:"dice_weight"`
	CaseInsensitiveScore float64 `yaml:"case_insensitive_score"`
	FuzzyCeiling         float64 `yaml:"fuzzy_ceiling"`
}

// Weights returns the blend weights.
func (f FuzzyConfig) Weights() ngram.Weights {
	return ngram.Weights{Coverage: f.CoverageWeight, Dice: f.DiceWeight}
}

// Options converts the config to matcher options. Out-of-range values are
// ignored by the matcher and fall back to its defaults.
func (f FuzzyConfig) Options() []fuzzy.Option {
	return []fuzzy.Option{
		fuzzy.WithWeights(f.Weights()),
		fuzzy.WithCaseInsensitiveScore(f.CaseInsensitiveScore),
		fuzzy.WithFuzzyCeiling(f.FuzzyCeiling),
	}
}

// Search modes.
const (
	ModeSQL    = "sql"
	ModeMemory = "memory"
)

// SearchConfig holds search settings.
type SearchConfig struct {
	// Mode is "sql" to score inside SQLite or "memory" to score in a worker pool.
	Mode         string  `yaml:"mode"`
	DefaultLimit int     `yaml:"default_limit"`
	MaxLimit     int     `yaml:"max_limit"`
	MinScore     float64 `yaml:"min_score"`
	Workers      int     `yaml:"workers"`
	BatchSize    int     `yaml:"batch_size"`
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
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	configDir := filepath.Dir(path)
	cfg.Storage.DatabasePath = expandPath(cfg.Storage.DatabasePath, configDir)
	for i := range cfg.Watch.Directories {
		cfg.Watch.Directories[i] = expandPath(cfg.Watch.Directories[i], configDir)
	}

	return &cfg, nil
}

// Validate rejects settings that have no sensible fallback.
func (c *Config) Validate() error {
	switch c.Search.Mode {
	case ModeSQL, ModeMemory:
	default:
		return fmt.Errorf("invalid search mode %q: want %q or %q", c.Search.Mode, ModeSQL, ModeMemory)
	}
	if c.Fuzzy.CoverageWeight < 0 || c.Fuzzy.DiceWeight < 0 {
		return fmt.Errorf("fuzzy weights must not be negative")
	}
	return nil
}

// Save writes the config to path. Used for persisting watch directory add/remove.
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
