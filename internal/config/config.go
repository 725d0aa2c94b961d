// Package config loads gateway configuration from a YAML file with
// environment overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/memgate/memgate/internal/bundle"
	"github.com/memgate/memgate/internal/model"
	"github.com/memgate/memgate/internal/rank"
)

// Similarity configures the delegated embedding collaborator.
type Similarity struct {
	// Provider: "ollama", "openai", or "" (semantic scoring disabled).
	Provider string `yaml:"provider"`
	Model    string `yaml:"model"`
	BaseURL  string `yaml:"base_url"`
	// Timeout bounds a single similarity call.
	Timeout time.Duration `yaml:"timeout"`
	// CacheSize is the max number of cached query embeddings.
	CacheSize int64 `yaml:"cache_size"`
}

// Config is the full gateway configuration.
type Config struct {
	DBPath     string         `yaml:"db_path"`
	Weights    rank.Weights   `yaml:"weights"`
	HalfLife   time.Duration  `yaml:"half_life"`
	Quotas     map[string]int `yaml:"quotas"`
	Similarity Similarity     `yaml:"similarity"`
}

// Default returns the built-in configuration.
func Default() *Config {
	home, _ := os.UserHomeDir()
	return &Config{
		DBPath:   filepath.Join(home, ".memgate", "memgate.db"),
		Weights:  rank.DefaultWeights(),
		HalfLife: rank.DefaultHalfLife,
		Similarity: Similarity{
			Timeout:   rank.DefaultSimilarityTimeout,
			CacheSize: 1024,
		},
	}
}

// Load reads the config file at path, falling back to defaults when path is
// empty or the file does not exist. MEMGATE_DB overrides the database path.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	if env := os.Getenv("MEMGATE_DB"); env != "" {
		cfg.DBPath = env
	}

	if err := cfg.Weights.Validate(); err != nil {
		return nil, err
	}
	if cfg.HalfLife <= 0 {
		return nil, fmt.Errorf("%w: half_life must be positive", model.ErrInvalidArgument)
	}
	return cfg, nil
}

// BundleQuotas converts the configured quotas, falling back to the defaults
// when none are set.
func (c *Config) BundleQuotas() (bundle.Quotas, error) {
	if len(c.Quotas) == 0 {
		return bundle.DefaultQuotas(), nil
	}
	q := bundle.Quotas{}
	for k, v := range c.Quotas {
		q[model.MemoryType(k)] = v
	}
	if err := q.Validate(); err != nil {
		return nil, err
	}
	return q, nil
}
