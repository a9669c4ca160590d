// Package config loads Verdia configuration from YAML with environment
// variable expansion.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/verdia-ai/verdia/pkg/models"
)

// Config holds all Verdia configuration.
type Config struct {
	DBPath        string         `yaml:"db_path"`
	Provider      ProviderConfig `yaml:"provider"`
	Model         string         `yaml:"model"`
	PromptVersion string         `yaml:"prompt_version"`
	Limits        models.Limits  `yaml:"limits"`
	Cache         CacheConfig    `yaml:"cache"`
	Redis         RedisConfig    `yaml:"redis"`
	Coalesce      bool           `yaml:"coalesce"`
}

// ProviderConfig defines the upstream LLM provider.
type ProviderConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
}

// CacheConfig controls the response cache.
type CacheConfig struct {
	Enabled bool `yaml:"enabled"`
	TTLDays int  `yaml:"ttl_days"`
}

// TTL returns the configured cache lifetime.
func (c CacheConfig) TTL() time.Duration {
	return time.Duration(c.TTLDays) * 24 * time.Hour
}

// RedisConfig selects the shared quota store. An empty Addr keeps quota
// windows in process memory.
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// Default returns a Config with sensible defaults.
func Default() *Config {
	return &Config{
		DBPath:        "verdia.db",
		Model:         "openai/gpt-4o-mini",
		PromptVersion: "v1",
		Limits: models.Limits{
			PerMinute:      10,
			PerDayGlobal:   500,
			PerDayPerScope: 50,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTLDays: 30,
		},
	}
}

// Load reads a YAML config file and expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	expanded := os.ExpandEnv(string(data))

	cfg := Default()
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	return cfg, nil
}
