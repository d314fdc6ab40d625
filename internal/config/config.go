// Package config provides configuration loading and structs for the Shirabe server.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all configuration for the application. It is read once at startup
// and treated as immutable afterwards.
type Config struct {
	Debug     bool            `yaml:"debug"`
	Server    ServerConfig    `yaml:"server"`
	Embedding EmbeddingConfig `yaml:"embedding"`
	Search    SearchConfig    `yaml:"search"`
	Index     IndexConfig     `yaml:"index"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host           string        `yaml:"host"`
	Port           int           `yaml:"port"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	MaxUploadBytes int64         `yaml:"max_upload_bytes"`
}

// EmbeddingConfig selects and tunes the embedding provider.
type EmbeddingConfig struct {
	Provider          string        `yaml:"provider"` // openai, onnx or mock
	Model             string        `yaml:"model"`
	BaseURL           string        `yaml:"base_url"`
	APIKeyEnv         string        `yaml:"api_key_env"`
	APIKey            string        `yaml:"-"`
	Dimensions        int           `yaml:"dimensions"`
	Timeout           time.Duration `yaml:"timeout"`
	MaxRetries        int           `yaml:"max_retries"`
	BatchSize         int           `yaml:"batch_size"`
	MaxBatchSize      int           `yaml:"max_batch_size"`
	Concurrency       int           `yaml:"concurrency"`
	RequestsPerSecond float64       `yaml:"requests_per_second"`
	Burst             int           `yaml:"burst"`
	CacheSize         int           `yaml:"cache_size"`
	CachePath         string        `yaml:"cache_path"` // empty disables the persistent cache
	ModelPath         string        `yaml:"model_path"` // onnx only
	MaxTokens         int           `yaml:"max_tokens"` // onnx only
	MaxInputWords     int           `yaml:"max_input_words"`
}

// SearchConfig holds query defaults.
type SearchConfig struct {
	TopK       int    `yaml:"top_k"`
	MaxTopK    int    `yaml:"max_top_k"`
	Similarity string `yaml:"similarity"` // cosine, dot_product or euclidean
}

// IndexConfig holds proximity graph construction and search parameters.
type IndexConfig struct {
	Type             string  `yaml:"type"` // graph or flat
	MaxDegree        int     `yaml:"max_degree"`
	BeamWidth        int     `yaml:"beam_width"`
	NeighborOverflow float64 `yaml:"neighbor_overflow"`
	Alpha            float64 `yaml:"alpha"`
	SearchBeamWidth  int     `yaml:"search_beam_width"`
}

// Load reads and parses the config file at path, applies defaults and environment
// overrides, expands paths and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	LoadEnv(&cfg)
	ApplyDefaults(&cfg)
	ResolveSecrets(&cfg)

	configDir := filepath.Dir(path)
	cfg.Embedding.CachePath = expandPath(cfg.Embedding.CachePath, configDir)
	cfg.Embedding.ModelPath = expandPath(cfg.Embedding.ModelPath, configDir)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Save writes the config to path.
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
// other relative paths are relative to the home directory. Empty paths stay empty.
func expandPath(path string, configDir string) string {
	if path == "" || filepath.IsAbs(path) {
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
