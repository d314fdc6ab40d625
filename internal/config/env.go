package config

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Environment variables that override values from the config file.
const (
	EnvProvider = "SHIRABE_EMBEDDING_PROVIDER"
	EnvModel    = "SHIRABE_EMBEDDING_MODEL"
	EnvPort     = "SHIRABE_SERVER_PORT"
)

// LoadEnv loads a .env file from the working directory when present and applies
// environment overrides to cfg.
func LoadEnv(cfg *Config) {
	// A missing .env is normal outside development.
	_ = godotenv.Load()

	if v := os.Getenv(EnvProvider); v != "" {
		cfg.Embedding.Provider = v
	}
	if v := os.Getenv(EnvModel); v != "" {
		cfg.Embedding.Model = v
	}
	if v := os.Getenv(EnvPort); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
}

// ResolveSecrets reads the embedding API key from the configured environment variable.
func ResolveSecrets(cfg *Config) {
	if cfg.Embedding.APIKeyEnv != "" {
		cfg.Embedding.APIKey = os.Getenv(cfg.Embedding.APIKeyEnv)
	}
}
