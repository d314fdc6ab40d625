package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
server:
  host: "127.0.0.1"
  port: 9000
  request_timeout: 45s
embedding:
  provider: mock
  dimensions: 8
search:
  top_k: 3
  similarity: euclidean
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Server.Host != "127.0.0.1" || cfg.Server.Port != 9000 {
		t.Errorf("unexpected server config: %+v", cfg.Server)
	}
	if cfg.Server.RequestTimeout != 45*time.Second {
		t.Errorf("request_timeout = %v, want 45s", cfg.Server.RequestTimeout)
	}
	if cfg.Embedding.Dimensions != 8 {
		t.Errorf("dimensions = %d, want 8", cfg.Embedding.Dimensions)
	}
	if cfg.Search.TopK != 3 || cfg.Search.Similarity != "euclidean" {
		t.Errorf("unexpected search config: %+v", cfg.Search)
	}
	if cfg.Debug {
		t.Error("debug should default to false when unset")
	}
}

func TestLoad_debugTrue(t *testing.T) {
	path := writeConfig(t, `
debug: true
embedding:
  provider: mock
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Debug {
		t.Error("debug should be true when set in config")
	}
}

func TestLoad_openAIKeyFromEnv(t *testing.T) {
	t.Setenv("MY_EMBEDDING_KEY", "sk-test")
	path := writeConfig(t, `
embedding:
  provider: openai
  api_key_env: MY_EMBEDDING_KEY
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Embedding.APIKey != "sk-test" {
		t.Errorf("api key = %q, want sk-test", cfg.Embedding.APIKey)
	}
}

func TestLoad_openAIWithoutKey(t *testing.T) {
	t.Setenv("MISSING_EMBEDDING_KEY", "")
	path := writeConfig(t, `
embedding:
  provider: openai
  api_key_env: MISSING_EMBEDDING_KEY
`)
	_, err := Load(path)
	if err == nil || !strings.Contains(err.Error(), "MISSING_EMBEDDING_KEY") {
		t.Errorf("expected missing key error, got %v", err)
	}
}

func TestLoad_envOverrides(t *testing.T) {
	t.Setenv(EnvProvider, "mock")
	t.Setenv(EnvModel, "all-minilm")
	t.Setenv(EnvPort, "9191")
	path := writeConfig(t, `
embedding:
  provider: openai
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Embedding.Provider != "mock" || cfg.Embedding.Model != "all-minilm" || cfg.Server.Port != 9191 {
		t.Errorf("overrides not applied: provider=%s model=%s port=%d",
			cfg.Embedding.Provider, cfg.Embedding.Model, cfg.Server.Port)
	}
}

func TestLoad_expandPathDotSlashRelativeToConfigDir(t *testing.T) {
	path := writeConfig(t, `
embedding:
  provider: mock
  cache_path: "./data/embeddings.db"
`)
	cfg, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	want := filepath.Join(filepath.Dir(path), "data", "embeddings.db")
	if cfg.Embedding.CachePath != want {
		t.Errorf("cache_path = %s, want %s", cfg.Embedding.CachePath, want)
	}
}

func TestLoad_invalid(t *testing.T) {
	path := writeConfig(t, `
embedding:
  provider: mock
search:
  similarity: manhattan
index:
  alpha: 0.5
`)
	_, err := Load(path)
	if err == nil {
		t.Fatal("expected validation error")
	}
	for _, want := range []string{"search.similarity", "index.alpha"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %s", err, want)
		}
	}
}

func TestLoad_missingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{}
	ApplyDefaults(cfg)
	if cfg.Server.Host != "localhost" {
		t.Errorf("default host: got %s", cfg.Server.Host)
	}
	if cfg.Server.Port != 8080 {
		t.Errorf("default port: got %d", cfg.Server.Port)
	}
	if cfg.Search.TopK != 5 || cfg.Search.Similarity != "cosine" {
		t.Errorf("default search: got %+v", cfg.Search)
	}
	idx := cfg.Index
	if idx.Type != "graph" || idx.MaxDegree != 16 || idx.BeamWidth != 100 || idx.NeighborOverflow != 1.2 || idx.Alpha != 1.2 {
		t.Errorf("default index: got %+v", idx)
	}
	if cfg.Embedding.Dimensions != 0 {
		t.Errorf("openai dimensions should stay unset, got %d", cfg.Embedding.Dimensions)
	}
}

func TestApplyDefaults_localDimensions(t *testing.T) {
	cfg := &Config{Embedding: EmbeddingConfig{Provider: "onnx"}}
	ApplyDefaults(cfg)
	if cfg.Embedding.Dimensions != 384 {
		t.Errorf("onnx dimensions = %d, want 384", cfg.Embedding.Dimensions)
	}
	if cfg.Embedding.ModelPath == "" {
		t.Error("onnx model path should default")
	}
}

func TestSave(t *testing.T) {
	path := filepath.Join(t.TempDir(), "saved.yaml")
	cfg := &Config{
		Server:    ServerConfig{Host: "localhost", Port: 9090},
		Embedding: EmbeddingConfig{Provider: "mock", APIKey: "secret"},
	}
	if err := Save(path, cfg); err != nil {
		t.Fatal(err)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if strings.Contains(string(data), "secret") {
		t.Error("api key must not be written to disk")
	}
	loaded, err := Load(path)
	if err != nil {
		t.Fatal(err)
	}
	if loaded.Server.Port != 9090 {
		t.Errorf("loaded port: got %d", loaded.Server.Port)
	}
}
