package embedding

import (
	"fmt"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/shirabe/internal/config"
	"github.com/hyperjump/shirabe/internal/storage"
)

// New builds the configured provider wrapped in a CachedEmbedder.
func New(cfg config.EmbeddingConfig, logger *zap.Logger) (*CachedEmbedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var (
		inner Embedder
		err   error
	)
	switch cfg.Provider {
	case "openai":
		inner, err = NewOpenAIEmbedder(OpenAIConfig{
			BaseURL:           cfg.BaseURL,
			APIKey:            cfg.APIKey,
			Model:             cfg.Model,
			Dimensions:        cfg.Dimensions,
			Timeout:           cfg.Timeout,
			MaxBatchSize:      cfg.MaxBatchSize,
			RequestsPerSecond: cfg.RequestsPerSecond,
			Burst:             cfg.Burst,
			Retry: RetryConfig{
				MaxRetries: cfg.MaxRetries,
				BaseDelay:  200 * time.Millisecond,
				MaxDelay:   5 * time.Second,
				Multiplier: 2,
			},
			HTTPClient: &http.Client{},
		})
	case "onnx":
		inner, err = NewONNXEmbedder(cfg.ModelPath, cfg.Model, cfg.Dimensions, cfg.MaxTokens)
	case "mock":
		inner = NewMockEmbedder(cfg.Dimensions)
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s", cfg.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create %s embedder: %w", cfg.Provider, err)
	}

	opts := []CacheOption{WithCacheLogger(logger)}
	if cfg.CachePath != "" {
		store, err := storage.NewSQLiteStore(cfg.CachePath)
		if err != nil {
			_ = inner.Close()
			return nil, fmt.Errorf("failed to open embedding cache: %w", err)
		}
		logger.Info("persistent embedding cache enabled",
			zap.String("path", cfg.CachePath),
			zap.String("driver", storage.DriverName),
		)
		opts = append(opts, WithStore(store))
	}
	cached, err := NewCachedEmbedder(inner, cfg.CacheSize, opts...)
	if err != nil {
		_ = inner.Close()
		return nil, err
	}
	logger.Info("embedder ready",
		zap.String("provider", cfg.Provider),
		zap.String("model", inner.Model()),
		zap.Int("dimensions", inner.Dimensions()),
	)
	return cached, nil
}
