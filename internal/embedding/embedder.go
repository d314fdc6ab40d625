// Package embedding turns text into vectors. Providers are an OpenAI-compatible
// HTTP API, a local ONNX model and a deterministic mock; any of them can be wrapped
// in a caching decorator.
package embedding

import (
	"context"
	"errors"
	"strings"
)

var (
	// ErrEmptyText is returned for empty or whitespace-only input.
	ErrEmptyText = errors.New("text cannot be empty")
	// ErrProviderFailed is returned when the provider rejects a request or answers
	// with something that is not a usable embedding.
	ErrProviderFailed = errors.New("embedding provider failed")
	// ErrRateLimited is returned when the provider keeps throttling after all retries.
	ErrRateLimited = errors.New("embedding provider rate limited")
	// ErrTimeout is returned when a single provider call outlives its timeout.
	// Expired calls are not retried.
	ErrTimeout = errors.New("embedding provider timed out")
)

// Embedder produces vector embeddings for text.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	// EmbedBatch returns one vector per text, in input order. A single failing text
	// fails the whole batch.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	// Dimensions returns the vector length, or 0 if not known until the first call.
	Dimensions() int
	Model() string
	Close() error
}

func checkTexts(texts []string) error {
	for _, t := range texts {
		if strings.TrimSpace(t) == "" {
			return ErrEmptyText
		}
	}
	return nil
}
