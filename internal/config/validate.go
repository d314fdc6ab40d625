package config

import (
	"errors"
	"fmt"
	"strings"
)

var (
	providers    = []string{"openai", "onnx", "mock"}
	similarities = []string{"cosine", "dot_product", "euclidean"}
	indexTypes   = []string{"graph", "flat"}
)

// Validate checks that cfg holds usable values. Call after ApplyDefaults.
func (c *Config) Validate() error {
	var errs []error
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Errorf("server.port %d out of range", c.Server.Port))
	}
	if !oneOf(c.Embedding.Provider, providers) {
		errs = append(errs, fmt.Errorf("embedding.provider %q not one of %s", c.Embedding.Provider, strings.Join(providers, ", ")))
	}
	if c.Embedding.Provider == "openai" && c.Embedding.APIKey == "" {
		errs = append(errs, fmt.Errorf("embedding provider openai requires %s to be set", c.Embedding.APIKeyEnv))
	}
	if c.Embedding.Dimensions < 0 {
		errs = append(errs, errors.New("embedding.dimensions must not be negative"))
	}
	if c.Embedding.BatchSize > c.Embedding.MaxBatchSize {
		errs = append(errs, fmt.Errorf("embedding.batch_size %d exceeds max_batch_size %d", c.Embedding.BatchSize, c.Embedding.MaxBatchSize))
	}
	if c.Embedding.Concurrency < 1 {
		errs = append(errs, errors.New("embedding.concurrency must be at least 1"))
	}
	if c.Search.TopK < 1 || c.Search.TopK > c.Search.MaxTopK {
		errs = append(errs, fmt.Errorf("search.top_k %d must be between 1 and max_top_k %d", c.Search.TopK, c.Search.MaxTopK))
	}
	if !oneOf(c.Search.Similarity, similarities) {
		errs = append(errs, fmt.Errorf("search.similarity %q not one of %s", c.Search.Similarity, strings.Join(similarities, ", ")))
	}
	if !oneOf(c.Index.Type, indexTypes) {
		errs = append(errs, fmt.Errorf("index.type %q not one of %s", c.Index.Type, strings.Join(indexTypes, ", ")))
	}
	if c.Index.MaxDegree < 2 {
		errs = append(errs, errors.New("index.max_degree must be at least 2"))
	}
	if c.Index.BeamWidth < c.Index.MaxDegree {
		errs = append(errs, fmt.Errorf("index.beam_width %d must be at least max_degree %d", c.Index.BeamWidth, c.Index.MaxDegree))
	}
	if c.Index.NeighborOverflow < 1 {
		errs = append(errs, errors.New("index.neighbor_overflow must be at least 1.0"))
	}
	if c.Index.Alpha < 1 {
		errs = append(errs, errors.New("index.alpha must be at least 1.0"))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}
	return nil
}

func oneOf(v string, allowed []string) bool {
	for _, a := range allowed {
		if v == a {
			return true
		}
	}
	return false
}
