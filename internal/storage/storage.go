// Package storage persists computed embeddings so repeated text is not re-embedded
// across server restarts.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when no vector is stored for a key.
var ErrNotFound = errors.New("embedding not found")

// EmbeddingStore maps content keys to vectors.
type EmbeddingStore interface {
	Get(ctx context.Context, key string) ([]float32, error)
	Put(ctx context.Context, key, model string, vector []float32) error
	Count(ctx context.Context) (int64, error)
	// SizeBytes reports the space the store occupies on disk.
	SizeBytes() (int64, error)
	Close() error
}
