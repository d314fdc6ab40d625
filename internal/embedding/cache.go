package embedding

import (
	"context"
	"errors"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/hyperjump/shirabe/internal/digest"
	"github.com/hyperjump/shirabe/internal/storage"
)

// CachedEmbedder wraps an Embedder with an in-memory LRU and an optional persistent
// store. Keys include the model name so switching models never returns stale vectors.
type CachedEmbedder struct {
	inner  Embedder
	cache  *lru.Cache[string, []float32]
	size   int
	store  storage.EmbeddingStore
	logger *zap.Logger
}

// CacheOption configures a CachedEmbedder.
type CacheOption func(*CachedEmbedder)

// WithStore adds a persistent second tier consulted on LRU misses.
func WithStore(store storage.EmbeddingStore) CacheOption {
	return func(c *CachedEmbedder) {
		c.store = store
	}
}

// WithCacheLogger sets the logger used for store failures.
func WithCacheLogger(logger *zap.Logger) CacheOption {
	return func(c *CachedEmbedder) {
		c.logger = logger
	}
}

// NewCachedEmbedder wraps inner with an LRU holding up to size vectors.
func NewCachedEmbedder(inner Embedder, size int, opts ...CacheOption) (*CachedEmbedder, error) {
	if size <= 0 {
		size = 10000
	}
	cache, err := lru.New[string, []float32](size)
	if err != nil {
		return nil, err
	}
	c := &CachedEmbedder{inner: inner, cache: cache, size: size, logger: zap.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Embed returns the cached vector for text or computes and caches it.
func (c *CachedEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch serves hits from the cache and sends only the misses to the wrapped
// embedder, in one batch.
func (c *CachedEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := checkTexts(texts); err != nil {
		return nil, err
	}
	model := c.inner.Model()
	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missIdx []int
	var missTexts []string

	for i, text := range texts {
		keys[i] = digest.Text(model, text)
		if v, ok := c.lookup(ctx, keys[i]); ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return out, nil
	}

	vecs, err := c.inner.EmbedBatch(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	if len(vecs) != len(missTexts) {
		return nil, fmt.Errorf("%w: got %d vectors for %d texts", ErrProviderFailed, len(vecs), len(missTexts))
	}
	for j, i := range missIdx {
		out[i] = vecs[j]
		c.remember(ctx, keys[i], model, vecs[j])
	}
	return out, nil
}

func (c *CachedEmbedder) lookup(ctx context.Context, key string) ([]float32, bool) {
	if v, ok := c.cache.Get(key); ok {
		return copyVector(v), true
	}
	if c.store == nil {
		return nil, false
	}
	v, err := c.store.Get(ctx, key)
	if err != nil {
		if !errors.Is(err, storage.ErrNotFound) {
			c.logger.Warn("embedding store read failed", zap.Error(err))
		}
		return nil, false
	}
	if d := c.inner.Dimensions(); d > 0 && len(v) != d {
		return nil, false
	}
	c.cache.Add(key, v)
	return copyVector(v), true
}

func (c *CachedEmbedder) remember(ctx context.Context, key, model string, v []float32) {
	c.cache.Add(key, copyVector(v))
	if c.store == nil {
		return
	}
	if err := c.store.Put(ctx, key, model, v); err != nil {
		c.logger.Warn("embedding store write failed", zap.Error(err))
	}
}

// CacheStats describes both cache tiers.
type CacheStats struct {
	Entries     int   `json:"entries"`
	Capacity    int   `json:"capacity"`
	Persistent  bool  `json:"persistent"`
	Stored      int64 `json:"stored,omitempty"`
	StoredBytes int64 `json:"stored_bytes,omitempty"`
}

// Stats reports the LRU occupancy and, with a persistent store, its row count and
// size on disk.
func (c *CachedEmbedder) Stats(ctx context.Context) (CacheStats, error) {
	stats := CacheStats{
		Entries:    c.cache.Len(),
		Capacity:   c.size,
		Persistent: c.store != nil,
	}
	if c.store == nil {
		return stats, nil
	}
	count, err := c.store.Count(ctx)
	if err != nil {
		return stats, fmt.Errorf("count stored embeddings: %w", err)
	}
	size, err := c.store.SizeBytes()
	if err != nil {
		return stats, fmt.Errorf("embedding store size: %w", err)
	}
	stats.Stored = count
	stats.StoredBytes = size
	return stats, nil
}

// Len returns the number of vectors held in memory.
func (c *CachedEmbedder) Len() int {
	return c.cache.Len()
}

// Dimensions returns the wrapped embedder's dimension.
func (c *CachedEmbedder) Dimensions() int {
	return c.inner.Dimensions()
}

// Model returns the wrapped embedder's model.
func (c *CachedEmbedder) Model() string {
	return c.inner.Model()
}

// Close closes the store and the wrapped embedder.
func (c *CachedEmbedder) Close() error {
	var errs []error
	if c.store != nil {
		errs = append(errs, c.store.Close())
	}
	errs = append(errs, c.inner.Close())
	return errors.Join(errs...)
}

func copyVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
