package vector

import (
	"fmt"
	"sort"
	"sync"
)

// FlatIndex scores every vector against the query. It is exact and serves as the
// baseline the graph index is measured against.
type FlatIndex struct {
	dimensions int
	similarity Similarity
	vectors    [][]float32
	mu         sync.RWMutex
}

// NewFlatIndex creates an exact index for vectors of the given dimension.
func NewFlatIndex(dimensions int, sim Similarity) (*FlatIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &FlatIndex{dimensions: dimensions, similarity: sim}, nil
}

// Type returns the index type identifier.
func (f *FlatIndex) Type() string {
	return string(IndexTypeFlat)
}

// Add appends vectors. Either all vectors are added or none.
func (f *FlatIndex) Add(vectors [][]float32) error {
	for _, v := range vectors {
		if err := checkVector(v, f.dimensions); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors = append(f.vectors, vectors...)
	return nil
}

// Search returns the k most similar vectors, best first.
func (f *FlatIndex) Search(query []float32, k int) ([]*VectorResult, error) {
	if err := checkVector(query, f.dimensions); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	f.mu.RLock()
	defer f.mu.RUnlock()
	if k <= 0 || len(f.vectors) == 0 {
		return nil, nil
	}
	results := make([]*VectorResult, len(f.vectors))
	for i, vec := range f.vectors {
		results[i] = &VectorResult{Node: i, Score: f.similarity.Score(query, vec)}
	}
	sort.Slice(results, func(i, j int) bool {
		return better(results[i].Score, results[i].Node, results[j].Score, results[j].Node)
	})
	if k > len(results) {
		k = len(results)
	}
	return results[:k], nil
}

// Size returns the number of vectors in the index.
func (f *FlatIndex) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Close releases the vectors.
func (f *FlatIndex) Close() error {
	f.mu.Lock()
	f.vectors = nil
	f.mu.Unlock()
	return nil
}
