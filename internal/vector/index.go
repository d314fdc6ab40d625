// Package vector provides similarity functions and the vector indexes built per search.
package vector

import (
	"fmt"
	"math"
)

// VectorIndex stores vectors by insertion position and answers k-NN queries.
// Nodes are numbered 0..Size()-1 in the order they were added.
type VectorIndex interface {
	Add(vectors [][]float32) error
	Search(query []float32, k int) ([]*VectorResult, error)
	Size() int
	Type() string
	Close() error
}

// VectorResult is a single search hit. Node is the insertion position of the vector.
type VectorResult struct {
	Node  int
	Score float64
}

func checkVector(v []float32, dimensions int) error {
	if len(v) != dimensions {
		return fmt.Errorf("vector dimension mismatch: got %d, expected %d", len(v), dimensions)
	}
	for i, x := range v {
		if math.IsNaN(float64(x)) || math.IsInf(float64(x), 0) {
			return fmt.Errorf("vector component %d is not finite", i)
		}
	}
	return nil
}

// better orders hits by score descending, then by insertion position ascending.
func better(aScore float64, aNode int, bScore float64, bNode int) bool {
	if aScore != bScore {
		return aScore > bScore
	}
	return aNode < bNode
}
