package vector

import "fmt"

// IndexType represents the type of vector index to use.
type IndexType string

const (
	// IndexTypeGraph builds a proximity graph and answers queries with a beam search.
	IndexTypeGraph IndexType = "graph"
	// IndexTypeFlat scores every vector. Exact, linear per query.
	IndexTypeFlat IndexType = "flat"
)

// Options selects the index type, similarity function and graph parameters.
type Options struct {
	Type       IndexType
	Similarity Similarity
	Graph      GraphParams
}

// NewVectorIndex creates an empty vector index of the configured type.
func NewVectorIndex(opts Options, dimensions int) (VectorIndex, error) {
	sim := opts.Similarity
	if sim == "" {
		sim = Cosine
	}
	switch opts.Type {
	case IndexTypeGraph, "":
		return NewGraphIndex(dimensions, sim, opts.Graph)
	case IndexTypeFlat:
		return NewFlatIndex(dimensions, sim)
	default:
		return nil, fmt.Errorf("unknown index type: %s (supported: graph, flat)", opts.Type)
	}
}
