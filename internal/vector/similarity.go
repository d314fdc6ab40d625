package vector

import (
	"fmt"
	"math"
)

// Similarity names a vector similarity function. Scores are oriented so that
// higher means more similar.
type Similarity string

const (
	// Cosine scores (1 + cos θ) / 2, in [0, 1].
	Cosine Similarity = "cosine"
	// DotProduct scores (1 + a·b) / 2; in [0, 1] for unit vectors.
	DotProduct Similarity = "dot_product"
	// Euclidean scores 1 / (1 + ‖a-b‖²), in (0, 1].
	Euclidean Similarity = "euclidean"
)

// ParseSimilarity returns the Similarity for name.
func ParseSimilarity(name string) (Similarity, error) {
	switch s := Similarity(name); s {
	case Cosine, DotProduct, Euclidean:
		return s, nil
	case "":
		return Cosine, nil
	default:
		return "", fmt.Errorf("unknown similarity function: %s (supported: cosine, dot_product, euclidean)", name)
	}
}

// Score returns the similarity of a and b. Vectors must have equal length.
func (s Similarity) Score(a, b []float32) float64 {
	switch s {
	case DotProduct:
		return (1 + InnerProduct(a, b)) / 2
	case Euclidean:
		return 1 / (1 + SquaredDistance(a, b))
	default:
		return (1 + CosineSimilarity(a, b)) / 2
	}
}

// InnerProduct returns the inner product of two vectors (for normalized vectors equals cosine similarity).
func InnerProduct(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

// L2Norm returns the L2 norm of a vector.
func L2Norm(x []float32) float64 {
	var sum float64
	for _, v := range x {
		sum += float64(v) * float64(v)
	}
	return math.Sqrt(sum)
}

// SquaredDistance returns the squared Euclidean distance between a and b.
func SquaredDistance(a, b []float32) float64 {
	var sum float64
	for i := range a {
		d := float64(a[i]) - float64(b[i])
		sum += d * d
	}
	return sum
}

// CosineSimilarity returns the cosine of the angle between a and b in [-1, 1].
// Zero vectors have similarity 0 to everything.
func CosineSimilarity(a, b []float32) float64 {
	na, nb := L2Norm(a), L2Norm(b)
	if na == 0 || nb == 0 {
		return 0
	}
	c := InnerProduct(a, b) / (na * nb)
	return math.Max(-1, math.Min(1, c))
}
