package vector

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// GraphParams configures proximity graph construction and search.
type GraphParams struct {
	// MaxDegree is the number of neighbours a node keeps after pruning.
	MaxDegree int
	// BeamWidth is the candidate list size used while inserting a node.
	BeamWidth int
	// NeighborOverflow lets a neighbour list grow to MaxDegree*NeighborOverflow
	// before it is pruned back to MaxDegree.
	NeighborOverflow float64
	// Alpha relaxes the diversity test during pruning. 1.0 keeps only candidates
	// that are closer to the node than to any kept neighbour.
	Alpha float64
	// SearchBeamWidth is the minimum candidate list size used by Search.
	SearchBeamWidth int
}

// DefaultGraphParams returns degree 16, beam 100, overflow 1.2 and alpha 1.2.
func DefaultGraphParams() GraphParams {
	return GraphParams{
		MaxDegree:        16,
		BeamWidth:        100,
		NeighborOverflow: 1.2,
		Alpha:            1.2,
		SearchBeamWidth:  100,
	}
}

func (p GraphParams) withDefaults() GraphParams {
	d := DefaultGraphParams()
	if p.MaxDegree == 0 {
		p.MaxDegree = d.MaxDegree
	}
	if p.BeamWidth == 0 {
		p.BeamWidth = d.BeamWidth
	}
	if p.NeighborOverflow == 0 {
		p.NeighborOverflow = d.NeighborOverflow
	}
	if p.Alpha == 0 {
		p.Alpha = d.Alpha
	}
	if p.SearchBeamWidth == 0 {
		p.SearchBeamWidth = d.SearchBeamWidth
	}
	return p
}

func (p GraphParams) validate() error {
	if p.MaxDegree < 1 {
		return fmt.Errorf("max degree must be positive, got %d", p.MaxDegree)
	}
	if p.BeamWidth < 1 || p.SearchBeamWidth < 1 {
		return fmt.Errorf("beam width must be positive")
	}
	if p.NeighborOverflow < 1 {
		return fmt.Errorf("neighbor overflow must be at least 1, got %g", p.NeighborOverflow)
	}
	if p.Alpha < 1 {
		return fmt.Errorf("alpha must be at least 1, got %g", p.Alpha)
	}
	return nil
}

type candidate struct {
	node  int
	score float64
}

// GraphIndex is a Vamana-style proximity graph. Nodes are inserted in order; each
// insertion beam-searches the graph built so far, keeps a diverse subset of the
// candidates as neighbours and links back to them. Construction is deterministic.
type GraphIndex struct {
	dimensions int
	similarity Similarity
	params     GraphParams
	vectors    [][]float32
	neighbors  [][]int
	entry      int
	mu         sync.RWMutex
}

// NewGraphIndex creates an empty graph for vectors of the given dimension. Zero
// fields in params take their defaults.
func NewGraphIndex(dimensions int, sim Similarity, params GraphParams) (*GraphIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	params = params.withDefaults()
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &GraphIndex{dimensions: dimensions, similarity: sim, params: params}, nil
}

// Type returns the index type identifier.
func (g *GraphIndex) Type() string {
	return string(IndexTypeGraph)
}

// Add inserts vectors in order. Either all vectors are inserted or none.
func (g *GraphIndex) Add(vectors [][]float32) error {
	for _, v := range vectors {
		if err := checkVector(v, g.dimensions); err != nil {
			return err
		}
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	for _, v := range vectors {
		g.insert(v)
	}
	if len(g.vectors) > 0 {
		g.entry = g.medoid()
	}
	return nil
}

func (g *GraphIndex) insert(v []float32) {
	node := len(g.vectors)
	g.vectors = append(g.vectors, v)
	g.neighbors = append(g.neighbors, nil)
	if node == 0 {
		g.entry = 0
		return
	}

	g.neighbors[node] = g.prune(node, g.beamSearch(v, g.params.BeamWidth))

	limit := g.overflowLimit()
	for _, nb := range g.neighbors[node] {
		list := append(g.neighbors[nb], node)
		if len(list) > limit {
			list = g.prune(nb, g.scoreAgainst(nb, list))
		}
		g.neighbors[nb] = list
	}
}

func (g *GraphIndex) overflowLimit() int {
	return int(math.Ceil(float64(g.params.MaxDegree) * g.params.NeighborOverflow))
}

// scoreAgainst scores nodes against node and sorts them best first.
func (g *GraphIndex) scoreAgainst(node int, nodes []int) []candidate {
	out := make([]candidate, 0, len(nodes))
	for _, n := range nodes {
		if n == node {
			continue
		}
		out = append(out, candidate{node: n, score: g.similarity.Score(g.vectors[node], g.vectors[n])})
	}
	sortCandidates(out)
	return out
}

// prune selects up to MaxDegree neighbours for node from cands (sorted best first).
// A candidate is kept when it is not much closer to an already kept neighbour than
// to node. The diversity threshold is relaxed in steps from 1.0 up to Alpha so the
// list fills before falling back to less diverse candidates.
func (g *GraphIndex) prune(node int, cands []candidate) []int {
	limit := g.params.MaxDegree
	selected := make([]int, 0, limit)
	taken := make([]bool, len(cands))

	alphas := []float64{}
	for a := 1.0; a < g.params.Alpha; a += 0.2 {
		alphas = append(alphas, a)
	}
	alphas = append(alphas, g.params.Alpha)

	for _, a := range alphas {
		for i, c := range cands {
			if len(selected) >= limit {
				return selected
			}
			if taken[i] || c.node == node {
				continue
			}
			if g.diverse(c, selected, a) {
				selected = append(selected, c.node)
				taken[i] = true
			}
		}
	}
	return selected
}

func (g *GraphIndex) diverse(c candidate, selected []int, alpha float64) bool {
	cv := g.vectors[c.node]
	for _, s := range selected {
		if g.similarity.Score(cv, g.vectors[s]) > c.score*alpha {
			return false
		}
	}
	return true
}

type beamEntry struct {
	candidate
	expanded bool
}

// beamSearch walks the graph greedily from the entry node keeping the best width
// candidates seen, and returns them best first.
func (g *GraphIndex) beamSearch(query []float32, width int) []candidate {
	if len(g.vectors) == 0 {
		return nil
	}
	visited := make([]bool, len(g.vectors))
	visited[g.entry] = true
	beam := []beamEntry{{candidate: candidate{node: g.entry, score: g.similarity.Score(query, g.vectors[g.entry])}}}

	for {
		next := -1
		for i := range beam {
			if !beam[i].expanded {
				next = i
				break
			}
		}
		if next < 0 {
			break
		}
		beam[next].expanded = true
		for _, nb := range g.neighbors[beam[next].node] {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			c := candidate{node: nb, score: g.similarity.Score(query, g.vectors[nb])}
			if len(beam) >= width {
				worst := beam[len(beam)-1]
				if !better(c.score, c.node, worst.score, worst.node) {
					continue
				}
			}
			pos := sort.Search(len(beam), func(i int) bool {
				return better(c.score, c.node, beam[i].score, beam[i].node)
			})
			beam = append(beam, beamEntry{})
			copy(beam[pos+1:], beam[pos:])
			beam[pos] = beamEntry{candidate: c}
			if len(beam) > width {
				beam = beam[:width]
			}
		}
	}

	out := make([]candidate, len(beam))
	for i, e := range beam {
		out[i] = e.candidate
	}
	return out
}

// medoid returns the node most similar to the centroid of all vectors.
func (g *GraphIndex) medoid() int {
	centroid := make([]float32, g.dimensions)
	for _, v := range g.vectors {
		for i, x := range v {
			centroid[i] += x
		}
	}
	n := float32(len(g.vectors))
	for i := range centroid {
		centroid[i] /= n
	}
	best, bestScore := 0, math.Inf(-1)
	for i, v := range g.vectors {
		if s := g.similarity.Score(centroid, v); s > bestScore {
			best, bestScore = i, s
		}
	}
	return best
}

// Search returns the k most similar vectors, best first. Candidate scores are exact
// similarities. When the search beam covers the whole graph every node is scored.
func (g *GraphIndex) Search(query []float32, k int) ([]*VectorResult, error) {
	if err := checkVector(query, g.dimensions); err != nil {
		return nil, fmt.Errorf("query: %w", err)
	}
	g.mu.RLock()
	defer g.mu.RUnlock()
	n := len(g.vectors)
	if k <= 0 || n == 0 {
		return nil, nil
	}
	width := g.params.SearchBeamWidth
	if k > width {
		width = k
	}

	var cands []candidate
	if n <= width {
		cands = make([]candidate, n)
		for i, v := range g.vectors {
			cands[i] = candidate{node: i, score: g.similarity.Score(query, v)}
		}
		sortCandidates(cands)
	} else {
		cands = g.beamSearch(query, width)
	}

	if k > len(cands) {
		k = len(cands)
	}
	results := make([]*VectorResult, k)
	for i := 0; i < k; i++ {
		results[i] = &VectorResult{Node: cands[i].node, Score: cands[i].score}
	}
	return results, nil
}

// Neighbors returns a copy of node's neighbour list.
func (g *GraphIndex) Neighbors(node int) []int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if node < 0 || node >= len(g.neighbors) {
		return nil
	}
	return append([]int(nil), g.neighbors[node]...)
}

// Entry returns the node searches start from.
func (g *GraphIndex) Entry() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return g.entry
}

// Size returns the number of nodes in the graph.
func (g *GraphIndex) Size() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.vectors)
}

// Close releases the graph.
func (g *GraphIndex) Close() error {
	g.mu.Lock()
	g.vectors = nil
	g.neighbors = nil
	g.entry = 0
	g.mu.Unlock()
	return nil
}

func sortCandidates(c []candidate) {
	sort.Slice(c, func(i, j int) bool {
		return better(c[i].score, c[i].node, c[j].score, c[j].node)
	})
}
