// Package search answers similarity queries against one session. Every query builds
// a fresh vector index over the session's current page vectors.
package search

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/shirabe/internal/apperr"
	"github.com/hyperjump/shirabe/internal/config"
	"github.com/hyperjump/shirabe/internal/embedding"
	"github.com/hyperjump/shirabe/internal/models"
	"github.com/hyperjump/shirabe/internal/session"
	"github.com/hyperjump/shirabe/internal/vector"
	"github.com/hyperjump/shirabe/pkg/utils"
)

// Engine runs k-NN page search over a session.
type Engine struct {
	sessions *session.Registry
	embedder embedding.Embedder
	config   *config.SearchConfig
	index    vector.Options
	logger   *zap.Logger
	// maxInputWords caps the query sent to the embedder, as pages are capped.
	maxInputWords int
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger sets a logger for search events. Query and page text are never logged.
func WithLogger(l *zap.Logger) EngineOption {
	return func(e *Engine) { e.logger = l }
}

// WithMaxInputWords cuts queries to n words before embedding. n <= 0 means no cap.
func WithMaxInputWords(n int) EngineOption {
	return func(e *Engine) { e.maxInputWords = n }
}

// NewEngine creates a search engine. It fails if the similarity function or index
// type in the configuration is unknown.
func NewEngine(
	sessions *session.Registry,
	embedder embedding.Embedder,
	searchCfg *config.SearchConfig,
	indexCfg *config.IndexConfig,
	opts ...EngineOption,
) (*Engine, error) {
	sim, err := vector.ParseSimilarity(searchCfg.Similarity)
	if err != nil {
		return nil, err
	}
	e := &Engine{
		sessions: sessions,
		embedder: embedder,
		config:   searchCfg,
		index:    IndexOptions(indexCfg, sim),
		logger:   zap.NewNop(),
	}
	if _, err := vector.NewVectorIndex(e.index, 1); err != nil {
		return nil, err
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// IndexOptions maps the index configuration onto vector index options.
func IndexOptions(cfg *config.IndexConfig, sim vector.Similarity) vector.Options {
	return vector.Options{
		Type:       vector.IndexType(cfg.Type),
		Similarity: sim,
		Graph: vector.GraphParams{
			MaxDegree:        cfg.MaxDegree,
			BeamWidth:        cfg.BeamWidth,
			NeighborOverflow: cfg.NeighborOverflow,
			Alpha:            cfg.Alpha,
			SearchBeamWidth:  cfg.SearchBeamWidth,
		},
	}
}

// pageRef resolves an index position back to its page.
type pageRef struct {
	doc  *models.Document
	page *models.Page
}

// Search embeds the query, indexes every page vector in the session and returns the
// top K pages, best first. Equal scores keep document-then-page order.
func (e *Engine) Search(ctx context.Context, sessionID string, query *models.SearchQuery) (*models.SearchResponse, error) {
	const op = "search"
	start := time.Now()

	sess, err := e.sessions.Get(sessionID)
	if err != nil {
		return nil, err
	}
	if query == nil {
		return nil, apperr.EmptyQuery(op)
	}
	q := *query
	if !q.Normalize(e.config.TopK, e.config.MaxTopK) {
		return nil, apperr.EmptyQuery(op)
	}

	docs, err := sess.Snapshot()
	if err != nil {
		return nil, err
	}
	vectors, refs := collect(docs)
	if len(vectors) == 0 {
		return nil, apperr.NoDocuments(op, sessionID)
	}

	qvec, err := e.embedder.Embed(ctx, utils.TruncateWords(utils.CollapseWhitespace(q.Query), e.maxInputWords))
	if err != nil {
		return nil, apperr.Embedding(op, err)
	}

	idx, err := vector.NewVectorIndex(e.index, len(vectors[0]))
	if err != nil {
		return nil, apperr.Index(op, err)
	}
	defer idx.Close()
	buildStart := time.Now()
	if err := idx.Add(vectors); err != nil {
		return nil, apperr.Index(op, fmt.Errorf("build: %w", err))
	}
	buildTime := time.Since(buildStart)
	hits, err := idx.Search(qvec, q.TopK)
	if err != nil {
		return nil, apperr.Index(op, fmt.Errorf("query: %w", err))
	}

	results := make([]*models.SearchResult, len(hits))
	for i, h := range hits {
		ref := refs[h.Node]
		results[i] = &models.SearchResult{
			DocumentID:    ref.doc.ID,
			DocumentTitle: ref.doc.Title,
			PageNumber:    ref.page.Number,
			Score:         h.Score,
			Text:          ref.page.Text,
			Rank:          i + 1,
		}
	}

	elapsed := time.Since(start)
	e.logger.Debug("search completed",
		zap.String("session_id", sessionID),
		zap.String("index", idx.Type()),
		zap.Int("candidates", len(vectors)),
		zap.Int("results", len(results)),
		zap.Duration("build", buildTime),
		zap.Duration("elapsed", elapsed),
	)
	return &models.SearchResponse{
		SessionID: sessionID,
		Query:     q.Query,
		Results:   results,
		Total:     len(results),
		QueryTime: elapsed.Milliseconds(),
	}, nil
}

// collect returns every page vector in document-then-page order with a parallel
// slice resolving each position to its page.
func collect(docs []*models.Document) ([][]float32, []pageRef) {
	var vectors [][]float32
	var refs []pageRef
	for _, d := range docs {
		for _, p := range d.Pages {
			vectors = append(vectors, p.Vector())
			refs = append(refs, pageRef{doc: d, page: p})
		}
	}
	return vectors, refs
}
