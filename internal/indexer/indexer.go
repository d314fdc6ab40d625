// Package indexer ingests documents into sessions: it embeds every page and commits
// the document only when all pages have vectors.
package indexer

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hyperjump/shirabe/internal/apperr"
	"github.com/hyperjump/shirabe/internal/config"
	"github.com/hyperjump/shirabe/internal/embedding"
	"github.com/hyperjump/shirabe/internal/extract"
	"github.com/hyperjump/shirabe/internal/models"
	"github.com/hyperjump/shirabe/internal/session"
	"github.com/hyperjump/shirabe/pkg/utils"
)

const maxTitleLen = 200

// Indexer embeds documents and appends them to their session.
type Indexer struct {
	sessions  *session.Registry
	embedder  embedding.Embedder
	extractor *extract.Extractor
	config    *config.EmbeddingConfig
	logger    *zap.Logger
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for ingestion events. Page text is never logged.
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// NewIndexer creates an indexer with the given dependencies.
// extractor may be nil; when nil, AddFile extracts with a default Extractor.
func NewIndexer(
	sessions *session.Registry,
	embedder embedding.Embedder,
	extractor *extract.Extractor,
	cfg *config.EmbeddingConfig,
	opts ...IndexerOption,
) *Indexer {
	if extractor == nil {
		extractor = extract.NewExtractor()
	}
	idx := &Indexer{
		sessions:  sessions,
		embedder:  embedder,
		extractor: extractor,
		config:    cfg,
		logger:    zap.NewNop(),
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx
}

// AddFile extracts content by filename and adds the result to the session.
func (idx *Indexer) AddFile(ctx context.Context, sessionID, filename string, content []byte) (string, error) {
	if _, err := idx.sessions.Get(sessionID); err != nil {
		return "", err
	}
	input, err := idx.extractor.ExtractBytes(content, filename)
	if err != nil {
		return "", err
	}
	return idx.AddDocument(ctx, sessionID, input)
}

// Extract runs the extractor on content without touching any session.
func (idx *Indexer) Extract(filename string, content []byte) (*models.DocumentInput, error) {
	return idx.extractor.ExtractBytes(content, filename)
}

// AddDocument embeds every page of input and appends the document to the session.
// If any page fails to embed nothing is appended and the error is a
// PartialEmbeddingError carrying how many pages succeeded.
func (idx *Indexer) AddDocument(ctx context.Context, sessionID string, input *models.DocumentInput) (string, error) {
	const op = "add_document"
	sess, err := idx.sessions.Get(sessionID)
	if err != nil {
		return "", err
	}
	if err := validate(input); err != nil {
		return "", err
	}

	start := time.Now()
	doc := &models.Document{
		ID:        uuid.New().String(),
		Title:     documentTitle(input),
		Filename:  input.Filename,
		Pages:     make([]*models.Page, len(input.Pages)),
		CreatedAt: start,
	}
	texts := make([]string, len(input.Pages))
	for i, p := range input.Pages {
		doc.Pages[i] = models.NewPage(i+1, p.Text)
		texts[i] = embeddingInput(p.Text, idx.config.MaxInputWords)
	}

	vectors, succeeded, err := idx.embedPages(ctx, texts)
	if err != nil {
		idx.logger.Warn("document not added",
			zap.String("session_id", sessionID),
			zap.String("op", op),
			zap.Int("succeeded", succeeded),
			zap.Int("total", len(texts)),
			zap.Error(err),
		)
		return "", apperr.PartialEmbedding(op, succeeded, len(texts), err)
	}
	for i, p := range doc.Pages {
		if err := p.SetVector(vectors[i]); err != nil {
			return "", fmt.Errorf("%s: %w", op, err)
		}
	}
	if err := sess.Append(doc); err != nil {
		return "", err
	}

	idx.logger.Debug("document added",
		zap.String("session_id", sessionID),
		zap.String("document_id", doc.ID),
		zap.Int("pages", len(doc.Pages)),
		zap.Duration("elapsed", time.Since(start)),
	)
	return doc.ID, nil
}

// embedPages embeds texts in batches of BatchSize, running up to Concurrency
// batches at once. The first failure cancels the remaining batches. succeeded
// counts the pages in batches that completed.
func (idx *Indexer) embedPages(ctx context.Context, texts []string) (vectors [][]float32, succeeded int, err error) {
	batchSize := idx.config.BatchSize
	if batchSize <= 0 {
		batchSize = len(texts)
	}
	vectors = make([][]float32, len(texts))
	var done atomic.Int64

	g, gctx := errgroup.WithContext(ctx)
	if idx.config.Concurrency > 0 {
		g.SetLimit(idx.config.Concurrency)
	}
	for start := 0; start < len(texts); start += batchSize {
		start := start
		end := start + batchSize
		if end > len(texts) {
			end = len(texts)
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			vecs, err := idx.embedder.EmbedBatch(gctx, texts[start:end])
			if err != nil {
				return apperr.Embedding("embed_pages", fmt.Errorf("pages %d-%d: %w", start+1, end, err))
			}
			if len(vecs) != end-start {
				return apperr.Embedding("embed_pages", fmt.Errorf("got %d vectors for %d pages", len(vecs), end-start))
			}
			copy(vectors[start:end], vecs)
			done.Add(int64(end - start))
			return nil
		})
	}
	err = g.Wait()
	return vectors, int(done.Load()), err
}

// validate checks that input has pages and that page numbers are either all unset
// or exactly 1..n in order.
func validate(input *models.DocumentInput) error {
	const op = "add_document"
	if input == nil || len(input.Pages) == 0 {
		return apperr.InvalidInput(op, "document must have at least one page")
	}
	numbered := input.Pages[0].Number != 0
	for i, p := range input.Pages {
		if !numbered && p.Number == 0 {
			continue
		}
		if p.Number != i+1 {
			return apperr.InvalidInput(op, fmt.Sprintf("page %d has number %d; pages must be numbered 1..%d in order", i+1, p.Number, len(input.Pages)))
		}
	}
	return nil
}

// documentTitle returns the given title, or the first page's text with newlines
// stripped.
func documentTitle(input *models.DocumentInput) string {
	if t := utils.CollapseWhitespace(input.Title); t != "" {
		return t
	}
	for _, p := range input.Pages {
		if t := utils.CollapseWhitespace(p.Text); t != "" {
			return utils.Truncate(t, maxTitleLen)
		}
	}
	return input.Filename
}
