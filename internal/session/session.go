package session

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/hyperjump/shirabe/internal/apperr"
	"github.com/hyperjump/shirabe/internal/models"
)

// Session is an isolated set of ingested documents.
//
// Documents are held as an immutable slice behind an atomic pointer. Appends are
// serialized by mu and publish a new slice; readers take a snapshot without locking.
// An ended session rejects further appends, so a document is never committed to a
// session that is no longer registered. A search holding an earlier snapshot
// completes against it.
type Session struct {
	id        string
	createdAt time.Time

	mu         sync.Mutex
	docs       atomic.Pointer[[]*models.Document]
	dimensions int
	closed     bool
}

func newSession(id string) *Session {
	s := &Session{id: id, createdAt: time.Now()}
	empty := []*models.Document{}
	s.docs.Store(&empty)
	return s
}

// ID returns the session id.
func (s *Session) ID() string { return s.id }

// CreatedAt returns when the session was created.
func (s *Session) CreatedAt() time.Time { return s.createdAt }

// Documents returns the current document snapshot in insertion order. The slice
// must not be modified.
func (s *Session) Documents() []*models.Document {
	return *s.docs.Load()
}

// Dimensions returns the vector length shared by every page in the session, or 0
// before the first document is added.
func (s *Session) Dimensions() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.dimensions
}

// Info returns a summary of the session.
func (s *Session) Info() models.SessionInfo {
	docs := s.Documents()
	pages := 0
	for _, d := range docs {
		pages += len(d.Pages)
	}
	return models.SessionInfo{ID: s.id, Documents: len(docs), Pages: pages, CreatedAt: s.createdAt}
}

// Append commits a fully embedded document. It fails when the session has ended,
// when a page is missing its vector, or when the vector length differs from the
// vectors already held by the session.
func (s *Session) Append(doc *models.Document) error {
	if !doc.Embedded() {
		return apperr.Embedding("append_document", fmt.Errorf("document %s has pages without vectors", doc.ID))
	}
	dims := len(doc.Pages[0].Vector())
	for _, p := range doc.Pages {
		if len(p.Vector()) != dims {
			return apperr.Embedding("append_document",
				fmt.Errorf("dimension mismatch within document: page %d has %d, expected %d", p.Number, len(p.Vector()), dims))
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return apperr.SessionNotFound("append_document", s.id)
	}
	if s.dimensions != 0 && s.dimensions != dims {
		return apperr.Embedding("append_document",
			fmt.Errorf("dimension mismatch: document has %d, session has %d", dims, s.dimensions))
	}
	current := *s.docs.Load()
	next := make([]*models.Document, len(current), len(current)+1)
	copy(next, current)
	next = append(next, doc)
	s.docs.Store(&next)
	s.dimensions = dims
	return nil
}

// Closed reports whether the session has been ended.
func (s *Session) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

// Snapshot returns the current documents, or session_not_found when the session
// has ended. Callers that observe the session before it ends keep a usable snapshot.
func (s *Session) Snapshot() ([]*models.Document, error) {
	docs := s.Documents()
	if s.Closed() {
		return nil, apperr.SessionNotFound("snapshot", s.id)
	}
	return docs, nil
}

func (s *Session) close() {
	s.mu.Lock()
	s.closed = true
	empty := []*models.Document{}
	s.docs.Store(&empty)
	s.mu.Unlock()
}
