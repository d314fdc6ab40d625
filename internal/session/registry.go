// Package session provides the concurrent registry of search sessions and the
// per-session document store.
package session

import (
	"hash/fnv"
	"sync"

	"github.com/google/uuid"
	"github.com/hyperjump/shirabe/internal/apperr"
)

const shardCount = 32

// Registry maps session ids to sessions. Each shard has its own lock so that
// create and end on different sessions do not contend.
type Registry struct {
	shards [shardCount]shard
}

type shard struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// Stats summarizes registry contents.
type Stats struct {
	Sessions  int `json:"sessions"`
	Documents int `json:"documents"`
	Pages     int `json:"pages"`
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	r := &Registry{}
	for i := range r.shards {
		r.shards[i].sessions = make(map[string]*Session)
	}
	return r
}

func (r *Registry) shardFor(id string) *shard {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return &r.shards[h.Sum32()%shardCount]
}

// Create registers a new empty session and returns its id.
func (r *Registry) Create() string {
	for {
		id := uuid.New().String()
		s := r.shardFor(id)
		s.mu.Lock()
		if _, taken := s.sessions[id]; taken {
			s.mu.Unlock()
			continue
		}
		s.sessions[id] = newSession(id)
		s.mu.Unlock()
		return id
	}
}

// Exists reports whether id names a live session.
func (r *Registry) Exists(id string) bool {
	s := r.shardFor(id)
	s.mu.RLock()
	defer s.mu.RUnlock()
	_, ok := s.sessions[id]
	return ok
}

// Get returns the live session for id, or a session_not_found error.
func (r *Registry) Get(id string) (*Session, error) {
	s := r.shardFor(id)
	s.mu.RLock()
	sess, ok := s.sessions[id]
	s.mu.RUnlock()
	if !ok {
		return nil, apperr.SessionNotFound("get_session", id)
	}
	return sess, nil
}

// End removes the session and discards its documents. It reports whether a
// session was removed; ending an unknown id is a no-op.
func (r *Registry) End(id string) bool {
	s := r.shardFor(id)
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		delete(s.sessions, id)
	}
	s.mu.Unlock()
	if ok {
		sess.close()
	}
	return ok
}

// Len returns the number of live sessions.
func (r *Registry) Len() int {
	n := 0
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		n += len(s.sessions)
		s.mu.RUnlock()
	}
	return n
}

// Stats counts sessions, documents and pages across the registry.
func (r *Registry) Stats() Stats {
	var st Stats
	for i := range r.shards {
		s := &r.shards[i]
		s.mu.RLock()
		for _, sess := range s.sessions {
			st.Sessions++
			docs := sess.Documents()
			st.Documents += len(docs)
			for _, d := range docs {
				st.Pages += len(d.Pages)
			}
		}
		s.mu.RUnlock()
	}
	return st
}
