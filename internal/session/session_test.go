package session

import (
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/hyperjump/shirabe/internal/apperr"
	"github.com/hyperjump/shirabe/internal/models"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func embeddedDoc(t *testing.T, dims int, pages ...string) *models.Document {
	t.Helper()
	doc := &models.Document{ID: uuid.New().String(), Title: "doc"}
	for i, text := range pages {
		p := models.NewPage(i+1, text)
		require.NoError(t, p.SetVector(make([]float32, dims)))
		doc.Pages = append(doc.Pages, p)
	}
	return doc
}

func TestRegistryLifecycle(t *testing.T) {
	r := NewRegistry()
	unknown := uuid.New().String()
	assert.False(t, r.Exists(unknown))

	id := r.Create()
	assert.True(t, r.Exists(id))
	sess, err := r.Get(id)
	require.NoError(t, err)
	assert.Equal(t, id, sess.ID())

	assert.True(t, r.End(id))
	assert.False(t, r.Exists(id))
	_, err = r.Get(id)
	assert.ErrorIs(t, err, apperr.ErrSessionNotFound)
}

func TestRegistryEndUnknownIsNoop(t *testing.T) {
	r := NewRegistry()
	assert.False(t, r.End("never-created"))
	id := r.Create()
	assert.True(t, r.End(id))
	assert.False(t, r.End(id))
}

func TestRegistryConcurrentCreateUnique(t *testing.T) {
	r := NewRegistry()
	const workers, perWorker = 16, 200
	ids := make(chan string, workers*perWorker)
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				ids <- r.Create()
			}
		}()
	}
	wg.Wait()
	close(ids)

	seen := make(map[string]bool)
	for id := range ids {
		require.False(t, seen[id], "duplicate id %s", id)
		seen[id] = true
	}
	assert.Equal(t, workers*perWorker, r.Len())
}

func TestSessionAppend(t *testing.T) {
	r := NewRegistry()
	sess, err := r.Get(r.Create())
	require.NoError(t, err)
	assert.Equal(t, 0, sess.Dimensions())

	require.NoError(t, sess.Append(embeddedDoc(t, 4, "a", "b")))
	require.NoError(t, sess.Append(embeddedDoc(t, 4, "c")))
	assert.Len(t, sess.Documents(), 2)
	assert.Equal(t, 4, sess.Dimensions())

	info := sess.Info()
	assert.Equal(t, 2, info.Documents)
	assert.Equal(t, 3, info.Pages)

	st := r.Stats()
	assert.Equal(t, Stats{Sessions: 1, Documents: 2, Pages: 3}, st)
}

func TestSessionAppendRejectsDimensionMismatch(t *testing.T) {
	sess := newSession("s")
	require.NoError(t, sess.Append(embeddedDoc(t, 4, "a")))

	err := sess.Append(embeddedDoc(t, 8, "b"))
	assert.ErrorIs(t, err, apperr.ErrEmbedding)
	assert.Len(t, sess.Documents(), 1)
}

func TestSessionAppendRejectsMissingVectors(t *testing.T) {
	sess := newSession("s")
	doc := &models.Document{ID: "d", Pages: []*models.Page{models.NewPage(1, "x")}}
	assert.ErrorIs(t, sess.Append(doc), apperr.ErrEmbedding)
	assert.Empty(t, sess.Documents())
}

func TestSessionAppendAfterEnd(t *testing.T) {
	r := NewRegistry()
	id := r.Create()
	sess, err := r.Get(id)
	require.NoError(t, err)
	r.End(id)

	err = sess.Append(embeddedDoc(t, 4, "late"))
	assert.ErrorIs(t, err, apperr.ErrSessionNotFound)
	_, err = sess.Snapshot()
	assert.ErrorIs(t, err, apperr.ErrSessionNotFound)
}

func TestSnapshotIsStableAcrossAppends(t *testing.T) {
	sess := newSession("s")
	require.NoError(t, sess.Append(embeddedDoc(t, 2, "a")))
	snap, err := sess.Snapshot()
	require.NoError(t, err)
	require.NoError(t, sess.Append(embeddedDoc(t, 2, "b")))
	assert.Len(t, snap, 1)
	assert.Len(t, sess.Documents(), 2)
}

func TestConcurrentAppendSnapshotEnd(t *testing.T) {
	r := NewRegistry()
	id := r.Create()
	sess, err := r.Get(id)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 50; i++ {
				err := sess.Append(embeddedDoc(t, 3, "p"))
				if err != nil {
					assert.ErrorIs(t, err, apperr.ErrSessionNotFound)
				}
			}
		}()
	}
	for w := 0; w < 4; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 100; i++ {
				docs, err := sess.Snapshot()
				if err != nil {
					assert.ErrorIs(t, err, apperr.ErrSessionNotFound)
					continue
				}
				for _, d := range docs {
					assert.True(t, d.Embedded())
				}
			}
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		r.End(id)
	}()
	wg.Wait()

	assert.False(t, r.Exists(id))
	assert.True(t, sess.Closed())
}
