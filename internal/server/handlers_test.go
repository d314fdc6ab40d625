package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/hyperjump/shirabe/internal/apperr"
	"github.com/hyperjump/shirabe/internal/config"
	"github.com/hyperjump/shirabe/internal/embedding"
	"github.com/hyperjump/shirabe/internal/indexer"
	"github.com/hyperjump/shirabe/internal/models"
	"github.com/hyperjump/shirabe/internal/search"
	"github.com/hyperjump/shirabe/internal/session"
	"go.uber.org/zap"
)

type failingEmbedder struct {
	*embedding.MockEmbedder
}

func (failingEmbedder) EmbedBatch(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("provider unavailable")
}

func newTestServer(t *testing.T, emb embedding.Embedder, tweak func(*config.Config)) (*Server, *session.Registry) {
	t.Helper()
	cfg := &config.Config{}
	cfg.Embedding.Provider = "mock"
	config.ApplyDefaults(cfg)
	if tweak != nil {
		tweak(cfg)
	}
	if emb == nil {
		emb = embedding.NewMockEmbedder(64)
	}
	reg := session.NewRegistry()
	engine, err := search.NewEngine(reg, emb, &cfg.Search, &cfg.Index)
	if err != nil {
		t.Fatalf("NewEngine: %v", err)
	}
	idx := indexer.NewIndexer(reg, emb, nil, &cfg.Embedding)
	return NewServer(reg, idx, engine, cfg, zap.NewNop()), reg
}

func do(t *testing.T, srv *Server, method, path, contentType string, body io.Reader) *httptest.ResponseRecorder {
	t.Helper()
	r := httptest.NewRequest(method, path, body)
	if contentType != "" {
		r.Header.Set("Content-Type", contentType)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, r)
	return w
}

func doJSON(t *testing.T, srv *Server, method, path string, v interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var body io.Reader
	if v != nil {
		data, err := json.Marshal(v)
		if err != nil {
			t.Fatal(err)
		}
		body = bytes.NewReader(data)
	}
	return do(t, srv, method, path, "application/json", body)
}

func decode(t *testing.T, w *httptest.ResponseRecorder, v interface{}) {
	t.Helper()
	if err := json.NewDecoder(w.Body).Decode(v); err != nil {
		t.Fatalf("decode %q: %v", w.Body.String(), err)
	}
}

func createSession(t *testing.T, srv *Server) string {
	t.Helper()
	w := doJSON(t, srv, http.MethodPost, "/api/v1/session", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("create session: status %d", w.Code)
	}
	var out sessionResponse
	decode(t, w, &out)
	if out.SessionID == "" {
		t.Fatal("empty session id")
	}
	return out.SessionID
}

func TestSessionLifecycle(t *testing.T) {
	srv, reg := newTestServer(t, nil, nil)
	id := createSession(t, srv)
	if !reg.Exists(id) {
		t.Fatal("session not registered")
	}

	w := doJSON(t, srv, http.MethodGet, "/api/v1/session/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("get: status %d", w.Code)
	}
	var info models.SessionInfo
	decode(t, w, &info)
	if info.ID != id || info.Documents != 0 {
		t.Errorf("info = %+v", info)
	}

	w = doJSON(t, srv, http.MethodDelete, "/api/v1/session/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("end: status %d", w.Code)
	}
	var ended sessionResponse
	decode(t, w, &ended)
	if ended.SessionID != id || ended.Status != "ended" {
		t.Errorf("end response = %+v", ended)
	}
	if reg.Exists(id) {
		t.Error("session still registered")
	}

	w = doJSON(t, srv, http.MethodGet, "/api/v1/session/"+id, nil)
	if w.Code != http.StatusNotFound {
		t.Errorf("get after end: status %d", w.Code)
	}
	// Ending again is a no-op.
	if w := doJSON(t, srv, http.MethodDelete, "/api/v1/session/"+id, nil); w.Code != http.StatusOK {
		t.Errorf("second end: status %d", w.Code)
	}
}

func TestEndSessionAlias(t *testing.T) {
	srv, reg := newTestServer(t, nil, nil)
	id := createSession(t, srv)
	w := doJSON(t, srv, http.MethodPut, "/api/v1/session/end/"+id, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	if reg.Exists(id) {
		t.Error("session still registered")
	}
}

func TestEndSessionMalformedID(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	w := doJSON(t, srv, http.MethodDelete, "/api/v1/session/not-a-uuid", nil)
	if w.Code != http.StatusBadRequest {
		t.Fatalf("status %d", w.Code)
	}
	var body errorBody
	decode(t, w, &body)
	if body.Error != "invalid_input" {
		t.Errorf("error = %q", body.Error)
	}
}

func TestAddAndQuery(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	id := createSession(t, srv)

	input := models.DocumentInput{
		Title: "Animals",
		Pages: []models.PageInput{
			{Text: "Cats are small carnivorous mammals."},
			{Text: "The quick brown fox jumps over the lazy dog"},
			{Text: "Elephants are the largest land animals."},
		},
	}
	w := doJSON(t, srv, http.MethodPost, "/api/v1/search/"+id+"/doc", input)
	if w.Code != http.StatusOK {
		t.Fatalf("add: status %d: %s", w.Code, w.Body.String())
	}
	var doc documentResponse
	decode(t, w, &doc)
	if doc.DocumentID == "" || doc.Pages != 3 || doc.Title != "Animals" {
		t.Errorf("add response = %+v", doc)
	}

	w = doJSON(t, srv, http.MethodPost, "/api/v1/search/"+id+"/query", models.SearchQuery{
		Query: "The quick brown fox jumps over the lazy dog",
		TopK:  2,
	})
	if w.Code != http.StatusOK {
		t.Fatalf("query: status %d: %s", w.Code, w.Body.String())
	}
	var resp models.SearchResponse
	decode(t, w, &resp)
	if len(resp.Results) != 2 {
		t.Fatalf("results = %d, want 2", len(resp.Results))
	}
	top := resp.Results[0]
	if top.DocumentID != doc.DocumentID || top.PageNumber != 2 || top.Rank != 1 {
		t.Errorf("top result = %+v", top)
	}
	if resp.Results[1].Score > top.Score {
		t.Errorf("results not sorted: %v > %v", resp.Results[1].Score, top.Score)
	}
	if resp.SessionID != id {
		t.Errorf("session id = %q", resp.SessionID)
	}
}

func TestAddDocumentMultipart(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	id := createSession(t, srv)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte("Meeting notes\nfirst page\fsecond page")); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}

	w := do(t, srv, http.MethodPost, "/api/v1/search/"+id+"/doc", mw.FormDataContentType(), &buf)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var doc documentResponse
	decode(t, w, &doc)
	if doc.Pages != 2 || doc.Title != "Meeting notes" {
		t.Errorf("response = %+v", doc)
	}
}

func TestAddDocumentMultipartMissingFile(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	id := createSession(t, srv)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	_ = mw.WriteField("title", "nothing attached")
	_ = mw.Close()

	w := do(t, srv, http.MethodPost, "/api/v1/search/"+id+"/doc", mw.FormDataContentType(), &buf)
	if w.Code != http.StatusBadRequest {
		t.Errorf("status %d", w.Code)
	}
}

func TestAddDocumentRaw(t *testing.T) {
	srv, reg := newTestServer(t, nil, nil)
	id := createSession(t, srv)

	w := do(t, srv, http.MethodPost, "/api/v1/search/"+id+"/doc?filename=readme.txt", "text/plain", strings.NewReader("hello world"))
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	if got := reg.Stats().Documents; got != 1 {
		t.Errorf("documents = %d", got)
	}

	w = do(t, srv, http.MethodPost, "/api/v1/search/"+id+"/doc", "text/plain", strings.NewReader("no name"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing filename: status %d", w.Code)
	}
}

func TestAddDocumentTooLarge(t *testing.T) {
	srv, _ := newTestServer(t, nil, func(c *config.Config) { c.Server.MaxUploadBytes = 16 })
	id := createSession(t, srv)
	w := do(t, srv, http.MethodPost, "/api/v1/search/"+id+"/doc?filename=big.txt", "text/plain",
		strings.NewReader(strings.Repeat("x", 64)))
	if w.Code != http.StatusRequestEntityTooLarge {
		t.Errorf("status %d", w.Code)
	}
}

func TestPartialEmbeddingResponse(t *testing.T) {
	srv, reg := newTestServer(t, failingEmbedder{embedding.NewMockEmbedder(16)}, nil)
	id := createSession(t, srv)

	w := doJSON(t, srv, http.MethodPost, "/api/v1/search/"+id+"/doc", models.DocumentInput{
		Pages: []models.PageInput{{Text: "one"}, {Text: "two"}},
	})
	if w.Code != http.StatusBadGateway {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var body errorBody
	decode(t, w, &body)
	if body.Error != "partial_embedding" {
		t.Errorf("error = %q", body.Error)
	}
	if body.Details["total"] != 2 || body.Details["succeeded"] != 0 {
		t.Errorf("details = %v", body.Details)
	}
	if got := reg.Stats().Documents; got != 0 {
		t.Errorf("documents = %d, want 0", got)
	}
}

func TestErrorStatuses(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	id := createSession(t, srv)

	tests := []struct {
		name   string
		method string
		path   string
		ctype  string
		body   string
		status int
		kind   string
	}{
		{"unknown session query", http.MethodPost, "/api/v1/search/missing/query", "application/json", `{"query":"x"}`, http.StatusNotFound, "session_not_found"},
		{"unknown session add", http.MethodPost, "/api/v1/search/missing/doc", "application/json", `{"pages":[{"text":"x"}]}`, http.StatusNotFound, "session_not_found"},
		{"empty query", http.MethodPost, "/api/v1/search/" + id + "/query", "application/json", `{"query":"   "}`, http.StatusBadRequest, "empty_query"},
		{"no documents", http.MethodPost, "/api/v1/search/" + id + "/query", "application/json", `{"query":"x"}`, http.StatusConflict, "no_documents"},
		{"bad query body", http.MethodPost, "/api/v1/search/" + id + "/query", "application/json", `{`, http.StatusBadRequest, "invalid_input"},
		{"no pages", http.MethodPost, "/api/v1/search/" + id + "/doc", "application/json", `{"title":"t"}`, http.StatusBadRequest, "invalid_input"},
		{"bad page numbers", http.MethodPost, "/api/v1/search/" + id + "/doc", "application/json", `{"pages":[{"number":2,"text":"x"}]}`, http.StatusBadRequest, "invalid_input"},
		{"broken file", http.MethodPost, "/api/v1/search/" + id + "/doc?filename=deck.pptx", "application/octet-stream", "not a zip", http.StatusUnprocessableEntity, "extraction_error"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, tt.method, tt.path, tt.ctype, strings.NewReader(tt.body))
			if w.Code != tt.status {
				t.Fatalf("status %d, want %d: %s", w.Code, tt.status, w.Body.String())
			}
			var body errorBody
			decode(t, w, &body)
			if body.Error != tt.kind {
				t.Errorf("error = %q, want %q", body.Error, tt.kind)
			}
			if body.Message == "" {
				t.Error("empty message")
			}
		})
	}
}

func TestHandleHealth(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	w := doJSON(t, srv, http.MethodGet, "/health", nil)
	if w.Code != http.StatusOK {
		t.Errorf("status %d", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("content type %q", ct)
	}
}

func TestHandleStatus(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	id := createSession(t, srv)
	createSession(t, srv)
	doJSON(t, srv, http.MethodPost, "/api/v1/search/"+id+"/doc", models.DocumentInput{
		Pages: []models.PageInput{{Text: "a"}, {Text: "b"}},
	})

	w := doJSON(t, srv, http.MethodGet, "/api/v1/status", nil)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d", w.Code)
	}
	var out struct {
		Sessions  int                    `json:"sessions"`
		Documents int                    `json:"documents"`
		Pages     int                    `json:"pages"`
		Config    map[string]interface{} `json:"config"`
	}
	decode(t, w, &out)
	if out.Sessions != 2 || out.Documents != 1 || out.Pages != 2 {
		t.Errorf("stats = %+v", out)
	}
	if out.Config["index_type"] != "graph" || out.Config["similarity"] != "cosine" {
		t.Errorf("config = %v", out.Config)
	}
}

func TestStatusFor(t *testing.T) {
	tests := map[apperr.Kind]int{
		apperr.KindSessionNotFound:  http.StatusNotFound,
		apperr.KindEmptyQuery:       http.StatusBadRequest,
		apperr.KindNoDocuments:      http.StatusConflict,
		apperr.KindInvalidInput:     http.StatusBadRequest,
		apperr.KindExtraction:       http.StatusUnprocessableEntity,
		apperr.KindEmbedding:        http.StatusBadGateway,
		apperr.KindPartialEmbedding: http.StatusBadGateway,
		apperr.KindIndex:            http.StatusInternalServerError,
		apperr.KindInternal:         http.StatusInternalServerError,
	}
	for kind, want := range tests {
		if got := statusFor(kind); got != want {
			t.Errorf("statusFor(%s) = %d, want %d", kind, got, want)
		}
	}
}

func TestCreateSessionAlias(t *testing.T) {
	srv, reg := newTestServer(t, nil, nil)
	w := doJSON(t, srv, http.MethodPost, "/api/v1/session/start", nil)
	if w.Code != http.StatusCreated {
		t.Fatalf("status %d", w.Code)
	}
	var out sessionResponse
	decode(t, w, &out)
	if !reg.Exists(out.SessionID) {
		t.Errorf("session %q not registered", out.SessionID)
	}
}

func TestExtractMultipart(t *testing.T) {
	srv, reg := newTestServer(t, nil, nil)

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile("file", "notes.txt")
	if err != nil {
		t.Fatal(err)
	}
	_, _ = fw.Write([]byte("Meeting notes\nfirst page\fsecond page"))
	_ = mw.Close()

	w := do(t, srv, http.MethodPost, "/api/v1/extract", mw.FormDataContentType(), &buf)
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var doc models.DocumentInput
	decode(t, w, &doc)
	if doc.Title != "Meeting notes" || doc.Filename != "notes.txt" || len(doc.Pages) != 2 {
		t.Fatalf("doc = %+v", doc)
	}
	if doc.Pages[1].Number != 2 || doc.Pages[1].Text != "second page" {
		t.Errorf("page 2 = %+v", doc.Pages[1])
	}
	if reg.Stats().Documents != 0 {
		t.Error("extract must not ingest")
	}
}

func TestExtractRaw(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	w := do(t, srv, http.MethodPost, "/api/v1/extract?filename=readme.txt", "text/plain", strings.NewReader("hello world"))
	if w.Code != http.StatusOK {
		t.Fatalf("status %d: %s", w.Code, w.Body.String())
	}
	var doc models.DocumentInput
	decode(t, w, &doc)
	if len(doc.Pages) != 1 || doc.Pages[0].Text != "hello world" {
		t.Errorf("doc = %+v", doc)
	}

	w = do(t, srv, http.MethodPost, "/api/v1/extract", "text/plain", strings.NewReader("no name"))
	if w.Code != http.StatusBadRequest {
		t.Errorf("missing filename: status %d", w.Code)
	}
}

func TestExtractFailures(t *testing.T) {
	srv, _ := newTestServer(t, nil, nil)
	tests := []struct {
		name     string
		filename string
		body     string
	}{
		{"blank text", "blank.txt", " \n\t "},
		{"corrupt pdf", "broken.pdf", "not a pdf"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, srv, http.MethodPost, "/api/v1/extract?filename="+tt.filename, "application/octet-stream", strings.NewReader(tt.body))
			if w.Code != http.StatusUnprocessableEntity {
				t.Fatalf("status %d: %s", w.Code, w.Body.String())
			}
			var body errorBody
			decode(t, w, &body)
			if body.Error != string(apperr.KindExtraction) {
				t.Errorf("error = %q", body.Error)
			}
		})
	}
}

func TestHandleStatusEmbeddingCache(t *testing.T) {
	cfg := &config.Config{}
	cfg.Embedding.Provider = "mock"
	config.ApplyDefaults(cfg)
	cache, err := embedding.NewCachedEmbedder(embedding.NewMockEmbedder(16), 8)
	if err != nil {
		t.Fatal(err)
	}
	reg := session.NewRegistry()
	engine, err := search.NewEngine(reg, cache, &cfg.Search, &cfg.Index)
	if err != nil {
		t.Fatal(err)
	}
	srv := NewServer(reg, indexer.NewIndexer(reg, cache, nil, &cfg.Embedding), engine, cfg, zap.NewNop(),
		WithEmbeddingCache(cache))
	id := createSession(t, srv)
	doJSON(t, srv, http.MethodPost, "/api/v1/search/"+id+"/doc", models.DocumentInput{
		Pages: []models.PageInput{{Text: "a"}, {Text: "b"}},
	})

	w := doJSON(t, srv, http.MethodGet, "/api/v1/status", nil)
	var out struct {
		Cache *embedding.CacheStats `json:"embedding_cache"`
	}
	decode(t, w, &out)
	if out.Cache == nil || out.Cache.Entries != 2 || out.Cache.Capacity != 8 || out.Cache.Persistent {
		t.Errorf("embedding_cache = %+v", out.Cache)
	}
}
