package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/hyperjump/shirabe/internal/apperr"
	"github.com/hyperjump/shirabe/internal/models"
	"go.uber.org/zap"
)

type sessionResponse struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status,omitempty"`
}

type documentResponse struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title,omitempty"`
	Pages      int    `json:"pages"`
}

type errorBody struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Details map[string]int `json:"details,omitempty"`
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	id := s.sessions.Create()
	s.logger.Debug("session created", zap.String("session_id", id), zap.String("request_id", middleware.GetReqID(r.Context())))
	s.respondJSON(w, http.StatusCreated, sessionResponse{SessionID: id})
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	sess, err := s.sessions.Get(id)
	if err != nil {
		s.respondError(w, r, "get_session", id, err)
		return
	}
	s.respondJSON(w, http.StatusOK, sess.Info())
}

// handleEndSession serves both DELETE /session/{id} and PUT /session/end/{id}.
// Ending an unknown session succeeds.
func (s *Server) handleEndSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := uuid.Parse(id); err != nil {
		s.respondError(w, r, "end_session", id, apperr.InvalidInput("end_session", fmt.Sprintf("malformed session id %q", id)))
		return
	}
	removed := s.sessions.End(id)
	s.logger.Debug("session ended", zap.String("session_id", id), zap.Bool("removed", removed))
	s.respondJSON(w, http.StatusOK, sessionResponse{SessionID: id, Status: "ended"})
}

// handleAddDocument accepts a JSON DocumentInput, a multipart upload in the
// "file" field, or a raw body named by the filename query parameter.
func (s *Server) handleAddDocument(w http.ResponseWriter, r *http.Request) {
	const op = "add_document"
	ctx := r.Context()
	sessionID := chi.URLParam(r, "sessionId")
	s.limitBody(w, r)

	var (
		id  string
		err error
	)
	if mediaType(r) == "application/json" {
		var input models.DocumentInput
		if derr := json.NewDecoder(r.Body).Decode(&input); derr != nil {
			s.respondBodyError(w, r, op, sessionID, derr)
			return
		}
		s.logger.Debug("add document request",
			zap.String("session_id", sessionID),
			zap.String("title", input.Title),
			zap.Int("pages", len(input.Pages)),
		)
		id, err = s.indexer.AddDocument(ctx, sessionID, &input)
	} else {
		filename, content, ok := s.readUpload(w, r, op, sessionID)
		if !ok {
			return
		}
		s.logger.Debug("add file request", zap.String("session_id", sessionID), zap.String("filename", filename))
		id, err = s.indexer.AddFile(ctx, sessionID, filename, content)
	}
	if err != nil {
		s.respondError(w, r, op, sessionID, err)
		return
	}
	s.respondJSON(w, http.StatusOK, s.describeDocument(sessionID, id))
}

// handleExtract returns the pages of an uploaded file without adding it to a session.
func (s *Server) handleExtract(w http.ResponseWriter, r *http.Request) {
	const op = "extract"
	s.limitBody(w, r)
	filename, content, ok := s.readUpload(w, r, op, "")
	if !ok {
		return
	}
	doc, err := s.indexer.Extract(filename, content)
	if err != nil {
		s.respondError(w, r, op, "", err)
		return
	}
	s.logger.Debug("file extracted", zap.String("filename", filename), zap.Int("pages", len(doc.Pages)))
	s.respondJSON(w, http.StatusOK, doc)
}

func (s *Server) limitBody(w http.ResponseWriter, r *http.Request) {
	if limit := s.config.Server.MaxUploadBytes; limit > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, limit)
	}
}

func mediaType(r *http.Request) string {
	mt, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	return mt
}

// readUpload reads a file from the multipart "file" field or, for any other
// content type, the raw body named by the filename query parameter. On failure the
// error response is already written.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request, op, sessionID string) (string, []byte, bool) {
	if mediaType(r) == "multipart/form-data" {
		file, header, err := r.FormFile("file")
		if err != nil {
			if errors.Is(err, http.ErrMissingFile) {
				s.respondError(w, r, op, sessionID, apperr.InvalidInput(op, `multipart field "file" is required`))
				return "", nil, false
			}
			s.respondBodyError(w, r, op, sessionID, err)
			return "", nil, false
		}
		defer file.Close()
		content, err := io.ReadAll(file)
		if err != nil {
			s.respondBodyError(w, r, op, sessionID, err)
			return "", nil, false
		}
		return header.Filename, content, true
	}

	filename := r.URL.Query().Get("filename")
	if filename == "" {
		s.respondError(w, r, op, sessionID, apperr.InvalidInput(op, "filename query parameter is required for raw uploads"))
		return "", nil, false
	}
	content, err := io.ReadAll(r.Body)
	if err != nil {
		s.respondBodyError(w, r, op, sessionID, err)
		return "", nil, false
	}
	return filename, content, true
}

// describeDocument looks the new document up in its session. If the session
// ended in the meantime only the id is reported.
func (s *Server) describeDocument(sessionID, documentID string) documentResponse {
	resp := documentResponse{DocumentID: documentID}
	sess, err := s.sessions.Get(sessionID)
	if err != nil {
		return resp
	}
	for _, doc := range sess.Documents() {
		if doc.ID == documentID {
			resp.Title = doc.Title
			resp.Pages = len(doc.Pages)
			break
		}
	}
	return resp
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	const op = "search"
	sessionID := chi.URLParam(r, "sessionId")
	var query models.SearchQuery
	if err := json.NewDecoder(r.Body).Decode(&query); err != nil {
		s.respondBodyError(w, r, op, sessionID, err)
		return
	}
	s.logger.Debug("search request", zap.String("session_id", sessionID), zap.Int("top_k", query.TopK))
	response, err := s.engine.Search(r.Context(), sessionID, &query)
	if err != nil {
		s.respondError(w, r, op, sessionID, err)
		return
	}
	s.respondJSON(w, http.StatusOK, response)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	stats := s.sessions.Stats()
	emb := s.config.Embedding
	resp := map[string]interface{}{
		"sessions":  stats.Sessions,
		"documents": stats.Documents,
		"pages":     stats.Pages,
		"config": map[string]interface{}{
			"embedding_provider":   emb.Provider,
			"embedding_model":      emb.Model,
			"embedding_dimensions": emb.Dimensions,
			"embedding_cache_size": emb.CacheSize,
			"persistent_cache":     emb.CachePath != "",
			"similarity":           s.config.Search.Similarity,
			"top_k":                s.config.Search.TopK,
			"max_top_k":            s.config.Search.MaxTopK,
			"index_type":           s.config.Index.Type,
			"index_max_degree":     s.config.Index.MaxDegree,
			"index_beam_width":     s.config.Index.BeamWidth,
		},
	}
	if s.cache != nil {
		cacheStats, err := s.cache.Stats(r.Context())
		if err != nil {
			s.logger.Warn("embedding cache stats unavailable", zap.Error(err))
		}
		resp["embedding_cache"] = cacheStats
	}
	s.respondJSON(w, http.StatusOK, resp)
}

// statusFor maps error kinds onto HTTP status codes.
func statusFor(kind apperr.Kind) int {
	switch kind {
	case apperr.KindSessionNotFound:
		return http.StatusNotFound
	case apperr.KindEmptyQuery, apperr.KindInvalidInput:
		return http.StatusBadRequest
	case apperr.KindNoDocuments:
		return http.StatusConflict
	case apperr.KindExtraction:
		return http.StatusUnprocessableEntity
	case apperr.KindEmbedding, apperr.KindPartialEmbedding:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

func (s *Server) respondJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// respondError writes err as a structured error body. Server faults are logged at
// error level; client faults only at debug.
func (s *Server) respondError(w http.ResponseWriter, r *http.Request, op, sessionID string, err error) {
	kind := apperr.KindOf(err)
	fields := []zap.Field{
		zap.String("session_id", sessionID),
		zap.String("op", op),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.String("kind", string(kind)),
		zap.Error(err),
	}
	if kind.ClientFault() {
		s.logger.Debug("request rejected", fields...)
	} else {
		s.logger.Error("request failed", fields...)
	}

	body := errorBody{Error: string(kind), Message: err.Error()}
	if e, ok := apperr.As(err); ok && e.Kind == apperr.KindPartialEmbedding {
		body.Details = map[string]int{"succeeded": e.Succeeded, "total": e.Total}
	}
	s.respondJSON(w, statusFor(kind), body)
}

// respondBodyError reports an unreadable request body. Oversized uploads get 413.
func (s *Server) respondBodyError(w http.ResponseWriter, r *http.Request, op, sessionID string, err error) {
	var tooLarge *http.MaxBytesError
	if errors.As(err, &tooLarge) {
		s.logger.Debug("upload too large", zap.String("session_id", sessionID), zap.Int64("limit", tooLarge.Limit))
		s.respondJSON(w, http.StatusRequestEntityTooLarge, errorBody{
			Error:   string(apperr.KindInvalidInput),
			Message: fmt.Sprintf("request body exceeds %d bytes", tooLarge.Limit),
		})
		return
	}
	s.respondError(w, r, op, sessionID, apperr.InvalidInput(op, "invalid request body: "+err.Error()))
}
