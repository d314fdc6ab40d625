package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hyperjump/shirabe/internal/embedding"
	"github.com/hyperjump/shirabe/internal/models"
)

const defaultServerURL = "http://localhost:8080"

// apiClient talks to a running shirabe server.
type apiClient struct {
	baseURL string
	http    *http.Client
}

func newAPIClient(baseURL string) *apiClient {
	return &apiClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 5 * time.Minute},
	}
}

// apiError is a non-2xx response from the server.
type apiError struct {
	Status  int            `json:"-"`
	Kind    string         `json:"error"`
	Message string         `json:"message"`
	Details map[string]int `json:"details,omitempty"`
}

func (e *apiError) Error() string {
	if e.Kind == "" {
		return fmt.Sprintf("server returned %d: %s", e.Status, e.Message)
	}
	msg := fmt.Sprintf("%s (%d): %s", e.Kind, e.Status, e.Message)
	if total, ok := e.Details["total"]; ok {
		msg += fmt.Sprintf(" [%d of %d pages embedded]", e.Details["succeeded"], total)
	}
	return msg
}

type sessionReply struct {
	SessionID string `json:"session_id"`
	Status    string `json:"status,omitempty"`
}

type documentReply struct {
	DocumentID string `json:"document_id"`
	Title      string `json:"title,omitempty"`
	Pages      int    `json:"pages"`
}

// statusReply is the shape of GET /api/v1/status.
type statusReply struct {
	Sessions  int                    `json:"sessions"`
	Documents int                    `json:"documents"`
	Pages     int                    `json:"pages"`
	Config    map[string]interface{} `json:"config,omitempty"`
	Cache     *embedding.CacheStats  `json:"embedding_cache,omitempty"`
}

func (c *apiClient) do(method, path, contentType string, body io.Reader, out interface{}) error {
	req, err := http.NewRequest(method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		apiErr := &apiError{Status: resp.StatusCode}
		if jsonErr := json.Unmarshal(data, apiErr); jsonErr != nil || apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(string(data))
		}
		return apiErr
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *apiClient) doJSON(method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return err
		}
		body = bytes.NewReader(data)
	}
	return c.do(method, path, "application/json", body, out)
}

func (c *apiClient) createSession() (string, error) {
	var out sessionReply
	if err := c.doJSON(http.MethodPost, "/api/v1/session", nil, &out); err != nil {
		return "", err
	}
	return out.SessionID, nil
}

func (c *apiClient) getSession(id string) (*models.SessionInfo, error) {
	var out models.SessionInfo
	if err := c.doJSON(http.MethodGet, "/api/v1/session/"+url.PathEscape(id), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) endSession(id string) error {
	return c.doJSON(http.MethodDelete, "/api/v1/session/"+url.PathEscape(id), nil, nil)
}

// upload posts path as the multipart "file" field.
func (c *apiClient) upload(apiPath, path string, out interface{}) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	part, err := mw.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return err
	}
	if _, err := io.Copy(part, f); err != nil {
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := mw.Close(); err != nil {
		return err
	}
	return c.do(http.MethodPost, apiPath, mw.FormDataContentType(), &buf, out)
}

// addFile uploads path; the server extracts it by extension.
func (c *apiClient) addFile(sessionID, path string) (*documentReply, error) {
	var out documentReply
	if err := c.upload("/api/v1/search/"+url.PathEscape(sessionID)+"/doc", path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// extract returns the server's extraction of path without adding it anywhere.
func (c *apiClient) extract(path string) (*models.DocumentInput, error) {
	var out models.DocumentInput
	if err := c.upload("/api/v1/extract", path, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// addText sends already-extracted text. Form feeds separate pages.
func (c *apiClient) addText(sessionID, title, filename, text string) (*documentReply, error) {
	input := &models.DocumentInput{
		Title:    title,
		Filename: filename,
		Pages:    textPages(text),
	}
	var out documentReply
	if err := c.doJSON(http.MethodPost, "/api/v1/search/"+url.PathEscape(sessionID)+"/doc", input, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) query(sessionID, query string, topK int) (*models.SearchResponse, error) {
	var out models.SearchResponse
	q := &models.SearchQuery{Query: query, TopK: topK}
	if err := c.doJSON(http.MethodPost, "/api/v1/search/"+url.PathEscape(sessionID)+"/query", q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *apiClient) status() (*statusReply, error) {
	var out statusReply
	if err := c.doJSON(http.MethodGet, "/api/v1/status", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// textPages splits text on form feeds, skipping pages with no content.
func textPages(text string) []models.PageInput {
	var pages []models.PageInput
	for _, p := range strings.Split(text, "\f") {
		if strings.TrimSpace(p) == "" {
			continue
		}
		pages = append(pages, models.PageInput{Text: p})
	}
	return pages
}
