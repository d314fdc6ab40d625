package embedding

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
)

// OpenAIConfig configures an OpenAI-compatible embeddings client.
type OpenAIConfig struct {
	BaseURL    string
	APIKey     string
	Model      string
	Dimensions int // 0 lets the model pick; otherwise sent as the dimensions field
	Timeout    time.Duration
	// MaxBatchSize caps the inputs per request; larger batches are split.
	MaxBatchSize      int
	RequestsPerSecond float64
	Burst             int
	Retry             RetryConfig
	HTTPClient        *http.Client
}

// OpenAIEmbedder calls POST {base_url}/embeddings.
type OpenAIEmbedder struct {
	cfg        OpenAIConfig
	client     *http.Client
	limiter    *rate.Limiter
	dimensions atomic.Int64
}

type openAIRequest struct {
	Input          []string `json:"input"`
	Model          string   `json:"model"`
	Dimensions     int      `json:"dimensions,omitempty"`
	EncodingFormat string   `json:"encoding_format"`
}

type openAIResponse struct {
	Data []struct {
		Index     int       `json:"index"`
		Embedding []float32 `json:"embedding"`
	} `json:"data"`
}

type openAIError struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}

// NewOpenAIEmbedder validates cfg and returns a client. Zero values take defaults.
func NewOpenAIEmbedder(cfg OpenAIConfig) (*OpenAIEmbedder, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("openai: missing API key")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.openai.com/v1"
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.Model == "" {
		cfg.Model = "text-embedding-3-small"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxBatchSize <= 0 {
		cfg.MaxBatchSize = 100
	}
	if cfg.Retry == (RetryConfig{}) {
		cfg.Retry = DefaultRetryConfig()
	}
	limit := rate.Inf
	if cfg.RequestsPerSecond > 0 {
		limit = rate.Limit(cfg.RequestsPerSecond)
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	e := &OpenAIEmbedder{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(limit, cfg.Burst),
	}
	e.dimensions.Store(int64(cfg.Dimensions))
	return e, nil
}

// Embed returns the embedding for a single text.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	out, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return out[0], nil
}

// EmbedBatch embeds texts, splitting them into requests of at most MaxBatchSize.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if err := checkTexts(texts); err != nil {
		return nil, err
	}
	out := make([][]float32, 0, len(texts))
	for start := 0; start < len(texts); start += e.cfg.MaxBatchSize {
		end := start + e.cfg.MaxBatchSize
		if end > len(texts) {
			end = len(texts)
		}
		chunk := texts[start:end]
		vecs, err := retryWithBackoff(ctx, e.cfg.Retry, func() ([][]float32, error) {
			if err := e.limiter.Wait(ctx); err != nil {
				return nil, err
			}
			callCtx, cancel := context.WithTimeout(ctx, e.cfg.Timeout)
			defer cancel()
			return e.request(callCtx, chunk)
		})
		if err != nil {
			return nil, err
		}
		out = append(out, vecs...)
	}
	return out, nil
}

func (e *OpenAIEmbedder) request(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(openAIRequest{
		Input:          texts,
		Model:          e.cfg.Model,
		Dimensions:     e.cfg.Dimensions,
		EncodingFormat: "float",
	})
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.cfg.BaseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+e.cfg.APIKey)

	resp, err := e.client.Do(req)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w after %s: %v", ErrTimeout, e.cfg.Timeout, err)
		}
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		return nil, retryable(fmt.Errorf("openai request: %w", err), 0)
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusTooManyRequests:
		return nil, retryable(fmt.Errorf("%w: %s", ErrRateLimited, errorMessage(resp)), retryAfter(resp))
	case resp.StatusCode >= 500:
		return nil, retryable(fmt.Errorf("%w: %s", ErrProviderFailed, errorMessage(resp)), retryAfter(resp))
	case resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: %s", ErrProviderFailed, errorMessage(resp))
	}

	var out openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrProviderFailed, err)
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("%w: got %d embeddings for %d inputs", ErrProviderFailed, len(out.Data), len(texts))
	}
	sort.Slice(out.Data, func(i, j int) bool { return out.Data[i].Index < out.Data[j].Index })

	vecs := make([][]float32, len(out.Data))
	for i, d := range out.Data {
		if d.Index != i {
			return nil, fmt.Errorf("%w: missing embedding for input %d", ErrProviderFailed, i)
		}
		if len(d.Embedding) == 0 {
			return nil, fmt.Errorf("%w: empty embedding for input %d", ErrProviderFailed, i)
		}
		if err := e.observeDimensions(len(d.Embedding)); err != nil {
			return nil, err
		}
		vecs[i] = d.Embedding
	}
	return vecs, nil
}

func (e *OpenAIEmbedder) observeDimensions(n int) error {
	if e.dimensions.CompareAndSwap(0, int64(n)) {
		return nil
	}
	if want := e.dimensions.Load(); want != int64(n) {
		return fmt.Errorf("%w: embedding has %d dimensions, expected %d", ErrProviderFailed, n, want)
	}
	return nil
}

// errorMessage returns the API error message, or the status line when the body has none.
func errorMessage(resp *http.Response) string {
	data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	var apiErr openAIError
	if json.Unmarshal(data, &apiErr) == nil && apiErr.Error.Message != "" {
		return fmt.Sprintf("%s: %s", resp.Status, apiErr.Error.Message)
	}
	return resp.Status
}

// retryAfter parses the Retry-After header as seconds or an HTTP date.
func retryAfter(resp *http.Response) time.Duration {
	ra := resp.Header.Get("Retry-After")
	if ra == "" {
		return 0
	}
	if secs, err := strconv.Atoi(ra); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	if t, err := http.ParseTime(ra); err == nil {
		if d := time.Until(t); d > 0 {
			return d
		}
	}
	return 0
}

// Dimensions returns the configured dimension, or the one observed in the first
// response, or 0 before any call.
func (e *OpenAIEmbedder) Dimensions() int {
	return int(e.dimensions.Load())
}

// Model returns the configured model name.
func (e *OpenAIEmbedder) Model() string {
	return e.cfg.Model
}

// Close releases idle connections.
func (e *OpenAIEmbedder) Close() error {
	e.client.CloseIdleConnections()
	return nil
}
