package embed

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// HTTPEmbedder calls a remote embedding server that accepts a JSON body
// {"model": ..., "input": [...]} and returns {"embeddings": [[...]]}. It is
// one polymorphic implementation of Embedder among several; the provider
// contract does not mandate any particular transport.
type HTTPEmbedder struct {
	baseURL    string
	model      string
	dimensions int
	client     *http.Client
	retry      RetryConfig

	mu     sync.RWMutex
	closed bool
}

// HTTPEmbedderOption configures an HTTPEmbedder.
type HTTPEmbedderOption func(*HTTPEmbedder)

// WithHTTPTimeout overrides the per-request timeout (default DefaultTimeout).
func WithHTTPTimeout(d time.Duration) HTTPEmbedderOption {
	return func(e *HTTPEmbedder) { e.client.Timeout = d }
}

// WithHTTPRetry overrides the retry policy (default DefaultRetryConfig()).
func WithHTTPRetry(cfg RetryConfig) HTTPEmbedderOption {
	return func(e *HTTPEmbedder) { e.retry = cfg }
}

// NewHTTPEmbedder constructs an embedder backed by a remote model server at
// baseURL, serving model and producing vectors of the given dimensions.
func NewHTTPEmbedder(baseURL, model string, dimensions int, opts ...HTTPEmbedderOption) *HTTPEmbedder {
	e := &HTTPEmbedder{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		dimensions: dimensions,
		client:     &http.Client{Timeout: DefaultTimeout},
		retry:      DefaultRetryConfig(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

type embedRequest struct {
	Model string   `json:"model"`
	Input []string `json:"input"`
}

type embedResponse struct {
	Embeddings [][]float32 `json:"embeddings"`
}

// Embed generates the embedding for a single text.
func (e *HTTPEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	vecs, err := e.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vecs[0], nil
}

// EmbedBatch generates embeddings for multiple texts in one request, with
// retry on transient failures.
func (e *HTTPEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	closed := e.closed
	e.mu.RUnlock()
	if closed {
		return nil, fmt.Errorf("embedder is closed")
	}

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	var result [][]float32
	err := WithRetry(ctx, e.retry, func() error {
		vecs, err := e.doEmbed(ctx, texts)
		if err != nil {
			return err
		}
		result = vecs
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

func (e *HTTPEmbedder) doEmbed(ctx context.Context, texts []string) ([][]float32, error) {
	body, err := json.Marshal(embedRequest{Model: e.model, Input: texts})
	if err != nil {
		return nil, fmt.Errorf("marshal embed request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/embeddings", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create embed request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("call embedding server: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("embedding server returned status %d", resp.StatusCode)
	}

	var payload embedResponse
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, fmt.Errorf("decode embed response: %w", err)
	}

	if len(payload.Embeddings) != len(texts) {
		return nil, fmt.Errorf("embedding server returned %d vectors for %d inputs", len(payload.Embeddings), len(texts))
	}

	if e.dimensions > 0 {
		for i, v := range payload.Embeddings {
			if len(v) != e.dimensions {
				return nil, fmt.Errorf("embedding %d has dimension %d, want %d", i, len(v), e.dimensions)
			}
		}
	}

	return payload.Embeddings, nil
}

// Dimensions returns the configured embedding dimension.
func (e *HTTPEmbedder) Dimensions() int {
	return e.dimensions
}

// ModelName returns the remote model identifier.
func (e *HTTPEmbedder) ModelName() string {
	return e.model
}

// Available pings the embedding server's health endpoint.
func (e *HTTPEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return false
	}
	e.mu.RUnlock()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/health", nil)
	if err != nil {
		return false
	}
	resp, err := e.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	return resp.StatusCode == http.StatusOK
}

// Close marks the embedder unavailable for further requests.
func (e *HTTPEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}
