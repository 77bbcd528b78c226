// Package embed defines the embedding provider contract used by the
// indexing pipeline and hybrid search, plus a deterministic hash-based
// implementation that needs no network access and a reference HTTP-backed
// implementation for remote model servers.
package embed

import (
	"context"
	"math"
	"time"
)

const (
	// DefaultBatchSize is a suggested number of texts per EmbedBatch call
	// for callers that split their own input. HTTPEmbedder.EmbedBatch does
	// not apply it: it sends every text it is given in one request.
	DefaultBatchSize = 32

	// DefaultTimeout is the default per-request timeout for remote
	// embedding providers.
	DefaultTimeout = 30 * time.Second

	// DefaultMaxRetries is the default number of retry attempts for a
	// remote embedding provider.
	DefaultMaxRetries = 3

	// HashDimensions is the embedding dimension produced by HashEmbedder.
	HashDimensions = 256
)

// Embedder generates vector embeddings for text. Implementations must be
// safe for concurrent use.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in order. A
	// failure partway through returns an error and no partial results.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the length of every vector this embedder produces.
	Dimensions() int

	// ModelName identifies the model or strategy backing this embedder.
	ModelName() string

	// Available reports whether the embedder is currently able to serve
	// requests (for example, whether a remote model server is reachable).
	Available(ctx context.Context) bool

	// Close releases any resources held by the embedder.
	Close() error
}

// normalizeVector scales v to unit length, leaving a zero vector as-is.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	out := make([]float32, len(v))
	for i, val := range v {
		out[i] = float32(float64(val) / magnitude)
	}
	return out
}
