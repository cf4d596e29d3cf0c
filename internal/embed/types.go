// Package embed turns description text into fixed-length vectors.
//
// Every Embedder names the space its vectors live in. Vectors from
// different spaces are never comparable, and the vector store refuses to
// mix dimensions within one space.
package embed

import (
	"context"
	"math"
	"time"
)

const (
	// StaticDimensions is the static embedder's vector length.
	StaticDimensions = 256

	// StaticSpace identifies vectors produced by the static embedder.
	StaticSpace = "static-v1"

	// DefaultBatchSize bounds texts per Ollama request.
	DefaultBatchSize = 32

	// DefaultTimeout is the per-request timeout for network embedders.
	DefaultTimeout = 30 * time.Second
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates the embedding for a single text.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, in order.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the vector length. Stable for the embedder's lifetime.
	Dimensions() int

	// Space identifies the embedding space, e.g. "static-v1".
	Space() string

	// ModelName returns the model identifier.
	ModelName() string

	// Available reports whether the embedder can serve requests.
	Available(ctx context.Context) bool

	Close() error
}

// normalizeVector scales v to unit length. A zero vector is returned as-is.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
