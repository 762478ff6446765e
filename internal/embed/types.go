// Package embed turns chunk texts and queries into fixed-dimension vectors.
package embed

import (
	"context"
	"fmt"
	"math"
	"time"
)

// Common embedding constants
const (
	// MinBatchSize is the minimum allowed batch size
	MinBatchSize = 1

	// MaxBatchSize is the maximum allowed batch size
	MaxBatchSize = 256

	// DefaultBatchSize is the default batch size for embedding requests
	DefaultBatchSize = 32

	// DefaultTimeout bounds a single remote embedding request
	DefaultTimeout = 120 * time.Second

	// StaticDimensions is the embedding dimension of the static embedder
	StaticDimensions = 384
)

// Embedder generates vector embeddings for text.
//
// EmbedBatch must return exactly one vector per input, in input order,
// regardless of how the implementation batches internally. A failure in any
// batch fails the whole call.
type Embedder interface {
	// Embed generates embedding for a single text
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension
	Dimensions() int

	// ModelName returns the model identifier
	ModelName() string

	// Available checks if the embedder is ready
	Available(ctx context.Context) bool

	// Close releases resources
	Close() error
}

// batchFunc embeds one provider-sized batch.
type batchFunc func(ctx context.Context, texts []string) ([][]float32, error)

// embedInBatches runs fn over consecutive slices of at most batchSize texts
// and writes each result back at its input position.
func embedInBatches(ctx context.Context, texts []string, batchSize int, fn batchFunc) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}
	batchSize = clampBatchSize(batchSize)

	results := make([][]float32, len(texts))
	for start := 0; start < len(texts); start += batchSize {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		end := min(start+batchSize, len(texts))
		vecs, err := fn(ctx, texts[start:end])
		if err != nil {
			return nil, fmt.Errorf("failed to embed batch %d-%d: %w", start, end, err)
		}
		if len(vecs) != end-start {
			return nil, fmt.Errorf("batch %d-%d: provider returned %d vectors for %d texts",
				start, end, len(vecs), end-start)
		}
		copy(results[start:end], vecs)
	}

	return results, nil
}

func clampBatchSize(n int) int {
	switch {
	case n <= 0:
		return DefaultBatchSize
	case n > MaxBatchSize:
		return MaxBatchSize
	default:
		return n
	}
}

// normalizeVector scales v to unit length. Zero vectors are returned as-is.
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

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}
