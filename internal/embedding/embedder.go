// Package embedding provides text embedding via OpenAI-compatible APIs or a
// local ONNX model, with caching.
package embedding

import (
	"context"
	"errors"
)

// ErrModelUnavailable is returned when the underlying embedding model cannot be
// reached or loaded. Query-time callers retry once with backoff before surfacing it.
var ErrModelUnavailable = errors.New("embedding model unavailable")

// Embedder produces vector embeddings for text. Chunk text and query text go
// through the same model and dimension so cosine comparisons are meaningful.
// Implementations must be deterministic for a fixed model version and return
// L2-normalized vectors.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dimensions() int
	Close() error
}
