// Package vector provides an in-memory vector index with cosine similarity search
// and binary snapshot persistence.
package vector

import (
	"context"
	"errors"

	"github.com/hyperjump/kotaeru/internal/models"
)

// ErrDimensionMismatch is returned when a vector's dimension does not match the
// index's configured dimension.
var ErrDimensionMismatch = errors.New("vector dimension mismatch")

// Entry associates a chunk with its embedding. The index owns its entries for
// the lifetime of the session; they are never dropped or reordered except via Clear.
type Entry struct {
	Chunk  models.Chunk
	Vector []float32
}

// Index defines vector storage and similarity search over chunk embeddings.
//
// The similarity metric is fixed: cosine similarity, computed as the inner
// product of L2-normalized vectors. Callers must insert and query normalized
// vectors; ranking order depends on this invariant.
type Index interface {
	Insert(ctx context.Context, entry Entry) error
	BatchInsert(ctx context.Context, entries []Entry) error
	Search(ctx context.Context, query []float32, k int) ([]models.ScoredChunk, error)
	Save(path string) error
	Load(path string) error
	Len() int
	Clear()
	Close() error
}
