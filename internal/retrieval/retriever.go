package retrieval

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hyperjump/kotaeru/internal/embedding"
	"github.com/hyperjump/kotaeru/internal/models"
	"github.com/hyperjump/kotaeru/internal/vector"
)

// retryBackoff is the pause before the single retry of a failed embedding call.
const retryBackoff = 500 * time.Millisecond

// Retriever embeds a query and returns its nearest chunks from the index,
// ordered by descending similarity.
type Retriever struct {
	embedder embedding.Embedder
	index    vector.Index
	minScore float64
}

// NewRetriever creates a retriever. Results scoring below minScore are
// filtered out; a minScore of 0 keeps everything.
func NewRetriever(embedder embedding.Embedder, index vector.Index, minScore float64) *Retriever {
	return &Retriever{
		embedder: embedder,
		index:    index,
		minScore: minScore,
	}
}

// Retrieve returns up to k chunks most similar to the query. An empty index
// yields an empty slice, not an error. A transient embedding failure is
// retried once before giving up.
func (r *Retriever) Retrieve(ctx context.Context, query string, k int) ([]models.ScoredChunk, error) {
	queryVector, err := r.embedWithRetry(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	results, err := r.index.Search(ctx, queryVector, k)
	if err != nil {
		return nil, fmt.Errorf("search index: %w", err)
	}
	if r.minScore > 0 {
		filtered := results[:0]
		for _, res := range results {
			if res.Score >= r.minScore {
				filtered = append(filtered, res)
			}
		}
		results = filtered
	}
	return results, nil
}

func (r *Retriever) embedWithRetry(ctx context.Context, query string) ([]float32, error) {
	vec, err := r.embedder.Embed(ctx, query)
	if err == nil {
		return vec, nil
	}
	if !errors.Is(err, embedding.ErrModelUnavailable) {
		return nil, err
	}
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-time.After(retryBackoff):
	}
	return r.embedder.Embed(ctx, query)
}
