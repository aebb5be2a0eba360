// Package answer wires retrieval and synthesis into the question answering
// pipeline.
package answer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/hyperjump/kotaeru/internal/models"
	"github.com/hyperjump/kotaeru/internal/retrieval"
	"github.com/hyperjump/kotaeru/internal/synthesis"
	"github.com/hyperjump/kotaeru/pkg/utils"
)

// Engine answers questions over the indexed corpus: retrieve the nearest
// chunks, then synthesize a grounded answer from them.
type Engine struct {
	retriever   *retrieval.Retriever
	synthesizer *synthesis.Synthesizer
	logger      *zap.Logger
}

// NewEngine creates an engine with the given pipeline stages.
func NewEngine(retriever *retrieval.Retriever, synthesizer *synthesis.Synthesizer, logger *zap.Logger) *Engine {
	return &Engine{
		retriever:   retriever,
		synthesizer: synthesizer,
		logger:      logger,
	}
}

// Answer runs the full pipeline for a validated query request. The request
// must have had its K resolved already (see models.QueryRequest.Validate).
func (e *Engine) Answer(ctx context.Context, req *models.QueryRequest) (*models.QueryResponse, error) {
	start := time.Now()

	results, err := e.retriever.Retrieve(ctx, req.Query, req.K)
	if err != nil {
		return nil, err
	}
	answer, used, err := e.synthesizer.Synthesize(ctx, req.Query, results)
	if err != nil {
		return nil, err
	}

	supporting := make([]models.SupportingChunk, len(used))
	for i, res := range used {
		supporting[i] = models.SupportingChunk{Text: res.Chunk.Text, Score: res.Score}
	}
	elapsed := time.Since(start)
	if e.logger != nil {
		e.logger.Debug("query answered",
			zap.String("query", utils.Truncate(req.Query, 200)),
			zap.Int("k", req.K),
			zap.Int("retrieved", len(results)),
			zap.Int("used", len(used)),
			zap.Duration("took", elapsed),
		)
	}
	return &models.QueryResponse{
		Query:            req.Query,
		Answer:           answer,
		SupportingChunks: supporting,
		QueryTime:        elapsed.Milliseconds(),
	}, nil
}
