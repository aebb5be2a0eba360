package synthesis

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hyperjump/kotaeru/internal/models"
)

// NoInformationAnswer is returned verbatim when retrieval produced nothing to
// ground an answer on. The generator is not called in that case.
const NoInformationAnswer = "No relevant information found in the indexed documents."

// retryBackoff is the pause before the single retry of a failed generation call.
const retryBackoff = 500 * time.Millisecond

const promptTemplate = `Answer the question strictly based ONLY on the context below. If the context does not contain the answer, say that the indexed documents do not cover it.

Context:
%s

Question: %s

Answer:`

// Synthesizer assembles retrieved chunks into a grounded prompt and produces
// an answer through a Generator.
type Synthesizer struct {
	generator       Generator
	dedupRatio      float64
	maxContextChars int
}

// NewSynthesizer creates a synthesizer. dedupRatio controls near-duplicate
// chunk removal (0 disables it) and maxContextChars bounds the total context
// text placed in the prompt (0 means unbounded).
func NewSynthesizer(generator Generator, dedupRatio float64, maxContextChars int) *Synthesizer {
	return &Synthesizer{
		generator:       generator,
		dedupRatio:      dedupRatio,
		maxContextChars: maxContextChars,
	}
}

// Synthesize answers the query from ranked retrieval results. It returns the
// answer together with the chunks that actually made it into the prompt, in
// ranked order.
func (s *Synthesizer) Synthesize(ctx context.Context, query string, results []models.ScoredChunk) (string, []models.ScoredChunk, error) {
	if len(results) == 0 {
		return NoInformationAnswer, nil, nil
	}

	used := Dedup(results, s.dedupRatio)
	used = s.fitContext(used)

	parts := make([]string, len(used))
	for i, res := range used {
		parts[i] = res.Chunk.Text
	}
	prompt := fmt.Sprintf(promptTemplate, strings.Join(parts, "\n\n---\n\n"), query)

	answer, err := s.generateWithRetry(ctx, prompt)
	if err != nil {
		return "", nil, err
	}
	return strings.TrimSpace(answer), used, nil
}

// fitContext drops the lowest-ranked chunks until the combined context text
// fits within maxContextChars. The top-ranked chunk is always kept even when
// it alone exceeds the budget.
func (s *Synthesizer) fitContext(results []models.ScoredChunk) []models.ScoredChunk {
	if s.maxContextChars <= 0 {
		return results
	}
	total := 0
	for i, res := range results {
		total += len([]rune(res.Chunk.Text))
		if total > s.maxContextChars && i > 0 {
			return results[:i]
		}
	}
	return results
}

func (s *Synthesizer) generateWithRetry(ctx context.Context, prompt string) (string, error) {
	answer, err := s.generator.Generate(ctx, prompt)
	if err == nil {
		return answer, nil
	}
	if !errors.Is(err, ErrGenerationUnavailable) {
		return "", err
	}
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case <-time.After(retryBackoff):
	}
	return s.generator.Generate(ctx, prompt)
}
