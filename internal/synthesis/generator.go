package synthesis

import (
	"context"
	"errors"
)

// ErrGenerationUnavailable wraps failures to reach the language model. The
// retrieved chunks are still valid when it occurs; only answer generation
// could not complete.
var ErrGenerationUnavailable = errors.New("generation model unavailable")

// Generator produces an answer from a fully assembled prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
