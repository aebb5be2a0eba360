// Package indexer provides document chunking and the ingest pipeline.
package indexer

import (
	"errors"
	"fmt"

	"github.com/hyperjump/kotaeru/internal/models"
)

// ErrInvalidChunkConfig is returned when the chunk size/overlap pair violates
// 0 <= overlap < size.
var ErrInvalidChunkConfig = errors.New("invalid chunk configuration")

// Chunker splits text into overlapping fixed-size character windows. Windows
// are measured in runes, not bytes, so multi-byte text chunks cleanly.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker creates a chunker with the given window size and overlap, both in
// runes. Fails unless 0 <= overlap < size.
func NewChunker(size, overlap int) (*Chunker, error) {
	if size <= 0 || overlap < 0 || overlap >= size {
		return nil, fmt.Errorf("%w: size=%d overlap=%d (need 0 <= overlap < size)", ErrInvalidChunkConfig, size, overlap)
	}
	return &Chunker{size: size, overlap: overlap}, nil
}

// Chunk splits text into chunks for docID. Each window holds size runes and
// starts overlap runes before the previous window's end; the final chunk may be
// shorter. Offsets are rune offsets into text. The output is deterministic:
// identical text and parameters always produce the identical sequence. Chunk IDs
// are zero; the indexer assigns them as a contiguous range at insert time.
func (c *Chunker) Chunk(docID, text string) []models.Chunk {
	runes := []rune(text)
	if len(runes) == 0 {
		return nil
	}
	step := c.size - c.overlap
	var chunks []models.Chunk
	for start := 0; start < len(runes); start += step {
		end := start + c.size
		if end > len(runes) {
			end = len(runes)
		}
		chunks = append(chunks, models.Chunk{
			DocumentID:  docID,
			Text:        string(runes[start:end]),
			StartOffset: start,
			EndOffset:   end,
		})
		if end >= len(runes) {
			break
		}
	}
	return chunks
}

// Size returns the window size in runes.
func (c *Chunker) Size() int { return c.size }

// Overlap returns the window overlap in runes.
func (c *Chunker) Overlap() int { return c.overlap }
