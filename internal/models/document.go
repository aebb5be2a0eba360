// Package models defines core data structures for documents, chunks, queries, and answers.
package models

import "time"

// Document is the bookkeeping record for an ingested document. The extracted
// content is consumed by chunking and not retained; only the chunk texts live on,
// owned by the vector index and the chunk store.
type Document struct {
	ID         string    `json:"id" db:"id"`
	Title      string    `json:"title" db:"title"`
	Format     string    `json:"format" db:"format"`
	SizeBytes  int64     `json:"size_bytes" db:"size_bytes"`
	ChunkCount int       `json:"chunk_count" db:"chunk_count"`
	CreatedAt  time.Time `json:"created_at" db:"created_at"`
}

// Chunk is a bounded, overlapping substring of a document's extracted text.
// StartOffset and EndOffset are rune offsets into the normalized text, so
// EndOffset - StartOffset is the chunk's rune length. Consecutive chunks of one
// document overlap by the configured overlap size. Chunks are immutable once
// created; a document's chunk IDs form a contiguous range.
type Chunk struct {
	ID          int64  `json:"id" db:"id"`
	DocumentID  string `json:"document_id" db:"document_id"`
	Text        string `json:"text" db:"text"`
	StartOffset int    `json:"start_offset" db:"start_offset"`
	EndOffset   int    `json:"end_offset" db:"end_offset"`
}

// ScoredChunk is a retrieval hit: a chunk with its cosine similarity to the query.
type ScoredChunk struct {
	Chunk Chunk   `json:"chunk"`
	Score float64 `json:"score"`
}
