// Package storage defines the persistence interface for document bookkeeping.
//
// Document content is not stored; only metadata and chunk texts (for provenance
// display and chunk-ID continuity across restarts). The vector index snapshot is
// the authoritative persistence path for search behavior.
package storage

import (
	"context"

	"github.com/hyperjump/kotaeru/internal/models"
)

// Storage defines document and chunk bookkeeping operations.
type Storage interface {
	CreateDocument(ctx context.Context, doc *models.Document) error
	GetDocument(ctx context.Context, id string) (*models.Document, error)
	ListDocuments(ctx context.Context, offset, limit int) ([]*models.Document, error)
	// DeleteDocument removes a document record and all of its chunks.
	DeleteDocument(ctx context.Context, id string) error

	BatchCreateChunks(ctx context.Context, chunks []models.Chunk) error
	GetChunksByDocumentID(ctx context.Context, docID string) ([]models.Chunk, error)

	CountDocuments(ctx context.Context) (int64, error)
	CountChunks(ctx context.Context) (int64, error)
	// MaxChunkID returns the highest assigned chunk ID, or 0 when no chunks exist.
	MaxChunkID(ctx context.Context) (int64, error)

	Close() error
}
