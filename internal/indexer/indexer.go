package indexer

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hyperjump/kotaeru/internal/config"
	"github.com/hyperjump/kotaeru/internal/embedding"
	"github.com/hyperjump/kotaeru/internal/extract"
	"github.com/hyperjump/kotaeru/internal/fileid"
	"github.com/hyperjump/kotaeru/internal/models"
	"github.com/hyperjump/kotaeru/internal/storage"
	"github.com/hyperjump/kotaeru/internal/vector"
)

// Indexer runs the ingest pipeline: extract, preprocess, chunk, embed, index.
//
// Chunk IDs are assigned as a contiguous range per document under a mutex, so
// concurrent ingests never interleave ID ranges, and the batch is inserted into
// the vector index atomically.
type Indexer struct {
	storage   storage.Storage
	embedder  embedding.Embedder
	index     vector.Index
	chunker   *Chunker
	extractor *extract.Extractor
	logger    *zap.Logger

	mu          sync.Mutex
	nextChunkID int64
}

// IndexerOption configures an Indexer.
type IndexerOption func(*Indexer)

// WithLogger sets a logger for debug output (document ingested, file skipped, etc.).
func WithLogger(l *zap.Logger) IndexerOption {
	return func(idx *Indexer) { idx.logger = l }
}

// NewIndexer creates an indexer with the given dependencies. The chunk ID
// sequence resumes after the highest ID already in storage.
func NewIndexer(
	ctx context.Context,
	store storage.Storage,
	embedder embedding.Embedder,
	index vector.Index,
	cfg *config.RetrievalConfig,
	extractor *extract.Extractor,
	opts ...IndexerOption,
) (*Indexer, error) {
	chunker, err := NewChunker(cfg.ChunkSize, cfg.ChunkOverlap)
	if err != nil {
		return nil, err
	}
	maxID, err := store.MaxChunkID(ctx)
	if err != nil {
		return nil, fmt.Errorf("resume chunk id sequence: %w", err)
	}
	idx := &Indexer{
		storage:     store,
		embedder:    embedder,
		index:       index,
		chunker:     chunker,
		extractor:   extractor,
		nextChunkID: maxID + 1,
	}
	for _, opt := range opts {
		opt(idx)
	}
	return idx, nil
}

// IngestBytes ingests one document given its raw bytes and declared format
// extension (with leading dot). A failure aborts only this document; previously
// indexed documents remain searchable.
func (idx *Indexer) IngestBytes(ctx context.Context, title string, content []byte, ext string) (*models.Document, error) {
	return idx.ingest(ctx, uuid.New().String(), title, content, ext)
}

func (idx *Indexer) ingest(ctx context.Context, docID, title string, content []byte, ext string) (*models.Document, error) {
	text, err := idx.extractor.ExtractBytes(content, ext)
	if err != nil {
		return nil, fmt.Errorf("extract content: %w", err)
	}
	text = Preprocess(text)

	chunks := idx.chunker.Chunk(docID, text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("document contains no extractable text")
	}

	texts := make([]string, len(chunks))
	for i := range chunks {
		texts[i] = chunks[i].Text
	}
	embeddings, err := idx.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("generate embeddings: %w", err)
	}

	// Reserve a contiguous ID range for this document's chunks.
	idx.mu.Lock()
	base := idx.nextChunkID
	idx.nextChunkID += int64(len(chunks))
	idx.mu.Unlock()

	entries := make([]vector.Entry, len(chunks))
	for i := range chunks {
		chunks[i].ID = base + int64(i)
		entries[i] = vector.Entry{Chunk: chunks[i], Vector: embeddings[i]}
	}

	doc := &models.Document{
		ID:         docID,
		Title:      title,
		Format:     ext,
		SizeBytes:  int64(len(content)),
		ChunkCount: len(chunks),
	}
	if err := idx.storage.CreateDocument(ctx, doc); err != nil {
		return nil, fmt.Errorf("store document: %w", err)
	}
	if err := idx.storage.BatchCreateChunks(ctx, chunks); err != nil {
		idx.rollback(ctx, docID)
		return nil, fmt.Errorf("store chunks: %w", err)
	}
	if err := idx.index.BatchInsert(ctx, entries); err != nil {
		// Metadata without vectors would make the document look ingested
		// while being unsearchable; remove the rows so a retry starts clean.
		idx.rollback(ctx, docID)
		return nil, fmt.Errorf("index vectors: %w", err)
	}
	if idx.logger != nil {
		idx.logger.Debug("document ingested",
			zap.String("doc_id", docID),
			zap.String("title", title),
			zap.Int("chunks", len(chunks)),
		)
	}
	return doc, nil
}

// rollback removes a half-ingested document's metadata so a later retry is
// not mistaken for a duplicate. Best effort.
func (idx *Indexer) rollback(ctx context.Context, docID string) {
	if err := idx.storage.DeleteDocument(ctx, docID); err != nil && idx.logger != nil {
		idx.logger.Warn("rollback document metadata failed",
			zap.String("doc_id", docID), zap.Error(err))
	}
}

// IngestFile reads and ingests the file at path. The document ID is derived
// from the absolute path; a file already ingested under the same path is
// skipped and its existing record returned.
func (idx *Indexer) IngestFile(ctx context.Context, path string) (*models.Document, error) {
	absPath, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("absolute path: %w", err)
	}
	ext := filepath.Ext(absPath)
	if !idx.extractor.Supported(ext) {
		return nil, fmt.Errorf("%w: %q", extract.ErrUnsupportedFormat, ext)
	}
	docID := fileid.FileDocID(absPath)
	if doc, getErr := idx.storage.GetDocument(ctx, docID); getErr == nil {
		if idx.logger != nil {
			idx.logger.Debug("skipping already ingested file", zap.String("path", absPath))
		}
		return doc, nil
	}
	content, err := os.ReadFile(absPath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	return idx.ingest(ctx, docID, filepath.Base(absPath), content, ext)
}

// IngestDirectory walks dir recursively and ingests each regular file with a
// supported extension. Per-file failures are logged and skipped so one corrupt
// document cannot block the rest of the corpus. Returns the number of files
// ingested.
func (idx *Indexer) IngestDirectory(ctx context.Context, dir string) (int, error) {
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return 0, fmt.Errorf("absolute path: %w", err)
	}
	info, err := os.Stat(absDir)
	if err != nil {
		return 0, fmt.Errorf("stat directory: %w", err)
	}
	if !info.IsDir() {
		return 0, fmt.Errorf("not a directory: %s", absDir)
	}
	n := 0
	err = filepath.WalkDir(absDir, func(path string, d os.DirEntry, walkErr error) error {
		if walkErr != nil {
			return walkErr
		}
		if d.IsDir() || !idx.extractor.Supported(filepath.Ext(path)) {
			return nil
		}
		finfo, statErr := os.Stat(path)
		if statErr != nil || !finfo.Mode().IsRegular() {
			return nil
		}
		if _, ingestErr := idx.IngestFile(ctx, path); ingestErr != nil {
			if idx.logger != nil {
				idx.logger.Warn("ingest file failed", zap.String("path", path), zap.Error(ingestErr))
			}
			return nil
		}
		n++
		return nil
	})
	return n, err
}
