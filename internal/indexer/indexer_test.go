package indexer

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"github.com/hyperjump/kotaeru/internal/config"
	"github.com/hyperjump/kotaeru/internal/embedding"
	"github.com/hyperjump/kotaeru/internal/extract"
	"github.com/hyperjump/kotaeru/internal/storage"
	"github.com/hyperjump/kotaeru/internal/vector"
)

func newTestIndexer(t *testing.T, chunkSize, chunkOverlap int) (*Indexer, storage.Storage, vector.Index) {
	t.Helper()

	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	index, err := vector.NewMemoryIndex(64)
	if err != nil {
		t.Fatal(err)
	}

	cfg := &config.RetrievalConfig{ChunkSize: chunkSize, ChunkOverlap: chunkOverlap}
	idx, err := NewIndexer(context.Background(), store, embedding.NewMockEmbedder(64), index, cfg, extract.NewExtractor())
	if err != nil {
		t.Fatal(err)
	}
	return idx, store, index
}

func TestIngestBytes(t *testing.T) {
	idx, store, index := newTestIndexer(t, 100, 20)
	ctx := context.Background()

	text := strings.Repeat("the quick brown fox jumps over the lazy dog ", 10)
	doc, err := idx.IngestBytes(ctx, "foxes.txt", []byte(text), ".txt")
	if err != nil {
		t.Fatal(err)
	}
	if doc.ChunkCount == 0 {
		t.Fatal("expected at least one chunk")
	}

	stored, err := store.GetDocument(ctx, doc.ID)
	if err != nil {
		t.Fatalf("document not stored: %v", err)
	}
	if stored.ChunkCount != doc.ChunkCount {
		t.Errorf("stored chunk count %d, want %d", stored.ChunkCount, doc.ChunkCount)
	}

	chunks, err := store.GetChunksByDocumentID(ctx, doc.ID)
	if err != nil {
		t.Fatal(err)
	}
	if len(chunks) != doc.ChunkCount {
		t.Errorf("stored %d chunks, want %d", len(chunks), doc.ChunkCount)
	}
	if index.Len() != doc.ChunkCount {
		t.Errorf("index has %d entries, want %d", index.Len(), doc.ChunkCount)
	}
}

func TestIngestBytesUnsupportedFormat(t *testing.T) {
	idx, _, _ := newTestIndexer(t, 100, 20)
	_, err := idx.IngestBytes(context.Background(), "image", []byte{0xFF, 0xD8}, ".jpg")
	if !errors.Is(err, extract.ErrUnsupportedFormat) {
		t.Fatalf("expected ErrUnsupportedFormat, got %v", err)
	}
}

func TestIngestBytesEmptyDocument(t *testing.T) {
	idx, _, _ := newTestIndexer(t, 100, 20)
	if _, err := idx.IngestBytes(context.Background(), "empty.txt", []byte("   \n\t  "), ".txt"); err == nil {
		t.Fatal("expected error for document with no extractable text")
	}
}

// Chunk IDs must be assigned as contiguous per-document ranges even when
// documents are ingested concurrently.
func TestIngestConcurrentChunkIDRanges(t *testing.T) {
	idx, store, _ := newTestIndexer(t, 50, 10)
	ctx := context.Background()

	const docs = 8
	var wg sync.WaitGroup
	ids := make([]string, docs)
	for i := 0; i < docs; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			text := strings.Repeat(fmt.Sprintf("document %d content ", i), 20)
			doc, err := idx.IngestBytes(ctx, fmt.Sprintf("doc-%d.txt", i), []byte(text), ".txt")
			if err != nil {
				t.Errorf("ingest %d: %v", i, err)
				return
			}
			ids[i] = doc.ID
		}(i)
	}
	wg.Wait()

	seen := make(map[int64]bool)
	for i, docID := range ids {
		if docID == "" {
			continue
		}
		chunks, err := store.GetChunksByDocumentID(ctx, docID)
		if err != nil {
			t.Fatal(err)
		}
		for j := 1; j < len(chunks); j++ {
			if chunks[j].ID != chunks[j-1].ID+1 {
				t.Errorf("doc %d: chunk IDs not contiguous: %d then %d", i, chunks[j-1].ID, chunks[j].ID)
			}
		}
		for _, c := range chunks {
			if seen[c.ID] {
				t.Errorf("chunk ID %d assigned twice", c.ID)
			}
			seen[c.ID] = true
		}
	}
}

func TestIngestResumesChunkIDSequence(t *testing.T) {
	dir := t.TempDir()
	dbPath := filepath.Join(dir, "test.db")
	ctx := context.Background()
	cfg := &config.RetrievalConfig{ChunkSize: 50, ChunkOverlap: 10}

	store, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	index, _ := vector.NewMemoryIndex(64)
	idx, err := NewIndexer(ctx, store, embedding.NewMockEmbedder(64), index, cfg, extract.NewExtractor())
	if err != nil {
		t.Fatal(err)
	}
	doc, err := idx.IngestBytes(ctx, "first.txt", []byte(strings.Repeat("alpha beta gamma ", 20)), ".txt")
	if err != nil {
		t.Fatal(err)
	}
	firstChunks, _ := store.GetChunksByDocumentID(ctx, doc.ID)
	store.Close()

	// Reopen as a fresh process would.
	store2, err := storage.NewSQLiteStorage(dbPath)
	if err != nil {
		t.Fatal(err)
	}
	defer store2.Close()
	index2, _ := vector.NewMemoryIndex(64)
	idx2, err := NewIndexer(ctx, store2, embedding.NewMockEmbedder(64), index2, cfg, extract.NewExtractor())
	if err != nil {
		t.Fatal(err)
	}
	doc2, err := idx2.IngestBytes(ctx, "second.txt", []byte(strings.Repeat("delta epsilon ", 20)), ".txt")
	if err != nil {
		t.Fatal(err)
	}
	secondChunks, _ := store2.GetChunksByDocumentID(ctx, doc2.ID)

	maxFirst := firstChunks[len(firstChunks)-1].ID
	if secondChunks[0].ID != maxFirst+1 {
		t.Errorf("second ingest started at chunk ID %d, want %d", secondChunks[0].ID, maxFirst+1)
	}
}

func TestIngestFileSkipsAlreadyIngested(t *testing.T) {
	idx, store, _ := newTestIndexer(t, 100, 20)
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte(strings.Repeat("some notes about things ", 10)), 0o644); err != nil {
		t.Fatal(err)
	}
	doc1, err := idx.IngestFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	doc2, err := idx.IngestFile(ctx, path)
	if err != nil {
		t.Fatal(err)
	}
	if doc1.ID != doc2.ID {
		t.Errorf("re-ingest produced a different document: %s vs %s", doc1.ID, doc2.ID)
	}
	count, _ := store.CountDocuments(ctx)
	if count != 1 {
		t.Errorf("expected 1 document, got %d", count)
	}
}

// failingIndex rejects the first BatchInsert and behaves normally afterwards.
type failingIndex struct {
	vector.Index
	failed bool
}

func (f *failingIndex) BatchInsert(ctx context.Context, entries []vector.Entry) error {
	if !f.failed {
		f.failed = true
		return errors.New("index unavailable")
	}
	return f.Index.BatchInsert(ctx, entries)
}

// A vector insert failure must not leave document metadata behind, or a
// retry of the same file would be skipped as already ingested.
func TestIngestFileRollsBackMetadataOnIndexFailure(t *testing.T) {
	store, err := storage.NewSQLiteStorage(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	mem, err := vector.NewMemoryIndex(64)
	if err != nil {
		t.Fatal(err)
	}
	index := &failingIndex{Index: mem}
	cfg := &config.RetrievalConfig{ChunkSize: 100, ChunkOverlap: 20}
	idx, err := NewIndexer(context.Background(), store, embedding.NewMockEmbedder(64), index, cfg, extract.NewExtractor())
	if err != nil {
		t.Fatal(err)
	}
	ctx := context.Background()

	path := filepath.Join(t.TempDir(), "notes.txt")
	if err := os.WriteFile(path, []byte(strings.Repeat("some notes about things ", 10)), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := idx.IngestFile(ctx, path); err == nil {
		t.Fatal("expected first ingest to fail")
	}
	if count, _ := store.CountDocuments(ctx); count != 0 {
		t.Fatalf("expected no documents after failed ingest, got %d", count)
	}

	doc, err := idx.IngestFile(ctx, path)
	if err != nil {
		t.Fatalf("retry after failed ingest: %v", err)
	}
	if doc.ChunkCount == 0 {
		t.Fatal("expected retry to ingest chunks")
	}
	if mem.Len() != doc.ChunkCount {
		t.Errorf("index has %d entries, want %d", mem.Len(), doc.ChunkCount)
	}
}

func TestIngestDirectory(t *testing.T) {
	idx, store, _ := newTestIndexer(t, 100, 20)
	ctx := context.Background()

	dir := t.TempDir()
	files := map[string]string{
		"a.txt":      strings.Repeat("first document text ", 10),
		"b.md":       strings.Repeat("second document text ", 10),
		"skip.png":   "not a document",
		"sub/c.txt":  strings.Repeat("nested document text ", 10),
		"sub/d.json": "unsupported",
	}
	for name, content := range files {
		path := filepath.Join(dir, name)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			t.Fatal(err)
		}
		if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
			t.Fatal(err)
		}
	}

	n, err := idx.IngestDirectory(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	if n != 3 {
		t.Errorf("ingested %d files, want 3", n)
	}
	count, _ := store.CountDocuments(ctx)
	if count != 3 {
		t.Errorf("expected 3 documents, got %d", count)
	}
}

// A corrupt file must not block the rest of the directory.
func TestIngestDirectoryContinuesPastFailures(t *testing.T) {
	idx, store, _ := newTestIndexer(t, 100, 20)
	ctx := context.Background()

	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "bad.pdf"), []byte("not a real pdf"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "good.txt"), []byte(strings.Repeat("fine text ", 20)), 0o644); err != nil {
		t.Fatal(err)
	}

	n, err := idx.IngestDirectory(ctx, dir)
	if err != nil {
		t.Fatal(err)
	}
	if n != 1 {
		t.Errorf("ingested %d files, want 1", n)
	}
	count, _ := store.CountDocuments(ctx)
	if count != 1 {
		t.Errorf("expected 1 document, got %d", count)
	}
}
