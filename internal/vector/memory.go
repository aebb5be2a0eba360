package vector

import (
	"context"
	"encoding/binary"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/hyperjump/kotaeru/internal/models"
)

// MemoryIndex is an in-memory vector index using brute-force inner product
// search over L2-normalized vectors. Entries are kept in insertion order;
// search ties are broken in favor of earlier-inserted entries.
type MemoryIndex struct {
	dimensions int
	entries    []Entry
	mu         sync.RWMutex
}

// NewMemoryIndex creates an in-memory vector index with the given dimension.
func NewMemoryIndex(dimensions int) (*MemoryIndex, error) {
	if dimensions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive")
	}
	return &MemoryIndex{
		dimensions: dimensions,
		entries:    make([]Entry, 0),
	}, nil
}

// Insert appends a single entry.
func (m *MemoryIndex) Insert(ctx context.Context, entry Entry) error {
	return m.BatchInsert(ctx, []Entry{entry})
}

// BatchInsert appends entries atomically: either all entries are added in the
// given order with no other writer interleaving, or none are.
func (m *MemoryIndex) BatchInsert(ctx context.Context, entries []Entry) error {
	for i := range entries {
		if len(entries[i].Vector) != m.dimensions {
			return fmt.Errorf("%w: got %d, expected %d", ErrDimensionMismatch, len(entries[i].Vector), m.dimensions)
		}
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range entries {
		vec := make([]float32, m.dimensions)
		copy(vec, e.Vector)
		m.entries = append(m.entries, Entry{Chunk: e.Chunk, Vector: vec})
	}
	return nil
}

// Search returns the top-k chunks by cosine similarity to query, ordered by
// descending score. Ties are broken by insertion order (earliest wins). An
// empty index yields an empty result, not an error; fewer than k results are
// returned only when the index holds fewer than k entries.
func (m *MemoryIndex) Search(ctx context.Context, query []float32, k int) ([]models.ScoredChunk, error) {
	if len(query) != m.dimensions {
		return nil, fmt.Errorf("%w: query has %d, expected %d", ErrDimensionMismatch, len(query), m.dimensions)
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	if k <= 0 || len(m.entries) == 0 {
		return nil, nil
	}
	scored := make([]models.ScoredChunk, len(m.entries))
	for i := range m.entries {
		scored[i] = models.ScoredChunk{
			Chunk: m.entries[i].Chunk,
			Score: InnerProduct(query, m.entries[i].Vector),
		}
	}
	// Stable sort keeps insertion order among equal scores.
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k > len(scored) {
		k = len(scored)
	}
	return scored[:k], nil
}

// Len returns the number of entries in the index.
func (m *MemoryIndex) Len() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.entries)
}

// Clear removes all entries. This is the only operation that drops entries.
func (m *MemoryIndex) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = m.entries[:0]
}

// Save persists the index to path; the directory is created if needed.
// Format (little-endian): dimensions (4), count (4), then per entry:
// chunk ID (8), document ID (4 + bytes), start offset (4), end offset (4),
// text (4 + bytes), vector (dimensions*4 bytes).
func (m *MemoryIndex) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("create index dir: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	defer f.Close()
	if err := binary.Write(f, binary.LittleEndian, uint32(m.dimensions)); err != nil {
		return fmt.Errorf("write dimensions: %w", err)
	}
	if err := binary.Write(f, binary.LittleEndian, uint32(len(m.entries))); err != nil {
		return fmt.Errorf("write count: %w", err)
	}
	for i := range m.entries {
		e := &m.entries[i]
		if err := binary.Write(f, binary.LittleEndian, e.Chunk.ID); err != nil {
			return fmt.Errorf("write chunk id: %w", err)
		}
		if err := writeString(f, e.Chunk.DocumentID); err != nil {
			return fmt.Errorf("write document id: %w", err)
		}
		if err := binary.Write(f, binary.LittleEndian, uint32(e.Chunk.StartOffset)); err != nil {
			return fmt.Errorf("write start offset: %w", err)
		}
		if err := binary.Write(f, binary.LittleEndian, uint32(e.Chunk.EndOffset)); err != nil {
			return fmt.Errorf("write end offset: %w", err)
		}
		if err := writeString(f, e.Chunk.Text); err != nil {
			return fmt.Errorf("write chunk text: %w", err)
		}
		if _, err := f.Write(float32SliceToBytes(e.Vector)); err != nil {
			return fmt.Errorf("write vector: %w", err)
		}
	}
	return nil
}

// Load reads the index from path and replaces the in-memory contents. Dimensions
// must match. If the file does not exist, no error is returned and the index is
// unchanged. A loaded index reproduces the saved index's search behavior exactly.
func (m *MemoryIndex) Load(path string) error {
	if path == "" {
		return nil
	}
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("open index file: %w", err)
	}
	defer f.Close()
	var dim, n uint32
	if err := binary.Read(f, binary.LittleEndian, &dim); err != nil {
		return fmt.Errorf("read dimensions: %w", err)
	}
	if int(dim) != m.dimensions {
		return fmt.Errorf("%w: file has %d, index expects %d", ErrDimensionMismatch, dim, m.dimensions)
	}
	if err := binary.Read(f, binary.LittleEndian, &n); err != nil {
		return fmt.Errorf("read count: %w", err)
	}
	entries := make([]Entry, 0, n)
	vecBuf := make([]byte, m.dimensions*4)
	for i := uint32(0); i < n; i++ {
		var e Entry
		if err := binary.Read(f, binary.LittleEndian, &e.Chunk.ID); err != nil {
			return fmt.Errorf("read chunk id: %w", err)
		}
		docID, err := readString(f)
		if err != nil {
			return fmt.Errorf("read document id: %w", err)
		}
		e.Chunk.DocumentID = docID
		var start, end uint32
		if err := binary.Read(f, binary.LittleEndian, &start); err != nil {
			return fmt.Errorf("read start offset: %w", err)
		}
		if err := binary.Read(f, binary.LittleEndian, &end); err != nil {
			return fmt.Errorf("read end offset: %w", err)
		}
		e.Chunk.StartOffset = int(start)
		e.Chunk.EndOffset = int(end)
		text, err := readString(f)
		if err != nil {
			return fmt.Errorf("read chunk text: %w", err)
		}
		e.Chunk.Text = text
		if _, err := io.ReadFull(f, vecBuf); err != nil {
			return fmt.Errorf("read vector: %w", err)
		}
		e.Vector = bytesToFloat32Slice(vecBuf)
		entries = append(entries, e)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = entries
	return nil
}

// Close is a no-op for MemoryIndex.
func (m *MemoryIndex) Close() error {
	return nil
}

func writeString(w io.Writer, s string) error {
	if err := binary.Write(w, binary.LittleEndian, uint32(len(s))); err != nil {
		return err
	}
	_, err := w.Write([]byte(s))
	return err
}

func readString(r io.Reader) (string, error) {
	var n uint32
	if err := binary.Read(r, binary.LittleEndian, &n); err != nil {
		return "", err
	}
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

func float32SliceToBytes(s []float32) []byte {
	const size = 4
	out := make([]byte, len(s)*size)
	for i, v := range s {
		binary.LittleEndian.PutUint32(out[i*size:(i+1)*size], math.Float32bits(v))
	}
	return out
}

func bytesToFloat32Slice(b []byte) []float32 {
	const size = 4
	out := make([]float32, len(b)/size)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(b[i*size : (i+1)*size]))
	}
	return out
}
