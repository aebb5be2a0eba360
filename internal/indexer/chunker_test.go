package indexer

import (
	"errors"
	"strings"
	"testing"
)

func TestNewChunkerValidation(t *testing.T) {
	tests := []struct {
		name    string
		size    int
		overlap int
		wantErr bool
	}{
		{"valid", 500, 100, false},
		{"zero overlap", 500, 0, false},
		{"overlap equals size", 500, 500, true},
		{"overlap exceeds size", 100, 200, true},
		{"negative overlap", 500, -1, true},
		{"zero size", 0, 0, true},
		{"negative size", -10, 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewChunker(tt.size, tt.overlap)
			if tt.wantErr {
				if !errors.Is(err, ErrInvalidChunkConfig) {
					t.Fatalf("expected ErrInvalidChunkConfig, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestChunkOffsets(t *testing.T) {
	chunker, err := NewChunker(500, 50)
	if err != nil {
		t.Fatal(err)
	}
	text := strings.Repeat("a", 1200)
	chunks := chunker.Chunk("doc-1", text)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	wantOffsets := [][2]int{{0, 500}, {450, 950}, {900, 1200}}
	for i, want := range wantOffsets {
		if chunks[i].StartOffset != want[0] || chunks[i].EndOffset != want[1] {
			t.Errorf("chunk %d: got [%d,%d), want [%d,%d)",
				i, chunks[i].StartOffset, chunks[i].EndOffset, want[0], want[1])
		}
		if got := len([]rune(chunks[i].Text)); got != want[1]-want[0] {
			t.Errorf("chunk %d: text length %d, want %d", i, got, want[1]-want[0])
		}
		if chunks[i].DocumentID != "doc-1" {
			t.Errorf("chunk %d: document id %q", i, chunks[i].DocumentID)
		}
	}
}

func TestChunkDefaultOverlapOffsets(t *testing.T) {
	chunker, err := NewChunker(500, 100)
	if err != nil {
		t.Fatal(err)
	}
	text := strings.Repeat("b", 1200)
	chunks := chunker.Chunk("doc-1", text)

	// Step 400: [0,500) [400,900) [800,1200).
	wantOffsets := [][2]int{{0, 500}, {400, 900}, {800, 1200}}
	if len(chunks) != len(wantOffsets) {
		t.Fatalf("expected %d chunks, got %d", len(wantOffsets), len(chunks))
	}
	for i, want := range wantOffsets {
		if chunks[i].StartOffset != want[0] || chunks[i].EndOffset != want[1] {
			t.Errorf("chunk %d: got [%d,%d), want [%d,%d)",
				i, chunks[i].StartOffset, chunks[i].EndOffset, want[0], want[1])
		}
	}
}

func TestChunkShorterThanSize(t *testing.T) {
	chunker, _ := NewChunker(500, 100)
	chunks := chunker.Chunk("doc-1", "short text")
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Text != "short text" || chunks[0].StartOffset != 0 || chunks[0].EndOffset != 10 {
		t.Errorf("unexpected chunk: %+v", chunks[0])
	}
}

func TestChunkEmptyText(t *testing.T) {
	chunker, _ := NewChunker(500, 100)
	if chunks := chunker.Chunk("doc-1", ""); len(chunks) != 0 {
		t.Fatalf("expected no chunks for empty text, got %d", len(chunks))
	}
}

func TestChunkMultiByteRunes(t *testing.T) {
	chunker, _ := NewChunker(4, 1)
	text := "日本語のテキスト" // 8 runes
	chunks := chunker.Chunk("doc-1", text)

	if len(chunks) != 3 {
		t.Fatalf("expected 3 chunks, got %d", len(chunks))
	}
	runes := []rune(text)
	for i, c := range chunks {
		want := string(runes[c.StartOffset:c.EndOffset])
		if c.Text != want {
			t.Errorf("chunk %d: got %q, want %q", i, c.Text, want)
		}
	}
}

// Stripping each subsequent chunk's leading overlap runes must reconstruct
// the original text exactly.
func TestChunkRoundTrip(t *testing.T) {
	texts := []string{
		strings.Repeat("abcdefghij", 123),
		strings.Repeat("日本語テスト", 77),
		"tiny",
		strings.Repeat("x", 500),
		strings.Repeat("y", 501),
	}
	for _, overlap := range []int{0, 1, 100, 499} {
		chunker, err := NewChunker(500, overlap)
		if err != nil {
			t.Fatal(err)
		}
		for _, text := range texts {
			chunks := chunker.Chunk("doc-1", text)
			var b strings.Builder
			for i, c := range chunks {
				runes := []rune(c.Text)
				if i > 0 {
					runes = runes[overlap:]
				}
				b.WriteString(string(runes))
			}
			if b.String() != text {
				t.Errorf("overlap %d: reconstruction mismatch for %d-rune text",
					overlap, len([]rune(text)))
			}
		}
	}
}
