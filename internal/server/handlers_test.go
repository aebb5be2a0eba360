package server

import (
	"bytes"
	"context"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/kotaeru/internal/answer"
	"github.com/hyperjump/kotaeru/internal/config"
	"github.com/hyperjump/kotaeru/internal/embedding"
	"github.com/hyperjump/kotaeru/internal/extract"
	"github.com/hyperjump/kotaeru/internal/indexer"
	"github.com/hyperjump/kotaeru/internal/models"
	"github.com/hyperjump/kotaeru/internal/retrieval"
	"github.com/hyperjump/kotaeru/internal/storage"
	"github.com/hyperjump/kotaeru/internal/synthesis"
	"github.com/hyperjump/kotaeru/internal/vector"
)

type stubGenerator struct{ answer string }

func (g *stubGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	return g.answer, nil
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	dir := t.TempDir()
	store, err := storage.NewSQLiteStorage(dir + "/db.sqlite")
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })

	embedder := embedding.NewMockEmbedder(64)
	index, _ := vector.NewMemoryIndex(64)
	cfg := &config.Config{}
	config.ApplyDefaults(cfg)
	cfg.Retrieval.ChunkSize = 100
	cfg.Retrieval.ChunkOverlap = 20

	idx, err := indexer.NewIndexer(context.Background(), store, embedder, index, &cfg.Retrieval, extract.NewExtractor())
	if err != nil {
		t.Fatal(err)
	}
	engine := answer.NewEngine(
		retrieval.NewRetriever(embedder, index, 0),
		synthesis.NewSynthesizer(&stubGenerator{answer: "grounded answer"}, 0.8, 8000),
		nil,
	)
	return NewServer(engine, idx, store, index, cfg, zap.NewNop())
}

func uploadRequest(t *testing.T, filename, content string) *http.Request {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	fw, err := mw.CreateFormFile("file", filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	mw.Close()
	r := httptest.NewRequest(http.MethodPost, "/api/v1/documents", &body)
	r.Header.Set("Content-Type", mw.FormDataContentType())
	return r
}

func TestHandleUploadDocument(t *testing.T) {
	srv := newTestServer(t)
	w := httptest.NewRecorder()
	srv.handleUploadDocument(w, uploadRequest(t, "notes.txt", strings.Repeat("useful notes about things ", 10)))

	if w.Code != http.StatusCreated {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var doc models.Document
	if err := json.NewDecoder(w.Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}
	if doc.ID == "" || doc.ChunkCount == 0 {
		t.Errorf("unexpected document: %+v", doc)
	}
	if doc.Title != "notes.txt" {
		t.Errorf("title %q", doc.Title)
	}
}

func TestHandleUploadUnsupportedFormat(t *testing.T) {
	srv := newTestServer(t)
	w := httptest.NewRecorder()
	srv.handleUploadDocument(w, uploadRequest(t, "image.png", "binary junk"))

	if w.Code != http.StatusUnsupportedMediaType {
		t.Errorf("status: got %d, want 415", w.Code)
	}
}

func TestHandleUploadCorruptDocument(t *testing.T) {
	srv := newTestServer(t)
	w := httptest.NewRecorder()
	srv.handleUploadDocument(w, uploadRequest(t, "broken.pdf", "this is not a pdf"))

	if w.Code != http.StatusUnprocessableEntity {
		t.Errorf("status: got %d, want 422", w.Code)
	}
}

func TestHandleQuery(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	srv.handleUploadDocument(w, uploadRequest(t, "facts.txt", strings.Repeat("the capital of france is paris ", 10)))
	if w.Code != http.StatusCreated {
		t.Fatalf("upload failed: %d", w.Code)
	}

	body, _ := json.Marshal(map[string]interface{}{"query": "what is the capital of france?"})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewReader(body))
	w = httptest.NewRecorder()
	srv.handleQuery(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d, body %s", w.Code, w.Body.String())
	}
	var resp models.QueryResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Answer != "grounded answer" {
		t.Errorf("answer %q", resp.Answer)
	}
	if len(resp.SupportingChunks) == 0 {
		t.Error("expected supporting chunks")
	}
}

func TestHandleQueryEmptyIndex(t *testing.T) {
	srv := newTestServer(t)
	body, _ := json.Marshal(map[string]string{"query": "anything at all?"})
	r := httptest.NewRequest(http.MethodPost, "/api/v1/query", bytes.NewReader(body))
	w := httptest.NewRecorder()
	srv.handleQuery(w, r)

	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var resp models.QueryResponse
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Answer != synthesis.NoInformationAnswer {
		t.Errorf("got %q, want the no-information answer", resp.Answer)
	}
}

func TestHandleQueryValidation(t *testing.T) {
	srv := newTestServer(t)
	tests := []struct {
		name string
		body string
	}{
		{"empty query", `{"query": ""}`},
		{"blank query", `{"query": "   "}`},
		{"malformed json", `{"query": `},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest(http.MethodPost, "/api/v1/query", strings.NewReader(tt.body))
			w := httptest.NewRecorder()
			srv.handleQuery(w, r)
			if w.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want 400", w.Code)
			}
		})
	}
}

func TestHandleListAndGetDocuments(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	srv.handleUploadDocument(w, uploadRequest(t, "a.txt", strings.Repeat("alpha content ", 10)))
	var doc models.Document
	if err := json.NewDecoder(w.Body).Decode(&doc); err != nil {
		t.Fatal(err)
	}

	r := httptest.NewRequest(http.MethodGet, "/api/v1/documents", nil)
	w = httptest.NewRecorder()
	srv.handleListDocuments(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("list status: got %d", w.Code)
	}
	var listResp struct {
		Documents []models.Document `json:"documents"`
	}
	if err := json.NewDecoder(w.Body).Decode(&listResp); err != nil {
		t.Fatal(err)
	}
	if len(listResp.Documents) != 1 {
		t.Fatalf("expected 1 document, got %d", len(listResp.Documents))
	}

	// Fetch through the router so the URL param is populated.
	router := srv.Router()
	r = httptest.NewRequest(http.MethodGet, "/api/v1/documents/"+doc.ID, nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("get status: got %d", w.Code)
	}

	r = httptest.NewRequest(http.MethodGet, "/api/v1/documents/nope", nil)
	w = httptest.NewRecorder()
	router.ServeHTTP(w, r)
	if w.Code != http.StatusNotFound {
		t.Errorf("missing doc status: got %d, want 404", w.Code)
	}
}

func TestHandleStatus(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	srv.handleUploadDocument(w, uploadRequest(t, "a.txt", strings.Repeat("alpha content ", 10)))
	if w.Code != http.StatusCreated {
		t.Fatal("upload failed")
	}

	r := httptest.NewRequest(http.MethodGet, "/api/v1/status", nil)
	w = httptest.NewRecorder()
	srv.handleStatus(w, r)
	if w.Code != http.StatusOK {
		t.Fatalf("status: got %d", w.Code)
	}
	var out map[string]interface{}
	if err := json.NewDecoder(w.Body).Decode(&out); err != nil {
		t.Fatal(err)
	}
	if out["documents"].(float64) != 1 {
		t.Errorf("documents: %v", out["documents"])
	}
	if out["vector_index_size"].(float64) == 0 {
		t.Error("vector index empty after upload")
	}
}

func TestHandleHealth(t *testing.T) {
	srv := newTestServer(t)
	r := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	srv.handleHealth(w, r)
	if w.Code != http.StatusOK {
		t.Errorf("status: got %d", w.Code)
	}
}
