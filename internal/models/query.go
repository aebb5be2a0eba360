package models

import (
	"fmt"
	"strings"
)

// QueryRequest is a question against the indexed corpus.
type QueryRequest struct {
	Query string `json:"query"`
	K     int    `json:"k,omitempty"`
}

// Validate checks the request and normalizes K against the given defaults.
// Returns an error if the query is empty; K defaults to defaultK when unset
// and is capped at maxK.
func (q *QueryRequest) Validate(defaultK, maxK int) error {
	if strings.TrimSpace(q.Query) == "" {
		return fmt.Errorf("query cannot be empty")
	}
	if q.K <= 0 {
		q.K = defaultK
	}
	if maxK > 0 && q.K > maxK {
		q.K = maxK
	}
	return nil
}

// SupportingChunk is a retrieved passage exposed to the caller for provenance.
type SupportingChunk struct {
	Text  string  `json:"text"`
	Score float64 `json:"score"`
}

// QueryResponse is the answer to a query plus the chunks that supported it,
// ordered by descending similarity.
type QueryResponse struct {
	Query            string            `json:"query"`
	Answer           string            `json:"answer"`
	SupportingChunks []SupportingChunk `json:"supporting_chunks"`
	QueryTime        int64             `json:"query_time_ms"`
}
