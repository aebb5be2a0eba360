// Package cli provides CLI output utilities for Kotaeru.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/hyperjump/kotaeru/internal/models"
)

// AnswerOutputFormat is the format for answer output.
type AnswerOutputFormat string

const (
	// OutputText is human-readable text (default).
	OutputText AnswerOutputFormat = "text"
	// OutputJSON is structured JSON for machine consumption.
	OutputJSON AnswerOutputFormat = "json"
)

// WriteAnswer writes a query response to w in the given format.
// Use OutputJSON for parseable output consumable by other apps.
func WriteAnswer(w io.Writer, response *models.QueryResponse, format AnswerOutputFormat) error {
	switch format {
	case OutputJSON:
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		return enc.Encode(response)
	default:
		writeAnswerText(w, response)
		return nil
	}
}

func writeAnswerText(w io.Writer, response *models.QueryResponse) {
	fmt.Fprintf(w, "\n%s\n", response.Answer)
	if len(response.SupportingChunks) > 0 {
		fmt.Fprintf(w, "\n--- Sources (%d chunks, %dms) ---\n", len(response.SupportingChunks), response.QueryTime)
		for i, chunk := range response.SupportingChunks {
			fmt.Fprintf(w, "─────────────────────────────────────────────────────────\n")
			fmt.Fprintf(w, "[%d] Score: %.4f\n", i+1, chunk.Score)
			fmt.Fprintf(w, "%s\n", Truncate(chunk.Text, 200))
		}
	}
	fmt.Fprintln(w)
}

// Truncate truncates s to maxLen runes and appends "..." if truncated.
func Truncate(s string, maxLen int) string {
	if maxLen <= 0 {
		return s
	}
	runes := []rune(s)
	if len(runes) <= maxLen {
		return s
	}
	return string(runes[:maxLen]) + "..."
}

// TruncateWords returns up to maxWords from the space-separated string.
func TruncateWords(s string, maxWords int) string {
	words := strings.Fields(s)
	if len(words) <= maxWords {
		return s
	}
	return strings.Join(words[:maxWords], " ") + "..."
}
