package synthesis

import "github.com/hyperjump/kotaeru/internal/models"

// Dedup removes near-duplicate chunks from ranked retrieval results. Two
// chunks are near-duplicates when their longest common substring covers more
// than ratio of the shorter chunk, measured in runes. The higher-scored chunk
// of each duplicate pair survives. Order of the survivors is preserved and the
// input slice is left untouched.
func Dedup(results []models.ScoredChunk, ratio float64) []models.ScoredChunk {
	if len(results) < 2 || ratio <= 0 {
		return results
	}
	dropped := make([]bool, len(results))
	for i := 0; i < len(results); i++ {
		if dropped[i] {
			continue
		}
		for j := i + 1; j < len(results); j++ {
			if dropped[j] {
				continue
			}
			if overlapRatio(results[i].Chunk.Text, results[j].Chunk.Text) > ratio {
				// Results arrive ranked, so i is the higher-scored one.
				dropped[j] = true
			}
		}
	}
	kept := make([]models.ScoredChunk, 0, len(results))
	for i, res := range results {
		if !dropped[i] {
			kept = append(kept, res)
		}
	}
	return kept
}

// overlapRatio returns the length of the longest common substring of a and b
// divided by the rune length of the shorter string.
func overlapRatio(a, b string) float64 {
	ra, rb := []rune(a), []rune(b)
	shorter := len(ra)
	if len(rb) < shorter {
		shorter = len(rb)
	}
	if shorter == 0 {
		return 0
	}
	return float64(longestCommonSubstring(ra, rb)) / float64(shorter)
}

func longestCommonSubstring(a, b []rune) int {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	prev := make([]int, len(b)+1)
	curr := make([]int, len(b)+1)
	longest := 0
	for i := 1; i <= len(a); i++ {
		for j := 1; j <= len(b); j++ {
			if a[i-1] == b[j-1] {
				curr[j] = prev[j-1] + 1
				if curr[j] > longest {
					longest = curr[j]
				}
			} else {
				curr[j] = 0
			}
		}
		prev, curr = curr, prev
	}
	return longest
}
