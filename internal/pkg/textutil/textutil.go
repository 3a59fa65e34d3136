// Package textutil provides the text-processing primitives used by the
// ingestion and retrieval pipeline.
package textutil

import (
	"math"
	"strings"
	"unicode/utf8"

	"github.com/kart-io/guideline-rag/internal/pkg/errno"
)

// SplitIntoChunks splits text into overlapping windows of chunkSize runes,
// advancing chunkSize-overlap runes per step. Each window is space-trimmed and
// dropped when it trims to nothing; the final partial window is still emitted
// when non-empty. Identical input always yields the identical sequence.
//
// chunkSize must be positive and overlap must satisfy 0 <= overlap < chunkSize,
// otherwise the step size would be non-positive and the window could loop
// forever; invalid parameters return ErrConfiguration.
func SplitIntoChunks(text string, chunkSize, overlap int) ([]string, error) {
	if chunkSize <= 0 {
		return nil, errno.ErrConfiguration.WithMessage("chunk size must be positive, got %d", chunkSize)
	}
	if overlap < 0 || overlap >= chunkSize {
		return nil, errno.ErrConfiguration.WithMessage("overlap must be in [0, chunk size), got %d", overlap)
	}

	runes := []rune(text)
	step := chunkSize - overlap

	var chunks []string
	for i := 0; i < len(runes); i += step {
		end := i + chunkSize
		if end > len(runes) {
			end = len(runes)
		}
		if chunk := strings.TrimSpace(string(runes[i:end])); chunk != "" {
			chunks = append(chunks, chunk)
		}
		if end == len(runes) {
			break
		}
	}

	return chunks, nil
}

// TruncateString truncates a string to the given maximum number of runes.
func TruncateString(s string, maxLen int) string {
	if utf8.RuneCountInString(s) <= maxLen {
		return s
	}
	runes := []rune(s)
	return string(runes[:maxLen])
}

// CosineSimilarity computes the cosine similarity of two vectors.
// Returns 0 for mismatched lengths, empty vectors, or zero vectors.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// NormalizeCosineSimilarity maps a cosine similarity from [-1, 1] to [0, 1].
func NormalizeCosineSimilarity(similarity float64) float64 {
	return (similarity + 1) / 2
}
