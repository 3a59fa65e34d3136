package textutil_test

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/guideline-rag/internal/pkg/errno"
	"github.com/kart-io/guideline-rag/internal/pkg/textutil"
)

func TestSplitIntoChunks(t *testing.T) {
	tests := []struct {
		name      string
		text      string
		chunkSize int
		overlap   int
		want      []string
	}{
		{
			name:      "text shorter than window",
			text:      "short text",
			chunkSize: 100,
			overlap:   10,
			want:      []string{"short text"},
		},
		{
			name:      "exact two windows without overlap",
			text:      "aaaabbbb",
			chunkSize: 4,
			overlap:   0,
			want:      []string{"aaaa", "bbbb"},
		},
		{
			name:      "overlapping windows",
			text:      "abcdefgh",
			chunkSize: 4,
			overlap:   2,
			want:      []string{"abcd", "cdef", "efgh"},
		},
		{
			name:      "final partial window emitted",
			text:      "abcdefghij",
			chunkSize: 4,
			overlap:   0,
			want:      []string{"abcd", "efgh", "ij"},
		},
		{
			name:      "whitespace only yields nothing",
			text:      "   \n\t  ",
			chunkSize: 4,
			overlap:   1,
			want:      nil,
		},
		{
			name:      "empty text yields nothing",
			text:      "",
			chunkSize: 10,
			overlap:   0,
			want:      nil,
		},
		{
			name:      "whitespace windows dropped but indices keep advancing",
			text:      "abcd    efgh",
			chunkSize: 4,
			overlap:   0,
			want:      []string{"abcd", "efgh"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := textutil.SplitIntoChunks(tt.text, tt.chunkSize, tt.overlap)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestSplitIntoChunksInvalidParameters(t *testing.T) {
	tests := []struct {
		name      string
		chunkSize int
		overlap   int
	}{
		{"zero chunk size", 0, 0},
		{"negative chunk size", -1, 0},
		{"negative overlap", 10, -1},
		{"overlap equals chunk size", 10, 10},
		{"overlap exceeds chunk size", 10, 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := textutil.SplitIntoChunks("some text", tt.chunkSize, tt.overlap)
			require.Error(t, err)
			assert.True(t, errors.Is(err, errno.ErrConfiguration))
		})
	}
}

func TestSplitIntoChunksCoversAllText(t *testing.T) {
	text := strings.Repeat("abcdefghij", 150) // 1500 chars
	chunks, err := textutil.SplitIntoChunks(text, 1000, 150)
	require.NoError(t, err)
	require.Len(t, chunks, 2)

	// No chunk exceeds the window, and the windows cover the whole text.
	for _, c := range chunks {
		assert.LessOrEqual(t, len([]rune(c)), 1000)
	}
	assert.Equal(t, text[:1000], chunks[0])
	assert.Equal(t, text[850:], chunks[1])
}

func TestSplitIntoChunksDeterministic(t *testing.T) {
	text := strings.Repeat("diabetes guideline content ", 100)
	a, err := textutil.SplitIntoChunks(text, 256, 32)
	require.NoError(t, err)
	b, err := textutil.SplitIntoChunks(text, 256, 32)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "abc", textutil.TruncateString("abc", 10))
	assert.Equal(t, "abc", textutil.TruncateString("abcdef", 3))
	assert.Equal(t, "日本", textutil.TruncateString("日本語", 2))
}

func TestCosineSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a, b     []float32
		expected float64
	}{
		{"identical vectors", []float32{1, 0, 0}, []float32{1, 0, 0}, 1.0},
		{"orthogonal vectors", []float32{1, 0, 0}, []float32{0, 1, 0}, 0.0},
		{"opposite vectors", []float32{1, 0, 0}, []float32{-1, 0, 0}, -1.0},
		{"empty vectors", []float32{}, []float32{}, 0.0},
		{"length mismatch", []float32{1, 2}, []float32{1}, 0.0},
		{"zero vector", []float32{0, 0}, []float32{1, 1}, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, textutil.CosineSimilarity(tt.a, tt.b), 0.0001)
		})
	}
}

func TestNormalizeCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, textutil.NormalizeCosineSimilarity(1.0), 0.0001)
	assert.InDelta(t, 0.0, textutil.NormalizeCosineSimilarity(-1.0), 0.0001)
	assert.InDelta(t, 0.5, textutil.NormalizeCosineSimilarity(0.0), 0.0001)
}
