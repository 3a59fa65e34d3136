package biz

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/guideline-rag/internal/assistant/store"
	"github.com/kart-io/guideline-rag/internal/pkg/errno"
)

func TestRetrievePreservesRankingAndShapesEvidence(t *testing.T) {
	hits := []store.Hit{
		{ID: "a", Score: 0.9, Payload: store.Payload{Source: "g.pdf", Page: 3, Text: "best match"}},
		{ID: "b", Score: 0.6, Payload: store.Payload{Source: "g.pdf", Page: 9, Text: "second match"}},
		{ID: "c", Score: 0.2, Payload: store.Payload{}}, // malformed payload defaults through
	}
	r := NewRetriever(newStubStore(hits), NewEmbedder(newStubEmbedder(4)), &RetrieverConfig{TopK: 5})

	evidence, err := r.Retrieve(context.Background(), "a question", 0)
	require.NoError(t, err)
	require.Len(t, evidence, 3)
	assert.Equal(t, float32(0.9), evidence[0].Score)
	assert.Equal(t, 3, evidence[0].Page)
	assert.Equal(t, float32(0.6), evidence[1].Score)
	assert.Equal(t, 0, evidence[2].Page)
	assert.Equal(t, "", evidence[2].Text)
}

func TestRetrieveTruncatesDisplayText(t *testing.T) {
	long := strings.Repeat("x", 2000)
	hits := []store.Hit{
		{ID: "a", Score: 0.9, Payload: store.Payload{Source: "g.pdf", Page: 1, Text: long}},
	}
	r := NewRetriever(newStubStore(hits), NewEmbedder(newStubEmbedder(4)), &RetrieverConfig{TopK: 5})

	evidence, err := r.Retrieve(context.Background(), "a question", 1)
	require.NoError(t, err)
	require.Len(t, evidence, 1)
	assert.LessOrEqual(t, len([]rune(evidence[0].Text)), evidenceDisplayRunes)
}

func TestRetrieveRejectsEmptyQuestion(t *testing.T) {
	r := NewRetriever(newStubStore(nil), NewEmbedder(newStubEmbedder(4)), &RetrieverConfig{TopK: 5})

	_, err := r.Retrieve(context.Background(), "\t ", 5)
	require.Error(t, err)
	assert.ErrorIs(t, err, errno.ErrInvalidInput)
}
