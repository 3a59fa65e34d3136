package biz

import (
	"context"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/guideline-rag/internal/assistant/document"
	"github.com/kart-io/guideline-rag/internal/assistant/store"
	"github.com/kart-io/guideline-rag/internal/pkg/errno"
)

func newTestService(t *testing.T, st store.VectorStore, embedder *stubEmbedder, chat *stubChat) *AssistantService {
	t.Helper()
	svc, err := NewAssistantService(
		st,
		NewEmbedder(embedder),
		NewClassifier(chat, &ClassifierConfig{ScoreThreshold: 0.2}),
		NewGenerator(chat),
		store.ModeLocal,
		4,
		&ServiceConfig{
			Collection:       "test_collection",
			ChunkSize:        1000,
			ChunkOverlap:     150,
			RetrieverConfig:  &RetrieverConfig{TopK: 5},
			QueryCacheConfig: &QueryCacheConfig{Enabled: true, Size: 16},
		},
	)
	require.NoError(t, err)
	return svc
}

func TestIngestTwoPageDocument(t *testing.T) {
	st := newStubStore(nil)
	svc := newTestService(t, st, newStubEmbedder(4), &stubChat{})
	svc.extract = func(string) ([]document.Page, error) {
		return []document.Page{
			{Number: 1, Text: strings.Repeat("a", 1500)},
			{Number: 2, Text: "   "},
		}, nil
	}

	result, err := svc.Ingest(context.Background(), "/docs/guideline.pdf", "")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Pages)
	assert.Equal(t, 2, result.Chunks)

	count, err := st.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// The same content again yields the same identities, so no growth.
	result, err = svc.Ingest(context.Background(), "/docs/guideline.pdf", "")
	require.NoError(t, err)
	assert.Equal(t, 2, result.Chunks)
	count, err = st.Count(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// The page set is cached for debug inspection.
	pages := svc.DebugPages()
	require.Len(t, pages, 2)
	assert.Equal(t, 1, pages[0].Number)
}

func TestIngestDefaultsSourceToBaseName(t *testing.T) {
	st := newStubStore(nil)
	svc := newTestService(t, st, newStubEmbedder(4), &stubChat{})
	svc.extract = func(string) ([]document.Page, error) {
		return []document.Page{{Number: 1, Text: "some guideline text"}}, nil
	}

	_, err := svc.Ingest(context.Background(), "/docs/who_guideline.pdf", "")
	require.NoError(t, err)

	info, err := st.Introspect(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []string{"who_guideline.pdf"}, info.Sources)
}

func TestIngestEmbeddingCountMismatch(t *testing.T) {
	embedder := newStubEmbedder(4)
	embedder.batchVectors = [][]float32{{1, 0, 0, 0}} // one vector for two chunks

	svc := newTestService(t, newStubStore(nil), embedder, &stubChat{})
	svc.extract = func(string) ([]document.Page, error) {
		return []document.Page{{Number: 1, Text: strings.Repeat("b", 1500)}}, nil
	}

	_, err := svc.Ingest(context.Background(), "/docs/guideline.pdf", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, errno.ErrEmbeddingCountMismatch)
}

func TestIngestRejectsEmptyPath(t *testing.T) {
	svc := newTestService(t, newStubStore(nil), newStubEmbedder(4), &stubChat{})

	_, err := svc.Ingest(context.Background(), "   ", "")
	require.Error(t, err)
	assert.ErrorIs(t, err, errno.ErrInvalidInput)
}

func TestQueryEmptyCollectionIsOutOfScope(t *testing.T) {
	chat := &stubChat{response: `{"categories": ["Referral criteria"]}`}
	svc := newTestService(t, newStubStore(nil), newStubEmbedder(4), chat)

	result, err := svc.Query(context.Background(), "when should I refer?", 5, false)
	require.NoError(t, err)
	assert.Equal(t, OutOfScopeAnswer, result.Answer)
	assert.Empty(t, result.Categories)
	assert.Empty(t, result.Evidence)
	assert.Equal(t, 0, chat.calls(), "no hits means no classifier call")
}

func TestQueryInScopeGeneratesAnswer(t *testing.T) {
	hits := []store.Hit{
		{ID: "a", Score: 0.5, Payload: store.Payload{Source: "g.pdf", Page: 7, Text: "refer to an endocrinologist when..."}},
	}
	chat := &stubChat{response: `{"categories": ["Referral criteria"]}`}
	svc := newTestService(t, newStubStore(hits), newStubEmbedder(4), chat)

	result, err := svc.Query(context.Background(), "when should I refer?", 5, false)
	require.NoError(t, err)
	assert.Equal(t, []string{"Referral criteria"}, result.Categories)
	// The generator stub returns the classifier JSON; what matters here is
	// that an answer was produced from the generation path.
	assert.NotEmpty(t, result.Answer)
	require.Len(t, result.Evidence, 1)
	assert.Equal(t, 7, result.Evidence[0].Page)
	assert.Equal(t, "g.pdf", result.Evidence[0].Source)
	assert.Equal(t, 2, chat.calls(), "one classify call and one generate call")
}

func TestQueryOutOfScopeDropsEvidenceUnlessDebug(t *testing.T) {
	hits := []store.Hit{
		{ID: "a", Score: 0.1, Payload: store.Payload{Source: "g.pdf", Page: 1, Text: "weak match"}},
	}

	svc := newTestService(t, newStubStore(hits), newStubEmbedder(4), &stubChat{})
	result, err := svc.Query(context.Background(), "unrelated question", 5, false)
	require.NoError(t, err)
	assert.Equal(t, OutOfScopeAnswer, result.Answer)
	assert.Empty(t, result.Evidence)

	svc = newTestService(t, newStubStore(hits), newStubEmbedder(4), &stubChat{})
	result, err = svc.Query(context.Background(), "unrelated question", 5, true)
	require.NoError(t, err)
	assert.Equal(t, OutOfScopeAnswer, result.Answer)
	require.Len(t, result.Evidence, 1)
	assert.Equal(t, "weak match", result.Evidence[0].Text)
}

func TestQueryRejectsEmptyQuestion(t *testing.T) {
	svc := newTestService(t, newStubStore(nil), newStubEmbedder(4), &stubChat{})

	_, err := svc.Query(context.Background(), "  ", 5, false)
	require.Error(t, err)
	assert.ErrorIs(t, err, errno.ErrInvalidInput)
}

func TestQueryCacheHitSkipsPipeline(t *testing.T) {
	hits := []store.Hit{
		{ID: "a", Score: 0.5, Payload: store.Payload{Source: "g.pdf", Page: 7, Text: "evidence"}},
	}
	chat := &stubChat{response: `{"categories": ["Referral criteria"]}`}
	embedder := newStubEmbedder(4)
	svc := newTestService(t, newStubStore(hits), embedder, chat)

	first, err := svc.Query(context.Background(), "when should I refer?", 5, false)
	require.NoError(t, err)
	embedsAfterFirst := embedder.calls()

	second, err := svc.Query(context.Background(), "when should I refer?", 5, false)
	require.NoError(t, err)
	assert.Equal(t, first, second)
	assert.Equal(t, embedsAfterFirst, embedder.calls(), "cached query must not re-embed")
}

func TestIngestPurgesQueryCache(t *testing.T) {
	hits := []store.Hit{
		{ID: "a", Score: 0.5, Payload: store.Payload{Source: "g.pdf", Page: 7, Text: "evidence"}},
	}
	chat := &stubChat{response: `{"categories": ["Referral criteria"]}`}
	embedder := newStubEmbedder(4)
	svc := newTestService(t, newStubStore(hits), embedder, chat)
	svc.extract = func(string) ([]document.Page, error) {
		return []document.Page{{Number: 1, Text: "new content"}}, nil
	}

	_, err := svc.Query(context.Background(), "when should I refer?", 5, false)
	require.NoError(t, err)

	_, err = svc.Ingest(context.Background(), "/docs/guideline.pdf", "")
	require.NoError(t, err)

	before := embedder.calls()
	_, err = svc.Query(context.Background(), "when should I refer?", 5, false)
	require.NoError(t, err)
	assert.Greater(t, embedder.calls(), before, "ingest must invalidate cached answers")
}

func TestStatusReportsCollectionState(t *testing.T) {
	st := newStubStore(nil)
	svc := newTestService(t, st, newStubEmbedder(4), &stubChat{})
	svc.extract = func(string) ([]document.Page, error) {
		return []document.Page{{Number: 1, Text: "guideline text"}}, nil
	}

	status, err := svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, store.ModeLocal, status.Mode)
	assert.Equal(t, "test_collection", status.Collection)
	assert.Equal(t, int64(0), status.PointsCount)
	assert.Equal(t, 4, status.EmbeddingDim)
	assert.Nil(t, status.LastIngestedAt)

	_, err = svc.Ingest(context.Background(), "/docs/guideline.pdf", "")
	require.NoError(t, err)

	status, err = svc.Status(context.Background())
	require.NoError(t, err)
	assert.Equal(t, int64(1), status.PointsCount)
	assert.Equal(t, []string{"guideline.pdf"}, status.Sources)
	require.NotNil(t, status.LastIngestedAt)
}
