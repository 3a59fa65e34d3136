package biz

import (
	"context"
	"strings"

	"github.com/kart-io/logger"

	"github.com/kart-io/guideline-rag/internal/assistant/store"
	"github.com/kart-io/guideline-rag/internal/pkg/errno"
	"github.com/kart-io/guideline-rag/internal/pkg/textutil"
)

// evidenceDisplayRunes bounds the text carried by each Evidence record.
const evidenceDisplayRunes = 700

// Evidence is one retrieved chunk shaped for gating and answer generation.
// Constructed fresh per query, never persisted.
type Evidence struct {
	Source string  `json:"source"`
	Page   int     `json:"page"`
	Text   string  `json:"text"`
	Score  float32 `json:"score"`
}

// RetrieverConfig configures retrieval defaults.
type RetrieverConfig struct {
	// TopK is the number of hits requested when the caller does not override it.
	TopK int
}

// Retriever turns a question into ranked evidence: one query embedding, one
// similarity search, then payload shaping with defaulting for malformed
// stored payloads.
type Retriever struct {
	store    store.VectorStore
	embedder *Embedder
	config   *RetrieverConfig
}

// NewRetriever creates a retriever over the store and embedding gateway.
func NewRetriever(vectorStore store.VectorStore, embedder *Embedder, config *RetrieverConfig) *Retriever {
	return &Retriever{store: vectorStore, embedder: embedder, config: config}
}

// Retrieve embeds the question once and returns evidence in the store's
// descending-score order. The ordering is load-bearing: the category gate
// inspects only the top element's score.
func (r *Retriever) Retrieve(ctx context.Context, question string, topK int) ([]Evidence, error) {
	if strings.TrimSpace(question) == "" {
		return nil, errno.ErrInvalidInput.WithMessage("question must not be empty")
	}
	if topK <= 0 {
		topK = r.config.TopK
	}

	vector, err := r.embedder.EmbedOne(ctx, question)
	if err != nil {
		return nil, err
	}

	hits, err := r.store.Search(ctx, vector, topK)
	if err != nil {
		return nil, err
	}

	evidence := make([]Evidence, 0, len(hits))
	for _, hit := range hits {
		evidence = append(evidence, Evidence{
			Source: hit.Payload.Source,
			Page:   hit.Payload.Page,
			Text:   textutil.TruncateString(hit.Payload.Text, evidenceDisplayRunes),
			Score:  hit.Score,
		})
	}

	logger.Infow("retrieved evidence", "hits", len(evidence), "top_k", topK)
	return evidence, nil
}
