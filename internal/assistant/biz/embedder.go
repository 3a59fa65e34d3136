// Package biz implements the assistant's ingestion and query pipelines:
// embedding, retrieval, category gating and answer generation.
package biz

import (
	"context"
	"strings"

	"github.com/kart-io/guideline-rag/internal/pkg/errno"
	"github.com/kart-io/guideline-rag/pkg/llm"
)

// dimensionProbe is the fixed text embedded once at startup to discover the
// vector width produced by the configured embedding model.
const dimensionProbe = "dimension probe"

// Embedder wraps the embedding provider with the pipeline's input rules:
// whitespace-only text is rejected for single embeds and dropped for batches.
type Embedder struct {
	provider llm.EmbeddingProvider
}

// NewEmbedder creates an embedding gateway over the given provider.
func NewEmbedder(provider llm.EmbeddingProvider) *Embedder {
	return &Embedder{provider: provider}
}

// EmbedOne embeds a single text. Empty or whitespace-only input is invalid.
func (e *Embedder) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	if strings.TrimSpace(text) == "" {
		return nil, errno.ErrInvalidInput.WithMessage("cannot embed empty text")
	}
	vec, err := e.provider.EmbedSingle(ctx, text)
	if err != nil {
		return nil, errno.ErrInternal.WithMessage("embedding request failed").WithCause(err)
	}
	return vec, nil
}

// EmbedMany embeds a batch, silently dropping empty entries first. It returns
// the vectors and the number of non-empty inputs so the caller can detect
// silent truncation by the provider.
func (e *Embedder) EmbedMany(ctx context.Context, texts []string) ([][]float32, int, error) {
	nonEmpty := make([]string, 0, len(texts))
	for _, t := range texts {
		if strings.TrimSpace(t) != "" {
			nonEmpty = append(nonEmpty, t)
		}
	}
	if len(nonEmpty) == 0 {
		return [][]float32{}, 0, nil
	}

	vectors, err := e.provider.Embed(ctx, nonEmpty)
	if err != nil {
		return nil, len(nonEmpty), errno.ErrInternal.WithMessage("batch embedding request failed").WithCause(err)
	}
	return vectors, len(nonEmpty), nil
}

// DetectDimension embeds the fixed probe once and returns the vector width.
// Called once at startup to size the collection.
func (e *Embedder) DetectDimension(ctx context.Context) (int, error) {
	vec, err := e.EmbedOne(ctx, dimensionProbe)
	if err != nil {
		return 0, err
	}
	if len(vec) == 0 {
		return 0, errno.ErrInternal.WithMessage("embedding provider returned an empty vector")
	}
	return len(vec), nil
}
