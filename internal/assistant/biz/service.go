package biz

import (
	"context"
	"path/filepath"
	"strings"
	"sync/atomic"
	"time"

	"github.com/kart-io/logger"

	"github.com/kart-io/guideline-rag/internal/assistant/document"
	"github.com/kart-io/guideline-rag/internal/assistant/store"
	"github.com/kart-io/guideline-rag/internal/pkg/errno"
)

// OutOfScopeAnswer is the fixed reply used whenever the category gate yields
// no categories. The answer synthesizer is never consulted in that case.
const OutOfScopeAnswer = "The question is out of scope for this guideline, or the retrieved evidence is insufficient to answer it."

// IngestResult reports what one ingestion processed.
type IngestResult struct {
	Pages  int `json:"pages"`
	Chunks int `json:"chunks"`
}

// QueryResult is the outcome of one query: the answer, the categories the
// gate confirmed, and the evidence the answer was grounded on. When
// Categories is empty, Evidence is emptied too and Answer is the fixed
// out-of-scope message.
type QueryResult struct {
	Answer     string     `json:"answer"`
	Categories []string   `json:"categories"`
	Evidence   []Evidence `json:"evidence"`
}

// Status summarizes the collection for diagnostics.
type Status struct {
	Mode           store.Mode `json:"mode"`
	Collection     string     `json:"collection"`
	PointsCount    int64      `json:"points_count"`
	EmbeddingDim   int        `json:"embedding_dim"`
	Sources        []string   `json:"sources"`
	LastIngestedAt *time.Time `json:"last_ingested_at,omitempty"`
}

// Service is the assistant's business interface.
type Service interface {
	// Ingest extracts, chunks, embeds and upserts one PDF document.
	Ingest(ctx context.Context, path, source string) (*IngestResult, error)
	// Query answers a question grounded on retrieved guideline evidence.
	Query(ctx context.Context, question string, topK int, debugEvidence bool) (*QueryResult, error)
	// Status reports collection diagnostics.
	Status(ctx context.Context) (*Status, error)
	// DebugPages returns the page set of the most recent ingestion, if any.
	DebugPages() []document.Page
}

// ServiceConfig carries the pipeline parameters resolved at startup.
type ServiceConfig struct {
	Collection   string
	ChunkSize    int
	ChunkOverlap int

	RetrieverConfig  *RetrieverConfig
	QueryCacheConfig *QueryCacheConfig
}

// AssistantService wires the pipeline components together. Constructed once
// at startup and immutable afterwards, except for the deliberately mutable
// debug page cache.
type AssistantService struct {
	store      store.VectorStore
	embedder   *Embedder
	retriever  *Retriever
	classifier *Classifier
	generator  *Generator
	cache      *QueryCache

	mode       store.Mode
	dimension  int
	collection string
	chunkSize  int
	overlap    int

	// extract is swappable for tests; defaults to PDF extraction.
	extract func(path string) ([]document.Page, error)

	// debugPages holds the most recently ingested page set. Best-effort,
	// last-writer-wins, process-lifetime only.
	debugPages atomic.Pointer[[]document.Page]
}

// NewAssistantService assembles the service from its collaborators. The
// embedding dimension must already be probed and the collection ensured.
func NewAssistantService(
	vectorStore store.VectorStore,
	embedder *Embedder,
	classifier *Classifier,
	generator *Generator,
	mode store.Mode,
	dimension int,
	config *ServiceConfig,
) (*AssistantService, error) {
	cache, err := NewQueryCache(config.QueryCacheConfig)
	if err != nil {
		return nil, err
	}
	return &AssistantService{
		store:      vectorStore,
		embedder:   embedder,
		retriever:  NewRetriever(vectorStore, embedder, config.RetrieverConfig),
		classifier: classifier,
		generator:  generator,
		cache:      cache,
		mode:       mode,
		dimension:  dimension,
		collection: config.Collection,
		chunkSize:  config.ChunkSize,
		overlap:    config.ChunkOverlap,
		extract:    document.ExtractPages,
	}, nil
}

// Ingest runs the full ingestion pipeline. Every error aborts the call; no
// partial result is reported as success.
func (s *AssistantService) Ingest(ctx context.Context, path, source string) (*IngestResult, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errno.ErrInvalidInput.WithMessage("document path must not be empty")
	}
	if source == "" {
		source = filepath.Base(path)
	}

	pages, err := s.extract(path)
	if err != nil {
		return nil, err
	}

	chunks, err := document.PagesToChunks(pages, source, s.chunkSize, s.overlap)
	if err != nil {
		return nil, err
	}

	s.debugPages.Store(&pages)

	if len(chunks) == 0 {
		logger.Warnw("document produced no chunks", "source", source, "pages", len(pages))
		return &IngestResult{Pages: len(pages), Chunks: 0}, nil
	}

	texts := make([]string, 0, len(chunks))
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}

	vectors, _, err := s.embedder.EmbedMany(ctx, texts)
	if err != nil {
		return nil, err
	}
	// Records are built positionally, so a dropped or truncated vector batch
	// must abort before any point is written.
	if len(vectors) != len(chunks) {
		return nil, errno.ErrEmbeddingCountMismatch.WithMessage(
			"embedding provider returned a mismatched vector count")
	}

	ingestedAt := time.Now().UTC().Truncate(time.Second)
	records := make([]store.Record, 0, len(chunks))
	for i, c := range chunks {
		records = append(records, store.Record{
			ID:     document.ChunkID(c.Source, c.Page, c.Index),
			Vector: vectors[i],
			Payload: store.Payload{
				Source:     c.Source,
				Page:       c.Page,
				ChunkIndex: c.Index,
				Text:       c.Text,
				IngestedAt: ingestedAt,
			},
		})
	}

	if err := s.store.Upsert(ctx, records); err != nil {
		return nil, err
	}

	s.cache.Purge()

	logger.Infow("document ingested",
		"source", source, "pages", len(pages), "chunks", len(chunks))
	return &IngestResult{Pages: len(pages), Chunks: len(chunks)}, nil
}

// Query runs retrieve → classify → generate. An empty category set
// short-circuits with the fixed out-of-scope answer; debugEvidence keeps the
// retrieved evidence in the result even then.
func (s *AssistantService) Query(ctx context.Context, question string, topK int, debugEvidence bool) (*QueryResult, error) {
	if strings.TrimSpace(question) == "" {
		return nil, errno.ErrInvalidInput.WithMessage("question must not be empty")
	}

	if cached, ok := s.cache.Get(question, topK, debugEvidence); ok {
		logger.Infow("query cache hit", "question", question)
		return cached, nil
	}

	evidence, err := s.retriever.Retrieve(ctx, question, topK)
	if err != nil {
		return nil, err
	}

	categories := s.classifier.Classify(ctx, question, evidence)
	if len(categories) == 0 {
		result := &QueryResult{
			Answer:     OutOfScopeAnswer,
			Categories: []string{},
			Evidence:   []Evidence{},
		}
		if debugEvidence {
			result.Evidence = evidence
		}
		s.cache.Set(question, topK, debugEvidence, result)
		return result, nil
	}

	answer, err := s.generator.Synthesize(ctx, question, evidence)
	if err != nil {
		return nil, err
	}

	result := &QueryResult{
		Answer:     answer,
		Categories: categories,
		Evidence:   evidence,
	}
	s.cache.Set(question, topK, debugEvidence, result)
	return result, nil
}

// Status folds store counts and payload introspection into one diagnostic
// view. Introspection failures inside the store degrade to empty aggregates.
func (s *AssistantService) Status(ctx context.Context) (*Status, error) {
	count, err := s.store.Count(ctx)
	if err != nil {
		return nil, err
	}
	info, err := s.store.Introspect(ctx)
	if err != nil {
		return nil, err
	}
	return &Status{
		Mode:           s.mode,
		Collection:     s.collection,
		PointsCount:    count,
		EmbeddingDim:   s.dimension,
		Sources:        info.Sources,
		LastIngestedAt: info.LastIngestedAt,
	}, nil
}

// DebugPages returns the most recently ingested page set, or nil when
// nothing was ingested in this process's lifetime.
func (s *AssistantService) DebugPages() []document.Page {
	if p := s.debugPages.Load(); p != nil {
		return *p
	}
	return nil
}
