package biz

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/kart-io/guideline-rag/internal/assistant/store"
)

// stubEmbedder returns canned vectors and counts its calls.
type stubEmbedder struct {
	mu        sync.Mutex
	dim       int
	callCount int
	// batchVectors overrides the default per-text vector when set.
	batchVectors [][]float32
	err          error
}

func newStubEmbedder(dim int) *stubEmbedder {
	return &stubEmbedder{dim: dim}
}

func (s *stubEmbedder) vector() []float32 {
	v := make([]float32, s.dim)
	v[0] = 1
	return v
}

func (s *stubEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callCount++
	if s.err != nil {
		return nil, s.err
	}
	if s.batchVectors != nil {
		return s.batchVectors, nil
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = s.vector()
	}
	return out, nil
}

func (s *stubEmbedder) EmbedSingle(_ context.Context, _ string) ([]float32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callCount++
	if s.err != nil {
		return nil, s.err
	}
	return s.vector(), nil
}

func (s *stubEmbedder) Name() string { return "stub" }

func (s *stubEmbedder) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}

// stubChat returns a canned completion and counts its calls.
type stubChat struct {
	mu        sync.Mutex
	response  string
	err       error
	callCount int
	lastInput string
}

func (s *stubChat) Generate(_ context.Context, prompt, _ string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.callCount++
	s.lastInput = prompt
	if s.err != nil {
		return "", s.err
	}
	return s.response, nil
}

func (s *stubChat) Name() string { return "stub" }

func (s *stubChat) calls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.callCount
}

// stubStore is an in-memory VectorStore returning pre-set hits for Search.
type stubStore struct {
	mu      sync.Mutex
	hits    []store.Hit
	records map[string]store.Record
	dim     int
}

func newStubStore(hits []store.Hit) *stubStore {
	return &stubStore{hits: hits, records: make(map[string]store.Record)}
}

func (s *stubStore) EnsureCollection(_ context.Context, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dim != 0 && s.dim != dim {
		return errors.New("dimension conflict")
	}
	s.dim = dim
	return nil
}

func (s *stubStore) Upsert(_ context.Context, records []store.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, r := range records {
		s.records[r.ID] = r
	}
	return nil
}

func (s *stubStore) Search(_ context.Context, _ []float32, topK int) ([]store.Hit, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.hits) > topK {
		return s.hits[:topK], nil
	}
	return s.hits, nil
}

func (s *stubStore) Count(_ context.Context) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return int64(len(s.records)), nil
}

func (s *stubStore) Introspect(_ context.Context) (store.Introspection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sources := make(map[string]struct{})
	var last time.Time
	for _, r := range s.records {
		sources[r.Payload.Source] = struct{}{}
		if r.Payload.IngestedAt.After(last) {
			last = r.Payload.IngestedAt
		}
	}
	out := store.Introspection{Sources: make([]string, 0, len(sources))}
	for src := range sources {
		out.Sources = append(out.Sources, src)
	}
	if !last.IsZero() {
		out.LastIngestedAt = &last
	}
	return out, nil
}

func (s *stubStore) Close(_ context.Context) error { return nil }
