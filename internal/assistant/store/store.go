// Package store provides the vector store gateway for guideline chunks. Two
// backends implement the same contract: a Milvus collection for cloud
// deployments and an embedded Badger database for local, single-node use.
package store

import (
	"context"
	"sort"
	"time"

	"github.com/kart-io/guideline-rag/internal/pkg/errno"
)

// Mode identifies which backend the service runs against.
type Mode string

const (
	// ModeCloud stores vectors in a Milvus collection.
	ModeCloud Mode = "cloud"
	// ModeLocal stores vectors in an embedded Badger database.
	ModeLocal Mode = "local"
)

// Payload is the metadata stored alongside every vector.
type Payload struct {
	Source     string    `json:"source"`
	Page       int       `json:"page"`
	ChunkIndex int       `json:"chunk_index"`
	Text       string    `json:"text"`
	IngestedAt time.Time `json:"ingested_at"`
}

// Record is a single point to upsert: a stable identifier, its embedding and
// the chunk payload. Upserting the same ID again replaces the previous point.
type Record struct {
	ID      string
	Vector  []float32
	Payload Payload
}

// Hit is one search result, ordered by descending similarity score.
type Hit struct {
	ID      string
	Score   float32
	Payload Payload
}

// Introspection summarizes the collection contents for status reporting.
type Introspection struct {
	Sources        []string   `json:"sources"`
	LastIngestedAt *time.Time `json:"last_ingested_at,omitempty"`
}

// VectorStore is the gateway contract shared by both backends.
type VectorStore interface {
	// EnsureCollection creates the collection when missing and verifies the
	// vector dimension when it exists. A mismatch returns ErrDimensionConflict.
	EnsureCollection(ctx context.Context, dim int) error
	// Upsert writes records by ID, replacing any existing points.
	Upsert(ctx context.Context, records []Record) error
	// Search returns up to topK hits ordered by descending score.
	Search(ctx context.Context, vector []float32, topK int) ([]Hit, error)
	// Count reports the number of stored points.
	Count(ctx context.Context) (int64, error)
	// Introspect scans payloads to collect distinct sources and the most
	// recent ingestion time. Failures degrade to an empty summary.
	Introspect(ctx context.Context) (Introspection, error)
	// Close releases the backend connection.
	Close(ctx context.Context) error
}

// Config selects and parameterizes the backend.
type Config struct {
	// MilvusAddress enables cloud mode when non-empty.
	MilvusAddress  string
	MilvusUsername string
	MilvusPassword string
	MilvusDatabase string

	// LocalPath enables local mode when non-empty and no Milvus address is
	// configured.
	LocalPath string

	// Collection is the collection name used by both backends.
	Collection string
}

// ResolveMode decides the storage mode from configuration. A Milvus address
// wins over a local path; having neither is a configuration error.
func ResolveMode(cfg Config) (Mode, error) {
	if cfg.MilvusAddress != "" {
		return ModeCloud, nil
	}
	if cfg.LocalPath != "" {
		return ModeLocal, nil
	}
	return "", errno.ErrConfiguration.WithMessage("vector store requires a milvus address or a local storage path")
}

// New opens the backend selected by cfg.
func New(ctx context.Context, cfg Config) (VectorStore, error) {
	mode, err := ResolveMode(cfg)
	if err != nil {
		return nil, err
	}
	switch mode {
	case ModeCloud:
		return NewMilvusStore(ctx, cfg)
	default:
		return NewLocalStore(cfg)
	}
}

// introspectRecords folds per-point payload metadata into an Introspection.
func introspectRecords(sources map[string]struct{}, last time.Time) Introspection {
	out := Introspection{Sources: make([]string, 0, len(sources))}
	for s := range sources {
		out.Sources = append(out.Sources, s)
	}
	sort.Strings(out.Sources)
	if !last.IsZero() {
		t := last
		out.LastIngestedAt = &t
	}
	return out
}
