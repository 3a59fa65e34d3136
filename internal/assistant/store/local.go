package store

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/kart-io/logger"
	"github.com/timshannon/badgerhold/v4"

	"github.com/kart-io/guideline-rag/internal/pkg/errno"
	"github.com/kart-io/guideline-rag/internal/pkg/textutil"
)

// localRecord is the badgerhold row for one chunk.
type localRecord struct {
	ID         string `badgerhold:"key"`
	Collection string `badgerholdIndex:"Collection"`
	Vector     []float32
	Source     string
	Page       int
	ChunkIndex int
	Text       string
	IngestedAt time.Time
}

// localMeta pins the collection's vector dimension after the first
// EnsureCollection; later calls with a different dimension must fail rather
// than silently mix spaces.
type localMeta struct {
	Collection string `badgerhold:"key"`
	Dimension  int
	CreatedAt  time.Time
}

// LocalStore implements VectorStore on an embedded Badger database with
// brute-force cosine scoring. It trades search speed for zero external
// dependencies, which is plenty for a single guideline document.
type LocalStore struct {
	db         *badgerhold.Store
	collection string
}

// NewLocalStore opens (creating if needed) the Badger database at cfg.LocalPath.
func NewLocalStore(cfg Config) (*LocalStore, error) {
	dir := filepath.Clean(cfg.LocalPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, errno.ErrConfiguration.WithMessage("failed to create local store directory").WithCause(err)
	}

	options := badgerhold.DefaultOptions
	options.Dir = dir
	options.ValueDir = dir
	options.Logger = nil

	db, err := badgerhold.Open(options)
	if err != nil {
		return nil, errno.ErrConfiguration.WithMessage("failed to open local store").WithCause(err)
	}
	return &LocalStore{db: db, collection: cfg.Collection}, nil
}

func (s *LocalStore) EnsureCollection(_ context.Context, dim int) error {
	var meta localMeta
	err := s.db.Get(s.collection, &meta)
	switch {
	case err == nil:
		if meta.Dimension != dim {
			return errno.ErrDimensionConflict.WithMessage("local collection dimension does not match embedding dimension")
		}
		return nil
	case errors.Is(err, badgerhold.ErrNotFound):
		meta = localMeta{Collection: s.collection, Dimension: dim, CreatedAt: time.Now().UTC()}
		if err := s.db.Insert(s.collection, meta); err != nil {
			return errno.ErrInternal.WithMessage("failed to persist collection metadata").WithCause(err)
		}
		logger.Infow("created local collection", "collection", s.collection, "dim", dim)
		return nil
	default:
		return errno.ErrInternal.WithMessage("failed to read collection metadata").WithCause(err)
	}
}

func (s *LocalStore) Upsert(_ context.Context, records []Record) error {
	for _, r := range records {
		row := localRecord{
			ID:         r.ID,
			Collection: s.collection,
			Vector:     r.Vector,
			Source:     r.Payload.Source,
			Page:       r.Payload.Page,
			ChunkIndex: r.Payload.ChunkIndex,
			Text:       r.Payload.Text,
			IngestedAt: r.Payload.IngestedAt,
		}
		if err := s.db.Upsert(r.ID, row); err != nil {
			return errno.ErrInternal.WithMessage("failed to upsert record").WithCause(err)
		}
	}
	return nil
}

func (s *LocalStore) Search(_ context.Context, vector []float32, topK int) ([]Hit, error) {
	rows, err := s.records()
	if err != nil {
		return nil, err
	}

	hits := make([]Hit, 0, len(rows))
	for _, row := range rows {
		score := textutil.CosineSimilarity(vector, row.Vector)
		hits = append(hits, Hit{
			ID:    row.ID,
			Score: float32(score),
			Payload: Payload{
				Source:     row.Source,
				Page:       row.Page,
				ChunkIndex: row.ChunkIndex,
				Text:       row.Text,
				IngestedAt: row.IngestedAt,
			},
		})
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if len(hits) > topK {
		hits = hits[:topK]
	}
	return hits, nil
}

func (s *LocalStore) Count(_ context.Context) (int64, error) {
	n, err := s.db.Count(&localRecord{}, badgerhold.Where("Collection").Eq(s.collection))
	if err != nil {
		return 0, errno.ErrInternal.WithMessage("failed to count records").WithCause(err)
	}
	return int64(n), nil
}

func (s *LocalStore) Introspect(_ context.Context) (Introspection, error) {
	rows, err := s.records()
	if err != nil {
		logger.Warnw("collection introspection failed", "collection", s.collection, "error", err)
		return Introspection{Sources: []string{}}, nil
	}

	sources := make(map[string]struct{})
	var last time.Time
	for _, row := range rows {
		if row.Source != "" {
			sources[row.Source] = struct{}{}
		}
		if row.IngestedAt.After(last) {
			last = row.IngestedAt
		}
	}
	return introspectRecords(sources, last), nil
}

func (s *LocalStore) Close(_ context.Context) error {
	return s.db.Close()
}

func (s *LocalStore) records() ([]localRecord, error) {
	var rows []localRecord
	if err := s.db.Find(&rows, badgerhold.Where("Collection").Eq(s.collection)); err != nil {
		return nil, errno.ErrInternal.WithMessage("failed to scan records").WithCause(err)
	}
	return rows, nil
}
