package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kart-io/guideline-rag/internal/pkg/errno"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(Config{LocalPath: t.TempDir(), Collection: "test_collection"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close(context.Background()) })
	return s
}

func TestResolveMode(t *testing.T) {
	tests := []struct {
		name     string
		cfg      Config
		wantMode Mode
		wantErr  bool
	}{
		{
			name:     "milvus address selects cloud mode",
			cfg:      Config{MilvusAddress: "localhost:19530"},
			wantMode: ModeCloud,
		},
		{
			name:     "local path selects local mode",
			cfg:      Config{LocalPath: "/tmp/vectors"},
			wantMode: ModeLocal,
		},
		{
			name:     "milvus address wins over local path",
			cfg:      Config{MilvusAddress: "localhost:19530", LocalPath: "/tmp/vectors"},
			wantMode: ModeCloud,
		},
		{
			name:    "neither configured is an error",
			cfg:     Config{},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mode, err := ResolveMode(tt.cfg)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, errno.ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantMode, mode)
		})
	}
}

func TestLocalStoreEnsureCollection(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)

	require.NoError(t, s.EnsureCollection(ctx, 4))

	// Same dimension is a no-op.
	require.NoError(t, s.EnsureCollection(ctx, 4))

	// A different dimension must be rejected.
	err := s.EnsureCollection(ctx, 8)
	require.Error(t, err)
	assert.ErrorIs(t, err, errno.ErrDimensionConflict)
}

func TestLocalStoreUpsertIdempotent(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.EnsureCollection(ctx, 3))

	records := []Record{
		{
			ID:     "chunk-a",
			Vector: []float32{1, 0, 0},
			Payload: Payload{
				Source: "guideline.pdf", Page: 1, ChunkIndex: 0,
				Text: "first chunk", IngestedAt: time.Now().UTC(),
			},
		},
		{
			ID:     "chunk-b",
			Vector: []float32{0, 1, 0},
			Payload: Payload{
				Source: "guideline.pdf", Page: 1, ChunkIndex: 1,
				Text: "second chunk", IngestedAt: time.Now().UTC(),
			},
		},
	}

	require.NoError(t, s.Upsert(ctx, records))
	count, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	// Re-ingesting the same IDs replaces points instead of duplicating them.
	records[0].Payload.Text = "first chunk revised"
	require.NoError(t, s.Upsert(ctx, records))
	count, err = s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	hits, err := s.Search(ctx, []float32{1, 0, 0}, 1)
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "chunk-a", hits[0].ID)
	assert.Equal(t, "first chunk revised", hits[0].Payload.Text)
}

func TestLocalStoreSearchOrdering(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.EnsureCollection(ctx, 2))

	now := time.Now().UTC()
	records := []Record{
		{ID: "exact", Vector: []float32{1, 0}, Payload: Payload{Source: "g.pdf", Page: 1, Text: "exact match", IngestedAt: now}},
		{ID: "near", Vector: []float32{0.9, 0.1}, Payload: Payload{Source: "g.pdf", Page: 2, Text: "near match", IngestedAt: now}},
		{ID: "far", Vector: []float32{0, 1}, Payload: Payload{Source: "g.pdf", Page: 3, Text: "orthogonal", IngestedAt: now}},
	}
	require.NoError(t, s.Upsert(ctx, records))

	hits, err := s.Search(ctx, []float32{1, 0}, 2)
	require.NoError(t, err)
	require.Len(t, hits, 2)
	assert.Equal(t, "exact", hits[0].ID)
	assert.Equal(t, "near", hits[1].ID)
	assert.Greater(t, hits[0].Score, hits[1].Score)

	// topK larger than the collection returns everything.
	hits, err = s.Search(ctx, []float32{1, 0}, 10)
	require.NoError(t, err)
	assert.Len(t, hits, 3)
}

func TestLocalStoreIntrospect(t *testing.T) {
	ctx := context.Background()
	s := newTestStore(t)
	require.NoError(t, s.EnsureCollection(ctx, 2))

	empty, err := s.Introspect(ctx)
	require.NoError(t, err)
	assert.Empty(t, empty.Sources)
	assert.Nil(t, empty.LastIngestedAt)

	older := time.Date(2026, 1, 10, 8, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 2, 20, 9, 30, 0, 0, time.UTC)
	records := []Record{
		{ID: "a", Vector: []float32{1, 0}, Payload: Payload{Source: "zeta.pdf", Page: 1, IngestedAt: older}},
		{ID: "b", Vector: []float32{0, 1}, Payload: Payload{Source: "alpha.pdf", Page: 2, IngestedAt: newer}},
	}
	require.NoError(t, s.Upsert(ctx, records))

	info, err := s.Introspect(ctx)
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha.pdf", "zeta.pdf"}, info.Sources)
	require.NotNil(t, info.LastIngestedAt)
	assert.True(t, info.LastIngestedAt.Equal(newer))
}
