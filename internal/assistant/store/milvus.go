package store

import (
	"context"
	"strconv"
	"time"

	"github.com/kart-io/logger"
	"github.com/milvus-io/milvus/client/v2/column"
	"github.com/milvus-io/milvus/client/v2/entity"
	"github.com/milvus-io/milvus/client/v2/index"
	"github.com/milvus-io/milvus/client/v2/milvusclient"

	"github.com/kart-io/guideline-rag/internal/pkg/errno"
)

const (
	fieldID         = "id"
	fieldEmbedding  = "embedding"
	fieldSource     = "source"
	fieldPage       = "page"
	fieldChunkIndex = "chunk_index"
	fieldText       = "text"
	fieldIngestedAt = "ingested_at"

	// introspectPageSize bounds each scroll request when scanning payloads.
	introspectPageSize = 256
)

var payloadFields = []string{fieldSource, fieldPage, fieldChunkIndex, fieldText, fieldIngestedAt}

// MilvusStore implements VectorStore on a Milvus collection with a VarChar
// primary key, so deterministic chunk IDs make repeated ingestion idempotent.
type MilvusStore struct {
	client     *milvusclient.Client
	collection string
}

// NewMilvusStore connects to Milvus. The collection is created lazily by
// EnsureCollection once the embedding dimension is known.
func NewMilvusStore(ctx context.Context, cfg Config) (*MilvusStore, error) {
	c, err := milvusclient.New(ctx, &milvusclient.ClientConfig{
		Address:  cfg.MilvusAddress,
		Username: cfg.MilvusUsername,
		Password: cfg.MilvusPassword,
		DBName:   cfg.MilvusDatabase,
	})
	if err != nil {
		return nil, errno.ErrConfiguration.WithMessage("failed to connect to milvus").WithCause(err)
	}
	return &MilvusStore{client: c, collection: cfg.Collection}, nil
}

func (s *MilvusStore) EnsureCollection(ctx context.Context, dim int) error {
	exists, err := s.client.HasCollection(ctx, milvusclient.NewHasCollectionOption(s.collection))
	if err != nil {
		return errno.ErrInternal.WithMessage("failed to check collection existence").WithCause(err)
	}
	if exists {
		existing, err := s.collectionDimension(ctx)
		if err != nil {
			return err
		}
		if existing != dim {
			return errno.ErrDimensionConflict.WithMessage(
				"%s", "collection "+s.collection+" has dimension "+strconv.Itoa(existing)+
					", embedding produces "+strconv.Itoa(dim))
		}
		return s.loadCollection(ctx)
	}

	schema := entity.NewSchema().
		WithName(s.collection).
		WithDescription("guideline chunks with embeddings").
		WithField(entity.NewField().
			WithName(fieldID).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(64).
			WithIsPrimaryKey(true)).
		WithField(entity.NewField().
			WithName(fieldEmbedding).
			WithDataType(entity.FieldTypeFloatVector).
			WithDim(int64(dim))).
		WithField(entity.NewField().
			WithName(fieldSource).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(512)).
		WithField(entity.NewField().
			WithName(fieldPage).
			WithDataType(entity.FieldTypeInt64)).
		WithField(entity.NewField().
			WithName(fieldChunkIndex).
			WithDataType(entity.FieldTypeInt64)).
		WithField(entity.NewField().
			WithName(fieldText).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(65535)).
		WithField(entity.NewField().
			WithName(fieldIngestedAt).
			WithDataType(entity.FieldTypeVarChar).
			WithMaxLength(64))

	if err := s.client.CreateCollection(ctx, milvusclient.NewCreateCollectionOption(s.collection, schema)); err != nil {
		return errno.ErrInternal.WithMessage("failed to create collection").WithCause(err)
	}

	idx := index.NewIvfFlatIndex(entity.COSINE, 128)
	createTask, err := s.client.CreateIndex(ctx, milvusclient.NewCreateIndexOption(s.collection, fieldEmbedding, idx))
	if err != nil {
		return errno.ErrInternal.WithMessage("failed to create index").WithCause(err)
	}
	if err := createTask.Await(ctx); err != nil {
		return errno.ErrInternal.WithMessage("failed to wait for index creation").WithCause(err)
	}

	logger.Infow("created milvus collection", "collection", s.collection, "dim", dim)
	return s.loadCollection(ctx)
}

func (s *MilvusStore) loadCollection(ctx context.Context) error {
	loadTask, err := s.client.LoadCollection(ctx, milvusclient.NewLoadCollectionOption(s.collection))
	if err != nil {
		return errno.ErrInternal.WithMessage("failed to load collection").WithCause(err)
	}
	if err := loadTask.Await(ctx); err != nil {
		return errno.ErrInternal.WithMessage("failed to wait for collection loading").WithCause(err)
	}
	return nil
}

// collectionDimension reads the embedding field's dim from the live schema.
func (s *MilvusStore) collectionDimension(ctx context.Context) (int, error) {
	coll, err := s.client.DescribeCollection(ctx, milvusclient.NewDescribeCollectionOption(s.collection))
	if err != nil {
		return 0, errno.ErrInternal.WithMessage("failed to describe collection").WithCause(err)
	}
	for _, field := range coll.Schema.Fields {
		if field.Name != fieldEmbedding {
			continue
		}
		if raw, ok := field.TypeParams["dim"]; ok {
			dim, err := strconv.Atoi(raw)
			if err != nil {
				return 0, errno.ErrInternal.WithMessage("invalid dim type param").WithCause(err)
			}
			return dim, nil
		}
	}
	return 0, errno.ErrInternal.WithMessage("collection has no embedding field")
}

func (s *MilvusStore) Upsert(ctx context.Context, records []Record) error {
	if len(records) == 0 {
		return nil
	}

	ids := make([]string, 0, len(records))
	vectors := make([][]float32, 0, len(records))
	sources := make([]string, 0, len(records))
	pages := make([]int64, 0, len(records))
	chunkIndexes := make([]int64, 0, len(records))
	texts := make([]string, 0, len(records))
	ingestedAts := make([]string, 0, len(records))
	for _, r := range records {
		ids = append(ids, r.ID)
		vectors = append(vectors, r.Vector)
		sources = append(sources, r.Payload.Source)
		pages = append(pages, int64(r.Payload.Page))
		chunkIndexes = append(chunkIndexes, int64(r.Payload.ChunkIndex))
		texts = append(texts, r.Payload.Text)
		ingestedAts = append(ingestedAts, r.Payload.IngestedAt.UTC().Format(time.RFC3339))
	}

	columns := []column.Column{
		column.NewColumnVarChar(fieldID, ids),
		column.NewColumnFloatVector(fieldEmbedding, len(vectors[0]), vectors),
		column.NewColumnVarChar(fieldSource, sources),
		column.NewColumnInt64(fieldPage, pages),
		column.NewColumnInt64(fieldChunkIndex, chunkIndexes),
		column.NewColumnVarChar(fieldText, texts),
		column.NewColumnVarChar(fieldIngestedAt, ingestedAts),
	}

	if _, err := s.client.Upsert(ctx, milvusclient.NewColumnBasedInsertOption(s.collection, columns...)); err != nil {
		return errno.ErrInternal.WithMessage("failed to upsert records").WithCause(err)
	}

	flushTask, err := s.client.Flush(ctx, milvusclient.NewFlushOption(s.collection))
	if err != nil {
		return errno.ErrInternal.WithMessage("failed to flush collection").WithCause(err)
	}
	if err := flushTask.Await(ctx); err != nil {
		return errno.ErrInternal.WithMessage("failed to wait for flush").WithCause(err)
	}
	return nil
}

func (s *MilvusStore) Search(ctx context.Context, vector []float32, topK int) ([]Hit, error) {
	results, err := s.client.Search(ctx, milvusclient.NewSearchOption(
		s.collection,
		topK,
		[]entity.Vector{entity.FloatVector(vector)},
	).WithANNSField(fieldEmbedding).
		WithSearchParam("nprobe", "16").
		WithOutputFields(payloadFields...))
	if err != nil {
		return nil, errno.ErrInternal.WithMessage("vector search failed").WithCause(err)
	}
	if len(results) == 0 {
		return []Hit{}, nil
	}

	rs := results[0]
	hits := make([]Hit, 0, rs.ResultCount)
	for i := 0; i < rs.ResultCount; i++ {
		hit := Hit{Score: rs.Scores[i]}
		if idCol, ok := rs.IDs.(*column.ColumnVarChar); ok {
			hit.ID = idCol.Data()[i]
		}
		hit.Payload = payloadFromColumns(rs.Fields, i)
		hits = append(hits, hit)
	}
	return hits, nil
}

func (s *MilvusStore) Count(ctx context.Context) (int64, error) {
	stats, err := s.client.GetCollectionStats(ctx, milvusclient.NewGetCollectionStatsOption(s.collection))
	if err != nil {
		return 0, errno.ErrInternal.WithMessage("failed to get collection stats").WithCause(err)
	}
	if val, ok := stats["row_count"]; ok {
		n, err := strconv.ParseInt(val, 10, 64)
		if err != nil {
			return 0, errno.ErrInternal.WithMessage("invalid row_count").WithCause(err)
		}
		return n, nil
	}
	return 0, nil
}

func (s *MilvusStore) Introspect(ctx context.Context) (Introspection, error) {
	sources := make(map[string]struct{})
	var last time.Time

	offset := 0
	for {
		rs, err := s.client.Query(ctx, milvusclient.NewQueryOption(s.collection).
			WithFilter(`id != ""`).
			WithOutputFields(fieldSource, fieldIngestedAt).
			WithLimit(introspectPageSize).
			WithOffset(offset))
		if err != nil {
			// Status reporting must not fail the endpoint.
			logger.Warnw("collection introspection failed", "collection", s.collection, "error", err)
			return Introspection{Sources: []string{}}, nil
		}

		n := 0
		for _, field := range rs.Fields {
			col, ok := field.(*column.ColumnVarChar)
			if !ok {
				continue
			}
			n = col.Len()
			switch col.Name() {
			case fieldSource:
				for _, v := range col.Data() {
					if v != "" {
						sources[v] = struct{}{}
					}
				}
			case fieldIngestedAt:
				for _, v := range col.Data() {
					if t, err := time.Parse(time.RFC3339, v); err == nil && t.After(last) {
						last = t
					}
				}
			}
		}
		if n < introspectPageSize {
			break
		}
		offset += n
	}

	return introspectRecords(sources, last), nil
}

func (s *MilvusStore) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// payloadFromColumns rebuilds a Payload from output field columns at row i.
func payloadFromColumns(fields []column.Column, i int) Payload {
	var p Payload
	for _, field := range fields {
		switch col := field.(type) {
		case *column.ColumnVarChar:
			switch col.Name() {
			case fieldSource:
				p.Source = col.Data()[i]
			case fieldText:
				p.Text = col.Data()[i]
			case fieldIngestedAt:
				if t, err := time.Parse(time.RFC3339, col.Data()[i]); err == nil {
					p.IngestedAt = t
				}
			}
		case *column.ColumnInt64:
			switch col.Name() {
			case fieldPage:
				p.Page = int(col.Data()[i])
			case fieldChunkIndex:
				p.ChunkIndex = int(col.Data()[i])
			}
		}
	}
	return p
}
