// Package document models the ingested guideline: extracted pages, the
// overlapping chunks derived from them, and the deterministic chunk identity
// that makes re-ingestion an overwrite instead of a duplicate insert.
package document

import (
	"fmt"

	"github.com/google/uuid"

	"github.com/kart-io/guideline-rag/internal/pkg/textutil"
)

// Page is the raw text of one physical PDF page, 1-based.
type Page struct {
	Number int    `json:"page_number"`
	Text   string `json:"text"`
}

// Chunk is a bounded, overlapping window of one page's text. Index is 0-based
// and contiguous within a page; Text is always non-empty and trimmed.
type Chunk struct {
	Source string `json:"source"`
	Page   int    `json:"page"`
	Index  int    `json:"chunk_index"`
	Text   string `json:"text"`
}

// chunkNamespace is the fixed UUID namespace for chunk identities. Changing it
// changes every identity and orphans previously ingested records.
var chunkNamespace = uuid.MustParse("1fb51c32-9f95-49e4-a39c-4a0d6c86ad4f")

// ChunkID derives the stable identity of a chunk from its composite key.
// Identical (source, page, index) always yields the identical id, which is
// what turns re-ingestion of the same file into an idempotent upsert.
func ChunkID(source string, page, index int) string {
	key := fmt.Sprintf("%s|p%d|c%d", source, page, index)
	return uuid.NewSHA1(chunkNamespace, []byte(key)).String()
}

// PagesToChunks applies the chunker to every page, numbering chunks from 0
// per page and preserving page order then chunk order. Pages that trim to
// nothing contribute no chunks.
func PagesToChunks(pages []Page, source string, chunkSize, overlap int) ([]Chunk, error) {
	var chunks []Chunk
	for _, page := range pages {
		pieces, err := textutil.SplitIntoChunks(page.Text, chunkSize, overlap)
		if err != nil {
			return nil, err
		}
		for i, text := range pieces {
			chunks = append(chunks, Chunk{
				Source: source,
				Page:   page.Number,
				Index:  i,
				Text:   text,
			})
		}
	}
	return chunks, nil
}
