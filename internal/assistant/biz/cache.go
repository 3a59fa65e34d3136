package biz

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kart-io/guideline-rag/internal/pkg/errno"
)

// QueryCacheConfig configures the in-process query result cache.
type QueryCacheConfig struct {
	// Enabled turns caching on.
	Enabled bool
	// Size is the maximum number of cached query results.
	Size int
}

// QueryCache memoizes query results in process memory. Entries are evicted
// LRU; an ingest invalidates the whole cache since any stored answer may be
// stale afterwards.
type QueryCache struct {
	entries *lru.Cache[string, *QueryResult]
}

// NewQueryCache creates the cache, or returns nil when disabled so callers
// can skip it with a nil check.
func NewQueryCache(config *QueryCacheConfig) (*QueryCache, error) {
	if config == nil || !config.Enabled {
		return nil, nil
	}
	size := config.Size
	if size <= 0 {
		size = 128
	}
	entries, err := lru.New[string, *QueryResult](size)
	if err != nil {
		return nil, errno.ErrConfiguration.WithMessage("failed to create query cache").WithCause(err)
	}
	return &QueryCache{entries: entries}, nil
}

// Get returns the cached result for a query, if any.
func (c *QueryCache) Get(question string, topK int, debugEvidence bool) (*QueryResult, bool) {
	if c == nil {
		return nil, false
	}
	return c.entries.Get(cacheKey(question, topK, debugEvidence))
}

// Set stores a query result.
func (c *QueryCache) Set(question string, topK int, debugEvidence bool, result *QueryResult) {
	if c == nil {
		return
	}
	c.entries.Add(cacheKey(question, topK, debugEvidence), result)
}

// Purge drops all cached results.
func (c *QueryCache) Purge() {
	if c == nil {
		return
	}
	c.entries.Purge()
}

func cacheKey(question string, topK int, debugEvidence bool) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%d|%t", question, topK, debugEvidence)))
	return hex.EncodeToString(sum[:])
}
