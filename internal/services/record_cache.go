package services

import (
	"fmt"
	"sync/atomic"

	lru "github.com/hashicorp/golang-lru"

	"github.com/deploymenttheory/go-ntfs-forensics/internal/types"
)

// DefaultRecordCacheSize is the number of parsed FILE records kept per session
const DefaultRecordCacheSize = 1024

// RecordCache is a bounded LRU of parsed FILE records keyed by MFT entry.
// Cached objects are shared and must not be modified by callers.
type RecordCache struct {
	cache *lru.Cache

	// Statistics
	hits   int64
	misses int64
}

// RecordCacheStats reports cache effectiveness
type RecordCacheStats struct {
	Hits    int64
	Misses  int64
	Entries int
}

// NewRecordCache creates a cache holding up to size records
func NewRecordCache(size int) (*RecordCache, error) {
	if size <= 0 {
		size = DefaultRecordCacheSize
	}
	c, err := lru.New(size)
	if err != nil {
		return nil, fmt.Errorf("failed to create record cache: %w", err)
	}
	return &RecordCache{cache: c}, nil
}

// Get returns the cached record for id
func (c *RecordCache) Get(id uint64) (*types.FileObject, bool) {
	v, ok := c.cache.Get(id)
	if !ok {
		atomic.AddInt64(&c.misses, 1)
		return nil, false
	}
	atomic.AddInt64(&c.hits, 1)
	return v.(*types.FileObject), true
}

// Put stores a parsed record
func (c *RecordCache) Put(obj *types.FileObject) {
	if obj == nil {
		return
	}
	c.cache.Add(obj.ID, obj)
}

// Purge drops every cached record
func (c *RecordCache) Purge() {
	c.cache.Purge()
}

// Stats returns the current cache statistics
func (c *RecordCache) Stats() RecordCacheStats {
	return RecordCacheStats{
		Hits:    atomic.LoadInt64(&c.hits),
		Misses:  atomic.LoadInt64(&c.misses),
		Entries: c.cache.Len(),
	}
}
