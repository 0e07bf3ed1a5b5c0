// Package cache wraps a ristretto in-memory cache used to avoid re-walking
// the project tree while resolving references to their owning file. It is
// a pure optimization: every caller falls back to the authoritative
// project index on a miss, so eviction never affects correctness.
package cache

import (
	"github.com/dgraph-io/ristretto/v2"

	"docweave/internal/model"
)

// FileCache caches *model.FileRecord by project-relative path.
type FileCache struct {
	c *ristretto.Cache[string, *model.FileRecord]
}

// NewFileCache builds a cache sized for a project with roughly
// maxFilesHint files; ristretto estimates its own internal bookkeeping
// from NumCounters, so the hint only needs to be in the right order of
// magnitude.
func NewFileCache(maxFilesHint int64) (*FileCache, error) {
	if maxFilesHint <= 0 {
		maxFilesHint = 10_000
	}
	c, err := ristretto.NewCache(&ristretto.Config[string, *model.FileRecord]{
		NumCounters: maxFilesHint * 10,
		MaxCost:     maxFilesHint,
		BufferItems: 64,
	})
	if err != nil {
		return nil, err
	}
	return &FileCache{c: c}, nil
}

// Put inserts or updates the cached record for relPath.
func (fc *FileCache) Put(relPath string, rec *model.FileRecord) {
	fc.c.Set(relPath, rec, 1)
}

// Get returns the cached record for relPath, if present.
func (fc *FileCache) Get(relPath string) (*model.FileRecord, bool) {
	return fc.c.Get(relPath)
}

// Close releases background goroutines held by the underlying cache.
func (fc *FileCache) Close() {
	fc.c.Close()
}
