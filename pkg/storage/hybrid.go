package storage

import (
	"context"
	"fmt"

	lru "github.com/hashicorp/golang-lru/v2"
)

// Hybrid fronts a Disk backend with a write-through LRU cache of the most
// recently read/written records, per §4.3. Eviction is strictly LRU by
// last read/write time; delete invalidates the cache entry immediately.
type Hybrid struct {
	disk  *Disk
	cache *lru.Cache[string, Record]
}

// NewHybrid wraps disk with an LRU cache holding up to cacheSize records.
func NewHybrid(disk *Disk, cacheSize int) (*Hybrid, error) {
	cache, err := lru.New[string, Record](cacheSize)
	if err != nil {
		return nil, fmt.Errorf("storage: create lru cache: %w", err)
	}
	return &Hybrid{disk: disk, cache: cache}, nil
}

// Init initializes the underlying Disk backend.
func (h *Hybrid) Init(ctx context.Context) error {
	return h.disk.Init(ctx)
}

// Get serves from cache on hit; on miss reads through to Disk and populates
// the cache.
func (h *Hybrid) Get(ctx context.Context, id string) (Record, error) {
	if rec, ok := h.cache.Get(id); ok {
		return cloneRecord(rec), nil
	}
	rec, err := h.disk.Get(ctx, id)
	if err != nil {
		return Record{}, err
	}
	h.cache.Add(id, cloneRecord(rec))
	return rec, nil
}

// Put writes through to Disk, then updates the cache.
func (h *Hybrid) Put(ctx context.Context, rec Record) error {
	if err := h.disk.Put(ctx, rec); err != nil {
		return err
	}
	h.cache.Add(rec.ID, cloneRecord(rec))
	return nil
}

// Delete writes through to Disk and invalidates the cache entry.
func (h *Hybrid) Delete(ctx context.Context, id string) error {
	if err := h.disk.Delete(ctx, id); err != nil {
		return err
	}
	h.cache.Remove(id)
	return nil
}

// Contains checks the cache first, falling through to Disk on a miss.
func (h *Hybrid) Contains(ctx context.Context, id string) (bool, error) {
	if h.cache.Contains(id) {
		return true, nil
	}
	return h.disk.Contains(ctx, id)
}

// ListIDsInOrder delegates to Disk, the source of truth for ordering.
func (h *Hybrid) ListIDsInOrder(ctx context.Context) ([]string, error) {
	return h.disk.ListIDsInOrder(ctx)
}

// ScanPage delegates to Disk, the source of truth for ordering.
func (h *Hybrid) ScanPage(ctx context.Context, pageSize int, cursor string) (Page, error) {
	return h.disk.ScanPage(ctx, pageSize, cursor)
}

// Stats reports Disk's stats plus cache occupancy.
func (h *Hybrid) Stats(ctx context.Context) (map[string]interface{}, error) {
	stats, err := h.disk.Stats(ctx)
	if err != nil {
		return nil, err
	}
	stats["type"] = "hybrid"
	stats["cache_size"] = h.cache.Len()
	return stats, nil
}

// Close closes the underlying Disk backend. The cache holds no external
// resource of its own.
func (h *Hybrid) Close() error {
	return h.disk.Close()
}

// Compact runs the underlying Disk backend's VACUUM pass. The cache is left
// untouched; compaction only affects on-disk layout.
func (h *Hybrid) Compact(ctx context.Context) error {
	return h.disk.Compact(ctx)
}
