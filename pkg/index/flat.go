package index

import (
	"container/heap"
	"context"
	"fmt"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/vortexa-io/annvec/pkg/distance"
)

// Flat is a brute-force exact-search index: O(n) per query, used as the
// correctness oracle every other index family is validated against.
type Flat struct {
	mu        sync.RWMutex
	dimension int
	metric    distance.Metric
	distFunc  func(a, b []float32) float32
	vectors   map[string][]float32
}

// NewFlat creates an empty Flat index for vectors of the given dimension.
func NewFlat(dimension int, cfg FlatConfig) *Flat {
	return &Flat{
		dimension: dimension,
		metric:    cfg.Metric,
		distFunc:  distance.Func(cfg.Metric),
		vectors:   make(map[string][]float32),
	}
}

// Insert adds vector under id. A pre-existing id is overwritten, whereas
// the other index families reject a duplicate id; pkg/core only inserts
// freshly generated IDs or an id it has just deleted from the index.
func (f *Flat) Insert(id string, vector []float32) error {
	if len(vector) != f.dimension {
		return fmt.Errorf("flat: dimension mismatch: expected %d, got %d", f.dimension, len(vector))
	}
	v := make([]float32, len(vector))
	copy(v, vector)

	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectors[id] = v
	return nil
}

// parallelScanThreshold is the vector count above which Search fans the
// exhaustive scan out across workers instead of running it on one goroutine.
const parallelScanThreshold = 4096

// Search returns the k closest vectors to query by exhaustive scan. Large
// collections are scanned in parallel via errgroup, each worker reducing its
// shard to a local top-k heap before the shards are merged.
func (f *Flat) Search(query []float32, k int) ([]Result, error) {
	if len(query) != f.dimension {
		return nil, fmt.Errorf("flat: dimension mismatch: expected %d, got %d", f.dimension, len(query))
	}
	if k <= 0 {
		return []Result{}, nil
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	if len(f.vectors) < parallelScanThreshold {
		return f.scanLocked(query, k, f.vectors), nil
	}
	return f.parallelScanLocked(query, k)
}

// scanLocked runs a single-goroutine exhaustive scan over shard.
func (f *Flat) scanLocked(query []float32, k int, shard map[string][]float32) []Result {
	h := &maxHeap{}
	heap.Init(h)
	for id, v := range shard {
		d := f.distFunc(query, v)
		if h.Len() < k {
			heap.Push(h, maxHeapItem{id: id, dist: d})
		} else if d < (*h)[0].dist {
			heap.Pop(h)
			heap.Push(h, maxHeapItem{id: id, dist: d})
		}
	}
	return topKFromHeap(h)
}

// parallelScanLocked splits f.vectors into shards scanned concurrently, each
// reduced to its own top-k, then merges the shards' results into the global
// top-k. Caller must hold at least the read lock.
func (f *Flat) parallelScanLocked(query []float32, k int) ([]Result, error) {
	const minChunk = 1024
	ids := make([]string, 0, len(f.vectors))
	for id := range f.vectors {
		ids = append(ids, id)
	}

	workers := (len(ids) + minChunk - 1) / minChunk
	if workers < 1 {
		workers = 1
	}
	chunk := (len(ids) + workers - 1) / workers
	partials := make([][]Result, workers)

	g, ctx := errgroup.WithContext(context.Background())
	for w := 0; w < workers; w++ {
		w := w
		start := w * chunk
		end := start + chunk
		if end > len(ids) {
			end = len(ids)
		}
		if start >= end {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			shard := make(map[string][]float32, end-start)
			for _, id := range ids[start:end] {
				shard[id] = f.vectors[id]
			}
			partials[w] = f.scanLocked(query, k, shard)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var merged []Result
	for _, p := range partials {
		merged = append(merged, p...)
	}
	stableSortResults(merged)
	if len(merged) > k {
		merged = merged[:k]
	}
	return merged, nil
}

// RangeSearch returns every vector within radius of query, ascending by
// distance. Supplemented per SPEC_FULL.md §3: the teacher exposes this on
// Flat and LSH, and the exact oracle is the natural place to keep it.
func (f *Flat) RangeSearch(query []float32, radius float32) ([]Result, error) {
	if len(query) != f.dimension {
		return nil, fmt.Errorf("flat: dimension mismatch: expected %d, got %d", f.dimension, len(query))
	}

	f.mu.RLock()
	defer f.mu.RUnlock()

	var results []Result
	for id, v := range f.vectors {
		d := f.distFunc(query, v)
		if d <= radius {
			results = append(results, Result{ID: id, Distance: d})
		}
	}
	stableSortResults(results)
	return results, nil
}

// Delete removes id. Deleting an absent id is a silent no-op; pkg/core
// judges whether a delete succeeded from the storage backend's result.
func (f *Flat) Delete(id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	delete(f.vectors, id)
	return nil
}

// Size returns the number of stored vectors.
func (f *Flat) Size() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.vectors)
}

// Close is a no-op: Flat holds nothing beyond its in-memory map.
func (f *Flat) Close() error {
	return nil
}

// Stats reports the index type, size, dimension, and configured metric.
func (f *Flat) Stats() map[string]interface{} {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return map[string]interface{}{
		"type":      "flat",
		"size":      len(f.vectors),
		"dimension": f.dimension,
		"metric":    f.metric.String(),
	}
}
