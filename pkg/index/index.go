// Package index implements the five ANN index families the engine supports:
// Flat (exact oracle), HNSW, IVF, LSH, and Annoy. They share one Index
// interface so pkg/core can bind whichever one a database was configured
// with.
package index

import (
	"container/heap"
)

// Result is one (id, distance) pair returned by a Search call, ordered
// ascending by Distance.
type Result struct {
	ID       string
	Distance float32
}

// Index is the common interface every index family implements.
type Index interface {
	// Insert adds a vector under id. id must not already be present.
	Insert(id string, vector []float32) error
	// Search returns the k closest live vectors to query, ascending by
	// distance, ties broken by lexicographic ID order.
	Search(query []float32, k int) ([]Result, error)
	// Delete removes id. Flat treats an absent id as a no-op; the other
	// families return an error if id is absent.
	Delete(id string) error
	// Size returns the number of live (non-deleted) vectors.
	Size() int
	// Stats returns implementation-specific counters for introspection.
	Stats() map[string]interface{}
	// Close releases any resources the index holds. All five in-memory
	// index families hold nothing beyond their own maps/slices, so Close is
	// a no-op for each; it exists so pkg/core can close index and storage in
	// the same uniform sequence regardless of which index kind is configured.
	Close() error
}

// maxHeapItem is a (id, distance) pair ordered for a bounded max-heap, used
// by Flat to keep the k smallest-distance candidates seen so far.
type maxHeapItem struct {
	id   string
	dist float32
}

// maxHeap is a container/heap.Interface max-heap over distance, so the
// worst of the current top-k sits at the root and can be evicted in O(log k)
// when a closer candidate arrives.
type maxHeap []maxHeapItem

func (h maxHeap) Len() int            { return len(h) }
func (h maxHeap) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h maxHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *maxHeap) Push(x interface{}) { *h = append(*h, x.(maxHeapItem)) }
func (h *maxHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// topKFromHeap drains a max-heap of size <= k into ascending-distance
// Results, breaking ties on ID for a stable ordering per §4.1.
func topKFromHeap(h *maxHeap) []Result {
	n := h.Len()
	results := make([]Result, n)
	for i := n - 1; i >= 0; i-- {
		item := heap.Pop(h).(maxHeapItem)
		results[i] = Result{ID: item.id, Distance: item.dist}
	}
	stableSortResults(results)
	return results
}

// stableSortResults sorts ascending by distance, breaking ties on ID, using
// a plain insertion sort: result sets here are bounded by k (<=1000 per the
// validation limits), so the O(n^2) worst case never matters in practice
// and this keeps the index packages free of a sort.Slice comparator closure
// per call site.
func stableSortResults(results []Result) {
	for i := 1; i < len(results); i++ {
		j := i
		for j > 0 && less(results[j], results[j-1]) {
			results[j], results[j-1] = results[j-1], results[j]
			j--
		}
	}
}

func less(a, b Result) bool {
	if a.Distance != b.Distance {
		return a.Distance < b.Distance
	}
	return a.ID < b.ID
}
