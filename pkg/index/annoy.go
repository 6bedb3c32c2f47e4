package index

import (
	"container/heap"
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/vortexa-io/annvec/pkg/distance"
)

// annoyNode is either an internal split (normal/threshold/children) or a
// leaf holding the ids that fell through to it.
type annoyNode struct {
	normal    []float32
	threshold float32
	left      *annoyNode
	right     *annoyNode
	ids       []string // leaf only
}

func (n *annoyNode) isLeaf() bool { return n.left == nil && n.right == nil }

// Annoy implements a forest of random-projection binary trees. Trees are
// immutable once built; inserting after a build marks the forest dirty and
// the next Search triggers a full rebuild from every stored vector, per the
// §4.8 invariant.
type Annoy struct {
	mu sync.RWMutex

	dimension int
	cfg       AnnoyConfig
	distFunc  func(a, b []float32) float32
	rng       *rand.Rand

	vectors map[string][]float32
	trees   []*annoyNode
	dirty   bool
}

// NewAnnoy creates an empty Annoy forest for vectors of the given dimension.
func NewAnnoy(dimension int, cfg AnnoyConfig) *Annoy {
	seed := time.Now().UnixNano()
	if cfg.Seed != nil {
		seed = *cfg.Seed
	}
	return &Annoy{
		dimension: dimension,
		cfg:       cfg,
		distFunc:  distance.Func(cfg.Metric),
		rng:       rand.New(rand.NewSource(seed)),
		vectors:   make(map[string][]float32),
	}
}

// Insert stores vector under id and marks the forest for rebuild.
func (a *Annoy) Insert(id string, vector []float32) error {
	if len(vector) != a.dimension {
		return fmt.Errorf("annoy: dimension mismatch: expected %d, got %d", a.dimension, len(vector))
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.vectors[id]; exists {
		return fmt.Errorf("annoy: id %q already exists", id)
	}
	v := make([]float32, len(vector))
	copy(v, vector)
	a.vectors[id] = v
	a.dirty = true
	return nil
}

// rebuild constructs cfg.NumTrees independent trees over every stored
// vector. Caller must hold the write lock.
func (a *Annoy) rebuild() {
	ids := make([]string, 0, len(a.vectors))
	for id := range a.vectors {
		ids = append(ids, id)
	}

	a.trees = make([]*annoyNode, a.cfg.NumTrees)
	for t := 0; t < a.cfg.NumTrees; t++ {
		a.trees[t] = a.buildTree(ids)
	}
	a.dirty = false
}

func (a *Annoy) buildTree(ids []string) *annoyNode {
	if len(ids) <= a.cfg.MaxLeafSize {
		leafIDs := make([]string, len(ids))
		copy(leafIDs, ids)
		return &annoyNode{ids: leafIDs}
	}

	i1 := a.rng.Intn(len(ids))
	i2 := a.rng.Intn(len(ids))
	for i2 == i1 && len(ids) > 1 {
		i2 = a.rng.Intn(len(ids))
	}
	p1, p2 := a.vectors[ids[i1]], a.vectors[ids[i2]]

	normal := make([]float32, a.dimension)
	midpoint := make([]float32, a.dimension)
	for d := 0; d < a.dimension; d++ {
		normal[d] = p1[d] - p2[d]
		midpoint[d] = (p1[d] + p2[d]) / 2
	}
	var threshold float32
	for d := 0; d < a.dimension; d++ {
		threshold += normal[d] * midpoint[d]
	}

	var left, right []string
	for _, id := range ids {
		if dotVec(normal, a.vectors[id]) < threshold {
			left = append(left, id)
		} else {
			right = append(right, id)
		}
	}
	// A degenerate split (all points on one side, e.g. duplicate vectors)
	// would recurse forever; fall back to a leaf instead.
	if len(left) == 0 || len(right) == 0 {
		leafIDs := make([]string, len(ids))
		copy(leafIDs, ids)
		return &annoyNode{ids: leafIDs}
	}

	return &annoyNode{
		normal:    normal,
		threshold: threshold,
		left:      a.buildTree(left),
		right:     a.buildTree(right),
	}
}

func dotVec(a, b []float32) float32 {
	var sum float32
	for i := range a {
		sum += a[i] * b[i]
	}
	return sum
}

// Search descends each tree best-first until searchK candidates are
// collected (default numTrees*k when searchK is -1), then exactly ranks
// the candidate set.
func (a *Annoy) Search(query []float32, k int) ([]Result, error) {
	if len(query) != a.dimension {
		return nil, fmt.Errorf("annoy: dimension mismatch: expected %d, got %d", a.dimension, len(query))
	}
	if k <= 0 {
		return []Result{}, nil
	}

	a.mu.Lock()
	if a.dirty {
		a.rebuild()
	}
	a.mu.Unlock()

	a.mu.RLock()
	defer a.mu.RUnlock()

	if len(a.trees) == 0 {
		return []Result{}, nil
	}

	searchK := a.cfg.SearchK
	if searchK == -1 {
		searchK = a.cfg.NumTrees * k
	}

	pq := &annoyHeap{}
	heap.Init(pq)
	for _, root := range a.trees {
		heap.Push(pq, annoyQueueItem{node: root, priority: maxFloat32})
	}

	candidates := make(map[string]bool)
	for pq.Len() > 0 && len(candidates) < searchK {
		item := heap.Pop(pq).(annoyQueueItem)
		node := item.node
		if node.isLeaf() {
			for _, id := range node.ids {
				candidates[id] = true
			}
			continue
		}

		margin := dotVec(query, node.normal) - node.threshold
		near, far := node.left, node.right
		if margin >= 0 {
			near, far = node.right, node.left
		}
		heap.Push(pq, annoyQueueItem{node: near, priority: item.priority})
		heap.Push(pq, annoyQueueItem{node: far, priority: -absFloat32(margin)})
	}

	results := make([]Result, 0, len(candidates))
	for id := range candidates {
		results = append(results, Result{ID: id, Distance: a.distFunc(query, a.vectors[id])})
	}
	stableSortResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Delete removes id. Per the immutability invariant this only drops it from
// the vector store; the forest is rebuilt on the next Search.
func (a *Annoy) Delete(id string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	if _, exists := a.vectors[id]; !exists {
		return fmt.Errorf("annoy: id %q not found", id)
	}
	delete(a.vectors, id)
	a.dirty = true
	return nil
}

// Size returns the number of stored vectors.
func (a *Annoy) Size() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.vectors)
}

// Close is a no-op: Annoy holds nothing beyond its in-memory forest.
func (a *Annoy) Close() error {
	return nil
}

// Stats reports forest shape: tree count, leaf size bound, and whether a
// rebuild is pending.
func (a *Annoy) Stats() map[string]interface{} {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return map[string]interface{}{
		"type":          "annoy",
		"size":          len(a.vectors),
		"num_trees":     a.cfg.NumTrees,
		"max_leaf_size": a.cfg.MaxLeafSize,
		"dirty":         a.dirty,
		"metric":        a.cfg.Metric.String(),
	}
}

const maxFloat32 = float32(3.4028235e+38)

func absFloat32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

// annoyQueueItem is one frontier entry in the best-first descent.
type annoyQueueItem struct {
	node     *annoyNode
	priority float32
}

// annoyHeap is a max-heap over priority: the branch most likely to contain
// near neighbors (highest priority) is explored first.
type annoyHeap []annoyQueueItem

func (h annoyHeap) Len() int            { return len(h) }
func (h annoyHeap) Less(i, j int) bool  { return h[i].priority > h[j].priority }
func (h annoyHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *annoyHeap) Push(x interface{}) { *h = append(*h, x.(annoyQueueItem)) }
func (h *annoyHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
