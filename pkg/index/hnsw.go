package index

import (
	"container/heap"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/vortexa-io/annvec/pkg/distance"
)

// hnswNode is one vertex of the proximity graph. Neighbors[l] holds the ids
// connected to this node at layer l. Neighbor lists are replaced wholesale
// rather than mutated in place (copy-on-write) so a concurrent reader
// mid-traversal never observes a partially updated slice.
type hnswNode struct {
	id        string
	vector    []float32
	level     int
	neighbors [][]string
	deleted   bool
}

// HNSW implements the Hierarchical Navigable Small World proximity graph.
// Deletes are tombstones only: a deleted node keeps its edges so the graph
// stays navigable, and Size/Search filter it out. There is no compaction
// pass; a workload with heavy churn should rebuild the index from scratch.
type HNSW struct {
	mu sync.RWMutex

	m              int
	maxM           int
	efConstruction int
	efSearch       int
	ml             float64
	metric         distance.Metric
	distFunc       func(a, b []float32) float32
	rng            *rand.Rand

	nodes      map[string]*hnswNode
	entryPoint string
	deletedCnt int
}

// NewHNSW creates an empty HNSW index from cfg.
func NewHNSW(cfg HNSWConfig) *HNSW {
	seed := time.Now().UnixNano()
	if cfg.Seed != nil {
		seed = *cfg.Seed
	}
	return &HNSW{
		m:              cfg.M,
		maxM:           cfg.M * 2,
		efConstruction: cfg.EfConstruction,
		efSearch:       cfg.EfSearch,
		ml:             1.0 / math.Log(float64(cfg.M)),
		metric:         cfg.Metric,
		distFunc:       distance.Func(cfg.Metric),
		rng:            rand.New(rand.NewSource(seed)),
		nodes:          make(map[string]*hnswNode),
	}
}

// SetEfSearch changes the search-time candidate list size. Supplemented per
// SPEC_FULL.md §3 as a runtime recall/latency tradeoff knob.
func (h *HNSW) SetEfSearch(ef int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.efSearch = ef
}

// selectLevel draws a layer from the geometric distribution with parameter
// 1/ln(M), per §3: level = floor(-ln(unif(0,1)) * mL).
func (h *HNSW) selectLevel() int {
	u := h.rng.Float64()
	for u == 0 {
		u = h.rng.Float64()
	}
	level := int(math.Floor(-math.Log(u) * h.ml))
	if level > 16 {
		level = 16
	}
	return level
}

// Insert adds vector under id, building its graph connections top-down.
func (h *HNSW) Insert(id string, vector []float32) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, exists := h.nodes[id]; exists {
		return fmt.Errorf("hnsw: id %q already exists", id)
	}

	v := make([]float32, len(vector))
	copy(v, vector)

	level := h.selectLevel()
	node := &hnswNode{id: id, vector: v, level: level, neighbors: make([][]string, level+1)}
	for i := range node.neighbors {
		node.neighbors[i] = []string{}
	}
	h.nodes[id] = node

	if h.entryPoint == "" {
		h.entryPoint = id
		return nil
	}

	currNearest := []string{h.entryPoint}
	entryNode := h.nodes[h.entryPoint]
	for lc := entryNode.level; lc > level; lc-- {
		currNearest = h.searchLayerClosest(v, currNearest, 1, lc)
	}

	for lc := level; lc >= 0; lc-- {
		m := h.m
		if lc == 0 {
			m = h.maxM
		}

		candidates := h.searchLayer(v, currNearest, h.efConstruction, lc)
		neighbors := h.selectNeighbors(v, candidates, m)
		node.neighbors[lc] = neighbors

		for _, nb := range neighbors {
			h.addConnection(nb, id, lc)

			nbNode := h.nodes[nb]
			maxConn := h.m
			if lc == 0 {
				maxConn = h.maxM
			}
			if lc < len(nbNode.neighbors) && len(nbNode.neighbors[lc]) > maxConn {
				nbNode.neighbors[lc] = h.selectNeighbors(nbNode.vector, nbNode.neighbors[lc], maxConn)
			}
		}

		currNearest = neighbors
	}

	if level > h.nodes[h.entryPoint].level {
		h.entryPoint = id
	}
	return nil
}

// searchLayer runs greedy beam search within one layer, returning up to ef
// candidates ordered closest-first.
func (h *HNSW) searchLayer(query []float32, entryPoints []string, ef int, layer int) []string {
	visited := make(map[string]bool, ef*2)
	candidates := &distHeap{}
	found := &distHeapMax{}

	for _, p := range entryPoints {
		d := h.distFunc(query, h.nodes[p].vector)
		heap.Push(candidates, heapItem{id: p, dist: d})
		heap.Push(found, heapItem{id: p, dist: d})
		visited[p] = true
	}

	for candidates.Len() > 0 {
		if found.Len() > 0 && (*candidates)[0].dist > (*found)[0].dist {
			break
		}
		current := heap.Pop(candidates).(heapItem)
		currentNode := h.nodes[current.id]
		if layer >= len(currentNode.neighbors) {
			continue
		}

		for _, nb := range currentNode.neighbors[layer] {
			if visited[nb] {
				continue
			}
			visited[nb] = true
			nbNode, ok := h.nodes[nb]
			if !ok {
				continue
			}
			d := h.distFunc(query, nbNode.vector)
			if found.Len() < ef || d < (*found)[0].dist {
				heap.Push(candidates, heapItem{id: nb, dist: d})
				heap.Push(found, heapItem{id: nb, dist: d})
				if found.Len() > ef {
					heap.Pop(found)
				}
			}
		}
	}

	result := make([]string, found.Len())
	for i := len(result) - 1; i >= 0; i-- {
		result[i] = heap.Pop(found).(heapItem).id
	}
	return result
}

func (h *HNSW) searchLayerClosest(query []float32, entryPoints []string, num int, layer int) []string {
	candidates := h.searchLayer(query, entryPoints, num, layer)
	if len(candidates) > num {
		return candidates[:num]
	}
	return candidates
}

// selectNeighbors runs the diversity-aware heuristic selector: repeatedly
// pop the closest remaining candidate c and keep it only if no already-kept
// neighbor is closer to c than c is to query. This discards candidates that
// are redundant with an already-kept neighbor, spreading the m edges across
// distinct directions instead of clustering them around the single closest
// candidate, which is what the recall bound in §8 property 3 requires at
// higher fan-out.
func (h *HNSW) selectNeighbors(query []float32, candidates []string, m int) []string {
	if len(candidates) <= m {
		out := make([]string, len(candidates))
		copy(out, candidates)
		return out
	}

	type pair struct {
		id   string
		dist float32
	}
	pairs := make([]pair, len(candidates))
	for i, c := range candidates {
		pairs[i] = pair{id: c, dist: h.distFunc(query, h.nodes[c].vector)}
	}
	for i := 1; i < len(pairs); i++ {
		j := i
		for j > 0 && pairs[j].dist < pairs[j-1].dist {
			pairs[j], pairs[j-1] = pairs[j-1], pairs[j]
			j--
		}
	}

	kept := make([]pair, 0, m)
	for _, c := range pairs {
		if len(kept) >= m {
			break
		}
		dominated := false
		for _, k := range kept {
			if h.distFunc(h.nodes[k.id].vector, h.nodes[c.id].vector) < c.dist {
				dominated = true
				break
			}
		}
		if !dominated {
			kept = append(kept, c)
		}
	}

	// If the diversity filter discarded more than it should have, backfill
	// with the next-closest still-unkept candidates so a node is never left
	// with fewer than m neighbors when m candidates were available.
	if len(kept) < m {
		have := make(map[string]bool, len(kept))
		for _, k := range kept {
			have[k.id] = true
		}
		for _, c := range pairs {
			if len(kept) >= m {
				break
			}
			if !have[c.id] {
				kept = append(kept, c)
				have[c.id] = true
			}
		}
	}

	out := make([]string, len(kept))
	for i, k := range kept {
		out[i] = k.id
	}
	return out
}

// addConnection replaces from's neighbor slice at layer with a new slice
// appending to, rather than mutating in place, per the copy-on-write
// invariant.
func (h *HNSW) addConnection(from, to string, layer int) {
	fromNode, exists := h.nodes[from]
	if !exists || layer >= len(fromNode.neighbors) {
		return
	}
	for _, nb := range fromNode.neighbors[layer] {
		if nb == to {
			return
		}
	}
	updated := make([]string, len(fromNode.neighbors[layer]), len(fromNode.neighbors[layer])+1)
	copy(updated, fromNode.neighbors[layer])
	fromNode.neighbors[layer] = append(updated, to)
}

// Search returns the k nearest live vectors to query.
func (h *HNSW) Search(query []float32, k int) ([]Result, error) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if h.entryPoint == "" || k <= 0 {
		return []Result{}, nil
	}

	entryNode := h.nodes[h.entryPoint]
	currNearest := []string{h.entryPoint}
	for layer := entryNode.level; layer > 0; layer-- {
		currNearest = h.searchLayerClosest(query, currNearest, 1, layer)
	}

	ef := h.efSearch
	if ef < k {
		ef = k
	}
	candidates := h.searchLayer(query, currNearest, ef, 0)

	results := make([]Result, 0, len(candidates))
	for _, c := range candidates {
		node := h.nodes[c]
		if node.deleted {
			continue
		}
		results = append(results, Result{ID: c, Distance: h.distFunc(query, node.vector)})
	}
	stableSortResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// Delete tombstones id. The node's edges are kept so the graph stays
// connected; if id was the entry point a live replacement is chosen.
func (h *HNSW) Delete(id string) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	node, exists := h.nodes[id]
	if !exists {
		return fmt.Errorf("hnsw: id %q not found", id)
	}
	if node.deleted {
		return nil
	}
	node.deleted = true
	h.deletedCnt++

	if h.entryPoint == id {
		h.entryPoint = ""
		for nodeID, n := range h.nodes {
			if !n.deleted {
				h.entryPoint = nodeID
				break
			}
		}
	}
	return nil
}

// Size returns the number of live (non-tombstoned) nodes.
func (h *HNSW) Size() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.nodes) - h.deletedCnt
}

// Close is a no-op: HNSW holds nothing beyond its in-memory graph.
func (h *HNSW) Close() error {
	return nil
}

// Stats reports graph shape: node/edge counts, level distribution, and the
// configured construction/search parameters.
func (h *HNSW) Stats() map[string]interface{} {
	h.mu.RLock()
	defer h.mu.RUnlock()

	totalEdges := 0
	maxLevel := 0
	levelDist := make(map[int]int)
	for _, n := range h.nodes {
		if n.deleted {
			continue
		}
		if n.level > maxLevel {
			maxLevel = n.level
		}
		levelDist[n.level]++
		for _, neighbors := range n.neighbors {
			totalEdges += len(neighbors)
		}
	}

	active := len(h.nodes) - h.deletedCnt
	avgEdges := 0.0
	if active > 0 {
		avgEdges = float64(totalEdges) / float64(active)
	}

	return map[string]interface{}{
		"type":               "hnsw",
		"total_nodes":        len(h.nodes),
		"active_nodes":       active,
		"deleted_nodes":      h.deletedCnt,
		"total_edges":        totalEdges,
		"avg_edges_per_node": avgEdges,
		"max_level":          maxLevel,
		"level_distribution": levelDist,
		"entry_point":        h.entryPoint,
		"m":                  h.m,
		"ef_construction":    h.efConstruction,
		"ef_search":          h.efSearch,
		"metric":             h.metric.String(),
	}
}

// heapItem pairs an id with a distance for the layer-search heaps.
type heapItem struct {
	id   string
	dist float32
}

// distHeap is a min-heap over distance, used as the candidate frontier.
type distHeap []heapItem

func (h distHeap) Len() int            { return len(h) }
func (h distHeap) Less(i, j int) bool  { return h[i].dist < h[j].dist }
func (h distHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *distHeap) Push(x interface{}) { *h = append(*h, x.(heapItem)) }
func (h *distHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// distHeapMax is a max-heap over distance, used to keep the current best-ef
// found set with the worst candidate at the root for fast eviction.
type distHeapMax []heapItem

func (h distHeapMax) Len() int            { return len(h) }
func (h distHeapMax) Less(i, j int) bool  { return h[i].dist > h[j].dist }
func (h distHeapMax) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *distHeapMax) Push(x interface{}) { *h = append(*h, x.(heapItem)) }
func (h *distHeapMax) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}
