package index

import (
	"fmt"
	"math"
	"math/rand"
	"sort"
	"sync"
	"time"

	"github.com/vortexa-io/annvec/pkg/distance"
)

// IVF implements the inverted-file coarse quantizer: k-means cells with
// multi-probe search. Training is implicit — the index buffers inserts
// until it has at least numClusters vectors, then runs k-means once and
// routes every vector (buffered and future) into its nearest cell.
// Queries issued before training falls back to an exhaustive scan over the
// buffer so Search never refuses to answer.
type IVF struct {
	mu sync.RWMutex

	dimension int
	cfg       IVFConfig
	distFunc  func(a, b []float32) float32
	rng       *rand.Rand

	trained    bool
	centroids  [][]float32
	cells      [][]string // member ids per centroid
	cellOf     map[string]int
	vectors    map[string][]float32
	insertions []string // insertion order, for pre-train buffering
}

// NewIVF creates an untrained IVF index for vectors of the given dimension.
func NewIVF(dimension int, cfg IVFConfig) *IVF {
	seed := time.Now().UnixNano()
	if cfg.Seed != nil {
		seed = *cfg.Seed
	}
	return &IVF{
		dimension: dimension,
		cfg:       cfg,
		distFunc:  distance.Func(cfg.Metric),
		rng:       rand.New(rand.NewSource(seed)),
		cellOf:    make(map[string]int),
		vectors:   make(map[string][]float32),
	}
}

// Insert adds vector under id, triggering training once enough vectors have
// accumulated.
func (ivf *IVF) Insert(id string, vector []float32) error {
	if len(vector) != ivf.dimension {
		return fmt.Errorf("ivf: dimension mismatch: expected %d, got %d", ivf.dimension, len(vector))
	}

	ivf.mu.Lock()
	defer ivf.mu.Unlock()

	if _, exists := ivf.vectors[id]; exists {
		return fmt.Errorf("ivf: id %q already exists", id)
	}

	v := make([]float32, len(vector))
	copy(v, vector)
	ivf.vectors[id] = v
	ivf.insertions = append(ivf.insertions, id)

	if !ivf.trained {
		if len(ivf.insertions) >= ivf.cfg.NumClusters {
			ivf.train()
		}
		return nil
	}

	cell := ivf.nearestCentroid(v)
	ivf.cells[cell] = append(ivf.cells[cell], id)
	ivf.cellOf[id] = cell
	return nil
}

// train runs k-means++ over every buffered vector and assigns each to its
// resulting cell.
func (ivf *IVF) train() {
	vectors := make([][]float32, len(ivf.insertions))
	for i, id := range ivf.insertions {
		vectors[i] = ivf.vectors[id]
	}

	k := ivf.cfg.NumClusters
	if k > len(vectors) {
		k = len(vectors)
	}
	ivf.centroids = kMeansPlusPlus(vectors, k, ivf.cfg.MaxIterations, ivf.cfg.ConvergenceThreshold, ivf.rng)
	ivf.cells = make([][]string, len(ivf.centroids))
	ivf.trained = true

	for _, id := range ivf.insertions {
		cell := ivf.nearestCentroid(ivf.vectors[id])
		ivf.cells[cell] = append(ivf.cells[cell], id)
		ivf.cellOf[id] = cell
	}
}

func (ivf *IVF) nearestCentroid(v []float32) int {
	best := 0
	bestDist := float32(math.MaxFloat32)
	for i, c := range ivf.centroids {
		d := distance.SquaredEuclidean(v, c)
		if d < bestDist {
			bestDist = d
			best = i
		}
	}
	return best
}

// Search ranks cells by centroid distance, probes the closest numProbes,
// and exactly ranks their members.
func (ivf *IVF) Search(query []float32, k int) ([]Result, error) {
	if len(query) != ivf.dimension {
		return nil, fmt.Errorf("ivf: dimension mismatch: expected %d, got %d", ivf.dimension, len(query))
	}
	if k <= 0 {
		return []Result{}, nil
	}

	ivf.mu.RLock()
	defer ivf.mu.RUnlock()

	if !ivf.trained {
		return ivf.bruteForceLocked(query, k), nil
	}

	type cellDist struct {
		idx  int
		dist float32
	}
	cellDists := make([]cellDist, len(ivf.centroids))
	for i, c := range ivf.centroids {
		cellDists[i] = cellDist{idx: i, dist: ivf.distFunc(query, c)}
	}
	sort.Slice(cellDists, func(i, j int) bool {
		if cellDists[i].dist != cellDists[j].dist {
			return cellDists[i].dist < cellDists[j].dist
		}
		return cellDists[i].idx < cellDists[j].idx
	})

	nprobe := ivf.cfg.NumProbes
	if nprobe > len(cellDists) {
		nprobe = len(cellDists)
	}

	var results []Result
	for i := 0; i < nprobe; i++ {
		for _, id := range ivf.cells[cellDists[i].idx] {
			results = append(results, Result{ID: id, Distance: ivf.distFunc(query, ivf.vectors[id])})
		}
	}
	stableSortResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (ivf *IVF) bruteForceLocked(query []float32, k int) []Result {
	var results []Result
	for id, v := range ivf.vectors {
		results = append(results, Result{ID: id, Distance: ivf.distFunc(query, v)})
	}
	stableSortResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return results
}

// SetNProbe changes the number of cells probed at search time. Supplemented
// per SPEC_FULL.md §3 as a runtime recall/latency tradeoff knob.
func (ivf *IVF) SetNProbe(nprobe int) {
	ivf.mu.Lock()
	defer ivf.mu.Unlock()
	if nprobe > ivf.cfg.NumClusters {
		nprobe = ivf.cfg.NumClusters
	}
	ivf.cfg.NumProbes = nprobe
}

// Delete removes id from its cell (or the pre-train buffer).
func (ivf *IVF) Delete(id string) error {
	ivf.mu.Lock()
	defer ivf.mu.Unlock()

	if _, exists := ivf.vectors[id]; !exists {
		return fmt.Errorf("ivf: id %q not found", id)
	}
	delete(ivf.vectors, id)

	if ivf.trained {
		cell := ivf.cellOf[id]
		members := ivf.cells[cell]
		for i, m := range members {
			if m == id {
				ivf.cells[cell] = append(members[:i], members[i+1:]...)
				break
			}
		}
		delete(ivf.cellOf, id)
	}

	for i, insID := range ivf.insertions {
		if insID == id {
			ivf.insertions = append(ivf.insertions[:i], ivf.insertions[i+1:]...)
			break
		}
	}
	return nil
}

// Size returns the number of stored vectors.
func (ivf *IVF) Size() int {
	ivf.mu.RLock()
	defer ivf.mu.RUnlock()
	return len(ivf.vectors)
}

// Close is a no-op: IVF holds nothing beyond its in-memory cells.
func (ivf *IVF) Close() error {
	return nil
}

// Stats reports training state, cell count, and cell-size distribution.
func (ivf *IVF) Stats() map[string]interface{} {
	ivf.mu.RLock()
	defer ivf.mu.RUnlock()

	stats := map[string]interface{}{
		"type":        "ivf",
		"dimension":   ivf.dimension,
		"size":        len(ivf.vectors),
		"num_clusters": ivf.cfg.NumClusters,
		"num_probes":  ivf.cfg.NumProbes,
		"trained":     ivf.trained,
		"metric":      ivf.cfg.Metric.String(),
	}
	if !ivf.trained {
		return stats
	}

	minSize, maxSize, total := -1, 0, 0
	for _, cell := range ivf.cells {
		n := len(cell)
		if minSize == -1 || n < minSize {
			minSize = n
		}
		if n > maxSize {
			maxSize = n
		}
		total += n
	}
	stats["min_cluster_size"] = minSize
	stats["max_cluster_size"] = maxSize
	if len(ivf.cells) > 0 {
		stats["avg_cluster_size"] = float64(total) / float64(len(ivf.cells))
	}
	return stats
}

// kMeansPlusPlus clusters vectors into k centroids. Centroids are seeded by
// k-means++ (probability proportional to squared distance to the nearest
// existing centroid), then refined by Lloyd's algorithm until either
// maxIters passes complete or the largest per-coordinate centroid shift in
// one pass falls below threshold. Any cluster left empty after a pass is
// reseeded to a random member vector, per §4.6.
func kMeansPlusPlus(vectors [][]float32, k int, maxIters int, threshold float64, rng *rand.Rand) [][]float32 {
	dim := len(vectors[0])
	centroids := make([][]float32, k)

	centroids[0] = cloneVector(vectors[rng.Intn(len(vectors))])
	for i := 1; i < k; i++ {
		distances := make([]float32, len(vectors))
		var total float32
		for j, v := range vectors {
			best := float32(math.MaxFloat32)
			for c := 0; c < i; c++ {
				d := distance.SquaredEuclidean(v, centroids[c])
				if d < best {
					best = d
				}
			}
			distances[j] = best
			total += best
		}
		r := rng.Float32() * total
		var cum float32
		chosen := len(vectors) - 1
		for j, d := range distances {
			cum += d
			if cum >= r {
				chosen = j
				break
			}
		}
		centroids[i] = cloneVector(vectors[chosen])
	}

	assignments := make([]int, len(vectors))
	for iter := 0; iter < maxIters; iter++ {
		changed := false
		for i, v := range vectors {
			best := 0
			bestDist := float32(math.MaxFloat32)
			for c, centroid := range centroids {
				d := distance.SquaredEuclidean(v, centroid)
				if d < bestDist {
					bestDist = d
					best = c
				}
			}
			if assignments[i] != best {
				assignments[i] = best
				changed = true
			}
		}

		newCentroids := make([][]float32, k)
		counts := make([]int, k)
		for i := range newCentroids {
			newCentroids[i] = make([]float32, dim)
		}
		for i, v := range vectors {
			c := assignments[i]
			counts[c]++
			for d := 0; d < dim; d++ {
				newCentroids[c][d] += v[d]
			}
		}
		for c := range newCentroids {
			if counts[c] == 0 {
				newCentroids[c] = cloneVector(vectors[rng.Intn(len(vectors))])
				continue
			}
			for d := 0; d < dim; d++ {
				newCentroids[c][d] /= float32(counts[c])
			}
		}

		maxShift := 0.0
		for c := range centroids {
			for d := 0; d < dim; d++ {
				shift := math.Abs(float64(newCentroids[c][d] - centroids[c][d]))
				if shift > maxShift {
					maxShift = shift
				}
			}
		}
		centroids = newCentroids

		if !changed || maxShift < threshold {
			break
		}
	}
	return centroids
}

func cloneVector(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
