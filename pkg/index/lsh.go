package index

import (
	"fmt"
	"math"
	"math/rand"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/vortexa-io/annvec/pkg/distance"
)

// LSH implements multi-table locality-sensitive hashing. Cosine and Dot use
// sign-bit random hyperplanes (a bit per hash function, 1 if the projection
// is positive); Euclidean and Manhattan use p-stable projections bucketed
// by bucketWidth, per §4.7.
type LSH struct {
	mu sync.RWMutex

	dimension int
	cfg       LSHConfig
	distFunc  func(a, b []float32) float32

	projections [][][]float32 // [table][bit][dim]
	offsets     [][]float32   // [table][bit], p-stable only
	tables      []map[string][]string
	vectors     map[string][]float32
}

// NewLSH builds numTables independent hash tables from cfg.
func NewLSH(dimension int, cfg LSHConfig) *LSH {
	seed := time.Now().UnixNano()
	if cfg.Seed != nil {
		seed = *cfg.Seed
	}
	rng := rand.New(rand.NewSource(seed))

	projections := make([][][]float32, cfg.NumTables)
	offsets := make([][]float32, cfg.NumTables)
	tables := make([]map[string][]string, cfg.NumTables)
	for t := 0; t < cfg.NumTables; t++ {
		projections[t] = make([][]float32, cfg.NumHashBits)
		offsets[t] = make([]float32, cfg.NumHashBits)
		for b := 0; b < cfg.NumHashBits; b++ {
			projections[t][b] = make([]float32, dimension)
			for d := 0; d < dimension; d++ {
				projections[t][b][d] = float32(rng.NormFloat64())
			}
			offsets[t][b] = rng.Float32() * float32(cfg.BucketWidth)
		}
		tables[t] = make(map[string][]string)
	}

	return &LSH{
		dimension:   dimension,
		cfg:         cfg,
		distFunc:    distance.Func(cfg.Metric),
		projections: projections,
		offsets:     offsets,
		tables:      tables,
		vectors:     make(map[string][]float32),
	}
}

func (l *LSH) usesPStable() bool {
	return l.cfg.Metric == distance.Euclidean || l.cfg.Metric == distance.Manhattan
}

// bucketKey hashes v into table's bucket key.
func (l *LSH) bucketKey(v []float32, table int) string {
	if l.usesPStable() {
		var sb strings.Builder
		for b, proj := range l.projections[table] {
			var dot float32
			for i, p := range proj {
				dot += v[i] * p
			}
			bucket := math.Floor(float64((dot + l.offsets[table][b]) / float32(l.cfg.BucketWidth)))
			if b > 0 {
				sb.WriteByte(',')
			}
			sb.WriteString(strconv.FormatFloat(bucket, 'f', 0, 64))
		}
		return sb.String()
	}

	var code uint64
	for b, proj := range l.projections[table] {
		var dot float32
		for i, p := range proj {
			dot += v[i] * p
		}
		if dot > 0 {
			code |= 1 << uint(b)
		}
	}
	return strconv.FormatUint(code, 10)
}

// Insert adds vector under id to every table.
func (l *LSH) Insert(id string, vector []float32) error {
	if len(vector) != l.dimension {
		return fmt.Errorf("lsh: dimension mismatch: expected %d, got %d", l.dimension, len(vector))
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if _, exists := l.vectors[id]; exists {
		return fmt.Errorf("lsh: id %q already exists", id)
	}

	v := make([]float32, len(vector))
	copy(v, vector)
	l.vectors[id] = v

	for t := range l.tables {
		key := l.bucketKey(v, t)
		l.tables[t][key] = append(l.tables[t][key], id)
	}
	return nil
}

// Search unions each table's bucket for query into one candidate set, then
// exactly ranks candidates with the configured metric.
func (l *LSH) Search(query []float32, k int) ([]Result, error) {
	if len(query) != l.dimension {
		return nil, fmt.Errorf("lsh: dimension mismatch: expected %d, got %d", l.dimension, len(query))
	}
	if k <= 0 {
		return []Result{}, nil
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	candidates := make(map[string]bool)
	for t := range l.tables {
		key := l.bucketKey(query, t)
		for _, id := range l.tables[t][key] {
			candidates[id] = true
		}
	}

	results := make([]Result, 0, len(candidates))
	for id := range candidates {
		results = append(results, Result{ID: id, Distance: l.distFunc(query, l.vectors[id])})
	}
	stableSortResults(results)
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

// RangeSearch unions each table's bucket for query and keeps only candidates
// within radius. Supplemented per SPEC_FULL.md §3, mirroring Flat's method.
func (l *LSH) RangeSearch(query []float32, radius float32) ([]Result, error) {
	if len(query) != l.dimension {
		return nil, fmt.Errorf("lsh: dimension mismatch: expected %d, got %d", l.dimension, len(query))
	}

	l.mu.RLock()
	defer l.mu.RUnlock()

	candidates := make(map[string]bool)
	for t := range l.tables {
		key := l.bucketKey(query, t)
		for _, id := range l.tables[t][key] {
			candidates[id] = true
		}
	}

	var results []Result
	for id := range candidates {
		d := l.distFunc(query, l.vectors[id])
		if d <= radius {
			results = append(results, Result{ID: id, Distance: d})
		}
	}
	stableSortResults(results)
	return results, nil
}

// Delete removes id from every table's bucket and from storage.
func (l *LSH) Delete(id string) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	v, exists := l.vectors[id]
	if !exists {
		return fmt.Errorf("lsh: id %q not found", id)
	}

	for t := range l.tables {
		key := l.bucketKey(v, t)
		bucket := l.tables[t][key]
		out := make([]string, 0, len(bucket))
		for _, bid := range bucket {
			if bid != id {
				out = append(out, bid)
			}
		}
		if len(out) > 0 {
			l.tables[t][key] = out
		} else {
			delete(l.tables[t], key)
		}
	}
	delete(l.vectors, id)
	return nil
}

// Size returns the number of stored vectors.
func (l *LSH) Size() int {
	l.mu.RLock()
	defer l.mu.RUnlock()
	return len(l.vectors)
}

// Close is a no-op: LSH holds nothing beyond its in-memory buckets.
func (l *LSH) Close() error {
	return nil
}

// Stats reports bucket-level occupancy across all tables.
func (l *LSH) Stats() map[string]interface{} {
	l.mu.RLock()
	defer l.mu.RUnlock()

	totalBuckets, totalItems, maxBucket := 0, 0, 0
	for _, table := range l.tables {
		totalBuckets += len(table)
		for _, bucket := range table {
			totalItems += len(bucket)
			if len(bucket) > maxBucket {
				maxBucket = len(bucket)
			}
		}
	}
	avgBucket := 0.0
	if totalBuckets > 0 {
		avgBucket = float64(totalItems) / float64(totalBuckets)
	}

	return map[string]interface{}{
		"type":            "lsh",
		"size":            len(l.vectors),
		"num_tables":      l.cfg.NumTables,
		"num_hash_bits":   l.cfg.NumHashBits,
		"total_buckets":   totalBuckets,
		"avg_bucket_size": avgBucket,
		"max_bucket_size": maxBucket,
		"metric":          l.cfg.Metric.String(),
	}
}
