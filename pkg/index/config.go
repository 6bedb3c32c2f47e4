package index

import (
	"fmt"

	"github.com/vortexa-io/annvec/pkg/distance"
)

// FlatConfig configures the exhaustive oracle index.
type FlatConfig struct {
	Metric distance.Metric
}

// Validate checks FlatConfig's fields; Flat has no tunable range beyond the
// metric itself, so this always succeeds — kept for interface symmetry with
// the other *Config types.
func (c FlatConfig) Validate() error { return nil }

// HNSWConfig configures the hierarchical proximity graph index per §6.
type HNSWConfig struct {
	M              int
	EfConstruction int
	EfSearch       int
	Metric         distance.Metric
	Seed           *int64
}

// DefaultHNSWConfig returns the spec's suggested defaults.
func DefaultHNSWConfig() HNSWConfig {
	return HNSWConfig{M: 16, EfConstruction: 200, EfSearch: 50, Metric: distance.Cosine}
}

// Validate range-checks every field named in §6.
func (c HNSWConfig) Validate() error {
	if c.M < 2 || c.M > 100 {
		return fmt.Errorf("hnsw: m must be in [2,100], got %d", c.M)
	}
	if c.EfConstruction < 10 || c.EfConstruction > 1000 {
		return fmt.Errorf("hnsw: efConstruction must be in [10,1000], got %d", c.EfConstruction)
	}
	if c.EfSearch < 10 || c.EfSearch > c.EfConstruction {
		return fmt.Errorf("hnsw: efSearch must be in [10,efConstruction=%d], got %d", c.EfConstruction, c.EfSearch)
	}
	return nil
}

// IVFConfig configures the inverted-file coarse quantizer index per §6.
type IVFConfig struct {
	Metric               distance.Metric
	NumClusters          int
	NumProbes            int
	MaxIterations        int
	ConvergenceThreshold float64
	Seed                 *int64
}

// DefaultIVFConfig returns the spec's suggested defaults.
func DefaultIVFConfig() IVFConfig {
	return IVFConfig{NumClusters: 100, NumProbes: 10, MaxIterations: 20, ConvergenceThreshold: 1e-4, Metric: distance.Euclidean}
}

// Validate range-checks every field named in §6.
func (c IVFConfig) Validate() error {
	if c.NumClusters < 1 || c.NumClusters > 10000 {
		return fmt.Errorf("ivf: numClusters must be in [1,10000], got %d", c.NumClusters)
	}
	if c.NumProbes < 1 || c.NumProbes > c.NumClusters {
		return fmt.Errorf("ivf: numProbes must be in [1,numClusters=%d], got %d", c.NumClusters, c.NumProbes)
	}
	if c.MaxIterations < 1 || c.MaxIterations > 1000 {
		return fmt.Errorf("ivf: maxIterations must be in [1,1000], got %d", c.MaxIterations)
	}
	if c.ConvergenceThreshold < 0 || c.ConvergenceThreshold > 1 {
		return fmt.Errorf("ivf: convergenceThreshold must be in [0,1], got %v", c.ConvergenceThreshold)
	}
	return nil
}

// LSHConfig configures the random-projection hash table index per §6.
type LSHConfig struct {
	Metric       distance.Metric
	NumTables    int
	NumHashBits  int
	BucketWidth  float64
	Seed         *int64
}

// DefaultLSHConfig returns the spec's suggested defaults.
func DefaultLSHConfig() LSHConfig {
	return LSHConfig{NumTables: 10, NumHashBits: 8, BucketWidth: 4.0, Metric: distance.Cosine}
}

// Validate range-checks every field named in §6.
func (c LSHConfig) Validate() error {
	if c.NumTables < 1 || c.NumTables > 50 {
		return fmt.Errorf("lsh: numTables must be in [1,50], got %d", c.NumTables)
	}
	if c.NumHashBits < 1 || c.NumHashBits > 32 {
		return fmt.Errorf("lsh: numHashBits must be in [1,32], got %d", c.NumHashBits)
	}
	if c.Metric == distance.Euclidean || c.Metric == distance.Manhattan {
		if c.BucketWidth < 0.1 || c.BucketWidth > 100 {
			return fmt.Errorf("lsh: bucketWidth must be in [0.1,100], got %v", c.BucketWidth)
		}
	}
	return nil
}

// AnnoyConfig configures the random-hyperplane forest index per §6.
type AnnoyConfig struct {
	Metric      distance.Metric
	NumTrees    int
	MaxLeafSize int
	SearchK     int // -1 means auto: numTrees * k
	Seed        *int64
}

// DefaultAnnoyConfig returns the spec's suggested defaults.
func DefaultAnnoyConfig() AnnoyConfig {
	return AnnoyConfig{NumTrees: 10, MaxLeafSize: 10, SearchK: -1, Metric: distance.Euclidean}
}

// Validate range-checks every field named in §6.
func (c AnnoyConfig) Validate() error {
	if c.NumTrees < 1 || c.NumTrees > 1000 {
		return fmt.Errorf("annoy: numTrees must be in [1,1000], got %d", c.NumTrees)
	}
	if c.MaxLeafSize < 1 || c.MaxLeafSize > 1000 {
		return fmt.Errorf("annoy: maxLeafSize must be in [1,1000], got %d", c.MaxLeafSize)
	}
	if c.SearchK != -1 && c.SearchK < 1 {
		return fmt.Errorf("annoy: searchK must be -1 or >=1, got %d", c.SearchK)
	}
	return nil
}
