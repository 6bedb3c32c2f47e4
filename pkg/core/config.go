package core

import (
	"fmt"

	"github.com/vortexa-io/annvec/pkg/distance"
	"github.com/vortexa-io/annvec/pkg/index"
)

// IndexKind names which ANN index family a database is bound to.
type IndexKind int

const (
	IndexFlat IndexKind = iota
	IndexHNSW
	IndexIVF
	IndexLSH
	IndexAnnoy
)

func (k IndexKind) String() string {
	switch k {
	case IndexFlat:
		return "flat"
	case IndexHNSW:
		return "hnsw"
	case IndexIVF:
		return "ivf"
	case IndexLSH:
		return "lsh"
	case IndexAnnoy:
		return "annoy"
	default:
		return "unknown"
	}
}

// StorageKind names which storage backend a database is bound to.
type StorageKind int

const (
	StorageMemory StorageKind = iota
	StorageDisk
	StorageHybrid
)

func (k StorageKind) String() string {
	switch k {
	case StorageMemory:
		return "memory"
	case StorageDisk:
		return "disk"
	case StorageHybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

// QuantizerKind names the optional compression scheme bound alongside the
// index. QuantizerNone means no quantizer is attached.
type QuantizerKind int

const (
	QuantizerNone QuantizerKind = iota
	QuantizerSQ
	QuantizerPQ
)

func (k QuantizerKind) String() string {
	switch k {
	case QuantizerNone:
		return "none"
	case QuantizerSQ:
		return "sq"
	case QuantizerPQ:
		return "pq"
	default:
		return "unknown"
	}
}

// Config is the tagged, range-validated configuration for one VectorDB,
// replacing a map-based config with getOrDefault casts: every parameter's
// domain is range-checked in Validate before a VectorDB is constructed.
type Config struct {
	Dimension int
	Metric    distance.Metric

	IndexKind IndexKind
	Flat      index.FlatConfig
	HNSW      index.HNSWConfig
	IVF       index.IVFConfig
	LSH       index.LSHConfig
	Annoy     index.AnnoyConfig

	StorageKind StorageKind
	DataDir     string // required for Disk/Hybrid
	CacheSize   int    // required for Hybrid

	QuantizerKind          QuantizerKind
	SQBits                 int     // required for SQ: 4, 8, or 16
	PQNumSubspaces         int     // required for PQ: D mod M = 0
	PQMaxIterations        int     // PQ k-means iteration cap; not read: ProductQuantizer.Train always caps k-means at 25 passes
	PQConvergenceThreshold float64 // PQ k-means early-stop threshold; not read: ProductQuantizer.Train always uses 1e-4

	Logger Logger
	Seed   *int64
}

// DefaultConfig returns a Flat/Memory configuration with no quantizer,
// the simplest valid configuration for a database of the given dimension.
func DefaultConfig(dimension int) Config {
	return Config{
		Dimension:   dimension,
		Metric:      distance.Cosine,
		IndexKind:   IndexFlat,
		Flat:        index.FlatConfig{Metric: distance.Cosine},
		StorageKind: StorageMemory,
		QuantizerKind: QuantizerNone,
		Logger:      NopLogger(),
	}
}

// maxDimension is the §7 validation limit on vector dimensionality.
const maxDimension = 10000

// Validate range-checks every field named in §6/§7, returning a plain
// error describing the first violation found; New wraps that error as a
// ConfigurationError-kind failure.
func (c Config) Validate() error {
	if c.Dimension <= 0 || c.Dimension > maxDimension {
		return fmt.Errorf("dimension must be in (0,%d], got %d", maxDimension, c.Dimension)
	}

	switch c.IndexKind {
	case IndexFlat:
		if err := c.Flat.Validate(); err != nil {
			return err
		}
	case IndexHNSW:
		if err := c.HNSW.Validate(); err != nil {
			return err
		}
	case IndexIVF:
		if err := c.IVF.Validate(); err != nil {
			return err
		}
	case IndexLSH:
		if err := c.LSH.Validate(); err != nil {
			return err
		}
	case IndexAnnoy:
		if err := c.Annoy.Validate(); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown index kind %v", c.IndexKind)
	}

	switch c.StorageKind {
	case StorageMemory:
	case StorageDisk:
		if c.DataDir == "" {
			return fmt.Errorf("disk storage requires a non-empty data_dir")
		}
	case StorageHybrid:
		if c.DataDir == "" {
			return fmt.Errorf("hybrid storage requires a non-empty data_dir")
		}
		if c.CacheSize <= 0 {
			return fmt.Errorf("hybrid storage requires cache_size > 0, got %d", c.CacheSize)
		}
	default:
		return fmt.Errorf("unknown storage kind %v", c.StorageKind)
	}

	switch c.QuantizerKind {
	case QuantizerNone:
	case QuantizerSQ:
		if c.SQBits != 4 && c.SQBits != 8 && c.SQBits != 16 {
			return fmt.Errorf("sq bits must be one of {4,8,16}, got %d", c.SQBits)
		}
	case QuantizerPQ:
		if c.PQNumSubspaces < 1 || c.Dimension%c.PQNumSubspaces != 0 {
			return fmt.Errorf("pq numSubspaces must divide dimension %d evenly, got %d", c.Dimension, c.PQNumSubspaces)
		}
	default:
		return fmt.Errorf("unknown quantizer kind %v", c.QuantizerKind)
	}

	return nil
}
