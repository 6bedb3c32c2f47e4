package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/vortexa-io/annvec/pkg/core"
	"github.com/vortexa-io/annvec/pkg/distance"
	"github.com/vortexa-io/annvec/pkg/index"
)

// dbConfig is the JSON sidecar init writes next to the database, since a
// core.Config (index/storage/quantizer choice, dimension, metric) must
// survive across separate cmd/annvec process invocations. One dbConfig
// maps onto exactly one core.Config.
type dbConfig struct {
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`

	HNSW  index.HNSWConfig  `json:"hnsw,omitempty"`
	IVF   index.IVFConfig   `json:"ivf,omitempty"`
	LSH   index.LSHConfig   `json:"lsh,omitempty"`
	Annoy index.AnnoyConfig `json:"annoy,omitempty"`

	IndexKind   string `json:"index_kind"`
	StorageKind string `json:"storage_kind"`
	DataDir     string `json:"data_dir,omitempty"`
	CacheSize   int    `json:"cache_size,omitempty"`

	QuantizerKind          string  `json:"quantizer_kind,omitempty"`
	SQBits                 int     `json:"sq_bits,omitempty"`
	PQNumSubspaces         int     `json:"pq_num_subspaces,omitempty"`
	PQMaxIterations        int     `json:"pq_max_iterations,omitempty"`
	PQConvergenceThreshold float64 `json:"pq_convergence_threshold,omitempty"`
}

// sidecarPath is where a database's dbConfig is stored, alongside dbPath.
func sidecarPath(dbPath string) string {
	return dbPath + ".annvec.json"
}

func writeDBConfig(dbPath string, c dbConfig) error {
	data, err := json.MarshalIndent(c, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(sidecarPath(dbPath), data, 0o644)
}

func readDBConfig(dbPath string) (dbConfig, error) {
	var c dbConfig
	data, err := os.ReadFile(sidecarPath(dbPath))
	if err != nil {
		return c, fmt.Errorf("read config at %s (did you run 'annvec init'?): %w", sidecarPath(dbPath), err)
	}
	if err := json.Unmarshal(data, &c); err != nil {
		return c, fmt.Errorf("parse config: %w", err)
	}
	return c, nil
}

// toCoreConfig builds a core.Config from the persisted shape plus the
// runtime logger (never persisted).
func (c dbConfig) toCoreConfig(logger core.Logger) (core.Config, error) {
	metric, ok := distance.ParseMetric(c.Metric)
	if !ok {
		return core.Config{}, fmt.Errorf("unknown metric %q", c.Metric)
	}

	cfg := core.Config{
		Dimension: c.Dimension,
		Metric:    metric,
		DataDir:   c.DataDir,
		CacheSize: c.CacheSize,
		Logger:    logger,
	}

	switch c.IndexKind {
	case "flat":
		cfg.IndexKind = core.IndexFlat
		cfg.Flat = index.FlatConfig{Metric: metric}
	case "hnsw":
		cfg.IndexKind = core.IndexHNSW
		cfg.HNSW = c.HNSW
		cfg.HNSW.Metric = metric
	case "ivf":
		cfg.IndexKind = core.IndexIVF
		cfg.IVF = c.IVF
		cfg.IVF.Metric = metric
	case "lsh":
		cfg.IndexKind = core.IndexLSH
		cfg.LSH = c.LSH
		cfg.LSH.Metric = metric
	case "annoy":
		cfg.IndexKind = core.IndexAnnoy
		cfg.Annoy = c.Annoy
		cfg.Annoy.Metric = metric
	default:
		return core.Config{}, fmt.Errorf("unknown index kind %q", c.IndexKind)
	}

	switch c.StorageKind {
	case "memory":
		cfg.StorageKind = core.StorageMemory
	case "disk":
		cfg.StorageKind = core.StorageDisk
	case "hybrid":
		cfg.StorageKind = core.StorageHybrid
	default:
		return core.Config{}, fmt.Errorf("unknown storage kind %q", c.StorageKind)
	}

	switch c.QuantizerKind {
	case "", "none":
		cfg.QuantizerKind = core.QuantizerNone
	case "sq":
		cfg.QuantizerKind = core.QuantizerSQ
		cfg.SQBits = c.SQBits
	case "pq":
		cfg.QuantizerKind = core.QuantizerPQ
		cfg.PQNumSubspaces = c.PQNumSubspaces
		cfg.PQMaxIterations = c.PQMaxIterations
		cfg.PQConvergenceThreshold = c.PQConvergenceThreshold
	default:
		return core.Config{}, fmt.Errorf("unknown quantizer kind %q", c.QuantizerKind)
	}

	return cfg, nil
}
