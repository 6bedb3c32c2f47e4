package core

import (
	"context"
	"fmt"
)

// compactor is implemented by storage backends that support an explicit
// maintenance pass (Disk's VACUUM, which Hybrid passes through to its
// Disk). Mirrors the rangeSearcher type-assertion pattern in search.go: the
// capability isn't part of the shared Backend interface because Memory has
// nothing to compact.
type compactor interface {
	Compact(ctx context.Context) error
}

// Compact runs the configured storage backend's maintenance pass, per
// §4.3's optional compaction step. Returns an error if the backend
// doesn't support one (Memory).
func (db *VectorDB) Compact(ctx context.Context) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.requireReady("compact"); err != nil {
		return err
	}

	c, ok := db.storage.(compactor)
	if !ok {
		return wrapError("compact", KindStorage, fmt.Errorf("storage kind %v does not support compaction", db.config.StorageKind))
	}
	if err := c.Compact(ctx); err != nil {
		return wrapError("compact", KindStorage, err)
	}
	db.logger.Info("compacted storage backend")
	return nil
}

// Stats reports the facade-level shape required by §4.1 (dimension,
// vector_count, index_type, storage_type, bytes_in_memory_estimate) plus
// the index's own drill-down stats and, when a quantizer is attached, its
// compression stats. Supplemented per the teacher's
// HNSW.Stats()/IVFIndex.Stats()/LSHIndex.Stats() per-layer/per-cell/
// per-bucket detail, surfaced here under "index_stats".
func (db *VectorDB) Stats(ctx context.Context) (map[string]interface{}, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if err := db.requireReady("stats"); err != nil {
		return nil, err
	}

	storageStats, err := db.storage.Stats(ctx)
	if err != nil {
		return nil, wrapError("stats", KindStorage, err)
	}

	vectorCount := db.index.Size()
	bytesPerVector := db.config.Dimension * 4 // index holds float32 vectors
	stats := map[string]interface{}{
		"dimension":                db.config.Dimension,
		"vector_count":             vectorCount,
		"index_type":               db.config.IndexKind.String(),
		"storage_type":             db.config.StorageKind.String(),
		"bytes_in_memory_estimate": vectorCount * bytesPerVector,
		"index_stats":              db.index.Stats(),
		"storage_stats":            storageStats,
	}

	switch db.config.QuantizerKind {
	case QuantizerSQ:
		if db.sqQuantizer != nil {
			stats["quantizer_type"] = "sq"
			stats["quantizer_trained"] = db.sqQuantizer.Trained()
			stats["compression_ratio"] = db.sqQuantizer.CompressionRatio()
		}
	case QuantizerPQ:
		if db.pqQuantizer != nil {
			stats["quantizer_type"] = "pq"
			stats["quantizer_trained"] = db.pqQuantizer.Trained()
			stats["compression_ratio"] = db.pqQuantizer.CompressionRatio()
		}
	}

	return stats, nil
}
