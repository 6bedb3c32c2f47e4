package core

import (
	"context"
	"fmt"
	"math"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/vortexa-io/annvec/pkg/storage"
)

// batchUpdateWorkers caps BatchUpdate's fan-out, mirroring BatchSearch.
const batchUpdateWorkers = 8

// §7 validation limits.
const (
	maxBatchSize        = 1000
	maxMetadataBytes     = 1 << 20 // 1 MiB
	maxMetadataEntries   = 100
	maxMetadataKeyChars  = 256
	maxMetadataValChars  = 10000
	maxIDChars           = 256
)

// generateID mints a fresh, opaque record ID. Grounded on the teacher's
// generateID() -> uuid.New().String() pattern; collisions are astronomically
// unlikely and not checked against existing IDs beyond the usual UUID
// guarantees.
func generateID() string {
	return uuid.New().String()
}

func validateVector(v []float64, dimension int) error {
	if len(v) != dimension {
		return fmt.Errorf("vector has dimension %d, expected %d", len(v), dimension)
	}
	for i, x := range v {
		if math.IsNaN(x) || math.IsInf(x, 0) {
			return fmt.Errorf("vector contains NaN/Inf at index %d", i)
		}
	}
	return nil
}

func validateMetadata(m map[string]interface{}) error {
	if m == nil {
		return nil
	}
	if len(m) > maxMetadataEntries {
		return fmt.Errorf("metadata has %d entries, exceeds limit %d", len(m), maxMetadataEntries)
	}
	total := 0
	for k, v := range m {
		if len(k) > maxMetadataKeyChars {
			return fmt.Errorf("metadata key %q exceeds %d chars", k, maxMetadataKeyChars)
		}
		total += len(k)
		if s, ok := v.(string); ok {
			if len(s) > maxMetadataValChars {
				return fmt.Errorf("metadata value for key %q exceeds %d chars", k, maxMetadataValChars)
			}
			total += len(s)
		} else {
			total += 32 // rough accounting for non-string scalars/lists/maps
		}
	}
	if total > maxMetadataBytes {
		return fmt.Errorf("metadata total size exceeds %d bytes", maxMetadataBytes)
	}
	return nil
}

func toFloat32(v []float64) []float32 {
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(x)
	}
	return out
}

func toFloat64(v []float32) []float64 {
	out := make([]float64, len(v))
	for i, x := range v {
		out[i] = float64(x)
	}
	return out
}

// Insert validates and stores each (vector, metadata) pair, returning their
// freshly generated IDs in input order. Preconditions (every vector has
// length D; metadata, if present, has the same length as vectors) are
// checked before anything is written. Records are then applied one at a
// time: a record whose index step fails has its storage write undone and
// the error is returned, while records applied before it stay in both
// storage and the index (§4.1).
func (db *VectorDB) Insert(ctx context.Context, vectors [][]float64, metadatas []map[string]interface{}) ([]string, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.requireReady("insert"); err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return nil, wrapError("insert", KindValidation, fmt.Errorf("no vectors given"))
	}
	if len(vectors) > maxBatchSize {
		return nil, wrapError("insert", KindValidation, fmt.Errorf("batch size %d exceeds limit %d", len(vectors), maxBatchSize))
	}
	if metadatas != nil && len(metadatas) != len(vectors) {
		return nil, wrapError("insert", KindValidation, fmt.Errorf("metadata length %d does not match vectors length %d", len(metadatas), len(vectors)))
	}

	for i, v := range vectors {
		if err := validateVector(v, db.config.Dimension); err != nil {
			return nil, wrapError("insert", KindDimensionMismatch, fmt.Errorf("vector %d: %w", i, err))
		}
		if metadatas != nil {
			if err := validateMetadata(metadatas[i]); err != nil {
				return nil, wrapError("insert", KindValidation, fmt.Errorf("metadata %d: %w", i, err))
			}
		}
	}

	ids := make([]string, len(vectors))
	for i := range vectors {
		ids[i] = generateID()
	}

	// Apply each record atomically: storage first, then index; if the
	// index step fails, compensate by removing the just-written storage
	// record (§7's write-ahead order).
	for i, v := range vectors {
		var meta map[string]interface{}
		if metadatas != nil {
			meta = metadatas[i]
		}
		rec := storage.Record{ID: ids[i], Vector: v, Metadata: meta}
		if err := db.storage.Put(ctx, rec); err != nil {
			return nil, wrapError("insert", KindStorage, fmt.Errorf("record %d: %w", i, err))
		}
		if err := db.index.Insert(ids[i], toFloat32(v)); err != nil {
			_ = db.storage.Delete(ctx, ids[i])
			return nil, wrapError("insert", KindIndex, fmt.Errorf("record %d: %w", i, err))
		}
	}

	db.logger.Debug("inserted records", "count", len(ids))
	return ids, nil
}

// Update replaces id's vector and/or metadata. A nil vector leaves the
// stored vector unchanged; a nil metadata leaves stored metadata unchanged.
// If id is absent, returns NotFound without side effects. A vector change
// deletes and reinserts the index node at the same ID, since indices here
// have no in-place node replacement.
func (db *VectorDB) Update(ctx context.Context, id string, vector []float64, metadata map[string]interface{}) error {
	db.mu.Lock()
	defer db.mu.Unlock()
	return db.updateLocked(ctx, id, vector, metadata)
}

func (db *VectorDB) updateLocked(ctx context.Context, id string, vector []float64, metadata map[string]interface{}) error {
	if err := db.requireReady("update"); err != nil {
		return err
	}
	if id == "" {
		return wrapError("update", KindValidation, fmt.Errorf("id must not be empty"))
	}

	existing, err := db.storage.Get(ctx, id)
	if err != nil {
		if err == storage.ErrNotFound {
			return wrapError("update", KindNotFound, fmt.Errorf("id %q: %w", id, ErrNotFound))
		}
		return wrapError("update", KindStorage, err)
	}

	newVector := existing.Vector
	if vector != nil {
		if err := validateVector(vector, db.config.Dimension); err != nil {
			return wrapError("update", KindDimensionMismatch, err)
		}
		newVector = vector
	}
	newMeta := existing.Metadata
	if metadata != nil {
		if err := validateMetadata(metadata); err != nil {
			return wrapError("update", KindValidation, err)
		}
		newMeta = metadata
	}

	if err := db.storage.Put(ctx, storage.Record{ID: id, Vector: newVector, Metadata: newMeta}); err != nil {
		return wrapError("update", KindStorage, err)
	}

	if vector != nil {
		if err := db.index.Delete(id); err != nil {
			db.logger.Warn("update: index delete failed before reinsert", "id", id, "error", err)
		}
		if err := db.index.Insert(id, toFloat32(newVector)); err != nil {
			return wrapError("update", KindIndex, err)
		}
	}

	return nil
}

// BatchUpdate applies each update under a single write-lock acquisition,
// semantically equivalent to looping Update. Per-item success is reported;
// a failure on one item does not roll back the others.
func (db *VectorDB) BatchUpdate(ctx context.Context, ids []string, vectors []([]float64), metadatas []map[string]interface{}) ([]bool, error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.requireReady("batch_update"); err != nil {
		return nil, err
	}
	if len(ids) > maxBatchSize {
		return nil, wrapError("batch_update", KindValidation, fmt.Errorf("batch size %d exceeds limit %d", len(ids), maxBatchSize))
	}

	succeeded := make([]bool, len(ids))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchUpdateWorkers)
	for i, id := range ids {
		i, id := i, id
		var v []float64
		if vectors != nil {
			v = vectors[i]
		}
		var m map[string]interface{}
		if metadatas != nil {
			m = metadatas[i]
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			if err := db.updateLocked(gctx, id, v, m); err != nil {
				db.logger.Warn("batch_update: item failed", "id", id, "error", err)
				succeeded[i] = false
				return nil
			}
			succeeded[i] = true
			return nil
		})
	}
	// Per-item failures are recorded in succeeded, not propagated as the
	// overall error; g.Wait() only surfaces ctx cancellation, which stops
	// the batch before the next item starts.
	if err := g.Wait(); err != nil {
		return nil, wrapError("batch_update", KindValidation, err)
	}
	return succeeded, nil
}

// Delete removes each id from both storage and index. Missing IDs yield a
// per-ID failure but do not roll back the IDs that did succeed.
// allSucceeded reports whether every id in the request was removed.
func (db *VectorDB) Delete(ctx context.Context, ids []string) (succeeded map[string]bool, allSucceeded bool, err error) {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.requireReady("delete"); err != nil {
		return nil, false, err
	}
	if len(ids) > maxBatchSize {
		return nil, false, wrapError("delete", KindValidation, fmt.Errorf("batch size %d exceeds limit %d", len(ids), maxBatchSize))
	}

	succeeded = make(map[string]bool, len(ids))
	allSucceeded = true
	for _, id := range ids {
		storageErr := db.storage.Delete(ctx, id)
		indexErr := db.index.Delete(id)
		// A record is considered deleted once storage no longer has it,
		// regardless of whether the index had already dropped it lazily.
		ok := storageErr == nil
		succeeded[id] = ok
		if !ok {
			allSucceeded = false
			db.logger.Warn("delete: item failed", "id", id, "storage_error", storageErr, "index_error", indexErr)
		}
	}
	return succeeded, allSucceeded, nil
}
