package core

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"

	"github.com/vortexa-io/annvec/pkg/persistence"
	"github.com/vortexa-io/annvec/pkg/storage"
)

// snapshotKind tags the metadata envelope written by Snapshot, per §4.10's
// requirement that state/index snapshots carry a (kind, version) pair a
// Restore must check.
const snapshotKind = "annvec_db_snapshot"

// snapshotMeta is the tagged envelope data a Restore checks against the
// target database's own config before re-inserting anything, so a snapshot
// taken at one dimension can't be silently loaded into a database of
// another. Metric and IndexKind are recorded but not compared by Restore.
type snapshotMeta struct {
	Dimension int    `json:"dimension"`
	Metric    string `json:"metric"`
	IndexKind string `json:"index_kind"`
	Count     int    `json:"count"`
}

// Snapshot writes every stored record to path as a self-describing file: a
// length-prefixed, versioned JSON metadata envelope (pkg/persistence's
// snapshot codec) followed by the §4.10 binary vectors format (pkg/
// persistence's vectors codec), both snappy-compressed. This is the
// save_state/save_vectors half of §6's PersistenceManager surface; index
// state itself is not dumped node-by-node (per the tombstone-only,
// rebuild-by-reinsertion decision already recorded for HNSW deletes) — a
// Restore repopulates storage and index by replaying Insert, identically to
// how Initialize already rebuilds the index from a Disk/Hybrid backend.
func (db *VectorDB) Snapshot(ctx context.Context, path string) error {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if err := db.requireReady("snapshot"); err != nil {
		return err
	}

	var ids []string
	var vectors [][]float64
	cursor := ""
	for {
		page, err := db.storage.ScanPage(ctx, indexRebuildBatch, cursor)
		if err != nil {
			return wrapError("snapshot", KindStorage, err)
		}
		for _, rec := range page.Items {
			ids = append(ids, rec.ID)
			vectors = append(vectors, rec.Vector)
		}
		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}

	vecBytes, err := persistence.WriteVectors(ids, vectors, true)
	if err != nil {
		return wrapError("snapshot", KindPersistence, err)
	}

	meta := snapshotMeta{
		Dimension: db.config.Dimension,
		Metric:    db.config.Metric.String(),
		IndexKind: db.config.IndexKind.String(),
		Count:     len(ids),
	}
	metaBytes, err := persistence.WriteSnapshot(snapshotKind, meta, true)
	if err != nil {
		return wrapError("snapshot", KindPersistence, err)
	}

	var out bytes.Buffer
	if err := binary.Write(&out, binary.LittleEndian, uint32(len(metaBytes))); err != nil {
		return wrapError("snapshot", KindPersistence, err)
	}
	out.Write(metaBytes)
	out.Write(vecBytes)

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return wrapError("snapshot", KindPersistence, err)
		}
	}
	if err := os.WriteFile(path, out.Bytes(), 0o644); err != nil {
		return wrapError("snapshot", KindPersistence, err)
	}

	db.logger.Info("wrote snapshot", "path", path, "vectors", len(ids))
	return nil
}

// Restore reads a file written by Snapshot and replays every (id, vector)
// pair into storage and the index via the same write-ahead order Insert
// uses, skipping ids already present so Restore is safe to run against a
// partially populated database. The metadata envelope's dimension MUST
// match db's own configured dimension; a mismatch is rejected before any
// record is written (§4.10: "version/type tags MUST be checked and
// mismatches rejected").
func (db *VectorDB) Restore(ctx context.Context, path string) error {
	db.mu.Lock()
	defer db.mu.Unlock()

	if err := db.requireReady("restore"); err != nil {
		return err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return wrapError("restore", KindPersistence, err)
	}
	if len(data) < 4 {
		return wrapError("restore", KindPersistence, fmt.Errorf("snapshot file too short"))
	}

	metaLen := int(binary.LittleEndian.Uint32(data[:4]))
	if len(data) < 4+metaLen {
		return wrapError("restore", KindPersistence, fmt.Errorf("corrupt snapshot header"))
	}

	var meta snapshotMeta
	if err := persistence.ReadSnapshot(data[4:4+metaLen], snapshotKind, &meta); err != nil {
		return wrapError("restore", KindPersistence, err)
	}
	if meta.Dimension != db.config.Dimension {
		return wrapError("restore", KindPersistence, fmt.Errorf("snapshot dimension %d does not match database dimension %d", meta.Dimension, db.config.Dimension))
	}

	ids, vectors, err := persistence.ReadVectors(data[4+metaLen:])
	if err != nil {
		return wrapError("restore", KindPersistence, err)
	}

	restored := 0
	for i, id := range ids {
		exists, err := db.storage.Contains(ctx, id)
		if err != nil {
			return wrapError("restore", KindStorage, fmt.Errorf("record %d: %w", i, err))
		}
		if exists {
			continue
		}

		v := vectors[i]
		if err := db.storage.Put(ctx, storage.Record{ID: id, Vector: v}); err != nil {
			return wrapError("restore", KindStorage, fmt.Errorf("record %d: %w", i, err))
		}
		if err := db.index.Insert(id, toFloat32(v)); err != nil {
			_ = db.storage.Delete(ctx, id)
			return wrapError("restore", KindIndex, fmt.Errorf("record %d: %w", i, err))
		}
		restored++
	}

	db.logger.Info("restored snapshot", "path", path, "vectors_in_file", len(ids), "vectors_restored", restored)
	return nil
}
