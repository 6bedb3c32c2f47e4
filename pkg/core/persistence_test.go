package core

import (
	"context"
	"path/filepath"
	"testing"
)

func TestSnapshotRestoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	src := newReadyDB(t, flatConfig(3))

	vectors := [][]float64{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}
	ids, err := src.Insert(ctx, vectors, nil)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	path := filepath.Join(t.TempDir(), "snap.bin")
	if err := src.Snapshot(ctx, path); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	dst := newReadyDB(t, flatConfig(3))
	if err := dst.Restore(ctx, path); err != nil {
		t.Fatalf("restore: %v", err)
	}

	stats, err := dst.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats["vector_count"] != len(ids) {
		t.Errorf("expected vector_count %d after restore, got %v", len(ids), stats["vector_count"])
	}

	results, err := dst.Search(ctx, []float64{1, 0, 0}, 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 1 || results[0].ID != ids[0] {
		t.Errorf("expected restored search to find %s, got %v", ids[0], results)
	}
}

func TestRestoreRejectsDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	src := newReadyDB(t, flatConfig(3))
	if _, err := src.Insert(ctx, [][]float64{{1, 2, 3}}, nil); err != nil {
		t.Fatalf("insert: %v", err)
	}

	path := filepath.Join(t.TempDir(), "snap.bin")
	if err := src.Snapshot(ctx, path); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	dst := newReadyDB(t, flatConfig(4))
	if err := dst.Restore(ctx, path); err == nil {
		t.Fatal("expected dimension-mismatch error restoring into a differently-dimensioned database")
	}
}

func TestRestoreSkipsExistingIDs(t *testing.T) {
	ctx := context.Background()
	src := newReadyDB(t, flatConfig(2))
	ids, err := src.Insert(ctx, [][]float64{{1, 1}}, nil)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	path := filepath.Join(t.TempDir(), "snap.bin")
	if err := src.Snapshot(ctx, path); err != nil {
		t.Fatalf("snapshot: %v", err)
	}

	// Restoring into the same database it came from should be a no-op, not
	// an id-already-exists error.
	if err := src.Restore(ctx, path); err != nil {
		t.Fatalf("restore into source db: %v", err)
	}

	stats, err := src.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats["vector_count"] != len(ids) {
		t.Errorf("expected vector_count unchanged at %d, got %v", len(ids), stats["vector_count"])
	}
}
