package core

import (
	"context"
	"testing"

	"github.com/vortexa-io/annvec/pkg/distance"
	"github.com/vortexa-io/annvec/pkg/index"
)

func flatConfig(dim int) Config {
	c := DefaultConfig(dim)
	c.IndexKind = IndexFlat
	c.Flat = index.FlatConfig{Metric: distance.Euclidean}
	return c
}

func newReadyDB(t *testing.T, cfg Config) *VectorDB {
	t.Helper()
	db, err := New(cfg)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := db.Initialize(context.Background()); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	cfg := flatConfig(0)
	if _, err := New(cfg); err == nil {
		t.Fatal("expected error for zero dimension")
	}
}

func TestLifecycleStateMachine(t *testing.T) {
	ctx := context.Background()
	db, err := New(flatConfig(4))
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := db.Search(ctx, []float64{0, 0, 0, 0}, 1); err == nil {
		t.Fatal("expected NotInitialized error before Initialize")
	}

	if err := db.Initialize(ctx); err != nil {
		t.Fatalf("initialize: %v", err)
	}
	if err := db.Initialize(ctx); err == nil {
		t.Fatal("expected AlreadyInitialized on second Initialize")
	}

	if err := db.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if err := db.Close(); err != nil {
		t.Fatalf("second close should be a no-op, got: %v", err)
	}
	if _, err := db.Search(ctx, []float64{0, 0, 0, 0}, 1); err == nil {
		t.Fatal("expected error after close")
	}
}

func TestStatsShape(t *testing.T) {
	ctx := context.Background()
	db := newReadyDB(t, flatConfig(3))
	if _, err := db.Insert(ctx, [][]float64{{1, 2, 3}}, nil); err != nil {
		t.Fatalf("insert: %v", err)
	}

	stats, err := db.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	for _, key := range []string{"dimension", "vector_count", "index_type", "storage_type", "bytes_in_memory_estimate"} {
		if _, ok := stats[key]; !ok {
			t.Errorf("expected stats to contain %q", key)
		}
	}
	if stats["vector_count"] != 1 {
		t.Errorf("expected vector_count 1, got %v", stats["vector_count"])
	}
}
