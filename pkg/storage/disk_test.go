package storage

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
)

func newTestDisk(t *testing.T) *Disk {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	d := NewDisk(path)
	if err := d.Init(context.Background()); err != nil {
		t.Fatalf("init: %v", err)
	}
	t.Cleanup(func() { _ = d.Close() })
	return d
}

func TestDiskPutGetDelete(t *testing.T) {
	ctx := context.Background()
	d := newTestDisk(t)

	rec := Record{ID: "a", Vector: []float64{1, 2, 3}, Metadata: map[string]interface{}{"k": "v"}}
	if err := d.Put(ctx, rec); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := d.Get(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != "a" || len(got.Vector) != 3 || got.Vector[1] != 2 {
		t.Errorf("unexpected record: %+v", got)
	}
	if got.Metadata["k"] != "v" {
		t.Errorf("expected metadata k=v, got %v", got.Metadata)
	}

	if err := d.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := d.Get(ctx, "a"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := d.Delete(ctx, "a"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound deleting already-removed id, got %v", err)
	}
}

func TestDiskTombstoneThenCompact(t *testing.T) {
	ctx := context.Background()
	d := newTestDisk(t)

	_ = d.Put(ctx, Record{ID: "a", Vector: []float64{1}})
	_ = d.Delete(ctx, "a")

	stats, _ := d.Stats(ctx)
	if stats["tombstones"] != 1 {
		t.Errorf("expected 1 tombstone before compact, got %v", stats["tombstones"])
	}

	if err := d.Compact(ctx); err != nil {
		t.Fatalf("compact: %v", err)
	}

	stats, _ = d.Stats(ctx)
	if stats["tombstones"] != 0 {
		t.Errorf("expected 0 tombstones after compact, got %v", stats["tombstones"])
	}
}

func TestDiskInsertionOrderAndPagination(t *testing.T) {
	ctx := context.Background()
	d := newTestDisk(t)
	for i := 0; i < 10; i++ {
		_ = d.Put(ctx, Record{ID: fmt.Sprintf("id%d", i), Vector: []float64{float64(i)}})
	}

	ids, err := d.ListIDsInOrder(ctx)
	if err != nil {
		t.Fatalf("list ids: %v", err)
	}
	for i, id := range ids {
		if id != fmt.Sprintf("id%d", i) {
			t.Errorf("expected insertion order, got %v at %d", id, i)
		}
	}

	var all []Record
	cursor := ""
	for {
		page, err := d.ScanPage(ctx, 4, cursor)
		if err != nil {
			t.Fatalf("scan page: %v", err)
		}
		all = append(all, page.Items...)
		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}
	if len(all) != 10 {
		t.Fatalf("expected 10 records across pages, got %d", len(all))
	}
}

func TestDiskUpdatePreservesOrder(t *testing.T) {
	ctx := context.Background()
	d := newTestDisk(t)
	_ = d.Put(ctx, Record{ID: "a", Vector: []float64{1}})
	_ = d.Put(ctx, Record{ID: "b", Vector: []float64{2}})
	_ = d.Put(ctx, Record{ID: "a", Vector: []float64{99}})

	ids, _ := d.ListIDsInOrder(ctx)
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("expected order [a b] preserved after replace, got %v", ids)
	}

	got, _ := d.Get(ctx, "a")
	if got.Vector[0] != 99 {
		t.Errorf("expected replaced vector value 99, got %v", got.Vector)
	}
}

func TestDiskStatsType(t *testing.T) {
	d := newTestDisk(t)
	stats, err := d.Stats(context.Background())
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats["type"] != "disk" {
		t.Errorf("expected type disk, got %v", stats["type"])
	}
}
