package storage

import (
	"context"
	"fmt"
	"testing"
)

func TestMemoryPutGetDelete(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Init(ctx)

	rec := Record{ID: "a", Vector: []float64{1, 2, 3}, Metadata: map[string]interface{}{"k": "v"}}
	if err := m.Put(ctx, rec); err != nil {
		t.Fatalf("put: %v", err)
	}

	got, err := m.Get(ctx, "a")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got.ID != "a" || len(got.Vector) != 3 {
		t.Errorf("unexpected record: %+v", got)
	}

	if ok, _ := m.Contains(ctx, "a"); !ok {
		t.Error("expected contains true")
	}

	if err := m.Delete(ctx, "a"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := m.Get(ctx, "a"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound after delete, got %v", err)
	}
	if err := m.Delete(ctx, "a"); err != ErrNotFound {
		t.Errorf("expected ErrNotFound deleting already-removed id, got %v", err)
	}
}

func TestMemoryInsertionOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for i := 0; i < 5; i++ {
		_ = m.Put(ctx, Record{ID: fmt.Sprintf("id%d", i), Vector: []float64{float64(i)}})
	}

	ids, err := m.ListIDsInOrder(ctx)
	if err != nil {
		t.Fatalf("list ids: %v", err)
	}
	for i, id := range ids {
		if id != fmt.Sprintf("id%d", i) {
			t.Errorf("expected insertion order, got %v at %d", id, i)
		}
	}
}

func TestMemoryScanPagePagination(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	for i := 0; i < 10; i++ {
		_ = m.Put(ctx, Record{ID: fmt.Sprintf("id%d", i), Vector: []float64{float64(i)}})
	}

	var all []Record
	cursor := ""
	for {
		page, err := m.ScanPage(ctx, 3, cursor)
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
	for i, r := range all {
		if r.ID != fmt.Sprintf("id%d", i) {
			t.Errorf("expected id%d at position %d, got %s", i, i, r.ID)
		}
	}
}

func TestMemoryStats(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Put(ctx, Record{ID: "a", Vector: []float64{1}})
	_ = m.Put(ctx, Record{ID: "b", Vector: []float64{2}})

	stats, err := m.Stats(ctx)
	if err != nil {
		t.Fatalf("stats: %v", err)
	}
	if stats["vector_count"] != 2 {
		t.Errorf("expected vector_count 2, got %v", stats["vector_count"])
	}
	if stats["type"] != "memory" {
		t.Errorf("expected type memory, got %v", stats["type"])
	}
}

func TestMemoryReplacePreservesOrder(t *testing.T) {
	ctx := context.Background()
	m := NewMemory()
	_ = m.Put(ctx, Record{ID: "a", Vector: []float64{1}})
	_ = m.Put(ctx, Record{ID: "b", Vector: []float64{2}})
	_ = m.Put(ctx, Record{ID: "a", Vector: []float64{99}})

	ids, _ := m.ListIDsInOrder(ctx)
	if len(ids) != 2 || ids[0] != "a" || ids[1] != "b" {
		t.Errorf("expected order [a b] preserved after replace, got %v", ids)
	}

	got, _ := m.Get(ctx, "a")
	if got.Vector[0] != 99 {
		t.Errorf("expected replaced vector value 99, got %v", got.Vector)
	}
}
