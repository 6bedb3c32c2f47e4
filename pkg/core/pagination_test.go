package core

import (
	"context"
	"fmt"
	"testing"
)

// TestS5PaginationStability is scenario S5: insert 500 vectors, full
// iteration at page_size=50 yields 10 pages, 500 IDs total, no duplicates,
// equal to insert order.
func TestS5PaginationStability(t *testing.T) {
	ctx := context.Background()
	db := newReadyDB(t, flatConfig(2))

	vectors := make([][]float64, 500)
	for i := range vectors {
		vectors[i] = []float64{float64(i), float64(-i)}
	}
	ids, err := insertInChunks(ctx, db, vectors, maxBatchSize)
	if err != nil {
		t.Fatalf("insert: %v", err)
	}

	var all []string
	cursor := ""
	pages := 0
	for {
		page, err := db.ListIDsPaginated(ctx, 50, cursor)
		if err != nil {
			t.Fatalf("list ids paginated: %v", err)
		}
		pages++
		all = append(all, page.IDs...)
		if !page.HasMore {
			break
		}
		cursor = page.NextCursor
	}

	if pages != 10 {
		t.Errorf("expected 10 pages, got %d", pages)
	}
	if len(all) != 500 {
		t.Fatalf("expected 500 ids total, got %d", len(all))
	}
	seen := make(map[string]bool, len(all))
	for i, id := range all {
		if seen[id] {
			t.Fatalf("duplicate id %q at position %d", id, i)
		}
		seen[id] = true
		if id != ids[i] {
			t.Fatalf("position %d: expected insertion order id %q, got %q", i, ids[i], id)
		}
	}
}

func insertInChunks(ctx context.Context, db *VectorDB, vectors [][]float64, chunk int) ([]string, error) {
	var ids []string
	for start := 0; start < len(vectors); start += chunk {
		end := start + chunk
		if end > len(vectors) {
			end = len(vectors)
		}
		chunkIDs, err := db.Insert(ctx, vectors[start:end], nil)
		if err != nil {
			return nil, fmt.Errorf("chunk starting at %d: %w", start, err)
		}
		ids = append(ids, chunkIDs...)
	}
	return ids, nil
}

func TestListIDsPaginatedValidatesPageSize(t *testing.T) {
	ctx := context.Background()
	db := newReadyDB(t, flatConfig(2))
	if _, err := db.ListIDsPaginated(ctx, 0, ""); err == nil {
		t.Fatal("expected error for page_size=0")
	}
}
