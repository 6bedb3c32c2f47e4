package core

import (
	"context"
	"fmt"
)

// Page is a cursor-based view over live record IDs, in insertion order.
type Page struct {
	IDs        []string
	NextCursor string
	HasMore    bool
}

// ListIDsPaginated returns up to pageSize live IDs starting after cursor
// (empty cursor means start at the beginning), in insertion order. Fully
// iterating with any page size yields exactly the insertion-order sequence
// of live IDs (§8 property 8).
func (db *VectorDB) ListIDsPaginated(ctx context.Context, pageSize int, cursor string) (Page, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if err := db.requireReady("list_ids_paginated"); err != nil {
		return Page{}, err
	}
	if pageSize <= 0 {
		return Page{}, wrapError("list_ids_paginated", KindValidation, fmt.Errorf("page_size must be > 0, got %d", pageSize))
	}

	page, err := db.storage.ScanPage(ctx, pageSize, cursor)
	if err != nil {
		return Page{}, wrapError("list_ids_paginated", KindStorage, err)
	}

	ids := make([]string, len(page.Items))
	for i, rec := range page.Items {
		ids[i] = rec.ID
	}
	return Page{IDs: ids, NextCursor: page.NextCursor, HasMore: page.HasMore}, nil
}
