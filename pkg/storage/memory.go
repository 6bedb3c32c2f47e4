package storage

import (
	"context"
	"fmt"
	"strconv"
	"sync"
)

// Memory is an insertion-ordered in-memory backend. Get and Put are O(1);
// Delete is linear in the number of stored ids, since it removes id from
// the order slice.
type Memory struct {
	mu      sync.RWMutex
	records map[string]Record
	order   []string // insertion order, live ids only
}

// NewMemory creates an empty Memory backend.
func NewMemory() *Memory {
	return &Memory{records: make(map[string]Record)}
}

// Init is a no-op; Memory has no external resource to acquire.
func (m *Memory) Init(ctx context.Context) error { return nil }

// Get returns the record stored under id.
func (m *Memory) Get(ctx context.Context, id string) (Record, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.records[id]
	if !ok {
		return Record{}, ErrNotFound
	}
	return cloneRecord(r), nil
}

// Put inserts or replaces the record under rec.ID. A replace keeps the
// original insertion-order position.
func (m *Memory) Put(ctx context.Context, rec Record) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[rec.ID]; !exists {
		m.order = append(m.order, rec.ID)
	}
	m.records[rec.ID] = cloneRecord(rec)
	return nil
}

// Delete removes id, preserving order for remaining entries.
func (m *Memory) Delete(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, exists := m.records[id]; !exists {
		return ErrNotFound
	}
	delete(m.records, id)
	for i, oid := range m.order {
		if oid == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			break
		}
	}
	return nil
}

// Contains reports whether id is stored.
func (m *Memory) Contains(ctx context.Context, id string) (bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	_, ok := m.records[id]
	return ok, nil
}

// ListIDsInOrder returns every stored ID in insertion order.
func (m *Memory) ListIDsInOrder(ctx context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]string, len(m.order))
	copy(out, m.order)
	return out, nil
}

// ScanPage returns up to pageSize records starting after cursor (an opaque
// encoding of a position in insertion order; empty means start at the
// beginning).
func (m *Memory) ScanPage(ctx context.Context, pageSize int, cursor string) (Page, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	start := 0
	if cursor != "" {
		pos, err := strconv.Atoi(cursor)
		if err != nil || pos < 0 {
			return Page{}, fmt.Errorf("storage: invalid cursor %q", cursor)
		}
		start = pos
	}
	if start > len(m.order) {
		start = len(m.order)
	}

	end := start + pageSize
	hasMore := end < len(m.order)
	if end > len(m.order) {
		end = len(m.order)
	}

	items := make([]Record, 0, end-start)
	for _, id := range m.order[start:end] {
		items = append(items, cloneRecord(m.records[id]))
	}

	page := Page{Items: items, HasMore: hasMore}
	if hasMore {
		page.NextCursor = strconv.Itoa(end)
	}
	return page, nil
}

// Stats reports the live record count and backend type.
func (m *Memory) Stats(ctx context.Context) (map[string]interface{}, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return map[string]interface{}{
		"type":         "memory",
		"vector_count": len(m.records),
	}, nil
}

// Close is a no-op; Memory holds no external resource.
func (m *Memory) Close() error { return nil }
