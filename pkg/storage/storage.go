// Package storage implements the record-storage backends behind a database
// facade: an in-memory map, a SQLite-backed append log, and an LRU cache
// fronting the latter, per §4.3.
package storage

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get/Delete when id is absent.
var ErrNotFound = errors.New("storage: record not found")

// Record is one stored entity: an ID, its vector, and optional metadata.
// Vectors are stored as float64 per §3's data model; the index layer
// narrows to float32 at its own boundary.
type Record struct {
	ID       string
	Vector   []float64
	Metadata map[string]interface{}
}

// Page is a cursor-based view over an ordered sequence of records.
type Page struct {
	Items      []Record
	NextCursor string
	HasMore    bool
}

// Backend is the storage contract every backend type ({Memory, Disk,
// Hybrid}) implements, per §4.3.
type Backend interface {
	Init(ctx context.Context) error
	Get(ctx context.Context, id string) (Record, error)
	Put(ctx context.Context, rec Record) error
	Delete(ctx context.Context, id string) error
	Contains(ctx context.Context, id string) (bool, error)
	ListIDsInOrder(ctx context.Context) ([]string, error)
	ScanPage(ctx context.Context, pageSize int, cursor string) (Page, error)
	Stats(ctx context.Context) (map[string]interface{}, error)
	Close() error
}

func cloneMetadata(m map[string]interface{}) map[string]interface{} {
	if m == nil {
		return nil
	}
	out := make(map[string]interface{}, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func cloneVector(v []float64) []float64 {
	out := make([]float64, len(v))
	copy(out, v)
	return out
}

func cloneRecord(r Record) Record {
	return Record{ID: r.ID, Vector: cloneVector(r.Vector), Metadata: cloneMetadata(r.Metadata)}
}
