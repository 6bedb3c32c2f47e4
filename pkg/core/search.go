package core

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"

	"github.com/vortexa-io/annvec/pkg/index"
)

// maxK is the §7 validation limit on a single search's result count.
const maxK = 1000

// SearchResult is one ranked match: an ID, its distance from the query
// under the configured metric, and its stored metadata (if any).
type SearchResult struct {
	ID       string
	Distance float32
	Metadata map[string]interface{}
}

// Search returns the k closest live records to query, ascending by
// distance (fewer than k only if fewer records exist).
func (db *VectorDB) Search(ctx context.Context, query []float64, k int) ([]SearchResult, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()
	return db.searchLocked(ctx, query, k)
}

func (db *VectorDB) searchLocked(ctx context.Context, query []float64, k int) ([]SearchResult, error) {
	if err := db.requireReady("search"); err != nil {
		return nil, err
	}
	if k <= 0 || k > maxK {
		return nil, wrapError("search", KindValidation, fmt.Errorf("k must be in (0,%d], got %d", maxK, k))
	}
	if err := validateVector(query, db.config.Dimension); err != nil {
		return nil, wrapError("search", KindDimensionMismatch, err)
	}

	raw, err := db.index.Search(toFloat32(query), k)
	if err != nil {
		return nil, wrapError("search", KindIndex, err)
	}

	results := make([]SearchResult, 0, len(raw))
	for _, r := range raw {
		meta, err := db.metadataFor(ctx, r.ID)
		if err != nil {
			continue // record vanished between index hit and storage join; skip rather than fail the whole search
		}
		results = append(results, SearchResult{ID: r.ID, Distance: r.Distance, Metadata: meta})
	}
	return results, nil
}

func (db *VectorDB) metadataFor(ctx context.Context, id string) (map[string]interface{}, error) {
	rec, err := db.storage.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	return rec.Metadata, nil
}

// batchSearchWorkers caps the fan-out for BatchSearch so a large batch
// doesn't spawn one goroutine per query.
const batchSearchWorkers = 8

// BatchSearch runs every query under a single read-lock acquisition,
// fanning them out across a bounded worker pool via errgroup so one
// cancelled/failed query stops the others at the next query boundary,
// per §5's cancellation granularity.
func (db *VectorDB) BatchSearch(ctx context.Context, queries [][]float64, k int) ([][]SearchResult, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if err := db.requireReady("batch_search"); err != nil {
		return nil, err
	}
	if len(queries) > maxBatchSize {
		return nil, wrapError("batch_search", KindValidation, fmt.Errorf("batch size %d exceeds limit %d", len(queries), maxBatchSize))
	}

	out := make([][]SearchResult, len(queries))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(batchSearchWorkers)
	for i, q := range queries {
		i, q := i, q
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results, err := db.searchLocked(gctx, q, k)
			if err != nil {
				return err
			}
			out[i] = results
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// rangeSearcher is implemented by index families that support radius
// queries (Flat always; LSH via a union of the query's own bucket in each
// table). Supplemented
// per spec.md's silence on range queries, mirrored from the teacher's
// FlatIndex.RangeSearch / LSHIndex.RangeSearch shape.
type rangeSearcher interface {
	RangeSearch(query []float32, radius float32) ([]index.Result, error)
}

// RangeSearch returns every live record within radius of query, ascending
// by distance. Returns an IndexError if the configured index family does
// not support range queries.
func (db *VectorDB) RangeSearch(ctx context.Context, query []float64, radius float32) ([]SearchResult, error) {
	db.mu.RLock()
	defer db.mu.RUnlock()

	if err := db.requireReady("range_search"); err != nil {
		return nil, err
	}
	if err := validateVector(query, db.config.Dimension); err != nil {
		return nil, wrapError("range_search", KindDimensionMismatch, err)
	}

	rs, ok := db.index.(rangeSearcher)
	if !ok {
		return nil, wrapError("range_search", KindIndex, fmt.Errorf("index kind %v does not support range search", db.config.IndexKind))
	}

	raw, err := rs.RangeSearch(toFloat32(query), radius)
	if err != nil {
		return nil, wrapError("range_search", KindIndex, err)
	}

	results := make([]SearchResult, 0, len(raw))
	for _, r := range raw {
		meta, err := db.metadataFor(ctx, r.ID)
		if err != nil {
			continue
		}
		results = append(results, SearchResult{ID: r.ID, Distance: r.Distance, Metadata: meta})
	}
	return results, nil
}
