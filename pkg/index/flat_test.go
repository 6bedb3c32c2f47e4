package index

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/vortexa-io/annvec/pkg/distance"
)

func TestFlatBasic(t *testing.T) {
	idx := NewFlat(4, FlatConfig{Metric: distance.Euclidean})

	vectors := map[string][]float32{
		"vec1": {1.0, 0.0, 0.0, 0.0},
		"vec2": {0.0, 1.0, 0.0, 0.0},
		"vec3": {0.0, 0.0, 1.0, 0.0},
		"vec4": {0.5, 0.5, 0.0, 0.0},
		"vec5": {0.5, 0.0, 0.5, 0.0},
	}
	for id, vec := range vectors {
		if err := idx.Insert(id, vec); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	if idx.Size() != 5 {
		t.Fatalf("expected size 5, got %d", idx.Size())
	}

	results, err := idx.Search([]float32{0.9, 0.1, 0.0, 0.0}, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}
	if results[0].ID != "vec1" {
		t.Errorf("expected first result vec1, got %s", results[0].ID)
	}
	for i := 1; i < len(results); i++ {
		if results[i].Distance < results[i-1].Distance {
			t.Error("distances not ascending")
		}
	}
}

func TestFlatCosine(t *testing.T) {
	idx := NewFlat(4, FlatConfig{Metric: distance.Cosine})

	vectors := map[string][]float32{
		"doc1": {1.0, 0.0, 0.0, 0.0},
		"doc2": {1.0, 1.0, 0.0, 0.0},
		"doc3": {0.0, 1.0, 0.0, 0.0},
		"doc4": {1.0, 0.0, 1.0, 0.0},
		"doc5": {1.0, 1.0, 1.0, 1.0},
	}
	for id, vec := range vectors {
		if err := idx.Insert(id, vec); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	results, err := idx.Search([]float32{1.0, 0.5, 0.0, 0.0}, 3)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) == 0 {
		t.Fatal("no results returned")
	}
	if results[0].ID != "doc2" && results[0].ID != "doc1" {
		t.Errorf("expected doc1 or doc2 closest, got %s", results[0].ID)
	}
}

func TestFlatRangeSearch(t *testing.T) {
	idx := NewFlat(2, FlatConfig{Metric: distance.Euclidean})

	points := []struct {
		id  string
		vec []float32
	}{
		{"origin", []float32{0.0, 0.0}},
		{"p1", []float32{1.0, 0.0}},
		{"p2", []float32{0.0, 1.0}},
		{"p3", []float32{1.0, 1.0}},
		{"p4", []float32{2.0, 0.0}},
		{"p5", []float32{0.0, 2.0}},
		{"p6", []float32{2.0, 2.0}},
	}
	for _, p := range points {
		if err := idx.Insert(p.id, p.vec); err != nil {
			t.Fatalf("insert %s: %v", p.id, err)
		}
	}

	results, err := idx.RangeSearch([]float32{0.0, 0.0}, 1.5)
	if err != nil {
		t.Fatalf("range search: %v", err)
	}
	if len(results) != 4 {
		t.Errorf("expected 4 points within radius 1.5, got %d", len(results))
	}
	for _, r := range results {
		if r.Distance > 1.5 {
			t.Errorf("point %s distance %v exceeds radius", r.ID, r.Distance)
		}
	}

	results2, err := idx.RangeSearch([]float32{0.0, 0.0}, 2.5)
	if err != nil {
		t.Fatalf("range search: %v", err)
	}
	if len(results2) != 6 {
		t.Errorf("expected 6 points within radius 2.5, got %d", len(results2))
	}
}

func TestFlatDelete(t *testing.T) {
	idx := NewFlat(2, FlatConfig{Metric: distance.Euclidean})
	_ = idx.Insert("v1", []float32{1.0, 0.0})
	_ = idx.Insert("v2", []float32{0.0, 1.0})
	_ = idx.Insert("v3", []float32{1.0, 1.0})

	if idx.Size() != 3 {
		t.Fatalf("expected size 3, got %d", idx.Size())
	}
	if err := idx.Delete("v2"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if idx.Size() != 2 {
		t.Errorf("expected size 2 after delete, got %d", idx.Size())
	}

	results, _ := idx.Search([]float32{0.0, 1.0}, 3)
	for _, r := range results {
		if r.ID == "v2" {
			t.Error("deleted vector v2 still appears in search results")
		}
	}
}

func TestFlatEdgeCases(t *testing.T) {
	idx := NewFlat(3, FlatConfig{Metric: distance.Euclidean})

	results, err := idx.Search([]float32{1.0, 0.0, 0.0}, 5)
	if err != nil || len(results) != 0 {
		t.Error("empty index should return empty results")
	}

	if err := idx.Insert("v1", []float32{1.0, 0.0}); err == nil {
		t.Error("expected dimension mismatch error")
	}

	_ = idx.Insert("v1", []float32{1.0, 0.0, 0.0})
	if _, err := idx.Search([]float32{1.0, 0.0}, 1); err == nil {
		t.Error("expected dimension mismatch error on search")
	}

	_ = idx.Insert("v2", []float32{0.0, 1.0, 0.0})
	results, _ = idx.Search([]float32{0.5, 0.5, 0.0}, 10)
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}
}

func TestFlatStats(t *testing.T) {
	idx := NewFlat(4, FlatConfig{Metric: distance.Cosine})
	_ = idx.Insert("v1", []float32{1.0, 0.0, 0.0, 0.0})
	_ = idx.Insert("v2", []float32{0.0, 1.0, 0.0, 0.0})

	stats := idx.Stats()
	if stats["type"] != "flat" {
		t.Errorf("expected type flat, got %v", stats["type"])
	}
	if stats["size"] != 2 {
		t.Errorf("expected size 2, got %v", stats["size"])
	}
	if stats["dimension"] != 4 {
		t.Errorf("expected dimension 4, got %v", stats["dimension"])
	}
	if stats["metric"] != "cosine" {
		t.Errorf("expected metric cosine, got %v", stats["metric"])
	}
}

func BenchmarkFlatInsert(b *testing.B) {
	idx := NewFlat(128, FlatConfig{Metric: distance.Euclidean})
	vector := make([]float32, 128)
	for i := range vector {
		vector[i] = rand.Float32()
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_ = idx.Insert(fmt.Sprintf("vec_%d", i), vector)
	}
}

func BenchmarkFlatSearch(b *testing.B) {
	idx := NewFlat(128, FlatConfig{Metric: distance.Euclidean})
	for i := 0; i < 1000; i++ {
		vector := make([]float32, 128)
		for j := range vector {
			vector[j] = rand.Float32()
		}
		_ = idx.Insert(fmt.Sprintf("vec_%d", i), vector)
	}
	query := make([]float32, 128)
	for i := range query {
		query[i] = rand.Float32()
	}
	b.ResetTimer()
	for i := 0; i < b.N; i++ {
		_, _ = idx.Search(query, 10)
	}
}
