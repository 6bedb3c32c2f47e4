package persistence

import "testing"

type hnswSnapshotData struct {
	M               int            `json:"M"`
	EfConstruction  int            `json:"efConstruction"`
	EfSearch        int            `json:"efSearch"`
	EntryPointID    string         `json:"entry_point_id"`
	NeighborsByNode map[string]int `json:"per_node_neighbors_by_layer"`
	Tombstones      []string       `json:"tombstones"`
}

func TestSnapshotRoundTrip(t *testing.T) {
	want := hnswSnapshotData{
		M:              16,
		EfConstruction: 200,
		EfSearch:       50,
		EntryPointID:   "node-1",
		NeighborsByNode: map[string]int{
			"node-1": 3,
			"node-2": 5,
		},
		Tombstones: []string{"node-7"},
	}

	for _, compress := range []bool{false, true} {
		data, err := WriteSnapshot("hnsw", want, compress)
		if err != nil {
			t.Fatalf("write (compress=%v): %v", compress, err)
		}
		var got hnswSnapshotData
		if err := ReadSnapshot(data, "hnsw", &got); err != nil {
			t.Fatalf("read (compress=%v): %v", compress, err)
		}
		if got.M != want.M || got.EntryPointID != want.EntryPointID || len(got.Tombstones) != 1 {
			t.Errorf("round trip mismatch: got %+v", got)
		}
	}
}

func TestSnapshotKindMismatchRejected(t *testing.T) {
	data, err := WriteSnapshot("hnsw", hnswSnapshotData{M: 8}, false)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	var got hnswSnapshotData
	if err := ReadSnapshot(data, "ivf", &got); err == nil {
		t.Fatal("expected error for kind mismatch")
	}
}

func TestSnapshotVersionMismatchRejected(t *testing.T) {
	data, err := WriteSnapshot("hnsw", hnswSnapshotData{M: 8}, false)
	if err != nil {
		t.Fatalf("write: %v", err)
	}
	// Corrupt the version field embedded in the JSON envelope.
	corrupted := make([]byte, len(data))
	copy(corrupted, data)
	for i := 0; i < len(corrupted)-9; i++ {
		if string(corrupted[i:i+9]) == `"version"` {
			corrupted[i+10] = '9'
			break
		}
	}
	var got hnswSnapshotData
	if err := ReadSnapshot(corrupted, "hnsw", &got); err == nil {
		t.Fatal("expected error for version mismatch")
	}
}

func TestSnapshotTruncated(t *testing.T) {
	var got hnswSnapshotData
	if err := ReadSnapshot(nil, "hnsw", &got); err == nil {
		t.Fatal("expected error for empty snapshot data")
	}
}
