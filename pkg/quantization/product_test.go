package quantization

import (
	"context"
	"math"
	"testing"
)

func TestProductQuantizerInvalidDimension(t *testing.T) {
	if _, err := NewProductQuantizer(10, 3, nil); err == nil {
		t.Error("expected error when dimension is not divisible by numSubspaces")
	}
}

func TestProductQuantizerTrainRequiresEnoughVectors(t *testing.T) {
	seed := int64(3)
	pq, err := NewProductQuantizer(16, 4, &seed)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	vectors := trainingSet(10, 16, 3)
	if err := pq.Train(context.Background(), vectors); err == nil {
		t.Error("expected error training with fewer than codebookSize vectors")
	}
}

func TestProductQuantizerRoundTrip(t *testing.T) {
	seed := int64(11)
	pq, err := NewProductQuantizer(16, 4, &seed)
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	vectors := trainingSet(600, 16, 11)
	if err := pq.Train(context.Background(), vectors); err != nil {
		t.Fatalf("train: %v", err)
	}
	if !pq.Trained() {
		t.Fatal("expected trained after Train")
	}

	codes, err := pq.Encode(vectors[0])
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if len(codes) != 4 {
		t.Fatalf("expected 4 subspace codes, got %d", len(codes))
	}

	decoded, err := pq.Decode(codes)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(decoded) != 16 {
		t.Fatalf("expected decoded dimension 16, got %d", len(decoded))
	}

	dist, err := pq.Distance(vectors[0], codes)
	if err != nil {
		t.Fatalf("distance: %v", err)
	}
	if dist < 0 {
		t.Errorf("distance must be non-negative, got %v", dist)
	}
}

func TestProductQuantizerUntrained(t *testing.T) {
	seed := int64(5)
	pq, _ := NewProductQuantizer(8, 2, &seed)
	if pq.Trained() {
		t.Fatal("expected untrained before Train")
	}
	if _, err := pq.Encode(make([]float32, 8)); err == nil {
		t.Error("expected error encoding before training")
	}
	if _, err := pq.Decode([]byte{0, 0}); err == nil {
		t.Error("expected error decoding before training")
	}
	if _, err := pq.Distance(make([]float32, 8), []byte{0, 0}); err == nil {
		t.Error("expected error computing distance before training")
	}
}

func TestProductQuantizerDistanceTableMatchesDistance(t *testing.T) {
	seed := int64(9)
	pq, _ := NewProductQuantizer(16, 4, &seed)
	vectors := trainingSet(600, 16, 9)
	if err := pq.Train(context.Background(), vectors); err != nil {
		t.Fatalf("train: %v", err)
	}

	query := vectors[3]
	codes, _ := pq.Encode(vectors[7])

	direct, err := pq.Distance(query, codes)
	if err != nil {
		t.Fatalf("distance: %v", err)
	}

	table, err := pq.DistanceTable(query)
	if err != nil {
		t.Fatalf("distance table: %v", err)
	}
	viaTable, err := table.Distance(codes)
	if err != nil {
		t.Fatalf("table distance: %v", err)
	}

	if math.Abs(float64(direct-viaTable)) > 1e-6 {
		t.Errorf("expected Distance and DistanceTable to agree, got %v vs %v", direct, viaTable)
	}
}

func TestProductQuantizerSerializeRoundTrip(t *testing.T) {
	seed := int64(13)
	pq, _ := NewProductQuantizer(16, 4, &seed)
	vectors := trainingSet(600, 16, 13)
	if err := pq.Train(context.Background(), vectors); err != nil {
		t.Fatalf("train: %v", err)
	}

	blob, err := pq.SerializeCodebooks()
	if err != nil {
		t.Fatalf("serialize: %v", err)
	}

	loaded := &ProductQuantizer{}
	if err := loaded.DeserializeCodebooks(blob); err != nil {
		t.Fatalf("deserialize: %v", err)
	}
	if !loaded.Trained() {
		t.Fatal("expected loaded quantizer to be trained")
	}
	if loaded.Dimension() != 16 {
		t.Errorf("expected dimension 16, got %d", loaded.Dimension())
	}

	codes, _ := pq.Encode(vectors[0])
	want, _ := pq.Decode(codes)
	got, err := loaded.Decode(codes)
	if err != nil {
		t.Fatalf("decode from loaded quantizer: %v", err)
	}
	for i := range want {
		if want[i] != got[i] {
			t.Errorf("dim %d: original decode %v, reloaded decode %v", i, want[i], got[i])
		}
	}
}

func TestProductQuantizerCancellation(t *testing.T) {
	seed := int64(17)
	pq, _ := NewProductQuantizer(16, 4, &seed)
	vectors := trainingSet(600, 16, 17)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if err := pq.Train(ctx, vectors); err == nil {
		t.Error("expected training to fail against an already-cancelled context")
	}
}

func TestProductQuantizerCompressionRatio(t *testing.T) {
	seed := int64(19)
	pq, _ := NewProductQuantizer(128, 8, &seed)
	ratio := pq.CompressionRatio()
	if ratio != 128.0 {
		t.Errorf("expected 128x compression (8 bytes/float * 128 dims / 8 subspaces), got %v", ratio)
	}
}
