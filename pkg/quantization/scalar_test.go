package quantization

import (
	"math"
	"math/rand"
	"testing"

	"github.com/vortexa-io/annvec/pkg/distance"
)

func trainingSet(n, dim int, seed int64) [][]float32 {
	rng := rand.New(rand.NewSource(seed))
	vectors := make([][]float32, n)
	for i := range vectors {
		v := make([]float32, dim)
		for d := range v {
			v[d] = rng.Float32()*20 - 10
		}
		vectors[i] = v
	}
	return vectors
}

func TestScalarQuantizerInvalidBits(t *testing.T) {
	if _, err := NewScalarQuantizer(8, 3, distance.Euclidean); err == nil {
		t.Error("expected error for bits not in {4,8,16}")
	}
	for _, bits := range []int{4, 8, 16} {
		if _, err := NewScalarQuantizer(8, bits, distance.Euclidean); err != nil {
			t.Errorf("bits=%d should be valid: %v", bits, err)
		}
	}
}

func TestScalarQuantizerRoundTrip(t *testing.T) {
	q, err := NewScalarQuantizer(16, 16, distance.Euclidean)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	vectors := trainingSet(200, 16, 1)
	if err := q.Train(vectors); err != nil {
		t.Fatalf("train: %v", err)
	}
	if !q.Trained() {
		t.Fatal("expected trained after Train")
	}

	codes, err := q.Encode(vectors[0])
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := q.Decode(codes)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}

	for d := range decoded {
		if math.Abs(float64(decoded[d]-vectors[0][d])) > 0.01 {
			t.Errorf("dim %d: decoded %v too far from original %v", d, decoded[d], vectors[0][d])
		}
	}
}

func TestScalarQuantizerUntrained(t *testing.T) {
	q, _ := NewScalarQuantizer(4, 8, distance.Cosine)
	if q.Trained() {
		t.Fatal("expected untrained before Train")
	}
	if _, err := q.Encode([]float32{1, 2, 3, 4}); err == nil {
		t.Error("expected error encoding before training")
	}
	if _, err := q.Decode([]uint16{1, 2, 3, 4}); err == nil {
		t.Error("expected error decoding before training")
	}
	if _, err := q.Distance([]float32{1, 2, 3, 4}, []uint16{1, 2, 3, 4}); err == nil {
		t.Error("expected error computing distance before training")
	}
}

func TestScalarQuantizerConstantDimension(t *testing.T) {
	q, _ := NewScalarQuantizer(4, 8, distance.Euclidean)
	vectors := [][]float32{
		{1, 5, 1, 5},
		{1, 5, 1, 5},
		{1, 5, 1, 5},
	}
	if err := q.Train(vectors); err != nil {
		t.Fatalf("train: %v", err)
	}

	codes, err := q.Encode([]float32{1, 5, 1, 5})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	decoded, err := q.Decode(codes)
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	for d, v := range decoded {
		if math.Abs(float64(v-vectors[0][d])) > 1e-3 {
			t.Errorf("dim %d: expected %v, got %v", d, vectors[0][d], v)
		}
	}
}

func TestScalarQuantizerCosineDistance(t *testing.T) {
	q, _ := NewScalarQuantizer(8, 16, distance.Cosine)
	vectors := trainingSet(100, 8, 2)
	_ = q.Train(vectors)

	codes, _ := q.Encode(vectors[0])
	d, err := q.Distance(vectors[0], codes)
	if err != nil {
		t.Fatalf("distance: %v", err)
	}
	if d < 0 || d > 0.05 {
		t.Errorf("expected near-zero self distance, got %v", d)
	}
}

func TestScalarQuantizerCompressionRatio(t *testing.T) {
	q, _ := NewScalarQuantizer(128, 8, distance.Euclidean)
	ratio := q.CompressionRatio()
	if ratio != 4.0 {
		t.Errorf("expected 4x compression at 8 bits, got %v", ratio)
	}
}
