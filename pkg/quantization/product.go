package quantization

import (
	"context"
	"encoding/binary"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"
)

// codebookSize is K from §4.9 — one byte per subspace code.
const codebookSize = 256

// ProductQuantizer partitions a vector into M subspaces and learns a
// 256-centroid codebook per subspace via k-means++, per §4.9. Encoding maps
// each subvector to its nearest centroid's byte index; asymmetric distance
// leaves the query unquantized and sums per-subspace table lookups against
// quantized database codes.
type ProductQuantizer struct {
	mu sync.RWMutex

	dimension    int
	numSubspaces int
	subDim       int
	rng          *rand.Rand

	codebooks [][][]float32 // [subspace][centroid][subDim]
	trained   bool
}

// NewProductQuantizer creates an untrained PQ instance. dimension must be
// divisible by numSubspaces.
func NewProductQuantizer(dimension, numSubspaces int, seed *int64) (*ProductQuantizer, error) {
	if numSubspaces < 1 || dimension%numSubspaces != 0 {
		return nil, fmt.Errorf("quantization: dimension %d must be divisible by numSubspaces %d", dimension, numSubspaces)
	}

	s := time.Now().UnixNano()
	if seed != nil {
		s = *seed
	}
	return &ProductQuantizer{
		dimension:    dimension,
		numSubspaces: numSubspaces,
		subDim:       dimension / numSubspaces,
		rng:          rand.New(rand.NewSource(s)),
		codebooks:    make([][][]float32, numSubspaces),
	}, nil
}

// Dimension returns the vector width this quantizer was built for.
func (pq *ProductQuantizer) Dimension() int { return pq.dimension }

// Trained reports whether Train has run.
func (pq *ProductQuantizer) Trained() bool {
	pq.mu.RLock()
	defer pq.mu.RUnlock()
	return pq.trained
}

// Train learns one 256-centroid k-means++ codebook per subspace,
// independently. ctx is checked between subspaces and inside each
// subspace's k-means passes, so a cancellation stops training at the next
// pass boundary rather than mid-vector.
func (pq *ProductQuantizer) Train(ctx context.Context, vectors [][]float32) error {
	if len(vectors) < codebookSize {
		return fmt.Errorf("quantization: need at least %d training vectors, got %d", codebookSize, len(vectors))
	}

	pq.mu.Lock()
	defer pq.mu.Unlock()

	codebooks := make([][][]float32, pq.numSubspaces)
	for m := 0; m < pq.numSubspaces; m++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		start := m * pq.subDim
		end := start + pq.subDim
		subvectors := make([][]float32, len(vectors))
		for i, v := range vectors {
			if len(v) != pq.dimension {
				return fmt.Errorf("quantization: vector dimension %d doesn't match quantizer dimension %d", len(v), pq.dimension)
			}
			subvectors[i] = v[start:end]
		}

		centroids, err := KMeansPP(ctx, subvectors, codebookSize, 25, 1e-4, pq.rng)
		if err != nil {
			return fmt.Errorf("quantization: k-means failed for subspace %d: %w", m, err)
		}
		codebooks[m] = centroids
	}

	pq.codebooks = codebooks
	pq.trained = true
	return nil
}

// Encode maps each subvector of vector to its nearest centroid's byte index.
func (pq *ProductQuantizer) Encode(vector []float32) ([]byte, error) {
	pq.mu.RLock()
	defer pq.mu.RUnlock()

	if !pq.trained {
		return nil, fmt.Errorf("quantization: product quantizer not trained")
	}
	if len(vector) != pq.dimension {
		return nil, fmt.Errorf("quantization: vector dimension %d doesn't match quantizer dimension %d", len(vector), pq.dimension)
	}

	codes := make([]byte, pq.numSubspaces)
	for m := 0; m < pq.numSubspaces; m++ {
		start := m * pq.subDim
		subvec := vector[start : start+pq.subDim]

		best := 0
		bestDist := float32(math.MaxFloat32)
		for c, centroid := range pq.codebooks[m] {
			d := squaredEuclidean(subvec, centroid)
			if d < bestDist {
				bestDist = d
				best = c
			}
		}
		codes[m] = byte(best)
	}
	return codes, nil
}

// Decode reconstructs an approximate vector by concatenating the codebook
// centroids named by codes.
func (pq *ProductQuantizer) Decode(codes []byte) ([]float32, error) {
	pq.mu.RLock()
	defer pq.mu.RUnlock()

	if !pq.trained {
		return nil, fmt.Errorf("quantization: product quantizer not trained")
	}
	if len(codes) != pq.numSubspaces {
		return nil, fmt.Errorf("quantization: codes length %d doesn't match numSubspaces %d", len(codes), pq.numSubspaces)
	}

	vector := make([]float32, pq.dimension)
	for m, code := range codes {
		centroid := pq.codebooks[m][code]
		copy(vector[m*pq.subDim:(m+1)*pq.subDim], centroid)
	}
	return vector, nil
}

// Distance computes the asymmetric distance between an unquantized query
// and quantized database codes: a per-subspace lookup table of squared
// distances from the query's subvectors to every centroid, summed across
// subspaces and square-rooted, per §4.9.
func (pq *ProductQuantizer) Distance(query []float32, codes []byte) (float32, error) {
	table, err := pq.DistanceTable(query)
	if err != nil {
		return 0, err
	}
	return table.Distance(codes)
}

// DistanceTable precomputes per-subspace centroid distances for query so
// many codes can be scored against it without recomputing the table.
func (pq *ProductQuantizer) DistanceTable(query []float32) (*PQDistanceTable, error) {
	pq.mu.RLock()
	defer pq.mu.RUnlock()

	if !pq.trained {
		return nil, fmt.Errorf("quantization: product quantizer not trained")
	}
	if len(query) != pq.dimension {
		return nil, fmt.Errorf("quantization: vector dimension %d doesn't match quantizer dimension %d", len(query), pq.dimension)
	}

	table := make([][]float32, pq.numSubspaces)
	for m := 0; m < pq.numSubspaces; m++ {
		start := m * pq.subDim
		subquery := query[start : start+pq.subDim]
		table[m] = make([]float32, codebookSize)
		for c, centroid := range pq.codebooks[m] {
			table[m][c] = squaredEuclidean(subquery, centroid)
		}
	}
	return &PQDistanceTable{numSubspaces: pq.numSubspaces, table: table}, nil
}

// PQDistanceTable is a precomputed query-to-centroid distance table, scored
// against many codes without re-deriving per-subspace distances each time.
type PQDistanceTable struct {
	numSubspaces int
	table        [][]float32
}

// Distance sums the table entries named by codes and returns the square
// root, the asymmetric PQ distance estimate.
func (t *PQDistanceTable) Distance(codes []byte) (float32, error) {
	if len(codes) != t.numSubspaces {
		return 0, fmt.Errorf("quantization: codes length %d doesn't match numSubspaces %d", len(codes), t.numSubspaces)
	}
	var sum float32
	for m, code := range codes {
		sum += t.table[m][code]
	}
	return float32(math.Sqrt(float64(sum))), nil
}

// CompressionRatio reports the size reduction from a stored vector of
// 8-byte floats (dimension*8 bytes) to its numSubspaces one-byte codes.
func (pq *ProductQuantizer) CompressionRatio() float32 {
	return float32(pq.dimension*8) / float32(pq.numSubspaces)
}

// SerializeCodebooks encodes the trained codebooks as a flat little-endian
// binary blob: a header of (numSubspaces, codebookSize, dimension, subDim)
// int32s followed by every centroid's float32 components in row-major
// subspace/centroid/component order.
func (pq *ProductQuantizer) SerializeCodebooks() ([]byte, error) {
	pq.mu.RLock()
	defer pq.mu.RUnlock()

	if !pq.trained {
		return nil, fmt.Errorf("quantization: product quantizer not trained")
	}

	size := 4*4 + pq.numSubspaces*codebookSize*pq.subDim*4
	buf := make([]byte, size)
	offset := 0

	binary.LittleEndian.PutUint32(buf[offset:], uint32(pq.numSubspaces))
	offset += 4
	binary.LittleEndian.PutUint32(buf[offset:], uint32(codebookSize))
	offset += 4
	binary.LittleEndian.PutUint32(buf[offset:], uint32(pq.dimension))
	offset += 4
	binary.LittleEndian.PutUint32(buf[offset:], uint32(pq.subDim))
	offset += 4

	for m := 0; m < pq.numSubspaces; m++ {
		for c := 0; c < codebookSize; c++ {
			for d := 0; d < pq.subDim; d++ {
				binary.LittleEndian.PutUint32(buf[offset:], math.Float32bits(pq.codebooks[m][c][d]))
				offset += 4
			}
		}
	}
	return buf, nil
}

// DeserializeCodebooks loads codebooks from the SerializeCodebooks layout,
// replacing this quantizer's dimension/subspace configuration with the
// encoded header's values and marking it trained.
func (pq *ProductQuantizer) DeserializeCodebooks(data []byte) error {
	if len(data) < 16 {
		return fmt.Errorf("quantization: codebook blob too short: %d bytes", len(data))
	}

	pq.mu.Lock()
	defer pq.mu.Unlock()

	offset := 0
	numSubspaces := int(binary.LittleEndian.Uint32(data[offset:]))
	offset += 4
	k := int(binary.LittleEndian.Uint32(data[offset:]))
	offset += 4
	dimension := int(binary.LittleEndian.Uint32(data[offset:]))
	offset += 4
	subDim := int(binary.LittleEndian.Uint32(data[offset:]))
	offset += 4

	if k != codebookSize {
		return fmt.Errorf("quantization: codebook blob has K=%d, expected %d", k, codebookSize)
	}
	want := 16 + numSubspaces*k*subDim*4
	if len(data) != want {
		return fmt.Errorf("quantization: codebook blob length %d, expected %d", len(data), want)
	}

	codebooks := make([][][]float32, numSubspaces)
	for m := 0; m < numSubspaces; m++ {
		codebooks[m] = make([][]float32, k)
		for c := 0; c < k; c++ {
			codebooks[m][c] = make([]float32, subDim)
			for d := 0; d < subDim; d++ {
				codebooks[m][c][d] = math.Float32frombits(binary.LittleEndian.Uint32(data[offset:]))
				offset += 4
			}
		}
	}

	pq.numSubspaces = numSubspaces
	pq.dimension = dimension
	pq.subDim = subDim
	pq.codebooks = codebooks
	pq.trained = true
	return nil
}

func squaredEuclidean(a, b []float32) float32 {
	var sum float32
	for i := range a {
		diff := a[i] - b[i]
		sum += diff * diff
	}
	return sum
}
