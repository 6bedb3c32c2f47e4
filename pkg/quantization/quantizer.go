// Package quantization implements vector compression schemes: scalar
// quantization (per-dimension min/max, fixed bit width) and product
// quantization (subspace codebooks with asymmetric distance).
package quantization

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"golang.org/x/sync/errgroup"

	"github.com/vortexa-io/annvec/pkg/distance"
)

// Quantizer is the narrow contract shared by ScalarQuantizer and
// ProductQuantizer: callers that only need to know whether a quantizer is
// ready to encode/decode can depend on this instead of a concrete type.
type Quantizer interface {
	Dimension() int
	Trained() bool
}

// KMeansPP clusters vectors into k centroids. Centroids are seeded by
// k-means++ (probability proportional to squared distance to the nearest
// existing centroid), then refined by Lloyd's algorithm, stopping early
// when either no assignment changes in a pass or the largest per-coordinate
// centroid shift falls below threshold. Any cluster left empty after a pass
// is reseeded to a random member vector. Each pass checks ctx before
// starting, so a cancelled context stops work at the next pass boundary.
func KMeansPP(ctx context.Context, vectors [][]float32, k, maxIters int, threshold float64, rng *rand.Rand) ([][]float32, error) {
	if len(vectors) == 0 {
		return nil, fmt.Errorf("quantization: no training vectors provided")
	}
	if k > len(vectors) {
		k = len(vectors)
	}
	dim := len(vectors[0])

	centroids := make([][]float32, k)
	centroids[0] = cloneVec(vectors[rng.Intn(len(vectors))])
	for i := 1; i < k; i++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		dists := make([]float32, len(vectors))
		var total float32
		for j, v := range vectors {
			best := float32(math.MaxFloat32)
			for c := 0; c < i; c++ {
				d := distance.SquaredEuclidean(v, centroids[c])
				if d < best {
					best = d
				}
			}
			dists[j] = best
			total += best
		}
		r := rng.Float32() * total
		var cum float32
		chosen := len(vectors) - 1
		for j, d := range dists {
			cum += d
			if cum >= r {
				chosen = j
				break
			}
		}
		centroids[i] = cloneVec(vectors[chosen])
	}

	assignments := make([]int, len(vectors))
	for iter := 0; iter < maxIters; iter++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		changed, err := assignNearest(ctx, vectors, centroids, assignments)
		if err != nil {
			return nil, err
		}

		newCentroids := make([][]float32, k)
		counts := make([]int, k)
		for i := range newCentroids {
			newCentroids[i] = make([]float32, dim)
		}
		for i, v := range vectors {
			c := assignments[i]
			counts[c]++
			for d := 0; d < dim; d++ {
				newCentroids[c][d] += v[d]
			}
		}
		for c := range newCentroids {
			if counts[c] == 0 {
				newCentroids[c] = cloneVec(vectors[rng.Intn(len(vectors))])
				continue
			}
			for d := 0; d < dim; d++ {
				newCentroids[c][d] /= float32(counts[c])
			}
		}

		maxShift := 0.0
		for c := range centroids {
			for d := 0; d < dim; d++ {
				shift := math.Abs(float64(newCentroids[c][d] - centroids[c][d]))
				if shift > maxShift {
					maxShift = shift
				}
			}
		}
		centroids = newCentroids

		if !changed || maxShift < threshold {
			break
		}
	}
	return centroids, nil
}

// assignNearest assigns each vector to its nearest centroid, fanning the
// scan out across workers via errgroup so one pass can be cancelled as a
// unit. Returns whether any assignment changed.
func assignNearest(ctx context.Context, vectors [][]float32, centroids [][]float32, assignments []int) (bool, error) {
	const minChunk = 256
	n := len(vectors)
	workers := (n + minChunk - 1) / minChunk
	if workers < 1 {
		workers = 1
	}

	changedFlags := make([]bool, workers)
	g, ctx := errgroup.WithContext(ctx)
	chunk := (n + workers - 1) / workers
	for w := 0; w < workers; w++ {
		w := w
		start := w * chunk
		end := start + chunk
		if end > n {
			end = n
		}
		if start >= end {
			continue
		}
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for i := start; i < end; i++ {
				best := 0
				bestDist := float32(math.MaxFloat32)
				for c, centroid := range centroids {
					d := distance.SquaredEuclidean(vectors[i], centroid)
					if d < bestDist {
						bestDist = d
						best = c
					}
				}
				if assignments[i] != best {
					assignments[i] = best
					changedFlags[w] = true
				}
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return false, err
	}

	for _, c := range changedFlags {
		if c {
			return true, nil
		}
	}
	return false, nil
}

func cloneVec(v []float32) []float32 {
	out := make([]float32, len(v))
	copy(out, v)
	return out
}
