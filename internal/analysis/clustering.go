package analysis

import (
	"context"
	"fmt"
	"math"
	"math/rand/v2"

	"gonum.org/v1/gonum/floats"

	"solana-telemetry-lab/internal/domain"
)

// Clusterer defaults.
const (
	DefaultClusters      = 3
	DefaultSeed          = 42
	DefaultKMeansMaxIter = 300
)

// Clusterer partitions standardized rows with k-means++ seeding and Lloyd refinement.
// The seed fixes every random choice, so identical inputs give identical assignments.
type Clusterer struct {
	k       int
	seed    uint64
	maxIter int
}

// NewClusterer creates a k-means clusterer.
func NewClusterer(k int, seed uint64, maxIter int) *Clusterer {
	if k <= 0 {
		k = DefaultClusters
	}
	if maxIter <= 0 {
		maxIter = DefaultKMeansMaxIter
	}
	return &Clusterer{k: k, seed: seed, maxIter: maxIter}
}

// Kind returns domain.ModelClustering.
func (c *Clusterer) Kind() domain.ModelKind {
	return domain.ModelClustering
}

// Fit requires at least k rows and at least k distinct rows.
func (c *Clusterer) Fit(ctx context.Context, ds *domain.Dataset) (domain.ModelResult, error) {
	n := ds.Len()
	if n < c.k {
		return domain.ModelResult{}, fmt.Errorf("%w: clustering needs at least %d rows, got %d",
			domain.ErrInsufficientData, c.k, n)
	}

	x := standardize(ds).rows()
	if d := countDistinct(x); d < c.k {
		return domain.ModelResult{}, fmt.Errorf("%w: clustering needs at least %d distinct rows, got %d",
			domain.ErrInsufficientData, c.k, d)
	}

	rng := rand.New(rand.NewPCG(c.seed, c.seed))
	centroids := seedCentroids(x, c.k, rng)

	assignments := make([]int, n)
	for i := range assignments {
		assignments[i] = -1
	}

	iterations := 0
	for iter := 1; iter <= c.maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return domain.ModelResult{}, err
		}
		iterations = iter

		changed := false
		for i, row := range x {
			nearest := nearestCentroid(row, centroids)
			if nearest != assignments[i] {
				assignments[i] = nearest
				changed = true
			}
		}
		if !changed {
			break
		}

		if err := updateCentroids(x, assignments, centroids); err != nil {
			return domain.ModelResult{}, err
		}
	}

	inertia := 0.0
	for i, row := range x {
		d := floats.Distance(row, centroids[assignments[i]], 2)
		inertia += d * d
	}

	return domain.ModelResult{
		Kind: domain.ModelClustering,
		Clustering: &domain.ClusteringOutput{
			K:           c.k,
			Assignments: assignments,
			Centroids:   centroids,
			Inertia:     inertia,
			Iterations:  iterations,
		},
	}, nil
}

// nearestCentroid returns the closest centroid index. Ties go to the lower index.
func nearestCentroid(row []float64, centroids [][]float64) int {
	best := 0
	bestDist := math.Inf(1)
	for j, c := range centroids {
		if d := floats.Distance(row, c, 2); d < bestDist {
			best = j
			bestDist = d
		}
	}
	return best
}

// updateCentroids moves each centroid to the mean of its members.
func updateCentroids(x [][]float64, assignments []int, centroids [][]float64) error {
	counts := make([]int, len(centroids))
	for j := range centroids {
		for d := range centroids[j] {
			centroids[j][d] = 0
		}
	}
	for i, row := range x {
		floats.Add(centroids[assignments[i]], row)
		counts[assignments[i]]++
	}
	for j, cnt := range counts {
		if cnt == 0 {
			return fmt.Errorf("%w: cluster %d has no members", domain.ErrEmptyCluster, j)
		}
		floats.Scale(1/float64(cnt), centroids[j])
	}
	return nil
}

// seedCentroids picks k distinct rows with k-means++ D^2 weighting.
func seedCentroids(x [][]float64, k int, rng *rand.Rand) [][]float64 {
	n := len(x)
	centroids := make([][]float64, 0, k)
	centroids = append(centroids, append([]float64(nil), x[rng.IntN(n)]...))

	dist := make([]float64, n)
	for len(centroids) < k {
		sum := 0.0
		for i, row := range x {
			d := floats.Distance(row, centroids[nearestCentroid(row, centroids)], 2)
			dist[i] = d * d
			sum += dist[i]
		}

		target := rng.Float64() * sum
		pick := -1
		acc := 0.0
		for i, d := range dist {
			if d == 0 {
				continue
			}
			pick = i
			acc += d
			if acc > target {
				break
			}
		}
		centroids = append(centroids, append([]float64(nil), x[pick]...))
	}
	return centroids
}

// countDistinct counts distinct rows.
func countDistinct(x [][]float64) int {
	seen := make(map[string]struct{}, len(x))
	for _, row := range x {
		seen[fmt.Sprint(row)] = struct{}{}
	}
	return len(seen)
}
