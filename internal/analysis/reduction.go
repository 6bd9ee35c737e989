package analysis

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"solana-telemetry-lab/internal/domain"
)

// DefaultComponents is the default number of principal components kept.
const DefaultComponents = 2

// Reducer projects standardized features onto their principal components.
type Reducer struct {
	components int
}

// NewReducer creates a PCA reducer keeping up to components axes.
func NewReducer(components int) *Reducer {
	if components <= 0 {
		components = DefaultComponents
	}
	return &Reducer{components: components}
}

// Kind returns domain.ModelReduction.
func (r *Reducer) Kind() domain.ModelKind {
	return domain.ModelReduction
}

// Fit requires at least two rows and at least one non-constant column.
func (r *Reducer) Fit(_ context.Context, ds *domain.Dataset) (domain.ModelResult, error) {
	n, w := ds.Len(), ds.Width()
	if n < 2 {
		return domain.ModelResult{}, fmt.Errorf("%w: reduction needs at least 2 rows, got %d", domain.ErrInsufficientData, n)
	}

	s := standardize(ds)
	if s.allConstant() {
		return domain.ModelResult{}, fmt.Errorf("%w: feature matrix is constant", domain.ErrInsufficientData)
	}

	var pc stat.PC
	if ok := pc.PrincipalComponents(s.x, nil); !ok {
		return domain.ModelResult{}, fmt.Errorf("%w: principal component decomposition failed", domain.ErrInsufficientData)
	}

	var vecs mat.Dense
	pc.VectorsTo(&vecs)
	vars := pc.VarsTo(nil)

	k := r.components
	if k > len(vars) {
		k = len(vars)
	}
	orientComponents(&vecs, k)

	var proj mat.Dense
	proj.Mul(s.x, vecs.Slice(0, w, 0, k))

	coords := make([][]float64, n)
	for i := range coords {
		coords[i] = append([]float64(nil), proj.RawRowView(i)...)
	}

	total := floats.Sum(vars)
	ratio := make([]float64, k)
	for i := range ratio {
		if total > 0 {
			ratio[i] = vars[i] / total
		}
	}

	return domain.ModelResult{
		Kind: domain.ModelReduction,
		Reduction: &domain.ReductionOutput{
			Components:     k,
			Coordinates:    coords,
			ExplainedRatio: ratio,
		},
	}, nil
}

// orientComponents flips each of the first k direction vectors so that its largest
// loading is positive, making the projection sign stable.
func orientComponents(vecs *mat.Dense, k int) {
	d, _ := vecs.Dims()
	for j := 0; j < k; j++ {
		maxIdx := 0
		for i := 1; i < d; i++ {
			if math.Abs(vecs.At(i, j)) > math.Abs(vecs.At(maxIdx, j)) {
				maxIdx = i
			}
		}
		if vecs.At(maxIdx, j) >= 0 {
			continue
		}
		for i := 0; i < d; i++ {
			vecs.Set(i, j, -vecs.At(i, j))
		}
	}
}
