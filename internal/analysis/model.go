// Package analysis fits the reduction, classification and clustering models on a dataset.
package analysis

import (
	"context"

	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"solana-telemetry-lab/internal/domain"
)

// Model fits one model kind on a dataset. Implementations must treat the dataset as read-only.
type Model interface {
	Kind() domain.ModelKind
	Fit(ctx context.Context, ds *domain.Dataset) (domain.ModelResult, error)
}

// standardized is a z-scored copy of a dataset's feature matrix.
type standardized struct {
	x        *mat.Dense
	means    []float64
	stds     []float64
	constant []bool
}

// allConstant reports whether no column carries variance.
func (s *standardized) allConstant() bool {
	for _, c := range s.constant {
		if !c {
			return false
		}
	}
	return true
}

// standardize z-scores every column of ds. Constant columns become zero.
func standardize(ds *domain.Dataset) *standardized {
	n, w := ds.Len(), ds.Width()
	x := mat.NewDense(n, w, ds.Matrix())

	s := &standardized{
		x:        x,
		means:    make([]float64, w),
		stds:     make([]float64, w),
		constant: make([]bool, w),
	}

	col := make([]float64, n)
	for j := 0; j < w; j++ {
		mat.Col(col, j, x)
		mean, std := stat.MeanStdDev(col, nil)
		s.means[j] = mean
		if n < 2 || !(std > 0) {
			s.constant[j] = true
			for i := 0; i < n; i++ {
				x.Set(i, j, 0)
			}
			continue
		}
		s.stds[j] = std
		for i := 0; i < n; i++ {
			x.Set(i, j, (col[i]-mean)/std)
		}
	}
	return s
}

// rows returns the standardized matrix as row slices backed by the matrix.
func (s *standardized) rows() [][]float64 {
	n, _ := s.x.Dims()
	out := make([][]float64, n)
	for i := range out {
		out[i] = s.x.RawRowView(i)
	}
	return out
}
