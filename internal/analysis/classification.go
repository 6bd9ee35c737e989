package analysis

import (
	"context"
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/stat"

	"solana-telemetry-lab/internal/domain"
)

// Classifier defaults.
const (
	DefaultMaxIter      = 150
	DefaultLearningRate = 0.1
	DefaultTolerance    = 1e-4
)

// Classifier is a binary logistic regression trained by batch gradient descent.
// Labels are split at their median: label > median is class 1, everything else class 0.
type Classifier struct {
	maxIter      int
	learningRate float64
	tolerance    float64
}

// NewClassifier creates a classifier with an iteration cap and learning rate.
func NewClassifier(maxIter int, learningRate float64) *Classifier {
	if maxIter <= 0 {
		maxIter = DefaultMaxIter
	}
	if learningRate <= 0 {
		learningRate = DefaultLearningRate
	}
	return &Classifier{
		maxIter:      maxIter,
		learningRate: learningRate,
		tolerance:    DefaultTolerance,
	}
}

// Kind returns domain.ModelClassification.
func (c *Classifier) Kind() domain.ModelKind {
	return domain.ModelClassification
}

// BinarizeLabels splits labels at their empirical median.
func BinarizeLabels(labels []float64) (classes []int, threshold float64) {
	sorted := append([]float64(nil), labels...)
	sort.Float64s(sorted)
	threshold = stat.Quantile(0.5, stat.Empirical, sorted, nil)

	classes = make([]int, len(labels))
	for i, l := range labels {
		if l > threshold {
			classes[i] = 1
		}
	}
	return classes, threshold
}

// Fit trains up to maxIter iterations. When the gradient does not fall below the
// tolerance in time, the iterate with the lowest log-loss is kept and Converged is false.
func (c *Classifier) Fit(ctx context.Context, ds *domain.Dataset) (domain.ModelResult, error) {
	n := ds.Len()
	classes, threshold := BinarizeLabels(ds.Labels)

	positives := 0
	for _, y := range classes {
		positives += y
	}
	if positives == 0 || positives == n {
		return domain.ModelResult{}, fmt.Errorf("%w: labels form a single class around threshold %g",
			domain.ErrInsufficientData, threshold)
	}

	s := standardize(ds)
	x := s.rows()
	y := make([]float64, n)
	for i, cl := range classes {
		y[i] = float64(cl)
	}

	w := make([]float64, ds.Width())
	var b float64

	bestW := append([]float64(nil), w...)
	bestB := b
	bestLoss := math.Inf(1)

	grad := make([]float64, len(w))
	probs := make([]float64, n)
	converged := false
	iterations := 0

	for iter := 1; iter <= c.maxIter; iter++ {
		if err := ctx.Err(); err != nil {
			return domain.ModelResult{}, err
		}
		iterations = iter

		loss := 0.0
		for i, row := range x {
			probs[i] = sigmoid(floats.Dot(row, w) + b)
			loss += logLoss(probs[i], y[i])
		}
		loss /= float64(n)
		if loss < bestLoss {
			bestLoss = loss
			bestB = b
			copy(bestW, w)
		}

		for j := range grad {
			grad[j] = 0
		}
		gradB := 0.0
		for i, row := range x {
			residual := probs[i] - y[i]
			floats.AddScaled(grad, residual, row)
			gradB += residual
		}
		floats.Scale(1/float64(n), grad)
		gradB /= float64(n)

		if math.Max(floats.Norm(grad, math.Inf(1)), math.Abs(gradB)) < c.tolerance {
			converged = true
			break
		}

		floats.AddScaled(w, -c.learningRate, grad)
		b -= c.learningRate * gradB
	}

	predictions := make([]int, n)
	correct := 0
	for i, row := range x {
		if sigmoid(floats.Dot(row, bestW)+bestB) >= 0.5 {
			predictions[i] = 1
		}
		if predictions[i] == classes[i] {
			correct++
		}
	}

	return domain.ModelResult{
		Kind: domain.ModelClassification,
		Classification: &domain.ClassificationOutput{
			Predictions: predictions,
			Threshold:   threshold,
			Weights:     bestW,
			Bias:        bestB,
			Accuracy:    float64(correct) / float64(n),
			LogLoss:     bestLoss,
			Iterations:  iterations,
			Converged:   converged,
		},
	}, nil
}

func sigmoid(z float64) float64 {
	if z >= 0 {
		return 1 / (1 + math.Exp(-z))
	}
	e := math.Exp(z)
	return e / (1 + e)
}

const probEpsilon = 1e-12

func logLoss(p, y float64) float64 {
	p = math.Min(math.Max(p, probEpsilon), 1-probEpsilon)
	return -(y*math.Log(p) + (1-y)*math.Log(1-p))
}
