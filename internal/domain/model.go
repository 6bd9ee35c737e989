package domain

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

// ModelKind tags one of the analysis models.
type ModelKind string

// Supported model kinds.
const (
	ModelReduction      ModelKind = "reduction"
	ModelClassification ModelKind = "classification"
	ModelClustering     ModelKind = "clustering"
)

// AllModelKinds returns every kind in report order.
func AllModelKinds() []ModelKind {
	return []ModelKind{ModelReduction, ModelClassification, ModelClustering}
}

// ParseModelKind converts a configuration token into a ModelKind.
func ParseModelKind(s string) (ModelKind, error) {
	switch k := ModelKind(strings.ToLower(strings.TrimSpace(s))); k {
	case ModelReduction, ModelClassification, ModelClustering:
		return k, nil
	default:
		return "", fmt.Errorf("%w: unknown model kind %q", ErrInvalidConfig, s)
	}
}

// ModelSet is the set of models enabled for a run.
type ModelSet map[ModelKind]bool

// NewModelSet builds a set from kinds.
func NewModelSet(kinds ...ModelKind) ModelSet {
	s := make(ModelSet, len(kinds))
	for _, k := range kinds {
		s[k] = true
	}
	return s
}

// Sorted returns enabled kinds in report order.
func (s ModelSet) Sorted() []ModelKind {
	var out []ModelKind
	for _, k := range AllModelKinds() {
		if s[k] {
			out = append(out, k)
		}
	}
	return out
}

// String renders the set as a comma list.
func (s ModelSet) String() string {
	kinds := s.Sorted()
	parts := make([]string, len(kinds))
	for i, k := range kinds {
		parts[i] = string(k)
	}
	return strings.Join(parts, ",")
}

// ModelParams records the model configuration of a run so stored runs can be replayed.
type ModelParams struct {
	PCAComponents      int     `json:"pca_components"`
	LogRegMaxIter      int     `json:"logreg_max_iter"`
	LogRegLearningRate float64 `json:"logreg_learning_rate"`
	KMeansClusters     int     `json:"kmeans_clusters"`
	KMeansSeed         uint64  `json:"kmeans_seed"`
	KMeansMaxIter      int     `json:"kmeans_max_iter"`
}

// ReductionOutput is the payload of a successful reduction.
type ReductionOutput struct {
	Components     int         `json:"components"`
	Coordinates    [][]float64 `json:"coordinates"`
	ExplainedRatio []float64   `json:"explained_variance_ratio"`
}

// ClassificationOutput is the payload of a successful classification.
type ClassificationOutput struct {
	Predictions []int     `json:"predictions"`
	Threshold   float64   `json:"label_threshold"`
	Weights     []float64 `json:"weights"`
	Bias        float64   `json:"bias"`
	Accuracy    float64   `json:"accuracy"`
	LogLoss     float64   `json:"log_loss"`
	Iterations  int       `json:"iterations"`
	Converged   bool      `json:"converged"`
}

// ClusteringOutput is the payload of a successful clustering.
type ClusteringOutput struct {
	K           int         `json:"k"`
	Assignments []int       `json:"assignments"`
	Centroids   [][]float64 `json:"centroids"`
	Inertia     float64     `json:"inertia"`
	Iterations  int         `json:"iterations"`
}

// ModelResult holds either a success payload for its kind or a failure reason.
type ModelResult struct {
	Kind           ModelKind             `json:"kind"`
	Err            string                `json:"error,omitempty"`
	Duration       time.Duration         `json:"duration"`
	Reduction      *ReductionOutput      `json:"reduction,omitempty"`
	Classification *ClassificationOutput `json:"classification,omitempty"`
	Clustering     *ClusteringOutput     `json:"clustering,omitempty"`
}

// OK reports whether the model succeeded.
func (r ModelResult) OK() bool {
	return r.Err == ""
}

// FailedResult creates a failure result for kind.
func FailedResult(kind ModelKind, err error) ModelResult {
	return ModelResult{Kind: kind, Err: err.Error()}
}

// ModelResults maps each requested kind to its result.
type ModelResults map[ModelKind]ModelResult

// Kinds returns the result keys in report order, followed by any unknown keys sorted.
func (m ModelResults) Kinds() []ModelKind {
	var out []ModelKind
	seen := make(map[ModelKind]bool)
	for _, k := range AllModelKinds() {
		if _, ok := m[k]; ok {
			out = append(out, k)
			seen[k] = true
		}
	}
	var rest []string
	for k := range m {
		if !seen[k] {
			rest = append(rest, string(k))
		}
	}
	sort.Strings(rest)
	for _, k := range rest {
		out = append(out, ModelKind(k))
	}
	return out
}
