// Package verification replays stored runs and checks that the models reproduce the stored results.
package verification

import (
	"context"
	"fmt"
	"math"

	"solana-telemetry-lab/internal/domain"
)

// FloatTolerance is the tolerance for float64 comparisons.
const FloatTolerance = 1e-7

// FieldDivergence represents a mismatch between stored and replayed values.
type FieldDivergence struct {
	Field    string      // dotted field path, e.g. "clustering.assignments[3]"
	Expected interface{} // stored value
	Actual   interface{} // replayed value
}

// VerificationResult contains the result of verifying a single run.
type VerificationResult struct {
	RunID       string            // verified run ID
	Match       bool              // true if all fields match
	Divergences []FieldDivergence // list of divergent fields
}

// VerificationReport contains results for batch verification.
type VerificationReport struct {
	TotalRuns     int                  // total runs verified
	MatchedRuns   int                  // runs that matched exactly
	DivergentRuns int                  // runs with divergences
	Results       []VerificationResult // individual results
}

// Verifier interface for run replay verification.
type Verifier interface {
	// VerifyRun loads the stored run, refits its models on the stored rows
	// and compares all model outputs.
	VerifyRun(ctx context.Context, runID string) (*VerificationResult, error)

	// VerifyAll verifies all stored runs.
	VerifyAll(ctx context.Context) (*VerificationReport, error)
}

// divergences accumulates mismatches under a field prefix.
type divergences []FieldDivergence

func (d *divergences) add(field string, expected, actual interface{}) {
	*d = append(*d, FieldDivergence{Field: field, Expected: expected, Actual: actual})
}

func (d *divergences) ints(field string, stored, replayed []int) {
	if len(stored) != len(replayed) {
		d.add(field+".len", len(stored), len(replayed))
		return
	}
	for i := range stored {
		if stored[i] != replayed[i] {
			d.add(fmt.Sprintf("%s[%d]", field, i), stored[i], replayed[i])
		}
	}
}

func (d *divergences) floats(field string, stored, replayed []float64) {
	if len(stored) != len(replayed) {
		d.add(field+".len", len(stored), len(replayed))
		return
	}
	for i := range stored {
		if !floatEquals(stored[i], replayed[i]) {
			d.add(fmt.Sprintf("%s[%d]", field, i), stored[i], replayed[i])
		}
	}
}

func (d *divergences) matrix(field string, stored, replayed [][]float64) {
	if len(stored) != len(replayed) {
		d.add(field+".len", len(stored), len(replayed))
		return
	}
	for i := range stored {
		d.floats(fmt.Sprintf("%s[%d]", field, i), stored[i], replayed[i])
	}
}

func (d *divergences) float(field string, stored, replayed float64) {
	if !floatEquals(stored, replayed) {
		d.add(field, stored, replayed)
	}
}

// CompareModelResults compares stored and replayed results of every kind present in either.
// Durations are ignored. Uses FloatTolerance for float64 comparisons.
func CompareModelResults(stored, replayed domain.ModelResults) []FieldDivergence {
	var d divergences

	kinds := stored.Kinds()
	for _, k := range replayed.Kinds() {
		if _, ok := stored[k]; !ok {
			kinds = append(kinds, k)
		}
	}

	for _, kind := range kinds {
		prefix := string(kind)
		s, inStored := stored[kind]
		r, inReplayed := replayed[kind]
		if inStored != inReplayed {
			d.add(prefix+".present", inStored, inReplayed)
			continue
		}
		if s.OK() != r.OK() {
			d.add(prefix+".ok", s.OK(), r.OK())
			continue
		}
		if !s.OK() {
			if s.Err != r.Err {
				d.add(prefix+".error", s.Err, r.Err)
			}
			continue
		}

		switch {
		case s.Reduction != nil && r.Reduction != nil:
			compareReduction(&d, prefix, s.Reduction, r.Reduction)
		case s.Classification != nil && r.Classification != nil:
			compareClassification(&d, prefix, s.Classification, r.Classification)
		case s.Clustering != nil && r.Clustering != nil:
			compareClustering(&d, prefix, s.Clustering, r.Clustering)
		default:
			d.add(prefix+".payload", payloadName(s), payloadName(r))
		}
	}

	return d
}

func compareReduction(d *divergences, prefix string, s, r *domain.ReductionOutput) {
	if s.Components != r.Components {
		d.add(prefix+".components", s.Components, r.Components)
	}
	d.matrix(prefix+".coordinates", s.Coordinates, r.Coordinates)
	d.floats(prefix+".explained_variance_ratio", s.ExplainedRatio, r.ExplainedRatio)
}

func compareClassification(d *divergences, prefix string, s, r *domain.ClassificationOutput) {
	d.ints(prefix+".predictions", s.Predictions, r.Predictions)
	d.float(prefix+".label_threshold", s.Threshold, r.Threshold)
	d.floats(prefix+".weights", s.Weights, r.Weights)
	d.float(prefix+".bias", s.Bias, r.Bias)
	d.float(prefix+".accuracy", s.Accuracy, r.Accuracy)
	d.float(prefix+".log_loss", s.LogLoss, r.LogLoss)
	if s.Iterations != r.Iterations {
		d.add(prefix+".iterations", s.Iterations, r.Iterations)
	}
	if s.Converged != r.Converged {
		d.add(prefix+".converged", s.Converged, r.Converged)
	}
}

func compareClustering(d *divergences, prefix string, s, r *domain.ClusteringOutput) {
	if s.K != r.K {
		d.add(prefix+".k", s.K, r.K)
	}
	d.ints(prefix+".assignments", s.Assignments, r.Assignments)
	d.matrix(prefix+".centroids", s.Centroids, r.Centroids)
	d.float(prefix+".inertia", s.Inertia, r.Inertia)
	if s.Iterations != r.Iterations {
		d.add(prefix+".iterations", s.Iterations, r.Iterations)
	}
}

func payloadName(res domain.ModelResult) string {
	switch {
	case res.Reduction != nil:
		return "reduction"
	case res.Classification != nil:
		return "classification"
	case res.Clustering != nil:
		return "clustering"
	default:
		return "none"
	}
}

// floatEquals compares two floats with tolerance.
func floatEquals(a, b float64) bool {
	return math.Abs(a-b) < FloatTolerance
}
