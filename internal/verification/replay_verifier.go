package verification

import (
	"context"
	"errors"
	"fmt"

	"solana-telemetry-lab/internal/analysis"
	"solana-telemetry-lab/internal/domain"
	"solana-telemetry-lab/internal/idhash"
	"solana-telemetry-lab/internal/storage"
)

var (
	// ErrRunNotFound is returned when run ID doesn't exist.
	ErrRunNotFound = errors.New("run not found")

	// ErrNoRows is returned when a stored run has no feature rows to replay.
	ErrNoRows = errors.New("run has no stored rows")
)

// ReplayVerifier implements Verifier interface.
type ReplayVerifier struct {
	reportStore storage.ReportStore
	rowStore    storage.FeatureRowStore // optional, used when reports carry no rows
}

// ReplayVerifierOptions contains configuration for creating a ReplayVerifier.
type ReplayVerifierOptions struct {
	ReportStore storage.ReportStore
	RowStore    storage.FeatureRowStore
}

// NewReplayVerifier creates a new ReplayVerifier.
func NewReplayVerifier(opts ReplayVerifierOptions) *ReplayVerifier {
	return &ReplayVerifier{
		reportStore: opts.ReportStore,
		rowStore:    opts.RowStore,
	}
}

var _ Verifier = (*ReplayVerifier)(nil)

// VerifyRun verifies a single run by refitting its models.
func (v *ReplayVerifier) VerifyRun(ctx context.Context, runID string) (*VerificationResult, error) {
	// 1. Load stored run
	stored, err := v.reportStore.GetByRunID(ctx, runID)
	if err != nil {
		if errors.Is(err, storage.ErrNotFound) {
			return nil, ErrRunNotFound
		}
		return nil, err
	}

	// 2. Rebuild dataset
	ds, err := v.dataset(ctx, stored)
	if err != nil {
		return nil, err
	}

	// 3. Replay models with the recorded configuration
	opts := analysis.DefaultOptions()
	if stored.Params != nil {
		opts = analysis.OptionsFromParams(*stored.Params)
	}
	opts.Sequential = true
	replayed := analysis.NewRunner(opts).Run(ctx, ds, domain.NewModelSet(stored.Requested...))

	// 4. Compare results
	var divergences []FieldDivergence
	if stored.Dataset.Fingerprint != "" {
		if fp := idhash.ComputeDatasetFingerprint(ds); fp != stored.Dataset.Fingerprint {
			divergences = append(divergences, FieldDivergence{
				Field:    "dataset.fingerprint",
				Expected: stored.Dataset.Fingerprint,
				Actual:   fp,
			})
		}
	}
	divergences = append(divergences, CompareModelResults(stored.Models, replayed)...)

	return &VerificationResult{
		RunID:       runID,
		Match:       len(divergences) == 0,
		Divergences: divergences,
	}, nil
}

// VerifyAll verifies all stored runs.
func (v *ReplayVerifier) VerifyAll(ctx context.Context) (*VerificationReport, error) {
	// Load all runs
	runs, err := v.reportStore.List(ctx)
	if err != nil {
		return nil, err
	}

	report := &VerificationReport{
		TotalRuns: len(runs),
		Results:   make([]VerificationResult, 0, len(runs)),
	}

	for _, run := range runs {
		result, err := v.VerifyRun(ctx, run.RunID)
		if err != nil {
			// Record error as divergence
			report.Results = append(report.Results, VerificationResult{
				RunID: run.RunID,
				Match: false,
				Divergences: []FieldDivergence{
					{Field: "Error", Expected: nil, Actual: err.Error()},
				},
			})
			report.DivergentRuns++
			continue
		}

		report.Results = append(report.Results, *result)
		if result.Match {
			report.MatchedRuns++
		} else {
			report.DivergentRuns++
		}
	}

	return report, nil
}

// dataset rebuilds the analyzed dataset from the stored feature rows.
func (v *ReplayVerifier) dataset(ctx context.Context, stored *domain.Report) (*domain.Dataset, error) {
	rows := stored.Rows
	if len(rows) == 0 && v.rowStore != nil {
		var err error
		rows, err = v.rowStore.GetByRunID(ctx, stored.RunID)
		if err != nil && !errors.Is(err, storage.ErrNotFound) {
			return nil, fmt.Errorf("load rows %s: %w", stored.RunID, err)
		}
	}
	if len(rows) == 0 {
		return nil, ErrNoRows
	}

	ds := &domain.Dataset{
		Rows:      make([]domain.FeatureVector, len(rows)),
		Labels:    make([]float64, len(rows)),
		LabelRule: stored.Dataset.LabelRule,
	}
	for i, r := range rows {
		if r.Index != i {
			return nil, fmt.Errorf("%w: row %d stored at index %d", domain.ErrShape, i, r.Index)
		}
		ds.Rows[i] = append(domain.FeatureVector(nil), r.Features...)
		ds.Labels[i] = r.Label
	}
	if err := ds.Validate(); err != nil {
		return nil, err
	}
	return ds, nil
}
