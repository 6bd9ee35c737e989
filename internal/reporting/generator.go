package reporting

import (
	"context"
	"errors"
	"fmt"
	"time"

	"solana-telemetry-lab/internal/domain"
	"solana-telemetry-lab/internal/storage"
)

// Generator renders reports of previously stored runs.
type Generator struct {
	reports storage.ReportStore
	rows    storage.FeatureRowStore // optional
}

// NewGenerator creates a generator over stored reports. rows may be nil.
func NewGenerator(reports storage.ReportStore, rows storage.FeatureRowStore) *Generator {
	return &Generator{reports: reports, rows: rows}
}

// Load returns the stored report for runID. When the stored report carries no rows
// and a row store is configured, rows are loaded from it.
func (g *Generator) Load(ctx context.Context, runID string) (*domain.Report, error) {
	r, err := g.reports.GetByRunID(ctx, runID)
	if err != nil {
		return nil, fmt.Errorf("load report %s: %w", runID, err)
	}
	if len(r.Rows) > 0 || g.rows == nil {
		return r, nil
	}

	rows, err := g.rows.GetByRunID(ctx, runID)
	switch {
	case errors.Is(err, storage.ErrNotFound):
		return r, nil
	case err != nil:
		return nil, fmt.Errorf("load rows %s: %w", runID, err)
	}
	r.Rows = rows
	return r, nil
}

// Generate loads and renders the report for runID.
func (g *Generator) Generate(ctx context.Context, runID, format string) ([]byte, error) {
	r, err := g.Load(ctx, runID)
	if err != nil {
		return nil, err
	}
	return Render(format, r)
}

// RunSummary is one line of the stored run index.
type RunSummary struct {
	RunID           string
	StartedAt       time.Time
	Source          string
	Rows            int
	PartialFailures int
}

// List returns a summary of every stored run ordered by start time.
func (g *Generator) List(ctx context.Context) ([]RunSummary, error) {
	reports, err := g.reports.List(ctx)
	if err != nil {
		return nil, err
	}
	out := make([]RunSummary, len(reports))
	for i, r := range reports {
		out[i] = RunSummary{
			RunID:           r.RunID,
			StartedAt:       r.StartedAt,
			Source:          r.Source,
			Rows:            r.Dataset.Rows,
			PartialFailures: r.PartialFailures(),
		}
	}
	return out, nil
}
