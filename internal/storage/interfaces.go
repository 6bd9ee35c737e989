package storage

import (
	"context"

	"solana-telemetry-lab/internal/domain"
)

// ReportStore provides access to analysis_runs storage.
type ReportStore interface {
	// Insert adds a new report. Returns ErrDuplicateKey if run_id exists.
	Insert(ctx context.Context, r *domain.Report) error

	// GetByRunID retrieves a report by its run ID. Returns ErrNotFound if not exists.
	GetByRunID(ctx context.Context, runID string) (*domain.Report, error)

	// List retrieves all reports ordered by started_at ASC.
	List(ctx context.Context) ([]*domain.Report, error)
}

// FeatureRowStore provides access to telemetry_features storage.
type FeatureRowStore interface {
	// InsertBulk adds all rows of one run. Returns ErrDuplicateKey if the run already has rows.
	InsertBulk(ctx context.Context, rows []domain.FeatureRow) error

	// GetByRunID retrieves the rows of a run ordered by index ASC.
	GetByRunID(ctx context.Context, runID string) ([]domain.FeatureRow, error)
}
