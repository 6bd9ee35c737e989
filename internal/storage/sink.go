package storage

import (
	"context"
	"fmt"

	"solana-telemetry-lab/internal/domain"
)

// ReportSink writes finished reports to a ReportStore.
type ReportSink struct {
	name  string
	store ReportStore
}

// NewReportSink creates a sink named name over store.
func NewReportSink(name string, store ReportStore) *ReportSink {
	return &ReportSink{name: name, store: store}
}

// Name returns the sink name.
func (s *ReportSink) Name() string {
	return s.name
}

// Write inserts the report.
func (s *ReportSink) Write(ctx context.Context, r *domain.Report) error {
	if r == nil || r.RunID == "" {
		return ErrInvalidInput
	}
	if err := s.store.Insert(ctx, r); err != nil {
		return fmt.Errorf("%s sink: %w", s.name, err)
	}
	return nil
}

// FeatureRowSink writes the per-row features of finished reports to a FeatureRowStore.
type FeatureRowSink struct {
	name  string
	store FeatureRowStore
}

// NewFeatureRowSink creates a sink named name over store.
func NewFeatureRowSink(name string, store FeatureRowStore) *FeatureRowSink {
	return &FeatureRowSink{name: name, store: store}
}

// Name returns the sink name.
func (s *FeatureRowSink) Name() string {
	return s.name
}

// Write inserts the report rows. A report without rows is a no-op.
func (s *FeatureRowSink) Write(ctx context.Context, r *domain.Report) error {
	if r == nil || r.RunID == "" {
		return ErrInvalidInput
	}
	if len(r.Rows) == 0 {
		return nil
	}
	if err := s.store.InsertBulk(ctx, r.Rows); err != nil {
		return fmt.Errorf("%s sink: %w", s.name, err)
	}
	return nil
}
