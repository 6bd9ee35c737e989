// Package features turns telemetry records into a rectangular numeric dataset.
package features

import (
	"fmt"

	"solana-telemetry-lab/internal/domain"
)

// Extract computes the feature vector of one record:
// [balance, len(largest_accounts), cluster_nodes].
func Extract(r domain.TelemetryRecord) domain.FeatureVector {
	return domain.FeatureVector{
		float64(r.Balance),
		float64(len(r.LargestAccounts)),
		float64(r.ClusterNodes),
	}
}

// Builder maps records to a Dataset.
type Builder struct {
	extract func(domain.TelemetryRecord) domain.FeatureVector
	label   LabelRule
}

// NewBuilder creates a builder using rule for labels. A nil rule selects DefaultLabelRule.
func NewBuilder(rule LabelRule) *Builder {
	if rule == nil {
		rule = DefaultLabelRule
	}
	return &Builder{extract: Extract, label: rule}
}

// LabelRule returns the configured label rule.
func (b *Builder) LabelRule() LabelRule {
	return b.label
}

// Build produces one row and one label per record, in record order.
// It fails with domain.ErrEmptyInput for no records and domain.ErrShape if a row's width
// disagrees with the first row.
func (b *Builder) Build(records []domain.TelemetryRecord) (*domain.Dataset, error) {
	if len(records) == 0 {
		return nil, fmt.Errorf("build dataset: %w", domain.ErrEmptyInput)
	}

	ds := &domain.Dataset{
		Rows:      make([]domain.FeatureVector, 0, len(records)),
		Labels:    make([]float64, 0, len(records)),
		LabelRule: b.label.Name(),
	}

	width := -1
	for i, r := range records {
		row := b.extract(r)
		if width < 0 {
			width = len(row)
		}
		if len(row) != width || width == 0 {
			return nil, fmt.Errorf("build dataset: %w: record %d has width %d, expected %d",
				domain.ErrShape, i, len(row), width)
		}
		ds.Rows = append(ds.Rows, row)
		ds.Labels = append(ds.Labels, b.label.Label(r))
	}

	if err := ds.Validate(); err != nil {
		return nil, fmt.Errorf("build dataset: %w", err)
	}
	return ds, nil
}
