package memory

import (
	"context"
	"sort"
	"sync"

	"solana-telemetry-lab/internal/domain"
	"solana-telemetry-lab/internal/storage"
)

// ReportStore is an in-memory implementation of storage.ReportStore.
type ReportStore struct {
	mu   sync.RWMutex
	data map[string]*domain.Report // keyed by run_id
}

// NewReportStore creates a new in-memory report store.
func NewReportStore() *ReportStore {
	return &ReportStore{
		data: make(map[string]*domain.Report),
	}
}

// Compile-time interface check.
var _ storage.ReportStore = (*ReportStore)(nil)

// Insert adds a new report. Returns ErrDuplicateKey if run_id exists.
func (s *ReportStore) Insert(_ context.Context, r *domain.Report) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[r.RunID]; exists {
		return storage.ErrDuplicateKey
	}

	// Store a copy to prevent external mutation
	s.data[r.RunID] = copyReport(r)
	return nil
}

// GetByRunID retrieves a report by its run ID. Returns ErrNotFound if not exists.
func (s *ReportStore) GetByRunID(_ context.Context, runID string) (*domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	r, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}
	return copyReport(r), nil
}

// List retrieves all reports ordered by started_at ASC, then run_id.
func (s *ReportStore) List(_ context.Context) ([]*domain.Report, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*domain.Report, 0, len(s.data))
	for _, r := range s.data {
		result = append(result, copyReport(r))
	}

	sort.Slice(result, func(i, j int) bool {
		if !result[i].StartedAt.Equal(result[j].StartedAt) {
			return result[i].StartedAt.Before(result[j].StartedAt)
		}
		return result[i].RunID < result[j].RunID
	})
	return result, nil
}

// copyReport copies the report and its top-level collections.
func copyReport(r *domain.Report) *domain.Report {
	c := *r
	c.Rows = append([]domain.FeatureRow(nil), r.Rows...)
	c.Requested = append([]domain.ModelKind(nil), r.Requested...)
	if r.Models != nil {
		c.Models = make(domain.ModelResults, len(r.Models))
		for k, v := range r.Models {
			c.Models[k] = v
		}
	}
	if r.Wealth != nil {
		w := *r.Wealth
		c.Wealth = &w
	}
	if r.Params != nil {
		p := *r.Params
		c.Params = &p
	}
	return &c
}
