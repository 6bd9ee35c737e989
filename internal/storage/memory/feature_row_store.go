package memory

import (
	"context"
	"sort"
	"sync"

	"solana-telemetry-lab/internal/domain"
	"solana-telemetry-lab/internal/storage"
)

// FeatureRowStore is an in-memory implementation of storage.FeatureRowStore.
type FeatureRowStore struct {
	mu   sync.RWMutex
	data map[string][]domain.FeatureRow // keyed by run_id
}

// NewFeatureRowStore creates a new in-memory feature row store.
func NewFeatureRowStore() *FeatureRowStore {
	return &FeatureRowStore{
		data: make(map[string][]domain.FeatureRow),
	}
}

// Compile-time interface check.
var _ storage.FeatureRowStore = (*FeatureRowStore)(nil)

// InsertBulk adds all rows of one run atomically.
// Returns ErrInvalidInput for mixed or empty run IDs and ErrDuplicateKey if the run exists.
func (s *FeatureRowStore) InsertBulk(_ context.Context, rows []domain.FeatureRow) error {
	if len(rows) == 0 {
		return nil
	}
	runID := rows[0].RunID
	if runID == "" {
		return storage.ErrInvalidInput
	}
	for _, r := range rows {
		if r.RunID != runID {
			return storage.ErrInvalidInput
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.data[runID]; exists {
		return storage.ErrDuplicateKey
	}
	s.data[runID] = append([]domain.FeatureRow(nil), rows...)
	return nil
}

// GetByRunID retrieves the rows of a run ordered by index ASC.
func (s *FeatureRowStore) GetByRunID(_ context.Context, runID string) ([]domain.FeatureRow, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, exists := s.data[runID]
	if !exists {
		return nil, storage.ErrNotFound
	}

	result := append([]domain.FeatureRow(nil), rows...)
	sort.Slice(result, func(i, j int) bool {
		return result[i].Index < result[j].Index
	})
	return result, nil
}
