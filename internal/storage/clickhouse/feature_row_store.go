package clickhouse

import (
	"context"
	"fmt"

	"solana-telemetry-lab/internal/domain"
	"solana-telemetry-lab/internal/storage"
)

// FeatureRowStore implements storage.FeatureRowStore using ClickHouse.
// Rows must have domain.FeatureWidth features; the first two projection axes are kept.
type FeatureRowStore struct {
	conn *Conn
}

// NewFeatureRowStore creates a new FeatureRowStore.
func NewFeatureRowStore(conn *Conn) *FeatureRowStore {
	return &FeatureRowStore{conn: conn}
}

// Compile-time interface check.
var _ storage.FeatureRowStore = (*FeatureRowStore)(nil)

// InsertBulk adds all rows of one run. Fails entire batch if the run already has rows.
func (s *FeatureRowStore) InsertBulk(ctx context.Context, rows []domain.FeatureRow) error {
	if len(rows) == 0 {
		return nil
	}

	runID := rows[0].RunID
	seen := make(map[int]struct{}, len(rows))
	for _, r := range rows {
		if r.RunID == "" || r.RunID != runID || len(r.Features) != domain.FeatureWidth || r.Index < 0 {
			return storage.ErrInvalidInput
		}
		if _, exists := seen[r.Index]; exists {
			return storage.ErrDuplicateKey
		}
		seen[r.Index] = struct{}{}
	}

	// MergeTree does not enforce uniqueness
	exists, err := s.exists(ctx, runID)
	if err != nil {
		return fmt.Errorf("check exists: %w", err)
	}
	if exists {
		return storage.ErrDuplicateKey
	}

	batch, err := s.conn.PrepareBatch(ctx, `
		INSERT INTO telemetry_features (
			run_id, row_index,
			balance, largest_accounts, cluster_nodes, label,
			pc1, pc2, prediction, cluster
		)
	`)
	if err != nil {
		return fmt.Errorf("prepare batch: %w", err)
	}

	for _, r := range rows {
		// Pass nil values directly for Nullable columns
		err = batch.Append(
			r.RunID, uint32(r.Index),
			r.Features[0], r.Features[1], r.Features[2], r.Label,
			axis(r.Projection, 0), axis(r.Projection, 1),
			toNullableUint8(r.Prediction), toNullableUint32(r.Cluster),
		)
		if err != nil {
			return fmt.Errorf("append to batch: %w", err)
		}
	}

	if err := batch.Send(); err != nil {
		return fmt.Errorf("send batch: %w", err)
	}
	return nil
}

// GetByRunID retrieves the rows of a run ordered by index ASC.
// Projections hold the stored axes up to the first missing one.
func (s *FeatureRowStore) GetByRunID(ctx context.Context, runID string) ([]domain.FeatureRow, error) {
	query := `
		SELECT
			run_id, row_index,
			balance, largest_accounts, cluster_nodes, label,
			pc1, pc2, prediction, cluster
		FROM telemetry_features
		WHERE run_id = ?
		ORDER BY row_index ASC
	`

	rows, err := s.conn.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("query by run id: %w", err)
	}
	defer rows.Close()

	result, err := scanFeatureRows(rows)
	if err != nil {
		return nil, err
	}
	if len(result) == 0 {
		return nil, storage.ErrNotFound
	}
	return result, nil
}

// exists checks if any row of the run exists.
func (s *FeatureRowStore) exists(ctx context.Context, runID string) (bool, error) {
	var count uint64
	err := s.conn.QueryRow(ctx, `SELECT count(*) FROM telemetry_features WHERE run_id = ?`, runID).Scan(&count)
	if err != nil {
		return false, err
	}
	return count > 0, nil
}

// axis returns projection[i] for a Nullable(Float64) column.
func axis(projection []float64, i int) *float64 {
	if i >= len(projection) {
		return nil
	}
	v := projection[i]
	return &v
}

func toNullableUint8(v *int) *uint8 {
	if v == nil {
		return nil
	}
	u := uint8(*v)
	return &u
}

func toNullableUint32(v *int) *uint32 {
	if v == nil {
		return nil
	}
	u := uint32(*v)
	return &u
}

// scanFeatureRows scans multiple rows.
func scanFeatureRows(rows chRows) ([]domain.FeatureRow, error) {
	var result []domain.FeatureRow

	for rows.Next() {
		var r domain.FeatureRow
		var index uint32
		var balance, largest, nodes float64
		var pc1, pc2 *float64
		var prediction *uint8
		var cluster *uint32

		err := rows.Scan(
			&r.RunID, &index,
			&balance, &largest, &nodes, &r.Label,
			&pc1, &pc2, &prediction, &cluster,
		)
		if err != nil {
			return nil, fmt.Errorf("scan telemetry features row: %w", err)
		}

		r.Index = int(index)
		r.Features = []float64{balance, largest, nodes}
		if pc1 != nil {
			r.Projection = append(r.Projection, *pc1)
			if pc2 != nil {
				r.Projection = append(r.Projection, *pc2)
			}
		}
		if prediction != nil {
			v := int(*prediction)
			r.Prediction = &v
		}
		if cluster != nil {
			v := int(*cluster)
			r.Cluster = &v
		}

		result = append(result, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate telemetry features rows: %w", err)
	}
	return result, nil
}
