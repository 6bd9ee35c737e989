package postgres

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"

	"solana-telemetry-lab/internal/domain"
	"solana-telemetry-lab/internal/storage"
)

// ReportStore implements storage.ReportStore using PostgreSQL.
// Each report is one analysis_runs row plus one model_results row per model kind.
type ReportStore struct {
	pool *Pool
}

// NewReportStore creates a new ReportStore.
func NewReportStore(pool *Pool) *ReportStore {
	return &ReportStore{pool: pool}
}

// Compile-time interface check.
var _ storage.ReportStore = (*ReportStore)(nil)

// Insert adds a new report atomically. Returns ErrDuplicateKey if run_id exists.
func (s *ReportStore) Insert(ctx context.Context, r *domain.Report) error {
	if r == nil || r.RunID == "" {
		return storage.ErrInvalidInput
	}

	doc, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("marshal report: %w", err)
	}
	var wealth []byte
	if r.Wealth != nil {
		if wealth, err = json.Marshal(r.Wealth); err != nil {
			return fmt.Errorf("marshal wealth summary: %w", err)
		}
	}
	requested := make([]string, len(r.Requested))
	for i, k := range r.Requested {
		requested[i] = string(k)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	runQuery := `
		INSERT INTO analysis_runs (
			run_id, source, started_at, finished_at,
			dataset_rows, dataset_width, label_rule, requested_models,
			wealth, probe_error, report
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err = tx.Exec(ctx, runQuery,
		r.RunID, r.Source, r.StartedAt, r.FinishedAt,
		r.Dataset.Rows, r.Dataset.Width, r.Dataset.LabelRule, requested,
		wealth, nullableString(r.ProbeError), doc,
	)
	if err != nil {
		return translateError("insert analysis run", err)
	}

	modelQuery := `
		INSERT INTO model_results (run_id, kind, ok, error, duration_ms, output)
		VALUES ($1, $2, $3, $4, $5, $6)
	`
	for _, kind := range r.Models.Kinds() {
		res := r.Models[kind]
		output, err := modelOutput(res)
		if err != nil {
			return err
		}
		_, err = tx.Exec(ctx, modelQuery,
			r.RunID, string(kind), res.OK(), nullableString(res.Err),
			float64(res.Duration.Microseconds())/1000, output,
		)
		if err != nil {
			return fmt.Errorf("insert model result %s: %w", kind, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// GetByRunID retrieves a report by its run ID. Returns ErrNotFound if not exists.
func (s *ReportStore) GetByRunID(ctx context.Context, runID string) (*domain.Report, error) {
	query := `SELECT report FROM analysis_runs WHERE run_id = $1`

	r, err := scanReport(s.pool.QueryRow(ctx, query, runID))
	if err != nil {
		return nil, translateError("get report by run id", err)
	}
	return r, nil
}

// List retrieves all reports ordered by started_at ASC, then run_id.
func (s *ReportStore) List(ctx context.Context) ([]*domain.Report, error) {
	query := `SELECT report FROM analysis_runs ORDER BY started_at ASC, run_id ASC`

	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("list reports: %w", err)
	}
	defer rows.Close()

	var result []*domain.Report
	for rows.Next() {
		r, err := scanReport(rows)
		if err != nil {
			return nil, fmt.Errorf("scan report: %w", err)
		}
		result = append(result, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate reports: %w", err)
	}
	return result, nil
}

// ModelStatus is one row of model_results.
type ModelStatus struct {
	Kind       domain.ModelKind
	OK         bool
	Err        string
	DurationMs float64
}

// GetModelStatuses retrieves the model_results rows of a run ordered by kind.
func (s *ReportStore) GetModelStatuses(ctx context.Context, runID string) ([]ModelStatus, error) {
	query := `
		SELECT kind, ok, COALESCE(error, ''), duration_ms
		FROM model_results
		WHERE run_id = $1
		ORDER BY kind ASC
	`

	rows, err := s.pool.Query(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("get model statuses: %w", err)
	}
	defer rows.Close()

	var result []ModelStatus
	for rows.Next() {
		var m ModelStatus
		var kind string
		if err := rows.Scan(&kind, &m.OK, &m.Err, &m.DurationMs); err != nil {
			return nil, fmt.Errorf("scan model status: %w", err)
		}
		m.Kind = domain.ModelKind(kind)
		result = append(result, m)
	}
	return result, rows.Err()
}

func scanReport(row pgx.Row) (*domain.Report, error) {
	var doc []byte
	if err := row.Scan(&doc); err != nil {
		return nil, err
	}
	var r domain.Report
	if err := json.Unmarshal(doc, &r); err != nil {
		return nil, fmt.Errorf("unmarshal report: %w", err)
	}
	return &r, nil
}

// modelOutput returns the JSON payload of a successful result, or nil.
func modelOutput(res domain.ModelResult) ([]byte, error) {
	var payload any
	switch {
	case res.Reduction != nil:
		payload = res.Reduction
	case res.Classification != nil:
		payload = res.Classification
	case res.Clustering != nil:
		payload = res.Clustering
	default:
		return nil, nil
	}
	out, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal %s output: %w", res.Kind, err)
	}
	return out, nil
}

func nullableString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
