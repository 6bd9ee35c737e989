package postgres_test

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-telemetry-lab/internal/domain"
	"solana-telemetry-lab/internal/storage"
	"solana-telemetry-lab/internal/storage/migrations"
	"solana-telemetry-lab/internal/storage/postgres"
)

func testReport(started time.Time) *domain.Report {
	return &domain.Report{
		RunID:      uuid.NewString(),
		Source:     "http://telemetry.local/records",
		StartedAt:  started,
		FinishedAt: started.Add(2 * time.Second),
		Dataset: domain.DatasetSummary{
			Rows: 5, Width: 3, Columns: domain.FeatureNames[:], LabelRule: "balance",
		},
		Requested: []domain.ModelKind{domain.ModelReduction, domain.ModelClustering},
		Models: domain.ModelResults{
			domain.ModelReduction: {
				Kind:     domain.ModelReduction,
				Duration: 1500 * time.Microsecond,
				Reduction: &domain.ReductionOutput{
					Components:     2,
					Coordinates:    [][]float64{{1, 0}, {-1, 0}},
					ExplainedRatio: []float64{0.9, 0.1},
				},
			},
			domain.ModelClustering: domain.FailedResult(domain.ModelClustering, domain.ErrInsufficientData),
		},
		Wealth: &domain.WealthSummary{
			Account:    "4uQeVj5tqViQh7yWWGStvkEG1Zmhx6uasJtWCJziofM",
			Balance:    1_500_000_000,
			BalanceSOL: domain.LamportsToSOL(1_500_000_000),
		},
	}
}

func TestReportStore_InsertAndGet(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewReportStore(pool)
	ctx := context.Background()

	report := testReport(time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC))
	require.NoError(t, store.Insert(ctx, report))

	got, err := store.GetByRunID(ctx, report.RunID)
	require.NoError(t, err)

	assert.Equal(t, report.RunID, got.RunID)
	assert.True(t, report.StartedAt.Equal(got.StartedAt))
	assert.Equal(t, report.Dataset, got.Dataset)
	assert.Equal(t, report.Requested, got.Requested)
	assert.Equal(t, report.Models[domain.ModelReduction].Reduction, got.Models[domain.ModelReduction].Reduction)
	assert.False(t, got.Models[domain.ModelClustering].OK())
	require.NotNil(t, got.Wealth)
	assert.Equal(t, "1.5", got.Wealth.BalanceSOL.String())

	statuses, err := store.GetModelStatuses(ctx, report.RunID)
	require.NoError(t, err)
	require.Len(t, statuses, 2)
	assert.Equal(t, domain.ModelClustering, statuses[0].Kind)
	assert.False(t, statuses[0].OK)
	assert.Contains(t, statuses[0].Err, "insufficient data")
	assert.Equal(t, domain.ModelReduction, statuses[1].Kind)
	assert.True(t, statuses[1].OK)
	assert.InDelta(t, 1.5, statuses[1].DurationMs, 1e-9)
}

func TestReportStore_InsertDuplicate(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewReportStore(pool)
	ctx := context.Background()

	report := testReport(time.Now().UTC())
	require.NoError(t, store.Insert(ctx, report))
	assert.ErrorIs(t, store.Insert(ctx, report), storage.ErrDuplicateKey)
}

func TestReportStore_NotFound(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := postgres.NewReportStore(pool).GetByRunID(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrNotFound)
}

func TestReportStore_List(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	store := postgres.NewReportStore(pool)
	ctx := context.Background()
	base := time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC)

	later := testReport(base.Add(time.Hour))
	earlier := testReport(base)
	require.NoError(t, store.Insert(ctx, later))
	require.NoError(t, store.Insert(ctx, earlier))

	list, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, earlier.RunID, list[0].RunID)
	assert.Equal(t, later.RunID, list[1].RunID)
}

func TestRunPostgresMigrations_Idempotent(t *testing.T) {
	pool, cleanup := setupTestDB(t)
	defer cleanup()

	applied, err := migrations.RunPostgresMigrations(context.Background(), pool)
	require.NoError(t, err)
	assert.Empty(t, applied)
}
