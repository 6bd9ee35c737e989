package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-telemetry-lab/internal/analysis"
	"solana-telemetry-lab/internal/domain"
	"solana-telemetry-lab/internal/health"
	"solana-telemetry-lab/internal/observability"
	"solana-telemetry-lab/internal/solana/stub"
	"solana-telemetry-lab/internal/storage"
	"solana-telemetry-lab/internal/storage/memory"
	"solana-telemetry-lab/internal/telemetry"
)

const probeAccount = "4uQeVj5tqViQh7yWWGStvkEG1Zmhx6uasJtWCJziofM"

var fixedTime = time.Date(2025, 1, 4, 12, 0, 0, 0, time.UTC)

// fakeSource replays a scripted sequence of fetch outcomes; the last one repeats.
type fakeSource struct {
	outcomes []fetchOutcome
	calls    atomic.Int32
}

type fetchOutcome struct {
	records []domain.TelemetryRecord
	err     error
}

func (s *fakeSource) Name() string { return "fake" }

func (s *fakeSource) Fetch(context.Context) ([]domain.TelemetryRecord, error) {
	i := int(s.calls.Add(1)) - 1
	if i >= len(s.outcomes) {
		i = len(s.outcomes) - 1
	}
	o := s.outcomes[i]
	return o.records, o.err
}

func fiveRecords() []domain.TelemetryRecord {
	return []domain.TelemetryRecord{
		{Balance: 100, LargestAccounts: []uint64{1, 2}, ClusterNodes: 10, HealthStatus: "ok"},
		{Balance: 200, LargestAccounts: []uint64{1, 2, 3}, ClusterNodes: 12, HealthStatus: "ok"},
		{Balance: 150, LargestAccounts: []uint64{1}, ClusterNodes: 11, HealthStatus: "ok"},
		{Balance: 300, LargestAccounts: []uint64{1, 2, 3, 4}, ClusterNodes: 15, HealthStatus: "ok"},
		{Balance: 250, LargestAccounts: []uint64{5, 6}, ClusterNodes: 13, HealthStatus: "ok"},
	}
}

func healthyProber() (*health.Prober, *stub.RPCClient) {
	client := stub.NewRPCClient()
	client.Balances[probeAccount] = 2_000_000_000
	client.SetLargest(health.WrappedSOLMint, 700, 200, 100)
	return health.NewProber(client, probeAccount, "", 0), client
}

func newTestOrchestrator(src telemetry.Source, opts Options) *Orchestrator {
	opts.Source = src
	opts.Logger = zerolog.Nop()
	opts.Clock = func() time.Time { return fixedTime }
	opts.NewRunID = func() string { return "run-test" }
	opts.RetryInterval = time.Millisecond
	return New(opts)
}

func TestOrchestrator_Run_FiveRecords(t *testing.T) {
	ctx := context.Background()
	prober, _ := healthyProber()
	metrics := observability.NewMetrics("test")
	reports := memory.NewReportStore()
	rows := memory.NewFeatureRowStore()

	orch := newTestOrchestrator(&fakeSource{outcomes: []fetchOutcome{{records: fiveRecords()}}}, Options{
		Prober:  prober,
		Metrics: metrics,
		Sinks: []Sink{
			storage.NewReportSink("memory", reports),
			storage.NewFeatureRowSink("memory-rows", rows),
		},
	})

	report, err := orch.Run(ctx)
	require.NoError(t, err)

	assert.Equal(t, "run-test", report.RunID)
	assert.Equal(t, "fake", report.Source)
	assert.Equal(t, fixedTime, report.StartedAt)
	assert.Equal(t, 5, report.Dataset.Rows)
	assert.Equal(t, 3, report.Dataset.Width)
	assert.Equal(t, []string{"balance", "largest_accounts", "cluster_nodes"}, report.Dataset.Columns)
	assert.Equal(t, "balance", report.Dataset.LabelRule)
	assert.Len(t, report.Dataset.Fingerprint, 64)
	assert.Equal(t, domain.AllModelKinds(), report.Requested)

	require.Len(t, report.Models, 3)
	for _, kind := range domain.AllModelKinds() {
		assert.True(t, report.Models[kind].OK(), "%s: %s", kind, report.Models[kind].Err)
	}
	assignments := report.Models[domain.ModelClustering].Clustering.Assignments
	require.Len(t, assignments, 5)
	for _, a := range assignments {
		assert.Contains(t, []int{0, 1, 2}, a)
	}

	require.NotNil(t, report.Wealth)
	assert.Equal(t, "2", report.Wealth.BalanceSOL.String())
	assert.InDelta(t, 0.7, report.Wealth.TopHolderShare, 1e-12)
	assert.Empty(t, report.ProbeError)
	assert.Zero(t, report.PartialFailures())

	require.Len(t, report.Rows, 5)
	for i, row := range report.Rows {
		assert.Equal(t, i, row.Index)
		assert.Len(t, row.Projection, 2)
		assert.NotNil(t, row.Prediction)
		assert.NotNil(t, row.Cluster)
	}

	stored, err := reports.GetByRunID(ctx, "run-test")
	require.NoError(t, err)
	assert.Equal(t, 5, stored.Dataset.Rows)
	storedRows, err := rows.GetByRunID(ctx, "run-test")
	require.NoError(t, err)
	assert.Len(t, storedRows, 5)

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PipelineRunsTotal.WithLabelValues(observability.StatusSuccess)))
	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.DatasetRows))
	assert.Equal(t, 5.0, testutil.ToFloat64(metrics.RecordsFetched))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ProbeRunsTotal.WithLabelValues(observability.StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ModelRunsTotal.WithLabelValues("clustering", observability.StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SinkWritesTotal.WithLabelValues("memory", observability.StatusSuccess)))
}

func TestOrchestrator_Run_ProbeFailure(t *testing.T) {
	prober, client := healthyProber()
	client.Err = errors.New("connection refused")
	metrics := observability.NewMetrics("test")

	orch := newTestOrchestrator(&fakeSource{outcomes: []fetchOutcome{{records: fiveRecords()}}}, Options{
		Prober:  prober,
		Metrics: metrics,
	})

	report, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Nil(t, report.Wealth)
	assert.Contains(t, report.ProbeError, "rpc error")
	assert.Contains(t, report.ProbeError, "connection refused")
	for _, kind := range domain.AllModelKinds() {
		assert.True(t, report.Models[kind].OK(), kind)
	}
	assert.Equal(t, 1, report.PartialFailures())
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ProbeRunsTotal.WithLabelValues(observability.StatusFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PipelineRunsTotal.WithLabelValues(observability.StatusSuccess)))
}

func TestOrchestrator_Run_NoProber(t *testing.T) {
	metrics := observability.NewMetrics("test")
	orch := newTestOrchestrator(&fakeSource{outcomes: []fetchOutcome{{records: fiveRecords()}}}, Options{
		Metrics: metrics,
	})

	report, err := orch.Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, ErrProbeNotConfigured.Error(), report.ProbeError)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.ProbeRunsTotal.WithLabelValues(observability.StatusSkipped)))
}

func TestOrchestrator_Run_MalformedPayload(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`[{"balance": -5, "largest_accounts": [], "cluster_nodes": 1, "slot_leaders": [], "health_status": "ok", "block_production_rate": 1}]`))
	}))
	defer server.Close()

	var fits atomic.Int32
	counting := func(kind domain.ModelKind) analysis.Model {
		return countingModel{kind: kind, fits: &fits}
	}
	metrics := observability.NewMetrics("test")

	orch := newTestOrchestrator(telemetry.NewHTTPFetcher(server.URL), Options{
		Runner: analysis.NewRunnerWithModels(false,
			counting(domain.ModelReduction),
			counting(domain.ModelClassification),
			counting(domain.ModelClustering),
		),
		FetchRetries: 3,
		Metrics:      metrics,
	})

	report, err := orch.Run(context.Background())
	require.Error(t, err)
	assert.Nil(t, report)

	var abort *domain.PipelineAbortError
	require.True(t, errors.As(err, &abort))
	assert.Equal(t, domain.StageFetch, abort.Stage)
	assert.ErrorIs(t, err, domain.ErrPipelineAbort)
	assert.ErrorIs(t, err, domain.ErrDecode)
	assert.Zero(t, fits.Load())

	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.PipelineRunsTotal.WithLabelValues(observability.StatusFailure)))
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.FetchErrors.WithLabelValues("decode")))
}

type countingModel struct {
	kind domain.ModelKind
	fits *atomic.Int32
}

func (m countingModel) Kind() domain.ModelKind { return m.kind }

func (m countingModel) Fit(context.Context, *domain.Dataset) (domain.ModelResult, error) {
	m.fits.Add(1)
	return domain.ModelResult{}, nil
}

func TestOrchestrator_Run_RetriesTransportErrors(t *testing.T) {
	transportErr := fmt.Errorf("%w: status 503", domain.ErrTransport)
	src := &fakeSource{outcomes: []fetchOutcome{
		{err: transportErr},
		{err: transportErr},
		{records: fiveRecords()},
	}}

	report, err := newTestOrchestrator(src, Options{FetchRetries: 2}).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, report.Dataset.Rows)
	assert.Equal(t, int32(3), src.calls.Load())
}

func TestOrchestrator_Run_RetriesExhausted(t *testing.T) {
	src := &fakeSource{outcomes: []fetchOutcome{{err: fmt.Errorf("%w: connection refused", domain.ErrTransport)}}}

	_, err := newTestOrchestrator(src, Options{FetchRetries: 1}).Run(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, domain.ErrTransport)
	assert.ErrorIs(t, err, domain.ErrPipelineAbort)
	assert.Equal(t, int32(2), src.calls.Load())
}

func TestOrchestrator_Run_NoRetryByDefault(t *testing.T) {
	src := &fakeSource{outcomes: []fetchOutcome{{err: fmt.Errorf("%w: timeout", domain.ErrTransport)}}}

	_, err := newTestOrchestrator(src, Options{}).Run(context.Background())
	require.Error(t, err)
	assert.Equal(t, int32(1), src.calls.Load())
}

func TestOrchestrator_Run_EmptyDataset(t *testing.T) {
	src := &fakeSource{outcomes: []fetchOutcome{{records: []domain.TelemetryRecord{}}}}

	_, err := newTestOrchestrator(src, Options{}).Run(context.Background())
	require.Error(t, err)

	var abort *domain.PipelineAbortError
	require.True(t, errors.As(err, &abort))
	assert.Equal(t, domain.StageFeatures, abort.Stage)
	assert.ErrorIs(t, err, domain.ErrEmptyInput)
}

func TestOrchestrator_Run_FewerRowsThanClusters(t *testing.T) {
	src := &fakeSource{outcomes: []fetchOutcome{{records: fiveRecords()[:2]}}}

	report, err := newTestOrchestrator(src, Options{}).Run(context.Background())
	require.NoError(t, err)

	assert.False(t, report.Models[domain.ModelClustering].OK())
	assert.Contains(t, report.Models[domain.ModelClustering].Err, "insufficient data")
	assert.True(t, report.Models[domain.ModelReduction].OK())
	assert.True(t, report.Models[domain.ModelClassification].OK())
	for _, row := range report.Rows {
		assert.Nil(t, row.Cluster)
	}
}

func TestOrchestrator_Run_EnabledSubset(t *testing.T) {
	src := &fakeSource{outcomes: []fetchOutcome{{records: fiveRecords()}}}

	report, err := newTestOrchestrator(src, Options{
		Enabled: domain.NewModelSet(domain.ModelReduction),
	}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, []domain.ModelKind{domain.ModelReduction}, report.Requested)
	require.Len(t, report.Models, 1)
	assert.True(t, report.Models[domain.ModelReduction].OK())
}

type failingSink struct{}

func (failingSink) Name() string { return "broken" }

func (failingSink) Write(context.Context, *domain.Report) error {
	return errors.New("disk full")
}

func TestOrchestrator_Run_SinkFailureDoesNotAbort(t *testing.T) {
	metrics := observability.NewMetrics("test")
	reports := memory.NewReportStore()
	src := &fakeSource{outcomes: []fetchOutcome{{records: fiveRecords()}}}

	report, err := newTestOrchestrator(src, Options{
		Metrics: metrics,
		Sinks:   []Sink{failingSink{}, storage.NewReportSink("memory", reports)},
	}).Run(context.Background())
	require.NoError(t, err)

	assert.Equal(t, "disk full", report.SinkError)
	_, err = reports.GetByRunID(context.Background(), "run-test")
	assert.NoError(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(metrics.SinkWritesTotal.WithLabelValues("broken", observability.StatusFailure)))
}

func TestOrchestrator_Run_DeterministicAcrossRuns(t *testing.T) {
	run := func() *domain.Report {
		src := &fakeSource{outcomes: []fetchOutcome{{records: fiveRecords()}}}
		report, err := newTestOrchestrator(src, Options{}).Run(context.Background())
		require.NoError(t, err)
		return report
	}
	a, b := run(), run()

	assert.Equal(t, a.Dataset.Fingerprint, b.Dataset.Fingerprint)
	assert.Equal(t,
		a.Models[domain.ModelClustering].Clustering.Assignments,
		b.Models[domain.ModelClustering].Clustering.Assignments)
	assert.Equal(t,
		a.Models[domain.ModelClassification].Classification.Predictions,
		b.Models[domain.ModelClassification].Classification.Predictions)
}
