package observability

import (
	"errors"
	"fmt"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-telemetry-lab/internal/domain"
)

func TestMetrics_IndependentRegistries(t *testing.T) {
	// two instances with the same namespace must not collide
	a := NewMetrics("")
	b := NewMetrics("")

	a.RecordProbe(StatusSuccess)
	assert.Equal(t, 1.0, testutil.ToFloat64(a.ProbeRunsTotal.WithLabelValues(StatusSuccess)))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.ProbeRunsTotal.WithLabelValues(StatusSuccess)))
}

func TestMetrics_RecordFetch(t *testing.T) {
	m := NewMetrics("test")

	m.RecordFetch("http://x", 20*time.Millisecond, 5, nil)
	m.RecordFetch("http://x", time.Millisecond, 0, fmt.Errorf("%w: status 502", domain.ErrTransport))
	m.RecordFetch("http://x", time.Millisecond, 0, fmt.Errorf("%w: bad json", domain.ErrDecode))
	m.RecordFetch("http://x", time.Millisecond, 0, errors.New("other"))

	assert.Equal(t, 5.0, testutil.ToFloat64(m.RecordsFetched))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchErrors.WithLabelValues("transport")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchErrors.WithLabelValues("decode")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.FetchErrors.WithLabelValues("other")))
}

func TestMetrics_RecordModels(t *testing.T) {
	m := NewMetrics("test")
	m.RecordModels(domain.ModelResults{
		domain.ModelReduction:  {Kind: domain.ModelReduction, Duration: time.Millisecond},
		domain.ModelClustering: domain.FailedResult(domain.ModelClustering, domain.ErrInsufficientData),
	})

	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModelRunsTotal.WithLabelValues("reduction", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ModelRunsTotal.WithLabelValues("clustering", StatusFailure)))
	assert.Equal(t, 2, testutil.CollectAndCount(m.ModelDuration))
}

func TestMetrics_RecordPipelineRun(t *testing.T) {
	m := NewMetrics("test")
	finished := time.Date(2025, 1, 5, 12, 0, 0, 0, time.UTC)

	m.RecordPipelineRun(StatusFailure, time.Second, finished)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.LastSuccessfulRun))

	m.RecordPipelineRun(StatusSuccess, time.Second, finished)
	assert.Equal(t, float64(finished.Unix()), testutil.ToFloat64(m.LastSuccessfulRun))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.PipelineRunsTotal.WithLabelValues(StatusSuccess)))
}

func TestMetrics_RPCAndSink(t *testing.T) {
	m := NewMetrics("test")
	m.RecordRPCLatency("getBalance", time.Millisecond, nil)
	m.RecordRPCLatency("getBalance", time.Millisecond, errors.New("boom"))
	m.RecordSink("postgres", nil)
	m.RecordSink("postgres", errors.New("down"))

	assert.Equal(t, 1.0, testutil.ToFloat64(m.RPCCallErrors.WithLabelValues("getBalance")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SinkWritesTotal.WithLabelValues("postgres", StatusSuccess)))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.SinkWritesTotal.WithLabelValues("postgres", StatusFailure)))
}

func TestMetrics_NilReceiver(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.RecordFetch("x", time.Second, 1, nil)
		m.RecordDataset(3)
		m.RecordModels(domain.ModelResults{})
		m.RecordProbe(StatusSkipped)
		m.RecordRPCLatency("getHealth", time.Second, nil)
		m.RecordSink("memory", nil)
		m.RecordPipelineRun(StatusSuccess, time.Second, time.Now())
	})
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := NewMetrics("test")
	m.RecordDataset(5)

	path := filepath.Join(t.TempDir(), "run.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "test_features_dataset_rows 5")
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics("test")
	m.RecordProbe(StatusFailure)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, rec.Code)
	assert.True(t, strings.Contains(rec.Body.String(), `test_probe_runs_total{status="failure"} 1`))
}
