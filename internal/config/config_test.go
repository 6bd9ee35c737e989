package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"solana-telemetry-lab/internal/domain"
)

const validAccount = "4uQeVj5tqViQh7yWWGStvkEG1Zmhx6uasJtWCJziofM"

// noEnvFile points Load at a path that does not exist.
func noEnvFile(t *testing.T) string {
	return filepath.Join(t.TempDir(), "missing.env")
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv(KeyEndpointURL, "http://telemetry.local/records")

	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, "http://telemetry.local/records", cfg.EndpointURL)
	assert.Equal(t, SourceHTTP, cfg.TelemetrySource)
	assert.Equal(t, 30*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 0, cfg.FetchRetries)
	assert.Equal(t, "https://api.mainnet-beta.solana.com", cfg.NodeRPCURL)
	assert.Equal(t, 15*time.Second, cfg.RPCTimeout)
	assert.Equal(t, 0, cfg.RPCMaxRetries)
	assert.Empty(t, cfg.ProbeAccount)
	assert.Equal(t, "So11111111111111111111111111111111111111112", cfg.ProbeMint)
	assert.Equal(t, 10, cfg.LargestHoldersLimit)
	assert.Equal(t, domain.NewModelSet(domain.AllModelKinds()...), cfg.EnabledModels)
	assert.Equal(t, "balance", cfg.LabelRule)
	assert.Equal(t, 2, cfg.PCAComponents)
	assert.Equal(t, 150, cfg.LogRegMaxIter)
	assert.Equal(t, 0.1, cfg.LogRegLearningRate)
	assert.Equal(t, 3, cfg.KMeansClusters)
	assert.Equal(t, uint64(42), cfg.KMeansSeed)
	assert.Equal(t, 300, cfg.KMeansMaxIter)
	assert.Equal(t, FormatText, cfg.ReportFormat)
	assert.Equal(t, SinkNone, cfg.ReportSink)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.Equal(t, "console", cfg.LogFormat)
}

func TestLoad_Environment(t *testing.T) {
	t.Setenv(KeyEndpointURL, "http://telemetry.local/records")
	t.Setenv(KeyProbeAccount, validAccount)
	t.Setenv(KeyEnabledModels, " Clustering , reduction ")
	t.Setenv(KeyKMeansClusters, "4")
	t.Setenv(KeyLogRegMaxIter, "20")
	t.Setenv(KeyFetchTimeout, "2s")
	t.Setenv(KeyFetchRetries, "3")
	t.Setenv(KeyReportFormat, "JSON")
	t.Setenv(KeyLabelRule, "cluster_nodes")

	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)

	assert.Equal(t, validAccount, cfg.ProbeAccount)
	assert.Equal(t, domain.NewModelSet(domain.ModelClustering, domain.ModelReduction), cfg.EnabledModels)
	assert.Equal(t, 4, cfg.KMeansClusters)
	assert.Equal(t, 20, cfg.LogRegMaxIter)
	assert.Equal(t, 2*time.Second, cfg.FetchTimeout)
	assert.Equal(t, 3, cfg.FetchRetries)
	assert.Equal(t, FormatJSON, cfg.ReportFormat)
	assert.Equal(t, "cluster_nodes", cfg.LabelRule)
}

func TestLoad_EnvFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.env")
	content := "ENDPOINT_URL=http://from-file/records\nKMEANS_CLUSTERS=5\n"
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	// process environment wins over the file
	t.Setenv(KeyKMeansClusters, "6")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "http://from-file/records", cfg.EndpointURL)
	assert.Equal(t, 6, cfg.KMeansClusters)
}

func TestLoad_RPCSource(t *testing.T) {
	t.Setenv(KeyTelemetrySource, "rpc")
	t.Setenv(KeySampleAccounts, validAccount+", 11111111111111111111111111111111")

	cfg, err := Load(noEnvFile(t))
	require.NoError(t, err)
	assert.Equal(t, SourceRPC, cfg.TelemetrySource)
	assert.Equal(t, []string{validAccount, "11111111111111111111111111111111"}, cfg.SampleAccounts)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name string
		env  map[string]string
	}{
		{name: "missing endpoint", env: map[string]string{}},
		{name: "unknown model", env: map[string]string{KeyEnabledModels: "reduction,forest"}},
		{name: "no models", env: map[string]string{KeyEnabledModels: " , "}},
		{name: "zero clusters", env: map[string]string{KeyKMeansClusters: "0"}},
		{name: "negative clusters", env: map[string]string{KeyKMeansClusters: "-1"}},
		{name: "non-numeric iterations", env: map[string]string{KeyLogRegMaxIter: "many"}},
		{name: "zero iterations", env: map[string]string{KeyLogRegMaxIter: "0"}},
		{name: "bad timeout", env: map[string]string{KeyFetchTimeout: "soon"}},
		{name: "negative retries", env: map[string]string{KeyFetchRetries: "-2"}},
		{name: "bad learning rate", env: map[string]string{KeyLogRegLearningRate: "-0.5"}},
		{name: "bad seed", env: map[string]string{KeyKMeansSeed: "-7"}},
		{name: "bad probe account", env: map[string]string{KeyProbeAccount: "abc"}},
		{name: "bad mint", env: map[string]string{KeyProbeMint: "0OIl"}},
		{name: "unknown label rule", env: map[string]string{KeyLabelRule: "price"}},
		{name: "unknown source", env: map[string]string{KeyTelemetrySource: "kafka"}},
		{name: "rpc without accounts", env: map[string]string{KeyTelemetrySource: "rpc"}},
		{name: "unknown format", env: map[string]string{KeyReportFormat: "xml"}},
		{name: "unknown sink", env: map[string]string{KeyReportSink: "s3"}},
		{name: "postgres without dsn", env: map[string]string{KeyReportSink: "postgres"}},
		{name: "clickhouse without dsn", env: map[string]string{KeyReportSink: "clickhouse"}},
		{name: "bad log level", env: map[string]string{KeyLogLevel: "loud"}},
		{name: "bad log format", env: map[string]string{KeyLogFormat: "xml"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.name != "missing endpoint" {
				t.Setenv(KeyEndpointURL, "http://telemetry.local/records")
			}
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			_, err := Load(noEnvFile(t))
			assert.ErrorIs(t, err, domain.ErrInvalidConfig)
		})
	}
}
