// Package config loads run configuration from the environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"

	"solana-telemetry-lab/internal/domain"
	"solana-telemetry-lab/internal/features"
)

// Configuration keys. Each is read from the environment variable of the same name.
const (
	KeyEndpointURL         = "ENDPOINT_URL"
	KeyNodeRPCURL          = "NODE_RPC_URL"
	KeyProbeAccount        = "PROBE_ACCOUNT"
	KeyProbeMint           = "PROBE_MINT"
	KeyLargestHoldersLimit = "LARGEST_HOLDERS_LIMIT"
	KeyEnabledModels       = "ENABLED_MODELS"
	KeyKMeansClusters      = "KMEANS_CLUSTERS"
	KeyKMeansSeed          = "KMEANS_SEED"
	KeyKMeansMaxIter       = "KMEANS_MAX_ITER"
	KeyLogRegMaxIter       = "LOGREG_MAX_ITER"
	KeyLogRegLearningRate  = "LOGREG_LEARNING_RATE"
	KeyPCAComponents       = "PCA_COMPONENTS"
	KeyLabelRule           = "LABEL_RULE"
	KeyFetchTimeout        = "FETCH_TIMEOUT"
	KeyRPCTimeout          = "RPC_TIMEOUT"
	KeyRPCMaxRetries       = "RPC_MAX_RETRIES"
	KeyFetchRetries        = "FETCH_RETRIES"
	KeyTelemetrySource     = "TELEMETRY_SOURCE"
	KeySampleAccounts      = "SAMPLE_ACCOUNTS"
	KeyReportFormat        = "REPORT_FORMAT"
	KeyReportFile          = "REPORT_FILE"
	KeyReportSink          = "REPORT_SINK"
	KeyPostgresDSN         = "POSTGRES_DSN"
	KeyClickHouseDSN       = "CLICKHOUSE_DSN"
	KeyMetricsTextfile     = "METRICS_TEXTFILE"
	KeyLogLevel            = "LOG_LEVEL"
	KeyLogFormat           = "LOG_FORMAT"
)

// Telemetry sources.
const (
	SourceHTTP = "http"
	SourceRPC  = "rpc"
)

// Report formats.
const (
	FormatText     = "text"
	FormatJSON     = "json"
	FormatMarkdown = "markdown"
	FormatCSV      = "csv"
)

// Report sinks.
const (
	SinkNone       = "none"
	SinkMemory     = "memory"
	SinkPostgres   = "postgres"
	SinkClickHouse = "clickhouse"
)

// DefaultEnvFile is read when present in the working directory.
const DefaultEnvFile = ".env"

// Config is the validated run configuration.
type Config struct {
	EndpointURL     string
	TelemetrySource string
	SampleAccounts  []string
	FetchTimeout    time.Duration
	FetchRetries    int

	NodeRPCURL          string
	RPCTimeout          time.Duration
	RPCMaxRetries       int
	ProbeAccount        string
	ProbeMint           string
	LargestHoldersLimit int

	EnabledModels      domain.ModelSet
	LabelRule          string
	PCAComponents      int
	LogRegMaxIter      int
	LogRegLearningRate float64
	KMeansClusters     int
	KMeansSeed         uint64
	KMeansMaxIter      int

	ReportFormat    string
	ReportFile      string
	ReportSink      string
	PostgresDSN     string
	ClickHouseDSN   string
	MetricsTextfile string

	LogLevel  string
	LogFormat string
}

func setDefaults(v *viper.Viper) {
	v.SetDefault(KeyEndpointURL, "")
	v.SetDefault(KeyTelemetrySource, SourceHTTP)
	v.SetDefault(KeySampleAccounts, "")
	v.SetDefault(KeyFetchTimeout, "30s")
	v.SetDefault(KeyFetchRetries, 0)

	v.SetDefault(KeyNodeRPCURL, "https://api.mainnet-beta.solana.com")
	v.SetDefault(KeyRPCTimeout, "15s")
	v.SetDefault(KeyRPCMaxRetries, 0)
	v.SetDefault(KeyProbeAccount, "")
	v.SetDefault(KeyProbeMint, "So11111111111111111111111111111111111111112")
	v.SetDefault(KeyLargestHoldersLimit, 10)

	v.SetDefault(KeyEnabledModels, "reduction,classification,clustering")
	v.SetDefault(KeyLabelRule, "balance")
	v.SetDefault(KeyPCAComponents, 2)
	v.SetDefault(KeyLogRegMaxIter, 150)
	v.SetDefault(KeyLogRegLearningRate, 0.1)
	v.SetDefault(KeyKMeansClusters, 3)
	v.SetDefault(KeyKMeansSeed, 42)
	v.SetDefault(KeyKMeansMaxIter, 300)

	v.SetDefault(KeyReportFormat, FormatText)
	v.SetDefault(KeyReportFile, "")
	v.SetDefault(KeyReportSink, SinkNone)
	v.SetDefault(KeyPostgresDSN, "")
	v.SetDefault(KeyClickHouseDSN, "")
	v.SetDefault(KeyMetricsTextfile, "")

	v.SetDefault(KeyLogLevel, "info")
	v.SetDefault(KeyLogFormat, "console")
}

// Load reads configuration from envFile (if it exists) overlaid by the process environment.
// An empty envFile means DefaultEnvFile.
func Load(envFile string) (*Config, error) {
	if envFile == "" {
		envFile = DefaultEnvFile
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if _, err := os.Stat(envFile); err == nil {
		v.SetConfigFile(envFile)
		v.SetConfigType("env")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", domain.ErrInvalidConfig, envFile, err)
		}
	} else if !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("%w: stat %s: %v", domain.ErrInvalidConfig, envFile, err)
	}

	return fromViper(v)
}

// fromViper converts raw values and validates them.
func fromViper(v *viper.Viper) (*Config, error) {
	p := parser{v: v}
	cfg := &Config{
		EndpointURL:     strings.TrimSpace(v.GetString(KeyEndpointURL)),
		TelemetrySource: strings.ToLower(strings.TrimSpace(v.GetString(KeyTelemetrySource))),
		SampleAccounts:  splitList(v.GetString(KeySampleAccounts)),
		FetchTimeout:    p.duration(KeyFetchTimeout),
		FetchRetries:    p.nonNegativeInt(KeyFetchRetries),

		NodeRPCURL:          strings.TrimSpace(v.GetString(KeyNodeRPCURL)),
		RPCTimeout:          p.duration(KeyRPCTimeout),
		RPCMaxRetries:       p.nonNegativeInt(KeyRPCMaxRetries),
		ProbeAccount:        strings.TrimSpace(v.GetString(KeyProbeAccount)),
		ProbeMint:           strings.TrimSpace(v.GetString(KeyProbeMint)),
		LargestHoldersLimit: p.positiveInt(KeyLargestHoldersLimit),

		LabelRule:          strings.TrimSpace(v.GetString(KeyLabelRule)),
		PCAComponents:      p.positiveInt(KeyPCAComponents),
		LogRegMaxIter:      p.positiveInt(KeyLogRegMaxIter),
		LogRegLearningRate: p.positiveFloat(KeyLogRegLearningRate),
		KMeansClusters:     p.positiveInt(KeyKMeansClusters),
		KMeansSeed:         p.unsigned(KeyKMeansSeed),
		KMeansMaxIter:      p.positiveInt(KeyKMeansMaxIter),

		ReportFormat:    strings.ToLower(strings.TrimSpace(v.GetString(KeyReportFormat))),
		ReportFile:      strings.TrimSpace(v.GetString(KeyReportFile)),
		ReportSink:      strings.ToLower(strings.TrimSpace(v.GetString(KeyReportSink))),
		PostgresDSN:     strings.TrimSpace(v.GetString(KeyPostgresDSN)),
		ClickHouseDSN:   strings.TrimSpace(v.GetString(KeyClickHouseDSN)),
		MetricsTextfile: strings.TrimSpace(v.GetString(KeyMetricsTextfile)),

		LogLevel:  strings.ToLower(strings.TrimSpace(v.GetString(KeyLogLevel))),
		LogFormat: strings.ToLower(strings.TrimSpace(v.GetString(KeyLogFormat))),
	}
	if p.err != nil {
		return nil, p.err
	}

	models, err := parseModels(v.GetString(KeyEnabledModels))
	if err != nil {
		return nil, err
	}
	cfg.EnabledModels = models

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks cross-field constraints.
func (c *Config) Validate() error {
	switch c.TelemetrySource {
	case SourceHTTP:
		if c.EndpointURL == "" {
			return invalid(KeyEndpointURL, "required when %s=%s", KeyTelemetrySource, SourceHTTP)
		}
	case SourceRPC:
		if len(c.SampleAccounts) == 0 {
			return invalid(KeySampleAccounts, "required when %s=%s", KeyTelemetrySource, SourceRPC)
		}
		for _, a := range c.SampleAccounts {
			if err := checkPubkey(a); err != nil {
				return invalid(KeySampleAccounts, "%v", err)
			}
		}
	default:
		return invalid(KeyTelemetrySource, "unknown source %q", c.TelemetrySource)
	}

	if c.NodeRPCURL == "" {
		return invalid(KeyNodeRPCURL, "must not be empty")
	}
	if c.ProbeAccount != "" {
		if err := checkPubkey(c.ProbeAccount); err != nil {
			return invalid(KeyProbeAccount, "%v", err)
		}
	}
	if err := checkPubkey(c.ProbeMint); err != nil {
		return invalid(KeyProbeMint, "%v", err)
	}

	if _, err := features.LabelRuleByName(c.LabelRule); err != nil {
		return fmt.Errorf("%s: %w", KeyLabelRule, err)
	}

	switch c.ReportFormat {
	case FormatText, FormatJSON, FormatMarkdown, FormatCSV:
	default:
		return invalid(KeyReportFormat, "unknown format %q", c.ReportFormat)
	}

	switch c.ReportSink {
	case SinkNone, SinkMemory:
	case SinkPostgres:
		if c.PostgresDSN == "" {
			return invalid(KeyPostgresDSN, "required when %s=%s", KeyReportSink, SinkPostgres)
		}
	case SinkClickHouse:
		if c.ClickHouseDSN == "" {
			return invalid(KeyClickHouseDSN, "required when %s=%s", KeyReportSink, SinkClickHouse)
		}
	default:
		return invalid(KeyReportSink, "unknown sink %q", c.ReportSink)
	}

	if _, err := zerolog.ParseLevel(c.LogLevel); err != nil {
		return invalid(KeyLogLevel, "%v", err)
	}
	switch c.LogFormat {
	case "console", "json":
	default:
		return invalid(KeyLogFormat, "unknown format %q", c.LogFormat)
	}
	return nil
}

func invalid(key, format string, args ...any) error {
	return fmt.Errorf("%w: %s: %s", domain.ErrInvalidConfig, key, fmt.Sprintf(format, args...))
}

func checkPubkey(s string) error {
	b, err := base58.Decode(s)
	if err != nil {
		return fmt.Errorf("%q is not base58: %v", s, err)
	}
	if len(b) != 32 {
		return fmt.Errorf("%q decodes to %d bytes, expected 32", s, len(b))
	}
	return nil
}

func parseModels(raw string) (domain.ModelSet, error) {
	kinds := splitList(raw)
	if len(kinds) == 0 {
		return nil, invalid(KeyEnabledModels, "no models enabled")
	}
	set := domain.NewModelSet()
	for _, k := range kinds {
		kind, err := domain.ParseModelKind(k)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", KeyEnabledModels, err)
		}
		set[kind] = true
	}
	return set, nil
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// parser records the first conversion error so fields can be read in one pass.
type parser struct {
	v   *viper.Viper
	err error
}

func (p *parser) raw(key string) string {
	return strings.TrimSpace(p.v.GetString(key))
}

func (p *parser) fail(key, format string, args ...any) {
	if p.err == nil {
		p.err = invalid(key, format, args...)
	}
}

func (p *parser) duration(key string) time.Duration {
	d, err := time.ParseDuration(p.raw(key))
	if err != nil || d <= 0 {
		p.fail(key, "expected a positive duration, got %q", p.raw(key))
		return 0
	}
	return d
}

func (p *parser) integer(key string) (int, bool) {
	n, err := strconv.Atoi(p.raw(key))
	if err != nil {
		p.fail(key, "expected an integer, got %q", p.raw(key))
		return 0, false
	}
	return n, true
}

func (p *parser) positiveInt(key string) int {
	n, ok := p.integer(key)
	if ok && n <= 0 {
		p.fail(key, "must be > 0, got %d", n)
	}
	return n
}

func (p *parser) nonNegativeInt(key string) int {
	n, ok := p.integer(key)
	if ok && n < 0 {
		p.fail(key, "must be >= 0, got %d", n)
	}
	return n
}

func (p *parser) unsigned(key string) uint64 {
	n, err := strconv.ParseUint(p.raw(key), 10, 64)
	if err != nil {
		p.fail(key, "expected an unsigned integer, got %q", p.raw(key))
	}
	return n
}

func (p *parser) positiveFloat(key string) float64 {
	f, err := strconv.ParseFloat(p.raw(key), 64)
	if err != nil || !(f > 0) {
		p.fail(key, "expected a positive number, got %q", p.raw(key))
		return 0
	}
	return f
}
