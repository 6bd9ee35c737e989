// Package main provides the analysis pipeline entry point.
// Executes: fetch ∥ probe → features → models → report
//
// Exit codes: 0 report produced (possibly with partial failures), 1 pipeline abort,
// 2 configuration error.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"

	"solana-telemetry-lab/internal/analysis"
	"solana-telemetry-lab/internal/config"
	"solana-telemetry-lab/internal/domain"
	"solana-telemetry-lab/internal/features"
	"solana-telemetry-lab/internal/health"
	"solana-telemetry-lab/internal/observability"
	"solana-telemetry-lab/internal/orchestrator"
	"solana-telemetry-lab/internal/reporting"
	"solana-telemetry-lab/internal/solana"
	"solana-telemetry-lab/internal/storage"
	chstore "solana-telemetry-lab/internal/storage/clickhouse"
	"solana-telemetry-lab/internal/storage/memory"
	"solana-telemetry-lab/internal/storage/migrations"
	pgstore "solana-telemetry-lab/internal/storage/postgres"
	"solana-telemetry-lab/internal/telemetry"
)

const (
	exitOK     = 0
	exitAbort  = 1
	exitConfig = 2
)

func main() {
	os.Exit(run())
}

func run() int {
	// Parse flags
	envFile := flag.String("env-file", config.DefaultEnvFile, "Optional .env file overlaid by the environment")
	interval := flag.Duration("interval", 0, "Re-run the pipeline at this interval (0 runs once)")
	metricsAddr := flag.String("metrics-addr", "", "Serve Prometheus metrics on this address while running")
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitConfig
	}
	logger := newLogger(cfg)

	// Create context with cancellation for graceful shutdown
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info().Str("signal", sig.String()).Msg("cancelling pipeline")
		cancel()
	}()

	metrics := observability.NewMetrics("")
	rpc := solana.NewHTTPClient(cfg.NodeRPCURL,
		solana.WithTimeout(cfg.RPCTimeout),
		solana.WithMaxRetries(cfg.RPCMaxRetries),
		solana.WithObserver(metrics.RecordRPCLatency),
	)

	rule, err := features.LabelRuleByName(cfg.LabelRule)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return exitConfig
	}

	sinks, cleanup := createSinks(ctx, cfg, logger)
	defer cleanup()

	var prober orchestrator.Prober
	if cfg.ProbeAccount != "" {
		prober = health.NewProber(rpc, cfg.ProbeAccount, cfg.ProbeMint, cfg.LargestHoldersLimit)
	}

	orch := orchestrator.New(orchestrator.Options{
		Source:  createSource(cfg, rpc),
		Builder: features.NewBuilder(rule),
		Runner: analysis.NewRunner(analysis.Options{
			PCAComponents:      cfg.PCAComponents,
			LogRegMaxIter:      cfg.LogRegMaxIter,
			LogRegLearningRate: cfg.LogRegLearningRate,
			KMeansClusters:     cfg.KMeansClusters,
			KMeansSeed:         cfg.KMeansSeed,
			KMeansMaxIter:      cfg.KMeansMaxIter,
		}),
		Enabled:      cfg.EnabledModels,
		Prober:       prober,
		Sinks:        sinks,
		FetchRetries: cfg.FetchRetries,
		Logger:       logger,
		Metrics:      metrics,
	})

	if *metricsAddr != "" {
		stop := serveMetrics(*metricsAddr, metrics, logger)
		defer stop()
	}

	code := runOnce(ctx, orch, cfg, metrics, logger)
	if *interval <= 0 {
		return code
	}

	ticker := time.NewTicker(*interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return exitOK
		case <-ticker.C:
			runOnce(ctx, orch, cfg, metrics, logger)
		}
	}
}

// runOnce executes one pipeline pass and emits its report.
func runOnce(ctx context.Context, orch *orchestrator.Orchestrator, cfg *config.Config, metrics *observability.Metrics, logger zerolog.Logger) int {
	defer writeMetricsTextfile(cfg.MetricsTextfile, metrics, logger)

	report, err := orch.Run(ctx)
	if err != nil {
		var abort *domain.PipelineAbortError
		if errors.As(err, &abort) {
			logger.Error().Err(abort.Err).Str("stage", abort.Stage).Msg("pipeline aborted")
		} else {
			logger.Error().Err(err).Msg("pipeline failed")
		}
		return exitAbort
	}

	out, err := reporting.Render(cfg.ReportFormat, report)
	if err != nil {
		logger.Error().Err(err).Msg("render report")
		return exitAbort
	}
	if err := writeReport(cfg.ReportFile, out); err != nil {
		logger.Error().Err(err).Str("file", cfg.ReportFile).Msg("write report")
		return exitAbort
	}

	if n := report.PartialFailures(); n > 0 {
		logger.Warn().Int("partial_failures", n).Msg("report produced with partial failures")
	}
	return exitOK
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var w io.Writer = os.Stderr
	if cfg.LogFormat == "console" {
		w = zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}
	}
	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}

// createSource selects the telemetry source.
func createSource(cfg *config.Config, rpc solana.RPCClient) telemetry.Source {
	if cfg.TelemetrySource == config.SourceRPC {
		return telemetry.NewNodeSampler(rpc, cfg.SampleAccounts, cfg.ProbeMint)
	}
	return telemetry.NewHTTPFetcher(cfg.EndpointURL, telemetry.WithFetchTimeout(cfg.FetchTimeout))
}

// createSinks connects the configured report sink. A sink that cannot be set up is
// logged and skipped; report transport never changes the exit code.
func createSinks(ctx context.Context, cfg *config.Config, logger zerolog.Logger) ([]orchestrator.Sink, func()) {
	noop := func() {}

	switch cfg.ReportSink {
	case config.SinkMemory:
		return []orchestrator.Sink{storage.NewReportSink(config.SinkMemory, memory.NewReportStore())}, noop

	case config.SinkPostgres:
		pool, err := pgstore.NewPool(ctx, cfg.PostgresDSN)
		if err != nil {
			logger.Error().Err(err).Msg("postgres sink disabled")
			return nil, noop
		}
		applied, err := migrations.RunPostgresMigrations(ctx, pool)
		if err != nil {
			pool.Close()
			logger.Error().Err(err).Msg("postgres sink disabled")
			return nil, noop
		}
		logger.Debug().Strs("applied", applied).Msg("postgres migrations")
		return []orchestrator.Sink{storage.NewReportSink(config.SinkPostgres, pgstore.NewReportStore(pool))}, pool.Close

	case config.SinkClickHouse:
		conn, err := migrations.RunClickhouseMigrations(ctx, cfg.ClickHouseDSN)
		if err != nil {
			logger.Error().Err(err).Msg("clickhouse sink disabled")
			return nil, noop
		}
		closeConn := func() {
			if err := conn.Close(); err != nil {
				logger.Warn().Err(err).Msg("close clickhouse connection")
			}
		}
		return []orchestrator.Sink{storage.NewFeatureRowSink(config.SinkClickHouse, chstore.NewFeatureRowStore(conn))}, closeConn

	default:
		return nil, noop
	}
}

// serveMetrics exposes /metrics until the returned stop function is called.
func serveMetrics(addr string, metrics *observability.Metrics, logger zerolog.Logger) func() {
	mux := http.NewServeMux()
	mux.Handle("/metrics", metrics.Handler())
	mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok\n"))
	})
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

	go func() {
		logger.Info().Str("addr", addr).Msg("serving metrics")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error().Err(err).Msg("metrics server")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}
}

func writeReport(path string, out []byte) error {
	if path == "" {
		_, err := os.Stdout.Write(out)
		return err
	}
	return os.WriteFile(path, out, 0o644)
}

func writeMetricsTextfile(path string, metrics *observability.Metrics, logger zerolog.Logger) {
	if path == "" {
		return
	}
	if err := metrics.WriteTextfile(path); err != nil {
		logger.Warn().Err(err).Str("file", path).Msg("write metrics textfile")
	}
}
