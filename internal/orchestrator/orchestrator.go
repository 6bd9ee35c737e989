// Package orchestrator provides E2E pipeline orchestration.
// It coordinates: fetch → features → models, with the node health probe running alongside.
package orchestrator

import (
	"context"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"solana-telemetry-lab/internal/analysis"
	"solana-telemetry-lab/internal/domain"
	"solana-telemetry-lab/internal/features"
	"solana-telemetry-lab/internal/idhash"
	"solana-telemetry-lab/internal/observability"
	"solana-telemetry-lab/internal/telemetry"
)

// ErrProbeNotConfigured is reported when no probe account is configured.
var ErrProbeNotConfigured = errors.New("probe skipped: no probe account configured")

// DefaultRetryInterval is the first delay between fetch retries.
const DefaultRetryInterval = 500 * time.Millisecond

// Prober queries the node for the wealth summary.
type Prober interface {
	Probe(ctx context.Context) (*domain.WealthSummary, error)
}

// Sink receives finished reports.
type Sink interface {
	Name() string
	Write(ctx context.Context, r *domain.Report) error
}

// Options for creating Orchestrator.
type Options struct {
	// Required stages
	Source  telemetry.Source
	Builder *features.Builder
	Runner  *analysis.Runner
	Enabled domain.ModelSet

	// Prober may be nil, in which case the probe is reported as skipped.
	Prober Prober
	Sinks  []Sink

	// FetchRetries is the number of extra fetch attempts after a transport failure.
	FetchRetries  int
	RetryInterval time.Duration

	Logger  zerolog.Logger
	Metrics *observability.Metrics

	// Clock and NewRunID are injectable for deterministic output.
	Clock    func() time.Time
	NewRunID func() string
}

// Orchestrator coordinates the pipeline execution.
type Orchestrator struct {
	source  telemetry.Source
	builder *features.Builder
	runner  *analysis.Runner
	enabled domain.ModelSet
	prober  Prober
	sinks   []Sink

	fetchRetries  int
	retryInterval time.Duration

	logger  zerolog.Logger
	metrics *observability.Metrics
	now     func() time.Time
	runID   func() string
}

// New creates a new Orchestrator. Missing optional stages fall back to defaults.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		source:        opts.Source,
		builder:       opts.Builder,
		runner:        opts.Runner,
		enabled:       opts.Enabled,
		prober:        opts.Prober,
		sinks:         opts.Sinks,
		fetchRetries:  opts.FetchRetries,
		retryInterval: opts.RetryInterval,
		logger:        opts.Logger,
		metrics:       opts.Metrics,
		now:           opts.Clock,
		runID:         opts.NewRunID,
	}
	if o.builder == nil {
		o.builder = features.NewBuilder(nil)
	}
	if o.runner == nil {
		o.runner = analysis.NewRunner(analysis.DefaultOptions())
	}
	if o.enabled == nil {
		o.enabled = domain.NewModelSet(domain.AllModelKinds()...)
	}
	if o.retryInterval <= 0 {
		o.retryInterval = DefaultRetryInterval
	}
	if o.now == nil {
		o.now = func() time.Time { return time.Now().UTC() }
	}
	if o.runID == nil {
		o.runID = func() string { return uuid.NewString() }
	}
	return o
}

// probeOutcome is the result of the probe goroutine.
type probeOutcome struct {
	wealth *domain.WealthSummary
	err    error
}

// Run executes one pipeline pass.
// A fetch or feature failure returns a *domain.PipelineAbortError and no report.
// Model, probe and sink failures are recorded in the report and never abort the run.
func (o *Orchestrator) Run(ctx context.Context) (*domain.Report, error) {
	started := o.now()
	report := &domain.Report{
		RunID:     o.runID(),
		Source:    o.source.Name(),
		StartedAt: started,
		Requested: o.enabled.Sorted(),
		Params:    o.runner.Params(),
	}
	log := o.logger.With().Str("run_id", report.RunID).Logger()
	log.Info().Str("source", report.Source).Str("models", o.enabled.String()).Msg("run started")

	// Phase 1: fetch and probe concurrently. Only the fetch can fail the group.
	var (
		records []domain.TelemetryRecord
		probe   probeOutcome
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		records, err = o.fetch(gctx, log)
		return err
	})
	g.Go(func() error {
		probe = o.probe(gctx, log)
		return nil
	})
	if err := g.Wait(); err != nil {
		return nil, o.abort(log, domain.StageFetch, err, started)
	}

	// Phase 2: features
	ds, err := o.builder.Build(records)
	if err != nil {
		return nil, o.abort(log, domain.StageFeatures, err, started)
	}
	o.metrics.RecordDataset(ds.Len())
	log.Debug().Int("rows", ds.Len()).Int("width", ds.Width()).Str("label_rule", ds.LabelRule).Msg("dataset built")

	// Phase 3: models
	results := o.runner.Run(ctx, ds, o.enabled)
	o.metrics.RecordModels(results)
	for _, kind := range results.Kinds() {
		res := results[kind]
		if res.OK() {
			log.Info().Str("kind", string(kind)).Dur("elapsed", res.Duration).Msg("model succeeded")
		} else {
			log.Warn().Str("kind", string(kind)).Str("reason", res.Err).Msg("model failed")
		}
	}

	// Phase 4: report
	report.Dataset = domain.DatasetSummary{
		Rows:        ds.Len(),
		Width:       ds.Width(),
		Columns:     append([]string(nil), domain.FeatureNames[:]...),
		LabelRule:   ds.LabelRule,
		Fingerprint: idhash.ComputeDatasetFingerprint(ds),
	}
	report.Rows = domain.BuildFeatureRows(report.RunID, ds, results)
	report.Models = results
	report.Wealth = probe.wealth
	if probe.err != nil {
		report.ProbeError = probe.err.Error()
	}
	report.FinishedAt = o.now()

	o.writeSinks(ctx, log, report)

	elapsed := report.FinishedAt.Sub(started)
	o.metrics.RecordPipelineRun(observability.StatusSuccess, elapsed, report.FinishedAt)
	log.Info().
		Int("rows", report.Dataset.Rows).
		Int("partial_failures", report.PartialFailures()).
		Dur("elapsed", elapsed).
		Msg("run finished")

	return report, nil
}

// fetch retrieves records, retrying transport failures up to fetchRetries times.
func (o *Orchestrator) fetch(ctx context.Context, log zerolog.Logger) ([]domain.TelemetryRecord, error) {
	var records []domain.TelemetryRecord
	attempt := 0

	op := func() error {
		attempt++
		start := time.Now()
		recs, err := o.source.Fetch(ctx)
		o.metrics.RecordFetch(o.source.Name(), time.Since(start), len(recs), err)
		if err != nil {
			if errors.Is(err, domain.ErrTransport) && ctx.Err() == nil {
				return err
			}
			return backoff.Permanent(err)
		}
		records = recs
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(
			backoff.WithInitialInterval(o.retryInterval),
		), uint64(o.fetchRetries)),
		ctx,
	)
	notify := func(err error, next time.Duration) {
		log.Warn().Err(err).Int("attempt", attempt).Dur("retry_in", next).Msg("fetch failed, retrying")
	}

	if err := backoff.RetryNotify(op, policy, notify); err != nil {
		return nil, err
	}
	log.Debug().Int("records", len(records)).Int("attempts", attempt).Msg("telemetry fetched")
	return records, nil
}

// probe runs the node health probe. Its failure is returned, never propagated.
func (o *Orchestrator) probe(ctx context.Context, log zerolog.Logger) probeOutcome {
	if o.prober == nil {
		o.metrics.RecordProbe(observability.StatusSkipped)
		log.Info().Msg("probe skipped")
		return probeOutcome{err: ErrProbeNotConfigured}
	}

	wealth, err := o.prober.Probe(ctx)
	if err != nil {
		o.metrics.RecordProbe(observability.StatusFailure)
		log.Warn().Err(err).Msg("probe failed")
		return probeOutcome{err: err}
	}
	o.metrics.RecordProbe(observability.StatusSuccess)
	log.Info().
		Uint64("balance", wealth.Balance).
		Int("holders", len(wealth.LargestHolders)).
		Float64("top_share", wealth.TopHolderShare).
		Msg("probe succeeded")
	return probeOutcome{wealth: wealth}
}

// writeSinks hands the report to every sink. The first failure is recorded on the report.
func (o *Orchestrator) writeSinks(ctx context.Context, log zerolog.Logger, report *domain.Report) {
	for _, s := range o.sinks {
		err := s.Write(ctx, report)
		o.metrics.RecordSink(s.Name(), err)
		if err != nil {
			log.Error().Err(err).Str("sink", s.Name()).Msg("sink write failed")
			if report.SinkError == "" {
				report.SinkError = err.Error()
			}
			continue
		}
		log.Debug().Str("sink", s.Name()).Msg("report written")
	}
}

func (o *Orchestrator) abort(log zerolog.Logger, stage string, err error, started time.Time) error {
	finished := o.now()
	o.metrics.RecordPipelineRun(observability.StatusFailure, finished.Sub(started), finished)
	log.Error().Err(err).Str("stage", stage).Msg("run aborted")
	return &domain.PipelineAbortError{Stage: stage, Err: err}
}
