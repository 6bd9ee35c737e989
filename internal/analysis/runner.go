package analysis

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"

	"solana-telemetry-lab/internal/domain"
)

// Options configures the models registered by NewRunner.
type Options struct {
	PCAComponents      int
	LogRegMaxIter      int
	LogRegLearningRate float64
	KMeansClusters     int
	KMeansSeed         uint64
	KMeansMaxIter      int
	// Sequential fits models one after another instead of concurrently.
	Sequential bool
}

// DefaultOptions returns the default model configuration.
func DefaultOptions() Options {
	return Options{
		PCAComponents:      DefaultComponents,
		LogRegMaxIter:      DefaultMaxIter,
		LogRegLearningRate: DefaultLearningRate,
		KMeansClusters:     DefaultClusters,
		KMeansSeed:         DefaultSeed,
		KMeansMaxIter:      DefaultKMeansMaxIter,
	}
}

// Params returns the model configuration recorded on reports.
func (o Options) Params() domain.ModelParams {
	return domain.ModelParams{
		PCAComponents:      o.PCAComponents,
		LogRegMaxIter:      o.LogRegMaxIter,
		LogRegLearningRate: o.LogRegLearningRate,
		KMeansClusters:     o.KMeansClusters,
		KMeansSeed:         o.KMeansSeed,
		KMeansMaxIter:      o.KMeansMaxIter,
	}
}

// OptionsFromParams rebuilds runner options from recorded params.
func OptionsFromParams(p domain.ModelParams) Options {
	return Options{
		PCAComponents:      p.PCAComponents,
		LogRegMaxIter:      p.LogRegMaxIter,
		LogRegLearningRate: p.LogRegLearningRate,
		KMeansClusters:     p.KMeansClusters,
		KMeansSeed:         p.KMeansSeed,
		KMeansMaxIter:      p.KMeansMaxIter,
	}
}

// Runner fits every enabled model on the same dataset and isolates their failures.
type Runner struct {
	models     map[domain.ModelKind]Model
	sequential bool
	params     *domain.ModelParams
	now        func() time.Time
}

// NewRunner creates a runner with the reduction, classification and clustering models.
func NewRunner(opts Options) *Runner {
	r := NewRunnerWithModels(opts.Sequential,
		NewReducer(opts.PCAComponents),
		NewClassifier(opts.LogRegMaxIter, opts.LogRegLearningRate),
		NewClusterer(opts.KMeansClusters, opts.KMeansSeed, opts.KMeansMaxIter),
	)
	params := opts.Params()
	r.params = &params
	return r
}

// NewRunnerWithModels creates a runner over an explicit model list.
// A later model replaces an earlier one of the same kind.
func NewRunnerWithModels(sequential bool, models ...Model) *Runner {
	r := &Runner{
		models:     make(map[domain.ModelKind]Model, len(models)),
		sequential: sequential,
		now:        time.Now,
	}
	for _, m := range models {
		r.models[m.Kind()] = m
	}
	return r
}

// Run fits each enabled kind and returns one result per kind.
// It never returns early: a model error, panic or cancellation only fails that model's entry.
// An invalid dataset fails every enabled kind.
func (r *Runner) Run(ctx context.Context, ds *domain.Dataset, enabled domain.ModelSet) domain.ModelResults {
	kinds := enabled.Sorted()
	results := make(domain.ModelResults, len(kinds))
	if len(kinds) == 0 {
		return results
	}

	if err := ds.Validate(); err != nil {
		for _, k := range kinds {
			results[k] = domain.FailedResult(k, err)
		}
		return results
	}

	slots := make([]domain.ModelResult, len(kinds))
	if r.sequential {
		for i, k := range kinds {
			slots[i] = r.fit(ctx, k, ds)
		}
	} else {
		var g errgroup.Group
		for i, k := range kinds {
			g.Go(func() error {
				slots[i] = r.fit(ctx, k, ds)
				return nil
			})
		}
		_ = g.Wait()
	}

	for i, k := range kinds {
		results[k] = slots[i]
	}
	return results
}

// fit runs one model and converts every failure mode into a failed result.
func (r *Runner) fit(ctx context.Context, kind domain.ModelKind, ds *domain.Dataset) (res domain.ModelResult) {
	start := r.now()
	defer func() {
		if p := recover(); p != nil {
			res = domain.FailedResult(kind, fmt.Errorf("model panicked: %v", p))
		}
		res.Kind = kind
		res.Duration = r.now().Sub(start)
	}()

	m, ok := r.models[kind]
	if !ok {
		return domain.FailedResult(kind, fmt.Errorf("no model registered for kind %q", kind))
	}
	if err := ctx.Err(); err != nil {
		return domain.FailedResult(kind, err)
	}

	out, err := m.Fit(ctx, ds)
	if err != nil {
		return domain.FailedResult(kind, err)
	}
	return out
}

// Params returns the configuration of a runner built by NewRunner, or nil.
func (r *Runner) Params() *domain.ModelParams {
	if r.params == nil {
		return nil
	}
	p := *r.params
	return &p
}

// Models returns the registered kinds in report order.
func (r *Runner) Models() []domain.ModelKind {
	var out []domain.ModelKind
	for _, k := range domain.AllModelKinds() {
		if _, ok := r.models[k]; ok {
			out = append(out, k)
		}
	}
	return out
}
