// Package runner executes the Monte-Carlo trials of a run in parallel and
// reduces them once all have finished.
package runner

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/signalsfoundry/sensitivity-calculator/internal/ensemble"
	"github.com/signalsfoundry/sensitivity-calculator/internal/logging"
	"github.com/signalsfoundry/sensitivity-calculator/internal/observability"
	"github.com/signalsfoundry/sensitivity-calculator/internal/trial"
	"github.com/signalsfoundry/sensitivity-calculator/model"
	"github.com/signalsfoundry/sensitivity-calculator/progress"
)

// ErrNoSuccessfulTrials is returned when every trial of a run failed.
var ErrNoSuccessfulTrials = errors.New("no trial completed successfully")

// Evaluator runs one trial. *trial.Environment implements it.
type Evaluator interface {
	Run(ctx context.Context, index int, seed uint64) (*trial.Result, error)
}

// Config controls a run.
type Config struct {
	Trials  int
	Workers int // defaults to GOMAXPROCS
	Seed    uint64
}

// TrialFailure records a trial excluded from the reduction.
type TrialFailure struct {
	Index int
	Seed  uint64
	Err   error
}

func (f TrialFailure) Error() string {
	return fmt.Sprintf("trial %d (seed %d): %v", f.Index, f.Seed, f.Err)
}

func (f TrialFailure) Unwrap() error { return f.Err }

// Report is the reduced output of a run.
type Report struct {
	RunID string
	// Channels holds one combined record per channel, in experiment order.
	Channels   []model.SensitivityRecord
	Breakdowns []model.PowerBreakdown
	Tables     []ensemble.Table
	Completed  int
	Failures   []TrialFailure
}

// Runner maps trials onto a bounded worker pool and reduces the results.
type Runner struct {
	eval    Evaluator
	log     logging.Logger
	metrics *observability.RunCollector
	tracer  trace.Tracer
	every   time.Duration
}

// Option customises a Runner.
type Option func(*Runner)

// WithLogger sets the base logger.
func WithLogger(l logging.Logger) Option { return func(r *Runner) { r.log = l } }

// WithMetrics records trial metrics on c.
func WithMetrics(c *observability.RunCollector) Option { return func(r *Runner) { r.metrics = c } }

// WithTracer overrides the tracer used for run and trial spans.
func WithTracer(t trace.Tracer) Option { return func(r *Runner) { r.tracer = t } }

// WithProgress logs run progress every interval.
func WithProgress(every time.Duration) Option { return func(r *Runner) { r.every = every } }

// New constructs a Runner around eval.
func New(eval Evaluator, opts ...Option) *Runner {
	r := &Runner{eval: eval, log: logging.Noop()}
	for _, o := range opts {
		o(r)
	}
	if r.tracer == nil {
		r.tracer = observability.Tracer()
	}
	return r
}

// TrialSeed derives the seed of trial i from the run seed.
func TrialSeed(base uint64, i int) uint64 {
	// splitmix64 step keeps neighbouring trials decorrelated.
	z := base + uint64(i+1)*0x9e3779b97f4a7c15
	z = (z ^ (z >> 30)) * 0xbf58476d1ce4e5b9
	z = (z ^ (z >> 27)) * 0x94d049bb133111eb
	return z ^ (z >> 31)
}

// Run evaluates cfg.Trials trials and combines the successful ones. Failed
// trials, including panics, are excluded and listed in the report.
func (r *Runner) Run(ctx context.Context, cfg Config) (*Report, error) {
	if cfg.Trials <= 0 {
		return nil, fmt.Errorf("trial count must be positive, got %d", cfg.Trials)
	}
	workers := cfg.Workers
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	ctx, log := logging.WithRunLogger(ctx, r.log)
	runID := logging.RunIDFromContext(ctx)
	ctx, span := r.tracer.Start(ctx, "sensitivity.run", trace.WithAttributes(
		attribute.String("run.id", runID),
		attribute.Int("run.trials", cfg.Trials),
		attribute.Int("run.workers", workers),
	))
	defer span.End()

	log.Info(ctx, "run started",
		logging.Int("trials", cfg.Trials),
		logging.Int("workers", workers),
		logging.Uint64("seed", cfg.Seed),
	)

	results := make([]*trial.Result, cfg.Trials)
	failures := make([]error, cfg.Trials)

	var tracker *progress.Tracker
	if r.every > 0 {
		tracker = progress.NewTracker(cfg.Trials, r.every)
		tracker.AddListener(func(s progress.Snapshot) {
			log.Info(ctx, "run progress",
				logging.Int("done", s.Done),
				logging.Int("failed", s.Failed),
				logging.Int("total", s.Total),
				logging.String("elapsed", s.Elapsed.Round(time.Millisecond).String()),
			)
		})
		pctx, cancel := context.WithCancel(ctx)
		stopped := tracker.Start(pctx)
		defer func() {
			cancel()
			<-stopped
		}()
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i := range cfg.Trials {
		seed := TrialSeed(cfg.Seed, i)
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i], failures[i] = r.runTrial(gctx, log, i, seed)
			if tracker != nil {
				tracker.Observe(failures[i])
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, err
	}

	// Reduce barrier: every trial has finished.
	rep := &Report{RunID: runID}
	var records [][]model.SensitivityRecord
	var breakdowns [][]model.PowerBreakdown
	for i, res := range results {
		if failures[i] != nil {
			rep.Failures = append(rep.Failures, TrialFailure{Index: i, Seed: TrialSeed(cfg.Seed, i), Err: failures[i]})
			continue
		}
		records = append(records, res.Records)
		breakdowns = append(breakdowns, res.Breakdowns)
	}
	rep.Completed = len(records)
	r.metrics.SetRun(cfg.Trials, len(rep.Failures))
	span.SetAttributes(attribute.Int("run.excluded", len(rep.Failures)))

	if rep.Completed == 0 {
		err := fmt.Errorf("%w: %d of %d trials failed, first: %v",
			ErrNoSuccessfulTrials, len(rep.Failures), cfg.Trials, rep.Failures[0])
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return rep, err
	}

	var err error
	if rep.Channels, err = ensemble.Combine(records); err != nil {
		return nil, fmt.Errorf("combine trials: %w", err)
	}
	if rep.Breakdowns, err = ensemble.CombineBreakdowns(breakdowns); err != nil {
		return nil, fmt.Errorf("combine power breakdowns: %w", err)
	}
	if rep.Tables, err = ensemble.Rollup(rep.Channels); err != nil {
		return nil, fmt.Errorf("merge channels: %w", err)
	}

	log.Info(ctx, "run finished",
		logging.Int("completed", rep.Completed),
		logging.Int("excluded", len(rep.Failures)),
	)
	return rep, nil
}

// runTrial evaluates one trial, converting panics into errors.
func (r *Runner) runTrial(ctx context.Context, log logging.Logger, index int, seed uint64) (res *trial.Result, err error) {
	ctx, span := r.tracer.Start(ctx, "sensitivity.trial", trace.WithAttributes(
		attribute.Int("trial.index", index),
		attribute.Int64("trial.seed", int64(seed)),
	))
	start := time.Now()
	tlog := log.With(logging.Int("trial", index), logging.Uint64("seed", seed))
	defer func() {
		if p := recover(); p != nil {
			res, err = nil, fmt.Errorf("panic: %v", p)
		}
		channels := 0
		if res != nil {
			channels = len(res.Records)
		}
		r.metrics.ObserveTrial(time.Since(start), channels, err)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			tlog.Warn(ctx, "trial excluded", logging.Err(err))
		} else {
			tlog.Debug(ctx, "trial finished", logging.Int("channels", channels))
		}
		span.End()
	}()
	return r.eval.Run(ctx, index, seed)
}
