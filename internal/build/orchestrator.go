// Package build runs projections: it plans projection configurations,
// applies their transform chains, validates the projected models and
// executes plugins with per-plugin isolation.
package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapidl/pkg/core"
	"github.com/leapstack-labs/leapidl/pkg/plugin"
	"github.com/leapstack-labs/leapidl/pkg/transform"
	"github.com/leapstack-labs/leapidl/pkg/validate"
)

// ErrFailFast is the cancellation cause for projections stopped because a
// sibling failed under the fail-fast policy.
var ErrFailFast = errors.New("stopped after another projection failed")

// metadataSuppressionsRule is the rule id of events reporting malformed
// suppressions in model metadata.
const metadataSuppressionsRule = "metadata-suppressions"

// Config holds orchestrator configuration.
type Config struct {
	// Transforms resolves transform names (required)
	Transforms *transform.Registry
	// Plugins resolves plugin names (required)
	Plugins *plugin.Registry
	// Validator validates projected models (nil = no rules)
	Validator *validate.Engine
	// Suppressions apply to every projection in addition to those found in
	// each projected model's metadata
	Suppressions []core.Suppression
	// Concurrency bounds parallel projections (0 = GOMAXPROCS)
	Concurrency int
	// PluginConcurrency bounds parallel plugins within a projection
	// (0 or 1 = sequential)
	PluginConcurrency int
	// PluginTimeout bounds each plugin invocation (0 = no limit)
	PluginTimeout time.Duration
	// FailFast stops starting projections after the first failure
	FailFast bool
	// Logger is the structured logger (optional, uses discard if nil)
	Logger *slog.Logger
}

// Orchestrator drives builds. It is safe for concurrent use.
type Orchestrator struct {
	planner      *Planner
	validator    *validate.Engine
	executor     *Executor
	suppressions []core.Suppression
	concurrency  int
	failFast     bool
	logger       *slog.Logger
}

// New creates an orchestrator.
func New(cfg Config) *Orchestrator {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	transforms := cfg.Transforms
	if transforms == nil {
		transforms = transform.NewRegistry()
	}
	plugins := cfg.Plugins
	if plugins == nil {
		plugins = plugin.NewRegistry()
	}
	validator := cfg.Validator
	if validator == nil {
		validator = validate.NewEngine(nil, nil)
	}
	concurrency := cfg.Concurrency
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}

	return &Orchestrator{
		planner:      NewPlanner(transforms, plugins, logger),
		validator:    validator.WithLogger(logger),
		executor:     NewExecutor(ExecutorConfig{Timeout: cfg.PluginTimeout, Concurrency: cfg.PluginConcurrency, Logger: logger}),
		suppressions: append([]core.Suppression(nil), cfg.Suppressions...),
		concurrency:  concurrency,
		failFast:     cfg.FailFast,
		logger:       logger,
	}
}

// Plan resolves configurations without running anything.
func (o *Orchestrator) Plan(configs []core.ProjectionConfig) (*Plan, error) {
	return o.planner.Plan(configs)
}

// Build plans and runs every non-abstract projection against model.
//
// On a planning failure no projection runs: every configured non-abstract
// projection is reported NOT_ATTEMPTED and the *PlanningError is returned
// together with the result. Otherwise the error is nil and failures are
// reported per projection.
func (o *Orchestrator) Build(ctx context.Context, model *core.Model, configs []core.ProjectionConfig) (*core.BuildResult, error) {
	start := time.Now()
	plan, err := o.planner.Plan(configs)
	if err != nil {
		o.logger.Error("build planning failed", "error", err)
		result := &core.BuildResult{ID: uuid.NewString(), Status: core.BuildFailed, StartedAt: start}
		for _, cfg := range configs {
			if cfg.Abstract {
				continue
			}
			result.Projections = append(result.Projections, core.ProjectionResult{
				Name:    cfg.Name,
				Status:  core.StatusNotAttempted,
				Err:     err,
				History: []core.ProjectionStatus{core.StatusNotAttempted},
			})
		}
		result.Duration = time.Since(start)
		return result, err
	}
	return o.Execute(ctx, model, plan), nil
}

// Execute runs the executable projections of a plan. Results are returned in
// configuration order regardless of completion order.
func (o *Orchestrator) Execute(ctx context.Context, model *core.Model, plan *Plan) *core.BuildResult {
	result := &core.BuildResult{ID: uuid.NewString(), StartedAt: time.Now()}
	projections := plan.Projections()
	results := make([]core.ProjectionResult, len(projections))

	o.logger.Info("starting build", "build_id", result.ID, "projections", len(projections), "concurrency", o.concurrency)

	buildCtx, cancel := context.WithCancelCause(ctx)
	defer cancel(nil)
	var failed atomic.Bool

	var g errgroup.Group
	g.SetLimit(o.concurrency)
	for i, pp := range projections {
		g.Go(func() error {
			if o.failFast && failed.Load() {
				results[i] = core.ProjectionResult{
					Name:    pp.Name(),
					Status:  core.StatusNotAttempted,
					Err:     ErrFailFast,
					History: []core.ProjectionStatus{core.StatusNotAttempted},
				}
				return nil
			}
			res := o.runProjection(buildCtx, model, pp)
			if res.Status == core.StatusFailed && o.failFast && !failed.Swap(true) {
				cancel(ErrFailFast)
			}
			results[i] = *res
			return nil
		})
	}
	_ = g.Wait()

	result.Projections = results
	result.Status = core.BuildSucceeded
	for _, r := range results {
		if r.Status != core.StatusSucceeded {
			result.Status = core.BuildFailed
			break
		}
	}
	result.Duration = time.Since(result.StartedAt)
	o.logger.Info("build finished", "build_id", result.ID, "status", result.Status, "summary", result.SummaryLine(), "duration", result.Duration)
	return result
}

// runProjection drives one projection through its lifecycle. It never
// returns a nil result and never panics on plugin or rule failures.
func (o *Orchestrator) runProjection(ctx context.Context, source *core.Model, pp *ProjectionPlan) *core.ProjectionResult {
	t := newTracker(pp.Name())
	logger := o.logger.With("projection", pp.Name())
	step := func(to core.ProjectionStatus) bool {
		if err := t.advance(to); err != nil {
			t.fail(err)
			return false
		}
		return true
	}
	checkpoint := func(stage string) bool {
		if ctx.Err() != nil {
			t.fail(fmt.Errorf("cancelled before %s: %w", stage, context.Cause(ctx)))
			return false
		}
		return true
	}

	if !step(core.StatusPlanned) || !checkpoint("transform") {
		return t.res
	}

	// Transform
	projected, err := pp.Chain().Apply(ctx, source)
	if err != nil {
		logger.Warn("transform failed", "error", err)
		t.fail(err)
		return t.res
	}
	t.res.Model = projected
	if !step(core.StatusTransformed) || !checkpoint("validation") {
		return t.res
	}

	// Validate
	events := o.validate(ctx, projected)
	t.res.Events = events
	if !checkpoint("plugin execution") {
		return t.res
	}
	if !step(core.StatusValidated) {
		return t.res
	}
	if core.HasErrors(events) {
		logger.Info("projection failed validation", "events", len(events))
		t.fail(fmt.Errorf("validation reported %d error(s)", core.CountBySeverity(events)[core.SeverityError]))
		return t.res
	}

	// Execute
	out := o.executor.Execute(ctx, pp.Name(), pp.Plugins(), projected, events)
	t.res.Plugins = out.Results
	t.res.Artifacts = out.Artifacts
	t.res.PluginErrors = out.Errors
	if !step(core.StatusExecuted) {
		return t.res
	}
	if len(out.Errors) > 0 {
		t.fail(nil)
		return t.res
	}
	if ctx.Err() != nil {
		t.fail(fmt.Errorf("cancelled: %w", context.Cause(ctx)))
		return t.res
	}
	step(core.StatusSucceeded)
	logger.Debug("projection succeeded", "artifacts", len(out.Artifacts))
	return t.res
}

// validate runs the rules with configured and metadata suppressions.
func (o *Orchestrator) validate(ctx context.Context, model *core.Model) []core.ValidationEvent {
	suppressions := o.suppressions
	fromMetadata, err := validate.SuppressionsFromMetadata(model)
	if err != nil {
		events := o.validator.Validate(ctx, model, suppressions)
		events = append(events, core.ValidationEvent{
			RuleID:   metadataSuppressionsRule,
			Severity: core.SeverityError,
			Message:  err.Error(),
		})
		core.SortEvents(events)
		return events
	}
	suppressions = append(append([]core.Suppression(nil), suppressions...), fromMetadata...)
	return o.validator.Validate(ctx, model, suppressions)
}
