package build

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"slices"
	"time"

	"github.com/mitchellh/copystructure"
	"golang.org/x/sync/errgroup"

	"github.com/leapstack-labs/leapidl/pkg/core"
	"github.com/leapstack-labs/leapidl/pkg/plugin"
)

// ErrPluginTimeout is the cause recorded for a plugin that exceeded its
// time limit.
var ErrPluginTimeout = errors.New("plugin timed out")

// ExecutorConfig configures plugin execution.
type ExecutorConfig struct {
	// Timeout bounds each plugin invocation (0 = no limit)
	Timeout time.Duration
	// Concurrency is the number of plugins of one projection run in parallel.
	// Values below 2 run plugins sequentially in configured order.
	Concurrency int
	// Logger receives plugin logs in addition to the captured copy (optional)
	Logger *slog.Logger
}

// Executor runs the plugins of one projection, isolating each invocation.
type Executor struct {
	timeout     time.Duration
	concurrency int
	logger      *slog.Logger
}

// ExecutionOutput is the outcome of running a projection's plugins.
type ExecutionOutput struct {
	// Results holds one entry per plugin in configured order.
	Results []core.PluginResult
	// Artifacts merges successful plugins' artifacts by core.ArtifactKey.
	Artifacts map[string][]byte
	Errors    []*core.PluginError
}

// NewExecutor creates a plugin executor.
func NewExecutor(cfg ExecutorConfig) *Executor {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Executor{timeout: cfg.Timeout, concurrency: cfg.Concurrency, logger: logger}
}

// Execute runs every plugin against the model. A failing plugin never stops
// its siblings; its artifacts are discarded and its failure is returned as a
// *core.PluginError.
func (e *Executor) Execute(ctx context.Context, projection string, plugins []PluginInvocation, model *core.Model, events []core.ValidationEvent) ExecutionOutput {
	names := make([]string, len(plugins))
	for i, inv := range plugins {
		names[i] = inv.Name()
	}

	results := make([]core.PluginResult, len(plugins))
	if e.concurrency > 1 && len(plugins) > 1 {
		var g errgroup.Group
		g.SetLimit(e.concurrency)
		for i, inv := range plugins {
			g.Go(func() error {
				results[i] = e.run(ctx, projection, inv, names, model, events)
				return nil
			})
		}
		_ = g.Wait()
	} else {
		for i, inv := range plugins {
			results[i] = e.run(ctx, projection, inv, names, model, events)
		}
	}

	out := ExecutionOutput{Results: results, Artifacts: make(map[string][]byte)}
	for _, r := range results {
		if r.Err != nil {
			out.Errors = append(out.Errors, r.Err)
			continue
		}
		for name, data := range r.Artifacts {
			out.Artifacts[core.ArtifactKey(r.Plugin, name)] = data
		}
	}
	return out
}

// run executes one plugin with a fresh sink, logger and options copy.
func (e *Executor) run(ctx context.Context, projection string, inv PluginInvocation, names []string, model *core.Model, events []core.ValidationEvent) core.PluginResult {
	name := inv.Name()
	result := core.PluginResult{Plugin: name}
	logger := e.logger.With("projection", projection, "plugin", name)

	fail := func(err error) core.PluginResult {
		result.Err = &core.PluginError{Plugin: name, Cause: err}
		result.Artifacts = nil
		logger.Warn("plugin failed", "error", err)
		return result
	}

	if ctx.Err() != nil {
		return fail(fmt.Errorf("not started: %w", context.Cause(ctx)))
	}

	opts, err := copyOptions(inv.Options)
	if err != nil {
		return fail(fmt.Errorf("copy options: %w", err))
	}

	capture := newCaptureHandler(logger.Handler())
	sink := plugin.NewArtifactSink()
	pctx := &plugin.Context{
		Projection: projection,
		Model:      model,
		Events:     slices.Clone(events),
		Options:    opts,
		Plugins:    slices.Clone(names),
		Sink:       sink,
		Logger:     slog.New(capture),
	}

	callCtx, cancel := ctx, context.CancelFunc(func() {})
	var expired <-chan time.Time
	if e.timeout > 0 {
		callCtx, cancel = context.WithTimeoutCause(ctx, e.timeout, ErrPluginTimeout)
		timer := time.NewTimer(e.timeout)
		defer timer.Stop()
		expired = timer.C
	}
	defer cancel()

	start := time.Now()
	done := make(chan error, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				logger.Debug("plugin stack", "stack", string(debug.Stack()))
				done <- fmt.Errorf("plugin panicked: %v", r)
			}
		}()
		done <- inv.Plugin.Execute(callCtx, pctx)
	}()

	timedOut := false
	select {
	case err = <-done:
	case <-expired:
		// The plugin goroutine may still be running; sealing the sink below
		// rejects anything it writes from now on.
		err = fmt.Errorf("%w after %s", ErrPluginTimeout, e.timeout)
		timedOut = true
	}
	result.Duration = time.Since(start)
	result.Artifacts = sink.Seal()
	result.Log = capture.Entries()

	// A rejected write fails the plugin even if it ignored the error.
	if werr := sink.Err(); werr != nil && !timedOut && !reportsRejectedWrite(err) {
		err = errors.Join(err, fmt.Errorf("invalid artifact write: %w", werr))
	}

	if err != nil {
		return fail(err)
	}
	logger.Debug("plugin finished", "artifacts", len(result.Artifacts), "duration", result.Duration)
	return result
}

// reportsRejectedWrite reports whether err already carries a sink rejection
// returned to the plugin.
func reportsRejectedWrite(err error) bool {
	return errors.Is(err, plugin.ErrInvalidArtifactName) || errors.Is(err, plugin.ErrDuplicateArtifact)
}

// copyOptions deep-copies plugin options so no invocation can observe
// another's mutations.
func copyOptions(opts plugin.Options) (plugin.Options, error) {
	if opts == nil {
		return plugin.Options{}, nil
	}
	copied, err := copystructure.Copy(map[string]any(opts))
	if err != nil {
		return nil, err
	}
	return plugin.Options(copied.(map[string]any)), nil
}
