// Package commands implements the leapidl subcommands.
package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapidl/internal/artifacts"
	"github.com/leapstack-labs/leapidl/internal/build"
	"github.com/leapstack-labs/leapidl/internal/cli/config"
	"github.com/leapstack-labs/leapidl/internal/cli/output"
	"github.com/leapstack-labs/leapidl/internal/loader"
	scripts "github.com/leapstack-labs/leapidl/internal/starlark"
	"github.com/leapstack-labs/leapidl/internal/state"
	"github.com/leapstack-labs/leapidl/pkg/core"
	"github.com/leapstack-labs/leapidl/pkg/plugin"
	"github.com/leapstack-labs/leapidl/pkg/plugin/builtin"
	"github.com/leapstack-labs/leapidl/pkg/transform"
	"github.com/leapstack-labs/leapidl/pkg/validate"
	"github.com/leapstack-labs/leapidl/pkg/validate/rules"
)

// ErrBuildFailed is returned when at least one projection failed. The
// report has already been rendered, so the caller only sets the exit code.
var ErrBuildFailed = errors.New("build failed")

// CommandContext holds common dependencies for CLI commands.
type CommandContext struct {
	Cfg      *config.Config
	Logger   *slog.Logger
	Renderer *output.Renderer
}

// NewCommandContext creates a CommandContext from the configuration the
// root command stored in the context, loading it when absent.
func NewCommandContext(cmd *cobra.Command) (*CommandContext, error) {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg := config.FromContext(ctx)
	if cfg == nil {
		var err error
		if cfg, err = config.Load("", nil); err != nil {
			return nil, err
		}
	}
	mode, err := output.ParseMode(cfg.Output)
	if err != nil {
		return nil, err
	}
	return &CommandContext{
		Cfg:      cfg,
		Logger:   config.GetLogger(ctx),
		Renderer: output.NewRenderer(cmd.OutOrStdout(), cmd.ErrOrStderr(), mode),
	}, nil
}

// Registries holds the transform, plugin and rule registries of one run.
type Registries struct {
	Transforms *transform.Registry
	Plugins    *plugin.Registry
	Rules      *validate.Registry
	Scripts    []*scripts.ScriptRule
}

// NewRegistries registers the built-in transforms, plugins and rules, plus
// the script rules of the build configuration.
func (cc *CommandContext) NewRegistries() (*Registries, error) {
	regs := &Registries{
		Transforms: transform.NewRegistry(),
		Plugins:    plugin.NewRegistry(),
		Rules:      validate.NewRegistry(),
	}
	if err := transform.RegisterBuiltins(regs.Transforms); err != nil {
		return nil, fmt.Errorf("failed to register transforms: %w", err)
	}
	if err := builtin.RegisterBuiltins(regs.Plugins); err != nil {
		return nil, fmt.Errorf("failed to register plugins: %w", err)
	}
	if err := rules.RegisterBuiltins(regs.Rules); err != nil {
		return nil, fmt.Errorf("failed to register rules: %w", err)
	}
	if b := cc.Cfg.Build; b != nil && b.Validation != nil && len(b.Validation.Scripts) > 0 {
		loaded, err := scripts.Register(regs.Rules, cc.Logger, b.Validation.Scripts...)
		if err != nil {
			return nil, err
		}
		regs.Scripts = loaded
	}
	return regs, nil
}

// validator builds the rule engine from the build configuration.
func (cc *CommandContext) validator(regs *Registries) (*validate.Engine, error) {
	vcfg := validate.NewConfig()
	if cc.Cfg.Build != nil {
		var err error
		if vcfg, err = cc.Cfg.Build.ValidateConfig(); err != nil {
			return nil, err
		}
	}
	return validate.NewEngine(regs.Rules, vcfg).WithLogger(cc.Logger), nil
}

// orchestrator builds an orchestrator from the effective configuration.
func (cc *CommandContext) orchestrator(regs *Registries) (*build.Orchestrator, error) {
	v, err := cc.validator(regs)
	if err != nil {
		return nil, err
	}
	b := cc.Cfg.Build
	return build.New(build.Config{
		Transforms:    regs.Transforms,
		Plugins:       regs.Plugins,
		Validator:     v,
		Suppressions:  b.Suppressions,
		Concurrency:   b.Concurrency,
		PluginTimeout: b.PluginTimeout,
		FailFast:      b.FailFast,
		Logger:        cc.Logger,
	}), nil
}

// loadModel loads model files from paths, or from the configured sources.
func (cc *CommandContext) loadModel(paths []string) (*core.Model, error) {
	if len(paths) == 0 {
		if err := cc.Cfg.RequireBuild(); err != nil {
			return nil, err
		}
		paths = cc.Cfg.Build.Sources
	}
	return loader.New(cc.Logger).Load(paths...)
}

// buildRun is the outcome of one build invocation.
type buildRun struct {
	Result   *core.BuildResult
	Written  []string
	PlanErr  error
	Recorded bool
}

// runBuild loads the model, runs every selected projection, writes artifacts
// and records the build in the history store.
func (cc *CommandContext) runBuild(ctx context.Context, selected []string) (*buildRun, error) {
	if err := cc.Cfg.RequireBuild(); err != nil {
		return nil, err
	}
	regs, err := cc.NewRegistries()
	if err != nil {
		return nil, err
	}
	model, err := cc.loadModel(nil)
	if err != nil {
		return nil, err
	}
	configs, err := selectProjections(cc.Cfg.Build.ResolvedProjections(), selected)
	if err != nil {
		return nil, err
	}
	orch, err := cc.orchestrator(regs)
	if err != nil {
		return nil, err
	}

	run := &buildRun{}
	run.Result, run.PlanErr = orch.Build(ctx, model, configs)
	if run.PlanErr == nil {
		w := artifacts.NewWriter(cc.Cfg.Build.OutputDir, cc.Logger)
		if run.Written, err = w.Write(run.Result); err != nil {
			return run, err
		}
	}
	run.Recorded = cc.recordHistory(ctx, run.Result)
	return run, nil
}

// recordHistory stores the build. Failures are logged, never fatal.
func (cc *CommandContext) recordHistory(ctx context.Context, result *core.BuildResult) bool {
	if cc.Cfg.NoHistory {
		return false
	}
	if err := os.MkdirAll(filepath.Dir(cc.Cfg.History), 0750); err != nil {
		cc.Logger.Warn("failed to create history directory", slog.String("error", err.Error()))
		return false
	}
	store := state.NewSQLiteStore(cc.Logger)
	if err := store.Open(ctx, cc.Cfg.History); err != nil {
		cc.Logger.Warn("failed to open build history", slog.String("path", cc.Cfg.History), slog.String("error", err.Error()))
		return false
	}
	defer func() { _ = store.Close() }()
	if err := store.RecordBuild(ctx, result, cc.Cfg.ConfigFile); err != nil {
		cc.Logger.Warn("failed to record build", slog.String("error", err.Error()))
		return false
	}
	return true
}

// selectProjections keeps only the named projections executable. The others
// become abstract so they stay available to "apply".
func selectProjections(configs []core.ProjectionConfig, names []string) ([]core.ProjectionConfig, error) {
	if len(names) == 0 {
		return configs, nil
	}
	var available []string
	for _, c := range configs {
		if !c.Abstract {
			available = append(available, c.Name)
		}
	}
	var unknown []string
	for _, n := range names {
		if !slices.Contains(available, n) {
			unknown = append(unknown, n)
		}
	}
	if len(unknown) > 0 {
		return nil, fmt.Errorf("unknown projection(s) %s (available: %s)",
			strings.Join(unknown, ", "), strings.Join(available, ", "))
	}
	out := slices.Clone(configs)
	for i := range out {
		if !slices.Contains(names, out[i].Name) {
			out[i].Abstract = true
		}
	}
	return out, nil
}
