package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"slices"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapidl/internal/watch"
)

// BuildOptions holds options for the build command.
type BuildOptions struct {
	Watch       bool
	Projections []string
}

// modelPatterns select the files below watched directories that trigger a
// rebuild.
var modelPatterns = []string{"**/*.json", "**/*.yaml", "**/*.yml", "**/*.star"}

// NewBuildCommand creates the build command.
func NewBuildCommand() *cobra.Command {
	opts := &BuildOptions{}
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Build every projection and write its artifacts",
		Long: `Load the model sources, derive each configured projection through its
transform chain, validate it and run its plugins. Artifacts are written to
<output_dir>/<projection>/<plugin>/.

A projection that fails validation or whose plugins fail does not stop the
others unless fail_fast is set. The exit code is 1 when any projection failed.`,
		Example: `  # Build all projections
  leapidl build

  # Build one projection, rebuilding on changes
  leapidl build --projection public --watch

  # Machine-readable report
  leapidl build --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runBuild(cmd, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.Watch, "watch", "w", false, "Rebuild when sources, scripts or the config file change")
	cmd.Flags().StringSliceVarP(&opts.Projections, "projection", "p", nil, "Only build these projections (repeatable)")
	cmd.Flags().Int("concurrency", 0, "Maximum projections built in parallel (0 = number of CPUs)")
	cmd.Flags().Duration("plugin-timeout", 0, "Per-plugin timeout (0 = none)")
	cmd.Flags().Bool("fail-fast", false, "Stop starting projections after the first failure")
	cmd.Flags().Bool("no-history", false, "Do not record the build in the history database")

	return cmd
}

func runBuild(cmd *cobra.Command, opts *BuildOptions) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	if err := cc.Cfg.RequireBuild(); err != nil {
		return err
	}
	if opts.Watch {
		return cc.watch(cmd.Context(), opts)
	}
	return cc.buildAndReport(cmd.Context(), opts.Projections)
}

// buildAndReport runs one build and renders it. It returns ErrBuildFailed
// when any projection failed.
func (cc *CommandContext) buildAndReport(ctx context.Context, projections []string) error {
	run, err := cc.runBuild(ctx, projections)
	if run != nil && run.Result != nil {
		if rerr := renderBuild(cc.Renderer, run, cc.Cfg.Build.OutputDir); rerr != nil {
			return rerr
		}
	}
	if err != nil {
		return err
	}
	if run.Result.Failed() {
		return ErrBuildFailed
	}
	return nil
}

// watch builds once, then rebuilds whenever a watched file changes until ctx
// is cancelled.
func (cc *CommandContext) watch(ctx context.Context, opts *BuildOptions) error {
	if err := cc.buildAndReport(ctx, opts.Projections); err != nil && !errors.Is(err, ErrBuildFailed) {
		return err
	}

	roots := cc.watchRoots()
	w, err := watch.New(watch.Config{
		Roots:      roots,
		Patterns:   modelPatterns,
		IgnoreDirs: []string{cc.Cfg.Build.OutputDir},
		Logger:     cc.Logger,
		OnChange: func(ctx context.Context, changed []string) error {
			cc.Logger.Info("rebuilding", slog.Int("changed", len(changed)))
			if slices.Contains(changed, cc.Cfg.ConfigFile) {
				if err := cc.Cfg.Reload(); err != nil {
					cc.Renderer.Error(err.Error())
					return nil
				}
			}
			if err := cc.buildAndReport(ctx, opts.Projections); err != nil && !errors.Is(err, ErrBuildFailed) {
				cc.Renderer.Error(err.Error())
			}
			return nil
		},
	})
	if err != nil {
		return err
	}
	cc.Renderer.Muted(fmt.Sprintf("Watching %d path(s) for changes. Press Ctrl+C to stop.", len(roots)))
	return w.Run(ctx)
}

// watchRoots returns the existing sources, script paths and the config file.
func (cc *CommandContext) watchRoots() []string {
	b := cc.Cfg.Build
	candidates := slices.Clone(b.Sources)
	if b.Validation != nil {
		candidates = append(candidates, b.Validation.Scripts...)
	}
	candidates = append(candidates, cc.Cfg.ConfigFile)

	var roots []string
	for _, p := range candidates {
		if p == "" || slices.Contains(roots, p) {
			continue
		}
		// Glob patterns and missing paths cannot be watched directly.
		if _, err := os.Stat(p); err != nil {
			continue
		}
		roots = append(roots, p)
	}
	return roots
}
