// Package config loads the build configuration file (leapidl-build.yaml):
// model sources, the output directory, projections with their transforms and
// plugins, validation settings and execution limits.
package config

import (
	"fmt"
	"slices"
	"time"

	"github.com/leapstack-labs/leapidl/pkg/core"
	"github.com/leapstack-labs/leapidl/pkg/validate"
)

// BuildConfig is the contents of a build configuration file.
type BuildConfig struct {
	Version string `koanf:"version"`

	// Sources are model files or directories, relative to the config file.
	Sources []string `koanf:"sources"`

	// OutputDir receives <projection>/<plugin>/<artifact> files.
	OutputDir string `koanf:"output_dir"`

	// Plugins run in every non-abstract projection.
	Plugins []core.PluginSpec `koanf:"plugins"`

	// Projections in declaration order.
	Projections []core.ProjectionConfig `koanf:"projections"`

	// SourceProjection adds a "source" projection with no transforms when
	// none is declared (nil = true).
	SourceProjection *bool `koanf:"source_projection"`

	Suppressions []core.Suppression `koanf:"suppressions"`
	Validation   *ValidationConfig  `koanf:"validation"`

	Concurrency   int           `koanf:"concurrency"`
	PluginTimeout time.Duration `koanf:"plugin_timeout"`
	FailFast      bool          `koanf:"fail_fast"`

	// path is the file the configuration was loaded from.
	path string
}

// ValidationConfig holds validation rule configuration.
type ValidationConfig struct {
	// Disabled contains rule IDs to disable
	Disabled []string `koanf:"disabled"`

	// Severity maps rule ID to severity override (note, warning, danger, error)
	Severity map[string]string `koanf:"severity"`

	// Rules contains rule-specific options
	Rules map[string]RuleOptions `koanf:"rules"`

	// Scripts are Starlark rule files, relative to the config file
	Scripts []string `koanf:"scripts"`
}

// RuleOptions holds rule-specific configuration options.
type RuleOptions map[string]any

// Path returns the file the configuration was loaded from, if any.
func (c *BuildConfig) Path() string { return c.path }

// SourceProjectionEnabled reports whether the implicit source projection is on.
func (c *BuildConfig) SourceProjectionEnabled() bool {
	return c.SourceProjection == nil || *c.SourceProjection
}

// ResolvedProjections returns the projections to plan.
//
// Global plugins are added to every non-abstract projection after its own
// plugins; a projection that configures a plugin itself keeps its own
// options. When enabled and not declared, a "source" projection with no
// transforms is prepended.
func (c *BuildConfig) ResolvedProjections() []core.ProjectionConfig {
	out := make([]core.ProjectionConfig, 0, len(c.Projections)+1)
	declared := slices.ContainsFunc(c.Projections, func(p core.ProjectionConfig) bool {
		return p.Name == SourceProjectionName
	})
	if c.SourceProjectionEnabled() && !declared {
		out = append(out, core.ProjectionConfig{Name: SourceProjectionName})
	}
	for _, p := range c.Projections {
		out = append(out, cloneProjection(p))
	}

	for i := range out {
		if out[i].Abstract {
			continue
		}
		for _, global := range c.Plugins {
			own := slices.ContainsFunc(out[i].Plugins, func(s core.PluginSpec) bool { return s.Name == global.Name })
			if !own {
				out[i].Plugins = append(out[i].Plugins, core.PluginSpec{Name: global.Name, Options: core.CloneOptions(global.Options)})
			}
		}
	}
	return out
}

// ValidateConfig converts the validation section into engine configuration.
func (c *BuildConfig) ValidateConfig() (*validate.Config, error) {
	cfg := validate.NewConfig()
	if c.Validation == nil {
		return cfg, nil
	}
	for _, id := range c.Validation.Disabled {
		cfg.Disable(id)
	}
	for _, id := range sortedKeys(c.Validation.Severity) {
		sev, ok := core.ParseSeverity(c.Validation.Severity[id])
		if !ok || sev == core.SeveritySuppressed {
			return nil, fmt.Errorf("validation.severity.%s: invalid severity %q (note, warning, danger, error)", id, c.Validation.Severity[id])
		}
		cfg.SetSeverity(id, sev)
	}
	for id, opts := range c.Validation.Rules {
		cfg.SetOptions(id, validate.Options(opts))
	}
	return cfg, nil
}

func cloneProjection(p core.ProjectionConfig) core.ProjectionConfig {
	out := core.ProjectionConfig{Name: p.Name, Abstract: p.Abstract}
	for _, t := range p.Transforms {
		out.Transforms = append(out.Transforms, core.TransformSpec{Name: t.Name, Options: core.CloneOptions(t.Options)})
	}
	for _, s := range p.Plugins {
		out.Plugins = append(out.Plugins, core.PluginSpec{Name: s.Name, Options: core.CloneOptions(s.Options)})
	}
	return out
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
