package build

import (
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"github.com/leapstack-labs/leapidl/internal/dag"
	"github.com/leapstack-labs/leapidl/pkg/core"
	"github.com/leapstack-labs/leapidl/pkg/plugin"
	"github.com/leapstack-labs/leapidl/pkg/transform"
)

// =============================================================================
// Planning errors
// =============================================================================

// ProblemKind classifies a configuration problem found while planning.
type ProblemKind string

// Problem kinds.
const (
	ProblemInvalidName         ProblemKind = "invalid-name"
	ProblemDuplicateProjection ProblemKind = "duplicate-projection"
	ProblemUnknownTransform    ProblemKind = "unknown-transform"
	ProblemUnknownPlugin       ProblemKind = "unknown-plugin"
	ProblemUnknownProjection   ProblemKind = "unknown-projection"
	ProblemInclusionCycle      ProblemKind = "inclusion-cycle"
	ProblemDuplicatePlugin     ProblemKind = "duplicate-plugin"
	ProblemInvalidOptions      ProblemKind = "invalid-options"
)

// Problem is one configuration error.
type Problem struct {
	Kind       ProblemKind
	Projection string
	Err        error
}

func (p Problem) String() string {
	if p.Projection == "" {
		return fmt.Sprintf("%s: %v", p.Kind, p.Err)
	}
	return fmt.Sprintf("projection %q: %s: %v", p.Projection, p.Kind, p.Err)
}

// PlanningError lists every problem found in the projection configuration.
// No projection runs while the configuration has problems.
type PlanningError struct {
	Problems []Problem
}

func (e *PlanningError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "planning failed with %d problem(s):", len(e.Problems))
	for _, p := range e.Problems {
		b.WriteString("\n  - ")
		b.WriteString(p.String())
	}
	return b.String()
}

// Unwrap exposes the individual causes to errors.Is and errors.As.
func (e *PlanningError) Unwrap() []error {
	out := make([]error, 0, len(e.Problems))
	for _, p := range e.Problems {
		out = append(out, p.Err)
	}
	return out
}

// Kinds returns the problem kinds in report order.
func (e *PlanningError) Kinds() []ProblemKind {
	out := make([]ProblemKind, len(e.Problems))
	for i, p := range e.Problems {
		out[i] = p.Kind
	}
	return out
}

// =============================================================================
// Plans
// =============================================================================

// PluginInvocation is a resolved plugin with its configured options.
type PluginInvocation struct {
	Plugin  plugin.Plugin
	Options plugin.Options
}

// Name returns the plugin name.
func (p PluginInvocation) Name() string { return p.Plugin.Name() }

// ProjectionPlan is the executable form of one projection: its flattened
// transform chain and resolved plugins. It is immutable.
type ProjectionPlan struct {
	name       string
	abstract   bool
	index      int
	transforms []core.TransformSpec
	steps      []transform.Step
	plugins    []PluginInvocation
	includes   []string
}

// Name returns the projection name.
func (p *ProjectionPlan) Name() string { return p.name }

// Abstract reports whether the projection only exists to be applied.
func (p *ProjectionPlan) Abstract() bool { return p.abstract }

// Index is the projection's position in the configuration.
func (p *ProjectionPlan) Index() int { return p.index }

// Transforms returns the flattened transform specs, "apply" resolved.
func (p *ProjectionPlan) Transforms() []core.TransformSpec {
	out := make([]core.TransformSpec, len(p.transforms))
	for i, t := range p.transforms {
		out[i] = core.TransformSpec{Name: t.Name, Options: core.CloneOptions(t.Options)}
	}
	return out
}

// Chain returns a transform chain for the projection.
func (p *ProjectionPlan) Chain() *transform.Chain {
	steps := make([]transform.Step, len(p.steps))
	for i, s := range p.steps {
		steps[i] = transform.Step{Transformer: s.Transformer, Options: core.CloneOptions(s.Options)}
	}
	return transform.NewChain(steps...)
}

// Plugins returns the resolved plugins in configured order.
func (p *ProjectionPlan) Plugins() []PluginInvocation {
	out := make([]PluginInvocation, len(p.plugins))
	for i, inv := range p.plugins {
		out[i] = PluginInvocation{Plugin: inv.Plugin, Options: core.CloneOptions(inv.Options)}
	}
	return out
}

// PluginNames returns the plugin names in configured order.
func (p *ProjectionPlan) PluginNames() []string {
	out := make([]string, len(p.plugins))
	for i, inv := range p.plugins {
		out[i] = inv.Name()
	}
	return out
}

// Includes returns every projection applied directly or transitively, sorted.
func (p *ProjectionPlan) Includes() []string {
	return append([]string(nil), p.includes...)
}

// Plan is the immutable result of planning a set of projections.
type Plan struct {
	projections []*ProjectionPlan
	byName      map[string]*ProjectionPlan
}

// All returns every planned projection, abstract ones included, in
// configuration order.
func (p *Plan) All() []*ProjectionPlan {
	return append([]*ProjectionPlan(nil), p.projections...)
}

// Projections returns the executable (non-abstract) projections in
// configuration order.
func (p *Plan) Projections() []*ProjectionPlan {
	var out []*ProjectionPlan
	for _, pp := range p.projections {
		if !pp.abstract {
			out = append(out, pp)
		}
	}
	return out
}

// Projection returns a projection plan by name.
func (p *Plan) Projection(name string) (*ProjectionPlan, bool) {
	pp, ok := p.byName[name]
	return pp, ok
}

// =============================================================================
// Planner
// =============================================================================

// Planner resolves projection configurations against the transform and
// plugin registries.
type Planner struct {
	transforms *transform.Registry
	plugins    *plugin.Registry
	logger     *slog.Logger
}

// NewPlanner creates a planner. A nil logger discards output.
func NewPlanner(transforms *transform.Registry, plugins *plugin.Registry, logger *slog.Logger) *Planner {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Planner{transforms: transforms, plugins: plugins, logger: logger}
}

// Plan validates every configuration and resolves it into an executable
// plan. All problems are collected in one pass and returned together as a
// *PlanningError.
func (p *Planner) Plan(configs []core.ProjectionConfig) (*Plan, error) {
	var problems []Problem
	report := func(kind ProblemKind, projection string, err error) {
		problems = append(problems, Problem{Kind: kind, Projection: projection, Err: err})
	}

	// Names
	byName := make(map[string]core.ProjectionConfig, len(configs))
	var ordered []core.ProjectionConfig
	for _, cfg := range configs {
		if err := validateProjectionName(cfg.Name); err != nil {
			report(ProblemInvalidName, cfg.Name, err)
			continue
		}
		if _, dup := byName[cfg.Name]; dup {
			report(ProblemDuplicateProjection, cfg.Name, fmt.Errorf("projection %q is defined more than once", cfg.Name))
			continue
		}
		byName[cfg.Name] = cfg
		ordered = append(ordered, cfg)
	}

	// Inclusion graph
	graph := dag.NewGraph()
	for _, cfg := range ordered {
		graph.AddNode(cfg.Name, nil)
	}
	for _, cfg := range ordered {
		for _, spec := range cfg.Transforms {
			if spec.Name != core.ApplyTransform {
				continue
			}
			included := core.ApplyOf(spec)
			if len(included) == 0 {
				report(ProblemInvalidOptions, cfg.Name, errors.New(`"apply" requires a "projections" list`))
				continue
			}
			for _, name := range included {
				if _, ok := byName[name]; !ok {
					report(ProblemUnknownProjection, cfg.Name, fmt.Errorf("apply references unknown projection %q", name))
					continue
				}
				_ = graph.AddEdge(name, cfg.Name)
			}
		}
	}
	for _, cycle := range graph.Cycles() {
		report(ProblemInclusionCycle, cycle[0], fmt.Errorf("inclusion cycle %s", dag.FormatCycle(cycle)))
	}

	// Transforms and plugins
	resolved := make(map[string]*ProjectionPlan, len(ordered))
	for i, cfg := range ordered {
		pp := &ProjectionPlan{name: cfg.Name, abstract: cfg.Abstract, index: i}
		for _, spec := range cfg.Transforms {
			if spec.Name == core.ApplyTransform {
				continue
			}
			t, err := p.transforms.Get(spec.Name)
			if err != nil {
				report(ProblemUnknownTransform, cfg.Name, err)
				continue
			}
			if v, ok := t.(transform.OptionsValidator); ok {
				if err := v.ValidateOptions(spec.Options); err != nil {
					report(ProblemInvalidOptions, cfg.Name, err)
				}
			}
		}

		seen := make(map[string]core.PluginSpec)
		for _, spec := range cfg.Plugins {
			if prev, dup := seen[spec.Name]; dup {
				if reflect.DeepEqual(prev.Options, spec.Options) {
					report(ProblemDuplicatePlugin, cfg.Name, fmt.Errorf("plugin %q is listed more than once", spec.Name))
				} else {
					report(ProblemDuplicatePlugin, cfg.Name, fmt.Errorf("plugin %q is configured twice with conflicting options", spec.Name))
				}
				continue
			}
			seen[spec.Name] = spec

			pl, err := p.plugins.Get(spec.Name)
			if err != nil {
				report(ProblemUnknownPlugin, cfg.Name, err)
				continue
			}
			if v, ok := pl.(plugin.OptionsValidator); ok {
				if err := v.ValidateOptions(plugin.Options(spec.Options)); err != nil {
					report(ProblemInvalidOptions, cfg.Name, fmt.Errorf("plugin %q: %w", spec.Name, err))
					continue
				}
			}
			pp.plugins = append(pp.plugins, PluginInvocation{Plugin: pl, Options: plugin.Options(core.CloneOptions(spec.Options))})
		}
		resolved[cfg.Name] = pp
	}

	if len(problems) > 0 {
		p.logger.Debug("planning failed", "problems", len(problems))
		return nil, &PlanningError{Problems: problems}
	}

	// Flatten "apply" in dependency order so included chains are ready first.
	sorted, err := graph.TopologicalSort()
	if err != nil {
		return nil, &PlanningError{Problems: []Problem{{Kind: ProblemInclusionCycle, Err: err}}}
	}
	for _, node := range sorted {
		pp := resolved[node.ID]
		for _, spec := range byName[node.ID].Transforms {
			if spec.Name == core.ApplyTransform {
				for _, name := range core.ApplyOf(spec) {
					inc := resolved[name]
					pp.transforms = append(pp.transforms, inc.transforms...)
					pp.steps = append(pp.steps, inc.steps...)
				}
				continue
			}
			t, _ := p.transforms.Get(spec.Name)
			opts := core.CloneOptions(spec.Options)
			pp.transforms = append(pp.transforms, core.TransformSpec{Name: spec.Name, Options: opts})
			pp.steps = append(pp.steps, transform.Step{Transformer: t, Options: transform.Options(opts)})
		}
		pp.includes = graph.GetUpstreamNodes(node.ID)
	}

	plan := &Plan{byName: resolved}
	for _, cfg := range ordered {
		plan.projections = append(plan.projections, resolved[cfg.Name])
	}
	p.logger.Debug("planned projections", "count", len(plan.projections))
	return plan, nil
}

// validateProjectionName rejects names that cannot be used as a directory.
func validateProjectionName(name string) error {
	switch {
	case name == "":
		return errors.New("projection name is required")
	case name == "." || name == "..":
		return fmt.Errorf("projection name %q is reserved", name)
	case strings.ContainsAny(name, `/\`):
		return fmt.Errorf("projection name %q must not contain path separators", name)
	}
	return nil
}
