package commands

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapidl/internal/build"
	"github.com/leapstack-labs/leapidl/internal/cli/output"
	"github.com/leapstack-labs/leapidl/pkg/core"
)

type planReport struct {
	Name       string               `json:"name"`
	Abstract   bool                 `json:"abstract,omitempty"`
	Includes   []string             `json:"includes,omitempty"`
	Transforms []core.TransformSpec `json:"transforms"`
	Plugins    []string             `json:"plugins"`
}

// NewPlanCommand creates the plan command.
func NewPlanCommand() *cobra.Command {
	var projections []string
	cmd := &cobra.Command{
		Use:   "plan",
		Short: "Show the resolved plan of every projection",
		Long: `Resolve the projection configuration without loading the model: included
projections are flattened into each transform chain and global plugins are
merged. Every configuration problem is reported at once.`,
		Example: `  leapidl plan
  leapidl plan --output json`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runPlan(cmd, projections)
		},
	}
	cmd.Flags().StringSliceVarP(&projections, "projection", "p", nil, "Only plan these projections (repeatable)")
	return cmd
}

func runPlan(cmd *cobra.Command, projections []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	if err := cc.Cfg.RequireBuild(); err != nil {
		return err
	}
	regs, err := cc.NewRegistries()
	if err != nil {
		return err
	}
	configs, err := selectProjections(cc.Cfg.Build.ResolvedProjections(), projections)
	if err != nil {
		return err
	}
	orch, err := cc.orchestrator(regs)
	if err != nil {
		return err
	}

	plan, err := orch.Plan(configs)
	if err != nil {
		var pe *build.PlanningError
		if errors.As(err, &pe) && cc.Renderer.EffectiveMode() == output.ModeJSON {
			problems := make([]string, len(pe.Problems))
			for i, p := range pe.Problems {
				problems[i] = p.String()
			}
			_ = cc.Renderer.JSON(map[string][]string{"problems": problems})
		}
		return err
	}

	reports := make([]planReport, 0, len(plan.All()))
	for _, pp := range plan.All() {
		reports = append(reports, planReport{
			Name:       pp.Name(),
			Abstract:   pp.Abstract(),
			Includes:   pp.Includes(),
			Transforms: pp.Transforms(),
			Plugins:    pp.PluginNames(),
		})
	}

	r := cc.Renderer
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(reports)
	}
	r.Header(1, "Projections")
	rows := make([][]string, 0, len(reports))
	for _, p := range reports {
		names := make([]string, len(p.Transforms))
		for i, t := range p.Transforms {
			names[i] = t.Name
		}
		kind := "executable"
		if p.Abstract {
			kind = "abstract"
		}
		rows = append(rows, []string{
			p.Name, kind, strings.Join(p.Includes, ", "),
			strings.Join(names, " → "), strings.Join(p.Plugins, ", "),
		})
	}
	r.Table([]string{"Projection", "Kind", "Includes", "Transforms", "Plugins"}, rows)
	return nil
}
