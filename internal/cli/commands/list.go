package commands

import (
	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapidl/internal/cli/output"
	"github.com/leapstack-labs/leapidl/pkg/core"
	"github.com/leapstack-labs/leapidl/pkg/validate"
)

type ruleEntry struct {
	validate.RuleInfo
	Source string `json:"source"`
}

type namedEntry struct {
	Name        string `json:"name"`
	Description string `json:"description"`
}

// NewListCommand creates the list command.
func NewListCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list <rules|transforms|plugins>",
		Short: "List registered rules, transforms or plugins",
		Long: `List the validation rules, transforms or plugins available to projections.
Rules include the script rules configured under validation.scripts.

Output adapts to environment:
  - Terminal: Styled table
  - Piped/Scripted: Markdown table
  - JSON: Machine-readable format`,
		Example: `  leapidl list rules
  leapidl list plugins --output json`,
		ValidArgs: []string{"rules", "transforms", "plugins"},
		Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc, err := NewCommandContext(cmd)
			if err != nil {
				return err
			}
			regs, err := cc.NewRegistries()
			if err != nil {
				return err
			}
			switch args[0] {
			case "rules":
				return listRules(cc.Renderer, regs)
			case "transforms":
				return listTransforms(cc.Renderer, regs)
			default:
				return listPlugins(cc.Renderer, regs)
			}
		},
	}
	return cmd
}

func listRules(r *output.Renderer, regs *Registries) error {
	scriptPaths := make(map[string]string, len(regs.Scripts))
	for _, s := range regs.Scripts {
		scriptPaths[s.ID()] = s.Path()
	}
	entries := make([]ruleEntry, 0, regs.Rules.Count())
	for _, rule := range regs.Rules.All() {
		source := "builtin"
		if p, ok := scriptPaths[rule.ID()]; ok {
			source = relPath(p)
		}
		entries = append(entries, ruleEntry{RuleInfo: validate.GetRuleInfo(rule), Source: source})
	}

	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(entries)
	}
	r.Header(1, "Rules")
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		sev := e.DefaultSeverity.String()
		if r.EffectiveMode() == output.ModeText {
			sev = r.SeverityStyle(e.DefaultSeverity).Render(sev)
		}
		rows = append(rows, []string{e.ID, sev, e.Source, e.Description})
	}
	r.Table([]string{"ID", "Severity", "Source", "Description"}, rows)
	return nil
}

func listTransforms(r *output.Renderer, regs *Registries) error {
	all := regs.Transforms.All()
	entries := make([]namedEntry, 0, len(all)+1)
	// apply is resolved by the planner, never registered.
	entries = append(entries, namedEntry{
		Name:        core.ApplyTransform,
		Description: "Includes the transform chains of other projections",
	})
	for _, t := range all {
		entries = append(entries, namedEntry{Name: t.Name(), Description: t.Description()})
	}
	return renderNamed(r, "Transforms", entries)
}

func listPlugins(r *output.Renderer, regs *Registries) error {
	all := regs.Plugins.All()
	entries := make([]namedEntry, len(all))
	for i, p := range all {
		entries[i] = namedEntry{Name: p.Name(), Description: p.Description()}
	}
	return renderNamed(r, "Plugins", entries)
}

func renderNamed(r *output.Renderer, title string, entries []namedEntry) error {
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(entries)
	}
	r.Header(1, title)
	rows := make([][]string, len(entries))
	for i, e := range entries {
		rows[i] = []string{e.Name, e.Description}
	}
	r.Table([]string{"Name", "Description"}, rows)
	return nil
}
