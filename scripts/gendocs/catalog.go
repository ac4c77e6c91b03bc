package main

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/leapstack-labs/leapidl/pkg/core"
	"github.com/leapstack-labs/leapidl/pkg/plugin"
	"github.com/leapstack-labs/leapidl/pkg/plugin/builtin"
	"github.com/leapstack-labs/leapidl/pkg/transform"
	"github.com/leapstack-labs/leapidl/pkg/validate"
	"github.com/leapstack-labs/leapidl/pkg/validate/rules"
)

// generateCatalogDocs writes one page each for the built-in rules,
// transforms and plugins.
func generateCatalogDocs(outDir string) error {
	log.Printf("Generating catalog docs to %s", outDir)

	if err := os.MkdirAll(outDir, 0750); err != nil {
		return fmt.Errorf("failed to create output directory: %w", err)
	}

	ruleReg := validate.NewRegistry()
	if err := rules.RegisterBuiltins(ruleReg); err != nil {
		return err
	}
	transformReg := transform.NewRegistry()
	if err := transform.RegisterBuiltins(transformReg); err != nil {
		return err
	}
	pluginReg := plugin.NewRegistry()
	if err := builtin.RegisterBuiltins(pluginReg); err != nil {
		return err
	}

	pages := map[string][]byte{
		"rules.md":      rulesPage(ruleReg),
		"transforms.md": transformsPage(transformReg),
		"plugins.md":    pluginsPage(pluginReg),
	}
	for name, content := range pages {
		if err := os.WriteFile(filepath.Join(outDir, name), content, 0600); err != nil {
			return err
		}
		log.Printf("  Generated %s", name)
	}
	return nil
}

func rulesPage(reg *validate.Registry) []byte {
	w := NewMarkdownWriter()
	w.Frontmatter("Validation Rules", "Built-in validation rules")
	w.GeneratedMarker()
	w.Header(1, "Validation Rules")
	w.Paragraph(fmt.Sprintf("leapidl ships %d built-in rules. Severities can be overridden and events suppressed under `validation` in the build file.", reg.Count()))

	var rows [][]string
	for _, r := range reg.All() {
		info := validate.GetRuleInfo(r)
		rows = append(rows, []string{InlineCode(info.ID), info.DefaultSeverity.String(), cleanDescription(info.Description)})
	}
	w.Table([]string{"Rule", "Default severity", "Description"}, rows)

	for _, r := range reg.All() {
		info := validate.GetRuleInfo(r)
		if info.Rationale == "" && len(info.ConfigKeys) == 0 {
			continue
		}
		w.Header(2, info.ID)
		if info.Rationale != "" {
			w.Paragraph(info.Rationale)
		}
		if len(info.ConfigKeys) > 0 {
			keys := make([]string, len(info.ConfigKeys))
			for i, k := range info.ConfigKeys {
				keys[i] = InlineCode(k)
			}
			w.Paragraph("Options: " + strings.Join(keys, ", "))
		}
	}
	return w.Bytes()
}

func transformsPage(reg *transform.Registry) []byte {
	w := NewMarkdownWriter()
	w.Frontmatter("Transforms", "Built-in projection transforms")
	w.GeneratedMarker()
	w.Header(1, "Transforms")
	w.Paragraph("Transforms run in the order listed under a projection. " +
		InlineCode(core.ApplyTransform) + " splices in the chains of other projections and is resolved while planning.")

	rows := [][]string{{InlineCode(core.ApplyTransform), "Includes the transform chains of other projections"}}
	for _, t := range reg.All() {
		rows = append(rows, []string{InlineCode(t.Name()), cleanDescription(t.Description())})
	}
	w.Table([]string{"Transform", "Description"}, rows)
	return w.Bytes()
}

func pluginsPage(reg *plugin.Registry) []byte {
	w := NewMarkdownWriter()
	w.Frontmatter("Plugins", "Built-in generator plugins")
	w.GeneratedMarker()
	w.Header(1, "Plugins")
	w.Paragraph("Plugins run once per projection against the projected model. Their artifacts are written to `<output_dir>/<projection>/<plugin>/`.")

	var rows [][]string
	for _, p := range reg.All() {
		rows = append(rows, []string{InlineCode(p.Name()), cleanDescription(p.Description())})
	}
	w.Table([]string{"Plugin", "Description"}, rows)
	return w.Bytes()
}
