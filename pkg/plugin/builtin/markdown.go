package builtin

import (
	"context"
	"fmt"
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"

	"github.com/leapstack-labs/leapidl/pkg/core"
	"github.com/leapstack-labs/leapidl/pkg/plugin"
)

// DocMarkdown renders one markdown page per projection, grouped by namespace.
type DocMarkdown struct{}

type markdownOptions struct {
	Output string `mapstructure:"output"`
	Title  string `mapstructure:"title"`
}

func (DocMarkdown) Name() string        { return "doc-markdown" }
func (DocMarkdown) Description() string { return "Renders markdown documentation (README.md)" }

func (DocMarkdown) decode(opts plugin.Options) (markdownOptions, error) {
	o := markdownOptions{Output: "README.md"}
	err := plugin.DecodeOptions(opts, &o)
	return o, err
}

func (d DocMarkdown) ValidateOptions(opts plugin.Options) error {
	o, err := d.decode(opts)
	if err != nil {
		return err
	}
	return plugin.ValidateArtifactName(o.Output)
}

func (d DocMarkdown) Execute(_ context.Context, pctx *plugin.Context) error {
	o, err := d.decode(pctx.Options)
	if err != nil {
		return err
	}
	title := o.Title
	if title == "" {
		title = pctx.Projection
	}
	caser := cases.Title(language.English)

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", caser.String(title))
	for _, ns := range pctx.Model.Namespaces() {
		fmt.Fprintf(&b, "\n## %s\n", ns)
		for _, s := range pctx.Model.Shapes() {
			if s.ID.Namespace() != ns {
				continue
			}
			fmt.Fprintf(&b, "\n### %s\n\n", s.ID.Name())
			fmt.Fprintf(&b, "_%s_", caser.String(string(s.Type)))
			if s.HasTrait(core.TraitDeprecated) {
				b.WriteString(" (deprecated)")
			}
			b.WriteString("\n")
			if doc := s.Documentation(); doc != "" {
				fmt.Fprintf(&b, "\n%s\n", doc)
			}
			if len(s.Members) > 0 {
				b.WriteString("\n| Member | Target |\n|---|---|\n")
				for _, m := range s.Members {
					fmt.Fprintf(&b, "| %s | `%s` |\n", m.Name, m.Target)
				}
			}
		}
	}
	return pctx.Sink.WriteString(o.Output, b.String())
}
