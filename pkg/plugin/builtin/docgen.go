package builtin

import (
	"context"

	"github.com/leapstack-labs/leapidl/pkg/core"
	"github.com/leapstack-labs/leapidl/pkg/plugin"
)

// DocGen writes a JSON documentation index of the projected model.
type DocGen struct{}

type docGenOptions struct {
	Output         string `mapstructure:"output"`
	IncludeMembers *bool  `mapstructure:"includeMembers"`
}

type docEntry struct {
	ID            core.ShapeID `json:"id"`
	Type          string       `json:"type"`
	Documentation string       `json:"documentation,omitempty"`
	Deprecated    bool         `json:"deprecated,omitempty"`
	Members       []docMember  `json:"members,omitempty"`
}

type docMember struct {
	Name          string       `json:"name"`
	Target        core.ShapeID `json:"target"`
	Documentation string       `json:"documentation,omitempty"`
}

type docIndex struct {
	Projection string     `json:"projection"`
	Shapes     []docEntry `json:"shapes"`
}

func (DocGen) Name() string        { return "doc-gen" }
func (DocGen) Description() string { return "Writes a JSON documentation index (docs.json)" }

func (DocGen) decode(opts plugin.Options) (docGenOptions, error) {
	o := docGenOptions{Output: "docs.json"}
	err := plugin.DecodeOptions(opts, &o)
	return o, err
}

func (d DocGen) ValidateOptions(opts plugin.Options) error {
	o, err := d.decode(opts)
	if err != nil {
		return err
	}
	return plugin.ValidateArtifactName(o.Output)
}

func (d DocGen) Execute(ctx context.Context, pctx *plugin.Context) error {
	o, err := d.decode(pctx.Options)
	if err != nil {
		return err
	}
	withMembers := o.IncludeMembers == nil || *o.IncludeMembers

	index := docIndex{Projection: pctx.Projection, Shapes: []docEntry{}}
	for _, s := range pctx.Model.Shapes() {
		if err := ctx.Err(); err != nil {
			return err
		}
		entry := docEntry{
			ID:            s.ID,
			Type:          string(s.Type),
			Documentation: s.Documentation(),
			Deprecated:    s.HasTrait(core.TraitDeprecated),
		}
		if withMembers {
			for _, m := range s.Members {
				doc, _ := m.Traits[core.TraitDocumentation].(string)
				entry.Members = append(entry.Members, docMember{Name: m.Name, Target: m.Target, Documentation: doc})
			}
		}
		index.Shapes = append(index.Shapes, entry)
	}
	pctx.Logger.Debug("documentation index built", "shapes", len(index.Shapes))
	return pctx.Sink.WriteJSON(o.Output, index)
}
