package builtin

import (
	"context"

	"github.com/leapstack-labs/leapidl/pkg/plugin"
)

// Model serializes the projected model as model.json.
type Model struct{}

func (Model) Name() string        { return "model" }
func (Model) Description() string { return "Writes the projected model as JSON" }

func (Model) ValidateOptions(opts plugin.Options) error {
	var o struct{}
	return plugin.DecodeOptions(opts, &o)
}

func (Model) Execute(_ context.Context, pctx *plugin.Context) error {
	return pctx.Sink.WriteJSON("model.json", pctx.Model)
}
