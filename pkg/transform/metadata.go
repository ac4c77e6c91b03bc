package transform

import (
	"context"
	"slices"

	"github.com/leapstack-labs/leapidl/pkg/core"
)

type keysOptions struct {
	Keys []string `mapstructure:"keys"`
}

func filterMetadata(model *core.Model, keep func(string) bool) *core.Model {
	b := model.ToBuilder()
	changed := false
	for _, k := range model.MetadataKeys() {
		if !keep(k) {
			b.RemoveMetadata(k)
			changed = true
		}
	}
	if !changed {
		return model
	}
	return b.Build()
}

// ExcludeMetadata removes the listed metadata keys.
var ExcludeMetadata = Func("excludeMetadata",
	"Removes the given model metadata keys",
	func(o keysOptions) error { return requireNonEmpty("keys", o.Keys) },
	func(_ context.Context, model *core.Model, o keysOptions) (*core.Model, error) {
		return filterMetadata(model, func(k string) bool { return !slices.Contains(o.Keys, k) }), nil
	})

// IncludeMetadata keeps only the listed metadata keys.
var IncludeMetadata = Func("includeMetadata",
	"Keeps only the given model metadata keys",
	nil,
	func(_ context.Context, model *core.Model, o keysOptions) (*core.Model, error) {
		return filterMetadata(model, func(k string) bool { return slices.Contains(o.Keys, k) }), nil
	})
