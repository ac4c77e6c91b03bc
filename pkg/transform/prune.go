package transform

import (
	"context"
	"slices"

	"github.com/leapstack-labs/leapidl/pkg/core"
)

type removeUnusedOptions struct {
	// ExportTagged lists tags whose shapes are kept as additional roots.
	ExportTagged []string `mapstructure:"exportTagged"`
}

// RemoveUnusedShapes removes shapes not reachable from a service or from a
// shape tagged with one of exportTagged. A model without any root is
// returned unchanged.
var RemoveUnusedShapes = Func("removeUnusedShapes",
	"Removes shapes that are not connected to a service or an exported shape",
	nil,
	func(_ context.Context, model *core.Model, o removeUnusedOptions) (*core.Model, error) {
		var roots []core.ShapeID
		for _, s := range model.Shapes() {
			if s.Type == core.ShapeTypeService || hasAnyTag(s, o.ExportTagged) {
				roots = append(roots, s.ID)
			}
		}
		if len(roots) == 0 {
			return model, nil
		}
		reachable := model.Closure(roots)
		return retain(model, func(s core.Shape) bool {
			_, found := slices.BinarySearch(reachable, s.ID)
			return found
		}), nil
	})
