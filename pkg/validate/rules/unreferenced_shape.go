package rules

import (
	"slices"

	"github.com/leapstack-labs/leapidl/pkg/core"
	"github.com/leapstack-labs/leapidl/pkg/validate"
)

// UnreferencedShape flags shapes that no service can reach.
// Models without services are not checked.
var UnreferencedShape = validate.RuleDef{
	ID:          "unreferenced-shape",
	Description: "Shapes should be reachable from a service",
	Severity:    core.SeverityNote,
	Check:       checkUnreferencedShapes,
}

func checkUnreferencedShapes(model *core.Model, _ validate.Options) []core.ValidationEvent {
	services := model.ShapesOfType(core.ShapeTypeService)
	if len(services) == 0 {
		return nil
	}
	roots := make([]core.ShapeID, 0, len(services))
	for _, s := range services {
		roots = append(roots, s.ID)
	}
	reachable := model.Closure(roots)

	var events []core.ValidationEvent
	for _, id := range model.ShapeIDs() {
		if _, found := slices.BinarySearch(reachable, id); !found {
			events = append(events, validate.Eventf(id, "shape is not reachable from any service"))
		}
	}
	return events
}
