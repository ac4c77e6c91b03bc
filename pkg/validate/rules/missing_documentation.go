package rules

import (
	"slices"
	"strings"

	"github.com/leapstack-labs/leapidl/pkg/core"
	"github.com/leapstack-labs/leapidl/pkg/validate"
)

var defaultDocumentedTypes = []string{
	string(core.ShapeTypeService),
	string(core.ShapeTypeOperation),
	string(core.ShapeTypeResource),
	string(core.ShapeTypeStructure),
}

// MissingDocumentation flags shapes of documented types without a
// documentation trait.
var MissingDocumentation = validate.RuleDef{
	ID:          "missing-documentation",
	Description: "Services, operations, resources and structures should be documented",
	Severity:    core.SeverityNote,
	Check:       checkMissingDocumentation,
	ConfigKeys:  []string{"types"},
}

func checkMissingDocumentation(model *core.Model, opts validate.Options) []core.ValidationEvent {
	types := validate.GetStringSliceOption(opts, "types")
	if types == nil {
		types = defaultDocumentedTypes
	}

	var events []core.ValidationEvent
	for _, shape := range model.Shapes() {
		if !slices.Contains(types, string(shape.Type)) {
			continue
		}
		if strings.TrimSpace(shape.Documentation()) == "" {
			events = append(events, validate.Eventf(shape.ID, "%s %s has no documentation", shape.Type, shape.ID.Name()))
		}
	}
	return events
}
