package rules

import (
	"github.com/leapstack-labs/leapidl/pkg/core"
	"github.com/leapstack-labs/leapidl/pkg/validate"
)

// DeprecatedReference flags non-deprecated shapes that reference deprecated ones.
var DeprecatedReference = validate.RuleDef{
	ID:          "deprecated-reference",
	Description: "Shapes should not reference deprecated shapes",
	Severity:    core.SeverityWarning,
	Check:       checkDeprecatedReferences,
}

func checkDeprecatedReferences(model *core.Model, _ validate.Options) []core.ValidationEvent {
	var events []core.ValidationEvent
	for _, shape := range model.Shapes() {
		if shape.HasTrait(core.TraitDeprecated) {
			continue
		}
		for _, m := range shape.Members {
			target, ok := model.Shape(m.Target)
			if !ok || !target.HasTrait(core.TraitDeprecated) {
				continue
			}
			events = append(events, validate.Eventf(shape.ID.WithMember(m.Name),
				"member %q references deprecated shape %s", m.Name, m.Target))
		}
	}
	return events
}
