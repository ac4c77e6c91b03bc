package rules

import (
	"slices"

	"github.com/leapstack-labs/leapidl/pkg/core"
	"github.com/leapstack-labs/leapidl/pkg/validate"
)

// NoDanglingRef flags members whose target is not part of the model.
var NoDanglingRef = validate.RuleDef{
	ID:          "no-dangling-ref",
	Description: "Member targets must resolve to a shape in the model",
	Severity:    core.SeverityError,
	Check:       checkDanglingRefs,
	ConfigKeys:  []string{"ignore_namespaces"},
	Rationale: `A projection that removes a shape while keeping members that point at it
produces a model generators cannot resolve. Prelude shapes (smithy.api by default)
are assumed to exist.`,
}

func checkDanglingRefs(model *core.Model, opts validate.Options) []core.ValidationEvent {
	ignored := ignoredNamespaces(opts)

	var events []core.ValidationEvent
	for _, shape := range model.Shapes() {
		for _, m := range shape.Members {
			if m.Target == "" || model.HasShape(m.Target) {
				continue
			}
			if slices.Contains(ignored, m.Target.Namespace()) {
				continue
			}
			events = append(events, validate.Eventf(shape.ID.WithMember(m.Name),
				"member %q targets unknown shape %s", m.Name, m.Target))
		}
	}
	return events
}
