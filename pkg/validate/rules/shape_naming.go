package rules

import (
	"unicode"

	"github.com/leapstack-labs/leapidl/pkg/core"
	"github.com/leapstack-labs/leapidl/pkg/validate"
)

// ShapeNaming enforces UpperCamelCase shape names and lowerCamelCase members.
var ShapeNaming = validate.RuleDef{
	ID:          "shape-naming",
	Description: "Shapes use UpperCamelCase names, members use lowerCamelCase",
	Severity:    core.SeverityWarning,
	Check:       checkShapeNaming,
	ConfigKeys:  []string{"allow_underscores"},
	Rationale:   "Consistent casing keeps generated identifiers predictable across target languages.",
}

func checkShapeNaming(model *core.Model, opts validate.Options) []core.ValidationEvent {
	allowUnderscores := validate.GetOption(opts, "allow_underscores", false)

	var events []core.ValidationEvent
	for _, shape := range model.Shapes() {
		name := shape.ID.Name()
		if !startsWith(name, unicode.IsUpper) || (!allowUnderscores && containsRune(name, '_')) {
			events = append(events, validate.Eventf(shape.ID, "shape name %q should be UpperCamelCase", name))
		}
		// Enum values and operation io bindings are conventionally free-form.
		if shape.Type == core.ShapeTypeEnum || shape.Type == core.ShapeTypeOperation {
			continue
		}
		for _, m := range shape.Members {
			if !startsWith(m.Name, unicode.IsLower) || (!allowUnderscores && containsRune(m.Name, '_')) {
				events = append(events, validate.Eventf(shape.ID.WithMember(m.Name),
					"member name %q should be lowerCamelCase", m.Name))
			}
		}
	}
	return events
}

func startsWith(s string, pred func(rune) bool) bool {
	for _, r := range s {
		return pred(r)
	}
	return false
}

func containsRune(s string, want rune) bool {
	for _, r := range s {
		if r == want {
			return true
		}
	}
	return false
}
