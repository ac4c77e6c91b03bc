package rules

import (
	"fmt"

	"github.com/leapstack-labs/leapidl/pkg/validate"
)

// Builtins returns every built-in rule definition.
func Builtins() []validate.RuleDef {
	return []validate.RuleDef{
		NoDanglingRef,
		ShapeNaming,
		DeprecatedReference,
		MissingDocumentation,
		UnreferencedShape,
	}
}

// RegisterBuiltins registers every built-in rule.
func RegisterBuiltins(reg *validate.Registry) error {
	for _, def := range Builtins() {
		if err := reg.Register(validate.WrapRuleDef(def)); err != nil {
			return fmt.Errorf("register builtin rules: %w", err)
		}
	}
	return nil
}

// preludeNamespaces are always considered resolvable.
var preludeNamespaces = []string{"smithy.api"}

func ignoredNamespaces(opts validate.Options) []string {
	if ns := validate.GetStringSliceOption(opts, "ignore_namespaces"); ns != nil {
		return ns
	}
	return preludeNamespaces
}
