// Package validate provides the model validation engine.
//
// # Architecture
//
// Validation is split into three pieces:
//
//  1. Rules: capability objects that inspect a model and emit events
//  2. Registry: an instance-scoped, read-only-after-startup name -> rule map
//  3. Engine: evaluates enabled rules, applies severity overrides and
//     suppressions, and returns a deterministic event sequence
//
// # Rule Registration
//
// Registries are created explicitly and passed to the engine; there is no
// ambient global registry:
//
//	reg := validate.NewRegistry()
//	rules.RegisterBuiltins(reg)
//	engine := validate.NewEngine(reg, validate.NewConfig())
//
// # Creating Custom Rules
//
// Implement the Rule interface or use RuleDef:
//
//	var MyRule = validate.RuleDef{
//		ID:          "my-rule",
//		Description: "My custom rule description",
//		Severity:    core.SeverityWarning,
//		Check:       checkMyRule,
//	}
//
// # Suppressions
//
// Suppressions downgrade matching events to SUPPRESSED. Suppressed events are
// kept in the output for auditing but never make a projection fail.
package validate
