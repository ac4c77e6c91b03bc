// Package rules provides the built-in model validation rules.
//
// Rules are registered explicitly into a validate.Registry:
//
//	reg := validate.NewRegistry()
//	if err := rules.RegisterBuiltins(reg); err != nil { ... }
//
// Built-in rules:
//   - no-dangling-ref: member targets must exist (ERROR)
//   - shape-naming: shape and member naming conventions (WARNING)
//   - deprecated-reference: references to deprecated shapes (WARNING)
//   - missing-documentation: undocumented top-level shapes (NOTE)
//   - unreferenced-shape: shapes outside every service closure (NOTE)
package rules
