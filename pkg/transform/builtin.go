package transform

import "fmt"

// Builtins returns the built-in transformers.
func Builtins() []Transformer {
	return []Transformer{
		ExcludeShapes,
		IncludeShapes,
		ExcludeShapesByTag,
		IncludeShapesByTag,
		ExcludeShapesByTrait,
		IncludeNamespaces,
		ExcludeTraits,
		RemoveUnusedShapes,
		RenameShapes,
		FlattenNamespaces,
		ExcludeMetadata,
		IncludeMetadata,
	}
}

// RegisterBuiltins registers every built-in transformer.
func RegisterBuiltins(reg *Registry) error {
	for _, t := range Builtins() {
		if err := reg.Register(t); err != nil {
			return fmt.Errorf("register builtin transforms: %w", err)
		}
	}
	return nil
}
