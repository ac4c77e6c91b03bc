package transform

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/leapstack-labs/leapidl/pkg/core"
)

// retain rebuilds the model with the shapes keep accepts. Members of kept
// shapes that target a removed shape are dropped as well.
func retain(model *core.Model, keep func(core.Shape) bool) *core.Model {
	removed := make(map[core.ShapeID]bool)
	shapes := model.Shapes()
	for _, s := range shapes {
		if !keep(s) {
			removed[s.ID] = true
		}
	}
	if len(removed) == 0 {
		return model
	}

	b := model.ToBuilder()
	for id := range removed {
		b.RemoveShape(id)
	}
	for _, s := range shapes {
		if removed[s.ID] {
			continue
		}
		kept := s.Members[:0:0]
		for _, m := range s.Members {
			if !removed[m.Target] {
				kept = append(kept, m)
			}
		}
		if len(kept) != len(s.Members) {
			if len(kept) == 0 {
				kept = nil
			}
			s.Members = kept
			b.AddShape(s)
		}
	}
	return b.Build()
}

func requireShapes(model *core.Model, ids []string) error {
	var errs []error
	for _, id := range ids {
		if !model.HasShape(core.ShapeID(id)) {
			errs = append(errs, fmt.Errorf("%w: %s", ErrMissingShape, id))
		}
	}
	return errors.Join(errs...)
}

func validateShapeIDs(ids []string) error {
	if len(ids) == 0 {
		return errors.New("shapes must not be empty")
	}
	for _, id := range ids {
		if _, err := core.ParseShapeID(id); err != nil {
			return err
		}
	}
	return nil
}

func requireNonEmpty(field string, values []string) error {
	if len(values) == 0 {
		return fmt.Errorf("%s must not be empty", field)
	}
	return nil
}

// =============================================================================
// By shape id
// =============================================================================

type shapesOptions struct {
	Shapes []string `mapstructure:"shapes"`
	// AllowMissing skips ids that are not in the model instead of failing.
	AllowMissing bool `mapstructure:"allowMissing"`
}

func validateShapesOptions(o shapesOptions) error { return validateShapeIDs(o.Shapes) }

// ExcludeShapes removes the listed shapes.
var ExcludeShapes = Func("excludeShapes",
	"Removes the listed shapes and members that target them",
	validateShapesOptions,
	func(_ context.Context, model *core.Model, o shapesOptions) (*core.Model, error) {
		if !o.AllowMissing {
			if err := requireShapes(model, o.Shapes); err != nil {
				return nil, err
			}
		}
		return retain(model, func(s core.Shape) bool {
			return !slices.Contains(o.Shapes, string(s.ID))
		}), nil
	})

// IncludeShapes keeps only the listed shapes.
var IncludeShapes = Func("includeShapes",
	"Keeps only the listed shapes",
	validateShapesOptions,
	func(_ context.Context, model *core.Model, o shapesOptions) (*core.Model, error) {
		if !o.AllowMissing {
			if err := requireShapes(model, o.Shapes); err != nil {
				return nil, err
			}
		}
		return retain(model, func(s core.Shape) bool {
			return slices.Contains(o.Shapes, string(s.ID))
		}), nil
	})

// =============================================================================
// By tag, trait and namespace
// =============================================================================

type tagsOptions struct {
	Tags []string `mapstructure:"tags"`
}

func validateTagsOptions(o tagsOptions) error { return requireNonEmpty("tags", o.Tags) }

func hasAnyTag(s core.Shape, tags []string) bool {
	return slices.ContainsFunc(tags, s.HasTag)
}

// ExcludeShapesByTag removes shapes carrying any of the tags.
var ExcludeShapesByTag = Func("excludeShapesByTag",
	"Removes shapes tagged with any of the given tags",
	validateTagsOptions,
	func(_ context.Context, model *core.Model, o tagsOptions) (*core.Model, error) {
		return retain(model, func(s core.Shape) bool { return !hasAnyTag(s, o.Tags) }), nil
	})

// IncludeShapesByTag keeps only shapes carrying any of the tags.
var IncludeShapesByTag = Func("includeShapesByTag",
	"Keeps only shapes tagged with any of the given tags",
	validateTagsOptions,
	func(_ context.Context, model *core.Model, o tagsOptions) (*core.Model, error) {
		return retain(model, func(s core.Shape) bool { return hasAnyTag(s, o.Tags) }), nil
	})

type traitsOptions struct {
	Traits []string `mapstructure:"traits"`
}

func validateTraitsOptions(o traitsOptions) error { return requireNonEmpty("traits", o.Traits) }

// ExcludeShapesByTrait removes shapes carrying any of the traits.
var ExcludeShapesByTrait = Func("excludeShapesByTrait",
	"Removes shapes that carry any of the given traits",
	validateTraitsOptions,
	func(_ context.Context, model *core.Model, o traitsOptions) (*core.Model, error) {
		return retain(model, func(s core.Shape) bool {
			return !slices.ContainsFunc(o.Traits, s.HasTrait)
		}), nil
	})

type namespacesOptions struct {
	Namespaces []string `mapstructure:"namespaces"`
}

// IncludeNamespaces keeps only shapes in the listed namespaces.
var IncludeNamespaces = Func("includeNamespaces",
	"Keeps only shapes in the given namespaces",
	func(o namespacesOptions) error { return requireNonEmpty("namespaces", o.Namespaces) },
	func(_ context.Context, model *core.Model, o namespacesOptions) (*core.Model, error) {
		return retain(model, func(s core.Shape) bool {
			return slices.Contains(o.Namespaces, s.ID.Namespace())
		}), nil
	})

// ExcludeTraits strips the listed traits from shapes and members.
var ExcludeTraits = Func("excludeTraits",
	"Removes the given traits from every shape and member",
	validateTraitsOptions,
	func(_ context.Context, model *core.Model, o traitsOptions) (*core.Model, error) {
		b := model.ToBuilder()
		changed := false
		for _, s := range model.Shapes() {
			dirty := false
			for _, t := range o.Traits {
				if _, ok := s.Traits[t]; ok {
					delete(s.Traits, t)
					dirty = true
				}
				for i := range s.Members {
					if _, ok := s.Members[i].Traits[t]; ok {
						delete(s.Members[i].Traits, t)
						dirty = true
					}
				}
			}
			if dirty {
				b.AddShape(s)
				changed = true
			}
		}
		if !changed {
			return model, nil
		}
		return b.Build(), nil
	})
