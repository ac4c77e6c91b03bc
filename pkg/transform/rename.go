package transform

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/leapstack-labs/leapidl/pkg/core"
)

// rewrite applies an id mapping to shapes and member targets. Collisions with
// existing, unmapped shapes are errors.
func rewrite(model *core.Model, mapping map[core.ShapeID]core.ShapeID) (*core.Model, error) {
	if len(mapping) == 0 {
		return model, nil
	}
	var errs []error
	targets := make(map[core.ShapeID]core.ShapeID, len(mapping))
	for from, to := range mapping {
		if prev, dup := targets[to]; dup {
			errs = append(errs, fmt.Errorf("%s and %s would both become %s", prev, from, to))
			continue
		}
		targets[to] = from
		if _, moving := mapping[to]; !moving && model.HasShape(to) && to != from {
			errs = append(errs, fmt.Errorf("cannot rename %s: %s already exists", from, to))
		}
	}
	if err := errors.Join(errs...); err != nil {
		return nil, err
	}

	resolve := func(id core.ShapeID) core.ShapeID {
		if to, ok := mapping[id]; ok {
			return to
		}
		return id
	}
	b := core.NewModelBuilder()
	for _, key := range model.MetadataKeys() {
		v, _ := model.MetadataValue(key)
		b.SetMetadata(key, v)
	}
	for _, s := range model.Shapes() {
		s.ID = resolve(s.ID)
		for i := range s.Members {
			s.Members[i].Target = resolve(s.Members[i].Target)
		}
		b.AddShape(s)
	}
	return b.Build(), nil
}

type renameOptions struct {
	Renamed map[string]string `mapstructure:"renamed"`
}

// RenameShapes renames shapes and updates every reference to them.
var RenameShapes = Func("renameShapes",
	"Renames shapes and updates references to them",
	func(o renameOptions) error {
		if len(o.Renamed) == 0 {
			return errors.New("renamed must not be empty")
		}
		for from, to := range o.Renamed {
			if _, err := core.ParseShapeID(from); err != nil {
				return err
			}
			if _, err := core.ParseShapeID(to); err != nil {
				return err
			}
		}
		return nil
	},
	func(_ context.Context, model *core.Model, o renameOptions) (*core.Model, error) {
		from := make([]string, 0, len(o.Renamed))
		mapping := make(map[core.ShapeID]core.ShapeID, len(o.Renamed))
		for f, t := range o.Renamed {
			from = append(from, f)
			mapping[core.ShapeID(f)] = core.ShapeID(t)
		}
		slices.Sort(from)
		if err := requireShapes(model, from); err != nil {
			return nil, err
		}
		return rewrite(model, mapping)
	})

type flattenOptions struct {
	Namespace     string   `mapstructure:"namespace"`
	Services      []string `mapstructure:"services"`
	IncludeTagged []string `mapstructure:"includeTagged"`
}

// FlattenNamespaces moves every shape connected to the selected services
// (all services when none are listed) into a single namespace. Shapes outside
// those closures keep their namespace.
var FlattenNamespaces = Func("flattenNamespaces",
	"Moves shapes connected to services into one namespace",
	func(o flattenOptions) error {
		if o.Namespace == "" {
			return errors.New("namespace is required")
		}
		for _, id := range o.Services {
			if _, err := core.ParseShapeID(id); err != nil {
				return err
			}
		}
		return nil
	},
	func(_ context.Context, model *core.Model, o flattenOptions) (*core.Model, error) {
		var roots []core.ShapeID
		if len(o.Services) > 0 {
			if err := requireShapes(model, o.Services); err != nil {
				return nil, err
			}
			for _, id := range o.Services {
				roots = append(roots, core.ShapeID(id))
			}
		} else {
			for _, s := range model.ShapesOfType(core.ShapeTypeService) {
				roots = append(roots, s.ID)
			}
		}
		for _, s := range model.Shapes() {
			if hasAnyTag(s, o.IncludeTagged) {
				roots = append(roots, s.ID)
			}
		}

		mapping := make(map[core.ShapeID]core.ShapeID)
		for _, id := range model.Closure(roots) {
			if id.Namespace() != o.Namespace {
				mapping[id] = id.WithNamespace(o.Namespace)
			}
		}
		return rewrite(model, mapping)
	})
