// Package starlark runs validation rules written in Starlark.
//
// A rule file defines a validate function and optional ID, DESCRIPTION and
// SEVERITY globals:
//
//	ID = "structure-has-members"
//	SEVERITY = "warning"
//
//	def validate(model, options):
//	    return [
//	        event(s.id, "structure has no members")
//	        for s in model.shapes
//	        if s.type == "structure" and not s.members
//	    ]
//
// The model is a read-only struct with shapes, metadata, and the functions
// shape(id) and referenced_by(id).
package starlark

import (
	"fmt"
	"slices"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/leapstack-labs/leapidl/pkg/core"
)

// GoToStarlark converts a Go value to a Starlark value. Map keys are
// inserted in sorted order so scripts see a deterministic iteration order.
// Supported types: string, ints, float64, bool, []string, []any, map[string]any
func GoToStarlark(v any) (starlark.Value, error) {
	if v == nil {
		return starlark.None, nil
	}

	switch val := v.(type) {
	case string:
		return starlark.String(val), nil

	case int:
		return starlark.MakeInt(val), nil

	case int64:
		return starlark.MakeInt64(val), nil

	case uint64:
		return starlark.MakeUint64(val), nil

	case float64:
		return starlark.Float(val), nil

	case bool:
		return starlark.Bool(val), nil

	case []string:
		list := make([]starlark.Value, len(val))
		for i, s := range val {
			list[i] = starlark.String(s)
		}
		return starlark.NewList(list), nil

	case []any:
		list := make([]starlark.Value, len(val))
		for i, item := range val {
			sv, err := GoToStarlark(item)
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			list[i] = sv
		}
		return starlark.NewList(list), nil

	case map[string]any:
		dict := starlark.NewDict(len(val))
		keys := make([]string, 0, len(val))
		for k := range val {
			keys = append(keys, k)
		}
		slices.Sort(keys)
		for _, k := range keys {
			sv, err := GoToStarlark(val[k])
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", k, err)
			}
			if err := dict.SetKey(starlark.String(k), sv); err != nil {
				return nil, fmt.Errorf("dict setkey %q: %w", k, err)
			}
		}
		return dict, nil

	default:
		return nil, fmt.Errorf("unsupported type: %T", v)
	}
}

// ToGo converts a Starlark value back to a Go value.
// Returns: string, int64, float64, bool, []any, map[string]any, or nil
func ToGo(v starlark.Value) (any, error) {
	switch val := v.(type) {
	case starlark.NoneType:
		return nil, nil

	case starlark.String:
		return string(val), nil

	case starlark.Int:
		i64, ok := val.Int64()
		if !ok {
			// Fallback for very large integers - convert to string
			return val.String(), nil
		}
		return i64, nil

	case starlark.Float:
		return float64(val), nil

	case starlark.Bool:
		return bool(val), nil

	case *starlark.List:
		result := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			gv, err := ToGo(val.Index(i))
			if err != nil {
				return nil, fmt.Errorf("list index %d: %w", i, err)
			}
			result[i] = gv
		}
		return result, nil

	case *starlark.Dict:
		result := make(map[string]any)
		for _, item := range val.Items() {
			key, ok := item[0].(starlark.String)
			if !ok {
				return nil, fmt.Errorf("dict key must be string, got %T", item[0])
			}
			gv, err := ToGo(item[1])
			if err != nil {
				return nil, fmt.Errorf("dict key %q: %w", key, err)
			}
			result[string(key)] = gv
		}
		return result, nil

	case starlark.Tuple:
		result := make([]any, val.Len())
		for i := 0; i < val.Len(); i++ {
			gv, err := ToGo(val.Index(i))
			if err != nil {
				return nil, fmt.Errorf("tuple index %d: %w", i, err)
			}
			result[i] = gv
		}
		return result, nil

	default:
		return val.String(), nil
	}
}

// ShapeToStarlark converts a shape to a frozen struct with fields id,
// namespace, name, type, tags, traits and members.
func ShapeToStarlark(s core.Shape) (starlark.Value, error) {
	traits, err := GoToStarlark(map[string]any(s.Traits))
	if err != nil {
		return nil, fmt.Errorf("shape %s traits: %w", s.ID, err)
	}
	if s.Traits == nil {
		traits = starlark.NewDict(0)
	}

	members := make([]starlark.Value, 0, len(s.Members))
	for _, m := range s.Members {
		mt, err := GoToStarlark(map[string]any(m.Traits))
		if err != nil {
			return nil, fmt.Errorf("member %s traits: %w", s.ID.WithMember(m.Name), err)
		}
		if m.Traits == nil {
			mt = starlark.NewDict(0)
		}
		members = append(members, starlarkstruct.FromStringDict(starlark.String("member"), starlark.StringDict{
			"id":     starlark.String(s.ID.WithMember(m.Name)),
			"name":   starlark.String(m.Name),
			"target": starlark.String(m.Target),
			"traits": mt,
		}))
	}

	tags, _ := GoToStarlark(s.Tags)
	if s.Tags == nil {
		tags = starlark.NewList(nil)
	}

	v := starlarkstruct.FromStringDict(starlark.String("shape"), starlark.StringDict{
		"id":        starlark.String(s.ID),
		"namespace": starlark.String(s.ID.Namespace()),
		"name":      starlark.String(s.ID.Name()),
		"type":      starlark.String(s.Type),
		"tags":      tags,
		"traits":    traits,
		"members":   starlark.NewList(members),
	})
	v.Freeze()
	return v, nil
}

// ModelToStarlark converts a model to a frozen struct.
func ModelToStarlark(model *core.Model) (starlark.Value, error) {
	shapes := model.Shapes()
	values := make([]starlark.Value, 0, len(shapes))
	byID := make(map[core.ShapeID]starlark.Value, len(shapes))
	for _, s := range shapes {
		v, err := ShapeToStarlark(s)
		if err != nil {
			return nil, err
		}
		values = append(values, v)
		byID[s.ID] = v
	}

	metadata, err := GoToStarlark(model.Metadata())
	if err != nil {
		return nil, fmt.Errorf("metadata: %w", err)
	}

	shapeFn := starlark.NewBuiltin("shape", func(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var id string
		if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &id); err != nil {
			return nil, err
		}
		if v, ok := byID[core.ShapeID(id)]; ok {
			return v, nil
		}
		return starlark.None, nil
	})
	referencedBy := starlark.NewBuiltin("referenced_by", func(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
		var id string
		if err := starlark.UnpackPositionalArgs(fn.Name(), args, kwargs, 1, &id); err != nil {
			return nil, err
		}
		refs := model.ReferencedBy(core.ShapeID(id))
		out := make([]starlark.Value, len(refs))
		for i, r := range refs {
			out[i] = starlark.String(r)
		}
		return starlark.NewList(out), nil
	})

	v := starlarkstruct.FromStringDict(starlark.String("model"), starlark.StringDict{
		"shapes":        starlark.NewList(values),
		"metadata":      metadata,
		"shape":         shapeFn,
		"referenced_by": referencedBy,
	})
	v.Freeze()
	return v, nil
}
