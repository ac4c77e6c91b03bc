package transform

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapidl/pkg/core"
)

func abcModel() *core.Model {
	return core.NewModelBuilder().
		AddShape(core.Shape{ID: "ex#Svc", Type: core.ShapeTypeService, Members: []core.Member{
			{Name: "op", Target: "ex#Op"},
		}}).
		AddShape(core.Shape{ID: "ex#Op", Type: core.ShapeTypeOperation, Members: []core.Member{
			{Name: "input", Target: "ex#A"},
		}}).
		AddShape(core.Shape{ID: "ex#A", Type: core.ShapeTypeStructure, Tags: []string{"public"},
			Traits: map[string]any{core.TraitDocumentation: "A"},
			Members: []core.Member{
				{Name: "b", Target: "ex#B"},
				{Name: "c", Target: "ex#C", Traits: map[string]any{"internal": true}},
			}}).
		AddShape(core.Shape{ID: "ex#B", Type: core.ShapeTypeStructure, Tags: []string{"public"}}).
		AddShape(core.Shape{ID: "ex#C", Type: core.ShapeTypeStructure, Tags: []string{"internal"},
			Traits: map[string]any{core.TraitDeprecated: true}}).
		AddShape(core.Shape{ID: "other#Loose", Type: core.ShapeTypeString}).
		SetMetadata("owner", "team").
		SetMetadata("suppressions", []any{}).
		Build()
}

func TestDecodeOptions(t *testing.T) {
	o, err := DecodeOptions[shapesOptions](Options{"shapes": []any{"a#B"}})
	require.NoError(t, err)
	assert.Equal(t, []string{"a#B"}, o.Shapes)

	_, err = DecodeOptions[shapesOptions](Options{"shapes": []any{"a#B"}, "shapez": 1})
	assert.Error(t, err, "unknown keys are rejected")
}

func TestValidateOptions(t *testing.T) {
	tests := []struct {
		name    string
		t       Transformer
		opts    Options
		wantErr bool
	}{
		{"ok", ExcludeShapes, Options{"shapes": []string{"ex#C"}}, false},
		{"empty shapes", ExcludeShapes, Options{}, true},
		{"bad id", ExcludeShapes, Options{"shapes": []string{"nohash"}}, true},
		{"wrong type", ExcludeShapesByTag, Options{"tags": map[string]any{"x": 1}}, true},
		{"unknown key", RemoveUnusedShapes, Options{"roots": []string{"x"}}, true},
		{"no options", RemoveUnusedShapes, nil, false},
		{"flatten needs namespace", FlattenNamespaces, Options{}, true},
		{"rename", RenameShapes, Options{"renamed": map[string]any{"ex#A": "ex#Z"}}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, ok := tt.t.(OptionsValidator)
			require.True(t, ok)
			err := v.ValidateOptions(tt.opts)
			if tt.wantErr {
				var te *TransformError
				require.ErrorAs(t, err, &te)
				assert.Equal(t, tt.t.Name(), te.Transform)
				return
			}
			assert.NoError(t, err)
		})
	}
}

func TestRegistry(t *testing.T) {
	reg := NewRegistry()
	require.NoError(t, RegisterBuiltins(reg))
	assert.Len(t, reg.Names(), len(Builtins()))
	assert.True(t, reg.Has("excludeShapes"))

	assert.Error(t, reg.Register(ExcludeShapes), "duplicate")
	reserved := Func(core.ApplyTransform, "", nil, func(_ context.Context, m *core.Model, _ struct{}) (*core.Model, error) { return m, nil })
	assert.Error(t, reg.Register(reserved))

	_, err := reg.Get("nope")
	var unknown *UnknownTransformError
	require.ErrorAs(t, err, &unknown)
	assert.Contains(t, unknown.Available, "renameShapes")
}
