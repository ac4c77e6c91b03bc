package loader

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapidl/pkg/core"
)

const weatherYAML = `
version: "1.0"
metadata:
  suppressions:
    - id: shape-naming
shapes:
  example.weather#Weather:
    type: service
    members:
      getCity: example.weather#GetCity
  example.weather#GetCity:
    type: operation
    traits:
      documentation: Returns a city.
    members:
      output: {target: example.weather#City}
  example.weather#City:
    type: structure
    tags: [public]
    members:
      name:
        target: smithy.api#String
        traits: {required: true}
      cityId: smithy.api#String
`

func TestParse(t *testing.T) {
	f, err := Parse("weather.yaml", []byte(weatherYAML))
	require.NoError(t, err)
	require.Len(t, f.Shapes, 3)

	city := f.Shapes[2]
	assert.Equal(t, core.ShapeID("example.weather#City"), city.ID)
	assert.Equal(t, core.ShapeTypeStructure, city.Type)
	assert.Equal(t, []string{"public"}, city.Tags)
	require.Len(t, city.Members, 2)
	// Document order is preserved.
	assert.Equal(t, "name", city.Members[0].Name)
	assert.Equal(t, "cityId", city.Members[1].Name)
	assert.Equal(t, true, city.Members[0].Traits["required"])

	assert.Equal(t, "Returns a city.", f.Shapes[1].Documentation())
	assert.Contains(t, f.Metadata, "suppressions")
}

func TestParse_JSON(t *testing.T) {
	doc := `{"shapes": {"ex#A": {"type": "structure", "members": {"b": {"target": "ex#B"}}}, "ex#B": {"type": "string"}}}`
	f, err := Parse("model.json", []byte(doc))
	require.NoError(t, err)
	require.Len(t, f.Shapes, 2)
	assert.Equal(t, core.ShapeID("ex#B"), f.Shapes[0].Members[0].Target)
}

func TestParse_Empty(t *testing.T) {
	f, err := Parse("empty.yaml", nil)
	require.NoError(t, err)
	assert.Empty(t, f.Shapes)
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		unknown bool
		want    string
	}{
		{name: "unknown root field", doc: "shapez: {}", unknown: true, want: `unknown field "shapez"`},
		{name: "unknown shape field", doc: "shapes:\n  ex#A: {type: structure, color: red}", unknown: true, want: `shape "ex#A"`},
		{name: "unknown member field", doc: "shapes:\n  ex#A:\n    type: structure\n    members:\n      b: {target: ex#B, extra: 1}", unknown: true, want: `member "ex#A$b"`},
		{name: "missing type", doc: "shapes:\n  ex#A: {tags: [x]}", want: "type is required"},
		{name: "invalid id", doc: "shapes:\n  A: {type: structure}", want: "expected namespace#Name"},
		{name: "member id", doc: "shapes:\n  ex#A$b: {type: structure}", want: "must not name a member"},
		{name: "missing target", doc: "shapes:\n  ex#A:\n    type: structure\n    members:\n      b: {traits: {}}", want: "target is required"},
		{name: "invalid target", doc: "shapes:\n  ex#A:\n    type: structure\n    members:\n      b: B", want: "invalid shape id"},
		{name: "bad member name", doc: "shapes:\n  ex#A:\n    type: structure\n    members:\n      b$c: ex#B", want: "invalid member name"},
		{name: "not a mapping", doc: "- a\n- b", want: "must be a mapping"},
		{name: "invalid yaml", doc: "shapes: [", want: "invalid YAML"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse("bad.yaml", []byte(tt.doc))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
			assert.Contains(t, err.Error(), "bad.yaml")
			if tt.unknown {
				var ufe *UnknownFieldError
				assert.ErrorAs(t, err, &ufe)
			} else {
				var pe *ParseError
				assert.ErrorAs(t, err, &pe)
			}
		})
	}
}

func TestParse_ReportsLine(t *testing.T) {
	_, err := Parse("bad.yaml", []byte("shapes:\n  ex#A:\n    type: structure\n    colour: red\n"))
	var ufe *UnknownFieldError
	require.ErrorAs(t, err, &ufe)
	assert.Equal(t, 4, ufe.Line)
}

func TestMerge(t *testing.T) {
	a := &File{Path: "a.yaml",
		Metadata: map[string]any{"suppressions": []any{"x"}, "owner": "team"},
		Shapes:   []core.Shape{{ID: "ex#A", Type: core.ShapeTypeStructure}},
	}
	b := &File{Path: "b.yaml",
		Metadata: map[string]any{"suppressions": []any{"y"}, "owner": "team"},
		Shapes: []core.Shape{
			{ID: "ex#A", Type: core.ShapeTypeStructure},
			{ID: "ex#B", Type: core.ShapeTypeString},
		},
	}

	model, err := Merge(a, b)
	require.NoError(t, err)
	assert.Equal(t, []core.ShapeID{"ex#A", "ex#B"}, model.ShapeIDs())
	v, _ := model.MetadataValue("suppressions")
	assert.Equal(t, []any{"x", "y"}, v)
}

func TestMerge_Conflicts(t *testing.T) {
	a := &File{Path: "a.yaml",
		Metadata: map[string]any{"owner": "team-a"},
		Shapes:   []core.Shape{{ID: "ex#A", Type: core.ShapeTypeStructure}},
	}
	b := &File{Path: "b.yaml",
		Metadata: map[string]any{"owner": "team-b"},
		Shapes:   []core.Shape{{ID: "ex#A", Type: core.ShapeTypeUnion}},
	}

	_, err := Merge(a, b)
	require.Error(t, err)
	var conflict *ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, core.ShapeID("ex#A"), conflict.Shape)
	assert.Equal(t, []string{"a.yaml", "b.yaml"}, conflict.Files)
	assert.Contains(t, err.Error(), `metadata key "owner"`)
}

func TestLoader_LoadDirectory(t *testing.T) {
	dir := t.TempDir()
	write := func(rel, content string) {
		path := filepath.Join(dir, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	}
	write("b/model.yaml", "shapes:\n  ex#B: {type: string}\n")
	write("a.json", `{"shapes": {"ex#A": {"type": "structure", "members": {"b": "ex#B"}}}}`)
	write("notes.txt", "ignored")
	write(".hidden/skip.yaml", "shapes:\n  ex#Hidden: {type: string}\n")

	files, err := Expand(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{filepath.Join(dir, "a.json"), filepath.Join(dir, "b", "model.yaml")}, files)

	model, err := New(nil).Load(dir)
	require.NoError(t, err)
	assert.Equal(t, []core.ShapeID{"ex#A", "ex#B"}, model.ShapeIDs())
}

func TestLoader_MissingPath(t *testing.T) {
	_, err := New(nil).Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}
