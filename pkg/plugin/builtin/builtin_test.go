package builtin

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapidl/pkg/core"
	"github.com/leapstack-labs/leapidl/pkg/plugin"
)

func testContext(opts plugin.Options) *plugin.Context {
	m := core.NewModelBuilder().
		AddShape(core.Shape{ID: "ex#A", Type: core.ShapeTypeStructure,
			Traits:  map[string]any{core.TraitDocumentation: "The A shape."},
			Members: []core.Member{{Name: "b", Target: "ex#B"}}}).
		AddShape(core.Shape{ID: "ex#B", Type: core.ShapeTypeStructure,
			Traits: map[string]any{core.TraitDeprecated: true}}).
		Build()
	return &plugin.Context{
		Projection: "public",
		Model:      m,
		Events:     []core.ValidationEvent{{RuleID: "missing-documentation", Severity: core.SeverityNote, ShapeID: "ex#B", Message: "undocumented"}},
		Options:    opts,
		Plugins:    []string{"doc-gen", "build-info"},
		Sink:       plugin.NewArtifactSink(),
		Logger:     slog.New(slog.DiscardHandler),
	}
}

func run(t *testing.T, p plugin.Plugin, opts plugin.Options) map[string][]byte {
	t.Helper()
	pctx := testContext(opts)
	require.NoError(t, p.Execute(context.Background(), pctx))
	return pctx.Sink.Seal()
}

func TestRegisterBuiltins(t *testing.T) {
	reg := plugin.NewRegistry()
	require.NoError(t, RegisterBuiltins(reg))
	assert.Equal(t, []string{"build-info", "doc-gen", "doc-markdown", "model"}, reg.Names())
}

func TestDocGen(t *testing.T) {
	artifacts := run(t, DocGen{}, nil)
	require.Contains(t, artifacts, "docs.json")

	var index docIndex
	require.NoError(t, json.Unmarshal(artifacts["docs.json"], &index))
	assert.Equal(t, "public", index.Projection)
	require.Len(t, index.Shapes, 2)
	assert.Equal(t, core.ShapeID("ex#A"), index.Shapes[0].ID)
	assert.Equal(t, "The A shape.", index.Shapes[0].Documentation)
	assert.Len(t, index.Shapes[0].Members, 1)
	assert.True(t, index.Shapes[1].Deprecated)

	artifacts = run(t, DocGen{}, plugin.Options{"output": "api/index.json", "includeMembers": false})
	require.Contains(t, artifacts, "api/index.json")
	assert.NotContains(t, string(artifacts["api/index.json"]), `"members"`)
}

func TestDocGen_ValidateOptions(t *testing.T) {
	assert.NoError(t, DocGen{}.ValidateOptions(plugin.Options{"output": "docs/x.json"}))
	assert.Error(t, DocGen{}.ValidateOptions(plugin.Options{"output": "../x.json"}))
	assert.Error(t, DocGen{}.ValidateOptions(plugin.Options{"format": "yaml"}))
}

func TestDocGen_Deterministic(t *testing.T) {
	first := run(t, DocGen{}, nil)
	second := run(t, DocGen{}, nil)
	assert.Equal(t, first, second)
}

func TestDocMarkdown(t *testing.T) {
	artifacts := run(t, DocMarkdown{}, plugin.Options{"title": "public api"})
	md := string(artifacts["README.md"])

	assert.Contains(t, md, "# Public Api\n")
	assert.Contains(t, md, "## ex\n")
	assert.Contains(t, md, "### A\n")
	assert.Contains(t, md, "_Structure_ (deprecated)")
	assert.Contains(t, md, "| b | `ex#B` |")
}

func TestModelPlugin(t *testing.T) {
	artifacts := run(t, Model{}, nil)
	var decoded map[string]any
	require.NoError(t, json.Unmarshal(artifacts["model.json"], &decoded))
	assert.Contains(t, decoded["shapes"], "ex#A")
}

func TestBuildInfo(t *testing.T) {
	artifacts := run(t, BuildInfo{}, nil)

	var info buildInfo
	require.NoError(t, json.Unmarshal(artifacts["build-info.json"], &info))
	assert.Equal(t, "public", info.Projection)
	assert.Equal(t, []core.ShapeID{"ex#A", "ex#B"}, info.ShapeIDs)
	assert.Equal(t, []string{"doc-gen", "build-info"}, info.Plugins)
	assert.Equal(t, 1, info.EventCounts["NOTE"])
	require.Len(t, info.ValidationEvents, 1)
	assert.Equal(t, core.SeverityNote, info.ValidationEvents[0].Severity)
}
