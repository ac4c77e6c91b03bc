package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapidl/internal/build"
	"github.com/leapstack-labs/leapidl/internal/cli/commands"
	"github.com/leapstack-labs/leapidl/internal/cli/config"
	"github.com/leapstack-labs/leapidl/internal/cli/testutil"
	"github.com/leapstack-labs/leapidl/internal/state"
)

const shopModel = `shapes:
  shop#Order:
    type: structure
    traits: {documentation: "An order"}
    members:
      item: {target: shop#Item}
  shop#Item:
    type: structure
    traits: {documentation: "An item"}
  shop#Audit:
    type: structure
    tags: [internal]
    traits: {documentation: "Internal audit record"}
`

const shopConfig = `version: "1.0"
sources: [model]
plugins:
  - name: model
projections:
  - name: public
    transforms:
      - name: excludeShapesByTag
        options:
          tags: [internal]
    plugins:
      - name: doc-gen
validation:
  scripts: [rules]
`

const auditRule = `ID = "no-audit-shapes"
DESCRIPTION = "Audit shapes are not published"
SEVERITY = "note"

def validate(model, options):
    return [event(s.id, "audit shape") for s in model.shapes if s.name == "Audit"]
`

type fixture struct {
	dir string
}

func newFixture(t *testing.T, config, model string) *fixture {
	t.Helper()
	return &fixture{dir: testutil.WriteProject(t, map[string]string{
		"leapidl-build.yaml":  config,
		"model/shop.yaml":     model,
		"rules/no_audit.star": auditRule,
	})}
}

func (f *fixture) path(parts ...string) string {
	return filepath.Join(append([]string{f.dir}, parts...)...)
}

// run executes the root command from the fixture directory.
func (f *fixture) run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	t.Chdir(f.dir)
	var out, errOut bytes.Buffer
	cmd := NewRootCmd()
	cmd.SetArgs(args)
	cmd.SetOut(&out)
	cmd.SetErr(&errOut)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path) //nolint:gosec // test path
	require.NoError(t, err)
	return string(b)
}

func TestBuild_WritesArtifactsAndHistory(t *testing.T) {
	f := newFixture(t, shopConfig, shopModel)

	stdout, _, err := f.run(t, "build", "--output", "json")
	require.NoError(t, err)

	var report struct {
		ID          string `json:"id"`
		Status      string `json:"status"`
		Projections []struct {
			Name   string `json:"name"`
			Status string `json:"status"`
		} `json:"projections"`
		Files []string `json:"files"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &report))
	assert.Equal(t, "SUCCEEDED", report.Status)
	require.Len(t, report.Projections, 2)
	assert.Equal(t, "source", report.Projections[0].Name)
	assert.Equal(t, "public", report.Projections[1].Name)

	docs := readFile(t, f.path("build", "public", "doc-gen", "docs.json"))
	assert.Contains(t, docs, "shop#Order")
	assert.Contains(t, docs, "shop#Item")
	assert.NotContains(t, docs, "shop#Audit")
	assert.Contains(t, readFile(t, f.path("build", "source", "model", "model.json")), "shop#Audit")
	assert.Contains(t, report.Files, f.path("build", "public", "model", "model.json"))

	// The build is in the history.
	stdout, _, err = f.run(t, "history", "--output", "json")
	require.NoError(t, err)
	var records []state.BuildRecord
	require.NoError(t, json.Unmarshal([]byte(stdout), &records))
	require.Len(t, records, 1)
	assert.Equal(t, report.ID, records[0].ID)

	stdout, _, err = f.run(t, "history", report.ID, "--output", "json")
	require.NoError(t, err)
	var rec state.BuildRecord
	require.NoError(t, json.Unmarshal([]byte(stdout), &rec))
	require.Len(t, rec.Projections, 2)
	assert.Equal(t, "public", rec.Projections[1].Name)
}

func TestBuild_MarkdownReport(t *testing.T) {
	f := newFixture(t, shopConfig, shopModel)

	stdout, stderr, err := f.run(t, "build", "--no-history", "--projection", "public")
	require.NoError(t, err)
	assert.Contains(t, stdout, "# Build ")
	assert.Contains(t, stdout, "| public ")
	assert.NotContains(t, stdout, "| source ")
	assert.Contains(t, stderr, "Build succeeded")

	_, err = os.Stat(f.path("build", state.DefaultFileName))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestBuild_FailedProjectionSetsError(t *testing.T) {
	dangling := shopModel + `  shop#Broken:
    type: structure
    traits: {documentation: "Refers to nothing"}
    members:
      ref: {target: shop#Missing}
`
	f := newFixture(t, shopConfig, dangling)

	_, stderr, err := f.run(t, "build", "--output", "markdown")
	require.ErrorIs(t, err, commands.ErrBuildFailed)
	assert.Contains(t, stderr, "Build failed")

	// Projections failing validation produce no artifacts.
	_, statErr := os.Stat(f.path("build", "source"))
	assert.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestBuild_UnknownProjection(t *testing.T) {
	f := newFixture(t, shopConfig, shopModel)
	_, _, err := f.run(t, "build", "--projection", "nope")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown projection(s) nope")
}

func TestBuild_FlagOverridesOutputDir(t *testing.T) {
	f := newFixture(t, shopConfig, shopModel)
	_, _, err := f.run(t, "build", "--output-dir", "dist", "--output", "json", "--concurrency", "1")
	require.NoError(t, err)
	assert.FileExists(t, f.path("dist", "public", "doc-gen", "docs.json"))
	assert.FileExists(t, f.path("dist", state.DefaultFileName))
}

func TestBuild_NoConfig(t *testing.T) {
	f := &fixture{dir: t.TempDir()}
	_, _, err := f.run(t, "build")
	assert.ErrorIs(t, err, config.ErrNoBuildConfig)
}

func TestPlan_ReportsEveryProblem(t *testing.T) {
	cfg := `sources: [model]
projections:
  - name: a
    transforms:
      - name: noSuchTransform
      - name: apply
        options: {projections: [b]}
  - name: b
    transforms:
      - name: anotherMissing
      - name: apply
        options: {projections: [a]}
`
	f := newFixture(t, cfg, shopModel)

	_, _, err := f.run(t, "plan")
	var pe *build.PlanningError
	require.ErrorAs(t, err, &pe)
	assert.GreaterOrEqual(t, len(pe.Problems), 3)
	msg := err.Error()
	assert.Contains(t, msg, "noSuchTransform")
	assert.Contains(t, msg, "anotherMissing")
}

func TestPlan_ShowsResolvedChains(t *testing.T) {
	f := newFixture(t, shopConfig, shopModel)
	stdout, _, err := f.run(t, "plan", "--output", "json")
	require.NoError(t, err)

	var plans []struct {
		Name       string `json:"name"`
		Transforms []struct {
			Name string `json:"name"`
		} `json:"transforms"`
		Plugins []string `json:"plugins"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &plans))
	require.Len(t, plans, 2)
	assert.Equal(t, "public", plans[1].Name)
	require.Len(t, plans[1].Transforms, 1)
	assert.Equal(t, "excludeShapesByTag", plans[1].Transforms[0].Name)
	assert.ElementsMatch(t, []string{"model", "doc-gen"}, plans[1].Plugins)
}

func TestValidate(t *testing.T) {
	f := newFixture(t, shopConfig, shopModel)

	stdout, _, err := f.run(t, "validate", "--output", "json")
	require.NoError(t, err)
	var rep struct {
		Valid  bool `json:"valid"`
		Events []struct {
			RuleID  string `json:"rule_id"`
			ShapeID string `json:"shape_id"`
		} `json:"events"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &rep))
	assert.True(t, rep.Valid)

	var scripted bool
	for _, e := range rep.Events {
		if e.RuleID == "no-audit-shapes" && e.ShapeID == "shop#Audit" {
			scripted = true
		}
	}
	assert.True(t, scripted, "script rule events are reported")
}

func TestValidate_ExplicitPathWithErrors(t *testing.T) {
	f := newFixture(t, shopConfig, shopModel)
	bad := f.path("bad.yaml")
	require.NoError(t, os.WriteFile(bad, []byte("shapes:\n  x#A:\n    type: structure\n    members:\n      b: {target: x#Gone}\n"), 0600))

	stdout, stderr, err := f.run(t, "validate", bad, "--output", "markdown")
	require.ErrorIs(t, err, commands.ErrValidationFailed)
	assert.Contains(t, stdout, "no-dangling-ref")
	assert.Contains(t, stderr, "Validation failed")
}

func TestList(t *testing.T) {
	f := newFixture(t, shopConfig, shopModel)

	stdout, _, err := f.run(t, "list", "rules", "--output", "markdown")
	require.NoError(t, err)
	assert.Contains(t, stdout, "no-dangling-ref")
	assert.Contains(t, stdout, "no-audit-shapes")
	assert.Contains(t, stdout, filepath.Join("rules", "no_audit.star"))

	stdout, _, err = f.run(t, "list", "transforms", "--output", "json")
	require.NoError(t, err)
	var transforms []struct {
		Name string `json:"name"`
	}
	require.NoError(t, json.Unmarshal([]byte(stdout), &transforms))
	var names []string
	for _, tr := range transforms {
		names = append(names, tr.Name)
	}
	assert.Contains(t, names, "excludeShapes")
	assert.Contains(t, names, "apply")

	stdout, _, err = f.run(t, "list", "plugins", "--output", "markdown")
	require.NoError(t, err)
	assert.Contains(t, stdout, "doc-gen")

	_, _, err = f.run(t, "list", "widgets")
	assert.Error(t, err)
}

func TestHistory_Empty(t *testing.T) {
	f := newFixture(t, shopConfig, shopModel)
	stdout, _, err := f.run(t, "history", "--output", "markdown")
	require.NoError(t, err)
	assert.Contains(t, stdout, "No builds recorded yet.")

	_, _, err = f.run(t, "history", "unknown-id")
	assert.ErrorIs(t, err, state.ErrBuildNotFound)
}

func TestVersionSkipsConfig(t *testing.T) {
	f := newFixture(t, "unknown_key: 1\n", shopModel)
	stdout, _, err := f.run(t, "version")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(stdout, "leapidl v"+Version))

	// Other commands surface the broken config.
	_, _, err = f.run(t, "plan")
	assert.ErrorContains(t, err, "unknown_key")
}

func TestCompletion(t *testing.T) {
	f := &fixture{dir: t.TempDir()}
	stdout, _, err := f.run(t, "completion", "bash")
	require.NoError(t, err)
	assert.Contains(t, stdout, "leapidl")
}
