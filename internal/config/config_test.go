package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapidl/pkg/core"
)

const sampleConfig = `
version: "1.0"
sources: [model, extra/common.yaml]
output_dir: out
plugins:
  - name: build-info
  - name: model
projections:
  - name: internal-free
    abstract: true
    transforms:
      - name: excludeShapesByTag
        options:
          tags: [internal]
  - name: public
    transforms:
      - name: apply
        options:
          projections: [internal-free]
    plugins:
      - name: doc-gen
        options:
          output: api.json
      - name: model
        options:
          pretty: false
suppressions:
  - id: shape-naming
    shapes: ["legacy.*#*"]
    reason: generated
validation:
  disabled: [unreferenced-shape]
  severity:
    missing-documentation: warning
  rules:
    no-dangling-ref:
      ignore_namespaces: [aws.api]
  scripts: [rules/naming.star]
concurrency: 2
plugin_timeout: 90s
fail_fast: true
`

func writeConfig(t *testing.T, name, content string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, "leapidl-build.yaml", sampleConfig)
	dir := filepath.Dir(path)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, path, cfg.Path())
	assert.Equal(t, []string{filepath.Join(dir, "model"), filepath.Join(dir, "extra", "common.yaml")}, cfg.Sources)
	assert.Equal(t, filepath.Join(dir, "out"), cfg.OutputDir)
	assert.Equal(t, 2, cfg.Concurrency)
	assert.Equal(t, 90*time.Second, cfg.PluginTimeout)
	assert.True(t, cfg.FailFast)
	require.Len(t, cfg.Projections, 2)
	assert.True(t, cfg.Projections[0].Abstract)
	assert.Equal(t, []string{"internal-free"}, core.ApplyOf(cfg.Projections[1].Transforms[0]))
	require.Len(t, cfg.Suppressions, 1)
	assert.Equal(t, []string{"legacy.*#*"}, cfg.Suppressions[0].Shapes)
	assert.Equal(t, []string{filepath.Join(dir, "rules", "naming.star")}, cfg.Validation.Scripts)

	vc, err := cfg.ValidateConfig()
	require.NoError(t, err)
	assert.True(t, vc.IsDisabled("unreferenced-shape"))
	assert.Equal(t, core.SeverityWarning, vc.GetSeverity("missing-documentation", core.SeverityNote))
	assert.Equal(t, []any{"aws.api"}, vc.GetRuleOptions("no-dangling-ref")["ignore_namespaces"])
}

func TestResolvedProjections(t *testing.T) {
	path := writeConfig(t, "leapidl-build.yaml", sampleConfig)
	cfg, err := Load(path)
	require.NoError(t, err)

	projections := cfg.ResolvedProjections()
	require.Len(t, projections, 3)

	source := projections[0]
	assert.Equal(t, SourceProjectionName, source.Name)
	assert.Empty(t, source.Transforms)
	assert.Equal(t, []core.PluginSpec{{Name: "build-info"}, {Name: "model"}}, source.Plugins)

	assert.Empty(t, projections[1].Plugins, "abstract projections get no global plugins")

	public := projections[2]
	require.Len(t, public.Plugins, 3)
	assert.Equal(t, "doc-gen", public.Plugins[0].Name)
	assert.Equal(t, "model", public.Plugins[1].Name)
	assert.Equal(t, false, public.Plugins[1].Options["pretty"], "projection options win over the global spec")
	assert.Equal(t, "build-info", public.Plugins[2].Name)
}

func TestResolvedProjections_SourceProjection(t *testing.T) {
	off := false
	tests := []struct {
		name string
		cfg  BuildConfig
		want []string
	}{
		{name: "default adds source", cfg: BuildConfig{Projections: []core.ProjectionConfig{{Name: "a"}}}, want: []string{"source", "a"}},
		{name: "disabled", cfg: BuildConfig{SourceProjection: &off, Projections: []core.ProjectionConfig{{Name: "a"}}}, want: []string{"a"}},
		{name: "declared source kept in place", cfg: BuildConfig{Projections: []core.ProjectionConfig{{Name: "a"}, {Name: "source"}}}, want: []string{"a", "source"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var names []string
			for _, p := range tt.cfg.ResolvedProjections() {
				names = append(names, p.Name)
			}
			assert.Equal(t, tt.want, names)
		})
	}
}

func TestResolvedProjections_DoesNotAlias(t *testing.T) {
	cfg := BuildConfig{
		Plugins:     []core.PluginSpec{{Name: "doc-gen", Options: map[string]any{"output": "a.json"}}},
		Projections: []core.ProjectionConfig{{Name: "a"}, {Name: "b"}},
	}
	projections := cfg.ResolvedProjections()
	projections[1].Plugins[0].Options["output"] = "changed.json"

	assert.Equal(t, "a.json", projections[2].Plugins[0].Options["output"])
	assert.Equal(t, "a.json", cfg.Plugins[0].Options["output"])
	assert.Empty(t, cfg.Projections[0].Plugins)
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, "leapidl-build.yml", "projections: []\n")
	cfg, err := Load(path)
	require.NoError(t, err)
	dir := filepath.Dir(path)
	assert.Equal(t, DefaultVersion, cfg.Version)
	assert.Equal(t, []string{filepath.Join(dir, DefaultSourcesDir)}, cfg.Sources)
	assert.Equal(t, filepath.Join(dir, DefaultOutputDir), cfg.OutputDir)
	assert.True(t, cfg.SourceProjectionEnabled())
}

func TestLoad_JSON(t *testing.T) {
	path := writeConfig(t, "leapidl-build.json", `{"version": "1.0", "projections": [{"name": "a", "plugins": [{"name": "model"}]}]}`)
	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Projections, 1)
	assert.Equal(t, "model", cfg.Projections[0].Plugins[0].Name)
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    string
	}{
		{name: "unknown key", content: "projectionz: []\n", want: `unknown key "projectionz"`},
		{name: "bad version", content: "version: \"2.0\"\n", want: "unsupported version"},
		{name: "negative concurrency", content: "concurrency: -1\n", want: "concurrency"},
		{name: "bad severity", content: "validation:\n  severity:\n    x: fatal\n", want: "invalid severity"},
		{name: "suppression without id", content: "suppressions:\n  - reason: x\n", want: "suppressions"},
		{name: "unnamed projection", content: "projections:\n  - abstract: true\n", want: "projections[0]: name is required"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Load(writeConfig(t, "leapidl-build.yaml", tt.content))
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestLoadFromDir(t *testing.T) {
	dir := t.TempDir()
	cfg, err := LoadFromDir(dir)
	require.NoError(t, err)
	assert.Nil(t, cfg)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "leapidl-build.yaml"), []byte("version: \"1.0\"\n"), 0o644))
	nested := filepath.Join(dir, "a", "b")
	require.NoError(t, os.MkdirAll(nested, 0o755))
	assert.Equal(t, dir, FindProjectRoot(nested))

	cfg, err = LoadFromDir(dir)
	require.NoError(t, err)
	require.NotNil(t, cfg)
}
