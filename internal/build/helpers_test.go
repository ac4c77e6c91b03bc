package build

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapidl/internal/testutil"
	"github.com/leapstack-labs/leapidl/pkg/core"
	"github.com/leapstack-labs/leapidl/pkg/plugin"
	"github.com/leapstack-labs/leapidl/pkg/plugin/builtin"
	"github.com/leapstack-labs/leapidl/pkg/transform"
	"github.com/leapstack-labs/leapidl/pkg/validate"
	"github.com/leapstack-labs/leapidl/pkg/validate/rules"
)

var errAlwaysFails = errors.New("configured to fail")

// testPlugins returns the built-in plugins plus a few misbehaving ones.
func testPlugins(t *testing.T) *plugin.Registry {
	t.Helper()
	reg := plugin.NewRegistry()
	require.NoError(t, builtin.RegisterBuiltins(reg))

	extra := []plugin.Plugin{
		plugin.Func("always-fails", "returns an error", func(context.Context, *plugin.Context) error {
			return errAlwaysFails
		}),
		plugin.Func("writes-then-fails", "writes an artifact then fails", func(_ context.Context, pctx *plugin.Context) error {
			_ = pctx.Sink.WriteString("partial.txt", "partial")
			return errAlwaysFails
		}),
		plugin.Func("panics", "panics", func(context.Context, *plugin.Context) error {
			panic("generator exploded")
		}),
		plugin.Func("bad-name", "writes an invalid artifact name", func(_ context.Context, pctx *plugin.Context) error {
			return pctx.Sink.WriteString("../outside.txt", "x")
		}),
		plugin.Func("ignores-bad-write", "drops a rejected write and succeeds", func(_ context.Context, pctx *plugin.Context) error {
			_ = pctx.Sink.WriteString("../escape.txt", "x")
			return pctx.Sink.WriteString("ok.txt", "ok")
		}),
		plugin.Func("ignores-duplicate", "writes one name twice and succeeds", func(_ context.Context, pctx *plugin.Context) error {
			_ = pctx.Sink.WriteString("dup.txt", "first")
			_ = pctx.Sink.WriteString("dup.txt", "second")
			return nil
		}),
		plugin.Func("slow", "blocks until cancelled", func(ctx context.Context, _ *plugin.Context) error {
			<-ctx.Done()
			time.Sleep(10 * time.Millisecond)
			return ctx.Err()
		}),
		plugin.Func("mutates-options", "mutates its options", func(_ context.Context, pctx *plugin.Context) error {
			pctx.Options["touched"] = true
			if nested, ok := pctx.Options["nested"].(map[string]any); ok {
				nested["touched"] = true
			}
			return pctx.Sink.WriteJSON("options.json", pctx.Options)
		}),
		plugin.Func("logs", "logs and writes", func(_ context.Context, pctx *plugin.Context) error {
			pctx.Logger.Info("generating", "shapes", pctx.Model.Len())
			return pctx.Sink.WriteString("out.txt", pctx.Projection)
		}),
	}
	for _, p := range extra {
		require.NoError(t, reg.Register(p))
	}
	return reg
}

func testTransforms(t *testing.T) *transform.Registry {
	t.Helper()
	reg := transform.NewRegistry()
	require.NoError(t, transform.RegisterBuiltins(reg))
	return reg
}

// danglingOnly validates with just no-dangling-ref.
func danglingOnly(t *testing.T) *validate.Engine {
	t.Helper()
	reg := validate.NewRegistry()
	require.NoError(t, reg.Register(validate.WrapRuleDef(rules.NoDanglingRef)))
	return validate.NewEngine(reg, nil)
}

func newTestOrchestrator(t *testing.T, mutate func(*Config)) *Orchestrator {
	t.Helper()
	cfg := Config{
		Transforms: testTransforms(t),
		Plugins:    testPlugins(t),
		Validator:  danglingOnly(t),
		Logger:     testutil.NewTestLogger(t),
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return New(cfg)
}

// abcModel has shapes A, B and C where A references B and C.
func abcModel() *core.Model {
	return core.NewModelBuilder().
		AddShape(core.Shape{ID: "ex#A", Type: core.ShapeTypeStructure, Members: []core.Member{
			{Name: "b", Target: "ex#B"},
			{Name: "c", Target: "ex#C"},
		}}).
		AddShape(core.Shape{ID: "ex#B", Type: core.ShapeTypeStructure, Tags: []string{"public"}}).
		AddShape(core.Shape{ID: "ex#C", Type: core.ShapeTypeStructure, Tags: []string{"internal"}}).
		Build()
}

func excludeC() core.TransformSpec {
	return core.TransformSpec{Name: "excludeShapes", Options: map[string]any{"shapes": []any{"ex#C"}}}
}

func applyOf(names ...string) core.TransformSpec {
	list := make([]any, len(names))
	for i, n := range names {
		list[i] = n
	}
	return core.TransformSpec{Name: core.ApplyTransform, Options: map[string]any{"projections": list}}
}

func pluginSpecs(names ...string) []core.PluginSpec {
	out := make([]core.PluginSpec, len(names))
	for i, n := range names {
		out[i] = core.PluginSpec{Name: n}
	}
	return out
}
