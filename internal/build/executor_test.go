package build

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapidl/internal/testutil"
	"github.com/leapstack-labs/leapidl/pkg/core"
	"github.com/leapstack-labs/leapidl/pkg/plugin"
)

func invocations(t *testing.T, reg *plugin.Registry, names ...string) []PluginInvocation {
	t.Helper()
	out := make([]PluginInvocation, len(names))
	for i, name := range names {
		p, err := reg.Get(name)
		require.NoError(t, err)
		out[i] = PluginInvocation{Plugin: p}
	}
	return out
}

func TestExecutor_FailingPluginDoesNotAffectSiblings(t *testing.T) {
	for _, concurrency := range []int{1, 4} {
		exec := NewExecutor(ExecutorConfig{Concurrency: concurrency, Logger: testutil.NewTestLogger(t)})
		plugins := invocations(t, testPlugins(t), "model", "writes-then-fails", "panics", "bad-name", "doc-gen")

		out := exec.Execute(context.Background(), "p", plugins, abcModel(), nil)

		require.Len(t, out.Results, 5)
		for i, want := range []string{"model", "writes-then-fails", "panics", "bad-name", "doc-gen"} {
			assert.Equal(t, want, out.Results[i].Plugin)
		}
		assert.Equal(t, []string{core.ArtifactKey("doc-gen", "docs.json"), core.ArtifactKey("model", "model.json")},
			sortedKeys(out.Artifacts))

		require.Len(t, out.Errors, 3)
		assert.Equal(t, "writes-then-fails", out.Errors[0].Plugin)
		assert.ErrorIs(t, out.Errors[0], errAlwaysFails)
		assert.Contains(t, out.Errors[1].Error(), "plugin panicked: generator exploded")
		assert.ErrorIs(t, out.Errors[2], plugin.ErrInvalidArtifactName)

		assert.Nil(t, out.Results[1].Artifacts, "failed plugin keeps no artifacts")
	}
}

func TestExecutor_IgnoredRejectedWritesFailThePlugin(t *testing.T) {
	exec := NewExecutor(ExecutorConfig{Logger: testutil.NewTestLogger(t)})
	out := exec.Execute(context.Background(), "p",
		invocations(t, testPlugins(t), "ignores-bad-write", "ignores-duplicate", "model"), abcModel(), nil)

	require.Len(t, out.Errors, 2)
	assert.Equal(t, "ignores-bad-write", out.Errors[0].Plugin)
	assert.ErrorIs(t, out.Errors[0], plugin.ErrInvalidArtifactName)
	assert.Equal(t, "ignores-duplicate", out.Errors[1].Plugin)
	assert.ErrorIs(t, out.Errors[1], plugin.ErrDuplicateArtifact)

	assert.Nil(t, out.Results[0].Artifacts, "ok.txt is dropped with the failed plugin")
	assert.Equal(t, []string{core.ArtifactKey("model", "model.json")}, sortedKeys(out.Artifacts))
}

func TestExecutor_ReturnedRejectionIsReportedOnce(t *testing.T) {
	exec := NewExecutor(ExecutorConfig{})
	out := exec.Execute(context.Background(), "p", invocations(t, testPlugins(t), "bad-name"), abcModel(), nil)

	require.Len(t, out.Errors, 1)
	assert.Equal(t, 1, strings.Count(out.Errors[0].Error(), "escapes the output directory"))
}

func TestExecutor_Timeout(t *testing.T) {
	exec := NewExecutor(ExecutorConfig{Timeout: 20 * time.Millisecond})
	out := exec.Execute(context.Background(), "p", invocations(t, testPlugins(t), "slow", "model"), abcModel(), nil)

	require.Len(t, out.Errors, 1)
	assert.Equal(t, "slow", out.Errors[0].Plugin)
	assert.ErrorIs(t, out.Errors[0], ErrPluginTimeout)
	_, ok := out.Artifacts[core.ArtifactKey("model", "model.json")]
	assert.True(t, ok)
}

func TestExecutor_LateWritesAreRejected(t *testing.T) {
	release := make(chan struct{})
	written := make(chan error, 1)
	reg := plugin.NewRegistry()
	var captured *plugin.Context
	require.NoError(t, reg.Register(plugin.Func("late-writer", "writes after the deadline", func(_ context.Context, pctx *plugin.Context) error {
		captured = pctx
		<-release
		written <- pctx.Sink.WriteString("late.txt", "too late")
		return nil
	})))

	exec := NewExecutor(ExecutorConfig{Timeout: 10 * time.Millisecond})
	out := exec.Execute(context.Background(), "p", invocations(t, reg, "late-writer"), abcModel(), nil)
	require.Len(t, out.Errors, 1)
	assert.ErrorIs(t, out.Errors[0], ErrPluginTimeout)

	close(release)
	select {
	case err := <-written:
		assert.ErrorIs(t, err, plugin.ErrSinkSealed)
	case <-time.After(time.Second):
		t.Fatal("abandoned plugin never returned")
	}
	assert.True(t, captured.Sink.Sealed())
	assert.Empty(t, out.Artifacts)
}

func TestExecutor_OptionsAreCopiedPerInvocation(t *testing.T) {
	reg := testPlugins(t)
	p, err := reg.Get("mutates-options")
	require.NoError(t, err)
	nested := map[string]any{"depth": 1}
	opts := plugin.Options{"nested": nested}

	exec := NewExecutor(ExecutorConfig{})
	out := exec.Execute(context.Background(), "p", []PluginInvocation{{Plugin: p, Options: opts}}, abcModel(), nil)
	require.Empty(t, out.Errors)

	assert.NotContains(t, opts, "touched")
	assert.NotContains(t, nested, "touched")

	var written map[string]any
	require.NoError(t, json.Unmarshal(out.Artifacts[core.ArtifactKey("mutates-options", "options.json")], &written))
	assert.Equal(t, true, written["touched"])
}

func TestExecutor_CapturesPluginLogs(t *testing.T) {
	logger, buf := testutil.NewBufferLogger(slog.LevelInfo)
	exec := NewExecutor(ExecutorConfig{Logger: logger})
	out := exec.Execute(context.Background(), "proj", invocations(t, testPlugins(t), "logs"), abcModel(), nil)
	require.Empty(t, out.Errors)

	require.Len(t, out.Results[0].Log, 1)
	entry := out.Results[0].Log[0]
	assert.Equal(t, "INFO", entry.Level)
	assert.Equal(t, "generating", entry.Message)
	assert.EqualValues(t, 3, entry.Attrs["shapes"])
	assert.Contains(t, buf.String(), "plugin=logs")
	assert.Equal(t, []byte("proj"), out.Artifacts[core.ArtifactKey("logs", "out.txt")])
}

func TestExecutor_CancelledContextStartsNothing(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	exec := NewExecutor(ExecutorConfig{})
	out := exec.Execute(ctx, "p", invocations(t, testPlugins(t), "model", "doc-gen"), abcModel(), nil)
	require.Len(t, out.Errors, 2)
	assert.ErrorIs(t, out.Errors[0], context.Canceled)
	assert.Empty(t, out.Artifacts)
}

func sortedKeys(m map[string][]byte) []string {
	r := core.ProjectionResult{Artifacts: m}
	return r.ArtifactKeys()
}
