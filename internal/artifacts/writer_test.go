package artifacts

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/leapstack-labs/leapidl/internal/testutil"
	"github.com/leapstack-labs/leapidl/pkg/core"
	"github.com/leapstack-labs/leapidl/pkg/plugin"
)

func readFile(t *testing.T, path string) string {
	t.Helper()
	b, err := os.ReadFile(path) //nolint:gosec // test path
	require.NoError(t, err)
	return string(b)
}

func TestWriter_Write(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root, testutil.NewTestLogger(t))

	result := &core.BuildResult{Projections: []core.ProjectionResult{
		{
			Name:   "public",
			Status: core.StatusSucceeded,
			Plugins: []core.PluginResult{
				{Plugin: "doc-gen", Artifacts: map[string][]byte{"docs.json": []byte(`{"A":{}}`)}},
				{Plugin: "model", Artifacts: map[string][]byte{"nested/model.json": []byte("{}")}},
			},
		},
		{Name: "broken", Status: core.StatusFailed, FailedAt: core.StatusValidated},
	}}

	written, err := w.Write(result)
	require.NoError(t, err)
	assert.Equal(t, []string{
		filepath.Join(root, "public", "doc-gen", "docs.json"),
		filepath.Join(root, "public", "model", "nested", "model.json"),
	}, written)
	assert.Equal(t, `{"A":{}}`, readFile(t, written[0]))

	_, err = os.Stat(filepath.Join(root, "broken"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestWriter_ReplacesStaleOutput(t *testing.T) {
	root := t.TempDir()
	w := NewWriter(root, nil)
	stale := filepath.Join(root, "public", "old-plugin", "gone.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(stale), 0750))
	require.NoError(t, os.WriteFile(stale, []byte("x"), 0600))
	keep := filepath.Join(root, "other", "p", "kept.txt")
	require.NoError(t, os.MkdirAll(filepath.Dir(keep), 0750))
	require.NoError(t, os.WriteFile(keep, []byte("x"), 0600))

	_, err := w.WriteProjection(&core.ProjectionResult{
		Name:    "public",
		Plugins: []core.PluginResult{{Plugin: "model", Artifacts: map[string][]byte{"model.json": []byte("{}")}}},
	})
	require.NoError(t, err)

	_, err = os.Stat(stale)
	assert.ErrorIs(t, err, os.ErrNotExist)
	assert.Equal(t, "x", readFile(t, keep))
	assert.Equal(t, "{}", readFile(t, filepath.Join(root, "public", "model", "model.json")))

	entries, err := os.ReadDir(filepath.Join(root, "public", "model"))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temporary files left behind")
}

func TestWriter_RejectsEscapingNames(t *testing.T) {
	w := NewWriter(t.TempDir(), nil)
	_, err := w.WriteProjection(&core.ProjectionResult{
		Name:    "p",
		Plugins: []core.PluginResult{{Plugin: "evil", Artifacts: map[string][]byte{"../../etc/passwd": nil}}},
	})
	assert.ErrorIs(t, err, plugin.ErrInvalidArtifactName)
}
