// Package artifacts materializes build results on disk as
// <output>/<projection>/<plugin>/<artifact>.
package artifacts

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"

	"github.com/leapstack-labs/leapidl/pkg/core"
	"github.com/leapstack-labs/leapidl/pkg/plugin"
)

// Writer writes projection artifacts below a root directory.
type Writer struct {
	root   string
	logger *slog.Logger
}

// NewWriter creates a writer rooted at dir. A nil logger discards output.
func NewWriter(dir string, logger *slog.Logger) *Writer {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Writer{root: dir, logger: logger}
}

// Root returns the output directory.
func (w *Writer) Root() string { return w.root }

// ProjectionDir returns the directory of a projection's artifacts.
func (w *Writer) ProjectionDir(projection string) string {
	return filepath.Join(w.root, projection)
}

// Write replaces the output of every projection in result and returns the
// written paths in sorted order. Projections that never reached plugin
// execution keep their previous output.
func (w *Writer) Write(result *core.BuildResult) ([]string, error) {
	var written []string
	for i := range result.Projections {
		p := &result.Projections[i]
		if len(p.Plugins) == 0 {
			continue
		}
		paths, err := w.WriteProjection(p)
		if err != nil {
			return written, err
		}
		written = append(written, paths...)
	}
	slices.Sort(written)
	return written, nil
}

// WriteProjection clears the projection directory and writes its artifacts.
func (w *Writer) WriteProjection(p *core.ProjectionResult) ([]string, error) {
	dir := w.ProjectionDir(p.Name)
	if err := os.RemoveAll(dir); err != nil {
		return nil, fmt.Errorf("failed to clear %s: %w", dir, err)
	}

	var written []string
	for _, pr := range p.Plugins {
		for _, name := range pr.ArtifactNames() {
			// Names were validated by the sink; check again since results
			// can be constructed by hand.
			if err := plugin.ValidateArtifactName(name); err != nil {
				return written, fmt.Errorf("projection %s plugin %s: %w", p.Name, pr.Plugin, err)
			}
			path := filepath.Join(dir, pr.Plugin, filepath.FromSlash(name))
			if err := writeFile(path, pr.Artifacts[name]); err != nil {
				return written, err
			}
			written = append(written, path)
		}
	}
	w.logger.Debug("wrote artifacts", slog.String("projection", p.Name), slog.Int("files", len(written)))
	return written, nil
}

// writeFile writes through a temporary file so readers never see a partial
// artifact.
func writeFile(path string, data []byte) error {
	if err := os.MkdirAll(filepath.Dir(path), 0750); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	tmp, err := os.CreateTemp(filepath.Dir(path), ".tmp-"+filepath.Base(path)+"-*")
	if err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	return nil
}
