// Package loader reads models from JSON and YAML files.
//
// Several files may contribute to one model. A shape defined identically in
// two files is accepted once; differing definitions are a ConflictError.
// Metadata lists under the same key are concatenated in file order and any
// other differing metadata value is a conflict.
package loader

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"slices"
	"strings"

	"github.com/leapstack-labs/leapidl/pkg/core"
)

// Extensions are the model file extensions the loader reads from directories.
var Extensions = []string{".json", ".yaml", ".yml"}

// Loader reads model files from disk.
type Loader struct {
	logger *slog.Logger
}

// New creates a loader. A nil logger discards output.
func New(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{logger: logger}
}

// Expand resolves paths to model files. Directories are walked recursively
// and contribute files with a known extension in lexical order; explicit
// files are taken as given.
func Expand(paths ...string) ([]string, error) {
	var out []string
	seen := make(map[string]bool)
	add := func(p string) {
		if !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	for _, p := range paths {
		info, err := os.Stat(p)
		if err != nil {
			return nil, fmt.Errorf("model source %q: %w", p, err)
		}
		if !info.IsDir() {
			add(filepath.Clean(p))
			continue
		}
		var found []string
		err = filepath.WalkDir(p, func(path string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if d.IsDir() {
				if path != p && strings.HasPrefix(d.Name(), ".") {
					return filepath.SkipDir
				}
				return nil
			}
			if slices.Contains(Extensions, strings.ToLower(filepath.Ext(path))) {
				found = append(found, path)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walk %q: %w", p, err)
		}
		slices.Sort(found)
		for _, f := range found {
			add(f)
		}
	}
	return out, nil
}

// Load parses every model file under paths and merges them.
func (l *Loader) Load(paths ...string) (*core.Model, error) {
	files, err := Expand(paths...)
	if err != nil {
		return nil, err
	}
	parsed := make([]*File, 0, len(files))
	for _, path := range files {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read model file: %w", err)
		}
		f, err := Parse(path, data)
		if err != nil {
			return nil, err
		}
		l.logger.Debug("parsed model file", "file", path, "shapes", len(f.Shapes))
		parsed = append(parsed, f)
	}
	model, err := Merge(parsed...)
	if err != nil {
		return nil, err
	}
	l.logger.Info("loaded model", "files", len(files), "shapes", model.Len())
	return model, nil
}

// Merge combines parsed files into one model. Every conflict is reported.
func Merge(files ...*File) (*core.Model, error) {
	b := core.NewModelBuilder()
	shapeOrigin := make(map[core.ShapeID]string)
	metaOrigin := make(map[string]string)
	metadata := make(map[string]any)
	var errs []error

	for _, f := range files {
		for _, shape := range f.Shapes {
			prev, ok := b.Shape(shape.ID)
			if !ok {
				b.AddShape(shape)
				shapeOrigin[shape.ID] = f.Path
				continue
			}
			if !reflect.DeepEqual(prev.Clone(), shape.Clone()) {
				errs = append(errs, &ConflictError{Shape: shape.ID, Files: []string{shapeOrigin[shape.ID], f.Path}})
			}
		}

		for _, key := range sortedKeys(f.Metadata) {
			value := f.Metadata[key]
			prev, ok := metadata[key]
			if !ok {
				metadata[key] = value
				metaOrigin[key] = f.Path
				continue
			}
			prevList, prevIsList := prev.([]any)
			list, isList := value.([]any)
			switch {
			case prevIsList && isList:
				metadata[key] = append(slices.Clone(prevList), list...)
			case reflect.DeepEqual(prev, value):
			default:
				errs = append(errs, &ConflictError{Key: key, Files: []string{metaOrigin[key], f.Path}})
			}
		}
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	for key, value := range metadata {
		b.SetMetadata(key, value)
	}
	return b.Build(), nil
}

func sortedKeys(m map[string]any) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	return keys
}
