package starlark

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/bmatcuk/doublestar/v4"
	"go.starlark.net/starlark"
	"go.starlark.net/syntax"

	"github.com/leapstack-labs/leapidl/pkg/core"
	"github.com/leapstack-labs/leapidl/pkg/validate"
)

// LoadError is returned when a rule file cannot be loaded.
type LoadError struct {
	File    string
	Message string
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s: %s", e.File, e.Message)
}

// Loader compiles rule files.
type Loader struct {
	maxSteps uint64
	logger   *slog.Logger
}

// NewLoader creates a loader. A nil logger discards script output.
func NewLoader(logger *slog.Logger) *Loader {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Loader{maxSteps: DefaultMaxSteps, logger: logger}
}

// WithMaxSteps limits the execution steps of each validate call.
// Zero means unlimited.
func (l *Loader) WithMaxSteps(n uint64) *Loader {
	clone := *l
	clone.maxSteps = n
	return &clone
}

// Load compiles every rule matched by patterns. A pattern is a file, a
// directory (all *.star files below it) or a doublestar glob.
func (l *Loader) Load(patterns ...string) ([]*ScriptRule, error) {
	files, err := expand(patterns)
	if err != nil {
		return nil, err
	}

	var (
		rules []*ScriptRule
		errs  []error
		seen  = make(map[string]string)
	)
	for _, f := range files {
		rule, err := l.LoadFile(f)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		if prev, dup := seen[rule.id]; dup {
			errs = append(errs, &LoadError{File: f, Message: fmt.Sprintf("rule %q already defined in %s", rule.id, prev)})
			continue
		}
		seen[rule.id] = f
		rules = append(rules, rule)
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return rules, nil
}

// LoadFile compiles a single rule file.
func (l *Loader) LoadFile(path string) (*ScriptRule, error) {
	content, err := os.ReadFile(path) //nolint:gosec // G304: rule paths come from the build config
	if err != nil {
		return nil, &LoadError{File: path, Message: fmt.Sprintf("failed to read file: %v", err)}
	}
	return l.compile(path, content)
}

func (l *Loader) compile(path string, content []byte) (*ScriptRule, error) {
	thread := newThread("load:"+filepath.Base(path), l.maxSteps, l.logger)
	globals, err := starlark.ExecFileOptions(&syntax.FileOptions{}, thread, path, content, Predeclared())
	if err != nil {
		return nil, &LoadError{File: path, Message: fmt.Sprintf("Starlark execution error: %v", err)}
	}

	fn, ok := globals["validate"].(starlark.Callable)
	if !ok {
		return nil, &LoadError{File: path, Message: "missing validate(model, options) function"}
	}

	rule := &ScriptRule{
		id:       strings.TrimSuffix(filepath.Base(path), filepath.Ext(path)),
		severity: core.SeverityWarning,
		path:     path,
		fn:       fn,
		maxSteps: l.maxSteps,
		logger:   l.logger,
	}
	id, err := stringGlobal(globals, "ID")
	if err != nil {
		return nil, &LoadError{File: path, Message: err.Error()}
	}
	if id != "" {
		rule.id = id
	}
	if rule.description, err = stringGlobal(globals, "DESCRIPTION"); err != nil {
		return nil, &LoadError{File: path, Message: err.Error()}
	}
	severity, err := stringGlobal(globals, "SEVERITY")
	if err != nil {
		return nil, &LoadError{File: path, Message: err.Error()}
	}
	if severity != "" {
		if rule.severity, err = parseScriptSeverity(severity); err != nil {
			return nil, &LoadError{File: path, Message: err.Error()}
		}
	}
	if rule.description == "" {
		rule.description = "Script rule " + filepath.Base(path)
	}
	return rule, nil
}

func stringGlobal(globals starlark.StringDict, name string) (string, error) {
	v, ok := globals[name]
	if !ok || v == starlark.None {
		return "", nil
	}
	s, ok := v.(starlark.String)
	if !ok {
		return "", fmt.Errorf("%s must be a string, got %s", name, v.Type())
	}
	return string(s), nil
}

func expand(patterns []string) ([]string, error) {
	var files []string
	for _, p := range patterns {
		if info, err := os.Stat(p); err == nil {
			if !info.IsDir() {
				files = append(files, p)
				continue
			}
			matches, err := doublestar.FilepathGlob(filepath.Join(p, "**", "*.star"))
			if err != nil {
				return nil, fmt.Errorf("failed to scan %s: %w", p, err)
			}
			files = append(files, matches...)
			continue
		}
		if !doublestar.ValidatePattern(filepath.ToSlash(p)) {
			return nil, &LoadError{File: p, Message: "invalid glob pattern"}
		}
		matches, err := doublestar.FilepathGlob(p)
		if err != nil {
			return nil, fmt.Errorf("failed to expand %s: %w", p, err)
		}
		if len(matches) == 0 {
			return nil, &LoadError{File: p, Message: "no rule files found"}
		}
		files = append(files, matches...)
	}
	slices.Sort(files)
	return slices.Compact(files), nil
}

// Register loads the rules matched by patterns into registry.
func Register(registry *validate.Registry, logger *slog.Logger, patterns ...string) ([]*ScriptRule, error) {
	rules, err := NewLoader(logger).Load(patterns...)
	if err != nil {
		return nil, err
	}
	for _, r := range rules {
		if err := registry.Register(r); err != nil {
			return nil, &LoadError{File: r.path, Message: err.Error()}
		}
	}
	return rules, nil
}
