package config

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// FileNames are the build configuration file names, in lookup order.
// JSON is read through the YAML parser.
var FileNames = []string{"leapidl-build.yaml", "leapidl-build.yml", "leapidl-build.json"}

var knownKeys = map[string]bool{
	"version": true, "sources": true, "output_dir": true, "plugins": true,
	"projections": true, "source_projection": true, "suppressions": true,
	"validation": true, "concurrency": true, "plugin_timeout": true, "fail_fast": true,
}

// Load reads, defaults and validates a build configuration file. Relative
// paths in the file are resolved against the file's directory.
func Load(path string) (*BuildConfig, error) {
	k := koanf.New(".")
	if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	for key := range k.Raw() {
		if !knownKeys[key] {
			return nil, fmt.Errorf("%s: unknown key %q", path, key)
		}
	}

	var cfg BuildConfig
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("parse %s: %w", path, err)
	}
	cfg.path = path
	cfg.ApplyDefaults()
	cfg.ResolvePaths(filepath.Dir(path))
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid build config %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadFromDir loads the build configuration found in dir.
// Returns nil, nil if no config file is found (not an error condition).
func LoadFromDir(dir string) (*BuildConfig, error) {
	path := findConfigFile(dir)
	if path == "" {
		return nil, nil
	}
	return Load(path)
}

// findConfigFile returns the first build configuration file in dir, or "".
func findConfigFile(dir string) string {
	for _, name := range FileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// FindProjectRoot walks up from startDir to the first directory containing a
// build configuration file. Returns "" if not found.
func FindProjectRoot(startDir string) string {
	dir := startDir
	for {
		if findConfigFile(dir) != "" {
			return dir
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}
