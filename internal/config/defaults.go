package config

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/leapstack-labs/leapidl/pkg/validate"
)

// Default configuration values.
const (
	DefaultVersion       = "1.0"
	DefaultSourcesDir    = "model"
	DefaultOutputDir     = "build"
	SourceProjectionName = "source"
)

// ApplyDefaults fills unset fields.
func (c *BuildConfig) ApplyDefaults() {
	if c.Version == "" {
		c.Version = DefaultVersion
	}
	if len(c.Sources) == 0 {
		c.Sources = []string{DefaultSourcesDir}
	}
	if c.OutputDir == "" {
		c.OutputDir = DefaultOutputDir
	}
}

// Validate checks the configuration for errors that do not need the
// registries. Transform and plugin names are checked when planning.
func (c *BuildConfig) Validate() error {
	var errs []error
	if c.Version != DefaultVersion && c.Version != "1" {
		errs = append(errs, fmt.Errorf("unsupported version %q (expected %q)", c.Version, DefaultVersion))
	}
	if len(c.Sources) == 0 {
		errs = append(errs, errors.New("sources: at least one model source is required"))
	}
	if c.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency: must not be negative, got %d", c.Concurrency))
	}
	if c.PluginTimeout < 0 {
		errs = append(errs, fmt.Errorf("plugin_timeout: must not be negative, got %s", c.PluginTimeout))
	}
	for i, p := range c.Plugins {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("plugins[%d]: name is required", i))
		}
	}
	for i, p := range c.Projections {
		if p.Name == "" {
			errs = append(errs, fmt.Errorf("projections[%d]: name is required", i))
		}
	}
	if err := validate.ValidateSuppressions(c.Suppressions); err != nil {
		errs = append(errs, fmt.Errorf("suppressions: %w", err))
	}
	if _, err := c.ValidateConfig(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// ResolvePaths makes relative sources, scripts and the output directory
// relative to baseDir.
func (c *BuildConfig) ResolvePaths(baseDir string) {
	resolve := func(p string) string {
		if p == "" || filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(baseDir, p)
	}
	for i, s := range c.Sources {
		c.Sources[i] = resolve(s)
	}
	c.OutputDir = resolve(c.OutputDir)
	if c.Validation != nil {
		for i, s := range c.Validation.Scripts {
			c.Validation.Scripts[i] = resolve(s)
		}
	}
}
