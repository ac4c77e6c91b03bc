package config

import (
	"errors"
	"fmt"

	"github.com/leapstack-labs/leapidl/internal/cli/output"
)

// ErrNoBuildConfig is returned by commands that need a build configuration
// file when none was found.
var ErrNoBuildConfig = errors.New("no build configuration found")

// Validate checks the resolved values.
func (c *Config) Validate() error {
	var errs []error
	if _, err := output.ParseMode(c.Output); err != nil {
		errs = append(errs, err)
	}
	if c.Concurrency < 0 {
		errs = append(errs, fmt.Errorf("concurrency: must not be negative, got %d", c.Concurrency))
	}
	if c.PluginTimeout < 0 {
		errs = append(errs, fmt.Errorf("plugin_timeout: must not be negative, got %s", c.PluginTimeout))
	}
	if c.OutputDir == "" {
		errs = append(errs, errors.New("output_dir is required"))
	}
	return errors.Join(errs...)
}

// RequireBuild returns an error with a hint when no build file was loaded.
func (c *Config) RequireBuild() error {
	if c.Build != nil {
		return nil
	}
	return fmt.Errorf("%w in %s or its parents\nHint: create leapidl-build.yaml or pass --config", ErrNoBuildConfig, c.ProjectRoot)
}
