// Package config resolves the settings of a leapidl invocation.
//
// Values are layered with koanf, lowest to highest precedence: built-in
// defaults, the build configuration file, LEAPIDL_ environment variables and
// explicitly set flags. The effective execution settings are written back
// onto the loaded BuildConfig so the orchestrator sees one source of truth.
package config

import (
	"time"

	buildcfg "github.com/leapstack-labs/leapidl/internal/config"
)

// Config holds the resolved CLI settings.
type Config struct {
	// ConfigFile is the build configuration file, if one was found.
	ConfigFile string `koanf:"config"`

	Output        string        `koanf:"output"`
	Verbose       bool          `koanf:"verbose"`
	OutputDir     string        `koanf:"output_dir"`
	Concurrency   int           `koanf:"concurrency"`
	PluginTimeout time.Duration `koanf:"plugin_timeout"`
	FailFast      bool          `koanf:"fail_fast"`

	// History is the build history database. Empty means
	// <output_dir>/.leapidl-history.db.
	History   string `koanf:"history"`
	NoHistory bool   `koanf:"no_history"`

	// ProjectRoot is the directory holding the build configuration file, or
	// the working directory when there is none.
	ProjectRoot string `koanf:"-"`

	// Build is the loaded build configuration, nil when no file was found.
	Build *buildcfg.BuildConfig `koanf:"-"`
}

// Default CLI values.
const (
	EnvPrefix            = "LEAPIDL_"
	DefaultOutput        = "auto" // text on a terminal, markdown otherwise
	DefaultPluginTimeout = 5 * time.Minute
)
