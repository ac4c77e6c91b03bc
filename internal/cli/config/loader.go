package config

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/spf13/pflag"

	buildcfg "github.com/leapstack-labs/leapidl/internal/config"
	"github.com/leapstack-labs/leapidl/internal/state"
)

// loggerKey stores the command logger in a context.
type loggerKey struct{}

// configKey stores the resolved configuration in a context.
type configKey struct{}

// Load resolves the CLI configuration. cfgFile is an explicit build
// configuration path; when empty the file is searched upward from the
// working directory. A missing file is not an error: Build stays nil.
func Load(cfgFile string, flags *pflag.FlagSet) (*Config, error) {
	cwd, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("failed to get working directory: %w", err)
	}

	build, root, err := loadBuildConfig(cfgFile, cwd)
	if err != nil {
		return nil, err
	}

	k := koanf.New(".")

	// 1. Defaults
	if err := k.Load(confmap.Provider(map[string]any{
		"output":         DefaultOutput,
		"verbose":        false,
		"output_dir":     buildcfg.DefaultOutputDir,
		"concurrency":    0,
		"plugin_timeout": DefaultPluginTimeout.String(),
		"fail_fast":      false,
		"no_history":     false,
	}, "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	// 2. Build configuration file
	if build != nil {
		if err := k.Load(confmap.Provider(fileValues(build), "."), nil); err != nil {
			return nil, fmt.Errorf("failed to load %s: %w", build.Path(), err)
		}
	}

	// 3. Environment: LEAPIDL_OUTPUT_DIR -> output_dir
	if err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	}), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	// 4. Flags that were explicitly set
	var flagOutputDir, flagHistory string
	if flags != nil {
		flagOutputDir = absFlag(flags, "output-dir")
		flagHistory = absFlag(flags, "history")
		if err := k.Load(posflag.ProviderWithFlag(flags, ".", k, func(f *pflag.Flag) (string, any) {
			if !f.Changed || f.Name == "config" {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(flags, f)
		}), nil); err != nil {
			return nil, fmt.Errorf("failed to load flags: %w", err)
		}
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("unable to decode config: %w", err)
	}
	cfg.ProjectRoot = root
	cfg.Build = build
	if build != nil {
		cfg.ConfigFile = build.Path()
	}

	// Flag paths are relative to the working directory, everything else to
	// the project root.
	if flagOutputDir != "" {
		cfg.OutputDir = flagOutputDir
	} else {
		cfg.OutputDir = resolvePathRelativeTo(cfg.OutputDir, root)
	}
	if flagHistory != "" {
		cfg.History = flagHistory
	} else {
		cfg.History = resolvePathRelativeTo(cfg.History, root)
	}
	if cfg.History == "" {
		cfg.History = filepath.Join(cfg.OutputDir, state.DefaultFileName)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg.apply()
	return &cfg, nil
}

// loadBuildConfig loads the explicit file, or searches upward from cwd.
func loadBuildConfig(cfgFile, cwd string) (*buildcfg.BuildConfig, string, error) {
	if cfgFile != "" {
		abs, err := filepath.Abs(cfgFile)
		if err != nil {
			return nil, "", fmt.Errorf("failed to resolve %s: %w", cfgFile, err)
		}
		build, err := buildcfg.Load(abs)
		if err != nil {
			return nil, "", err
		}
		return build, filepath.Dir(abs), nil
	}
	root := buildcfg.FindProjectRoot(cwd)
	if root == "" {
		return nil, cwd, nil
	}
	build, err := buildcfg.LoadFromDir(root)
	if err != nil {
		return nil, "", err
	}
	return build, root, nil
}

// fileValues returns the execution settings the build file sets. Zero values
// are left to the defaults.
func fileValues(b *buildcfg.BuildConfig) map[string]any {
	m := map[string]any{"output_dir": b.OutputDir}
	if b.Concurrency != 0 {
		m["concurrency"] = b.Concurrency
	}
	if b.PluginTimeout != 0 {
		m["plugin_timeout"] = b.PluginTimeout.String()
	}
	if b.FailFast {
		m["fail_fast"] = true
	}
	return m
}

// Reload re-reads the build configuration file. The execution settings
// resolved by Load are kept.
func (c *Config) Reload() error {
	if c.ConfigFile == "" {
		return nil
	}
	build, err := buildcfg.Load(c.ConfigFile)
	if err != nil {
		return err
	}
	c.Build = build
	c.apply()
	return nil
}

// apply writes the effective execution settings onto the build config.
func (c *Config) apply() {
	if c.Build == nil {
		return
	}
	c.Build.OutputDir = c.OutputDir
	c.Build.Concurrency = c.Concurrency
	c.Build.PluginTimeout = c.PluginTimeout
	c.Build.FailFast = c.FailFast
}

func absFlag(flags *pflag.FlagSet, name string) string {
	f := flags.Lookup(name)
	if f == nil || !f.Changed || f.Value.String() == "" {
		return ""
	}
	abs, err := filepath.Abs(f.Value.String())
	if err != nil {
		return filepath.Clean(f.Value.String())
	}
	return abs
}

// resolvePathRelativeTo resolves a relative path against baseDir.
func resolvePathRelativeTo(path, baseDir string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(baseDir, path)
}

// WithLogger returns a context carrying logger.
func WithLogger(ctx context.Context, logger *slog.Logger) context.Context {
	return context.WithValue(ctx, loggerKey{}, logger)
}

// GetLogger retrieves the logger from the command context.
func GetLogger(ctx context.Context) *slog.Logger {
	if l, ok := ctx.Value(loggerKey{}).(*slog.Logger); ok {
		return l
	}
	return slog.New(slog.DiscardHandler)
}

// WithConfig returns a context carrying cfg.
func WithConfig(ctx context.Context, cfg *Config) context.Context {
	return context.WithValue(ctx, configKey{}, cfg)
}

// FromContext returns the configuration stored by WithConfig, or nil.
func FromContext(ctx context.Context) *Config {
	cfg, _ := ctx.Value(configKey{}).(*Config)
	return cfg
}
