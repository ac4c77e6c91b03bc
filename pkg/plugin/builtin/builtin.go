// Package builtin provides the plugins shipped with leapidl.
package builtin

import (
	"fmt"

	"github.com/leapstack-labs/leapidl/pkg/plugin"
)

// Plugins returns the built-in plugins.
func Plugins() []plugin.Plugin {
	return []plugin.Plugin{
		Model{},
		DocGen{},
		DocMarkdown{},
		BuildInfo{},
	}
}

// RegisterBuiltins registers every built-in plugin.
func RegisterBuiltins(reg *plugin.Registry) error {
	for _, p := range Plugins() {
		if err := reg.Register(p); err != nil {
			return fmt.Errorf("register builtin plugins: %w", err)
		}
	}
	return nil
}
