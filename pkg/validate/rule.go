package validate

import (
	"fmt"

	"github.com/leapstack-labs/leapidl/pkg/core"
)

// =============================================================================
// Rule Interfaces
// =============================================================================

// Rule inspects a model and emits zero or more events.
// Rules must be side-effect free and must not share mutable state between
// invocations: the same rule value is evaluated concurrently for different
// projections.
type Rule interface {
	// ID returns the unique identifier, e.g., "no-dangling-ref"
	ID() string

	// Description returns a human-readable description
	Description() string

	// DefaultSeverity returns the severity assigned to events that do not
	// set one explicitly
	DefaultSeverity() core.Severity

	// Validate analyzes the model. The opts parameter contains rule-specific
	// options from configuration.
	//
	// An event whose Severity is the zero value receives DefaultSeverity.
	// Since core.SeveritySuppressed is that zero value, a rule cannot emit an
	// already suppressed event; only configured suppressions suppress.
	Validate(model *core.Model, opts Options) []core.ValidationEvent
}

// Documented is implemented by rules that carry long-form documentation.
type Documented interface {
	Rationale() string
	ConfigKeys() []string
}

// RuleInfo provides metadata about a rule for documentation/tooling.
type RuleInfo struct {
	ID              string        `json:"id"`
	Description     string        `json:"description"`
	DefaultSeverity core.Severity `json:"default_severity"`
	Rationale       string        `json:"rationale,omitempty"`
	ConfigKeys      []string      `json:"config_keys,omitempty"`
}

// GetRuleInfo extracts metadata from a Rule.
func GetRuleInfo(r Rule) RuleInfo {
	info := RuleInfo{
		ID:              r.ID(),
		Description:     r.Description(),
		DefaultSeverity: r.DefaultSeverity(),
	}
	if d, ok := r.(Documented); ok {
		info.Rationale = d.Rationale()
		info.ConfigKeys = d.ConfigKeys()
	}
	return info
}

// =============================================================================
// Rule Definitions
// =============================================================================

// CheckFunc analyzes a model and returns events.
type CheckFunc func(model *core.Model, opts Options) []core.ValidationEvent

// RuleDef is a data-driven rule definition.
// Rules are stateless - all context comes via the Check function parameters.
type RuleDef struct {
	ID          string        // Unique identifier, e.g., "no-dangling-ref"
	Description string        // Human-readable description
	Severity    core.Severity // Default severity
	Check       CheckFunc     // The check function
	ConfigKeys  []string      // Configuration keys this rule accepts
	Rationale   string        // Why this rule exists
}

// WrapRuleDef wraps a RuleDef to implement the Rule interface.
func WrapRuleDef(def RuleDef) Rule {
	return &wrappedRuleDef{def: def}
}

type wrappedRuleDef struct {
	def RuleDef
}

func (w *wrappedRuleDef) ID() string                     { return w.def.ID }
func (w *wrappedRuleDef) Description() string            { return w.def.Description }
func (w *wrappedRuleDef) DefaultSeverity() core.Severity { return w.def.Severity }
func (w *wrappedRuleDef) Rationale() string              { return w.def.Rationale }
func (w *wrappedRuleDef) ConfigKeys() []string           { return w.def.ConfigKeys }

func (w *wrappedRuleDef) Validate(model *core.Model, opts Options) []core.ValidationEvent {
	if w.def.Check == nil {
		return nil
	}
	return w.def.Check(model, opts)
}

// Unwrap returns the underlying RuleDef.
func (w *wrappedRuleDef) Unwrap() RuleDef {
	return w.def
}

// Eventf builds an event for a shape. RuleID and Severity are filled in by
// the engine when left empty.
func Eventf(shape core.ShapeID, format string, args ...any) core.ValidationEvent {
	return core.ValidationEvent{ShapeID: shape, Message: fmt.Sprintf(format, args...)}
}

// =============================================================================
// Options
// =============================================================================

// Options holds rule-specific configuration.
type Options map[string]any

// GetOption extracts a typed option with a default value.
func GetOption[T any](opts Options, key string, defaultVal T) T {
	if opts == nil {
		return defaultVal
	}
	v, ok := opts[key]
	if !ok {
		return defaultVal
	}
	if typed, ok := v.(T); ok {
		return typed
	}
	return defaultVal
}

// GetIntOption extracts an int option, handling float64 from JSON.
func GetIntOption(opts Options, key string, defaultVal int) int {
	switch n := opts[key].(type) {
	case int:
		return n
	case int64:
		return int(n)
	case float64:
		return int(n)
	default:
		return defaultVal
	}
}

// GetStringSliceOption extracts a list of strings from []string or []any.
func GetStringSliceOption(opts Options, key string) []string {
	switch v := opts[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		return []string{v}
	default:
		return nil
	}
}
