package validate

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/leapstack-labs/leapidl/pkg/core"
)

// Engine evaluates the enabled rules of a registry against a model.
// An Engine holds no per-run state and may be shared between goroutines.
type Engine struct {
	registry *Registry
	config   *Config
	logger   *slog.Logger
}

// NewEngine creates an engine. A nil config enables every rule with its
// default severity.
func NewEngine(registry *Registry, config *Config) *Engine {
	if registry == nil {
		registry = NewRegistry()
	}
	if config == nil {
		config = NewConfig()
	}
	return &Engine{
		registry: registry,
		config:   config,
		logger:   slog.New(slog.DiscardHandler),
	}
}

// WithLogger returns a copy of the engine that logs to logger.
func (e *Engine) WithLogger(logger *slog.Logger) *Engine {
	clone := *e
	if logger != nil {
		clone.logger = logger
	}
	return &clone
}

// Rules returns the enabled rules in evaluation order.
func (e *Engine) Rules() []Rule {
	var out []Rule
	for _, rule := range e.registry.All() {
		if !e.config.IsDisabled(rule.ID()) {
			out = append(out, rule)
		}
	}
	return out
}

// Validate evaluates every enabled rule and returns the resulting events
// sorted by rule ID, then shape ID.
//
// Events that leave Severity unset (SUPPRESSED) get the rule's default
// severity before overrides are applied. Suppressions are applied to each
// event right after its rule runs. A panicking rule yields a single ERROR
// event that no suppression can downgrade.
//
// Validation stops between rules once ctx is done; callers are expected to
// check ctx afterwards.
func (e *Engine) Validate(ctx context.Context, model *core.Model, suppressions []core.Suppression) []core.ValidationEvent {
	var events []core.ValidationEvent
	for _, rule := range e.Rules() {
		if ctx.Err() != nil {
			break
		}

		raw, panicErr := e.runRule(rule, model)
		if panicErr != nil {
			e.logger.Error("rule panicked", "rule", rule.ID(), "error", panicErr)
			events = append(events, core.ValidationEvent{
				RuleID:   rule.ID(),
				Severity: core.SeverityError,
				Message:  panicErr.Error(),
			})
			continue
		}

		for _, ev := range raw {
			ev.RuleID = rule.ID()
			// Zero means unset. Rules never suppress their own events.
			if ev.Severity == core.SeveritySuppressed {
				ev.Severity = rule.DefaultSeverity()
			}
			ev.Severity = e.config.GetSeverity(rule.ID(), ev.Severity)
			events = append(events, suppress(ev, suppressions))
		}
		e.logger.Debug("rule evaluated", "rule", rule.ID(), "events", len(raw))
	}

	core.SortEvents(events)
	return events
}

func (e *Engine) runRule(rule Rule, model *core.Model) (events []core.ValidationEvent, err error) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Debug("rule stack", "rule", rule.ID(), "stack", string(debug.Stack()))
			events = nil
			err = fmt.Errorf("rule panicked: %v", r)
		}
	}()
	return rule.Validate(model, e.config.GetRuleOptions(rule.ID())), nil
}
