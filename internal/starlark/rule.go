package starlark

import (
	"fmt"
	"log/slog"
	"strings"

	"go.starlark.net/starlark"

	"github.com/leapstack-labs/leapidl/pkg/core"
	"github.com/leapstack-labs/leapidl/pkg/validate"
)

// ScriptRule is a validation rule backed by a Starlark validate function.
// Each call runs on a fresh thread, so one ScriptRule may be evaluated
// concurrently by several projections.
type ScriptRule struct {
	id          string
	description string
	severity    core.Severity
	path        string
	fn          starlark.Callable
	maxSteps    uint64
	logger      *slog.Logger
}

var _ validate.Rule = (*ScriptRule)(nil)

func (r *ScriptRule) ID() string                     { return r.id }
func (r *ScriptRule) Description() string            { return r.description }
func (r *ScriptRule) DefaultSeverity() core.Severity { return r.severity }

// Path returns the file the rule was loaded from.
func (r *ScriptRule) Path() string { return r.path }

// Validate calls the script. A script failure becomes a single ERROR event
// for the rule.
func (r *ScriptRule) Validate(model *core.Model, opts validate.Options) []core.ValidationEvent {
	events, err := r.run(model, opts)
	if err != nil {
		r.logger.Warn("script rule failed", slog.String("rule", r.id), slog.String("error", err.Error()))
		return []core.ValidationEvent{{
			Severity: core.SeverityError,
			Message:  fmt.Sprintf("script %s failed: %v", r.path, err),
		}}
	}
	return events
}

func (r *ScriptRule) run(model *core.Model, opts validate.Options) ([]core.ValidationEvent, error) {
	m, err := ModelToStarlark(model)
	if err != nil {
		return nil, err
	}
	o, err := GoToStarlark(map[string]any(opts))
	if err != nil {
		return nil, fmt.Errorf("options: %w", err)
	}
	if opts == nil {
		o = starlark.NewDict(0)
	}

	thread := newThread("rule:"+r.id, r.maxSteps, r.logger)
	result, err := starlark.Call(thread, r.fn, starlark.Tuple{m, o}, nil)
	if err != nil {
		if evalErr, ok := err.(*starlark.EvalError); ok {
			return nil, fmt.Errorf("%s", strings.TrimSpace(evalErr.Backtrace()))
		}
		return nil, err
	}
	return collectEvents(result)
}

// collectEvents accepts None, a single event, or an iterable of events.
func collectEvents(v starlark.Value) ([]core.ValidationEvent, error) {
	if v == starlark.None {
		return nil, nil
	}
	if _, isDict := v.(*starlark.Dict); !isDict {
		if iterable, ok := v.(starlark.Iterable); ok {
			var out []core.ValidationEvent
			iter := iterable.Iterate()
			defer iter.Done()
			var item starlark.Value
			for i := 0; iter.Next(&item); i++ {
				ev, err := toEvent(item)
				if err != nil {
					return nil, fmt.Errorf("event %d: %w", i, err)
				}
				out = append(out, ev)
			}
			return out, nil
		}
	}
	ev, err := toEvent(v)
	if err != nil {
		return nil, err
	}
	return []core.ValidationEvent{ev}, nil
}
