package starlark

import (
	"fmt"
	"strings"

	"go.starlark.net/starlark"
	"go.starlark.net/starlarkstruct"

	"github.com/leapstack-labs/leapidl/pkg/core"
)

// Predeclared returns the globals available to rule files: event() and the
// severity names NOTE, WARNING, DANGER and ERROR.
func Predeclared() starlark.StringDict {
	return starlark.StringDict{
		"event":   starlark.NewBuiltin("event", eventBuiltin),
		"struct":  starlark.NewBuiltin("struct", starlarkstruct.Make),
		"NOTE":    starlark.String("note"),
		"WARNING": starlark.String("warning"),
		"DANGER":  starlark.String("danger"),
		"ERROR":   starlark.String("error"),
	}
}

// eventBuiltin implements event(shape, message, severity=None).
func eventBuiltin(_ *starlark.Thread, fn *starlark.Builtin, args starlark.Tuple, kwargs []starlark.Tuple) (starlark.Value, error) {
	var shape, message string
	var severity starlark.Value = starlark.None
	if err := starlark.UnpackArgs(fn.Name(), args, kwargs, "shape", &shape, "message", &message, "severity?", &severity); err != nil {
		return nil, err
	}
	if severity != starlark.None {
		s, ok := severity.(starlark.String)
		if !ok {
			return nil, fmt.Errorf("event: severity must be a string, got %s", severity.Type())
		}
		if _, err := parseScriptSeverity(string(s)); err != nil {
			return nil, fmt.Errorf("event: %w", err)
		}
	}
	return starlarkstruct.FromStringDict(starlark.String("event"), starlark.StringDict{
		"shape":    starlark.String(shape),
		"message":  starlark.String(message),
		"severity": severity,
	}), nil
}

// parseScriptSeverity accepts note, warning, danger and error. Suppressed is
// reserved for suppressions.
func parseScriptSeverity(s string) (core.Severity, error) {
	sev, ok := core.ParseSeverity(s)
	if !ok || sev == core.SeveritySuppressed {
		return 0, fmt.Errorf("invalid severity %q (note, warning, danger, error)", s)
	}
	return sev, nil
}

// toEvent converts an event struct or a dict with the same keys.
func toEvent(v starlark.Value) (core.ValidationEvent, error) {
	var ev core.ValidationEvent
	get := func(name string) (starlark.Value, error) {
		switch x := v.(type) {
		case *starlarkstruct.Struct:
			val, err := x.Attr(name)
			if err != nil || val == nil {
				return starlark.None, nil
			}
			return val, nil
		case *starlark.Dict:
			val, found, err := x.Get(starlark.String(name))
			if err != nil {
				return nil, err
			}
			if !found {
				return starlark.None, nil
			}
			return val, nil
		default:
			return nil, fmt.Errorf("expected event or dict, got %s", v.Type())
		}
	}

	shape, err := get("shape")
	if err != nil {
		return ev, err
	}
	if s, ok := shape.(starlark.String); ok {
		ev.ShapeID = core.ShapeID(s)
	}

	message, err := get("message")
	if err != nil {
		return ev, err
	}
	msg, ok := message.(starlark.String)
	if !ok || strings.TrimSpace(string(msg)) == "" {
		return ev, fmt.Errorf("event message is required")
	}
	ev.Message = string(msg)

	severity, err := get("severity")
	if err != nil {
		return ev, err
	}
	if s, ok := severity.(starlark.String); ok {
		sev, err := parseScriptSeverity(string(s))
		if err != nil {
			return ev, err
		}
		ev.Severity = sev
	}
	return ev, nil
}
