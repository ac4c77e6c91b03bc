package builtin

import (
	"context"

	"github.com/leapstack-labs/leapidl/pkg/core"
	"github.com/leapstack-labs/leapidl/pkg/plugin"
)

// BuildInfoVersion is the format version of build-info.json.
const BuildInfoVersion = "1.0"

// BuildInfo records what went into a projection: its shapes, plugins and
// validation events.
type BuildInfo struct{}

type buildInfo struct {
	Version          string                 `json:"version"`
	Projection       string                 `json:"projection"`
	ShapeIDs         []core.ShapeID         `json:"shapeIds"`
	Namespaces       []string               `json:"namespaces"`
	Plugins          []string               `json:"plugins"`
	ValidationEvents []core.ValidationEvent `json:"validationEvents"`
	EventCounts      map[string]int         `json:"eventCounts"`
	Metadata         map[string]any         `json:"metadata"`
}

func (BuildInfo) Name() string { return "build-info" }
func (BuildInfo) Description() string {
	return "Writes build-info.json describing the projection"
}

func (BuildInfo) Execute(_ context.Context, pctx *plugin.Context) error {
	info := buildInfo{
		Version:          BuildInfoVersion,
		Projection:       pctx.Projection,
		ShapeIDs:         pctx.Model.ShapeIDs(),
		Namespaces:       pctx.Model.Namespaces(),
		Plugins:          append([]string{}, pctx.Plugins...),
		ValidationEvents: append([]core.ValidationEvent{}, pctx.Events...),
		EventCounts:      make(map[string]int),
		Metadata:         pctx.Model.Metadata(),
	}
	if info.ShapeIDs == nil {
		info.ShapeIDs = []core.ShapeID{}
	}
	if info.Namespaces == nil {
		info.Namespaces = []string{}
	}
	for sev, n := range core.CountBySeverity(pctx.Events) {
		info.EventCounts[sev.String()] = n
	}
	return pctx.Sink.WriteJSON("build-info.json", info)
}
