package core

import (
	"fmt"
	"maps"
	"slices"
	"strings"
	"time"
)

// =============================================================================
// Status
// =============================================================================

// ProjectionStatus is the lifecycle state of one projection within a build.
type ProjectionStatus string

// Projection lifecycle states.
const (
	StatusNotAttempted ProjectionStatus = "NOT_ATTEMPTED"
	StatusPlanned      ProjectionStatus = "PLANNED"
	StatusTransformed  ProjectionStatus = "TRANSFORMED"
	StatusValidated    ProjectionStatus = "VALIDATED"
	StatusExecuted     ProjectionStatus = "EXECUTED"
	StatusSucceeded    ProjectionStatus = "SUCCEEDED"
	StatusFailed       ProjectionStatus = "FAILED"
)

// IsTerminal reports whether no further transition is possible.
func (s ProjectionStatus) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusNotAttempted:
		return true
	default:
		return false
	}
}

// BuildStatus is the overall outcome of a build.
type BuildStatus string

// Build outcomes.
const (
	BuildSucceeded BuildStatus = "SUCCEEDED"
	BuildFailed    BuildStatus = "FAILED"
)

// =============================================================================
// Plugin outcomes
// =============================================================================

// PluginError records the failure of one plugin in one projection.
type PluginError struct {
	Plugin string
	Cause  error
}

func (e *PluginError) Error() string {
	return fmt.Sprintf("plugin %q failed: %v", e.Plugin, e.Cause)
}

// Unwrap returns the underlying cause.
func (e *PluginError) Unwrap() error { return e.Cause }

// LogEntry is one record captured from a plugin's private logger.
type LogEntry struct {
	Level   string         `json:"level"`
	Message string         `json:"message"`
	Attrs   map[string]any `json:"attrs,omitempty"`
}

// PluginResult is the outcome of one plugin invocation.
type PluginResult struct {
	Plugin    string
	Artifacts map[string][]byte
	Log       []LogEntry
	Err       *PluginError
	Duration  time.Duration
}

// ArtifactNames returns the plugin's artifact names in sorted order.
func (r PluginResult) ArtifactNames() []string {
	return slices.Sorted(maps.Keys(r.Artifacts))
}

// =============================================================================
// ProjectionResult
// =============================================================================

// ArtifactKey is the key of an artifact in ProjectionResult.Artifacts.
func ArtifactKey(plugin, name string) string {
	return plugin + "/" + name
}

// ProjectionResult is the immutable outcome of one projection.
type ProjectionResult struct {
	Name   string
	Status ProjectionStatus
	// FailedAt is the last state reached before failing (empty on success).
	FailedAt ProjectionStatus
	// Model is the projected model; nil if the transform chain never completed.
	Model  *Model
	Events []ValidationEvent
	// Artifacts maps ArtifactKey(plugin, name) to content.
	Artifacts    map[string][]byte
	Plugins      []PluginResult
	PluginErrors []*PluginError
	// Err is the projection-level failure cause (transform, validation,
	// cancellation or planning), nil when the projection succeeded or
	// failed only through plugin errors.
	Err     error
	History []ProjectionStatus
}

// Artifact returns an artifact produced by a plugin.
func (r *ProjectionResult) Artifact(plugin, name string) ([]byte, bool) {
	b, ok := r.Artifacts[ArtifactKey(plugin, name)]
	return b, ok
}

// ArtifactKeys returns the artifact keys in sorted order.
func (r *ProjectionResult) ArtifactKeys() []string {
	return slices.Sorted(maps.Keys(r.Artifacts))
}

// Failed reports whether the projection did not succeed.
func (r *ProjectionResult) Failed() bool {
	return r.Status != StatusSucceeded
}

// Problems lists human-readable failure causes.
func (r *ProjectionResult) Problems() []string {
	var out []string
	if r.Err != nil {
		out = append(out, r.Err.Error())
	}
	for _, pe := range r.PluginErrors {
		out = append(out, pe.Error())
	}
	return out
}

// =============================================================================
// BuildResult
// =============================================================================

// BuildResult is the ordered collection of projection results for one build.
type BuildResult struct {
	ID          string
	Projections []ProjectionResult
	Status      BuildStatus
	StartedAt   time.Time
	Duration    time.Duration
}

// Projection returns the result for the named projection.
func (b *BuildResult) Projection(name string) (*ProjectionResult, bool) {
	for i := range b.Projections {
		if b.Projections[i].Name == name {
			return &b.Projections[i], true
		}
	}
	return nil, false
}

// Failed reports whether the build failed.
func (b *BuildResult) Failed() bool {
	return b.Status != BuildSucceeded
}

// Summary counts projections by status.
func (b *BuildResult) Summary() map[ProjectionStatus]int {
	out := make(map[ProjectionStatus]int)
	for _, p := range b.Projections {
		out[p.Status]++
	}
	return out
}

// SummaryLine renders the summary as "2 SUCCEEDED, 1 FAILED".
func (b *BuildResult) SummaryLine() string {
	counts := b.Summary()
	var parts []string
	for _, s := range []ProjectionStatus{StatusSucceeded, StatusFailed, StatusNotAttempted} {
		if n := counts[s]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, s))
		}
	}
	if len(parts) == 0 {
		return "no projections"
	}
	return strings.Join(parts, ", ")
}
