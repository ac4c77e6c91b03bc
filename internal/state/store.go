// Package state records build history in SQLite: one row per build and one
// per projection outcome, so `leapidl history` can show past builds.
package state

import (
	"context"
	"errors"
	"time"

	"github.com/leapstack-labs/leapidl/pkg/core"
)

// ErrBuildNotFound is returned when a build id is not in the history.
var ErrBuildNotFound = errors.New("build not found")

// Store persists build history.
type Store interface {
	RecordBuild(ctx context.Context, result *core.BuildResult, configPath string) error
	ListBuilds(ctx context.Context, limit int) ([]BuildRecord, error)
	GetBuild(ctx context.Context, id string) (*BuildRecord, error)
	Close() error
}

// BuildRecord is one recorded build.
type BuildRecord struct {
	ID          string             `json:"id"`
	Status      core.BuildStatus   `json:"status"`
	StartedAt   time.Time          `json:"startedAt"`
	Duration    time.Duration      `json:"duration"`
	ConfigPath  string             `json:"configPath,omitempty"`
	Projections []ProjectionRecord `json:"projections,omitempty"`
}

// ProjectionRecord summarizes one projection of a recorded build.
type ProjectionRecord struct {
	Name         string                `json:"name"`
	Status       core.ProjectionStatus `json:"status"`
	FailedAt     core.ProjectionStatus `json:"failedAt,omitempty"`
	Error        string                `json:"error,omitempty"`
	Artifacts    int                   `json:"artifacts"`
	Errors       int                   `json:"errors"`
	Warnings     int                   `json:"warnings"`
	PluginErrors int                   `json:"pluginErrors"`
}

// Summarize converts a projection result into its history record.
func Summarize(p core.ProjectionResult) ProjectionRecord {
	counts := core.CountBySeverity(p.Events)
	rec := ProjectionRecord{
		Name:         p.Name,
		Status:       p.Status,
		FailedAt:     p.FailedAt,
		Artifacts:    len(p.Artifacts),
		Errors:       counts[core.SeverityError],
		Warnings:     counts[core.SeverityWarning] + counts[core.SeverityDanger],
		PluginErrors: len(p.PluginErrors),
	}
	if p.Err != nil {
		rec.Error = p.Err.Error()
	}
	return rec
}
