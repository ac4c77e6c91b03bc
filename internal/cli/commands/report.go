package commands

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"time"

	"github.com/leapstack-labs/leapidl/internal/build"
	"github.com/leapstack-labs/leapidl/internal/cli/output"
	"github.com/leapstack-labs/leapidl/internal/state"
	"github.com/leapstack-labs/leapidl/pkg/core"
)

// buildReport is the JSON form of a build.
type buildReport struct {
	ID          string             `json:"id"`
	Status      core.BuildStatus   `json:"status"`
	StartedAt   time.Time          `json:"startedAt"`
	Duration    string             `json:"duration"`
	Summary     string             `json:"summary"`
	Planning    []string           `json:"planningProblems,omitempty"`
	Projections []projectionReport `json:"projections"`
	Files       []string           `json:"files,omitempty"`
}

type projectionReport struct {
	state.ProjectionRecord
	History   []core.ProjectionStatus `json:"history"`
	Events    []core.ValidationEvent  `json:"events,omitempty"`
	Artifacts []string                `json:"artifactKeys,omitempty"`
	Problems  []string                `json:"problems,omitempty"`
}

func newBuildReport(run *buildRun) buildReport {
	res := run.Result
	rep := buildReport{
		ID:        res.ID,
		Status:    res.Status,
		StartedAt: res.StartedAt,
		Duration:  res.Duration.Round(time.Millisecond).String(),
		Summary:   res.SummaryLine(),
		Files:     run.Written,
	}
	var pe *build.PlanningError
	if errors.As(run.PlanErr, &pe) {
		for _, p := range pe.Problems {
			rep.Planning = append(rep.Planning, p.String())
		}
	}
	for _, p := range res.Projections {
		rep.Projections = append(rep.Projections, projectionReport{
			ProjectionRecord: state.Summarize(p),
			History:          p.History,
			Events:           p.Events,
			Artifacts:        p.ArtifactKeys(),
			Problems:         p.Problems(),
		})
	}
	return rep
}

// renderBuild reports a build in the renderer's effective mode.
func renderBuild(r *output.Renderer, run *buildRun, outputDir string) error {
	rep := newBuildReport(run)
	if r.EffectiveMode() == output.ModeJSON {
		return r.JSON(rep)
	}

	r.Header(1, fmt.Sprintf("Build %s", rep.ID))
	if len(rep.Planning) > 0 {
		r.Header(2, "Planning problems")
		for _, p := range rep.Planning {
			r.Println("- " + p)
		}
		r.Println("")
	}

	rows := make([][]string, 0, len(rep.Projections))
	for _, p := range rep.Projections {
		status := string(p.Status)
		if r.EffectiveMode() == output.ModeText {
			status = r.StatusStyle(p.Status).Render(status)
		}
		rows = append(rows, []string{
			p.Name, status, string(p.FailedAt),
			strconv.Itoa(p.ProjectionRecord.Artifacts), strconv.Itoa(p.Errors), strconv.Itoa(p.Warnings),
		})
	}
	r.Table([]string{"Projection", "Status", "Failed at", "Artifacts", "Errors", "Warnings"}, rows)

	for i, p := range rep.Projections {
		proj := run.Result.Projections[i]
		visible := visibleEvents(proj.Events)
		if len(visible) == 0 && (len(p.Problems) == 0 || len(rep.Planning) > 0) {
			continue
		}
		r.Header(2, p.Name)
		renderEvents(r, visible)
		if len(rep.Planning) == 0 {
			for _, msg := range p.Problems {
				r.Println("- " + r.Styles().Error.Render(msg))
			}
		}
		r.Println("")
	}

	if len(rep.Files) > 0 {
		r.Muted(fmt.Sprintf("Wrote %d file(s) to %s", len(rep.Files), relPath(outputDir)))
	}
	line := fmt.Sprintf("%s in %s (%s)", rep.Summary, rep.Duration, rep.ID)
	if run.Result.Failed() {
		r.Error("Build failed: " + line)
	} else {
		r.Success("Build succeeded: " + line)
	}
	return nil
}

// visibleEvents drops suppressed events from human reports.
func visibleEvents(events []core.ValidationEvent) []core.ValidationEvent {
	var out []core.ValidationEvent
	for _, e := range core.GroupBySeverity(events) {
		if e.Severity != core.SeveritySuppressed {
			out = append(out, e)
		}
	}
	return out
}

func renderEvents(r *output.Renderer, events []core.ValidationEvent) {
	for _, e := range events {
		if r.EffectiveMode() == output.ModeMarkdown {
			r.Println("- `" + e.String() + "`")
			continue
		}
		r.Println("  " + r.SeverityStyle(e.Severity).Render(e.String()))
	}
}

// relPath shortens path relative to the working directory when possible.
func relPath(path string) string {
	if !filepath.IsAbs(path) {
		return path
	}
	abs, err := filepath.Abs(".")
	if err != nil {
		return path
	}
	if rel, err := filepath.Rel(abs, path); err == nil && !filepath.IsAbs(rel) && len(rel) < len(path) {
		return rel
	}
	return path
}
