package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/leapstack-labs/leapidl/internal/cli/output"
	"github.com/leapstack-labs/leapidl/pkg/core"
	"github.com/leapstack-labs/leapidl/pkg/validate"
)

// ErrValidationFailed is returned when the source model has ERROR events.
var ErrValidationFailed = errors.New("validation failed")

type validateReport struct {
	Valid  bool                   `json:"valid"`
	Counts map[string]int         `json:"counts"`
	Events []core.ValidationEvent `json:"events"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [model-path...]",
		Short: "Validate the source model without building",
		Long: `Run every enabled rule, including script rules, against the source model.
Suppressions from the build configuration and from the model's metadata
apply. Paths default to the configured sources.

The exit code is 1 when an unsuppressed ERROR event remains.`,
		Example: `  # Validate the configured sources
  leapidl validate

  # Validate a single file
  leapidl validate model/orders.yaml --output json`,
		RunE: runValidate,
	}
	return cmd
}

func runValidate(cmd *cobra.Command, args []string) error {
	cc, err := NewCommandContext(cmd)
	if err != nil {
		return err
	}
	regs, err := cc.NewRegistries()
	if err != nil {
		return err
	}
	model, err := cc.loadModel(args)
	if err != nil {
		return err
	}
	engine, err := cc.validator(regs)
	if err != nil {
		return err
	}

	var suppressions []core.Suppression
	if cc.Cfg.Build != nil {
		suppressions = append(suppressions, cc.Cfg.Build.Suppressions...)
	}
	fromModel, err := validate.SuppressionsFromMetadata(model)
	if err != nil {
		return fmt.Errorf("invalid suppressions in model metadata: %w", err)
	}
	suppressions = append(suppressions, fromModel...)

	events := engine.Validate(cmd.Context(), model, suppressions)
	if err := renderValidation(cc.Renderer, events); err != nil {
		return err
	}
	if core.HasErrors(events) {
		return ErrValidationFailed
	}
	return nil
}

func renderValidation(r *output.Renderer, events []core.ValidationEvent) error {
	counts := core.CountBySeverity(events)
	if r.EffectiveMode() == output.ModeJSON {
		rep := validateReport{Valid: !core.HasErrors(events), Counts: map[string]int{}, Events: events}
		if rep.Events == nil {
			rep.Events = []core.ValidationEvent{}
		}
		for sev, n := range counts {
			rep.Counts[sev.String()] = n
		}
		return r.JSON(rep)
	}

	r.Header(1, "Validation")
	visible := visibleEvents(events)
	if len(visible) == 0 {
		r.Muted("No issues found.")
	}
	renderEvents(r, visible)

	var parts []string
	for _, sev := range []core.Severity{core.SeverityError, core.SeverityDanger, core.SeverityWarning, core.SeverityNote, core.SeveritySuppressed} {
		if n := counts[sev]; n > 0 {
			parts = append(parts, fmt.Sprintf("%d %s", n, sev))
		}
	}
	summary := "no events"
	if len(parts) > 0 {
		summary = strings.Join(parts, ", ")
	}
	if core.HasErrors(events) {
		r.Error("Validation failed: " + summary)
	} else {
		r.Success("Validation passed: " + summary)
	}
	return nil
}
