package build

import (
	"fmt"

	"github.com/leapstack-labs/leapidl/pkg/core"
)

// isAllowedTransition encodes the projection lifecycle:
//
//	"" -> PLANNED | NOT_ATTEMPTED
//	PLANNED -> TRANSFORMED -> VALIDATED -> EXECUTED -> SUCCEEDED
//	any non-terminal state -> FAILED
func isAllowedTransition(from, to core.ProjectionStatus) bool {
	if from == "" {
		return to == core.StatusPlanned || to == core.StatusNotAttempted
	}
	if from.IsTerminal() {
		return false
	}
	if to == core.StatusFailed {
		return true
	}
	switch from {
	case core.StatusPlanned:
		return to == core.StatusTransformed
	case core.StatusTransformed:
		return to == core.StatusValidated
	case core.StatusValidated:
		return to == core.StatusExecuted
	case core.StatusExecuted:
		return to == core.StatusSucceeded
	default:
		return false
	}
}

// tracker owns one projection result while it is being produced.
type tracker struct {
	res *core.ProjectionResult
}

func newTracker(name string) *tracker {
	return &tracker{res: &core.ProjectionResult{Name: name}}
}

// advance performs a validated transition and records it in the history.
func (t *tracker) advance(to core.ProjectionStatus) error {
	from := t.res.Status
	if !isAllowedTransition(from, to) {
		return fmt.Errorf("invalid transition for projection %q: %s -> %s", t.res.Name, displayStatus(from), to)
	}
	if to == core.StatusFailed {
		t.res.FailedAt = from
	}
	t.res.Status = to
	t.res.History = append(t.res.History, to)
	return nil
}

// fail moves the projection to FAILED with cause. A projection that is
// already terminal keeps its state.
func (t *tracker) fail(cause error) {
	if t.res.Err == nil {
		t.res.Err = cause
	}
	if !t.res.Status.IsTerminal() {
		_ = t.advance(core.StatusFailed)
	}
}

func displayStatus(s core.ProjectionStatus) string {
	if s == "" {
		return "<new>"
	}
	return string(s)
}
