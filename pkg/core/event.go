package core

import (
	"fmt"
	"slices"
	"strings"
)

// ValidationEvent is a single finding produced by a validation rule.
type ValidationEvent struct {
	RuleID   string   `json:"rule_id"`
	Severity Severity `json:"severity"`
	ShapeID  ShapeID  `json:"shape_id,omitempty"`
	Message  string   `json:"message"`
	// SuppressionReason is set when a suppression downgraded the event.
	SuppressionReason string `json:"suppression_reason,omitempty"`
}

// String formats the event for logs and plain-text reports.
func (e ValidationEvent) String() string {
	var b strings.Builder
	fmt.Fprintf(&b, "[%s] %s", e.Severity, e.RuleID)
	if e.ShapeID != "" {
		fmt.Fprintf(&b, " %s", e.ShapeID)
	}
	fmt.Fprintf(&b, ": %s", e.Message)
	if e.SuppressionReason != "" {
		fmt.Fprintf(&b, " (suppressed: %s)", e.SuppressionReason)
	}
	return b.String()
}

// CompareEvents orders events by rule id, then shape id, then message.
func CompareEvents(a, b ValidationEvent) int {
	if c := strings.Compare(a.RuleID, b.RuleID); c != 0 {
		return c
	}
	if c := strings.Compare(string(a.ShapeID), string(b.ShapeID)); c != 0 {
		return c
	}
	return strings.Compare(a.Message, b.Message)
}

// SortEvents stably sorts events in place by rule id, then shape id.
func SortEvents(events []ValidationEvent) {
	slices.SortStableFunc(events, CompareEvents)
}

// HasErrors reports whether any event has ERROR severity.
func HasErrors(events []ValidationEvent) bool {
	return slices.ContainsFunc(events, func(e ValidationEvent) bool {
		return e.Severity == SeverityError
	})
}

// CountBySeverity tallies events per severity.
func CountBySeverity(events []ValidationEvent) map[Severity]int {
	counts := make(map[Severity]int, len(Severities))
	for _, e := range events {
		counts[e.Severity]++
	}
	return counts
}

// GroupBySeverity returns events grouped from most to least severe,
// preserving the relative order inside each group.
func GroupBySeverity(events []ValidationEvent) []ValidationEvent {
	out := slices.Clone(events)
	slices.SortStableFunc(out, func(a, b ValidationEvent) int {
		return int(b.Severity) - int(a.Severity)
	})
	return out
}

// Suppression downgrades matching events to SUPPRESSED.
//
// ID and Shapes are glob patterns ('*', '?', '[...]'). An empty Shapes list
// matches every shape, including events without a shape.
type Suppression struct {
	ID     string   `json:"id" koanf:"id" yaml:"id"`
	Shapes []string `json:"shapes,omitempty" koanf:"shapes" yaml:"shapes"`
	Reason string   `json:"reason,omitempty" koanf:"reason" yaml:"reason"`
}
