package validate

import (
	"fmt"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/leapstack-labs/leapidl/pkg/core"
)

// MetadataSuppressionsKey is the model metadata key holding suppressions.
const MetadataSuppressionsKey = "suppressions"

// ValidateSuppressions checks that every suppression pattern is a valid glob.
func ValidateSuppressions(suppressions []core.Suppression) error {
	for i, s := range suppressions {
		if s.ID == "" {
			return fmt.Errorf("suppression %d: id pattern is required", i)
		}
		if !doublestar.ValidatePattern(s.ID) {
			return fmt.Errorf("suppression %d: invalid id pattern %q", i, s.ID)
		}
		for _, pat := range s.Shapes {
			if !doublestar.ValidatePattern(pat) {
				return fmt.Errorf("suppression %d: invalid shape pattern %q", i, pat)
			}
		}
	}
	return nil
}

// Matches reports whether the suppression applies to the event.
func Matches(s core.Suppression, event core.ValidationEvent) bool {
	if !globMatch(s.ID, event.RuleID) {
		return false
	}
	if len(s.Shapes) == 0 {
		return true
	}
	for _, pat := range s.Shapes {
		if globMatch(pat, string(event.ShapeID)) {
			return true
		}
	}
	return false
}

func globMatch(pattern, name string) bool {
	matched, err := doublestar.Match(pattern, name)
	return err == nil && matched
}

// suppress downgrades the event to SUPPRESSED when the first matching
// suppression is found.
func suppress(event core.ValidationEvent, suppressions []core.Suppression) core.ValidationEvent {
	for _, s := range suppressions {
		if Matches(s, event) {
			event.Severity = core.SeveritySuppressed
			event.SuppressionReason = s.Reason
			if event.SuppressionReason == "" {
				event.SuppressionReason = "suppressed by " + s.ID
			}
			return event
		}
	}
	return event
}

// SuppressionsFromMetadata reads suppressions declared in model metadata
// under the "suppressions" key. Entries are maps with "id", "shapes"
// and "reason" keys; malformed entries are reported as errors.
func SuppressionsFromMetadata(model *core.Model) ([]core.Suppression, error) {
	raw, ok := model.MetadataValue(MetadataSuppressionsKey)
	if !ok {
		return nil, nil
	}
	list, ok := raw.([]any)
	if !ok {
		return nil, fmt.Errorf("metadata %q must be a list, got %T", MetadataSuppressionsKey, raw)
	}

	out := make([]core.Suppression, 0, len(list))
	for i, entry := range list {
		m, ok := entry.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("metadata %q entry %d must be a map, got %T", MetadataSuppressionsKey, i, entry)
		}
		var s core.Suppression
		s.ID, _ = m["id"].(string)
		s.Reason, _ = m["reason"].(string)
		s.Shapes = GetStringSliceOption(Options(m), "shapes")
		out = append(out, s)
	}
	if err := ValidateSuppressions(out); err != nil {
		return nil, fmt.Errorf("metadata suppressions: %w", err)
	}
	return out, nil
}
