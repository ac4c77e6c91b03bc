package core

import (
	"fmt"
	"strings"
)

// =============================================================================
// Severity
// =============================================================================

// Severity indicates the importance of a validation event.
// Severities are ordered: a higher value is more severe.
type Severity int

// Severity levels for validation events.
const (
	// SeveritySuppressed marks an event that matched a suppression.
	// It is kept for auditing but never fails a build.
	SeveritySuppressed Severity = iota
	// SeverityNote is informational feedback.
	SeverityNote
	// SeverityWarning indicates a potential issue that should be reviewed.
	SeverityWarning
	// SeverityDanger indicates an issue that is likely a mistake.
	SeverityDanger
	// SeverityError is fatal for the projection that produced it.
	SeverityError
)

// Severities lists every severity from least to most severe.
var Severities = []Severity{
	SeveritySuppressed,
	SeverityNote,
	SeverityWarning,
	SeverityDanger,
	SeverityError,
}

// String returns the string representation of the severity.
func (s Severity) String() string {
	switch s {
	case SeveritySuppressed:
		return "SUPPRESSED"
	case SeverityNote:
		return "NOTE"
	case SeverityWarning:
		return "WARNING"
	case SeverityDanger:
		return "DANGER"
	case SeverityError:
		return "ERROR"
	default:
		return "UNKNOWN"
	}
}

// ParseSeverity converts a string to a Severity value (case-insensitive).
// Returns the severity and true if valid, or SeverityWarning and false if invalid.
func ParseSeverity(s string) (Severity, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "SUPPRESSED":
		return SeveritySuppressed, true
	case "NOTE":
		return SeverityNote, true
	case "WARNING":
		return SeverityWarning, true
	case "DANGER":
		return SeverityDanger, true
	case "ERROR":
		return SeverityError, true
	default:
		return SeverityWarning, false
	}
}

// MarshalText implements encoding.TextMarshaler.
func (s Severity) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// UnmarshalText implements encoding.TextUnmarshaler.
func (s *Severity) UnmarshalText(text []byte) error {
	sev, ok := ParseSeverity(string(text))
	if !ok {
		return fmt.Errorf("unknown severity %q", string(text))
	}
	*s = sev
	return nil
}
