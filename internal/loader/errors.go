package loader

import (
	"fmt"
	"strings"

	"github.com/leapstack-labs/leapidl/pkg/core"
)

// ParseError is a malformed model file.
type ParseError struct {
	File    string
	Line    int
	Message string
}

func (e *ParseError) Error() string {
	if e.File != "" {
		if e.Line > 0 {
			return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Message)
		}
		return fmt.Sprintf("%s: %s", e.File, e.Message)
	}
	return e.Message
}

// UnknownFieldError is a key the model format does not define. Custom data
// belongs in traits or metadata.
type UnknownFieldError struct {
	File  string
	Line  int
	Field string
	// Where names the enclosing object, e.g. `shape "ex#A"`.
	Where string
}

func (e *UnknownFieldError) Error() string {
	msg := fmt.Sprintf("unknown field %q in %s, use \"traits\" or \"metadata\" for custom data", e.Field, e.Where)
	if e.File != "" {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, msg)
	}
	return msg
}

// ConflictError is a shape or metadata key defined differently by two files.
type ConflictError struct {
	// Shape is set for shape conflicts, Key for metadata conflicts.
	Shape core.ShapeID
	Key   string
	Files []string
}

func (e *ConflictError) Error() string {
	files := strings.Join(e.Files, ", ")
	if e.Shape != "" {
		return fmt.Sprintf("conflicting definitions of shape %q in %s", e.Shape, files)
	}
	return fmt.Sprintf("conflicting values for metadata key %q in %s", e.Key, files)
}
