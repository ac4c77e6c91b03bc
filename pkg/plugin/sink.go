package plugin

import (
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"path"
	"slices"
	"strings"
	"sync"
)

// Sink errors.
var (
	ErrSinkSealed          = errors.New("artifact sink is sealed")
	ErrInvalidArtifactName = errors.New("invalid artifact name")
	ErrDuplicateArtifact   = errors.New("artifact already written")
)

// ArtifactSink collects the named artifacts of one plugin invocation.
//
// Names are relative slash-separated paths. A sink accepts each name once and
// rejects every write after Seal. Rejected names and duplicates are also
// remembered, so Err reports them even when the plugin ignores the returned
// error.
type ArtifactSink struct {
	mu        sync.Mutex
	artifacts map[string][]byte
	rejected  []error
	sealed    bool
}

// NewArtifactSink creates an empty, writable sink.
func NewArtifactSink() *ArtifactSink {
	return &ArtifactSink{artifacts: make(map[string][]byte)}
}

// ValidateArtifactName checks that name is a clean relative path.
func ValidateArtifactName(name string) error {
	switch {
	case name == "":
		return fmt.Errorf("%w: empty", ErrInvalidArtifactName)
	case strings.ContainsRune(name, '\\'):
		return fmt.Errorf("%w: %q contains a backslash", ErrInvalidArtifactName, name)
	case path.IsAbs(name):
		return fmt.Errorf("%w: %q is absolute", ErrInvalidArtifactName, name)
	case path.Clean(name) != name:
		return fmt.Errorf("%w: %q is not a clean path", ErrInvalidArtifactName, name)
	case name == ".." || strings.HasPrefix(name, "../"):
		return fmt.Errorf("%w: %q escapes the output directory", ErrInvalidArtifactName, name)
	}
	return nil
}

// Write stores a copy of data under name.
func (s *ArtifactSink) Write(name string, data []byte) error {
	nameErr := ValidateArtifactName(name)
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sealed {
		return fmt.Errorf("write %q: %w", name, ErrSinkSealed)
	}
	if nameErr != nil {
		s.rejected = append(s.rejected, nameErr)
		return nameErr
	}
	if _, exists := s.artifacts[name]; exists {
		err := fmt.Errorf("%w: %q", ErrDuplicateArtifact, name)
		s.rejected = append(s.rejected, err)
		return err
	}
	s.artifacts[name] = slices.Clone(data)
	if s.artifacts[name] == nil {
		s.artifacts[name] = []byte{}
	}
	return nil
}

// WriteString stores text content under name.
func (s *ArtifactSink) WriteString(name, content string) error {
	return s.Write(name, []byte(content))
}

// WriteJSON stores v as indented JSON followed by a newline.
func (s *ArtifactSink) WriteJSON(name string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %q: %w", name, err)
	}
	return s.Write(name, append(data, '\n'))
}

// Names returns the artifact names written so far, sorted.
func (s *ArtifactSink) Names() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Sorted(maps.Keys(s.artifacts))
}

// Err joins every write rejected for an invalid or duplicate name. Writes
// refused because the sink was sealed are not included.
func (s *ArtifactSink) Err() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return errors.Join(s.rejected...)
}

// Sealed reports whether the sink still accepts writes.
func (s *ArtifactSink) Sealed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sealed
}

// Seal closes the sink and returns its artifacts. Later calls return the
// same content.
func (s *ArtifactSink) Seal() map[string][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sealed = true
	out := make(map[string][]byte, len(s.artifacts))
	for k, v := range s.artifacts {
		out[k] = slices.Clone(v)
	}
	return out
}
