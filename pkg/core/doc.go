// Package core defines the shared language of the LeapIDL build system.
//
// This package contains:
//   - The immutable shape model (Model, Shape, ShapeID, ModelBuilder)
//   - Validation vocabulary (Severity, ValidationEvent, Suppression)
//   - Projection configuration (ProjectionConfig, TransformSpec, PluginSpec)
//   - Build outcomes (ProjectionResult, BuildResult, PluginError)
//
// The Golden Rule: pkg/core imports ONLY the standard library.
// All other packages depend on core, not the reverse.
package core
