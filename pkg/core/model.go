package core

import (
	"encoding/json"
	"maps"
	"reflect"
	"slices"
)

// Model is an immutable snapshot of shapes and model metadata.
//
// A Model is never mutated after Build; transformations derive new models
// through ToBuilder. Accessors return copies so callers cannot reach into
// the snapshot. A nil *Model behaves like an empty model.
type Model struct {
	shapes   map[ShapeID]Shape
	ids      []ShapeID
	metadata map[string]any
	// referrers maps a target to the shapes that reference it.
	referrers map[ShapeID][]ShapeID
}

// EmptyModel returns a model with no shapes and no metadata.
func EmptyModel() *Model {
	return NewModelBuilder().Build()
}

// Len returns the number of shapes.
func (m *Model) Len() int {
	if m == nil {
		return 0
	}
	return len(m.ids)
}

// HasShape reports whether the shape exists.
func (m *Model) HasShape(id ShapeID) bool {
	if m == nil {
		return false
	}
	_, ok := m.shapes[id]
	return ok
}

// Shape returns a copy of the shape with the given id.
func (m *Model) Shape(id ShapeID) (Shape, bool) {
	if m == nil {
		return Shape{}, false
	}
	s, ok := m.shapes[id]
	if !ok {
		return Shape{}, false
	}
	return s.Clone(), true
}

// ShapeIDs returns all shape ids in sorted order.
func (m *Model) ShapeIDs() []ShapeID {
	if m == nil {
		return nil
	}
	return slices.Clone(m.ids)
}

// Shapes returns copies of all shapes sorted by id.
func (m *Model) Shapes() []Shape {
	if m == nil {
		return nil
	}
	out := make([]Shape, 0, len(m.ids))
	for _, id := range m.ids {
		out = append(out, m.shapes[id].Clone())
	}
	return out
}

// ShapesWithTag returns shapes tagged with tag, sorted by id.
func (m *Model) ShapesWithTag(tag string) []Shape {
	return m.filter(func(s Shape) bool { return s.HasTag(tag) })
}

// ShapesWithTrait returns shapes carrying the named trait, sorted by id.
func (m *Model) ShapesWithTrait(trait string) []Shape {
	return m.filter(func(s Shape) bool { return s.HasTrait(trait) })
}

// ShapesOfType returns shapes of the given type, sorted by id.
func (m *Model) ShapesOfType(t ShapeType) []Shape {
	return m.filter(func(s Shape) bool { return s.Type == t })
}

func (m *Model) filter(keep func(Shape) bool) []Shape {
	if m == nil {
		return nil
	}
	var out []Shape
	for _, id := range m.ids {
		if s := m.shapes[id]; keep(s) {
			out = append(out, s.Clone())
		}
	}
	return out
}

// Namespaces returns the distinct namespaces in sorted order.
func (m *Model) Namespaces() []string {
	if m == nil {
		return nil
	}
	var out []string
	for _, id := range m.ids {
		if ns := id.Namespace(); !slices.Contains(out, ns) {
			out = append(out, ns)
		}
	}
	slices.Sort(out)
	return out
}

// References returns the distinct targets referenced by the shape's members.
// Targets are returned whether or not they exist in the model.
func (m *Model) References(id ShapeID) []ShapeID {
	if m == nil {
		return nil
	}
	s, ok := m.shapes[id]
	if !ok {
		return nil
	}
	out := s.Targets()
	slices.Sort(out)
	return out
}

// ReferencedBy returns the shapes whose members target id, sorted.
func (m *Model) ReferencedBy(id ShapeID) []ShapeID {
	if m == nil {
		return nil
	}
	return slices.Clone(m.referrers[id])
}

// Closure returns every shape reachable from roots through member targets,
// including the roots that exist. Missing targets are skipped. Sorted.
func (m *Model) Closure(roots []ShapeID) []ShapeID {
	if m == nil {
		return nil
	}
	seen := make(map[ShapeID]bool)
	stack := slices.Clone(roots)
	for len(stack) > 0 {
		id := stack[len(stack)-1]
		stack = stack[:len(stack)-1]
		if seen[id] {
			continue
		}
		s, ok := m.shapes[id]
		if !ok {
			continue
		}
		seen[id] = true
		stack = append(stack, s.Targets()...)
	}
	return slices.Sorted(maps.Keys(seen))
}

// Metadata returns a deep copy of the model metadata.
func (m *Model) Metadata() map[string]any {
	if m == nil {
		return map[string]any{}
	}
	out := cloneMap(m.metadata)
	if out == nil {
		out = map[string]any{}
	}
	return out
}

// MetadataValue returns a deep copy of one metadata entry.
func (m *Model) MetadataValue(key string) (any, bool) {
	if m == nil {
		return nil, false
	}
	v, ok := m.metadata[key]
	if !ok {
		return nil, false
	}
	return cloneValue(v), true
}

// MetadataKeys returns the metadata keys in sorted order.
func (m *Model) MetadataKeys() []string {
	if m == nil {
		return nil
	}
	return sortedKeys(m.metadata)
}

// Equal reports whether two models hold the same shapes and metadata.
func (m *Model) Equal(other *Model) bool {
	if m.Len() != other.Len() {
		return false
	}
	if m.Len() > 0 && !reflect.DeepEqual(m.shapes, other.shapes) {
		return false
	}
	return reflect.DeepEqual(m.Metadata(), other.Metadata())
}

// ToBuilder returns a builder seeded with the model's contents.
func (m *Model) ToBuilder() *ModelBuilder {
	b := NewModelBuilder()
	if m == nil {
		return b
	}
	maps.Copy(b.shapes, m.shapes)
	maps.Copy(b.metadata, m.metadata)
	return b
}

// =============================================================================
// JSON form
// =============================================================================

type jsonMember struct {
	Target ShapeID        `json:"target"`
	Traits map[string]any `json:"traits,omitempty"`
}

type jsonShape struct {
	Type    ShapeType             `json:"type"`
	Members map[string]jsonMember `json:"members,omitempty"`
	Traits  map[string]any        `json:"traits,omitempty"`
	Tags    []string              `json:"tags,omitempty"`
}

type jsonModel struct {
	Metadata map[string]any        `json:"metadata,omitempty"`
	Shapes   map[ShapeID]jsonShape `json:"shapes"`
}

// MarshalJSON renders the model in its JSON interchange form.
// Object keys are sorted by encoding/json, so output is deterministic.
func (m *Model) MarshalJSON() ([]byte, error) {
	out := jsonModel{Shapes: make(map[ShapeID]jsonShape, m.Len())}
	if m != nil {
		out.Metadata = m.metadata
		for _, id := range m.ids {
			s := m.shapes[id]
			js := jsonShape{Type: s.Type, Traits: s.Traits, Tags: s.Tags}
			if len(s.Members) > 0 {
				js.Members = make(map[string]jsonMember, len(s.Members))
				for _, mem := range s.Members {
					js.Members[mem.Name] = jsonMember{Target: mem.Target, Traits: mem.Traits}
				}
			}
			out.Shapes[id] = js
		}
	}
	return json.Marshal(out)
}

// =============================================================================
// ModelBuilder
// =============================================================================

// ModelBuilder accumulates shapes and metadata and produces a Model.
// A builder is not safe for concurrent use.
type ModelBuilder struct {
	shapes   map[ShapeID]Shape
	metadata map[string]any
}

// NewModelBuilder creates an empty builder.
func NewModelBuilder() *ModelBuilder {
	return &ModelBuilder{
		shapes:   make(map[ShapeID]Shape),
		metadata: make(map[string]any),
	}
}

// AddShape adds or replaces a shape. The shape is copied.
func (b *ModelBuilder) AddShape(s Shape) *ModelBuilder {
	b.shapes[s.ID] = s.Clone()
	return b
}

// AddShapes adds or replaces several shapes.
func (b *ModelBuilder) AddShapes(shapes ...Shape) *ModelBuilder {
	for _, s := range shapes {
		b.AddShape(s)
	}
	return b
}

// RemoveShape removes a shape if present.
func (b *ModelBuilder) RemoveShape(id ShapeID) *ModelBuilder {
	delete(b.shapes, id)
	return b
}

// Shape returns a copy of a shape currently in the builder.
func (b *ModelBuilder) Shape(id ShapeID) (Shape, bool) {
	s, ok := b.shapes[id]
	if !ok {
		return Shape{}, false
	}
	return s.Clone(), true
}

// HasShape reports whether the builder holds the shape.
func (b *ModelBuilder) HasShape(id ShapeID) bool {
	_, ok := b.shapes[id]
	return ok
}

// SetMetadata sets a metadata entry. The value is copied.
func (b *ModelBuilder) SetMetadata(key string, value any) *ModelBuilder {
	b.metadata[key] = cloneValue(value)
	return b
}

// RemoveMetadata deletes a metadata entry.
func (b *ModelBuilder) RemoveMetadata(key string) *ModelBuilder {
	delete(b.metadata, key)
	return b
}

// Build produces an immutable Model. The builder may be reused afterwards.
func (b *ModelBuilder) Build() *Model {
	m := &Model{
		shapes:    maps.Clone(b.shapes),
		ids:       slices.Sorted(maps.Keys(b.shapes)),
		metadata:  maps.Clone(b.metadata),
		referrers: make(map[ShapeID][]ShapeID),
	}
	for _, id := range m.ids {
		for _, target := range m.shapes[id].Targets() {
			m.referrers[target] = append(m.referrers[target], id)
		}
	}
	return m
}
