package core

import (
	"fmt"
	"maps"
	"slices"
	"strings"
)

// =============================================================================
// ShapeID
// =============================================================================

// ShapeID is an absolute shape identifier of the form "namespace#Name",
// optionally followed by "$member" for member shapes.
type ShapeID string

// ParseShapeID validates and returns a ShapeID.
func ParseShapeID(s string) (ShapeID, error) {
	hash := strings.IndexByte(s, '#')
	if hash <= 0 || hash == len(s)-1 {
		return "", fmt.Errorf("invalid shape id %q: expected namespace#Name", s)
	}
	rest := s[hash+1:]
	if strings.ContainsAny(rest, "#") {
		return "", fmt.Errorf("invalid shape id %q: multiple '#' separators", s)
	}
	if dollar := strings.IndexByte(rest, '$'); dollar == 0 || dollar == len(rest)-1 {
		return "", fmt.Errorf("invalid shape id %q: empty name or member", s)
	}
	return ShapeID(s), nil
}

// MustParseShapeID is like ParseShapeID but panics on error. Intended for tests
// and static tables.
func MustParseShapeID(s string) ShapeID {
	id, err := ParseShapeID(s)
	if err != nil {
		panic(err)
	}
	return id
}

// NewShapeID builds a ShapeID from a namespace and a name.
func NewShapeID(namespace, name string) ShapeID {
	return ShapeID(namespace + "#" + name)
}

// String returns the identifier text.
func (id ShapeID) String() string { return string(id) }

// Namespace returns the part before '#'.
func (id ShapeID) Namespace() string {
	ns, _, _ := strings.Cut(string(id), "#")
	return ns
}

// Name returns the shape name without namespace or member.
func (id ShapeID) Name() string {
	_, rest, _ := strings.Cut(string(id), "#")
	name, _, _ := strings.Cut(rest, "$")
	return name
}

// Member returns the member name, or "" for non-member ids.
func (id ShapeID) Member() string {
	_, member, _ := strings.Cut(string(id), "$")
	return member
}

// WithNamespace returns the same shape name in a different namespace.
func (id ShapeID) WithNamespace(ns string) ShapeID {
	out := NewShapeID(ns, id.Name())
	if m := id.Member(); m != "" {
		out += ShapeID("$" + m)
	}
	return out
}

// WithMember returns the member id for the given member name.
func (id ShapeID) WithMember(member string) ShapeID {
	return NewShapeID(id.Namespace(), id.Name()) + ShapeID("$"+member)
}

// =============================================================================
// Shape
// =============================================================================

// ShapeType is the declared kind of a shape (structure, service, string, ...).
type ShapeType string

// Shape types the build pipeline gives special meaning to.
// Any other type string is carried through untouched.
const (
	ShapeTypeService   ShapeType = "service"
	ShapeTypeOperation ShapeType = "operation"
	ShapeTypeResource  ShapeType = "resource"
	ShapeTypeStructure ShapeType = "structure"
	ShapeTypeUnion     ShapeType = "union"
	ShapeTypeList      ShapeType = "list"
	ShapeTypeMap       ShapeType = "map"
	ShapeTypeString    ShapeType = "string"
	ShapeTypeEnum      ShapeType = "enum"
)

// Well-known trait names.
const (
	TraitDocumentation = "documentation"
	TraitDeprecated    = "deprecated"
	TraitRequired      = "required"
)

// Member is a named reference from a container shape to a target shape.
type Member struct {
	Name   string
	Target ShapeID
	Traits map[string]any
}

// Shape is a named, typed node in the model.
type Shape struct {
	ID      ShapeID
	Type    ShapeType
	Members []Member
	Traits  map[string]any
	Tags    []string
}

// Member returns the named member.
func (s Shape) Member(name string) (Member, bool) {
	for _, m := range s.Members {
		if m.Name == name {
			return m, true
		}
	}
	return Member{}, false
}

// HasTrait reports whether the shape carries the named trait.
func (s Shape) HasTrait(name string) bool {
	_, ok := s.Traits[name]
	return ok
}

// Trait returns a trait value.
func (s Shape) Trait(name string) (any, bool) {
	v, ok := s.Traits[name]
	return v, ok
}

// HasTag reports whether the shape is tagged with tag.
func (s Shape) HasTag(tag string) bool {
	return slices.Contains(s.Tags, tag)
}

// Documentation returns the documentation trait as a string, if present.
func (s Shape) Documentation() string {
	if v, ok := s.Traits[TraitDocumentation].(string); ok {
		return v
	}
	return ""
}

// Targets returns the distinct member targets in member order.
func (s Shape) Targets() []ShapeID {
	var out []ShapeID
	for _, m := range s.Members {
		if m.Target != "" && !slices.Contains(out, m.Target) {
			out = append(out, m.Target)
		}
	}
	return out
}

// Clone returns a deep copy of the shape.
func (s Shape) Clone() Shape {
	out := Shape{
		ID:     s.ID,
		Type:   s.Type,
		Traits: cloneMap(s.Traits),
		Tags:   slices.Clone(s.Tags),
	}
	if s.Members != nil {
		out.Members = make([]Member, len(s.Members))
		for i, m := range s.Members {
			out.Members[i] = Member{Name: m.Name, Target: m.Target, Traits: cloneMap(m.Traits)}
		}
	}
	return out
}

func cloneMap(in map[string]any) map[string]any {
	if in == nil {
		return nil
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	case []string:
		return slices.Clone(t)
	default:
		return v
	}
}

// CloneOptions deep-copies a free-form options or metadata map.
func CloneOptions(in map[string]any) map[string]any {
	return cloneMap(in)
}

func sortedKeys[V any](m map[string]V) []string {
	return slices.Sorted(maps.Keys(m))
}
