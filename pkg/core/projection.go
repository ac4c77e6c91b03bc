package core

// ApplyTransform is the reserved transform name used to include the
// transform list of other projections. It is resolved at planning time.
const ApplyTransform = "apply"

// TransformSpec names a transform and its options.
type TransformSpec struct {
	Name    string         `json:"name" koanf:"name"`
	Options map[string]any `json:"options,omitempty" koanf:"options"`
}

// PluginSpec names a plugin and its options.
type PluginSpec struct {
	Name    string         `json:"name" koanf:"name"`
	Options map[string]any `json:"options,omitempty" koanf:"options"`
}

// ProjectionConfig describes one projection: an ordered transform chain and
// the plugins that consume the resulting model.
//
// Abstract projections are never executed; they exist to be included by
// other projections through the "apply" transform.
type ProjectionConfig struct {
	Name       string          `json:"name" koanf:"name"`
	Abstract   bool            `json:"abstract,omitempty" koanf:"abstract"`
	Transforms []TransformSpec `json:"transforms,omitempty" koanf:"transforms"`
	Plugins    []PluginSpec    `json:"plugins,omitempty" koanf:"plugins"`
}

// ApplyOf returns the projections included by an "apply" transform spec.
// Accepts a list of strings under "projections" or a single "projection".
func ApplyOf(spec TransformSpec) []string {
	if spec.Name != ApplyTransform {
		return nil
	}
	var out []string
	switch v := spec.Options["projections"].(type) {
	case []string:
		out = append(out, v...)
	case []any:
		for _, e := range v {
			if s, ok := e.(string); ok {
				out = append(out, s)
			}
		}
	case string:
		out = append(out, v)
	}
	if s, ok := spec.Options["projection"].(string); ok {
		out = append(out, s)
	}
	return out
}
