// Package plugin defines the generator plugin contract.
//
// A plugin receives a Context holding the projected model, the validation
// events of its projection, its own options and a private ArtifactSink. It
// either returns nil, possibly after writing artifacts, or an error. Plugins
// must not keep references to the model or the sink after Execute returns;
// the sink is sealed at that point and rejects further writes.
package plugin
