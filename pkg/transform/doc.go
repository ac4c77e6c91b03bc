// Package transform provides model transformers and the ordered chain that
// derives a projected model from a source model.
//
// A Transformer is a pure function from one model to a new model. Options are
// decoded with mapstructure into a typed struct, so misspelled or mistyped
// options are reported as a *TransformError before the model is touched.
//
// The name "apply" is reserved: it includes the transforms of other
// projections and is resolved by the build planner, never by a Transformer.
package transform
