package transform

import (
	"context"
	"errors"
	"fmt"

	"github.com/go-viper/mapstructure/v2"

	"github.com/leapstack-labs/leapidl/pkg/core"
)

// Options holds transform options from configuration.
type Options map[string]any

// Transformer derives a new model from its input.
// Implementations must not mutate the input model and must be safe for
// concurrent use.
type Transformer interface {
	Name() string
	Description() string
	Apply(ctx context.Context, model *core.Model, opts Options) (*core.Model, error)
}

// OptionsValidator is implemented by transformers that can check their
// options without a model. The planner uses it to reject malformed options
// before any projection runs.
type OptionsValidator interface {
	ValidateOptions(opts Options) error
}

// ErrMissingShape is wrapped when a transform references a shape that does
// not exist in its input model.
var ErrMissingShape = errors.New("shape not found")

// TransformError reports a failed transform step.
type TransformError struct {
	Transform string
	// Step is the zero-based position in the chain, -1 outside a chain.
	Step int
	Err  error
}

func (e *TransformError) Error() string {
	if e.Step >= 0 {
		return fmt.Sprintf("transform %q (step %d): %v", e.Transform, e.Step+1, e.Err)
	}
	return fmt.Sprintf("transform %q: %v", e.Transform, e.Err)
}

func (e *TransformError) Unwrap() error { return e.Err }

func newTransformError(name string, err error) *TransformError {
	var te *TransformError
	if errors.As(err, &te) {
		return te
	}
	return &TransformError{Transform: name, Step: -1, Err: err}
}

// DecodeOptions decodes options into a typed struct. Unknown keys are errors.
func DecodeOptions[T any](opts Options) (T, error) {
	var out T
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           &out,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return out, err
	}
	if err := dec.Decode(map[string]any(opts)); err != nil {
		return out, fmt.Errorf("invalid options: %w", err)
	}
	return out, nil
}

// =============================================================================
// Typed transformer
// =============================================================================

// Func builds a Transformer from a typed apply function.
// Options are decoded into T and checked by validate (if non-nil) before apply
// runs.
func Func[T any](name, description string, validate func(T) error, apply func(ctx context.Context, model *core.Model, opts T) (*core.Model, error)) Transformer {
	return &typedTransformer[T]{name: name, description: description, validate: validate, apply: apply}
}

type typedTransformer[T any] struct {
	name        string
	description string
	validate    func(T) error
	apply       func(ctx context.Context, model *core.Model, opts T) (*core.Model, error)
}

func (t *typedTransformer[T]) Name() string        { return t.name }
func (t *typedTransformer[T]) Description() string { return t.description }

func (t *typedTransformer[T]) decode(opts Options) (T, error) {
	typed, err := DecodeOptions[T](opts)
	if err != nil {
		return typed, err
	}
	if t.validate != nil {
		if err := t.validate(typed); err != nil {
			return typed, fmt.Errorf("invalid options: %w", err)
		}
	}
	return typed, nil
}

func (t *typedTransformer[T]) ValidateOptions(opts Options) error {
	if _, err := t.decode(opts); err != nil {
		return newTransformError(t.name, err)
	}
	return nil
}

func (t *typedTransformer[T]) Apply(ctx context.Context, model *core.Model, opts Options) (*core.Model, error) {
	typed, err := t.decode(opts)
	if err != nil {
		return nil, newTransformError(t.name, err)
	}
	out, err := t.apply(ctx, model, typed)
	if err != nil {
		return nil, newTransformError(t.name, err)
	}
	return out, nil
}
