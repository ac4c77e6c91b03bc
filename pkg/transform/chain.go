package transform

import (
	"context"
	"errors"
	"fmt"

	"github.com/leapstack-labs/leapidl/pkg/core"
)

// Step is one resolved transform invocation.
type Step struct {
	Transformer Transformer
	Options     Options
}

// Name returns the transformer name.
func (s Step) Name() string { return s.Transformer.Name() }

// Chain applies steps strictly in order.
type Chain struct {
	steps []Step
}

// NewChain creates a chain. The steps slice is copied.
func NewChain(steps ...Step) *Chain {
	return &Chain{steps: append([]Step(nil), steps...)}
}

// Len returns the number of steps.
func (c *Chain) Len() int { return len(c.steps) }

// Steps returns a copy of the steps.
func (c *Chain) Steps() []Step {
	return append([]Step(nil), c.steps...)
}

// Apply runs each step on the output of the previous one. The context is
// checked before every step. An empty chain returns the input model.
func (c *Chain) Apply(ctx context.Context, model *core.Model) (*core.Model, error) {
	current := model
	for i, step := range c.steps {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("before transform %q: %w", step.Name(), context.Cause(ctx))
		}
		next, err := step.Transformer.Apply(ctx, current, step.Options)
		if err != nil {
			var te *TransformError
			if errors.As(err, &te) {
				positioned := *te
				positioned.Step = i
				return nil, &positioned
			}
			return nil, &TransformError{Transform: step.Name(), Step: i, Err: err}
		}
		if next == nil {
			return nil, &TransformError{Transform: step.Name(), Step: i, Err: errors.New("returned a nil model")}
		}
		current = next
	}
	return current, nil
}
