package plugin

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/go-viper/mapstructure/v2"

	"github.com/leapstack-labs/leapidl/pkg/core"
)

// Options holds plugin options from configuration.
type Options map[string]any

// Plugin generates artifacts from a projected model.
type Plugin interface {
	Name() string
	Description() string
	Execute(ctx context.Context, pctx *Context) error
}

// OptionsValidator is implemented by plugins that can check their options
// at planning time.
type OptionsValidator interface {
	ValidateOptions(opts Options) error
}

// Context is everything a plugin invocation may observe.
type Context struct {
	// Projection is the name of the projection being built.
	Projection string
	// Model is the validated projected model.
	Model *core.Model
	// Events are the projection's validation events, suppressed ones included.
	Events []core.ValidationEvent
	// Options are this plugin's options; a private copy per invocation.
	Options Options
	// Plugins lists the plugins configured for the projection, in order.
	Plugins []string
	// Sink receives the plugin's artifacts.
	Sink *ArtifactSink
	// Logger is the plugin's private logger.
	Logger *slog.Logger
}

// DecodeOptions decodes options into T. Unknown keys are errors.
func DecodeOptions[T any](opts Options, into *T) error {
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		Result:           into,
		ErrorUnused:      true,
		WeaklyTypedInput: true,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(map[string]any(opts)); err != nil {
		return fmt.Errorf("invalid options: %w", err)
	}
	return nil
}

// Func adapts a function to the Plugin interface.
func Func(name, description string, fn func(ctx context.Context, pctx *Context) error) Plugin {
	return &funcPlugin{name: name, description: description, fn: fn}
}

type funcPlugin struct {
	name        string
	description string
	fn          func(ctx context.Context, pctx *Context) error
}

func (p *funcPlugin) Name() string        { return p.name }
func (p *funcPlugin) Description() string { return p.description }

func (p *funcPlugin) Execute(ctx context.Context, pctx *Context) error {
	return p.fn(ctx, pctx)
}
