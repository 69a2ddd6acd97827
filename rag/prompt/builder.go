package prompt

import (
	"context"
	"slices"

	"github.com/smallnest/ragpipe/graph"
)

// Builder is a pipeline component rendering a Template. Its input sockets are
// the template variables; its single output is the rendered prompt.
//
//	inputs:  one socket per template variable
//	outputs: prompt string
type Builder struct {
	template *Template
	sockets  []graph.InputSocket
}

var _ graph.Component = (*Builder)(nil)

// BuilderOption configures a Builder.
type BuilderOption func(*builderConfig)

type builderConfig struct {
	optional []string
}

// WithOptionalVariables marks template variables that may be left unset. An
// unset optional variable renders as null: empty text, or an empty loop.
func WithOptionalVariables(names ...string) BuilderOption {
	return func(c *builderConfig) {
		c.optional = append(c.optional, names...)
	}
}

// NewBuilder parses source and creates a Builder for it.
func NewBuilder(source string, opts ...BuilderOption) (*Builder, error) {
	t, err := Parse(source)
	if err != nil {
		return nil, err
	}
	return NewTemplateBuilder(t, opts...), nil
}

// NewTemplateBuilder creates a Builder for an already parsed template.
func NewTemplateBuilder(t *Template, opts ...BuilderOption) *Builder {
	var cfg builderConfig
	for _, opt := range opts {
		opt(&cfg)
	}

	vars := t.Variables()
	sockets := make([]graph.InputSocket, len(vars))
	for i, name := range vars {
		sockets[i] = graph.InputSocket{Name: name, Optional: slices.Contains(cfg.optional, name)}
	}
	return &Builder{template: t, sockets: sockets}
}

// Template returns the template rendered by b.
func (b *Builder) Template() *Template {
	return b.template
}

// InputSockets implements graph.Component.
func (b *Builder) InputSockets() []graph.InputSocket {
	return slices.Clone(b.sockets)
}

// OutputSockets implements graph.Component.
func (b *Builder) OutputSockets() []string {
	return []string{"prompt"}
}

// Run implements graph.Component.
func (b *Builder) Run(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	vars := make(map[string]any, len(b.sockets))
	for _, s := range b.sockets {
		v, ok := inputs[s.Name]
		if !ok && !s.Optional {
			continue
		}
		vars[s.Name] = v
	}

	text, err := b.template.Render(vars)
	if err != nil {
		return nil, err
	}
	return map[string]any{"prompt": text}, nil
}
