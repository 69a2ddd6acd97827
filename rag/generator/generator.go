// Package generator wires text generation services into pipelines.
package generator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/tmc/langchaingo/llms"

	"github.com/smallnest/ragpipe/graph"
	"github.com/smallnest/ragpipe/log"
)

// ErrNoReply is returned when a model answers without any choice.
var ErrNoReply = errors.New("model returned no reply")

// Config holds per-call generation settings.
type Config struct {
	// Model overrides the model the client was created with, if set.
	Model string

	// MaxTokens limits the reply length. Zero leaves the provider default.
	MaxTokens int

	// Temperature is the sampling temperature.
	Temperature float64

	// StopWords end generation when produced.
	StopWords []string
}

// Generator produces text for a prompt.
type Generator interface {
	Generate(ctx context.Context, prompt string, cfg Config) (string, error)
}

// GeneratorFunc adapts a function to the Generator interface.
type GeneratorFunc func(ctx context.Context, prompt string, cfg Config) (string, error)

// Generate implements Generator.
func (f GeneratorFunc) Generate(ctx context.Context, prompt string, cfg Config) (string, error) {
	return f(ctx, prompt, cfg)
}

// LangChain adapts a langchaingo model, such as an Ollama or OpenAI client.
type LangChain struct {
	model llms.Model
}

var _ Generator = (*LangChain)(nil)

// NewLangChain creates a Generator backed by model.
func NewLangChain(model llms.Model) *LangChain {
	return &LangChain{model: model}
}

// Generate implements Generator. The prompt is sent as a single human message
// and the first choice is returned.
func (l *LangChain) Generate(ctx context.Context, prompt string, cfg Config) (string, error) {
	messages := []llms.MessageContent{
		llms.TextParts(llms.ChatMessageTypeHuman, prompt),
	}

	resp, err := l.model.GenerateContent(ctx, messages, CallOptions(cfg)...)
	if err != nil {
		return "", fmt.Errorf("generation failed: %w", err)
	}
	if resp == nil || len(resp.Choices) == 0 {
		return "", ErrNoReply
	}
	return resp.Choices[0].Content, nil
}

// CallOptions converts cfg into langchaingo call options.
func CallOptions(cfg Config) []llms.CallOption {
	opts := []llms.CallOption{llms.WithTemperature(cfg.Temperature)}
	if cfg.Model != "" {
		opts = append(opts, llms.WithModel(cfg.Model))
	}
	if cfg.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(cfg.MaxTokens))
	}
	if len(cfg.StopWords) > 0 {
		opts = append(opts, llms.WithStopWords(cfg.StopWords))
	}
	return opts
}

// Component is a pipeline component calling a Generator once per run.
// Failures are returned as is; there is no retry.
//
//	inputs:  prompt string
//	outputs: replies []string
type Component struct {
	generator Generator
	config    Config
	logger    log.Logger
}

var _ graph.Component = (*Component)(nil)

// NewComponent creates a generation component using cfg for every call.
func NewComponent(g Generator, cfg Config) *Component {
	return &Component{generator: g, config: cfg}
}

// WithLogger sets the logger. By default the package-level logger is used.
func (c *Component) WithLogger(logger log.Logger) *Component {
	c.logger = logger
	return c
}

// InputSockets implements graph.Component.
func (c *Component) InputSockets() []graph.InputSocket {
	return graph.Required("prompt")
}

// OutputSockets implements graph.Component.
func (c *Component) OutputSockets() []string {
	return []string{"replies"}
}

// Run implements graph.Component.
func (c *Component) Run(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	prompt, err := graph.Input[string](inputs, "prompt")
	if err != nil {
		return nil, err
	}

	logger := c.logger
	if logger == nil {
		logger = log.GetDefaultLogger()
	}

	start := time.Now()
	reply, err := c.generator.Generate(ctx, prompt, c.config)
	if err != nil {
		return nil, err
	}
	logger.Debug("generated %d characters from a %d character prompt in %s",
		len(reply), len(prompt), time.Since(start))

	return map[string]any{"replies": []string{strings.TrimSpace(reply)}}, nil
}
