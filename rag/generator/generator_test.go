package generator

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"github.com/smallnest/ragpipe/graph"
)

type mockLLM struct {
	messages []llms.MessageContent
	options  llms.CallOptions
	choices  []*llms.ContentChoice
	err      error
}

func (m *mockLLM) GenerateContent(ctx context.Context, messages []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	m.messages = messages
	for _, opt := range options {
		opt(&m.options)
	}
	if m.err != nil {
		return nil, m.err
	}
	return &llms.ContentResponse{Choices: m.choices}, nil
}

func (m *mockLLM) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, m, prompt, options...)
}

func TestLangChainGenerate(t *testing.T) {
	model := &mockLLM{choices: []*llms.ContentChoice{{Content: "Berlin"}, {Content: "Paris"}}}
	g := NewLangChain(model)

	reply, err := g.Generate(context.Background(), "Where does Mark live?", Config{
		Model:       "zephyr",
		MaxTokens:   400,
		Temperature: 0.9,
		StopWords:   []string{"\n\n"},
	})
	require.NoError(t, err)
	assert.Equal(t, "Berlin", reply)

	require.Len(t, model.messages, 1)
	assert.Equal(t, llms.ChatMessageTypeHuman, model.messages[0].Role)
	assert.Equal(t, []llms.ContentPart{llms.TextContent{Text: "Where does Mark live?"}}, model.messages[0].Parts)

	assert.Equal(t, "zephyr", model.options.Model)
	assert.Equal(t, 400, model.options.MaxTokens)
	assert.InDelta(t, 0.9, model.options.Temperature, 1e-9)
	assert.Equal(t, []string{"\n\n"}, model.options.StopWords)
}

func TestLangChainGenerateDefaults(t *testing.T) {
	model := &mockLLM{choices: []*llms.ContentChoice{{Content: "ok"}}}
	_, err := NewLangChain(model).Generate(context.Background(), "p", Config{})
	require.NoError(t, err)

	assert.Empty(t, model.options.Model)
	assert.Zero(t, model.options.MaxTokens)
	assert.Empty(t, model.options.StopWords)
}

func TestLangChainGenerateErrors(t *testing.T) {
	_, err := NewLangChain(&mockLLM{}).Generate(context.Background(), "p", Config{})
	assert.ErrorIs(t, err, ErrNoReply)

	cause := errors.New("connection refused")
	_, err = NewLangChain(&mockLLM{err: cause}).Generate(context.Background(), "p", Config{})
	assert.ErrorIs(t, err, cause)
}

func TestComponent(t *testing.T) {
	var got Config
	g := GeneratorFunc(func(ctx context.Context, prompt string, cfg Config) (string, error) {
		got = cfg
		return "  answer to " + prompt + "\n", nil
	})
	c := NewComponent(g, Config{Model: "m", Temperature: 0.2})

	assert.Equal(t, graph.Required("prompt"), c.InputSockets())
	assert.Equal(t, []string{"replies"}, c.OutputSockets())

	out, err := c.Run(context.Background(), map[string]any{"prompt": "q"})
	require.NoError(t, err)
	assert.Equal(t, []string{"answer to q"}, out["replies"])
	assert.Equal(t, Config{Model: "m", Temperature: 0.2}, got)
}

func TestComponentDoesNotRetry(t *testing.T) {
	calls := 0
	g := GeneratorFunc(func(ctx context.Context, prompt string, cfg Config) (string, error) {
		calls++
		return "", errors.New("unavailable")
	})

	_, err := NewComponent(g, Config{}).Run(context.Background(), map[string]any{"prompt": "q"})
	assert.ErrorContains(t, err, "unavailable")
	assert.Equal(t, 1, calls)

	_, err = NewComponent(g, Config{}).Run(context.Background(), map[string]any{"prompt": 3})
	assert.ErrorIs(t, err, graph.ErrInputType)
}

func TestComponentInPipeline(t *testing.T) {
	p := graph.NewPipeline()
	require.NoError(t, p.AddComponent("llm", NewComponent(NewLangChain(&mockLLM{
		choices: []*llms.ContentChoice{{Content: "Mock Answer"}},
	}), Config{})))

	out, err := p.Run(context.Background(), graph.Inputs{"llm": {"prompt": "hello"}})
	require.NoError(t, err)
	replies, ok := out.Get("llm", "replies")
	require.True(t, ok)
	assert.Equal(t, []string{"Mock Answer"}, replies)
}
