package main

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/ollama"
	"github.com/tmc/langchaingo/llms/openai"

	"github.com/smallnest/ragpipe/config"
	"github.com/smallnest/ragpipe/corpus"
	"github.com/smallnest/ragpipe/corpus/postgres"
	"github.com/smallnest/ragpipe/corpus/redis"
	"github.com/smallnest/ragpipe/corpus/sqlite"
	"github.com/smallnest/ragpipe/rag"
	"github.com/smallnest/ragpipe/rag/embedder"
	"github.com/smallnest/ragpipe/rag/generator"
	"github.com/smallnest/ragpipe/rag/loader"
)

// services creates the external collaborators of a run. Tests replace them.
type services struct {
	loader    func(ctx context.Context, cfg config.CorpusConfig) (rag.DocumentLoader, io.Closer, error)
	generator func(cfg config.GeneratorConfig) (generator.Generator, error)
	embedder  func(cfg config.EmbedderConfig) (embedder.Embedder, error)
}

func defaultServices() services {
	return services{
		loader:    openCorpus,
		generator: newGenerator,
		embedder:  newEmbedder,
	}
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

var nopCloser = closerFunc(func() error { return nil })

// openCorpus returns a loader for the configured corpus driver.
func openCorpus(ctx context.Context, cfg config.CorpusConfig) (rag.DocumentLoader, io.Closer, error) {
	switch cfg.Driver {
	case "sqlite":
		src, err := sqlite.New(sqlite.Options{Path: cfg.DSN, TableName: cfg.Table})
		if err != nil {
			return nil, nil, err
		}
		return corpus.NewLoader(src), src, nil
	case "postgres":
		src, err := postgres.New(ctx, postgres.Options{ConnString: cfg.DSN, TableName: cfg.Table})
		if err != nil {
			return nil, nil, err
		}
		return corpus.NewLoader(src), closerFunc(func() error { src.Close(); return nil }), nil
	case "redis":
		src := redis.New(redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB, Prefix: cfg.Prefix})
		return corpus.NewLoader(src), src, nil
	}

	paths, err := expandPaths(cfg.Paths)
	if err != nil {
		return nil, nil, err
	}
	switch cfg.Driver {
	case "html":
		return loader.NewHTMLLoader(paths), nopCloser, nil
	case "markdown":
		return loader.NewMarkdownLoader(paths...), nopCloser, nil
	case "text":
		return loader.NewTextLoader(paths, loader.WithParagraphs("")), nopCloser, nil
	}
	return nil, nil, fmt.Errorf("unsupported corpus driver %q", cfg.Driver)
}

// expandPaths expands glob patterns. URLs and patterns without matches are kept
// as given so that the loader reports them.
func expandPaths(patterns []string) ([]string, error) {
	var paths []string
	for _, p := range patterns {
		if strings.Contains(p, "://") {
			paths = append(paths, p)
			continue
		}
		matches, err := filepath.Glob(p)
		if err != nil {
			return nil, fmt.Errorf("invalid path pattern %q: %w", p, err)
		}
		if len(matches) == 0 {
			paths = append(paths, p)
			continue
		}
		paths = append(paths, matches...)
	}
	return paths, nil
}

func newGenerator(cfg config.GeneratorConfig) (generator.Generator, error) {
	switch cfg.Provider {
	case "openai":
		opts := []openai.Option{openai.WithModel(cfg.Model)}
		if cfg.APIKey != "" {
			opts = append(opts, openai.WithToken(cfg.APIKey))
		}
		if cfg.URL != "" {
			opts = append(opts, openai.WithBaseURL(cfg.URL))
		}
		model, err := openai.New(opts...)
		if err != nil {
			return nil, fmt.Errorf("failed to create openai client: %w", err)
		}
		return generator.NewLangChain(model), nil
	default:
		model, err := ollama.New(ollama.WithModel(cfg.Model), ollama.WithServerURL(cfg.URL))
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		return generator.NewLangChain(model), nil
	}
}

func newEmbedder(cfg config.EmbedderConfig) (embedder.Embedder, error) {
	switch cfg.Provider {
	case "openai":
		return embedder.NewOpenAI(embedder.OpenAIConfig{
			APIKey:     cfg.APIKey,
			BaseURL:    cfg.URL,
			Model:      cfg.Model,
			Dimensions: cfg.Dimensions,
		}), nil
	default:
		client, err := ollama.New(ollama.WithModel(cfg.Model), ollama.WithServerURL(cfg.URL))
		if err != nil {
			return nil, fmt.Errorf("failed to create ollama client: %w", err)
		}
		e, err := embeddings.NewEmbedder(client, embeddings.WithBatchSize(cfg.BatchSize))
		if err != nil {
			return nil, fmt.Errorf("failed to create embedder: %w", err)
		}
		return e, nil
	}
}

func generationConfig(cfg config.GeneratorConfig) generator.Config {
	return generator.Config{
		Model:       cfg.Model,
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		StopWords:   cfg.StopWords,
	}
}
