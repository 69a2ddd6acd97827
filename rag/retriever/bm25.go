// Package retriever provides pipeline components that fetch documents from a store.
package retriever

import (
	"context"
	"fmt"

	"github.com/smallnest/ragpipe/graph"
	"github.com/smallnest/ragpipe/rag"
	"github.com/smallnest/ragpipe/rag/store"
)

// DefaultTopK is the number of documents returned when neither the options nor
// the top_k input say otherwise.
const DefaultTopK = 10

// BM25Searcher runs lexical retrievals.
type BM25Searcher interface {
	BM25Retrieval(ctx context.Context, q store.BM25Query) ([]rag.DocumentSearchResult, error)
}

// Config holds the defaults of a retriever component.
type Config struct {
	// TopK is used when the top_k input is unset.
	TopK int

	// Filters is used when the filters input is unset.
	Filters map[string]rag.Value

	// ScaleScore maps scores into [0, 1].
	ScaleScore bool
}

// Option configures a retriever component.
type Option func(*Config)

// WithTopK sets the default number of results.
func WithTopK(k int) Option {
	return func(c *Config) {
		c.TopK = k
	}
}

// WithFilters sets the default metadata filters.
func WithFilters(filters map[string]rag.Value) Option {
	return func(c *Config) {
		c.Filters = filters
	}
}

// WithScaleScore enables score scaling.
func WithScaleScore() Option {
	return func(c *Config) {
		c.ScaleScore = true
	}
}

func newConfig(opts []Option) Config {
	cfg := Config{TopK: DefaultTopK}
	for _, opt := range opts {
		opt(&cfg)
	}
	return cfg
}

// resolve merges the optional top_k and filters inputs over the defaults.
// Filters given as input replace the default filters.
func (c Config) resolve(inputs map[string]any) (int, map[string]rag.Value, error) {
	topK, err := graph.OptionalInput(inputs, "top_k", c.TopK)
	if err != nil {
		return 0, nil, err
	}
	if topK <= 0 {
		return 0, nil, fmt.Errorf("%w: got %d", rag.ErrInvalidTopK, topK)
	}
	filters, err := graph.OptionalInput(inputs, "filters", c.Filters)
	if err != nil {
		return 0, nil, err
	}
	return topK, filters, nil
}

var optionalSockets = []graph.InputSocket{
	{Name: "top_k", Optional: true},
	{Name: "filters", Optional: true},
}

// BM25Retriever is a pipeline component ranking stored documents against a query.
//
//	inputs:  query string, top_k int (optional), filters map[string]rag.Value (optional)
//	outputs: documents []rag.Document, each with Score set
type BM25Retriever struct {
	store  BM25Searcher
	config Config
}

var _ graph.Component = (*BM25Retriever)(nil)

// NewBM25Retriever creates a BM25Retriever over s.
func NewBM25Retriever(s BM25Searcher, opts ...Option) *BM25Retriever {
	return &BM25Retriever{store: s, config: newConfig(opts)}
}

// InputSockets implements graph.Component.
func (r *BM25Retriever) InputSockets() []graph.InputSocket {
	return append([]graph.InputSocket{{Name: "query"}}, optionalSockets...)
}

// OutputSockets implements graph.Component.
func (r *BM25Retriever) OutputSockets() []string {
	return []string{"documents"}
}

// Run implements graph.Component.
func (r *BM25Retriever) Run(ctx context.Context, inputs map[string]any) (map[string]any, error) {
	query, err := graph.Input[string](inputs, "query")
	if err != nil {
		return nil, err
	}
	topK, filters, err := r.config.resolve(inputs)
	if err != nil {
		return nil, err
	}

	results, err := r.store.BM25Retrieval(ctx, store.BM25Query{
		Query:      query,
		TopK:       topK,
		Filters:    filters,
		ScaleScore: r.config.ScaleScore,
	})
	if err != nil {
		return nil, fmt.Errorf("bm25 retrieval: %w", err)
	}
	return map[string]any{"documents": rag.Documents(results)}, nil
}
